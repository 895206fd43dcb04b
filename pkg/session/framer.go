package session

import (
	"errors"
	"fmt"

	"github.com/backkem/ssession/pkg/container"
	"github.com/backkem/ssession/pkg/crypto"
	"github.com/backkem/ssession/pkg/message"
)

// MaxPlaintextSize is the largest payload a single envelope can carry.
const MaxPlaintextSize = container.MaxPayloadSize - message.EnvelopeHeaderSize - crypto.AEADTagSize

// Wrap encrypts plaintext into an envelope under the next outgoing sequence.
// Valid only in StateEstablished.
func (s *Session) Wrap(plaintext []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.unlock()

	if s.state != StateEstablished {
		return nil, fmt.Errorf("%w: wrap in %s", ErrInvalidState, s.state)
	}
	if len(plaintext) > MaxPlaintextSize {
		return nil, fmt.Errorf("%w: plaintext is %d bytes, max %d", ErrInvalidParameter, len(plaintext), MaxPlaintextSize)
	}

	env, err := s.secure.seal(plaintext)
	if err != nil {
		s.log.Warnf("%s: cannot wrap: %v", printable(s.config.Identity), err)
		return nil, err
	}
	out, err := env.Encode()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidParameter, err)
	}
	return out, nil
}

// Unwrap verifies and decrypts an envelope. Valid only in StateEstablished.
//
// A rejected envelope never changes the reception state or the keys.
// ErrReplayOrReorder is always recoverable; ErrAuthenticationFailed and
// ErrDataCorrupt are recoverable under FailurePolicyPerMessage.
func (s *Session) Unwrap(data []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.unlock()
	return s.unwrapLocked(data)
}

func (s *Session) unwrapLocked(data []byte) ([]byte, error) {
	if s.state != StateEstablished {
		return nil, fmt.Errorf("%w: unwrap in %s", ErrInvalidState, s.state)
	}

	tag, body, err := openContainer(data)
	if err != nil {
		return nil, s.rejectEnvelope(err)
	}
	if message.KindOf(tag) != message.KindEnvelope {
		return nil, fmt.Errorf("%w: %q is not an envelope", ErrInvalidParameter, tag.String())
	}
	env, err := message.DecodeEnvelope(body)
	if err != nil {
		return nil, s.rejectEnvelope(fmt.Errorf("%w: %w", ErrMalformed, err))
	}

	plaintext, err := s.secure.open(env)
	if err != nil {
		if errors.Is(err, ErrReplayOrReorder) {
			s.log.Warnf("%s: %v", printable(s.config.Identity), err)
			return nil, err
		}
		return nil, s.rejectEnvelope(err)
	}
	return plaintext, nil
}

// rejectEnvelope applies FailurePolicy to a bad envelope. Caller holds the lock.
func (s *Session) rejectEnvelope(err error) error {
	if s.config.FailurePolicy == FailurePolicyTeardown {
		return s.fail(err)
	}
	s.log.Warnf("%s: envelope rejected: %v", printable(s.config.Identity), err)
	return err
}

// Send wraps plaintext and delivers it through the Transport. A failed
// delivery still consumes the sequence number.
func (s *Session) Send(plaintext []byte) error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	out, err := s.Wrap(plaintext)
	if err != nil {
		return err
	}
	if err := s.config.Transport.Send(out); err != nil {
		return fmt.Errorf("%w: send envelope: %v", ErrTransport, err)
	}
	return nil
}

// Receive returns the next application payload from the Transport. Handshake
// messages that arrive in between (a peer-initiated rekey, a key
// confirmation) are processed and answered along the way. Valid only in
// StateEstablished.
func (s *Session) Receive() ([]byte, error) {
	s.mu.Lock()
	if s.state != StateEstablished {
		err := fmt.Errorf("%w: receive in %s", ErrInvalidState, s.state)
		s.unlock()
		return nil, err
	}
	s.unlock()

	for {
		if data, ok := s.popInbox(); ok {
			return data, nil
		}
		res, err := s.pump()
		if err != nil {
			return nil, err
		}
		if res.Kind == message.KindEnvelope {
			return res.Data, nil
		}
	}
}

// Negotiate drives the Transport until the handshake in flight completes.
// An initiator calls it after Connect or Rekey; a responder calls it from
// StateIdle to wait for and answer a connect request. Application data that
// arrives meanwhile is queued for Receive.
func (s *Session) Negotiate() error {
	for {
		s.mu.Lock()
		state, busy := s.state, s.pending != nil
		s.unlock()

		switch {
		case state.IsTerminal():
			return fmt.Errorf("%w: negotiate in %s", ErrInvalidState, state)
		case state == StateEstablished && !busy:
			return nil
		}

		res, err := s.pump()
		if err != nil {
			return err
		}
		if res.Kind == message.KindEnvelope {
			s.mu.Lock()
			s.inbox = append(s.inbox, res.Data)
			s.unlock()
		}
	}
}

// popInbox returns the oldest payload queued by Negotiate.
func (s *Session) popInbox() ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.inbox) == 0 {
		return nil, false
	}
	data := s.inbox[0]
	s.inbox = s.inbox[1:]
	return data, true
}

// pump reads one message, processes it, and sends any reply. One pump runs
// at a time. The reply leaves before any envelope sealed under keys the
// message installed.
func (s *Session) pump() (*Result, error) {
	s.recvMu.Lock()
	defer s.recvMu.Unlock()

	data, err := s.config.Transport.Receive()
	if err != nil {
		return nil, fmt.Errorf("%w: receive: %v", ErrTransport, err)
	}

	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	res, err := s.HandleIncoming(data)
	if err != nil {
		return nil, err
	}
	if res.Reply != nil {
		if err := s.config.Transport.Send(res.Reply); err != nil {
			s.mu.Lock()
			defer s.unlock()
			return nil, s.fail(fmt.Errorf("%w: send %s reply: %v", ErrTransport, res.Kind, err))
		}
	}
	return res, nil
}
