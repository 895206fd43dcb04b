package session

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/backkem/ssession/pkg/crypto"
	"github.com/backkem/ssession/pkg/message"
	"github.com/pion/logging"
)

// Session is one side of a two-party secure session.
//
// All methods are safe for concurrent use. State is guarded by a per-session
// lock that is never held across a Transport call. Transport.Send calls are
// serialized so envelopes reach the wire in sequence order, and only one
// goroutine reads from Transport.Receive at a time; a Send may run while
// another goroutine is blocked in Receive.
type Session struct {
	config Config
	log    logging.LeveledLogger

	// Lock order: recvMu, sendMu, mu.
	recvMu sync.Mutex
	sendMu sync.Mutex

	mu    sync.Mutex
	state State
	role  Role

	// Peer learned from the first verified handshake message.
	peerIdentity []byte

	// Active keys. Non-nil only while Established.
	secure *secureContext

	// In-flight handshake: the initial one, or a rekey while Established.
	pending *pendingHandshake

	// Application data read by Negotiate while a rekey was in flight.
	inbox [][]byte

	// State transitions waiting to be reported once the lock is released.
	events []stateEvent
}

type stateEvent struct {
	old, new State
}

// pendingHandshake is the state owned by an in-progress handshake.
type pendingHandshake struct {
	role Role

	// Initiator: our ephemeral and the request we sent.
	ephemeral crypto.EphemeralKey
	request   *message.Handshake

	// Responder awaiting finalization: the derived keys and the transcript
	// the Finalize tag must cover.
	secrets    *handshakeSecrets
	suite      crypto.CipherSuite
	transcript []byte
}

func (p *pendingHandshake) destroy() {
	if p.ephemeral != nil {
		p.ephemeral.Destroy()
		p.ephemeral = nil
	}
	if p.secrets != nil {
		p.secrets.zeroize()
		p.secrets = nil
	}
}

// Result is what HandleIncoming produced for one inbound message.
type Result struct {
	// Kind is the kind of the message that was processed.
	Kind message.Kind

	// Reply, if non-nil, must be sent to the peer.
	Reply []byte

	// Data is the decrypted application payload of an envelope.
	Data []byte
}

// New creates a Session in StateIdle.
func New(config Config) (*Session, error) {
	config = config.withDefaults()
	if err := config.validate(); err != nil {
		return nil, err
	}

	s := &Session{
		config: config,
		log:    config.LoggerFactory.NewLogger("ssession"),
		state:  StateIdle,
	}
	s.log.Debugf("session created for %s, proposing %s/%s",
		printable(config.Identity), config.KeyAgreement, config.Cipher)
	return s, nil
}

// unlock releases the lock and then reports queued state transitions.
func (s *Session) unlock() {
	events := s.events
	s.events = nil
	cb := s.config.OnStateChange
	s.mu.Unlock()

	if cb == nil {
		return
	}
	for _, e := range events {
		cb(e.old, e.new)
	}
}

// setState transitions the session. Caller holds the lock.
func (s *Session) setState(next State) {
	if s.state == next {
		return
	}
	s.log.Debugf("%s: state %s -> %s", printable(s.config.Identity), s.state, next)
	s.events = append(s.events, stateEvent{old: s.state, new: next})
	s.state = next
}

// releaseKeys zeroizes every piece of session and handshake key material.
// Caller holds the lock.
func (s *Session) releaseKeys() {
	if s.pending != nil {
		s.pending.destroy()
		s.pending = nil
	}
	if s.secure != nil {
		s.secure.zeroize()
		s.secure = nil
	}
	for _, d := range s.inbox {
		crypto.Zeroize(d)
	}
	s.inbox = nil
}

// fail releases key material and moves to StateFailed. It returns err so
// call sites can write `return s.fail(err)`. Caller holds the lock.
func (s *Session) fail(err error) error {
	s.log.Warnf("%s: session failed: %v", printable(s.config.Identity), err)
	s.releaseKeys()
	s.setState(StateFailed)
	return err
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Role returns the role played in the most recent handshake.
func (s *Session) Role() Role {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.role
}

// Identity returns the local identity.
func (s *Session) Identity() []byte {
	return append([]byte(nil), s.config.Identity...)
}

// PeerIdentity returns the authenticated peer identity, or nil before the
// first handshake message has been verified.
func (s *Session) PeerIdentity() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.peerIdentity...)
}

// Rekeying reports whether a rekey handshake is in flight on an
// Established session.
func (s *Session) Rekeying() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateEstablished && s.pending != nil
}

// Keys returns a copy of the directional session keys, for tests and
// debugging. The caller owns the copy and should Zeroize it when done.
// Returns ErrInvalidState unless Established.
func (s *Session) Keys() (SessionKeys, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateEstablished || s.secure == nil {
		return SessionKeys{}, fmt.Errorf("%w: keys requested in %s", ErrInvalidState, s.state)
	}
	return s.secure.keys, nil
}

// Destroy zeroizes all key material, including the long-term signer, and
// moves the session to StateClosed. Destroying a closed session returns
// ErrInvalidState.
func (s *Session) Destroy() error {
	s.mu.Lock()
	defer s.unlock()

	if s.state == StateClosed {
		return fmt.Errorf("%w: session already closed", ErrInvalidState)
	}
	s.releaseKeys()
	s.config.Signer.Zeroize()
	s.setState(StateClosed)
	s.log.Infof("%s: session destroyed", printable(s.config.Identity))
	return nil
}

// checkPeer verifies id against the configured peer and, once known, the
// authenticated peer. Caller holds the lock.
func (s *Session) checkPeer(id []byte) error {
	if s.config.PeerIdentity != nil && !bytes.Equal(id, s.config.PeerIdentity) {
		return fmt.Errorf("%w: %s is not the configured peer", ErrPeerNotFound, printable(id))
	}
	if s.peerIdentity != nil && !bytes.Equal(id, s.peerIdentity) {
		return fmt.Errorf("%w: %s is not the session peer %s", ErrInvalidState, printable(id), printable(s.peerIdentity))
	}
	return nil
}

// resolvePeer asks the Transport for id's key and re-validates the answer.
func (s *Session) resolvePeer(id []byte) (crypto.PublicKey, error) {
	raw, err := s.config.Transport.ResolvePublicKey(id)
	if err != nil {
		return crypto.PublicKey{}, fmt.Errorf("%w: %s: %v", ErrPeerNotFound, printable(id), err)
	}
	if len(raw) == 0 {
		return crypto.PublicKey{}, fmt.Errorf("%w: %s has no key", ErrPeerNotFound, printable(id))
	}
	pub, err := crypto.ParsePublicKey(raw)
	if err != nil {
		return crypto.PublicKey{}, fmt.Errorf("%w: key for %s: %w", ErrCryptoFailure, printable(id), err)
	}
	return pub, nil
}

// printable renders an identity for logs, truncated to 32 bytes.
func printable(id []byte) string {
	const limit = 32
	if len(id) > limit {
		return fmt.Sprintf("%q...", id[:limit])
	}
	return fmt.Sprintf("%q", id)
}
