package session

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/backkem/ssession/pkg/container"
	"github.com/backkem/ssession/pkg/crypto"
	"github.com/backkem/ssession/pkg/message"
)

// ConnectRequest starts a handshake as initiator and returns the connect
// request to deliver to the peer. Valid only in StateIdle.
func (s *Session) ConnectRequest() ([]byte, error) {
	s.mu.Lock()
	defer s.unlock()

	if s.state != StateIdle {
		return nil, fmt.Errorf("%w: connect in %s", ErrInvalidState, s.state)
	}

	data, p, err := s.buildRequest()
	if err != nil {
		if isFatal(err) {
			return nil, s.fail(err)
		}
		return nil, err
	}

	s.pending = p
	s.role = RoleInitiator
	s.setState(StateAwaitingResponse)
	return data, nil
}

// Connect is ConnectRequest followed by Transport.Send. If the send fails the
// handshake is abandoned, the ephemeral key destroyed, and the session
// returns to StateIdle.
func (s *Session) Connect() error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	data, err := s.ConnectRequest()
	if err != nil {
		return err
	}
	if err := s.config.Transport.Send(data); err != nil {
		s.mu.Lock()
		defer s.unlock()
		if s.state == StateAwaitingResponse && s.pending != nil {
			s.pending.destroy()
			s.pending = nil
			s.role = RoleUnknown
			s.setState(StateIdle)
		}
		return fmt.Errorf("%w: send connect request: %v", ErrTransport, err)
	}
	return nil
}

// RekeyRequest starts a new handshake on an Established session and returns
// the connect request. The current keys stay in use until the new handshake
// completes, at which point they are zeroized and both counters restart.
func (s *Session) RekeyRequest() ([]byte, error) {
	s.mu.Lock()
	defer s.unlock()

	if s.state != StateEstablished {
		return nil, fmt.Errorf("%w: rekey in %s", ErrInvalidState, s.state)
	}
	if s.pending != nil {
		return nil, fmt.Errorf("%w: rekey already in progress", ErrInvalidState)
	}

	data, p, err := s.buildRequest()
	if err != nil {
		return nil, err
	}
	s.pending = p
	s.log.Debugf("%s: rekey started", printable(s.config.Identity))
	return data, nil
}

// Rekey is RekeyRequest followed by Transport.Send. A failed send abandons
// the rekey and leaves the current keys in place.
func (s *Session) Rekey() error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	data, err := s.RekeyRequest()
	if err != nil {
		return err
	}
	if err := s.config.Transport.Send(data); err != nil {
		s.mu.Lock()
		defer s.unlock()
		if s.pending != nil && s.pending.role == RoleInitiator {
			s.pending.destroy()
			s.pending = nil
		}
		return fmt.Errorf("%w: send rekey request: %v", ErrTransport, err)
	}
	return nil
}

// AbortRekey abandons the handshake in flight on an Established session,
// destroying its ephemeral key or its unconfirmed keys. The current keys stay
// in use. Call it when the peer never answers, for instance after the request
// was lost; a late answer is then rejected with ErrInvalidState.
func (s *Session) AbortRekey() error {
	s.mu.Lock()
	defer s.unlock()

	if s.state != StateEstablished || s.pending == nil {
		return fmt.Errorf("%w: no rekey in progress in %s", ErrInvalidState, s.state)
	}
	s.pending.destroy()
	s.pending = nil
	s.log.Infof("%s: rekey aborted", printable(s.config.Identity))
	return nil
}

// HandleIncoming processes one inbound message. Handshake messages advance
// the state machine and may produce a Reply for the peer; envelopes are
// decrypted into Data.
func (s *Session) HandleIncoming(data []byte) (*Result, error) {
	s.mu.Lock()
	defer s.unlock()

	if s.state.IsTerminal() {
		return nil, fmt.Errorf("%w: message in %s", ErrInvalidState, s.state)
	}

	tag, err := container.PeekTag(data)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrMalformed, err)
		if s.state == StateEstablished {
			return nil, s.rejectEnvelope(err)
		}
		return nil, s.fail(err)
	}

	kind := message.KindOf(tag)
	switch kind {
	case message.KindEnvelope:
		plaintext, err := s.unwrapLocked(data)
		if err != nil {
			return nil, err
		}
		return &Result{Kind: kind, Data: plaintext}, nil

	case message.KindConnectRequest:
		reply, err := s.handleConnectRequest(data)
		if err != nil {
			return nil, err
		}
		return &Result{Kind: kind, Reply: reply}, nil

	case message.KindConnectResponse:
		reply, err := s.handleConnectResponse(data)
		if err != nil {
			return nil, err
		}
		return &Result{Kind: kind, Reply: reply}, nil

	case message.KindFinalize:
		if err := s.handleFinalize(data); err != nil {
			return nil, err
		}
		return &Result{Kind: kind}, nil

	default:
		return nil, fmt.Errorf("%w: unexpected message tag %q", ErrInvalidParameter, tag.String())
	}
}

// buildRequest creates a signed connect request and the pending state that
// goes with it. Caller holds the lock.
func (s *Session) buildRequest() ([]byte, *pendingHandshake, error) {
	eph, err := crypto.GenerateEphemeral(s.config.KeyAgreement, s.config.Rand)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: ephemeral key: %w", ErrCryptoFailure, err)
	}

	var flags uint8
	if s.config.KeyConfirmation {
		flags |= message.FlagKeyConfirmation
	}
	req := &message.Handshake{
		Kind:         message.KindConnectRequest,
		Version:      message.ProtocolVersion,
		KeyAgreement: s.config.KeyAgreement,
		Cipher:       s.config.Cipher,
		Flags:        flags,
		Identity:     s.config.Identity,
		Ephemeral:    eph.PublicKey(),
	}

	sig, err := s.config.Signer.Sign(req.SignedData(nil))
	if err != nil {
		eph.Destroy()
		return nil, nil, fmt.Errorf("%w: sign request: %w", ErrCryptoFailure, err)
	}
	req.Signature = sig

	data, err := req.Encode()
	if err != nil {
		eph.Destroy()
		return nil, nil, fmt.Errorf("%w: %w", ErrInvalidParameter, err)
	}

	s.log.Debugf("%s: connect request built (%s/%s, confirm=%v)",
		printable(s.config.Identity), req.KeyAgreement, req.Cipher, req.KeyConfirmation())
	return data, &pendingHandshake{role: RoleInitiator, ephemeral: eph, request: req}, nil
}

// handleConnectRequest answers a connect request as responder. From Idle it
// establishes a new session; from Established it rekeys the existing one. A
// request that loses a rekey collision yields no reply.
func (s *Session) handleConnectRequest(data []byte) ([]byte, error) {
	rekey, collision := false, false
	switch {
	case s.state == StateIdle:
	case s.state == StateEstablished && s.pending == nil:
		rekey = true
	case s.state == StateEstablished && s.pending.role == RoleInitiator:
		rekey, collision = true, true
	default:
		return nil, fmt.Errorf("%w: connect request in %s", ErrInvalidState, s.state)
	}

	req, err := decodeHandshake(data, message.KindConnectRequest)
	if err != nil {
		return nil, s.reject(err)
	}
	if err := s.verifyHandshake(req, req.SignedData(nil)); err != nil {
		return nil, s.reject(err)
	}

	if want, _ := crypto.EphemeralSize(req.KeyAgreement); len(req.Ephemeral) != want {
		return nil, s.reject(fmt.Errorf("%w: %s ephemeral is %d bytes, want %d",
			ErrCryptoFailure, req.KeyAgreement, len(req.Ephemeral), want))
	}

	// Both sides started a rekey. The request with the lower ephemeral wins;
	// the other side drops its own and answers.
	if collision {
		if bytes.Compare(req.Ephemeral, s.pending.request.Ephemeral) >= 0 {
			s.log.Debugf("%s: rekey collision with %s, keeping our request",
				printable(s.config.Identity), printable(req.Identity))
			return nil, nil
		}
		s.log.Debugf("%s: rekey collision with %s, answering theirs",
			printable(s.config.Identity), printable(req.Identity))
		s.pending.destroy()
		s.pending = nil
	}

	reply, secret, err := crypto.Respond(req.KeyAgreement, req.Ephemeral, s.config.Rand)
	if err != nil {
		return nil, s.reject(fmt.Errorf("%w: key agreement: %w", ErrCryptoFailure, err))
	}
	secrets, err := deriveSecrets(secret, derivationContext(req.Ephemeral, reply, req.KeyAgreement, req.Cipher))
	crypto.Zeroize(secret)
	if err != nil {
		return nil, s.reject(fmt.Errorf("%w: derive: %w", ErrCryptoFailure, err))
	}

	flags := req.Flags & message.FlagKeyConfirmation
	if s.config.KeyConfirmation {
		flags |= message.FlagKeyConfirmation
	}
	resp := &message.Handshake{
		Kind:         message.KindConnectResponse,
		Version:      message.ProtocolVersion,
		KeyAgreement: req.KeyAgreement,
		Cipher:       req.Cipher,
		Flags:        flags,
		Identity:     s.config.Identity,
		Ephemeral:    reply,
	}
	sig, err := s.config.Signer.Sign(resp.SignedData(req))
	if err != nil {
		secrets.zeroize()
		return nil, s.reject(fmt.Errorf("%w: sign response: %w", ErrCryptoFailure, err))
	}
	resp.Signature = sig
	out, err := resp.Encode()
	if err != nil {
		secrets.zeroize()
		return nil, fmt.Errorf("%w: %w", ErrInvalidParameter, err)
	}

	s.peerIdentity = append([]byte(nil), req.Identity...)
	s.log.Debugf("%s: answered connect request from %s (rekey=%v)",
		printable(s.config.Identity), printable(req.Identity), rekey)

	if resp.KeyConfirmation() {
		s.pending = &pendingHandshake{
			role:       RoleResponder,
			secrets:    secrets,
			suite:      req.Cipher,
			transcript: transcriptHash(req, resp),
		}
		if !rekey {
			s.role = RoleResponder
			s.setState(StateAwaitingFinalization)
		}
		return out, nil
	}

	err = s.install(RoleResponder, req.Cipher, &secrets.keys)
	secrets.zeroize()
	if err != nil {
		return nil, s.reject(err)
	}
	return out, nil
}

// handleConnectResponse completes a handshake this session initiated.
func (s *Session) handleConnectResponse(data []byte) ([]byte, error) {
	p := s.pending
	if p == nil || p.role != RoleInitiator {
		return nil, fmt.Errorf("%w: connect response in %s", ErrInvalidState, s.state)
	}
	req := p.request

	resp, err := decodeHandshake(data, message.KindConnectResponse)
	if err != nil {
		return nil, s.reject(err)
	}
	if resp.KeyAgreement != req.KeyAgreement || resp.Cipher != req.Cipher ||
		(req.KeyConfirmation() && !resp.KeyConfirmation()) {
		return nil, s.reject(fmt.Errorf("%w: response changed the negotiated parameters", ErrAuthenticationFailed))
	}
	if err := s.verifyHandshake(resp, resp.SignedData(req)); err != nil {
		return nil, s.reject(err)
	}

	secret, err := p.ephemeral.SharedSecret(resp.Ephemeral)
	p.ephemeral.Destroy()
	p.ephemeral = nil
	if err != nil {
		return nil, s.reject(fmt.Errorf("%w: key agreement: %w", ErrCryptoFailure, err))
	}
	secrets, err := deriveSecrets(secret, derivationContext(req.Ephemeral, resp.Ephemeral, req.KeyAgreement, req.Cipher))
	crypto.Zeroize(secret)
	if err != nil {
		return nil, s.reject(fmt.Errorf("%w: derive: %w", ErrCryptoFailure, err))
	}
	defer secrets.zeroize()

	var reply []byte
	if resp.KeyConfirmation() {
		fin := &message.Finalize{MAC: finalizeMAC(secrets.confirmKey[:], transcriptHash(req, resp))}
		if reply, err = fin.Encode(); err != nil {
			return nil, s.reject(fmt.Errorf("%w: %w", ErrCryptoFailure, err))
		}
	}

	s.peerIdentity = append([]byte(nil), resp.Identity...)
	if err := s.install(RoleInitiator, req.Cipher, &secrets.keys); err != nil {
		return nil, s.reject(err)
	}
	return reply, nil
}

// handleFinalize checks the initiator's key confirmation tag.
func (s *Session) handleFinalize(data []byte) error {
	p := s.pending
	if p == nil || p.role != RoleResponder || p.secrets == nil {
		return fmt.Errorf("%w: finalize in %s", ErrInvalidState, s.state)
	}

	_, body, err := openContainer(data)
	if err != nil {
		return s.reject(err)
	}
	fin, err := message.DecodeFinalize(body)
	if err != nil {
		return s.reject(fmt.Errorf("%w: %w", ErrMalformed, err))
	}

	want := finalizeMAC(p.secrets.confirmKey[:], p.transcript)
	if !crypto.HMACEqual(fin.MAC[:], want[:]) {
		return s.reject(fmt.Errorf("%w: key confirmation mismatch", ErrAuthenticationFailed))
	}
	return s.install(RoleResponder, p.suite, &p.secrets.keys)
}

// verifyHandshake authenticates a decoded handshake message against the
// sender's resolved long-term key.
func (s *Session) verifyHandshake(h *message.Handshake, signed []byte) error {
	if err := s.checkPeer(h.Identity); err != nil {
		return err
	}
	pub, err := s.resolvePeer(h.Identity)
	if err != nil {
		return err
	}
	ok, err := crypto.Verify(pub, signed, h.Signature)
	if err != nil {
		return fmt.Errorf("%w: signature from %s: %w", ErrCryptoFailure, printable(h.Identity), err)
	}
	if !ok {
		return fmt.Errorf("%w: bad %s signature from %s", ErrAuthenticationFailed, h.Kind, printable(h.Identity))
	}
	return nil
}

// install activates freshly derived keys and moves to StateEstablished. keys
// is copied. A previous pair loses its sealing key at once and its opening
// key as soon as the peer is heard under the new one.
func (s *Session) install(role Role, suite crypto.CipherSuite, keys *SessionKeys) error {
	ctx, err := newSecureContext(role, suite, keys, 1, 0)
	if err != nil {
		return err
	}

	rekeyed := s.secure != nil
	if rekeyed {
		ctx.retire(s.secure)
	}
	s.secure = ctx
	s.role = role
	if s.pending != nil {
		s.pending.destroy()
		s.pending = nil
	}
	s.setState(StateEstablished)

	if rekeyed {
		s.log.Infof("%s: session with %s rekeyed as %s", printable(s.config.Identity), printable(s.peerIdentity), role)
	} else {
		s.log.Infof("%s: session established with %s as %s (%s)",
			printable(s.config.Identity), printable(s.peerIdentity), role, suite)
	}
	return nil
}

// reject applies the failure rules to a handshake error. Non-fatal errors
// (InvalidParameter, InvalidState, PeerNotFound) leave the session as it
// was. Fatal errors fail the session, except on an Established session where
// only the in-flight rekey is abandoned unless FailurePolicy says teardown.
func (s *Session) reject(err error) error {
	if !isFatal(err) {
		s.log.Debugf("%s: handshake message rejected: %v", printable(s.config.Identity), err)
		return err
	}
	if s.state == StateEstablished && s.config.FailurePolicy == FailurePolicyPerMessage {
		s.log.Warnf("%s: rekey abandoned: %v", printable(s.config.Identity), err)
		if s.pending != nil {
			s.pending.destroy()
			s.pending = nil
		}
		return err
	}
	return s.fail(err)
}

// isFatal reports whether a handshake error must end the handshake.
func isFatal(err error) bool {
	return errors.Is(err, ErrAuthenticationFailed) ||
		errors.Is(err, ErrDataCorrupt) ||
		errors.Is(err, ErrCryptoFailure)
}

// openContainer verifies the outer container, mapping its errors onto the taxonomy.
func openContainer(data []byte) (container.Tag, []byte, error) {
	tag, body, err := container.Decode(data)
	if err != nil {
		if errors.Is(err, container.ErrChecksum) {
			return tag, nil, fmt.Errorf("%w: %w", ErrDataCorrupt, err)
		}
		return tag, nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return tag, body, nil
}

// decodeHandshake opens and parses a connect request or response.
func decodeHandshake(data []byte, kind message.Kind) (*message.Handshake, error) {
	_, body, err := openContainer(data)
	if err != nil {
		return nil, err
	}
	h, err := message.DecodeHandshake(kind, body)
	if err != nil {
		if errors.Is(err, message.ErrUnsupportedVersion) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidParameter, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if !h.KeyAgreement.Valid() {
		return nil, fmt.Errorf("%w: key agreement %s", ErrInvalidParameter, h.KeyAgreement)
	}
	if !h.Cipher.Valid() {
		return nil, fmt.Errorf("%w: cipher %s", ErrInvalidParameter, h.Cipher)
	}
	return h, nil
}
