package session

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/backkem/ssession/pkg/container"
	"github.com/backkem/ssession/pkg/crypto"
	"github.com/backkem/ssession/pkg/message"
)

// snapshotVersion is the layout version of a saved session.
const snapshotVersion uint16 = 1

// Save serializes an Established session so it can be resumed with Restore.
//
// Layout, inside a TSSC container:
//
//	version (u16) | role (u8) | cipher (u8) | peer identity (u16 len) |
//	I2R key (32) | R2I key (32) | next send sequence (u32) | last received sequence (u32)
//
// The snapshot holds live session keys in the clear. The caller is
// responsible for protecting it at rest.
func (s *Session) Save() ([]byte, error) {
	s.mu.Lock()
	defer s.unlock()

	if s.state != StateEstablished || s.secure == nil {
		return nil, fmt.Errorf("%w: save in %s", ErrInvalidState, s.state)
	}
	if s.pending != nil {
		return nil, fmt.Errorf("%w: save during rekey", ErrInvalidState)
	}

	body := make([]byte, 0, 2+2+2+len(s.peerIdentity)+2*sessionKeyLength+8)
	body = binary.BigEndian.AppendUint16(body, snapshotVersion)
	body = append(body, byte(s.secure.role), byte(s.secure.suite))
	body = binary.BigEndian.AppendUint16(body, uint16(len(s.peerIdentity)))
	body = append(body, s.peerIdentity...)
	body = append(body, s.secure.keys.I2RKey[:]...)
	body = append(body, s.secure.keys.R2IKey[:]...)
	body = binary.BigEndian.AppendUint32(body, s.secure.sendCounter.Peek())
	body = binary.BigEndian.AppendUint32(body, s.secure.recvState.Last())

	out, err := container.Encode(message.TagSavedSession, body)
	crypto.Zeroize(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidParameter, err)
	}
	s.log.Debugf("%s: session saved", printable(s.config.Identity))
	return out, nil
}

// Restore creates an Established session from a Save snapshot. config must
// carry the same local identity and signer; if PeerIdentity is set it must
// match the saved peer.
func Restore(config Config, snapshot []byte) (*Session, error) {
	s, err := New(config)
	if err != nil {
		return nil, err
	}

	tag, body, err := openContainer(snapshot)
	if err != nil {
		return nil, err
	}
	if message.KindOf(tag) != message.KindSavedSession {
		return nil, fmt.Errorf("%w: %q is not a saved session", ErrInvalidParameter, tag.String())
	}

	const fixed = 2 + 1 + 1 + 2
	if len(body) < fixed {
		return nil, fmt.Errorf("%w: snapshot is %d bytes", ErrMalformed, len(body))
	}
	if v := binary.BigEndian.Uint16(body[0:2]); v != snapshotVersion {
		return nil, fmt.Errorf("%w: snapshot version %d", ErrInvalidParameter, v)
	}
	role := Role(body[2])
	suite := crypto.CipherSuite(body[3])
	idLen := int(binary.BigEndian.Uint16(body[4:6]))
	if len(body) != fixed+idLen+2*sessionKeyLength+8 {
		return nil, fmt.Errorf("%w: snapshot is %d bytes, want %d", ErrMalformed, len(body), fixed+idLen+2*sessionKeyLength+8)
	}
	if !role.IsValid() || !suite.Valid() || idLen == 0 {
		return nil, fmt.Errorf("%w: snapshot role %s, cipher %s", ErrInvalidParameter, role, suite)
	}

	off := fixed
	peer := append([]byte(nil), body[off:off+idLen]...)
	off += idLen
	if s.config.PeerIdentity != nil && !bytes.Equal(peer, s.config.PeerIdentity) {
		return nil, fmt.Errorf("%w: snapshot peer %s is not the configured peer", ErrInvalidParameter, printable(peer))
	}

	var keys SessionKeys
	copy(keys.I2RKey[:], body[off:off+sessionKeyLength])
	off += sessionKeyLength
	copy(keys.R2IKey[:], body[off:off+sessionKeyLength])
	off += sessionKeyLength
	nextSend := binary.BigEndian.Uint32(body[off : off+4])
	lastRecv := binary.BigEndian.Uint32(body[off+4 : off+8])

	ctx, err := newSecureContext(role, suite, &keys, nextSend, lastRecv)
	keys.Zeroize()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.secure = ctx
	s.role = role
	s.peerIdentity = peer
	s.setState(StateEstablished)
	s.unlock()

	s.log.Infof("%s: session with %s restored as %s", printable(s.config.Identity), printable(peer), role)
	return s, nil
}
