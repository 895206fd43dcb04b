package message

import (
	"encoding/binary"
	"fmt"

	"github.com/backkem/ssession/pkg/container"
	"github.com/backkem/ssession/pkg/crypto"
)

// Handshake flag bits.
const (
	// FlagKeyConfirmation requests a Finalize message before the responder
	// considers the session established.
	FlagKeyConfirmation uint8 = 0x01
)

// Domain labels prepended to the signed data.
const (
	requestSignLabel  = "ssession connect request v1"
	responseSignLabel = "ssession connect response v1"
)

// Handshake is a connect request or connect response. Both share one layout:
//
//	version (u16) | key agreement (u8) | cipher (u8) | flags (u8) |
//	identity (u16 len) | ephemeral (u32 len) | signature (u16 len)
//
// In a request Ephemeral is the initiator's key agreement value. In a response
// it is the responder's reply (a public key, or a KEM ciphertext).
type Handshake struct {
	Kind         Kind
	Version      uint16
	KeyAgreement crypto.KeyAgreementAlgorithm
	Cipher       crypto.CipherSuite
	Flags        uint8
	Identity     []byte
	Ephemeral    []byte
	Signature    []byte
}

// KeyConfirmation reports whether FlagKeyConfirmation is set.
func (h *Handshake) KeyConfirmation() bool {
	return h.Flags&FlagKeyConfirmation != 0
}

// SignedData returns the bytes covered by the handshake signature. For a
// response, request must be the connect request being answered so that the
// signature binds both ephemeral values. For a request, pass nil.
func (h *Handshake) SignedData(request *Handshake) []byte {
	label := requestSignLabel
	if h.Kind == KindConnectResponse {
		label = responseSignLabel
	}

	buf := make([]byte, 0, len(label)+5+6+len(h.Identity)+len(h.Ephemeral)+64)
	buf = append(buf, label...)
	buf = h.appendFields(buf)
	if h.Kind == KindConnectResponse && request != nil {
		buf = appendBytes32(buf, request.Identity)
		buf = appendBytes32(buf, request.Ephemeral)
	}
	return buf
}

func (h *Handshake) appendFields(buf []byte) []byte {
	buf = binary.BigEndian.AppendUint16(buf, h.Version)
	buf = append(buf, byte(h.KeyAgreement), byte(h.Cipher), h.Flags)
	buf = appendBytes32(buf, h.Identity)
	buf = appendBytes32(buf, h.Ephemeral)
	return buf
}

// Encode serializes the handshake into a signed container.
func (h *Handshake) Encode() ([]byte, error) {
	if h.Kind != KindConnectRequest && h.Kind != KindConnectResponse {
		return nil, fmt.Errorf("%w: %s is not a handshake", ErrUnknownTag, h.Kind)
	}
	if len(h.Identity) == 0 {
		return nil, ErrEmptyIdentity
	}

	body := make([]byte, 0, 5+2+len(h.Identity)+4+len(h.Ephemeral)+2+len(h.Signature))
	body = binary.BigEndian.AppendUint16(body, h.Version)
	body = append(body, byte(h.KeyAgreement), byte(h.Cipher), h.Flags)

	var err error
	if body, err = appendBytes16(body, h.Identity); err != nil {
		return nil, err
	}
	body = appendBytes32(body, h.Ephemeral)
	if body, err = appendBytes16(body, h.Signature); err != nil {
		return nil, err
	}

	return container.Encode(h.Kind.Tag(), body)
}

// DecodeHandshake parses a handshake body. kind selects request or response.
//
// Only structure is checked here. The version is reported through
// ErrUnsupportedVersion so callers can tell it apart from corruption.
func DecodeHandshake(kind Kind, body []byte) (*Handshake, error) {
	if kind != KindConnectRequest && kind != KindConnectResponse {
		return nil, fmt.Errorf("%w: %s is not a handshake", ErrUnknownTag, kind)
	}

	r := &reader{buf: body}
	h := &Handshake{Kind: kind}
	h.Version = r.u16()
	h.KeyAgreement = crypto.KeyAgreementAlgorithm(r.u8())
	h.Cipher = crypto.CipherSuite(r.u8())
	h.Flags = r.u8()
	h.Identity = r.bytes16()
	h.Ephemeral = r.bytes32()
	h.Signature = r.bytes16()
	if err := r.finish(); err != nil {
		return nil, err
	}

	if h.Version != ProtocolVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, h.Version)
	}
	if len(h.Identity) == 0 {
		return nil, ErrEmptyIdentity
	}
	return h, nil
}
