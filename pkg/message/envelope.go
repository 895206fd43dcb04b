package message

import (
	"encoding/binary"
	"fmt"

	"github.com/backkem/ssession/pkg/container"
	"github.com/backkem/ssession/pkg/crypto"
)

// EnvelopeHeaderSize is the sequence and length prefix of an envelope body.
const EnvelopeHeaderSize = 8

// Envelope is one framed application message:
//
//	sequence (u32) | length (u32) | ciphertext (length bytes) | tag (16 bytes)
type Envelope struct {
	Sequence   uint32
	Ciphertext []byte
	Tag        [crypto.AEADTagSize]byte
}

// AAD returns the associated data authenticated with the ciphertext. It binds
// the envelope tag, the sequence number and the ciphertext length.
func AAD(sequence uint32, length int) []byte {
	aad := make([]byte, 0, 4+EnvelopeHeaderSize)
	aad = append(aad, TagEnvelope[:]...)
	aad = binary.BigEndian.AppendUint32(aad, sequence)
	aad = binary.BigEndian.AppendUint32(aad, uint32(length))
	return aad
}

// Nonce returns the AEAD nonce for sequence: four zero bytes followed by the
// sequence as a big-endian u64. Sequences never repeat under one key.
func Nonce(sequence uint32) []byte {
	nonce := make([]byte, crypto.AEADNonceSize)
	binary.BigEndian.PutUint64(nonce[4:], uint64(sequence))
	return nonce
}

// Encode serializes the envelope into a signed container.
func (e *Envelope) Encode() ([]byte, error) {
	body := make([]byte, 0, EnvelopeHeaderSize+len(e.Ciphertext)+crypto.AEADTagSize)
	body = binary.BigEndian.AppendUint32(body, e.Sequence)
	body = binary.BigEndian.AppendUint32(body, uint32(len(e.Ciphertext)))
	body = append(body, e.Ciphertext...)
	body = append(body, e.Tag[:]...)
	return container.Encode(TagEnvelope, body)
}

// DecodeEnvelope parses an envelope body. The length field must describe the
// ciphertext exactly.
func DecodeEnvelope(body []byte) (*Envelope, error) {
	if len(body) < EnvelopeHeaderSize+crypto.AEADTagSize {
		return nil, fmt.Errorf("%w: envelope body is %d bytes", ErrTooShort, len(body))
	}
	length := binary.BigEndian.Uint32(body[4:8])
	actual := len(body) - EnvelopeHeaderSize - crypto.AEADTagSize
	if uint64(length) != uint64(actual) {
		return nil, fmt.Errorf("%w: length says %d, ciphertext is %d", ErrLengthMismatch, length, actual)
	}

	e := &Envelope{
		Sequence:   binary.BigEndian.Uint32(body[0:4]),
		Ciphertext: clone(body[EnvelopeHeaderSize : EnvelopeHeaderSize+actual]),
	}
	copy(e.Tag[:], body[EnvelopeHeaderSize+actual:])
	return e, nil
}
