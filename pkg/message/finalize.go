package message

import (
	"fmt"

	"github.com/backkem/ssession/pkg/container"
	"github.com/backkem/ssession/pkg/crypto"
)

// Finalize carries the initiator's key confirmation tag.
type Finalize struct {
	MAC [crypto.SHA256LenBytes]byte
}

// Encode serializes the finalize message into a signed container.
func (f *Finalize) Encode() ([]byte, error) {
	return container.Encode(TagFinalize, f.MAC[:])
}

// DecodeFinalize parses a finalize body.
func DecodeFinalize(body []byte) (*Finalize, error) {
	if len(body) != crypto.SHA256LenBytes {
		return nil, fmt.Errorf("%w: finalize body is %d bytes, want %d",
			ErrLengthMismatch, len(body), crypto.SHA256LenBytes)
	}
	f := &Finalize{}
	copy(f.MAC[:], body)
	return f, nil
}
