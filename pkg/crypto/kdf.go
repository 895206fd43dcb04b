package crypto

import (
	"crypto/sha256"
	"encoding/binary"
	"io"

	"golang.org/x/crypto/hkdf"
)

// MaxDeriveLength is the largest output Derive will produce (255 * HashLen).
const MaxDeriveLength = 255 * SHA256LenBytes

// HKDFSHA256 derives key material using HKDF-SHA256 (RFC 5869).
//
// Parameters:
//   - inputKey: Input keying material (IKM)
//   - salt: Optional salt value (can be nil or empty)
//   - info: Optional context/application-specific info (can be nil or empty)
//   - length: Number of bytes to derive
//
// Returns the derived key material of the specified length.
func HKDFSHA256(inputKey, salt, info []byte, length int) ([]byte, error) {
	reader := hkdf.New(sha256.New, inputKey, salt, info)
	result := make([]byte, length)
	if _, err := io.ReadFull(reader, result); err != nil {
		return nil, err
	}
	return result, nil
}

// Derive produces length bytes of domain-separated key material from secret.
//
// The label and every context buffer are folded into the HKDF info string:
//
//	info = label || 0x00 || len(ctx[0]) (u32 BE) || ctx[0] || ... || len(ctx[n]) || ctx[n]
//
// Each buffer carries its own length, so no two distinct (label, context)
// sequences can produce the same info. Identical inputs always yield identical
// output.
func Derive(secret []byte, label string, length int, context ...[]byte) ([]byte, error) {
	if label == "" {
		return nil, ErrEmptyLabel
	}
	if length <= 0 || length > MaxDeriveLength {
		return nil, ErrInvalidLength
	}

	size := len(label) + 1
	for _, c := range context {
		size += 4 + len(c)
	}
	info := make([]byte, 0, size)
	info = append(info, label...)
	info = append(info, 0x00)
	for _, c := range context {
		info = binary.BigEndian.AppendUint32(info, uint32(len(c)))
		info = append(info, c...)
	}

	return HKDFSHA256(secret, nil, info, length)
}
