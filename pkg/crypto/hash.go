// Package crypto adapts the primitive library consumed by the secure session:
// hashing, HMAC, key derivation, long-term signatures, ephemeral key agreement
// and AEAD ciphers. Nothing in here keeps state across calls except the key
// objects it hands out.
package crypto

import (
	"crypto/sha256"
	"hash"
)

// SHA-256 sizes.
const (
	// SHA256LenBits is the SHA-256 output length in bits.
	SHA256LenBits = 256

	// SHA256LenBytes is the SHA-256 output length in bytes.
	SHA256LenBytes = 32
)

// SHA256 computes the SHA-256 hash of a message.
func SHA256(message []byte) [SHA256LenBytes]byte {
	return sha256.Sum256(message)
}

// SHA256Slice computes the SHA-256 hash and returns it as a slice.
func SHA256Slice(message []byte) []byte {
	h := sha256.Sum256(message)
	return h[:]
}

// NewSHA256 returns a new hash.Hash for computing SHA-256 digests incrementally.
//
// Usage:
//
//	h := crypto.NewSHA256()
//	h.Write(request)
//	h.Write(response)
//	transcript := h.Sum(nil)
func NewSHA256() hash.Hash {
	return sha256.New()
}
