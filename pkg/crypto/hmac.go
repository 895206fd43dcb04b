package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"hash"
)

// HMACSHA256 computes the HMAC-SHA256 of the concatenation of parts under key.
//
// Returns a 32-byte MAC.
func HMACSHA256(key []byte, parts ...[]byte) [SHA256LenBytes]byte {
	h := hmac.New(sha256.New, key)
	for _, p := range parts {
		h.Write(p)
	}
	var result [SHA256LenBytes]byte
	copy(result[:], h.Sum(nil))
	return result
}

// NewHMACSHA256 returns a new hash.Hash for computing HMAC-SHA256 incrementally.
func NewHMACSHA256(key []byte) hash.Hash {
	return hmac.New(sha256.New, key)
}

// HMACEqual compares two MACs for equality in constant time.
// This should be used instead of bytes.Equal to prevent timing attacks.
func HMACEqual(mac1, mac2 []byte) bool {
	return hmac.Equal(mac1, mac2)
}
