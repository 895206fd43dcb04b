package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// AEAD parameters shared by every supported suite.
const (
	// SymmetricKeySize is the session key length in bytes.
	SymmetricKeySize = 32

	// AEADNonceSize is the nonce length in bytes.
	AEADNonceSize = 12

	// AEADTagSize is the authentication tag length in bytes.
	AEADTagSize = 16
)

// CipherSuite identifies the AEAD protecting session payloads.
type CipherSuite uint8

// Supported cipher suites. Values are wire identifiers.
const (
	CipherAES256GCM        CipherSuite = 1
	CipherChaCha20Poly1305 CipherSuite = 2
)

// String returns the suite name.
func (c CipherSuite) String() string {
	switch c {
	case CipherAES256GCM:
		return "aes-256-gcm"
	case CipherChaCha20Poly1305:
		return "chacha20-poly1305"
	default:
		return fmt.Sprintf("CipherSuite(%d)", uint8(c))
	}
}

// Valid reports whether c is a supported suite.
func (c CipherSuite) Valid() bool {
	return c == CipherAES256GCM || c == CipherChaCha20Poly1305
}

// ParseCipherSuite maps a name produced by String back to its value.
func ParseCipherSuite(name string) (CipherSuite, error) {
	for _, c := range []CipherSuite{CipherAES256GCM, CipherChaCha20Poly1305} {
		if c.String() == name {
			return c, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, name)
}

// NewAEAD returns the AEAD for suite keyed with a 32-byte key.
func NewAEAD(suite CipherSuite, key []byte) (cipher.AEAD, error) {
	if len(key) != SymmetricKeySize {
		return nil, fmt.Errorf("%w: need %d bytes, got %d", ErrInvalidKeySize, SymmetricKeySize, len(key))
	}
	switch suite {
	case CipherAES256GCM:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, err
		}
		return cipher.NewGCM(block)
	case CipherChaCha20Poly1305:
		return chacha20poly1305.New(key)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownAlgorithm, suite)
	}
}
