package crypto

import "errors"

// Errors returned by the primitive adapter.
var (
	// ErrUnknownAlgorithm is returned for an unsupported algorithm identifier.
	ErrUnknownAlgorithm = errors.New("crypto: unknown algorithm")

	// ErrInvalidPublicKey is returned when a public key fails structural validation.
	ErrInvalidPublicKey = errors.New("crypto: invalid public key")

	// ErrInvalidPrivateKey is returned when a private key fails structural validation.
	ErrInvalidPrivateKey = errors.New("crypto: invalid private key")

	// ErrInvalidSignature is returned when a signature is malformed (not merely wrong).
	ErrInvalidSignature = errors.New("crypto: malformed signature")

	// ErrInvalidKeySize is returned when a symmetric key has the wrong length.
	ErrInvalidKeySize = errors.New("crypto: invalid symmetric key size")

	// ErrKeyDestroyed is returned when an ephemeral key is used after Destroy.
	ErrKeyDestroyed = errors.New("crypto: key already destroyed")

	// ErrEmptyLabel is returned by Derive when no label is given.
	ErrEmptyLabel = errors.New("crypto: derive label must not be empty")

	// ErrInvalidLength is returned by Derive for an out-of-range output length.
	ErrInvalidLength = errors.New("crypto: invalid derive output length")
)
