package crypto

import (
	"fmt"
	"io"
)

// KeyAgreementAlgorithm identifies the ephemeral key exchange used by a handshake.
type KeyAgreementAlgorithm uint8

// Supported key agreement algorithms. Values are wire identifiers.
const (
	KeyAgreementP256     KeyAgreementAlgorithm = 1
	KeyAgreementX25519   KeyAgreementAlgorithm = 2
	KeyAgreementMLKEM768 KeyAgreementAlgorithm = 3
)

// String returns the algorithm name.
func (a KeyAgreementAlgorithm) String() string {
	switch a {
	case KeyAgreementP256:
		return "p256"
	case KeyAgreementX25519:
		return "x25519"
	case KeyAgreementMLKEM768:
		return "ml-kem-768"
	default:
		return fmt.Sprintf("KeyAgreementAlgorithm(%d)", uint8(a))
	}
}

// Valid reports whether a is a supported algorithm.
func (a KeyAgreementAlgorithm) Valid() bool {
	return a >= KeyAgreementP256 && a <= KeyAgreementMLKEM768
}

// ParseKeyAgreementAlgorithm maps a name produced by String back to its value.
func ParseKeyAgreementAlgorithm(name string) (KeyAgreementAlgorithm, error) {
	for a := KeyAgreementP256; a <= KeyAgreementMLKEM768; a++ {
		if a.String() == name {
			return a, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, name)
}

// EphemeralKey is the initiator half of a key agreement. It is used for
// exactly one handshake and then destroyed.
type EphemeralKey interface {
	Algorithm() KeyAgreementAlgorithm

	// PublicKey returns the value sent to the responder.
	PublicKey() []byte

	// SharedSecret combines the responder's reply (a public key for DH
	// algorithms, a ciphertext for KEMs) with the private half.
	SharedSecret(peer []byte) ([]byte, error)

	// Destroy drops the private half. Implementations zeroize it where the
	// underlying library exposes the bytes (X25519); otherwise only the
	// reference is released.
	Destroy()
}

// GenerateEphemeral creates an initiator ephemeral key. A nil rand uses crypto/rand.
func GenerateEphemeral(alg KeyAgreementAlgorithm, rand io.Reader) (EphemeralKey, error) {
	switch alg {
	case KeyAgreementP256:
		priv, err := p256GenerateECDH(rand)
		if err != nil {
			return nil, err
		}
		return &p256Ephemeral{priv: priv}, nil
	case KeyAgreementX25519:
		return newX25519Ephemeral(rand)
	case KeyAgreementMLKEM768:
		return newMLKEMEphemeral(rand)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownAlgorithm, alg)
	}
}

// Respond computes the responder half against the initiator's ephemeral value.
// It returns the bytes to send back and the shared secret.
func Respond(alg KeyAgreementAlgorithm, initiatorPub []byte, rand io.Reader) (reply, secret []byte, err error) {
	switch alg {
	case KeyAgreementP256:
		return p256Respond(initiatorPub, rand)
	case KeyAgreementX25519:
		return x25519Respond(initiatorPub, rand)
	case KeyAgreementMLKEM768:
		return mlkemRespond(initiatorPub, rand)
	default:
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownAlgorithm, alg)
	}
}
