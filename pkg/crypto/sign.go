package crypto

import (
	"crypto/rand"
	"fmt"
	"io"
)

// SignatureAlgorithm identifies a long-term identity key type.
type SignatureAlgorithm uint8

// Supported signature algorithms. Values are wire identifiers.
const (
	SignatureECDSAP256 SignatureAlgorithm = 1
	SignatureEd25519   SignatureAlgorithm = 2
	SignatureMLDSA65   SignatureAlgorithm = 3
)

// String returns the algorithm name.
func (a SignatureAlgorithm) String() string {
	switch a {
	case SignatureECDSAP256:
		return "ecdsa-p256"
	case SignatureEd25519:
		return "ed25519"
	case SignatureMLDSA65:
		return "ml-dsa-65"
	default:
		return fmt.Sprintf("SignatureAlgorithm(%d)", uint8(a))
	}
}

// ParseSignatureAlgorithm maps a name produced by String back to its value.
func ParseSignatureAlgorithm(name string) (SignatureAlgorithm, error) {
	for _, a := range []SignatureAlgorithm{SignatureECDSAP256, SignatureEd25519, SignatureMLDSA65} {
		if a.String() == name {
			return a, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, name)
}

// Signer is a long-term identity key able to sign handshake transcripts.
type Signer interface {
	Algorithm() SignatureAlgorithm
	PublicKey() PublicKey
	Sign(message []byte) ([]byte, error)

	// MarshalPrivate returns the private key in the algorithm's native encoding.
	MarshalPrivate() ([]byte, error)

	// Zeroize clears private material. The signer is unusable afterwards.
	Zeroize()
}

// PublicKey is an algorithm-tagged long-term public key.
type PublicKey struct {
	Algorithm SignatureAlgorithm
	Key       []byte
}

// Marshal encodes the key as algorithm (1 byte) || key bytes.
func (p PublicKey) Marshal() []byte {
	out := make([]byte, 1+len(p.Key))
	out[0] = byte(p.Algorithm)
	copy(out[1:], p.Key)
	return out
}

// Validate checks the key bytes against the algorithm's structural rules.
func (p PublicKey) Validate() error {
	switch p.Algorithm {
	case SignatureECDSAP256:
		return P256ValidatePublicKey(p.Key)
	case SignatureEd25519, SignatureMLDSA65:
		if len(p.Key) != publicKeySize(p.Algorithm) {
			return fmt.Errorf("%w: %s public key must be %d bytes, got %d",
				ErrInvalidPublicKey, p.Algorithm, publicKeySize(p.Algorithm), len(p.Key))
		}
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnknownAlgorithm, p.Algorithm)
	}
}

// ParsePublicKey decodes the output of PublicKey.Marshal and validates it.
func ParsePublicKey(b []byte) (PublicKey, error) {
	if len(b) < 2 {
		return PublicKey{}, fmt.Errorf("%w: encoded key too short", ErrInvalidPublicKey)
	}
	pub := PublicKey{
		Algorithm: SignatureAlgorithm(b[0]),
		Key:       append([]byte(nil), b[1:]...),
	}
	if err := pub.Validate(); err != nil {
		return PublicKey{}, err
	}
	return pub, nil
}

// Verify checks signature over message with pub.
//
// A false result with nil error is an authentication failure. A non-nil error
// means the key or signature could not be interpreted at all.
func Verify(pub PublicKey, message, signature []byte) (bool, error) {
	switch pub.Algorithm {
	case SignatureECDSAP256:
		return p256Verify(pub.Key, message, signature)
	case SignatureEd25519:
		return ed25519Verify(pub.Key, message, signature)
	case SignatureMLDSA65:
		return mldsa65Verify(pub.Key, message, signature)
	default:
		return false, fmt.Errorf("%w: %s", ErrUnknownAlgorithm, pub.Algorithm)
	}
}

// GenerateSigner creates a fresh identity key of the given algorithm.
// A nil rand uses crypto/rand.
func GenerateSigner(alg SignatureAlgorithm, rand io.Reader) (Signer, error) {
	switch alg {
	case SignatureECDSAP256:
		return P256GenerateKeyPair(rand)
	case SignatureEd25519:
		return Ed25519GenerateKeyPair(rand)
	case SignatureMLDSA65:
		return MLDSA65GenerateKeyPair(rand)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownAlgorithm, alg)
	}
}

// ParseSigner restores an identity key from MarshalPrivate output.
func ParseSigner(alg SignatureAlgorithm, private []byte) (Signer, error) {
	switch alg {
	case SignatureECDSAP256:
		return P256KeyPairFromPrivateKey(private, nil)
	case SignatureEd25519:
		return Ed25519KeyPairFromSeed(private)
	case SignatureMLDSA65:
		return MLDSA65KeyPairFromPrivateKey(private)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownAlgorithm, alg)
	}
}

func randOrDefault(r io.Reader) io.Reader {
	if r == nil {
		return rand.Reader
	}
	return r
}
