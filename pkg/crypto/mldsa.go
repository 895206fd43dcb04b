package crypto

import (
	"fmt"
	"io"

	"github.com/cloudflare/circl/sign/mldsa/mldsa65"
)

// MLDSA65KeyPair is a long-term ML-DSA-65 (FIPS 204) identity key. It implements Signer.
type MLDSA65KeyPair struct {
	public  *mldsa65.PublicKey
	private *mldsa65.PrivateKey
}

// MLDSA65GenerateKeyPair generates a new ML-DSA-65 key pair from rand.
func MLDSA65GenerateKeyPair(rand io.Reader) (*MLDSA65KeyPair, error) {
	pk, sk, err := mldsa65.GenerateKey(randOrDefault(rand))
	if err != nil {
		return nil, fmt.Errorf("failed to generate ML-DSA-65 key: %w", err)
	}
	return &MLDSA65KeyPair{public: pk, private: sk}, nil
}

// MLDSA65KeyPairFromPrivateKey restores a key pair from its packed private key.
func MLDSA65KeyPairFromPrivateKey(b []byte) (*MLDSA65KeyPair, error) {
	if len(b) != mldsa65.PrivateKeySize {
		return nil, fmt.Errorf("%w: ML-DSA-65 private key must be %d bytes, got %d",
			ErrInvalidPrivateKey, mldsa65.PrivateKeySize, len(b))
	}
	sk := new(mldsa65.PrivateKey)
	if err := sk.UnmarshalBinary(b); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPrivateKey, err)
	}
	pk, ok := sk.Public().(*mldsa65.PublicKey)
	if !ok {
		return nil, ErrInvalidPrivateKey
	}
	return &MLDSA65KeyPair{public: pk, private: sk}, nil
}

// Algorithm implements Signer.
func (kp *MLDSA65KeyPair) Algorithm() SignatureAlgorithm { return SignatureMLDSA65 }

// PublicKey implements Signer. The key bytes are the packed ML-DSA-65 public key.
func (kp *MLDSA65KeyPair) PublicKey() PublicKey {
	b, _ := kp.public.MarshalBinary()
	return PublicKey{Algorithm: SignatureMLDSA65, Key: b}
}

// MarshalPrivate implements Signer. Returns the packed private key.
func (kp *MLDSA65KeyPair) MarshalPrivate() ([]byte, error) {
	if kp.private == nil {
		return nil, ErrKeyDestroyed
	}
	return kp.private.MarshalBinary()
}

// Sign implements Signer. It produces a deterministic ML-DSA-65 signature
// with an empty context.
func (kp *MLDSA65KeyPair) Sign(message []byte) ([]byte, error) {
	if kp.private == nil {
		return nil, ErrKeyDestroyed
	}
	sig := make([]byte, mldsa65.SignatureSize)
	if err := mldsa65.SignTo(kp.private, message, nil, false, sig); err != nil {
		return nil, fmt.Errorf("ML-DSA-65 sign failed: %w", err)
	}
	return sig, nil
}

// Zeroize implements Signer. It drops the private key. circl keeps the
// expanded key in unexported fields, so only the reference can be cleared.
func (kp *MLDSA65KeyPair) Zeroize() {
	kp.private = nil
}

func mldsa65Verify(publicKey, message, signature []byte) (bool, error) {
	if len(publicKey) != mldsa65.PublicKeySize {
		return false, fmt.Errorf("%w: ML-DSA-65 public key must be %d bytes, got %d",
			ErrInvalidPublicKey, mldsa65.PublicKeySize, len(publicKey))
	}
	if len(signature) != mldsa65.SignatureSize {
		return false, fmt.Errorf("%w: ML-DSA-65 signature must be %d bytes, got %d",
			ErrInvalidSignature, mldsa65.SignatureSize, len(signature))
	}
	pk := new(mldsa65.PublicKey)
	if err := pk.UnmarshalBinary(publicKey); err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	return mldsa65.Verify(pk, message, nil, signature), nil
}
