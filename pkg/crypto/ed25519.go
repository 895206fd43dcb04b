package crypto

import (
	"crypto/ed25519"
	"fmt"
	"io"
)

// Ed25519KeyPair is a long-term Ed25519 identity key. It implements Signer.
type Ed25519KeyPair struct {
	private ed25519.PrivateKey
}

// Ed25519GenerateKeyPair generates a new Ed25519 key pair from rand.
func Ed25519GenerateKeyPair(rand io.Reader) (*Ed25519KeyPair, error) {
	_, priv, err := ed25519.GenerateKey(randOrDefault(rand))
	if err != nil {
		return nil, fmt.Errorf("failed to generate Ed25519 key: %w", err)
	}
	return &Ed25519KeyPair{private: priv}, nil
}

// Ed25519KeyPairFromSeed restores a key pair from its 32-byte seed.
func Ed25519KeyPairFromSeed(seed []byte) (*Ed25519KeyPair, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("%w: Ed25519 seed must be %d bytes, got %d",
			ErrInvalidPrivateKey, ed25519.SeedSize, len(seed))
	}
	return &Ed25519KeyPair{private: ed25519.NewKeyFromSeed(seed)}, nil
}

// Algorithm implements Signer.
func (kp *Ed25519KeyPair) Algorithm() SignatureAlgorithm { return SignatureEd25519 }

// PublicKey implements Signer. The key bytes are the 32-byte public key.
func (kp *Ed25519KeyPair) PublicKey() PublicKey {
	pub := kp.private.Public().(ed25519.PublicKey)
	return PublicKey{Algorithm: SignatureEd25519, Key: append([]byte(nil), pub...)}
}

// MarshalPrivate implements Signer. Returns the 32-byte seed.
func (kp *Ed25519KeyPair) MarshalPrivate() ([]byte, error) {
	if kp.private == nil {
		return nil, ErrKeyDestroyed
	}
	return append([]byte(nil), kp.private.Seed()...), nil
}

// Sign implements Signer. Returns a 64-byte signature.
func (kp *Ed25519KeyPair) Sign(message []byte) ([]byte, error) {
	if kp.private == nil {
		return nil, ErrKeyDestroyed
	}
	return ed25519.Sign(kp.private, message), nil
}

// Zeroize implements Signer. Clears the private key in place.
func (kp *Ed25519KeyPair) Zeroize() {
	Zeroize(kp.private)
	kp.private = nil
}

func ed25519Verify(publicKey, message, signature []byte) (bool, error) {
	if len(publicKey) != ed25519.PublicKeySize {
		return false, fmt.Errorf("%w: Ed25519 public key must be %d bytes, got %d",
			ErrInvalidPublicKey, ed25519.PublicKeySize, len(publicKey))
	}
	if len(signature) != ed25519.SignatureSize {
		return false, fmt.Errorf("%w: Ed25519 signature must be %d bytes, got %d",
			ErrInvalidSignature, ed25519.SignatureSize, len(signature))
	}
	return ed25519.Verify(ed25519.PublicKey(publicKey), message, signature), nil
}
