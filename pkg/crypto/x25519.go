package crypto

import (
	"fmt"
	"io"

	"golang.org/x/crypto/curve25519"
)

type x25519Ephemeral struct {
	priv []byte
	pub  []byte
}

func newX25519Priv(rand io.Reader) ([]byte, []byte, error) {
	priv := make([]byte, curve25519.ScalarSize)
	if _, err := io.ReadFull(randOrDefault(rand), priv); err != nil {
		return nil, nil, fmt.Errorf("failed to read X25519 scalar: %w", err)
	}
	pub, err := curve25519.X25519(priv, curve25519.Basepoint)
	if err != nil {
		Zeroize(priv)
		return nil, nil, fmt.Errorf("X25519 base multiplication failed: %w", err)
	}
	return priv, pub, nil
}

func newX25519Ephemeral(rand io.Reader) (*x25519Ephemeral, error) {
	priv, pub, err := newX25519Priv(rand)
	if err != nil {
		return nil, err
	}
	return &x25519Ephemeral{priv: priv, pub: pub}, nil
}

func (e *x25519Ephemeral) Algorithm() KeyAgreementAlgorithm { return KeyAgreementX25519 }

func (e *x25519Ephemeral) PublicKey() []byte { return e.pub }

func (e *x25519Ephemeral) SharedSecret(peer []byte) ([]byte, error) {
	if e.priv == nil {
		return nil, ErrKeyDestroyed
	}
	return x25519(e.priv, peer)
}

func (e *x25519Ephemeral) Destroy() {
	Zeroize(e.priv)
	e.priv = nil
}

// x25519 rejects wrong-length and low-order peer points.
func x25519(priv, peer []byte) ([]byte, error) {
	if len(peer) != curve25519.PointSize {
		return nil, fmt.Errorf("%w: X25519 point must be %d bytes, got %d",
			ErrInvalidPublicKey, curve25519.PointSize, len(peer))
	}
	secret, err := curve25519.X25519(priv, peer)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	return secret, nil
}

func x25519Respond(initiatorPub []byte, rand io.Reader) ([]byte, []byte, error) {
	priv, pub, err := newX25519Priv(rand)
	if err != nil {
		return nil, nil, err
	}
	defer Zeroize(priv)
	secret, err := x25519(priv, initiatorPub)
	if err != nil {
		return nil, nil, err
	}
	return pub, secret, nil
}
