package crypto

import (
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/elliptic"
	"errors"
	"fmt"
	"io"
	"math/big"
)

// P-256 sizes.
const (
	// P256GroupSizeBytes is the scalar size in bytes.
	P256GroupSizeBytes = 32

	// P256PublicKeySizeBytes is the uncompressed public key size.
	// Format: 0x04 || X (32 bytes) || Y (32 bytes) = 65 bytes
	P256PublicKeySizeBytes = 65

	// P256SignatureSizeBytes is the signature size (r || s).
	P256SignatureSizeBytes = 64
)

// P256KeyPair is a long-term ECDSA P-256 identity key. It implements Signer.
type P256KeyPair struct {
	ecdhPrivate  *ecdh.PrivateKey
	ecdsaPrivate *ecdsa.PrivateKey
	rand         io.Reader
}

// P256GenerateKeyPair generates a new P-256 key pair from rand.
func P256GenerateKeyPair(rand io.Reader) (*P256KeyPair, error) {
	ecdhPriv, err := ecdh.P256().GenerateKey(randOrDefault(rand))
	if err != nil {
		return nil, fmt.Errorf("failed to generate ECDH key: %w", err)
	}
	return p256KeyPairFromECDH(ecdhPriv, rand)
}

// P256KeyPairFromPrivateKey creates a key pair from an existing private key scalar.
func P256KeyPairFromPrivateKey(privateKey []byte, rand io.Reader) (*P256KeyPair, error) {
	if len(privateKey) != P256GroupSizeBytes {
		return nil, fmt.Errorf("%w: P-256 scalar must be %d bytes, got %d",
			ErrInvalidPrivateKey, P256GroupSizeBytes, len(privateKey))
	}
	ecdhPriv, err := ecdh.P256().NewPrivateKey(privateKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPrivateKey, err)
	}
	return p256KeyPairFromECDH(ecdhPriv, rand)
}

func p256KeyPairFromECDH(ecdhPriv *ecdh.PrivateKey, rand io.Reader) (*P256KeyPair, error) {
	ecdsaPriv, err := ecdhToECDSA(ecdhPriv)
	if err != nil {
		return nil, fmt.Errorf("failed to convert to ECDSA key: %w", err)
	}
	return &P256KeyPair{
		ecdhPrivate:  ecdhPriv,
		ecdsaPrivate: ecdsaPriv,
		rand:         rand,
	}, nil
}

// ecdhToECDSA converts an ecdh.PrivateKey to an ecdsa.PrivateKey.
func ecdhToECDSA(ecdhKey *ecdh.PrivateKey) (*ecdsa.PrivateKey, error) {
	d := new(big.Int).SetBytes(ecdhKey.Bytes())

	pubBytes := ecdhKey.PublicKey().Bytes()
	if len(pubBytes) != P256PublicKeySizeBytes || pubBytes[0] != 0x04 {
		return nil, errors.New("unexpected public key format")
	}

	return &ecdsa.PrivateKey{
		PublicKey: ecdsa.PublicKey{
			Curve: elliptic.P256(),
			X:     new(big.Int).SetBytes(pubBytes[1:33]),
			Y:     new(big.Int).SetBytes(pubBytes[33:65]),
		},
		D: d,
	}, nil
}

// Algorithm implements Signer.
func (kp *P256KeyPair) Algorithm() SignatureAlgorithm { return SignatureECDSAP256 }

// PublicKey implements Signer. The key bytes are the uncompressed point.
func (kp *P256KeyPair) PublicKey() PublicKey {
	return PublicKey{Algorithm: SignatureECDSAP256, Key: kp.ecdhPrivate.PublicKey().Bytes()}
}

// MarshalPrivate implements Signer. Returns the 32-byte scalar.
func (kp *P256KeyPair) MarshalPrivate() ([]byte, error) {
	if kp.ecdsaPrivate == nil {
		return nil, ErrKeyDestroyed
	}
	return kp.ecdhPrivate.Bytes(), nil
}

// Sign signs a message using ECDSA with SHA-256.
//
// Returns a 64-byte signature (r || s), each component zero-padded to 32 bytes.
func (kp *P256KeyPair) Sign(message []byte) ([]byte, error) {
	if kp.ecdsaPrivate == nil {
		return nil, ErrKeyDestroyed
	}
	hash := SHA256(message)

	r, s, err := ecdsa.Sign(randOrDefault(kp.rand), kp.ecdsaPrivate, hash[:])
	if err != nil {
		return nil, fmt.Errorf("ECDSA sign failed: %w", err)
	}

	sig := make([]byte, P256SignatureSizeBytes)
	r.FillBytes(sig[:P256GroupSizeBytes])
	s.FillBytes(sig[P256GroupSizeBytes:])
	return sig, nil
}

// Zeroize implements Signer.
func (kp *P256KeyPair) Zeroize() {
	if kp.ecdsaPrivate != nil {
		kp.ecdsaPrivate.D.SetInt64(0)
	}
	kp.ecdsaPrivate = nil
}

// p256Verify verifies a fixed-size r || s ECDSA signature.
func p256Verify(publicKey, message, signature []byte) (bool, error) {
	if err := P256ValidatePublicKey(publicKey); err != nil {
		return false, err
	}
	if len(signature) != P256SignatureSizeBytes {
		return false, fmt.Errorf("%w: ECDSA signature must be %d bytes, got %d",
			ErrInvalidSignature, P256SignatureSizeBytes, len(signature))
	}

	pub := &ecdsa.PublicKey{
		Curve: elliptic.P256(),
		X:     new(big.Int).SetBytes(publicKey[1:33]),
		Y:     new(big.Int).SetBytes(publicKey[33:65]),
	}
	r := new(big.Int).SetBytes(signature[:P256GroupSizeBytes])
	s := new(big.Int).SetBytes(signature[P256GroupSizeBytes:])

	hash := SHA256(message)
	return ecdsa.Verify(pub, hash[:], r, s), nil
}

// P256ValidatePublicKey validates that a public key is an uncompressed point on the curve.
func P256ValidatePublicKey(publicKey []byte) error {
	if len(publicKey) != P256PublicKeySizeBytes {
		return fmt.Errorf("%w: P-256 public key must be %d bytes, got %d",
			ErrInvalidPublicKey, P256PublicKeySizeBytes, len(publicKey))
	}
	if _, err := ecdh.P256().NewPublicKey(publicKey); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	return nil
}

// p256Ephemeral is a single-use P-256 ECDH key.
type p256Ephemeral struct {
	priv *ecdh.PrivateKey
}

func (e *p256Ephemeral) Algorithm() KeyAgreementAlgorithm { return KeyAgreementP256 }

func (e *p256Ephemeral) PublicKey() []byte {
	if e.priv == nil {
		return nil
	}
	return e.priv.PublicKey().Bytes()
}

func (e *p256Ephemeral) SharedSecret(peer []byte) ([]byte, error) {
	if e.priv == nil {
		return nil, ErrKeyDestroyed
	}
	return p256ECDH(e.priv, peer)
}

// Destroy drops the private key. crypto/ecdh keeps the scalar in unexported
// fields with no way to clear it, so the memory is left to the garbage
// collector.
func (e *p256Ephemeral) Destroy() { e.priv = nil }

func p256ECDH(priv *ecdh.PrivateKey, peerPublicKey []byte) ([]byte, error) {
	if len(peerPublicKey) != P256PublicKeySizeBytes {
		return nil, fmt.Errorf("%w: peer key must be %d bytes, got %d",
			ErrInvalidPublicKey, P256PublicKeySizeBytes, len(peerPublicKey))
	}
	peerPub, err := ecdh.P256().NewPublicKey(peerPublicKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	secret, err := priv.ECDH(peerPub)
	if err != nil {
		return nil, fmt.Errorf("ECDH computation failed: %w", err)
	}
	return secret, nil
}

func p256GenerateECDH(rand io.Reader) (*ecdh.PrivateKey, error) {
	priv, err := ecdh.P256().GenerateKey(randOrDefault(rand))
	if err != nil {
		return nil, fmt.Errorf("failed to generate ECDH key: %w", err)
	}
	return priv, nil
}

func p256Respond(initiatorPub []byte, rand io.Reader) ([]byte, []byte, error) {
	priv, err := p256GenerateECDH(rand)
	if err != nil {
		return nil, nil, err
	}
	eph := &p256Ephemeral{priv: priv}
	defer eph.Destroy()

	secret, err := eph.SharedSecret(initiatorPub)
	if err != nil {
		return nil, nil, err
	}
	return eph.PublicKey(), secret, nil
}
