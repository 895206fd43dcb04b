package crypto

import (
	"crypto/ed25519"

	"github.com/cloudflare/circl/kem/mlkem/mlkem768"
	"github.com/cloudflare/circl/sign/mldsa/mldsa65"
	"golang.org/x/crypto/curve25519"
)

func publicKeySize(alg SignatureAlgorithm) int {
	switch alg {
	case SignatureECDSAP256:
		return P256PublicKeySizeBytes
	case SignatureEd25519:
		return ed25519.PublicKeySize
	case SignatureMLDSA65:
		return mldsa65.PublicKeySize
	}
	return 0
}

// SignatureSize returns the fixed signature length for alg, or 0 if unknown.
func SignatureSize(alg SignatureAlgorithm) int {
	switch alg {
	case SignatureECDSAP256:
		return P256SignatureSizeBytes
	case SignatureEd25519:
		return ed25519.SignatureSize
	case SignatureMLDSA65:
		return mldsa65.SignatureSize
	}
	return 0
}

// EphemeralSize returns the initiator and responder ephemeral lengths for alg.
// For ML-KEM-768 the responder value is a ciphertext, not a public key.
func EphemeralSize(alg KeyAgreementAlgorithm) (initiator, responder int) {
	switch alg {
	case KeyAgreementP256:
		return P256PublicKeySizeBytes, P256PublicKeySizeBytes
	case KeyAgreementX25519:
		return curve25519.PointSize, curve25519.PointSize
	case KeyAgreementMLKEM768:
		return mlkem768.PublicKeySize, mlkem768.CiphertextSize
	}
	return 0, 0
}
