package crypto

import (
	"fmt"
	"io"

	"github.com/cloudflare/circl/kem/mlkem/mlkem768"
)

// mlkemEphemeral holds the decapsulation key of an ML-KEM-768 exchange. The
// initiator sends the encapsulation key and the responder replies with a
// ciphertext.
type mlkemEphemeral struct {
	pub  []byte
	priv *mlkem768.PrivateKey
}

func newMLKEMEphemeral(rand io.Reader) (*mlkemEphemeral, error) {
	pk, sk, err := mlkem768.GenerateKeyPair(randOrDefault(rand))
	if err != nil {
		return nil, fmt.Errorf("failed to generate ML-KEM-768 key: %w", err)
	}
	pub, err := pk.MarshalBinary()
	if err != nil {
		return nil, err
	}
	return &mlkemEphemeral{pub: pub, priv: sk}, nil
}

func (e *mlkemEphemeral) Algorithm() KeyAgreementAlgorithm { return KeyAgreementMLKEM768 }

func (e *mlkemEphemeral) PublicKey() []byte { return e.pub }

func (e *mlkemEphemeral) SharedSecret(ciphertext []byte) ([]byte, error) {
	if e.priv == nil {
		return nil, ErrKeyDestroyed
	}
	if len(ciphertext) != mlkem768.CiphertextSize {
		return nil, fmt.Errorf("%w: ML-KEM-768 ciphertext must be %d bytes, got %d",
			ErrInvalidPublicKey, mlkem768.CiphertextSize, len(ciphertext))
	}
	secret := make([]byte, mlkem768.SharedKeySize)
	e.priv.DecapsulateTo(secret, ciphertext)
	return secret, nil
}

// Destroy drops the decapsulation key. circl offers no way to wipe it, so
// the memory is left to the garbage collector.
func (e *mlkemEphemeral) Destroy() { e.priv = nil }

func mlkemRespond(initiatorPub []byte, rand io.Reader) ([]byte, []byte, error) {
	if len(initiatorPub) != mlkem768.PublicKeySize {
		return nil, nil, fmt.Errorf("%w: ML-KEM-768 public key must be %d bytes, got %d",
			ErrInvalidPublicKey, mlkem768.PublicKeySize, len(initiatorPub))
	}
	pk, err := mlkem768.Scheme().UnmarshalBinaryPublicKey(initiatorPub)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}

	seed := make([]byte, mlkem768.EncapsulationSeedSize)
	if _, err := io.ReadFull(randOrDefault(rand), seed); err != nil {
		return nil, nil, fmt.Errorf("failed to read encapsulation seed: %w", err)
	}
	defer Zeroize(seed)

	ciphertext, secret, err := mlkem768.Scheme().EncapsulateDeterministically(pk, seed)
	if err != nil {
		return nil, nil, fmt.Errorf("ML-KEM-768 encapsulation failed: %w", err)
	}
	return ciphertext, secret, nil
}
