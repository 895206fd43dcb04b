package crypto

import (
	"bytes"
	"encoding/hex"
	"errors"
	"testing"
)

var keyAgreementAlgorithms = []KeyAgreementAlgorithm{
	KeyAgreementP256,
	KeyAgreementX25519,
	KeyAgreementMLKEM768,
}

func TestKeyAgreement(t *testing.T) {
	for _, alg := range keyAgreementAlgorithms {
		t.Run(alg.String(), func(t *testing.T) {
			eph, err := GenerateEphemeral(alg, nil)
			if err != nil {
				t.Fatalf("GenerateEphemeral failed: %v", err)
			}
			initLen, respLen := EphemeralSize(alg)
			if len(eph.PublicKey()) != initLen {
				t.Errorf("initiator value length = %d, want %d", len(eph.PublicKey()), initLen)
			}

			reply, respSecret, err := Respond(alg, eph.PublicKey(), nil)
			if err != nil {
				t.Fatalf("Respond failed: %v", err)
			}
			if len(reply) != respLen {
				t.Errorf("responder value length = %d, want %d", len(reply), respLen)
			}

			initSecret, err := eph.SharedSecret(reply)
			if err != nil {
				t.Fatalf("SharedSecret failed: %v", err)
			}
			if !bytes.Equal(initSecret, respSecret) {
				t.Error("initiator and responder secrets differ")
			}

			eph.Destroy()
			if _, err := eph.SharedSecret(reply); !errors.Is(err, ErrKeyDestroyed) {
				t.Errorf("SharedSecret after Destroy: err = %v, want ErrKeyDestroyed", err)
			}
		})
	}
}

func TestKeyAgreement_InvalidPeer(t *testing.T) {
	for _, alg := range keyAgreementAlgorithms {
		t.Run(alg.String(), func(t *testing.T) {
			if _, _, err := Respond(alg, []byte{1, 2, 3}, nil); !errors.Is(err, ErrInvalidPublicKey) {
				t.Errorf("Respond: err = %v, want ErrInvalidPublicKey", err)
			}
			eph, _ := GenerateEphemeral(alg, nil)
			if _, err := eph.SharedSecret([]byte{1, 2, 3}); !errors.Is(err, ErrInvalidPublicKey) {
				t.Errorf("SharedSecret: err = %v, want ErrInvalidPublicKey", err)
			}
		})
	}
}

func TestX25519_LowOrderPoint(t *testing.T) {
	eph, _ := GenerateEphemeral(KeyAgreementX25519, nil)
	if _, err := eph.SharedSecret(make([]byte, 32)); !errors.Is(err, ErrInvalidPublicKey) {
		t.Errorf("zero point: err = %v, want ErrInvalidPublicKey", err)
	}
}

// RFC 5903 Section 8.1.
func TestP256ECDH_RFC5903(t *testing.T) {
	privA, _ := hex.DecodeString("c88f01f510d9ac3f70a292daa2316de544e9aab8afe84049c62a9c57862d1433")
	pubB, _ := hex.DecodeString("04" +
		"d12dfb5289c8d4f81208b70270398c342296970a0bccb74c736fc7554494bf63" +
		"56fbf3ca366cc23e8157854c13c58d6aac23f046ada30f8353e74f33039872ab")
	want, _ := hex.DecodeString("d6840f6b42f6edafd13116e0e12565202fef8e9ece7dce03812464d04b9442de")

	kp, err := P256KeyPairFromPrivateKey(privA, nil)
	if err != nil {
		t.Fatalf("P256KeyPairFromPrivateKey failed: %v", err)
	}
	got, err := p256ECDH(kp.ecdhPrivate, pubB)
	if err != nil {
		t.Fatalf("p256ECDH failed: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("shared secret = %x, want %x", got, want)
	}
}

func TestGenerateEphemeral_Unknown(t *testing.T) {
	if _, err := GenerateEphemeral(0, nil); !errors.Is(err, ErrUnknownAlgorithm) {
		t.Errorf("err = %v, want ErrUnknownAlgorithm", err)
	}
	if KeyAgreementAlgorithm(9).Valid() {
		t.Error("unknown algorithm reported valid")
	}
}

func TestParseKeyAgreementAlgorithm(t *testing.T) {
	for _, alg := range []KeyAgreementAlgorithm{KeyAgreementP256, KeyAgreementX25519, KeyAgreementMLKEM768} {
		got, err := ParseKeyAgreementAlgorithm(alg.String())
		if err != nil || got != alg {
			t.Errorf("ParseKeyAgreementAlgorithm(%q) = %v, %v", alg.String(), got, err)
		}
	}
	if _, err := ParseKeyAgreementAlgorithm("dh"); !errors.Is(err, ErrUnknownAlgorithm) {
		t.Errorf("unknown name error = %v, want %v", err, ErrUnknownAlgorithm)
	}
}
