package session

import (
	"bytes"
	"crypto/cipher"
	"errors"
	"fmt"

	"github.com/backkem/ssession/pkg/crypto"
	"github.com/backkem/ssession/pkg/message"
)

// KDF labels. Each directional key has its own label; the role of the
// deriving node never enters the derivation.
const (
	labelI2RKey      = "ssession i2r key"
	labelR2IKey      = "ssession r2i key"
	labelConfirmKey  = "ssession key confirmation"
	labelFinalizeMAC = "ssession finalize"
	sessionKeyLength = crypto.SymmetricKeySize
	confirmKeyLength = crypto.SHA256LenBytes
)

// SessionKeys holds the two directional keys of an established session.
type SessionKeys struct {
	I2RKey [sessionKeyLength]byte // Initiator-to-Responder
	R2IKey [sessionKeyLength]byte // Responder-to-Initiator
}

// Zeroize clears both keys.
func (k *SessionKeys) Zeroize() {
	crypto.Zeroize(k.I2RKey[:])
	crypto.Zeroize(k.R2IKey[:])
}

// handshakeSecrets is everything derived from one shared secret.
type handshakeSecrets struct {
	keys       SessionKeys
	confirmKey [confirmKeyLength]byte
}

func (h *handshakeSecrets) zeroize() {
	h.keys.Zeroize()
	crypto.Zeroize(h.confirmKey[:])
}

// derivationContext orders the two ephemeral values canonically so that both
// roles feed identical context to the KDF, then appends the negotiated suite.
func derivationContext(initiatorEph, responderEph []byte, ka crypto.KeyAgreementAlgorithm, suite crypto.CipherSuite) [][]byte {
	lo, hi := initiatorEph, responderEph
	if bytes.Compare(lo, hi) > 0 {
		lo, hi = hi, lo
	}
	return [][]byte{lo, hi, {byte(ka), byte(suite)}}
}

// deriveSecrets turns a shared secret into directional keys and a key
// confirmation key. The caller owns sharedSecret and must zeroize it.
func deriveSecrets(sharedSecret []byte, context [][]byte) (*handshakeSecrets, error) {
	out := &handshakeSecrets{}

	steps := []struct {
		label string
		dst   []byte
	}{
		{labelI2RKey, out.keys.I2RKey[:]},
		{labelR2IKey, out.keys.R2IKey[:]},
		{labelConfirmKey, out.confirmKey[:]},
	}
	for _, step := range steps {
		k, err := crypto.Derive(sharedSecret, step.label, len(step.dst), context...)
		if err != nil {
			out.zeroize()
			return nil, err
		}
		copy(step.dst, k)
		crypto.Zeroize(k)
	}
	return out, nil
}

// finalizeMAC computes the key confirmation tag over the handshake transcript.
func finalizeMAC(confirmKey []byte, transcript []byte) [crypto.SHA256LenBytes]byte {
	return crypto.HMACSHA256(confirmKey, []byte(labelFinalizeMAC), transcript)
}

// transcriptHash binds the signed content of both handshake messages.
func transcriptHash(request, response *message.Handshake) []byte {
	h := crypto.NewSHA256()
	h.Write(request.SignedData(nil))
	h.Write(response.SignedData(request))
	return h.Sum(nil)
}

// secureContext holds the keys, ciphers and counters of an established
// session. Initiators seal with I2R and open with R2I; responders the reverse.
type secureContext struct {
	role  Role
	suite crypto.CipherSuite
	keys  SessionKeys

	sealer cipher.AEAD
	opener cipher.AEAD

	sendCounter *message.SessionCounter
	recvState   *message.ReceptionState

	// retired is the context a rekey replaced, kept for its opening
	// direction only until the first envelope under these keys opens.
	retired *secureContext
}

// newSecureContext copies keys and builds the directional ciphers. nextSend
// and lastRecv seed the counters; a fresh session passes 1 and 0.
func newSecureContext(role Role, suite crypto.CipherSuite, keys *SessionKeys, nextSend, lastRecv uint32) (*secureContext, error) {
	if !role.IsValid() {
		return nil, fmt.Errorf("%w: role %s", ErrInvalidParameter, role)
	}

	ctx := &secureContext{
		role:        role,
		suite:       suite,
		keys:        *keys,
		sendCounter: message.NewSessionCounterWithValue(nextSend),
		recvState:   message.NewReceptionState(lastRecv),
	}

	sealKey, openKey := ctx.keys.I2RKey[:], ctx.keys.R2IKey[:]
	if role == RoleResponder {
		sealKey, openKey = openKey, sealKey
	}

	var err error
	if ctx.sealer, err = crypto.NewAEAD(suite, sealKey); err != nil {
		ctx.zeroize()
		return nil, fmt.Errorf("%w: %w", ErrCryptoFailure, err)
	}
	if ctx.opener, err = crypto.NewAEAD(suite, openKey); err != nil {
		ctx.zeroize()
		return nil, fmt.Errorf("%w: %w", ErrCryptoFailure, err)
	}
	return ctx, nil
}

// seal encrypts plaintext under the next outgoing sequence.
func (c *secureContext) seal(plaintext []byte) (*message.Envelope, error) {
	seq, err := c.sendCounter.Next()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrResourceExhausted, err)
	}

	out := c.sealer.Seal(nil, message.Nonce(seq), plaintext, message.AAD(seq, len(plaintext)))
	split := len(out) - crypto.AEADTagSize

	env := &message.Envelope{Sequence: seq, Ciphertext: out[:split]}
	copy(env.Tag[:], out[split:])
	return env, nil
}

// open authenticates and decrypts env, then enforces ordering. The reception
// state only moves once every check has passed.
func (c *secureContext) open(env *message.Envelope) ([]byte, error) {
	sealed := make([]byte, 0, len(env.Ciphertext)+crypto.AEADTagSize)
	sealed = append(sealed, env.Ciphertext...)
	sealed = append(sealed, env.Tag[:]...)

	plaintext, err := c.opener.Open(nil, message.Nonce(env.Sequence), sealed, message.AAD(env.Sequence, len(env.Ciphertext)))
	if err != nil {
		if c.retired != nil {
			plaintext, err := c.retired.open(env)
			if err == nil || errors.Is(err, ErrReplayOrReorder) {
				return plaintext, err
			}
		}
		return nil, fmt.Errorf("%w: envelope %d did not authenticate", ErrAuthenticationFailed, env.Sequence)
	}

	if err := c.recvState.Check(env.Sequence); err != nil {
		crypto.Zeroize(plaintext)
		return nil, fmt.Errorf("%w: %w", ErrReplayOrReorder, err)
	}
	if err := c.recvState.Commit(env.Sequence); err != nil {
		crypto.Zeroize(plaintext)
		return nil, fmt.Errorf("%w: %w", ErrReplayOrReorder, err)
	}
	if c.retired != nil {
		c.retired.zeroize()
		c.retired = nil
	}
	return plaintext, nil
}

// retire keeps the opening half of old, the context this one replaces, so
// envelopes the peer sealed before it switched keys still open. The sealing
// key of old is cleared at once.
func (c *secureContext) retire(old *secureContext) {
	if old.retired != nil {
		old.retired.zeroize()
		old.retired = nil
	}
	sealKey := old.keys.I2RKey[:]
	if old.role == RoleResponder {
		sealKey = old.keys.R2IKey[:]
	}
	crypto.Zeroize(sealKey)
	old.sealer = nil
	c.retired = old
}

// zeroize clears the keys and drops the ciphers.
func (c *secureContext) zeroize() {
	c.keys.Zeroize()
	c.sealer = nil
	c.opener = nil
	if c.retired != nil {
		c.retired.zeroize()
		c.retired = nil
	}
}
