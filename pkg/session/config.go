package session

import (
	"fmt"
	"io"

	"github.com/backkem/ssession/pkg/crypto"
	"github.com/pion/logging"
)

// MaxIdentityLength is the longest identity the wire format can carry.
const MaxIdentityLength = 0xFFFF

// Config configures a Session.
type Config struct {
	// Identity names the local node on the wire. Required.
	Identity []byte

	// Signer is the local long-term identity key. Required.
	// The Session zeroizes it on Destroy.
	Signer crypto.Signer

	// Transport delivers messages and resolves peer keys. Required.
	Transport Transport

	// PeerIdentity, if set, is the only identity this session will complete
	// a handshake with.
	PeerIdentity []byte

	// KeyAgreement is the ephemeral exchange proposed when initiating.
	// Default: crypto.KeyAgreementP256. A responder adopts the initiator's choice.
	KeyAgreement crypto.KeyAgreementAlgorithm

	// Cipher is the AEAD proposed when initiating.
	// Default: crypto.CipherAES256GCM. A responder adopts the initiator's choice.
	Cipher crypto.CipherSuite

	// KeyConfirmation requests a Finalize message from the initiator before
	// the responder becomes Established. Either side may request it.
	KeyConfirmation bool

	// FailurePolicy decides whether a bad application message tears the
	// session down. Default: FailurePolicyPerMessage.
	FailurePolicy FailurePolicy

	// OnStateChange is called after every state transition, outside the
	// session lock. It may query the session but must not call methods that
	// use the Transport (Connect, Rekey, Send, Receive, Negotiate). Optional.
	OnStateChange func(old, new State)

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging.NewDefaultLoggerFactory() is used.
	LoggerFactory logging.LoggerFactory

	// Rand is the randomness source for ephemeral keys and signatures.
	// If nil, crypto/rand is used.
	Rand io.Reader
}

// withDefaults returns a copy with zero values replaced by defaults.
func (c Config) withDefaults() Config {
	if c.KeyAgreement == 0 {
		c.KeyAgreement = crypto.KeyAgreementP256
	}
	if c.Cipher == 0 {
		c.Cipher = crypto.CipherAES256GCM
	}
	if c.LoggerFactory == nil {
		c.LoggerFactory = logging.NewDefaultLoggerFactory()
	}
	c.Identity = append([]byte(nil), c.Identity...)
	if c.PeerIdentity != nil {
		c.PeerIdentity = append([]byte(nil), c.PeerIdentity...)
	}
	return c
}

// validate checks a defaulted config.
func (c Config) validate() error {
	if len(c.Identity) == 0 {
		return fmt.Errorf("%w: identity is required", ErrInvalidParameter)
	}
	if len(c.Identity) > MaxIdentityLength {
		return fmt.Errorf("%w: identity is %d bytes, max %d", ErrInvalidParameter, len(c.Identity), MaxIdentityLength)
	}
	if c.Signer == nil {
		return fmt.Errorf("%w: signer is required", ErrInvalidParameter)
	}
	if c.Transport == nil {
		return fmt.Errorf("%w: transport is required", ErrInvalidParameter)
	}
	if !c.KeyAgreement.Valid() {
		return fmt.Errorf("%w: key agreement %s", ErrInvalidParameter, c.KeyAgreement)
	}
	if !c.Cipher.Valid() {
		return fmt.Errorf("%w: cipher %s", ErrInvalidParameter, c.Cipher)
	}
	if c.FailurePolicy != FailurePolicyPerMessage && c.FailurePolicy != FailurePolicyTeardown {
		return fmt.Errorf("%w: failure policy %d", ErrInvalidParameter, c.FailurePolicy)
	}
	return nil
}
