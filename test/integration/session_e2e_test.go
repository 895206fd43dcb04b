// Package integration contains integration tests for secure sessions.
//
// This file (session_e2e_test.go) contains end-to-end tests that run full
// sessions over each carrier: the in-memory pipe, loopback UDP and loopback TCP.
//
// For tests that run the ssession binary, see cli_interop_test.go (build tag: interop).
package integration

import (
	"errors"
	"testing"
	"time"

	"github.com/backkem/ssession/pkg/crypto"
	"github.com/backkem/ssession/pkg/session"
	"github.com/backkem/ssession/pkg/transport"
)

func suiteConfigs() map[string]TestPairConfig {
	configs := map[string]TestPairConfig{}

	c := DefaultTestPairConfig()
	configs["ecdsa-p256/p256/aes-256-gcm"] = c

	c = DefaultTestPairConfig()
	c.Signature = crypto.SignatureEd25519
	c.KeyAgreement = crypto.KeyAgreementX25519
	c.Cipher = crypto.CipherChaCha20Poly1305
	c.KeyConfirmation = true
	configs["ed25519/x25519/chacha20-poly1305/confirm"] = c

	c = DefaultTestPairConfig()
	c.Signature = crypto.SignatureMLDSA65
	c.KeyAgreement = crypto.KeyAgreementMLKEM768
	configs["ml-dsa-65/ml-kem-768/aes-256-gcm"] = c

	return configs
}

func exerciseSession[C transport.Carrier](pair *TestPair[C]) {
	pair.Exchange(pair.Alice, pair.Bob, "Hello Bob")
	pair.Exchange(pair.Bob, pair.Alice, "Hello Alice")
	pair.Rekey(pair.Alice, pair.Bob, "first rekey")
	pair.Rekey(pair.Bob, pair.Alice, "second rekey")
	for _, text := range []string{"one", "two", "three"} {
		pair.Exchange(pair.Alice, pair.Bob, text)
	}
	pair.Exchange(pair.Bob, pair.Alice, "done")
}

func TestE2E_Pipe(t *testing.T) {
	for name, config := range suiteConfigs() {
		t.Run(name, func(t *testing.T) {
			pair := NewTestPairWithConfig(t, PipeCarriers, config)
			defer pair.Close()
			exerciseSession(pair)
		})
	}
}

func TestE2E_UDP(t *testing.T) {
	for name, config := range suiteConfigs() {
		t.Run(name, func(t *testing.T) {
			pair := NewTestPairWithConfig(t, UDPCarriers, config)
			defer pair.Close()

			if pair.BobCarrier.PeerAddr() == nil {
				t.Fatal("bob did not learn alice's address")
			}
			exerciseSession(pair)
		})
	}
}

func TestE2E_Stream(t *testing.T) {
	for name, config := range suiteConfigs() {
		t.Run(name, func(t *testing.T) {
			pair := NewTestPairWithConfig(t, StreamCarriers, config)
			defer pair.Close()
			exerciseSession(pair)
		})
	}
}

// TestE2E_DelayedNetwork runs a session over a pipe with a fixed delay.
func TestE2E_DelayedNetwork(t *testing.T) {
	pipeConfig := transport.DefaultPipeConfig()
	pipeConfig.ReadTimeout = 5 * time.Second
	pipe := transport.NewPipeWithConfig(pipeConfig)
	defer pipe.Close()
	pipe.SetCondition(transport.NetworkCondition{DelayMin: 2 * time.Millisecond, DelayMax: 8 * time.Millisecond})

	pair := NewTestPair(t, OnPipe(pipe))
	defer pair.Close()
	exerciseSession(pair)
}

// TestE2E_DuplicatedPackets checks that a network duplicating every packet
// is caught by replay protection without breaking the session.
func TestE2E_DuplicatedPackets(t *testing.T) {
	pipeConfig := transport.DefaultPipeConfig()
	pipeConfig.ReadTimeout = 5 * time.Second
	pipe := transport.NewPipeWithConfig(pipeConfig)
	defer pipe.Close()

	pair := NewTestPair(t, OnPipe(pipe))
	defer pair.Close()
	pipe.SetCondition(transport.NetworkCondition{DuplicateRate: 1.0})

	for _, text := range []string{"first", "second"} {
		pair.Exchange(pair.Alice, pair.Bob, text)

		_, err := pair.Bob.Receive()
		if !errors.Is(err, session.ErrReplayOrReorder) {
			t.Fatalf("Receive() of duplicate error = %v, want %v", err, session.ErrReplayOrReorder)
		}
		if pair.Bob.State() != session.StateEstablished {
			t.Fatalf("bob.State() = %s after duplicate, want %s", pair.Bob.State(), session.StateEstablished)
		}
	}
}

// TestE2E_DroppedEnvelope checks that losing a message only skips it.
func TestE2E_DroppedEnvelope(t *testing.T) {
	pipeConfig := transport.DefaultPipeConfig()
	pipeConfig.ReadTimeout = 5 * time.Second
	pipe := transport.NewPipeWithConfig(pipeConfig)
	defer pipe.Close()

	pair := NewTestPair(t, OnPipe(pipe))
	defer pair.Close()

	pipe.SetCondition(transport.NetworkCondition{DropRate: 1.0})
	if err := pair.Alice.Send([]byte("lost")); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	pipe.SetCondition(transport.NetworkCondition{})

	pair.Exchange(pair.Alice, pair.Bob, "after the gap")
}

// TestE2E_TamperedEnvelope checks both failure policies against a message
// altered in flight.
func TestE2E_TamperedEnvelope(t *testing.T) {
	tests := []struct {
		policy    session.FailurePolicy
		wantState session.State
	}{
		{session.FailurePolicyPerMessage, session.StateEstablished},
		{session.FailurePolicyTeardown, session.StateFailed},
	}

	for _, tt := range tests {
		t.Run(tt.policy.String(), func(t *testing.T) {
			config := DefaultTestPairConfig()
			config.FailurePolicy = tt.policy
			pair := NewTestPairWithConfig(t, PipeCarriers, config)
			defer pair.Close()

			// Send straight through the carrier so the envelope can be altered.
			envelope, err := pair.Alice.Wrap([]byte("payload"))
			if err != nil {
				t.Fatalf("Wrap() error = %v", err)
			}
			envelope[len(envelope)-1] ^= 0x01
			if err := pair.AliceCarrier.Send(envelope); err != nil {
				t.Fatalf("carrier Send() error = %v", err)
			}

			_, err = pair.Bob.Receive()
			if session.StatusOf(err) != session.StatusDataCorrupt {
				t.Errorf("Receive() status = %s, want %s", session.StatusOf(err), session.StatusDataCorrupt)
			}
			if pair.Bob.State() != tt.wantState {
				t.Errorf("bob.State() = %s, want %s", pair.Bob.State(), tt.wantState)
			}
			if tt.wantState == session.StateEstablished {
				pair.Exchange(pair.Alice, pair.Bob, "still fine")
			}
		})
	}
}

// TestE2E_SaveRestore resumes one side from a snapshot over the same carrier.
func TestE2E_SaveRestore(t *testing.T) {
	pair := NewTestPair(t, StreamCarriers)
	defer pair.Close()

	pair.Exchange(pair.Alice, pair.Bob, "before save")

	snapshot, err := pair.Bob.Save()
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := pair.Bob.Destroy(); err != nil {
		t.Fatalf("Destroy() error = %v", err)
	}

	restored, err := session.Restore(pair.SessionConfig("bob", pair.BobCarrier, pair.Signer("bob")), snapshot)
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	pair.Bob = restored

	if string(restored.PeerIdentity()) != "alice" {
		t.Errorf("PeerIdentity() = %q, want alice", restored.PeerIdentity())
	}
	pair.Exchange(pair.Alice, pair.Bob, "after restore")
	pair.Exchange(pair.Bob, pair.Alice, "reply")
	pair.Rekey(pair.Bob, pair.Alice, "rekeyed after restore")
}
