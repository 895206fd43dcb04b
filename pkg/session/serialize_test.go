package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/backkem/ssession/pkg/container"
	"github.com/backkem/ssession/pkg/message"
)

func TestSaveRestore(t *testing.T) {
	p := newPair(t, pairOptions{})
	p.handshake(t)

	unwrap(t, p.bob, wrap(t, p.alice, "a1"), "a1")
	unwrap(t, p.bob, wrap(t, p.alice, "a2"), "a2")
	fromBob := wrap(t, p.bob, "b1")
	unwrap(t, p.alice, fromBob, "b1")

	snapshot, err := p.alice.Save()
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if tag, _ := container.PeekTag(snapshot); tag != message.TagSavedSession {
		t.Errorf("snapshot tag = %s, want TSSC", tag)
	}
	keys, _ := p.alice.Keys()

	restored, err := Restore(p.aliceConfig, snapshot)
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	expectState(t, restored, StateEstablished)
	if restored.Role() != RoleInitiator {
		t.Errorf("Role() = %s, want Initiator", restored.Role())
	}
	if !bytes.Equal(restored.PeerIdentity(), []byte("bob")) {
		t.Errorf("PeerIdentity() = %q, want bob", restored.PeerIdentity())
	}
	if got, _ := restored.Keys(); got != keys {
		t.Error("restored keys differ")
	}

	// Counters continue where they left off in both directions.
	if got := restored.secure.sendCounter.Peek(); got != 3 {
		t.Errorf("next send = %d, want 3", got)
	}
	_, err = restored.Unwrap(fromBob)
	expectErr(t, err, ErrReplayOrReorder)

	unwrap(t, p.bob, wrap(t, restored, "a3"), "a3")
	unwrap(t, restored, wrap(t, p.bob, "b2"), "b2")
}

func TestSave_InvalidState(t *testing.T) {
	p := newPair(t, pairOptions{})
	if _, err := p.alice.Save(); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Save() in Idle error = %v, want ErrInvalidState", err)
	}

	p.alice.config.KeyConfirmation = true
	req, _ := p.alice.ConnectRequest()
	if _, err := p.bob.HandleIncoming(req); err != nil {
		t.Fatalf("HandleIncoming() error = %v", err)
	}
	if _, err := p.bob.Save(); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Save() while awaiting finalize error = %v, want ErrInvalidState", err)
	}
}

func TestRestore_Errors(t *testing.T) {
	p := newPair(t, pairOptions{})
	p.handshake(t)
	snapshot, err := p.alice.Save()
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	// rebuild encodes a modified snapshot body.
	rebuild := func(mutate func(body []byte) []byte) []byte {
		t.Helper()
		_, body, err := container.Decode(snapshot)
		if err != nil {
			t.Fatalf("Decode() error = %v", err)
		}
		body = mutate(append([]byte(nil), body...))
		out, err := container.Encode(message.TagSavedSession, body)
		if err != nil {
			t.Fatalf("Encode() error = %v", err)
		}
		return out
	}

	corrupt := append([]byte(nil), snapshot...)
	corrupt[len(corrupt)-1] ^= 0x01
	wrongTag, _ := container.Encode(message.TagFinalize, make([]byte, 32))

	tests := []struct {
		name     string
		snapshot []byte
		config   func(*Config)
		want     error
	}{
		{"corrupt", corrupt, nil, ErrDataCorrupt},
		{"truncated", snapshot[:len(snapshot)-1], nil, ErrMalformed},
		{"wrong tag", wrongTag, nil, ErrInvalidParameter},
		{"short body", rebuild(func(b []byte) []byte { return b[:3] }), nil, ErrMalformed},
		{"extra byte", rebuild(func(b []byte) []byte { return append(b, 0) }), nil, ErrMalformed},
		{"version", rebuild(func(b []byte) []byte {
			binary.BigEndian.PutUint16(b[0:2], 9)
			return b
		}), nil, ErrInvalidParameter},
		{"role", rebuild(func(b []byte) []byte { b[2] = 0; return b }), nil, ErrInvalidParameter},
		{"cipher", rebuild(func(b []byte) []byte { b[3] = 77; return b }), nil, ErrInvalidParameter},
		{"peer mismatch", snapshot, func(c *Config) { c.PeerIdentity = []byte("carol") }, ErrInvalidParameter},
		{"bad config", snapshot, func(c *Config) { c.Signer = nil }, ErrInvalidParameter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := p.aliceConfig
			if tt.config != nil {
				tt.config(&config)
			}
			s, err := Restore(config, tt.snapshot)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Restore() error = %v, want %v", err, tt.want)
			}
			if s != nil {
				t.Error("Restore() returned a session on error")
			}
		})
	}
}

func TestRestore_ExhaustedCounter(t *testing.T) {
	p := newPair(t, pairOptions{})
	p.handshake(t)
	p.alice.secure.sendCounter = message.NewSessionCounterWithValue(0)

	snapshot, err := p.alice.Save()
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	restored, err := Restore(p.aliceConfig, snapshot)
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	_, err = restored.Wrap([]byte("x"))
	expectErr(t, err, ErrResourceExhausted)
}
