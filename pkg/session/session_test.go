package session

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/backkem/ssession/pkg/crypto"
	"github.com/backkem/ssession/pkg/message"
)

// stubTransport is an in-memory Transport. Two linked stubs deliver to each
// other through buffered channels; both share one key directory.
type stubTransport struct {
	keys map[string][]byte
	in   chan []byte
	out  chan []byte

	mu       sync.Mutex
	sendErr  error
	sent     int
	resolved []string
}

func (t *stubTransport) Send(data []byte) error {
	t.mu.Lock()
	err := t.sendErr
	t.sent++
	t.mu.Unlock()
	if err != nil {
		return err
	}
	t.out <- append([]byte(nil), data...)
	return nil
}

func (t *stubTransport) Receive() ([]byte, error) {
	select {
	case data := <-t.in:
		return data, nil
	case <-time.After(5 * time.Second):
		return nil, errors.New("stub: receive timed out")
	}
}

func (t *stubTransport) ResolvePublicKey(identity []byte) ([]byte, error) {
	t.mu.Lock()
	t.resolved = append(t.resolved, string(identity))
	t.mu.Unlock()
	key, ok := t.keys[string(identity)]
	if !ok {
		return nil, fmt.Errorf("stub: unknown identity %q", identity)
	}
	return key, nil
}

func (t *stubTransport) setSendErr(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sendErr = err
}

func linkedTransports(keys map[string][]byte) (*stubTransport, *stubTransport) {
	ab := make(chan []byte, 64)
	ba := make(chan []byte, 64)
	a := &stubTransport{keys: keys, in: ba, out: ab}
	b := &stubTransport{keys: keys, in: ab, out: ba}
	return a, b
}

// pairOptions tweaks the two configs built by newPair.
type pairOptions struct {
	signature    crypto.SignatureAlgorithm
	keyAgreement crypto.KeyAgreementAlgorithm
	cipher       crypto.CipherSuite
	alice        func(*Config)
	bob          func(*Config)
}

type pair struct {
	alice, bob  *Session
	ta, tb      *stubTransport
	keys        map[string][]byte
	aliceConfig Config
	bobConfig   Config
	aliceSigner crypto.Signer
	bobSigner   crypto.Signer
	aliceEvents *eventLog
	bobEvents   *eventLog
}

type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) record(old, new State) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, old.String()+"->"+new.String())
}

func (l *eventLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

func newSigner(t *testing.T, alg crypto.SignatureAlgorithm) crypto.Signer {
	t.Helper()
	signer, err := crypto.GenerateSigner(alg, nil)
	if err != nil {
		t.Fatalf("GenerateSigner(%s) error = %v", alg, err)
	}
	return signer
}

func newPair(t *testing.T, opts pairOptions) *pair {
	t.Helper()
	if opts.signature == 0 {
		opts.signature = crypto.SignatureECDSAP256
	}

	p := &pair{
		aliceSigner: newSigner(t, opts.signature),
		bobSigner:   newSigner(t, opts.signature),
		aliceEvents: &eventLog{},
		bobEvents:   &eventLog{},
	}
	p.keys = map[string][]byte{
		"alice": p.aliceSigner.PublicKey().Marshal(),
		"bob":   p.bobSigner.PublicKey().Marshal(),
	}
	p.ta, p.tb = linkedTransports(p.keys)

	p.aliceConfig = Config{
		Identity:      []byte("alice"),
		Signer:        p.aliceSigner,
		Transport:     p.ta,
		KeyAgreement:  opts.keyAgreement,
		Cipher:        opts.cipher,
		OnStateChange: p.aliceEvents.record,
	}
	p.bobConfig = Config{
		Identity:      []byte("bob"),
		Signer:        p.bobSigner,
		Transport:     p.tb,
		KeyAgreement:  opts.keyAgreement,
		Cipher:        opts.cipher,
		OnStateChange: p.bobEvents.record,
	}
	if opts.alice != nil {
		opts.alice(&p.aliceConfig)
	}
	if opts.bob != nil {
		opts.bob(&p.bobConfig)
	}

	var err error
	if p.alice, err = New(p.aliceConfig); err != nil {
		t.Fatalf("New(alice) error = %v", err)
	}
	if p.bob, err = New(p.bobConfig); err != nil {
		t.Fatalf("New(bob) error = %v", err)
	}
	return p
}

// handshake runs a full handshake by hand with alice as initiator.
func (p *pair) handshake(t *testing.T) {
	t.Helper()
	req, err := p.alice.ConnectRequest()
	if err != nil {
		t.Fatalf("ConnectRequest() error = %v", err)
	}
	res, err := p.bob.HandleIncoming(req)
	if err != nil {
		t.Fatalf("bob.HandleIncoming(request) error = %v", err)
	}
	if res.Kind != message.KindConnectRequest || res.Reply == nil {
		t.Fatalf("bob.HandleIncoming(request) = %+v, want a reply", res)
	}
	res, err = p.alice.HandleIncoming(res.Reply)
	if err != nil {
		t.Fatalf("alice.HandleIncoming(response) error = %v", err)
	}
	if res.Reply != nil {
		if _, err := p.bob.HandleIncoming(res.Reply); err != nil {
			t.Fatalf("bob.HandleIncoming(finalize) error = %v", err)
		}
	}
	expectState(t, p.alice, StateEstablished)
	expectState(t, p.bob, StateEstablished)
}

func expectState(t *testing.T, s *Session, want State) {
	t.Helper()
	if got := s.State(); got != want {
		t.Fatalf("%s: State() = %s, want %s", s.config.Identity, got, want)
	}
}

func expectErr(t *testing.T, err, want error) {
	t.Helper()
	if !errors.Is(err, want) {
		t.Fatalf("error = %v, want %v", err, want)
	}
}

func wrap(t *testing.T, s *Session, plaintext string) []byte {
	t.Helper()
	out, err := s.Wrap([]byte(plaintext))
	if err != nil {
		t.Fatalf("Wrap(%q) error = %v", plaintext, err)
	}
	return out
}

func unwrap(t *testing.T, s *Session, data []byte, want string) {
	t.Helper()
	got, err := s.Unwrap(data)
	if err != nil {
		t.Fatalf("Unwrap() error = %v", err)
	}
	if string(got) != want {
		t.Fatalf("Unwrap() = %q, want %q", got, want)
	}
}

func TestNew_Validation(t *testing.T) {
	signer := newSigner(t, crypto.SignatureEd25519)
	tr := &stubTransport{}

	tests := []struct {
		name   string
		config Config
	}{
		{"no identity", Config{Signer: signer, Transport: tr}},
		{"identity too long", Config{Identity: make([]byte, MaxIdentityLength+1), Signer: signer, Transport: tr}},
		{"no signer", Config{Identity: []byte("a"), Transport: tr}},
		{"no transport", Config{Identity: []byte("a"), Signer: signer}},
		{"bad key agreement", Config{Identity: []byte("a"), Signer: signer, Transport: tr, KeyAgreement: 42}},
		{"bad cipher", Config{Identity: []byte("a"), Signer: signer, Transport: tr, Cipher: 42}},
		{"bad policy", Config{Identity: []byte("a"), Signer: signer, Transport: tr, FailurePolicy: 7}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.config)
			if !errors.Is(err, ErrInvalidParameter) {
				t.Errorf("New() error = %v, want ErrInvalidParameter", err)
			}
		})
	}
}

func TestNew_Defaults(t *testing.T) {
	id := []byte("alice")
	s, err := New(Config{Identity: id, Signer: newSigner(t, crypto.SignatureEd25519), Transport: &stubTransport{}})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	id[0] = 'X'

	if s.State() != StateIdle {
		t.Errorf("State() = %s, want Idle", s.State())
	}
	if s.Role() != RoleUnknown {
		t.Errorf("Role() = %s, want Unknown", s.Role())
	}
	if !bytes.Equal(s.Identity(), []byte("alice")) {
		t.Errorf("Identity() = %q, want %q", s.Identity(), "alice")
	}
	if len(s.PeerIdentity()) != 0 {
		t.Errorf("PeerIdentity() = %q, want empty", s.PeerIdentity())
	}
	if s.config.KeyAgreement != crypto.KeyAgreementP256 {
		t.Errorf("KeyAgreement = %s, want p256", s.config.KeyAgreement)
	}
	if s.config.Cipher != crypto.CipherAES256GCM {
		t.Errorf("Cipher = %s, want AES-256-GCM", s.config.Cipher)
	}
	if s.config.FailurePolicy != FailurePolicyPerMessage {
		t.Errorf("FailurePolicy = %s, want PerMessage", s.config.FailurePolicy)
	}
	if _, err := s.Keys(); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Keys() error = %v, want ErrInvalidState", err)
	}
}

func TestDestroy(t *testing.T) {
	p := newPair(t, pairOptions{})
	p.handshake(t)

	if err := p.alice.Destroy(); err != nil {
		t.Fatalf("Destroy() error = %v", err)
	}
	expectState(t, p.alice, StateClosed)

	if p.alice.secure != nil || p.alice.pending != nil {
		t.Error("Destroy() left key material behind")
	}
	if _, err := p.aliceSigner.Sign([]byte("x")); err == nil {
		t.Error("signer still usable after Destroy()")
	}

	// Every operation on a closed session is an error.
	if err := p.alice.Destroy(); !errors.Is(err, ErrInvalidState) {
		t.Errorf("second Destroy() error = %v, want ErrInvalidState", err)
	}
	if _, err := p.alice.Wrap([]byte("x")); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Wrap() error = %v, want ErrInvalidState", err)
	}
	if _, err := p.alice.HandleIncoming(wrap(t, p.bob, "x")); !errors.Is(err, ErrInvalidState) {
		t.Errorf("HandleIncoming() error = %v, want ErrInvalidState", err)
	}
	if _, err := p.alice.ConnectRequest(); !errors.Is(err, ErrInvalidState) {
		t.Errorf("ConnectRequest() error = %v, want ErrInvalidState", err)
	}
	if _, err := p.alice.Receive(); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Receive() error = %v, want ErrInvalidState", err)
	}
}

func TestDestroy_DuringHandshake(t *testing.T) {
	p := newPair(t, pairOptions{})
	if _, err := p.alice.ConnectRequest(); err != nil {
		t.Fatalf("ConnectRequest() error = %v", err)
	}
	if p.alice.pending == nil || p.alice.pending.ephemeral == nil {
		t.Fatal("no pending ephemeral after ConnectRequest()")
	}
	if err := p.alice.Destroy(); err != nil {
		t.Fatalf("Destroy() error = %v", err)
	}
	if p.alice.pending != nil {
		t.Error("Destroy() kept the pending handshake")
	}
}

func TestOnStateChange(t *testing.T) {
	p := newPair(t, pairOptions{})
	p.handshake(t)
	if err := p.alice.Destroy(); err != nil {
		t.Fatalf("Destroy() error = %v", err)
	}

	wantAlice := []string{"Idle->AwaitingResponse", "AwaitingResponse->Established", "Established->Closed"}
	wantBob := []string{"Idle->Established"}

	if got := p.aliceEvents.list(); fmt.Sprint(got) != fmt.Sprint(wantAlice) {
		t.Errorf("alice events = %v, want %v", got, wantAlice)
	}
	if got := p.bobEvents.list(); fmt.Sprint(got) != fmt.Sprint(wantBob) {
		t.Errorf("bob events = %v, want %v", got, wantBob)
	}
}

func TestOnStateChange_CanCallBack(t *testing.T) {
	// The callback runs outside the lock, so it may query the session.
	var s *Session
	var seen []State
	signer := newSigner(t, crypto.SignatureEd25519)
	s, err := New(Config{
		Identity:  []byte("alice"),
		Signer:    signer,
		Transport: &stubTransport{},
		OnStateChange: func(_, _ State) {
			seen = append(seen, s.State())
		},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := s.ConnectRequest(); err != nil {
		t.Fatalf("ConnectRequest() error = %v", err)
	}
	if len(seen) != 1 || seen[0] != StateAwaitingResponse {
		t.Errorf("callback saw %v, want [AwaitingResponse]", seen)
	}
}

func TestPrintable(t *testing.T) {
	if got := printable([]byte("bob")); got != `"bob"` {
		t.Errorf("printable(bob) = %s", got)
	}
	long := bytes.Repeat([]byte("a"), 40)
	want := fmt.Sprintf("%q...", long[:32])
	if got := printable(long); got != want {
		t.Errorf("printable(long) = %s, want %s", got, want)
	}
}

func TestVersion(t *testing.T) {
	want := "ssession " + LibraryVersion + " (protocol v1)"
	if got := Version(); got != want {
		t.Errorf("Version() = %q, want %q", got, want)
	}
}
