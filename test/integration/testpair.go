// Package integration provides test infrastructure for end-to-end session tests.
package integration

import (
	"testing"
	"time"

	"github.com/backkem/ssession/pkg/crypto"
	"github.com/backkem/ssession/pkg/session"
	"github.com/backkem/ssession/pkg/transport"
	"github.com/pion/logging"
)

// CarrierFactory creates two connected carriers, one for each side of a pair.
// Each carrier type (pipe, UDP, TCP) provides its own factory.
type CarrierFactory[C transport.Carrier] func(t *testing.T, config TestPairConfig) (alice, bob C)

// TestPair holds two established sessions and the carriers beneath them.
// Generic over the carrier type for typed access to carrier-specific methods.
//
// Example usage:
//
//	pair := NewTestPair(t, PipeCarriers)
//	defer pair.Close()
//	pair.Exchange(pair.Alice, pair.Bob, "hello")
type TestPair[C transport.Carrier] struct {
	// Alice initiated the handshake.
	Alice *session.Session

	// Bob answered it.
	Bob *session.Session

	AliceCarrier C
	BobCarrier   C

	// Directory holds both long-term public keys.
	Directory *transport.Directory

	// Config is the configuration the pair was built with.
	Config TestPairConfig

	t       *testing.T
	private map[string][]byte
}

// TestPairConfig configures the test pair creation.
type TestPairConfig struct {
	Signature       crypto.SignatureAlgorithm
	KeyAgreement    crypto.KeyAgreementAlgorithm
	Cipher          crypto.CipherSuite
	KeyConfirmation bool
	FailurePolicy   session.FailurePolicy

	// HandshakeTimeout bounds the initial handshake.
	// Defaults to 10 seconds.
	HandshakeTimeout time.Duration

	// ReadTimeout bounds every carrier Receive.
	// Defaults to 5 seconds.
	ReadTimeout time.Duration

	// LoggerFactory for logging. If nil, uses DefaultLoggerFactory.
	LoggerFactory logging.LoggerFactory
}

// DefaultTestPairConfig returns default configuration for test pairs.
func DefaultTestPairConfig() TestPairConfig {
	return TestPairConfig{
		Signature:        crypto.SignatureECDSAP256,
		KeyAgreement:     crypto.KeyAgreementP256,
		Cipher:           crypto.CipherAES256GCM,
		HandshakeTimeout: 10 * time.Second,
		ReadTimeout:      5 * time.Second,
	}
}

// NewTestPair creates an established pair with the default configuration.
func NewTestPair[C transport.Carrier](t *testing.T, carriers CarrierFactory[C]) *TestPair[C] {
	return NewTestPairWithConfig(t, carriers, DefaultTestPairConfig())
}

// NewTestPairWithConfig creates an established pair with custom configuration.
func NewTestPairWithConfig[C transport.Carrier](
	t *testing.T,
	carriers CarrierFactory[C],
	config TestPairConfig,
) *TestPair[C] {
	t.Helper()

	if config.HandshakeTimeout == 0 {
		config.HandshakeTimeout = 10 * time.Second
	}
	if config.ReadTimeout == 0 {
		config.ReadTimeout = 5 * time.Second
	}
	if config.LoggerFactory == nil {
		config.LoggerFactory = logging.NewDefaultLoggerFactory()
	}

	p := &TestPair[C]{
		Directory: transport.NewDirectory(),
		Config:    config,
		t:         t,
		private:   make(map[string][]byte),
	}

	signers := make(map[string]crypto.Signer)
	for _, name := range []string{"alice", "bob"} {
		signer, err := crypto.GenerateSigner(config.Signature, nil)
		if err != nil {
			t.Fatalf("GenerateSigner(%s) error = %v", config.Signature, err)
		}
		if err := p.Directory.Register([]byte(name), signer.PublicKey()); err != nil {
			t.Fatalf("Register(%s) error = %v", name, err)
		}
		if p.private[name], err = signer.MarshalPrivate(); err != nil {
			t.Fatalf("MarshalPrivate() error = %v", err)
		}
		signers[name] = signer
	}

	p.AliceCarrier, p.BobCarrier = carriers(t, config)

	var err error
	if p.Alice, err = session.New(p.SessionConfig("alice", p.AliceCarrier, signers["alice"])); err != nil {
		t.Fatalf("session.New(alice) error = %v", err)
	}
	if p.Bob, err = session.New(p.SessionConfig("bob", p.BobCarrier, signers["bob"])); err != nil {
		t.Fatalf("session.New(bob) error = %v", err)
	}

	done := make(chan error, 2)
	go func() { done <- p.Bob.Negotiate() }()
	go func() {
		if err := p.Alice.Connect(); err != nil {
			done <- err
			return
		}
		done <- p.Alice.Negotiate()
	}()

	deadline := time.After(config.HandshakeTimeout)
	for i := 0; i < 2; i++ {
		select {
		case err := <-done:
			if err != nil {
				t.Fatalf("handshake failed: %v", err)
			}
		case <-deadline:
			t.Fatalf("handshake did not complete within %v", config.HandshakeTimeout)
		}
	}
	return p
}

// SessionConfig returns the session configuration for one side of the pair.
func (p *TestPair[C]) SessionConfig(name string, carrier transport.Carrier, signer crypto.Signer) session.Config {
	return session.Config{
		Identity:        []byte(name),
		Signer:          signer,
		Transport:       transport.NewLink(carrier, p.Directory),
		KeyAgreement:    p.Config.KeyAgreement,
		Cipher:          p.Config.Cipher,
		KeyConfirmation: p.Config.KeyConfirmation,
		FailurePolicy:   p.Config.FailurePolicy,
		LoggerFactory:   p.Config.LoggerFactory,
	}
}

// Signer restores a fresh copy of name's long-term key. Destroy zeroizes a
// session's signer, so a restored session needs its own.
func (p *TestPair[C]) Signer(name string) crypto.Signer {
	p.t.Helper()
	signer, err := crypto.ParseSigner(p.Config.Signature, p.private[name])
	if err != nil {
		p.t.Fatalf("ParseSigner(%s) error = %v", name, err)
	}
	return signer
}

// Exchange sends text from one session and checks that the other receives it.
func (p *TestPair[C]) Exchange(from, to *session.Session, text string) {
	p.t.Helper()
	if err := from.Send([]byte(text)); err != nil {
		p.t.Fatalf("Send(%q) error = %v", text, err)
	}
	got, err := to.Receive()
	if err != nil {
		p.t.Fatalf("Receive() error = %v", err)
	}
	if string(got) != text {
		p.t.Errorf("Receive() = %q, want %q", got, text)
	}
}

// Rekey runs a rekey started by initiator while the other side waits in
// Receive, then delivers text under the new keys.
func (p *TestPair[C]) Rekey(initiator, responder *session.Session, text string) {
	p.t.Helper()

	received := make(chan error, 1)
	go func() {
		got, err := responder.Receive()
		if err == nil && string(got) != text {
			p.t.Errorf("Receive() after rekey = %q, want %q", got, text)
		}
		received <- err
	}()

	if err := initiator.Rekey(); err != nil {
		p.t.Fatalf("Rekey() error = %v", err)
	}
	if err := initiator.Negotiate(); err != nil {
		p.t.Fatalf("Negotiate() error = %v", err)
	}
	if err := initiator.Send([]byte(text)); err != nil {
		p.t.Fatalf("Send() error = %v", err)
	}

	select {
	case err := <-received:
		if err != nil {
			p.t.Fatalf("responder Receive() error = %v", err)
		}
	case <-time.After(p.Config.HandshakeTimeout):
		p.t.Fatal("rekey did not complete")
	}
}

// Close destroys both sessions and closes the carriers.
// Should be called with defer after creating the pair.
func (p *TestPair[C]) Close() {
	for _, s := range []*session.Session{p.Alice, p.Bob} {
		if s != nil && s.State() != session.StateClosed {
			s.Destroy()
		}
	}
	p.AliceCarrier.Close()
	p.BobCarrier.Close()
	for _, key := range p.private {
		crypto.Zeroize(key)
	}
}

// PipeCarriers connects the two sides through a fresh in-memory pipe.
func PipeCarriers(t *testing.T, config TestPairConfig) (*transport.Endpoint, *transport.Endpoint) {
	pipeConfig := transport.DefaultPipeConfig()
	pipeConfig.ReadTimeout = config.ReadTimeout
	pipeConfig.LoggerFactory = config.LoggerFactory
	pipe := transport.NewPipeWithConfig(pipeConfig)
	t.Cleanup(func() { pipe.Close() })
	return pipe.Endpoints()
}

// OnPipe returns a factory that uses the endpoints of an existing pipe, so a
// test can change its network condition once the pair is established.
func OnPipe(pipe *transport.Pipe) CarrierFactory[*transport.Endpoint] {
	return func(t *testing.T, config TestPairConfig) (*transport.Endpoint, *transport.Endpoint) {
		return pipe.Endpoints()
	}
}

// UDPCarriers connects the two sides over loopback UDP.
func UDPCarriers(t *testing.T, config TestPairConfig) (*transport.Endpoint, *transport.Endpoint) {
	t.Helper()
	bob, err := transport.NewEndpoint(transport.EndpointConfig{
		ListenAddr:    "127.0.0.1:0",
		ReadTimeout:   config.ReadTimeout,
		LoggerFactory: config.LoggerFactory,
	})
	if err != nil {
		t.Fatalf("NewEndpoint(bob) error = %v", err)
	}
	alice, err := transport.NewEndpoint(transport.EndpointConfig{
		ListenAddr:    "127.0.0.1:0",
		PeerAddr:      bob.LocalAddr(),
		ReadTimeout:   config.ReadTimeout,
		LoggerFactory: config.LoggerFactory,
	})
	if err != nil {
		bob.Close()
		t.Fatalf("NewEndpoint(alice) error = %v", err)
	}
	return alice, bob
}

// StreamCarriers connects the two sides over a loopback TCP connection.
func StreamCarriers(t *testing.T, config TestPairConfig) (*transport.Stream, *transport.Stream) {
	t.Helper()
	streamConfig := transport.StreamConfig{
		ReadTimeout:   config.ReadTimeout,
		LoggerFactory: config.LoggerFactory,
	}

	ln, err := transport.ListenStream("127.0.0.1:0", streamConfig)
	if err != nil {
		t.Fatalf("ListenStream() error = %v", err)
	}
	defer ln.Close()

	accepted := make(chan *transport.Stream, 1)
	go func() {
		s, err := ln.Accept()
		if err != nil {
			accepted <- nil
			return
		}
		accepted <- s
	}()

	alice, err := transport.DialStream(ln.Addr().String(), streamConfig)
	if err != nil {
		t.Fatalf("DialStream() error = %v", err)
	}
	bob := <-accepted
	if bob == nil {
		alice.Close()
		t.Fatal("Accept() failed")
	}
	return alice, bob
}
