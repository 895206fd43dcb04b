package commands

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/backkem/ssession/pkg/crypto"
	"github.com/backkem/ssession/pkg/session"
	"github.com/backkem/ssession/pkg/transport"
)

type demoOptions struct {
	sig, kex, cipher string
	confirm          bool
	delay            time.Duration
}

func demoCmd() *cobra.Command {
	var opts demoOptions
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run two sessions over an in-memory pipe",
		Long: "Establish a session between alice and bob over an in-memory pipe,\n" +
			"exchange messages, rekey, and resume bob from a saved snapshot.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDemo(cmd.OutOrStdout(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.sig, "sig", crypto.SignatureECDSAP256.String(), "signature algorithm")
	cmd.Flags().StringVar(&opts.kex, "kex", crypto.KeyAgreementP256.String(), "key agreement")
	cmd.Flags().StringVar(&opts.cipher, "cipher", crypto.CipherAES256GCM.String(), "cipher suite")
	cmd.Flags().BoolVar(&opts.confirm, "key-confirmation", false, "require a Finalize message")
	cmd.Flags().DurationVar(&opts.delay, "delay", 0, "simulated one-way network delay")
	return cmd
}

// lockedWriter serializes writes from both sessions' callbacks.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

func runDemo(w io.Writer, opts demoOptions) error {
	out := &lockedWriter{w: w}

	sig, err := crypto.ParseSignatureAlgorithm(opts.sig)
	if err != nil {
		return err
	}
	kex, err := crypto.ParseKeyAgreementAlgorithm(opts.kex)
	if err != nil {
		return err
	}
	suite, err := crypto.ParseCipherSuite(opts.cipher)
	if err != nil {
		return err
	}

	dir := transport.NewDirectory()
	signers := make(map[string]crypto.Signer)
	for _, name := range []string{"alice", "bob"} {
		signer, err := crypto.GenerateSigner(sig, nil)
		if err != nil {
			return err
		}
		if err := dir.Register([]byte(name), signer.PublicKey()); err != nil {
			return err
		}
		signers[name] = signer
	}
	// Destroy zeroizes the signer, so keep bob's key to resume with later.
	bobPrivate, err := signers["bob"].MarshalPrivate()
	if err != nil {
		return err
	}
	defer crypto.Zeroize(bobPrivate)

	config := transport.DefaultPipeConfig()
	config.ReadTimeout = 10 * time.Second
	config.LoggerFactory = loggerFactory
	pipe := transport.NewPipeWithConfig(config)
	defer pipe.Close()
	pipe.SetCondition(transport.NetworkCondition{DelayMin: opts.delay, DelayMax: opts.delay})
	ep0, ep1 := pipe.Endpoints()

	newConfig := func(name string, carrier transport.Carrier) session.Config {
		return session.Config{
			Identity:        []byte(name),
			Signer:          signers[name],
			Transport:       transport.NewLink(carrier, dir),
			KeyAgreement:    kex,
			Cipher:          suite,
			KeyConfirmation: opts.confirm,
			LoggerFactory:   loggerFactory,
			OnStateChange: func(old, new session.State) {
				fmt.Fprintf(out, "  %-5s %s -> %s\n", name, old, new)
			},
		}
	}

	alice, err := session.New(newConfig("alice", ep0))
	if err != nil {
		return err
	}
	defer alice.Destroy()
	bob, err := session.New(newConfig("bob", ep1))
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "handshake (%s, %s, %s)\n", sig, kex, suite)
	start := time.Now()
	if err := handshake(alice, bob); err != nil {
		return err
	}
	fmt.Fprintf(out, "established in %v\n", time.Since(start).Round(time.Microsecond))

	if err := echo(out, alice, bob, "Hello Bob"); err != nil {
		return err
	}
	if err := echo(out, bob, alice, "Hello Alice"); err != nil {
		return err
	}

	fmt.Fprintln(out, "rekey")
	done := make(chan error, 1)
	go func() {
		// Bob processes the rekey while waiting for data.
		data, err := bob.Receive()
		if err == nil {
			fmt.Fprintf(out, "  bob   received %q\n", data)
		}
		done <- err
	}()
	if err := alice.Rekey(); err != nil {
		return err
	}
	if err := alice.Negotiate(); err != nil {
		return err
	}
	if err := alice.Send([]byte("under new keys")); err != nil {
		return err
	}
	if err := <-done; err != nil {
		return err
	}

	fmt.Fprintln(out, "save and resume bob")
	snapshot, err := bob.Save()
	if err != nil {
		return err
	}
	if err := bob.Destroy(); err != nil {
		return err
	}
	signers["bob"], err = crypto.ParseSigner(sig, bobPrivate)
	if err != nil {
		return err
	}
	resumed, err := session.Restore(newConfig("bob", ep1), snapshot)
	if err != nil {
		return err
	}
	defer resumed.Destroy()

	if err := echo(out, alice, resumed, "still there?"); err != nil {
		return err
	}
	return echo(out, resumed, alice, "yes")
}

func handshake(initiator, responder *session.Session) error {
	done := make(chan error, 1)
	go func() { done <- responder.Negotiate() }()

	if err := initiator.Connect(); err != nil {
		return err
	}
	if err := initiator.Negotiate(); err != nil {
		return err
	}
	return <-done
}

func echo(out io.Writer, from, to *session.Session, text string) error {
	if err := from.Send([]byte(text)); err != nil {
		return err
	}
	data, err := to.Receive()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "  %-5s received %q\n", to.Identity(), data)
	return nil
}
