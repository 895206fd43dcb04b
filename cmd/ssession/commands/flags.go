package commands

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/backkem/ssession/pkg/crypto"
	"github.com/backkem/ssession/pkg/session"
	"github.com/backkem/ssession/pkg/transport"
)

// sessionFlags are shared by listen and connect.
type sessionFlags struct {
	keyFile   string
	identity  string
	peersFile string
	peer      string
	network   string
	addr      string
	kex       string
	cipher    string
	confirm   bool
	teardown  bool
	timeout   time.Duration
}

func (f *sessionFlags) register(cmd *cobra.Command, defaultAddr string) {
	cmd.Flags().StringVar(&f.keyFile, "key", "", "key file written by keygen")
	cmd.Flags().StringVar(&f.identity, "identity", "", "local identity")
	cmd.Flags().StringVar(&f.peersFile, "peers", "", "peers file of \"identity hex-key\" lines")
	cmd.Flags().StringVar(&f.peer, "peer", "", "only accept this peer identity")
	cmd.Flags().StringVar(&f.network, "network", "tcp", "carrier: tcp or udp")
	cmd.Flags().StringVar(&f.addr, "addr", defaultAddr, "network address")
	cmd.Flags().StringVar(&f.kex, "kex", crypto.KeyAgreementP256.String(), "key agreement (p256, x25519, ml-kem-768)")
	cmd.Flags().StringVar(&f.cipher, "cipher", crypto.CipherAES256GCM.String(), "cipher suite (aes-256-gcm, chacha20-poly1305)")
	cmd.Flags().BoolVar(&f.confirm, "key-confirmation", false, "require a Finalize message")
	cmd.Flags().BoolVar(&f.teardown, "teardown", false, "tear the session down on the first bad message")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 30*time.Second, "read timeout")
}

func (f *sessionFlags) directory() (*transport.Directory, error) {
	dir := transport.NewDirectory()
	if f.peersFile == "" {
		return nil, fmt.Errorf("peers file required (--peers)")
	}
	file, err := os.Open(f.peersFile)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	if err := dir.Load(file); err != nil {
		return nil, fmt.Errorf("%s: %w", f.peersFile, err)
	}
	return dir, nil
}

// newSession builds a session over carrier.
func (f *sessionFlags) newSession(carrier transport.Carrier) (*session.Session, error) {
	if f.identity == "" {
		return nil, fmt.Errorf("identity required (--identity)")
	}
	kex, err := crypto.ParseKeyAgreementAlgorithm(f.kex)
	if err != nil {
		return nil, err
	}
	suite, err := crypto.ParseCipherSuite(f.cipher)
	if err != nil {
		return nil, err
	}
	dir, err := f.directory()
	if err != nil {
		return nil, err
	}
	signer, err := readKeyFile(f.keyFile)
	if err != nil {
		return nil, err
	}

	config := session.Config{
		Identity:        []byte(f.identity),
		Signer:          signer,
		Transport:       transport.NewLink(carrier, dir),
		KeyAgreement:    kex,
		Cipher:          suite,
		KeyConfirmation: f.confirm,
		LoggerFactory:   loggerFactory,
		OnStateChange: func(old, new session.State) {
			fmt.Fprintf(os.Stderr, "state: %s -> %s\n", old, new)
		},
	}
	if f.peer != "" {
		config.PeerIdentity = []byte(f.peer)
	}
	if f.teardown {
		config.FailurePolicy = session.FailurePolicyTeardown
	}

	s, err := session.New(config)
	if err != nil {
		signer.Zeroize()
		return nil, err
	}
	return s, nil
}

// listen waits for one peer on the configured network.
func (f *sessionFlags) listen() (transport.Carrier, error) {
	switch f.network {
	case "udp":
		return transport.NewEndpoint(transport.EndpointConfig{
			ListenAddr:    f.addr,
			ReadTimeout:   f.timeout,
			LoggerFactory: loggerFactory,
		})
	case "tcp":
		ln, err := transport.ListenStream(f.addr, transport.StreamConfig{
			ReadTimeout:   f.timeout,
			LoggerFactory: loggerFactory,
		})
		if err != nil {
			return nil, err
		}
		defer ln.Close()
		fmt.Fprintf(os.Stderr, "listening on %s\n", ln.Addr())
		return ln.Accept()
	default:
		return nil, fmt.Errorf("unknown network %q", f.network)
	}
}

// dial reaches the listening peer on the configured network.
func (f *sessionFlags) dial() (transport.Carrier, error) {
	switch f.network {
	case "udp":
		peer, err := net.ResolveUDPAddr("udp", f.addr)
		if err != nil {
			return nil, err
		}
		return transport.NewEndpoint(transport.EndpointConfig{
			PeerAddr:      peer,
			ReadTimeout:   f.timeout,
			LoggerFactory: loggerFactory,
		})
	case "tcp":
		return transport.DialStream(f.addr, transport.StreamConfig{
			ReadTimeout:   f.timeout,
			LoggerFactory: loggerFactory,
		})
	default:
		return nil, fmt.Errorf("unknown network %q", f.network)
	}
}
