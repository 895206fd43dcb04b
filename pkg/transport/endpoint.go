package transport

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/pion/logging"
)

// MaxDatagramSize is the largest message an Endpoint sends or receives.
const MaxDatagramSize = 65507

// Endpoint carries session messages as datagrams over a net.PacketConn,
// one message per packet, to a single peer.
//
// If no peer address is configured the endpoint learns it from the first
// packet received and ignores packets from anywhere else afterwards.
type Endpoint struct {
	conn        net.PacketConn
	readTimeout time.Duration
	log         logging.LeveledLogger

	readMu sync.Mutex
	buf    []byte

	mu     sync.RWMutex
	peer   net.Addr
	closed bool
}

// EndpointConfig configures a UDP Endpoint.
type EndpointConfig struct {
	// Conn is an optional pre-existing PacketConn to use.
	// If nil, a new UDP socket is opened on ListenAddr.
	Conn net.PacketConn

	// ListenAddr is the address to listen on (e.g., ":4440").
	// Ignored if Conn is provided. Default: an ephemeral port.
	ListenAddr string

	// PeerAddr is the address messages are sent to. Optional for the
	// listening side.
	PeerAddr net.Addr

	// ReadTimeout bounds each Receive. Zero waits forever.
	ReadTimeout time.Duration

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging.NewDefaultLoggerFactory() is used.
	LoggerFactory logging.LoggerFactory
}

// NewEndpoint creates a UDP endpoint with the given configuration.
func NewEndpoint(config EndpointConfig) (*Endpoint, error) {
	if config.LoggerFactory == nil {
		config.LoggerFactory = logging.NewDefaultLoggerFactory()
	}

	conn := config.Conn
	if conn == nil {
		addr := config.ListenAddr
		if addr == "" {
			addr = ":0"
		}
		var err error
		if conn, err = net.ListenPacket("udp", addr); err != nil {
			return nil, err
		}
	}

	e := newEndpoint(conn, config.PeerAddr, config.ReadTimeout, config.LoggerFactory.NewLogger("transport-udp"))
	e.log.Infof("UDP endpoint listening on %s", conn.LocalAddr())
	return e, nil
}

func newEndpoint(conn net.PacketConn, peer net.Addr, readTimeout time.Duration, log logging.LeveledLogger) *Endpoint {
	return &Endpoint{
		conn:        conn,
		peer:        peer,
		readTimeout: readTimeout,
		log:         log,
		buf:         make([]byte, MaxDatagramSize),
	}
}

// Send writes one message to the peer.
func (e *Endpoint) Send(data []byte) error {
	e.mu.RLock()
	closed, peer := e.closed, e.peer
	e.mu.RUnlock()

	if closed {
		return ErrClosed
	}
	if peer == nil {
		return ErrInvalidAddress
	}
	if len(data) > MaxDatagramSize {
		return fmt.Errorf("%w: %d bytes", ErrMessageTooLarge, len(data))
	}

	e.log.Debugf("sending %d bytes to %v", len(data), peer)
	if _, err := e.conn.WriteTo(data, peer); err != nil {
		e.log.Warnf("send failed: %v", err)
		return err
	}
	return nil
}

// Receive blocks until one message arrives from the peer, or the read
// timeout expires.
func (e *Endpoint) Receive() ([]byte, error) {
	e.readMu.Lock()
	defer e.readMu.Unlock()

	for {
		if e.isClosed() {
			return nil, ErrClosed
		}
		if e.readTimeout > 0 {
			if err := e.conn.SetReadDeadline(time.Now().Add(e.readTimeout)); err != nil {
				return nil, err
			}
		}

		n, addr, err := e.conn.ReadFrom(e.buf)
		if err != nil {
			if e.isClosed() {
				return nil, ErrClosed
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				return nil, fmt.Errorf("%w: %v", ErrTimeout, err)
			}
			return nil, err
		}
		if n == 0 {
			continue
		}
		if !e.acceptFrom(addr) {
			e.log.Warnf("dropping %d bytes from unexpected sender %v", n, addr)
			continue
		}

		e.log.Debugf("received %d bytes from %v", n, addr)
		return append([]byte(nil), e.buf[:n]...), nil
	}
}

// acceptFrom reports whether addr is the peer, adopting it if no peer is set.
func (e *Endpoint) acceptFrom(addr net.Addr) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.peer == nil {
		e.peer = addr
		e.log.Infof("peer is %v", addr)
		return true
	}
	return addr != nil && addr.String() == e.peer.String()
}

func (e *Endpoint) isClosed() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.closed
}

// LocalAddr returns the local address the endpoint is bound to.
func (e *Endpoint) LocalAddr() net.Addr {
	return e.conn.LocalAddr()
}

// PeerAddr returns the peer address, or nil if none is known yet.
func (e *Endpoint) PeerAddr() net.Addr {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.peer
}

// Close closes the underlying connection and unblocks a pending Receive.
func (e *Endpoint) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	e.log.Debugf("closing endpoint %v", e.conn.LocalAddr())
	_ = e.conn.SetReadDeadline(time.Now())
	return e.conn.Close()
}
