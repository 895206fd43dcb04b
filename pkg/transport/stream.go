package transport

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/backkem/ssession/pkg/container"
	"github.com/pion/logging"
)

// Stream carries session messages over a byte stream such as TCP. Every
// session message is a container whose header states its own size, so
// messages are delimited without extra framing.
type Stream struct {
	conn        net.Conn
	readTimeout time.Duration
	log         logging.LeveledLogger

	readMu  sync.Mutex
	writeMu sync.Mutex

	mu     sync.RWMutex
	closed bool
}

// StreamConfig configures a Stream.
type StreamConfig struct {
	// Conn is the connected stream. Required.
	Conn net.Conn

	// ReadTimeout bounds each Receive. Zero waits forever.
	ReadTimeout time.Duration

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging.NewDefaultLoggerFactory() is used.
	LoggerFactory logging.LoggerFactory
}

// NewStream wraps a connected stream.
func NewStream(config StreamConfig) (*Stream, error) {
	if config.Conn == nil {
		return nil, ErrInvalidAddress
	}
	if config.LoggerFactory == nil {
		config.LoggerFactory = logging.NewDefaultLoggerFactory()
	}
	return &Stream{
		conn:        config.Conn,
		readTimeout: config.ReadTimeout,
		log:         config.LoggerFactory.NewLogger("transport-tcp"),
	}, nil
}

// DialStream connects to a TCP listener at addr.
func DialStream(addr string, config StreamConfig) (*Stream, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	config.Conn = conn
	s, err := NewStream(config)
	if err != nil {
		conn.Close()
		return nil, err
	}
	s.log.Infof("connected to %s", conn.RemoteAddr())
	return s, nil
}

// Send writes one complete container to the stream.
func (s *Stream) Send(data []byte) error {
	if s.isClosed() {
		return ErrClosed
	}
	if len(data) < container.HeaderSize {
		return fmt.Errorf("%w: %d bytes is not a container", ErrInvalidMessage, len(data))
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.log.Debugf("sending %d bytes to %v", len(data), s.conn.RemoteAddr())
	if _, err := s.conn.Write(data); err != nil {
		s.log.Warnf("send failed: %v", err)
		return err
	}
	return nil
}

// Receive reads the next container from the stream. The container is
// returned whole and unverified; the session checks it.
func (s *Stream) Receive() ([]byte, error) {
	s.readMu.Lock()
	defer s.readMu.Unlock()

	if s.isClosed() {
		return nil, ErrClosed
	}
	if s.readTimeout > 0 {
		if err := s.conn.SetReadDeadline(time.Now().Add(s.readTimeout)); err != nil {
			return nil, err
		}
	}

	header := make([]byte, container.HeaderSize)
	if _, err := io.ReadFull(s.conn, header); err != nil {
		return nil, s.readErr(err)
	}
	size, err := container.PayloadSize(header)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}

	data := make([]byte, container.HeaderSize+size)
	copy(data, header)
	if _, err := io.ReadFull(s.conn, data[container.HeaderSize:]); err != nil {
		return nil, s.readErr(err)
	}

	s.log.Debugf("received %d bytes from %v", len(data), s.conn.RemoteAddr())
	return data, nil
}

func (s *Stream) readErr(err error) error {
	if s.isClosed() {
		return ErrClosed
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: %v", ErrClosed, err)
	}
	return err
}

func (s *Stream) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// LocalAddr returns the local network address.
func (s *Stream) LocalAddr() net.Addr {
	return s.conn.LocalAddr()
}

// RemoteAddr returns the remote network address.
func (s *Stream) RemoteAddr() net.Addr {
	return s.conn.RemoteAddr()
}

// Close closes the stream.
func (s *Stream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	return s.conn.Close()
}

// Listener accepts session streams.
type Listener struct {
	listener net.Listener
	config   StreamConfig
	log      logging.LeveledLogger
}

// ListenStream listens for TCP connections on addr (e.g., ":4440").
func ListenStream(addr string, config StreamConfig) (*Listener, error) {
	if config.LoggerFactory == nil {
		config.LoggerFactory = logging.NewDefaultLoggerFactory()
	}
	if addr == "" {
		addr = ":0"
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	l := &Listener{listener: ln, config: config, log: config.LoggerFactory.NewLogger("transport-tcp")}
	l.log.Infof("listening on %s", ln.Addr())
	return l, nil
}

// Accept waits for the next connection.
func (l *Listener) Accept() (*Stream, error) {
	conn, err := l.listener.Accept()
	if err != nil {
		if errors.Is(err, net.ErrClosed) {
			return nil, ErrClosed
		}
		return nil, err
	}
	l.log.Infof("accepted connection from %s", conn.RemoteAddr())
	config := l.config
	config.Conn = conn
	return NewStream(config)
}

// Addr returns the listener's network address.
func (l *Listener) Addr() net.Addr {
	return l.listener.Addr()
}

// Close stops listening.
func (l *Listener) Close() error {
	return l.listener.Close()
}
