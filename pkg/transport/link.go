// Package transport provides caller-side building blocks for carrying a
// session: datagram endpoints (UDP or an in-memory pipe), TCP streams, a
// key directory, and Link, which combines a carrier with a directory into
// something a session can use directly.
package transport

// Carrier moves complete session messages to and from one peer.
// Endpoint and Stream implement it.
type Carrier interface {
	Send(data []byte) error
	Receive() ([]byte, error)
	Close() error
}

// Link pairs a Carrier with a Directory. It satisfies the session package's
// Transport interface.
type Link struct {
	carrier   Carrier
	directory *Directory
}

// NewLink creates a Link.
func NewLink(carrier Carrier, directory *Directory) *Link {
	return &Link{carrier: carrier, directory: directory}
}

// Send delivers one message through the carrier.
func (l *Link) Send(data []byte) error {
	return l.carrier.Send(data)
}

// Receive returns the next message from the carrier.
func (l *Link) Receive() ([]byte, error) {
	return l.carrier.Receive()
}

// ResolvePublicKey looks identity up in the directory.
func (l *Link) ResolvePublicKey(identity []byte) ([]byte, error) {
	if l.directory == nil {
		return nil, ErrUnknownIdentity
	}
	return l.directory.Lookup(identity)
}

// Close closes the carrier.
func (l *Link) Close() error {
	return l.carrier.Close()
}

var (
	_ Carrier = (*Endpoint)(nil)
	_ Carrier = (*Stream)(nil)
)
