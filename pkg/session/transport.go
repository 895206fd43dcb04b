package session

// Transport is the caller-owned capability set a Session uses to reach its
// peer. The Session calls it synchronously from whichever goroutine invoked
// the Session method. For one Session, Send is never called from two
// goroutines at once and neither is Receive, but a Send may overlap a
// Receive blocked in another goroutine.
//
// Every value returned by a Transport is treated as untrusted and
// re-validated before use.
type Transport interface {
	// Send delivers one complete message to the peer.
	Send(data []byte) error

	// Receive blocks until one complete message arrives from the peer.
	Receive() ([]byte, error)

	// ResolvePublicKey returns the marshaled long-term public key
	// (crypto.PublicKey.Marshal) registered for identity. It returns an
	// error if the identity is unknown.
	ResolvePublicKey(identity []byte) ([]byte, error)
}
