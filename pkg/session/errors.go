package session

import (
	"errors"
	"fmt"
)

// Session errors. Every error returned by this package matches exactly one of
// the first eight sentinels (or ErrTransport) under errors.Is.
var (
	// ErrInvalidParameter is returned for bad caller input or an unsupported
	// version or algorithm in an inbound message.
	ErrInvalidParameter = errors.New("session: invalid parameter")

	// ErrInvalidState is returned when an operation is not valid in the current state.
	ErrInvalidState = errors.New("session: invalid state")

	// ErrPeerNotFound is returned when the Transport cannot resolve a peer identity.
	ErrPeerNotFound = errors.New("session: peer not found")

	// ErrAuthenticationFailed is returned when a signature, AEAD tag or key
	// confirmation tag does not verify.
	ErrAuthenticationFailed = errors.New("session: authentication failed")

	// ErrDataCorrupt is returned when a checksum or length check fails.
	ErrDataCorrupt = errors.New("session: data corrupt")

	// ErrReplayOrReorder is returned when an envelope's sequence is not newer
	// than the last one accepted.
	ErrReplayOrReorder = errors.New("session: replay or reorder")

	// ErrCryptoFailure is returned when a primitive rejects its input.
	ErrCryptoFailure = errors.New("session: crypto failure")

	// ErrResourceExhausted is returned when a sequence counter is used up.
	ErrResourceExhausted = errors.New("session: resource exhausted")

	// ErrTransport is returned when a Transport send or receive fails.
	ErrTransport = errors.New("session: transport error")

	// ErrMalformed is returned when a message's structure disagrees with its
	// length fields. It matches ErrDataCorrupt.
	ErrMalformed = fmt.Errorf("%w: malformed message", ErrDataCorrupt)
)

// Status is the numeric form of the error taxonomy.
type Status int

const (
	StatusSuccess Status = iota
	StatusInvalidParameter
	StatusInvalidState
	StatusPeerNotFound
	StatusAuthenticationFailed
	StatusDataCorrupt
	StatusReplayOrReorder
	StatusCryptoFailure
	StatusResourceExhausted
	StatusTransportError
	StatusUnknown
)

// String returns a human-readable name for the status.
func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "Success"
	case StatusInvalidParameter:
		return "InvalidParameter"
	case StatusInvalidState:
		return "InvalidState"
	case StatusPeerNotFound:
		return "PeerNotFound"
	case StatusAuthenticationFailed:
		return "AuthenticationFailed"
	case StatusDataCorrupt:
		return "DataCorrupt"
	case StatusReplayOrReorder:
		return "ReplayOrReorder"
	case StatusCryptoFailure:
		return "CryptoFailure"
	case StatusResourceExhausted:
		return "ResourceExhausted"
	case StatusTransportError:
		return "TransportError"
	default:
		return "Unknown"
	}
}

var statusTable = []struct {
	err    error
	status Status
}{
	{ErrInvalidParameter, StatusInvalidParameter},
	{ErrInvalidState, StatusInvalidState},
	{ErrPeerNotFound, StatusPeerNotFound},
	{ErrAuthenticationFailed, StatusAuthenticationFailed},
	{ErrDataCorrupt, StatusDataCorrupt},
	{ErrReplayOrReorder, StatusReplayOrReorder},
	{ErrCryptoFailure, StatusCryptoFailure},
	{ErrResourceExhausted, StatusResourceExhausted},
	{ErrTransport, StatusTransportError},
}

// StatusOf maps err onto the taxonomy. A nil error is StatusSuccess.
func StatusOf(err error) Status {
	if err == nil {
		return StatusSuccess
	}
	for _, e := range statusTable {
		if errors.Is(err, e.err) {
			return e.status
		}
	}
	return StatusUnknown
}
