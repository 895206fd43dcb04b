package transport

import "errors"

// Transport errors.
var (
	// ErrClosed is returned when an operation is attempted on a closed transport.
	ErrClosed = errors.New("transport: closed")

	// ErrInvalidAddress is returned when no peer address is known or configured.
	ErrInvalidAddress = errors.New("transport: invalid address")

	// ErrMessageTooLarge is returned when a message exceeds the maximum size.
	ErrMessageTooLarge = errors.New("transport: message too large")

	// ErrInvalidMessage is returned when a stream carries something that is
	// not a container.
	ErrInvalidMessage = errors.New("transport: invalid message")

	// ErrTimeout is returned when a Receive deadline expires.
	ErrTimeout = errors.New("transport: receive timed out")

	// ErrUnknownIdentity is returned when the directory has no key for an identity.
	ErrUnknownIdentity = errors.New("transport: unknown identity")

	// ErrInvalidIdentity is returned when registering an empty identity.
	ErrInvalidIdentity = errors.New("transport: invalid identity")
)
