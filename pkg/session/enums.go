// Package session implements the secure session: a two-party authenticated
// key exchange followed by an encrypted, replay-protected message channel.
//
// A Session is driven by its owner. The initiator calls Connect (or
// ConnectRequest to get the bytes and send them itself); the responder feeds
// every inbound message to HandleIncoming. Once both sides are Established,
// Send/Receive (or Wrap/Unwrap) carry application data.
//
// Handshake flow:
//
//	Initiator                              Responder
//	---------                              ---------
//	ConnectRequest  ----- TSRQ ----->      HandleIncoming
//	                <---- TSRS ------      (Established, or AwaitingFinalization)
//	HandleIncoming
//	(Established)   ----- TSFN ----->      HandleIncoming   (key confirmation only)
//	                                       (Established)
//
// The package performs no I/O of its own beyond the caller's Transport.
package session

// State is the session lifecycle state.
type State int

const (
	// StateIdle is a fresh session with no handshake in progress.
	StateIdle State = iota

	// StateAwaitingResponse means a connect request was sent and the
	// initiator is waiting for the connect response.
	StateAwaitingResponse

	// StateAwaitingFinalization means the responder answered a request that
	// asked for key confirmation and is waiting for the Finalize message.
	StateAwaitingFinalization

	// StateEstablished is the only state in which application data flows.
	StateEstablished

	// StateFailed is terminal. All key material has been released.
	StateFailed

	// StateClosed is terminal. The session was destroyed by its owner.
	StateClosed
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateAwaitingResponse:
		return "AwaitingResponse"
	case StateAwaitingFinalization:
		return "AwaitingFinalization"
	case StateEstablished:
		return "Established"
	case StateFailed:
		return "Failed"
	case StateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// IsTerminal returns true for Failed and Closed.
func (s State) IsTerminal() bool {
	return s == StateFailed || s == StateClosed
}

// Role identifies which side of the most recent handshake the local node played.
// It determines which directional key encrypts and which decrypts.
type Role int

const (
	// RoleUnknown means no handshake has started yet.
	RoleUnknown Role = iota

	// RoleInitiator encrypts with the I2R key and decrypts with R2I.
	RoleInitiator

	// RoleResponder encrypts with the R2I key and decrypts with I2R.
	RoleResponder
)

// String returns a human-readable name for the role.
func (r Role) String() string {
	switch r {
	case RoleInitiator:
		return "Initiator"
	case RoleResponder:
		return "Responder"
	default:
		return "Unknown"
	}
}

// IsValid returns true if the role is Initiator or Responder.
func (r Role) IsValid() bool {
	return r == RoleInitiator || r == RoleResponder
}

// FailurePolicy controls how an Established session reacts to an application
// message that fails authentication or integrity checks.
type FailurePolicy int

const (
	// FailurePolicyPerMessage rejects the message and keeps the session.
	FailurePolicyPerMessage FailurePolicy = iota

	// FailurePolicyTeardown rejects the message and moves the session to Failed.
	FailurePolicyTeardown
)

// String returns a human-readable name for the policy.
func (p FailurePolicy) String() string {
	switch p {
	case FailurePolicyPerMessage:
		return "PerMessage"
	case FailurePolicyTeardown:
		return "Teardown"
	default:
		return "Unknown"
	}
}
