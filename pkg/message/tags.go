// Package message implements the session wire codec: the connect request and
// response exchanged during the handshake, the optional key confirmation
// message, and the envelope carrying application data. Every message travels
// inside a signed container (see package container) whose tag selects the
// body layout. All integers are big-endian.
package message

import "github.com/backkem/ssession/pkg/container"

// ProtocolVersion is the only handshake version this package produces or accepts.
const ProtocolVersion uint16 = 1

// Container tags.
var (
	TagConnectRequest  = container.Tag{'T', 'S', 'R', 'Q'}
	TagConnectResponse = container.Tag{'T', 'S', 'R', 'S'}
	TagFinalize        = container.Tag{'T', 'S', 'F', 'N'}
	TagEnvelope        = container.Tag{'T', 'S', 'W', 'M'}
	TagSavedSession    = container.Tag{'T', 'S', 'S', 'C'}
)

// Kind classifies a container tag.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindConnectRequest
	KindConnectResponse
	KindFinalize
	KindEnvelope
	KindSavedSession
)

// String returns a human-readable name for the kind.
func (k Kind) String() string {
	switch k {
	case KindConnectRequest:
		return "ConnectRequest"
	case KindConnectResponse:
		return "ConnectResponse"
	case KindFinalize:
		return "Finalize"
	case KindEnvelope:
		return "Envelope"
	case KindSavedSession:
		return "SavedSession"
	default:
		return "Unknown"
	}
}

// KindOf maps a container tag to its kind.
func KindOf(tag container.Tag) Kind {
	switch tag {
	case TagConnectRequest:
		return KindConnectRequest
	case TagConnectResponse:
		return KindConnectResponse
	case TagFinalize:
		return KindFinalize
	case TagEnvelope:
		return KindEnvelope
	case TagSavedSession:
		return KindSavedSession
	default:
		return KindUnknown
	}
}

// Tag returns the container tag for k.
func (k Kind) Tag() container.Tag {
	switch k {
	case KindConnectRequest:
		return TagConnectRequest
	case KindConnectResponse:
		return TagConnectResponse
	case KindFinalize:
		return TagFinalize
	case KindEnvelope:
		return TagEnvelope
	case KindSavedSession:
		return TagSavedSession
	default:
		return container.Tag{}
	}
}
