package message

import "errors"

// Wire codec errors.
var (
	// Decoding errors
	ErrTooShort           = errors.New("message: body too short")
	ErrTrailingData       = errors.New("message: trailing bytes after body")
	ErrLengthMismatch     = errors.New("message: length field disagrees with body size")
	ErrUnknownTag         = errors.New("message: unknown container tag")
	ErrUnsupportedVersion = errors.New("message: unsupported protocol version")
	ErrEmptyIdentity      = errors.New("message: empty sender identity")
	ErrFieldTooLong       = errors.New("message: field exceeds its length prefix")

	// Counter errors
	ErrCounterExhausted = errors.New("message: sequence counter exhausted")
	ErrStaleSequence    = errors.New("message: sequence not greater than last accepted")
)
