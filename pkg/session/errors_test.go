package session

import (
	"errors"
	"fmt"
	"testing"
)

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err  error
		want Status
	}{
		{nil, StatusSuccess},
		{ErrInvalidParameter, StatusInvalidParameter},
		{fmt.Errorf("%w: detail", ErrInvalidState), StatusInvalidState},
		{fmt.Errorf("outer: %w", fmt.Errorf("%w: inner", ErrPeerNotFound)), StatusPeerNotFound},
		{ErrAuthenticationFailed, StatusAuthenticationFailed},
		{ErrDataCorrupt, StatusDataCorrupt},
		{ErrMalformed, StatusDataCorrupt},
		{fmt.Errorf("%w: length", ErrMalformed), StatusDataCorrupt},
		{ErrReplayOrReorder, StatusReplayOrReorder},
		{ErrCryptoFailure, StatusCryptoFailure},
		{ErrResourceExhausted, StatusResourceExhausted},
		{ErrTransport, StatusTransportError},
		{errors.New("something else"), StatusUnknown},
	}

	for _, tt := range tests {
		if got := StatusOf(tt.err); got != tt.want {
			t.Errorf("StatusOf(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
}

func TestStatus_String(t *testing.T) {
	tests := []struct {
		s    Status
		want string
	}{
		{StatusSuccess, "Success"},
		{StatusInvalidParameter, "InvalidParameter"},
		{StatusInvalidState, "InvalidState"},
		{StatusPeerNotFound, "PeerNotFound"},
		{StatusAuthenticationFailed, "AuthenticationFailed"},
		{StatusDataCorrupt, "DataCorrupt"},
		{StatusReplayOrReorder, "ReplayOrReorder"},
		{StatusCryptoFailure, "CryptoFailure"},
		{StatusResourceExhausted, "ResourceExhausted"},
		{StatusTransportError, "TransportError"},
		{StatusUnknown, "Unknown"},
		{Status(42), "Unknown"},
	}

	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("Status(%d).String() = %q, want %q", tt.s, got, tt.want)
		}
	}
}

func TestIsFatal(t *testing.T) {
	fatal := []error{ErrAuthenticationFailed, ErrDataCorrupt, ErrMalformed, ErrCryptoFailure}
	for _, err := range fatal {
		if !isFatal(fmt.Errorf("%w: x", err)) {
			t.Errorf("isFatal(%v) = false", err)
		}
	}
	recoverable := []error{ErrInvalidParameter, ErrInvalidState, ErrPeerNotFound, ErrReplayOrReorder, ErrTransport}
	for _, err := range recoverable {
		if isFatal(err) {
			t.Errorf("isFatal(%v) = true", err)
		}
	}
}
