package session

import "testing"

func TestState_String(t *testing.T) {
	tests := []struct {
		s    State
		want string
	}{
		{StateIdle, "Idle"},
		{StateAwaitingResponse, "AwaitingResponse"},
		{StateAwaitingFinalization, "AwaitingFinalization"},
		{StateEstablished, "Established"},
		{StateFailed, "Failed"},
		{StateClosed, "Closed"},
		{State(99), "Unknown"},
	}

	for _, tt := range tests {
		got := tt.s.String()
		if got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.s, got, tt.want)
		}
	}
}

func TestState_IsTerminal(t *testing.T) {
	for _, s := range []State{StateIdle, StateAwaitingResponse, StateAwaitingFinalization, StateEstablished} {
		if s.IsTerminal() {
			t.Errorf("%s.IsTerminal() = true", s)
		}
	}
	for _, s := range []State{StateFailed, StateClosed} {
		if !s.IsTerminal() {
			t.Errorf("%s.IsTerminal() = false", s)
		}
	}
}

func TestRole_String(t *testing.T) {
	tests := []struct {
		r    Role
		want string
	}{
		{RoleUnknown, "Unknown"},
		{RoleInitiator, "Initiator"},
		{RoleResponder, "Responder"},
		{Role(99), "Unknown"},
	}

	for _, tt := range tests {
		got := tt.r.String()
		if got != tt.want {
			t.Errorf("Role(%d).String() = %q, want %q", tt.r, got, tt.want)
		}
	}
}

func TestRole_IsValid(t *testing.T) {
	if RoleUnknown.IsValid() || Role(99).IsValid() {
		t.Error("undefined role reported valid")
	}
	if !RoleInitiator.IsValid() || !RoleResponder.IsValid() {
		t.Error("defined role reported invalid")
	}
}

func TestFailurePolicy_String(t *testing.T) {
	if FailurePolicyPerMessage.String() != "PerMessage" || FailurePolicyTeardown.String() != "Teardown" {
		t.Error("unexpected policy names")
	}
	if FailurePolicy(7).String() != "Unknown" {
		t.Error("undefined policy not reported as Unknown")
	}
}
