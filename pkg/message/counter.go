package message

import (
	"fmt"
	"sync"
)

// SessionCounter hands out outgoing sequence numbers for one direction of a
// session. The first value is 1. Once 0xFFFFFFFF has been issued the counter
// is exhausted and the session must be rekeyed. It is safe for concurrent use.
type SessionCounter struct {
	mu        sync.Mutex
	next      uint32
	exhausted bool
}

// NewSessionCounter creates a counter whose first value is 1.
func NewSessionCounter() *SessionCounter {
	return &SessionCounter{next: 1}
}

// NewSessionCounterWithValue creates a counter whose next value is next.
// Used when restoring a saved session. A next of 0 means the counter was
// already exhausted.
func NewSessionCounterWithValue(next uint32) *SessionCounter {
	return &SessionCounter{next: next, exhausted: next == 0}
}

// Next returns the next sequence number.
// Returns ErrCounterExhausted once the 32-bit space is used up.
func (c *SessionCounter) Next() (uint32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.exhausted {
		return 0, ErrCounterExhausted
	}

	current := c.next
	c.next++
	if c.next == 0 {
		c.exhausted = true
	}
	return current, nil
}

// Peek returns the value Next would return, or 0 if exhausted.
func (c *SessionCounter) Peek() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.exhausted {
		return 0
	}
	return c.next
}

// IsExhausted returns true if the counter has wrapped.
func (c *SessionCounter) IsExhausted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exhausted
}

// ReceptionState tracks the last accepted sequence number for one direction.
// A sequence is acceptable only if it is strictly greater than the last one
// accepted; there is no reordering window.
//
// Check and Commit are split so that a message can be fully authenticated
// between the two. A message that fails after Check leaves the state untouched.
type ReceptionState struct {
	mu   sync.Mutex
	last uint32
}

// NewReceptionState creates a state that accepts any sequence above last.
func NewReceptionState(last uint32) *ReceptionState {
	return &ReceptionState{last: last}
}

// Check returns ErrStaleSequence if sequence is not newer than the last
// accepted value. It never mutates the state.
func (r *ReceptionState) Check(sequence uint32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sequence <= r.last {
		return fmt.Errorf("%w: got %d, last %d", ErrStaleSequence, sequence, r.last)
	}
	return nil
}

// Commit records sequence as accepted. It re-checks ordering so that two
// racing commits cannot move the state backwards.
func (r *ReceptionState) Commit(sequence uint32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sequence <= r.last {
		return fmt.Errorf("%w: got %d, last %d", ErrStaleSequence, sequence, r.last)
	}
	r.last = sequence
	return nil
}

// Last returns the last accepted sequence, 0 if none.
func (r *ReceptionState) Last() uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}
