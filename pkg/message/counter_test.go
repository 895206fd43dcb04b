package message

import (
	"errors"
	"sync"
	"testing"
)

func TestSessionCounterNext(t *testing.T) {
	c := NewSessionCounter()
	for want := uint32(1); want <= 10; want++ {
		v, err := c.Next()
		if err != nil {
			t.Fatalf("Next() error: %v", err)
		}
		if v != want {
			t.Errorf("Next() = %d, want %d", v, want)
		}
	}
	if c.Peek() != 11 {
		t.Errorf("Peek() = %d, want 11", c.Peek())
	}
}

func TestSessionCounterExhaustion(t *testing.T) {
	c := NewSessionCounterWithValue(0xFFFFFFFE)

	for _, want := range []uint32{0xFFFFFFFE, 0xFFFFFFFF} {
		v, err := c.Next()
		if err != nil {
			t.Fatalf("Next() error: %v", err)
		}
		if v != want {
			t.Errorf("Next() = %#x, want %#x", v, want)
		}
	}

	if !c.IsExhausted() {
		t.Error("counter should be exhausted after issuing 0xFFFFFFFF")
	}
	if _, err := c.Next(); !errors.Is(err, ErrCounterExhausted) {
		t.Errorf("Next() err = %v, want ErrCounterExhausted", err)
	}
	if c.Peek() != 0 {
		t.Errorf("Peek() = %d, want 0", c.Peek())
	}

	restored := NewSessionCounterWithValue(c.Peek())
	if !restored.IsExhausted() {
		t.Error("restored counter should stay exhausted")
	}
}

func TestSessionCounterConcurrent(t *testing.T) {
	c := NewSessionCounter()
	const numGoroutines = 50
	const opsPerGoroutine = 100

	var wg sync.WaitGroup
	values := make(chan uint32, numGoroutines*opsPerGoroutine)

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < opsPerGoroutine; j++ {
				v, _ := c.Next()
				values <- v
			}
		}()
	}
	wg.Wait()
	close(values)

	seen := make(map[uint32]bool)
	for v := range values {
		if seen[v] {
			t.Errorf("Duplicate counter value: %d", v)
		}
		seen[v] = true
	}
	if len(seen) != numGoroutines*opsPerGoroutine {
		t.Errorf("Got %d unique values, want %d", len(seen), numGoroutines*opsPerGoroutine)
	}
}

func TestReceptionState(t *testing.T) {
	r := NewReceptionState(0)

	if err := r.Check(0); !errors.Is(err, ErrStaleSequence) {
		t.Errorf("Check(0) err = %v, want ErrStaleSequence", err)
	}

	if err := r.Check(1); err != nil {
		t.Fatalf("Check(1) error: %v", err)
	}
	if r.Last() != 0 {
		t.Error("Check must not mutate state")
	}
	if err := r.Commit(1); err != nil {
		t.Fatalf("Commit(1) error: %v", err)
	}

	// Replay
	if err := r.Check(1); !errors.Is(err, ErrStaleSequence) {
		t.Errorf("replay err = %v, want ErrStaleSequence", err)
	}

	// Gap is fine, going back afterwards is not.
	if err := r.Commit(3); err != nil {
		t.Fatalf("Commit(3) error: %v", err)
	}
	if err := r.Check(2); !errors.Is(err, ErrStaleSequence) {
		t.Errorf("reorder err = %v, want ErrStaleSequence", err)
	}
	if r.Last() != 3 {
		t.Errorf("Last() = %d, want 3", r.Last())
	}
}

func TestReceptionStateCommitRace(t *testing.T) {
	r := NewReceptionState(0)
	if err := r.Check(5); err != nil {
		t.Fatal(err)
	}
	if err := r.Check(5); err != nil {
		t.Fatal(err)
	}
	if err := r.Commit(5); err != nil {
		t.Fatal(err)
	}
	if err := r.Commit(5); !errors.Is(err, ErrStaleSequence) {
		t.Errorf("second Commit err = %v, want ErrStaleSequence", err)
	}
}
