package resilience_test

import (
	"errors"
	"testing"
	"time"

	"github.com/habitquest/delegate/internal/resilience"
)

var errBoom = errors.New("boom")

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	b := resilience.NewBreaker(3, time.Minute)

	for i := 0; i < 3; i++ {
		if err := b.Execute(func() error { return errBoom }); !errors.Is(err, errBoom) {
			t.Fatalf("call %d: expected errBoom, got %v", i, err)
		}
	}
	if b.CurrentState() != resilience.StateOpen {
		t.Fatalf("state = %s, want open", b.CurrentState())
	}

	called := false
	err := b.Execute(func() error { called = true; return nil })
	if !errors.Is(err, resilience.ErrOpen) {
		t.Errorf("open breaker should return ErrOpen, got %v", err)
	}
	if called {
		t.Error("open breaker must not invoke the function")
	}
}

func TestBreakerSuccessResetsFailures(t *testing.T) {
	b := resilience.NewBreaker(3, time.Minute)

	b.Execute(func() error { return errBoom })
	b.Execute(func() error { return errBoom })
	b.Execute(func() error { return nil })
	b.Execute(func() error { return errBoom })
	b.Execute(func() error { return errBoom })

	if b.CurrentState() != resilience.StateClosed {
		t.Errorf("interleaved success should have reset the failure run, state = %s", b.CurrentState())
	}
}

func TestBreakerHalfOpenProbe(t *testing.T) {
	b := resilience.NewBreaker(1, time.Nanosecond)

	b.Execute(func() error { return errBoom })
	time.Sleep(time.Millisecond)

	if b.CurrentState() != resilience.StateHalfOpen {
		t.Fatalf("state = %s, want half_open after cooldown", b.CurrentState())
	}

	// A failed probe reopens immediately.
	b.Execute(func() error { return errBoom })
	if b.CurrentState() != resilience.StateOpen {
		t.Errorf("failed probe should reopen, state = %s", b.CurrentState())
	}

	time.Sleep(time.Millisecond)
	if err := b.Execute(func() error { return nil }); err != nil {
		t.Fatalf("probe call: %v", err)
	}
	if b.CurrentState() != resilience.StateClosed {
		t.Errorf("successful probe should close, state = %s", b.CurrentState())
	}
}
