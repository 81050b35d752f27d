// Package resilience provides reliability patterns around executor calls.
package resilience

import (
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned when the circuit is open and rejecting calls.
var ErrOpen = errors.New("circuit breaker is open")

// State describes a breaker for introspection (health endpoint).
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

// Breaker opens after a run of consecutive failures and rejects calls until
// a cooldown elapses, after which a single probe call decides whether it
// closes again. One Breaker guards one executor type.
type Breaker struct {
	mu          sync.Mutex
	state       State
	failures    int
	maxFailures int
	cooldown    time.Duration
	openedAt    time.Time
	now         func() time.Time // injectable for tests
}

// NewBreaker creates a closed breaker.
func NewBreaker(maxFailures int, cooldown time.Duration) *Breaker {
	return &Breaker{
		state:       StateClosed,
		maxFailures: maxFailures,
		cooldown:    cooldown,
		now:         time.Now,
	}
}

// Execute runs fn unless the circuit is open. The error from fn passes
// through unchanged; ErrOpen is returned without calling fn.
func (b *Breaker) Execute(fn func() error) error {
	if !b.allow() {
		return ErrOpen
	}

	err := fn()
	b.record(err == nil)
	return err
}

// CurrentState returns the breaker state, advancing open -> half-open when
// the cooldown has elapsed.
func (b *Breaker) CurrentState() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.cooldown {
		b.state = StateHalfOpen
	}
	return b.state
}

func (b *Breaker) allow() bool {
	return b.CurrentState() != StateOpen
}

func (b *Breaker) record(ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ok {
		b.failures = 0
		b.state = StateClosed
		return
	}

	b.failures++
	// A half-open probe failure reopens immediately regardless of count.
	if b.state == StateHalfOpen || b.failures >= b.maxFailures {
		b.state = StateOpen
		b.openedAt = b.now()
	}
}
