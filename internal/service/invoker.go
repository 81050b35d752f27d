package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/habitquest/delegate/internal/config"
	"github.com/habitquest/delegate/internal/domain/delegation"
	"github.com/habitquest/delegate/internal/port/executor"
	"github.com/habitquest/delegate/internal/resilience"
)

// InvokeResult carries one attempt's raw output and execution metadata.
type InvokeResult struct {
	Artifact   string
	DurationMs int64
	TimedOut   bool
}

// Invoker is the Executor Adapter: a uniform, bounded, breaker-protected way
// to invoke a named executor with a seed. A timeout comes back as data, not
// as an error, so the controller can classify it apart from a verification
// failure.
type Invoker struct {
	registry   *executor.Registry
	breakerCfg config.Breaker

	mu       sync.Mutex
	breakers map[string]*resilience.Breaker
}

// NewInvoker creates an Invoker with one circuit breaker per executor type.
func NewInvoker(reg *executor.Registry, breakerCfg config.Breaker) *Invoker {
	return &Invoker{
		registry:   reg,
		breakerCfg: breakerCfg,
		breakers:   make(map[string]*resilience.Breaker),
	}
}

func (iv *Invoker) breakerFor(executorType string) *resilience.Breaker {
	iv.mu.Lock()
	defer iv.mu.Unlock()
	b, ok := iv.breakers[executorType]
	if !ok {
		b = resilience.NewBreaker(iv.breakerCfg.MaxFailures, iv.breakerCfg.Timeout)
		iv.breakers[executorType] = b
	}
	return b
}

// Invoke runs one attempt on the named executor, bounded by timeout.
// Classification:
//   - deadline exceeded, or an open breaker: TimedOut=true, nil error
//   - executor failure: non-nil error
//   - otherwise: the artifact
func (iv *Invoker) Invoke(ctx context.Context, executorType string, spec *delegation.TaskSpecification, seedValue uint64, timeout time.Duration) (InvokeResult, error) {
	exec, ok := iv.registry.Get(executorType)
	if !ok {
		return InvokeResult{}, &delegation.DispatchError{Reason: fmt.Sprintf("executor %q is not registered", executorType)}
	}

	callCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	var artifact string
	err := iv.breakerFor(executorType).Execute(func() error {
		var invokeErr error
		artifact, invokeErr = exec.Invoke(callCtx, spec, seedValue)
		return invokeErr
	})
	elapsed := time.Since(start).Milliseconds()

	switch {
	case err == nil:
		return InvokeResult{Artifact: artifact, DurationMs: elapsed}, nil
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return InvokeResult{DurationMs: elapsed, TimedOut: true}, nil
	case errors.Is(err, resilience.ErrOpen):
		// The executor is shedding load; treat like a timeout so the
		// attempt consumes budget and the loop can try another seed later.
		return InvokeResult{DurationMs: elapsed, TimedOut: true}, nil
	default:
		return InvokeResult{DurationMs: elapsed}, fmt.Errorf("invoke %s: %w", executorType, err)
	}
}

// ExecutorVersion reports the version of a registered executor, "" when unknown.
func (iv *Invoker) ExecutorVersion(executorType string) string {
	if exec, ok := iv.registry.Get(executorType); ok {
		return exec.Version()
	}
	return ""
}

// BreakerStates exposes breaker states for the health endpoint.
func (iv *Invoker) BreakerStates() map[string]resilience.State {
	iv.mu.Lock()
	defer iv.mu.Unlock()
	states := make(map[string]resilience.State, len(iv.breakers))
	for et, b := range iv.breakers {
		states[et] = b.CurrentState()
	}
	return states
}
