package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/habitquest/delegate/internal/adapter/memory"
	"github.com/habitquest/delegate/internal/config"
	"github.com/habitquest/delegate/internal/domain/delegation"
	"github.com/habitquest/delegate/internal/port/executor"
)

// scriptedExecutor is a hand-rolled test double whose Invoke behavior is a
// pluggable function. It counts calls under a mutex so concurrent tests can
// assert invocation counts safely.
type scriptedExecutor struct {
	typ     string
	caps    []string
	version string

	mu     sync.Mutex
	calls  int
	invoke func(ctx context.Context, spec *delegation.TaskSpecification, seedValue uint64) (string, error)
}

func (s *scriptedExecutor) Type() string { return s.typ }

func (s *scriptedExecutor) Capabilities() []string { return s.caps }

func (s *scriptedExecutor) Version() string {
	if s.version == "" {
		return "test"
	}
	return s.version
}

func (s *scriptedExecutor) Invoke(ctx context.Context, spec *delegation.TaskSpecification, seedValue uint64) (string, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.invoke == nil {
		return "ok", nil
	}
	return s.invoke(ctx, spec, seedValue)
}

func (s *scriptedExecutor) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func newRegistry(t *testing.T, execs ...executor.Executor) *executor.Registry {
	t.Helper()
	reg := executor.NewRegistry()
	for _, e := range execs {
		if err := reg.Register(e); err != nil {
			t.Fatalf("register %s: %v", e.Type(), err)
		}
	}
	return reg
}

func emailSpec() *delegation.TaskSpecification {
	return &delegation.TaskSpecification{
		Goal:        "draft a status email to {recipient}",
		Constraints: []string{"professional tone"},
		RequiredContext: map[string]string{
			"recipient": "dana@example.com",
		},
		ToolsAllowed: []string{"email"},
		SuccessChecks: []delegation.SuccessCheck{
			{Name: "not-empty", Kind: delegation.CheckNotEmpty},
		},
		ModelVersion:   "m1",
		ToolkitVersion: "t1",
	}
}

// appendRuns seeds history with one record per entry in results, oldest
// first, so Recent returns the final record first.
func appendRuns(t *testing.T, hist *memory.History, sig delegation.Signature, executorType string, results []bool) {
	t.Helper()
	base := time.Now().Add(-time.Hour)
	for i, passed := range results {
		status := delegation.RunChecksFailed
		if passed {
			status = delegation.RunPassed
		}
		err := hist.Append(context.Background(), &delegation.RunRecord{
			ID:             string(sig) + string(rune('a'+i)),
			Signature:      sig,
			NormalizedGoal: "draft a status email to {recipient}",
			ExecutorType:   executorType,
			AttemptNumber:  1,
			VerifierPassed: passed,
			Status:         status,
			CreatedAt:      base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatal(err)
		}
	}
}

func testDiscovery() config.Discovery {
	cfg := config.Defaults().Discovery
	return cfg
}
