package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/habitquest/delegate/internal/adapter/generic"
	"github.com/habitquest/delegate/internal/adapter/memory"
	"github.com/habitquest/delegate/internal/config"
	"github.com/habitquest/delegate/internal/domain/delegation"
	"github.com/habitquest/delegate/internal/domain/tasknote"
	"github.com/habitquest/delegate/internal/service"
)

type engineFixture struct {
	seeds  *memory.SeedStore
	hist   *memory.History
	exec   *scriptedExecutor
	engine *service.Engine
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	cfg := config.Defaults()
	seeds := memory.NewSeedStore()
	hist := memory.NewHistory()
	// A real renderer behind the counting double, so artifacts actually
	// satisfy content checks.
	renderer := generic.New()
	exec := &scriptedExecutor{typ: "generic", caps: []string{"generic", "text"}}
	exec.invoke = func(ctx context.Context, spec *delegation.TaskSpecification, seedValue uint64) (string, error) {
		return renderer.Invoke(ctx, spec, seedValue)
	}
	reg := newRegistry(t, exec)

	parser := tasknote.New(tasknote.Versions{Model: cfg.Versions.Model, Toolkit: cfg.Versions.Toolkit})
	decision := service.NewDecisionEngine(&cfg.Decision, hist, cfg.Discovery.HistoryScan)
	router := service.NewRouter(&cfg.Discovery, reg, hist, nil)
	invoker := service.NewInvoker(reg, cfg.Breaker)
	controller := service.NewController(seeds, hist, invoker, &cfg.Engine, nil)
	engine := service.NewEngine(parser, decision, router, controller, &cfg, nil)

	return &engineFixture{seeds: seeds, hist: hist, exec: exec, engine: engine}
}

func TestDelegateEndToEnd(t *testing.T) {
	f := newEngineFixture(t)

	res, err := f.engine.Delegate(context.Background(), &delegation.DelegationRequest{
		TaskNote: "goal: draft a status email to {recipient}\ncheck: contains={recipient}",
		ContextHints: map[string]string{
			"recipient": "dana@example.com",
		},
	})
	if err != nil {
		t.Fatalf("Delegate: %v", err)
	}
	if res.Status != delegation.StatusSuccess {
		t.Fatalf("status = %s: %s", res.Status, res.VerifierSummary)
	}
	if res.RequestID == "" {
		t.Error("engine must default a request ID")
	}
	if res.ExecutorType != "generic" {
		t.Errorf("executor = %q, want generic", res.ExecutorType)
	}
	if res.Artifact == "" {
		t.Error("success must carry the artifact")
	}
	if len(res.DecisionTrace) == 0 {
		t.Error("result must carry the decision trace")
	}
}

func TestDelegateAmbiguousNoteNeverInvokesExecutor(t *testing.T) {
	f := newEngineFixture(t)

	res, err := f.engine.Delegate(context.Background(), &delegation.DelegationRequest{
		TaskNote: "goal: email {recipient} about {topic}",
		ContextHints: map[string]string{
			"recipient": "dana@example.com",
			// topic is deliberately missing
		},
	})
	var parseErr *delegation.ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected ParseError, got %v", err)
	}
	if res == nil || res.Status != delegation.StatusParseError {
		t.Fatalf("result = %+v, want parse_error status", res)
	}
	if res.FallbackRecommendation != delegation.FallbackHandleDirectly {
		t.Errorf("fallback = %q, want handle_directly", res.FallbackRecommendation)
	}
	if f.exec.callCount() != 0 {
		t.Errorf("a rejected note must never reach an executor, got %d calls", f.exec.callCount())
	}
}

func TestDelegateLowScoringTaskKeptByMainAgent(t *testing.T) {
	f := newEngineFixture(t)

	// Volatile and unverifiable: determinism collapses and verifiability is 0.
	res, err := f.engine.Delegate(context.Background(), &delegation.DelegationRequest{
		TaskNote: "goal: summarize the latest news from today\ncheck: none",
	})
	if err != nil {
		t.Fatalf("Delegate: %v", err)
	}
	if res.Status != delegation.StatusHandleDirectly {
		t.Fatalf("status = %s, want handle_directly", res.Status)
	}
	if f.exec.callCount() != 0 {
		t.Errorf("a kept task must never reach an executor, got %d calls", f.exec.callCount())
	}
	if len(res.DecisionTrace) == 0 {
		t.Error("kept result must explain itself via the decision trace")
	}
}

func TestDelegateHintRoutesExecutor(t *testing.T) {
	f := newEngineFixture(t)

	res, err := f.engine.Delegate(context.Background(), &delegation.DelegationRequest{
		TaskNote:         "goal: draft a short note\ncheck: not_empty",
		ExecutorTypeHint: "generic",
	})
	if err != nil {
		t.Fatalf("Delegate: %v", err)
	}
	if res.ExecutorType != "generic" {
		t.Errorf("executor = %q", res.ExecutorType)
	}
}

func TestDelegateValidatesRequest(t *testing.T) {
	f := newEngineFixture(t)

	if _, err := f.engine.Delegate(context.Background(), &delegation.DelegationRequest{}); err == nil {
		t.Error("empty task note must be rejected")
	}
	_, err := f.engine.Delegate(context.Background(), &delegation.DelegationRequest{
		TaskNote: "goal: x",
		Priority: "asap",
	})
	if err == nil {
		t.Error("unknown priority must be rejected")
	}
}

func TestDelegateSameTaskSharesLearnedSeed(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	note := "goal: draft a status email to {recipient}\ncheck: contains={recipient}"

	first, err := f.engine.Delegate(ctx, &delegation.DelegationRequest{
		TaskNote:     note,
		ContextHints: map[string]string{"recipient": "dana@example.com"},
	})
	if err != nil {
		t.Fatalf("first Delegate: %v", err)
	}

	// Same kind of task, different slot values: same signature, so the
	// second delegation reuses the learned seed and succeeds first try.
	second, err := f.engine.Delegate(ctx, &delegation.DelegationRequest{
		TaskNote:     note,
		ContextHints: map[string]string{"recipient": "lee@example.com"},
	})
	if err != nil {
		t.Fatalf("second Delegate: %v", err)
	}

	if first.Signature != second.Signature {
		t.Fatalf("signatures differ: %s vs %s", first.Signature, second.Signature)
	}
	if second.AttemptsUsed != 1 {
		t.Errorf("second delegation used %d attempts, want 1 (warm seed)", second.AttemptsUsed)
	}
	if len(first.AttemptedSeeds) == 0 || len(second.AttemptedSeeds) == 0 {
		t.Fatal("results must report attempted seeds")
	}
	if second.AttemptedSeeds[0] != first.AttemptedSeeds[len(first.AttemptedSeeds)-1] {
		t.Errorf("second delegation seed %d, want the seed that succeeded first (%d)",
			second.AttemptedSeeds[0], first.AttemptedSeeds[len(first.AttemptedSeeds)-1])
	}
}
