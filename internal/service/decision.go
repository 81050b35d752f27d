package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/habitquest/delegate/internal/config"
	"github.com/habitquest/delegate/internal/domain/delegation"
	"github.com/habitquest/delegate/internal/port/history"
)

// Decision is the delegate/handle-directly verdict with its reasoning trace.
type Decision struct {
	Delegate bool
	Score    float64

	Determinism       float64
	Verifiability     float64
	Repeatability     float64
	SelfContainedness float64

	Trace []string
}

// DecisionEngine scores a TaskSpecification on four 0-1 sub-scores and
// delegates when the weighted sum clears the configured threshold.
type DecisionEngine struct {
	cfg     *config.Decision
	history history.Store
	scan    int // history records scanned for repeatability
}

// NewDecisionEngine creates a DecisionEngine.
func NewDecisionEngine(cfg *config.Decision, hist history.Store, historyScan int) *DecisionEngine {
	return &DecisionEngine{cfg: cfg, history: hist, scan: historyScan}
}

// Evaluate computes the decision for spec. The similarity threshold for the
// repeatability sub-score is shared with discovery.
func (e *DecisionEngine) Evaluate(ctx context.Context, spec *delegation.TaskSpecification, sig delegation.Signature, similarity float64) (*Decision, error) {
	d := &Decision{}

	d.Determinism = e.determinism(spec)
	d.Verifiability = e.verifiability(spec)

	rep, err := e.repeatability(ctx, spec, sig, similarity)
	if err != nil {
		return nil, fmt.Errorf("repeatability: %w", err)
	}
	d.Repeatability = rep

	d.SelfContainedness = e.selfContainedness(spec)

	d.Score = d.Determinism*e.cfg.DeterminismWeight +
		d.Verifiability*e.cfg.VerifiabilityWeight +
		d.Repeatability*e.cfg.RepeatabilityWeight +
		d.SelfContainedness*e.cfg.SelfContainednessWeight
	d.Delegate = d.Score >= e.cfg.DelegateThreshold

	d.Trace = []string{
		fmt.Sprintf("determinism=%.2f (weight %.2f)", d.Determinism, e.cfg.DeterminismWeight),
		fmt.Sprintf("verifiability=%.2f (weight %.2f)", d.Verifiability, e.cfg.VerifiabilityWeight),
		fmt.Sprintf("repeatability=%.2f (weight %.2f)", d.Repeatability, e.cfg.RepeatabilityWeight),
		fmt.Sprintf("self_containedness=%.2f (weight %.2f)", d.SelfContainedness, e.cfg.SelfContainednessWeight),
		fmt.Sprintf("score=%.2f threshold=%.2f delegate=%t", d.Score, e.cfg.DelegateThreshold, d.Delegate),
	}
	return d, nil
}

// determinism asks whether the goal reads as a pure function of its stated
// inputs. Each volatility hint in the goal (words like "latest" or "now")
// halves the score.
func (e *DecisionEngine) determinism(spec *delegation.TaskSpecification) float64 {
	goal := " " + spec.NormalizedGoal() + " "
	score := 1.0
	for _, hint := range e.cfg.VolatilityHints {
		if strings.Contains(goal, " "+strings.ToLower(hint)+" ") {
			score *= 0.5
		}
	}
	return score
}

// verifiability is 1 when the specification carries success checks, else 0.
func (e *DecisionEngine) verifiability(spec *delegation.TaskSpecification) float64 {
	if len(spec.SuccessChecks) > 0 {
		return 1
	}
	return 0
}

// repeatability checks whether this signature, or a goal-similar one, has
// been executed before. An exact match scores 1, a near match 0.7.
func (e *DecisionEngine) repeatability(ctx context.Context, spec *delegation.TaskSpecification, sig delegation.Signature, similarity float64) (float64, error) {
	exact, err := e.history.Recent(ctx, sig, 1)
	if err != nil {
		return 0, err
	}
	if len(exact) > 0 {
		return 1, nil
	}

	all, err := e.history.RecentAll(ctx, e.scan)
	if err != nil {
		return 0, err
	}
	tokens := spec.GoalTokens()
	for _, rec := range all {
		if delegation.GoalSimilarity(tokens, delegation.TokenizeGoal(rec.NormalizedGoal)) >= similarity {
			return 0.7, nil
		}
	}
	return 0, nil
}

// selfContainedness is the covered fraction of referenced context slots.
// A specification that survived the parser scores 1 by construction.
func (e *DecisionEngine) selfContainedness(spec *delegation.TaskSpecification) float64 {
	refs := spec.SlotRefs()
	if len(refs) == 0 {
		return 1
	}
	missing := len(spec.MissingSlots())
	return float64(len(refs)-missing) / float64(len(refs))
}
