package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/habitquest/delegate/internal/adapter/ristretto"
	"github.com/habitquest/delegate/internal/config"
	"github.com/habitquest/delegate/internal/domain/delegation"
	"github.com/habitquest/delegate/internal/port/executor"
	"github.com/habitquest/delegate/internal/port/history"
)

// Router resolves a TaskSpecification to a concrete executor type. The
// resolution order is fixed: explicit hint, delegation history, capability
// overlap, keyword table, generic fallback. History deliberately outranks
// keyword matching so learned routing overrides naive heuristics.
type Router struct {
	cfg      *config.Discovery
	registry *executor.Registry
	history  history.Store
	cache    *ristretto.RouteCache // optional
}

// NewRouter creates a Router. cache may be nil.
func NewRouter(cfg *config.Discovery, reg *executor.Registry, hist history.Store, cache *ristretto.RouteCache) *Router {
	return &Router{cfg: cfg, registry: reg, history: hist, cache: cache}
}

// Resolve returns the executor type for spec. It fails only when even the
// configured fallback executor is unregistered, which is a deployment
// defect, not a property of the task.
func (r *Router) Resolve(ctx context.Context, spec *delegation.TaskSpecification, sig delegation.Signature, hint string) (string, error) {
	// Step 1: explicit hint, when the named executor exists.
	if hint != "" {
		if _, ok := r.registry.Get(hint); ok {
			return hint, nil
		}
		slog.Warn("executor hint ignored: not registered", "hint", hint)
	}

	if r.cache != nil {
		if et, ok := r.cache.Get(sig); ok {
			if _, registered := r.registry.Get(et); registered {
				return et, nil
			}
		}
	}

	et, err := r.resolve(ctx, spec, sig)
	if err != nil {
		return "", err
	}
	if r.cache != nil {
		r.cache.Set(sig, et)
	}
	return et, nil
}

func (r *Router) resolve(ctx context.Context, spec *delegation.TaskSpecification, sig delegation.Signature) (string, error) {
	// Step 2: delegation history.
	if et := r.fromHistory(ctx, spec, sig); et != "" {
		return et, nil
	}

	// Step 3: capability overlap.
	if et := r.fromCapabilities(ctx, spec); et != "" {
		return et, nil
	}

	// Step 4: keyword table.
	if et := r.fromKeywords(spec); et != "" {
		return et, nil
	}

	// Step 5: guaranteed generic fallback.
	if _, ok := r.registry.Get(r.cfg.FallbackType); !ok {
		return "", &delegation.DispatchError{
			Reason: fmt.Sprintf("fallback executor %q is not registered", r.cfg.FallbackType),
		}
	}
	return r.cfg.FallbackType, nil
}

// fromHistory returns the executor type of the most recent matching or
// near-matching signature whose success rate over its last HistoryWindow
// runs clears the configured bar.
func (r *Router) fromHistory(ctx context.Context, spec *delegation.TaskSpecification, sig delegation.Signature) string {
	recent, err := r.history.Recent(ctx, sig, r.cfg.HistoryWindow)
	if err != nil {
		slog.Error("history lookup failed", "signature", sig, "error", err)
		return ""
	}
	if et := executorIfReliable(recent, r.cfg.HistorySuccessRate); et != "" {
		return et
	}

	// Near matches: scan recent records for goal-similar signatures.
	all, err := r.history.RecentAll(ctx, r.cfg.HistoryScan)
	if err != nil {
		slog.Error("history scan failed", "error", err)
		return ""
	}
	tokens := spec.GoalTokens()
	seen := map[delegation.Signature]bool{sig: true}
	for _, rec := range all {
		if seen[rec.Signature] {
			continue
		}
		seen[rec.Signature] = true
		if delegation.GoalSimilarity(tokens, delegation.TokenizeGoal(rec.NormalizedGoal)) < r.cfg.Similarity {
			continue
		}
		nearby, err := r.history.Recent(ctx, rec.Signature, r.cfg.HistoryWindow)
		if err != nil {
			continue
		}
		if et := executorIfReliable(nearby, r.cfg.HistorySuccessRate); et != "" {
			return et
		}
	}
	return ""
}

// executorIfReliable returns the executor type of the newest record when the
// window's success rate strictly exceeds the bar.
func executorIfReliable(window []delegation.RunRecord, bar float64) string {
	if len(window) == 0 {
		return ""
	}
	passed := 0
	for _, rec := range window {
		if rec.VerifierPassed {
			passed++
		}
	}
	if float64(passed)/float64(len(window)) > bar {
		return window[0].ExecutorType
	}
	return ""
}

// fromCapabilities scores each executor by overlap between its declared
// capabilities and the specification's allowed tools plus goal tokens, and
// returns the best scorer. Ties go to the most recently successful executor.
func (r *Router) fromCapabilities(ctx context.Context, spec *delegation.TaskSpecification) string {
	required := make(map[string]bool)
	for _, t := range spec.ToolsAllowed {
		required[t] = true
	}
	for _, t := range spec.GoalTokens() {
		required[t] = true
	}

	bestType := ""
	bestScore := 0
	var bestSuccess time.Time
	for _, e := range r.registry.All() {
		score := 0
		for _, cap := range e.Capabilities() {
			if required[strings.ToLower(cap)] {
				score++
			}
		}
		if score == 0 {
			continue
		}
		success := r.lastSuccess(ctx, e.Type())
		if score > bestScore || (score == bestScore && success.After(bestSuccess)) {
			bestType = e.Type()
			bestScore = score
			bestSuccess = success
		}
	}
	return bestType
}

// lastSuccess returns the newest passing run timestamp for an executor type.
func (r *Router) lastSuccess(ctx context.Context, executorType string) time.Time {
	all, err := r.history.RecentAll(ctx, r.cfg.HistoryScan)
	if err != nil {
		return time.Time{}
	}
	for _, rec := range all {
		if rec.ExecutorType == executorType && rec.VerifierPassed {
			return rec.CreatedAt
		}
	}
	return time.Time{}
}

// fromKeywords consults the configured keyword table against the goal and
// returns the executor type with the most keyword hits.
func (r *Router) fromKeywords(spec *delegation.TaskSpecification) string {
	goal := " " + spec.NormalizedGoal() + " "
	scores := make(map[string]int)
	for keyword, et := range r.cfg.Keywords {
		if strings.Contains(goal, " "+strings.ToLower(keyword)+" ") {
			scores[et]++
		}
	}

	bestType := ""
	bestScore := 0
	for et, score := range scores {
		if _, ok := r.registry.Get(et); !ok {
			continue
		}
		// Alphabetical tie-break keeps resolution deterministic.
		if score > bestScore || (score == bestScore && bestType != "" && et < bestType) {
			bestType = et
			bestScore = score
		}
	}
	return bestType
}
