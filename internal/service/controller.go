package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	otelad "github.com/habitquest/delegate/internal/adapter/otel"
	"github.com/habitquest/delegate/internal/config"
	"github.com/habitquest/delegate/internal/domain/delegation"
	"github.com/habitquest/delegate/internal/domain/seed"
	"github.com/habitquest/delegate/internal/port/history"
	"github.com/habitquest/delegate/internal/port/seedstore"
)

// Controller drives the dispatch -> execute -> verify loop for one
// delegation, applies the priority's retry budget, and records outcomes into
// the seed store and delegation history.
//
// The per-signature seed lease is held from before the first best-seed read
// until the final outcome is committed, so concurrent delegations for the
// same signature serialize their learning updates and never clobber each
// other. Delegations for different signatures share nothing and run fully in
// parallel.
type Controller struct {
	seeds    seedstore.Store
	history  history.Store
	invoker  *Invoker
	verifier Verifier
	cfg      *config.Engine
	metrics  *otelad.Metrics // optional

	now func() time.Time
}

// NewController creates a Controller. metrics may be nil.
func NewController(seeds seedstore.Store, hist history.Store, invoker *Invoker, cfg *config.Engine, metrics *otelad.Metrics) *Controller {
	return &Controller{
		seeds:   seeds,
		history: hist,
		invoker: invoker,
		cfg:     cfg,
		metrics: metrics,
		now:     time.Now,
	}
}

// Run executes the retry/learning loop. ctx must already carry the request
// deadline; lock waiting and every executor call are bounded by it.
//
// Only lock contention surfaces as an error. Exhausting the retry budget is
// a normal terminal outcome reported in the result, never a process failure.
func (c *Controller) Run(ctx context.Context, req *delegation.DelegationRequest, spec *delegation.TaskSpecification, sig delegation.Signature, executorType string) (*delegation.DelegationResult, error) {
	lease, err := c.seeds.Acquire(ctx, sig)
	if err != nil {
		return nil, fmt.Errorf("signature %s: %w", sig, err)
	}

	rec := lease.Record()
	budget := c.cfg.RetryBudget(string(req.Priority))

	tried := make(map[uint64]bool)
	exploreIdx := 0
	var (
		records        []*delegation.RunRecord
		attemptedSeeds []uint64
		lastVerify     Verification
	)

	for attempt := 1; attempt <= budget; attempt++ {
		if ctx.Err() != nil {
			// Request deadline exhausted; remaining attempts would only
			// time out instantly.
			break
		}

		seedValue := c.selectSeed(rec, sig, tried, &exploreIdx)
		tried[seedValue] = true
		attemptedSeeds = append(attemptedSeeds, seedValue)

		attemptCtx, span := otelad.StartAttemptSpan(ctx, executorType, seedValue, attempt)
		res, invokeErr := c.invoker.Invoke(attemptCtx, executorType, spec, seedValue, remaining(ctx))
		span.End()

		if c.metrics != nil {
			c.metrics.Attempts.Add(ctx, 1)
			c.metrics.AttemptDuration.Record(ctx, float64(res.DurationMs)/1000)
		}

		run := &delegation.RunRecord{
			ID:             uuid.New().String(),
			RequestID:      req.RequestID,
			Signature:      sig,
			NormalizedGoal: spec.NormalizedGoal(),
			ExecutorType:   executorType,
			SeedUsed:       seedValue,
			AttemptNumber:  attempt,
			DurationMs:     res.DurationMs,
			CreatedAt:      c.now(),
		}

		switch {
		case invokeErr != nil:
			run.Status = delegation.RunError
			c.demote(rec, seedValue)
			slog.Warn("executor error", "request_id", req.RequestID, "seed", seedValue, "error", invokeErr)
		case res.TimedOut:
			run.Status = delegation.RunTimeout
			c.demote(rec, seedValue)
			slog.Warn("executor timeout", "request_id", req.RequestID, "seed", seedValue, "attempt", attempt)
		default:
			lastVerify = c.verifier.Verify(res.Artifact, spec)
			run.VerifierPassed = lastVerify.Passed
			run.VerifierScore = lastVerify.Score
			if lastVerify.Passed {
				run.Status = delegation.RunPassed
				records = append(records, run)
				return c.succeed(ctx, req, sig, executorType, rec, lease, records, res.Artifact, lastVerify, seedValue, attempt, attemptedSeeds)
			}
			run.Status = delegation.RunChecksFailed
			c.demote(rec, seedValue)
			slog.Info("verification failed",
				"request_id", req.RequestID,
				"seed", seedValue,
				"attempt", attempt,
				"score", lastVerify.Score,
				"failed_checks", lastVerify.FailedChecks(),
			)
		}
		records = append(records, run)
	}

	// Budget exhausted. Demotions are kept: a seed that just failed should
	// not keep its old rank, but the candidates themselves survive so a
	// known-good configuration is never lost outright.
	if err := lease.Commit(ctx); err != nil {
		slog.Error("seed record commit failed", "signature", sig, "error", err)
	}
	c.appendAll(ctx, records)
	if c.metrics != nil {
		c.metrics.DelegationsFailed.Add(ctx, 1)
	}

	result := &delegation.DelegationResult{
		RequestID:              req.RequestID,
		Status:                 delegation.StatusRetryExhausted,
		Signature:              sig,
		ExecutorType:           executorType,
		AttemptsUsed:           len(records),
		AttemptedSeeds:         attemptedSeeds,
		FailedChecks:           lastVerify.FailedChecks(),
		VerifierSummary:        lastVerify.Summary(),
		FallbackRecommendation: delegation.FallbackHandleDirectly,
	}
	slog.Info("delegation exhausted retries",
		"request_id", req.RequestID,
		"signature", sig,
		"attempts", result.AttemptsUsed,
	)
	return result, nil
}

// selectSeed picks the next seed: the best known candidate first, then
// remaining candidates by score, then deterministic exploratory seeds.
func (c *Controller) selectSeed(rec *seed.Record, sig delegation.Signature, tried map[uint64]bool, exploreIdx *int) uint64 {
	if cand, ok := rec.NextExcluding(tried); ok {
		return cand.Seed
	}
	for {
		s := seed.Exploratory(sig, *exploreIdx, c.cfg.ExplorationSalt)
		*exploreIdx++
		if !tried[s] {
			return s
		}
	}
}

func (c *Controller) demote(rec *seed.Record, seedValue uint64) {
	rec.Demote(seedValue, c.now())
	if c.metrics != nil {
		c.metrics.SeedDemotions.Add(context.Background(), 1)
	}
}

func (c *Controller) succeed(
	ctx context.Context,
	req *delegation.DelegationRequest,
	sig delegation.Signature,
	executorType string,
	rec *seed.Record,
	lease seedstore.Lease,
	records []*delegation.RunRecord,
	artifact string,
	verify Verification,
	seedValue uint64,
	attempt int,
	attemptedSeeds []uint64,
) (*delegation.DelegationResult, error) {
	rec.Promote(seedValue, verify.Score, c.now())
	if err := lease.Commit(ctx); err != nil {
		slog.Error("seed record commit failed", "signature", sig, "error", err)
	}
	c.appendAll(ctx, records)

	if c.metrics != nil {
		c.metrics.SeedPromotions.Add(ctx, 1)
		c.metrics.DelegationsSucceeded.Add(ctx, 1)
	}
	slog.Info("delegation succeeded",
		"request_id", req.RequestID,
		"signature", sig,
		"executor_type", executorType,
		"seed", seedValue,
		"attempts", attempt,
		"score", verify.Score,
	)

	return &delegation.DelegationResult{
		RequestID:       req.RequestID,
		Status:          delegation.StatusSuccess,
		Signature:       sig,
		ExecutorType:    executorType,
		Artifact:        artifact,
		VerifierSummary: verify.Summary(),
		AttemptsUsed:    attempt,
		AttemptedSeeds:  attemptedSeeds,
	}, nil
}

// appendAll writes run records to history. History is audit data; a failed
// append is logged, never escalated into a delegation failure.
func (c *Controller) appendAll(ctx context.Context, records []*delegation.RunRecord) {
	for _, rec := range records {
		if err := c.history.Append(context.WithoutCancel(ctx), rec); err != nil {
			slog.Error("history append failed", "run_id", rec.ID, "error", err)
		}
	}
}

// remaining returns the time left before ctx's deadline, 0 when unbounded.
func remaining(ctx context.Context) time.Duration {
	deadline, ok := ctx.Deadline()
	if !ok {
		return 0
	}
	return time.Until(deadline)
}
