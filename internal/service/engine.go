package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	otelad "github.com/habitquest/delegate/internal/adapter/otel"
	"github.com/habitquest/delegate/internal/config"
	"github.com/habitquest/delegate/internal/domain/delegation"
	"github.com/habitquest/delegate/internal/domain/tasknote"
)

// Engine is the delegation entry point: parse the task note, decide whether
// to delegate, route to an executor, and drive the retry/learning loop.
// Each Delegate call is independent; callers may invoke it from any number
// of goroutines.
type Engine struct {
	parser     *tasknote.Parser
	decision   *DecisionEngine
	router     *Router
	controller *Controller
	cfg        *config.Config
	metrics    *otelad.Metrics // optional
}

// NewEngine wires the delegation pipeline.
func NewEngine(parser *tasknote.Parser, decision *DecisionEngine, router *Router, controller *Controller, cfg *config.Config, metrics *otelad.Metrics) *Engine {
	return &Engine{
		parser:     parser,
		decision:   decision,
		router:     router,
		controller: controller,
		cfg:        cfg,
		metrics:    metrics,
	}
}

// Delegate handles one DelegationRequest end to end.
//
// Errors surface only for conditions the loop cannot recover: a ParseError
// (refine the note), a DispatchError (deployment defect), or lock contention
// exceeding the request deadline. Exhausted retries come back as a normal
// result with a fallback recommendation.
func (e *Engine) Delegate(ctx context.Context, req *delegation.DelegationRequest) (*delegation.DelegationResult, error) {
	if req.RequestID == "" {
		req.RequestID = uuid.New().String()
	}
	if req.Priority == "" {
		req.Priority = delegation.PriorityNormal
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("delegation request: %w", err)
	}

	if e.metrics != nil {
		e.metrics.DelegationsStarted.Add(ctx, 1)
	}

	spec, err := e.parser.Parse(req.TaskNote, req.ContextHints)
	if err != nil {
		var parseErr *delegation.ParseError
		if errors.As(err, &parseErr) {
			slog.Info("task note rejected", "request_id", req.RequestID, "element", parseErr.Element)
			return &delegation.DelegationResult{
				RequestID:              req.RequestID,
				Status:                 delegation.StatusParseError,
				VerifierSummary:        parseErr.Error(),
				FallbackRecommendation: delegation.FallbackHandleDirectly,
			}, err
		}
		return nil, err
	}

	sig := delegation.ComputeSignature(spec)

	ctx, span := otelad.StartDelegationSpan(ctx, req.RequestID, string(sig), string(req.Priority))
	defer span.End()

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = e.cfg.Engine.DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	dec, err := e.decision.Evaluate(ctx, spec, sig, e.cfg.Discovery.Similarity)
	if err != nil {
		return nil, fmt.Errorf("decision: %w", err)
	}
	if !dec.Delegate {
		slog.Info("task kept by main agent",
			"request_id", req.RequestID,
			"signature", sig,
			"score", dec.Score,
		)
		return &delegation.DelegationResult{
			RequestID:              req.RequestID,
			Status:                 delegation.StatusHandleDirectly,
			Signature:              sig,
			DecisionTrace:          dec.Trace,
			FallbackRecommendation: delegation.FallbackHandleDirectly,
		}, nil
	}

	executorType, err := e.router.Resolve(ctx, spec, sig, req.ExecutorTypeHint)
	if err != nil {
		return nil, err
	}
	slog.Debug("executor resolved",
		"request_id", req.RequestID,
		"signature", sig,
		"executor_type", executorType,
	)

	result, err := e.controller.Run(ctx, req, spec, sig, executorType)
	if err != nil {
		return nil, err
	}
	result.DecisionTrace = dec.Trace
	return result, nil
}

// DefaultTimeout reports the engine's fallback per-request budget.
func (e *Engine) DefaultTimeout() time.Duration {
	return e.cfg.Engine.DefaultTimeout
}
