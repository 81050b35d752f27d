package delegation

import (
	"fmt"
	"time"
)

// Priority controls how much retry budget a delegation gets.
type Priority string

const (
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// DelegationRequest is one caller invocation of the engine. It is immutable
// once created and discarded after its DelegationResult is returned.
type DelegationRequest struct {
	RequestID        string            `json:"request_id"`
	FromAgentType    string            `json:"from_agent_type,omitempty"`
	TaskNote         string            `json:"task_note"`
	ContextHints     map[string]string `json:"context_hints,omitempty"`
	ExecutorTypeHint string            `json:"executor_type_hint,omitempty"`
	Priority         Priority          `json:"priority"`
	Timeout          time.Duration     `json:"timeout"`
}

// Validate checks the request fields the engine cannot default.
func (r *DelegationRequest) Validate() error {
	if r.TaskNote == "" {
		return fmt.Errorf("task_note is required")
	}
	if r.Priority != "" && !r.Priority.Valid() {
		return fmt.Errorf("unknown priority %q", r.Priority)
	}
	return nil
}

// Status is the terminal outcome of a delegation.
type Status string

const (
	StatusSuccess        Status = "success"
	StatusRetryExhausted Status = "retry_exhausted_failed"
	StatusParseError     Status = "parse_error"
	// StatusHandleDirectly means the decision engine scored the task below
	// the delegation threshold; no executor was invoked.
	StatusHandleDirectly Status = "handle_directly"
)

// FallbackHandleDirectly is the recommendation attached to failed results.
const FallbackHandleDirectly = "handle_directly"

// DelegationResult is returned to the caller when a delegation terminates.
type DelegationResult struct {
	RequestID              string    `json:"request_id"`
	Status                 Status    `json:"status"`
	Signature              Signature `json:"signature,omitempty"`
	ExecutorType           string    `json:"executor_type,omitempty"`
	Artifact               string    `json:"artifact,omitempty"`
	VerifierSummary        string    `json:"verifier_summary,omitempty"`
	AttemptsUsed           int       `json:"attempts_used"`
	AttemptedSeeds         []uint64  `json:"attempted_seeds,omitempty"`
	FailedChecks           []string  `json:"failed_checks,omitempty"`
	DecisionTrace          []string  `json:"decision_trace,omitempty"`
	FallbackRecommendation string    `json:"fallback_recommendation,omitempty"`
}

// RunStatus classifies a single execution attempt.
type RunStatus string

const (
	RunPassed       RunStatus = "passed"
	RunChecksFailed RunStatus = "checks_failed"
	RunTimeout      RunStatus = "timeout"
	RunError        RunStatus = "error"
)

// RunRecord is the append-only audit record of one execution attempt. It is
// never updated after creation.
type RunRecord struct {
	ID             string    `json:"id"`
	RequestID      string    `json:"request_id"`
	Signature      Signature `json:"signature"`
	NormalizedGoal string    `json:"normalized_goal"`
	ExecutorType   string    `json:"executor_type"`
	SeedUsed       uint64    `json:"seed_used"`
	AttemptNumber  int       `json:"attempt_number"`
	DurationMs     int64     `json:"duration_ms"`
	VerifierPassed bool      `json:"verifier_passed"`
	VerifierScore  float64   `json:"verifier_score"`
	Status         RunStatus `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
}
