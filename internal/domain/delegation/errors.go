package delegation

import (
	"errors"
	"fmt"
)

// Sentinel errors recovered inside the retry loop or surfaced to the caller.
var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrExecutionTimeout marks an adapter call that exceeded its bound.
	// It consumes retry budget and never surfaces to the caller directly.
	ErrExecutionTimeout = errors.New("execution timed out")

	// ErrVerificationFailed marks an artifact rejected by the verifier.
	// Like a timeout it is recovered inside the loop, never surfaced.
	ErrVerificationFailed = errors.New("verification failed")

	// ErrRetryExhausted is terminal: every budgeted attempt failed.
	ErrRetryExhausted = errors.New("retry budget exhausted")

	// ErrLockTimeout means per-signature contention exceeded the request
	// deadline. Reported distinctly so operators can tell contention apart
	// from genuine task difficulty.
	ErrLockTimeout = errors.New("seed record lock wait exceeded request deadline")
)

// ParseError reports a Task Note that could not be compiled into a
// TaskSpecification. It names the missing or ambiguous element so the caller
// can refine the note; it is never retried automatically.
type ParseError struct {
	Element string
	Reason  string
}

func (e *ParseError) Error() string {
	if e.Element != "" {
		return fmt.Sprintf("parse task note: %s: %s", e.Element, e.Reason)
	}
	return fmt.Sprintf("parse task note: %s", e.Reason)
}

// DispatchError reports that no executor could be resolved. Given the
// guaranteed generic fallback this indicates a configuration defect.
type DispatchError struct {
	Reason string
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch: %s", e.Reason)
}
