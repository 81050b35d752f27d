// Package executor defines the Tool Agent executor port: the only seam
// through which the delegation engine calls domain-specific tooling.
package executor

import (
	"context"

	"github.com/habitquest/delegate/internal/domain/delegation"
)

// Executor is one registered Tool Agent. For a fixed Version, Invoke must be
// reproducible: the same (spec, seed) pair yields a bit-identical artifact.
// How an executor achieves that (fixed RNG seed, temperature zero, response
// cache) is its own concern.
type Executor interface {
	// Type returns the unique identifier for this executor (e.g. "email").
	Type() string

	// Capabilities returns the capability identifiers this executor declares,
	// matched against a specification's tools_allowed during discovery.
	Capabilities() []string

	// Version identifies the executor build; reproducibility is only
	// promised within one version.
	Version() string

	// Invoke runs the task once with the given seed and returns the raw
	// artifact. Cancellation is delivered through ctx.
	Invoke(ctx context.Context, spec *delegation.TaskSpecification, seedValue uint64) (string, error)
}
