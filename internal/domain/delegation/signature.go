package delegation

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// Signature is a stable hash identifying the kind of task a specification
// describes. Context slot values are deliberately excluded, so two requests
// differing only by recipient or date share a signature and therefore share
// a learned seed ranking.
type Signature string

// ComputeSignature hashes (normalized goal, constraints, sorted tools,
// model version, toolkit version) into a hex signature.
func ComputeSignature(spec *TaskSpecification) Signature {
	h := sha256.New()

	write := func(part string) {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}

	write(spec.NormalizedGoal())
	for _, c := range spec.Constraints {
		write(strings.ToLower(strings.TrimSpace(c)))
	}
	tools := append([]string(nil), spec.ToolsAllowed...)
	sort.Strings(tools)
	write(strings.Join(tools, ","))
	write(spec.ModelVersion)
	write(spec.ToolkitVersion)

	return Signature(hex.EncodeToString(h.Sum(nil)[:16]))
}
