// Package delegation holds the core types of the tool-agent delegation
// engine: task specifications, requests, results, run records, and the
// signature computer that identifies "the same kind of task" across requests.
package delegation

import (
	"regexp"
	"sort"
	"strings"
)

// CheckKind identifies a machine-checkable success predicate.
type CheckKind string

const (
	CheckContains     CheckKind = "contains"       // artifact contains Arg (case-insensitive)
	CheckMaxChars     CheckKind = "max_chars"      // artifact length <= Arg
	CheckMaxWords     CheckKind = "max_words"      // artifact word count <= Arg
	CheckNotEmpty     CheckKind = "not_empty"      // artifact is non-blank
	CheckAllSlotsUsed CheckKind = "all_slots_used" // artifact contains every context slot value
)

// SuccessCheck is one independently evaluable predicate over an artifact.
type SuccessCheck struct {
	Name string    `json:"name"`
	Kind CheckKind `json:"kind"`
	Arg  string    `json:"arg,omitempty"`
}

// TaskSpecification is the compiled, structured form of a Task Note.
// It is created once per delegation request and never mutated afterwards.
type TaskSpecification struct {
	Goal            string            `json:"goal"`
	Constraints     []string          `json:"constraints,omitempty"`
	RequiredContext map[string]string `json:"required_context,omitempty"`
	ToolsAllowed    []string          `json:"tools_allowed,omitempty"`
	SuccessChecks   []SuccessCheck    `json:"success_checks,omitempty"`
	ModelVersion    string            `json:"model_version"`
	ToolkitVersion  string            `json:"toolkit_version"`
}

var slotRefPattern = regexp.MustCompile(`\{([a-z][a-z0-9_]*)\}`)

// SlotRefs returns the distinct slot names referenced by the goal,
// constraints, and success checks, in first-occurrence order.
func (s *TaskSpecification) SlotRefs() []string {
	seen := make(map[string]bool)
	var refs []string
	collect := func(text string) {
		for _, m := range slotRefPattern.FindAllStringSubmatch(text, -1) {
			if !seen[m[1]] {
				seen[m[1]] = true
				refs = append(refs, m[1])
			}
		}
	}
	collect(s.Goal)
	for _, c := range s.Constraints {
		collect(c)
	}
	for _, c := range s.SuccessChecks {
		collect(c.Arg)
	}
	return refs
}

// MissingSlots returns referenced slots with no value in RequiredContext.
func (s *TaskSpecification) MissingSlots() []string {
	var missing []string
	for _, ref := range s.SlotRefs() {
		if _, ok := s.RequiredContext[ref]; !ok {
			missing = append(missing, ref)
		}
	}
	return missing
}

// FillSlots substitutes {slot} references in text with RequiredContext values.
func (s *TaskSpecification) FillSlots(text string) string {
	return slotRefPattern.ReplaceAllStringFunc(text, func(ref string) string {
		name := ref[1 : len(ref)-1]
		if v, ok := s.RequiredContext[name]; ok {
			return v
		}
		return ref
	})
}

var nonWordPattern = regexp.MustCompile(`[^a-z0-9_{}\s]+`)

// NormalizedGoal lowercases the goal, strips punctuation, and collapses
// whitespace. Signatures and similarity scoring both work on this form so
// cosmetic rephrasing does not defeat seed reuse.
func (s *TaskSpecification) NormalizedGoal() string {
	g := strings.ToLower(s.Goal)
	g = nonWordPattern.ReplaceAllString(g, " ")
	return strings.Join(strings.Fields(g), " ")
}

// GoalTokens returns the distinct tokens of the normalized goal, slot
// references excluded (their values vary per request).
func (s *TaskSpecification) GoalTokens() []string {
	stripped := slotRefPattern.ReplaceAllString(s.NormalizedGoal(), " ")
	seen := make(map[string]bool)
	var tokens []string
	for _, t := range strings.Fields(stripped) {
		if !seen[t] {
			seen[t] = true
			tokens = append(tokens, t)
		}
	}
	sort.Strings(tokens)
	return tokens
}

// GoalSimilarity is the Jaccard similarity between two normalized goal token
// sets, used for near-match signature lookup in history-based discovery.
func GoalSimilarity(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]bool, len(a))
	for _, t := range a {
		set[t] = true
	}
	inter := 0
	for _, t := range b {
		if set[t] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

// TokenizeGoal normalizes and tokenizes a stored goal string the same way
// GoalTokens does for a live specification.
func TokenizeGoal(goal string) []string {
	spec := TaskSpecification{Goal: goal}
	return spec.GoalTokens()
}
