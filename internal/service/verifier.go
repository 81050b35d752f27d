package service

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/habitquest/delegate/internal/domain/delegation"
)

// CheckResult is one evaluated success check.
type CheckResult struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// Verification is the verifier's verdict on one artifact. Passed is the AND
// of all checks; Score is the fraction passed, so the learning controller
// can tell a close miss from a wildly wrong output.
type Verification struct {
	Passed bool          `json:"passed"`
	Score  float64       `json:"score"`
	Checks []CheckResult `json:"checks"`
}

// Summary renders a compact human-readable verdict for results and logs.
func (v Verification) Summary() string {
	passed := 0
	for _, c := range v.Checks {
		if c.Passed {
			passed++
		}
	}
	return fmt.Sprintf("%d/%d checks passed (score %.2f)", passed, len(v.Checks), v.Score)
}

// FailedChecks lists the names of failing checks.
func (v Verification) FailedChecks() []string {
	var failed []string
	for _, c := range v.Checks {
		if !c.Passed {
			failed = append(failed, c.Name)
		}
	}
	return failed
}

// Verifier evaluates artifacts against a specification's success checks.
// It is stateless; every check is evaluated independently.
type Verifier struct{}

// Verify evaluates all checks. An empty check list passes trivially with
// score 1 (the decision engine already penalizes unverifiable tasks).
func (Verifier) Verify(artifact string, spec *delegation.TaskSpecification) Verification {
	if len(spec.SuccessChecks) == 0 {
		return Verification{Passed: true, Score: 1}
	}

	v := Verification{Checks: make([]CheckResult, 0, len(spec.SuccessChecks))}
	passed := 0
	for _, check := range spec.SuccessChecks {
		res := evalCheck(artifact, check, spec)
		if res.Passed {
			passed++
		}
		v.Checks = append(v.Checks, res)
	}
	v.Score = float64(passed) / float64(len(spec.SuccessChecks))
	v.Passed = passed == len(spec.SuccessChecks)
	return v
}

func evalCheck(artifact string, check delegation.SuccessCheck, spec *delegation.TaskSpecification) CheckResult {
	res := CheckResult{Name: check.Name}
	switch check.Kind {
	case delegation.CheckNotEmpty:
		res.Passed = strings.TrimSpace(artifact) != ""
		if !res.Passed {
			res.Detail = "artifact is blank"
		}
	case delegation.CheckContains:
		want := spec.FillSlots(check.Arg)
		res.Passed = strings.Contains(strings.ToLower(artifact), strings.ToLower(want))
		if !res.Passed {
			res.Detail = fmt.Sprintf("missing %q", want)
		}
	case delegation.CheckMaxChars:
		limit, _ := strconv.Atoi(check.Arg)
		res.Passed = len(artifact) <= limit
		if !res.Passed {
			res.Detail = fmt.Sprintf("%d chars exceeds limit %d", len(artifact), limit)
		}
	case delegation.CheckMaxWords:
		limit, _ := strconv.Atoi(check.Arg)
		words := len(strings.Fields(artifact))
		res.Passed = words <= limit
		if !res.Passed {
			res.Detail = fmt.Sprintf("%d words exceeds limit %d", words, limit)
		}
	case delegation.CheckAllSlotsUsed:
		lower := strings.ToLower(artifact)
		var missing []string
		for name, value := range spec.RequiredContext {
			if !strings.Contains(lower, strings.ToLower(value)) {
				missing = append(missing, name)
			}
		}
		res.Passed = len(missing) == 0
		if !res.Passed {
			res.Detail = "unused slots: " + strings.Join(missing, ", ")
		}
	default:
		// Unknown kinds cannot reach here through the parser; fail closed
		// for specs built by hand.
		res.Detail = fmt.Sprintf("unknown check kind %q", check.Kind)
	}
	return res
}
