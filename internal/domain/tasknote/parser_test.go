package tasknote_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/habitquest/delegate/internal/domain/delegation"
	"github.com/habitquest/delegate/internal/domain/tasknote"
)

var testVersions = tasknote.Versions{Model: "m1", Toolkit: "t1"}

func TestParseStructuredNote(t *testing.T) {
	p := tasknote.New(testVersions)

	note := `goal: Draft a status email to {recipient} about {topic}
constraint: professional tone
constraint: at most 200 words
check: contains=status
tools: email, calendar`

	spec, err := p.Parse(note, map[string]string{
		"recipient": "dana@example.com",
		"topic":     "the Q3 launch",
	})
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}

	if spec.Goal != "Draft a status email to {recipient} about {topic}" {
		t.Errorf("unexpected goal: %q", spec.Goal)
	}
	if len(spec.Constraints) != 2 {
		t.Fatalf("expected 2 constraints, got %d", len(spec.Constraints))
	}
	if len(spec.ToolsAllowed) != 2 || spec.ToolsAllowed[0] != "email" || spec.ToolsAllowed[1] != "calendar" {
		t.Errorf("unexpected tools: %v", spec.ToolsAllowed)
	}
	if spec.ModelVersion != "m1" || spec.ToolkitVersion != "t1" {
		t.Errorf("versions not stamped: %q/%q", spec.ModelVersion, spec.ToolkitVersion)
	}

	// The explicit contains check plus the max-words check derived from
	// "at most 200 words".
	kinds := make(map[delegation.CheckKind]bool)
	for _, c := range spec.SuccessChecks {
		kinds[c.Kind] = true
	}
	if !kinds[delegation.CheckContains] || !kinds[delegation.CheckMaxWords] {
		t.Errorf("expected contains and max_words checks, got %v", spec.SuccessChecks)
	}
}

func TestParseFreeTextNote(t *testing.T) {
	p := tasknote.New(testVersions)

	spec, err := p.Parse("Summarize the attached report\nKeep it short", nil)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if spec.Goal != "Summarize the attached report" {
		t.Errorf("first free-text line should become the goal, got %q", spec.Goal)
	}
	if len(spec.Constraints) != 1 || spec.Constraints[0] != "Keep it short" {
		t.Errorf("remaining free text should become constraints, got %v", spec.Constraints)
	}
	// No explicit checks: a not_empty check is derived.
	if len(spec.SuccessChecks) != 1 || spec.SuccessChecks[0].Kind != delegation.CheckNotEmpty {
		t.Errorf("expected derived not_empty check, got %v", spec.SuccessChecks)
	}
}

func TestParseMustIncludeDerivesCheck(t *testing.T) {
	p := tasknote.New(testVersions)

	spec, err := p.Parse("goal: write the invite\nconstraint: must include \"RSVP by Friday\"", nil)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	found := false
	for _, c := range spec.SuccessChecks {
		if c.Kind == delegation.CheckContains && c.Arg == "RSVP by Friday" {
			found = true
		}
	}
	if !found {
		t.Errorf("must-include constraint not lifted into a check: %v", spec.SuccessChecks)
	}
}

func TestParseCheckNone(t *testing.T) {
	p := tasknote.New(testVersions)

	spec, err := p.Parse("goal: brainstorm ideas\ncheck: none", nil)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(spec.SuccessChecks) != 0 {
		t.Errorf("check: none should suppress derived checks, got %v", spec.SuccessChecks)
	}

	_, err = p.Parse("goal: x\ncheck: none\ncheck: not_empty", nil)
	var parseErr *delegation.ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("conflicting check lines should be a ParseError, got %v", err)
	}
}

func TestParseMissingSlotFailsFast(t *testing.T) {
	p := tasknote.New(testVersions)

	_, err := p.Parse("goal: email {recipient} about {topic}", map[string]string{
		"recipient": "dana@example.com",
	})
	var parseErr *delegation.ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected ParseError for uncovered slot, got %v", err)
	}
	if !strings.Contains(parseErr.Element, "topic") {
		t.Errorf("error should name the missing slot, got %q", parseErr.Element)
	}
}

func TestParseRejectsEmptyGoal(t *testing.T) {
	p := tasknote.New(testVersions)

	for _, note := range []string{"", "   \n  ", "constraint: short"} {
		_, err := p.Parse(note, nil)
		var parseErr *delegation.ParseError
		if !errors.As(err, &parseErr) {
			t.Errorf("note %q: expected ParseError, got %v", note, err)
		}
	}
}

func TestParseRejectsDuplicateGoal(t *testing.T) {
	p := tasknote.New(testVersions)

	_, err := p.Parse("goal: one\ngoal: two", nil)
	var parseErr *delegation.ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected ParseError, got %v", err)
	}
	if parseErr.Element != "goal" {
		t.Errorf("error should name the goal element, got %q", parseErr.Element)
	}
}

func TestParseRejectsBadCheckLines(t *testing.T) {
	p := tasknote.New(testVersions)

	cases := []string{
		"goal: x\ncheck: max_chars=zero",
		"goal: x\ncheck: max_words=0",
		"goal: x\ncheck: contains",
		"goal: x\ncheck: not_empty=arg",
		"goal: x\ncheck: frobnicate",
	}
	for _, note := range cases {
		_, err := p.Parse(note, nil)
		var parseErr *delegation.ParseError
		if !errors.As(err, &parseErr) {
			t.Errorf("note %q: expected ParseError, got %v", note, err)
		}
	}
}

func TestParseNeverRetriesSilently(t *testing.T) {
	// A failed parse yields no partial spec.
	p := tasknote.New(testVersions)
	spec, err := p.Parse("goal: email {missing}", nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if spec != nil {
		t.Errorf("failed parse must not return a partial spec, got %+v", spec)
	}
}
