// Package tasknote compiles a raw natural-language Task Note plus
// caller-supplied context hints into a TaskSpecification.
//
// Parsing is total: it either yields a specification whose referenced slots
// are all covered by context, or a ParseError naming the first missing or
// ambiguous element. It never produces a silent partial result and is never
// retried automatically.
package tasknote

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/habitquest/delegate/internal/domain/delegation"
)

// Versions pins the model/toolkit identifiers stamped onto every compiled
// specification; both participate in the signature.
type Versions struct {
	Model   string
	Toolkit string
}

// Parser compiles task notes. The zero value is unusable; use New.
type Parser struct {
	versions Versions
}

// New returns a Parser stamping the given versions.
func New(v Versions) *Parser {
	return &Parser{versions: v}
}

var (
	mustIncludePattern = regexp.MustCompile(`must include "([^"]+)"`)
	atMostPattern      = regexp.MustCompile(`at most (\d+) (chars|characters|words)`)
)

// Parse compiles note and hints into an immutable TaskSpecification.
func (p *Parser) Parse(note string, hints map[string]string) (*delegation.TaskSpecification, error) {
	spec := &delegation.TaskSpecification{
		RequiredContext: map[string]string{},
		ModelVersion:    p.versions.Model,
		ToolkitVersion:  p.versions.Toolkit,
	}
	for k, v := range hints {
		spec.RequiredContext[k] = v
	}

	explicitNoChecks := false
	for _, line := range strings.Split(note, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		key, val, hasPrefix := strings.Cut(line, ":")
		if hasPrefix {
			key = strings.ToLower(strings.TrimSpace(key))
			val = strings.TrimSpace(val)
		}
		switch {
		case hasPrefix && key == "goal":
			if spec.Goal != "" {
				return nil, &delegation.ParseError{Element: "goal", Reason: "declared more than once"}
			}
			spec.Goal = val
		case hasPrefix && key == "constraint":
			if val == "" {
				return nil, &delegation.ParseError{Element: "constraint", Reason: "empty constraint line"}
			}
			spec.Constraints = append(spec.Constraints, val)
		case hasPrefix && key == "check":
			if strings.EqualFold(val, "none") {
				explicitNoChecks = true
				continue
			}
			check, err := parseCheck(val, len(spec.SuccessChecks)+1)
			if err != nil {
				return nil, err
			}
			spec.SuccessChecks = append(spec.SuccessChecks, check)
		case hasPrefix && key == "tools":
			for _, tool := range strings.Split(val, ",") {
				if tool = strings.TrimSpace(tool); tool != "" {
					spec.ToolsAllowed = append(spec.ToolsAllowed, strings.ToLower(tool))
				}
			}
		default:
			// Free text: the first such line is the goal, the rest are
			// inline constraints.
			if spec.Goal == "" {
				spec.Goal = line
			} else {
				spec.Constraints = append(spec.Constraints, line)
			}
		}
	}

	if spec.Goal == "" {
		return nil, &delegation.ParseError{Element: "goal", Reason: "task note contains no goal"}
	}
	if explicitNoChecks && len(spec.SuccessChecks) > 0 {
		return nil, &delegation.ParseError{Element: "check", Reason: `"check: none" conflicts with declared checks`}
	}

	deriveInlineChecks(spec)

	// A task with no checks at all is unverifiable by accident more often
	// than by intent; derive a minimal not_empty check unless the note
	// opted out explicitly.
	if len(spec.SuccessChecks) == 0 && !explicitNoChecks {
		spec.SuccessChecks = append(spec.SuccessChecks, delegation.SuccessCheck{
			Name: "not-empty",
			Kind: delegation.CheckNotEmpty,
		})
	}

	if missing := spec.MissingSlots(); len(missing) > 0 {
		return nil, &delegation.ParseError{
			Element: "slot " + missing[0],
			Reason:  fmt.Sprintf("referenced but absent from context hints (missing: %s)", strings.Join(missing, ", ")),
		}
	}

	return spec, nil
}

// deriveInlineChecks lifts machine-checkable phrases inside constraints into
// success checks, so "must include ..." style constraints are enforced, not
// just recorded.
func deriveInlineChecks(spec *delegation.TaskSpecification) {
	for _, c := range spec.Constraints {
		lower := strings.ToLower(c)
		for _, m := range mustIncludePattern.FindAllStringSubmatch(c, -1) {
			spec.SuccessChecks = append(spec.SuccessChecks, delegation.SuccessCheck{
				Name: fmt.Sprintf("includes-%d", len(spec.SuccessChecks)+1),
				Kind: delegation.CheckContains,
				Arg:  m[1],
			})
		}
		if m := atMostPattern.FindStringSubmatch(lower); m != nil {
			kind := delegation.CheckMaxChars
			if m[2] == "words" {
				kind = delegation.CheckMaxWords
			}
			spec.SuccessChecks = append(spec.SuccessChecks, delegation.SuccessCheck{
				Name: fmt.Sprintf("limit-%d", len(spec.SuccessChecks)+1),
				Kind: kind,
				Arg:  m[1],
			})
		}
	}
}

// parseCheck parses one "check:" line of the form kind or kind=arg.
func parseCheck(val string, ordinal int) (delegation.SuccessCheck, error) {
	kindStr, arg, _ := strings.Cut(val, "=")
	kind := delegation.CheckKind(strings.ToLower(strings.TrimSpace(kindStr)))
	arg = strings.TrimSpace(arg)

	check := delegation.SuccessCheck{
		Name: fmt.Sprintf("check-%d", ordinal),
		Kind: kind,
		Arg:  arg,
	}

	switch kind {
	case delegation.CheckNotEmpty, delegation.CheckAllSlotsUsed:
		if arg != "" {
			return check, &delegation.ParseError{Element: string(kind), Reason: "takes no argument"}
		}
	case delegation.CheckContains:
		if arg == "" {
			return check, &delegation.ParseError{Element: string(kind), Reason: "requires an argument"}
		}
	case delegation.CheckMaxChars, delegation.CheckMaxWords:
		n, err := strconv.Atoi(arg)
		if err != nil || n < 1 {
			return check, &delegation.ParseError{Element: string(kind), Reason: fmt.Sprintf("requires a positive integer, got %q", arg)}
		}
	default:
		return check, &delegation.ParseError{Element: "check", Reason: fmt.Sprintf("unknown check kind %q", kindStr)}
	}

	return check, nil
}
