package executor_test

import (
	"context"
	"testing"

	"github.com/habitquest/delegate/internal/domain/delegation"
	"github.com/habitquest/delegate/internal/port/executor"
)

type stubExecutor struct {
	typ  string
	caps []string
}

func (s *stubExecutor) Type() string            { return s.typ }
func (s *stubExecutor) Capabilities() []string  { return s.caps }
func (s *stubExecutor) Version() string         { return "test" }
func (s *stubExecutor) Invoke(context.Context, *delegation.TaskSpecification, uint64) (string, error) {
	return "", nil
}

func TestRegistryRegisterAndGet(t *testing.T) {
	reg := executor.NewRegistry()
	if err := reg.Register(&stubExecutor{typ: "email"}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if _, ok := reg.Get("email"); !ok {
		t.Error("registered executor not found")
	}
	if _, ok := reg.Get("missing"); ok {
		t.Error("unregistered type must not resolve")
	}
}

func TestRegistryRejectsDuplicate(t *testing.T) {
	reg := executor.NewRegistry()
	if err := reg.Register(&stubExecutor{typ: "email"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := reg.Register(&stubExecutor{typ: "email"}); err == nil {
		t.Error("duplicate registration must fail")
	}
}

func TestRegistryAllSorted(t *testing.T) {
	reg := executor.NewRegistry()
	for _, typ := range []string{"zeta", "alpha", "mid"} {
		if err := reg.Register(&stubExecutor{typ: typ}); err != nil {
			t.Fatal(err)
		}
	}

	types := reg.Types()
	want := []string{"alpha", "mid", "zeta"}
	for i, typ := range want {
		if types[i] != typ {
			t.Fatalf("Types() = %v, want %v", types, want)
		}
	}
}
