package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/habitquest/delegate/internal/config"
)

func TestDefaults(t *testing.T) {
	cfg := config.Defaults()

	if cfg.Server.Port != "8085" {
		t.Errorf("default port = %q", cfg.Server.Port)
	}
	if cfg.Store.Driver != "memory" {
		t.Errorf("default store driver = %q", cfg.Store.Driver)
	}
	if cfg.Engine.RetryBudgetNormal != 3 || cfg.Engine.RetryBudgetHigh != 5 || cfg.Engine.RetryBudgetUrgent != 8 {
		t.Errorf("unexpected retry budgets: %+v", cfg.Engine)
	}
	if cfg.Decision.DelegateThreshold != 0.6 {
		t.Errorf("default threshold = %v", cfg.Decision.DelegateThreshold)
	}
	sum := cfg.Decision.DeterminismWeight + cfg.Decision.VerifiabilityWeight +
		cfg.Decision.RepeatabilityWeight + cfg.Decision.SelfContainednessWeight
	if sum != 1.0 {
		t.Errorf("default weights sum to %v", sum)
	}
	if cfg.Discovery.HistoryWindow != 5 || cfg.Discovery.HistorySuccessRate != 0.8 {
		t.Errorf("unexpected discovery defaults: %+v", cfg.Discovery)
	}
}

func TestLoadFromMissingFileUsesDefaults(t *testing.T) {
	cfg, err := config.LoadFrom(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("missing file must not be an error: %v", err)
	}
	if cfg.Server.Port != "8085" {
		t.Errorf("expected defaults, got port %q", cfg.Server.Port)
	}
}

func TestLoadFromYAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "delegate.yaml")
	yaml := `
server:
  port: "9090"
engine:
  retry_budget_urgent: 10
  default_timeout: 45s
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.Server.Port != "9090" {
		t.Errorf("port = %q, want 9090", cfg.Server.Port)
	}
	if cfg.Engine.RetryBudgetUrgent != 10 {
		t.Errorf("urgent budget = %d, want 10", cfg.Engine.RetryBudgetUrgent)
	}
	if cfg.Engine.DefaultTimeout != 45*time.Second {
		t.Errorf("default timeout = %v, want 45s", cfg.Engine.DefaultTimeout)
	}
	// Untouched values keep their defaults.
	if cfg.Engine.RetryBudgetNormal != 3 {
		t.Errorf("normal budget = %d, want default 3", cfg.Engine.RetryBudgetNormal)
	}
}

func TestLoadEnvOverridesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "delegate.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: \"9090\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DELEGATE_PORT", "7070")
	t.Setenv("DELEGATE_RETRY_BUDGET_NORMAL", "4")

	cfg, err := config.LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.Server.Port != "7070" {
		t.Errorf("env must beat yaml, got port %q", cfg.Server.Port)
	}
	if cfg.Engine.RetryBudgetNormal != 4 {
		t.Errorf("normal budget = %d, want 4", cfg.Engine.RetryBudgetNormal)
	}
}

func TestValidateRejectsBadConfig(t *testing.T) {
	write := func(t *testing.T, yaml string) string {
		t.Helper()
		path := filepath.Join(t.TempDir(), "delegate.yaml")
		if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
			t.Fatal(err)
		}
		return path
	}

	cases := []struct {
		name string
		yaml string
	}{
		{"unknown driver", "store:\n  driver: sqlite\n"},
		{"weights off", "decision:\n  determinism_weight: 0.9\n"},
		{"threshold out of range", "decision:\n  delegate_threshold: 1.5\n"},
		{"zero budget", "engine:\n  retry_budget_normal: 0\n"},
		{"zero history window", "discovery:\n  history_window: 0\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := config.LoadFrom(write(t, tc.yaml)); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestRetryBudgetByPriority(t *testing.T) {
	e := config.Defaults().Engine
	if got := e.RetryBudget("normal"); got != 3 {
		t.Errorf("normal = %d", got)
	}
	if got := e.RetryBudget("high"); got != 5 {
		t.Errorf("high = %d", got)
	}
	if got := e.RetryBudget("urgent"); got != 8 {
		t.Errorf("urgent = %d", got)
	}
	if got := e.RetryBudget(""); got != 3 {
		t.Errorf("unknown priority should get the normal budget, got %d", got)
	}
}
