package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "delegate.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// The YAML file is optional; a missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "DELEGATE_PORT")
	setString(&cfg.Server.CORSOrigin, "DELEGATE_CORS_ORIGIN")
	setString(&cfg.Logging.Level, "DELEGATE_LOG_LEVEL")
	setString(&cfg.Logging.Service, "DELEGATE_LOG_SERVICE")

	setString(&cfg.Store.Driver, "DELEGATE_STORE_DRIVER")
	setString(&cfg.Store.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Store.Postgres.MaxConns, "DELEGATE_PG_MAX_CONNS")
	setInt32(&cfg.Store.Postgres.MinConns, "DELEGATE_PG_MIN_CONNS")
	setDuration(&cfg.Store.Postgres.MaxConnLifetime, "DELEGATE_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Store.Postgres.MaxConnIdleTime, "DELEGATE_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Store.Postgres.HealthCheck, "DELEGATE_PG_HEALTH_CHECK")

	setBool(&cfg.NATS.Enabled, "DELEGATE_NATS_ENABLED")
	setString(&cfg.NATS.URL, "NATS_URL")

	setInt64(&cfg.Cache.MaxCostBytes, "DELEGATE_CACHE_MAX_COST_BYTES")
	setDuration(&cfg.Cache.RouteTTL, "DELEGATE_CACHE_ROUTE_TTL")

	setInt(&cfg.Breaker.MaxFailures, "DELEGATE_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "DELEGATE_BREAKER_TIMEOUT")

	setString(&cfg.Versions.Model, "DELEGATE_MODEL_VERSION")
	setString(&cfg.Versions.Toolkit, "DELEGATE_TOOLKIT_VERSION")

	setFloat64(&cfg.Decision.DeterminismWeight, "DELEGATE_DECISION_W_DETERMINISM")
	setFloat64(&cfg.Decision.VerifiabilityWeight, "DELEGATE_DECISION_W_VERIFIABILITY")
	setFloat64(&cfg.Decision.RepeatabilityWeight, "DELEGATE_DECISION_W_REPEATABILITY")
	setFloat64(&cfg.Decision.SelfContainednessWeight, "DELEGATE_DECISION_W_SELF_CONTAINED")
	setFloat64(&cfg.Decision.DelegateThreshold, "DELEGATE_DECISION_THRESHOLD")

	setInt(&cfg.Discovery.HistoryWindow, "DELEGATE_DISCOVERY_HISTORY_WINDOW")
	setFloat64(&cfg.Discovery.HistorySuccessRate, "DELEGATE_DISCOVERY_HISTORY_SUCCESS_RATE")
	setInt(&cfg.Discovery.HistoryScan, "DELEGATE_DISCOVERY_HISTORY_SCAN")
	setFloat64(&cfg.Discovery.Similarity, "DELEGATE_DISCOVERY_SIMILARITY")
	setString(&cfg.Discovery.FallbackType, "DELEGATE_DISCOVERY_FALLBACK")

	setInt(&cfg.Engine.RetryBudgetNormal, "DELEGATE_RETRY_BUDGET_NORMAL")
	setInt(&cfg.Engine.RetryBudgetHigh, "DELEGATE_RETRY_BUDGET_HIGH")
	setInt(&cfg.Engine.RetryBudgetUrgent, "DELEGATE_RETRY_BUDGET_URGENT")
	setDuration(&cfg.Engine.DefaultTimeout, "DELEGATE_DEFAULT_TIMEOUT")
	setString(&cfg.Engine.ExplorationSalt, "DELEGATE_EXPLORATION_SALT")
}

// validate checks that required fields and invariant-bearing tunables are sane.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	switch cfg.Store.Driver {
	case "memory":
	case "postgres":
		if cfg.Store.Postgres.DSN == "" {
			return errors.New("store.postgres.dsn is required")
		}
		if cfg.Store.Postgres.MaxConns < 1 {
			return errors.New("store.postgres.max_conns must be >= 1")
		}
	default:
		return fmt.Errorf("store.driver must be memory or postgres, got %q", cfg.Store.Driver)
	}
	if cfg.NATS.Enabled && cfg.NATS.URL == "" {
		return errors.New("nats.url is required when nats.enabled")
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}

	d := cfg.Decision
	sum := d.DeterminismWeight + d.VerifiabilityWeight + d.RepeatabilityWeight + d.SelfContainednessWeight
	if math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("decision weights must sum to 1, got %.3f", sum)
	}
	if d.DelegateThreshold <= 0 || d.DelegateThreshold > 1 {
		return errors.New("decision.delegate_threshold must be in (0, 1]")
	}

	if cfg.Discovery.HistoryWindow < 1 {
		return errors.New("discovery.history_window must be >= 1")
	}
	if cfg.Discovery.FallbackType == "" {
		return errors.New("discovery.fallback_type is required")
	}
	if s := cfg.Discovery.Similarity; s < 0 || s > 1 {
		return errors.New("discovery.similarity must be in [0, 1]")
	}

	if cfg.Engine.RetryBudgetNormal < 1 || cfg.Engine.RetryBudgetHigh < 1 || cfg.Engine.RetryBudgetUrgent < 1 {
		return errors.New("engine retry budgets must be >= 1")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
