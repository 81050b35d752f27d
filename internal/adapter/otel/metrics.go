package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "delegate"

// Metrics holds the engine's metric instruments.
type Metrics struct {
	DelegationsStarted   metric.Int64Counter
	DelegationsSucceeded metric.Int64Counter
	DelegationsFailed    metric.Int64Counter
	Attempts             metric.Int64Counter
	AttemptDuration      metric.Float64Histogram
	SeedPromotions       metric.Int64Counter
	SeedDemotions        metric.Int64Counter
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.DelegationsStarted, err = meter.Int64Counter("delegate.delegations.started",
		metric.WithDescription("Number of delegations started"))
	if err != nil {
		return nil, err
	}

	m.DelegationsSucceeded, err = meter.Int64Counter("delegate.delegations.succeeded",
		metric.WithDescription("Number of delegations that passed verification"))
	if err != nil {
		return nil, err
	}

	m.DelegationsFailed, err = meter.Int64Counter("delegate.delegations.failed",
		metric.WithDescription("Number of delegations that exhausted their retry budget"))
	if err != nil {
		return nil, err
	}

	m.Attempts, err = meter.Int64Counter("delegate.attempts",
		metric.WithDescription("Number of executor invocations"))
	if err != nil {
		return nil, err
	}

	m.AttemptDuration, err = meter.Float64Histogram("delegate.attempt.duration_seconds",
		metric.WithDescription("Executor invocation duration in seconds"))
	if err != nil {
		return nil, err
	}

	m.SeedPromotions, err = meter.Int64Counter("delegate.seeds.promotions",
		metric.WithDescription("Number of seed candidate promotions"))
	if err != nil {
		return nil, err
	}

	m.SeedDemotions, err = meter.Int64Counter("delegate.seeds.demotions",
		metric.WithDescription("Number of seed candidate demotions"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
