// Package nats mirrors delegation history onto NATS JetStream so external
// audit consumers (dashboards, warehouses) can tail run records without
// touching the engine's store.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/habitquest/delegate/internal/domain/delegation"
	"github.com/habitquest/delegate/internal/port/history"
)

const streamName = "DELEGATIONS"

// Mirror decorates a history.Store: every appended RunRecord is also
// published to "delegations.runs.<executor_type>". Reads pass through.
type Mirror struct {
	inner history.Store
	nc    *nats.Conn
	js    jetstream.JetStream
}

// Connect establishes the NATS connection, ensures the stream exists, and
// wraps inner with the mirror.
func Connect(ctx context.Context, url string, inner history.Store) (*Mirror, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     streamName,
		Subjects: []string{"delegations.runs.>"},
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream stream create: %w", err)
	}

	slog.Info("nats history mirror connected", "url", url, "stream", streamName)
	return &Mirror{inner: inner, nc: nc, js: js}, nil
}

// Append stores the record and publishes it. A publish failure is logged but
// does not fail the append: the store remains the source of truth.
func (m *Mirror) Append(ctx context.Context, rec *delegation.RunRecord) error {
	if err := m.inner.Append(ctx, rec); err != nil {
		return err
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal run record: %w", err)
	}
	subject := "delegations.runs." + rec.ExecutorType
	if _, err := m.js.Publish(ctx, subject, data); err != nil {
		slog.Error("history mirror publish failed", "subject", subject, "error", err)
	}
	return nil
}

// Recent passes through to the wrapped store.
func (m *Mirror) Recent(ctx context.Context, sig delegation.Signature, n int) ([]delegation.RunRecord, error) {
	return m.inner.Recent(ctx, sig, n)
}

// RecentAll passes through to the wrapped store.
func (m *Mirror) RecentAll(ctx context.Context, limit int) ([]delegation.RunRecord, error) {
	return m.inner.RecentAll(ctx, limit)
}

// Close shuts down the NATS connection.
func (m *Mirror) Close() error {
	m.nc.Close()
	return nil
}
