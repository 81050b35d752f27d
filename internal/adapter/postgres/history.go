package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/habitquest/delegate/internal/domain/delegation"
)

// History implements the delegation history port on PostgreSQL.
// Rows are insert-only; there is no update path.
type History struct {
	pool *pgxpool.Pool
}

// NewHistory wraps the pool.
func NewHistory(pool *pgxpool.Pool) *History {
	return &History{pool: pool}
}

// Append inserts one run record.
func (h *History) Append(ctx context.Context, rec *delegation.RunRecord) error {
	const sql = `
		INSERT INTO run_records (id, request_id, signature, normalized_goal, executor_type,
		                         seed_used, attempt_number, duration_ms, verifier_passed,
		                         verifier_score, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := h.pool.Exec(ctx, sql,
		rec.ID, rec.RequestID, string(rec.Signature), rec.NormalizedGoal, rec.ExecutorType,
		int64(rec.SeedUsed), rec.AttemptNumber, rec.DurationMs, rec.VerifierPassed,
		rec.VerifierScore, string(rec.Status), rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append run record: %w", err)
	}
	return nil
}

// Recent returns up to n records for the signature, newest first.
func (h *History) Recent(ctx context.Context, sig delegation.Signature, n int) ([]delegation.RunRecord, error) {
	const sql = `
		SELECT id, request_id, signature, normalized_goal, executor_type, seed_used,
		       attempt_number, duration_ms, verifier_passed, verifier_score, status, created_at
		FROM run_records
		WHERE signature = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := h.pool.Query(ctx, sql, string(sig), n)
	if err != nil {
		return nil, fmt.Errorf("recent runs %s: %w", sig, err)
	}
	return scanRunRecords(rows)
}

// RecentAll returns up to limit records across all signatures, newest first.
func (h *History) RecentAll(ctx context.Context, limit int) ([]delegation.RunRecord, error) {
	const sql = `
		SELECT id, request_id, signature, normalized_goal, executor_type, seed_used,
		       attempt_number, duration_ms, verifier_passed, verifier_score, status, created_at
		FROM run_records
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := h.pool.Query(ctx, sql, limit)
	if err != nil {
		return nil, fmt.Errorf("recent runs: %w", err)
	}
	return scanRunRecords(rows)
}

func scanRunRecords(rows pgx.Rows) ([]delegation.RunRecord, error) {
	defer rows.Close()

	var out []delegation.RunRecord
	for rows.Next() {
		var rec delegation.RunRecord
		var sig, status string
		var rawSeed int64
		err := rows.Scan(&rec.ID, &rec.RequestID, &sig, &rec.NormalizedGoal, &rec.ExecutorType,
			&rawSeed, &rec.AttemptNumber, &rec.DurationMs, &rec.VerifierPassed,
			&rec.VerifierScore, &status, &rec.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan run record: %w", err)
		}
		rec.Signature = delegation.Signature(sig)
		rec.Status = delegation.RunStatus(status)
		rec.SeedUsed = uint64(rawSeed)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run records: %w", err)
	}
	return out, nil
}
