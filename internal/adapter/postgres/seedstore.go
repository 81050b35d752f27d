package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/habitquest/delegate/internal/domain/delegation"
	"github.com/habitquest/delegate/internal/domain/seed"
	"github.com/habitquest/delegate/internal/port/seedstore"
)

// SeedStore implements the seed store port on PostgreSQL. The per-signature
// lease maps onto a session-level advisory lock held on a dedicated
// connection, so concurrent engine instances on different hosts still
// serialize their read-modify-write cycles.
type SeedStore struct {
	pool *pgxpool.Pool
}

// NewSeedStore wraps the pool.
func NewSeedStore(pool *pgxpool.Pool) *SeedStore {
	return &SeedStore{pool: pool}
}

// queryer is satisfied by both *pgxpool.Pool and *pgx.Conn.
type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Acquire takes the advisory lock for sig, bounded by ctx, and loads the
// record's candidates on the locked connection.
func (s *SeedStore) Acquire(ctx context.Context, sig delegation.Signature) (seedstore.Lease, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire conn: %w", err)
	}

	// pg_advisory_lock blocks until granted; ctx cancellation aborts the
	// wait, which we report as lock contention.
	if _, err := conn.Exec(ctx, `SELECT pg_advisory_lock(hashtextextended($1, 0))`, string(sig)); err != nil {
		conn.Release()
		return nil, fmt.Errorf("advisory lock %s: %w", sig, delegation.ErrLockTimeout)
	}

	rec, err := s.load(ctx, conn.Conn(), sig)
	if err != nil {
		s.unlock(ctx, conn, sig)
		conn.Release()
		return nil, err
	}

	return &lease{store: s, conn: conn, sig: sig, working: rec}, nil
}

// Snapshot loads the record without locking.
func (s *SeedStore) Snapshot(ctx context.Context, sig delegation.Signature) (*seed.Record, error) {
	rec, err := s.load(ctx, s.pool, sig)
	if err != nil {
		return nil, err
	}
	if rec.Len() == 0 {
		return nil, fmt.Errorf("seed record %s: %w", sig, delegation.ErrNotFound)
	}
	return rec, nil
}

func (s *SeedStore) load(ctx context.Context, q queryer, sig delegation.Signature) (*seed.Record, error) {
	const sql = `
		SELECT seed, success_score, attempts, last_updated
		FROM seed_candidates
		WHERE signature = $1
		ORDER BY success_score DESC, attempts ASC`

	rows, err := q.Query(ctx, sql, string(sig))
	if err != nil {
		return nil, fmt.Errorf("load seed record %s: %w", sig, err)
	}
	defer rows.Close()

	rec := seed.NewRecord(sig)
	for rows.Next() {
		var c seed.Candidate
		var rawSeed int64
		if err := rows.Scan(&rawSeed, &c.SuccessScore, &c.Attempts, &c.LastUpdated); err != nil {
			return nil, fmt.Errorf("scan seed candidate: %w", err)
		}
		c.Seed = uint64(rawSeed)
		rec.Candidates = append(rec.Candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate seed candidates: %w", err)
	}
	rec.Rebuild()
	return rec, nil
}

// unlock releases the advisory lock even when ctx is already cancelled.
func (s *SeedStore) unlock(ctx context.Context, conn *pgxpool.Conn, sig delegation.Signature) {
	_, _ = conn.Exec(context.WithoutCancel(ctx), `SELECT pg_advisory_unlock(hashtextextended($1, 0))`, string(sig))
}

type lease struct {
	store   *SeedStore
	conn    *pgxpool.Conn
	sig     delegation.Signature
	working *seed.Record
	done    bool
}

func (l *lease) Record() *seed.Record { return l.working }

// Commit rewrites the signature's candidate rows in one transaction, then
// drops the advisory lock and the connection.
func (l *lease) Commit(ctx context.Context) error {
	if l.done {
		return fmt.Errorf("seed lease already terminated")
	}
	l.done = true
	defer func() {
		l.store.unlock(ctx, l.conn, l.sig)
		l.conn.Release()
	}()

	tx, err := l.conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin seed commit: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM seed_candidates WHERE signature = $1`, string(l.sig)); err != nil {
		return fmt.Errorf("clear seed candidates: %w", err)
	}
	for _, c := range l.working.Candidates {
		_, err := tx.Exec(ctx, `
			INSERT INTO seed_candidates (signature, seed, success_score, attempts, last_updated)
			VALUES ($1, $2, $3, $4, $5)`,
			string(l.sig), int64(c.Seed), c.SuccessScore, c.Attempts, c.LastUpdated)
		if err != nil {
			return fmt.Errorf("insert seed candidate: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit seed record: %w", err)
	}
	return nil
}

func (l *lease) Release() {
	if l.done {
		return
	}
	l.done = true
	l.store.unlock(context.Background(), l.conn, l.sig)
	l.conn.Release()
}
