// Package memory implements the seed store and delegation history ports with
// in-process state. It is the default single-node backend and the one used
// by tests; the locking discipline matches the postgres adapter.
package memory

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/habitquest/delegate/internal/domain/delegation"
	"github.com/habitquest/delegate/internal/domain/seed"
	"github.com/habitquest/delegate/internal/port/seedstore"
)

// SeedStore keeps one entry per signature. The per-signature semaphore
// serializes the read-modify-write cycle; the outer mutex only guards the
// entry map and the record pointer swap on commit.
type SeedStore struct {
	mu      sync.Mutex
	entries map[delegation.Signature]*entry
}

type entry struct {
	sem *semaphore.Weighted
	rec *seed.Record
}

// NewSeedStore returns an empty in-memory seed store.
func NewSeedStore() *SeedStore {
	return &SeedStore{entries: make(map[delegation.Signature]*entry)}
}

func (s *SeedStore) entryFor(sig delegation.Signature) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[sig]
	if !ok {
		e = &entry{sem: semaphore.NewWeighted(1)}
		s.entries[sig] = e
	}
	return e
}

// Acquire obtains the per-signature lease, waiting at most until ctx expires.
func (s *SeedStore) Acquire(ctx context.Context, sig delegation.Signature) (seedstore.Lease, error) {
	e := s.entryFor(sig)

	if err := e.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("acquire %s: %w", sig, delegation.ErrLockTimeout)
	}

	s.mu.Lock()
	working := seed.NewRecord(sig)
	if e.rec != nil {
		working = e.rec.Clone()
	}
	s.mu.Unlock()

	return &lease{store: s, entry: e, working: working}, nil
}

// Snapshot returns a read-only copy of the record without taking the lease.
func (s *SeedStore) Snapshot(_ context.Context, sig delegation.Signature) (*seed.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[sig]
	if !ok || e.rec == nil {
		return nil, fmt.Errorf("seed record %s: %w", sig, delegation.ErrNotFound)
	}
	return e.rec.Clone(), nil
}

type lease struct {
	store   *SeedStore
	entry   *entry
	working *seed.Record
	done    bool
}

func (l *lease) Record() *seed.Record { return l.working }

func (l *lease) Commit(_ context.Context) error {
	if l.done {
		return fmt.Errorf("seed lease already terminated")
	}
	l.done = true

	l.store.mu.Lock()
	l.entry.rec = l.working.Clone()
	l.store.mu.Unlock()

	l.entry.sem.Release(1)
	return nil
}

func (l *lease) Release() {
	if l.done {
		return
	}
	l.done = true
	l.entry.sem.Release(1)
}
