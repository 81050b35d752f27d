// Package seedstore defines the Seed Store port: per-signature ranked seed
// records with a serialized read-modify-write cycle.
package seedstore

import (
	"context"

	"github.com/habitquest/delegate/internal/domain/delegation"
	"github.com/habitquest/delegate/internal/domain/seed"
)

// Lease is an exclusive hold on one signature's seed record. Exactly one
// lease exists per signature at a time; concurrent delegations for the same
// signature queue on Acquire. A lease ends with either Commit or Release.
type Lease interface {
	// Record returns the working copy. For a signature never seen before it
	// is an empty record, not nil. Mutations stay private until Commit.
	Record() *seed.Record

	// Commit persists the working copy and releases the lease.
	Commit(ctx context.Context) error

	// Release drops the lease without persisting. Safe to call after
	// Commit; the first terminating call wins.
	Release()
}

// Store is the seed persistence port. Implementations must make Acquire
// honor ctx cancellation while waiting, returning an error wrapping
// delegation.ErrLockTimeout so contention is reported distinctly.
type Store interface {
	Acquire(ctx context.Context, sig delegation.Signature) (Lease, error)

	// Snapshot returns a read-only copy of the record without locking it,
	// or delegation.ErrNotFound when the signature has no record.
	Snapshot(ctx context.Context, sig delegation.Signature) (*seed.Record, error)
}
