// Package history defines the Delegation History port: an append-only log of
// execution attempts used for learned routing and operator auditing.
package history

import (
	"context"

	"github.com/habitquest/delegate/internal/domain/delegation"
)

// Store is the history port. Records are immutable once appended, so
// implementations need no update path and reads never see partial writes.
type Store interface {
	// Append records one execution attempt.
	Append(ctx context.Context, rec *delegation.RunRecord) error

	// Recent returns up to n records for the signature, newest first.
	Recent(ctx context.Context, sig delegation.Signature, n int) ([]delegation.RunRecord, error)

	// RecentAll returns up to limit records across all signatures, newest
	// first. Used for near-match discovery and the operator API.
	RecentAll(ctx context.Context, limit int) ([]delegation.RunRecord, error)
}
