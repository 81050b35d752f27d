package memory

import (
	"context"
	"sync"

	"github.com/habitquest/delegate/internal/domain/delegation"
)

// History is an in-memory append-only run record log.
type History struct {
	mu      sync.RWMutex
	records []delegation.RunRecord
}

// NewHistory returns an empty history log.
func NewHistory() *History {
	return &History{}
}

// Append stores a copy of the record.
func (h *History) Append(_ context.Context, rec *delegation.RunRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, *rec)
	return nil
}

// Recent returns up to n records for the signature, newest first.
func (h *History) Recent(_ context.Context, sig delegation.Signature, n int) ([]delegation.RunRecord, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var out []delegation.RunRecord
	for i := len(h.records) - 1; i >= 0 && len(out) < n; i-- {
		if h.records[i].Signature == sig {
			out = append(out, h.records[i])
		}
	}
	return out, nil
}

// RecentAll returns up to limit records across all signatures, newest first.
func (h *History) RecentAll(_ context.Context, limit int) ([]delegation.RunRecord, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var out []delegation.RunRecord
	for i := len(h.records) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, h.records[i])
	}
	return out, nil
}
