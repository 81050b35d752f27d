// Package ristretto caches discovery routing results in-process using
// dgraph-io/ristretto. Resolution is deterministic for a fixed history, so a
// short TTL trades only staleness of *learned* routes, never correctness.
package ristretto

import (
	"time"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/habitquest/delegate/internal/domain/delegation"
)

// RouteCache maps task signatures to resolved executor types.
type RouteCache struct {
	c   *ristretto.Cache[string, string]
	ttl time.Duration
}

// NewRouteCache creates a cache bounded to maxCostBytes of route entries.
func NewRouteCache(maxCostBytes int64, ttl time.Duration) (*RouteCache, error) {
	c, err := ristretto.NewCache(&ristretto.Config[string, string]{
		NumCounters: maxCostBytes / 100 * 10, // ~10x expected items
		MaxCost:     maxCostBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &RouteCache{c: c, ttl: ttl}, nil
}

// Get returns the cached executor type for a signature.
func (rc *RouteCache) Get(sig delegation.Signature) (string, bool) {
	return rc.c.Get(string(sig))
}

// Set records the resolved executor type for a signature.
func (rc *RouteCache) Set(sig delegation.Signature, executorType string) {
	rc.c.SetWithTTL(string(sig), executorType, int64(len(sig)+len(executorType)), rc.ttl)
}

// Wait blocks until buffered sets are applied. Tests use it; the router
// treats the cache as best-effort and never needs to.
func (rc *RouteCache) Wait() {
	rc.c.Wait()
}

// Close shuts down the cache and releases resources.
func (rc *RouteCache) Close() {
	rc.c.Close()
}
