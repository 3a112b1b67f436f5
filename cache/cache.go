package cache

import (
	"context"
	"time"
)

// DefaultTTL is the 5-minute TTL applied to a normal retrieval result.
const DefaultTTL = 5 * time.Minute

// NegativeTTL is the short TTL used for cache entries representing an
// empty result set (negative caching), per the all-strategies-empty edge
// case.
const NegativeTTL = 60 * time.Second

// Stats mirrors the operational counters callers can surface on
// /v1/governance dashboards.
type Stats struct {
	Hits      int64
	Misses    int64
	Size      int64
	Evictions int64
}

// HitRate returns Hits / (Hits + Misses), 0 when there have been no calls.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// ContextCache memoizes retrieval results by fingerprint. Implementations
// never cause a request to fail on a cache-layer error — callers degrade a
// cache error to a miss.
type ContextCache interface {
	// Get returns the stored value and true on a cache hit for a
	// non-expired entry, or (nil, false, nil) on a miss.
	Get(ctx context.Context, fingerprint string) ([]byte, bool, error)

	// Put stores value under fingerprint with the given TTL and scope, used
	// for scoped invalidation.
	Put(ctx context.Context, fingerprint string, value []byte, tenantID, projectID string, ttl time.Duration) error

	// Invalidate removes every entry for tenantID, optionally narrowed to
	// projectID. Must complete synchronously before returning so a
	// subsequent read cannot observe a stale entry.
	Invalidate(ctx context.Context, tenantID, projectID string) error

	Stats() Stats
}
