package reflection

import (
	"context"
	"sort"
	"time"

	"github.com/dreamsoft-pro/rae/capability"
	"github.com/dreamsoft-pro/rae/memory"
)

// Clusterer groups a set of episodic memories (already ordered by
// CreatedAt ascending) into clusters worth summarizing.
type Clusterer interface {
	Cluster(ctx context.Context, memories []*memory.Memory) ([][]*memory.Memory, error)
}

// DensityClusterer is the capability-registry-gated interface for a
// density-based clusterer operating on memory embeddings (e.g. HDBSCAN
// over vectors fetched from the vector index). No in-tree implementation
// is registered by default — per capability.ClusterDensity's doc comment,
// a deployment that links a real clustering library registers one at
// startup; Pipeline falls back to TimeWindowClusterer otherwise.
type DensityClusterer interface {
	Clusterer
}

// ResolveClusterer returns the registered DensityClusterer for
// capability.ClusterDensity if one exists, else a TimeWindowClusterer
// configured from cfg.
func ResolveClusterer(registry *capability.Registry, cfg Config) Clusterer {
	if impl, ok := capability.Lookup[DensityClusterer](registry, capability.ClusterDensity); ok {
		return impl
	}
	return NewTimeWindowClusterer(cfg.TimeWindowHours)
}

// TimeWindowClusterer buckets memories into clusters of consecutive
// creation-time windows of a fixed duration, the deterministic fallback
// when no density-clustering capability is registered.
type TimeWindowClusterer struct {
	windowHours int
}

// NewTimeWindowClusterer returns a clusterer bucketing by windowHours-hour
// windows (24 is the documented default).
func NewTimeWindowClusterer(windowHours int) *TimeWindowClusterer {
	if windowHours <= 0 {
		windowHours = 24
	}
	return &TimeWindowClusterer{windowHours: windowHours}
}

var _ Clusterer = (*TimeWindowClusterer)(nil)

// Cluster assumes memories is already sorted by CreatedAt ascending (as
// Pipeline fetches it) and groups consecutive memories whose CreatedAt
// falls within the same window-length span starting from the first
// memory's timestamp in the group.
func (c *TimeWindowClusterer) Cluster(ctx context.Context, memories []*memory.Memory) ([][]*memory.Memory, error) {
	sorted := make([]*memory.Memory, len(memories))
	copy(sorted, memories)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].CreatedAt.Before(sorted[j].CreatedAt) })

	if len(sorted) == 0 {
		return nil, nil
	}

	windowDur := time.Duration(c.windowHours) * time.Hour
	var clusters [][]*memory.Memory
	var current []*memory.Memory
	windowStart := sorted[0].CreatedAt

	for _, m := range sorted {
		if m.CreatedAt.Sub(windowStart) >= windowDur {
			clusters = append(clusters, current)
			current = nil
			windowStart = m.CreatedAt
		}
		current = append(current, m)
	}
	if len(current) > 0 {
		clusters = append(clusters, current)
	}
	return clusters, nil
}
