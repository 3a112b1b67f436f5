package health

import (
	"context"
	"time"

	"github.com/dreamsoft-pro/rae/graphrag"
	"github.com/dreamsoft-pro/rae/memory"
	"github.com/dreamsoft-pro/rae/tenant"
	"github.com/dreamsoft-pro/rae/vectorindex"
)

// DefaultProbeTimeout bounds every probe to a conservative 5 seconds.
const DefaultProbeTimeout = 5 * time.Second

// MemoryRepositoryCheck probes the memory store by listing zero rows for a
// synthetic scope, verifying the store answers queries without erroring.
func MemoryRepositoryCheck(ctx context.Context, repo memory.Repository) CheckResult {
	ctx, cancel := withDefaultTimeout(ctx)
	defer cancel()

	_, err := repo.ListByLayer(ctx, tenant.New("__health__", "__health__"), memory.LayerEpisodic, memory.ListFilters{}, 1, 0)
	if err != nil {
		return Unhealthy("memory repository probe failed", map[string]any{"error": err.Error()})
	}
	return Healthy("memory repository reachable")
}

// GraphRepositoryCheck probes the graph store the same way.
func GraphRepositoryCheck(ctx context.Context, repo graphrag.Repository) CheckResult {
	ctx, cancel := withDefaultTimeout(ctx)
	defer cancel()

	if _, err := repo.Stats(ctx, tenant.New("__health__", "__health__")); err != nil {
		return Unhealthy("graph repository probe failed", map[string]any{"error": err.Error()})
	}
	return Healthy("graph repository reachable")
}

// VectorIndexCheck probes a vector index by running a zero-vector search,
// which every implementation must answer without error even when empty.
func VectorIndexCheck(ctx context.Context, index vectorindex.Index) CheckResult {
	ctx, cancel := withDefaultTimeout(ctx)
	defer cancel()

	if _, err := index.Search(ctx, tenant.New("__health__", "__health__"), []float32{0}, 1, vectorindex.Filters{}); err != nil {
		return Unhealthy("vector index probe failed", map[string]any{"error": err.Error()})
	}
	return Healthy("vector index reachable")
}

func withDefaultTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, DefaultProbeTimeout)
}
