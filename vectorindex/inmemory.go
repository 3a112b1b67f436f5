package vectorindex

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/dreamsoft-pro/rae/tenant"
)

type entry struct {
	scope     tenant.Scope
	vector    []float32
	payload   map[string]any
	createdAt time.Time
}

// InMemoryIndex is a brute-force cosine-similarity Index, the default
// backing store when no external vector database is configured.
type InMemoryIndex struct {
	mu      sync.RWMutex
	vectors map[string]*entry // scope-qualified key -> entry
}

// NewInMemoryIndex returns an empty index.
func NewInMemoryIndex() *InMemoryIndex {
	return &InMemoryIndex{vectors: make(map[string]*entry)}
}

var _ Index = (*InMemoryIndex)(nil)

func key(scope tenant.Scope, id string) string {
	return scope.TenantID + "/" + scope.ProjectID + "/" + id
}

func (idx *InMemoryIndex) Upsert(ctx context.Context, scope tenant.Scope, id string, vector []float32, payload map[string]any) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	createdAt := time.Now().UTC()
	if ts, ok := payload["created_at"].(time.Time); ok {
		createdAt = ts
	}

	idx.vectors[key(scope, id)] = &entry{
		scope:     scope,
		vector:    append([]float32(nil), vector...),
		payload:   payload,
		createdAt: createdAt,
	}
	return nil
}

func (idx *InMemoryIndex) Delete(ctx context.Context, scope tenant.Scope, id string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	delete(idx.vectors, key(scope, id))
	return nil
}

func (idx *InMemoryIndex) Search(ctx context.Context, scope tenant.Scope, queryVector []float32, k int, filters Filters) ([]Match, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	type scored struct {
		id        string
		score     float64
		payload   map[string]any
		createdAt time.Time
	}
	var candidates []scored

	for compositeKey, e := range idx.vectors {
		if !scope.Contains(e.scope) {
			continue
		}
		if !matchesFilters(e.payload, filters) {
			continue
		}
		id := compositeKey[len(e.scope.TenantID)+len(e.scope.ProjectID)+2:]
		sim := cosineSimilarity(queryVector, e.vector)
		normalized := (sim + 1) / 2
		candidates = append(candidates, scored{id: id, score: normalized, payload: e.payload, createdAt: e.createdAt})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].createdAt.After(candidates[j].createdAt)
	})

	if k > 0 && len(candidates) > k {
		candidates = candidates[:k]
	}

	out := make([]Match, len(candidates))
	for i, c := range candidates {
		out[i] = Match{ID: c.id, Score: c.score, Payload: c.payload}
	}
	return out, nil
}

func matchesFilters(payload map[string]any, f Filters) bool {
	if f.Layer != "" {
		if layer, ok := payload["layer"].(string); !ok || layer != f.Layer {
			return false
		}
	}
	if len(f.Tags) == 0 {
		return true
	}
	tags, _ := payload["tags"].([]string)
	have := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		have[t] = struct{}{}
	}
	for _, want := range f.Tags {
		if _, ok := have[want]; !ok {
			return false
		}
	}
	return true
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
