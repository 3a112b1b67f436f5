// Package vectorindex defines the similarity-search port the core consumes
// and an in-memory reference implementation: an external collaborator
// behind a small interface, plus a default implementation usable without
// any external service.
package vectorindex

import (
	"context"

	"github.com/dreamsoft-pro/rae/tenant"
)

// Match is one similarity-search hit: score is cosine similarity
// normalized to [0, 1], and payload echoes what was stored at upsert time.
type Match struct {
	ID      string
	Score   float64
	Payload map[string]any
}

// Filters narrows Search to vectors whose payload fields match.
type Filters struct {
	Layer string
	Tags  []string
}

// Index is the abstract similarity-search port; concrete implementations
// (pgvector, a managed vector DB, ...) are external collaborators.
type Index interface {
	// Upsert stores vector under id, scoped to (tenant, project). payload
	// must echo {layer, tags, created_at} to permit pre-filtering in Search.
	Upsert(ctx context.Context, scope tenant.Scope, id string, vector []float32, payload map[string]any) error

	// Search returns up to k matches in descending score order, ties broken
	// by payload["created_at"] descending.
	Search(ctx context.Context, scope tenant.Scope, queryVector []float32, k int, filters Filters) ([]Match, error)

	Delete(ctx context.Context, scope tenant.Scope, id string) error
}
