package memory

import (
	"context"

	"github.com/dreamsoft-pro/rae/tenant"
)

// VectorDeleter is the subset of vectorindex.Index that cascading deletion
// needs; kept narrow here so memory does not import vectorindex directly,
// the same pattern graphrag.NodeIndex uses for its own narrow dependency on
// vectorindex.Index.
type VectorDeleter interface {
	Delete(ctx context.Context, scope tenant.Scope, id string) error
}

// CascadingRepository wraps a Repository so that deleting a memory also
// deletes the vector stored under its ID, keeping embedding_ref from ever
// pointing at an orphaned vector once the memory itself is gone. Every
// other Repository method passes through unchanged.
type CascadingRepository struct {
	Repository
	vectors VectorDeleter
}

// NewCascadingRepository wraps repo, deleting vectors through vectors on
// every successful Delete. vectors may be nil to disable the cascade (a
// memory store with no vector index, e.g. graph-only deployments).
func NewCascadingRepository(repo Repository, vectors VectorDeleter) *CascadingRepository {
	return &CascadingRepository{Repository: repo, vectors: vectors}
}

var _ Repository = (*CascadingRepository)(nil)

// Delete removes the memory first, then its vector. A vector delete failure
// is surfaced to the caller even though the memory row is already gone,
// since a dangling vector is exactly the invariant violation this wrapper
// exists to prevent; deleting a missing memory never touches the index.
func (r *CascadingRepository) Delete(ctx context.Context, id string, scope tenant.Scope) (bool, error) {
	deleted, err := r.Repository.Delete(ctx, id, scope)
	if err != nil || !deleted {
		return deleted, err
	}
	if r.vectors != nil {
		if err := r.vectors.Delete(ctx, scope, id); err != nil {
			return true, err
		}
	}
	return true, nil
}
