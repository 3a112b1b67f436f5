package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamsoft-pro/rae/memory"
	"github.com/dreamsoft-pro/rae/tenant"
	"github.com/dreamsoft-pro/rae/vectorindex"
)

func TestCascadingRepository_DeleteRemovesVector(t *testing.T) {
	ctx := context.Background()
	scope := tenant.New("t1", "p1")

	inner := memory.NewInMemoryRepository()
	vecIndex := vectorindex.NewInMemoryIndex()

	id, err := inner.Create(ctx, &memory.Memory{Scope: scope, Layer: memory.LayerSemantic, Content: "x", Importance: 0.5})
	require.NoError(t, err)
	require.NoError(t, vecIndex.Upsert(ctx, scope, id, []float32{1, 0, 0}, nil))

	repo := memory.NewCascadingRepository(inner, vecIndex)

	deleted, err := repo.Delete(ctx, id, scope)
	require.NoError(t, err)
	assert.True(t, deleted)

	matches, err := vecIndex.Search(ctx, scope, []float32{1, 0, 0}, 10, vectorindex.Filters{})
	require.NoError(t, err)
	assert.Empty(t, matches, "deleting a memory must also delete its vector, leaving no orphaned entry")

	_, err = inner.Get(ctx, id, scope)
	assert.Error(t, err, "the memory itself should also be gone")
}

func TestCascadingRepository_DeleteMissingMemoryNeverTouchesIndex(t *testing.T) {
	ctx := context.Background()
	scope := tenant.New("t1", "p1")

	inner := memory.NewInMemoryRepository()
	vecIndex := vectorindex.NewInMemoryIndex()
	repo := memory.NewCascadingRepository(inner, vecIndex)

	deleted, err := repo.Delete(ctx, "does-not-exist", scope)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestCascadingRepository_NilVectorsDisablesCascade(t *testing.T) {
	ctx := context.Background()
	scope := tenant.New("t1", "p1")

	inner := memory.NewInMemoryRepository()
	id, err := inner.Create(ctx, &memory.Memory{Scope: scope, Layer: memory.LayerSemantic, Content: "x", Importance: 0.5})
	require.NoError(t, err)

	repo := memory.NewCascadingRepository(inner, nil)
	deleted, err := repo.Delete(ctx, id, scope)
	require.NoError(t, err)
	assert.True(t, deleted)
}
