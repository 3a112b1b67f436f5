package scoring

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamsoft-pro/rae/memory"
	"github.com/dreamsoft-pro/rae/tenant"
)

func TestDecayWorker_RunOnce_DecaysStaleMemory(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewInMemoryRepository()
	scope := tenant.New("t1", "p1")

	id, err := repo.Create(ctx, &memory.Memory{
		Scope:      scope,
		Layer:      memory.LayerEpisodic,
		Content:    "x",
		Importance: 0.8,
	})
	require.NoError(t, err)

	// Force LastAccessedAt into the 7-30 day decay band.
	require.NoError(t, repo.RecordAccess(ctx, []string{id}, scope, time.Now().UTC().Add(-20*24*time.Hour)))

	worker := NewDecayWorker(repo, nil, time.Hour)
	require.NoError(t, worker.RunOnce(ctx, scope))

	got, err := repo.Get(ctx, id, scope)
	require.NoError(t, err)
	assert.InDelta(t, 0.8*0.995, got.Importance, 1e-9)
}

func TestDecayWorker_RunOnce_SkipsUserOverride(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewInMemoryRepository()
	scope := tenant.New("t1", "p1")
	override := 0.9

	id, err := repo.Create(ctx, &memory.Memory{
		Scope:                  scope,
		Layer:                  memory.LayerEpisodic,
		Content:                "x",
		Importance:             0.8,
		UserImportanceOverride: &override,
	})
	require.NoError(t, err)
	require.NoError(t, repo.RecordAccess(ctx, []string{id}, scope, time.Now().UTC().Add(-20*24*time.Hour)))

	worker := NewDecayWorker(repo, nil, time.Hour)
	require.NoError(t, worker.RunOnce(ctx, scope))

	got, err := repo.Get(ctx, id, scope)
	require.NoError(t, err)
	assert.Equal(t, 0.8, got.Importance)
}

func TestDecayWorker_StartStop(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewInMemoryRepository()
	scope := tenant.New("t1", "p1")
	_, err := repo.Create(ctx, &memory.Memory{Scope: scope, Layer: memory.LayerEpisodic, Content: "x", Importance: 0.8})
	require.NoError(t, err)

	worker := NewDecayWorker(repo, nil, 5*time.Millisecond)
	require.NoError(t, worker.Start(ctx, func(ctx context.Context) ([]tenant.Scope, error) {
		return []tenant.Scope{scope}, nil
	}))

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, worker.Stop(stopCtx))
}

func TestDecayWorker_RunOnce_DoesNotArchiveNewlyCreatedMemory(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewInMemoryRepository()
	scope := tenant.New("t1", "p1")

	id, err := repo.Create(ctx, &memory.Memory{
		Scope:      scope,
		Layer:      memory.LayerEpisodic,
		Content:    "x",
		Importance: 0.01,
	})
	require.NoError(t, err)

	// Low importance and a last access far in the past are not enough:
	// archival's age check uses CreatedAt, which the public API cannot
	// move, so this just-created memory must not be archived.
	require.NoError(t, repo.RecordAccess(ctx, []string{id}, scope, time.Now().UTC().Add(-100*24*time.Hour)))

	worker := NewDecayWorker(repo, nil, time.Hour)
	require.NoError(t, worker.RunOnce(ctx, scope))

	got, err := repo.Get(ctx, id, scope)
	require.NoError(t, err)
	assert.NotEqual(t, memory.StatusArchived, got.ConsolidationStatus)
}
