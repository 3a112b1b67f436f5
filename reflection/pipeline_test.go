package reflection

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamsoft-pro/rae/capability"
	"github.com/dreamsoft-pro/rae/llm"
	"github.com/dreamsoft-pro/rae/memory"
	"github.com/dreamsoft-pro/rae/tenant"
)

type fakeProvider struct {
	completeFunc func(ctx context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error)
}

func (f *fakeProvider) Complete(ctx context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return f.completeFunc(ctx, req)
}

func seedEpisodes(t *testing.T, repo memory.Repository, scope tenant.Scope, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := repo.Create(context.Background(), &memory.Memory{
			Scope:   scope,
			Layer:   memory.LayerEpisodic,
			Content: "episode content",
		})
		require.NoError(t, err)
	}
}

func TestPipelineRun_BelowMinEpisodesNoOp(t *testing.T) {
	repo := memory.NewInMemoryRepository()
	scope := tenant.New("t1", "p1")
	seedEpisodes(t, repo, scope, 5)

	provider := &fakeProvider{completeFunc: func(ctx context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
		t.Fatal("LLM should not be called below MinEpisodes")
		return nil, nil
	}}

	cfg := DefaultConfig()
	p := NewPipeline(repo, provider, capability.NewRegistry(), cfg, nil)

	result, err := p.Run(context.Background(), scope)
	require.NoError(t, err)
	assert.Zero(t, result.ReflectionsCreated)
}

func TestPipelineRun_CreatesReflectiveMemoryPerCluster(t *testing.T) {
	repo := memory.NewInMemoryRepository()
	scope := tenant.New("t1", "p1")
	seedEpisodes(t, repo, scope, 25)

	provider := &fakeProvider{completeFunc: func(ctx context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
		return &llm.CompletionResponse{Text: `{"summary":"agent learned X","key_insights":["X"],"reflection_type":"insight"}`}, nil
	}}

	cfg := DefaultConfig()
	cfg.MinClusterSize = 5
	cfg.TimeWindowHours = 24
	p := NewPipeline(repo, provider, capability.NewRegistry(), cfg, nil)

	result, err := p.Run(context.Background(), scope)
	require.NoError(t, err)
	assert.Equal(t, 1, result.ReflectionsCreated, "all 25 episodes fall in one 24h window, one cluster")

	reflective, err := repo.ListByLayer(context.Background(), scope, memory.LayerReflective, memory.ListFilters{}, 0, 0)
	require.NoError(t, err)
	require.Len(t, reflective, 1)
	assert.Equal(t, "agent learned X", reflective[0].Content)
	assert.Len(t, reflective[0].ParentIDs, 25)
	assert.Equal(t, memory.StatusConsolidated, reflective[0].ConsolidationStatus)

	remaining, err := repo.FindUnconsolidatedEpisodes(context.Background(), scope, time.Time{}, 0)
	require.NoError(t, err)
	assert.Empty(t, remaining, "cluster members should be marked consolidated")
}

func TestPipelineRun_SmallClusterSkipped(t *testing.T) {
	repo := memory.NewInMemoryRepository()
	scope := tenant.New("t1", "p1")
	seedEpisodes(t, repo, scope, 20)

	called := false
	provider := &fakeProvider{completeFunc: func(ctx context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
		called = true
		return &llm.CompletionResponse{Text: `{"summary":"x","reflection_type":"summary"}`}, nil
	}}

	cfg := DefaultConfig()
	cfg.MinClusterSize = 21 // larger than the single time-window cluster of 20
	p := NewPipeline(repo, provider, capability.NewRegistry(), cfg, nil)

	result, err := p.Run(context.Background(), scope)
	require.NoError(t, err)
	assert.Zero(t, result.ReflectionsCreated)
	assert.False(t, called)
}

func TestTimeWindowClusterer_SplitsOnGap(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mems := []*memory.Memory{
		{ID: "a", CreatedAt: base},
		{ID: "b", CreatedAt: base.Add(time.Hour)},
		{ID: "c", CreatedAt: base.Add(48 * time.Hour)}, // beyond the 24h window
	}

	clusterer := NewTimeWindowClusterer(24)
	clusters, err := clusterer.Cluster(context.Background(), mems)
	require.NoError(t, err)
	require.Len(t, clusters, 2)
	assert.Len(t, clusters[0], 2)
	assert.Len(t, clusters[1], 1)
}

func TestHierarchical_ReducesToSingleSummary(t *testing.T) {
	scope := tenant.New("t1", "p1")
	episodes := make([]*memory.Memory, 0, 25)
	for i := 0; i < 25; i++ {
		episodes = append(episodes, &memory.Memory{ID: "m", Scope: scope, Content: "x"})
	}

	calls := 0
	provider := &fakeProvider{completeFunc: func(ctx context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
		calls++
		return &llm.CompletionResponse{Text: "summary"}, nil
	}}

	result, err := Hierarchical(context.Background(), provider, "test-model", 10, episodes)
	require.NoError(t, err)
	assert.Equal(t, "summary", result.Summary)
	assert.Equal(t, 25, result.Statistics.EpisodesProcessed)
	assert.Equal(t, 1, result.Statistics.FinalBucketCount)
	assert.Greater(t, calls, 0)
}

func TestHierarchical_EmptyInput(t *testing.T) {
	provider := &fakeProvider{completeFunc: func(ctx context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
		t.Fatal("should not be called for empty input")
		return nil, nil
	}}
	result, err := Hierarchical(context.Background(), provider, "test-model", 10, nil)
	require.NoError(t, err)
	assert.Equal(t, "", result.Summary)
}
