package search

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamsoft-pro/rae/cache"
	"github.com/dreamsoft-pro/rae/graphrag"
	"github.com/dreamsoft-pro/rae/llm"
	"github.com/dreamsoft-pro/rae/memory"
	"github.com/dreamsoft-pro/rae/tenant"
	"github.com/dreamsoft-pro/rae/vectorindex"
)

// fakeEmbedder turns text into a crude but deterministic fixed-size vector
// by bucketing byte values, just enough to make cosine similarity
// discriminate between clearly different strings in tests.
type fakeEmbedder struct{}

func (fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec := make([]float32, 8)
		for _, r := range t {
			vec[int(r)%8]++
		}
		out[i] = vec
	}
	return out, nil
}

type fixedAnalyzer struct{ weights Weights }

func (a fixedAnalyzer) Analyze(ctx context.Context, queryText string, history []string) (Analysis, error) {
	return Analysis{Intent: IntentFactual, Confidence: 1, Weights: a.weights}, nil
}

func newTestService(t *testing.T, memRepo memory.Repository, graphRepo graphrag.Repository, vecIndex vectorindex.Index, nodeIndex vectorindex.Index, ctxCache cache.ContextCache) *HybridSearchService {
	t.Helper()
	embedder := fakeEmbedder{}
	adapter := vectorindex.NewAdapter(vecIndex, embedder, nil)

	return NewHybridSearchService(
		memRepo,
		graphRepo,
		ctxCache,
		fixedAnalyzer{weights: Weights{Vector: 0.4, FullText: 0.3, Semantic: 0.2, Graph: 0.1}},
		nil,
		VectorRetriever(adapter),
		FullTextRetriever(memRepo),
		SemanticNodeRetriever(nodeIndex, embedder, graphRepo),
		GraphRetriever(graphRepo),
	)
}

func seedMemoryWithVector(t *testing.T, ctx context.Context, memRepo memory.Repository, vecIndex vectorindex.Index, scope tenant.Scope, content string) *memory.Memory {
	t.Helper()
	id, err := memRepo.Create(ctx, &memory.Memory{Scope: scope, Layer: memory.LayerSemantic, Content: content, Importance: 0.5})
	require.NoError(t, err)
	m, err := memRepo.Get(ctx, id, scope)
	require.NoError(t, err)

	vec, err := fakeEmbedder{}.Embed(ctx, []string{content})
	require.NoError(t, err)
	require.NoError(t, vecIndex.Upsert(ctx, scope, id, vec[0], map[string]any{"layer": string(memory.LayerSemantic)}))
	return m
}

func TestHybridSearchService_Search_RanksAndCaches(t *testing.T) {
	ctx := context.Background()
	scope := tenant.New("t1", "p1")
	memRepo := memory.NewInMemoryRepository()
	graphRepo := graphrag.NewInMemoryRepository()
	vecIndex := vectorindex.NewInMemoryIndex()
	nodeIndex := vectorindex.NewInMemoryIndex()
	ctxCache := cache.NewInMemoryCache(100)

	seedMemoryWithVector(t, ctx, memRepo, vecIndex, scope, "AuthService depends on EncryptionService for token signing")
	seedMemoryWithVector(t, ctx, memRepo, vecIndex, scope, "the weather today is sunny and warm")

	svc := newTestService(t, memRepo, graphRepo, vecIndex, nodeIndex, ctxCache)

	result, err := svc.Search(ctx, scope, Request{QueryText: "AuthService EncryptionService token signing", K: 5, GraphDepth: 2})
	require.NoError(t, err)
	require.NotEmpty(t, result.Memories)
	assert.False(t, result.CacheHit)
	assert.Contains(t, result.ContextText, "## Retrieved Memories")
	assert.Contains(t, result.ContextText, "## Graph Context")
	assert.Contains(t, result.ContextText, "## Statistics")

	second, err := svc.Search(ctx, scope, Request{QueryText: "AuthService EncryptionService token signing", K: 5, GraphDepth: 2})
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Equal(t, result.ContextText, second.ContextText)
}

func TestHybridSearchService_Search_KZeroReturnsEmptyWithoutSideEffects(t *testing.T) {
	ctx := context.Background()
	scope := tenant.New("t1", "p1")
	memRepo := memory.NewInMemoryRepository()
	graphRepo := graphrag.NewInMemoryRepository()
	vecIndex := vectorindex.NewInMemoryIndex()
	nodeIndex := vectorindex.NewInMemoryIndex()

	seedMemoryWithVector(t, ctx, memRepo, vecIndex, scope, "some memory content")

	svc := newTestService(t, memRepo, graphRepo, vecIndex, nodeIndex, nil)
	result, err := svc.Search(ctx, scope, Request{QueryText: "anything", K: 0})
	require.NoError(t, err)
	assert.Empty(t, result.Memories)
	assert.False(t, result.CacheHit)
}

func TestHybridSearchService_Search_AllStrategiesEmptyNegativeCaches(t *testing.T) {
	ctx := context.Background()
	scope := tenant.New("t1", "p1")
	memRepo := memory.NewInMemoryRepository()
	graphRepo := graphrag.NewInMemoryRepository()
	vecIndex := vectorindex.NewInMemoryIndex()
	nodeIndex := vectorindex.NewInMemoryIndex()
	ctxCache := cache.NewInMemoryCache(100)

	svc := newTestService(t, memRepo, graphRepo, vecIndex, nodeIndex, ctxCache)

	result, err := svc.Search(ctx, scope, Request{QueryText: "nothing indexed yet", K: 5, GraphDepth: 2})
	require.NoError(t, err)
	assert.Empty(t, result.Memories)

	second, err := svc.Search(ctx, scope, Request{QueryText: "nothing indexed yet", K: 5, GraphDepth: 2})
	require.NoError(t, err)
	assert.True(t, second.CacheHit, "an all-empty result should still be negative-cached")
}

func TestHybridSearchService_Search_GraphDepthClampWarns(t *testing.T) {
	ctx := context.Background()
	scope := tenant.New("t1", "p1")
	memRepo := memory.NewInMemoryRepository()
	graphRepo := graphrag.NewInMemoryRepository()
	vecIndex := vectorindex.NewInMemoryIndex()
	nodeIndex := vectorindex.NewInMemoryIndex()

	seedMemoryWithVector(t, ctx, memRepo, vecIndex, scope, "AuthService depends on EncryptionService")

	svc := newTestService(t, memRepo, graphRepo, vecIndex, nodeIndex, nil)
	result, err := svc.Search(ctx, scope, Request{QueryText: "AuthService EncryptionService", K: 5, GraphDepth: 99})
	require.NoError(t, err)
	assert.Contains(t, result.Warnings, "graph_depth clamped to 5")
}

// fakeReranker reorders candidates per a fixed ID order and stamps a
// distinctive fabricated score on each, so tests can assert that score
// never leaks into the caller's results — only the ordering should.
type fakeReranker struct{ order []string }

func (f fakeReranker) Rerank(ctx context.Context, query string, candidates []llm.Candidate, k int) ([]llm.Candidate, error) {
	byID := make(map[string]llm.Candidate, len(candidates))
	for _, c := range candidates {
		byID[c.ID] = c
	}
	out := make([]llm.Candidate, 0, len(f.order))
	for _, id := range f.order {
		if _, ok := byID[id]; ok {
			out = append(out, llm.Candidate{ID: id, Score: 999})
		}
	}
	return out, nil
}

func TestHybridSearchService_Search_RerankDrawsFromTopThreeKAndKeepsFusedScore(t *testing.T) {
	ctx := context.Background()
	scope := tenant.New("t1", "p1")
	memRepo := memory.NewInMemoryRepository()
	graphRepo := graphrag.NewInMemoryRepository()
	vecIndex := vectorindex.NewInMemoryIndex()
	nodeIndex := vectorindex.NewInMemoryIndex()
	embedder := fakeEmbedder{}

	// Seven memories with strictly decreasing importance so Fuse's final
	// score ranks them m0 > m1 > ... > m6, deterministically.
	ids := make([]string, 7)
	for i := 0; i < 7; i++ {
		content := fmt.Sprintf("candidate memory number %d about auth tokens", i)
		id, err := memRepo.Create(ctx, &memory.Memory{
			Scope:      scope,
			Layer:      memory.LayerSemantic,
			Content:    content,
			Importance: 1.0 - float64(i)*0.1,
		})
		require.NoError(t, err)
		ids[i] = id

		vec, err := embedder.Embed(ctx, []string{content})
		require.NoError(t, err)
		require.NoError(t, vecIndex.Upsert(ctx, scope, id, vec[0], map[string]any{"layer": string(memory.LayerSemantic)}))
	}

	adapter := vectorindex.NewAdapter(vecIndex, embedder, nil)
	// K=2 means the fused pool truncates to 2 without rerank, but 3*K=6 with
	// rerank requested — so ids[5] (rank 6 by fused score, outside top 2 but
	// inside top 6) must reach the reranker and can be promoted to the top.
	reranker := fakeReranker{order: []string{ids[5], ids[0]}}
	svc := NewHybridSearchService(
		memRepo,
		graphRepo,
		nil,
		fixedAnalyzer{weights: Weights{Vector: 1.0}},
		reranker,
		VectorRetriever(adapter),
		FullTextRetriever(memRepo),
		SemanticNodeRetriever(nodeIndex, embedder, graphRepo),
		GraphRetriever(graphRepo),
	)

	result, err := svc.Search(ctx, scope, Request{QueryText: "auth tokens", K: 2, GraphDepth: 1, Rerank: true})
	require.NoError(t, err)
	require.Len(t, result.Memories, 2)

	assert.Equal(t, ids[5], result.Memories[0].Memory.ID, "rerank order must win even though ids[5] fell outside the unreranked top k")
	assert.Equal(t, ids[0], result.Memories[1].Memory.ID)

	for _, r := range result.Memories {
		assert.NotEqual(t, 999.0, r.Score, "reranker's fabricated score must never overwrite the fused score")
	}
	assert.Greater(t, result.Memories[1].Score, result.Memories[0].Score, "ids[0] has a higher fused score than ids[5]; fused scores must be preserved regardless of the new order")
}

func TestHybridSearchService_Search_NoRerankTruncatesFusedListToK(t *testing.T) {
	ctx := context.Background()
	scope := tenant.New("t1", "p1")
	memRepo := memory.NewInMemoryRepository()
	graphRepo := graphrag.NewInMemoryRepository()
	vecIndex := vectorindex.NewInMemoryIndex()
	nodeIndex := vectorindex.NewInMemoryIndex()

	for i := 0; i < 5; i++ {
		seedMemoryWithVector(t, ctx, memRepo, vecIndex, scope, fmt.Sprintf("memory %d about auth tokens", i))
	}

	svc := newTestService(t, memRepo, graphRepo, vecIndex, nodeIndex, nil)
	result, err := svc.Search(ctx, scope, Request{QueryText: "auth tokens", K: 2, GraphDepth: 1})
	require.NoError(t, err)
	assert.Len(t, result.Memories, 2, "without rerank the pool is k, not 3k")
}

var _ llm.EmbeddingProvider = fakeEmbedder{}
