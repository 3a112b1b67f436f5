package graphrag

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamsoft-pro/rae/llm"
	"github.com/dreamsoft-pro/rae/memory"
	"github.com/dreamsoft-pro/rae/tenant"
)

// fakeProvider is a minimal llm.Provider test double using a func field so
// each test can supply its own behavior.
type fakeProvider struct {
	completeFunc func(ctx context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error)
}

func (f *fakeProvider) Complete(ctx context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return f.completeFunc(ctx, req)
}

func seedEpisodes(t *testing.T, repo memory.Repository, scope tenant.Scope, contents ...string) {
	t.Helper()
	for _, c := range contents {
		_, err := repo.Create(context.Background(), &memory.Memory{
			Scope:   scope,
			Layer:   memory.LayerEpisodic,
			Content: c,
		})
		require.NoError(t, err)
	}
}

func TestExtractionService_Extract_AutoStore(t *testing.T) {
	ctx := context.Background()
	scope := tenant.New("t1", "p1")
	memRepo := memory.NewInMemoryRepository()
	graphRepo := NewInMemoryRepository()

	seedEpisodes(t, memRepo, scope, "AuthService depends on EncryptionService for token signing.")

	provider := &fakeProvider{
		completeFunc: func(ctx context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
			return &llm.CompletionResponse{
				Text: `{"triples":[{"subject":"AuthService","predicate":"depends_on","object":"EncryptionService","confidence":0.95}],"entities":["AuthService","EncryptionService"]}`,
			}, nil
		},
	}

	svc := NewExtractionService(memRepo, graphRepo, provider, nil, "test-model", nil)
	result, err := svc.Extract(ctx, scope, ExtractionOptions{Limit: 10, MinConfidence: 0.5, AutoStore: true})
	require.NoError(t, err)

	require.Len(t, result.Triples, 1)
	assert.Equal(t, "authservice", result.Triples[0].Subject)
	assert.Equal(t, "depends_on", result.Triples[0].Predicate)
	assert.ElementsMatch(t, []string{"authservice", "encryptionservice"}, result.Entities)
	assert.Equal(t, 1, result.Statistics.MemoriesProcessed)

	nodes, err := graphRepo.ListNodes(ctx, scope, NodeFilters{}, 0)
	require.NoError(t, err)
	assert.Len(t, nodes, 2)

	remaining, err := memRepo.FindUnconsolidatedEpisodes(ctx, scope, time.Time{}, 10)
	require.NoError(t, err)
	assert.Empty(t, remaining, "extracted memory should be marked consolidated")
}

func TestExtractionService_Extract_BelowMinConfidenceDropped(t *testing.T) {
	ctx := context.Background()
	scope := tenant.New("t1", "p1")
	memRepo := memory.NewInMemoryRepository()
	graphRepo := NewInMemoryRepository()

	seedEpisodes(t, memRepo, scope, "A weakly related fact.")

	provider := &fakeProvider{
		completeFunc: func(ctx context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
			return &llm.CompletionResponse{
				Text: `{"triples":[{"subject":"A","predicate":"relates_to","object":"B","confidence":0.2}],"entities":["A","B"]}`,
			}, nil
		},
	}

	svc := NewExtractionService(memRepo, graphRepo, provider, nil, "test-model", nil)
	result, err := svc.Extract(ctx, scope, ExtractionOptions{Limit: 10, MinConfidence: 0.5, AutoStore: true})
	require.NoError(t, err)
	assert.Empty(t, result.Triples, "the low-confidence triple itself must still be dropped")

	nodes, err := graphRepo.ListNodes(ctx, scope, NodeFilters{}, 0)
	require.NoError(t, err)
	assert.Len(t, nodes, 2, "every returned entity still gets a node even when its triple is dropped by the confidence filter")

	edges, err := graphRepo.ListEdges(ctx, scope, EdgeFilters{}, 0)
	require.NoError(t, err)
	assert.Empty(t, edges, "no edge should exist for a triple below min_confidence")
}

func TestExtractionService_Extract_EveryEntityGetsANodeAndEdgesCarrySourceMemoryID(t *testing.T) {
	ctx := context.Background()
	scope := tenant.New("t1", "p1")
	memRepo := memory.NewInMemoryRepository()
	graphRepo := NewInMemoryRepository()

	seedEpisodes(t, memRepo, scope, "AuthService depends on EncryptionService; BillingService is unrelated.")

	provider := &fakeProvider{
		completeFunc: func(ctx context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
			return &llm.CompletionResponse{
				// BillingService is a returned entity but never appears as a
				// triple subject or object.
				Text: `{"triples":[{"subject":"AuthService","predicate":"depends_on","object":"EncryptionService","confidence":0.95}],"entities":["AuthService","EncryptionService","BillingService"]}`,
			}, nil
		},
	}

	svc := NewExtractionService(memRepo, graphRepo, provider, nil, "test-model", nil)
	result, err := svc.Extract(ctx, scope, ExtractionOptions{Limit: 10, MinConfidence: 0.5, AutoStore: true})
	require.NoError(t, err)

	nodes, err := graphRepo.ListNodes(ctx, scope, NodeFilters{}, 0)
	require.NoError(t, err)
	labels := make([]string, len(nodes))
	for i, n := range nodes {
		labels[i] = n.Label
	}
	assert.ElementsMatch(t, []string{"authservice", "encryptionservice", "billingservice"}, labels,
		"every entity in result.Entities must correspond to exactly one node, including ones never seen as a triple endpoint")

	edges, err := graphRepo.ListEdges(ctx, scope, EdgeFilters{}, 0)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, 0.95, edges[0].Properties["confidence"])
	assert.NotEmpty(t, edges[0].Properties["source_memory_id"], "edge properties must carry source_memory_id alongside confidence")
}

func TestExtractionService_Extract_BatchFailureIsPartial(t *testing.T) {
	ctx := context.Background()
	scope := tenant.New("t1", "p1")
	memRepo := memory.NewInMemoryRepository()
	graphRepo := NewInMemoryRepository()

	contents := make([]string, 0, BatchSize+1)
	for i := 0; i < BatchSize+1; i++ {
		contents = append(contents, "memory content")
	}
	seedEpisodes(t, memRepo, scope, contents...)

	calls := 0
	provider := &fakeProvider{
		completeFunc: func(ctx context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
			calls++
			if calls == 1 {
				return nil, llm.ErrProviderUnavailable
			}
			return &llm.CompletionResponse{Text: `{"triples":[],"entities":["Solo"]}`}, nil
		},
	}

	svc := NewExtractionService(memRepo, graphRepo, provider, nil, "test-model", nil)
	result, err := svc.Extract(ctx, scope, ExtractionOptions{Limit: 100, AutoStore: false})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, []string{"solo"}, result.Entities)
}
