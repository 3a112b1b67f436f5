package search

import (
	"context"

	"github.com/dreamsoft-pro/rae/graphrag"
	"github.com/dreamsoft-pro/rae/llm"
	"github.com/dreamsoft-pro/rae/memory"
	"github.com/dreamsoft-pro/rae/tenant"
	"github.com/dreamsoft-pro/rae/vectorindex"
)

// VectorRetriever produces vector-strategy candidates via a text-embedding
// adapter, grounded on vectorindex.Adapter.SearchText.
func VectorRetriever(adapter *vectorindex.Adapter) func(ctx context.Context, scope tenant.Scope, queryText string, k int) (StrategyCandidates, error) {
	return func(ctx context.Context, scope tenant.Scope, queryText string, k int) (StrategyCandidates, error) {
		matches, err := adapter.SearchText(ctx, scope, queryText, k, vectorindex.Filters{})
		if err != nil {
			return nil, err
		}
		return candidatesFromMatches(matches), nil
	}
}

// FullTextRetriever produces full-text-strategy candidates via
// memory.Repository.SearchFullText, scoring each hit by its term-overlap
// fraction.
func FullTextRetriever(repo memory.Repository) func(ctx context.Context, scope tenant.Scope, queryText string, k int) (StrategyCandidates, error) {
	return func(ctx context.Context, scope tenant.Scope, queryText string, k int) (StrategyCandidates, error) {
		mems, err := repo.SearchFullText(ctx, scope, queryText, k)
		if err != nil {
			return nil, err
		}
		out := make(StrategyCandidates, len(mems))
		for i, m := range mems {
			// SearchFullText is already ranked; convert rank position to a
			// descending score so Normalize still discriminates candidates
			// whose underlying overlap score was identical.
			out[m.ID] = float64(len(mems)-i) / float64(len(mems))
		}
		return out, nil
	}
}

// SemanticNodeRetriever embeds queryText, finds the nearest indexed graph
// node labels, and maps each matched node back to the memories that
// contributed it — the "concept lookup" strategy bridging vector search and
// the knowledge graph.
func SemanticNodeRetriever(nodeIndex vectorindex.Index, embedder llm.EmbeddingProvider, graphRepo graphrag.Repository) func(ctx context.Context, scope tenant.Scope, queryText string, k int) (StrategyCandidates, error) {
	return func(ctx context.Context, scope tenant.Scope, queryText string, k int) (StrategyCandidates, error) {
		vectors, err := embedder.Embed(ctx, []string{queryText})
		if err != nil {
			return nil, err
		}
		if len(vectors) == 0 {
			return nil, nil
		}

		matches, err := nodeIndex.Search(ctx, scope, vectors[0], k, vectorindex.Filters{})
		if err != nil {
			return nil, err
		}

		out := make(StrategyCandidates)
		for _, match := range matches {
			node, err := graphRepo.GetNodeByInternalID(ctx, scope, match.ID)
			if err != nil {
				continue
			}
			for _, memID := range node.SourceMemoryIDs() {
				if existing, ok := out[memID]; !ok || match.Score > existing {
					out[memID] = match.Score
				}
			}
		}
		return out, nil
	}
}

// GraphRetriever expands the knowledge graph neighborhood of the seed
// memories (HybridSearchService passes the vector strategy's top hits) and
// returns every memory
// referenced by a visited node — the mapping step connecting embeddings to
// graph structure. wasClamped reports whether the requested depth exceeded
// graphrag.MaxGraphDepth.
func GraphRetriever(graphRepo graphrag.Repository) func(ctx context.Context, scope tenant.Scope, seedMemoryIDs []string, depth int) (candidates StrategyCandidates, wasClamped bool, err error) {
	return func(ctx context.Context, scope tenant.Scope, seedMemoryIDs []string, depth int) (StrategyCandidates, bool, error) {
		clampedDepth, wasClamped := graphrag.ClampDepth(depth)

		seedNodeIDs := make(map[string]struct{})
		for _, memID := range seedMemoryIDs {
			nodes, err := graphrag.NodesReferencingMemory(ctx, graphRepo, scope, memID)
			if err != nil {
				return nil, wasClamped, err
			}
			for _, n := range nodes {
				seedNodeIDs[n.ID] = struct{}{}
			}
		}
		if len(seedNodeIDs) == 0 {
			return StrategyCandidates{}, wasClamped, nil
		}

		seeds := make([]string, 0, len(seedNodeIDs))
		for id := range seedNodeIDs {
			seeds = append(seeds, id)
		}

		result, err := graphrag.BFS(ctx, graphRepo, scope, seeds, clampedDepth, graphrag.DirectionBoth, "")
		if err != nil {
			return nil, wasClamped, err
		}

		out := make(StrategyCandidates, len(result.MemoryIDs))
		for _, memID := range result.MemoryIDs {
			out[memID] = 1
		}
		return out, wasClamped, nil
	}
}

func candidatesFromMatches(matches []vectorindex.Match) StrategyCandidates {
	out := make(StrategyCandidates, len(matches))
	for _, m := range matches {
		out[m.ID] = m.Score
	}
	return out
}
