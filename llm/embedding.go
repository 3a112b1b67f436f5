package llm

import "context"

// EmbeddingProvider embeds text into fixed-dimension vectors. All vectors
// returned by one deployment share the same dimension.
type EmbeddingProvider interface {
	// Embed returns vectors in the same order as texts. Fails with
	// ErrProviderUnavailable (transient) or ErrInvalidInput (fatal).
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Reranker reorders candidates by relevance to a query using a
// cross-encoder or similar model.
type Reranker interface {
	// Rerank returns the top k candidates in descending relevance,
	// preserving candidate metadata; ties are broken by original score.
	Rerank(ctx context.Context, query string, candidates []Candidate, k int) ([]Candidate, error)
}

// Candidate is a reranker input/output item: an opaque ID plus the score it
// carried into (or out of) reranking.
type Candidate struct {
	ID    string
	Score float64
}
