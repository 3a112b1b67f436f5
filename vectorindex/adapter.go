package vectorindex

import (
	"context"

	"github.com/dreamsoft-pro/rae/llm"
	"github.com/dreamsoft-pro/rae/tenant"
)

// Adapter wraps an Index with query embedding, so retrieval callers work
// with text instead of raw vectors.
type Adapter struct {
	index    Index
	embedder llm.EmbeddingProvider
	tracker  *llm.Tracker
}

// NewAdapter builds an Adapter over index using embedder to turn query text
// into vectors. tracker, if non-nil, records embedding token usage under
// the "embed" operation.
func NewAdapter(index Index, embedder llm.EmbeddingProvider, tracker *llm.Tracker) *Adapter {
	return &Adapter{index: index, embedder: embedder, tracker: tracker}
}

// SearchText embeds queryText and searches the underlying index.
func (a *Adapter) SearchText(ctx context.Context, scope tenant.Scope, queryText string, k int, filters Filters) ([]Match, error) {
	vectors, err := a.embedder.Embed(ctx, []string{queryText})
	if err != nil {
		return nil, err
	}
	if a.tracker != nil {
		// The EmbeddingProvider port reports no usage, so the core always
		// estimates a nominal token count (one word ~ 1 token is a
		// deliberately crude floor, never exactly right).
		a.tracker.Add("embed", llm.Usage{InputTokens: estimateTokens(queryText)})
	}
	if len(vectors) == 0 {
		return nil, nil
	}
	return a.index.Search(ctx, scope, vectors[0], k, filters)
}

func estimateTokens(s string) int {
	n := 0
	inWord := false
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\n' {
			inWord = false
			continue
		}
		if !inWord {
			n++
			inWord = true
		}
	}
	return n
}
