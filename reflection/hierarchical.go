package reflection

import (
	"context"
	"strings"

	"github.com/dreamsoft-pro/rae/llm"
	"github.com/dreamsoft-pro/rae/memory"
)

// HierarchicalStatistics describes one Hierarchical run.
type HierarchicalStatistics struct {
	EpisodesProcessed int
	Rounds            int
	FinalBucketCount  int
}

// HierarchicalResult is Hierarchical's return value, matching the
// `/v1/memory/reflection/hierarchical` response shape.
type HierarchicalResult struct {
	Summary    string
	Statistics HierarchicalStatistics
}

// Hierarchical performs a map-reduce summarization over arbitrarily many
// episodes: split into buckets of cfg.BucketSize, summarize each via LLM,
// then summarize the summaries recursively until one remains. Used for
// large retrospectives (thousands of episodes) and, unlike Pipeline.Run,
// consumes no cluster structure — it is a pure fold over the input order.
//
// No other code in this module calls it; Pipeline.Run summarizes clusters
// itself and does not go through it.
func Hierarchical(ctx context.Context, provider llm.Provider, model string, bucketSize int, episodes []*memory.Memory) (*HierarchicalResult, error) {
	if bucketSize <= 0 {
		bucketSize = 10
	}

	texts := make([]string, len(episodes))
	for i, m := range episodes {
		texts[i] = m.Content
	}

	stats := HierarchicalStatistics{EpisodesProcessed: len(episodes)}
	if len(texts) == 0 {
		return &HierarchicalResult{Summary: "", Statistics: stats}, nil
	}

	current := texts
	for len(current) > 1 {
		var next []string
		for start := 0; start < len(current); start += bucketSize {
			end := start + bucketSize
			if end > len(current) {
				end = len(current)
			}
			bucket := current[start:end]

			summary, err := summarizeTexts(ctx, provider, model, bucket)
			if err != nil {
				return nil, err
			}
			next = append(next, summary)
		}
		current = next
		stats.Rounds++
		stats.FinalBucketCount = len(current)
	}

	return &HierarchicalResult{Summary: current[0], Statistics: stats}, nil
}

func summarizeTexts(ctx context.Context, provider llm.Provider, model string, texts []string) (string, error) {
	var b strings.Builder
	b.WriteString("Summarize the following into a single concise paragraph:\n")
	b.WriteString(strings.Join(texts, "\n---\n"))

	resp, err := provider.Complete(ctx, llm.NewCompletionRequest(model,
		[]llm.Message{{Role: llm.RoleUser, Content: b.String()}},
	))
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}
