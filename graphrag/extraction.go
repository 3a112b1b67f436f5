package graphrag

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/dreamsoft-pro/rae/cache"
	"github.com/dreamsoft-pro/rae/graphrag/id"
	"github.com/dreamsoft-pro/rae/llm"
	"github.com/dreamsoft-pro/rae/memory"
	"github.com/dreamsoft-pro/rae/tenant"
)

// BatchSize is how many episodic memories are sent to the LLM in one
// structured-extraction call.
const BatchSize = 8

// Triple is one extracted (subject, predicate, object) relation.
type Triple struct {
	Subject    string  `json:"subject"`
	Predicate  string  `json:"predicate"`
	Object     string  `json:"object"`
	Confidence float64 `json:"confidence"`
}

// ExtractionResult is what ExtractionService.Extract returns.
type ExtractionResult struct {
	Triples    []Triple             `json:"triples"`
	Entities   []string             `json:"entities"`
	Statistics ExtractionStatistics `json:"statistics"`
}

// ExtractionStatistics summarizes one extraction invocation.
type ExtractionStatistics struct {
	MemoriesProcessed int `json:"memories_processed"`
	EntitiesCount     int `json:"entities_count"`
	TriplesCount      int `json:"triples_count"`
}

// ExtractionOptions parameterize one Extract call.
type ExtractionOptions struct {
	Limit         int
	MinConfidence float64
	AutoStore     bool
}

type extractionOutput struct {
	Triples []struct {
		Subject    string  `json:"subject"`
		Predicate  string  `json:"predicate"`
		Object     string  `json:"object"`
		Confidence float64 `json:"confidence"`
	} `json:"triples"`
	Entities []string `json:"entities"`
}

var extractionSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"triples": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"subject":    map[string]any{"type": "string"},
					"predicate":  map[string]any{"type": "string"},
					"object":     map[string]any{"type": "string"},
					"confidence": map[string]any{"type": "number"},
				},
			},
		},
		"entities": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
	},
	"required": []string{"triples", "entities"},
}

// ExtractionService converts episodic memories into triples and persists
// them, using llm.CompletionRequest.JSONSchema to constrain the model's
// output to a fixed entity/relation extraction contract.
type ExtractionService struct {
	memories memory.Repository
	graph    Repository
	provider llm.Provider
	cache    cache.ContextCache
	model    string
	logger   *slog.Logger

	// nodeIndex and embedder are optional: when both are set, every
	// upserted node's label is embedded and indexed so semantic-node
	// retrieval can find it later. Nil either disables that wiring.
	nodeIndex NodeIndex
	embedder  llm.EmbeddingProvider
}

// NodeIndex is the subset of vectorindex.Index that node-label indexing
// needs, kept narrow here so graphrag does not import vectorindex directly.
type NodeIndex interface {
	Upsert(ctx context.Context, scope tenant.Scope, id string, vector []float32, payload map[string]any) error
}

// NewExtractionService wires the repositories, LLM provider, and cache an
// extraction run needs.
func NewExtractionService(memories memory.Repository, graph Repository, provider llm.Provider, ctxCache cache.ContextCache, model string, logger *slog.Logger) *ExtractionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExtractionService{memories: memories, graph: graph, provider: provider, cache: ctxCache, model: model, logger: logger}
}

// WithNodeIndexing enables embedding and indexing of node labels as they
// are upserted, so the search package's semantic-node strategy can later
// find them by similarity.
func (s *ExtractionService) WithNodeIndexing(index NodeIndex, embedder llm.EmbeddingProvider) *ExtractionService {
	s.nodeIndex = index
	s.embedder = embedder
	return s
}

// Extract fetches unconsolidated episodic memories, extracts triples in
// batches, and optionally persists them.
func (s *ExtractionService) Extract(ctx context.Context, scope tenant.Scope, opts ExtractionOptions) (*ExtractionResult, error) {
	mems, err := s.memories.FindUnconsolidatedEpisodes(ctx, scope, time.Time{}, opts.Limit)
	if err != nil {
		return nil, err
	}

	result := &ExtractionResult{}
	entitySeen := make(map[string]struct{})

	for start := 0; start < len(mems); start += BatchSize {
		end := start + BatchSize
		if end > len(mems) {
			end = len(mems)
		}
		batch := mems[start:end]

		triples, entities, err := s.extractBatch(ctx, batch)
		if err != nil {
			// A batch failure is skipped, not fatal: its memories stay raw
			// and the overall invocation still returns partial results.
			s.logger.Warn("graphrag extraction: batch failed", "error", err, "batch_size", len(batch))
			continue
		}

		kept := make([]Triple, 0, len(triples))
		for _, t := range triples {
			if t.Confidence < opts.MinConfidence {
				continue
			}
			kept = append(kept, t)
		}
		result.Triples = append(result.Triples, kept...)

		normEntities := make([]string, 0, len(entities))
		for _, e := range entities {
			norm := id.Normalize(e)
			normEntities = append(normEntities, norm)
			if _, ok := entitySeen[norm]; ok {
				continue
			}
			entitySeen[norm] = struct{}{}
			result.Entities = append(result.Entities, norm)
		}

		if opts.AutoStore {
			if err := s.store(ctx, scope, kept, normEntities, batch); err != nil {
				return nil, err
			}
		}
	}

	result.Statistics = ExtractionStatistics{
		MemoriesProcessed: len(mems),
		EntitiesCount:     len(result.Entities),
		TriplesCount:      len(result.Triples),
	}

	if opts.AutoStore && s.cache != nil {
		if err := s.cache.Invalidate(ctx, scope.TenantID, scope.ProjectID); err != nil {
			s.logger.Warn("graphrag extraction: cache invalidate failed", "error", err)
		}
	}

	return result, nil
}

func (s *ExtractionService) extractBatch(ctx context.Context, batch []*memory.Memory) ([]Triple, []string, error) {
	var b strings.Builder
	b.WriteString("Extract entities and (subject, predicate, object, confidence) triples from these memories:\n")
	for i, m := range batch {
		b.WriteString(strings.TrimSpace(m.Content))
		if i < len(batch)-1 {
			b.WriteString("\n---\n")
		}
	}

	resp, err := s.provider.Complete(ctx, llm.NewCompletionRequest(s.model,
		[]llm.Message{{Role: llm.RoleUser, Content: b.String()}},
		llm.WithJSONSchema(extractionSchema),
	))
	if err != nil {
		return nil, nil, err
	}

	var raw extractionOutput
	if err := json.Unmarshal([]byte(resp.Text), &raw); err != nil {
		return nil, nil, llm.ErrProviderOutputInvalid
	}

	triples := make([]Triple, 0, len(raw.Triples))
	for _, t := range raw.Triples {
		triples = append(triples, Triple{
			Subject:    id.Normalize(t.Subject),
			Predicate:  strings.ToLower(strings.TrimSpace(t.Predicate)),
			Object:     id.Normalize(t.Object),
			Confidence: t.Confidence,
		})
	}

	return triples, raw.Entities, nil
}

// store upserts a node for every extracted entity (not only the ones that
// happen to be a triple's subject or object), inserts an edge per kept
// triple, and marks batch consolidated. Triples are extracted per batch
// rather than per memory, so there is no single memory a triple is
// uniquely attributable to; the batch's first memory stands in as the
// edge's source_memory_id.
func (s *ExtractionService) store(ctx context.Context, scope tenant.Scope, triples []Triple, entities []string, batch []*memory.Memory) error {
	for _, e := range entities {
		nodeID, err := s.graph.UpsertNode(ctx, scope, e, e, nil)
		if err != nil {
			return err
		}
		s.indexNodeLabel(ctx, scope, nodeID, e)
	}

	var sourceMemoryID string
	if len(batch) > 0 {
		sourceMemoryID = batch[0].ID
	}

	for _, t := range triples {
		subjectID, err := s.graph.UpsertNode(ctx, scope, t.Subject, t.Subject, nil)
		if err != nil {
			return err
		}
		s.indexNodeLabel(ctx, scope, subjectID, t.Subject)

		objectID, err := s.graph.UpsertNode(ctx, scope, t.Object, t.Object, nil)
		if err != nil {
			return err
		}
		s.indexNodeLabel(ctx, scope, objectID, t.Object)

		if _, err := s.graph.InsertEdge(ctx, scope, subjectID, objectID, t.Predicate, map[string]any{
			"confidence":       t.Confidence,
			"source_memory_id": sourceMemoryID,
		}); err != nil {
			return err
		}
	}

	for _, m := range batch {
		if err := s.memories.UpdateConsolidationStatus(ctx, m.ID, scope, memory.StatusConsolidated); err != nil {
			return err
		}
	}
	return nil
}

func (s *ExtractionService) indexNodeLabel(ctx context.Context, scope tenant.Scope, internalID, label string) {
	if s.nodeIndex == nil || s.embedder == nil {
		return
	}
	vectors, err := s.embedder.Embed(ctx, []string{label})
	if err != nil || len(vectors) == 0 {
		s.logger.Warn("graphrag extraction: node label embedding failed", "error", err, "label", label)
		return
	}
	if err := s.nodeIndex.Upsert(ctx, scope, internalID, vectors[0], map[string]any{"label": label}); err != nil {
		s.logger.Warn("graphrag extraction: node label index upsert failed", "error", err, "label", label)
	}
}
