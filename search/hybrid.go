package search

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/dreamsoft-pro/rae/cache"
	"github.com/dreamsoft-pro/rae/graphrag"
	"github.com/dreamsoft-pro/rae/llm"
	"github.com/dreamsoft-pro/rae/memory"
	"github.com/dreamsoft-pro/rae/telemetry"
	"github.com/dreamsoft-pro/rae/tenant"
)

// DefaultGraphSeedCount bounds how many top vector hits seed the
// graph-traversal strategy, keeping BFS expansion proportional to query
// quality rather than to k.
const DefaultGraphSeedCount = 5

// Request is one hybrid_search invocation.
type Request struct {
	QueryText           string
	ConversationHistory []string
	K                   int
	GraphDepth          int
	WeightProfile       string // when set, skips analysis and uses WeightProfiles[WeightProfile]
	Filters             map[string]any
	Rerank              bool
}

// Result is the service's response: ranked memories, the graph context
// discovered around them, and a synthesized human-readable context block.
type Result struct {
	Memories       []memory.Result `json:"memories"`
	GraphNodeCount int             `json:"graph_node_count"`
	Analysis       Analysis        `json:"analysis"`
	ContextText    string          `json:"context_text"`
	Warnings       []string        `json:"warnings,omitempty"`
	CacheHit       bool            `json:"cache_hit"`
}

type cachedPayload struct {
	Memories       []memory.Result `json:"memories"`
	GraphNodeCount int             `json:"graph_node_count"`
	Analysis       Analysis        `json:"analysis"`
	ContextText    string          `json:"context_text"`
}

// HybridSearchService is the single entry point for context retrieval:
// cache lookup, query analysis, four-strategy candidate retrieval, score
// fusion, optional reranking, access-stats update, cache storage, and
// deterministic context synthesis, all behind one Search call.
type HybridSearchService struct {
	memories memory.Repository
	graph    graphrag.Repository
	ctxCache cache.ContextCache
	analyzer QueryAnalyzer
	reranker llm.Reranker

	vectorRetriever   func(ctx context.Context, scope tenant.Scope, queryText string, k int) (StrategyCandidates, error)
	fullTextRetriever func(ctx context.Context, scope tenant.Scope, queryText string, k int) (StrategyCandidates, error)
	semanticRetriever func(ctx context.Context, scope tenant.Scope, queryText string, k int) (StrategyCandidates, error)
	graphRetriever    func(ctx context.Context, scope tenant.Scope, seedMemoryIDs []string, depth int) (StrategyCandidates, bool, error)

	now       func() time.Time
	telemetry *telemetry.Instruments
}

// WithTelemetry attaches in as the service's tracer/metrics collaborator.
// Returns s for chaining at construction time.
func (s *HybridSearchService) WithTelemetry(in *telemetry.Instruments) *HybridSearchService {
	s.telemetry = in
	return s
}

// NewHybridSearchService wires every dependency; vectorRetriever,
// fullTextRetriever, semanticRetriever, and graphRetriever are normally
// built with VectorRetriever/FullTextRetriever/SemanticNodeRetriever/
// GraphRetriever. reranker may be nil to skip reranking entirely.
func NewHybridSearchService(
	memories memory.Repository,
	graph graphrag.Repository,
	ctxCache cache.ContextCache,
	analyzer QueryAnalyzer,
	reranker llm.Reranker,
	vectorRetriever func(ctx context.Context, scope tenant.Scope, queryText string, k int) (StrategyCandidates, error),
	fullTextRetriever func(ctx context.Context, scope tenant.Scope, queryText string, k int) (StrategyCandidates, error),
	semanticRetriever func(ctx context.Context, scope tenant.Scope, queryText string, k int) (StrategyCandidates, error),
	graphRetriever func(ctx context.Context, scope tenant.Scope, seedMemoryIDs []string, depth int) (StrategyCandidates, bool, error),
) *HybridSearchService {
	return &HybridSearchService{
		memories:          memories,
		graph:             graph,
		ctxCache:          ctxCache,
		analyzer:          analyzer,
		reranker:          reranker,
		vectorRetriever:   vectorRetriever,
		fullTextRetriever: fullTextRetriever,
		semanticRetriever: semanticRetriever,
		graphRetriever:    graphRetriever,
		now:               func() time.Time { return time.Now().UTC() },
	}
}

// Search runs the full hybrid retrieval pipeline for req under scope.
func (s *HybridSearchService) Search(ctx context.Context, scope tenant.Scope, req Request) (result *Result, err error) {
	ctx, span := s.telemetry.StartSpan(ctx, "rae.search.hybrid_search",
		attribute.String("tenant_id", scope.TenantID),
		attribute.Int("k", req.K),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	if req.K == 0 {
		return &Result{ContextText: synthesizeContext(nil, 0, Analysis{})}, nil
	}

	now := s.now()
	fp := cache.Fingerprint(scope.TenantID, scope.ProjectID, req.QueryText, req.Filters, now.Unix())

	if s.ctxCache != nil {
		if raw, hit, err := s.ctxCache.Get(ctx, fp); err == nil && hit {
			var payload cachedPayload
			if err := json.Unmarshal(raw, &payload); err == nil {
				s.telemetry.RecordCacheHit(ctx)
				return &Result{
					Memories:       payload.Memories,
					GraphNodeCount: payload.GraphNodeCount,
					Analysis:       payload.Analysis,
					ContextText:    payload.ContextText,
					CacheHit:       true,
				}, nil
			}
		}
		s.telemetry.RecordCacheMiss(ctx)
	}

	analysis, err := s.resolveWeights(ctx, req)
	if err != nil {
		return nil, err
	}

	var warnings []string

	vectorCandidates, err := s.vectorRetriever(ctx, scope, req.QueryText, req.K)
	if err != nil {
		return nil, err
	}
	fullTextCandidates, err := s.fullTextRetriever(ctx, scope, req.QueryText, req.K)
	if err != nil {
		return nil, err
	}
	semanticCandidates, err := s.semanticRetriever(ctx, scope, req.QueryText, req.K)
	if err != nil {
		return nil, err
	}

	graphSeeds := topCandidateIDs(vectorCandidates, DefaultGraphSeedCount)
	graphCandidates, graphClamped, err := s.graphRetriever(ctx, scope, graphSeeds, req.GraphDepth)
	if err != nil {
		return nil, err
	}
	if graphClamped {
		warnings = append(warnings, fmt.Sprintf("graph_depth clamped to %d", graphrag.MaxGraphDepth))
	}

	strategies := map[Strategy]StrategyCandidates{
		StrategyVector:   vectorCandidates,
		StrategyFullText: fullTextCandidates,
		StrategySemantic: semanticCandidates,
		StrategyGraph:    graphCandidates,
	}
	for strat, candidates := range strategies {
		s.telemetry.RecordRetrievalCandidates(ctx, string(strat), len(candidates))
	}

	allIDs := collectIDs(strategies)
	if len(allIDs) == 0 {
		return s.cacheAndReturn(ctx, scope, fp, now, &Result{
			Analysis:    analysis,
			ContextText: synthesizeContext(nil, 0, analysis),
			Warnings:    warnings,
		}, true)
	}

	memories, err := s.fetchMemories(ctx, scope, allIDs)
	if err != nil {
		return nil, err
	}

	fused := Fuse(strategies, analysis.Weights, memories, now)
	// Rerank draws from a wider pool (3k) than the final k so a candidate
	// ranked just outside the top k by fused score can still surface if the
	// reranker judges it more relevant; without reranking the pool is k.
	poolSize := req.K
	if req.Rerank && s.reranker != nil {
		poolSize = 3 * req.K
	}
	if len(fused) > poolSize {
		fused = fused[:poolSize]
	}

	results := make([]memory.Result, 0, len(fused))
	for _, f := range fused {
		results = append(results, memory.Result{Memory: *f.Memory, Score: f.Final})
	}

	if req.Rerank && s.reranker != nil && len(results) > 0 {
		results, err = s.rerank(ctx, req.QueryText, results)
		if err != nil {
			return nil, err
		}
	}
	if len(results) > req.K {
		results = results[:req.K]
	}

	ids := make([]string, 0, len(results))
	for _, r := range results {
		ids = append(ids, r.Memory.ID)
	}

	if err := s.memories.RecordAccess(ctx, ids, scope, now); err != nil {
		return nil, err
	}

	graphNodeCount := len(graphCandidates)
	final := &Result{
		Memories:       results,
		GraphNodeCount: graphNodeCount,
		Analysis:       analysis,
		ContextText:    synthesizeContext(results, graphNodeCount, analysis),
		Warnings:       warnings,
	}

	return s.cacheAndReturn(ctx, scope, fp, now, final, false)
}

func (s *HybridSearchService) resolveWeights(ctx context.Context, req Request) (Analysis, error) {
	if req.WeightProfile != "" {
		if w, ok := WeightProfiles[req.WeightProfile]; ok {
			return Analysis{Intent: Intent(req.WeightProfile), Confidence: 1, Weights: w}, nil
		}
	}
	return s.analyzer.Analyze(ctx, req.QueryText, req.ConversationHistory)
}

func (s *HybridSearchService) fetchMemories(ctx context.Context, scope tenant.Scope, ids []string) (map[string]*memory.Memory, error) {
	out := make(map[string]*memory.Memory, len(ids))
	for _, id := range ids {
		m, err := s.memories.Get(ctx, id, scope)
		if err != nil {
			continue // a candidate referencing a since-deleted memory is skipped, not fatal
		}
		out[id] = m
	}
	return out, nil
}

// rerank reorders results by the reranker's judgment of relevance to
// queryText, but leaves each Result's Score as its original fused score —
// the reranker only ever determines order, never the score carried in the
// response.
func (s *HybridSearchService) rerank(ctx context.Context, queryText string, results []memory.Result) ([]memory.Result, error) {
	candidates := make([]llm.Candidate, len(results))
	for i, r := range results {
		candidates[i] = llm.Candidate{ID: r.Memory.ID, Score: r.Score}
	}
	reranked, err := s.reranker.Rerank(ctx, queryText, candidates, len(candidates))
	if err != nil {
		return results, nil // reranking is best-effort: a failure keeps the fused order
	}

	byID := make(map[string]memory.Result, len(results))
	for _, r := range results {
		byID[r.Memory.ID] = r
	}
	out := make([]memory.Result, 0, len(reranked))
	for _, c := range reranked {
		if r, ok := byID[c.ID]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *HybridSearchService) cacheAndReturn(ctx context.Context, scope tenant.Scope, fp string, now time.Time, result *Result, negative bool) (*Result, error) {
	if s.ctxCache != nil {
		payload := cachedPayload{
			Memories:       result.Memories,
			GraphNodeCount: result.GraphNodeCount,
			Analysis:       result.Analysis,
			ContextText:    result.ContextText,
		}
		if raw, err := json.Marshal(payload); err == nil {
			ttl := cache.DefaultTTL
			if negative {
				ttl = cache.NegativeTTL
			}
			_ = s.ctxCache.Put(ctx, fp, raw, scope.TenantID, scope.ProjectID, ttl)
		}
	}
	return result, nil
}

func topCandidateIDs(c StrategyCandidates, n int) []string {
	type pair struct {
		id    string
		score float64
	}
	pairs := make([]pair, 0, len(c))
	for id, score := range c {
		pairs = append(pairs, pair{id, score})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].score != pairs[j].score {
			return pairs[i].score > pairs[j].score
		}
		return pairs[i].id < pairs[j].id
	})
	if len(pairs) > n {
		pairs = pairs[:n]
	}
	out := make([]string, len(pairs))
	for i, p := range pairs {
		out[i] = p.id
	}
	return out
}

func collectIDs(strategies map[Strategy]StrategyCandidates) []string {
	seen := make(map[string]struct{})
	for _, c := range strategies {
		for id := range c {
			seen[id] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	return out
}

// synthesizeContext renders the deterministic context block handed to a
// downstream agent call: fixed section order (Retrieved Memories, Graph
// Context, Statistics) so prompts built from it are stable across runs.
func synthesizeContext(results []memory.Result, graphNodeCount int, analysis Analysis) string {
	var b strings.Builder
	b.WriteString("## Retrieved Memories\n")
	if len(results) == 0 {
		b.WriteString("(none)\n")
	} else {
		for i, r := range results {
			fmt.Fprintf(&b, "%d. %s\n", i+1, strings.TrimSpace(r.Memory.Content))
		}
	}

	b.WriteString("\n## Graph Context\n")
	fmt.Fprintf(&b, "%d related node(s) traversed\n", graphNodeCount)

	b.WriteString("\n## Statistics\n")
	fmt.Fprintf(&b, "intent=%s confidence=%.2f memories=%d\n", analysis.Intent, analysis.Confidence, len(results))

	return b.String()
}
