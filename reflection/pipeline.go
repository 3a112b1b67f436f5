package reflection

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dreamsoft-pro/rae/capability"
	"github.com/dreamsoft-pro/rae/llm"
	"github.com/dreamsoft-pro/rae/memory"
	"github.com/dreamsoft-pro/rae/tenant"
)

type clusterSummary struct {
	Summary        string         `json:"summary"`
	KeyInsights    []string       `json:"key_insights"`
	ReflectionType ReflectionType `json:"reflection_type"`
}

var summarySchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"summary":         map[string]any{"type": "string"},
		"key_insights":    map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"reflection_type": map[string]any{"type": "string", "enum": []string{"insight", "pattern", "summary"}},
	},
	"required": []string{"summary", "reflection_type"},
}

// Pipeline is the single orchestration point for reflection generation,
// grounded on search.HybridSearchService's single-entry-point shape:
// Run(scope) is the one call an operator or sweeper invokes.
type Pipeline struct {
	memories memory.Repository
	provider llm.Provider
	registry *capability.Registry
	cfg      Config
	logger   *slog.Logger
}

// NewPipeline wires a Pipeline over repo/provider with cfg. cfg is used as
// given: zero fields are not replaced by DefaultConfig's values, except that
// a non-positive BatchConcurrency or TimeWindowHours falls back to 4 or 24.
func NewPipeline(repo memory.Repository, provider llm.Provider, registry *capability.Registry, cfg Config, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{memories: repo, provider: provider, registry: registry, cfg: cfg, logger: logger}
}

// RunResult summarizes what one Pipeline.Run pass produced.
type RunResult struct {
	ReflectionsCreated int
	MetaInsightCreated bool
	ClustersConsidered int
}

// Run executes one reflection pass for scope: fetch unconsolidated
// episodes, cluster them, summarize each cluster with the LLM, persist a
// reflective memory per cluster, and optionally aggregate a meta-insight.
// Returns a zero RunResult with no error when scope has fewer than
// cfg.MinEpisodes unconsolidated episodes — reflection simply has nothing
// to do yet.
func (p *Pipeline) Run(ctx context.Context, scope tenant.Scope) (RunResult, error) {
	episodes, err := p.memories.FindUnconsolidatedEpisodes(ctx, scope, time.Time{}, p.cfg.MaxMemories)
	if err != nil {
		return RunResult{}, err
	}
	if len(episodes) < p.cfg.MinEpisodes {
		return RunResult{}, nil
	}

	clusterer := ResolveClusterer(p.registry, p.cfg)
	clusters, err := clusterer.Cluster(ctx, episodes)
	if err != nil {
		return RunResult{}, err
	}

	var eligible [][]*memory.Memory
	for _, c := range clusters {
		if len(c) >= p.cfg.MinClusterSize {
			eligible = append(eligible, c)
		}
	}

	created := p.summarizeClusters(ctx, scope, eligible)

	result := RunResult{ReflectionsCreated: len(created), ClustersConsidered: len(clusters)}

	if len(created) >= p.cfg.MinReflectionsForMeta {
		if ok, err := p.maybeCreateMetaInsight(ctx, scope, created); err != nil {
			p.logger.Warn("reflection: meta-insight aggregation failed", "error", err, "scope", scope.String())
		} else {
			result.MetaInsightCreated = ok
		}
	}

	return result, nil
}

// summarizeClusters runs LLM summarization over eligible clusters with a
// concurrency cap of cfg.BatchConcurrency to bound provider load, and
// returns the IDs of the reflective memories it successfully persisted. A
// cluster whose summarization or persistence fails is skipped, not fatal
// to the pass.
func (p *Pipeline) summarizeClusters(ctx context.Context, scope tenant.Scope, clusters [][]*memory.Memory) []string {
	concurrency := p.cfg.BatchConcurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	sem := make(chan struct{}, concurrency)
	var mu sync.Mutex
	var createdIDs []string
	var wg sync.WaitGroup

	for _, cluster := range clusters {
		cluster := cluster
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			id, err := p.summarizeAndPersist(ctx, scope, cluster)
			if err != nil {
				p.logger.Warn("reflection: cluster summarization failed", "error", err, "cluster_size", len(cluster))
				return
			}
			mu.Lock()
			createdIDs = append(createdIDs, id)
			mu.Unlock()
		}()
	}
	wg.Wait()
	return createdIDs
}

func (p *Pipeline) summarizeAndPersist(ctx context.Context, scope tenant.Scope, cluster []*memory.Memory) (string, error) {
	summary, err := p.summarizeCluster(ctx, cluster)
	if err != nil {
		return "", err
	}

	parentIDs := make([]string, len(cluster))
	for i, m := range cluster {
		parentIDs[i] = m.ID
	}

	reflective := &memory.Memory{
		Scope:               scope,
		Layer:                memory.LayerReflective,
		Content:              summary.Summary,
		Source:               "reflection_pipeline",
		Importance:           p.cfg.ReflectionImportance,
		ConsolidationStatus:  memory.StatusConsolidated,
		ParentIDs:            parentIDs,
	}
	if summary.ReflectionType.Valid() {
		reflective.Tags = []string{string(summary.ReflectionType)}
	}

	id, err := p.memories.Create(ctx, reflective)
	if err != nil {
		return "", err
	}

	for _, m := range cluster {
		if err := p.memories.UpdateConsolidationStatus(ctx, m.ID, scope, memory.StatusConsolidated); err != nil {
			p.logger.Warn("reflection: mark parent consolidated failed", "error", err, "memory_id", m.ID)
		}
	}
	return id, nil
}

func (p *Pipeline) summarizeCluster(ctx context.Context, cluster []*memory.Memory) (*clusterSummary, error) {
	var b strings.Builder
	b.WriteString("Summarize the following episodic memories into a single reflective insight. ")
	b.WriteString("Classify it as insight, pattern, or summary:\n")
	for i, m := range cluster {
		b.WriteString(strings.TrimSpace(m.Content))
		if i < len(cluster)-1 {
			b.WriteString("\n---\n")
		}
	}

	resp, err := p.provider.Complete(ctx, llm.NewCompletionRequest(p.cfg.Model,
		[]llm.Message{{Role: llm.RoleUser, Content: b.String()}},
		llm.WithJSONSchema(summarySchema),
	))
	if err != nil {
		return nil, err
	}

	var out clusterSummary
	if err := json.Unmarshal([]byte(resp.Text), &out); err != nil {
		return nil, llm.ErrProviderOutputInvalid
	}
	if !out.ReflectionType.Valid() {
		out.ReflectionType = TypeSummary
	}
	return &out, nil
}

// maybeCreateMetaInsight aggregates newly created reflections into one
// meta-insight when their parent sets overlap. It considers only the
// reflections named by reflectionIDs (looked up among scope's reflective
// memories): the first one, plus each later one that shares at least one
// parent ID with an earlier one. If at least cfg.MinReflectionsForMeta are
// kept, it persists a meta-insight whose parent_ids are the sorted IDs of
// those reflections.
func (p *Pipeline) maybeCreateMetaInsight(ctx context.Context, scope tenant.Scope, reflectionIDs []string) (bool, error) {
	recent, err := p.memories.ListByLayer(ctx, scope, memory.LayerReflective, memory.ListFilters{}, 0, 0)
	if err != nil {
		return false, err
	}

	byID := make(map[string]*memory.Memory, len(recent))
	for _, m := range recent {
		byID[m.ID] = m
	}

	var overlapping []*memory.Memory
	parentSeen := make(map[string]struct{})
	for _, id := range reflectionIDs {
		m, ok := byID[id]
		if !ok {
			continue
		}
		overlap := false
		for _, pid := range m.ParentIDs {
			if _, seen := parentSeen[pid]; seen {
				overlap = true
			}
			parentSeen[pid] = struct{}{}
		}
		if overlap || len(overlapping) == 0 {
			overlapping = append(overlapping, m)
		}
	}

	if len(overlapping) < p.cfg.MinReflectionsForMeta {
		return false, nil
	}

	unionParents := make(map[string]struct{})
	var contents []string
	var metaParents []string
	for _, m := range overlapping {
		metaParents = append(metaParents, m.ID)
		contents = append(contents, m.Content)
		for _, pid := range m.ParentIDs {
			unionParents[pid] = struct{}{}
		}
	}
	sort.Strings(metaParents)

	meta := &memory.Memory{
		Scope:               scope,
		Layer:                memory.LayerReflective,
		Content:              "Meta-insight: " + strings.Join(contents, " | "),
		Source:               "reflection_pipeline_meta",
		Importance:           p.cfg.ReflectionImportance,
		ConsolidationStatus:  memory.StatusConsolidated,
		ParentIDs:            metaParents,
		Tags:                 []string{"meta_insight"},
	}
	if _, err := p.memories.Create(ctx, meta); err != nil {
		return false, err
	}
	return true, nil
}
