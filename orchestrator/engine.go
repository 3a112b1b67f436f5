package orchestrator

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/dreamsoft-pro/rae/costbook"
	"github.com/dreamsoft-pro/rae/llm"
	"github.com/dreamsoft-pro/rae/memory"
	"github.com/dreamsoft-pro/rae/raeerr"
	"github.com/dreamsoft-pro/rae/reflection"
	"github.com/dreamsoft-pro/rae/search"
	"github.com/dreamsoft-pro/rae/telemetry"
	"github.com/dreamsoft-pro/rae/tenant"
)

// Lifecycle is the Start/Stop contract every long-lived component Engine
// owns satisfies: before handling any request every managed port has
// started successfully, and on shutdown every background sweeper stops
// within a bounded drain period.
type Lifecycle interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Engine wires the hybrid search service, memory repository, LLM provider,
// cost/budget bookkeeping, and reflection pipeline into the single
// ExecuteAgentTask entry point, and owns the lifecycle of every
// long-lived component handed to it via Manage.
type Engine struct {
	search    *search.HybridSearchService
	memories  memory.Repository
	provider  llm.Provider
	costs     costbook.CostRepository
	pricing   *costbook.PricingTable
	tracker   *llm.Tracker
	reflect   *reflection.Pipeline
	logger    *slog.Logger
	now       func() time.Time
	telemetry *telemetry.Instruments

	managed []Lifecycle
}

// NewEngine wires the required collaborators. reflectPipeline is stored but
// not consulted by ExecuteAgentTask: reflection injection reads reflective
// memories from memories and the post-hoc enqueue follows the request's
// Options, so a nil reflectPipeline disables neither. The returned Engine
// records no traces or metrics until WithTelemetry is called.
//
// When a deployment backs retrieval with a vectorindex.Index, pass
// memory.NewCascadingRepository(memories, vecIndex) as memories so that
// deleting a memory also deletes its vector — Engine itself never deletes
// memories and so never needs a vector port of its own.
func NewEngine(
	searchSvc *search.HybridSearchService,
	memories memory.Repository,
	provider llm.Provider,
	costs costbook.CostRepository,
	reflectPipeline *reflection.Pipeline,
	logger *slog.Logger,
) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		search:    searchSvc,
		memories:  memories,
		provider:  provider,
		costs:     costs,
		pricing:   costbook.NewPricingTable(),
		tracker:   llm.NewTracker(),
		reflect:   reflectPipeline,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithTelemetry attaches in as the Engine's tracer/metrics collaborator,
// replacing the disabled default. Returns e for chaining at construction
// time.
func (e *Engine) WithTelemetry(in *telemetry.Instruments) *Engine {
	e.telemetry = in
	return e
}

// Manage registers a long-lived component (cache.RedisCache,
// coordination.Leader, a scoring.DecayWorker/reflection.Sweeper wrapped to
// satisfy Lifecycle, ...) whose Start/Stop the Engine will drive.
func (e *Engine) Manage(component Lifecycle) {
	e.managed = append(e.managed, component)
}

// Start starts every managed component, in registration order, stopping
// and returning the first error encountered.
func (e *Engine) Start(ctx context.Context) error {
	for i, c := range e.managed {
		if err := c.Start(ctx); err != nil {
			for j := i - 1; j >= 0; j-- {
				_ = e.managed[j].Stop(ctx)
			}
			return err
		}
	}
	return nil
}

// Stop stops every managed component in reverse registration order,
// collecting the first error but attempting every Stop regardless.
func (e *Engine) Stop(ctx context.Context) error {
	var firstErr error
	for i := len(e.managed) - 1; i >= 0; i-- {
		if err := e.managed[i].Stop(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// ExecuteAgentTask runs the full orchestrated flow:
//  1. budget precheck
//  2. hybrid retrieval
//  3. optional reflection injection
//  4. LLM call
//  5. cost accounting
//  6. optional post-hoc reflection enqueue
//  7. return {answer, used_memories, cost}
func (e *Engine) ExecuteAgentTask(ctx context.Context, scope tenant.Scope, prompt string, opts Options) (result *Result, err error) {
	start := e.now()
	ctx, span := e.telemetry.StartSpan(ctx, "rae.orchestrator.execute_agent_task",
		attribute.String("tenant_id", scope.TenantID),
		attribute.String("project_id", scope.ProjectID),
	)
	defer func() {
		telemetry.EndSpan(span, err)
		e.telemetry.RecordRequest(ctx, e.now().Sub(start), scope.TenantID, err)
	}()

	model := opts.Model
	if model == "" {
		model = "gpt-4o-mini"
	}

	if e.costs != nil {
		estimatedCost := e.estimateCallCost(model, prompt)
		status, err := e.costs.CheckBudget(ctx, scope, estimatedCost)
		if err != nil {
			return nil, err
		}
		if !status.OK {
			return nil, raeerr.New(raeerr.KindBudgetExceeded, "orchestrator", "execute_agent_task", "tenant is over its daily or monthly budget").
				WithDetails(map[string]any{"daily_exceeded": status.DailyExceeded, "monthly_exceeded": status.MonthlyExceeded, "estimated_cost_usd": estimatedCost})
		}
	}

	searchResult, err := e.search.Search(ctx, scope, opts.toSearchRequest(prompt, nil))
	if err != nil {
		return nil, err
	}

	systemPrefix := e.reflectionPrefix(ctx, scope, opts)

	fullPrompt := searchResult.ContextText + "\n" + prompt
	messages := []llm.Message{}
	if systemPrefix != "" {
		messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: systemPrefix})
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: fullPrompt})

	resp, err := e.provider.Complete(ctx, llm.NewCompletionRequest(model, messages))
	if err != nil {
		return nil, err
	}
	e.tracker.Add("complete", llm.Usage{InputTokens: resp.InputTokens, OutputTokens: resp.OutputTokens})

	cost := e.pricing.ComputeCost(model, resp.InputTokens, resp.OutputTokens)
	warnings := append([]string{}, searchResult.Warnings...)
	if e.costs != nil {
		if err := e.costs.RecordCost(ctx, costbook.CostLog{
			TenantID:     scope.TenantID,
			ProjectID:    scope.ProjectID,
			Model:        model,
			Operation:    costbook.OperationComplete,
			InputTokens:  resp.InputTokens,
			OutputTokens: resp.OutputTokens,
			TotalCostUSD: cost,
			Timestamp:    e.now(),
		}); err != nil {
			// A cost log write failure never fails the caller's request; it
			// is logged and surfaced as a warning instead.
			e.logger.Warn("orchestrator: cost log record failed", "error", err, "scope", scope.String())
			warnings = append(warnings, "cost logging failed: "+err.Error())
		}
	}

	result = &Result{
		Answer:       resp.Text,
		UsedMemories: searchResult.Memories,
		Cost: CostSummary{
			InputTokens:   resp.InputTokens,
			OutputTokens:  resp.OutputTokens,
			TotalEstimate: cost,
		},
		Warnings: warnings,
	}

	if opts.enqueuePostHoc() {
		e.enqueuePostHocReflection(ctx, scope, prompt, resp.Text, searchResult.Memories, cost)
	}

	return result, nil
}

// estimatedCharsPerToken is the same rough token-counting heuristic
// reflectionPrefix uses for its budget, reused here so the budget precheck
// has a token count to price before the real completion call reports one.
const estimatedCharsPerToken = 4

// estimateCallCost prices a pending call before it is made, so the budget
// precheck can reject a call whose cost alone would blow the tenant's
// remaining headroom instead of only reacting after the fact. Retrieval and
// reflection injection happen after the precheck, so only the raw prompt is
// known yet; output length is assumed symmetric with input, a conservative
// stand-in for the real completion length the provider will report.
func (e *Engine) estimateCallCost(model, prompt string) float64 {
	estTokens := len(prompt) / estimatedCharsPerToken
	if estTokens < 1 {
		estTokens = 1
	}
	return e.pricing.ComputeCost(model, estTokens, estTokens)
}

// reflectionPrefix builds the system-prompt prefix from recent reflective
// memories, bounded by opts.reflectionTokenBudget() using a 4-chars-per-
// token estimate. Returns "" when memories is nil, the lookup fails, or
// scope has no reflective memories.
func (e *Engine) reflectionPrefix(ctx context.Context, scope tenant.Scope, opts Options) string {
	if e.memories == nil {
		return ""
	}
	reflective, err := e.memories.ListByLayer(ctx, scope, memory.LayerReflective, memory.ListFilters{}, 10, 0)
	if err != nil || len(reflective) == 0 {
		return ""
	}

	budgetChars := opts.reflectionTokenBudget() * 4
	var b strings.Builder
	for _, m := range reflective {
		if b.Len()+len(m.Content) > budgetChars {
			break
		}
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	return b.String()
}

// enqueuePostHocReflection records an episodic memory capturing this
// exchange for the reflection pipeline to consume later. Failure is
// logged, never propagated — a missed post-hoc write must not fail an
// otherwise successful call.
func (e *Engine) enqueuePostHocReflection(ctx context.Context, scope tenant.Scope, prompt, answer string, used []memory.Result, cost float64) {
	ids := make([]string, len(used))
	for i, r := range used {
		ids[i] = r.Memory.ID
	}

	content := "Q: " + prompt + "\nA: " + answer
	_, err := e.memories.Create(ctx, &memory.Memory{
		Scope:      scope,
		Layer:      memory.LayerEpisodic,
		Content:    content,
		Source:     "agent_execute",
		Importance: 0.5,
	})
	if err != nil {
		e.logger.Warn("orchestrator: post-hoc reflection enqueue failed", "error", err, "scope", scope.String(), "used_memory_count", len(ids), "cost", cost)
	}
}
