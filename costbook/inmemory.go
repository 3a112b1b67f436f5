package costbook

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dreamsoft-pro/rae/raeerr"
	"github.com/dreamsoft-pro/rae/tenant"
)

// InMemoryBook is a sync.Mutex-guarded reference implementation of both
// CostRepository and BudgetRepository, using the same map-plus-mutex shape
// as the other in-memory repositories. Locking is per-tenant (a map of
// *sync.Mutex) rather than one global lock, so budget-counter updates for
// one tenant never contend with another's.
type InMemoryBook struct {
	mu       sync.RWMutex
	logs     []CostLog
	budgets  map[string]*Budget
	tenantMu map[string]*sync.Mutex
}

// NewInMemoryBook returns an empty book.
func NewInMemoryBook() *InMemoryBook {
	return &InMemoryBook{
		budgets:  make(map[string]*Budget),
		tenantMu: make(map[string]*sync.Mutex),
	}
}

var _ CostRepository = (*InMemoryBook)(nil)
var _ BudgetRepository = (*InMemoryBook)(nil)

func (b *InMemoryBook) lockFor(tenantID string) *sync.Mutex {
	b.mu.Lock()
	defer b.mu.Unlock()
	m, ok := b.tenantMu[tenantID]
	if !ok {
		m = &sync.Mutex{}
		b.tenantMu[tenantID] = m
	}
	return m
}

// RecordCost appends log (assigning an ID/timestamp if absent) and applies
// its cost/tokens to the tenant's budget counters atomically under the
// tenant's lock.
func (b *InMemoryBook) RecordCost(ctx context.Context, log CostLog) error {
	if log.TenantID == "" {
		return raeerr.New(raeerr.KindValidation, "costbook", "record_cost", "tenant_id is required").WithField("tenant_id")
	}
	if log.TotalCostUSD < 0 {
		return raeerr.New(raeerr.KindValidation, "costbook", "record_cost", "total_cost_usd must be >= 0").WithField("total_cost_usd")
	}
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.Timestamp.IsZero() {
		log.Timestamp = time.Now().UTC()
	}

	tm := b.lockFor(log.TenantID)
	tm.Lock()
	defer tm.Unlock()

	b.mu.Lock()
	b.logs = append(b.logs, log)
	b.mu.Unlock()

	totalTokens := int64(log.InputTokens + log.OutputTokens)
	_, err := b.applyUsageLocked(log.TenantID, log.TotalCostUSD, totalTokens, log.Timestamp)
	return err
}

// CheckBudget reports whether tenant would still be within its daily and
// monthly limits after a pending call estimated to cost estimatedCostUSD,
// rolling over stale counters first. Projecting the estimate onto current
// usage (rather than checking current usage alone) is what lets a fresh
// tenant with a near-zero ceiling be rejected on its very first call,
// before that call's real cost is known.
func (b *InMemoryBook) CheckBudget(ctx context.Context, scope tenant.Scope, estimatedCostUSD float64) (BudgetStatus, error) {
	tm := b.lockFor(scope.TenantID)
	tm.Lock()
	defer tm.Unlock()

	budget := b.resetIfStaleLocked(scope.TenantID, time.Now().UTC())
	status := BudgetStatus{OK: true, Budget: budget.Clone()}

	if budget.BudgetUSDMonthly > 0 && budget.MonthlyUsageUSD+estimatedCostUSD >= budget.BudgetUSDMonthly {
		status.MonthlyExceeded = true
		status.OK = false
	}
	if budget.BudgetTokensMonthly > 0 && budget.MonthlyTokensUsed >= budget.BudgetTokensMonthly {
		status.MonthlyExceeded = true
		status.OK = false
	}
	// Daily ceiling is proportional: 1/30th of the monthly USD ceiling,
	// since Budget carries no separately configurable daily USD field.
	if budget.BudgetUSDMonthly > 0 {
		dailyCeiling := budget.BudgetUSDMonthly / 30
		if budget.DailyUsageUSD+estimatedCostUSD >= dailyCeiling {
			status.DailyExceeded = true
			status.OK = false
		}
	}
	return status, nil
}

// ListCosts returns every cost log for scope within [since, until), ordered
// by timestamp ascending.
func (b *InMemoryBook) ListCosts(ctx context.Context, scope tenant.Scope, since, until time.Time) ([]CostLog, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var matched []CostLog
	for _, l := range b.logs {
		if l.TenantID != scope.TenantID {
			continue
		}
		if scope.ProjectID != "" && l.ProjectID != scope.ProjectID {
			continue
		}
		if l.Timestamp.Before(since) || !l.Timestamp.Before(until) {
			continue
		}
		matched = append(matched, l)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Timestamp.Before(matched[j].Timestamp) })
	return matched, nil
}

// GetBudget returns tenantID's budget, creating a default unlimited one if
// absent.
func (b *InMemoryBook) GetBudget(ctx context.Context, tenantID string) (*Budget, error) {
	tm := b.lockFor(tenantID)
	tm.Lock()
	defer tm.Unlock()
	return b.resetIfStaleLocked(tenantID, time.Now().UTC()).Clone(), nil
}

// SetLimits configures tenantID's monthly ceilings.
func (b *InMemoryBook) SetLimits(ctx context.Context, tenantID string, budgetUSDMonthly float64, budgetTokensMonthly int64) error {
	if tenantID == "" {
		return raeerr.New(raeerr.KindValidation, "costbook", "set_limits", "tenant_id is required").WithField("tenant_id")
	}
	tm := b.lockFor(tenantID)
	tm.Lock()
	defer tm.Unlock()

	budget := b.resetIfStaleLocked(tenantID, time.Now().UTC())
	budget.BudgetUSDMonthly = budgetUSDMonthly
	budget.BudgetTokensMonthly = budgetTokensMonthly
	return nil
}

// ApplyUsage adds usd/tokens to tenantID's counters, resetting stale
// windows first.
func (b *InMemoryBook) ApplyUsage(ctx context.Context, tenantID string, usd float64, tokens int64, now time.Time) (*Budget, error) {
	tm := b.lockFor(tenantID)
	tm.Lock()
	defer tm.Unlock()
	return b.applyUsageLocked(tenantID, usd, tokens, now)
}

// applyUsageLocked assumes the caller already holds the per-tenant lock.
func (b *InMemoryBook) applyUsageLocked(tenantID string, usd float64, tokens int64, now time.Time) (*Budget, error) {
	budget := b.resetIfStaleLocked(tenantID, now)
	budget.DailyUsageUSD += usd
	budget.MonthlyUsageUSD += usd
	budget.DailyTokensUsed += tokens
	budget.MonthlyTokensUsed += tokens
	return budget.Clone(), nil
}

// resetIfStaleLocked returns tenantID's *live* Budget (not a clone),
// zeroing daily counters if the UTC day rolled over since LastResetAt and
// zeroing monthly counters if the UTC month rolled over, then bumping
// LastResetAt to now. Assumes the per-tenant lock is held and must only be
// accessed under b.mu for map access.
func (b *InMemoryBook) resetIfStaleLocked(tenantID string, now time.Time) *Budget {
	b.mu.Lock()
	budget, ok := b.budgets[tenantID]
	if !ok {
		budget = &Budget{TenantID: tenantID, LastResetAt: now}
		b.budgets[tenantID] = budget
	}
	b.mu.Unlock()

	if !sameUTCDay(budget.LastResetAt, now) {
		budget.DailyUsageUSD = 0
		budget.DailyTokensUsed = 0
	}
	if !sameUTCMonth(budget.LastResetAt, now) {
		budget.MonthlyUsageUSD = 0
		budget.MonthlyTokensUsed = 0
	}
	budget.LastResetAt = now
	return budget
}

func sameUTCDay(a, b time.Time) bool {
	a, b = a.UTC(), b.UTC()
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func sameUTCMonth(a, b time.Time) bool {
	a, b = a.UTC(), b.UTC()
	ay, am, _ := a.Date()
	by, bm, _ := b.Date()
	return ay == by && am == bm
}

// CacheSavings computes cache_hits * avg_cost_per_llm_call_over_same_window,
// using hits reported by the cache layer and the average of every
// non-cache-hit cost log for scope within [since, until).
func CacheSavings(ctx context.Context, repo CostRepository, scope tenant.Scope, since, until time.Time, cacheHits int64) (float64, error) {
	logs, err := repo.ListCosts(ctx, scope, since, until)
	if err != nil {
		return 0, err
	}

	var sum float64
	var count int
	for _, l := range logs {
		if l.Operation == OperationCacheHit {
			continue
		}
		sum += l.TotalCostUSD
		count++
	}
	if count == 0 || cacheHits == 0 {
		return 0, nil
	}
	avgCost := sum / float64(count)
	return avgCost * float64(cacheHits), nil
}
