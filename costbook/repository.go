package costbook

import (
	"context"
	"time"

	"github.com/dreamsoft-pro/rae/tenant"
)

// CostRepository persists cost logs and answers budget-precheck queries.
// Hides all query construction, mirroring MemoryRepository/GraphRepository.
type CostRepository interface {
	// RecordCost appends a cost log entry and atomically updates the
	// tenant's budget counters (both USD and tokens) within one
	// transaction, so the orchestrator's cost write can never leave the
	// log and the counters out of sync.
	RecordCost(ctx context.Context, log CostLog) error

	// CheckBudget reports whether scope.TenantID would still be within its
	// daily and monthly limits after a pending call estimated to cost
	// estimatedCostUSD, performing a UTC boundary reset first if the stored
	// counters are stale. The estimate is projected onto the live usage
	// counters rather than compared in isolation, so a tenant whose
	// remaining headroom is smaller than the pending call is rejected
	// before that call ever reaches the provider.
	CheckBudget(ctx context.Context, scope tenant.Scope, estimatedCostUSD float64) (BudgetStatus, error)

	// ListCosts returns cost logs for scope within [since, until), ordered
	// by timestamp ascending, used for governance aggregates and
	// CacheSavings' average-cost-per-call window.
	ListCosts(ctx context.Context, scope tenant.Scope, since, until time.Time) ([]CostLog, error)
}

// BudgetRepository manages the budget ceiling and live usage counters for
// a tenant, separate from CostRepository so a deployment can back the
// (append-mostly) cost log and the (frequently-read, per-tenant-locked)
// budget counters with different storage if needed.
type BudgetRepository interface {
	// GetBudget returns the tenant's budget, creating a zero-usage default
	// (no ceiling — unlimited) if none has been configured yet.
	GetBudget(ctx context.Context, tenantID string) (*Budget, error)

	// SetLimits configures the monthly USD and token ceilings for a
	// tenant. A zero value means unlimited for that dimension.
	SetLimits(ctx context.Context, tenantID string, budgetUSDMonthly float64, budgetTokensMonthly int64) error

	// ApplyUsage adds usd/tokens to the tenant's daily and monthly
	// counters, resetting either counter first if its UTC day or month has
	// rolled over. Returns the budget after the update.
	ApplyUsage(ctx context.Context, tenantID string, usd float64, tokens int64, now time.Time) (*Budget, error)
}
