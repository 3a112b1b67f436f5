// Package costbook implements cost-log and budget bookkeeping: a per-call
// cost log, per-tenant daily/monthly budget counters, and the model-pricing
// table the orchestrator consults so cost is always computed by the core
// rather than trusted from the provider. The reference in-memory
// implementation follows the same sync.RWMutex-guarded-map, uuid-ID,
// raeerr-validation shape used elsewhere in this module for the cost/budget
// table family instead of memories or graph entities.
package costbook

import (
	"time"
)

// CostLog is one billed operation: an LLM completion, an embedding call, a
// rerank call, or a zero-cost cache hit recorded for audit symmetry.
type CostLog struct {
	ID           string
	TenantID     string
	ProjectID    string
	Model        string
	Operation    string
	InputTokens  int
	OutputTokens int
	TotalCostUSD float64
	Timestamp    time.Time
}

// Operation names used in CostLog.Operation.
const (
	OperationComplete  = "complete"
	OperationEmbed     = "embed"
	OperationRerank    = "rerank"
	OperationCacheHit  = "cache_hit"
)

// Budget is the live per-tenant spend/usage counters, reset on UTC
// day/month boundaries.
type Budget struct {
	TenantID            string
	BudgetUSDMonthly    float64
	BudgetTokensMonthly int64
	DailyUsageUSD       float64
	MonthlyUsageUSD     float64
	DailyTokensUsed     int64
	MonthlyTokensUsed   int64
	LastResetAt         time.Time
}

// Clone returns a deep copy, safe to hand back across the repository
// boundary.
func (b *Budget) Clone() *Budget {
	if b == nil {
		return nil
	}
	cp := *b
	return &cp
}

// BudgetStatus is the result of a budget precheck.
type BudgetStatus struct {
	OK               bool
	DailyExceeded    bool
	MonthlyExceeded  bool
	Budget           *Budget
}
