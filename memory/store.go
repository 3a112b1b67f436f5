package memory

import (
	"context"
	"time"

	"github.com/dreamsoft-pro/rae/tenant"
)

// Repository is the durable CRUD surface over memories plus the
// access-stats update path. Implementations hide all query construction and
// must never return a row whose Scope.TenantID differs from the scope a
// call was issued with.
type Repository interface {
	// Create persists a new memory, assigning ID if absent, setting
	// CreatedAt and LastAccessedAt to now, and UsageCount=0. Returns a raeerr KindValidation error when importance is
	// out of range, layer is invalid, or the scope lacks a tenant/project.
	Create(ctx context.Context, m *Memory) (string, error)

	// Get returns the memory only if owned by scope.TenantID (and, when
	// scope.ProjectID is set, that project too); otherwise a raeerr
	// KindNotFound error — existence is never leaked across tenants.
	Get(ctx context.Context, id string, scope tenant.Scope) (*Memory, error)

	// Delete is idempotent: deleting a missing id returns (false, nil).
	Delete(ctx context.Context, id string, scope tenant.Scope) (bool, error)

	// UpdateImportance clamps newImportance into [0,1] and records the
	// previous value in the decay audit log.
	UpdateImportance(ctx context.Context, id string, scope tenant.Scope, newImportance float64) error

	// RecordAccess sets LastAccessedAt=now and increments UsageCount by
	// exactly one for each id, in a single batch. Idempotent per call (not
	// across calls): calling it twice increments twice.
	RecordAccess(ctx context.Context, ids []string, scope tenant.Scope, now time.Time) error

	// ListByLayer lists memories for (tenant, project) in the given layer.
	ListByLayer(ctx context.Context, scope tenant.Scope, layer Layer, filters ListFilters, limit, offset int) ([]*Memory, error)

	// FindUnconsolidatedEpisodes returns episodic memories with
	// ConsolidationStatus=raw created at or after since, oldest first.
	FindUnconsolidatedEpisodes(ctx context.Context, scope tenant.Scope, since time.Time, limit int) ([]*Memory, error)

	// UpdateConsolidationStatus transitions a memory's lifecycle marker —
	// the decay worker's single-writer path to "archived", and the
	// reflection worker's single-writer path to "consolidated" for the
	// batch it processes.
	UpdateConsolidationStatus(ctx context.Context, id string, scope tenant.Scope, status ConsolidationStatus) error

	// SearchFullText ranks memories in scope by lexical term overlap with
	// queryText, highest score first; ties break oldest-first. A query with
	// no recognized terms returns an empty slice, never an error.
	SearchFullText(ctx context.Context, scope tenant.Scope, queryText string, limit int) ([]*Memory, error)
}

// DecayLogEntry records a prior importance value, for decay auditing.
type DecayLogEntry struct {
	MemoryID      string    `json:"memory_id"`
	PreviousValue float64   `json:"previous_value"`
	NewValue      float64   `json:"new_value"`
	RecordedAt    time.Time `json:"recorded_at"`
}
