// Package memory defines the tenant/project-scoped memory record and the
// repository that persists it: a layered episodic/semantic/reflective
// store, each entry pairing immutable content with mutable access and
// importance metadata.
package memory

import (
	"time"

	"github.com/dreamsoft-pro/rae/tenant"
)

// Layer classifies a Memory by its place in the episodic → semantic →
// reflective lifecycle.
type Layer string

const (
	LayerEpisodic   Layer = "episodic"
	LayerSemantic   Layer = "semantic"
	LayerReflective Layer = "reflective"
)

// Valid reports whether l is one of the known layers.
func (l Layer) Valid() bool {
	switch l {
	case LayerEpisodic, LayerSemantic, LayerReflective:
		return true
	default:
		return false
	}
}

// ConsolidationStatus tracks a memory's position in the reflection/archival
// lifecycle.
type ConsolidationStatus string

const (
	StatusRaw          ConsolidationStatus = "raw"
	StatusConsolidated ConsolidationStatus = "consolidated"
	StatusArchived      ConsolidationStatus = "archived"
)

// Valid reports whether s is one of the known statuses.
func (s ConsolidationStatus) Valid() bool {
	switch s {
	case StatusRaw, StatusConsolidated, StatusArchived:
		return true
	default:
		return false
	}
}

// Memory is an immutable-content, mutable-metadata record representing one
// unit of stored knowledge. Content, Source and Tags never change after
// creation; Importance, access stats and ConsolidationStatus do.
type Memory struct {
	ID    string       `json:"id"`
	Scope tenant.Scope `json:"scope"`

	Layer   Layer    `json:"layer"`
	Content string   `json:"content"`
	Source  string   `json:"source,omitempty"`
	Tags    []string `json:"tags,omitempty"`

	Importance              float64  `json:"importance"`
	UserImportanceOverride  *float64 `json:"user_importance_override,omitempty"`
	EmbeddingRef            string   `json:"embedding_ref,omitempty"`

	CreatedAt      time.Time `json:"created_at"`
	LastAccessedAt time.Time `json:"last_accessed_at"`
	UsageCount     int64     `json:"usage_count"`

	ConsolidationStatus ConsolidationStatus `json:"consolidation_status"`

	// ParentIDs holds, for reflective memories, the IDs of the memories they
	// summarize. Always empty for episodic/semantic memories.
	ParentIDs []string `json:"parent_ids,omitempty"`
}

// Clone returns a deep copy so callers can mutate a result without
// aliasing repository-owned state.
func (m *Memory) Clone() *Memory {
	clone := *m
	if m.Tags != nil {
		clone.Tags = append([]string(nil), m.Tags...)
	}
	if m.ParentIDs != nil {
		clone.ParentIDs = append([]string(nil), m.ParentIDs...)
	}
	if m.UserImportanceOverride != nil {
		v := *m.UserImportanceOverride
		clone.UserImportanceOverride = &v
	}
	return &clone
}

// Age returns the duration since CreatedAt as of t.
func (m *Memory) Age(t time.Time) time.Duration {
	return t.Sub(m.CreatedAt)
}

// SinceLastAccess returns the duration since LastAccessedAt as of t.
func (m *Memory) SinceLastAccess(t time.Time) time.Duration {
	return t.Sub(m.LastAccessedAt)
}

// EffectiveImportance returns UserImportanceOverride when set, else
// Importance — the value retrieval and decay should treat as authoritative.
func (m *Memory) EffectiveImportance() float64 {
	if m.UserImportanceOverride != nil {
		return *m.UserImportanceOverride
	}
	return m.Importance
}

// Result pairs a Memory with its retrieval score.
type Result struct {
	Memory
	Score float64 `json:"score"`
}

// ListFilters narrows ListByLayer queries.
type ListFilters struct {
	Tags   []string
	Source string
}

// Clamp01 clamps v into [0, 1], used everywhere importance is written.
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
