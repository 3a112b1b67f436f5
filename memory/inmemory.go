package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dreamsoft-pro/rae/raeerr"
	"github.com/dreamsoft-pro/rae/tenant"
)

// InMemoryRepository is a sync.RWMutex-guarded reference Repository that
// serves as the default backing store. It enforces every invariant a
// relational implementation would: tenant isolation, atomic usage-count
// increments, and importance clamping.
type InMemoryRepository struct {
	mu       sync.RWMutex
	memories map[string]*Memory
	decayLog []DecayLogEntry
}

// NewInMemoryRepository returns an empty repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		memories: make(map[string]*Memory),
	}
}

var _ Repository = (*InMemoryRepository)(nil)

func (r *InMemoryRepository) Create(ctx context.Context, m *Memory) (string, error) {
	if err := m.Scope.RequireProject(); err != nil {
		return "", raeerr.New(raeerr.KindValidation, "memory", "create", err.Error()).WithField("scope")
	}
	if !m.Layer.Valid() {
		return "", raeerr.New(raeerr.KindValidation, "memory", "create", "invalid layer").WithField("layer")
	}
	if m.Importance < 0 || m.Importance > 1 {
		return "", raeerr.New(raeerr.KindValidation, "memory", "create", "importance out of range").WithField("importance")
	}
	if !m.ConsolidationStatus.Valid() {
		m.ConsolidationStatus = StatusRaw
	}

	clone := m.Clone()
	if clone.ID == "" {
		clone.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	clone.CreatedAt = now
	clone.LastAccessedAt = now
	clone.UsageCount = 0

	r.mu.Lock()
	r.memories[clone.ID] = clone
	r.mu.Unlock()

	return clone.ID, nil
}

func (r *InMemoryRepository) Get(ctx context.Context, id string, scope tenant.Scope) (*Memory, error) {
	r.mu.RLock()
	m, ok := r.memories[id]
	r.mu.RUnlock()

	if !ok || !scope.Contains(m.Scope) {
		return nil, raeerr.New(raeerr.KindNotFound, "memory", "get", "memory not found")
	}
	return m.Clone(), nil
}

func (r *InMemoryRepository) Delete(ctx context.Context, id string, scope tenant.Scope) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.memories[id]
	if !ok || !scope.Contains(m.Scope) {
		return false, nil
	}
	delete(r.memories, id)
	return true, nil
}

func (r *InMemoryRepository) UpdateImportance(ctx context.Context, id string, scope tenant.Scope, newImportance float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.memories[id]
	if !ok || !scope.Contains(m.Scope) {
		return raeerr.New(raeerr.KindNotFound, "memory", "update_importance", "memory not found")
	}

	clamped := Clamp01(newImportance)
	r.decayLog = append(r.decayLog, DecayLogEntry{
		MemoryID:      id,
		PreviousValue: m.Importance,
		NewValue:      clamped,
		RecordedAt:    time.Now().UTC(),
	})
	m.Importance = clamped
	return nil
}

func (r *InMemoryRepository) RecordAccess(ctx context.Context, ids []string, scope tenant.Scope, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range ids {
		m, ok := r.memories[id]
		if !ok || !scope.Contains(m.Scope) {
			continue
		}
		m.UsageCount++
		m.LastAccessedAt = now
	}
	return nil
}

func (r *InMemoryRepository) UpdateConsolidationStatus(ctx context.Context, id string, scope tenant.Scope, status ConsolidationStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.memories[id]
	if !ok || !scope.Contains(m.Scope) {
		return raeerr.New(raeerr.KindNotFound, "memory", "update_consolidation_status", "memory not found")
	}
	m.ConsolidationStatus = status
	return nil
}

func (r *InMemoryRepository) ListByLayer(ctx context.Context, scope tenant.Scope, layer Layer, filters ListFilters, limit, offset int) ([]*Memory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []*Memory
	for _, m := range r.memories {
		if !scope.Contains(m.Scope) || m.Layer != layer {
			continue
		}
		if !matchesFilters(m, filters) {
			continue
		}
		matched = append(matched, m)
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})

	return paginate(matched, limit, offset), nil
}

func (r *InMemoryRepository) FindUnconsolidatedEpisodes(ctx context.Context, scope tenant.Scope, since time.Time, limit int) ([]*Memory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []*Memory
	for _, m := range r.memories {
		if !scope.Contains(m.Scope) {
			continue
		}
		if m.Layer != LayerEpisodic || m.ConsolidationStatus != StatusRaw {
			continue
		}
		if m.CreatedAt.Before(since) {
			continue
		}
		matched = append(matched, m)
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})

	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return cloneAll(matched), nil
}

// SearchFullText scores memories by the fraction of query terms found in
// their content, a naive keyword overlap scorer standing in for a
// relational engine's full-text index.
func (r *InMemoryRepository) SearchFullText(ctx context.Context, scope tenant.Scope, queryText string, limit int) ([]*Memory, error) {
	terms := tokenize(queryText)
	if len(terms) == 0 {
		return nil, nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	type scored struct {
		m     *Memory
		score float64
	}
	var matches []scored
	for _, m := range r.memories {
		if !scope.Contains(m.Scope) {
			continue
		}
		score := termOverlapScore(terms, tokenize(m.Content))
		if score > 0 {
			matches = append(matches, scored{m: m, score: score})
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].score != matches[j].score {
			return matches[i].score > matches[j].score
		}
		return matches[i].m.CreatedAt.Before(matches[j].m.CreatedAt)
	})

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	out := make([]*Memory, len(matches))
	for i, s := range matches {
		out[i] = s.m.Clone()
	}
	return out, nil
}

func tokenize(text string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(text))
	out := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,;:!?\"'()[]{}")
		if f != "" {
			out[f] = struct{}{}
		}
	}
	return out
}

// termOverlapScore is |queryTerms ∩ contentTerms| / |queryTerms|.
func termOverlapScore(queryTerms, contentTerms map[string]struct{}) float64 {
	if len(queryTerms) == 0 {
		return 0
	}
	hits := 0
	for t := range queryTerms {
		if _, ok := contentTerms[t]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(queryTerms))
}

func matchesFilters(m *Memory, f ListFilters) bool {
	if f.Source != "" && m.Source != f.Source {
		return false
	}
	if len(f.Tags) == 0 {
		return true
	}
	want := make(map[string]struct{}, len(f.Tags))
	for _, t := range f.Tags {
		want[t] = struct{}{}
	}
	have := make(map[string]struct{}, len(m.Tags))
	for _, t := range m.Tags {
		have[t] = struct{}{}
	}
	for t := range want {
		if _, ok := have[t]; !ok {
			return false
		}
	}
	return true
}

func paginate(all []*Memory, limit, offset int) []*Memory {
	if offset > len(all) {
		return cloneAll(nil)
	}
	all = all[offset:]
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return cloneAll(all)
}

func cloneAll(ms []*Memory) []*Memory {
	out := make([]*Memory, len(ms))
	for i, m := range ms {
		out[i] = m.Clone()
	}
	return out
}
