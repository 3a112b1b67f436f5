// Package capability is a name → implementation registry for ML-backed
// components that may or may not be available in a given deployment: a
// capability name resolved to a registered instance, the in-process
// equivalent of a service-discovery lookup. Callers consult the registry by
// capability name and fall back to a rule-based substitute when nothing is
// registered — never by checking whether a library happened to be
// importable, since Go has no optional-import mechanism to branch on.
package capability

import "sync"

// Well-known capability names referenced by reflection and search. A
// deployment that links a real ML library registers an implementation
// under one of these names at startup; none are registered by default, so
// every capability-gated code path runs its documented fallback unless a
// caller registers one.
const (
	// ClusterDensity names a density-based clustering implementation over
	// memory embeddings, consulted by reflection.Pipeline. Unregistered by
	// default: reflection falls back to 24h time-window bucketing.
	ClusterDensity = "cluster.density"

	// NodeSemanticEmbedding names an alternate embedding strategy for graph
	// node labels. No code in this module looks it up: search's
	// semantic-node strategy always embeds labels with the same
	// llm.EmbeddingProvider used everywhere else.
	NodeSemanticEmbedding = "node.semantic_embedding"
)

// Registry maps a capability name to an arbitrary implementation value,
// safe for concurrent registration and lookup.
type Registry struct {
	mu    sync.RWMutex
	impls map[string]any
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{impls: make(map[string]any)}
}

// Register binds name to impl, replacing any prior registration.
func (r *Registry) Register(name string, impl any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.impls[name] = impl
}

// Unregister removes any binding for name.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.impls, name)
}

// Get returns the implementation registered under name, if any.
func (r *Registry) Get(name string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.impls[name]
	return v, ok
}

// Names returns every currently registered capability name.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.impls))
	for name := range r.impls {
		out = append(out, name)
	}
	return out
}

// Lookup retrieves the implementation registered under name and asserts it
// to T, returning ok=false both when nothing is registered and when the
// registered value is not a T — either way the caller should fall back.
func Lookup[T any](r *Registry, name string) (T, bool) {
	var zero T
	if r == nil {
		return zero, false
	}
	v, ok := r.Get(name)
	if !ok {
		return zero, false
	}
	typed, ok := v.(T)
	if !ok {
		return zero, false
	}
	return typed, true
}
