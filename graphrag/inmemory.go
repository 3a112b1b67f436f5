package graphrag

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dreamsoft-pro/rae/graphrag/id"
	"github.com/dreamsoft-pro/rae/raeerr"
	"github.com/dreamsoft-pro/rae/tenant"
)

// edgeKey identifies an edge uniquely within a scope.
type edgeKey struct {
	scope    tenant.Scope
	source   string
	target   string
	relation string
}

// InMemoryRepository is a sync.RWMutex-guarded reference Repository. It
// enforces node and edge uniqueness and the deterministic neighbor ordering
// the traversal service depends on.
type InMemoryRepository struct {
	mu    sync.RWMutex
	nodes map[string]*Node // internal ID -> node
	edges map[string]*Edge // internal ID -> edge
	byKey map[edgeKey]string
}

// NewInMemoryRepository returns an empty repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		nodes: make(map[string]*Node),
		edges: make(map[string]*Edge),
		byKey: make(map[edgeKey]string),
	}
}

var _ Repository = (*InMemoryRepository)(nil)

func (r *InMemoryRepository) UpsertNode(ctx context.Context, scope tenant.Scope, nodeID, label string, properties map[string]any) (string, error) {
	if err := scope.RequireProject(); err != nil {
		return "", raeerr.New(raeerr.KindValidation, "graphrag", "upsert_node", err.Error())
	}
	canonical := id.Normalize(nodeID)
	internalID := id.Generate(scope.TenantID, scope.ProjectID, canonical)

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.nodes[internalID]; ok {
		existing.Label = label
		existing.Properties = mergeProperties(existing.Properties, properties)
		return internalID, nil
	}

	node := &Node{
		ID:         internalID,
		Scope:      scope,
		NodeID:     canonical,
		Label:      label,
		Properties: cloneProps(properties),
		CreatedAt:  time.Now().UTC(),
	}
	r.nodes[internalID] = node
	return internalID, nil
}

func (r *InMemoryRepository) InsertEdge(ctx context.Context, scope tenant.Scope, sourceInternalID, targetInternalID, relation string, properties map[string]any) (bool, error) {
	key := edgeKey{scope: scope, source: sourceInternalID, target: targetInternalID, relation: relation}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existingID, ok := r.byKey[key]; ok {
		existing := r.edges[existingID]
		existing.Properties = bumpObservationCount(existing.Properties)
		return false, nil
	}

	if _, ok := r.nodes[sourceInternalID]; !ok {
		return false, raeerr.New(raeerr.KindValidation, "graphrag", "insert_edge", "source node does not exist")
	}
	if _, ok := r.nodes[targetInternalID]; !ok {
		return false, raeerr.New(raeerr.KindValidation, "graphrag", "insert_edge", "target node does not exist")
	}

	edgeID := id.Generate(scope.TenantID, scope.ProjectID, sourceInternalID+"->"+relation+"->"+targetInternalID)
	edge := &Edge{
		ID:           edgeID,
		Scope:        scope,
		SourceNodeID: sourceInternalID,
		TargetNodeID: targetInternalID,
		Relation:     relation,
		Properties:   cloneProps(properties),
		CreatedAt:    time.Now().UTC(),
	}
	r.edges[edgeID] = edge
	r.byKey[key] = edgeID
	return true, nil
}

func (r *InMemoryRepository) GetNodeByNodeID(ctx context.Context, scope tenant.Scope, nodeID string) (*Node, error) {
	canonical := id.Normalize(nodeID)
	internalID := id.Generate(scope.TenantID, scope.ProjectID, canonical)
	return r.GetNodeByInternalID(ctx, scope, internalID)
}

func (r *InMemoryRepository) GetNodeByInternalID(ctx context.Context, scope tenant.Scope, internalID string) (*Node, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n, ok := r.nodes[internalID]
	if !ok || !scope.Contains(n.Scope) {
		return nil, raeerr.New(raeerr.KindNotFound, "graphrag", "get_node", "node not found")
	}
	return cloneNode(n), nil
}

func (r *InMemoryRepository) ListNodes(ctx context.Context, scope tenant.Scope, filters NodeFilters, limit int) ([]*Node, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []*Node
	for _, n := range r.nodes {
		if !scope.Contains(n.Scope) {
			continue
		}
		if filters.MinPageRankScore != nil && n.PageRankScore() < *filters.MinPageRankScore {
			continue
		}
		matched = append(matched, n)
	}

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].NodeID < matched[j].NodeID
		}
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})

	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return cloneNodes(matched), nil
}

func (r *InMemoryRepository) ListEdges(ctx context.Context, scope tenant.Scope, filters EdgeFilters, limit int) ([]*Edge, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []*Edge
	for _, e := range r.edges {
		if !scope.Contains(e.Scope) {
			continue
		}
		if filters.Relation != "" && e.Relation != filters.Relation {
			continue
		}
		matched = append(matched, e)
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})

	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return cloneEdges(matched), nil
}

func (r *InMemoryRepository) Neighbors(ctx context.Context, scope tenant.Scope, internalID string, direction Direction, relationFilter string, limit int) ([]Neighbor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Neighbor
	for _, e := range r.edges {
		if !scope.Contains(e.Scope) {
			continue
		}
		if relationFilter != "" && e.Relation != relationFilter {
			continue
		}

		var neighborID string
		switch direction {
		case DirectionOut:
			if e.SourceNodeID != internalID {
				continue
			}
			neighborID = e.TargetNodeID
		case DirectionIn:
			if e.TargetNodeID != internalID {
				continue
			}
			neighborID = e.SourceNodeID
		default: // both
			switch internalID {
			case e.SourceNodeID:
				neighborID = e.TargetNodeID
			case e.TargetNodeID:
				neighborID = e.SourceNodeID
			default:
				continue
			}
		}

		node, ok := r.nodes[neighborID]
		if !ok {
			continue
		}
		out = append(out, Neighbor{Edge: cloneEdge(e), Node: cloneNode(node)})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Node.Label != out[j].Node.Label {
			return out[i].Node.Label < out[j].Node.Label
		}
		if out[i].Edge.Relation != out[j].Edge.Relation {
			return out[i].Edge.Relation < out[j].Edge.Relation
		}
		return out[i].Edge.CreatedAt.Before(out[j].Edge.CreatedAt)
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *InMemoryRepository) Stats(ctx context.Context, scope tenant.Scope) (Stats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := Stats{RelationCounts: make(map[string]int)}
	degree := make(map[string]int)

	for _, n := range r.nodes {
		if scope.Contains(n.Scope) {
			stats.NodeCount++
		}
	}
	for _, e := range r.edges {
		if !scope.Contains(e.Scope) {
			continue
		}
		stats.EdgeCount++
		stats.RelationCounts[e.Relation]++
		degree[e.SourceNodeID]++
		degree[e.TargetNodeID]++
	}

	if stats.NodeCount > 0 {
		total := 0
		for _, d := range degree {
			total += d
		}
		stats.AvgDegree = float64(total) / float64(stats.NodeCount)
	}
	return stats, nil
}

func mergeProperties(existing, incoming map[string]any) map[string]any {
	if existing == nil {
		return cloneProps(incoming)
	}
	for k, v := range incoming {
		if existingList, ok := existing[k].([]string); ok {
			if incomingList, ok := v.([]string); ok {
				existing[k] = unionStrings(existingList, incomingList)
				continue
			}
		}
		existing[k] = v
	}
	return existing
}

func unionStrings(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	var out []string
	for _, s := range append(append([]string{}, a...), b...) {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func bumpObservationCount(props map[string]any) map[string]any {
	if props == nil {
		props = make(map[string]any)
	}
	count := 1
	switch v := props["observation_count"].(type) {
	case int:
		count = v
	case float64:
		count = int(v)
	}
	props["observation_count"] = count + 1
	return props
}

func cloneProps(p map[string]any) map[string]any {
	if p == nil {
		return nil
	}
	out := make(map[string]any, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

func cloneNode(n *Node) *Node {
	clone := *n
	clone.Properties = cloneProps(n.Properties)
	return &clone
}

func cloneNodes(ns []*Node) []*Node {
	out := make([]*Node, len(ns))
	for i, n := range ns {
		out[i] = cloneNode(n)
	}
	return out
}

func cloneEdge(e *Edge) *Edge {
	clone := *e
	clone.Properties = cloneProps(e.Properties)
	return &clone
}

func cloneEdges(es []*Edge) []*Edge {
	out := make([]*Edge, len(es))
	for i, e := range es {
		out[i] = cloneEdge(e)
	}
	return out
}
