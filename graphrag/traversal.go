package graphrag

import (
	"context"

	"github.com/dreamsoft-pro/rae/tenant"
)

// MaxGraphDepth is the hard cap on BFS expansion; a requested depth above
// this is clamped, and the caller should surface a warning in metadata.
const MaxGraphDepth = 5

// DefaultGraphDepth is used when the caller does not specify one.
const DefaultGraphDepth = 2

// ClampDepth enforces [1, MaxGraphDepth], reporting whether clamping
// occurred so the caller can emit the metadata warning the contract
// requires.
func ClampDepth(depth int) (clamped int, wasClamped bool) {
	if depth <= 0 {
		return DefaultGraphDepth, false
	}
	if depth > MaxGraphDepth {
		return MaxGraphDepth, true
	}
	return depth, false
}

// TraversalResult is the outcome of a BFS expansion from a set of seed
// nodes: every node visited, keyed by internal ID, and the memory IDs
// attached to them via properties.source_memory_ids.
type TraversalResult struct {
	VisitedNodes map[string]*Node
	MemoryIDs    []string
}

// BFS expands outward from seedInternalIDs up to depth hops, following
// edges in direction and optionally restricted to one relation, collecting
// every visited node and the memory IDs referenced by their
// source_memory_ids property — the GraphRAG mapping step that turns a
// vector-search seed set into a memory neighborhood.
func BFS(ctx context.Context, repo Repository, scope tenant.Scope, seedInternalIDs []string, depth int, direction Direction, relationFilter string) (*TraversalResult, error) {
	depth, _ = ClampDepth(depth)

	visited := make(map[string]*Node)
	frontier := make([]string, 0, len(seedInternalIDs))

	for _, id := range seedInternalIDs {
		node, err := repo.GetNodeByInternalID(ctx, scope, id)
		if err != nil {
			continue // seed not found or not in scope; skip, don't fail the whole traversal
		}
		if _, ok := visited[id]; !ok {
			visited[id] = node
			frontier = append(frontier, id)
		}
	}

	for hop := 0; hop < depth && len(frontier) > 0; hop++ {
		var next []string
		for _, id := range frontier {
			neighbors, err := repo.Neighbors(ctx, scope, id, direction, relationFilter, 0)
			if err != nil {
				return nil, err
			}
			for _, n := range neighbors {
				if _, ok := visited[n.Node.ID]; ok {
					continue
				}
				visited[n.Node.ID] = n.Node
				next = append(next, n.Node.ID)
			}
		}
		frontier = next
	}

	memorySet := make(map[string]struct{})
	for _, node := range visited {
		for _, id := range node.SourceMemoryIDs() {
			memorySet[id] = struct{}{}
		}
	}
	memoryIDs := make([]string, 0, len(memorySet))
	for id := range memorySet {
		memoryIDs = append(memoryIDs, id)
	}

	return &TraversalResult{VisitedNodes: visited, MemoryIDs: memoryIDs}, nil
}

// NodesReferencingMemory finds every node in scope whose
// source_memory_ids includes memoryID — the reverse lookup used to turn a
// vector-search seed memory into graph-traversal seed nodes.
func NodesReferencingMemory(ctx context.Context, repo Repository, scope tenant.Scope, memoryID string) ([]*Node, error) {
	nodes, err := repo.ListNodes(ctx, scope, NodeFilters{}, 0)
	if err != nil {
		return nil, err
	}
	var out []*Node
	for _, n := range nodes {
		for _, id := range n.SourceMemoryIDs() {
			if id == memoryID {
				out = append(out, n)
				break
			}
		}
	}
	return out, nil
}
