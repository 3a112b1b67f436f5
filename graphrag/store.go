package graphrag

import (
	"context"

	"github.com/dreamsoft-pro/rae/tenant"
)

// Repository owns nodes, edges, traversal primitives, and statistics, and
// enforces the (tenant, project, node_id) and edge-tuple uniqueness
// invariants. Services own no graph storage logic beyond calling this
// interface.
type Repository interface {
	// UpsertNode inserts a node or returns the existing internal ID when
	// (scope, nodeID) already exists. On an existing node, scalar
	// properties are replaced and list-valued properties are union-merged.
	UpsertNode(ctx context.Context, scope tenant.Scope, nodeID, label string, properties map[string]any) (string, error)

	// InsertEdge returns true on first insert. On a uniqueness conflict —
	// same (scope, sourceInternalID, targetInternalID, relation) — it
	// returns false and bumps properties["observation_count"] on the
	// existing edge.
	InsertEdge(ctx context.Context, scope tenant.Scope, sourceInternalID, targetInternalID, relation string, properties map[string]any) (bool, error)

	GetNodeByNodeID(ctx context.Context, scope tenant.Scope, nodeID string) (*Node, error)
	GetNodeByInternalID(ctx context.Context, scope tenant.Scope, internalID string) (*Node, error)

	// ListNodes supports filtering by a minimum PageRank score.
	ListNodes(ctx context.Context, scope tenant.Scope, filters NodeFilters, limit int) ([]*Node, error)

	// ListEdges supports filtering by relation.
	ListEdges(ctx context.Context, scope tenant.Scope, filters EdgeFilters, limit int) ([]*Edge, error)

	// Neighbors returns (edge, node) pairs reachable from internalID in the
	// given direction, optionally filtered to one relation, ordered
	// (target_label ASC, relation ASC, created_at ASC) for determinism.
	Neighbors(ctx context.Context, scope tenant.Scope, internalID string, direction Direction, relationFilter string, limit int) ([]Neighbor, error)

	Stats(ctx context.Context, scope tenant.Scope) (Stats, error)
}
