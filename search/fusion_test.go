package search

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dreamsoft-pro/rae/memory"
	"github.com/dreamsoft-pro/rae/tenant"
)

func TestStrategyCandidates_Normalize(t *testing.T) {
	c := StrategyCandidates{"a": 0.2, "b": 0.8, "c": 0.5}
	norm := c.Normalize()
	assert.Equal(t, 0.0, norm["a"])
	assert.Equal(t, 1.0, norm["b"])
	assert.InDelta(t, 0.5, norm["c"], 1e-9)
}

func TestStrategyCandidates_Normalize_SingleValue(t *testing.T) {
	c := StrategyCandidates{"a": 0.3}
	norm := c.Normalize()
	assert.Equal(t, 1.0, norm["a"])
}

func TestFuse_TieBreakByImportanceThenCreatedAtThenID(t *testing.T) {
	now := time.Now().UTC()
	scope := tenant.New("t1", "p1")

	older := &memory.Memory{ID: "z", Scope: scope, Importance: 0.5, CreatedAt: now.Add(-time.Hour), LastAccessedAt: now}
	newer := &memory.Memory{ID: "a", Scope: scope, Importance: 0.5, CreatedAt: now, LastAccessedAt: now}

	memories := map[string]*memory.Memory{"z": older, "a": newer}
	strategies := map[Strategy]StrategyCandidates{
		StrategyVector: {"z": 1.0, "a": 1.0},
	}

	fused := Fuse(strategies, Weights{Vector: 1}, memories, now)
	assert.Equal(t, "a", fused[0].Memory.ID, "newer created_at should rank first on a tie")
}

func TestFuse_RespectsWeights(t *testing.T) {
	now := time.Now().UTC()
	scope := tenant.New("t1", "p1")

	m1 := &memory.Memory{ID: "m1", Scope: scope, CreatedAt: now, LastAccessedAt: now}
	m2 := &memory.Memory{ID: "m2", Scope: scope, CreatedAt: now, LastAccessedAt: now}

	memories := map[string]*memory.Memory{"m1": m1, "m2": m2}
	strategies := map[Strategy]StrategyCandidates{
		StrategyVector:   {"m1": 1.0, "m2": 0.0},
		StrategyFullText: {"m1": 0.0, "m2": 1.0},
	}

	fused := Fuse(strategies, Weights{Vector: 1, FullText: 0}, memories, now)
	assert.Equal(t, "m1", fused[0].Memory.ID)
}

func TestRecencyHalfLife(t *testing.T) {
	assert.Equal(t, 30.0, RecencyHalfLife(10))
	assert.Equal(t, 7.0, RecencyHalfLife(45))
	assert.Equal(t, 3.0, RecencyHalfLife(90))
}
