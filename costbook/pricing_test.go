package costbook

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPricingTable_KnownModel(t *testing.T) {
	table := NewPricingTable()
	cost := table.ComputeCost("gpt-4o", 1_000_000, 1_000_000)
	assert.InDelta(t, 2.50+10.00, cost, 1e-9)
}

func TestPricingTable_UnknownModelFallsBackNonZero(t *testing.T) {
	table := NewPricingTable()
	cost := table.ComputeCost("some-unseen-model", 1000, 1000)
	assert.Greater(t, cost, 0.0)
}

func TestPricingTable_ZeroTokensZeroCost(t *testing.T) {
	table := NewPricingTable()
	cost := table.ComputeCost("gpt-4o", 0, 0)
	assert.Zero(t, cost)
}

func TestPricingTable_SetOverridesPrice(t *testing.T) {
	table := NewPricingTable()
	table.Set("custom-model", PricePerMillionTokens{Input: 10, Output: 20})
	cost := table.ComputeCost("custom-model", 1_000_000, 1_000_000)
	assert.InDelta(t, 30.0, cost, 1e-9)
}
