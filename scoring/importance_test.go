package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestImportance_Bounds(t *testing.T) {
	w := DefaultImportanceWeights()

	fresh := Importance(Factors{AgeDays: 0, UsageCount: 100, GraphCentrality: 1, SemanticRelevance: 1, Consolidated: true}, w)
	assert.InDelta(t, 0.95, fresh, 0.001)

	stale := Importance(Factors{AgeDays: 3650, UsageCount: 0}, w)
	assert.Greater(t, stale, 0.0)
	assert.Less(t, stale, 0.6)
}

func TestImportance_UserOverrideDefault(t *testing.T) {
	w := DefaultImportanceWeights()
	override := 0.9

	withOverride := Importance(Factors{UserImportanceOverride: &override}, w)
	withoutOverride := Importance(Factors{}, w)
	assert.Greater(t, withOverride, withoutOverride)
}

func TestDecaySchedule(t *testing.T) {
	day := 24 * time.Hour
	assert.Equal(t, 1.0, DecaySchedule(0))
	assert.Equal(t, 1.0, DecaySchedule(7*day))
	assert.Equal(t, 0.995, DecaySchedule(10*day))
	assert.Equal(t, 0.99, DecaySchedule(45*day))
	assert.Equal(t, 0.98, DecaySchedule(90*day))
}
