package health

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCombine_NoChecks(t *testing.T) {
	result := Combine(nil)
	assert.True(t, result.IsHealthy())
}

func TestCombine_AllHealthy(t *testing.T) {
	result := Combine(map[string]CheckResult{
		"memory": Healthy("ok"),
		"graph":  Healthy("ok"),
	})
	assert.True(t, result.IsHealthy())
}

func TestCombine_DegradedWinsOverHealthy(t *testing.T) {
	result := Combine(map[string]CheckResult{
		"memory": Healthy("ok"),
		"cache":  Degraded("slow", nil),
	})
	assert.True(t, result.IsDegraded())
}

func TestCombine_UnhealthyWinsOverDegraded(t *testing.T) {
	result := Combine(map[string]CheckResult{
		"memory": Degraded("slow", nil),
		"vector": Unhealthy("down", map[string]any{"error": "timeout"}),
	})
	assert.True(t, result.IsUnhealthy())
}
