package search

import (
	"math"
	"sort"
	"time"

	"github.com/dreamsoft-pro/rae/memory"
)

// Strategy names a retrieval strategy for weighting and diagnostics.
type Strategy string

const (
	StrategyVector   Strategy = "vector"
	StrategyFullText Strategy = "fulltext"
	StrategySemantic Strategy = "semantic"
	StrategyGraph    Strategy = "graph"
)

// StrategyCandidates holds the raw candidate scores one strategy produced
// for one memory ID, before normalization.
type StrategyCandidates map[string]float64 // memory id -> raw score

// Normalize rescales c's scores to [0, 1] by min-max within the set; an
// empty or singleton set maps every score to 1 (nothing to discriminate).
func (c StrategyCandidates) Normalize() map[string]float64 {
	if len(c) == 0 {
		return map[string]float64{}
	}

	min, max := minMax(c)
	out := make(map[string]float64, len(c))
	if max == min {
		for id := range c {
			out[id] = 1
		}
		return out
	}
	for id, score := range c {
		out[id] = (score - min) / (max - min)
	}
	return out
}

func minMax(c StrategyCandidates) (float64, float64) {
	first := true
	var min, max float64
	for _, v := range c {
		if first {
			min, max = v, v
			first = false
			continue
		}
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return min, max
}

// FusionDefaults are the modulation coefficients from the ranking formula:
// final = alpha*fused + beta*importance + gamma*recency.
const (
	FusionAlpha = 0.7
	FusionBeta  = 0.2
	FusionGamma = 0.1
)

// Fused is one memory's score after strategy fusion and importance/recency
// modulation, carrying enough of the source memory to break ties and build
// the final Result.
type Fused struct {
	Memory     *memory.Memory
	FusedScore float64
	Final      float64
}

// RecencyHalfLife picks the half-life for the recency factor based on how
// long the memory has gone without access, per the decay-linked schedule:
// 30 days normally, 7 days after 30 days of no access, 3 days after 60.
func RecencyHalfLife(daysSinceLastAccess float64) float64 {
	switch {
	case daysSinceLastAccess > 60:
		return 3
	case daysSinceLastAccess > 30:
		return 7
	default:
		return 30
	}
}

// Fuse combines per-strategy normalized candidate sets into a single
// ranked, final-scored list. weights need not be pre-normalized. memories
// must contain every ID appearing in any strategy's set. now is the
// reference instant for recency computation.
func Fuse(strategies map[Strategy]StrategyCandidates, weights Weights, memories map[string]*memory.Memory, now time.Time) []Fused {
	w := weights.Normalize()
	normalized := make(map[Strategy]map[string]float64, len(strategies))
	for s, c := range strategies {
		normalized[s] = c.Normalize()
	}

	fusedScores := make(map[string]float64)
	for s, scores := range normalized {
		weight := strategyWeight(w, s)
		for id, score := range scores {
			fusedScores[id] += weight * score
		}
	}

	out := make([]Fused, 0, len(fusedScores))
	for id, fusedScore := range fusedScores {
		m, ok := memories[id]
		if !ok {
			continue
		}
		ageDays := m.Age(now).Hours() / 24
		sinceAccessDays := m.SinceLastAccess(now).Hours() / 24
		halfLife := RecencyHalfLife(sinceAccessDays)
		recency := math.Exp(-ageDays / halfLife)

		final := FusionAlpha*fusedScore + FusionBeta*m.EffectiveImportance() + FusionGamma*recency
		out = append(out, Fused{Memory: m, FusedScore: fusedScore, Final: final})
	}

	sort.Slice(out, func(i, j int) bool {
		return ranksBefore(out[i], out[j])
	})
	return out
}

// ranksBefore implements the fusion tie-break rule: higher final score,
// then higher importance, then newer created_at, then lexicographic id —
// this determinism is load-bearing for tests.
func ranksBefore(a, b Fused) bool {
	if a.Final != b.Final {
		return a.Final > b.Final
	}
	if a.Memory.Importance != b.Memory.Importance {
		return a.Memory.Importance > b.Memory.Importance
	}
	if !a.Memory.CreatedAt.Equal(b.Memory.CreatedAt) {
		return a.Memory.CreatedAt.After(b.Memory.CreatedAt)
	}
	return a.Memory.ID < b.Memory.ID
}

func strategyWeight(w Weights, s Strategy) float64 {
	switch s {
	case StrategyVector:
		return w.Vector
	case StrategySemantic:
		return w.Semantic
	case StrategyGraph:
		return w.Graph
	case StrategyFullText:
		return w.FullText
	default:
		return 0
	}
}
