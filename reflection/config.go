// Package reflection periodically turns clusters of episodic memories into
// reflective memories: the same JSON-schema LLM completion pattern
// extraction uses, persisted by a ticking single-writer sweeper.
package reflection

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Config holds the pipeline's tunable thresholds, all YAML-tagged so a
// deployment can check a reflection.yaml into its config directory and load
// it with LoadConfig instead of wiring DefaultConfig's values directly.
type Config struct {
	// MinEpisodes is the minimum number of unconsolidated episodic
	// memories a (tenant, project) must have for a reflection pass to run.
	MinEpisodes int `yaml:"min_episodes"`

	// MaxMemories bounds how many episodic memories one pass fetches.
	MaxMemories int `yaml:"max_memories"`

	// MinClusterSize is the minimum cluster membership that is worth
	// summarizing into a reflective memory.
	MinClusterSize int `yaml:"min_cluster_size"`

	// MinReflectionsForMeta is how many reflections with overlapping
	// parent sets are needed before a meta-insight is aggregated.
	MinReflectionsForMeta int `yaml:"min_reflections_for_meta"`

	// BucketSize is the map-reduce fan-in for Hierarchical.
	BucketSize int `yaml:"bucket_size"`

	// TimeWindowHours buckets episodic memories into consecutive windows
	// of this size when no density clusterer is registered.
	TimeWindowHours int `yaml:"time_window_hours"`

	// Model is the LLM model used for cluster summarization.
	Model string `yaml:"model"`

	// ReflectionImportance is the initial importance assigned to a new
	// reflective memory.
	ReflectionImportance float64 `yaml:"reflection_importance"`

	// BatchConcurrency bounds how many clusters are summarized in parallel
	// per pass, to bound provider load.
	BatchConcurrency int `yaml:"batch_concurrency"`
}

// DefaultConfig returns the documented default thresholds.
func DefaultConfig() Config {
	return Config{
		MinEpisodes:           20,
		MaxMemories:           100,
		MinClusterSize:        5,
		MinReflectionsForMeta: 5,
		BucketSize:            10,
		TimeWindowHours:       24,
		Model:                 "gpt-4o-mini",
		ReflectionImportance:  0.7,
		BatchConcurrency:      4,
	}
}

// LoadConfig reads a YAML document from r and overlays it onto
// DefaultConfig: fields absent from the document keep their default value
// rather than being zeroed, so an operator's config file only needs to
// specify the thresholds it wants to change.
func LoadConfig(r io.Reader) (Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&cfg); err != nil && err != io.EOF {
		return Config{}, fmt.Errorf("reflection: decode config: %w", err)
	}
	return cfg, nil
}

// ReflectionType classifies the kind of insight an LLM summarization
// produced for a cluster.
type ReflectionType string

const (
	TypeInsight ReflectionType = "insight"
	TypePattern ReflectionType = "pattern"
	TypeSummary ReflectionType = "summary"
)

// Valid reports whether t is one of the known reflection types.
func (t ReflectionType) Valid() bool {
	switch t {
	case TypeInsight, TypePattern, TypeSummary:
		return true
	default:
		return false
	}
}
