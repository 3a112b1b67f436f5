// Package search implements the hybrid retrieval pipeline: query analysis,
// per-strategy candidate retrieval, score fusion, optional reranking, and
// context synthesis. The LLM-backed query analyzer falls back to a
// deterministic rule-based analyzer when the LLM call or its output fails;
// the rule-based analyzer uses google/cel-go for its lexical rule table
// instead of a hard-coded if/else ladder. The package does not consult the
// capability registry.
package search

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/cel-go/cel"

	"github.com/dreamsoft-pro/rae/llm"
)

// Intent classifies what kind of answer a query is looking for.
type Intent string

const (
	IntentFactual      Intent = "factual"
	IntentConceptual   Intent = "conceptual"
	IntentNavigational Intent = "navigational"
	IntentProcedural   Intent = "procedural"
	IntentExploratory  Intent = "exploratory"
	IntentRelational   Intent = "relational"
)

// Weights is a distribution over retrieval strategies; Sum must equal 1.
type Weights struct {
	Vector   float64 `json:"vector"`
	Semantic float64 `json:"semantic"`
	Graph    float64 `json:"graph"`
	FullText float64 `json:"fulltext"`
}

// Normalize rescales w so its components sum to 1, a no-op when they
// already do.
func (w Weights) Normalize() Weights {
	total := w.Vector + w.Semantic + w.Graph + w.FullText
	if total == 0 {
		return Weights{Vector: 1}
	}
	return Weights{
		Vector:   w.Vector / total,
		Semantic: w.Semantic / total,
		Graph:    w.Graph / total,
		FullText: w.FullText / total,
	}
}

// Analysis is the QueryAnalyzer's output.
type Analysis struct {
	Intent     Intent  `json:"intent"`
	Confidence float64 `json:"confidence"`
	Weights    Weights `json:"weights"`
}

// WeightProfiles are the named presets a caller may request directly,
// skipping the analyzer entirely.
var WeightProfiles = map[string]Weights{
	"balanced":      {Vector: 0.4, Semantic: 0.2, Graph: 0.2, FullText: 0.2},
	"quality":       {Vector: 0.3, Semantic: 0.3, Graph: 0.3, FullText: 0.1},
	"speed":         {Vector: 0.7, Semantic: 0.0, Graph: 0.0, FullText: 0.3},
	"comprehensive": {Vector: 0.25, Semantic: 0.25, Graph: 0.25, FullText: 0.25},
	"exploratory":   {Vector: 0.2, Semantic: 0.3, Graph: 0.4, FullText: 0.1},
}

// QueryAnalyzer classifies a query and produces a strategy weight vector.
type QueryAnalyzer interface {
	Analyze(ctx context.Context, queryText string, conversationHistory []string) (Analysis, error)
}

// analysisSchema is the JSON schema the LLM-backed analyzer requires the
// model's structured output to conform to.
var analysisSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"intent":     map[string]any{"type": "string"},
		"confidence": map[string]any{"type": "number"},
		"weights": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"vector":   map[string]any{"type": "number"},
				"semantic": map[string]any{"type": "number"},
				"graph":    map[string]any{"type": "number"},
				"fulltext": map[string]any{"type": "number"},
			},
		},
	},
	"required": []string{"intent", "confidence", "weights"},
}

// LLMAnalyzer classifies queries with an LLM, falling back to fallback on
// any failure so retrieval degrades gracefully instead of failing.
type LLMAnalyzer struct {
	provider llm.Provider
	model    string
	fallback QueryAnalyzer
}

// NewLLMAnalyzer builds an analyzer backed by provider/model, using
// fallback when the LLM call or its structured output fails.
func NewLLMAnalyzer(provider llm.Provider, model string, fallback QueryAnalyzer) *LLMAnalyzer {
	return &LLMAnalyzer{provider: provider, model: model, fallback: fallback}
}

var _ QueryAnalyzer = (*LLMAnalyzer)(nil)

func (a *LLMAnalyzer) Analyze(ctx context.Context, queryText string, conversationHistory []string) (Analysis, error) {
	prompt := buildAnalysisPrompt(queryText, conversationHistory)
	resp, err := a.provider.Complete(ctx, llm.NewCompletionRequest(a.model,
		[]llm.Message{{Role: llm.RoleUser, Content: prompt}},
		llm.WithJSONSchema(analysisSchema),
	))
	if err != nil {
		return a.fallback.Analyze(ctx, queryText, conversationHistory)
	}

	var out Analysis
	if err := json.Unmarshal([]byte(resp.Text), &out); err != nil {
		return a.fallback.Analyze(ctx, queryText, conversationHistory)
	}
	out.Weights = out.Weights.Normalize()
	return out, nil
}

func buildAnalysisPrompt(queryText string, history []string) string {
	var b strings.Builder
	b.WriteString("Classify the retrieval intent of this query and propose strategy weights.\n")
	b.WriteString("Query: ")
	b.WriteString(queryText)
	b.WriteString("\n")
	if len(history) > 0 {
		b.WriteString("Recent conversation:\n")
		for _, h := range history {
			b.WriteString("- ")
			b.WriteString(h)
			b.WriteString("\n")
		}
	}
	return b.String()
}

// RuleAnalyzer is the lexical-feature fallback: a small set of named CEL
// expressions over query features, evaluated in order, first match wins.
// This replaces a hard-coded if/else ladder with a data-driven rule table,
// the systems-language equivalent of the capability-registry pattern for
// ML-backed components that may be unavailable.
type RuleAnalyzer struct {
	rules []compiledRule
}

type compiledRule struct {
	intent  Intent
	weights Weights
	program cel.Program
}

type ruleDef struct {
	intent     Intent
	expression string
	weights    Weights
}

// NewRuleAnalyzer compiles the default lexical rule table. Features
// available to each expression: has_question_mark, has_how, has_why,
// has_what_is, has_proper_noun, has_numeric, word_count.
func NewRuleAnalyzer() (*RuleAnalyzer, error) {
	env, err := cel.NewEnv(
		cel.Variable("has_question_mark", cel.BoolType),
		cel.Variable("has_how", cel.BoolType),
		cel.Variable("has_why", cel.BoolType),
		cel.Variable("has_what_is", cel.BoolType),
		cel.Variable("has_proper_noun", cel.BoolType),
		cel.Variable("has_numeric", cel.BoolType),
		cel.Variable("word_count", cel.IntType),
	)
	if err != nil {
		return nil, err
	}

	defs := []ruleDef{
		{IntentProcedural, `has_how`, Weights{Vector: 0.5, FullText: 0.3, Semantic: 0.2}},
		{IntentConceptual, `has_why || has_what_is`, Weights{Vector: 0.3, Semantic: 0.4, Graph: 0.3}},
		{IntentNavigational, `has_proper_noun && word_count <= 5`, Weights{Vector: 0.2, FullText: 0.5, Graph: 0.3}},
		{IntentFactual, `has_numeric || has_question_mark`, Weights{Vector: 0.5, FullText: 0.4, Semantic: 0.1}},
		{IntentRelational, `has_proper_noun && word_count > 5`, Weights{Graph: 0.5, Vector: 0.3, Semantic: 0.2}},
	}

	rules := make([]compiledRule, 0, len(defs))
	for _, d := range defs {
		ast, issues := env.Compile(d.expression)
		if issues != nil && issues.Err() != nil {
			return nil, issues.Err()
		}
		prg, err := env.Program(ast)
		if err != nil {
			return nil, err
		}
		rules = append(rules, compiledRule{intent: d.intent, weights: d.weights, program: prg})
	}

	return &RuleAnalyzer{rules: rules}, nil
}

var _ QueryAnalyzer = (*RuleAnalyzer)(nil)

func (a *RuleAnalyzer) Analyze(ctx context.Context, queryText string, conversationHistory []string) (Analysis, error) {
	features := extractFeatures(queryText)

	for _, r := range a.rules {
		out, _, err := r.program.Eval(features)
		if err != nil {
			continue
		}
		if matched, ok := out.Value().(bool); ok && matched {
			return Analysis{Intent: r.intent, Confidence: 0.6, Weights: r.weights.Normalize()}, nil
		}
	}

	return Analysis{Intent: IntentExploratory, Confidence: 0.3, Weights: WeightProfiles["exploratory"]}, nil
}

func extractFeatures(q string) map[string]any {
	lower := strings.ToLower(q)
	words := strings.Fields(q)

	hasProperNoun := false
	for _, w := range words {
		if len(w) > 0 && w[0] >= 'A' && w[0] <= 'Z' {
			hasProperNoun = true
			break
		}
	}

	hasNumeric := false
	for _, r := range q {
		if r >= '0' && r <= '9' {
			hasNumeric = true
			break
		}
	}

	return map[string]any{
		"has_question_mark": strings.Contains(q, "?"),
		"has_how":            strings.Contains(lower, "how"),
		"has_why":            strings.Contains(lower, "why"),
		"has_what_is":        strings.Contains(lower, "what is") || strings.Contains(lower, "what are"),
		"has_proper_noun":    hasProperNoun,
		"has_numeric":        hasNumeric,
		"word_count":         int64(len(words)),
	}
}
