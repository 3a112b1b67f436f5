package search

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamsoft-pro/rae/llm"
)

func TestWeights_Normalize(t *testing.T) {
	w := Weights{Vector: 2, Semantic: 2, Graph: 0, FullText: 0}
	norm := w.Normalize()
	assert.InDelta(t, 0.5, norm.Vector, 1e-9)
	assert.InDelta(t, 0.5, norm.Semantic, 1e-9)
	assert.InDelta(t, 1.0, norm.Vector+norm.Semantic+norm.Graph+norm.FullText, 1e-9)
}

func TestWeights_Normalize_AllZero(t *testing.T) {
	norm := Weights{}.Normalize()
	assert.Equal(t, Weights{Vector: 1}, norm)
}

func TestRuleAnalyzer_Procedural(t *testing.T) {
	a, err := NewRuleAnalyzer()
	require.NoError(t, err)

	out, err := a.Analyze(context.Background(), "How do I configure the cache?", nil)
	require.NoError(t, err)
	assert.Equal(t, IntentProcedural, out.Intent)
	assert.InDelta(t, 1.0, out.Weights.Vector+out.Weights.Semantic+out.Weights.Graph+out.Weights.FullText, 1e-9)
}

func TestRuleAnalyzer_Conceptual(t *testing.T) {
	a, err := NewRuleAnalyzer()
	require.NoError(t, err)

	out, err := a.Analyze(context.Background(), "Why does the decay schedule use three bands?", nil)
	require.NoError(t, err)
	assert.Equal(t, IntentConceptual, out.Intent)
}

func TestRuleAnalyzer_FallsBackToExploratory(t *testing.T) {
	a, err := NewRuleAnalyzer()
	require.NoError(t, err)

	out, err := a.Analyze(context.Background(), "tell me stuff", nil)
	require.NoError(t, err)
	assert.Equal(t, IntentExploratory, out.Intent)
	assert.Equal(t, WeightProfiles["exploratory"], out.Weights)
}

func TestRuleAnalyzer_Navigational(t *testing.T) {
	a, err := NewRuleAnalyzer()
	require.NoError(t, err)

	out, err := a.Analyze(context.Background(), "AuthService status", nil)
	require.NoError(t, err)
	assert.Equal(t, IntentNavigational, out.Intent)
}

type stubProvider struct {
	resp *llm.CompletionResponse
	err  error
}

func (s *stubProvider) Complete(ctx context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return s.resp, s.err
}

func TestLLMAnalyzer_FallsBackOnProviderError(t *testing.T) {
	fallback, err := NewRuleAnalyzer()
	require.NoError(t, err)

	provider := &stubProvider{err: errors.New("provider down")}
	a := NewLLMAnalyzer(provider, "test-model", fallback)

	out, err := a.Analyze(context.Background(), "How do I do this?", nil)
	require.NoError(t, err)
	assert.Equal(t, IntentProcedural, out.Intent)
}

func TestLLMAnalyzer_FallsBackOnUnparseableOutput(t *testing.T) {
	fallback, err := NewRuleAnalyzer()
	require.NoError(t, err)

	provider := &stubProvider{resp: &llm.CompletionResponse{Text: "not json"}}
	a := NewLLMAnalyzer(provider, "test-model", fallback)

	out, err := a.Analyze(context.Background(), "tell me stuff", nil)
	require.NoError(t, err)
	assert.Equal(t, IntentExploratory, out.Intent)
}

func TestLLMAnalyzer_NormalizesReturnedWeights(t *testing.T) {
	fallback, err := NewRuleAnalyzer()
	require.NoError(t, err)

	provider := &stubProvider{resp: &llm.CompletionResponse{
		Text: `{"intent":"factual","confidence":0.9,"weights":{"vector":2,"semantic":2,"graph":0,"fulltext":0}}`,
	}}
	a := NewLLMAnalyzer(provider, "test-model", fallback)

	out, err := a.Analyze(context.Background(), "How many memories exist?", nil)
	require.NoError(t, err)
	assert.Equal(t, IntentFactual, out.Intent)
	assert.InDelta(t, 0.5, out.Weights.Vector, 1e-9)
	assert.InDelta(t, 1.0, out.Weights.Vector+out.Weights.Semantic+out.Weights.Graph+out.Weights.FullText, 1e-9)
}
