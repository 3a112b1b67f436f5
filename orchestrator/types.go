// Package orchestrator implements the single "execute agent task" entry
// point that ties context-cache lookup, hybrid retrieval, reflection
// injection, the LLM call, cost accounting, and post-hoc reflection enqueue
// together behind one call surface, plus graceful Start/Stop lifecycle
// management for the background components it owns.
package orchestrator

import (
	"github.com/dreamsoft-pro/rae/memory"
	"github.com/dreamsoft-pro/rae/search"
)

// Options parameterizes one ExecuteAgentTask call.
type Options struct {
	K             int
	UseGraph      bool
	GraphDepth    int
	WeightProfile string
	Rerank        bool
	Model         string

	// ReflectionTokenBudget bounds how much reflective-memory content is
	// prepended to the system prompt (step 3). 0 means use DefaultReflectionTokenBudget.
	ReflectionTokenBudget int

	// EnqueuePostHoc disables the best-effort post-hoc reflection memory
	// write (step 6) when explicitly set false; defaults to true.
	EnqueuePostHoc *bool
}

// DefaultReflectionTokenBudget bounds the system-prompt prefix built from
// recent reflective memories, a rough 4-chars-per-token estimate times a
// modest token ceiling.
const DefaultReflectionTokenBudget = 500

// CostSummary mirrors the `/v1/agent/execute` response's `cost` field.
type CostSummary struct {
	InputTokens   int     `json:"input_tokens"`
	OutputTokens  int     `json:"output_tokens"`
	TotalEstimate float64 `json:"total_estimate"`
}

// Result is ExecuteAgentTask's return value: `{answer, used_memories, cost}`.
type Result struct {
	Answer       string          `json:"answer"`
	UsedMemories []memory.Result `json:"used_memories"`
	Cost         CostSummary     `json:"cost"`
	Warnings     []string        `json:"warnings,omitempty"`
}

func (o Options) toSearchRequest(prompt string, history []string) search.Request {
	depth := o.GraphDepth
	if !o.UseGraph {
		depth = 0
	}
	return search.Request{
		QueryText:           prompt,
		ConversationHistory: history,
		K:                   o.K,
		GraphDepth:          depth,
		WeightProfile:       o.WeightProfile,
		Rerank:              o.Rerank,
	}
}

func (o Options) enqueuePostHoc() bool {
	if o.EnqueuePostHoc == nil {
		return true
	}
	return *o.EnqueuePostHoc
}

func (o Options) reflectionTokenBudget() int {
	if o.ReflectionTokenBudget <= 0 {
		return DefaultReflectionTokenBudget
	}
	return o.ReflectionTokenBudget
}
