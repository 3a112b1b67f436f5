package llm

import "sync"

// Usage is token accounting for one completion/embedding call.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Add returns the sum of two Usage values.
func (u Usage) Add(other Usage) Usage {
	return Usage{
		InputTokens:  u.InputTokens + other.InputTokens,
		OutputTokens: u.OutputTokens + other.OutputTokens,
	}
}

// Tracker accumulates token usage per named operation ("embed", "complete",
// "rerank") over the lifetime of one orchestrated request.
type Tracker struct {
	mu    sync.Mutex
	byOp  map[string]Usage
	total Usage
}

// NewTracker returns an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{byOp: make(map[string]Usage)}
}

// Add records usage under operation.
func (t *Tracker) Add(operation string, usage Usage) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byOp[operation] = t.byOp[operation].Add(usage)
	t.total = t.total.Add(usage)
}

// Total returns the aggregate usage across every operation recorded so far.
func (t *Tracker) Total() Usage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total
}

// ByOperation returns the usage recorded under operation, zero if none.
func (t *Tracker) ByOperation(operation string) Usage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.byOp[operation]
}
