package llm

import "context"

// CompletionRequest carries a conversation plus generation options,
// configured through a small set of functional options.
type CompletionRequest struct {
	Model    string
	Messages []Message

	Temperature *float64
	MaxTokens   *int

	// JSONSchema, when set, requires the provider's returned text to parse
	// against it; the port guarantees conformance or fails with
	// ErrProviderOutputInvalid.
	JSONSchema map[string]any
}

// CompletionOption configures a CompletionRequest.
type CompletionOption func(*CompletionRequest)

func WithTemperature(t float64) CompletionOption {
	return func(r *CompletionRequest) { r.Temperature = &t }
}

func WithMaxTokens(n int) CompletionOption {
	return func(r *CompletionRequest) { r.MaxTokens = &n }
}

func WithJSONSchema(schema map[string]any) CompletionOption {
	return func(r *CompletionRequest) { r.JSONSchema = schema }
}

// NewCompletionRequest builds a request from messages and options.
func NewCompletionRequest(model string, messages []Message, opts ...CompletionOption) *CompletionRequest {
	req := &CompletionRequest{Model: model, Messages: messages}
	for _, opt := range opts {
		opt(req)
	}
	return req
}

// CompletionResponse is the provider's reply plus the token accounting the
// port guarantees is always populated.
type CompletionResponse struct {
	Text         string
	InputTokens  int
	OutputTokens int
}

// TotalTokens is a convenience sum used by cost accounting.
func (r CompletionResponse) TotalTokens() int {
	return r.InputTokens + r.OutputTokens
}

// Provider is the abstract text-completion port the core consumes; concrete
// providers (OpenAI, Anthropic, local models, ...) are external
// collaborators.
type Provider interface {
	// Complete returns generated text plus token counts. When req.JSONSchema
	// is set, Text is guaranteed to parse against it or the call fails with
	// ErrProviderOutputInvalid. If the underlying provider does not report
	// token counts, the implementation estimates them via a tokenizer
	// heuristic — Complete never returns zero counts for a real call.
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)
}
