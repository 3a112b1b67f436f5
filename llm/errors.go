package llm

import "errors"

// Sentinel errors returned by Provider/EmbeddingProvider/Reranker
// implementations; service code classifies these into raeerr.Error via
// raeerr.Classify-style translation at the call site.
var (
	// ErrProviderUnavailable means the call failed for a reason worth
	// retrying (timeout, rate limit, transient network failure).
	ErrProviderUnavailable = errors.New("llm: provider unavailable")

	// ErrInvalidInput means the request itself was malformed (empty
	// messages, unsupported model) and retrying will not help.
	ErrInvalidInput = errors.New("llm: invalid input")

	// ErrProviderOutputInvalid means JSONSchema was set and the provider's
	// output did not parse against it after the implementation's bounded
	// retry-on-parse-error budget was exhausted.
	ErrProviderOutputInvalid = errors.New("llm: provider output invalid")
)
