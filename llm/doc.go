// Package llm defines the abstract ports RAE's core consumes for text
// completion, structured completion, embedding, and cross-encoder
// reranking: messages, completion request/response types, token usage, and
// a per-operation token tracker. Concrete providers (OpenAI, Anthropic,
// local models, ...) are external collaborators; this package only
// specifies the contract.
package llm
