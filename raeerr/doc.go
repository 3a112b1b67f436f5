// Package raeerr provides the structured error taxonomy shared across RAE's
// memory and GraphRAG core.
//
// Every service-layer failure is represented as a *Error carrying a Kind
// (Validation, Auth, NotFound, Conflict, BudgetExceeded,
// DependencyUnavailable, ProviderOutputInvalid, Internal), a Class
// (transient vs fatal, for retry policy), and an optional wrapped Cause so
// errors.Is/errors.As keep working through the stack.
//
// The in-memory repositories return *Error values themselves; ports (llm,
// vector index) return raw errors or sentinel values, which the service
// layer (search, graphrag, reflection, orchestrator) is responsible for
// classifying into a *Error before they cross a package boundary that an
// HTTP handler (out of scope here) would translate into a status code.
package raeerr
