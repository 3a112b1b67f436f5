package raeerr

// Kind classifies a RAE error by its HTTP-visible taxonomy. Kind is
// deliberately a closed set: new failure modes
// should map onto one of these, not grow the set, since the enclosing
// HTTP layer (out of scope) has a fixed status-code mapping for each.
type Kind string

const (
	// KindValidation covers bad input from the caller: invalid layer,
	// out-of-range importance, graph_depth > 5, missing tenant. Maps to 400.
	// Never retryable.
	KindValidation Kind = "validation"

	// KindAuth covers missing/invalid credentials or a cross-tenant access
	// attempt. Maps to 401/403. Cross-tenant attempts must additionally be
	// audit-logged by the caller.
	KindAuth Kind = "auth"

	// KindNotFound covers a memory or node that does not exist, or is not
	// owned by the caller's tenant. Maps to 404. Never distinguishes
	// "not yours" from "does not exist" — that distinction would leak
	// cross-tenant existence information.
	KindNotFound Kind = "not_found"

	// KindConflict covers rare write races (e.g. concurrent delete). Maps to
	// 409.
	KindConflict Kind = "conflict"

	// KindBudgetExceeded means the tenant is over its daily or monthly
	// budget. Maps to 402. The caller may retry after the budget resets.
	KindBudgetExceeded Kind = "budget_exceeded"

	// KindDependencyUnavailable covers storage, vector index, or external
	// provider being unreachable or timed out. Always Class = ClassTransient.
	// Maps to 503.
	KindDependencyUnavailable Kind = "dependency_unavailable"

	// KindProviderOutputInvalid means the LLM returned output that failed
	// schema validation when structured output was required. Maps to 502.
	// Not retried by the core.
	KindProviderOutputInvalid Kind = "provider_output_invalid"

	// KindInternal covers uncaught programming errors. Maps to 500. Always
	// logged with full context by the caller.
	KindInternal Kind = "internal"
)

// Class indicates whether an error is worth retrying.
type Class string

const (
	// ClassTransient means the same call might succeed if retried, typically
	// after a backoff.
	ClassTransient Class = "transient"

	// ClassFatal means retrying will not help without a change in input or
	// configuration.
	ClassFatal Class = "fatal"
)

// defaultClass returns the class a Kind implies when the caller does not
// override it explicitly.
func defaultClass(k Kind) Class {
	switch k {
	case KindDependencyUnavailable:
		return ClassTransient
	case KindBudgetExceeded:
		// Retryable, but only after the budget window resets — not a
		// tight-loop retry, so callers should not treat this as transient
		// for backoff purposes.
		return ClassFatal
	default:
		return ClassFatal
	}
}
