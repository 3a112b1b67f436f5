package raeerr

import (
	"errors"
	"fmt"
	"strings"
)

// Error is a structured error carrying enough context for both logging and
// for an enclosing HTTP layer to translate it into {detail, error_code,
// timestamp, request_id}.
type Error struct {
	// Kind is the taxonomy entry this error belongs to.
	Kind Kind

	// Component names the subsystem that produced the error (e.g. "search",
	// "graphrag.extraction", "orchestrator").
	Component string

	// Operation names the specific call that failed (e.g. "query", "store").
	Operation string

	// Message is a human-readable description.
	Message string

	// Field names the offending field, set only for KindValidation.
	Field string

	// Details carries structured context, e.g. current usage/limit for
	// KindBudgetExceeded.
	Details map[string]any

	// Class overrides the Kind's default retry classification when set;
	// empty means "use the Kind's default".
	Class Class

	// Cause is the wrapped underlying error, if any.
	Cause error
}

// New creates a new *Error with the Kind's default Class.
func New(kind Kind, component, operation, message string) *Error {
	return &Error{
		Kind:      kind,
		Component: component,
		Operation: operation,
		Message:   message,
		Class:     defaultClass(kind),
	}
}

// WithCause attaches an underlying error and returns the receiver for
// chaining.
func (e *Error) WithCause(err error) *Error {
	e.Cause = err
	return e
}

// WithField records the offending field name (KindValidation) and returns
// the receiver for chaining.
func (e *Error) WithField(field string) *Error {
	e.Field = field
	return e
}

// WithDetails attaches structured context and returns the receiver for
// chaining.
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

// WithClass overrides the default retry classification and returns the
// receiver for chaining.
func (e *Error) WithClass(class Class) *Error {
	e.Class = class
	return e
}

// Error implements the error interface as
// "component[operation] kind: message: cause".
func (e *Error) Error() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("%s[%s] %s", e.Component, e.Operation, e.Kind))
	if e.Message != "" {
		parts = append(parts, e.Message)
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}
	return strings.Join(parts, ": ")
}

// Unwrap exposes the cause for errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports equality by Kind, Component, and Operation, ignoring Message
// and Details, so callers can do errors.Is(err, raeerr.New(KindNotFound, "",
// "", "")) style sentinel checks against the kind alone via Kind.Sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Component == "" && t.Operation == "" {
		return e.Kind == t.Kind
	}
	return e.Kind == t.Kind && e.Component == t.Component && e.Operation == t.Operation
}

// Retryable reports whether the error's class is ClassTransient.
func (e *Error) Retryable() bool {
	return e.Class == ClassTransient
}

// Sentinel returns a bare *Error usable with errors.Is to test only the
// Kind, regardless of which component/operation raised it.
//
// Example:
//
//	if errors.Is(err, raeerr.Sentinel(raeerr.KindNotFound)) { ... }
func Sentinel(kind Kind) *Error {
	return &Error{Kind: kind}
}

// Classify inspects an arbitrary error and returns its RAE Kind, defaulting
// to KindInternal when the error neither is nor wraps a *Error.
func Classify(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
