package raeerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Error(t *testing.T) {
	err := New(KindValidation, "memory", "store", "importance out of range").
		WithField("importance")

	msg := err.Error()
	assert.Contains(t, msg, "memory[store]")
	assert.Contains(t, msg, "validation")
	assert.Contains(t, msg, "importance out of range")
}

func TestError_WithCause_Unwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := New(KindDependencyUnavailable, "vectorindex", "search", "search failed").
		WithCause(cause)

	require.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestError_DefaultClass(t *testing.T) {
	transient := New(KindDependencyUnavailable, "storage", "get", "timeout")
	assert.True(t, transient.Retryable())

	fatal := New(KindValidation, "memory", "store", "bad layer")
	assert.False(t, fatal.Retryable())
}

func TestError_Sentinel(t *testing.T) {
	err := New(KindNotFound, "memory", "get", "no such memory")
	assert.True(t, errors.Is(err, Sentinel(KindNotFound)))
	assert.False(t, errors.Is(err, Sentinel(KindConflict)))
}

func TestClassify(t *testing.T) {
	assert.Equal(t, KindBudgetExceeded, Classify(New(KindBudgetExceeded, "c", "o", "m")))
	assert.Equal(t, KindInternal, Classify(errors.New("plain")))
}

func TestError_Is_SameComponentOperation(t *testing.T) {
	a := New(KindConflict, "graphrag", "insert_edge", "race")
	b := New(KindConflict, "graphrag", "insert_edge", "different message")
	c := New(KindConflict, "graphrag", "upsert_node", "race")

	assert.True(t, errors.Is(a, b))
	assert.False(t, errors.Is(a, c))
}
