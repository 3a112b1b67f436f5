package id

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerate_Deterministic(t *testing.T) {
	a := Generate("t1", "p1", "authservice")
	b := Generate("t1", "p1", "authservice")
	assert.Equal(t, a, b)
}

func TestGenerate_DifferentScopeDifferentID(t *testing.T) {
	a := Generate("t1", "p1", "authservice")
	b := Generate("t2", "p1", "authservice")
	assert.NotEqual(t, a, b)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "authservice", Normalize("  AuthService.  "))
	assert.Equal(t, "encryption service", Normalize("Encryption   Service!"))
}
