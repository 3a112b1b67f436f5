package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFingerprint_WhitespaceInsensitive(t *testing.T) {
	a := Fingerprint("t1", "p1", "dark mode preference", nil, 1000)
	b := Fingerprint("t1", "p1", "  dark   mode  preference ", nil, 1000)
	assert.Equal(t, a, b)
}

func TestFingerprint_CaseInsensitive(t *testing.T) {
	a := Fingerprint("t1", "p1", "Dark Mode", nil, 1000)
	b := Fingerprint("t1", "p1", "dark mode", nil, 1000)
	assert.Equal(t, a, b)
}

func TestFingerprint_TagOrderInsensitive(t *testing.T) {
	a := Fingerprint("t1", "p1", "q", map[string]any{"tags": []string{"b", "a"}}, 1000)
	b := Fingerprint("t1", "p1", "q", map[string]any{"tags": []string{"a", "b"}}, 1000)
	assert.Equal(t, a, b)
}

func TestFingerprint_DropsEmptyKeys(t *testing.T) {
	a := Fingerprint("t1", "p1", "q", map[string]any{"source": ""}, 1000)
	b := Fingerprint("t1", "p1", "q", nil, 1000)
	assert.Equal(t, a, b)
}

func TestFingerprint_SameWithin60s(t *testing.T) {
	a := Fingerprint("t1", "p1", "q", nil, 1020)
	b := Fingerprint("t1", "p1", "q", nil, 1079)
	assert.Equal(t, a, b)
}

func TestFingerprint_DifferentAcrossBucket(t *testing.T) {
	a := Fingerprint("t1", "p1", "q", nil, 1000)
	b := Fingerprint("t1", "p1", "q", nil, 1060)
	assert.NotEqual(t, a, b)
}

func TestFingerprint_DifferentTenant(t *testing.T) {
	a := Fingerprint("t1", "p1", "q", nil, 1000)
	b := Fingerprint("t2", "p1", "q", nil, 1000)
	assert.NotEqual(t, a, b)
}
