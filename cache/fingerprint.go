// Package cache memoizes expensive hybrid-retrieval pipelines behind a
// deterministic fingerprint: canonicalize the query and filters, hash with
// SHA-256, and use go-redis/v9 (or an in-memory LRU) as the shared-state
// backend for TTL-bounded result memoization.
package cache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// PipelineVersion is mixed into every fingerprint so a retrieval-pipeline
// change invalidates old cache entries without an explicit flush.
const PipelineVersion = "1"

// Fingerprint computes the deterministic cache key for one retrieval
// request. Per the contract tests depend on exactly: trim/collapse/lowercase
// the query text, sort filter keys and tag values and drop
// empty/nil-valued filter keys, quantize time into 60-second buckets, then
// SHA-256 the tuple (tenant, project, canonical query, canonical filters,
// time bucket, pipeline version) rendered as a length-prefixed byte string.
func Fingerprint(tenantID, projectID, queryText string, filters map[string]any, nowUnix int64) string {
	canonicalQuery := canonicalizeQuery(queryText)
	canonicalFilters := canonicalizeFilters(filters)
	timeBucket := nowUnix / 60

	h := sha256.New()
	writeLengthPrefixed(h, tenantID)
	writeLengthPrefixed(h, projectID)
	writeLengthPrefixed(h, canonicalQuery)
	writeLengthPrefixed(h, canonicalFilters)
	writeInt64(h, timeBucket)
	writeLengthPrefixed(h, PipelineVersion)

	return hex.EncodeToString(h.Sum(nil))
}

func canonicalizeQuery(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}

// canonicalizeFilters renders filters as "k1=v1|k2=v2|..." with keys
// sorted and null/empty values dropped; slice values are sorted and joined
// with commas so reordered tags hash identically.
func canonicalizeFilters(filters map[string]any) string {
	if len(filters) == 0 {
		return ""
	}

	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var parts []string
	for _, k := range keys {
		v := filters[k]
		rendered := renderFilterValue(v)
		if rendered == "" {
			continue
		}
		parts = append(parts, k+"="+rendered)
	}
	return strings.Join(parts, "|")
}

func renderFilterValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []string:
		if len(val) == 0 {
			return ""
		}
		sorted := append([]string(nil), val...)
		sort.Strings(sorted)
		return strings.Join(sorted, ",")
	default:
		return fmt.Sprint(val)
	}
}

func writeLengthPrefixed(h interface{ Write([]byte) (int, error) }, s string) {
	var lenBuf [8]byte
	binary.BigEndian.PutUint64(lenBuf[:], uint64(len(s)))
	h.Write(lenBuf[:])
	h.Write([]byte(s))
}

func writeInt64(h interface{ Write([]byte) (int, error) }, v int64) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(v))
	h.Write(buf[:])
}
