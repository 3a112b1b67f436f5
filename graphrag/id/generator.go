// Package id generates deterministic, content-addressable identifiers for
// graph nodes: canonicalize, hash with SHA-256, and encode as a base64url
// prefix, keyed by the fixed (tenant, project, canonical node key) tuple.
package id

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"
)

// Generate derives a stable internal node ID from the node's scoping tuple
// and its canonical node_id. Same inputs always produce the same output;
// different inputs are collision-resistant.
//
// Algorithm: build "tenantID|projectID|nodeID" (each component lowercased
// and trimmed), SHA-256 it, and base64url-encode the first 12 bytes (no
// padding), prefixed with "node:" for readability.
func Generate(tenantID, projectID, nodeID string) string {
	canonical := strings.Join([]string{
		normalize(tenantID),
		normalize(projectID),
		normalize(nodeID),
	}, "|")

	hash := sha256.Sum256([]byte(canonical))
	encoded := base64.RawURLEncoding.EncodeToString(hash[:12])
	return fmt.Sprintf("node:%s", encoded)
}

// Normalize canonicalizes an entity name the way extraction normalizes
// subjects/objects before they become a node_id: lowercase, trim, collapse
// internal whitespace, strip common punctuation.
func Normalize(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.Map(func(r rune) rune {
		switch r {
		case '.', ',', '!', '?', ';', ':', '"', '\'', '(', ')', '[', ']', '{', '}':
			return -1
		}
		return r
	}, s)

	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
