package core

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Hash represents a cryptographic hash
type Hash string

// NewHash creates a new hash from data
func NewHash(data []byte) Hash {
	sum := sha256.Sum256(data)
	return Hash(hex.EncodeToString(sum[:]))
}

// String returns the string representation
func (h Hash) String() string {
	return string(h)
}

// Short returns the first 12 hex characters, enough for log lines and cache keys.
func (h Hash) Short() string {
	if len(h) <= 12 {
		return string(h)
	}
	return string(h[:12])
}

// CohortHash identifies a set of entities under a filter.
type CohortHash Hash

func (h CohortHash) String() string { return Hash(h).String() }

// HashCanonical hashes the JSON encoding of v. encoding/json writes map keys in sorted
// order, so callers that describe themselves as maps get hashes that ignore key order.
func HashCanonical(v interface{}) (Hash, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("canonical encoding failed: %w", err)
	}
	return NewHash(data), nil
}

// MustHashCanonical is HashCanonical for values built from plain numbers, strings and maps,
// which cannot fail to encode.
func MustHashCanonical(v interface{}) Hash {
	h, err := HashCanonical(v)
	if err != nil {
		panic(err)
	}
	return h
}

// ComputeCohortHash identifies a set of entities plus a filter; order of ids is irrelevant.
func ComputeCohortHash(entityIDs []string, filters map[string]interface{}) CohortHash {
	ids := append([]string(nil), entityIDs...)
	sort.Strings(ids)

	var data strings.Builder
	for _, id := range ids {
		data.WriteString(id)
		data.WriteByte(0)
	}

	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		data.WriteString(key)
		data.WriteString(fmt.Sprintf("=%v;", filters[key]))
	}

	return CohortHash(NewHash([]byte(data.String())))
}
