// Package determinism provides primitives for deterministic output.
// Map iteration and hashing of results go through these helpers so that
// identical inputs always yield identical bytes.
package determinism

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"sort"

	"github.com/shopspring/decimal"
)

// SortedKeys returns map keys in sorted order
func SortedKeys[K comparable, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return fmt.Sprint(keys[i]) < fmt.Sprint(keys[j])
	})
	return keys
}

// RangeMapSorted iterates over a map in sorted key order
func RangeMapSorted[K comparable, V any](m map[K]V, fn func(K, V) bool) {
	for _, k := range SortedKeys(m) {
		if !fn(k, m[k]) {
			break
		}
	}
}

// ContentHash is a SHA-256 hash for content integrity
type ContentHash [32]byte

// Hex returns the hash as a hex string
func (h ContentHash) Hex() string {
	return hex.EncodeToString(h[:])
}

// String implements Stringer
func (h ContentHash) String() string {
	return h.Hex()[:16] + "..."
}

// Hasher accumulates labelled values into a content hash. Decimals are
// written in canonical form so 1.50 and 1.5 hash alike.
type Hasher struct {
	h hash.Hash
}

// NewHasher creates a hasher scoped to a namespace
func NewHasher(namespace string) *Hasher {
	h := &Hasher{h: sha256.New()}
	h.write(namespace)
	return h
}

func (h *Hasher) write(s string) {
	h.h.Write([]byte(s))
	h.h.Write([]byte{0})
}

// Text adds a labelled string
func (h *Hasher) Text(label, value string) *Hasher {
	h.write(label)
	h.write(value)
	return h
}

// Decimal adds a labelled decimal
func (h *Hasher) Decimal(label string, value decimal.Decimal) *Hasher {
	h.write(label)
	h.write(value.String())
	return h
}

// DecimalMap adds every entry of m in sorted key order
func DecimalMap[K comparable](h *Hasher, label string, m map[K]decimal.Decimal) *Hasher {
	h.write(label)
	RangeMapSorted(m, func(k K, v decimal.Decimal) bool {
		h.write(fmt.Sprint(k))
		h.write(v.String())
		return true
	})
	return h
}

// Sum returns the accumulated hash
func (h *Hasher) Sum() ContentHash {
	var out ContentHash
	copy(out[:], h.h.Sum(nil))
	return out
}
