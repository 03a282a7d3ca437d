package util

import (
	"crypto/sha256"
	"encoding/hex"
	"maps"
)

// Sha256Hex returns the hex-encoded SHA-256 digest of s. Used to derive
// stable directory names from mirror names.
func Sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func SetEqual[K comparable, V any](a, b []V, key func(V) K, eq func(a, b V) bool) bool {
	if len(a) == 1 && len(b) == 1 {
		return eq(a[0], b[0])
	}

	// There's a risk of false positives here when a slice repeats a key,
	// e.g. []struct{n, v string}{{"foo", "bar"}, {"foo", "baz"}} is
	// SetEqual to []struct{n, v string}{{"foo", "baz"}}.
	m := make(map[K]V, len(a))
	for _, v := range a {
		m[key(v)] = v
	}

	n := make(map[K]V, len(b))
	for _, v := range b {
		n[key(v)] = v
	}

	return maps.EqualFunc(m, n, eq)
}

func PtrEqual[T comparable](a, b *T) bool {
	return FastEqual(a, b, func(a, b *T) bool { return *a == *b })
}

func FastEqual[V any](a, b *V, slowEqual func(a, b *V) bool) bool {
	if a == b {
		return true
	}

	if a == nil || b == nil {
		return false
	}

	return slowEqual(a, b)
}
