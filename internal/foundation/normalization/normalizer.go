// Package normalization maps loosely written configuration values onto closed sets.
package normalization

import (
	"sort"
	"strings"

	ferrors "git.home.luguber.info/inful/assetbuilder/internal/foundation/errors"
)

// Normalizer maps case- and whitespace-insensitive names to values of T.
type Normalizer[T comparable] struct {
	name   string
	values map[string]T
	keys   []string
}

// New creates a normalizer for the named setting. Keys are normalized on insert.
func New[T comparable](name string, values map[string]T) *Normalizer[T] {
	n := &Normalizer[T]{name: name, values: make(map[string]T, len(values))}
	for k, v := range values {
		key := Clean(k)
		n.values[key] = v
		n.keys = append(n.keys, key)
	}
	sort.Strings(n.keys)
	return n
}

// Clean is the normalization applied to every key and input.
func Clean(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Lookup returns the value for raw and whether it is known.
func (n *Normalizer[T]) Lookup(raw string) (T, bool) {
	v, ok := n.values[Clean(raw)]
	return v, ok
}

// Normalize returns the value for raw or a validation error listing the accepted names.
func (n *Normalizer[T]) Normalize(raw string) (T, error) {
	if v, ok := n.Lookup(raw); ok {
		return v, nil
	}
	var zero T
	return zero, ferrors.ValidationError("unknown "+n.name).
		WithContext("value", raw).
		WithContext("valid", strings.Join(n.keys, ",")).
		Build()
}

// Keys returns the accepted names, sorted.
func (n *Normalizer[T]) Keys() []string {
	return append([]string(nil), n.keys...)
}
