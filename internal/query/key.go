// Package query implements the client-side cache: deterministic hierarchical
// keys, a TTL'd store with prefix invalidation and subscriptions, and typed
// read/write bindings over it.
package query

import (
	"net/url"
	"sort"
	"strings"
)

// Key identifies a cached read. Keys are hierarchical: a resource-level key
// is a prefix of every key derived from it, so invalidating the resource key
// reaches all derived entries.
type Key []string

// NewKey builds a key from its parts. The first part names the resource.
func NewKey(parts ...string) Key {
	k := make(Key, len(parts))
	copy(k, parts)
	return k
}

// Child returns a new key extending k with the given parts.
func (k Key) Child(parts ...string) Key {
	out := make(Key, 0, len(k)+len(parts))
	out = append(out, k...)
	out = append(out, parts...)
	return out
}

// WithFilters appends a deterministic serialization of the filter set:
// fields sorted by name, empty values omitted. Two logically identical filter
// sets produce the same key regardless of construction order. Names and
// values are query-escaped so the key separators never leak in from filter
// content and collide distinct filter sets.
func (k Key) WithFilters(filters map[string]string) Key {
	names := make([]string, 0, len(filters))
	for name, value := range filters {
		if value == "" {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, url.QueryEscape(name)+"="+url.QueryEscape(filters[name]))
	}
	return k.Child(parts...)
}

// String renders the key for storage and logging.
func (k Key) String() string {
	return strings.Join(k, "/")
}

// HasPrefix reports whether prefix is a segment-wise prefix of k.
func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix) > len(k) {
		return false
	}
	for i, part := range prefix {
		if k[i] != part {
			return false
		}
	}
	return true
}
