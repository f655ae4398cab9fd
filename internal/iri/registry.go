package iri

import (
	"strings"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"

	"owlreasoner/internal/errs"
	"owlreasoner/internal/logging"
)

// Registry interns IRI strings. It is safe for concurrent use: lookups take a
// read lock and interning a new string takes the write lock.
type Registry struct {
	mu       sync.RWMutex
	entries  map[string]*IRI
	prefixes map[string]string // prefix -> namespace
	byNS     map[string]string // namespace -> prefix

	hits   atomic.Uint64
	misses atomic.Uint64
}

// RegistryStats reports interning activity.
type RegistryStats struct {
	Entries int
	Hits    uint64
	Misses  uint64
}

// NewRegistry creates a registry pre-loaded with the standard prefixes.
func NewRegistry() *Registry {
	r := &Registry{
		entries:  make(map[string]*IRI),
		prefixes: make(map[string]string),
		byNS:     make(map[string]string),
	}
	for prefix, ns := range StandardPrefixes {
		r.prefixes[prefix] = ns
		r.byNS[ns] = prefix
	}
	return r
}

// GetOrCreate returns the unique handle for s, interning it on first use.
func (r *Registry) GetOrCreate(s string) (*IRI, error) {
	r.mu.RLock()
	if i, ok := r.entries[s]; ok {
		r.mu.RUnlock()
		r.hits.Add(1)
		return i, nil
	}
	r.mu.RUnlock()

	if err := Validate(s); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check after acquiring write lock
	if i, ok := r.entries[s]; ok {
		r.hits.Add(1)
		return i, nil
	}
	i := &IRI{value: s, hash: xxhash.Sum64String(s)}
	if ns := i.Namespace(); ns != "" {
		i.prefix = r.byNS[ns]
	}
	r.entries[s] = i
	r.misses.Add(1)
	return i, nil
}

// MustGet interns s and panics on malformed input. Intended for vocabulary
// constants and tests.
func (r *Registry) MustGet(s string) *IRI {
	i, err := r.GetOrCreate(s)
	if err != nil {
		panic(err)
	}
	return i
}

// Lookup returns the handle for s if it has been interned.
func (r *Registry) Lookup(s string) (*IRI, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.entries[s]
	return i, ok
}

// RegisterPrefix binds prefix to namespace for Expand and Compact.
// Handles interned earlier keep their recorded prefix.
func (r *Registry) RegisterPrefix(prefix, namespace string) error {
	if strings.ContainsAny(prefix, ":/# ") {
		return errs.New(errs.KindInvalidArgument, "iri.RegisterPrefix", "invalid prefix %q", prefix)
	}
	if err := Validate(namespace); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.prefixes[prefix]; ok {
		delete(r.byNS, old)
	}
	r.prefixes[prefix] = namespace
	r.byNS[namespace] = prefix
	logging.Get(logging.CategoryIRI).Debug("prefix %s: bound to %s", prefix, namespace)
	return nil
}

// Expand resolves "prefix:local" against the registered prefixes and interns
// the result. Strings whose prefix is not registered are interned as-is.
func (r *Registry) Expand(s string) (*IRI, error) {
	if colon := strings.IndexByte(s, ':'); colon >= 0 && !strings.HasPrefix(s[colon+1:], "//") {
		r.mu.RLock()
		ns, ok := r.prefixes[s[:colon]]
		r.mu.RUnlock()
		if ok {
			return r.GetOrCreate(ns + s[colon+1:])
		}
	}
	return r.GetOrCreate(s)
}

// Len returns the number of interned IRIs.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Stats returns interning counters.
func (r *Registry) Stats() RegistryStats {
	return RegistryStats{Entries: r.Len(), Hits: r.hits.Load(), Misses: r.misses.Load()}
}
