// Package iri interns IRIs so that every distinct IRI string is represented by
// exactly one shared handle. Handle equality is pointer equality and the hash
// is computed once at interning time.
package iri

import (
	"sort"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"

	"owlreasoner/internal/errs"
)

const (
	minLength = 3
	maxLength = 8192
)

// IRI is an interned IRI. Values are created only by a Registry (or by
// Ephemeral for session-local names) and compared by pointer.
type IRI struct {
	value  string
	hash   uint64
	prefix string // registered prefix whose namespace matches, if any
}

// String returns the full IRI.
func (i *IRI) String() string {
	if i == nil {
		return "<nil>"
	}
	return i.value
}

// Hash returns the precomputed 64-bit hash.
func (i *IRI) Hash() uint64 { return i.hash }

// Prefix returns the namespace prefix recorded at interning time, or "".
func (i *IRI) Prefix() string { return i.prefix }

// LocalName returns the part after the last '#' or '/'.
func (i *IRI) LocalName() string {
	if idx := strings.LastIndexAny(i.value, "#/"); idx >= 0 {
		return i.value[idx+1:]
	}
	if idx := strings.LastIndexByte(i.value, ':'); idx >= 0 {
		return i.value[idx+1:]
	}
	return i.value
}

// Namespace returns the part up to and including the last '#' or '/'.
func (i *IRI) Namespace() string {
	if idx := strings.LastIndexAny(i.value, "#/"); idx >= 0 {
		return i.value[:idx+1]
	}
	return ""
}

// Compact renders the IRI as prefix:local when a prefix is known.
func (i *IRI) Compact() string {
	if i.prefix != "" {
		return i.prefix + ":" + i.LocalName()
	}
	return i.value
}

// Ephemeral builds a handle that is not interned in any registry. It is used
// for names that exist only inside one reasoning session.
func Ephemeral(s string) *IRI {
	return &IRI{value: s, hash: xxhash.Sum64String(s)}
}

// Validate checks the syntactic constraints every IRI must satisfy.
func Validate(s string) error {
	const op = "iri.Validate"
	if s == "" {
		return errs.New(errs.KindMalformedIRI, op, "empty IRI")
	}
	if len(s) < minLength {
		return errs.New(errs.KindMalformedIRI, op, "IRI %q shorter than %d characters", s, minLength)
	}
	if len(s) > maxLength {
		return errs.New(errs.KindMalformedIRI, op, "IRI longer than %d characters", maxLength)
	}
	if strings.TrimSpace(s) != s {
		return errs.New(errs.KindMalformedIRI, op, "IRI %q has surrounding whitespace", s)
	}
	for _, r := range s {
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			return errs.New(errs.KindMalformedIRI, op, "IRI %q contains whitespace or control characters", s)
		}
	}

	colon := strings.IndexByte(s, ':')
	if colon <= 0 {
		return errs.New(errs.KindMalformedIRI, op, "IRI %q has no scheme", s)
	}
	scheme := s[:colon]
	for idx, r := range scheme {
		switch {
		case r < unicode.MaxASCII && unicode.IsLetter(r):
		case idx > 0 && (r < unicode.MaxASCII && unicode.IsDigit(r) || r == '+' || r == '-' || r == '.'):
		default:
			return errs.New(errs.KindMalformedIRI, op, "IRI %q has invalid scheme %q", s, scheme)
		}
	}
	if colon == len(s)-1 {
		return errs.New(errs.KindMalformedIRI, op, "IRI %q has an empty body", s)
	}

	switch strings.ToLower(scheme) {
	case "http", "https":
		if !strings.HasPrefix(s[colon+1:], "//") {
			return errs.New(errs.KindMalformedIRI, op, "%s IRI %q must have an authority", scheme, s)
		}
	case "urn":
		if !strings.Contains(s[colon+1:], ":") {
			return errs.New(errs.KindMalformedIRI, op, "URN %q must have a namespace identifier", s)
		}
	}
	return nil
}

// Set is a set of interned IRIs.
type Set map[*IRI]struct{}

// NewSet builds a set from the given handles.
func NewSet(items ...*IRI) Set {
	s := make(Set, len(items))
	for _, i := range items {
		s[i] = struct{}{}
	}
	return s
}

func (s Set) Add(i *IRI)    { s[i] = struct{}{} }
func (s Set) Remove(i *IRI) { delete(s, i) }
func (s Set) Len() int      { return len(s) }

func (s Set) Has(i *IRI) bool {
	_, ok := s[i]
	return ok
}

// Union adds every member of other to s.
func (s Set) Union(other Set) {
	for i := range other {
		s[i] = struct{}{}
	}
}

// Clone returns a shallow copy.
func (s Set) Clone() Set {
	out := make(Set, len(s))
	out.Union(s)
	return out
}

// Sorted returns the members ordered by IRI string.
func (s Set) Sorted() []*IRI {
	out := make([]*IRI, 0, len(s))
	for i := range s {
		out = append(out, i)
	}
	SortIRIs(out)
	return out
}

// Strings returns the sorted IRI strings.
func (s Set) Strings() []string {
	sorted := s.Sorted()
	out := make([]string, len(sorted))
	for idx, i := range sorted {
		out[idx] = i.value
	}
	return out
}

// SortIRIs orders handles by IRI string.
func SortIRIs(items []*IRI) {
	sort.Slice(items, func(a, b int) bool { return items[a].value < items[b].value })
}
