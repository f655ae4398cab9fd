package query

import (
	"sort"
	"strings"

	"owlreasoner/internal/iri"
	"owlreasoner/internal/owl"
)

// TermKind tells variables, IRIs and literals apart.
type TermKind uint8

const (
	TermInvalid TermKind = iota
	TermVar
	TermIRI
	TermLiteral
)

// Term is a position of a triple pattern or a bound value.
type Term struct {
	Kind    TermKind
	Var     string
	IRI     *iri.IRI
	Literal owl.Literal
}

// Var returns a variable term. A leading '?' is dropped.
func Var(name string) Term { return Term{Kind: TermVar, Var: strings.TrimPrefix(name, "?")} }

// IRI returns a constant IRI term.
func IRI(i *iri.IRI) Term { return Term{Kind: TermIRI, IRI: i} }

// Lit returns a constant literal term.
func Lit(l owl.Literal) Term { return Term{Kind: TermLiteral, Literal: l} }

// IsVar reports whether t is a variable.
func (t Term) IsVar() bool { return t.Kind == TermVar }

// Key is a canonical rendering used for equality and hashing.
func (t Term) Key() string {
	switch t.Kind {
	case TermVar:
		return "?" + t.Var
	case TermIRI:
		return "<" + t.IRI.String() + ">"
	case TermLiteral:
		return t.Literal.Key()
	}
	return ""
}

func (t Term) String() string {
	if t.Kind == TermIRI {
		return t.IRI.Compact()
	}
	return t.Key()
}

// Equal compares two bound terms.
func (t Term) Equal(o Term) bool {
	if t.Kind != o.Kind {
		return false
	}
	switch t.Kind {
	case TermIRI:
		return t.IRI == o.IRI || t.IRI.String() == o.IRI.String()
	case TermLiteral:
		return t.Literal.Key() == o.Literal.Key()
	case TermVar:
		return t.Var == o.Var
	}
	return true
}

// Binding maps variable names to values.
type Binding map[string]Term

// Get returns the value bound to name.
func (b Binding) Get(name string) (Term, bool) {
	t, ok := b[strings.TrimPrefix(name, "?")]
	return t, ok
}

func (b Binding) clone() Binding {
	out := make(Binding, len(b)+1)
	for k, v := range b {
		out[k] = v
	}
	return out
}

// resolve substitutes a bound variable with its value.
func (b Binding) resolve(t Term) Term {
	if t.IsVar() {
		if v, ok := b[t.Var]; ok {
			return v
		}
	}
	return t
}

// extend binds t to value, failing when t is a constant or a variable bound
// to something else.
func (b Binding) extend(t, value Term) (Binding, bool) {
	if !t.IsVar() {
		return b, t.Equal(value)
	}
	if cur, ok := b[t.Var]; ok {
		return b, cur.Equal(value)
	}
	out := b.clone()
	out[t.Var] = value
	return out, true
}

// key renders the values of vars, in order, for hashing and dedup.
func (b Binding) key(vars []string) string {
	var sb strings.Builder
	for _, v := range vars {
		if t, ok := b[v]; ok {
			sb.WriteString(t.Key())
		}
		sb.WriteByte(0)
	}
	return sb.String()
}

// compatible reports whether a and b agree on every variable both bind.
func compatible(a, b Binding) bool {
	if len(b) < len(a) {
		a, b = b, a
	}
	for k, v := range a {
		if w, ok := b[k]; ok && !v.Equal(w) {
			return false
		}
	}
	return true
}

func merge(a, b Binding) Binding {
	out := make(Binding, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
