package query

import (
	"fmt"
)

// Pattern is a graph pattern. The set of implementations is closed.
type Pattern interface {
	pattern()
}

// TriplePattern matches one fact.
type TriplePattern struct {
	S, P, O Term
}

// Triple builds a TriplePattern.
func Triple(s, p, o Term) TriplePattern { return TriplePattern{S: s, P: p, O: o} }

// BGP is a conjunction of triple patterns.
type BGP struct {
	Triples []TriplePattern
}

// Union concatenates the solutions of its branches.
type Union struct {
	Branches []Pattern
}

// Optional extends every solution of Left with the compatible solutions of
// Right, keeping it unchanged when there are none.
type Optional struct {
	Left, Right Pattern
}

// Filter keeps the solutions of Pattern for which Expr holds.
type Filter struct {
	Pattern Pattern
	Expr    Expr
}

// Distinct removes duplicate solutions.
type Distinct struct {
	Pattern Pattern
}

func (TriplePattern) pattern() {}
func (BGP) pattern()           {}
func (Union) pattern()         {}
func (Optional) pattern()      {}
func (Filter) pattern()        {}
func (Distinct) pattern()      {}

// Expr is a filter condition. The set of implementations is closed.
type Expr interface {
	eval(b Binding) bool
}

type (
	// Equals holds when both terms are bound and equal.
	Equals struct{ A, B Term }
	// NotEquals holds when both terms are bound and differ.
	NotEquals struct{ A, B Term }
	// Bound holds when the variable has a value.
	Bound struct{ Var string }
	// IsIRI holds when the term resolves to an IRI.
	IsIRI struct{ Term Term }
	// IsLiteral holds when the term resolves to a literal.
	IsLiteral struct{ Term Term }
	And       struct{ Exprs []Expr }
	Or        struct{ Exprs []Expr }
	Not       struct{ Expr Expr }
)

func (e Equals) eval(b Binding) bool {
	x, y := b.resolve(e.A), b.resolve(e.B)
	return !x.IsVar() && !y.IsVar() && x.Equal(y)
}

func (e NotEquals) eval(b Binding) bool {
	x, y := b.resolve(e.A), b.resolve(e.B)
	return !x.IsVar() && !y.IsVar() && !x.Equal(y)
}

func (e Bound) eval(b Binding) bool {
	_, ok := b.Get(e.Var)
	return ok
}

func (e IsIRI) eval(b Binding) bool { return b.resolve(e.Term).Kind == TermIRI }

func (e IsLiteral) eval(b Binding) bool { return b.resolve(e.Term).Kind == TermLiteral }

func (e And) eval(b Binding) bool {
	for _, x := range e.Exprs {
		if !x.eval(b) {
			return false
		}
	}
	return true
}

func (e Or) eval(b Binding) bool {
	for _, x := range e.Exprs {
		if x.eval(b) {
			return true
		}
	}
	return false
}

func (e Not) eval(b Binding) bool { return !e.Expr.eval(b) }

// =============================================================================
// VALIDATION
// =============================================================================

func validate(p Pattern) error {
	switch p := p.(type) {
	case nil:
		return fmt.Errorf("nil pattern")
	case TriplePattern:
		return validateTriple(p)
	case BGP:
		for i, t := range p.Triples {
			if err := validateTriple(t); err != nil {
				return fmt.Errorf("triple %d: %w", i, err)
			}
		}
	case Union:
		if len(p.Branches) == 0 {
			return fmt.Errorf("union without branches")
		}
		for i, br := range p.Branches {
			if err := validate(br); err != nil {
				return fmt.Errorf("union branch %d: %w", i, err)
			}
		}
	case Optional:
		if err := validate(p.Left); err != nil {
			return fmt.Errorf("optional left: %w", err)
		}
		if err := validate(p.Right); err != nil {
			return fmt.Errorf("optional right: %w", err)
		}
	case Filter:
		if err := validate(p.Pattern); err != nil {
			return err
		}
		return validateExpr(p.Expr)
	case Distinct:
		return validate(p.Pattern)
	default:
		return fmt.Errorf("unsupported pattern %T", p)
	}
	return nil
}

func validateTriple(t TriplePattern) error {
	for _, pos := range []struct {
		name string
		term Term
	}{{"subject", t.S}, {"predicate", t.P}, {"object", t.O}} {
		if err := validateTerm(pos.term); err != nil {
			return fmt.Errorf("%s: %w", pos.name, err)
		}
	}
	if t.S.Kind == TermLiteral {
		return fmt.Errorf("literal in subject position")
	}
	if t.P.Kind == TermLiteral {
		return fmt.Errorf("literal in predicate position")
	}
	return nil
}

func validateTerm(t Term) error {
	switch t.Kind {
	case TermVar:
		if t.Var == "" {
			return fmt.Errorf("unnamed variable")
		}
	case TermIRI:
		if t.IRI == nil {
			return fmt.Errorf("nil IRI")
		}
	case TermLiteral:
	default:
		return fmt.Errorf("empty term")
	}
	return nil
}

func validateExpr(e Expr) error {
	switch e := e.(type) {
	case nil:
		return fmt.Errorf("nil filter expression")
	case Equals:
		return firstErr(validateTerm(e.A), validateTerm(e.B))
	case NotEquals:
		return firstErr(validateTerm(e.A), validateTerm(e.B))
	case Bound:
		if e.Var == "" {
			return fmt.Errorf("bound() without variable")
		}
	case IsIRI:
		return validateTerm(e.Term)
	case IsLiteral:
		return validateTerm(e.Term)
	case And:
		for _, x := range e.Exprs {
			if err := validateExpr(x); err != nil {
				return err
			}
		}
	case Or:
		for _, x := range e.Exprs {
			if err := validateExpr(x); err != nil {
				return err
			}
		}
	case Not:
		return validateExpr(e.Expr)
	default:
		return fmt.Errorf("unsupported filter expression %T", e)
	}
	return nil
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// variables lists the variables of p in order of first appearance.
func variables(p Pattern) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(t Term) {
		if t.IsVar() && !seen[t.Var] {
			seen[t.Var] = true
			out = append(out, t.Var)
		}
	}
	var walk func(Pattern)
	walk = func(p Pattern) {
		switch p := p.(type) {
		case TriplePattern:
			add(p.S)
			add(p.P)
			add(p.O)
		case BGP:
			for _, t := range p.Triples {
				walk(t)
			}
		case Union:
			for _, br := range p.Branches {
				walk(br)
			}
		case Optional:
			walk(p.Left)
			walk(p.Right)
		case Filter:
			walk(p.Pattern)
		case Distinct:
			walk(p.Pattern)
		}
	}
	walk(p)
	return out
}
