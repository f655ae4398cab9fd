// Package owl defines the OWL2 data model: entities, class expressions,
// literals and axioms. Class expressions and axioms are closed unions; every
// consumer dispatches on them with an exhaustive type switch.
package owl

import (
	"fmt"
	"sort"
	"strings"

	"owlreasoner/internal/iri"
)

// EntityKind distinguishes the kinds of declared entities.
type EntityKind int

const (
	EntityClass EntityKind = iota
	EntityObjectProperty
	EntityDataProperty
	EntityIndividual
)

func (k EntityKind) String() string {
	switch k {
	case EntityClass:
		return "class"
	case EntityObjectProperty:
		return "object property"
	case EntityDataProperty:
		return "data property"
	case EntityIndividual:
		return "named individual"
	default:
		return "unknown"
	}
}

// EntityRef is an IRI together with the kind it is used as.
type EntityRef struct {
	IRI  *iri.IRI
	Kind EntityKind
}

// ExprKind tags the variants of ClassExpression.
type ExprKind int

const (
	ExprClass ExprKind = iota
	ExprIntersection
	ExprUnion
	ExprComplement
	ExprSomeValuesFrom
	ExprAllValuesFrom
	ExprCardinality
)

// ClassExpression is one of NamedClass, ObjectIntersectionOf, ObjectUnionOf,
// ObjectComplementOf, ObjectSomeValuesFrom, ObjectAllValuesFrom or
// ObjectCardinality.
type ClassExpression interface {
	Kind() ExprKind
	// Key is a canonical rendering; equal expressions have equal keys.
	Key() string
	classExpression()
}

// NamedClass references a declared class. owl:Thing and owl:Nothing are
// named classes.
type NamedClass struct {
	IRI *iri.IRI
}

// ObjectIntersectionOf is the conjunction of its operands.
type ObjectIntersectionOf struct {
	Operands []ClassExpression
}

// ObjectUnionOf is the disjunction of its operands.
type ObjectUnionOf struct {
	Operands []ClassExpression
}

// ObjectComplementOf is the negation of its operand.
type ObjectComplementOf struct {
	Operand ClassExpression
}

// ObjectSomeValuesFrom is the existential restriction ∃P.F.
type ObjectSomeValuesFrom struct {
	Property *iri.IRI
	Filler   ClassExpression
}

// ObjectAllValuesFrom is the universal restriction ∀P.F.
type ObjectAllValuesFrom struct {
	Property *iri.IRI
	Filler   ClassExpression
}

// CardinalityBound selects min, max or exact cardinality.
type CardinalityBound int

const (
	MinCardinality CardinalityBound = iota
	MaxCardinality
	ExactCardinality
)

func (b CardinalityBound) String() string {
	switch b {
	case MinCardinality:
		return "min"
	case MaxCardinality:
		return "max"
	default:
		return "exact"
	}
}

// ObjectCardinality is a qualified number restriction. A nil Filler means
// owl:Thing.
type ObjectCardinality struct {
	Bound    CardinalityBound
	N        int
	Property *iri.IRI
	Filler   ClassExpression
}

func (NamedClass) Kind() ExprKind           { return ExprClass }
func (ObjectIntersectionOf) Kind() ExprKind { return ExprIntersection }
func (ObjectUnionOf) Kind() ExprKind        { return ExprUnion }
func (ObjectComplementOf) Kind() ExprKind   { return ExprComplement }
func (ObjectSomeValuesFrom) Kind() ExprKind { return ExprSomeValuesFrom }
func (ObjectAllValuesFrom) Kind() ExprKind  { return ExprAllValuesFrom }
func (ObjectCardinality) Kind() ExprKind    { return ExprCardinality }

func (NamedClass) classExpression()           {}
func (ObjectIntersectionOf) classExpression() {}
func (ObjectUnionOf) classExpression()        {}
func (ObjectComplementOf) classExpression()   {}
func (ObjectSomeValuesFrom) classExpression() {}
func (ObjectAllValuesFrom) classExpression()  {}
func (ObjectCardinality) classExpression()    {}

func (c NamedClass) Key() string { return "<" + c.IRI.String() + ">" }

func (c ObjectIntersectionOf) Key() string { return "and(" + sortedKeys(c.Operands) + ")" }

func (c ObjectUnionOf) Key() string { return "or(" + sortedKeys(c.Operands) + ")" }

func (c ObjectComplementOf) Key() string { return "not(" + c.Operand.Key() + ")" }

func (c ObjectSomeValuesFrom) Key() string {
	return "some(<" + c.Property.String() + ">," + c.Filler.Key() + ")"
}

func (c ObjectAllValuesFrom) Key() string {
	return "all(<" + c.Property.String() + ">," + c.Filler.Key() + ")"
}

func (c ObjectCardinality) Key() string {
	filler := "<" + iri.OWLThing + ">"
	if c.Filler != nil {
		filler = c.Filler.Key()
	}
	return fmt.Sprintf("%s(%d,<%s>,%s)", c.Bound, c.N, c.Property.String(), filler)
}

func sortedKeys(ops []ClassExpression) string {
	keys := make([]string, len(ops))
	for i, op := range ops {
		keys[i] = op.Key()
	}
	sort.Strings(keys)
	return strings.Join(keys, ",")
}

// Class is shorthand for NamedClass{IRI: i}.
func Class(i *iri.IRI) NamedClass { return NamedClass{IRI: i} }

// And builds an intersection.
func And(ops ...ClassExpression) ObjectIntersectionOf { return ObjectIntersectionOf{Operands: ops} }

// Or builds a union.
func Or(ops ...ClassExpression) ObjectUnionOf { return ObjectUnionOf{Operands: ops} }

// Not builds a complement.
func Not(op ClassExpression) ObjectComplementOf { return ObjectComplementOf{Operand: op} }

// Some builds an existential restriction.
func Some(p *iri.IRI, filler ClassExpression) ObjectSomeValuesFrom {
	return ObjectSomeValuesFrom{Property: p, Filler: filler}
}

// All builds a universal restriction.
func All(p *iri.IRI, filler ClassExpression) ObjectAllValuesFrom {
	return ObjectAllValuesFrom{Property: p, Filler: filler}
}

// Min builds a qualified at-least restriction.
func Min(n int, p *iri.IRI, filler ClassExpression) ObjectCardinality {
	return ObjectCardinality{Bound: MinCardinality, N: n, Property: p, Filler: filler}
}

// Max builds a qualified at-most restriction.
func Max(n int, p *iri.IRI, filler ClassExpression) ObjectCardinality {
	return ObjectCardinality{Bound: MaxCardinality, N: n, Property: p, Filler: filler}
}

// Exactly builds a qualified exact restriction.
func Exactly(n int, p *iri.IRI, filler ClassExpression) ObjectCardinality {
	return ObjectCardinality{Bound: ExactCardinality, N: n, Property: p, Filler: filler}
}

// NamedConjuncts returns the named classes ce is syntactically a subclass
// of: ce itself when named, or the named operands of an intersection,
// descending into nested intersections. Each class appears once.
func NamedConjuncts(ce ClassExpression) []*iri.IRI {
	var out []*iri.IRI
	seen := make(map[*iri.IRI]bool)
	var walk func(ClassExpression)
	walk = func(ce ClassExpression) {
		switch c := ce.(type) {
		case NamedClass:
			if !seen[c.IRI] {
				seen[c.IRI] = true
				out = append(out, c.IRI)
			}
		case ObjectIntersectionOf:
			for _, op := range c.Operands {
				walk(op)
			}
		}
	}
	walk(ce)
	return out
}

// ExpressionSignature appends the entities referenced by ce to out.
func ExpressionSignature(ce ClassExpression, out []EntityRef) []EntityRef {
	switch c := ce.(type) {
	case NamedClass:
		return append(out, EntityRef{IRI: c.IRI, Kind: EntityClass})
	case ObjectIntersectionOf:
		for _, op := range c.Operands {
			out = ExpressionSignature(op, out)
		}
	case ObjectUnionOf:
		for _, op := range c.Operands {
			out = ExpressionSignature(op, out)
		}
	case ObjectComplementOf:
		out = ExpressionSignature(c.Operand, out)
	case ObjectSomeValuesFrom:
		out = append(out, EntityRef{IRI: c.Property, Kind: EntityObjectProperty})
		out = ExpressionSignature(c.Filler, out)
	case ObjectAllValuesFrom:
		out = append(out, EntityRef{IRI: c.Property, Kind: EntityObjectProperty})
		out = ExpressionSignature(c.Filler, out)
	case ObjectCardinality:
		out = append(out, EntityRef{IRI: c.Property, Kind: EntityObjectProperty})
		if c.Filler != nil {
			out = ExpressionSignature(c.Filler, out)
		}
	}
	return out
}

// ValidateExpression checks structural well-formedness: non-nil operands,
// non-empty n-ary constructors and non-negative cardinalities.
func ValidateExpression(ce ClassExpression) error {
	switch c := ce.(type) {
	case nil:
		return fmt.Errorf("nil class expression")
	case NamedClass:
		if c.IRI == nil {
			return fmt.Errorf("named class without IRI")
		}
	case ObjectIntersectionOf:
		return validateOperands("intersection", c.Operands)
	case ObjectUnionOf:
		return validateOperands("union", c.Operands)
	case ObjectComplementOf:
		return ValidateExpression(c.Operand)
	case ObjectSomeValuesFrom:
		if c.Property == nil {
			return fmt.Errorf("some-values-from without property")
		}
		return ValidateExpression(c.Filler)
	case ObjectAllValuesFrom:
		if c.Property == nil {
			return fmt.Errorf("all-values-from without property")
		}
		return ValidateExpression(c.Filler)
	case ObjectCardinality:
		if c.Property == nil {
			return fmt.Errorf("cardinality restriction without property")
		}
		if c.N < 0 {
			return fmt.Errorf("negative cardinality %d", c.N)
		}
		if c.Filler != nil {
			return ValidateExpression(c.Filler)
		}
	default:
		return fmt.Errorf("unsupported class expression %T", ce)
	}
	return nil
}

func validateOperands(name string, ops []ClassExpression) error {
	if len(ops) == 0 {
		return fmt.Errorf("empty %s", name)
	}
	for _, op := range ops {
		if err := ValidateExpression(op); err != nil {
			return err
		}
	}
	return nil
}
