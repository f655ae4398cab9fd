package owl

import (
	"fmt"
	"sort"
	"strings"

	"owlreasoner/internal/iri"
)

// AxiomKind tags the variants of Axiom.
type AxiomKind int

const (
	AxiomSubClassOf AxiomKind = iota
	AxiomEquivalentClasses
	AxiomDisjointClasses
	AxiomClassAssertion
	AxiomObjectPropertyAssertion
	AxiomDataPropertyAssertion
	AxiomFunctionalObjectProperty
	AxiomInverseFunctionalObjectProperty
	AxiomSymmetricObjectProperty
	AxiomTransitiveObjectProperty
	AxiomSubObjectPropertyOf
	AxiomSameIndividual
	AxiomDifferentIndividuals
)

var axiomKindNames = map[AxiomKind]string{
	AxiomSubClassOf:                      "SubClassOf",
	AxiomEquivalentClasses:               "EquivalentClasses",
	AxiomDisjointClasses:                 "DisjointClasses",
	AxiomClassAssertion:                  "ClassAssertion",
	AxiomObjectPropertyAssertion:         "ObjectPropertyAssertion",
	AxiomDataPropertyAssertion:           "DataPropertyAssertion",
	AxiomFunctionalObjectProperty:        "FunctionalObjectProperty",
	AxiomInverseFunctionalObjectProperty: "InverseFunctionalObjectProperty",
	AxiomSymmetricObjectProperty:         "SymmetricObjectProperty",
	AxiomTransitiveObjectProperty:        "TransitiveObjectProperty",
	AxiomSubObjectPropertyOf:             "SubObjectPropertyOf",
	AxiomSameIndividual:                  "SameIndividual",
	AxiomDifferentIndividuals:            "DifferentIndividuals",
}

func (k AxiomKind) String() string {
	if name, ok := axiomKindNames[k]; ok {
		return name
	}
	return "UnknownAxiom"
}

// Axiom is one of the axiom structs below.
type Axiom interface {
	Kind() AxiomKind
	// Key is a canonical rendering used for deduplication.
	Key() string
	// Signature lists the referenced entities with the kind each is used as.
	Signature() []EntityRef
	axiom()
}

// SubClassOf states Sub ⊑ Super.
type SubClassOf struct {
	Sub   ClassExpression
	Super ClassExpression
}

// EquivalentClasses states that all Classes are pairwise equivalent.
type EquivalentClasses struct {
	Classes []ClassExpression
}

// DisjointClasses states that all Classes are pairwise disjoint.
type DisjointClasses struct {
	Classes []ClassExpression
}

// ClassAssertion states Individual ∈ Class.
type ClassAssertion struct {
	Class      ClassExpression
	Individual *iri.IRI
}

// ObjectPropertyAssertion states (Subject, Object) ∈ Property.
type ObjectPropertyAssertion struct {
	Property *iri.IRI
	Subject  *iri.IRI
	Object   *iri.IRI
}

// DataPropertyAssertion states (Subject, Value) ∈ Property.
type DataPropertyAssertion struct {
	Property *iri.IRI
	Subject  *iri.IRI
	Value    Literal
}

// FunctionalObjectProperty states that Property has at most one value.
type FunctionalObjectProperty struct{ Property *iri.IRI }

// InverseFunctionalObjectProperty states that a value identifies its subject.
type InverseFunctionalObjectProperty struct{ Property *iri.IRI }

// SymmetricObjectProperty states that Property is symmetric.
type SymmetricObjectProperty struct{ Property *iri.IRI }

// TransitiveObjectProperty states that Property is transitive.
type TransitiveObjectProperty struct{ Property *iri.IRI }

// SubObjectPropertyOf states Sub ⊑ Super on properties.
type SubObjectPropertyOf struct {
	Sub   *iri.IRI
	Super *iri.IRI
}

// SameIndividual states that all Individuals denote the same object.
type SameIndividual struct {
	Individuals []*iri.IRI
}

// DifferentIndividuals states that all Individuals are pairwise distinct.
type DifferentIndividuals struct {
	Individuals []*iri.IRI
}

func (SubClassOf) Kind() AxiomKind              { return AxiomSubClassOf }
func (EquivalentClasses) Kind() AxiomKind       { return AxiomEquivalentClasses }
func (DisjointClasses) Kind() AxiomKind         { return AxiomDisjointClasses }
func (ClassAssertion) Kind() AxiomKind          { return AxiomClassAssertion }
func (ObjectPropertyAssertion) Kind() AxiomKind { return AxiomObjectPropertyAssertion }
func (DataPropertyAssertion) Kind() AxiomKind   { return AxiomDataPropertyAssertion }
func (FunctionalObjectProperty) Kind() AxiomKind {
	return AxiomFunctionalObjectProperty
}
func (InverseFunctionalObjectProperty) Kind() AxiomKind {
	return AxiomInverseFunctionalObjectProperty
}
func (SymmetricObjectProperty) Kind() AxiomKind  { return AxiomSymmetricObjectProperty }
func (TransitiveObjectProperty) Kind() AxiomKind { return AxiomTransitiveObjectProperty }
func (SubObjectPropertyOf) Kind() AxiomKind      { return AxiomSubObjectPropertyOf }
func (SameIndividual) Kind() AxiomKind           { return AxiomSameIndividual }
func (DifferentIndividuals) Kind() AxiomKind     { return AxiomDifferentIndividuals }

func (SubClassOf) axiom()                      {}
func (EquivalentClasses) axiom()               {}
func (DisjointClasses) axiom()                 {}
func (ClassAssertion) axiom()                  {}
func (ObjectPropertyAssertion) axiom()         {}
func (DataPropertyAssertion) axiom()           {}
func (FunctionalObjectProperty) axiom()        {}
func (InverseFunctionalObjectProperty) axiom() {}
func (SymmetricObjectProperty) axiom()         {}
func (TransitiveObjectProperty) axiom()        {}
func (SubObjectPropertyOf) axiom()             {}
func (SameIndividual) axiom()                  {}
func (DifferentIndividuals) axiom()            {}

func (a SubClassOf) Key() string {
	return "SubClassOf(" + a.Sub.Key() + "," + a.Super.Key() + ")"
}

func (a EquivalentClasses) Key() string { return "EquivalentClasses(" + sortedKeys(a.Classes) + ")" }

func (a DisjointClasses) Key() string { return "DisjointClasses(" + sortedKeys(a.Classes) + ")" }

func (a ClassAssertion) Key() string {
	return "ClassAssertion(" + a.Class.Key() + ",<" + a.Individual.String() + ">)"
}

func (a ObjectPropertyAssertion) Key() string {
	return fmt.Sprintf("ObjectPropertyAssertion(<%s>,<%s>,<%s>)", a.Property, a.Subject, a.Object)
}

func (a DataPropertyAssertion) Key() string {
	return fmt.Sprintf("DataPropertyAssertion(<%s>,<%s>,%s)", a.Property, a.Subject, a.Value.Key())
}

func (a FunctionalObjectProperty) Key() string {
	return "FunctionalObjectProperty(<" + a.Property.String() + ">)"
}

func (a InverseFunctionalObjectProperty) Key() string {
	return "InverseFunctionalObjectProperty(<" + a.Property.String() + ">)"
}

func (a SymmetricObjectProperty) Key() string {
	return "SymmetricObjectProperty(<" + a.Property.String() + ">)"
}

func (a TransitiveObjectProperty) Key() string {
	return "TransitiveObjectProperty(<" + a.Property.String() + ">)"
}

func (a SubObjectPropertyOf) Key() string {
	return "SubObjectPropertyOf(<" + a.Sub.String() + ">,<" + a.Super.String() + ">)"
}

func (a SameIndividual) Key() string { return "SameIndividual(" + sortedIRIs(a.Individuals) + ")" }

func (a DifferentIndividuals) Key() string {
	return "DifferentIndividuals(" + sortedIRIs(a.Individuals) + ")"
}

func sortedIRIs(items []*iri.IRI) string {
	parts := make([]string, len(items))
	for i, item := range items {
		parts[i] = "<" + item.String() + ">"
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}

func (a SubClassOf) Signature() []EntityRef {
	return ExpressionSignature(a.Super, ExpressionSignature(a.Sub, nil))
}

func (a EquivalentClasses) Signature() []EntityRef { return classesSignature(a.Classes) }

func (a DisjointClasses) Signature() []EntityRef { return classesSignature(a.Classes) }

func (a ClassAssertion) Signature() []EntityRef {
	return ExpressionSignature(a.Class, []EntityRef{{IRI: a.Individual, Kind: EntityIndividual}})
}

func (a ObjectPropertyAssertion) Signature() []EntityRef {
	return []EntityRef{
		{IRI: a.Property, Kind: EntityObjectProperty},
		{IRI: a.Subject, Kind: EntityIndividual},
		{IRI: a.Object, Kind: EntityIndividual},
	}
}

func (a DataPropertyAssertion) Signature() []EntityRef {
	return []EntityRef{
		{IRI: a.Property, Kind: EntityDataProperty},
		{IRI: a.Subject, Kind: EntityIndividual},
	}
}

func (a FunctionalObjectProperty) Signature() []EntityRef { return propertySignature(a.Property) }

func (a InverseFunctionalObjectProperty) Signature() []EntityRef {
	return propertySignature(a.Property)
}

func (a SymmetricObjectProperty) Signature() []EntityRef  { return propertySignature(a.Property) }
func (a TransitiveObjectProperty) Signature() []EntityRef { return propertySignature(a.Property) }

func (a SubObjectPropertyOf) Signature() []EntityRef {
	return append(propertySignature(a.Sub), propertySignature(a.Super)...)
}

func (a SameIndividual) Signature() []EntityRef { return individualsSignature(a.Individuals) }

func (a DifferentIndividuals) Signature() []EntityRef { return individualsSignature(a.Individuals) }

func classesSignature(classes []ClassExpression) []EntityRef {
	var out []EntityRef
	for _, c := range classes {
		out = ExpressionSignature(c, out)
	}
	return out
}

func propertySignature(p *iri.IRI) []EntityRef {
	return []EntityRef{{IRI: p, Kind: EntityObjectProperty}}
}

func individualsSignature(items []*iri.IRI) []EntityRef {
	out := make([]EntityRef, len(items))
	for i, item := range items {
		out[i] = EntityRef{IRI: item, Kind: EntityIndividual}
	}
	return out
}

// ValidateAxiom checks that the axiom is structurally complete.
func ValidateAxiom(ax Axiom) error {
	if ax == nil {
		return fmt.Errorf("nil axiom")
	}
	for _, ref := range ax.Signature() {
		if ref.IRI == nil {
			return fmt.Errorf("%s references a nil %s", ax.Kind(), ref.Kind)
		}
	}
	switch a := ax.(type) {
	case SubClassOf:
		if err := ValidateExpression(a.Sub); err != nil {
			return err
		}
		return ValidateExpression(a.Super)
	case EquivalentClasses:
		return validateClassList(ax.Kind(), a.Classes)
	case DisjointClasses:
		return validateClassList(ax.Kind(), a.Classes)
	case ClassAssertion:
		return ValidateExpression(a.Class)
	case SameIndividual:
		if len(a.Individuals) < 2 {
			return fmt.Errorf("%s needs at least two individuals", ax.Kind())
		}
	case DifferentIndividuals:
		if len(a.Individuals) < 2 {
			return fmt.Errorf("%s needs at least two individuals", ax.Kind())
		}
	case DataPropertyAssertion:
		if a.Value.Datatype == nil {
			return fmt.Errorf("%s literal without datatype", ax.Kind())
		}
	case ObjectPropertyAssertion, FunctionalObjectProperty, InverseFunctionalObjectProperty,
		SymmetricObjectProperty, TransitiveObjectProperty, SubObjectPropertyOf:
	default:
		return fmt.Errorf("unsupported axiom %T", ax)
	}
	return nil
}

func validateClassList(kind AxiomKind, classes []ClassExpression) error {
	if len(classes) < 2 {
		return fmt.Errorf("%s needs at least two class expressions", kind)
	}
	for _, c := range classes {
		if err := ValidateExpression(c); err != nil {
			return err
		}
	}
	return nil
}
