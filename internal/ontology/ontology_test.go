package ontology

import (
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"owlreasoner/internal/errs"
	"owlreasoner/internal/iri"
	"owlreasoner/internal/owl"
)

const ns = "http://example.org/zoo#"

type fixture struct {
	reg *iri.Registry
	ont *Ontology
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	reg := iri.NewRegistry()
	return &fixture{reg: reg, ont: New(reg, opts...)}
}

func (f *fixture) iri(local string) *iri.IRI { return f.reg.MustGet(ns + local) }

func (f *fixture) class(t *testing.T, local string) owl.NamedClass {
	t.Helper()
	i := f.iri(local)
	require.NoError(t, f.ont.AddClass(i))
	return owl.Class(i)
}

func (f *fixture) individual(t *testing.T, local string) *iri.IRI {
	t.Helper()
	i := f.iri(local)
	require.NoError(t, f.ont.AddNamedIndividual(i))
	return i
}

func TestStrictModeRejectsUndeclared(t *testing.T) {
	f := newFixture(t)
	dog := f.class(t, "Dog")

	err := f.ont.AddAxiom(owl.SubClassOf{Sub: dog, Super: owl.Class(f.iri("Animal"))})

	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrUnknownEntityReference)
	assert.Contains(t, err.Error(), "Animal")
	assert.Empty(t, f.ont.Axioms())
	assert.Equal(t, ModeStrict, f.ont.Mode())
}

func TestAutoDeclareMode(t *testing.T) {
	f := newFixture(t, WithMode(ModeAutoDeclare))

	require.NoError(t, f.ont.AddAxiom(owl.ObjectPropertyAssertion{
		Property: f.iri("hasOwner"), Subject: f.iri("rex"), Object: f.iri("alice"),
	}))

	assert.True(t, f.ont.IsDeclared(f.iri("hasOwner"), owl.EntityObjectProperty))
	assert.True(t, f.ont.IsDeclared(f.iri("rex"), owl.EntityIndividual))
	assert.Equal(t, 2, len(f.ont.Individuals()))
}

func TestDuplicateAxiomIsNonFatal(t *testing.T) {
	f := newFixture(t)
	dog, animal := f.class(t, "Dog"), f.class(t, "Animal")
	ax := owl.SubClassOf{Sub: dog, Super: animal}

	require.NoError(t, f.ont.AddAxiom(ax))
	version := f.ont.Version()

	err := f.ont.AddAxiom(owl.SubClassOf{Sub: dog, Super: animal})
	require.Error(t, err)
	assert.True(t, errs.IsNonFatal(err))
	assert.Len(t, f.ont.Axioms(), 1)
	assert.Equal(t, version, f.ont.Version())
}

func TestThingAndNothingAlwaysDeclared(t *testing.T) {
	f := newFixture(t)
	dog := f.class(t, "Dog")
	thing := owl.Class(f.reg.MustGet(iri.OWLThing))

	require.NoError(t, f.ont.AddAxiom(owl.SubClassOf{Sub: dog, Super: thing}))
	assert.Len(t, f.ont.Classes(), 1)
}

func TestIndexes(t *testing.T) {
	f := newFixture(t)
	dog, animal := f.class(t, "Dog"), f.class(t, "Animal")
	rex, alice := f.individual(t, "rex"), f.individual(t, "alice")
	owner := f.iri("hasOwner")
	age := f.iri("age")
	require.NoError(t, f.ont.AddObjectProperty(owner))
	require.NoError(t, f.ont.AddDataProperty(age))
	xsdInt := f.reg.MustGet(iri.XSDInteger)

	axioms := []owl.Axiom{
		owl.SubClassOf{Sub: dog, Super: animal},
		owl.ClassAssertion{Class: dog, Individual: rex},
		owl.ObjectPropertyAssertion{Property: owner, Subject: rex, Object: alice},
		owl.DataPropertyAssertion{Property: age, Subject: rex, Value: owl.Literal{Lexical: "3", Datatype: xsdInt}},
		owl.FunctionalObjectProperty{Property: owner},
	}
	for _, ax := range axioms {
		require.NoError(t, f.ont.AddAxiom(ax))
	}

	assert.True(t, f.ont.GetClassInstances(dog.IRI).Has(rex))
	assert.Equal(t, 0, f.ont.GetClassInstances(animal.IRI).Len(), "only asserted members are indexed")
	assert.True(t, f.ont.Types(rex).Has(dog.IRI))
	assert.True(t, f.ont.SubClasses(animal.IRI).Has(dog.IRI))
	assert.True(t, f.ont.SuperClasses(dog.IRI).Has(animal.IRI))
	assert.True(t, f.ont.Objects(owner, rex).Has(alice))
	assert.True(t, f.ont.Subjects(owner, alice).Has(rex))
	assert.Len(t, f.ont.Edges(owner), 1)
	assert.Equal(t, "3", f.ont.DataValues(age, rex)[0].Lexical)
	assert.Len(t, f.ont.DataEdges(age), 1)
	assert.True(t, f.ont.IsFunctional(owner))
	assert.False(t, f.ont.IsTransitive(owner))
	assert.True(t, f.ont.IsDataProperty(age))
	assert.Equal(t, 1, f.ont.Estimate(owner))
	assert.Equal(t, 1, f.ont.Estimate(f.reg.MustGet(iri.RDFType)))
	assert.Equal(t, []*iri.IRI{dog.IRI}, f.ont.TypedClasses())
	assert.Equal(t, []*iri.IRI{owner}, f.ont.ObjectPredicates())
	assert.Equal(t, []*iri.IRI{age}, f.ont.DataPredicates())
	assert.Len(t, f.ont.SubClassAxioms(), 1)
	assert.Len(t, f.ont.ClassAssertions(), 1)
	assert.Len(t, f.ont.ObjectPropertyAssertions(), 1)
	require.NoError(t, f.ont.CheckIndexes())

	for _, ax := range axioms {
		removed, err := f.ont.RemoveAxiom(ax)
		require.NoError(t, err)
		assert.True(t, removed)
		require.NoError(t, f.ont.CheckIndexes())
	}
	assert.Equal(t, 0, f.ont.GetClassInstances(dog.IRI).Len())
	assert.False(t, f.ont.IsFunctional(owner))
	assert.Equal(t, 0, f.ont.Estimate(owner))
	assert.Empty(t, f.ont.Axioms())

	removed, err := f.ont.RemoveAxiom(axioms[0])
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestIndexesIntersectionAssertions(t *testing.T) {
	f := newFixture(t)
	dog, friendly := f.class(t, "Dog"), f.class(t, "Friendly")
	rex := f.individual(t, "rex")

	both := owl.ClassAssertion{Class: owl.And(dog, friendly), Individual: rex}
	plain := owl.ClassAssertion{Class: dog, Individual: rex}
	require.NoError(t, f.ont.AddAxiom(both))
	require.NoError(t, f.ont.AddAxiom(plain))
	require.NoError(t, f.ont.CheckIndexes())
	assert.True(t, f.ont.GetClassInstances(dog.IRI).Has(rex))
	assert.True(t, f.ont.GetClassInstances(friendly.IRI).Has(rex))
	assert.Equal(t, 2, f.ont.Types(rex).Len())

	_, err := f.ont.RemoveAxiom(plain)
	require.NoError(t, err)
	require.NoError(t, f.ont.CheckIndexes())
	assert.True(t, f.ont.GetClassInstances(dog.IRI).Has(rex), "still named by the intersection")

	_, err = f.ont.RemoveAxiom(both)
	require.NoError(t, err)
	require.NoError(t, f.ont.CheckIndexes())
	assert.Equal(t, 0, f.ont.Types(rex).Len())
}

func TestRemoveKeepsPositionsConsistent(t *testing.T) {
	f := newFixture(t)
	a, b, c := f.class(t, "A"), f.class(t, "B"), f.class(t, "C")
	first := owl.SubClassOf{Sub: a, Super: b}
	second := owl.SubClassOf{Sub: b, Super: c}
	third := owl.SubClassOf{Sub: a, Super: c}
	for _, ax := range []owl.Axiom{first, second, third} {
		require.NoError(t, f.ont.AddAxiom(ax))
	}

	_, err := f.ont.RemoveAxiom(first)
	require.NoError(t, err)
	require.NoError(t, f.ont.CheckIndexes())
	assert.True(t, f.ont.ContainsAxiom(third))
	assert.False(t, f.ont.ContainsAxiom(first))
	assert.Len(t, f.ont.AxiomsOfKind(owl.AxiomSubClassOf), 2)
}

func TestMutationListeners(t *testing.T) {
	f := newFixture(t)
	var calls atomic.Int32
	var last Mutation
	f.ont.OnMutation(func(m Mutation) {
		calls.Add(1)
		last = m
	})

	dog := f.class(t, "Dog")
	rex := f.individual(t, "rex")
	ax := owl.ClassAssertion{Class: dog, Individual: rex}
	require.NoError(t, f.ont.AddAxiom(ax))
	assert.Equal(t, MutationAddAxiom, last.Kind)

	// Redeclaring and duplicates do not notify.
	require.NoError(t, f.ont.AddClass(dog.IRI))
	_ = f.ont.AddAxiom(ax)
	assert.Equal(t, int32(3), calls.Load())

	_, err := f.ont.RemoveAxiom(ax)
	require.NoError(t, err)
	assert.Equal(t, MutationRemoveAxiom, last.Kind)
	assert.Equal(t, f.ont.Version(), last.Version)
}

func TestInvalidAxiomRejected(t *testing.T) {
	f := newFixture(t)
	err := f.ont.AddAxiom(owl.SubClassOf{Sub: owl.Class(f.iri("A"))})
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)
	assert.Error(t, f.ont.AddClass(nil))
}

func TestStats(t *testing.T) {
	f := newFixture(t)
	f.class(t, "A")
	f.individual(t, "a")
	require.NoError(t, f.ont.AddObjectProperty(f.iri("p")))

	st := f.ont.Stats()
	assert.Equal(t, 1, st.Classes)
	assert.Equal(t, 1, st.Individuals)
	assert.Equal(t, 1, st.ObjectProperties)
	assert.Equal(t, uint64(3), st.Version)
}

const zooManifest = `
prefixes:
  ex: "http://example.org/zoo#"
classes: [ex:Animal, ex:Dog, ex:Cat, ex:Person, ex:PetOwner]
object_properties: [ex:hasOwner, ex:owns]
data_properties: [ex:name]
individuals: [ex:rex, ex:alice]
axioms:
  - subclass: {sub: ex:Dog, super: ex:Animal}
  - subclass: {sub: ex:Dog, super: ex:Animal}
  - disjoint: [ex:Dog, ex:Cat]
  - equivalent:
      - ex:PetOwner
      - and: [ex:Person, {some: {property: ex:owns, filler: ex:Animal}}]
  - subclass: {sub: ex:Cat, super: {max: {n: 1, property: ex:hasOwner}}}
  - type: {individual: ex:rex, class: ex:Dog}
  - fact: {subject: ex:rex, property: ex:hasOwner, object: ex:alice}
  - value: {subject: ex:rex, property: ex:name, value: Rex}
  - functional: ex:hasOwner
  - transitive: ex:owns
  - different: [ex:rex, ex:alice]
`

func TestLoadManifest(t *testing.T) {
	reg := iri.NewRegistry()
	ont, err := LoadManifest(strings.NewReader(zooManifest), reg)
	require.NoError(t, err)

	st := ont.Stats()
	assert.Equal(t, 5, st.Classes)
	assert.Equal(t, 10, st.Axioms, "duplicate subclass axiom is skipped")

	owner := reg.MustGet(ns + "PetOwner")
	var equiv owl.EquivalentClasses
	for _, ax := range ont.AxiomsOfKind(owl.AxiomEquivalentClasses) {
		equiv = ax.(owl.EquivalentClasses)
	}
	require.Len(t, equiv.Classes, 2)
	assert.Equal(t, owl.Class(owner).Key(), equiv.Classes[0].Key())
	assert.IsType(t, owl.ObjectIntersectionOf{}, equiv.Classes[1])

	name := reg.MustGet(ns + "name")
	values := ont.DataValues(name, reg.MustGet(ns+"rex"))
	require.Len(t, values, 1)
	assert.Equal(t, iri.XSDString, values[0].Datatype.String())
	assert.True(t, ont.IsTransitive(reg.MustGet(ns+"owns")))
	require.NoError(t, ont.CheckIndexes())
}

func TestLoadManifestErrors(t *testing.T) {
	tests := []struct {
		name     string
		manifest string
	}{
		{"unknown field", "colours: [red]"},
		{"unknown axiom", "classes: [\"http://x.org/A\"]\naxioms:\n  - frobnicate: x"},
		{"undeclared in strict", "axioms:\n  - subclass: {sub: \"http://x.org/A\", super: \"http://x.org/B\"}"},
		{"bad constructor", "classes: [\"http://x.org/A\"]\naxioms:\n  - subclass: {sub: \"http://x.org/A\", super: {xor: []}}"},
		{"malformed iri", "classes: [\"no scheme\"]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadManifest(strings.NewReader(tt.manifest), iri.NewRegistry())
			assert.Error(t, err)
		})
	}
}

func TestLoadManifestAutoDeclare(t *testing.T) {
	m := "strict: false\naxioms:\n  - subclass: {sub: \"http://x.org/A\", super: \"http://x.org/B\"}"
	ont, err := LoadManifest(strings.NewReader(m), iri.NewRegistry())
	require.NoError(t, err)
	assert.Equal(t, ModeAutoDeclare, ont.Mode())
	assert.Len(t, ont.Classes(), 2)
}
