package ontology

import (
	"owlreasoner/internal/iri"
	"owlreasoner/internal/owl"
)

type traits uint8

const (
	traitFunctional traits = 1 << iota
	traitInverseFunctional
	traitSymmetric
	traitTransitive
)

// indexes are derived from the axiom list and rebuilt incrementally on every
// add and remove. Empty inner collections are deleted so that an index built
// from scratch compares equal to one maintained incrementally.
type indexes struct {
	subsOf    map[*iri.IRI]iri.Set              // super -> direct named subclasses
	supersOf  map[*iri.IRI]iri.Set              // sub -> direct named superclasses
	instances map[*iri.IRI]iri.Set              // class -> individuals
	types     map[*iri.IRI]iri.Set              // individual -> classes
	objects   map[*iri.IRI]map[*iri.IRI]iri.Set // property -> subject -> objects
	subjects  map[*iri.IRI]map[*iri.IRI]iri.Set // property -> object -> subjects
	data      map[*iri.IRI]map[*iri.IRI][]owl.Literal
	traits    map[*iri.IRI]traits
	superProp map[*iri.IRI]iri.Set // property -> direct told superproperties
	counts    map[*iri.IRI]int     // property -> assertion count
	typeRefs  map[typePair]int     // assertions naming each (individual, class)
}

type typePair struct{ individual, class *iri.IRI }

func newIndexes() *indexes {
	return &indexes{
		subsOf:    make(map[*iri.IRI]iri.Set),
		supersOf:  make(map[*iri.IRI]iri.Set),
		instances: make(map[*iri.IRI]iri.Set),
		types:     make(map[*iri.IRI]iri.Set),
		objects:   make(map[*iri.IRI]map[*iri.IRI]iri.Set),
		subjects:  make(map[*iri.IRI]map[*iri.IRI]iri.Set),
		data:      make(map[*iri.IRI]map[*iri.IRI][]owl.Literal),
		traits:    make(map[*iri.IRI]traits),
		superProp: make(map[*iri.IRI]iri.Set),
		counts:    make(map[*iri.IRI]int),
		typeRefs:  make(map[typePair]int),
	}
}

func addTo(m map[*iri.IRI]iri.Set, k, v *iri.IRI) {
	s, ok := m[k]
	if !ok {
		s = make(iri.Set)
		m[k] = s
	}
	s.Add(v)
}

func removeFrom(m map[*iri.IRI]iri.Set, k, v *iri.IRI) {
	if s, ok := m[k]; ok {
		s.Remove(v)
		if s.Len() == 0 {
			delete(m, k)
		}
	}
}

func addNested(m map[*iri.IRI]map[*iri.IRI]iri.Set, p, k, v *iri.IRI) {
	inner, ok := m[p]
	if !ok {
		inner = make(map[*iri.IRI]iri.Set)
		m[p] = inner
	}
	addTo(inner, k, v)
}

func removeNested(m map[*iri.IRI]map[*iri.IRI]iri.Set, p, k, v *iri.IRI) {
	if inner, ok := m[p]; ok {
		removeFrom(inner, k, v)
		if len(inner) == 0 {
			delete(m, p)
		}
	}
}

func namedPair(a, b owl.ClassExpression) (*iri.IRI, *iri.IRI, bool) {
	sub, ok1 := a.(owl.NamedClass)
	sup, ok2 := b.(owl.NamedClass)
	if !ok1 || !ok2 {
		return nil, nil, false
	}
	return sub.IRI, sup.IRI, true
}

func traitOf(ax owl.Axiom) (*iri.IRI, traits, bool) {
	switch a := ax.(type) {
	case owl.FunctionalObjectProperty:
		return a.Property, traitFunctional, true
	case owl.InverseFunctionalObjectProperty:
		return a.Property, traitInverseFunctional, true
	case owl.SymmetricObjectProperty:
		return a.Property, traitSymmetric, true
	case owl.TransitiveObjectProperty:
		return a.Property, traitTransitive, true
	}
	return nil, 0, false
}

func (ix *indexes) add(ax owl.Axiom) {
	if p, t, ok := traitOf(ax); ok {
		ix.traits[p] |= t
		return
	}
	switch a := ax.(type) {
	case owl.SubClassOf:
		if sub, sup, ok := namedPair(a.Sub, a.Super); ok {
			addTo(ix.subsOf, sup, sub)
			addTo(ix.supersOf, sub, sup)
		}
	case owl.ClassAssertion:
		for _, c := range owl.NamedConjuncts(a.Class) {
			ix.typeRefs[typePair{a.Individual, c}]++
			addTo(ix.instances, c, a.Individual)
			addTo(ix.types, a.Individual, c)
		}
	case owl.ObjectPropertyAssertion:
		addNested(ix.objects, a.Property, a.Subject, a.Object)
		addNested(ix.subjects, a.Property, a.Object, a.Subject)
		ix.counts[a.Property]++
	case owl.DataPropertyAssertion:
		inner, ok := ix.data[a.Property]
		if !ok {
			inner = make(map[*iri.IRI][]owl.Literal)
			ix.data[a.Property] = inner
		}
		inner[a.Subject] = append(inner[a.Subject], a.Value)
		ix.counts[a.Property]++
	case owl.SubObjectPropertyOf:
		addTo(ix.superProp, a.Sub, a.Super)
	}
}

func (ix *indexes) remove(ax owl.Axiom) {
	if p, t, ok := traitOf(ax); ok {
		ix.traits[p] &^= t
		if ix.traits[p] == 0 {
			delete(ix.traits, p)
		}
		return
	}
	switch a := ax.(type) {
	case owl.SubClassOf:
		if sub, sup, ok := namedPair(a.Sub, a.Super); ok {
			removeFrom(ix.subsOf, sup, sub)
			removeFrom(ix.supersOf, sub, sup)
		}
	case owl.ClassAssertion:
		for _, c := range owl.NamedConjuncts(a.Class) {
			k := typePair{a.Individual, c}
			if ix.typeRefs[k]--; ix.typeRefs[k] > 0 {
				continue
			}
			delete(ix.typeRefs, k)
			removeFrom(ix.instances, c, a.Individual)
			removeFrom(ix.types, a.Individual, c)
		}
	case owl.ObjectPropertyAssertion:
		removeNested(ix.objects, a.Property, a.Subject, a.Object)
		removeNested(ix.subjects, a.Property, a.Object, a.Subject)
		ix.decrement(a.Property)
	case owl.DataPropertyAssertion:
		inner := ix.data[a.Property]
		values := inner[a.Subject]
		for i, v := range values {
			if v.Equal(a.Value) {
				values = append(values[:i:i], values[i+1:]...)
				break
			}
		}
		if len(values) == 0 {
			delete(inner, a.Subject)
		} else {
			inner[a.Subject] = values
		}
		if len(inner) == 0 {
			delete(ix.data, a.Property)
		}
		ix.decrement(a.Property)
	case owl.SubObjectPropertyOf:
		removeFrom(ix.superProp, a.Sub, a.Super)
	}
}

func (ix *indexes) decrement(p *iri.IRI) {
	ix.counts[p]--
	if ix.counts[p] <= 0 {
		delete(ix.counts, p)
	}
}
