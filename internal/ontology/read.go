package ontology

import (
	"owlreasoner/internal/iri"
	"owlreasoner/internal/owl"
)

// Every accessor returns a copy; callers may keep results after further
// mutations.

func (o *Ontology) entities(kind owl.EntityKind) []*iri.IRI {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return append([]*iri.IRI(nil), o.order[kind]...)
}

// Classes returns declared classes in declaration order.
func (o *Ontology) Classes() []*iri.IRI { return o.entities(owl.EntityClass) }

// ObjectProperties returns declared object properties in declaration order.
func (o *Ontology) ObjectProperties() []*iri.IRI { return o.entities(owl.EntityObjectProperty) }

// DataProperties returns declared data properties in declaration order.
func (o *Ontology) DataProperties() []*iri.IRI { return o.entities(owl.EntityDataProperty) }

// Individuals returns declared named individuals in declaration order.
func (o *Ontology) Individuals() []*iri.IRI { return o.entities(owl.EntityIndividual) }

// Axioms returns all axioms in insertion order.
func (o *Ontology) Axioms() []owl.Axiom {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return append([]owl.Axiom(nil), o.axioms...)
}

// AxiomsOfKind returns the axioms of one kind in insertion order.
func (o *Ontology) AxiomsOfKind(kind owl.AxiomKind) []owl.Axiom {
	o.mu.RLock()
	defer o.mu.RUnlock()
	var out []owl.Axiom
	for _, ax := range o.axioms {
		if ax.Kind() == kind {
			out = append(out, ax)
		}
	}
	return out
}

// SubClassAxioms returns every SubClassOf axiom.
func (o *Ontology) SubClassAxioms() []owl.SubClassOf {
	var out []owl.SubClassOf
	for _, ax := range o.AxiomsOfKind(owl.AxiomSubClassOf) {
		out = append(out, ax.(owl.SubClassOf))
	}
	return out
}

// ClassAssertions returns every ClassAssertion axiom.
func (o *Ontology) ClassAssertions() []owl.ClassAssertion {
	var out []owl.ClassAssertion
	for _, ax := range o.AxiomsOfKind(owl.AxiomClassAssertion) {
		out = append(out, ax.(owl.ClassAssertion))
	}
	return out
}

// ObjectPropertyAssertions returns every ObjectPropertyAssertion axiom.
func (o *Ontology) ObjectPropertyAssertions() []owl.ObjectPropertyAssertion {
	var out []owl.ObjectPropertyAssertion
	for _, ax := range o.AxiomsOfKind(owl.AxiomObjectPropertyAssertion) {
		out = append(out, ax.(owl.ObjectPropertyAssertion))
	}
	return out
}

func cloneOf(m map[*iri.IRI]iri.Set, k *iri.IRI) iri.Set {
	if s, ok := m[k]; ok {
		return s.Clone()
	}
	return make(iri.Set)
}

// GetClassInstances returns the individuals asserted to be members of the
// named class. Entailed members are the reasoner's concern.
func (o *Ontology) GetClassInstances(class *iri.IRI) iri.Set {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return cloneOf(o.ix.instances, class)
}

// Instances is GetClassInstances under the query source name.
func (o *Ontology) Instances(class *iri.IRI) iri.Set { return o.GetClassInstances(class) }

// Types returns the named classes an individual is asserted to belong to,
// counting the named conjuncts of an asserted intersection.
func (o *Ontology) Types(individual *iri.IRI) iri.Set {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return cloneOf(o.ix.types, individual)
}

// TypedClasses returns the classes that have at least one asserted member.
func (o *Ontology) TypedClasses() []*iri.IRI {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]*iri.IRI, 0, len(o.ix.instances))
	for c := range o.ix.instances {
		out = append(out, c)
	}
	iri.SortIRIs(out)
	return out
}

// SubClasses returns the direct told named subclasses of super.
func (o *Ontology) SubClasses(super *iri.IRI) iri.Set {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return cloneOf(o.ix.subsOf, super)
}

// SuperClasses returns the direct told named superclasses of sub.
func (o *Ontology) SuperClasses(sub *iri.IRI) iri.Set {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return cloneOf(o.ix.supersOf, sub)
}

// SubClassPairs returns every told (sub, super) pair between named classes.
func (o *Ontology) SubClassPairs() [][2]*iri.IRI {
	o.mu.RLock()
	defer o.mu.RUnlock()
	var out [][2]*iri.IRI
	for sub, supers := range o.ix.supersOf {
		for sup := range supers {
			out = append(out, [2]*iri.IRI{sub, sup})
		}
	}
	return out
}

// Objects returns the objects related to subject by property.
func (o *Ontology) Objects(property, subject *iri.IRI) iri.Set {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return cloneOf(o.ix.objects[property], subject)
}

// Subjects returns the subjects related to object by property.
func (o *Ontology) Subjects(property, object *iri.IRI) iri.Set {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return cloneOf(o.ix.subjects[property], object)
}

// Edges returns every asserted (subject, object) pair of property.
func (o *Ontology) Edges(property *iri.IRI) []owl.ObjectPropertyAssertion {
	o.mu.RLock()
	defer o.mu.RUnlock()
	var out []owl.ObjectPropertyAssertion
	for s, objs := range o.ix.objects[property] {
		for obj := range objs {
			out = append(out, owl.ObjectPropertyAssertion{Property: property, Subject: s, Object: obj})
		}
	}
	return out
}

// ObjectPredicates returns object properties that have assertions.
func (o *Ontology) ObjectPredicates() []*iri.IRI {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]*iri.IRI, 0, len(o.ix.objects))
	for p := range o.ix.objects {
		out = append(out, p)
	}
	iri.SortIRIs(out)
	return out
}

// DataValues returns the literals asserted for subject under property.
func (o *Ontology) DataValues(property, subject *iri.IRI) []owl.Literal {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return append([]owl.Literal(nil), o.ix.data[property][subject]...)
}

// DataEdges returns every data assertion of property.
func (o *Ontology) DataEdges(property *iri.IRI) []owl.DataPropertyAssertion {
	o.mu.RLock()
	defer o.mu.RUnlock()
	var out []owl.DataPropertyAssertion
	for s, values := range o.ix.data[property] {
		for _, v := range values {
			out = append(out, owl.DataPropertyAssertion{Property: property, Subject: s, Value: v})
		}
	}
	return out
}

// DataPredicates returns data properties that have assertions.
func (o *Ontology) DataPredicates() []*iri.IRI {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]*iri.IRI, 0, len(o.ix.data))
	for p := range o.ix.data {
		out = append(out, p)
	}
	iri.SortIRIs(out)
	return out
}

// IsDataProperty reports whether p is declared as a data property.
func (o *Ontology) IsDataProperty(p *iri.IRI) bool { return o.IsDeclared(p, owl.EntityDataProperty) }

// Estimate returns the number of facts stored under predicate p. rdf:type and
// rdfs:subClassOf count class assertions and told subclass pairs.
func (o *Ontology) Estimate(p *iri.IRI) int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	switch p.String() {
	case iri.RDFType:
		n := 0
		for _, s := range o.ix.instances {
			n += s.Len()
		}
		return n
	case iri.RDFSSubClassOf:
		n := 0
		for _, s := range o.ix.supersOf {
			n += s.Len()
		}
		return n
	}
	return o.ix.counts[p]
}

// =============================================================================
// PROPERTY CHARACTERISTICS
// =============================================================================

func (o *Ontology) hasTrait(p *iri.IRI, t traits) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.ix.traits[p]&t != 0
}

func (o *Ontology) IsFunctional(p *iri.IRI) bool { return o.hasTrait(p, traitFunctional) }

func (o *Ontology) IsInverseFunctional(p *iri.IRI) bool {
	return o.hasTrait(p, traitInverseFunctional)
}

func (o *Ontology) IsSymmetric(p *iri.IRI) bool  { return o.hasTrait(p, traitSymmetric) }
func (o *Ontology) IsTransitive(p *iri.IRI) bool { return o.hasTrait(p, traitTransitive) }

// SuperProperties returns the told direct superproperties of p.
func (o *Ontology) SuperProperties(p *iri.IRI) iri.Set {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return cloneOf(o.ix.superProp, p)
}

// Snapshot is a consistent copy of the ontology at one version.
type Snapshot struct {
	Version          uint64
	Axioms           []owl.Axiom
	Classes          []*iri.IRI
	ObjectProperties []*iri.IRI
	Individuals      []*iri.IRI
}

// Snapshot copies axioms and declarations under a single read lock.
func (o *Ontology) Snapshot() Snapshot {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return Snapshot{
		Version:          o.version,
		Axioms:           append([]owl.Axiom(nil), o.axioms...),
		Classes:          append([]*iri.IRI(nil), o.order[owl.EntityClass]...),
		ObjectProperties: append([]*iri.IRI(nil), o.order[owl.EntityObjectProperty]...),
		Individuals:      append([]*iri.IRI(nil), o.order[owl.EntityIndividual]...),
	}
}
