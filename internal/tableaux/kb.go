package tableaux

import (
	"owlreasoner/internal/iri"
	"owlreasoner/internal/ontology"
	"owlreasoner/internal/owl"
)

type abEdge struct {
	subject, property, object *iri.IRI
}

// kb is the preprocessed, immutable form of one ontology version. It is shared
// by all sessions reasoning over that version.
type kb struct {
	version  uint64
	concepts *conceptTable

	unfold map[conceptID][]conceptID // atom -> concepts it implies
	gcis   []conceptID               // added to every node

	superRoles map[*iri.IRI]iri.Set // role -> all superroles, excluding itself
	transitive iri.Set
	symmetric  iri.Set
	functional iri.Set
	invFunc    iri.Set

	individuals []*iri.IRI
	assertions  map[*iri.IRI][]conceptID
	edges       []abEdge
	same        [][2]*iri.IRI
	different   [][2]*iri.IRI

	blocking Blocking
}

func buildKB(snap ontology.Snapshot, strategy Blocking) *kb {
	k := &kb{
		version:    snap.Version,
		concepts:   newConceptTable(),
		unfold:     make(map[conceptID][]conceptID),
		superRoles: make(map[*iri.IRI]iri.Set),
		transitive: make(iri.Set),
		symmetric:  make(iri.Set),
		functional: make(iri.Set),
		invFunc:    make(iri.Set),
		assertions: make(map[*iri.IRI][]conceptID),
	}
	t := k.concepts
	seen := make(iri.Set)
	addIndividual := func(i *iri.IRI) {
		if !seen.Has(i) {
			seen.Add(i)
			k.individuals = append(k.individuals, i)
		}
	}
	for _, i := range snap.Individuals {
		addIndividual(i)
	}
	told := make(map[*iri.IRI]iri.Set)

	for _, ax := range snap.Axioms {
		switch a := ax.(type) {
		case owl.SubClassOf:
			k.absorb(a.Sub, a.Super)
		case owl.EquivalentClasses:
			for i := range a.Classes {
				for j := range a.Classes {
					if i != j {
						k.absorb(a.Classes[i], a.Classes[j])
					}
				}
			}
		case owl.DisjointClasses:
			for i := range a.Classes {
				for j := range a.Classes {
					if i != j {
						k.absorb(a.Classes[i], owl.ObjectComplementOf{Operand: a.Classes[j]})
					}
				}
			}
		case owl.ClassAssertion:
			addIndividual(a.Individual)
			k.assertions[a.Individual] = append(k.assertions[a.Individual], t.fromExpression(a.Class))
		case owl.ObjectPropertyAssertion:
			addIndividual(a.Subject)
			addIndividual(a.Object)
			k.edges = append(k.edges, abEdge{subject: a.Subject, property: a.Property, object: a.Object})
		case owl.DataPropertyAssertion:
			// Data values do not take part in tableau reasoning.
			addIndividual(a.Subject)
		case owl.FunctionalObjectProperty:
			k.functional.Add(a.Property)
		case owl.InverseFunctionalObjectProperty:
			k.invFunc.Add(a.Property)
		case owl.SymmetricObjectProperty:
			k.symmetric.Add(a.Property)
		case owl.TransitiveObjectProperty:
			k.transitive.Add(a.Property)
		case owl.SubObjectPropertyOf:
			if told[a.Sub] == nil {
				told[a.Sub] = make(iri.Set)
			}
			told[a.Sub].Add(a.Super)
		case owl.SameIndividual:
			for _, i := range a.Individuals {
				addIndividual(i)
			}
			for i := 1; i < len(a.Individuals); i++ {
				k.same = append(k.same, [2]*iri.IRI{a.Individuals[0], a.Individuals[i]})
			}
		case owl.DifferentIndividuals:
			for _, i := range a.Individuals {
				addIndividual(i)
			}
			for i := range a.Individuals {
				for j := i + 1; j < len(a.Individuals); j++ {
					k.different = append(k.different, [2]*iri.IRI{a.Individuals[i], a.Individuals[j]})
				}
			}
		}
	}

	// Role hierarchy closure. The visited set bounds the walk on cyclic
	// hierarchies.
	for role := range told {
		supers := make(iri.Set)
		queue := []*iri.IRI{role}
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			for sup := range told[cur] {
				if sup != role && !supers.Has(sup) {
					supers.Add(sup)
					queue = append(queue, sup)
				}
			}
		}
		k.superRoles[role] = supers
	}

	k.blocking = strategy
	if strategy == BlockingAuto {
		k.blocking = BlockingSubset
		if k.symmetric.Len() > 0 || k.invFunc.Len() > 0 {
			k.blocking = BlockingEquality
		}
	}

	t.closeUnderNegation()
	return k
}

// absorb adds sub ⊑ sup. A named left side becomes a lazy unfolding rule; an
// intersection with a named conjunct is absorbed into that conjunct; anything
// else is internalized as a universal constraint.
func (k *kb) absorb(sub, sup owl.ClassExpression) {
	t := k.concepts
	rhs := t.fromExpression(sup)
	if rhs == topID {
		return
	}
	switch s := sub.(type) {
	case owl.NamedClass:
		switch {
		case s.IRI.IsNothing():
			return
		case s.IRI.IsThing():
			k.addGCI(rhs)
		default:
			a := t.atom(s.IRI)
			k.unfold[a] = appendUnique(k.unfold[a], rhs)
		}
		return
	case owl.ObjectIntersectionOf:
		for i, op := range s.Operands {
			named, ok := op.(owl.NamedClass)
			if !ok || named.IRI.IsThing() || named.IRI.IsNothing() {
				continue
			}
			rest := make([]conceptID, 0, len(s.Operands)-1)
			for j, other := range s.Operands {
				if j != i {
					rest = append(rest, t.fromExpression(other))
				}
			}
			a := t.atom(named.IRI)
			k.unfold[a] = appendUnique(k.unfold[a], t.or(t.negate(t.and(rest...)), rhs))
			return
		}
	}
	k.addGCI(t.or(t.negate(t.fromExpression(sub)), rhs))
}

func (k *kb) addGCI(c conceptID) {
	if c != topID {
		k.gcis = appendUnique(k.gcis, c)
	}
}

func appendUnique(list []conceptID, c conceptID) []conceptID {
	for _, existing := range list {
		if existing == c {
			return list
		}
	}
	return append(list, c)
}

// isSubRole reports whether sub ⊑* sup in the role hierarchy.
func (k *kb) isSubRole(sub, sup *iri.IRI) bool {
	return sub == sup || k.superRoles[sub].Has(sup)
}

// rolesOf returns sub and all its superroles.
func (k *kb) rolesOf(sub *iri.IRI) []*iri.IRI {
	out := []*iri.IRI{sub}
	for sup := range k.superRoles[sub] {
		out = append(out, sup)
	}
	iri.SortIRIs(out[1:])
	return out
}
