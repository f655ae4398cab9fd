package reasoner

import (
	"owlreasoner/internal/cache"
	"owlreasoner/internal/iri"
	"owlreasoner/internal/logging"
	"owlreasoner/internal/owl"
)

// GetClassInstances returns the individuals entailed to belong to class.
// Assertions on class and on every class the hierarchy places below it are
// collected first, closed under SameIndividual. When the TBox needed tableau
// tests or some assertion uses a complex class expression, every remaining
// individual is then settled with IsInstanceOf, so the result agrees with it.
// owl:Thing yields every individual, as does any class of an inconsistent
// ontology.
func (r *Reasoner) GetClassInstances(class *iri.IRI) (iri.Set, error) {
	const op = "reasoner.GetClassInstances"
	if err := r.requireClass(op, class); err != nil {
		return nil, err
	}
	set, err := cache.GetOrCompute(r.cache, cache.BucketInstances, cache.Key("instances", class.String()),
		func() (iri.Set, error) { return r.classInstances(class) })
	if err != nil {
		return nil, err
	}
	return set.Clone(), nil
}

func (r *Reasoner) classInstances(class *iri.IRI) (iri.Set, error) {
	h, err := r.Classify()
	if err != nil {
		return nil, err
	}
	if !h.Consistent || class.IsThing() {
		return iri.NewSet(r.ont.Individuals()...), nil
	}

	out := r.ont.Instances(class)
	for _, sub := range h.SubClasses(class) {
		out.Union(r.ont.Instances(sub))
	}
	closeUnderSameAs(out, r.sameAs())
	if h.Stats().ToldComplete && !r.hasComplexAssertion() {
		logging.ReasonerDebug("instances of %s: %d told (%d subclasses)", class, out.Len(), len(h.SubClasses(class)))
		return out, nil
	}

	told := out.Len()
	ce := owl.Class(class)
	for _, ind := range r.ont.Individuals() {
		if out.Has(ind) {
			continue
		}
		ok, err := r.subsumer.IsInstanceOf(ind, ce)
		if err != nil {
			return nil, err
		}
		if ok {
			out.Add(ind)
		}
	}
	logging.ReasonerDebug("instances of %s: %d (%d told, rest settled by tableau)", class, out.Len(), told)
	return out, nil
}

// hasComplexAssertion reports whether some ClassAssertion names a class
// expression other than a single named class.
func (r *Reasoner) hasComplexAssertion() bool {
	for _, ca := range r.ont.ClassAssertions() {
		if _, ok := ca.Class.(owl.NamedClass); !ok {
			return true
		}
	}
	return false
}

// sameAs partitions the individuals named in SameIndividual axioms into
// equality classes.
func (r *Reasoner) sameAs() *unionFind {
	uf := newUnionFind()
	for _, ax := range r.ont.AxiomsOfKind(owl.AxiomSameIndividual) {
		same := ax.(owl.SameIndividual)
		for _, i := range same.Individuals[1:] {
			uf.union(same.Individuals[0], i)
		}
	}
	return uf
}

func closeUnderSameAs(set iri.Set, uf *unionFind) {
	if uf.empty() {
		return
	}
	for _, i := range set.Sorted() {
		for _, j := range uf.members(i) {
			set.Add(j)
		}
	}
}

// unionFind groups IRIs with path halving and union by size.
type unionFind struct {
	parent map[*iri.IRI]*iri.IRI
	size   map[*iri.IRI]int
}

func newUnionFind() *unionFind {
	return &unionFind{parent: make(map[*iri.IRI]*iri.IRI), size: make(map[*iri.IRI]int)}
}

func (u *unionFind) empty() bool { return len(u.parent) == 0 }

func (u *unionFind) find(x *iri.IRI) *iri.IRI {
	if _, ok := u.parent[x]; !ok {
		u.parent[x] = x
		u.size[x] = 1
	}
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]]
		x = u.parent[x]
	}
	return x
}

func (u *unionFind) union(a, b *iri.IRI) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	if u.size[ra] < u.size[rb] {
		ra, rb = rb, ra
	}
	u.parent[rb] = ra
	u.size[ra] += u.size[rb]
}

// members returns the equality class of x, or nil if x was never united.
func (u *unionFind) members(x *iri.IRI) []*iri.IRI {
	if _, ok := u.parent[x]; !ok {
		return nil
	}
	root := u.find(x)
	var out []*iri.IRI
	for y := range u.parent {
		if u.find(y) == root {
			out = append(out, y)
		}
	}
	return out
}
