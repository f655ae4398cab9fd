package reasoner

import (
	"owlreasoner/internal/cache"
	"owlreasoner/internal/iri"
	"owlreasoner/internal/owl"
	"owlreasoner/internal/tableaux"
)

// cachedSubsumer puts the result cache in front of the tableau reasoner. The
// classification engine runs its tests through it, so tests answered during
// classification are reused by later direct calls and vice versa.
type cachedSubsumer struct {
	tab   *tableaux.Reasoner
	cache *cache.Manager
}

func (s *cachedSubsumer) IsConsistent() (bool, error) {
	return cache.GetOrCompute(s.cache, cache.BucketConsistency, cache.Key("consistent"), s.tab.IsConsistent)
}

func (s *cachedSubsumer) IsSatisfiable(ce owl.ClassExpression) (bool, error) {
	return cache.GetOrCompute(s.cache, cache.BucketSatisfiability, cache.Key("sat", ce.Key()),
		func() (bool, error) { return s.tab.IsSatisfiable(ce) })
}

func (s *cachedSubsumer) IsSubClassOf(sub, sup owl.ClassExpression) (bool, error) {
	return cache.GetOrCompute(s.cache, cache.BucketSubclass, cache.Key("sub", sub.Key(), sup.Key()),
		func() (bool, error) { return s.tab.IsSubClassOf(sub, sup) })
}

func (s *cachedSubsumer) IsInstanceOf(ind *iri.IRI, ce owl.ClassExpression) (bool, error) {
	return cache.GetOrCompute(s.cache, cache.BucketInstances, cache.Key("member", ind.String(), ce.Key()),
		func() (bool, error) { return s.tab.IsInstanceOf(ind, ce) })
}

// IsConsistent reports whether the ontology has a model. An inconsistent
// ontology is a false result, not an error.
func (r *Reasoner) IsConsistent() (bool, error) {
	return r.subsumer.IsConsistent()
}

// IsSatisfiable reports whether class can have instances.
func (r *Reasoner) IsSatisfiable(class *iri.IRI) (bool, error) {
	if err := r.requireClass("reasoner.IsSatisfiable", class); err != nil {
		return false, err
	}
	return r.subsumer.IsSatisfiable(owl.Class(class))
}

// IsSubClassOf reports whether sub ⊑ sup is entailed. A classified hierarchy
// answers without a tableau run when one is cached.
func (r *Reasoner) IsSubClassOf(sub, sup *iri.IRI) (bool, error) {
	const op = "reasoner.IsSubClassOf"
	if err := r.requireClass(op, sub); err != nil {
		return false, err
	}
	if err := r.requireClass(op, sup); err != nil {
		return false, err
	}
	if h, ok := r.cachedHierarchy(); ok {
		return h.IsSubClassOf(sub, sup), nil
	}
	return r.subsumer.IsSubClassOf(owl.Class(sub), owl.Class(sup))
}

// AreEquivalentClasses reports whether a and b subsume each other.
func (r *Reasoner) AreEquivalentClasses(a, b *iri.IRI) (bool, error) {
	ab, err := r.IsSubClassOf(a, b)
	if err != nil || !ab {
		return false, err
	}
	return r.IsSubClassOf(b, a)
}

// AreDisjointClasses reports whether a and b can share no instance.
func (r *Reasoner) AreDisjointClasses(a, b *iri.IRI) (bool, error) {
	const op = "reasoner.AreDisjointClasses"
	if err := r.requireClass(op, a); err != nil {
		return false, err
	}
	if err := r.requireClass(op, b); err != nil {
		return false, err
	}
	sat, err := r.subsumer.IsSatisfiable(owl.And(owl.Class(a), owl.Class(b)))
	if err != nil {
		return false, err
	}
	return !sat, nil
}

// IsInstanceOf reports whether ind is entailed to be a member of class.
func (r *Reasoner) IsInstanceOf(ind, class *iri.IRI) (bool, error) {
	const op = "reasoner.IsInstanceOf"
	if err := r.requireIndividual(op, ind); err != nil {
		return false, err
	}
	if err := r.requireClass(op, class); err != nil {
		return false, err
	}
	return r.subsumer.IsInstanceOf(ind, owl.Class(class))
}
