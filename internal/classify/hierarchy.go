package classify

import (
	"time"

	"owlreasoner/internal/iri"
)

// Stats describes the work a classification run did.
type Stats struct {
	Classes             int
	ToldEdges           int
	ToldComplete        bool // no tableau test was needed
	SatisfiabilityTests int
	SubsumptionTests    int
	SkippedTests        int // pairs answered by the told closure or by unsatisfiability
	Duration            time.Duration
}

// Hierarchy is the classified subsumption order over named classes.
// owl:Thing and owl:Nothing are implicit: every class is below Thing and
// above Nothing. Members of an equivalence group list each other as super-
// and subclasses.
type Hierarchy struct {
	Consistent bool

	classes []*iri.IRI
	known   iri.Set
	supers  map[*iri.IRI]iri.Set
	subs    map[*iri.IRI]iri.Set
	unsat   iri.Set
	stats   Stats
}

func newHierarchy(classes []*iri.IRI) *Hierarchy {
	h := &Hierarchy{
		classes: classes,
		known:   iri.NewSet(classes...),
		supers:  make(map[*iri.IRI]iri.Set, len(classes)),
		subs:    make(map[*iri.IRI]iri.Set, len(classes)),
		unsat:   make(iri.Set),
	}
	for _, c := range classes {
		h.supers[c] = make(iri.Set)
		h.subs[c] = make(iri.Set)
	}
	h.stats.Classes = len(classes)
	return h
}

func (h *Hierarchy) addSuper(sub, sup *iri.IRI) {
	if sub == sup || !h.known.Has(sub) || !h.known.Has(sup) {
		return
	}
	h.supers[sub].Add(sup)
	h.subs[sup].Add(sub)
}

// collapse makes every class a subclass of every other, which is what an
// inconsistent ontology entails.
func (h *Hierarchy) collapse() {
	for _, a := range h.classes {
		h.unsat.Add(a)
		for _, b := range h.classes {
			h.addSuper(a, b)
		}
	}
}

// finish places unsatisfiable classes below every class.
func (h *Hierarchy) finish() {
	for u := range h.unsat {
		for _, c := range h.classes {
			h.addSuper(u, c)
		}
	}
}

// Stats returns the run statistics.
func (h *Hierarchy) Stats() Stats { return h.stats }

// Classes returns the classified named classes in IRI order.
func (h *Hierarchy) Classes() []*iri.IRI {
	return append([]*iri.IRI(nil), h.classes...)
}

// SuperClasses returns every named strict superclass of c, including its
// equivalents.
func (h *Hierarchy) SuperClasses(c *iri.IRI) []*iri.IRI { return h.supers[c].Sorted() }

// SubClasses returns every named strict subclass of c, including its
// equivalents.
func (h *Hierarchy) SubClasses(c *iri.IRI) []*iri.IRI { return h.subs[c].Sorted() }

// Equivalents returns the classes mutually subsumed with c.
func (h *Hierarchy) Equivalents(c *iri.IRI) []*iri.IRI {
	var out []*iri.IRI
	for s := range h.supers[c] {
		if h.supers[s].Has(c) {
			out = append(out, s)
		}
	}
	iri.SortIRIs(out)
	return out
}

// IsSubClassOf answers a ⊑ b from the classified order.
func (h *Hierarchy) IsSubClassOf(a, b *iri.IRI) bool {
	switch {
	case a == b, b.IsThing(), a.IsNothing():
		return true
	case h.unsat.Has(a):
		return true
	case b.IsNothing():
		return false
	}
	return h.supers[a].Has(b)
}

// DirectSuperClasses returns the superclasses of c that have no strict
// subclass between them and c. Equivalents of c are excluded. When the
// direct superclasses form an equivalence group, every member is listed.
func (h *Hierarchy) DirectSuperClasses(c *iri.IRI) []*iri.IRI {
	strict := h.strictSupers(c)
	var out []*iri.IRI
	for s := range strict {
		direct := true
		for t := range strict {
			if t != s && h.supers[t].Has(s) && !h.supers[s].Has(t) {
				direct = false
				break
			}
		}
		if direct {
			out = append(out, s)
		}
	}
	iri.SortIRIs(out)
	return out
}

func (h *Hierarchy) strictSupers(c *iri.IRI) iri.Set {
	out := make(iri.Set)
	for s := range h.supers[c] {
		if !h.supers[s].Has(c) {
			out.Add(s)
		}
	}
	return out
}

// Edges returns the direct (sub, super) pairs of the transitive reduction
// with each equivalence group collapsed to its first member in IRI order.
func (h *Hierarchy) Edges() [][2]*iri.IRI {
	var out [][2]*iri.IRI
	for _, c := range h.classes {
		if h.representative(c) != c {
			continue
		}
		seen := make(iri.Set)
		for _, s := range h.DirectSuperClasses(c) {
			rep := h.representative(s)
			if seen.Has(rep) {
				continue
			}
			seen.Add(rep)
			out = append(out, [2]*iri.IRI{c, rep})
		}
	}
	return out
}

func (h *Hierarchy) representative(c *iri.IRI) *iri.IRI {
	rep := c
	for _, e := range h.Equivalents(c) {
		if e.String() < rep.String() {
			rep = e
		}
	}
	return rep
}

// Unsatisfiable returns the classes equivalent to owl:Nothing.
func (h *Hierarchy) Unsatisfiable() []*iri.IRI { return h.unsat.Sorted() }
