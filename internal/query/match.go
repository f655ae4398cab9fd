package query

import (
	"owlreasoner/internal/iri"
	"owlreasoner/internal/owl"
)

func isType(p *iri.IRI) bool     { return p.String() == iri.RDFType }
func isSubClass(p *iri.IRI) bool { return p.String() == iri.RDFSSubClassOf }

// match returns the solutions of a single triple pattern, resolving it
// through the source indexes.
func (x *execution) match(t TriplePattern) []Binding {
	if t.P.IsVar() {
		var out []Binding
		for _, p := range x.predicates() {
			root, ok := Binding{}.extend(t.P, IRI(p))
			if !ok {
				continue
			}
			out = append(out, x.matchPredicate(root, t.S, p, t.O)...)
		}
		return out
	}
	return x.matchPredicate(Binding{}, t.S, t.P.IRI, t.O)
}

// predicates lists every predicate a variable in predicate position can take.
func (x *execution) predicates() []*iri.IRI {
	var out []*iri.IRI
	seen := make(iri.Set)
	add := func(p *iri.IRI) {
		if !seen.Has(p) {
			seen.Add(p)
			out = append(out, p)
		}
	}
	if len(x.src.TypedClasses()) > 0 {
		add(typeIRI)
	}
	if len(x.src.SubClassPairs()) > 0 {
		add(subClassIRI)
	}
	for _, p := range x.src.ObjectPredicates() {
		add(p)
	}
	for _, p := range x.src.DataPredicates() {
		add(p)
	}
	return out
}

// Vocabulary handles bound to predicate variables. Terms compare IRIs by
// value, so these need not come from the source's registry.
var (
	typeIRI     = iri.Ephemeral(iri.RDFType)
	subClassIRI = iri.Ephemeral(iri.RDFSSubClassOf)
)

func (x *execution) matchPredicate(root Binding, s Term, p *iri.IRI, o Term) []Binding {
	switch {
	case isType(p):
		return x.matchPairs(root, s, o, x.src.Types, x.src.Instances, func() [][2]*iri.IRI {
			var pairs [][2]*iri.IRI
			for _, c := range x.src.TypedClasses() {
				for _, i := range x.src.Instances(c).Sorted() {
					pairs = append(pairs, [2]*iri.IRI{i, c})
				}
			}
			return pairs
		})
	case isSubClass(p):
		return x.matchPairs(root, s, o, x.src.SuperClasses, x.src.SubClasses, x.src.SubClassPairs)
	case x.src.IsDataProperty(p) || o.Kind == TermLiteral:
		return x.matchData(root, s, p, o)
	}
	return x.matchPairs(root, s, o,
		func(subj *iri.IRI) iri.Set { return x.src.Objects(p, subj) },
		func(obj *iri.IRI) iri.Set { return x.src.Subjects(p, obj) },
		func() [][2]*iri.IRI {
			edges := x.src.Edges(p)
			pairs := make([][2]*iri.IRI, len(edges))
			for i, e := range edges {
				pairs[i] = [2]*iri.IRI{e.Subject, e.Object}
			}
			return pairs
		})
}

// matchPairs resolves an IRI-to-IRI relation through its forward index,
// reverse index, or full pair list, depending on which ends are bound.
func (x *execution) matchPairs(root Binding, s, o Term,
	forward, reverse func(*iri.IRI) iri.Set, all func() [][2]*iri.IRI) []Binding {

	if o.Kind == TermLiteral {
		return nil
	}
	var out []Binding
	emit := func(subj, obj *iri.IRI) {
		b, ok := root.extend(s, IRI(subj))
		if !ok {
			return
		}
		if b, ok = b.extend(o, IRI(obj)); ok {
			out = append(out, b)
		}
	}
	switch {
	case !s.IsVar() && !o.IsVar():
		if forward(s.IRI).Has(o.IRI) || hasByString(forward(s.IRI), o.IRI) {
			out = append(out, root)
		}
	case !s.IsVar():
		for _, obj := range forward(s.IRI).Sorted() {
			emit(s.IRI, obj)
		}
	case !o.IsVar():
		for _, subj := range reverse(o.IRI).Sorted() {
			emit(subj, o.IRI)
		}
	default:
		for _, pair := range all() {
			emit(pair[0], pair[1])
		}
	}
	return out
}

// hasByString covers IRIs that were not interned in the source's registry.
func hasByString(set iri.Set, target *iri.IRI) bool {
	for i := range set {
		if i.String() == target.String() {
			return true
		}
	}
	return false
}

func (x *execution) matchData(root Binding, s Term, p *iri.IRI, o Term) []Binding {
	if o.Kind == TermIRI {
		return nil
	}
	var out []Binding
	emit := func(subj *iri.IRI, v owl.Literal) {
		b, ok := root.extend(s, IRI(subj))
		if !ok {
			return
		}
		if b, ok = b.extend(o, Lit(v)); ok {
			out = append(out, b)
		}
	}
	if !s.IsVar() {
		for _, v := range x.src.DataValues(p, s.IRI) {
			emit(s.IRI, v)
		}
		return out
	}
	for _, e := range x.src.DataEdges(p) {
		emit(e.Subject, e.Value)
	}
	return out
}
