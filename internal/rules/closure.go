package rules

import (
	"fmt"
	"time"

	"github.com/google/mangle/ast"

	"owlreasoner/internal/iri"
	"owlreasoner/internal/owl"
)

// Stats describes one materialization.
type Stats struct {
	Told     int // facts loaded from the ontology
	Total    int // facts in the store after fixpoint
	Strata   int
	Duration time.Duration
}

// Derived returns the number of facts the rules added.
func (s Stats) Derived() int { return s.Total - s.Told }

// Closure is the read-only result of Materialize. Class and object-property
// lookups answer from entailed facts; data-property lookups fall through to
// the source.
type Closure struct {
	src     Source
	version uint64
	stats   Stats

	supersOf  map[*iri.IRI]iri.Set
	subsOf    map[*iri.IRI]iri.Set
	types     map[*iri.IRI]iri.Set
	instances map[*iri.IRI]iri.Set
	same      map[*iri.IRI]iri.Set
	objects   map[*iri.IRI]map[*iri.IRI]iri.Set
	subjects  map[*iri.IRI]map[*iri.IRI]iri.Set
	counts    map[*iri.IRI]int
}

func newClosure(src Source, version uint64) *Closure {
	return &Closure{
		src:       src,
		version:   version,
		supersOf:  make(map[*iri.IRI]iri.Set),
		subsOf:    make(map[*iri.IRI]iri.Set),
		types:     make(map[*iri.IRI]iri.Set),
		instances: make(map[*iri.IRI]iri.Set),
		same:      make(map[*iri.IRI]iri.Set),
		objects:   make(map[*iri.IRI]map[*iri.IRI]iri.Set),
		subjects:  make(map[*iri.IRI]map[*iri.IRI]iri.Set),
		counts:    make(map[*iri.IRI]int),
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

func addNested(m map[*iri.IRI]map[*iri.IRI]iri.Set, p, k, v *iri.IRI) {
	inner, ok := m[p]
	if !ok {
		inner = make(map[*iri.IRI]iri.Set)
		m[p] = inner
	}
	addTo(inner, k, v)
}

// read copies the derived predicates out of the fact store.
func (c *Closure) read(l *loader) error {
	resolve := func(a ast.Atom) ([]*iri.IRI, error) {
		out := make([]*iri.IRI, len(a.Args))
		for i, arg := range a.Args {
			k, ok := arg.(ast.Constant)
			if !ok {
				return nil, fmt.Errorf("%s: non-constant argument %v", a.Predicate.Symbol, arg)
			}
			if out[i], ok = l.iris[k.Symbol]; !ok {
				return nil, fmt.Errorf("%s: unknown constant %q", a.Predicate.Symbol, k.Symbol)
			}
		}
		return out, nil
	}
	scan := func(pred string, fn func(args []*iri.IRI)) error {
		return l.store.GetFacts(ast.NewQuery(l.syms[pred]), func(a ast.Atom) error {
			args, err := resolve(a)
			if err != nil {
				return err
			}
			fn(args)
			return nil
		})
	}

	steps := []struct {
		pred string
		fn   func(args []*iri.IRI)
	}{
		{"subclass", func(a []*iri.IRI) {
			addTo(c.supersOf, a[0], a[1])
			addTo(c.subsOf, a[1], a[0])
		}},
		{"member", func(a []*iri.IRI) {
			addTo(c.types, a[0], a[1])
			addTo(c.instances, a[1], a[0])
		}},
		{"same", func(a []*iri.IRI) {
			if a[0] != a[1] {
				addTo(c.same, a[0], a[1])
			}
		}},
		{"edge", func(a []*iri.IRI) {
			addNested(c.objects, a[0], a[1], a[2])
			addNested(c.subjects, a[0], a[2], a[1])
			c.counts[a[0]]++
		}},
	}
	for _, s := range steps {
		if err := scan(s.pred, s.fn); err != nil {
			return fmt.Errorf("read %s: %w", s.pred, err)
		}
	}
	return nil
}

// Version returns the ontology version the closure was computed from.
func (c *Closure) Version() uint64 { return c.version }

// Stats returns materialization counters.
func (c *Closure) Stats() Stats { return c.stats }

func cloneOf(m map[*iri.IRI]iri.Set, k *iri.IRI) iri.Set {
	if s, ok := m[k]; ok {
		return s.Clone()
	}
	return make(iri.Set)
}

func keys(m map[*iri.IRI]iri.Set) []*iri.IRI {
	out := make([]*iri.IRI, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	iri.SortIRIs(out)
	return out
}

// Instances returns every individual entailed to be a member of class.
func (c *Closure) Instances(class *iri.IRI) iri.Set { return cloneOf(c.instances, class) }

// Types returns every class individual is entailed to belong to.
func (c *Closure) Types(individual *iri.IRI) iri.Set { return cloneOf(c.types, individual) }

// TypedClasses returns the classes with at least one entailed member.
func (c *Closure) TypedClasses() []*iri.IRI { return keys(c.instances) }

// SubClasses returns every named class entailed below super.
func (c *Closure) SubClasses(super *iri.IRI) iri.Set { return cloneOf(c.subsOf, super) }

// SuperClasses returns every named class entailed above sub.
func (c *Closure) SuperClasses(sub *iri.IRI) iri.Set { return cloneOf(c.supersOf, sub) }

// SubClassPairs returns the transitive closure of the told subclass edges.
func (c *Closure) SubClassPairs() [][2]*iri.IRI {
	var out [][2]*iri.IRI
	for _, sub := range keys(c.supersOf) {
		for _, sup := range c.supersOf[sub].Sorted() {
			out = append(out, [2]*iri.IRI{sub, sup})
		}
	}
	return out
}

// SameAs returns the individuals entailed equal to i, excluding i.
func (c *Closure) SameAs(i *iri.IRI) iri.Set { return cloneOf(c.same, i) }

// Objects returns the objects entailed for subject under property.
func (c *Closure) Objects(property, subject *iri.IRI) iri.Set {
	return cloneOf(c.objects[property], subject)
}

// Subjects returns the subjects entailed for object under property.
func (c *Closure) Subjects(property, object *iri.IRI) iri.Set {
	return cloneOf(c.subjects[property], object)
}

// Edges returns every entailed assertion of property.
func (c *Closure) Edges(property *iri.IRI) []owl.ObjectPropertyAssertion {
	byS := c.objects[property]
	var out []owl.ObjectPropertyAssertion
	for _, s := range keys(byS) {
		for _, o := range byS[s].Sorted() {
			out = append(out, owl.ObjectPropertyAssertion{Property: property, Subject: s, Object: o})
		}
	}
	return out
}

// ObjectPredicates returns the properties with at least one entailed edge.
func (c *Closure) ObjectPredicates() []*iri.IRI {
	out := make([]*iri.IRI, 0, len(c.objects))
	for p := range c.objects {
		out = append(out, p)
	}
	iri.SortIRIs(out)
	return out
}

func (c *Closure) DataValues(property, subject *iri.IRI) []owl.Literal {
	return c.src.DataValues(property, subject)
}

func (c *Closure) DataEdges(property *iri.IRI) []owl.DataPropertyAssertion {
	return c.src.DataEdges(property)
}

func (c *Closure) DataPredicates() []*iri.IRI { return c.src.DataPredicates() }

func (c *Closure) IsDataProperty(p *iri.IRI) bool { return c.src.IsDataProperty(p) }

// Estimate counts entailed facts under p.
func (c *Closure) Estimate(p *iri.IRI) int {
	switch p.String() {
	case iri.RDFType:
		n := 0
		for _, s := range c.instances {
			n += s.Len()
		}
		return n
	case iri.RDFSSubClassOf:
		n := 0
		for _, s := range c.supersOf {
			n += s.Len()
		}
		return n
	}
	if n, ok := c.counts[p]; ok {
		return n
	}
	return c.src.Estimate(p)
}
