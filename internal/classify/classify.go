// Package classify computes the named class hierarchy of an ontology.
//
// Told SubClassOf and EquivalentClasses edges between named classes are
// closed transitively first. When the TBox contains nothing else the closure
// is the answer; otherwise the remaining pairs are decided by tableau tests
// run on a bounded worker pool.
package classify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"owlreasoner/internal/iri"
	"owlreasoner/internal/logging"
	"owlreasoner/internal/owl"
)

// Subsumer decides the tests classification needs. The tableau reasoner
// implements it, as does the facade's caching wrapper around it.
type Subsumer interface {
	IsConsistent() (bool, error)
	IsSatisfiable(ce owl.ClassExpression) (bool, error)
	IsSubClassOf(sub, sup owl.ClassExpression) (bool, error)
}

// Source supplies the classes and axioms to classify.
type Source interface {
	Classes() []*iri.IRI
	Axioms() []owl.Axiom
}

// Option configures an Engine.
type Option func(*Engine)

// WithWorkers bounds the number of concurrent tableau tests.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// Engine classifies one ontology.
type Engine struct {
	src      Source
	subsumer Subsumer
	workers  int
}

// New creates an engine over src that delegates tests to sub.
func New(src Source, sub Subsumer, opts ...Option) *Engine {
	e := &Engine{src: src, subsumer: sub, workers: 4}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Classify builds the hierarchy. An inconsistent ontology yields a hierarchy
// in which every class is subsumed by every other, not an error.
func (e *Engine) Classify(ctx context.Context) (*Hierarchy, error) {
	start := time.Now()
	classes := namedClasses(e.src.Classes())
	h := newHierarchy(classes)

	consistent, err := e.subsumer.IsConsistent()
	if err != nil {
		return nil, fmt.Errorf("classify: consistency check: %w", err)
	}
	if !consistent {
		h.collapse()
		h.stats.Duration = time.Since(start)
		logging.Classify("ontology is inconsistent; %d classes collapsed", len(classes))
		return h, nil
	}
	h.Consistent = true

	complete := e.told(h)
	h.stats.ToldComplete = complete
	if !complete {
		if err := e.tableau(ctx, h); err != nil {
			return nil, err
		}
	}
	h.finish()
	h.stats.Duration = time.Since(start)
	logging.Classify("classified %d classes: %d told edges, %d satisfiability tests, %d subsumption tests in %v",
		len(classes), h.stats.ToldEdges, h.stats.SatisfiabilityTests, h.stats.SubsumptionTests, h.stats.Duration)
	return h, nil
}

func namedClasses(all []*iri.IRI) []*iri.IRI {
	out := make([]*iri.IRI, 0, len(all))
	for _, c := range all {
		if !c.IsThing() && !c.IsNothing() {
			out = append(out, c)
		}
	}
	iri.SortIRIs(out)
	return out
}

// told seeds the hierarchy with the transitive closure of told named edges.
// It reports whether the TBox holds nothing but such edges.
func (e *Engine) told(h *Hierarchy) bool {
	edges := make(map[*iri.IRI]iri.Set)
	link := func(sub, sup *iri.IRI) {
		if sub == sup || sup.IsThing() {
			return
		}
		if edges[sub] == nil {
			edges[sub] = make(iri.Set)
		}
		edges[sub].Add(sup)
		h.stats.ToldEdges++
	}
	complete := true
	for _, ax := range e.src.Axioms() {
		switch a := ax.(type) {
		case owl.SubClassOf:
			sub, ok1 := a.Sub.(owl.NamedClass)
			sup, ok2 := a.Super.(owl.NamedClass)
			if !ok1 || !ok2 || sub.IRI.IsThing() || sup.IRI.IsNothing() {
				complete = false
				continue
			}
			if !sub.IRI.IsNothing() {
				link(sub.IRI, sup.IRI)
			}
		case owl.EquivalentClasses:
			var named []*iri.IRI
			for _, ce := range a.Classes {
				if n, ok := ce.(owl.NamedClass); ok && !n.IRI.IsThing() && !n.IRI.IsNothing() {
					named = append(named, n.IRI)
				} else {
					complete = false
				}
			}
			for _, x := range named {
				for _, y := range named {
					link(x, y)
				}
			}
		case owl.DisjointClasses:
			complete = false
		}
	}

	// BFS closure; the visited set bounds the walk on told cycles.
	for _, c := range h.classes {
		visited := make(iri.Set)
		queue := []*iri.IRI{c}
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			for sup := range edges[cur] {
				if visited.Has(sup) {
					continue
				}
				visited.Add(sup)
				queue = append(queue, sup)
			}
		}
		visited.Remove(c)
		for sup := range visited {
			h.addSuper(c, sup)
		}
	}
	return complete
}

type pair struct{ sub, sup *iri.IRI }

// tableau decides everything the told closure left open: unsatisfiable
// classes first, then every remaining ordered pair.
func (e *Engine) tableau(ctx context.Context, h *Hierarchy) error {
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for _, c := range h.classes {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			ok, err := e.subsumer.IsSatisfiable(owl.Class(c))
			if err != nil {
				return fmt.Errorf("classify: satisfiability of %s: %w", c, err)
			}
			mu.Lock()
			defer mu.Unlock()
			h.stats.SatisfiabilityTests++
			if !ok {
				h.unsat.Add(c)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	var pending []pair
	for _, a := range h.classes {
		if h.unsat.Has(a) {
			continue
		}
		for _, b := range h.classes {
			if a == b || h.unsat.Has(b) || h.supers[a].Has(b) {
				continue
			}
			pending = append(pending, pair{a, b})
		}
	}
	h.stats.SkippedTests = len(h.classes)*(len(h.classes)-1) - len(pending)

	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for _, p := range pending {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			ok, err := e.subsumer.IsSubClassOf(owl.Class(p.sub), owl.Class(p.sup))
			if err != nil {
				return fmt.Errorf("classify: %s ⊑ %s: %w", p.sub, p.sup, err)
			}
			mu.Lock()
			defer mu.Unlock()
			h.stats.SubsumptionTests++
			if ok {
				h.addSuper(p.sub, p.sup)
			}
			return nil
		})
	}
	return g.Wait()
}
