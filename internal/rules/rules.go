// Package rules materializes the forward-chaining closure of an ontology.
//
// Told facts (named subclass edges, class assertions, property assertions,
// property characteristics and SameIndividual) are loaded into a Mangle fact
// store and the embedded Datalog program is evaluated to fixpoint. The
// resulting Closure answers the same lookups as the ontology store, so the
// query engine can run over entailed facts instead of told ones.
package rules

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/mangle/analysis"
	"github.com/google/mangle/ast"
	_ "github.com/google/mangle/builtin"
	mengine "github.com/google/mangle/engine"
	"github.com/google/mangle/factstore"
	"github.com/google/mangle/parse"

	"owlreasoner/internal/errs"
	"owlreasoner/internal/iri"
	"owlreasoner/internal/logging"
	"owlreasoner/internal/ontology"
	"owlreasoner/internal/owl"
)

//go:embed owl.mg
var program string

// Config bounds materialization.
type Config struct {
	// DerivedFactLimit caps the facts the engine may create. Zero means no
	// limit.
	DerivedFactLimit int
}

// DefaultConfig returns the limits used when none are configured.
func DefaultConfig() Config {
	return Config{DerivedFactLimit: 500000}
}

// Source is what materialization reads: a consistent snapshot of the axioms
// plus the data-property views, which the rules do not touch.
type Source interface {
	Snapshot() ontology.Snapshot
	DataValues(property, subject *iri.IRI) []owl.Literal
	DataEdges(property *iri.IRI) []owl.DataPropertyAssertion
	DataPredicates() []*iri.IRI
	IsDataProperty(p *iri.IRI) bool
	Estimate(p *iri.IRI) int
}

var (
	compileOnce sync.Once
	compiled    *analysis.ProgramInfo
	compileErr  error
)

// compile parses and analyzes the embedded program once per process.
func compile() (*analysis.ProgramInfo, error) {
	compileOnce.Do(func() {
		unit, err := parse.Unit(strings.NewReader(program))
		if err != nil {
			compileErr = fmt.Errorf("parse rules: %w", err)
			return
		}
		compiled, compileErr = analysis.AnalyzeOneUnit(unit, nil)
		if compileErr != nil {
			compileErr = fmt.Errorf("analyze rules: %w", compileErr)
		}
	})
	return compiled, compileErr
}

// predicates resolves the declared symbols of the program by name.
func predicates(info *analysis.ProgramInfo) map[string]ast.PredicateSym {
	out := make(map[string]ast.PredicateSym, len(info.Decls))
	for sym := range info.Decls {
		out[sym.Symbol] = sym
	}
	return out
}

// loader turns told axioms into atoms and remembers which IRI each string
// constant came from, so derived facts map back to interned handles.
type loader struct {
	store factstore.FactStore
	syms  map[string]ast.PredicateSym
	iris  map[string]*iri.IRI
	told  int
}

func (l *loader) add(pred string, args ...*iri.IRI) {
	terms := make([]ast.BaseTerm, len(args))
	for i, a := range args {
		l.iris[a.String()] = a
		terms[i] = ast.String(a.String())
	}
	if l.store.Add(ast.Atom{Predicate: l.syms[pred], Args: terms}) {
		l.told++
	}
}

func named(ce owl.ClassExpression) (*iri.IRI, bool) {
	if nc, ok := ce.(owl.NamedClass); ok {
		return nc.IRI, true
	}
	return nil, false
}

func (l *loader) load(ax owl.Axiom) {
	switch a := ax.(type) {
	case owl.SubClassOf:
		sub, ok1 := named(a.Sub)
		sup, ok2 := named(a.Super)
		if ok1 && ok2 {
			l.add("told_subclass", sub, sup)
		}
	case owl.EquivalentClasses:
		var members []*iri.IRI
		for _, c := range a.Classes {
			if n, ok := named(c); ok {
				members = append(members, n)
			}
		}
		for _, x := range members {
			for _, y := range members {
				if x != y {
					l.add("told_subclass", x, y)
				}
			}
		}
	case owl.ClassAssertion:
		for _, c := range owl.NamedConjuncts(a.Class) {
			l.add("told_type", a.Individual, c)
		}
	case owl.ObjectPropertyAssertion:
		l.add("told_edge", a.Property, a.Subject, a.Object)
	case owl.SubObjectPropertyOf:
		l.add("told_subproperty", a.Sub, a.Super)
	case owl.TransitiveObjectProperty:
		l.add("transitive_property", a.Property)
	case owl.SymmetricObjectProperty:
		l.add("symmetric_property", a.Property)
	case owl.SameIndividual:
		for i := 1; i < len(a.Individuals); i++ {
			l.add("told_same", a.Individuals[0], a.Individuals[i])
		}
	}
}

// Materialize evaluates the rule program over src to fixpoint. Exceeding the
// derived fact limit fails with a ResourceExceeded error.
func Materialize(src Source, cfg Config) (*Closure, error) {
	const op = "rules.Materialize"
	timer := logging.StartTimer(logging.CategoryRules, "materialize")
	start := time.Now()

	info, err := compile()
	if err != nil {
		return nil, err
	}
	snap := src.Snapshot()
	l := &loader{
		store: factstore.NewSimpleInMemoryStore(),
		syms:  predicates(info),
		iris:  make(map[string]*iri.IRI),
	}
	for _, ax := range snap.Axioms {
		l.load(ax)
	}

	var opts []mengine.EvalOption
	if cfg.DerivedFactLimit > 0 {
		opts = append(opts, mengine.WithCreatedFactLimit(cfg.DerivedFactLimit))
	}
	stats, err := mengine.EvalProgramWithStats(info, l.store, opts...)
	if err != nil {
		timer.Stop()
		// The program calls no builtins, so a configured limit is the only
		// way evaluation can fail.
		if cfg.DerivedFactLimit > 0 {
			logging.Get(logging.CategoryRules).Warn("derived fact limit %d reached (v%d)", cfg.DerivedFactLimit, snap.Version)
			return nil, &errs.Error{Kind: errs.KindResourceExceeded, Op: op,
				Detail: fmt.Sprintf("more than %d derived facts", cfg.DerivedFactLimit), Err: err}
		}
		return nil, fmt.Errorf("evaluate rules: %w", err)
	}

	c := newClosure(src, snap.Version)
	if err := c.read(l); err != nil {
		return nil, err
	}
	c.stats.Told = l.told
	c.stats.Total = l.store.EstimateFactCount()
	c.stats.Strata = len(stats.Strata)
	c.stats.Duration = time.Since(start)
	timer.Stop()
	logging.Rules("materialized v%d: %d told facts, %d total, %d strata in %v",
		snap.Version, c.stats.Told, c.stats.Total, c.stats.Strata, c.stats.Duration)
	return c, nil
}
