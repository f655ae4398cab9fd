// Package query evaluates graph patterns against an ontology view.
//
// Basic graph patterns are planned by estimated selectivity and combined with
// hash joins. UNION branches are independent and run on a worker pool when
// there are enough of them; their solutions are concatenated in branch order,
// so parallel and sequential execution return the same bindings.
package query

import (
	"context"
	"sort"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"owlreasoner/internal/errs"
	"owlreasoner/internal/iri"
	"owlreasoner/internal/logging"
	"owlreasoner/internal/owl"
)

// Source is the fact view patterns are matched against. Both the ontology
// store (told facts) and the rules closure (entailed facts) implement it.
type Source interface {
	Instances(class *iri.IRI) iri.Set
	Types(individual *iri.IRI) iri.Set
	TypedClasses() []*iri.IRI
	SubClasses(super *iri.IRI) iri.Set
	SuperClasses(sub *iri.IRI) iri.Set
	SubClassPairs() [][2]*iri.IRI
	Objects(property, subject *iri.IRI) iri.Set
	Subjects(property, object *iri.IRI) iri.Set
	Edges(property *iri.IRI) []owl.ObjectPropertyAssertion
	ObjectPredicates() []*iri.IRI
	DataValues(property, subject *iri.IRI) []owl.Literal
	DataEdges(property *iri.IRI) []owl.DataPropertyAssertion
	DataPredicates() []*iri.IRI
	IsDataProperty(p *iri.IRI) bool
	Estimate(p *iri.IRI) int
}

// Config tunes execution.
type Config struct {
	// ParallelThreshold is the smallest UNION that runs its branches
	// concurrently.
	ParallelThreshold int
	Workers           int
}

// DefaultConfig returns the execution settings used when none are configured.
func DefaultConfig() Config {
	return Config{ParallelThreshold: 2, Workers: 4}
}

// Stats describes one execution.
type Stats struct {
	Triples        int // triple patterns matched
	Joins          int
	Unions         int
	ParallelUnions int
	Rows           int
	Duration       time.Duration
}

// Result holds the solutions of a pattern.
type Result struct {
	Bindings  []Binding
	Variables []string
	Stats     Stats
}

// Engine executes patterns. It holds no per-query state and is safe for
// concurrent use.
type Engine struct {
	src Source
	cfg Config
}

// New creates an engine over src.
func New(src Source, cfg Config) *Engine {
	return &Engine{src: src, cfg: cfg}
}

type execution struct {
	src     Source
	cfg     Config
	triples atomic.Int64
	joins   atomic.Int64
	unions  atomic.Int64
	pUnions atomic.Int64
}

// Execute evaluates p.
func (e *Engine) Execute(p Pattern) (*Result, error) {
	return e.ExecuteContext(context.Background(), p)
}

// ExecuteContext evaluates p, stopping early when ctx is cancelled.
func (e *Engine) ExecuteContext(ctx context.Context, p Pattern) (*Result, error) {
	if err := validate(p); err != nil {
		return nil, errs.Wrap(errs.KindInvalidQuery, "query.Execute", err)
	}
	start := time.Now()
	x := &execution{src: e.src, cfg: e.cfg}
	rows, err := x.eval(ctx, p)
	if err != nil {
		return nil, err
	}
	res := &Result{
		Bindings:  rows,
		Variables: variables(p),
		Stats: Stats{
			Triples:        int(x.triples.Load()),
			Joins:          int(x.joins.Load()),
			Unions:         int(x.unions.Load()),
			ParallelUnions: int(x.pUnions.Load()),
			Rows:           len(rows),
			Duration:       time.Since(start),
		},
	}
	logging.QueryDebug("executed pattern: %d rows, %d triples, %d joins, %d unions (%d parallel) in %v",
		res.Stats.Rows, res.Stats.Triples, res.Stats.Joins, res.Stats.Unions, res.Stats.ParallelUnions, res.Stats.Duration)
	return res, nil
}

func (x *execution) eval(ctx context.Context, p Pattern) ([]Binding, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch p := p.(type) {
	case TriplePattern:
		return x.evalBGP(ctx, []TriplePattern{p})
	case BGP:
		return x.evalBGP(ctx, p.Triples)
	case Union:
		return x.evalUnion(ctx, p)
	case Optional:
		left, err := x.eval(ctx, p.Left)
		if err != nil {
			return nil, err
		}
		right, err := x.eval(ctx, p.Right)
		if err != nil {
			return nil, err
		}
		x.joins.Add(1)
		return leftJoin(left, right), nil
	case Filter:
		rows, err := x.eval(ctx, p.Pattern)
		if err != nil {
			return nil, err
		}
		out := rows[:0:0]
		for _, b := range rows {
			if p.Expr.eval(b) {
				out = append(out, b)
			}
		}
		return out, nil
	case Distinct:
		rows, err := x.eval(ctx, p.Pattern)
		if err != nil {
			return nil, err
		}
		return distinct(rows, variables(p.Pattern)), nil
	}
	return nil, errs.New(errs.KindInvalidQuery, "query.Execute", "unsupported pattern %T", p)
}

// =============================================================================
// BASIC GRAPH PATTERNS
// =============================================================================

func (x *execution) evalBGP(ctx context.Context, triples []TriplePattern) ([]Binding, error) {
	rows := []Binding{{}}
	for _, t := range plan(x.src, triples) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		matched := x.match(t)
		x.triples.Add(1)
		x.joins.Add(1)
		rows = hashJoin(rows, matched, termVars(t))
		if len(rows) == 0 {
			break
		}
	}
	return rows, nil
}

// plan orders triples greedily: most bound positions first, then the
// smallest source estimate, preferring patterns that share a variable with
// the ones already placed.
func plan(src Source, triples []TriplePattern) []TriplePattern {
	type scored struct {
		t     TriplePattern
		bound int
		est   int
	}
	rest := make([]scored, len(triples))
	for i, t := range triples {
		s := scored{t: t, est: -1}
		for _, term := range []Term{t.S, t.P, t.O} {
			if !term.IsVar() {
				s.bound++
			}
		}
		if !t.P.IsVar() {
			s.est = src.Estimate(t.P.IRI)
		}
		rest[i] = s
	}
	better := func(a, b scored) bool {
		if a.bound != b.bound {
			return a.bound > b.bound
		}
		// Unknown predicate cardinality sorts last.
		if (a.est < 0) != (b.est < 0) {
			return a.est >= 0
		}
		return a.est < b.est
	}

	joined := make(map[string]bool)
	out := make([]TriplePattern, 0, len(triples))
	for len(rest) > 0 {
		best := -1
		bestConnected := false
		for i, s := range rest {
			connected := len(joined) > 0 && sharesVar(s.t, joined)
			switch {
			case best < 0,
				connected && !bestConnected,
				connected == bestConnected && better(s, rest[best]):
				best, bestConnected = i, connected
			}
		}
		out = append(out, rest[best].t)
		for _, v := range termVars(rest[best].t) {
			joined[v] = true
		}
		rest = append(rest[:best], rest[best+1:]...)
	}
	return out
}

func termVars(t TriplePattern) []string {
	var out []string
	for _, term := range []Term{t.S, t.P, t.O} {
		if term.IsVar() {
			out = append(out, term.Var)
		}
	}
	return out
}

func sharesVar(t TriplePattern, vars map[string]bool) bool {
	for _, v := range termVars(t) {
		if vars[v] {
			return true
		}
	}
	return false
}

// =============================================================================
// UNION
// =============================================================================

func (x *execution) evalUnion(ctx context.Context, u Union) ([]Binding, error) {
	x.unions.Add(1)
	results := make([][]Binding, len(u.Branches))

	if len(u.Branches) >= x.cfg.ParallelThreshold && x.cfg.Workers > 1 && x.cfg.ParallelThreshold > 0 {
		x.pUnions.Add(1)
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(x.cfg.Workers)
		for i, br := range u.Branches {
			g.Go(func() error {
				rows, err := x.eval(gctx, br)
				if err != nil {
					return err
				}
				results[i] = rows
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	} else {
		for i, br := range u.Branches {
			rows, err := x.eval(ctx, br)
			if err != nil {
				return nil, err
			}
			results[i] = rows
		}
	}

	var out []Binding
	for _, rows := range results {
		out = append(out, rows...)
	}
	return out, nil
}

// =============================================================================
// JOINS
// =============================================================================

// hashJoin joins left and right on the variables of right that left binds.
// Rows that leave a shared variable unbound fall back to a compatibility scan.
func hashJoin(left, right []Binding, rightVars []string) []Binding {
	if len(left) == 0 || len(right) == 0 {
		return nil
	}
	if len(left) == 1 && len(left[0]) == 0 {
		return right
	}
	shared := make(map[string]bool)
	for _, v := range rightVars {
		for _, l := range left {
			if _, ok := l[v]; ok {
				shared[v] = true
				break
			}
		}
	}
	keys := sortedKeys(shared)

	index := make(map[string][]Binding)
	var partial []Binding
	for _, r := range right {
		if bindsAll(r, keys) {
			k := r.key(keys)
			index[k] = append(index[k], r)
		} else {
			partial = append(partial, r)
		}
	}

	var out []Binding
	for _, l := range left {
		if bindsAll(l, keys) {
			for _, r := range index[l.key(keys)] {
				out = append(out, merge(l, r))
			}
			for _, r := range partial {
				if compatible(l, r) {
					out = append(out, merge(l, r))
				}
			}
			continue
		}
		for _, r := range right {
			if compatible(l, r) {
				out = append(out, merge(l, r))
			}
		}
	}
	return out
}

func bindsAll(b Binding, vars []string) bool {
	for _, v := range vars {
		if _, ok := b[v]; !ok {
			return false
		}
	}
	return true
}

func leftJoin(left, right []Binding) []Binding {
	var out []Binding
	for _, l := range left {
		matched := false
		for _, r := range right {
			if compatible(l, r) {
				out = append(out, merge(l, r))
				matched = true
			}
		}
		if !matched {
			out = append(out, l)
		}
	}
	return out
}

func distinct(rows []Binding, vars []string) []Binding {
	seen := make(map[string]bool, len(rows))
	out := rows[:0:0]
	for _, b := range rows {
		k := b.key(vars)
		if !seen[k] {
			seen[k] = true
			out = append(out, b)
		}
	}
	return out
}

// Sort orders bindings by the values of vars, for stable output.
func Sort(rows []Binding, vars []string) {
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].key(vars) < rows[j].key(vars)
	})
}
