package reasoner

import (
	"context"

	"owlreasoner/internal/iri"
	"owlreasoner/internal/logging"
	"owlreasoner/internal/query"
	"owlreasoner/internal/rules"
)

// QueryOption adjusts one ExecuteQuery call.
type QueryOption func(*queryOptions)

type queryOptions struct {
	entailment bool
	ctx        context.Context
}

// WithEntailment matches patterns against entailed facts instead of told
// ones, overriding the configured default.
func WithEntailment(on bool) QueryOption {
	return func(o *queryOptions) { o.entailment = on }
}

// WithContext cancels the query with ctx.
func WithContext(ctx context.Context) QueryOption {
	return func(o *queryOptions) { o.ctx = ctx }
}

// ExecuteQuery evaluates p. Invalid patterns fail with an InvalidQuery error.
func (r *Reasoner) ExecuteQuery(p query.Pattern, opts ...QueryOption) (*query.Result, error) {
	o := queryOptions{entailment: r.cfg.Query.Entailment, ctx: context.Background()}
	for _, opt := range opts {
		opt(&o)
	}

	var src query.Source = r.ont
	if o.entailment {
		c, err := r.Materialize()
		if err != nil {
			return nil, err
		}
		src = &entailedSource{Closure: c, r: r}
	}
	return query.New(src, r.queryCfg).ExecuteContext(o.ctx, p)
}

// Materialize returns the rule closure of the current ontology version,
// computing it on first use after a mutation.
func (r *Reasoner) Materialize() (*rules.Closure, error) {
	r.closureMu.Lock()
	defer r.closureMu.Unlock()
	if r.closure != nil && r.closure.Version() == r.ont.Version() {
		return r.closure, nil
	}
	c, err := rules.Materialize(r.ont, r.rulesCfg)
	if err != nil {
		return nil, err
	}
	r.closure = c
	return c, nil
}

// entailedSource serves rdf:type lookups by class through the classified
// instance sets, which see subsumptions the rules cannot derive, and
// everything else through the rule closure.
type entailedSource struct {
	*rules.Closure
	r *Reasoner
}

func (s *entailedSource) Instances(class *iri.IRI) iri.Set {
	set, err := s.r.GetClassInstances(class)
	if err != nil {
		logging.Get(logging.CategoryQuery).Warn("instances of %s: %v; using rule closure", class, err)
		return s.Closure.Instances(class)
	}
	set.Union(s.Closure.Instances(class))
	return set
}
