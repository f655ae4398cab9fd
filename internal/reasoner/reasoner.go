// Package reasoner is the public face of the reasoning core. It wires the
// tableau reasoner, classification, the result cache, the query engine and
// the rule materializer around one ontology, and keeps the cache coherent by
// invalidating it on every ontology mutation.
package reasoner

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"owlreasoner/internal/cache"
	"owlreasoner/internal/classify"
	"owlreasoner/internal/config"
	"owlreasoner/internal/errs"
	"owlreasoner/internal/iri"
	"owlreasoner/internal/logging"
	"owlreasoner/internal/ontology"
	"owlreasoner/internal/owl"
	"owlreasoner/internal/query"
	"owlreasoner/internal/rules"
	"owlreasoner/internal/tableaux"
)

// MemoryStats aggregates arena usage over every tableau session.
type MemoryStats struct {
	PeakMemoryBytes int
	TotalArenaBytes int
}

type options struct {
	registerer prometheus.Registerer
	clock      func() time.Time
}

// Option configures a Reasoner.
type Option func(*options)

// WithRegisterer exports tableau and cache metrics to reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// WithClock replaces the cache clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.clock = now }
}

// Reasoner answers reasoning and query requests over one ontology. It is
// safe for concurrent use; mutations go through AddAxiom and RemoveAxiom or
// directly to the ontology, and either way invalidate cached results.
type Reasoner struct {
	ont *ontology.Ontology
	cfg *config.Config

	tab        *tableaux.Reasoner
	cache      *cache.Manager
	subsumer   *cachedSubsumer
	classifier *classify.Engine
	queryCfg   query.Config
	rulesCfg   rules.Config

	closureMu sync.Mutex
	closure   *rules.Closure
}

// New builds a reasoner over ont. A nil cfg uses config.DefaultConfig().
func New(ont *ontology.Ontology, cfg *config.Config, opts ...Option) (*Reasoner, error) {
	if ont == nil {
		return nil, errs.New(errs.KindInvalidArgument, "reasoner.New", "nil ontology")
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, errs.Wrap(errs.KindInvalidArgument, "reasoner.New", err)
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	blocking, err := tableaux.ParseBlocking(cfg.Tableaux.Blocking)
	if err != nil {
		return nil, err
	}
	var tabOpts []tableaux.Option
	var cacheOpts []cache.Option
	if o.registerer != nil {
		tabOpts = append(tabOpts, tableaux.WithRegisterer(o.registerer))
		cacheOpts = append(cacheOpts, cache.WithRegisterer(o.registerer))
	}
	if o.clock != nil {
		cacheOpts = append(cacheOpts, cache.WithClock(o.clock))
	}

	tab, err := tableaux.New(ont, tableaux.Config{
		MaxSteps: cfg.Tableaux.MaxSteps,
		Timeout:  cfg.GetTableauxTimeout(),
		Blocking: blocking,
	}, tabOpts...)
	if err != nil {
		return nil, err
	}
	ttls := cfg.CacheTTLs()
	cm, err := cache.NewManager(cache.Config{
		Enabled: cfg.Cache.Enabled,
		TTLs: cache.TTLs{
			Consistency:    ttls.Consistency,
			Satisfiability: ttls.Satisfiability,
			Subclass:       ttls.Subclass,
			Instances:      ttls.Instances,
			Classification: ttls.Classification,
		},
	}, cacheOpts...)
	if err != nil {
		return nil, err
	}

	r := &Reasoner{
		ont:   ont,
		cfg:   cfg,
		tab:   tab,
		cache: cm,
		queryCfg: query.Config{
			ParallelThreshold: cfg.Query.ParallelThreshold,
			Workers:           cfg.Query.Workers,
		},
		rulesCfg: rules.Config{DerivedFactLimit: cfg.Rules.DerivedFactLimit},
	}
	r.subsumer = &cachedSubsumer{tab: tab, cache: cm}
	r.classifier = classify.New(ont, r.subsumer, classify.WithWorkers(cfg.Classification.Workers))
	ont.OnMutation(r.onMutation)

	logging.Reasoner("reasoner ready: %d axioms, blocking=%s, max_steps=%d, cache=%v",
		len(ont.Axioms()), blocking, cfg.Tableaux.MaxSteps, cfg.Cache.Enabled)
	return r, nil
}

// onMutation drops every derived result. Partial invalidation is not
// attempted: an axiom can change any entailment.
func (r *Reasoner) onMutation(m ontology.Mutation) {
	r.cache.InvalidateAll()
	r.closureMu.Lock()
	r.closure = nil
	r.closureMu.Unlock()
	logging.ReasonerDebug("ontology v%d mutated (kind %d): caches invalidated", m.Version, m.Kind)
}

// Ontology returns the ontology the reasoner reads.
func (r *Reasoner) Ontology() *ontology.Ontology { return r.ont }

// AddAxiom adds ax to the ontology. Re-adding an existing axiom is not an
// error.
func (r *Reasoner) AddAxiom(ax owl.Axiom) error {
	err := r.ont.AddAxiom(ax)
	if errors.Is(err, errs.ErrDuplicateAxiom) {
		logging.ReasonerDebug("ignoring duplicate axiom %s", ax.Key())
		return nil
	}
	return err
}

// RemoveAxiom removes ax and reports whether it was present.
func (r *Reasoner) RemoveAxiom(ax owl.Axiom) (bool, error) {
	return r.ont.RemoveAxiom(ax)
}

// =============================================================================
// ENTITY CHECKS
// =============================================================================

// requireClass rejects undeclared class IRIs when the ontology is strict.
func (r *Reasoner) requireClass(op string, c *iri.IRI) error {
	if c == nil {
		return errs.New(errs.KindInvalidArgument, op, "nil class")
	}
	if r.ont.Mode() != ontology.ModeStrict || c.IsThing() || c.IsNothing() {
		return nil
	}
	if !r.ont.IsDeclared(c, owl.EntityClass) {
		return errs.New(errs.KindUnknownEntityReference, op, "class %s is not declared", c)
	}
	return nil
}

func (r *Reasoner) requireIndividual(op string, i *iri.IRI) error {
	if i == nil {
		return errs.New(errs.KindInvalidArgument, op, "nil individual")
	}
	if r.ont.Mode() == ontology.ModeStrict && !r.ont.IsDeclared(i, owl.EntityIndividual) {
		return errs.New(errs.KindUnknownEntityReference, op, "individual %s is not declared", i)
	}
	return nil
}

// =============================================================================
// STATS
// =============================================================================

// GetMemoryStats returns the peak arena size of any session and the bytes
// allocated across all sessions.
func (r *Reasoner) GetMemoryStats() MemoryStats {
	m := r.tab.MemoryStats()
	return MemoryStats{PeakMemoryBytes: m.PeakMemoryBytes, TotalArenaBytes: m.TotalArenaBytes}
}

// SessionMetrics returns the tableau session counters.
func (r *Reasoner) SessionMetrics() tableaux.Metrics { return r.tab.Metrics() }

// CacheStats returns the result cache counters.
func (r *Reasoner) CacheStats() cache.Stats { return r.cache.Stats() }

// Classify computes the class hierarchy, reusing a cached one while the
// ontology is unchanged.
func (r *Reasoner) Classify() (*classify.Hierarchy, error) {
	return r.ClassifyContext(context.Background())
}

// ClassifyContext is Classify with cancellation.
func (r *Reasoner) ClassifyContext(ctx context.Context) (*classify.Hierarchy, error) {
	return cache.GetOrCompute(r.cache, cache.BucketClassification, cache.Key("hierarchy"),
		func() (*classify.Hierarchy, error) {
			return r.classifier.Classify(ctx)
		})
}

// cachedHierarchy returns the classified hierarchy if one is cached.
func (r *Reasoner) cachedHierarchy() (*classify.Hierarchy, bool) {
	v, ok := r.cache.Get(cache.BucketClassification, cache.Key("hierarchy"))
	if !ok {
		return nil, false
	}
	h, ok := v.(*classify.Hierarchy)
	return h, ok
}
