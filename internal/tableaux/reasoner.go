// Package tableaux implements a tableau decision procedure for the
// description logic behind OWL2 class expressions: consistency,
// satisfiability, subsumption and instance checking.
//
// Each check runs in its own session with a private arena. The preprocessed
// knowledge base is built once per ontology version and shared read-only by
// concurrent sessions.
package tableaux

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"owlreasoner/internal/errs"
	"owlreasoner/internal/iri"
	"owlreasoner/internal/logging"
	"owlreasoner/internal/ontology"
	"owlreasoner/internal/owl"
)

// Blocking selects how anonymous nodes are blocked.
type Blocking int

const (
	// BlockingAuto uses equality blocking when symmetric or inverse
	// functional properties occur and subset blocking otherwise.
	BlockingAuto Blocking = iota
	BlockingSubset
	BlockingEquality
)

func (b Blocking) String() string {
	switch b {
	case BlockingSubset:
		return "subset"
	case BlockingEquality:
		return "equality"
	default:
		return "auto"
	}
}

// ParseBlocking maps a configuration value to a Blocking strategy.
func ParseBlocking(s string) (Blocking, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return BlockingAuto, nil
	case "subset":
		return BlockingSubset, nil
	case "equality":
		return BlockingEquality, nil
	}
	return BlockingAuto, errs.New(errs.KindInvalidArgument, "tableaux.ParseBlocking",
		"unknown blocking strategy %q", s)
}

// Config bounds a single session. Zero values disable the bound.
type Config struct {
	MaxSteps int
	Timeout  time.Duration
	Blocking Blocking
}

// DefaultConfig returns the bounds used when none are configured.
func DefaultConfig() Config {
	return Config{MaxSteps: 100000, Timeout: 30 * time.Second, Blocking: BlockingAuto}
}

// Source is the ontology view the reasoner needs.
type Source interface {
	Snapshot() ontology.Snapshot
	Version() uint64
}

// MemoryStats aggregates arena usage over all sessions run so far.
type MemoryStats struct {
	PeakMemoryBytes int
	TotalArenaBytes int
	Sessions        int
}

// Metrics counts reasoning work since the reasoner was created.
type Metrics struct {
	Sessions     int
	Consistent   int
	Inconsistent int
	Aborted      int
	Steps        int
	Backtracks   int
	Backjumps    int
	Merges       int
	KBBuilds     int
	Last         SessionStats
}

// Option configures a Reasoner.
type Option func(*Reasoner)

// WithRegisterer exports session counters to reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(r *Reasoner) { r.registerer = reg }
}

// Reasoner answers tableau checks over an ontology. It is safe for concurrent
// use; every call runs an independent session.
type Reasoner struct {
	src Source
	cfg Config

	kbMu sync.Mutex
	kb   *kb

	statsMu sync.Mutex
	memory  MemoryStats
	metrics Metrics

	registerer prometheus.Registerer
	sessions   *prometheus.CounterVec
	steps      prometheus.Counter
	backtracks prometheus.Counter
}

// New creates a reasoner over src.
func New(src Source, cfg Config, opts ...Option) (*Reasoner, error) {
	r := &Reasoner{src: src, cfg: cfg}
	for _, opt := range opts {
		opt(r)
	}
	r.sessions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "owlreasoner",
		Subsystem: "tableaux",
		Name:      "sessions_total",
		Help:      "Tableau sessions by outcome",
	}, []string{"result"})
	r.steps = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "owlreasoner",
		Subsystem: "tableaux",
		Name:      "steps_total",
		Help:      "Rule applications across all sessions",
	})
	r.backtracks = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "owlreasoner",
		Subsystem: "tableaux",
		Name:      "backtracks_total",
		Help:      "Alternatives retried after a clash",
	})
	if r.registerer != nil {
		for _, c := range []prometheus.Collector{r.sessions, r.steps, r.backtracks} {
			if err := r.registerer.Register(c); err != nil {
				return nil, fmt.Errorf("register tableaux metrics: %w", err)
			}
		}
	}
	return r, nil
}

// knowledgeBase returns the preprocessed form of the current ontology
// version, building it on first use.
func (r *Reasoner) knowledgeBase() *kb {
	version := r.src.Version()
	r.kbMu.Lock()
	defer r.kbMu.Unlock()
	if r.kb != nil && r.kb.version == version {
		return r.kb
	}
	timer := logging.StartTimer(logging.CategoryTableaux, "preprocess")
	k := buildKB(r.src.Snapshot(), r.cfg.Blocking)
	elapsed := timer.Stop()
	logging.TableauxDebug("preprocessed version %d: %d concepts, %d gcis, %d individuals, blocking=%s in %v",
		k.version, k.concepts.size(), len(k.gcis), len(k.individuals), k.blocking, elapsed)
	r.kb = k
	r.statsMu.Lock()
	r.metrics.KBBuilds++
	r.statsMu.Unlock()
	return k
}

// IsConsistent reports whether the ontology has a model.
func (r *Reasoner) IsConsistent() (bool, error) {
	k := r.knowledgeBase()
	return r.runSession("consistency", newSession(k, r.budget()), nil)
}

// IsSatisfiable reports whether ce can have an instance.
func (r *Reasoner) IsSatisfiable(ce owl.ClassExpression) (bool, error) {
	if err := owl.ValidateExpression(ce); err != nil {
		return false, errs.Wrap(errs.KindInvalidArgument, "tableaux.IsSatisfiable", err)
	}
	if named, ok := ce.(owl.NamedClass); ok && named.IRI.IsThing() {
		return r.IsConsistent()
	}
	s := newSession(r.knowledgeBase(), r.budget())
	c := s.concepts.fromExpression(ce)
	return r.runSession("satisfiability", s, []probe{{name: freshIndividual(), concept: c}})
}

// IsSubClassOf reports whether sub ⊑ sup is entailed, by testing sub ⊓ ¬sup
// on a fresh individual for unsatisfiability.
func (r *Reasoner) IsSubClassOf(sub, sup owl.ClassExpression) (bool, error) {
	for _, ce := range []owl.ClassExpression{sub, sup} {
		if err := owl.ValidateExpression(ce); err != nil {
			return false, errs.Wrap(errs.KindInvalidArgument, "tableaux.IsSubClassOf", err)
		}
	}
	if sub.Key() == sup.Key() || isNamed(sup, (*iri.IRI).IsThing) || isNamed(sub, (*iri.IRI).IsNothing) {
		return true, nil
	}
	s := newSession(r.knowledgeBase(), r.budget())
	t := s.concepts
	c := t.and(t.fromExpression(sub), t.negate(t.fromExpression(sup)))
	sat, err := r.runSession("subsumption", s, []probe{{name: freshIndividual(), concept: c}})
	if err != nil {
		return false, err
	}
	return !sat, nil
}

// IsInstanceOf reports whether ind ∈ ce is entailed.
func (r *Reasoner) IsInstanceOf(ind *iri.IRI, ce owl.ClassExpression) (bool, error) {
	if ind == nil {
		return false, errs.New(errs.KindInvalidArgument, "tableaux.IsInstanceOf", "nil individual")
	}
	if err := owl.ValidateExpression(ce); err != nil {
		return false, errs.Wrap(errs.KindInvalidArgument, "tableaux.IsInstanceOf", err)
	}
	if isNamed(ce, (*iri.IRI).IsThing) {
		return true, nil
	}
	s := newSession(r.knowledgeBase(), r.budget())
	c := s.concepts.negate(s.concepts.fromExpression(ce))
	sat, err := r.runSession("instance", s, []probe{{individual: ind, concept: c}})
	if err != nil {
		return false, err
	}
	return !sat, nil
}

func isNamed(ce owl.ClassExpression, pred func(*iri.IRI) bool) bool {
	n, ok := ce.(owl.NamedClass)
	return ok && pred(n.IRI)
}

// freshIndividual names the witness of a derived test. It is never interned.
func freshIndividual() *iri.IRI {
	return iri.Ephemeral("urn:uuid:" + uuid.NewString())
}

func (r *Reasoner) budget() budget {
	b := budget{maxSteps: r.cfg.MaxSteps}
	if r.cfg.Timeout > 0 {
		b.deadline = time.Now().Add(r.cfg.Timeout)
	}
	return b
}

func (r *Reasoner) runSession(op string, s *session, probes []probe) (bool, error) {
	timer := logging.StartTimer(logging.CategoryTableaux, op)
	consistent, err := s.run(probes)
	elapsed := timer.StopWithThreshold(time.Second)
	r.record(s, consistent, err)

	st := s.stats
	if err != nil {
		logging.Tableaux("%s session aborted after %d steps: %v", op, st.Steps, err)
		return false, err
	}
	logging.TableauxDebug("%s session: consistent=%v steps=%d nodes=%d branches=%d backtracks=%d backjumps=%d in %v",
		op, consistent, st.Steps, st.Nodes, st.Branches, st.Backtracks, st.Backjumps, elapsed)
	return consistent, nil
}

func (r *Reasoner) record(s *session, consistent bool, err error) {
	st := s.stats
	result := "consistent"
	switch {
	case err != nil:
		result = "aborted"
	case !consistent:
		result = "inconsistent"
	}
	r.sessions.WithLabelValues(result).Inc()
	r.steps.Add(float64(st.Steps))
	r.backtracks.Add(float64(st.Backtracks))

	r.statsMu.Lock()
	defer r.statsMu.Unlock()
	m := &r.metrics
	m.Sessions++
	switch result {
	case "aborted":
		m.Aborted++
	case "inconsistent":
		m.Inconsistent++
	default:
		m.Consistent++
	}
	m.Steps += st.Steps
	m.Backtracks += st.Backtracks
	m.Backjumps += st.Backjumps
	m.Merges += st.Merges
	m.Last = st

	r.memory.Sessions++
	if st.Memory.PeakMemoryBytes > r.memory.PeakMemoryBytes {
		r.memory.PeakMemoryBytes = st.Memory.PeakMemoryBytes
	}
	r.memory.TotalArenaBytes += st.Memory.TotalArenaBytes
}

// MemoryStats reports the largest arena peak of any session and the sum of
// the bytes held by sessions when they finished.
func (r *Reasoner) MemoryStats() MemoryStats {
	r.statsMu.Lock()
	defer r.statsMu.Unlock()
	return r.memory
}

// Metrics returns a copy of the work counters.
func (r *Reasoner) Metrics() Metrics {
	r.statsMu.Lock()
	defer r.statsMu.Unlock()
	return r.metrics
}
