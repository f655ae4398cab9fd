package reasoner

import (
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"owlreasoner/internal/cache"
	"owlreasoner/internal/config"
	"owlreasoner/internal/errs"
	"owlreasoner/internal/iri"
	"owlreasoner/internal/logging"
	"owlreasoner/internal/ontology"
	"owlreasoner/internal/owl"
	"owlreasoner/internal/query"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const ns = "http://example.org/zoo#"

type fixture struct {
	reg *iri.Registry
	ont *ontology.Ontology
}

func newFixture(mode ontology.Mode) *fixture {
	reg := iri.NewRegistry()
	return &fixture{reg: reg, ont: ontology.New(reg, ontology.WithMode(mode))}
}

func (f *fixture) iri(local string) *iri.IRI     { return f.reg.MustGet(ns + local) }
func (f *fixture) c(local string) owl.NamedClass { return owl.Class(f.iri(local)) }

func (f *fixture) add(t *testing.T, axioms ...owl.Axiom) {
	t.Helper()
	for _, ax := range axioms {
		require.NoError(t, f.ont.AddAxiom(ax))
	}
}

func (f *fixture) reasoner(t *testing.T, opts ...Option) *Reasoner {
	t.Helper()
	r, err := New(f.ont, nil, opts...)
	require.NoError(t, err)
	return r
}

func names(s iri.Set) []string {
	var out []string
	for _, i := range s.Sorted() {
		out = append(out, i.LocalName())
	}
	return out
}

// zoo declares Animal, Mammal, Dog with Dog ⊑ Mammal ⊑ Animal and rex a Dog.
func zoo(t *testing.T) *fixture {
	t.Helper()
	f := newFixture(ontology.ModeStrict)
	for _, c := range []string{"Animal", "Mammal", "Dog", "Cat"} {
		require.NoError(t, f.ont.AddClass(f.iri(c)))
	}
	for _, i := range []string{"rex", "tom", "fido"} {
		require.NoError(t, f.ont.AddNamedIndividual(f.iri(i)))
	}
	f.add(t,
		owl.SubClassOf{Sub: f.c("Dog"), Super: f.c("Mammal")},
		owl.SubClassOf{Sub: f.c("Mammal"), Super: f.c("Animal")},
		owl.ClassAssertion{Class: f.c("Dog"), Individual: f.iri("rex")},
		owl.ClassAssertion{Class: f.c("Cat"), Individual: f.iri("tom")},
	)
	return f
}

func TestZooScenario(t *testing.T) {
	f := zoo(t)
	r := f.reasoner(t)

	ok, err := r.IsSubClassOf(f.iri("Dog"), f.iri("Animal"))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.IsSubClassOf(f.iri("Cat"), f.iri("Animal"))
	require.NoError(t, err)
	assert.False(t, ok, "unrelated classes")

	inst, err := r.GetClassInstances(f.iri("Animal"))
	require.NoError(t, err)
	assert.Equal(t, []string{"rex"}, names(inst))

	ok, err = r.IsInstanceOf(f.iri("rex"), f.iri("Mammal"))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEmptyOntology(t *testing.T) {
	f := newFixture(ontology.ModeStrict)
	r := f.reasoner(t)

	ok, err := r.IsConsistent()
	require.NoError(t, err)
	assert.True(t, ok)

	h, err := r.Classify()
	require.NoError(t, err)
	assert.Empty(t, h.Classes())
	assert.True(t, h.Consistent)
}

func TestComplementMakesInconsistentAndRemovalRestores(t *testing.T) {
	f := zoo(t)
	r := f.reasoner(t)
	neg := owl.ClassAssertion{Class: owl.Not(f.c("Dog")), Individual: f.iri("rex")}

	ok, err := r.IsConsistent()
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, r.AddAxiom(neg))
	ok, err = r.IsConsistent()
	require.NoError(t, err)
	assert.False(t, ok, "rex is a Dog and not a Dog")

	removed, err := r.RemoveAxiom(neg)
	require.NoError(t, err)
	require.True(t, removed)
	ok, err = r.IsConsistent()
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFunctionalViolation(t *testing.T) {
	f := newFixture(ontology.ModeAutoDeclare)
	mother := f.iri("mother")
	f.add(t,
		owl.FunctionalObjectProperty{Property: mother},
		owl.ObjectPropertyAssertion{Property: mother, Subject: f.iri("kim"), Object: f.iri("ann")},
		owl.ObjectPropertyAssertion{Property: mother, Subject: f.iri("kim"), Object: f.iri("eve")},
		owl.DifferentIndividuals{Individuals: []*iri.IRI{f.iri("ann"), f.iri("eve")}},
	)
	ok, err := f.reasoner(t).IsConsistent()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClassifyYieldsToldClosure(t *testing.T) {
	f := zoo(t)
	r := f.reasoner(t)

	h, err := r.Classify()
	require.NoError(t, err)
	assert.True(t, h.Stats().ToldComplete)

	var edges []string
	for _, e := range h.Edges() {
		edges = append(edges, e[0].LocalName()+"<"+e[1].LocalName())
	}
	if diff := cmp.Diff([]string{"Dog<Mammal", "Mammal<Animal"}, edges); diff != "" {
		t.Errorf("edges mismatch (-want +got):\n%s", diff)
	}

	again, err := r.Classify()
	require.NoError(t, err)
	assert.Same(t, h, again, "hierarchy is cached until the ontology changes")
	assert.Equal(t, int64(1), r.CacheStats().Buckets[cache.BucketClassification].Hits)

	// With a cached hierarchy, subsumption needs no tableau session.
	before := r.SessionMetrics().Sessions
	ok, err := r.IsSubClassOf(f.iri("Dog"), f.iri("Animal"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, before, r.SessionMetrics().Sessions)
}

func TestEquivalenceAndDisjointness(t *testing.T) {
	f := zoo(t)
	require.NoError(t, f.ont.AddClass(f.iri("Hound")))
	f.add(t,
		owl.EquivalentClasses{Classes: []owl.ClassExpression{f.c("Dog"), f.c("Hound")}},
		owl.DisjointClasses{Classes: []owl.ClassExpression{f.c("Dog"), f.c("Cat")}},
	)
	r := f.reasoner(t)

	eq, err := r.AreEquivalentClasses(f.iri("Dog"), f.iri("Hound"))
	require.NoError(t, err)
	assert.True(t, eq)

	eq, err = r.AreEquivalentClasses(f.iri("Dog"), f.iri("Mammal"))
	require.NoError(t, err)
	assert.False(t, eq)

	dis, err := r.AreDisjointClasses(f.iri("Hound"), f.iri("Cat"))
	require.NoError(t, err)
	assert.True(t, dis)

	dis, err = r.AreDisjointClasses(f.iri("Dog"), f.iri("Mammal"))
	require.NoError(t, err)
	assert.False(t, dis)

	sat, err := r.IsSatisfiable(f.iri("Hound"))
	require.NoError(t, err)
	assert.True(t, sat)

	inst, err := r.GetClassInstances(f.iri("Hound"))
	require.NoError(t, err)
	assert.Equal(t, []string{"rex"}, names(inst), "equivalent classes share instances")
}

func TestInstancesClosedUnderSameIndividual(t *testing.T) {
	f := zoo(t)
	f.add(t, owl.SameIndividual{Individuals: []*iri.IRI{f.iri("rex"), f.iri("fido")}})
	r := f.reasoner(t)

	inst, err := r.GetClassInstances(f.iri("Mammal"))
	require.NoError(t, err)
	assert.Equal(t, []string{"fido", "rex"}, names(inst))

	all, err := r.GetClassInstances(f.reg.MustGet(iri.OWLThing))
	require.NoError(t, err)
	assert.Equal(t, []string{"fido", "rex", "tom"}, names(all))
}

func TestInstancesAgreeWithIsInstanceOf(t *testing.T) {
	f := zoo(t)
	for _, c := range []string{"Friendly", "Owner"} {
		require.NoError(t, f.ont.AddClass(f.iri(c)))
	}
	for _, i := range []string{"alice", "bella"} {
		require.NoError(t, f.ont.AddNamedIndividual(f.iri(i)))
	}
	require.NoError(t, f.ont.AddObjectProperty(f.iri("owns")))
	f.add(t,
		owl.ClassAssertion{Class: owl.And(f.c("Dog"), f.c("Friendly")), Individual: f.iri("bella")},
		owl.EquivalentClasses{Classes: []owl.ClassExpression{f.c("Owner"), owl.Some(f.iri("owns"), f.c("Animal"))}},
		owl.ObjectPropertyAssertion{Property: f.iri("owns"), Subject: f.iri("alice"), Object: f.iri("fido")},
		owl.ClassAssertion{Class: f.c("Dog"), Individual: f.iri("fido")},
	)
	r := f.reasoner(t)

	want := map[string][]string{
		"Animal":   {"bella", "fido", "rex"},
		"Dog":      {"bella", "fido", "rex"},
		"Friendly": {"bella"},
		"Owner":    {"alice"},
		"Cat":      {"tom"},
	}
	for class, members := range want {
		inst, err := r.GetClassInstances(f.iri(class))
		require.NoError(t, err)
		assert.Equal(t, members, names(inst), class)

		for _, ind := range []string{"alice", "bella", "fido", "rex", "tom"} {
			ok, err := r.IsInstanceOf(f.iri(ind), f.iri(class))
			require.NoError(t, err)
			assert.Equal(t, ok, inst.Has(f.iri(ind)), "%s in %s", ind, class)
		}
	}

	typ := query.IRI(f.reg.MustGet(iri.RDFType))
	res, err := r.ExecuteQuery(query.Triple(query.Var("x"), typ, query.IRI(f.iri("Owner"))), WithEntailment(true))
	require.NoError(t, err)
	require.Len(t, res.Bindings, 1)
	x, _ := res.Bindings[0].Get("x")
	assert.Equal(t, "alice", x.IRI.LocalName())
}

func TestInstancesOfUnionAssertionWithToldTBox(t *testing.T) {
	f := zoo(t)
	require.NoError(t, f.ont.AddNamedIndividual(f.iri("bella")))
	f.add(t,
		owl.SubClassOf{Sub: f.c("Cat"), Super: f.c("Mammal")},
		owl.ClassAssertion{Class: owl.Or(f.c("Dog"), f.c("Cat")), Individual: f.iri("bella")},
	)
	r := f.reasoner(t)

	h, err := r.Classify()
	require.NoError(t, err)
	require.True(t, h.Stats().ToldComplete)

	inst, err := r.GetClassInstances(f.iri("Mammal"))
	require.NoError(t, err)
	assert.Equal(t, []string{"bella", "rex", "tom"}, names(inst))

	inst, err = r.GetClassInstances(f.iri("Dog"))
	require.NoError(t, err)
	assert.Equal(t, []string{"rex"}, names(inst), "a disjunct is not a type")
}

func TestStrictModeRejectsUnknownEntities(t *testing.T) {
	f := zoo(t)
	r := f.reasoner(t)
	unknown := f.iri("Unicorn")

	_, err := r.IsSubClassOf(unknown, f.iri("Animal"))
	assert.ErrorIs(t, err, errs.ErrUnknownEntityReference)

	_, err = r.GetClassInstances(unknown)
	assert.ErrorIs(t, err, errs.ErrUnknownEntityReference)

	_, err = r.IsInstanceOf(f.iri("nobody"), f.iri("Dog"))
	assert.ErrorIs(t, err, errs.ErrUnknownEntityReference)

	err = r.AddAxiom(owl.SubClassOf{Sub: owl.Class(unknown), Super: f.c("Animal")})
	assert.ErrorIs(t, err, errs.ErrUnknownEntityReference)

	ok, err := r.IsSubClassOf(f.iri("Dog"), f.reg.MustGet(iri.OWLThing))
	require.NoError(t, err)
	assert.True(t, ok, "owl:Thing needs no declaration")
}

func TestCacheHitsAndInvalidation(t *testing.T) {
	f := zoo(t)
	r := f.reasoner(t)

	for i := 0; i < 3; i++ {
		ok, err := r.IsConsistent()
		require.NoError(t, err)
		require.True(t, ok)
	}
	st := r.CacheStats().Buckets[cache.BucketConsistency]
	assert.Equal(t, int64(2), st.Hits)
	assert.Equal(t, 1, r.SessionMetrics().Sessions)

	// Duplicates are swallowed and do not mutate the ontology.
	require.NoError(t, r.AddAxiom(owl.SubClassOf{Sub: f.c("Dog"), Super: f.c("Mammal")}))
	assert.Equal(t, int64(0), r.CacheStats().Invalidations)

	require.NoError(t, r.AddAxiom(owl.SubClassOf{Sub: f.c("Cat"), Super: f.c("Mammal")}))
	s := r.CacheStats()
	assert.Equal(t, int64(1), s.Invalidations)
	assert.Zero(t, s.Buckets[cache.BucketConsistency].Entries)

	inst, err := r.GetClassInstances(f.iri("Animal"))
	require.NoError(t, err)
	assert.Equal(t, []string{"rex", "tom"}, names(inst), "instances reflect the new axiom")
}

func TestDirectOntologyMutationInvalidates(t *testing.T) {
	f := zoo(t)
	r := f.reasoner(t)

	inst, err := r.GetClassInstances(f.iri("Dog"))
	require.NoError(t, err)
	require.Equal(t, []string{"rex"}, names(inst))

	f.add(t, owl.ClassAssertion{Class: f.c("Dog"), Individual: f.iri("fido")})
	inst, err = r.GetClassInstances(f.iri("Dog"))
	require.NoError(t, err)
	assert.Equal(t, []string{"fido", "rex"}, names(inst))
}

func TestResourceExceededIsNotCached(t *testing.T) {
	f := zoo(t)
	cfg := config.DefaultConfig()
	cfg.Tableaux.MaxSteps = 1
	r, err := New(f.ont, cfg)
	require.NoError(t, err)

	_, err = r.IsInstanceOf(f.iri("rex"), f.iri("Animal"))
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrResourceExceeded)
	assert.Zero(t, r.CacheStats().Buckets[cache.BucketInstances].Entries)
}

func TestClassifyErrorIsPrefixedOnce(t *testing.T) {
	f := zoo(t)
	cfg := config.DefaultConfig()
	cfg.Tableaux.MaxSteps = 1
	r, err := New(f.ont, cfg)
	require.NoError(t, err)

	_, err = r.Classify()
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrResourceExceeded)
	assert.Equal(t, 1, strings.Count(err.Error(), "classify:"), err.Error())
}

func TestExecuteQuery(t *testing.T) {
	f := zoo(t)
	r := f.reasoner(t)
	typ := query.IRI(f.reg.MustGet(iri.RDFType))
	p := query.Triple(query.Var("x"), typ, query.IRI(f.iri("Animal")))

	told, err := r.ExecuteQuery(p)
	require.NoError(t, err)
	assert.Empty(t, told.Bindings)

	entailed, err := r.ExecuteQuery(p, WithEntailment(true))
	require.NoError(t, err)
	require.Len(t, entailed.Bindings, 1)
	x, _ := entailed.Bindings[0].Get("x")
	assert.Equal(t, "rex", x.IRI.LocalName())
	assert.Equal(t, []string{"x"}, entailed.Variables)

	c1, err := r.Materialize()
	require.NoError(t, err)
	c2, err := r.Materialize()
	require.NoError(t, err)
	assert.Same(t, c1, c2)

	_, err = r.ExecuteQuery(query.Union{})
	assert.ErrorIs(t, err, errs.ErrInvalidQuery)
}

func TestMemoryStats(t *testing.T) {
	f := zoo(t)
	r := f.reasoner(t)
	assert.Equal(t, MemoryStats{}, r.GetMemoryStats())

	_, err := r.IsConsistent()
	require.NoError(t, err)
	_, err = r.IsSatisfiable(f.iri("Dog"))
	require.NoError(t, err)

	m := r.GetMemoryStats()
	assert.Positive(t, m.PeakMemoryBytes)
	assert.GreaterOrEqual(t, m.TotalArenaBytes, m.PeakMemoryBytes)
}

func TestMetricsRegistration(t *testing.T) {
	f := zoo(t)
	reg := prometheus.NewRegistry()
	r := f.reasoner(t, WithRegisterer(reg))

	_, err := r.IsConsistent()
	require.NoError(t, err)
	_, err = r.IsConsistent()
	require.NoError(t, err)

	n, err := testutil.GatherAndCount(reg, "owlreasoner_tableaux_sessions_total", "owlreasoner_cache_hits_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = New(f.ont, nil, WithRegisterer(reg))
	assert.Error(t, err, "collectors are already registered")
}

func TestConcurrentChecks(t *testing.T) {
	f := zoo(t)
	r := f.reasoner(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := r.IsSubClassOf(f.iri("Dog"), f.iri("Animal"))
			assert.NoError(t, err)
			assert.True(t, ok)
			inst, err := r.GetClassInstances(f.iri("Mammal"))
			assert.NoError(t, err)
			assert.Equal(t, []string{"rex"}, names(inst))
		}()
	}
	wg.Wait()
}

func TestMutationIsLogged(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logging.SetLogger(zap.New(core), nil)
	t.Cleanup(logging.Reset)

	f := zoo(t)
	r := f.reasoner(t)
	require.NoError(t, r.AddAxiom(owl.SubClassOf{Sub: f.c("Cat"), Super: f.c("Mammal")}))

	entries := logs.FilterField(zap.String("category", string(logging.CategoryReasoner))).
		FilterMessageSnippet("caches invalidated").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
}

func TestInvalidConfig(t *testing.T) {
	f := zoo(t)
	cfg := config.DefaultConfig()
	cfg.Tableaux.Blocking = "sometimes"
	_, err := New(f.ont, cfg)
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)

	_, err = New(nil, nil)
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)
}
