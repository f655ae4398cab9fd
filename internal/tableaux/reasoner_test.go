package tableaux

import (
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"owlreasoner/internal/errs"
	"owlreasoner/internal/iri"
	"owlreasoner/internal/ontology"
	"owlreasoner/internal/owl"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const ns = "http://example.org/test#"

type fixture struct {
	reg *iri.Registry
	ont *ontology.Ontology
}

func newFixture() *fixture {
	reg := iri.NewRegistry()
	return &fixture{reg: reg, ont: ontology.New(reg, ontology.WithMode(ontology.ModeAutoDeclare))}
}

func (f *fixture) iri(local string) *iri.IRI     { return f.reg.MustGet(ns + local) }
func (f *fixture) c(local string) owl.NamedClass { return owl.Class(f.iri(local)) }

func (f *fixture) add(t *testing.T, axioms ...owl.Axiom) {
	t.Helper()
	for _, ax := range axioms {
		require.NoError(t, f.ont.AddAxiom(ax))
	}
}

func (f *fixture) reasoner(t *testing.T, cfgs ...Config) *Reasoner {
	t.Helper()
	cfg := DefaultConfig()
	if len(cfgs) > 0 {
		cfg = cfgs[0]
	}
	r, err := New(f.ont, cfg)
	require.NoError(t, err)
	return r
}

func TestEmptyOntologyIsConsistent(t *testing.T) {
	f := newFixture()
	ok, err := f.reasoner(t).IsConsistent()
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestToldSubsumption(t *testing.T) {
	f := newFixture()
	f.add(t,
		owl.SubClassOf{Sub: f.c("Dog"), Super: f.c("Mammal")},
		owl.SubClassOf{Sub: f.c("Mammal"), Super: f.c("Animal")},
	)
	r := f.reasoner(t)

	tests := []struct {
		name     string
		sub, sup owl.ClassExpression
		want     bool
	}{
		{"direct", f.c("Dog"), f.c("Mammal"), true},
		{"transitive", f.c("Dog"), f.c("Animal"), true},
		{"reverse", f.c("Animal"), f.c("Dog"), false},
		{"reflexive", f.c("Dog"), f.c("Dog"), true},
		{"thing", f.c("Dog"), owl.Class(f.reg.MustGet(iri.OWLThing)), true},
		{"nothing", owl.Class(f.reg.MustGet(iri.OWLNothing)), f.c("Dog"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.IsSubClassOf(tt.sub, tt.sup)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDisjointClassesMakeSharedInstanceInconsistent(t *testing.T) {
	f := newFixture()
	f.add(t,
		owl.DisjointClasses{Classes: []owl.ClassExpression{f.c("Cat"), f.c("Dog")}},
		owl.ClassAssertion{Class: f.c("Cat"), Individual: f.iri("tom")},
	)
	r := f.reasoner(t)

	ok, err := r.IsConsistent()
	require.NoError(t, err)
	assert.True(t, ok)

	f.add(t, owl.ClassAssertion{Class: f.c("Dog"), Individual: f.iri("tom")})
	ok, err = r.IsConsistent()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 2, r.Metrics().KBBuilds)
}

func TestUnionRequiresBacktracking(t *testing.T) {
	f := newFixture()
	f.add(t,
		owl.SubClassOf{Sub: f.c("Pet"), Super: owl.Or(f.c("Cat"), f.c("Dog"))},
		owl.SubClassOf{Sub: f.c("Cat"), Super: f.c("Animal")},
		owl.SubClassOf{Sub: f.c("Dog"), Super: f.c("Animal")},
	)
	r := f.reasoner(t)

	ok, err := r.IsSubClassOf(f.c("Pet"), f.c("Animal"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Greater(t, r.Metrics().Backtracks, 0)

	ok, err = r.IsSubClassOf(f.c("Pet"), f.c("Cat"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSomeAndAllClash(t *testing.T) {
	f := newFixture()
	r := f.iri("eats")
	f.add(t,
		owl.SubClassOf{Sub: f.c("Carnivore"), Super: owl.Some(r, f.c("Plant"))},
		owl.SubClassOf{Sub: f.c("Carnivore"), Super: owl.All(r, owl.Not(f.c("Plant")))},
	)
	ok, err := f.reasoner(t).IsSatisfiable(f.c("Carnivore"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBackjumpingSkipsIrrelevantChoices(t *testing.T) {
	f := newFixture()
	r := f.iri("r")
	f.add(t,
		owl.SubClassOf{Sub: f.c("X"), Super: owl.And(
			owl.Or(f.c("A1"), f.c("B1")),
			owl.Or(f.c("A2"), f.c("B2")),
			owl.Or(f.c("A3"), f.c("B3")),
			owl.Some(r, owl.And(f.c("C"), owl.Not(f.c("C")))),
		)},
	)
	rs := f.reasoner(t)

	ok, err := rs.IsSatisfiable(f.c("X"))
	require.NoError(t, err)
	assert.False(t, ok)
	m := rs.Metrics()
	assert.Equal(t, 0, m.Backtracks)
	assert.Equal(t, 3, m.Backjumps)
}

func TestTransitivePropagation(t *testing.T) {
	f := newFixture()
	part := f.iri("partOf")
	a, b, c := f.iri("a"), f.iri("b"), f.iri("c")
	f.add(t,
		owl.TransitiveObjectProperty{Property: part},
		owl.ObjectPropertyAssertion{Property: part, Subject: a, Object: b},
		owl.ObjectPropertyAssertion{Property: part, Subject: b, Object: c},
		owl.ClassAssertion{Class: owl.All(part, f.c("Component")), Individual: a},
	)
	r := f.reasoner(t)

	ok, err := r.IsInstanceOf(c, f.c("Component"))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.IsInstanceOf(a, f.c("Component"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSymmetricProperty(t *testing.T) {
	f := newFixture()
	friend := f.iri("friendOf")
	f.add(t,
		owl.SymmetricObjectProperty{Property: friend},
		owl.ObjectPropertyAssertion{Property: friend, Subject: f.iri("ann"), Object: f.iri("bob")},
		owl.ClassAssertion{Class: owl.All(friend, f.c("Happy")), Individual: f.iri("bob")},
	)
	ok, err := f.reasoner(t).IsInstanceOf(f.iri("ann"), f.c("Happy"))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRoleHierarchy(t *testing.T) {
	f := newFixture()
	owns, has := f.iri("owns"), f.iri("has")
	f.add(t,
		owl.SubObjectPropertyOf{Sub: owns, Super: has},
		owl.ObjectPropertyAssertion{Property: owns, Subject: f.iri("ann"), Object: f.iri("car")},
	)
	r := f.reasoner(t)

	ok, err := r.IsInstanceOf(f.iri("ann"), owl.Some(has, owl.Class(f.reg.MustGet(iri.OWLThing))))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.IsSubClassOf(owl.Some(owns, f.c("Car")), owl.Some(has, f.c("Car")))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEqualityAndInequality(t *testing.T) {
	t.Run("functional merge clashes", func(t *testing.T) {
		f := newFixture()
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
	})

	t.Run("functional merge propagates labels", func(t *testing.T) {
		f := newFixture()
		mother := f.iri("mother")
		f.add(t,
			owl.FunctionalObjectProperty{Property: mother},
			owl.ObjectPropertyAssertion{Property: mother, Subject: f.iri("kim"), Object: f.iri("ann")},
			owl.ObjectPropertyAssertion{Property: mother, Subject: f.iri("kim"), Object: f.iri("eve")},
			owl.ClassAssertion{Class: f.c("Doctor"), Individual: f.iri("ann")},
		)
		ok, err := f.reasoner(t).IsInstanceOf(f.iri("eve"), f.c("Doctor"))
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("inverse functional merge", func(t *testing.T) {
		f := newFixture()
		ssn := f.iri("hasSSN")
		f.add(t,
			owl.InverseFunctionalObjectProperty{Property: ssn},
			owl.ObjectPropertyAssertion{Property: ssn, Subject: f.iri("p1"), Object: f.iri("n42")},
			owl.ObjectPropertyAssertion{Property: ssn, Subject: f.iri("p2"), Object: f.iri("n42")},
			owl.DifferentIndividuals{Individuals: []*iri.IRI{f.iri("p1"), f.iri("p2")}},
		)
		ok, err := f.reasoner(t).IsConsistent()
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("same individual", func(t *testing.T) {
		f := newFixture()
		f.add(t,
			owl.SameIndividual{Individuals: []*iri.IRI{f.iri("a"), f.iri("b")}},
			owl.ClassAssertion{Class: f.c("A"), Individual: f.iri("a")},
			owl.ClassAssertion{Class: owl.Not(f.c("A")), Individual: f.iri("b")},
		)
		ok, err := f.reasoner(t).IsConsistent()
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestCardinality(t *testing.T) {
	f := newFixture()
	child := f.iri("hasChild")
	thing := owl.Class(f.reg.MustGet(iri.OWLThing))
	r := f.reasoner(t)

	tests := []struct {
		name string
		ce   owl.ClassExpression
		want bool
	}{
		{"min over max", owl.And(owl.Min(2, child, thing), owl.Max(1, child, thing)), false},
		{"qualified min over max", owl.And(owl.Min(2, child, f.c("Girl")), owl.Max(1, child, thing)), false},
		{"max merges successors", owl.And(
			owl.Max(1, child, thing),
			owl.Some(child, f.c("Girl")),
			owl.Some(child, f.c("Doctor")),
		), true},
		{"max merge clash", owl.And(
			owl.Max(1, child, thing),
			owl.Some(child, f.c("Girl")),
			owl.Some(child, owl.Not(f.c("Girl"))),
		), false},
		{"exactly", owl.Exactly(3, child, thing), true},
		{"zero max", owl.And(owl.Max(0, child, thing), owl.Some(child, thing)), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.IsSatisfiable(tt.ce)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCyclicDefinitionsTerminate(t *testing.T) {
	for _, blocking := range []Blocking{BlockingSubset, BlockingEquality} {
		t.Run(blocking.String(), func(t *testing.T) {
			f := newFixture()
			parent := f.iri("hasParent")
			f.add(t, owl.SubClassOf{Sub: f.c("Person"), Super: owl.Some(parent, f.c("Person"))})
			cfg := DefaultConfig()
			cfg.Blocking = blocking
			r := f.reasoner(t, cfg)

			ok, err := r.IsSatisfiable(f.c("Person"))
			require.NoError(t, err)
			assert.True(t, ok)
		})
	}
}

func TestStepBudgetExhaustion(t *testing.T) {
	f := newFixture()
	f.add(t, owl.ClassAssertion{
		Class:      owl.And(f.c("A"), f.c("B"), f.c("C"), f.c("D")),
		Individual: f.iri("x"),
	})
	r := f.reasoner(t, Config{MaxSteps: 2, Timeout: time.Minute})

	_, err := r.IsConsistent()
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrResourceExceeded)
	assert.True(t, errs.IsRecoverable(err))

	m := r.Metrics()
	assert.Equal(t, 1, m.Aborted)
	assert.Zero(t, m.Last.Memory.TotalArenaBytes, "partial state must be rolled back")
	assert.Positive(t, m.Last.Memory.PeakMemoryBytes)
}

func TestInvalidExpression(t *testing.T) {
	f := newFixture()
	_, err := f.reasoner(t).IsSatisfiable(owl.And())
	assert.True(t, errs.IsInvalid(err))
}

func TestMetricsExport(t *testing.T) {
	f := newFixture()
	f.add(t, owl.ClassAssertion{Class: f.c("A"), Individual: f.iri("a")})
	reg := prometheus.NewRegistry()
	r, err := New(f.ont, DefaultConfig(), WithRegisterer(reg))
	require.NoError(t, err)

	_, err = r.IsConsistent()
	require.NoError(t, err)
	_, err = r.IsInstanceOf(f.iri("a"), f.c("A"))
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.sessions.WithLabelValues("consistent")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.sessions.WithLabelValues("inconsistent")))
	assert.Equal(t, 1, r.Metrics().KBBuilds)
	assert.Equal(t, 2, r.MemoryStats().Sessions)

	_, err = New(f.ont, DefaultConfig(), WithRegisterer(reg))
	assert.Error(t, err, "duplicate registration")
}

func TestConcurrentSessions(t *testing.T) {
	f := newFixture()
	f.add(t,
		owl.SubClassOf{Sub: f.c("Dog"), Super: owl.Or(f.c("Pet"), f.c("Stray"))},
		owl.SubClassOf{Sub: f.c("Pet"), Super: f.c("Animal")},
		owl.SubClassOf{Sub: f.c("Stray"), Super: f.c("Animal")},
	)
	r := f.reasoner(t)

	var wg sync.WaitGroup
	results := make([]bool, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, err := r.IsSubClassOf(f.c("Dog"), f.c("Animal"))
			assert.NoError(t, err)
			results[i] = ok
		}(i)
	}
	wg.Wait()
	for _, ok := range results {
		assert.True(t, ok)
	}
	assert.Equal(t, 1, r.Metrics().KBBuilds)
}

func TestParseBlocking(t *testing.T) {
	for in, want := range map[string]Blocking{"": BlockingAuto, "auto": BlockingAuto, "Subset": BlockingSubset, "equality": BlockingEquality} {
		got, err := ParseBlocking(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseBlocking("pairwise")
	assert.True(t, errs.IsInvalid(err))
}
