package arena

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"owlreasoner/internal/errs"
)

type node struct {
	label []string
}

func counts(s Stats) Stats {
	return Stats{
		Nodes:           s.Nodes,
		Strings:         s.Strings,
		Mutations:       s.Mutations,
		Checkpoints:     s.Checkpoints,
		TotalArenaBytes: s.TotalArenaBytes,
	}
}

func TestAllocateAndGet(t *testing.T) {
	a := New[node]()
	h := a.Allocate(&node{label: []string{"A"}}, 64)

	n, err := a.Get(h)
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, n.label)
	assert.Equal(t, 0, h.Index())
	assert.Equal(t, 1, a.Len())
	assert.Equal(t, h, a.HandleAt(0))
}

func TestRollbackRestoresStats(t *testing.T) {
	a := New[node]()
	a.Allocate(&node{}, 32)
	a.InternString("Person")
	before := a.Stats()
	cp := a.Checkpoint()
	atCheckpoint := a.Stats()

	h := a.Allocate(&node{}, 48)
	n := a.MustGet(h)
	n.label = append(n.label, "Dog")
	a.Record(16, func() { n.label = n.label[:len(n.label)-1] })
	a.InternString("Animal")
	a.Checkpoint()

	require.NoError(t, a.RollbackTo(cp))

	assert.Equal(t, counts(atCheckpoint), counts(a.Stats()))
	assert.Equal(t, before.TotalArenaBytes, a.Stats().TotalArenaBytes)
	assert.Equal(t, 32+6+48+16+6, a.Stats().PeakMemoryBytes, "peak is a high-water mark")
	assert.Equal(t, 1, a.Stats().Rollbacks)
	assert.Empty(t, n.label, "undo log reverted the mutation")
}

func TestStaleHandleDetected(t *testing.T) {
	a := New[node]()
	cp := a.Checkpoint()
	stale := a.Allocate(&node{}, 8)
	require.NoError(t, a.RollbackTo(cp))

	_, err := a.Get(stale)
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrArenaCorruption)

	// The index is reused by a new allocation in a new generation.
	fresh := a.Allocate(&node{}, 8)
	assert.Equal(t, stale.Index(), fresh.Index())
	assert.NotEqual(t, stale.Generation(), fresh.Generation())
	_, err = a.Get(stale)
	assert.True(t, errs.IsFatal(err))
	_, err = a.Get(fresh)
	assert.NoError(t, err)
}

func TestHandlesBeforeCheckpointSurvive(t *testing.T) {
	a := New[node]()
	kept := a.Allocate(&node{label: []string{"root"}}, 8)
	cp := a.Checkpoint()
	a.Allocate(&node{}, 8)
	require.NoError(t, a.RollbackTo(cp))

	n, err := a.Get(kept)
	require.NoError(t, err)
	assert.Equal(t, []string{"root"}, n.label)
}

func TestNestedCheckpoints(t *testing.T) {
	a := New[node]()
	outer := a.Checkpoint()
	a.Allocate(&node{}, 8)
	inner := a.Checkpoint()
	a.Allocate(&node{}, 8)

	require.NoError(t, a.RollbackTo(inner))
	assert.Equal(t, 1, a.Len())

	// Retrying the same checkpoint is allowed.
	a.Allocate(&node{}, 8)
	require.NoError(t, a.RollbackTo(inner))
	assert.Equal(t, 1, a.Len())

	require.NoError(t, a.RollbackTo(outer))
	assert.Equal(t, 0, a.Len())

	err := a.RollbackTo(inner)
	assert.ErrorIs(t, err, errs.ErrArenaCorruption, "inner was discarded by the outer rollback")
	assert.Error(t, a.RollbackTo(-1))
}

func TestInternString(t *testing.T) {
	a := New[node]()
	h1 := a.InternString("Dog")
	h2 := a.InternString("Dog")
	assert.Equal(t, h1, h2)
	assert.Equal(t, 1, a.Stats().Strings)

	cp := a.Checkpoint()
	h3 := a.InternString("Cat")
	require.NoError(t, a.RollbackTo(cp))

	_, err := a.String(h3)
	assert.Error(t, err)
	s, err := a.String(h1)
	require.NoError(t, err)
	assert.Equal(t, "Dog", s)

	// Cat can be interned again after its entry was discarded.
	h4 := a.InternString("Cat")
	s, err = a.String(h4)
	require.NoError(t, err)
	assert.Equal(t, "Cat", s)
}

func TestUndoRunsInReverseOrder(t *testing.T) {
	a := New[node]()
	var order []int
	cp := a.Checkpoint()
	for i := 0; i < 3; i++ {
		i := i
		a.Record(0, func() { order = append(order, i) })
	}
	require.NoError(t, a.RollbackTo(cp))
	assert.Equal(t, []int{2, 1, 0}, order)
}

func TestReset(t *testing.T) {
	a := New[node]()
	h := a.Allocate(&node{}, 100)
	a.Reset()
	assert.Equal(t, 0, a.Stats().TotalArenaBytes)
	assert.Equal(t, 100, a.Stats().PeakMemoryBytes)
	_, err := a.Get(h)
	assert.Error(t, err)
}
