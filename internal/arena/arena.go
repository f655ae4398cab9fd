// Package arena provides index-based allocation with checkpoint and rollback.
//
// An Arena owns a growable slot array, a string table and an undo log. A
// checkpoint records the lengths of all three; rolling back runs the undo log
// backwards, truncates the slots and strings, and bumps the generation. Every
// slot remembers the generation it was allocated in and every handle carries
// that generation, so a handle to a slot discarded by a rollback can never be
// dereferenced, even after the index is reused.
//
// An Arena has a single owner and is not safe for concurrent use.
package arena

import (
	"owlreasoner/internal/errs"
	"owlreasoner/internal/logging"
)

// Handle addresses a slot in an Arena.
type Handle struct {
	index uint32
	gen   uint32
}

// Index returns the slot index.
func (h Handle) Index() int { return int(h.index) }

// Generation returns the generation the slot was allocated in.
func (h Handle) Generation() uint32 { return h.gen }

// StringHandle addresses an interned string in an Arena.
type StringHandle struct {
	index uint32
	gen   uint32
}

// CheckpointID identifies a checkpoint. IDs are positions in the checkpoint
// stack; rolling back to an ID discards every later checkpoint.
type CheckpointID int

type slot[T any] struct {
	value *T
	gen   uint32
	bytes int
}

type stringSlot struct {
	value string
	gen   uint32
}

type undoEntry struct {
	bytes int
	undo  func()
}

type checkpoint struct {
	slots      int
	strings    int
	undo       int
	totalBytes int
	generation uint32
}

// Stats reports arena usage. Every field except PeakMemoryBytes, Rollbacks and
// Generation is restored exactly by a rollback.
type Stats struct {
	Nodes           int
	Strings         int
	Mutations       int
	Checkpoints     int
	TotalArenaBytes int
	PeakMemoryBytes int
	Rollbacks       int
	Generation      uint32
}

// Arena is a checkpointable allocator for values of type T.
type Arena[T any] struct {
	slots       []slot[T]
	strings     []stringSlot
	stringIndex map[string]uint32
	log         []undoEntry
	checkpoints []checkpoint

	generation uint32
	totalBytes int
	peakBytes  int
	rollbacks  int
}

// New creates an empty arena.
func New[T any]() *Arena[T] {
	return &Arena[T]{stringIndex: make(map[string]uint32)}
}

func (a *Arena[T]) grow(bytes int) {
	a.totalBytes += bytes
	if a.totalBytes > a.peakBytes {
		a.peakBytes = a.totalBytes
	}
}

// Allocate stores v and returns its handle. bytes is the caller's estimate of
// the value's footprint and feeds the memory statistics.
func (a *Arena[T]) Allocate(v *T, bytes int) Handle {
	a.slots = append(a.slots, slot[T]{value: v, gen: a.generation, bytes: bytes})
	a.grow(bytes)
	return Handle{index: uint32(len(a.slots) - 1), gen: a.generation}
}

// Get dereferences h. It fails with ArenaCorruption when the slot was
// discarded by a rollback.
func (a *Arena[T]) Get(h Handle) (*T, error) {
	if int(h.index) >= len(a.slots) {
		return nil, errs.New(errs.KindArenaCorruption, "arena.Get", "handle %d beyond %d live slots", h.index, len(a.slots))
	}
	s := a.slots[h.index]
	if s.gen != h.gen {
		return nil, errs.New(errs.KindArenaCorruption, "arena.Get", "stale handle %d (generation %d, slot generation %d)", h.index, h.gen, s.gen)
	}
	return s.value, nil
}

// MustGet dereferences h and panics on a stale handle. Callers use it where a
// stale handle is a programming error inside one session.
func (a *Arena[T]) MustGet(h Handle) *T {
	v, err := a.Get(h)
	if err != nil {
		panic(err)
	}
	return v
}

// Len returns the number of live slots.
func (a *Arena[T]) Len() int { return len(a.slots) }

// HandleAt returns the handle of the i-th live slot.
func (a *Arena[T]) HandleAt(i int) Handle {
	return Handle{index: uint32(i), gen: a.slots[i].gen}
}

// InternString stores s once per live arena state and returns its handle.
func (a *Arena[T]) InternString(s string) StringHandle {
	if idx, ok := a.stringIndex[s]; ok {
		return StringHandle{index: idx, gen: a.strings[idx].gen}
	}
	a.strings = append(a.strings, stringSlot{value: s, gen: a.generation})
	idx := uint32(len(a.strings) - 1)
	a.stringIndex[s] = idx
	a.grow(len(s))
	return StringHandle{index: idx, gen: a.generation}
}

// String dereferences a string handle.
func (a *Arena[T]) String(h StringHandle) (string, error) {
	if int(h.index) >= len(a.strings) || a.strings[h.index].gen != h.gen {
		return "", errs.New(errs.KindArenaCorruption, "arena.String", "stale string handle %d", h.index)
	}
	return a.strings[h.index].value, nil
}

// Record appends a mutation to the undo log. undo must revert the mutation; it
// runs when a rollback crosses this entry.
func (a *Arena[T]) Record(bytes int, undo func()) {
	a.log = append(a.log, undoEntry{bytes: bytes, undo: undo})
	a.grow(bytes)
}

// Checkpoint captures the current state.
func (a *Arena[T]) Checkpoint() CheckpointID {
	a.checkpoints = append(a.checkpoints, checkpoint{
		slots:      len(a.slots),
		strings:    len(a.strings),
		undo:       len(a.log),
		totalBytes: a.totalBytes,
		generation: a.generation,
	})
	return CheckpointID(len(a.checkpoints) - 1)
}

// RollbackTo discards every allocation and mutation made after id was taken.
// The checkpoint itself stays valid and can be rolled back to again; later
// checkpoints are discarded.
func (a *Arena[T]) RollbackTo(id CheckpointID) error {
	if id < 0 || int(id) >= len(a.checkpoints) {
		return errs.New(errs.KindArenaCorruption, "arena.RollbackTo", "unknown checkpoint %d (%d live)", id, len(a.checkpoints))
	}
	cp := a.checkpoints[id]

	for i := len(a.log) - 1; i >= cp.undo; i-- {
		if undo := a.log[i].undo; undo != nil {
			undo()
		}
		a.log[i] = undoEntry{}
	}
	a.log = a.log[:cp.undo]

	for i := cp.slots; i < len(a.slots); i++ {
		a.slots[i] = slot[T]{}
	}
	a.slots = a.slots[:cp.slots]

	for i := cp.strings; i < len(a.strings); i++ {
		delete(a.stringIndex, a.strings[i].value)
	}
	a.strings = a.strings[:cp.strings]

	a.checkpoints = a.checkpoints[:id+1]
	a.totalBytes = cp.totalBytes
	a.generation++
	a.rollbacks++

	logging.ArenaDebug("rollback to checkpoint %d: %d slots, %d strings, generation %d",
		id, len(a.slots), len(a.strings), a.generation)
	return nil
}

// Reset discards everything, as if the arena were new, keeping the peak and
// bumping the generation.
func (a *Arena[T]) Reset() {
	a.slots = nil
	a.strings = nil
	a.stringIndex = make(map[string]uint32)
	a.log = nil
	a.checkpoints = nil
	a.totalBytes = 0
	a.generation++
}

// Stats returns usage counters.
func (a *Arena[T]) Stats() Stats {
	return Stats{
		Nodes:           len(a.slots),
		Strings:         len(a.strings),
		Mutations:       len(a.log),
		Checkpoints:     len(a.checkpoints),
		TotalArenaBytes: a.totalBytes,
		PeakMemoryBytes: a.peakBytes,
		Rollbacks:       a.rollbacks,
		Generation:      a.generation,
	}
}
