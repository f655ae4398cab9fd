// Package ontology stores declared entities and axioms and maintains the
// indexes the reasoning components read from. All indexes are kept consistent
// with the raw axiom list across additions and removals.
package ontology

import (
	"fmt"
	"reflect"
	"sync"

	"owlreasoner/internal/errs"
	"owlreasoner/internal/iri"
	"owlreasoner/internal/logging"
	"owlreasoner/internal/owl"
)

// Mode controls how references to undeclared entities are treated.
type Mode int

const (
	// ModeStrict rejects axioms that reference undeclared entities.
	ModeStrict Mode = iota
	// ModeAutoDeclare declares missing entities with the kind the axiom expects.
	ModeAutoDeclare
)

func (m Mode) String() string {
	if m == ModeAutoDeclare {
		return "auto-declare"
	}
	return "strict"
}

// MutationKind describes what changed in the ontology.
type MutationKind int

const (
	MutationDeclare MutationKind = iota
	MutationAddAxiom
	MutationRemoveAxiom
)

// Mutation is delivered to listeners after every change.
type Mutation struct {
	Kind    MutationKind
	Axiom   owl.Axiom     // set for axiom mutations
	Entity  owl.EntityRef // set for declarations
	Version uint64
}

// Option configures an Ontology.
type Option func(*Ontology)

// WithMode selects strict or auto-declare handling of undeclared entities.
func WithMode(m Mode) Option {
	return func(o *Ontology) { o.mode = m }
}

// Stats summarizes the ontology contents.
type Stats struct {
	Classes          int
	ObjectProperties int
	DataProperties   int
	Individuals      int
	Axioms           int
	Version          uint64
}

// Ontology owns declared entities, axioms and their indexes. Reads may run
// concurrently; mutations are exclusive.
type Ontology struct {
	mu       sync.RWMutex
	registry *iri.Registry
	mode     Mode

	declared [4]iri.Set     // indexed by owl.EntityKind
	order    [4][]*iri.IRI  // declaration order per kind
	axioms   []owl.Axiom    // insertion order
	position map[string]int // axiom key -> index in axioms
	ix       *indexes

	version   uint64
	listeners []func(Mutation)
}

// New creates an empty ontology over registry.
func New(registry *iri.Registry, opts ...Option) *Ontology {
	o := &Ontology{
		registry: registry,
		mode:     ModeStrict,
		position: make(map[string]int),
		ix:       newIndexes(),
	}
	for k := range o.declared {
		o.declared[k] = make(iri.Set)
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Registry returns the IRI registry the ontology interns into.
func (o *Ontology) Registry() *iri.Registry { return o.registry }

// Mode returns the declaration mode.
func (o *Ontology) Mode() Mode { return o.mode }

// OnMutation registers fn to be called after every successful mutation.
// Listeners run outside the ontology lock.
func (o *Ontology) OnMutation(fn func(Mutation)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.listeners = append(o.listeners, fn)
}

func (o *Ontology) notify(listeners []func(Mutation), m Mutation) {
	for _, fn := range listeners {
		fn(m)
	}
}

// =============================================================================
// DECLARATIONS
// =============================================================================

func (o *Ontology) AddClass(i *iri.IRI) error { return o.declare(i, owl.EntityClass) }

func (o *Ontology) AddObjectProperty(i *iri.IRI) error {
	return o.declare(i, owl.EntityObjectProperty)
}

func (o *Ontology) AddDataProperty(i *iri.IRI) error { return o.declare(i, owl.EntityDataProperty) }

func (o *Ontology) AddNamedIndividual(i *iri.IRI) error {
	return o.declare(i, owl.EntityIndividual)
}

func (o *Ontology) declare(i *iri.IRI, kind owl.EntityKind) error {
	if i == nil {
		return errs.New(errs.KindInvalidArgument, "ontology.declare", "nil IRI for %s", kind)
	}
	o.mu.Lock()
	if o.declared[kind].Has(i) {
		o.mu.Unlock()
		return nil
	}
	o.declareLocked(i, kind)
	o.version++
	m := Mutation{Kind: MutationDeclare, Entity: owl.EntityRef{IRI: i, Kind: kind}, Version: o.version}
	listeners := o.listeners
	o.mu.Unlock()

	logging.OntologyDebug("declared %s %s", kind, i.Compact())
	o.notify(listeners, m)
	return nil
}

func (o *Ontology) declareLocked(i *iri.IRI, kind owl.EntityKind) {
	o.declared[kind].Add(i)
	o.order[kind] = append(o.order[kind], i)
}

// IsDeclared reports whether i is declared as kind. owl:Thing and owl:Nothing
// are always declared classes.
func (o *Ontology) IsDeclared(i *iri.IRI, kind owl.EntityKind) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.isDeclaredLocked(i, kind)
}

func (o *Ontology) isDeclaredLocked(i *iri.IRI, kind owl.EntityKind) bool {
	if kind == owl.EntityClass && (i.IsThing() || i.IsNothing()) {
		return true
	}
	return o.declared[kind].Has(i)
}

// =============================================================================
// AXIOMS
// =============================================================================

// AddAxiom validates ax against the declared entities and stores it.
// Re-adding an axiom with the same canonical key returns a DuplicateAxiom
// error (non-fatal) and leaves the ontology unchanged.
func (o *Ontology) AddAxiom(ax owl.Axiom) error {
	const op = "ontology.AddAxiom"
	if err := owl.ValidateAxiom(ax); err != nil {
		return errs.Wrap(errs.KindInvalidArgument, op, err)
	}
	key := ax.Key()

	o.mu.Lock()
	if _, dup := o.position[key]; dup {
		o.mu.Unlock()
		return errs.New(errs.KindDuplicateAxiom, op, "%s", key)
	}

	refs := ax.Signature()
	var missing []owl.EntityRef
	for _, ref := range refs {
		if !o.isDeclaredLocked(ref.IRI, ref.Kind) {
			missing = append(missing, ref)
		}
	}
	if len(missing) > 0 && o.mode == ModeStrict {
		o.mu.Unlock()
		ref := missing[0]
		return errs.New(errs.KindUnknownEntityReference, op, "%s %s is not declared", ref.Kind, ref.IRI)
	}
	for _, ref := range missing {
		if !o.declared[ref.Kind].Has(ref.IRI) {
			o.declareLocked(ref.IRI, ref.Kind)
		}
	}

	o.position[key] = len(o.axioms)
	o.axioms = append(o.axioms, ax)
	o.ix.add(ax)
	o.version++
	m := Mutation{Kind: MutationAddAxiom, Axiom: ax, Version: o.version}
	listeners := o.listeners
	o.mu.Unlock()

	logging.OntologyDebug("added %s (v%d)", ax.Kind(), m.Version)
	o.notify(listeners, m)
	return nil
}

// RemoveAxiom deletes ax and every index entry derived from it. It reports
// whether the axiom was present.
func (o *Ontology) RemoveAxiom(ax owl.Axiom) (bool, error) {
	if err := owl.ValidateAxiom(ax); err != nil {
		return false, errs.Wrap(errs.KindInvalidArgument, "ontology.RemoveAxiom", err)
	}
	key := ax.Key()

	o.mu.Lock()
	pos, ok := o.position[key]
	if !ok {
		o.mu.Unlock()
		return false, nil
	}
	stored := o.axioms[pos]
	o.axioms = append(o.axioms[:pos], o.axioms[pos+1:]...)
	delete(o.position, key)
	for i := pos; i < len(o.axioms); i++ {
		o.position[o.axioms[i].Key()] = i
	}
	o.ix.remove(stored)
	o.version++
	m := Mutation{Kind: MutationRemoveAxiom, Axiom: stored, Version: o.version}
	listeners := o.listeners
	o.mu.Unlock()

	logging.OntologyDebug("removed %s (v%d)", stored.Kind(), m.Version)
	o.notify(listeners, m)
	return true, nil
}

// ContainsAxiom reports whether an axiom with the same canonical key exists.
func (o *Ontology) ContainsAxiom(ax owl.Axiom) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	_, ok := o.position[ax.Key()]
	return ok
}

// CheckIndexes rebuilds every index from the axiom list and compares it with
// the incrementally maintained one.
func (o *Ontology) CheckIndexes() error {
	o.mu.RLock()
	defer o.mu.RUnlock()

	fresh := newIndexes()
	for _, ax := range o.axioms {
		fresh.add(ax)
	}
	if !reflect.DeepEqual(fresh, o.ix) {
		return fmt.Errorf("ontology indexes diverged from %d axioms", len(o.axioms))
	}
	if len(o.position) != len(o.axioms) {
		return fmt.Errorf("axiom position map has %d entries for %d axioms", len(o.position), len(o.axioms))
	}
	for i, ax := range o.axioms {
		if o.position[ax.Key()] != i {
			return fmt.Errorf("axiom %d has stale position", i)
		}
	}
	return nil
}

// Version increases on every mutation.
func (o *Ontology) Version() uint64 {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.version
}

// Stats returns entity and axiom counts.
func (o *Ontology) Stats() Stats {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return Stats{
		Classes:          len(o.order[owl.EntityClass]),
		ObjectProperties: len(o.order[owl.EntityObjectProperty]),
		DataProperties:   len(o.order[owl.EntityDataProperty]),
		Individuals:      len(o.order[owl.EntityIndividual]),
		Axioms:           len(o.axioms),
		Version:          o.version,
	}
}
