package tableaux

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"owlreasoner/internal/iri"
	"owlreasoner/internal/owl"
)

// conceptID indexes a concept in a conceptTable.
type conceptID int32

type conceptKind uint8

const (
	cTop conceptKind = iota
	cBottom
	cAtom
	cNegAtom
	cAnd
	cOr
	cSome
	cAll
	cMin
	cMax
)

// concept is a class expression in negation normal form. Concepts are
// interned: structurally equal concepts share one id.
type concept struct {
	kind   conceptKind
	atom   *iri.IRI    // cAtom, cNegAtom
	ops    []conceptID // cAnd, cOr; sorted and deduplicated
	role   *iri.IRI    // cSome, cAll, cMin, cMax
	filler conceptID   // cSome, cAll, cMin, cMax
	n      int         // cMin, cMax
	key    string
	neg    conceptID
	hasNeg bool
}

// conceptTable interns NNF concepts. A table built for one ontology version is
// shared read-only by every session; sessions fork it to add the concepts of
// their own query without touching the shared part.
type conceptTable struct {
	base   *conceptTable
	offset int
	items  []concept
	index  map[string]conceptID
}

const (
	topID    conceptID = 0
	bottomID conceptID = 1
)

func newConceptTable() *conceptTable {
	t := &conceptTable{index: make(map[string]conceptID)}
	t.items = append(t.items,
		concept{kind: cTop, key: "T", neg: bottomID, hasNeg: true},
		concept{kind: cBottom, key: "F", neg: topID, hasNeg: true},
	)
	t.index["T"] = topID
	t.index["F"] = bottomID
	return t
}

// fork returns a table that reads through to t and stores additions locally.
// t must be closed under negation before it is forked.
func (t *conceptTable) fork() *conceptTable {
	return &conceptTable{base: t, offset: t.size(), index: make(map[string]conceptID)}
}

func (t *conceptTable) size() int { return t.offset + len(t.items) }

func (t *conceptTable) get(id conceptID) *concept {
	if int(id) < t.offset {
		return t.base.get(id)
	}
	return &t.items[int(id)-t.offset]
}

func (t *conceptTable) lookup(key string) (conceptID, bool) {
	if t.base != nil {
		if id, ok := t.base.lookup(key); ok {
			return id, true
		}
	}
	id, ok := t.index[key]
	return id, ok
}

func (t *conceptTable) intern(c concept) conceptID {
	if id, ok := t.lookup(c.key); ok {
		return id
	}
	id := conceptID(t.size())
	t.items = append(t.items, c)
	t.index[c.key] = id
	return id
}

// =============================================================================
// CONSTRUCTORS
// =============================================================================

func (t *conceptTable) atom(i *iri.IRI) conceptID {
	if i.IsThing() {
		return topID
	}
	if i.IsNothing() {
		return bottomID
	}
	return t.intern(concept{kind: cAtom, atom: i, key: "A<" + i.String() + ">"})
}

func (t *conceptTable) negAtom(i *iri.IRI) conceptID {
	return t.intern(concept{kind: cNegAtom, atom: i, key: "N<" + i.String() + ">"})
}

func joinIDs(ids []conceptID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(int(id))
	}
	return strings.Join(parts, ",")
}

func (t *conceptTable) and(ops ...conceptID) conceptID {
	set := make(map[conceptID]struct{}, len(ops))
	var add func(id conceptID)
	add = func(id conceptID) {
		c := t.get(id)
		if c.kind == cAnd {
			for _, op := range c.ops {
				add(op)
			}
			return
		}
		set[id] = struct{}{}
	}
	for _, op := range ops {
		add(op)
	}
	if _, ok := set[bottomID]; ok {
		return bottomID
	}
	delete(set, topID)
	flat := make([]conceptID, 0, len(set))
	for id := range set {
		flat = append(flat, id)
	}
	switch len(flat) {
	case 0:
		return topID
	case 1:
		return flat[0]
	}
	sort.Slice(flat, func(a, b int) bool { return flat[a] < flat[b] })
	return t.intern(concept{kind: cAnd, ops: flat, key: "and(" + joinIDs(flat) + ")"})
}

func (t *conceptTable) or(ops ...conceptID) conceptID {
	set := make(map[conceptID]struct{}, len(ops))
	var add func(id conceptID)
	add = func(id conceptID) {
		c := t.get(id)
		if c.kind == cOr {
			for _, op := range c.ops {
				add(op)
			}
			return
		}
		set[id] = struct{}{}
	}
	for _, op := range ops {
		add(op)
	}
	if _, ok := set[topID]; ok {
		return topID
	}
	delete(set, bottomID)
	flat := make([]conceptID, 0, len(set))
	for id := range set {
		flat = append(flat, id)
	}
	switch len(flat) {
	case 0:
		return bottomID
	case 1:
		return flat[0]
	}
	sort.Slice(flat, func(a, b int) bool { return flat[a] < flat[b] })
	return t.intern(concept{kind: cOr, ops: flat, key: "or(" + joinIDs(flat) + ")"})
}

func (t *conceptTable) some(role *iri.IRI, filler conceptID) conceptID {
	if filler == bottomID {
		return bottomID
	}
	return t.intern(concept{kind: cSome, role: role, filler: filler,
		key: fmt.Sprintf("some(<%s>,%d)", role, filler)})
}

func (t *conceptTable) all(role *iri.IRI, filler conceptID) conceptID {
	if filler == topID {
		return topID
	}
	return t.intern(concept{kind: cAll, role: role, filler: filler,
		key: fmt.Sprintf("all(<%s>,%d)", role, filler)})
}

func (t *conceptTable) min(n int, role *iri.IRI, filler conceptID) conceptID {
	switch {
	case n <= 0:
		return topID
	case filler == bottomID:
		return bottomID
	case n == 1:
		return t.some(role, filler)
	}
	return t.intern(concept{kind: cMin, n: n, role: role, filler: filler,
		key: fmt.Sprintf("min(%d,<%s>,%d)", n, role, filler)})
}

func (t *conceptTable) max(n int, role *iri.IRI, filler conceptID) conceptID {
	if filler == bottomID {
		return topID
	}
	if n == 0 {
		return t.all(role, t.negate(filler))
	}
	return t.intern(concept{kind: cMax, n: n, role: role, filler: filler,
		key: fmt.Sprintf("max(%d,<%s>,%d)", n, role, filler)})
}

// negate returns the NNF complement of id and records it in both directions.
func (t *conceptTable) negate(id conceptID) conceptID {
	c := t.get(id)
	if c.hasNeg {
		return c.neg
	}
	var n conceptID
	switch c.kind {
	case cAtom:
		n = t.negAtom(c.atom)
	case cNegAtom:
		n = t.atom(c.atom)
	case cAnd, cOr:
		ops := append([]conceptID(nil), c.ops...)
		negs := make([]conceptID, len(ops))
		for i, op := range ops {
			negs[i] = t.negate(op)
		}
		if c.kind == cAnd {
			n = t.or(negs...)
		} else {
			n = t.and(negs...)
		}
	case cSome:
		role, filler := c.role, c.filler
		n = t.all(role, t.negate(filler))
	case cAll:
		role, filler := c.role, c.filler
		n = t.some(role, t.negate(filler))
	case cMin:
		num, role, filler := c.n, c.role, c.filler
		n = t.max(num-1, role, filler)
	case cMax:
		num, role, filler := c.n, c.role, c.filler
		n = t.min(num+1, role, filler)
	}
	// t.get must be re-read: interning may have grown the backing slice.
	self := t.get(id)
	self.neg, self.hasNeg = n, true
	if other := t.get(n); !other.hasNeg {
		other.neg, other.hasNeg = id, true
	}
	return n
}

// closeUnderNegation computes the complement of every concept in the table.
func (t *conceptTable) closeUnderNegation() {
	for i := 0; i < t.size(); i++ {
		t.negate(conceptID(i))
	}
}

// fromExpression converts a class expression to NNF.
func (t *conceptTable) fromExpression(ce owl.ClassExpression) conceptID {
	switch c := ce.(type) {
	case owl.NamedClass:
		return t.atom(c.IRI)
	case owl.ObjectIntersectionOf:
		ops := make([]conceptID, len(c.Operands))
		for i, op := range c.Operands {
			ops[i] = t.fromExpression(op)
		}
		return t.and(ops...)
	case owl.ObjectUnionOf:
		ops := make([]conceptID, len(c.Operands))
		for i, op := range c.Operands {
			ops[i] = t.fromExpression(op)
		}
		return t.or(ops...)
	case owl.ObjectComplementOf:
		return t.negate(t.fromExpression(c.Operand))
	case owl.ObjectSomeValuesFrom:
		return t.some(c.Property, t.fromExpression(c.Filler))
	case owl.ObjectAllValuesFrom:
		return t.all(c.Property, t.fromExpression(c.Filler))
	case owl.ObjectCardinality:
		filler := topID
		if c.Filler != nil {
			filler = t.fromExpression(c.Filler)
		}
		switch c.Bound {
		case owl.MinCardinality:
			return t.min(c.N, c.Property, filler)
		case owl.MaxCardinality:
			return t.max(c.N, c.Property, filler)
		default:
			return t.and(t.min(c.N, c.Property, filler), t.max(c.N, c.Property, filler))
		}
	}
	panic(fmt.Sprintf("tableaux: unsupported class expression %T", ce))
}

// describe renders a concept for debug logs.
func (t *conceptTable) describe(id conceptID) string {
	c := t.get(id)
	switch c.kind {
	case cTop:
		return "⊤"
	case cBottom:
		return "⊥"
	case cAtom:
		return c.atom.Compact()
	case cNegAtom:
		return "¬" + c.atom.Compact()
	case cAnd, cOr:
		sep := " ⊓ "
		if c.kind == cOr {
			sep = " ⊔ "
		}
		parts := make([]string, len(c.ops))
		for i, op := range c.ops {
			parts[i] = t.describe(op)
		}
		return "(" + strings.Join(parts, sep) + ")"
	case cSome:
		return "∃" + c.role.Compact() + "." + t.describe(c.filler)
	case cAll:
		return "∀" + c.role.Compact() + "." + t.describe(c.filler)
	case cMin:
		return fmt.Sprintf("≥%d %s.%s", c.n, c.role.Compact(), t.describe(c.filler))
	default:
		return fmt.Sprintf("≤%d %s.%s", c.n, c.role.Compact(), t.describe(c.filler))
	}
}
