package tableaux

import (
	"time"

	"owlreasoner/internal/arena"
	"owlreasoner/internal/errs"
	"owlreasoner/internal/iri"
)

// SessionStats summarizes the work done by one tableau run.
type SessionStats struct {
	Steps      int
	Nodes      int
	Merges     int
	Branches   int
	Backtracks int
	Backjumps  int
	MaxStack   int
	Memory     arena.Stats
}

type altKind uint8

const (
	altConcept altKind = iota
	altMerge
)

type alternative struct {
	kind    altKind
	node    arena.Handle
	concept conceptID
	from    arena.Handle
	into    arena.Handle
}

// choicePoint is one nondeterministic decision on the backtracking stack. Its
// level is its 1-based position in the stack.
type choicePoint struct {
	checkpoint   arena.CheckpointID
	alternatives []alternative
	next         int
	deps         depSet // what made the choice necessary
	failed       depSet // clash causes of the alternatives tried so far
	reason       string
}

// probe adds one concept to the initial completion graph. A nil individual
// asks for a fresh root named name.
type probe struct {
	individual *iri.IRI
	name       *iri.IRI
	concept    conceptID
}

type budget struct {
	maxSteps int
	deadline time.Time
}

// session is a single tableau run. It owns its arena and its fork of the
// concept table; nothing in it is shared with other sessions.
type session struct {
	kb       *kb
	concepts *conceptTable
	arena    *arena.Arena[node]
	budget   budget
	roots    map[*iri.IRI]arena.Handle
	stack    []*choicePoint
	start    arena.CheckpointID
	steps    int
	stats    SessionStats
}

func newSession(k *kb, b budget) *session {
	return &session{
		kb:       k,
		concepts: k.concepts.fork(),
		arena:    arena.New[node](),
		budget:   b,
		roots:    make(map[*iri.IRI]arena.Handle),
	}
}

// run builds the completion graph for the knowledge base plus probes and
// reports whether a clash-free complete graph exists.
func (s *session) run(probes []probe) (consistent bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			e, ok := r.(*errs.Error)
			if !ok || e.Kind != errs.KindArenaCorruption {
				panic(r)
			}
			consistent, err = false, e
		}
		s.stats.Steps = s.steps
		s.stats.Memory = s.arena.Stats()
	}()

	s.start = s.arena.Checkpoint()
	cl := s.initialize(probes)
	for {
		if cl != nil {
			if !s.backtrack(cl) {
				return false, nil
			}
			cl = nil
		}
		if err := s.checkBudget(); err != nil {
			if rbErr := s.arena.RollbackTo(s.start); rbErr != nil {
				return false, rbErr
			}
			return false, err
		}

		var progressed bool
		if cl, progressed = s.expandDeterministic(); cl != nil || progressed {
			continue
		}
		if cl, progressed = s.branch(); cl != nil || progressed {
			continue
		}
		if cl, progressed = s.generate(); cl != nil || progressed {
			continue
		}
		return true, nil
	}
}

func (s *session) checkBudget() error {
	if s.budget.maxSteps > 0 && s.steps > s.budget.maxSteps {
		return errs.New(errs.KindResourceExceeded, "tableaux.run",
			"step budget of %d exhausted", s.budget.maxSteps)
	}
	if !s.budget.deadline.IsZero() && time.Now().After(s.budget.deadline) {
		return errs.New(errs.KindResourceExceeded, "tableaux.run",
			"time budget exhausted after %d steps", s.steps)
	}
	return nil
}

// =============================================================================
// INITIAL GRAPH
// =============================================================================

func (s *session) root(ind *iri.IRI) (arena.Handle, *clash) {
	if h, ok := s.roots[ind]; ok {
		rep, _ := s.find(h)
		return rep, nil
	}
	h, cl := s.newNode(true, arena.Handle{}, 0, nil)
	s.node(h).names = []*iri.IRI{ind}
	s.roots[ind] = h
	return h, cl
}

func (s *session) initialize(probes []probe) *clash {
	for _, ind := range s.kb.individuals {
		if _, cl := s.root(ind); cl != nil {
			return cl
		}
	}
	for _, ind := range s.kb.individuals {
		for _, c := range s.kb.assertions[ind] {
			h, _ := s.root(ind)
			if _, cl := s.addConcept(h, c, nil); cl != nil {
				return cl
			}
		}
	}
	for _, e := range s.kb.edges {
		from, _ := s.root(e.subject)
		to, _ := s.root(e.object)
		s.addEdge(from, e.property, to, nil)
	}
	for _, pair := range s.kb.different {
		a, _ := s.root(pair[0])
		b, _ := s.root(pair[1])
		if a == b {
			return &clash{reason: "individual asserted different from itself"}
		}
		s.setUnequal(a, b, nil)
	}
	for _, pair := range s.kb.same {
		a, _ := s.root(pair[0])
		b, _ := s.root(pair[1])
		if cl := s.merge(b, a, nil); cl != nil {
			return cl
		}
	}
	for _, p := range probes {
		ind := p.individual
		if ind == nil {
			ind = p.name
		}
		h, cl := s.root(ind)
		if cl != nil {
			return cl
		}
		if _, cl := s.addConcept(h, p.concept, nil); cl != nil {
			return cl
		}
	}
	return nil
}

// =============================================================================
// DETERMINISTIC RULES
// =============================================================================

func (s *session) expandDeterministic() (*clash, bool) {
	progressed := false
	for i := 0; i < s.arena.Len(); i++ {
		h := s.arena.HandleAt(i)
		if s.node(h).merged {
			continue
		}
		changed, cl := s.expandNode(h)
		if cl != nil {
			return cl, true
		}
		progressed = progressed || changed
	}
	return nil, progressed
}

func (s *session) expandNode(h arena.Handle) (bool, *clash) {
	n := s.node(h)
	changed := false
	add := func(target arena.Handle, c conceptID, deps depSet) *clash {
		added, cl := s.addConcept(target, c, deps)
		changed = changed || added
		return cl
	}

	for idx := 0; idx < len(n.order) && !n.merged; idx++ {
		c := n.order[idx]
		deps := n.label[c]
		con := *s.concepts.get(c)
		switch con.kind {
		case cAtom:
			for _, d := range s.kb.unfold[c] {
				if cl := add(h, d, deps); cl != nil {
					return true, cl
				}
			}
		case cAnd:
			for _, op := range con.ops {
				if cl := add(h, op, deps); cl != nil {
					return true, cl
				}
			}
		case cAll:
			for e := 0; e < len(n.out); e++ {
				out := n.out[e]
				if !s.kb.isSubRole(out.role, con.role) {
					continue
				}
				t, td := s.find(out.to)
				ed := deps.union(out.deps).union(td)
				if cl := add(t, con.filler, ed); cl != nil {
					return true, cl
				}
				for _, tr := range s.kb.rolesOf(out.role) {
					if s.kb.transitive.Has(tr) && s.kb.isSubRole(tr, con.role) {
						if cl := add(t, s.concepts.all(tr, con.filler), ed); cl != nil {
							return true, cl
						}
					}
				}
			}
		}
	}
	if n.merged {
		return changed, nil
	}

	for f := range s.kb.functional {
		nbs := s.neighbours(h, f)
		for len(nbs) > 1 {
			if cl := s.merge(nbs[1].handle, nbs[0].handle, nbs[0].deps.union(nbs[1].deps)); cl != nil {
				return true, cl
			}
			changed = true
			if h, _ = s.find(h); h != n.handle {
				return true, nil
			}
			nbs = s.neighbours(h, f)
		}
	}

	if n.root {
		for f := range s.kb.invFunc {
			sources := s.rootSources(h, f)
			for len(sources) > 1 {
				if cl := s.merge(sources[1].handle, sources[0].handle, sources[0].deps.union(sources[1].deps)); cl != nil {
					return true, cl
				}
				changed = true
				if h, _ = s.find(h); h != n.handle {
					return true, nil
				}
				sources = s.rootSources(h, f)
			}
		}
	}
	return changed, nil
}

// rootSources returns the roots with an f-edge into h.
func (s *session) rootSources(h arena.Handle, f *iri.IRI) []neighbour {
	var out []neighbour
	seen := make(map[arena.Handle]bool)
	for _, e := range s.node(h).in {
		if !s.kb.isSubRole(e.role, f) {
			continue
		}
		src, sd := s.find(e.from)
		if seen[src] || !s.node(src).root {
			continue
		}
		seen[src] = true
		out = append(out, neighbour{handle: src, deps: e.deps.union(sd)})
	}
	return out
}

// =============================================================================
// NONDETERMINISTIC RULES
// =============================================================================

// branch applies at most one nondeterministic rule: ⊔, the choose rule for
// qualified at-most restrictions, or an at-most merge.
func (s *session) branch() (*clash, bool) {
	for i := 0; i < s.arena.Len(); i++ {
		h := s.arena.HandleAt(i)
		n := s.node(h)
		if n.merged {
			continue
		}
		for idx := 0; idx < len(n.order); idx++ {
			c := n.order[idx]
			deps := n.label[c]
			con := *s.concepts.get(c)
			switch con.kind {
			case cOr:
				if s.anyInLabel(n, con.ops) {
					continue
				}
				alts := make([]alternative, len(con.ops))
				for k, op := range con.ops {
					alts[k] = alternative{kind: altConcept, node: h, concept: op}
				}
				return s.choose(alts, deps, "or"), true
			case cMax:
				if cl, ok := s.applyMax(h, con, deps); ok {
					return cl, true
				}
			}
		}
	}
	return nil, false
}

func (s *session) anyInLabel(n *node, ops []conceptID) bool {
	for _, op := range ops {
		if n.has(op) {
			return true
		}
	}
	return false
}

func (s *session) applyMax(h arena.Handle, con concept, deps depSet) (*clash, bool) {
	nbs := s.neighbours(h, con.role)
	if len(nbs) <= con.n {
		return nil, false
	}
	negFiller := s.concepts.negate(con.filler)
	var sel []neighbour
	for _, nb := range nbs {
		nn := s.node(nb.handle)
		if con.filler == topID {
			sel = append(sel, nb)
			continue
		}
		switch {
		case nn.has(con.filler):
			sel = append(sel, neighbour{handle: nb.handle, deps: nb.deps.union(nn.label[con.filler])})
		case nn.has(negFiller):
		default:
			alts := []alternative{
				{kind: altConcept, node: nb.handle, concept: con.filler},
				{kind: altConcept, node: nb.handle, concept: negFiller},
			}
			return s.choose(alts, deps.union(nb.deps), "choose"), true
		}
	}
	if len(sel) <= con.n {
		return nil, false
	}

	all := deps
	for _, nb := range sel {
		all = all.union(nb.deps)
	}
	var alts []alternative
	for a := 0; a < len(sel); a++ {
		for b := a + 1; b < len(sel); b++ {
			if d, ok := s.unequalDeps(sel[a].handle, sel[b].handle); ok {
				all = all.union(d)
				continue
			}
			alts = append(alts, alternative{kind: altMerge, from: sel[b].handle, into: sel[a].handle})
		}
	}
	if len(alts) == 0 {
		return &clash{deps: all, reason: "at-most restriction violated"}, true
	}
	return s.choose(alts, all, "max"), true
}

func (s *session) choose(alts []alternative, deps depSet, reason string) *clash {
	cp := &choicePoint{
		checkpoint:   s.arena.Checkpoint(),
		alternatives: alts,
		deps:         deps,
		reason:       reason,
	}
	s.stack = append(s.stack, cp)
	s.stats.Branches++
	if len(s.stack) > s.stats.MaxStack {
		s.stats.MaxStack = len(s.stack)
	}
	return s.tryNext(cp)
}

// tryNext applies the next untried alternative of the top choice point.
func (s *session) tryNext(cp *choicePoint) *clash {
	level := int32(len(s.stack))
	alt := cp.alternatives[cp.next]
	cp.next++
	deps := cp.deps.with(level)
	switch alt.kind {
	case altMerge:
		return s.merge(alt.from, alt.into, deps)
	default:
		rep, rd := s.find(alt.node)
		_, cl := s.addConcept(rep, alt.concept, deps.union(rd))
		return cl
	}
}

// backtrack undoes work until a choice point the clash depends on has an
// untried alternative. Choice points the clash does not depend on are jumped
// over. It returns false when no alternative is left.
func (s *session) backtrack(cl *clash) bool {
	deps := cl.deps
	for len(s.stack) > 0 {
		level := int32(len(s.stack))
		cp := s.stack[level-1]
		if err := s.arena.RollbackTo(cp.checkpoint); err != nil {
			panic(err)
		}
		if !deps.has(level) {
			s.stack = s.stack[:level-1]
			s.stats.Backjumps++
			continue
		}
		cp.failed = cp.failed.union(deps.without(level))
		if cp.next < len(cp.alternatives) {
			s.stats.Backtracks++
			next := s.tryNext(cp)
			if next == nil {
				return true
			}
			deps = next.deps
			continue
		}
		s.stack = s.stack[:level-1]
		deps = cp.failed.union(cp.deps)
	}
	return false
}

// =============================================================================
// GENERATING RULES
// =============================================================================

// generate applies ∃ and ≥ to every node that is not blocked. Nodes created
// during the sweep are expanded on the next round.
func (s *session) generate() (*clash, bool) {
	limit := s.arena.Len()
	progressed := false
	for i := 0; i < limit; i++ {
		h := s.arena.HandleAt(i)
		n := s.node(h)
		if n.merged || s.isBlocked(h) {
			continue
		}
		for idx := 0; idx < len(n.order); idx++ {
			c := n.order[idx]
			deps := n.label[c]
			con := *s.concepts.get(c)
			switch con.kind {
			case cSome:
				if s.hasSuccessorWith(h, con.role, con.filler) {
					continue
				}
				if _, cl := s.successor(h, n.depth, con.role, con.filler, deps); cl != nil {
					return cl, true
				}
				progressed = true
			case cMin:
				if n.applied[c] {
					continue
				}
				s.markApplied(h, c)
				made := make([]arena.Handle, 0, con.n)
				for k := 0; k < con.n; k++ {
					child, cl := s.successor(h, n.depth, con.role, con.filler, deps)
					if cl != nil {
						return cl, true
					}
					for _, m := range made {
						s.setUnequal(child, m, deps)
					}
					made = append(made, child)
				}
				progressed = true
			}
		}
	}
	return nil, progressed
}

func (s *session) hasSuccessorWith(h arena.Handle, role *iri.IRI, filler conceptID) bool {
	for _, nb := range s.neighbours(h, role) {
		if s.node(nb.handle).has(filler) {
			return true
		}
	}
	return false
}

func (s *session) successor(h arena.Handle, depth int, role *iri.IRI, filler conceptID, deps depSet) (arena.Handle, *clash) {
	child, cl := s.newNode(false, h, depth+1, deps)
	if cl != nil {
		return child, cl
	}
	s.addEdge(h, role, child, deps)
	_, cl = s.addConcept(child, filler, deps)
	return child, cl
}

// =============================================================================
// BLOCKING
// =============================================================================

// isBlocked reports whether h or one of its anonymous ancestors is directly
// blocked. Roots are never blocked.
func (s *session) isBlocked(h arena.Handle) bool {
	cur := h
	for guard := s.arena.Len(); guard > 0; guard-- {
		n := s.node(cur)
		if n.root {
			return false
		}
		if s.directlyBlocked(cur) {
			return true
		}
		cur, _ = s.find(n.parent)
	}
	return false
}

func (s *session) directlyBlocked(h arena.Handle) bool {
	a, _ := s.find(s.node(h).parent)
	for guard := s.arena.Len(); guard > 0; guard-- {
		an := s.node(a)
		if an.root {
			return false
		}
		if s.blocks(a, h) {
			return true
		}
		a, _ = s.find(an.parent)
	}
	return false
}

func (s *session) blocks(a, x arena.Handle) bool {
	na, nx := s.node(a), s.node(x)
	if s.kb.blocking == BlockingSubset {
		return labelSubset(nx, na)
	}
	if !sameLabel(na, nx) {
		return false
	}
	pa, _ := s.find(na.parent)
	px, _ := s.find(nx.parent)
	if !sameLabel(s.node(pa), s.node(px)) {
		return false
	}
	return sameRoles(s.edgeRoles(pa, a), s.edgeRoles(px, x))
}

func labelSubset(sub, sup *node) bool {
	if len(sub.label) > len(sup.label) {
		return false
	}
	for c := range sub.label {
		if !sup.has(c) {
			return false
		}
	}
	return true
}

func sameLabel(a, b *node) bool {
	return len(a.label) == len(b.label) && labelSubset(a, b)
}

func (s *session) edgeRoles(from, to arena.Handle) iri.Set {
	roles := make(iri.Set)
	for _, e := range s.node(from).out {
		if t, _ := s.find(e.to); t == to {
			for _, r := range s.kb.rolesOf(e.role) {
				roles.Add(r)
			}
		}
	}
	return roles
}

func sameRoles(a, b iri.Set) bool {
	if a.Len() != b.Len() {
		return false
	}
	for r := range a {
		if !b.Has(r) {
			return false
		}
	}
	return true
}
