package tableaux

import (
	"owlreasoner/internal/arena"
	"owlreasoner/internal/iri"
)

// Footprint estimates fed to the arena's memory statistics.
const (
	nodeBytes  = 160
	labelBytes = 24
	edgeBytes  = 40
	markBytes  = 16
)

type edge struct {
	role *iri.IRI
	to   arena.Handle
	deps depSet
}

type inEdge struct {
	role *iri.IRI
	from arena.Handle
	deps depSet
}

// node is a completion-graph node. Roots stand for named individuals;
// anonymous nodes are created by the generating rules and form trees below
// them.
type node struct {
	handle  arena.Handle
	names   []*iri.IRI // individuals this root stands for
	root    bool
	parent  arena.Handle
	depth   int
	deps    depSet // choice points the node's existence depends on
	label   map[conceptID]depSet
	order   []conceptID
	out     []edge
	in      []inEdge
	merged  bool
	into    arena.Handle
	mdeps   depSet
	unequal map[arena.Handle]depSet
	applied map[conceptID]bool // at-least restrictions already expanded
}

func (n *node) has(c conceptID) bool {
	_, ok := n.label[c]
	return ok
}

// clash records a contradiction and the choice points it depends on.
type clash struct {
	deps   depSet
	reason string
}

// =============================================================================
// UNDOABLE MUTATIONS
// =============================================================================

func (s *session) node(h arena.Handle) *node {
	return s.arena.MustGet(h)
}

func (s *session) newNode(root bool, parent arena.Handle, depth int, deps depSet) (arena.Handle, *clash) {
	n := &node{
		root:    root,
		parent:  parent,
		depth:   depth,
		deps:    deps,
		label:   make(map[conceptID]depSet),
		unequal: make(map[arena.Handle]depSet),
		applied: make(map[conceptID]bool),
	}
	h := s.arena.Allocate(n, nodeBytes)
	n.handle = h
	s.stats.Nodes++
	for _, g := range s.kb.gcis {
		if _, cl := s.addConcept(h, g, deps); cl != nil {
			return h, cl
		}
	}
	return h, nil
}

// addConcept adds c to the label of h. It reports a clash when the label
// already holds the complement of c or c is ⊥.
func (s *session) addConcept(h arena.Handle, c conceptID, deps depSet) (bool, *clash) {
	n := s.node(h)
	if n.has(c) {
		return false, nil
	}
	n.label[c] = deps
	n.order = append(n.order, c)
	s.arena.Record(labelBytes, func() {
		delete(n.label, c)
		n.order = n.order[:len(n.order)-1]
	})
	s.steps++

	if c == bottomID {
		return true, &clash{deps: deps, reason: "⊥"}
	}
	if negDeps, ok := n.label[s.concepts.negate(c)]; ok {
		return true, &clash{deps: deps.union(negDeps), reason: s.concepts.describe(c)}
	}
	return true, nil
}

// addEdge links from -role-> to. Symmetric superroles add the reverse edge.
func (s *session) addEdge(from arena.Handle, role *iri.IRI, to arena.Handle, deps depSet) bool {
	added := s.addOneEdge(from, role, to, deps)
	for _, r := range s.kb.rolesOf(role) {
		if s.kb.symmetric.Has(r) {
			added = s.addOneEdge(to, r, from, deps) || added
		}
	}
	return added
}

func (s *session) addOneEdge(from arena.Handle, role *iri.IRI, to arena.Handle, deps depSet) bool {
	src, dst := s.node(from), s.node(to)
	for _, e := range src.out {
		if e.role == role && e.to == to {
			return false
		}
	}
	src.out = append(src.out, edge{role: role, to: to, deps: deps})
	dst.in = append(dst.in, inEdge{role: role, from: from, deps: deps})
	s.arena.Record(edgeBytes, func() {
		src.out = src.out[:len(src.out)-1]
		dst.in = dst.in[:len(dst.in)-1]
	})
	s.steps++
	return true
}

func (s *session) setUnequal(a, b arena.Handle, deps depSet) {
	na, nb := s.node(a), s.node(b)
	if _, ok := na.unequal[b]; ok {
		return
	}
	na.unequal[b] = deps
	nb.unequal[a] = deps
	s.arena.Record(markBytes, func() {
		delete(na.unequal, b)
		delete(nb.unequal, a)
	})
}

func (s *session) markApplied(h arena.Handle, c conceptID) {
	n := s.node(h)
	n.applied[c] = true
	s.arena.Record(markBytes, func() { delete(n.applied, c) })
}

// find returns the representative of h after merges and the dependencies
// accumulated along the merge chain.
func (s *session) find(h arena.Handle) (arena.Handle, depSet) {
	var deps depSet
	for {
		n := s.node(h)
		if !n.merged {
			return h, deps
		}
		deps = deps.union(n.mdeps)
		h = n.into
	}
}

// unequalDeps reports whether a and b are asserted distinct.
func (s *session) unequalDeps(a, b arena.Handle) (depSet, bool) {
	d, ok := s.node(a).unequal[b]
	return d, ok
}

// merge folds from into into: labels, edges and inequalities move across.
// A root is never merged into an anonymous node.
func (s *session) merge(from, into arena.Handle, deps depSet) *clash {
	from, fd := s.find(from)
	into, id := s.find(into)
	if from == into {
		return nil
	}
	deps = deps.union(fd).union(id)
	if d, ok := s.unequalDeps(from, into); ok {
		return &clash{deps: deps.union(d), reason: "merge of distinct individuals"}
	}
	src, dst := s.node(from), s.node(into)
	// Anonymous nodes fold towards the root so parent chains stay acyclic.
	if (src.root && !dst.root) || (!src.root && !dst.root && src.depth < dst.depth) {
		from, into = into, from
		src, dst = dst, src
	}

	src.merged, src.into, src.mdeps = true, into, deps
	oldNames := dst.names
	dst.names = append(append([]*iri.IRI(nil), dst.names...), src.names...)
	wasRoot := dst.root
	dst.root = dst.root || src.root
	s.arena.Record(markBytes, func() {
		src.merged, src.into, src.mdeps = false, arena.Handle{}, nil
		dst.names = oldNames
		dst.root = wasRoot
	})
	s.stats.Merges++

	for w, d := range src.unequal {
		rep, rd := s.find(w)
		if rep == into {
			return &clash{deps: deps.union(d).union(rd), reason: "merge of distinct individuals"}
		}
		s.setUnequal(into, rep, deps.union(d).union(rd))
	}
	for _, c := range append([]conceptID(nil), src.order...) {
		if _, cl := s.addConcept(into, c, src.label[c].union(deps)); cl != nil {
			return cl
		}
	}
	for _, e := range append([]inEdge(nil), src.in...) {
		w, wd := s.find(e.from)
		s.addEdge(w, e.role, into, e.deps.union(deps).union(wd))
	}
	for _, e := range append([]edge(nil), src.out...) {
		t, td := s.find(e.to)
		s.addEdge(into, e.role, t, e.deps.union(deps).union(td))
	}
	return nil
}

type neighbour struct {
	handle arena.Handle
	deps   depSet
}

// neighbours returns the live targets reachable from h over an edge whose role
// is a subrole of role, deduplicated by representative.
func (s *session) neighbours(h arena.Handle, role *iri.IRI) []neighbour {
	n := s.node(h)
	var out []neighbour
	seen := make(map[arena.Handle]int)
	for _, e := range n.out {
		if !s.kb.isSubRole(e.role, role) {
			continue
		}
		t, td := s.find(e.to)
		if idx, ok := seen[t]; ok {
			if len(e.deps) < len(out[idx].deps) {
				out[idx].deps = e.deps.union(td)
			}
			continue
		}
		seen[t] = len(out)
		out = append(out, neighbour{handle: t, deps: e.deps.union(td)})
	}
	return out
}
