package frontier

import (
	"sync"

	"github.com/nao1215/sitecrawl/internal/model"
)

// Relationship is what the Tracker knows about one URL.
type Relationship struct {
	URL    string
	Parent string

	// Depth is the link distance from the seed, model.NoDepth when unknown.
	Depth  int
	Method model.DiscoveryMethod

	// ChildrenCount is the number of distinct children recorded for URL.
	ChildrenCount int

	// Orphaned is true for URLs without a recorded parent that are not seeds.
	Orphaned bool
}

type node struct {
	parent string
	depth  int
	method model.DiscoveryMethod
	seed   bool

	// admitted nodes are fixed; edges recorded later never move them.
	admitted bool
}

type pair struct {
	parent, child string
}

// Tracker records discovery edges. It is safe for concurrent use.
type Tracker struct {
	mu       sync.Mutex
	nodes    map[string]node
	edges    []model.Edge
	edgeSet  map[model.Edge]struct{}
	pairs    map[pair]struct{}
	children map[string]int
	orphans  []string
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		nodes:    make(map[string]node),
		edgeSet:  make(map[model.Edge]struct{}),
		pairs:    make(map[pair]struct{}),
		children: make(map[string]int),
	}
}

// RecordSeed registers url as a depth 0 seed.
func (t *Tracker) RecordSeed(url string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if n, ok := t.nodes[url]; ok && n.admitted {
		return
	}
	t.nodes[url] = node{depth: 0, method: model.MethodManual, seed: true, admitted: true}
}

// RecordOrphan registers url as injected without a parent.
func (t *Tracker) RecordOrphan(url string, method model.DiscoveryMethod) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if n, ok := t.nodes[url]; ok && n.admitted {
		return
	}
	t.nodes[url] = node{depth: model.NoDepth, method: method, admitted: true}
	t.orphans = append(t.orphans, url)
}

// RecordAdmitted fixes parent as the canonical parent of child, replacing
// whatever an earlier, rejected edge suggested. The edge itself must already
// be recorded with RecordEdge.
func (t *Tracker) RecordAdmitted(parent, child string, method model.DiscoveryMethod) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if n, ok := t.nodes[child]; ok && n.admitted {
		return
	}
	t.nodes[child] = node{parent: parent, depth: t.childDepth(parent), method: method, admitted: true}
}

// childDepth is the depth of a child of parent. Caller holds mu.
func (t *Tracker) childDepth(parent string) int {
	if pn, ok := t.nodes[parent]; ok && pn.depth != model.NoDepth {
		return pn.depth + 1
	}
	return model.NoDepth
}

// RecordEdge records that child was discovered from parent.
// It returns false for self edges and for triples already recorded.
// Until the child is admitted, the first edge to it gives its tentative
// parent and depth.
func (t *Tracker) RecordEdge(parent, child string, method model.DiscoveryMethod) bool {
	if parent == "" || parent == child {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	edge := model.Edge{Parent: parent, Child: child, Method: method}
	if _, ok := t.edgeSet[edge]; ok {
		return false
	}
	t.edgeSet[edge] = struct{}{}
	t.edges = append(t.edges, edge)

	p := pair{parent: parent, child: child}
	if _, ok := t.pairs[p]; !ok {
		t.pairs[p] = struct{}{}
		t.children[parent]++
	}

	if _, ok := t.nodes[child]; !ok {
		t.nodes[child] = node{parent: parent, depth: t.childDepth(parent), method: method}
	}
	return true
}

// Relationship returns what is known about url.
func (t *Tracker) Relationship(url string) (Relationship, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	n, ok := t.nodes[url]
	if !ok {
		return Relationship{URL: url, Depth: model.NoDepth}, false
	}
	return Relationship{
		URL:           url,
		Parent:        n.parent,
		Depth:         n.depth,
		Method:        n.method,
		ChildrenCount: t.children[url],
		Orphaned:      !n.seed && n.parent == "",
	}, true
}

// ChildrenCount returns the number of distinct children of url.
func (t *Tracker) ChildrenCount(url string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.children[url]
}

// Edges returns all recorded edges in recording order.
func (t *Tracker) Edges() []model.Edge {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]model.Edge(nil), t.edges...)
}

// Orphans returns orphaned URLs in recording order.
func (t *Tracker) Orphans() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.orphans...)
}
