// Package graph holds the social graph the simulation runs on: a fixed set of
// directed ties between integer node ids, each carrying a mutable visibility
// level, plus the structural analyses run over the visible part of it.
package graph

import "fmt"

// Visibility is how strongly two nodes are currently connected.
type Visibility int

const (
	Visible Visibility = iota
	Dashed
	Invisible
)

func (v Visibility) String() string {
	switch v {
	case Visible:
		return "visible"
	case Dashed:
		return "dashed"
	case Invisible:
		return "invisible"
	default:
		return fmt.Sprintf("visibility(%d)", int(v))
	}
}

// MarshalText encodes the visibility by name.
func (v Visibility) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// Edge is a directed tie from Source to Target
type Edge struct {
	Source int        `json:"source"`
	Target int        `json:"target"`
	Weight Visibility `json:"weight"`
}

// Pair is an unordered node pair with U < V
type Pair struct {
	U int `json:"u"`
	V int `json:"v"`
}

type edgeKey struct{ u, v int }

// Graph is a directed graph over nodes 0..n-1. Edge existence is fixed after
// construction; only edge weights change. Parallel edges between the same
// ordered pair are collapsed into one.
type Graph struct {
	n     int
	edges []Edge
	index map[edgeKey]int
	out   [][]int
	in    [][]int
}

// New creates a graph with n isolated nodes
func New(n int) *Graph {
	if n < 0 {
		n = 0
	}
	return &Graph{
		n:     n,
		index: make(map[edgeKey]int),
		out:   make([][]int, n),
		in:    make([][]int, n),
	}
}

// Order returns the number of nodes
func (g *Graph) Order() int { return g.n }

// Size returns the number of directed edges
func (g *Graph) Size() int { return len(g.edges) }

func (g *Graph) valid(id int) bool { return id >= 0 && id < g.n }

// AddEdge adds the directed edge u->v as Visible. Self loops, out-of-range ids
// and duplicates are ignored; the return value reports whether an edge was added.
func (g *Graph) AddEdge(u, v int) bool {
	if u == v || !g.valid(u) || !g.valid(v) {
		return false
	}
	key := edgeKey{u, v}
	if _, ok := g.index[key]; ok {
		return false
	}
	g.index[key] = len(g.edges)
	g.edges = append(g.edges, Edge{Source: u, Target: v, Weight: Visible})
	g.out[u] = append(g.out[u], v)
	g.in[v] = append(g.in[v], u)
	return true
}

// AddUndirected adds both u->v and v->u
func (g *Graph) AddUndirected(u, v int) {
	g.AddEdge(u, v)
	g.AddEdge(v, u)
}

// HasEdge reports whether the directed edge u->v exists
func (g *Graph) HasEdge(u, v int) bool {
	_, ok := g.index[edgeKey{u, v}]
	return ok
}

// Weight returns the visibility of u->v
func (g *Graph) Weight(u, v int) (Visibility, bool) {
	i, ok := g.index[edgeKey{u, v}]
	if !ok {
		return 0, false
	}
	return g.edges[i].Weight, true
}

// SetWeight changes the visibility of u->v. It returns false if the edge does not exist.
func (g *Graph) SetWeight(u, v int, w Visibility) bool {
	i, ok := g.index[edgeKey{u, v}]
	if !ok {
		return false
	}
	g.edges[i].Weight = w
	return true
}

// Neighbors returns every node tied to id in either direction: out-neighbors
// first, then in-only neighbors, each in insertion order.
func (g *Graph) Neighbors(id int) []int {
	if !g.valid(id) {
		return nil
	}
	result := make([]int, 0, len(g.out[id])+len(g.in[id]))
	seen := make(map[int]bool, len(g.out[id]))
	for _, v := range g.out[id] {
		seen[v] = true
		result = append(result, v)
	}
	for _, u := range g.in[id] {
		if !seen[u] {
			seen[u] = true
			result = append(result, u)
		}
	}
	return result
}

// OutDegree and InDegree count directed edges regardless of weight
func (g *Graph) OutDegree(id int) int {
	if !g.valid(id) {
		return 0
	}
	return len(g.out[id])
}

func (g *Graph) InDegree(id int) int {
	if !g.valid(id) {
		return 0
	}
	return len(g.in[id])
}

// Edges returns a copy of the edge list in insertion order
func (g *Graph) Edges() []Edge {
	out := make([]Edge, len(g.edges))
	copy(out, g.edges)
	return out
}

// Pairs deduplicates the edge list into unordered pairs, in the order each
// pair is first seen.
func (g *Graph) Pairs() []Pair {
	seen := make(map[Pair]bool, len(g.edges))
	var pairs []Pair
	for _, e := range g.edges {
		p := makePair(e.Source, e.Target)
		if seen[p] {
			continue
		}
		seen[p] = true
		pairs = append(pairs, p)
	}
	return pairs
}

// Connected reports whether a pair is tied by an edge that is not Invisible
// in at least one direction.
func (g *Graph) Connected(u, v int) bool {
	if w, ok := g.Weight(u, v); ok && w != Invisible {
		return true
	}
	if w, ok := g.Weight(v, u); ok && w != Invisible {
		return true
	}
	return false
}

// VisiblePairs returns Pairs filtered to connected ones
func (g *Graph) VisiblePairs() []Pair {
	var visible []Pair
	for _, p := range g.Pairs() {
		if g.Connected(p.U, p.V) {
			visible = append(visible, p)
		}
	}
	return visible
}

// CountWeights tallies directed edges by visibility
func (g *Graph) CountWeights() map[Visibility]int {
	counts := map[Visibility]int{Visible: 0, Dashed: 0, Invisible: 0}
	for _, e := range g.edges {
		counts[e.Weight]++
	}
	return counts
}

// visibleAdjacency builds an undirected adjacency list over visible pairs
func (g *Graph) visibleAdjacency() [][]int {
	adj := make([][]int, g.n)
	for _, p := range g.VisiblePairs() {
		adj[p.U] = append(adj[p.U], p.V)
		adj[p.V] = append(adj[p.V], p.U)
	}
	return adj
}

func makePair(u, v int) Pair {
	if u > v {
		u, v = v, u
	}
	return Pair{U: u, V: v}
}
