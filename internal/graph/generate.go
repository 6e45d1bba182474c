package graph

import (
	"fmt"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/graph/graphs/gen"
	"gonum.org/v1/gonum/graph/simple"
)

// Topology names a random graph family
type Topology string

const (
	TopologyErdosRenyi Topology = "erdos-renyi"
	TopologyPowerLaw   Topology = "power-law"
)

// Generate builds a graph of the given family. Unknown families fall back to Erdős–Rényi.
func Generate(t Topology, n int, avgDegree float64, r *rand.Rand) *Graph {
	if t == TopologyPowerLaw {
		return PowerLaw(n, avgDegree, r)
	}
	return ErdosRenyi(n, avgDegree, r)
}

// ErdosRenyi builds G(n, p) with p = avgDegree/n. Every sampled pair becomes
// two directed edges.
func ErdosRenyi(n int, avgDegree float64, r *rand.Rand) *Graph {
	if n < 2 {
		return New(max(n, 0))
	}
	u := simple.NewUndirectedGraph()
	p := clampProb(avgDegree / float64(n))
	if err := gen.Gnp(u, n, p, r); err != nil {
		panic(fmt.Sprintf("graph: gnp n=%d p=%v: %v", n, p, err))
	}
	return fromUndirected(n, u)
}

// PowerLaw grows a preferential-attachment graph: each node after the first m
// attaches to m distinct earlier nodes chosen with probability proportional
// to degree, m = max(1, avgDegree/2). Graphs too small for m are complete.
func PowerLaw(n int, avgDegree float64, r *rand.Rand) *Graph {
	m := max(int(avgDegree/2), 1)
	if n <= m {
		g := New(max(n, 0))
		for u := 0; u < n; u++ {
			for v := u + 1; v < n; v++ {
				g.AddUndirected(u, v)
			}
		}
		return g
	}
	u := simple.NewUndirectedGraph()
	if err := gen.PreferentialAttachment(u, n, m, r); err != nil {
		panic(fmt.Sprintf("graph: preferential attachment n=%d m=%d: %v", n, m, err))
	}
	return fromUndirected(n, u)
}

// fromUndirected copies src into a Graph with nodes 0..n-1. Pairs are added
// in (u, v) order with u < v so the edge list does not depend on map order.
func fromUndirected(n int, src *simple.UndirectedGraph) *Graph {
	g := New(n)
	for u := 0; u < n; u++ {
		var later []int
		it := src.From(int64(u))
		for it.Next() {
			if v := int(it.Node().ID()); v > u && v < n {
				later = append(later, v)
			}
		}
		sort.Ints(later)
		for _, v := range later {
			g.AddUndirected(u, v)
		}
	}
	return g
}

func clampProb(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}
