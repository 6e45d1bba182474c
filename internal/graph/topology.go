package graph

import "sort"

// HubNode is a node with high visible connectivity
type HubNode struct {
	ID        int `json:"id"`
	Degree    int `json:"degree"`
	InDegree  int `json:"in_degree"`
	OutDegree int `json:"out_degree"`
}

// DegreeBucket is one bucket in the degree histogram
type DegreeBucket struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// TopologyReport contains topology analysis results over visible ties
type TopologyReport struct {
	TotalNodes        int            `json:"total_nodes"`
	TotalEdges        int            `json:"total_edges"`
	VisiblePairs      int            `json:"visible_pairs"`
	DashedEdges       int            `json:"dashed_edges"`
	InvisibleEdges    int            `json:"invisible_edges"`
	NumComponents     int            `json:"num_components"`
	LargestComponent  int            `json:"largest_component"`
	SmallestComponent int            `json:"smallest_component"`
	OrphanCount       int            `json:"orphan_count"`
	OrphanIDs         []int          `json:"orphan_ids"`
	DegreeHistogram   []DegreeBucket `json:"degree_histogram"`
	Hubs              []HubNode      `json:"hubs"`
}

// ComputeTopology analyzes the visible graph: components, orphans, degree distribution, hubs.
// Opinions play no part here; see the cluster analyzer for opinion-homogeneous groups.
func ComputeTopology(g *Graph, hubThreshold, topN int) *TopologyReport {
	totalNodes := g.Order()
	weights := g.CountWeights()

	if totalNodes == 0 {
		return &TopologyReport{
			DegreeHistogram: defaultHistogram(),
		}
	}

	visible := g.VisiblePairs()
	adj := make([]int, totalNodes)
	uf := NewUnionFind(totalNodes)
	for _, p := range visible {
		adj[p.U]++
		adj[p.V]++
		uf.Union(p.U, p.V)
	}

	components := uf.Components()
	largest, smallest := 0, totalNodes
	for _, c := range components {
		if len(c) > largest {
			largest = len(c)
		}
		if len(c) < smallest {
			smallest = len(c)
		}
	}

	// Orphans: no visible ties left
	var orphans []int
	for id := 0; id < totalNodes; id++ {
		if adj[id] == 0 {
			orphans = append(orphans, id)
		}
	}
	orphanCount := len(orphans)
	if len(orphans) > topN {
		orphans = orphans[:topN]
	}

	buckets := [7]int{}
	for id := 0; id < totalNodes; id++ {
		buckets[degreeBucket(adj[id])]++
	}
	histogram := defaultHistogram()
	for i := range histogram {
		histogram[i].Count = buckets[i]
	}

	var hubs []HubNode
	for id := 0; id < totalNodes; id++ {
		if adj[id] > hubThreshold {
			hubs = append(hubs, HubNode{
				ID:        id,
				Degree:    adj[id],
				InDegree:  g.InDegree(id),
				OutDegree: g.OutDegree(id),
			})
		}
	}
	sort.SliceStable(hubs, func(i, j int) bool { return hubs[i].Degree > hubs[j].Degree })
	if len(hubs) > topN {
		hubs = hubs[:topN]
	}

	return &TopologyReport{
		TotalNodes:        totalNodes,
		TotalEdges:        g.Size(),
		VisiblePairs:      len(visible),
		DashedEdges:       weights[Dashed],
		InvisibleEdges:    weights[Invisible],
		NumComponents:     len(components),
		LargestComponent:  largest,
		SmallestComponent: smallest,
		OrphanCount:       orphanCount,
		OrphanIDs:         orphans,
		DegreeHistogram:   histogram,
		Hubs:              hubs,
	}
}

func defaultHistogram() []DegreeBucket {
	return []DegreeBucket{
		{Label: "0"}, {Label: "1"}, {Label: "2-3"},
		{Label: "4-7"}, {Label: "8-15"}, {Label: "16-31"}, {Label: "32+"},
	}
}

func degreeBucket(degree int) int {
	switch {
	case degree == 0:
		return 0
	case degree == 1:
		return 1
	case degree <= 3:
		return 2
	case degree <= 7:
		return 3
	case degree <= 15:
		return 4
	case degree <= 31:
		return 5
	default:
		return 6
	}
}
