package graph

// ArticulationPoint is a node whose removal disconnects the visible graph
type ArticulationPoint struct {
	ID     int `json:"id"`
	Degree int `json:"degree"`
}

// BridgeReport contains bridge analysis results over visible ties
type BridgeReport struct {
	ArticulationPoints []ArticulationPoint `json:"articulation_points"`
	BridgeEdges        []Pair              `json:"bridge_edges"`
	APCount            int                 `json:"ap_count"`
	BridgeCount        int                 `json:"bridge_count"`
}

// ComputeBridges finds articulation points and bridge ties in the visible graph
func ComputeBridges(g *Graph) *BridgeReport {
	n := g.Order()
	if n == 0 {
		return &BridgeReport{}
	}

	adjIdx := g.visibleAdjacency()

	disc := make([]int, n)
	low := make([]int, n)
	visited := make([]bool, n)
	isAP := make([]bool, n)
	var bridgePairs []Pair
	counter := 1

	const noParent = -1

	// Iterative Tarjan for each connected component
	type frame struct {
		node, parent, ni int
	}

	for start := 0; start < n; start++ {
		if visited[start] {
			continue
		}

		visited[start] = true
		disc[start] = counter
		low[start] = counter
		counter++

		stack := []frame{{start, noParent, 0}}
		rootChildren := 0

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			node := top.node
			parent := top.parent

			if top.ni < len(adjIdx[node]) {
				child := adjIdx[node][top.ni]
				top.ni++

				if child == parent {
					continue
				}

				if visited[child] {
					if disc[child] < low[node] {
						low[node] = disc[child]
					}
				} else {
					visited[child] = true
					disc[child] = counter
					low[child] = counter
					counter++

					if node == start {
						rootChildren++
					}

					stack = append(stack, frame{child, node, 0})
				}
			} else {
				stack = stack[:len(stack)-1]

				if len(stack) > 0 {
					pn := stack[len(stack)-1].node

					if low[node] < low[pn] {
						low[pn] = low[node]
					}

					if low[node] > disc[pn] {
						bridgePairs = append(bridgePairs, makePair(pn, node))
					}

					if pn != start && low[node] >= disc[pn] {
						isAP[pn] = true
					}
				}
			}
		}

		if rootChildren >= 2 {
			isAP[start] = true
		}
	}

	var aps []ArticulationPoint
	for i := 0; i < n; i++ {
		if isAP[i] {
			aps = append(aps, ArticulationPoint{ID: i, Degree: len(adjIdx[i])})
		}
	}

	return &BridgeReport{
		ArticulationPoints: aps,
		BridgeEdges:        bridgePairs,
		APCount:            len(aps),
		BridgeCount:        len(bridgePairs),
	}
}
