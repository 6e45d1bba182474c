package graph

// UnionFind implements union-find with path compression and union by rank
// over dense integer ids 0..n-1.
type UnionFind struct {
	parent []int
	rank   []int
	size   []int
	count  int
}

// NewUnionFind creates a new UnionFind where each element is its own component
func NewUnionFind(n int) *UnionFind {
	uf := &UnionFind{
		parent: make([]int, n),
		rank:   make([]int, n),
		size:   make([]int, n),
		count:  n,
	}
	for i := range uf.parent {
		uf.parent[i] = i
		uf.size[i] = 1
	}
	return uf
}

// Find returns the root of the component containing id, with path compression
func (uf *UnionFind) Find(id int) int {
	if id < 0 || id >= len(uf.parent) {
		return id
	}
	root := id
	for uf.parent[root] != root {
		root = uf.parent[root]
	}
	for uf.parent[id] != root {
		next := uf.parent[id]
		uf.parent[id] = root
		id = next
	}
	return root
}

// Union merges the components containing a and b. Returns true if they were separate.
func (uf *UnionFind) Union(a, b int) bool {
	rootA := uf.Find(a)
	rootB := uf.Find(b)
	if rootA == rootB {
		return false
	}

	switch {
	case uf.rank[rootA] < uf.rank[rootB]:
		uf.parent[rootA] = rootB
		uf.size[rootB] += uf.size[rootA]
	case uf.rank[rootA] > uf.rank[rootB]:
		uf.parent[rootB] = rootA
		uf.size[rootA] += uf.size[rootB]
	default:
		uf.parent[rootB] = rootA
		uf.size[rootA] += uf.size[rootB]
		uf.rank[rootA]++
	}
	uf.count--
	return true
}

// Count returns the number of components
func (uf *UnionFind) Count() int { return uf.count }

// Size returns the size of the component containing id
func (uf *UnionFind) Size(id int) int { return uf.size[uf.Find(id)] }

// Components returns all components as id slices, ordered by smallest member
func (uf *UnionFind) Components() [][]int {
	groups := make(map[int]int)
	var result [][]int
	for id := range uf.parent {
		root := uf.Find(id)
		idx, ok := groups[root]
		if !ok {
			idx = len(result)
			groups[root] = idx
			result = append(result, nil)
		}
		result[idx] = append(result[idx], id)
	}
	return result
}
