package subgraph

import (
	"golang.org/x/exp/rand"
	"golang.org/x/xerrors"
	"gonum.org/v1/gonum/stat/sampleuv"
)

// Graph is a full graph in CSC form, optionally with one non-negative weight
// per edge. Weighted graphs are sampled proportionally to the edge weight.
type Graph struct {
	CSC     CSC
	Weights []float64
}

// SampleNeighbors samples up to fanout in-neighbors for every seed node and
// returns them as a subgraph whose columns are compacted to the seeds. Row
// ids remain in original graph id space. A negative fanout selects all
// neighbors. With replace, neighbors can be picked multiple times and exactly
// fanout edges are returned per seed (unless the seed has no neighbors).
func (g *Graph) SampleNeighbors(seeds []int64, fanout int, replace bool, rnd *rand.Rand) (*Subgraph, error) {
	if err := g.CSC.Validate(); err != nil {
		return nil, err
	}
	if g.Weights != nil && len(g.Weights) != len(g.CSC.Indices) {
		return nil, xerrors.Errorf("got %d weights, want %d (one per edge)", len(g.Weights), len(g.CSC.Indices))
	}

	indptr := make([]int64, 1, len(seeds)+1)
	var indices, edgeIDs []int64
	for _, seed := range seeds {
		if seed < 0 || int(seed) >= g.CSC.NumColumns() {
			return nil, xerrors.Errorf("seed %d out of range [0, %d)", seed, g.CSC.NumColumns())
		}
		begin, end := g.CSC.Indptr[seed], g.CSC.Indptr[seed+1]
		picked := g.pick(begin, end, fanout, replace, rnd)
		for _, edge := range picked {
			indices = append(indices, g.CSC.Indices[edge])
			edgeIDs = append(edgeIDs, edge)
		}
		indptr = append(indptr, int64(len(indices)))
	}
	return &Subgraph{
		CSC:               CSC{Indptr: indptr, Indices: indices},
		OriginalColumnIDs: seeds,
		OriginalEdgeIDs:   edgeIDs,
	}, nil
}

// pick selects edge positions from the half-open range [begin, end).
func (g *Graph) pick(begin, end int64, fanout int, replace bool, rnd *rand.Rand) []int64 {
	n := int(end - begin)
	if n == 0 {
		return nil
	}
	if fanout < 0 || (!replace && fanout >= n) {
		all := make([]int64, n)
		for i := range all {
			all[i] = begin + int64(i)
		}
		return all
	}
	picked := make([]int64, 0, fanout)
	if g.Weights == nil {
		if replace {
			for i := 0; i < fanout; i++ {
				picked = append(picked, begin+int64(rnd.Intn(n)))
			}
		} else {
			for _, i := range rnd.Perm(n)[:fanout] {
				picked = append(picked, begin+int64(i))
			}
		}
		return picked
	}

	weights := g.Weights[begin:end]
	if replace {
		cdf := make([]float64, n)
		var sum float64
		for i, w := range weights {
			sum += w
			cdf[i] = sum
		}
		if sum == 0 {
			// All weights zero: no edge is eligible.
			return nil
		}
		for i := 0; i < fanout; i++ {
			x := rnd.Float64() * sum
			var j int
			for j = 0; j < n-1; j++ {
				if x < cdf[j] {
					break
				}
			}
			picked = append(picked, begin+int64(j))
		}
		return picked
	}
	w := sampleuv.NewWeighted(weights, rnd)
	for i := 0; i < fanout; i++ {
		j, ok := w.Take()
		if !ok {
			break // all remaining weights are zero
		}
		picked = append(picked, begin+int64(j))
	}
	return picked
}

// SampleLayers repeatedly samples neighbors, one subgraph per fanout. The
// seeds of each layer are the rows sampled by the previous layer.
func (g *Graph) SampleLayers(seeds []int64, fanouts []int, replace bool, rnd *rand.Rand) ([]*Subgraph, error) {
	layers := make([]*Subgraph, 0, len(fanouts))
	for _, fanout := range fanouts {
		sg, err := g.SampleNeighbors(seeds, fanout, replace, rnd)
		if err != nil {
			return nil, err
		}
		layers = append(layers, sg)
		seen := make(map[int64]bool, len(sg.CSC.Indices))
		seeds = seeds[:0:0]
		for _, row := range sg.CSC.Indices {
			if !seen[row] {
				seen[row] = true
				seeds = append(seeds, row)
			}
		}
		if len(seeds) == 0 {
			break
		}
	}
	return layers, nil
}
