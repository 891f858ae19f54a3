package subgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
)

func TestValidate(t *testing.T) {
	t.Parallel()

	valid := CSC{
		Indptr:  []int64{0, 1, 2, 3},
		Indices: []int64{0, 1, 2},
	}
	require.NoError(t, valid.Validate())

	for _, tt := range []struct {
		name string
		csc  CSC
	}{
		{"empty indptr", CSC{}},
		{"nonzero start", CSC{Indptr: []int64{1, 3}, Indices: []int64{0, 0, 0}}},
		{"decreasing", CSC{Indptr: []int64{0, 2, 1}, Indices: []int64{0, 0}}},
		{"short indices", CSC{Indptr: []int64{0, 3}, Indices: []int64{0}}},
	} {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.csc.Validate())
		})
	}
}

func TestExcludeEdgesCompacted(t *testing.T) {
	t.Parallel()

	// Column j has exactly one in-edge from row j. Rows and columns are
	// compacted, so the edges to exclude are named by original ids.
	sg := &Subgraph{
		CSC: CSC{
			Indptr:  []int64{0, 1, 2, 3},
			Indices: []int64{0, 1, 2},
		},
		OriginalColumnIDs: []int64{10, 11, 12},
		OriginalRowIDs:    []int64{13, 14, 15},
		OriginalEdgeIDs:   []int64{19, 20, 21},
	}
	got, err := sg.ExcludeEdges([]Edge{
		{Src: 14, Dst: 11},
		{Src: 15, Dst: 12},
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 1, 1, 1}, got.CSC.Indptr)
	assert.Equal(t, []int64{0}, got.CSC.Indices)
	assert.Equal(t, []int64{10, 11, 12}, got.OriginalColumnIDs)
	assert.Equal(t, []int64{13, 14, 15}, got.OriginalRowIDs)
	assert.Equal(t, []int64{19}, got.OriginalEdgeIDs)
}

func TestExcludeEdgesUncompacted(t *testing.T) {
	t.Parallel()

	sg := &Subgraph{
		CSC: CSC{
			Indptr:  []int64{0, 2, 3},
			Indices: []int64{5, 6, 5},
		},
	}
	got, err := sg.ExcludeEdges([]Edge{{Src: 5, Dst: 0}})
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 1, 2}, got.CSC.Indptr)
	assert.Equal(t, []int64{6, 5}, got.CSC.Indices)
}

func TestExcludeEdgesRejectsWideIDs(t *testing.T) {
	t.Parallel()

	sg := &Subgraph{CSC: CSC{Indptr: []int64{0, 1}, Indices: []int64{0}}}
	_, err := sg.ExcludeEdges([]Edge{{Src: 1 << 33, Dst: 0}})
	assert.Error(t, err)
}

func TestCOORoundTrip(t *testing.T) {
	t.Parallel()

	rows := []int64{5, 6, 5, 7}
	cols := []int64{0, 0, 1, 2}
	sg, err := FromCOO(rows, cols, 3)
	require.NoError(t, err)
	require.NoError(t, sg.CSC.Validate())
	assert.Equal(t, []int64{0, 2, 3, 4}, sg.CSC.Indptr)

	gotRows, gotCols := sg.ToCOO()
	assert.Equal(t, rows, gotRows)
	assert.Equal(t, cols, gotCols)
}

func TestFromCOOOutOfRange(t *testing.T) {
	t.Parallel()

	_, err := FromCOO([]int64{0}, []int64{3}, 3)
	assert.Error(t, err)
}

// lineGraph returns a graph where column j has in-edges from rows j+1..n-1.
func lineGraph(n int) *Graph {
	g := &Graph{CSC: CSC{Indptr: []int64{0}}}
	for col := 0; col < n; col++ {
		for row := col + 1; row < n; row++ {
			g.CSC.Indices = append(g.CSC.Indices, int64(row))
		}
		g.CSC.Indptr = append(g.CSC.Indptr, int64(len(g.CSC.Indices)))
	}
	return g
}

func TestSampleNeighborsFanout(t *testing.T) {
	t.Parallel()

	g := lineGraph(10)
	rnd := rand.New(rand.NewSource(1))
	sg, err := g.SampleNeighbors([]int64{0, 7, 9}, 3, false, rnd)
	require.NoError(t, err)
	require.NoError(t, sg.CSC.Validate())

	assert.Equal(t, []int64{0, 7, 9}, sg.OriginalColumnIDs)
	// seed 0 has 9 neighbors (capped at 3), seed 7 has 2, seed 9 has none
	assert.Equal(t, []int64{0, 3, 5, 5}, sg.CSC.Indptr)

	// without replacement, no neighbor may repeat per seed
	seen := make(map[int64]bool)
	for _, row := range sg.CSC.Indices[0:3] {
		assert.False(t, seen[row], "row %d sampled twice", row)
		seen[row] = true
		assert.Greater(t, row, int64(0))
	}

	// edge ids must point back at the sampled rows
	for i, edge := range sg.OriginalEdgeIDs {
		assert.Equal(t, g.CSC.Indices[edge], sg.CSC.Indices[i])
	}
}

func TestSampleNeighborsReplace(t *testing.T) {
	t.Parallel()

	g := lineGraph(3)
	rnd := rand.New(rand.NewSource(1))
	sg, err := g.SampleNeighbors([]int64{0}, 5, true, rnd)
	require.NoError(t, err)
	// with replacement, exactly fanout edges even though only 2 neighbors exist
	assert.Equal(t, []int64{0, 5}, sg.CSC.Indptr)
	for _, row := range sg.CSC.Indices {
		assert.Contains(t, []int64{1, 2}, row)
	}
}

func TestSampleNeighborsWeighted(t *testing.T) {
	t.Parallel()

	// all weight on the edge from row 2
	g := lineGraph(3)
	g.Weights = []float64{0, 1, 0}
	rnd := rand.New(rand.NewSource(1))
	sg, err := g.SampleNeighbors([]int64{0}, 1, false, rnd)
	require.NoError(t, err)
	require.Equal(t, []int64{2}, sg.CSC.Indices)
}

func TestSampleNeighborsAllZeroWeights(t *testing.T) {
	t.Parallel()

	// No edge is eligible, with or without replacement.
	g := lineGraph(3)
	g.Weights = []float64{0, 0, 0}
	rnd := rand.New(rand.NewSource(1))
	sg, err := g.SampleNeighbors([]int64{0}, 2, true, rnd)
	require.NoError(t, err)
	assert.Empty(t, sg.CSC.Indices)
	assert.Equal(t, []int64{0, 0}, sg.CSC.Indptr)
}

func TestSampleLayers(t *testing.T) {
	t.Parallel()

	g := lineGraph(10)
	rnd := rand.New(rand.NewSource(1))
	layers, err := g.SampleLayers([]int64{0}, []int{2, 2}, false, rnd)
	require.NoError(t, err)
	require.Len(t, layers, 2)

	// the second layer's seeds are the first layer's sampled rows
	assert.Equal(t, 2, len(layers[0].CSC.Indices))
	seen := make(map[int64]bool)
	for _, row := range layers[0].CSC.Indices {
		seen[row] = true
	}
	for _, col := range layers[1].OriginalColumnIDs {
		assert.True(t, seen[col], "layer 2 seed %d not sampled in layer 1", col)
	}
}
