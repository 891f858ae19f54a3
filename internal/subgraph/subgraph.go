// Package subgraph implements sampled graph subgraphs in CSC form, as
// produced by neighbor sampling over prebuilt graph artifacts. It is used by
// tenstage sample to generate staging fixtures and smoke-test staged
// libraries.
package subgraph

import (
	"sort"

	"golang.org/x/xerrors"
)

// CSC is a graph structure in compressed sparse column form. Indptr stores,
// for each column, the index in Indices where the column starts. Indices
// stores the row id of each edge.
type CSC struct {
	Indptr  []int64
	Indices []int64
}

// NumColumns returns the number of columns.
func (c *CSC) NumColumns() int {
	return len(c.Indptr) - 1
}

// NumEdges returns the number of edges.
func (c *CSC) NumEdges() int {
	return len(c.Indices)
}

// Validate verifies the CSC invariants: indptr is non-empty, starts at 0, is
// non-decreasing, and its last entry covers all of indices.
func (c *CSC) Validate() error {
	if len(c.Indptr) == 0 {
		return xerrors.Errorf("empty indptr")
	}
	if c.Indptr[0] != 0 {
		return xerrors.Errorf("indptr[0] = %d, want 0", c.Indptr[0])
	}
	for i := 1; i < len(c.Indptr); i++ {
		if c.Indptr[i] < c.Indptr[i-1] {
			return xerrors.Errorf("indptr[%d] = %d < indptr[%d] = %d", i, c.Indptr[i], i-1, c.Indptr[i-1])
		}
	}
	if last := c.Indptr[len(c.Indptr)-1]; last != int64(len(c.Indices)) {
		return xerrors.Errorf("indptr[%d] = %d, want len(indices) = %d", len(c.Indptr)-1, last, len(c.Indices))
	}
	return nil
}

// Subgraph is a sampled subgraph. Row and column ids in CSC are compacted if
// the corresponding Original*IDs field is set, in which case it maps the
// compacted id back to the id in the original graph.
type Subgraph struct {
	CSC CSC

	OriginalRowIDs    []int64
	OriginalColumnIDs []int64
	OriginalEdgeIDs   []int64
}

// Edge is one directed edge in original graph id space.
type Edge struct {
	Src int64 // row
	Dst int64 // column
}

// reverseEdges maps every edge of the subgraph back into original graph id
// space, expanding indptr into one column id per edge.
func (s *Subgraph) reverseEdges() []Edge {
	edges := make([]Edge, 0, len(s.CSC.Indices))
	for col := 0; col < s.CSC.NumColumns(); col++ {
		colID := int64(col)
		if s.OriginalColumnIDs != nil {
			colID = s.OriginalColumnIDs[col]
		}
		for i := s.CSC.Indptr[col]; i < s.CSC.Indptr[col+1]; i++ {
			rowID := s.CSC.Indices[i]
			if s.OriginalRowIDs != nil {
				rowID = s.OriginalRowIDs[rowID]
			}
			edges = append(edges, Edge{Src: rowID, Dst: colID})
		}
	}
	return edges
}

// node ids must fit into 32 bits so that an edge packs into one uint64 key
const maxNodeID = 1<<32 - 1

func edgeKey(e Edge) (uint64, error) {
	if e.Src < 0 || e.Src > maxNodeID || e.Dst < 0 || e.Dst > maxNodeID {
		return 0, xerrors.Errorf("node id out of range: edge %v", e)
	}
	return uint64(e.Src)<<32 | uint64(e.Dst), nil
}

// ExcludeEdges removes the given edges (in original graph id space) from the
// subgraph. Compacted row and column nodes stay compacted; original edge ids
// of the kept edges are preserved.
func (s *Subgraph) ExcludeEdges(exclude []Edge) (*Subgraph, error) {
	if err := s.CSC.Validate(); err != nil {
		return nil, err
	}
	excluded := make(map[uint64]bool, len(exclude))
	for _, e := range exclude {
		key, err := edgeKey(e)
		if err != nil {
			return nil, err
		}
		excluded[key] = true
	}
	keep := make([]int64, 0, len(s.CSC.Indices))
	for idx, e := range s.reverseEdges() {
		key, err := edgeKey(e)
		if err != nil {
			return nil, err
		}
		if !excluded[key] {
			keep = append(keep, int64(idx))
		}
	}
	return s.slice(keep), nil
}

// slice keeps only the edges at the given (sorted) positions.
func (s *Subgraph) slice(keep []int64) *Subgraph {
	indices := make([]int64, len(keep))
	for i, idx := range keep {
		indices[i] = s.CSC.Indices[idx]
	}
	// For each old indptr boundary, the new boundary is the number of kept
	// edges before it.
	indptr := make([]int64, len(s.CSC.Indptr))
	for i, p := range s.CSC.Indptr {
		indptr[i] = int64(sort.Search(len(keep), func(j int) bool {
			return keep[j] >= p
		}))
	}
	var edgeIDs []int64
	if s.OriginalEdgeIDs != nil {
		edgeIDs = make([]int64, len(keep))
		for i, idx := range keep {
			edgeIDs[i] = s.OriginalEdgeIDs[idx]
		}
	}
	return &Subgraph{
		CSC:               CSC{Indptr: indptr, Indices: indices},
		OriginalRowIDs:    s.OriginalRowIDs,
		OriginalColumnIDs: s.OriginalColumnIDs,
		OriginalEdgeIDs:   edgeIDs,
	}
}

// ToCOO converts the subgraph into coordinate form, in original graph id
// space.
func (s *Subgraph) ToCOO() (rows, cols []int64) {
	edges := s.reverseEdges()
	rows = make([]int64, len(edges))
	cols = make([]int64, len(edges))
	for i, e := range edges {
		rows[i] = e.Src
		cols[i] = e.Dst
	}
	return rows, cols
}

// FromCOO constructs a CSC subgraph from coordinate form. Column ids must be
// in [0, numColumns).
func FromCOO(rows, cols []int64, numColumns int) (*Subgraph, error) {
	if len(rows) != len(cols) {
		return nil, xerrors.Errorf("got %d rows, %d cols, want equal", len(rows), len(cols))
	}
	counts := make([]int64, numColumns+1)
	for _, c := range cols {
		if c < 0 || int(c) >= numColumns {
			return nil, xerrors.Errorf("column id %d out of range [0, %d)", c, numColumns)
		}
		counts[c+1]++
	}
	indptr := make([]int64, numColumns+1)
	for i := 1; i <= numColumns; i++ {
		indptr[i] = indptr[i-1] + counts[i]
	}
	indices := make([]int64, len(rows))
	edgeIDs := make([]int64, len(rows))
	next := make([]int64, numColumns)
	copy(next, indptr[:numColumns])
	for i := range rows {
		pos := next[cols[i]]
		indices[pos] = rows[i]
		edgeIDs[pos] = int64(i)
		next[cols[i]]++
	}
	return &Subgraph{
		CSC:             CSC{Indptr: indptr, Indices: indices},
		OriginalEdgeIDs: edgeIDs,
	}, nil
}
