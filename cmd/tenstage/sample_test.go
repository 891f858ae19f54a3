package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestMetaPath(t *testing.T) {
	for _, tt := range []struct {
		artifact string
		want     string
	}{
		{"libdgl-cpu-2.1.0-3.so", "libdgl-cpu-2.1.0-3.meta.textproto"},
		{"cache/libdgl-cuda118-2.1.0-3.so", "cache/libdgl-cuda118-2.1.0-3.meta.textproto"},
		{"libdgl-cpu-2.1.0-3.dylib", "libdgl-cpu-2.1.0-3.meta.textproto"},
		// No extension: the version dots stay intact.
		{"libdgl-cpu-2.1.0-3", "libdgl-cpu-2.1.0-3.meta.textproto"},
		{"noext", "noext.meta.textproto"},
	} {
		if got := metaPath(tt.artifact); got != tt.want {
			t.Errorf("metaPath(%q) = %q, want %q", tt.artifact, got, tt.want)
		}
	}
}

func TestReadEdges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.edges")
	if err := os.WriteFile(path, []byte(`# comment
1 0 0.5
2 0 1.5
2 1 2.5
`), 0644); err != nil {
		t.Fatal(err)
	}
	g, err := readEdges(path)
	if err != nil {
		t.Fatalf("readEdges: %v", err)
	}
	if err := g.CSC.Validate(); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]int64{0, 2, 3, 3}, g.CSC.Indptr); diff != "" {
		t.Errorf("indptr: diff (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int64{1, 2, 2}, g.CSC.Indices); diff != "" {
		t.Errorf("indices: diff (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]float64{0.5, 1.5, 2.5}, g.Weights); diff != "" {
		t.Errorf("weights: diff (-want +got):\n%s", diff)
	}
}

func TestReadEdgesPartialWeights(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.edges")
	if err := os.WriteFile(path, []byte("1 0 0.5\n2 0\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := readEdges(path); err == nil {
		t.Fatalf("readEdges unexpectedly succeeded despite partial weights")
	}
}
