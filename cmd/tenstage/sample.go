package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/tenstage/tenstage/internal/subgraph"
	"golang.org/x/exp/rand"
	"golang.org/x/xerrors"
)

const sampleHelp = `tenstage sample [-flags] <edges>

Sample neighbor subgraphs from an edge list file and print them as
JSON, e.g. to generate fixtures for smoke-testing staged libraries
against a known-good sampler. Each line of the edge list file is
"src dst" or "src dst weight".

Example:
  % tenstage sample -seeds=0,1 -fanouts=10,5 graph.edges
`

// readEdges parses an edge list file into a sampling graph. Edge weights are
// optional, but must be present on either all or no lines.
func readEdges(path string) (*subgraph.Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var rows, cols []int64
	var weights []float64
	var maxID int64 = -1
	scanner := bufio.NewScanner(f)
	for lineNo := 1; scanner.Scan(); lineNo++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 && len(fields) != 3 {
			return nil, xerrors.Errorf("%s:%d: got %d fields, want 2 or 3", path, lineNo, len(fields))
		}
		src, err := strconv.ParseInt(fields[0], 10, 64)
		if err != nil {
			return nil, xerrors.Errorf("%s:%d: %v", path, lineNo, err)
		}
		dst, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return nil, xerrors.Errorf("%s:%d: %v", path, lineNo, err)
		}
		rows = append(rows, src)
		cols = append(cols, dst)
		if src > maxID {
			maxID = src
		}
		if dst > maxID {
			maxID = dst
		}
		if len(fields) == 3 {
			w, err := strconv.ParseFloat(fields[2], 64)
			if err != nil {
				return nil, xerrors.Errorf("%s:%d: %v", path, lineNo, err)
			}
			weights = append(weights, w)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if weights != nil && len(weights) != len(rows) {
		return nil, xerrors.Errorf("%s: %d of %d edges have weights, want all or none", path, len(weights), len(rows))
	}

	sg, err := subgraph.FromCOO(rows, cols, int(maxID)+1)
	if err != nil {
		return nil, err
	}
	g := &subgraph.Graph{CSC: sg.CSC}
	if weights != nil {
		// FromCOO groups edges by column; reorder the weights accordingly.
		g.Weights = make([]float64, len(weights))
		for pos, orig := range sg.OriginalEdgeIDs {
			g.Weights[pos] = weights[orig]
		}
	}
	return g, nil
}

func parseInt64s(s string) ([]int64, error) {
	var vals []int64
	for _, part := range strings.Split(s, ",") {
		v, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return nil, err
		}
		vals = append(vals, v)
	}
	return vals, nil
}

func sample(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("sample", flag.ExitOnError)
	var (
		seeds    = fset.String("seeds", "0", "comma-separated seed node ids")
		fanouts  = fset.String("fanouts", "10", "comma-separated per-layer fanouts (-1 selects all neighbors)")
		replace  = fset.Bool("replace", false, "sample with replacement")
		randSeed = fset.Uint64("seed", 1, "random seed, for reproducible fixtures")
	)
	fset.Usage = usage(fset, sampleHelp)
	fset.Parse(args)
	if fset.NArg() != 1 {
		fmt.Fprint(os.Stderr, sampleHelp)
		return xerrors.Errorf("syntax: sample <edges>")
	}

	g, err := readEdges(fset.Arg(0))
	if err != nil {
		return err
	}
	seedIDs, err := parseInt64s(*seeds)
	if err != nil {
		return xerrors.Errorf("-seeds: %v", err)
	}
	var fanoutVals []int
	for _, v := range strings.Split(*fanouts, ",") {
		f, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return xerrors.Errorf("-fanouts: %v", err)
		}
		fanoutVals = append(fanoutVals, f)
	}

	rnd := rand.New(rand.NewSource(*randSeed))
	layers, err := g.SampleLayers(seedIDs, fanoutVals, *replace, rnd)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(layers)
}
