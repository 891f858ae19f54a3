// Package recipe reads stage.textproto recipe files and artifact
// .meta.textproto metadata files.
package recipe

import (
	"fmt"
	"os"
	"strconv"

	"github.com/protocolbuffers/txtpbfmt/ast"
	"github.com/protocolbuffers/txtpbfmt/parser"
)

// Artifact names one shared object to stage: Name is the artifact name in the
// cache/repository (without variant, version or extension), Dest the path
// below the staging directory (the platform shared-object extension is
// appended).
type Artifact struct {
	Name string
	Dest string
}

// Step is one install command. Argv entries are substituted with
// ${TENSTAGE_*} build variables before execution.
type Step struct {
	Argv []string
}

// Recipe describes how one package is staged and installed. It is read from a
// pkgs/<name>/stage.textproto file.
type Recipe struct {
	// Name is the package name, e.g. dgl.
	Name string

	// Version is the upstream version plus tenstage revision, e.g. 2.1.0-3.
	Version string

	// Framework is the tensor framework the adapters target, e.g. pytorch.
	// Adapters are staged below tensoradapter/<framework>/.
	Framework string

	Libraries []Artifact
	Adapters  []Artifact

	// InstallSteps are run by tenstage install after staging. If empty, the
	// default packaging command applies (${PYTHON} setup.py install).
	InstallSteps []Step

	RuntimeDeps []string
}

func stringVal(nodes []*ast.Node, path ...string) (string, error) {
	found := ast.GetFromPath(nodes, path)
	if got, want := len(found), 1; got != want {
		return "", fmt.Errorf("malformed file: got %d %q keys, want %d", got, path, want)
	}
	values := found[0].Values
	if got, want := len(values), 1; got != want {
		return "", fmt.Errorf("malformed file: got %d values for %q, want %d", got, path, want)
	}
	return unquote(values[0].Value), nil
}

func stringVals(nodes []*ast.Node, path ...string) []string {
	var vals []string
	for _, n := range ast.GetFromPath(nodes, path) {
		for _, v := range n.Values {
			vals = append(vals, unquote(v.Value))
		}
	}
	return vals
}

func unquote(v string) string {
	if unq, err := strconv.Unquote(v); err == nil {
		return unq
	}
	return v
}

func artifacts(nodes []*ast.Node, field string) ([]Artifact, error) {
	var arts []Artifact
	for _, n := range ast.GetFromPath(nodes, []string{field}) {
		name, err := stringVal(n.Children, "name")
		if err != nil {
			return nil, err
		}
		dest, err := stringVal(n.Children, "dest")
		if err != nil {
			return nil, err
		}
		arts = append(arts, Artifact{Name: name, Dest: dest})
	}
	return arts, nil
}

// Parse parses the contents of a stage.textproto file.
func Parse(b []byte) (*Recipe, error) {
	nodes, err := parser.Parse(b)
	if err != nil {
		return nil, err
	}
	r := &Recipe{}
	if r.Name, err = stringVal(nodes, "name"); err != nil {
		return nil, err
	}
	if r.Version, err = stringVal(nodes, "version"); err != nil {
		return nil, err
	}
	r.Framework, _ = stringVal(nodes, "framework")
	if r.Framework == "" {
		r.Framework = "pytorch"
	}
	if r.Libraries, err = artifacts(nodes, "library"); err != nil {
		return nil, err
	}
	if r.Adapters, err = artifacts(nodes, "adapter"); err != nil {
		return nil, err
	}
	for _, n := range ast.GetFromPath(nodes, []string{"install_step"}) {
		r.InstallSteps = append(r.InstallSteps, Step{
			Argv: stringVals(n.Children, "argv"),
		})
	}
	r.RuntimeDeps = stringVals(nodes, "runtime_dep")
	return r, nil
}

// ReadFile reads a stage.textproto recipe file.
func ReadFile(path string) (*Recipe, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	r, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %v", path, err)
	}
	return r, nil
}
