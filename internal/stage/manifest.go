package stage

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/renameio"
	"github.com/protocolbuffers/txtpbfmt/ast"
	"github.com/protocolbuffers/txtpbfmt/parser"
)

// manifestName is the staging manifest within the build directory. It records
// which files tenstage staged so that clean (and the post-install cleanup)
// removes exactly those, never files the package's own build produced.
const manifestName = "staged.textproto"

type Manifest struct {
	Pkg     string
	Variant string

	// Files are staged paths relative to the build directory.
	Files []string
}

func (m *Manifest) marshal() []byte {
	var sb strings.Builder
	fmt.Fprintf(&sb, "pkg: %q\n", m.Pkg)
	fmt.Fprintf(&sb, "variant: %q\n", m.Variant)
	for _, f := range m.Files {
		fmt.Fprintf(&sb, "file: %q\n", f)
	}
	return []byte(sb.String())
}

// Write writes the manifest into buildDir atomically.
func (m *Manifest) Write(buildDir string) error {
	return renameio.WriteFile(filepath.Join(buildDir, manifestName), m.marshal(), 0644)
}

// ReadManifest reads the staging manifest from buildDir. A missing manifest
// is reported via os.IsNotExist.
func ReadManifest(buildDir string) (*Manifest, error) {
	b, err := os.ReadFile(filepath.Join(buildDir, manifestName))
	if err != nil {
		return nil, err
	}
	nodes, err := parser.Parse(b)
	if err != nil {
		return nil, err
	}
	m := &Manifest{}
	stringVal := func(name string) string {
		for _, n := range ast.GetFromPath(nodes, []string{name}) {
			for _, v := range n.Values {
				if unq, err := strconv.Unquote(v.Value); err == nil {
					return unq
				}
				return v.Value
			}
		}
		return ""
	}
	m.Pkg = stringVal("pkg")
	m.Variant = stringVal("variant")
	for _, n := range ast.GetFromPath(nodes, []string{"file"}) {
		for _, v := range n.Values {
			if unq, err := strconv.Unquote(v.Value); err == nil {
				m.Files = append(m.Files, unq)
			} else {
				m.Files = append(m.Files, v.Value)
			}
		}
	}
	return m, nil
}

// Clean removes the staged files recorded in the manifest and the manifest
// itself. Directories that became empty are left in place. A missing manifest
// is a no-op.
func Clean(buildDir string) error {
	m, err := ReadManifest(buildDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, f := range m.Files {
		if err := os.Remove(filepath.Join(buildDir, f)); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return os.Remove(filepath.Join(buildDir, manifestName))
}
