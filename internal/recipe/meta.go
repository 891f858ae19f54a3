package recipe

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/google/renameio"
	"github.com/protocolbuffers/txtpbfmt/parser"
)

// Meta is the metadata accompanying one artifact in a repository, stored next
// to it as <artifact>.meta.textproto.
type Meta struct {
	// SourcePkg is the recipe the artifact was staged from, e.g. dgl.
	SourcePkg string

	// Version is upstream version plus revision, e.g. 2.1.0-3.
	Version string

	// Variant is the artifact variant, e.g. cpu or cuda118.
	Variant string

	// SHA256 is the hex digest of the artifact file.
	SHA256 string

	// Size is the artifact file size in bytes.
	Size int64

	// SOName is the ELF DT_SONAME of the shared object, if any.
	SOName string

	RuntimeDeps []string
}

// ParseMeta parses the contents of a .meta.textproto file.
func ParseMeta(b []byte) (*Meta, error) {
	nodes, err := parser.Parse(b)
	if err != nil {
		return nil, err
	}
	m := &Meta{}
	m.SourcePkg, _ = stringVal(nodes, "source_pkg")
	m.Version, _ = stringVal(nodes, "version")
	m.Variant, _ = stringVal(nodes, "variant")
	m.SHA256, _ = stringVal(nodes, "sha256")
	m.SOName, _ = stringVal(nodes, "soname")
	if v, err := stringVal(nodes, "size"); err == nil {
		if m.Size, err = strconv.ParseInt(v, 10, 64); err != nil {
			return nil, fmt.Errorf("malformed size: %v", err)
		}
	}
	m.RuntimeDeps = stringVals(nodes, "runtime_dep")
	return m, nil
}

// ReadMetaFile reads a .meta.textproto file.
func ReadMetaFile(path string) (*Meta, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	m, err := ParseMeta(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %v", path, err)
	}
	return m, nil
}

// Marshal formats m in textproto syntax.
func (m *Meta) Marshal() []byte {
	var sb strings.Builder
	field := func(name, val string) {
		if val != "" {
			fmt.Fprintf(&sb, "%s: %q\n", name, val)
		}
	}
	field("source_pkg", m.SourcePkg)
	field("version", m.Version)
	field("variant", m.Variant)
	field("sha256", m.SHA256)
	if m.Size > 0 {
		fmt.Fprintf(&sb, "size: %d\n", m.Size)
	}
	field("soname", m.SOName)
	for _, dep := range m.RuntimeDeps {
		field("runtime_dep", dep)
	}
	return []byte(sb.String())
}

// WriteMetaFile writes m to path atomically.
func WriteMetaFile(path string, m *Meta) error {
	return renameio.WriteFile(path, m.Marshal(), 0644)
}
