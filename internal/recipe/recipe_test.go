package recipe

import (
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const dglRecipe = `name: "dgl"
version: "2.1.0-3"
framework: "pytorch"

library {
  name: "libdgl"
  dest: "libdgl"
}

adapter {
  name: "tensoradapter-pytorch"
  dest: "tensoradapter/pytorch/libtensoradapter_pytorch"
}

install_step {
  argv: "${PYTHON}"
  argv: "setup.py"
  argv: "install"
  argv: "--prefix=${TENSTAGE_PREFIX}"
}

runtime_dep: "libstdc++"
runtime_dep: "libgomp"
`

func TestParse(t *testing.T) {
	got, err := Parse([]byte(dglRecipe))
	if err != nil {
		t.Fatal(err)
	}
	want := &Recipe{
		Name:      "dgl",
		Version:   "2.1.0-3",
		Framework: "pytorch",
		Libraries: []Artifact{
			{Name: "libdgl", Dest: "libdgl"},
		},
		Adapters: []Artifact{
			{Name: "tensoradapter-pytorch", Dest: "tensoradapter/pytorch/libtensoradapter_pytorch"},
		},
		InstallSteps: []Step{
			{Argv: []string{"${PYTHON}", "setup.py", "install", "--prefix=${TENSTAGE_PREFIX}"}},
		},
		RuntimeDeps: []string{"libstdc++", "libgomp"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Parse: diff (-want +got):\n%s", diff)
	}
}

func TestParseDefaultFramework(t *testing.T) {
	r, err := Parse([]byte("name: \"dgl\"\nversion: \"2.1.0-1\"\n"))
	if err != nil {
		t.Fatal(err)
	}
	if got, want := r.Framework, "pytorch"; got != want {
		t.Errorf("Framework = %q, want %q", got, want)
	}
}

func TestParseMissingName(t *testing.T) {
	if _, err := Parse([]byte("version: \"2.1.0-1\"\n")); err == nil {
		t.Errorf("Parse without name unexpectedly succeeded")
	}
}

func TestMetaRoundTrip(t *testing.T) {
	m := &Meta{
		SourcePkg:   "dgl",
		Version:     "2.1.0-3",
		Variant:     "cuda118",
		SHA256:      "0f343b0931126a20f133d67c2b018a3b",
		Size:        4096,
		SOName:      "libdgl.so",
		RuntimeDeps: []string{"libstdc++"},
	}
	path := filepath.Join(t.TempDir(), "libdgl-cuda118-2.1.0-3.meta.textproto")
	if err := WriteMetaFile(path, m); err != nil {
		t.Fatal(err)
	}
	got, err := ReadMetaFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(m, got); diff != "" {
		t.Errorf("meta round trip: diff (-want +got):\n%s", diff)
	}
}
