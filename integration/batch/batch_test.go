package batch_test

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

func writeRecipe(t *testing.T, root, pkg, contents string) {
	t.Helper()
	dir := filepath.Join(root, "pkgs", pkg)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "stage.textproto"), []byte(contents), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestBatchDryRun(t *testing.T) {
	ctx, canc := context.WithCancel(context.Background())
	defer canc()

	root := t.TempDir()
	writeRecipe(t, root, "dgl", `name: "dgl"
version: "2.1.0-3"
runtime_dep: "tensoradapter"
`)
	writeRecipe(t, root, "tensoradapter", `name: "tensoradapter"
version: "2.1.0-3"
`)

	batch := exec.CommandContext(ctx, "tenstage", "batch", "-dry_run", "-variant=cpu")
	batch.Env = append(os.Environ(), "TENSTAGE_ROOT="+root)
	out, err := batch.CombinedOutput()
	if err != nil {
		t.Fatalf("%v: %v\n%s", batch.Args, err, out)
	}
	for _, want := range []string{"stage 2 pkg", "stage dgl", "stage tensoradapter"} {
		if !strings.Contains(string(out), want) {
			t.Errorf("batch -dry_run output lacks %q:\n%s", want, out)
		}
	}
}
