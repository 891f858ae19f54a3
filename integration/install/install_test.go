package install_test

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

const libdgl = "libdgl-cpu-2.1.0-3.so"

// installCmd runs tenstage install with /bin/echo standing in for the Python
// interpreter, so that the packaging step itself is a no-op.
func installCmd(ctx context.Context, root, pkgDir, cache string, extra ...string) *exec.Cmd {
	install := exec.CommandContext(ctx, "tenstage",
		append([]string{
			"install",
			"-pkg=" + pkgDir,
			"-cache=" + cache,
			"-variant=cpu",
		}, extra...)...)
	install.Env = append(os.Environ(),
		"TENSTAGE_ROOT="+root,
		"PYTHON=/bin/echo",
	)
	install.Stderr = os.Stderr
	install.Stdout = os.Stdout
	return install
}

func setup(t *testing.T) (root, pkgDir, cache string) {
	t.Helper()
	repo := t.TempDir()
	if err := os.MkdirAll(filepath.Join(repo, "pkg"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(repo, "pkg", libdgl), []byte("\x7fELF fake shared object"), 0644); err != nil {
		t.Fatal(err)
	}
	root = t.TempDir()
	reposYaml := fmt.Sprintf("repos:\n  - path: %s\n", repo)
	if err := os.WriteFile(filepath.Join(root, "repos.yaml"), []byte(reposYaml), 0644); err != nil {
		t.Fatal(err)
	}
	pkgDir = t.TempDir()
	recipe := `name: "dgl"
version: "2.1.0-3"
library: {
  name: "libdgl"
  dest: "libdgl"
}
`
	if err := os.WriteFile(filepath.Join(pkgDir, "stage.textproto"), []byte(recipe), 0644); err != nil {
		t.Fatal(err)
	}
	return root, pkgDir, t.TempDir()
}

func TestInstallRemovesStaged(t *testing.T) {
	ctx, canc := context.WithCancel(context.Background())
	defer canc()

	root, pkgDir, cache := setup(t)
	install := installCmd(ctx, root, pkgDir, cache)
	if err := install.Run(); err != nil {
		t.Fatalf("%v: %v", install.Args, err)
	}

	// The staged binaries must be removed again after a successful install.
	if _, err := os.Stat(filepath.Join(pkgDir, "build", "libdgl.so")); !os.IsNotExist(err) {
		t.Errorf("staged binary still present after install (stat: %v)", err)
	}
	// The build directory itself survives for the package's own outputs.
	if _, err := os.Stat(filepath.Join(pkgDir, "build")); err != nil {
		t.Errorf("build directory: %v", err)
	}
}

func TestInstallKeepStaged(t *testing.T) {
	ctx, canc := context.WithCancel(context.Background())
	defer canc()

	root, pkgDir, cache := setup(t)
	install := installCmd(ctx, root, pkgDir, cache, "-keep_staged")
	if err := install.Run(); err != nil {
		t.Fatalf("%v: %v", install.Args, err)
	}
	if _, err := os.Stat(filepath.Join(pkgDir, "build", "libdgl.so")); err != nil {
		t.Errorf("staged binary: %v", err)
	}
}
