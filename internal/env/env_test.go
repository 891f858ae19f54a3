package env

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/tenstage/tenstage"
)

func TestReposDefault(t *testing.T) {
	old := TenstageRoot
	TenstageRoot = t.TempDir()
	defer func() { TenstageRoot = old }()

	repos, err := Repos()
	if err != nil {
		t.Fatal(err)
	}
	if got, want := len(repos), 1; got != want {
		t.Fatalf("Repos() returned %d repos, want %d", got, want)
	}
}

func TestReposFromConfig(t *testing.T) {
	old := TenstageRoot
	TenstageRoot = t.TempDir()
	defer func() { TenstageRoot = old }()

	const config = `repos:
  - path: /srv/artifacts
  - path: https://artifacts.example.net
`
	if err := os.WriteFile(filepath.Join(TenstageRoot, "repos.yaml"), []byte(config), 0644); err != nil {
		t.Fatal(err)
	}

	repos, err := Repos()
	if err != nil {
		t.Fatal(err)
	}
	want := []tenstage.Repo{
		{Path: "/srv/artifacts", PkgPath: "/srv/artifacts/pkg"},
		{Path: "https://artifacts.example.net", PkgPath: "https://artifacts.example.net/pkg"},
	}
	if diff := cmp.Diff(want, repos); diff != "" {
		t.Errorf("Repos(): diff (-want +got):\n%s", diff)
	}
}
