// Package env captures details about the tenstage environment. Inspect the
// environment using `tenstage env`.
package env

import (
	"os"
	"path/filepath"

	"github.com/tenstage/tenstage"
	"gopkg.in/yaml.v3"
)

// TenstageRoot is the root directory of the tenstage working tree, holding the
// pkgs/ recipe directory, the artifact cache and the local repository.
var TenstageRoot = findTenstageRoot()

func findTenstageRoot() string {
	if env := os.Getenv("TENSTAGE_ROOT"); env != "" {
		return env
	}
	return os.ExpandEnv("$HOME/tenstage") // default
}

// DefaultCache is the directory holding prebuilt binary artifacts produced by
// a prior build stage. The CACHEDIR environment variable overrides it, mirroring
// the interface of the build scripts that produce the artifacts.
var DefaultCache = findCache()

func findCache() string {
	if env := os.Getenv("CACHEDIR"); env != "" {
		return env
	}
	return filepath.Join(TenstageRoot, "cache")
}

// DefaultRepoRoot is the local artifact repository (served by tenstage export).
var DefaultRepoRoot = filepath.Join(TenstageRoot, "repo")

// DefaultRepo is the pkg/ directory within DefaultRepoRoot, where artifacts
// and their .meta.textproto files live.
var DefaultRepo = filepath.Join(DefaultRepoRoot, "pkg")

// Python returns the Python interpreter to drive packaging commands with,
// honoring the PYTHON environment variable.
func Python() string {
	if env := os.Getenv("PYTHON"); env != "" {
		return env
	}
	return "python3"
}

type reposConfig struct {
	Repos []struct {
		Path string `yaml:"path"`
	} `yaml:"repos"`
}

// Repos returns the configured artifact repositories from
// TenstageRoot/repos.yaml, falling back to the local repository if the file
// does not exist.
func Repos() ([]tenstage.Repo, error) {
	b, err := os.ReadFile(filepath.Join(TenstageRoot, "repos.yaml"))
	if err != nil {
		if os.IsNotExist(err) {
			return []tenstage.Repo{{Path: DefaultRepoRoot, PkgPath: DefaultRepo}}, nil
		}
		return nil, err
	}
	var cfg reposConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}
	repos := make([]tenstage.Repo, 0, len(cfg.Repos))
	for _, r := range cfg.Repos {
		repos = append(repos, tenstage.Repo{
			Path:    r.Path,
			PkgPath: r.Path + "/pkg",
		})
	}
	return repos, nil
}
