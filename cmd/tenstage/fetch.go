package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/tenstage/tenstage/internal/cudadetect"
	"github.com/tenstage/tenstage/internal/env"
	fetcher "github.com/tenstage/tenstage/internal/fetch"
	"golang.org/x/xerrors"
)

const fetchHelp = `tenstage fetch [-flags] <pkg>

Download prebuilt artifacts for a package into the cache, either from a
GitHub release (-github) or from an HTML index page (-index). Without a
version constraint, the newest available version is fetched.

Example:
  % tenstage fetch -github=dmlc/dgl -tag=v2.1.0 libdgl
  % tenstage fetch -index=https://artifacts.example.org/dgl/ libdgl
`

func fetch(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("fetch", flag.ExitOnError)
	var (
		githubRepo = fset.String("github", "", "GitHub <owner>/<repo> to fetch release assets from")
		tag        = fset.String("tag", "", "release tag to fetch (default: newest release)")
		index      = fset.String("index", "", "HTML index page listing artifacts")
		cache      = fset.String("cache", env.DefaultCache, "artifact cache directory")
		variant    = fset.String("variant", "", "artifact variant to fetch (cpu, cuda118, ...). auto probes the driver; empty consults USE_CUDA/CUDA_VER")
	)
	fset.Usage = usage(fset, fetchHelp)
	fset.Parse(args)
	if fset.NArg() != 1 {
		fmt.Fprint(os.Stderr, fetchHelp)
		return xerrors.Errorf("syntax: fetch <pkg>")
	}
	pkg := fset.Arg(0)

	v, err := cudadetect.ResolveVariant(*variant)
	if err != nil {
		return err
	}
	c := &fetcher.Ctx{
		Log:         log.Default(),
		Cache:       *cache,
		GitHubToken: os.Getenv("GITHUB_TOKEN"),
	}
	var fetched []string
	switch {
	case *githubRepo != "":
		parts := strings.SplitN(*githubRepo, "/", 2)
		if len(parts) != 2 {
			return xerrors.Errorf("-github must be <owner>/<repo>, got %q", *githubRepo)
		}
		fetched, err = c.GitHubRelease(ctx, parts[0], parts[1], *tag, pkg, v)
	case *index != "":
		fetched, err = c.Index(ctx, *index, pkg, v)
	default:
		return xerrors.Errorf("one of -github or -index is required")
	}
	if err != nil {
		return err
	}
	log.Printf("fetched %d artifacts into %s", len(fetched), *cache)
	return nil
}
