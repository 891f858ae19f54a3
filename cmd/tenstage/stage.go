package main

import (
	"context"
	"flag"
	"path/filepath"

	"github.com/tenstage/tenstage"
	"github.com/tenstage/tenstage/internal/cudadetect"
	"github.com/tenstage/tenstage/internal/env"
	"github.com/tenstage/tenstage/internal/recipe"
	staging "github.com/tenstage/tenstage/internal/stage"
)

const stageHelp = `tenstage stage [-flags]

Stage prebuilt shared-library artifacts into the build directory of the
package in the current directory (or -pkg), according to its
stage.textproto recipe.

Example:
  % cd ~/tenstage/pkgs/dgl
  % USE_CUDA=1 CUDA_VER=11.8 tenstage stage
`

func stage(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("stage", flag.ExitOnError)
	var (
		pkgDir   = fset.String("pkg", ".", "package directory containing stage.textproto")
		buildDir = fset.String("builddir", "build", "staging directory, relative to the package directory")
		cache    = fset.String("cache", env.DefaultCache, "artifact cache directory")
		variant  = fset.String("variant", "", "artifact variant to stage (cpu, cuda118, ...). auto probes the driver; empty consults USE_CUDA/CUDA_VER")
		repoFlag = fset.String("repo", "", "if non-empty, consult only this repository (path or URL) instead of repos.yaml")
	)
	fset.Usage = usage(fset, stageHelp)
	fset.Parse(args)

	rcp, err := recipe.ReadFile(filepath.Join(*pkgDir, "stage.textproto"))
	if err != nil {
		return err
	}
	v, err := cudadetect.ResolveVariant(*variant)
	if err != nil {
		return err
	}
	var repos []tenstage.Repo
	if *repoFlag != "" {
		repos = []tenstage.Repo{{Path: *repoFlag, PkgPath: *repoFlag + "/pkg"}}
	} else {
		repos, err = env.Repos()
		if err != nil {
			return err
		}
	}
	c := &staging.Ctx{
		Cache:    *cache,
		Repos:    repos,
		BuildDir: filepath.Join(*pkgDir, *buildDir),
		Variant:  v,
	}
	_, err = c.Stage(ctx, rcp)
	return err
}
