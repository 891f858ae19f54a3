package main

import (
	"context"
	"flag"
	"os"
	"path/filepath"

	"github.com/tenstage/tenstage/internal/cudadetect"
	"github.com/tenstage/tenstage/internal/env"
	installer "github.com/tenstage/tenstage/internal/install"
	"github.com/tenstage/tenstage/internal/recipe"
	staging "github.com/tenstage/tenstage/internal/stage"
)

const installHelp = `tenstage install [-flags]

Stage prebuilt artifacts, then run the packaging install steps of the
recipe (by default: ${PYTHON} setup.py install). The staged binaries are
removed again once the install steps succeeded.

Example:
  % cd ~/tenstage/pkgs/dgl
  % tenstage install -variant=cpu
`

func install(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("install", flag.ExitOnError)
	var (
		pkgDir     = fset.String("pkg", ".", "package directory containing stage.textproto and setup.py")
		buildDir   = fset.String("builddir", "build", "staging directory, relative to the package directory")
		cache      = fset.String("cache", env.DefaultCache, "artifact cache directory")
		variant    = fset.String("variant", "", "artifact variant to stage (cpu, cuda118, ...). auto probes the driver; empty consults USE_CUDA/CUDA_VER")
		prefix     = fset.String("prefix", "/usr", "install prefix, substituted as ${TENSTAGE_PREFIX}")
		destDir    = fset.String("destdir", "", "destination root, substituted as ${TENSTAGE_DESTDIR}")
		keepStaged = fset.Bool("keep_staged", false, "keep the staged binaries after installing (e.g. for debugging)")
		dryRun     = fset.Bool("dry_run", false, "print install steps instead of running them")
	)
	fset.Usage = usage(fset, installHelp)
	fset.Parse(args)

	rcp, err := recipe.ReadFile(filepath.Join(*pkgDir, "stage.textproto"))
	if err != nil {
		return err
	}
	v, err := cudadetect.ResolveVariant(*variant)
	if err != nil {
		return err
	}
	repos, err := env.Repos()
	if err != nil {
		return err
	}
	sc := &staging.Ctx{
		Cache:    *cache,
		Repos:    repos,
		BuildDir: filepath.Join(*pkgDir, *buildDir),
		Variant:  v,
	}
	if _, err := sc.Stage(ctx, rcp); err != nil {
		return err
	}
	ic := &installer.Ctx{
		SourceDir:  *pkgDir,
		BuildDir:   sc.BuildDir,
		Variant:    v,
		Prefix:     *prefix,
		DestDir:    *destDir,
		KeepStaged: *keepStaged,
	}
	if *dryRun {
		ic.DryRun = os.Stdout
	}
	return ic.Package(ctx, rcp)
}
