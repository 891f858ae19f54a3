package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	bundler "github.com/tenstage/tenstage/internal/bundle"
	staging "github.com/tenstage/tenstage/internal/stage"
	"golang.org/x/xerrors"
)

const bundleHelp = `tenstage bundle [-flags]

Pack the staged binaries recorded in the staging manifest into a single
compressed .bundle file, e.g. for copying a staging set between machines
without a repository.

Example:
  % tenstage bundle -output=dgl-cpu.bundle
`

func bundle(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("bundle", flag.ExitOnError)
	var (
		pkgDir   = fset.String("pkg", ".", "package directory")
		buildDir = fset.String("builddir", "build", "staging directory, relative to the package directory")
		output   = fset.String("output", "", "output .bundle path (default <pkg>-<variant>.bundle)")
	)
	fset.Usage = usage(fset, bundleHelp)
	fset.Parse(args)

	dir := filepath.Join(*pkgDir, *buildDir)
	m, err := staging.ReadManifest(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return xerrors.Errorf("no staging manifest in %s (run tenstage stage first)", dir)
		}
		return err
	}
	out := *output
	if out == "" {
		out = fmt.Sprintf("%s-%s.bundle", m.Pkg, m.Variant)
	}
	if err := bundler.Write(out, dir, m.Files); err != nil {
		return err
	}
	log.Printf("bundled %d staged files into %s", len(m.Files), out)
	return nil
}

const unbundleHelp = `tenstage unbundle [-flags] <bundle>

Extract a .bundle file into the build directory.

Example:
  % tenstage unbundle -builddir=build dgl-cpu.bundle
`

func unbundle(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("unbundle", flag.ExitOnError)
	var (
		pkgDir   = fset.String("pkg", ".", "package directory")
		buildDir = fset.String("builddir", "build", "staging directory, relative to the package directory")
	)
	fset.Usage = usage(fset, unbundleHelp)
	fset.Parse(args)
	if fset.NArg() != 1 {
		fmt.Fprint(os.Stderr, unbundleHelp)
		return xerrors.Errorf("syntax: unbundle <bundle>")
	}

	files, err := bundler.Extract(fset.Arg(0), filepath.Join(*pkgDir, *buildDir))
	if err != nil {
		return err
	}
	log.Printf("extracted %d files", len(files))
	return nil
}
