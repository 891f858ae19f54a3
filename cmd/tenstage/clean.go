package main

import (
	"context"
	"flag"
	"path/filepath"

	staging "github.com/tenstage/tenstage/internal/stage"
)

const cleanHelp = `tenstage clean [-flags]

Remove the staged binaries recorded in the staging manifest from the
build directory. Files the packaging step created are left alone.
`

func clean(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("clean", flag.ExitOnError)
	var (
		pkgDir   = fset.String("pkg", ".", "package directory")
		buildDir = fset.String("builddir", "build", "staging directory, relative to the package directory")
	)
	fset.Usage = usage(fset, cleanHelp)
	fset.Parse(args)

	return staging.Clean(filepath.Join(*pkgDir, *buildDir))
}
