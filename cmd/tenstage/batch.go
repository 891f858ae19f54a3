package main

import (
	"context"
	"flag"
	"log"
	"runtime"

	batcher "github.com/tenstage/tenstage/internal/batch"
	"github.com/tenstage/tenstage/internal/cudadetect"
	"github.com/tenstage/tenstage/internal/env"
	"github.com/tenstage/tenstage/internal/trace"
)

const batchHelp = `tenstage batch [-flags]

Stage all packages underneath $TENSTAGE_ROOT/pkgs in dependency order:
packages whose recipes name other recipes as runtime_dep are staged
after those. Dependency cycles are broken (with a log message).

Example:
  % tenstage batch -variant=cuda118 -jobs=4
`

func batch(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("batch", flag.ExitOnError)
	var (
		variant  = fset.String("variant", "", "artifact variant to stage (cpu, cuda118, ...). auto probes the driver; empty consults USE_CUDA/CUDA_VER")
		dryRun   = fset.Bool("dry_run", false, "only print packages which would be staged")
		simulate = fset.Bool("simulate", false, "simulate staging by sleeping for random times instead of staging packages")
		jobs     = fset.Int("jobs", runtime.NumCPU(), "number of packages to stage in parallel")
	)
	fset.Usage = usage(fset, batchHelp)
	fset.Parse(args)

	if err := trace.Enable("batch"); err != nil {
		return err
	}
	v, err := cudadetect.ResolveVariant(*variant)
	if err != nil {
		return err
	}
	c := &batcher.Ctx{
		Log:          log.Default(),
		TenstageRoot: env.TenstageRoot,
		Variant:      v,
	}
	return c.Stage(ctx, *dryRun, *simulate, *jobs)
}
