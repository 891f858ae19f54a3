package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/tenstage/tenstage/internal/env"
)

const envHelp = `tenstage env

Print the tenstage environment.
`

func printenv(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("env", flag.ExitOnError)
	fset.Usage = usage(fset, envHelp)
	fset.Parse(args)
	fmt.Printf("TENSTAGE_ROOT=%q\n", env.TenstageRoot)
	fmt.Printf("CACHEDIR=%q\n", env.DefaultCache)
	fmt.Printf("REPO=%q\n", env.DefaultRepoRoot)
	fmt.Printf("PYTHON=%q\n", env.Python())
	return nil
}
