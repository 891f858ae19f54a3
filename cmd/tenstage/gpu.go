package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/tenstage/tenstage/internal/cudadetect"
)

const gpuHelp = `tenstage gpu [-flags]

Probe the CUDA driver and print the result, including which artifact
variant the detected driver can load.

Example:
  % tenstage gpu
  % tenstage stage -variant=$(tenstage gpu -variant)
`

func gpu(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("gpu", flag.ExitOnError)
	var (
		variantOnly = fset.Bool("variant", false, "print only the resolved variant (cpu if no usable driver)")
	)
	fset.Usage = usage(fset, gpuHelp)
	fset.Parse(args)

	rep := cudadetect.Probe()
	if *variantOnly {
		if rep.Variant == "" {
			fmt.Println("cpu")
		} else {
			fmt.Println(rep.Variant)
		}
		return nil
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(&rep)
}
