package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"runtime/pprof"
	"runtime/trace"

	"github.com/tenstage/tenstage"

	_ "github.com/tenstage/tenstage/internal/oninterrupt"
)

var (
	cpuprofile = flag.String("cpuprofile", "", "path to store a CPU profile at")
	tracefile  = flag.String("tracefile", "", "path to store a trace at")
)

func main() {
	flag.Parse()

	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			log.Fatal(err)
		}
		pprof.StartCPUProfile(f)
		defer pprof.StopCPUProfile()
	}

	if *tracefile != "" {
		f, err := os.Create(*tracefile)
		if err != nil {
			log.Fatal(err)
		}
		trace.Start(f)
		defer trace.Stop()
	}

	type cmd struct {
		helpText string
		fn       func(ctx context.Context, args []string) error
	}
	verbs := map[string]cmd{
		"stage":    {stageHelp, stage},
		"install":  {installHelp, install},
		"clean":    {cleanHelp, clean},
		"verify":   {verifyHelp, verify},
		"bundle":   {bundleHelp, bundle},
		"unbundle": {unbundleHelp, unbundle},
		"batch":    {batchHelp, batch},
		"fetch":    {fetchHelp, fetch},
		"export":   {exportHelp, export},
		"gpu":      {gpuHelp, gpu},
		"sample":   {sampleHelp, sample},
		"env":      {envHelp, printenv},
	}

	args := flag.Args()
	verb := "stage"
	if len(args) > 0 {
		verb, args = args[0], args[1:]
	}

	if verb == "help" {
		if len(args) != 1 {
			fmt.Fprintf(os.Stderr, "syntax: tenstage help <verb>\n")
			fmt.Fprintf(os.Stderr, "\n")
			fmt.Fprintf(os.Stderr, "Verbs:\n")
			fmt.Fprintf(os.Stderr, "\tstage - stage prebuilt artifacts into the build directory\n")
			fmt.Fprintf(os.Stderr, "\tinstall - stage, then run the packaging install steps\n")
			fmt.Fprintf(os.Stderr, "\tclean - remove staged binaries\n")
			fmt.Fprintf(os.Stderr, "\tverify - check artifacts against their metadata\n")
			fmt.Fprintf(os.Stderr, "\tbatch - stage all packages in dependency order\n")
			fmt.Fprintf(os.Stderr, "\tfetch - download artifacts into the cache\n")
			os.Exit(2)
		}
		verb = args[0]
		args = []string{"-help"}
	}
	v, ok := verbs[verb]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n", verb)
		fmt.Fprintf(os.Stderr, "syntax: tenstage <command> [options]\n")
		os.Exit(2)
	}
	ctx, canc := tenstage.InterruptibleContext()
	defer canc()
	if err := v.fn(ctx, args); err != nil {
		fmt.Printf("%s: %+v\n", verb, err)
		os.Exit(1)
	}
	if err := tenstage.RunAtExit(); err != nil {
		fmt.Printf("%s: %+v\n", verb, err)
		os.Exit(1)
	}
}
