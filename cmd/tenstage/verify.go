package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/tenstage/tenstage/internal/recipe"
	verifier "github.com/tenstage/tenstage/internal/verify"
	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"
)

const verifyHelp = `tenstage verify [-flags] <artifact> [<artifact>...]

Check artifacts against their recorded .meta.textproto metadata: size,
sha256 digest and (for ELF shared objects) the soname. Without metadata,
print what the artifact contains.

Example:
  % tenstage verify ~/tenstage/cache/libdgl-cpu-2.1.0-3.so
`

// metaPath derives the metadata filename from an artifact filename,
// e.g. libdgl-cpu-2.1.0-3.so -> libdgl-cpu-2.1.0-3.meta.textproto.
func metaPath(artifact string) string {
	// Strip only artifact extensions: version dots (e.g. 2.1.0-3)
	// must survive.
	for _, ext := range []string{".so", ".dylib"} {
		if strings.HasSuffix(artifact, ext) {
			return strings.TrimSuffix(artifact, ext) + ".meta.textproto"
		}
	}
	return artifact + ".meta.textproto"
}

func verify1(path string) error {
	meta, err := recipe.ReadMetaFile(metaPath(path))
	if err != nil {
		if !os.IsNotExist(err) {
			return err
		}
		// No metadata: print what we see.
		info, err := verifier.File(path)
		if err != nil {
			return err
		}
		if info.ELF {
			log.Printf("%s: %d bytes, sha256 %s, soname %q, needs %v (no metadata)",
				path, info.Size, info.SHA256, info.SOName, info.Needed)
		} else {
			log.Printf("%s: %d bytes, sha256 %s (no metadata)", path, info.Size, info.SHA256)
		}
		return nil
	}
	if err := verifier.Artifact(path, meta); err != nil {
		return err
	}
	log.Printf("%s: ok", path)
	return nil
}

func verify(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("verify", flag.ExitOnError)
	fset.Usage = usage(fset, verifyHelp)
	fset.Parse(args)
	if fset.NArg() == 0 {
		fmt.Fprint(os.Stderr, verifyHelp)
		return xerrors.Errorf("no artifacts specified")
	}

	var eg errgroup.Group
	for _, path := range fset.Args() {
		path := path // copy
		eg.Go(func() error { return verify1(path) })
	}
	return eg.Wait()
}
