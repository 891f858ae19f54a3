// Package stage copies prebuilt shared-library artifacts from the cache (or,
// if missing there, from a configured repository) into a build staging
// directory, from which the packaging install step picks them up.
package stage

import (
	"context"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/renameio"
	"github.com/tenstage/tenstage"
	"github.com/tenstage/tenstage/internal/recipe"
	"github.com/tenstage/tenstage/internal/repo"
	"github.com/tenstage/tenstage/internal/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"
)

// totalBytes counts the number of bytes written to the disk for this staging
// operation.
var totalBytes int64

// SharedObjectExt returns the shared-object file extension of the platform
// the artifacts are staged for.
func SharedObjectExt() string {
	if runtime.GOOS == "darwin" {
		return ".dylib"
	}
	return ".so"
}

// Ctx is a staging context, containing configuration and state.
type Ctx struct {
	// Cache is the directory holding prebuilt binary artifacts from a prior
	// build stage.
	Cache string

	// Repos are consulted for artifacts missing from the cache.
	Repos []tenstage.Repo

	// BuildDir is the staging directory, typically build/ within the package
	// source tree.
	BuildDir string

	// Variant is the artifact variant to stage (cpu, cuda118, ...).
	Variant string

	// OSExt overrides the platform shared-object extension in tests.
	OSExt string
}

func (c *Ctx) ext() string {
	if c.OSExt != "" {
		return c.OSExt
	}
	return SharedObjectExt()
}

// glob1 locates the artifact file for pkg in dir, picking the highest revision
// if the recipe version is not fully specified.
func (c *Ctx) glob1(dir, pkg, version string) (string, error) {
	if version != "" {
		full := pkg + "-" + c.Variant + "-" + version + c.ext()
		if st, err := os.Stat(filepath.Join(dir, full)); err == nil && st.Mode().IsRegular() {
			return full, nil
		}
	}
	pattern := filepath.Join(dir, pkg+"-"+c.Variant+"-*"+c.ext())
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return "", err
	}
	var candidates []string
	for _, m := range matches {
		if st, err := os.Stat(m); err != nil || !st.Mode().IsRegular() {
			continue
		}
		candidates = append(candidates, filepath.Base(m))
	}
	if len(candidates) == 0 {
		return "", &errArtifactNotFound{pkg: pkg, variant: c.Variant, pattern: pattern}
	}
	// default to the most recent artifact revision. If staging an older
	// version is desired, that version must be specified explicitly.
	sort.Slice(candidates, func(i, j int) bool {
		return tenstage.RevisionLess(candidates[i], candidates[j])
	})
	return candidates[len(candidates)-1], nil
}

type errArtifactNotFound struct {
	pkg     string
	variant string
	pattern string
}

func (e *errArtifactNotFound) Error() string {
	return "artifact " + e.pkg + " (variant " + e.variant + ") not found (pattern " + e.pattern + ")"
}

// IsNotFound reports whether err indicates a missing artifact.
func IsNotFound(err error) bool {
	var nf *errArtifactNotFound
	return xerrors.As(err, &nf)
}

// fill downloads fn from the first repository that has it into the cache.
func (c *Ctx) fill(ctx context.Context, fn string) error {
	for _, r := range c.Repos {
		rd, err := repo.Reader(ctx, r, "pkg/"+fn)
		if err != nil {
			if repo.IsNotExist(err) {
				continue
			}
			return err
		}
		defer rd.Close()
		if err := os.MkdirAll(c.Cache, 0755); err != nil {
			return err
		}
		f, err := renameio.TempFile("", filepath.Join(c.Cache, fn))
		if err != nil {
			return err
		}
		defer f.Cleanup()
		if _, err := io.Copy(f, rd); err != nil {
			return err
		}
		log.Printf("filled cache with %s from %s", fn, r.Path)
		return f.CloseAtomicallyReplace()
	}
	return &errArtifactNotFound{pkg: fn, variant: c.Variant, pattern: fn}
}

// stage1 copies one artifact into the staging directory under dest (relative
// to BuildDir, extension appended).
func (c *Ctx) stage1(ctx context.Context, art recipe.Artifact, version string) (staged string, _ error) {
	fn, err := c.glob1(c.Cache, art.Name, version)
	if err != nil {
		if !IsNotFound(err) {
			return "", err
		}
		// Not in the cache: try to fill the cache from a repository, using
		// the exact recipe version.
		full := art.Name + "-" + c.Variant + "-" + version + c.ext()
		if err := c.fill(ctx, full); err != nil {
			return "", err
		}
		fn = full
	}

	rel := art.Dest + c.ext()
	dest := filepath.Join(c.BuildDir, rel)
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return "", err
	}
	in, err := os.Open(filepath.Join(c.Cache, fn))
	if err != nil {
		return "", err
	}
	defer in.Close()
	f, err := renameio.TempFile("", dest)
	if err != nil {
		return "", err
	}
	defer f.Cleanup()
	n, err := io.Copy(f, in)
	if err != nil {
		return "", err
	}
	atomic.AddInt64(&totalBytes, n)
	if err := f.Chmod(0755); err != nil {
		return "", err
	}
	if err := f.CloseAtomicallyReplace(); err != nil {
		return "", err
	}
	log.Printf("staged %s as %s", fn, rel)
	return rel, nil
}

// Stage stages all libraries and adapters of the recipe into BuildDir and
// writes the staging manifest for later cleanup.
func (c *Ctx) Stage(ctx context.Context, rcp *recipe.Recipe) (*Manifest, error) {
	atomic.StoreInt64(&totalBytes, 0)
	ev := trace.Event("stage " + rcp.Name)
	defer ev.Done()

	version := rcp.Version
	if idx := strings.LastIndexByte(version, '/'); idx > -1 {
		return nil, xerrors.Errorf("malformed recipe version %q", version)
	}

	adapterDir := filepath.Join(c.BuildDir, "tensoradapter", rcp.Framework)
	if err := os.MkdirAll(adapterDir, 0755); err != nil {
		return nil, err
	}

	arts := make([]recipe.Artifact, 0, len(rcp.Libraries)+len(rcp.Adapters))
	arts = append(arts, rcp.Libraries...)
	arts = append(arts, rcp.Adapters...)

	start := time.Now()
	staged := make([]string, len(arts))
	var eg errgroup.Group
	for i, art := range arts {
		i, art := i, art // copy
		eg.Go(func() error {
			rel, err := c.stage1(ctx, art, version)
			if err != nil {
				return xerrors.Errorf("staging %s: %w", art.Name, err)
			}
			staged[i] = rel
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	m := &Manifest{
		Pkg:     rcp.Name,
		Variant: c.Variant,
		Files:   staged,
	}
	if err := m.Write(c.BuildDir); err != nil {
		return nil, err
	}

	dur := time.Since(start)
	total := atomic.LoadInt64(&totalBytes)
	log.Printf("staged %d artifacts, %.2f MB/s (%v bytes in %v)",
		len(staged), float64(total)/1024/1024/(float64(dur)/float64(time.Second)), total, dur)
	return m, nil
}
