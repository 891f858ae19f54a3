// Package install drives the external packaging command (by default
// `${PYTHON} setup.py install`) after artifacts have been staged, and removes
// the staged binaries again afterwards.
package install

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"strings"

	"github.com/tenstage/tenstage"
	"github.com/tenstage/tenstage/internal/env"
	"github.com/tenstage/tenstage/internal/recipe"
	"github.com/tenstage/tenstage/internal/stage"
	"golang.org/x/xerrors"
)

// Ctx is an install context, containing configuration and state.
type Ctx struct {
	// SourceDir is the package source tree containing setup.py.
	SourceDir string

	// BuildDir is the staging directory below SourceDir.
	BuildDir string

	// Variant is recorded in the environment of install steps.
	Variant string

	// Prefix and DestDir are substituted into install steps as
	// ${TENSTAGE_PREFIX} and ${TENSTAGE_DESTDIR}.
	Prefix  string
	DestDir string

	// KeepStaged skips the post-install removal of staged binaries.
	KeepStaged bool

	// DryRun, if non-nil, writes commands instead of executing them.
	DryRun io.Writer
}

// defaultSteps is the packaging command used when the recipe specifies none,
// matching the build scripts this tool replaces.
func defaultSteps() []recipe.Step {
	return []recipe.Step{
		{Argv: []string{"${PYTHON}", "setup.py", "install", "--prefix=${TENSTAGE_PREFIX}", "--root=${TENSTAGE_DESTDIR}"}},
	}
}

func (c *Ctx) substitute(s string) string {
	s = strings.ReplaceAll(s, "${PYTHON}", env.Python())
	s = strings.ReplaceAll(s, "${TENSTAGE_PREFIX}", c.Prefix)
	s = strings.ReplaceAll(s, "${TENSTAGE_DESTDIR}", c.DestDir)
	s = strings.ReplaceAll(s, "${TENSTAGE_BUILDDIR}", c.BuildDir)
	return s
}

func (c *Ctx) substituteStrings(strs []string) []string {
	substituted := make([]string, len(strs))
	for idx, s := range strs {
		substituted[idx] = c.substitute(s)
	}
	return substituted
}

func (c *Ctx) runStep(ctx context.Context, argv []string) error {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = c.SourceDir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = append(os.Environ(),
		"TENSTAGE_VARIANT="+c.Variant,
		"TENSTAGE_BUILDDIR="+c.BuildDir,
	)
	log.Printf("running %v", argv)
	if c.DryRun != nil {
		fmt.Fprintf(c.DryRun, "%v\n", argv)
		return nil
	}
	if err := cmd.Run(); err != nil {
		return xerrors.Errorf("%v: %w", cmd.Args, err)
	}
	return nil
}

// Package runs the recipe's install steps. The staged binaries recorded in the
// staging manifest are removed via a RegisterAtExit hook, i.e. only after the
// whole operation (including any sibling installs) succeeded.
func (c *Ctx) Package(ctx context.Context, rcp *recipe.Recipe) error {
	steps := rcp.InstallSteps
	if len(steps) == 0 {
		steps = defaultSteps()
	}
	for _, step := range steps {
		if len(step.Argv) == 0 {
			return xerrors.Errorf("empty install step in recipe %s", rcp.Name)
		}
		if err := c.runStep(ctx, c.substituteStrings(step.Argv)); err != nil {
			return err
		}
	}

	if c.KeepStaged {
		return nil
	}
	buildDir := c.BuildDir
	tenstage.RegisterAtExit(func() error {
		log.Printf("removing staged binaries from %s", buildDir)
		if c.DryRun != nil {
			fmt.Fprintf(c.DryRun, "clean %s\n", buildDir)
			return nil
		}
		return stage.Clean(buildDir)
	})
	return nil
}
