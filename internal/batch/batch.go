// Package batch stages all packages underneath pkgs/ in dependency order,
// with a bounded number of parallel workers.
package batch

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/tenstage/tenstage/internal/recipe"
	"github.com/tenstage/tenstage/internal/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

type node struct {
	id int64

	pkg      string // e.g. dgl
	fullname string // package and version, e.g. dgl-2.1.0-3
}

func (n *node) ID() int64 { return n.id }

// Ctx is a batch staging context, containing configuration and state.
type Ctx struct {
	// Configuration
	Log          *log.Logger
	TenstageRoot string
	Variant      string
}

// Stage stages all packages with pkgs/<pkg>/stage.textproto recipes. Recipes
// whose runtime deps name other recipes are staged after those.
func (c *Ctx) Stage(ctx context.Context, dryRun, simulate bool, jobs int) error {
	c.Log.Printf("tenstage root %q", c.TenstageRoot)

	g := simple.NewDirectedGraph()

	pkgsDir := filepath.Join(c.TenstageRoot, "pkgs")
	fis, err := os.ReadDir(pkgsDir)
	if err != nil {
		return err
	}

	byFullname := make(map[string]*node) // e.g. dgl-2.1.0-3
	byPkg := make(map[string]*node)      // e.g. dgl
	recipes := make(map[string]*recipe.Recipe)

	for idx, fi := range fis {
		pkg := fi.Name()
		rcp, err := recipe.ReadFile(filepath.Join(pkgsDir, pkg, "stage.textproto"))
		if err != nil {
			if os.IsNotExist(err) {
				continue // not a recipe directory
			}
			return err
		}
		n := &node{
			id:       int64(idx),
			pkg:      pkg,
			fullname: pkg + "-" + rcp.Version,
		}
		byPkg[n.pkg] = n
		byFullname[n.fullname] = n
		recipes[pkg] = rcp
		g.AddNode(n)
	}

	// add all constraints: <pkg>-<version> depends on <pkg>-<version>
	for _, n := range byFullname {
		rcp := recipes[n.pkg]
		for _, dep := range rcp.RuntimeDeps {
			if dep == n.pkg || dep == n.fullname {
				continue // skip adding self edges
			}
			if d, ok := byFullname[dep]; ok {
				g.SetEdge(g.NewEdge(n, d))
			}
			if d, ok := byPkg[dep]; ok {
				g.SetEdge(g.NewEdge(n, d))
			}
			// otherwise the dep is an external library, nothing to stage
		}
	}

	// Break cycles: clear the outgoing edges of every node within a cyclic
	// component, then verify a topological order exists.
	if _, err := topo.Sort(g); err != nil {
		uo, ok := err.(topo.Unorderable)
		if !ok {
			return err
		}
		for _, component := range uo { // cyclic component
			for _, n := range component {
				c.Log.Printf("  breaking cycle at %v", n.(*node).pkg)
				from := g.From(n.ID())
				for from.Next() {
					g.RemoveEdge(n.ID(), from.Node().ID())
				}
			}
		}
		if _, err := topo.Sort(g); err != nil {
			return xerrors.Errorf("could not break cycles: %v", err)
		}
	}

	if dryRun {
		if g.Nodes() == nil {
			c.Log.Printf("stage 0 pkg")
			return nil
		}
		c.Log.Printf("stage %d pkg", g.Nodes().Len())
		for it := g.Nodes(); it.Next(); {
			c.Log.Printf("  stage %s", it.Node().(*node).pkg)
		}
		return nil
	}

	logDir, err := os.MkdirTemp("", "tenstage-batch")
	if err != nil {
		return err
	}
	s := scheduler{
		tenstageRoot: c.TenstageRoot,
		variant:      c.Variant,
		log:          c.Log,
		logDir:       logDir,
		simulate:     simulate,
		workers:      jobs,
		g:            g,
		byFullname:   byFullname,
		staged:       make(map[string]error),
		status:       make([]string, jobs+1),
	}
	return s.run(ctx)
}

type stageResult struct {
	node *node
	err  error
}

type scheduler struct {
	tenstageRoot string
	variant      string
	log          *log.Logger
	logDir       string
	simulate     bool
	workers      int
	g            graph.Directed
	byFullname   map[string]*node
	staged       map[string]error

	statusMu   sync.Mutex
	status     []string
	lastStatus time.Time
}

var isTerminal = isatty.IsTerminal(os.Stdout.Fd())

func (s *scheduler) refreshStatus() {
	if !isTerminal {
		return
	}
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	s.lastStatus = time.Now()
	var maxLen int
	for _, line := range s.status {
		if len(line) > maxLen {
			maxLen = len(line)
		}
	}
	for _, line := range s.status {
		if len(line) < maxLen {
			// overwrite stale characters with whitespace,
			// in every line to clear artifacts
			line += strings.Repeat(" ", maxLen-len(line))
		}
		fmt.Println(line)
	}
	fmt.Printf("\033[%dA", len(s.status)) // restore cursor position
}

func (s *scheduler) updateStatus(idx int, newStatus string) {
	if !isTerminal {
		return
	}
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	if diff := len(s.status[idx]) - len(newStatus); diff > 0 {
		newStatus += strings.Repeat(" ", diff) // overwrite stale characters with whitespace
	}
	s.status[idx] = newStatus
	if time.Since(s.lastStatus) < 100*time.Millisecond {
		// printing status too frequently slows down the program
		return
	}
	s.lastStatus = time.Now()
	for _, line := range s.status {
		fmt.Println(line)
	}
	fmt.Printf("\033[%dA", len(s.status)) // restore cursor position
}

func (s *scheduler) stageDry(ctx context.Context, pkg string) bool {
	dur := 10*time.Millisecond + time.Duration(rand.Int63n(int64(100*time.Millisecond)))
	select {
	case <-ctx.Done():
		return false
	case <-time.After(dur):
	}
	return !strings.HasPrefix(pkg, "broken")
}

func (s *scheduler) stage(ctx context.Context, pkg string) error {
	logFile, err := os.Create(filepath.Join(s.logDir, pkg+".log"))
	if err != nil {
		return err
	}
	defer logFile.Close()
	stage := exec.CommandContext(ctx, "tenstage", "stage", "-variant="+s.variant)
	stage.Dir = filepath.Join(s.tenstageRoot, "pkgs", pkg)
	stage.Stdout = logFile
	stage.Stderr = logFile
	if err := stage.Run(); err != nil {
		return xerrors.Errorf("%v: %v", stage.Args, err)
	}
	return nil
}

func (s *scheduler) run(ctx context.Context) error {
	numNodes := s.g.Nodes().Len()
	work := make(chan *node, numNodes)
	done := make(chan stageResult)
	eg, ctx := errgroup.WithContext(ctx)

	for i := 0; i < s.workers; i++ {
		i := i // copy
		eg.Go(func() error {
			ticker := time.NewTicker(100 * time.Millisecond)
			defer ticker.Stop()
			for n := range work {
				if err := ctx.Err(); err != nil {
					return err
				}
				ev := trace.Event("stage " + n.pkg)
				ev.Tid = uint64(i)
				s.updateStatus(i+1, "staging "+n.pkg)
				start := time.Now()
				result := make(chan error)
				if s.simulate {
					go func() {
						if !s.stageDry(ctx, n.pkg) {
							result <- xerrors.Errorf("simulate intentionally failed")
						} else {
							result <- nil
						}
					}()
				} else {
					go func() {
						result <- s.stage(ctx, n.pkg)
					}()
				}

				// Wait for the staging to complete while updating status
				var err error
			Stage:
				for {
					select {
					case err = <-result:
						break Stage
					case <-ticker.C:
						s.updateStatus(i+1, fmt.Sprintf("staging %s since %v", n.pkg, time.Since(start)))
					}
				}

				select {
				case done <- stageResult{node: n, err: err}:
				case <-ctx.Done():
					return ctx.Err()
				}
				ev.Done()
				s.updateStatus(i+1, "idle")
			}
			return nil
		})
	}

	// Enqueue all packages which have no dependencies to get started:
	for nodes := s.g.Nodes(); nodes.Next(); {
		n := nodes.Node()
		if s.g.From(n.ID()).Len() == 0 {
			select {
			case work <- n.(*node):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	go func() {
		defer close(work)
		succeeded := 0
		failed := 0
		for len(s.staged) < numNodes { // scheduler tick
			select {
			case result := <-done:
				n := s.byFullname[result.node.fullname]
				s.staged[result.node.fullname] = result.err
				s.updateStatus(0, fmt.Sprintf("%d of %d packages: %d staged, %d failed", len(s.staged), numNodes, succeeded, failed))

				if result.err == nil {
					succeeded++
					for to := s.g.To(n.ID()); to.Next(); {
						if candidate := to.Node(); s.canStage(candidate) {
							work <- candidate.(*node)
						}
					}
				} else {
					s.log.Printf("staging of %s failed (%v), see %s", result.node.pkg, result.err, filepath.Join(s.logDir, result.node.pkg+".log"))
					s.refreshStatus()
					failed += 1 + s.markFailed(n)
				}

			case <-ctx.Done():
				return
			}
		}
	}()
	if err := eg.Wait(); err != nil {
		return err
	}
	succeeded := 0
	for _, result := range s.staged {
		if result == nil {
			succeeded++
		}
	}

	s.log.Printf("%d packages staged, %d failed, %d total", succeeded, len(s.staged)-succeeded, len(s.staged))
	if succeeded < len(s.staged) {
		return xerrors.Errorf("%d packages failed", len(s.staged)-succeeded)
	}
	return nil
}

func (s *scheduler) markFailed(n graph.Node) int {
	failed := 0
	for to := s.g.To(n.ID()); to.Next(); {
		d := to.Node()
		name := d.(*node).fullname
		if err, ok := s.staged[name]; ok && err == nil {
			s.log.Fatalf("BUG: %s already staged, but dependencies cannot be fulfilled", name)
		}
		if _, ok := s.staged[name]; !ok {
			s.staged[d.(*node).fullname] = xerrors.Errorf("dependencies cannot be fulfilled")
			failed++
		}
		failed += s.markFailed(d)
	}
	return failed
}

// canStage returns whether all dependencies of candidate are staged.
func (s *scheduler) canStage(candidate graph.Node) bool {
	for from := s.g.From(candidate.ID()); from.Next(); {
		name := from.Node().(*node).fullname
		if err, ok := s.staged[name]; !ok || err != nil {
			return false
		}
	}
	return true
}
