// Package engine implements process_recipe, the recursive build
// orchestration that walks a recipe's dependency closure, stages
// dependency trees, and materialises the recipe inside a container.
package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chariot-build/chariot/internal/cache"
	"github.com/chariot-build/chariot/internal/container"
	"github.com/chariot-build/chariot/internal/errs"
	"github.com/chariot-build/chariot/internal/fsutil"
	"github.com/chariot-build/chariot/internal/log"
	"github.com/chariot-build/chariot/internal/progress"
	"github.com/chariot-build/chariot/internal/recipe"
)

// Engine holds the configuration shared across every recipe processed
// in a single run. It carries no package-level state; construct one
// explicitly in main() and pass it down.
type Engine struct {
	Cache       *cache.Cache
	Logger      log.Logger
	Reporter    progress.Reporter
	ThreadCount int

	// ContainerTimeout, when non-zero, bounds how long any single
	// container invocation may block before it is killed; the recipe
	// then fails with the same error kind as any other non-zero exit
	// of that invocation (StageExec, ChecksumFail or PatchFail).
	// Zero means no bound, matching the upstream behaviour of blocking
	// indefinitely on a runaway recipe.
	ContainerTimeout time.Duration

	// DryRun walks the graph and evaluates the cache gate but skips
	// materialisation entirely.
	DryRun bool

	visiting map[recipe.RecipeRef]bool
}

// New constructs an Engine. logger and reporter default to no-ops if
// nil.
func New(c *cache.Cache, logger log.Logger, reporter progress.Reporter, threadCount int) *Engine {
	if logger == nil {
		logger = log.NewNoop()
	}
	if reporter == nil {
		reporter = progress.Noop()
	}
	if threadCount <= 0 {
		threadCount = 8
	}
	return &Engine{
		Cache:       c,
		Logger:      logger,
		Reporter:    reporter,
		ThreadCount: threadCount,
		visiting:    make(map[recipe.RecipeRef]bool),
	}
}

// ProcessRecipe implements process_recipe(R, verbose): recurse into
// R's source and dependencies first, gate on the cache, stage
// dependencies, clean the recipe directory, materialise, and update
// R's built flag. It returns a *errs.Error on any failure.
func (e *Engine) ProcessRecipe(ctx context.Context, r *recipe.Recipe, verbose bool) error {
	ref := r.Ref()
	if e.visiting[ref] {
		return errs.New(errs.ConfigResolve, ref.String(), fmt.Errorf("dependency cycle through unbuilt recipe %s", ref))
	}
	e.visiting[ref] = true
	defer delete(e.visiting, ref)

	if r.HostTarget.Source != nil && r.HostTarget.Source.Resolved != nil {
		if err := e.ProcessRecipe(ctx, r.HostTarget.Source.Resolved, verbose); err != nil {
			return err
		}
	}
	for _, dep := range r.Dependencies {
		if dep.Resolved == nil {
			return errs.New(errs.ConfigResolve, ref.String(), fmt.Errorf("unresolved dependency %s", dep.Ref()))
		}
		if err := e.ProcessRecipe(ctx, dep.Resolved, verbose); err != nil {
			return err
		}
	}

	dir := e.Cache.RecipeDir(string(r.Namespace), r.Name)
	if r.Status.Built {
		return nil
	}
	if dirExists(dir) && !r.Status.Invalidated {
		return nil
	}

	e.Reporter.Recipe(string(r.Namespace), r.Name)

	if e.DryRun {
		e.Logger.Info("would build", "recipe", ref.String())
		return nil
	}

	if err := e.stageDependencies(r); err != nil {
		return err
	}

	if err := os.RemoveAll(dir); err != nil {
		return errs.New(errs.CacheIO, ref.String(), fmt.Errorf("cleaning recipe dir: %w", err))
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errs.New(errs.CacheIO, ref.String(), fmt.Errorf("creating recipe dir: %w", err))
	}

	var materialiseErr error
	switch r.Namespace {
	case recipe.Source:
		materialiseErr = e.materialiseSource(ctx, r, dir, verbose)
	case recipe.Host, recipe.Target:
		materialiseErr = e.materialiseHostTarget(ctx, r, dir, verbose)
	default:
		materialiseErr = errs.New(errs.ConfigResolve, ref.String(), fmt.Errorf("unknown namespace %q", r.Namespace))
	}

	if materialiseErr != nil {
		os.RemoveAll(dir) // best-effort; the recipe dir is invalid either way
		return materialiseErr
	}

	r.Status.Built = true
	return nil
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// stageDependencies cleans <cache>/deps/{source,host,target} and
// re-populates them from R's dependency closure: every direct
// dependency of R is staged regardless of its runtime flag, but a
// dependency reached transitively (through another dependency) is
// staged only if the edge leading to it was marked runtime.
func (e *Engine) stageDependencies(r *recipe.Recipe) error {
	for _, ns := range []string{"source", "host", "target"} {
		if err := os.RemoveAll(e.Cache.DepsDir(ns)); err != nil {
			return errs.New(errs.CacheIO, r.Ref().String(), fmt.Errorf("cleaning deps/%s: %w", ns, err))
		}
		if err := os.MkdirAll(e.Cache.DepsDir(ns), 0o755); err != nil {
			return errs.New(errs.CacheIO, r.Ref().String(), fmt.Errorf("creating deps/%s: %w", ns, err))
		}
	}

	staged := make(map[recipe.RecipeRef]bool)

	var walk func(deps []*recipe.Dependency, runtimeOnly bool) error
	walk = func(deps []*recipe.Dependency, runtimeOnly bool) error {
		for _, dep := range deps {
			if runtimeOnly && !dep.Runtime {
				continue
			}
			if dep.Resolved == nil {
				continue // already validated by the recursion in ProcessRecipe
			}
			depRef := dep.Resolved.Ref()
			if staged[depRef] {
				continue
			}
			staged[depRef] = true

			if err := e.stageOne(dep.Resolved); err != nil {
				return err
			}
			if err := walk(dep.Resolved.Dependencies, true); err != nil {
				return err
			}
		}
		return nil
	}

	return walk(r.Dependencies, false)
}

func (e *Engine) stageOne(dep *recipe.Recipe) error {
	var src, dst string
	switch dep.Namespace {
	case recipe.Source:
		src = e.Cache.SourceDir(dep.Name)
		dst = filepath.Join(e.Cache.DepsDir("source"), dep.Name)
		return e.mergeInto(src, dst, dep.Ref().String())
	case recipe.Host:
		src = filepath.Join(e.Cache.InstallDir("host", dep.Name), "usr", "local")
		dst = e.Cache.DepsDir("host")
	case recipe.Target:
		src = e.Cache.InstallDir("target", dep.Name)
		dst = e.Cache.DepsDir("target")
	default:
		return errs.New(errs.ConfigResolve, dep.Ref().String(), fmt.Errorf("unknown namespace %q", dep.Namespace))
	}
	return e.mergeInto(src, dst, dep.Ref().String())
}

func (e *Engine) mergeInto(src, dst, recipeName string) error {
	if !dirExists(src) {
		return nil // nothing materialised yet for this dependency path (e.g. no install/usr/local)
	}
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return errs.New(errs.CacheIO, recipeName, err)
	}
	conflicts, err := fsutil.MergeTree(src, dst, fsutil.Skip)
	if err != nil {
		return errs.New(errs.CacheIO, recipeName, fmt.Errorf("staging %s: %w", src, err))
	}
	for _, c := range conflicts {
		e.Logger.Warn("staging conflict, keeping existing file", "recipe", recipeName, "path", c.Path)
	}
	return nil
}

// runContainer is a small indirection point so materialisation code
// can be exercised without a real namespace sandbox; tests reassign
// this package variable directly.
var runContainer = container.Run

// runStage invokes runContainer, bounding it by e.ContainerTimeout when
// set. Every materialisation call site goes through here rather than
// calling runContainer directly, so the timeout applies uniformly to
// fetch/patch/strap/configure/build/install invocations alike.
func (e *Engine) runStage(ctx context.Context, cctx *container.Context) (int, error) {
	if e.ContainerTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.ContainerTimeout)
		defer cancel()
	}
	return runContainer(ctx, cctx)
}
