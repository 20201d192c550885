package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/chariot-build/chariot/internal/container"
	"github.com/chariot-build/chariot/internal/errs"
	"github.com/chariot-build/chariot/internal/recipe"
	"github.com/chariot-build/chariot/internal/subst"
)

// materialiseHostTarget implements 4.3.2: build dir/build and
// dir/install inside a container with the fixed mount set, running
// configure, build, and install in sequence.
func (e *Engine) materialiseHostTarget(ctx context.Context, r *recipe.Recipe, dir string, verbose bool) error {
	ref := r.Ref()

	prefix := "/usr/local"
	if r.Namespace == recipe.Target {
		prefix = "/usr"
	}

	buildDir := filepath.Join(dir, "build")
	installDir := filepath.Join(dir, "install")
	if err := os.MkdirAll(buildDir, 0o755); err != nil {
		return errs.New(errs.CacheIO, ref.String(), err)
	}
	if err := os.MkdirAll(installDir, 0o755); err != nil {
		return errs.New(errs.CacheIO, ref.String(), err)
	}

	mounts := []container.Mount{
		{Src: e.Cache.DepsDir("source"), Dest: "/chariot/sources"},
		{Src: e.Cache.DepsDir("host"), Dest: "/usr/local"},
		{Src: e.Cache.DepsDir("target"), Dest: "/chariot/sysroot"},
		{Src: buildDir, Dest: "/chariot/build"},
		{Src: installDir, Dest: "/chariot/install"},
	}
	if r.HostTarget.Source != nil && r.HostTarget.Source.Resolved != nil {
		mounts = append(mounts, container.Mount{
			Src:  e.Cache.SourceDir(r.HostTarget.Source.Resolved.Name),
			Dest: "/chariot/source",
		})
	}

	baseVars := map[string]string{
		"prefix":      prefix,
		"sysroot_dir": "/chariot/sysroot",
		"sources_dir": "/chariot/sources",
	}

	stages := []struct {
		name     string
		fragment string
		vars     map[string]string
	}{
		{"configure", r.HostTarget.Configure, withSourceDir(baseVars, r)},
		{"build", r.HostTarget.Build, withThreadCount(baseVars, e.ThreadCount)},
		{"install", r.HostTarget.Install, withInstallDir(baseVars)},
	}

	for _, stage := range stages {
		if stage.fragment == "" {
			continue
		}
		fragment, err := subst.Substitute(stage.fragment, stage.vars)
		if err != nil {
			return errs.New(errs.UnknownEmbed, ref.String(), err)
		}

		cctx := &container.Context{
			RootfsPath: e.Cache.RootfsDir(),
			Cwd:        "/chariot/build",
			Verbose:    verbose,
			Mounts:     mounts,
			Args:       container.ShellArgs(fragment),
		}
		code, err := e.runStage(ctx, cctx)
		if err != nil {
			return errs.New(errs.StageExec, ref.String(), fmt.Errorf("%s: %w", stage.name, err))
		}
		if code != 0 {
			return errs.New(errs.StageExec, ref.String(), fmt.Errorf("%s exited %d", stage.name, code))
		}
	}

	return nil
}

func withSourceDir(base map[string]string, r *recipe.Recipe) map[string]string {
	vars := cloneVars(base)
	if r.HostTarget.Source != nil && r.HostTarget.Source.Resolved != nil {
		vars["source_dir"] = "/chariot/source"
	}
	return vars
}

func withThreadCount(base map[string]string, threadCount int) map[string]string {
	vars := cloneVars(base)
	vars["thread_count"] = fmt.Sprintf("%d", threadCount)
	return vars
}

func withInstallDir(base map[string]string) map[string]string {
	vars := cloneVars(base)
	vars["install_dir"] = "/chariot/install"
	return vars
}

func cloneVars(src map[string]string) map[string]string {
	dst := make(map[string]string, len(src)+1)
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
