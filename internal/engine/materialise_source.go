package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/chariot-build/chariot/internal/container"
	"github.com/chariot-build/chariot/internal/errs"
	"github.com/chariot-build/chariot/internal/fsutil"
	"github.com/chariot-build/chariot/internal/recipe"
	"github.com/chariot-build/chariot/internal/subst"
)

// materialiseSource implements 4.3.1: fetch or copy, verify, extract,
// patch, and strap a source recipe into dir/src.
func (e *Engine) materialiseSource(ctx context.Context, r *recipe.Recipe, dir string, verbose bool) error {
	ref := r.Ref()
	srcDir := filepath.Join(dir, "src")
	if err := os.MkdirAll(srcDir, 0o755); err != nil {
		return errs.New(errs.CacheIO, ref.String(), err)
	}

	switch r.Source.Type {
	case "local":
		if _, err := os.Stat(r.Source.URL); err != nil {
			return errs.New(errs.FetchFail, ref.String(), fmt.Errorf("local source %q: %w", r.Source.URL, err))
		}
		if err := fsutil.CopyTree(r.Source.URL, srcDir); err != nil {
			return errs.New(errs.FetchFail, ref.String(), err)
		}
	case "tar.gz", "tar.xz":
		if err := e.fetchAndExtractArchive(ctx, r, dir, verbose); err != nil {
			return err
		}
	default:
		return errs.New(errs.ConfigResolve, ref.String(), fmt.Errorf("unknown source type %q", r.Source.Type))
	}

	if r.Source.Patch != "" {
		if err := e.applyPatch(ctx, r, dir, verbose); err != nil {
			return err
		}
	}

	if r.Source.Strap != "" {
		if err := e.runStrap(ctx, r, dir, verbose); err != nil {
			return err
		}
	}

	return nil
}

// fetchAndExtractArchive runs the b2sums-write, wget, b2sum --check,
// tar extraction sequence entirely inside one container invocation
// rooted at /chariot/source.
func (e *Engine) fetchAndExtractArchive(ctx context.Context, r *recipe.Recipe, dir string, verbose bool) error {
	ref := r.Ref()

	sumsPath := e.Cache.B2SumsPath(r.Name)
	if !fileExists(sumsPath) {
		line := r.Source.B2Sum + " /chariot/source/archive\n"
		if err := os.WriteFile(sumsPath, []byte(line), 0o644); err != nil {
			return errs.New(errs.CacheIO, ref.String(), err)
		}
	}

	archivePath := e.Cache.ArchivePath(r.Name)
	var script string
	if !fileExists(archivePath) {
		script += "wget -qO /chariot/source/archive " + shellQuote(r.Source.URL) + " && "
	}
	script += "b2sum --check /chariot/source/b2sums.txt"

	format := "--gzip"
	if r.Source.Type == "tar.xz" {
		// Preserved verbatim: tar.xz sources are decoded with --zstd,
		// not --xz. Do not "fix" this without a config version bump.
		format = "--zstd"
	}
	script += fmt.Sprintf(" && tar --no-same-owner --no-same-permissions --strip-components 1 -x %s -C /chariot/source/src -f /chariot/source/archive", format)

	cctx := &container.Context{
		RootfsPath: e.Cache.RootfsDir(),
		Cwd:        "/chariot/source",
		UID:        0,
		GID:        0,
		Verbose:    verbose,
		Mounts: []container.Mount{
			{Src: dir, Dest: "/chariot/source"},
		},
		Args: container.ShellArgs(script),
	}
	code, err := e.runStage(ctx, cctx)
	if err != nil {
		return errs.New(errs.FetchFail, ref.String(), err)
	}
	if code != 0 {
		return errs.New(errs.ChecksumFail, ref.String(), fmt.Errorf("fetch/verify/extract exited %d", code))
	}

	// b2sum --check having succeeded inside the container verifies
	// archivePath on the host, since dir is bind-mounted at
	// /chariot/source; nothing further to copy back.
	return nil
}

func (e *Engine) applyPatch(ctx context.Context, r *recipe.Recipe, dir string, verbose bool) error {
	ref := r.Ref()
	patchPath := e.Cache.PatchPath(r.Source.Patch)
	if !fileExists(patchPath) {
		return errs.New(errs.PatchMissing, ref.String(), fmt.Errorf("patch %q not found in %s", r.Source.Patch, e.Cache.PatchesDir()))
	}

	cctx := &container.Context{
		RootfsPath: e.Cache.RootfsDir(),
		Cwd:        "/chariot/source",
		Verbose:    verbose,
		Mounts: []container.Mount{
			{Src: dir, Dest: "/chariot/source"},
			{Src: e.Cache.PatchesDir(), Dest: "/chariot/patches"},
		},
		Args: container.ShellArgs(fmt.Sprintf("cd /chariot/source/src && patch -p1 -i %s", shellQuote("/chariot/patches/"+r.Source.Patch))),
	}
	code, err := e.runStage(ctx, cctx)
	if err != nil {
		return errs.New(errs.PatchFail, ref.String(), err)
	}
	if code != 0 {
		return errs.New(errs.PatchFail, ref.String(), fmt.Errorf("patch exited %d", code))
	}
	return nil
}

func (e *Engine) runStrap(ctx context.Context, r *recipe.Recipe, dir string, verbose bool) error {
	ref := r.Ref()
	fragment, err := subst.Substitute(r.Source.Strap, map[string]string{
		"sources_dir": "/chariot/sources",
	})
	if err != nil {
		return errs.New(errs.UnknownEmbed, ref.String(), err)
	}

	cctx := &container.Context{
		RootfsPath: e.Cache.RootfsDir(),
		Cwd:        "/chariot/source/src",
		Verbose:    verbose,
		Mounts: []container.Mount{
			{Src: dir, Dest: "/chariot/source"},
			{Src: e.Cache.DepsDir("source"), Dest: "/chariot/sources"},
			{Src: e.Cache.DepsDir("host"), Dest: "/usr/local"},
			{Src: e.Cache.DepsDir("target"), Dest: "/chariot/sysroot"},
		},
		Args: container.ShellArgs(fragment),
	}
	code, err := e.runStage(ctx, cctx)
	if err != nil {
		return errs.New(errs.StageExec, ref.String(), err)
	}
	if code != 0 {
		return errs.New(errs.StageExec, ref.String(), fmt.Errorf("strap exited %d", code))
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// shellQuote wraps s in single quotes for embedding into a bash -c
// fragment, escaping any single quote it contains.
func shellQuote(s string) string {
	out := "'"
	for _, r := range s {
		if r == '\'' {
			out += `'\''`
		} else {
			out += string(r)
		}
	}
	return out + "'"
}
