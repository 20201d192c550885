package container

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"

	"golang.org/x/sys/unix"
)

// Marker argv[1] values recognised by Dispatch. Each stage re-execs
// the current binary with the next marker, passing the path of the
// temporary file holding the serialized Context along as argv[2].
const (
	stage1Marker = "__chariot_container_stage1" // unshare user+pid, map ids
	stage2Marker = "__chariot_container_stage2" // unshare mount, bind mounts, chroot
	stage3Marker = "__chariot_container_stage3" // final exec
)

// Dispatch checks whether argv carries one of the internal stage
// markers and, if so, runs that stage and calls os.Exit with its
// result. It must be called at the very top of main, before any
// flag/command parsing, since the markers are not valid cobra
// subcommands. Dispatch never returns when it handles a marker.
func Dispatch(argv []string) {
	if len(argv) >= 2 && argv[1] == probeMarker {
		os.Exit(runProbe())
	}
	if len(argv) < 3 {
		return
	}
	switch argv[1] {
	case stage1Marker:
		os.Exit(runStage1(argv[2]))
	case stage2Marker:
		os.Exit(runStage2(argv[2]))
	case stage3Marker:
		os.Exit(runStage3(argv[2]))
	}
}

// Run executes c.Args inside the sandbox described by c and returns
// the command's exit code. It blocks until the container chain exits
// or ctx is cancelled, in which case the stage1 process is killed.
func Run(ctx context.Context, c *Context) (int, error) {
	path, err := writeContextFile(c)
	if err != nil {
		return -1, fmt.Errorf("serializing container context: %w", err)
	}
	defer os.Remove(path)

	exe, err := os.Executable()
	if err != nil {
		return -1, fmt.Errorf("resolving self path: %w", err)
	}

	cmd := exec.CommandContext(ctx, exe, stage1Marker, path)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return exitErr.ExitCode(), nil
		}
		return -1, fmt.Errorf("running container stage1: %w", err)
	}
	return 0, nil
}

func writeContextFile(ctx *Context) (string, error) {
	f, err := os.CreateTemp("", "chariot-container-*.json")
	if err != nil {
		return "", err
	}
	defer f.Close()
	if err := json.NewEncoder(f).Encode(ctx); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

func readContextFile(path string) (*Context, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var ctx Context
	if err := json.Unmarshal(data, &ctx); err != nil {
		return nil, err
	}
	return &ctx, nil
}

// runStage1 is child_0: unshares the user and PID namespaces, maps
// the target uid/gid onto the real caller's effective ids, drops into
// them, then re-execs into stage2 — which becomes PID 1 of the new
// namespace by virtue of being the first process forked after the
// unshare.
func runStage1(ctxPath string) int {
	ctx, err := readContextFile(ctxPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "chariot: reading container context:", err)
		return 1
	}

	euid := os.Geteuid()
	egid := os.Getegid()

	if err := unix.Unshare(unix.CLONE_NEWUSER | unix.CLONE_NEWPID); err != nil {
		fmt.Fprintln(os.Stderr, "chariot: unshare user+pid namespace:", err)
		return 1
	}

	if err := os.WriteFile("/proc/self/setgroups", []byte("deny"), 0); err != nil {
		fmt.Fprintln(os.Stderr, "chariot: writing setgroups:", err)
		return 1
	}
	if err := os.WriteFile("/proc/self/uid_map", []byte(fmt.Sprintf("%d %d 1", ctx.UID, euid)), 0); err != nil {
		fmt.Fprintln(os.Stderr, "chariot: writing uid_map:", err)
		return 1
	}
	if err := os.WriteFile("/proc/self/gid_map", []byte(fmt.Sprintf("%d %d 1", ctx.GID, egid)), 0); err != nil {
		fmt.Fprintln(os.Stderr, "chariot: writing gid_map:", err)
		return 1
	}

	if err := unix.Setgid(ctx.GID); err != nil {
		fmt.Fprintln(os.Stderr, "chariot: setgid:", err)
		return 1
	}
	if err := unix.Setuid(ctx.UID); err != nil {
		fmt.Fprintln(os.Stderr, "chariot: setuid:", err)
		return 1
	}

	exe, err := os.Executable()
	if err != nil {
		fmt.Fprintln(os.Stderr, "chariot: resolving self path:", err)
		return 1
	}

	cmd := exec.Command(exe, stage2Marker, ctxPath)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return exitErr.ExitCode()
		}
		fmt.Fprintln(os.Stderr, "chariot: running container stage2:", err)
		return 1
	}
	return 0
}

// runStage2 is child_1, PID 1 of the new namespace: unshares the
// mount namespace, assembles the fixed and user mount sets, chroots
// into the rootfs, and forks child_2. The extra fork keeps the final
// command from running as PID 1, which would otherwise inherit
// init-only signal semantics it does not expect.
func runStage2(ctxPath string) int {
	ctx, err := readContextFile(ctxPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "chariot: reading container context:", err)
		return 1
	}

	if err := unix.Unshare(unix.CLONE_NEWNS); err != nil {
		fmt.Fprintln(os.Stderr, "chariot: unshare mount namespace:", err)
		return 1
	}
	if err := unix.Mount("", "/", "", unix.MS_REC|unix.MS_SLAVE, ""); err != nil {
		fmt.Fprintln(os.Stderr, "chariot: marking / rslave:", err)
		return 1
	}
	if err := setupMounts(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "chariot:", err)
		return 1
	}

	if err := unix.Chroot(ctx.RootfsPath); err != nil {
		fmt.Fprintln(os.Stderr, "chariot: chroot:", err)
		return 1
	}
	if err := unix.Chdir(ctx.Cwd); err != nil {
		fmt.Fprintln(os.Stderr, "chariot: chdir:", err)
		return 1
	}

	exe, err := os.Executable()
	if err != nil {
		fmt.Fprintln(os.Stderr, "chariot: resolving self path:", err)
		return 1
	}

	cmd := exec.Command(exe, stage3Marker, ctxPath)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return exitErr.ExitCode()
		}
		fmt.Fprintln(os.Stderr, "chariot: running container stage3:", err)
		return 1
	}
	return 0
}

// runStage3 is child_2: the final process before the target command
// replaces it entirely via execvp. It never returns on success.
func runStage3(ctxPath string) int {
	ctx, err := readContextFile(ctxPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "chariot: reading container context:", err)
		return 1
	}

	if !ctx.Verbose {
		devNull, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0)
		if err != nil {
			fmt.Fprintln(os.Stderr, "chariot: opening /dev/null:", err)
			return 1
		}
		if err := unix.Dup2(int(devNull.Fd()), 1); err != nil {
			fmt.Fprintln(os.Stderr, "chariot: redirecting stdout:", err)
			return 1
		}
		devNull.Close()
	}

	if len(ctx.Args) == 0 {
		fmt.Fprintln(os.Stderr, "chariot: empty command")
		return 1
	}

	argv0, err := exec.LookPath(ctx.Args[0])
	if err != nil {
		argv0 = ctx.Args[0]
	}

	env := ctx.ApplyDefaultEnv()
	envv := make([]string, 0, len(env))
	for k, v := range env {
		envv = append(envv, k+"="+v)
	}

	if err := unix.Exec(argv0, ctx.Args, envv); err != nil {
		fmt.Fprintln(os.Stderr, "chariot: exec:", err)
		return 127
	}
	// unix.Exec only returns on error.
	return 1
}
