package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chariot-build/chariot/internal/container"
	"github.com/chariot-build/chariot/internal/log"
	"github.com/chariot-build/chariot/internal/rootfs"
)

var execCmd = &cobra.Command{
	Use:   "exec <shell-string>",
	Short: "Run a shell fragment as bash -c inside the base rootfs, skipping recipe processing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runExecFragment(args[0])
	},
}

// runExecFragment is the shared implementation behind both the
// top-level "--exec" flag and the "exec" subcommand: it runs fragment
// as bash -c inside the base rootfs and skips recipe processing
// entirely, installing the rootfs first if necessary.
func runExecFragment(fragment string) error {
	logger := log.Default()

	c, cfg, err := newCache()
	if err != nil {
		return err
	}

	if !dirExists(c.RootfsDir()) {
		logger.Info("base rootfs not found, installing", "dir", c.RootfsDir())
		if err := rootfs.Install(globalCtx, rootfs.Options{
			BootstrapURL: cfg.RootfsBootstrapURL,
			Dest:         c.RootfsDir(),
			Logger:       logger,
		}); err != nil {
			return err
		}
	}

	cctx := &container.Context{
		RootfsPath: c.RootfsDir(),
		Cwd:        "/",
		Verbose:    true, // --exec is interactive-adjacent; always show output
		Args:       container.ShellArgs(fragment),
	}

	code, err := container.Run(globalCtx, cctx)
	if err != nil {
		return err
	}
	if code != 0 {
		return fmt.Errorf("exec exited %d", code)
	}
	return nil
}
