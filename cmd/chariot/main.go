package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/chariot-build/chariot/internal/buildinfo"
	"github.com/chariot-build/chariot/internal/cache"
	"github.com/chariot-build/chariot/internal/config"
	"github.com/chariot-build/chariot/internal/container"
	"github.com/chariot-build/chariot/internal/log"
)

var (
	quietFlag   bool
	verboseFlag bool
	debugFlag   bool
	execFlag    string
)

// globalCtx is canceled on SIGINT/SIGTERM; commands thread it through
// to the engine and container layer instead of reading it from a
// package-level default.
var globalCtx context.Context
var globalCancel context.CancelFunc

var rootCmd = &cobra.Command{
	Use:   "chariot [namespace/name ...]",
	Short: "A cross-compilation bootstrap orchestrator",
	Long: `chariot builds a chain of host tools and target artefacts from
declarative recipes, executing every build step inside a disposable,
unprivileged Linux namespace sandboxed against a pinned base rootfs.

Invoked with no subcommand, chariot behaves as "chariot build": any
positional "<namespace>/<name>" selectors are processed as the force-
list. With --exec, it instead runs the given shell fragment as
"bash -c" inside the base rootfs and skips recipe processing entirely.`,
	Args: cobra.ArbitraryArgs,
	RunE: runRoot,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "show errors only")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "do not redirect container stdout to /dev/null")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "show debug output (includes timestamps and source locations)")

	rootCmd.Flags().StringVar(&configPath, "config", "./config.chariot", "configuration file path")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "walk the graph and print what would build without materialising anything")
	rootCmd.Flags().StringVar(&execFlag, "exec", "", "run a shell fragment as bash -c inside the base rootfs, skipping recipe processing")

	rootCmd.PersistentPreRun = initLogger
	rootCmd.Version = buildinfo.Version()

	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(execCmd)
	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(completionCmd)
}

// runRoot implements the top-level, no-subcommand CLI surface: --exec
// skips recipe processing entirely, otherwise any positional selectors
// (or their absence) are forwarded to runBuild exactly as "chariot
// build ..." would handle them.
func runRoot(cmd *cobra.Command, args []string) error {
	if execFlag != "" {
		return runExecFragment(execFlag)
	}
	return runBuild(cmd, args)
}

func main() {
	// container.Dispatch intercepts the hidden self-re-exec stage
	// markers before cobra ever sees argv; it never returns when it
	// handles one.
	container.Dispatch(os.Args)

	globalCtx, globalCancel = context.WithCancel(context.Background())
	defer globalCancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		fmt.Fprintf(os.Stderr, "\nreceived %s, canceling...\n", sig)
		globalCancel()
		<-sigChan
		fmt.Fprintln(os.Stderr, "forced exit")
		exitWithCode(ExitCancelled)
	}()

	if err := rootCmd.Execute(); err != nil {
		if globalCtx.Err() == context.Canceled {
			exitWithCode(ExitCancelled)
		}
		fmt.Fprintln(os.Stderr, err)
		exitWithCode(exitCodeFor(err))
	}
}

// initLogger wires the global logger from verbosity flags before any
// command runs.
func initLogger(cmd *cobra.Command, args []string) {
	level := determineLogLevel()
	handler := log.NewCLIHandler(level)
	log.SetDefault(log.New(handler))

	if level == slog.LevelDebug {
		fmt.Fprintln(os.Stderr, "[debug mode] output may contain file paths and recipe shell fragments")
	}
}

func determineLogLevel() slog.Level {
	switch {
	case debugFlag:
		return slog.LevelDebug
	case verboseFlag:
		return slog.LevelInfo
	case quietFlag:
		return slog.LevelError
	}

	switch {
	case isTruthy(os.Getenv("CHARIOT_DEBUG")):
		return slog.LevelDebug
	case isTruthy(os.Getenv("CHARIOT_VERBOSE")):
		return slog.LevelInfo
	case isTruthy(os.Getenv("CHARIOT_QUIET")):
		return slog.LevelError
	}
	return slog.LevelWarn
}

func isTruthy(s string) bool {
	s = strings.ToLower(s)
	return s == "1" || s == "true" || s == "yes" || s == "on"
}

// newCache resolves config.DefaultConfig into a *cache.Cache,
// producing the single shared handle every command threads through
// explicitly rather than reaching for a package-level singleton.
func newCache() (*cache.Cache, *config.Config, error) {
	cfg, err := config.DefaultConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	return cache.New(cfg.CacheDir), cfg, nil
}

// exitCodeFor maps a returned error to a process exit code. Fatal
// configuration errors (ConfigParse/ConfigResolve) exit distinctly
// from a recipe materialisation failure.
func exitCodeFor(err error) int {
	if isFatalConfigError(err) {
		return ExitConfigError
	}
	return ExitBuildFailed
}
