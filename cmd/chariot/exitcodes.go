package main

import "os"

// Exit codes let CI scripts distinguish failure modes without
// scraping stderr text.
const (
	ExitSuccess = 0
	// ExitGeneral covers uncategorised errors.
	ExitGeneral = 1
	// ExitUsage indicates invalid flags or arguments.
	ExitUsage = 2
	// ExitConfigError indicates a fatal configuration error: a
	// ConfigParse or ConfigResolve kind from internal/errs. The process
	// aborts entirely rather than continuing to the next recipe.
	ExitConfigError = 3
	// ExitBuildFailed indicates one or more recipes in the force list
	// failed to materialise.
	ExitBuildFailed = 4
	// ExitCancelled indicates the run was interrupted by SIGINT/SIGTERM.
	ExitCancelled = 130
)

func exitWithCode(code int) {
	os.Exit(code)
}
