// Package errs defines the orchestrator's error taxonomy as typed,
// wrapped values matched with errors.Is/errors.As rather than string
// comparison. Kind identifies the disposition (fatal vs. recipe-abort)
// a caller should give the error; the underlying cause is always
// preserved via Unwrap.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an error by its place in the taxonomy.
type Kind string

const (
	ConfigParse      Kind = "config_parse"
	ConfigResolve    Kind = "config_resolve"
	CacheIO          Kind = "cache_io"
	FetchFail        Kind = "fetch_fail"
	ChecksumFail     Kind = "checksum_fail"
	ExtractFail      Kind = "extract_fail"
	PatchMissing     Kind = "patch_missing"
	PatchFail        Kind = "patch_fail"
	StageExec        Kind = "stage_exec"
	ContainerSyscall Kind = "container_syscall"
	UnknownEmbed     Kind = "unknown_embed"
)

// Fatal reports whether errors of this kind should abort the entire
// process rather than just the recipe currently being materialised.
func (k Kind) Fatal() bool {
	switch k {
	case ConfigParse, ConfigResolve:
		return true
	default:
		return false
	}
}

// Error is a taxonomy-tagged error, optionally annotated with the
// recipe (as "namespace/name") it was raised while processing.
type Error struct {
	Kind   Kind
	Recipe string
	Err    error
}

// New wraps err with the given kind and optional recipe annotation.
// recipe may be empty for errors raised before any recipe is selected
// (e.g. config parsing).
func New(kind Kind, recipe string, err error) *Error {
	return &Error{Kind: kind, Recipe: recipe, Err: err}
}

func (e *Error) Error() string {
	if e.Recipe == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Recipe, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether err is (or wraps) an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
