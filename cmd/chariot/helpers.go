package main

import (
	"errors"

	"github.com/chariot-build/chariot/internal/errs"
)

// isFatalConfigError reports whether err carries an errs.Kind whose
// Fatal() is true (ConfigParse/ConfigResolve), warranting the whole
// process to abort rather than just the current recipe.
func isFatalConfigError(err error) bool {
	var e *errs.Error
	if errors.As(err, &e) {
		return e.Kind.Fatal()
	}
	return false
}

// parseSelector splits a "<namespace>/<name>" CLI positional argument.
func parseSelector(s string) (namespace, name string, ok bool) {
	for i := 0; i < len(s); i++ {
		if s[i] == '/' {
			return s[:i], s[i+1:], true
		}
	}
	return "", "", false
}
