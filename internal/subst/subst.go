// Package subst implements the @(name) variable substitution used
// inside shell fragments embedded in a recipe.
package subst

import (
	"fmt"
	"strings"

	"github.com/chariot-build/chariot/internal/errs"
)

// Substitute replaces every @(name) occurrence in s with vars[name].
// An '@' not followed by '(' is left untouched. "@()" (an empty name)
// is also left untouched, verbatim. A name absent from vars is a fatal
// UnknownEmbed error. Substitution is non-recursive: text produced by
// a replacement is never re-scanned for further @(...) occurrences.
func Substitute(s string, vars map[string]string) (string, error) {
	var b strings.Builder
	i := 0
	for i < len(s) {
		at := strings.IndexByte(s[i:], '@')
		if at == -1 {
			b.WriteString(s[i:])
			break
		}
		b.WriteString(s[i : i+at])
		i += at

		if i+1 >= len(s) || s[i+1] != '(' {
			b.WriteByte('@')
			i++
			continue
		}

		close := strings.IndexByte(s[i+2:], ')')
		if close == -1 {
			// No matching close paren at all; treat the '@' as literal
			// and keep scanning from just past it.
			b.WriteByte('@')
			i++
			continue
		}

		name := s[i+2 : i+2+close]
		if name == "" {
			b.WriteString("@()")
			i = i + 2 + close + 1
			continue
		}

		value, ok := vars[name]
		if !ok {
			return "", errs.New(errs.UnknownEmbed, "", fmt.Errorf("unknown embed %q", name))
		}
		b.WriteString(value)
		i = i + 2 + close + 1
	}
	return b.String(), nil
}
