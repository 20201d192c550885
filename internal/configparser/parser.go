// Package configparser tokenises and parses chariot's recipe
// configuration language into a resolved *recipe.Graph.
//
// The grammar is whitespace-insensitive except where noted, and two
// of its quirks are preserved verbatim rather than "fixed": a block
// (the body of strap/configure/build/install) terminates at the first
// unescaped '}', not a balanced one, so a shell fragment containing a
// literal '}' will truncate; and an unrecognised field keyword inside
// a recipe body only recovers if a '}' immediately follows it — any
// other token at that point is a fatal syntax error. Both behaviours
// are load-bearing for existing configurations and must not change
// without a config version bump.
package configparser

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/chariot-build/chariot/internal/errs"
	"github.com/chariot-build/chariot/internal/recipe"
)

// ParseError carries a precise line number for CLI-facing
// "<file>:<line>: <message>" formatting.
type ParseError struct {
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%d: %s", e.Line, e.Msg)
}

var sourceFieldKeywords = map[string]bool{
	"url": true, "type": true, "patch": true, "b2sum": true,
	"dependencies": true, "strap": true,
}

var hostTargetFieldKeywords = map[string]bool{
	"source": true, "configure": true, "build": true, "install": true,
	"dependencies": true,
}

// ParseFile reads path and parses it into a fully resolved graph.
func ParseFile(path string) (*recipe.Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.New(errs.ConfigParse, "", fmt.Errorf("reading %s: %w", path, err))
	}
	g, err := Parse(string(data))
	if err != nil {
		var pe *ParseError
		if errors.As(err, &pe) {
			return nil, errs.New(errs.ConfigParse, "", fmt.Errorf("%s:%w", path, pe))
		}
		return nil, err
	}
	return g, nil
}

// Parse parses src into a fully resolved graph.
func Parse(src string) (*recipe.Graph, error) {
	p := &parser{src: src, line: 1}
	g := recipe.NewGraph()

	for {
		p.skipWhitespaceAndComments()
		if p.eof() {
			break
		}

		r, err := p.parseRecipe()
		if err != nil {
			return nil, errs.New(errs.ConfigParse, "", err)
		}
		if err := g.Add(r); err != nil {
			return nil, err
		}
	}

	if err := g.Resolve(); err != nil {
		return nil, err
	}
	return g, nil
}

type parser struct {
	src  string
	pos  int
	line int
}

func (p *parser) eof() bool { return p.pos >= len(p.src) }

func (p *parser) peek() byte {
	if p.eof() {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) advance() byte {
	c := p.src[p.pos]
	p.pos++
	if c == '\n' {
		p.line++
	}
	return c
}

func (p *parser) errorf(format string, args ...any) error {
	return &ParseError{Line: p.line, Msg: fmt.Sprintf(format, args...)}
}

// skipWhitespaceAndComments skips spaces, tabs, newlines, and
// "// to EOL" comments, which the grammar allows between any tokens.
func (p *parser) skipWhitespaceAndComments() {
	for !p.eof() {
		c := p.peek()
		if c == ' ' || c == '\t' || c == '\r' || c == '\n' {
			p.advance()
			continue
		}
		if c == '/' && p.pos+1 < len(p.src) && p.src[p.pos+1] == '/' {
			for !p.eof() && p.peek() != '\n' {
				p.advance()
			}
			continue
		}
		break
	}
}

// skipInlineSpace skips spaces and tabs only, not newlines; used for
// the space between a keyword and the value on the same logical line.
func (p *parser) skipInlineSpace() {
	for !p.eof() && (p.peek() == ' ' || p.peek() == '\t') {
		p.advance()
	}
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}

func isIdentCont(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

func (p *parser) readIdent() (string, error) {
	if !isIdentStart(p.peek()) {
		return "", p.errorf("expected identifier, got %q", string(p.peek()))
	}
	start := p.pos
	for !p.eof() && isIdentCont(p.peek()) {
		p.advance()
	}
	return p.src[start:p.pos], nil
}

func (p *parser) expect(c byte) error {
	if p.eof() || p.peek() != c {
		return p.errorf("expected %q", string(c))
	}
	p.advance()
	return nil
}

// readToEOL consumes until newline (or EOF), right-trimming trailing
// whitespace and skipping leading whitespace before the first
// non-space character.
func (p *parser) readToEOL() string {
	p.skipInlineSpace()
	start := p.pos
	for !p.eof() && p.peek() != '\n' {
		p.advance()
	}
	return strings.TrimRight(p.src[start:p.pos], " \t\r")
}

// parseBlock consumes the raw contents between '{' and the first
// '}', unbalanced, per the preserved quirk documented on the package.
func (p *parser) parseBlock() (string, error) {
	if err := p.expect('{'); err != nil {
		return "", err
	}
	idx := strings.IndexByte(p.src[p.pos:], '}')
	if idx == -1 {
		return "", p.errorf("unterminated block")
	}
	content := p.src[p.pos : p.pos+idx]
	for i := 0; i < idx; i++ {
		p.advance()
	}
	p.advance() // consume '}'
	return content, nil
}

func (p *parser) parseRecipe() (*recipe.Recipe, error) {
	nsWord, err := p.readIdent()
	if err != nil {
		return nil, err
	}
	ns := recipe.Namespace(nsWord)
	if !ns.Valid() {
		return nil, p.errorf("unknown namespace %q", nsWord)
	}

	if err := p.expect('/'); err != nil {
		return nil, err
	}
	name, err := p.readIdent()
	if err != nil {
		return nil, err
	}

	p.skipWhitespaceAndComments()
	if err := p.expect('{'); err != nil {
		return nil, err
	}

	r := &recipe.Recipe{Namespace: ns, Name: name}
	if err := p.parseFields(r); err != nil {
		return nil, err
	}
	if err := validateRecipe(r); err != nil {
		return nil, err
	}
	return r, nil
}

func (p *parser) parseFields(r *recipe.Recipe) error {
	for {
		p.skipWhitespaceAndComments()
		if p.eof() {
			return p.errorf("unexpected EOF in recipe body")
		}
		if p.peek() == '}' {
			p.advance()
			return nil
		}

		keyword, err := p.readIdent()
		if err != nil {
			return err
		}

		known := sourceFieldKeywords[keyword]
		if r.Namespace != recipe.Source {
			known = hostTargetFieldKeywords[keyword]
		}
		if !known {
			return p.recoverFromUnknownKeyword(keyword)
		}

		if err := p.parseField(r, keyword); err != nil {
			return err
		}
	}
}

// recoverFromUnknownKeyword implements the "trailing brace" recovery:
// an unrecognised keyword is only tolerated if it is immediately
// followed (after whitespace) by the recipe-closing '}', in which
// case the recipe body ends normally. Any other token at that point
// is a fatal syntax error.
func (p *parser) recoverFromUnknownKeyword(keyword string) error {
	p.skipWhitespaceAndComments()
	if p.peek() == '}' {
		p.advance()
		return nil
	}
	return p.errorf("unknown field %q and no closing brace follows", keyword)
}

// colonValue consumes the ':' introducing a ":" <to EOL> field value
// and returns the trimmed value.
func (p *parser) colonValue() (string, error) {
	p.skipInlineSpace()
	if err := p.expect(':'); err != nil {
		return "", err
	}
	return p.readToEOL(), nil
}

// skipOptionalColon tolerates an optional ':' before a block field
// (configure/build/install/strap); observed configurations write both
// "build: { ... }" and "build { ... }".
func (p *parser) skipOptionalColon() {
	p.skipInlineSpace()
	if p.peek() == ':' {
		p.advance()
		p.skipInlineSpace()
	}
}

func (p *parser) parseField(r *recipe.Recipe, keyword string) error {
	switch keyword {
	case "url":
		val, err := p.colonValue()
		if err != nil {
			return err
		}
		r.Source.URL = val
	case "patch":
		val, err := p.colonValue()
		if err != nil {
			return err
		}
		r.Source.Patch = val
	case "b2sum":
		val, err := p.colonValue()
		if err != nil {
			return err
		}
		r.Source.B2Sum = val
	case "type":
		val, err := p.colonValue()
		if err != nil {
			return err
		}
		if val != "tar.gz" && val != "tar.xz" && val != "local" {
			return p.errorf("invalid type %q", val)
		}
		r.Source.Type = val
	case "strap":
		p.skipOptionalColon()
		block, err := p.parseBlock()
		if err != nil {
			return err
		}
		r.Source.Strap = block
	case "source":
		p.skipInlineSpace()
		if err := p.expect(':'); err != nil {
			return err
		}
		p.skipInlineSpace()
		ident, err := p.readIdent()
		if err != nil {
			return err
		}
		r.HostTarget.Source = &recipe.SourceRef{Name: ident}
	case "configure":
		p.skipOptionalColon()
		block, err := p.parseBlock()
		if err != nil {
			return err
		}
		r.HostTarget.Configure = block
	case "build":
		p.skipOptionalColon()
		block, err := p.parseBlock()
		if err != nil {
			return err
		}
		r.HostTarget.Build = block
	case "install":
		p.skipOptionalColon()
		block, err := p.parseBlock()
		if err != nil {
			return err
		}
		r.HostTarget.Install = block
	case "dependencies":
		p.skipInlineSpace()
		deps, err := p.parseDepList()
		if err != nil {
			return err
		}
		r.Dependencies = deps
	default:
		return p.errorf("unhandled field %q", keyword)
	}
	return nil
}

func (p *parser) parseDepList() (deps []*recipe.Dependency, err error) {
	if err := p.expect('['); err != nil {
		return nil, err
	}
	for {
		p.skipWhitespaceAndComments()
		if p.eof() {
			return nil, p.errorf("unterminated dependency list")
		}
		if p.peek() == ']' {
			p.advance()
			return deps, nil
		}

		runtime := false
		if p.peek() == '*' {
			p.advance()
			runtime = true
		}

		nsWord, err := p.readIdent()
		if err != nil {
			return nil, err
		}
		ns := recipe.Namespace(nsWord)
		if !ns.Valid() {
			return nil, p.errorf("unknown namespace %q in dependency", nsWord)
		}
		if err := p.expect('/'); err != nil {
			return nil, err
		}
		name, err := p.readIdent()
		if err != nil {
			return nil, err
		}

		deps = append(deps, &recipe.Dependency{Namespace: ns, Name: name, Runtime: runtime})
	}
}

func validateRecipe(r *recipe.Recipe) error {
	if r.Namespace != recipe.Source {
		return nil
	}
	if r.Source.URL == "" {
		return fmt.Errorf("recipe %s: missing required field url", r.Ref())
	}
	if r.Source.Type == "" {
		return fmt.Errorf("recipe %s: missing required field type", r.Ref())
	}
	if r.RequiresB2Sum() && r.Source.B2Sum == "" {
		return fmt.Errorf("recipe %s: missing required field b2sum for type %s", r.Ref(), r.Source.Type)
	}
	return nil
}
