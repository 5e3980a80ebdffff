// Package typeexpr rewrites TypeScript type expressions so that every
// non-intrinsic identifier is qualified with a namespace.
//
// The accepted grammar is small:
//
//	Expr  := Ident | Ident '<' List '>' | '[' List ']' | '<' List '>'
//	List  := Expr (',' Expr)*
//
// Top-level fragments may be separated by whitespace or union punctuation
// ("User | null"), which is copied through unchanged. Groups are matched by
// depth, so nesting is unbounded.
package typeexpr

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformed is matched by every error returned from Prefix.
var ErrMalformed = errors.New("malformed type expression")

// MalformedError describes where a type expression stopped making sense.
type MalformedError struct {
	Expr   string
	Offset int
	Reason string
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("typeexpr: %s at offset %d in %q", e.Reason, e.Offset, e.Expr)
}

// Is reports whether target is ErrMalformed.
func (e *MalformedError) Is(target error) bool {
	return target == ErrMalformed
}

// Prefix qualifies every non-intrinsic identifier in expr as
// "namespace.Identifier". Generic arguments are qualified independently of the
// identifier they follow, so "Array<Product>" becomes "Array<ns.Product>".
//
// Prefix is not idempotent: running it over its own output qualifies twice.
func Prefix(namespace, expr string) (string, error) {
	p := &parser{ns: namespace, src: expr}
	var b strings.Builder
	for p.pos < len(p.src) {
		if err := p.fragment(&b); err != nil {
			return "", err
		}
	}
	return strings.TrimSpace(b.String()), nil
}

// MustPrefix is like Prefix but panics if expr is malformed.
func MustPrefix(namespace, expr string) string {
	out, err := Prefix(namespace, expr)
	if err != nil {
		panic(err)
	}
	return out
}

type parser struct {
	ns  string
	src string
	pos int
}

func (p *parser) fail(offset int, format string, args ...any) error {
	return &MalformedError{Expr: p.src, Offset: offset, Reason: fmt.Sprintf(format, args...)}
}

// fragment consumes one unit of input at p.pos and writes its rewritten form.
// A closer reaching fragment does not belong to the enclosing group.
func (p *parser) fragment(b *strings.Builder) error {
	c := p.src[p.pos]
	switch {
	case c == '<' || c == '[':
		return p.group(b)
	case c == '>' || c == ']':
		return p.fail(p.pos, "unexpected %q", c)
	case c == '"' || c == '\'' || c == '`':
		return p.literal(b)
	case isIdentStart(c):
		return p.ident(b)
	case isDigit(c):
		// numeric literal type
		start := p.pos
		for p.pos < len(p.src) && (isDigit(p.src[p.pos]) || p.src[p.pos] == '.') {
			p.pos++
		}
		b.WriteString(p.src[start:p.pos])
		return nil
	default:
		b.WriteByte(c)
		p.pos++
		return nil
	}
}

// ident reads a (possibly dotted) identifier and an optional generic
// argument list that immediately follows it.
func (p *parser) ident(b *strings.Builder) error {
	start := p.pos
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if isIdentPart(c) {
			p.pos++
			continue
		}
		if c == '.' && p.pos+1 < len(p.src) && isIdentStart(p.src[p.pos+1]) {
			p.pos++
			continue
		}
		break
	}
	name := p.src[start:p.pos]
	if IsIntrinsic(name) {
		b.WriteString(name)
	} else {
		b.WriteString(p.ns)
		b.WriteByte('.')
		b.WriteString(name)
	}
	if p.pos < len(p.src) && p.src[p.pos] == '<' {
		return p.group(b)
	}
	return nil
}

// group rewrites a bracketed list starting at p.pos. Entries are separated by
// commas at depth zero of this group; each entry is rewritten recursively,
// trimmed, and re-joined with ", ".
func (p *parser) group(b *strings.Builder) error {
	open := p.src[p.pos]
	closer := byte('>')
	if open == '[' {
		closer = ']'
	}
	start := p.pos
	p.pos++

	var entries []string
	var entry strings.Builder
	flush := func() {
		if s := strings.TrimSpace(entry.String()); s != "" {
			entries = append(entries, s)
		}
		entry.Reset()
	}
	for {
		if p.pos >= len(p.src) {
			return p.fail(start, "unbalanced %q", open)
		}
		switch c := p.src[p.pos]; c {
		case closer:
			p.pos++
			flush()
			b.WriteByte(open)
			b.WriteString(strings.Join(entries, ", "))
			b.WriteByte(closer)
			return nil
		case ',':
			p.pos++
			flush()
		default:
			if err := p.fragment(&entry); err != nil {
				return err
			}
		}
	}
}

// literal copies a quoted string literal type verbatim.
func (p *parser) literal(b *strings.Builder) error {
	quote := p.src[p.pos]
	start := p.pos
	p.pos++
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		p.pos++
		if c == '\\' {
			p.pos++
			continue
		}
		if c == quote {
			b.WriteString(p.src[start:p.pos])
			return nil
		}
	}
	return p.fail(start, "unterminated string literal")
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
