package domain

import (
	"fmt"
	"strings"
)

// ParseListLiteral decodes a list literal of quoted strings, e.g. ['a', "b's"].
// Both quote styles and backslash escapes are accepted, as is a trailing comma.
// Anything else is reported as ErrMalformedMetadata.
func ParseListLiteral(raw string) ([]string, error) {
	s := strings.TrimSpace(raw)
	if len(s) < 2 || s[0] != '[' || s[len(s)-1] != ']' {
		return nil, fmt.Errorf("%w: not a list literal: %q", ErrMalformedMetadata, preview(raw))
	}

	p := listParser{src: []rune(s[1 : len(s)-1])}
	items := make([]string, 0, 4)
	for {
		p.skipSpace()
		if p.done() {
			return items, nil
		}
		item, err := p.quoted()
		if err != nil {
			return nil, fmt.Errorf("%w: %v in %q", ErrMalformedMetadata, err, preview(raw))
		}
		items = append(items, item)

		p.skipSpace()
		if p.done() {
			return items, nil
		}
		if p.src[p.pos] != ',' {
			return nil, fmt.Errorf("%w: expected ',' at offset %d in %q", ErrMalformedMetadata, p.pos, preview(raw))
		}
		p.pos++
	}
}

type listParser struct {
	src []rune
	pos int
}

func (p *listParser) done() bool {
	return p.pos >= len(p.src)
}

func (p *listParser) skipSpace() {
	for !p.done() {
		switch p.src[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

func (p *listParser) quoted() (string, error) {
	quote := p.src[p.pos]
	if quote != '\'' && quote != '"' {
		return "", fmt.Errorf("unquoted item at offset %d", p.pos)
	}
	p.pos++

	var b strings.Builder
	for !p.done() {
		r := p.src[p.pos]
		p.pos++
		switch {
		case r == quote:
			return b.String(), nil
		case r == '\\' && !p.done():
			b.WriteRune(unescape(p.src[p.pos]))
			p.pos++
		default:
			b.WriteRune(r)
		}
	}
	return "", fmt.Errorf("unterminated string")
}

func unescape(r rune) rune {
	switch r {
	case 'n':
		return '\n'
	case 't':
		return '\t'
	case 'r':
		return '\r'
	default:
		return r
	}
}

func preview(s string) string {
	const limit = 80
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
