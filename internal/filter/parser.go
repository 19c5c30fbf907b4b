package filter

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Parser compiles textual filter queries into expressions.
//
// A query is either a single free text term, e.g. "isk" or "!example.com", or a list of
// "key=value" terms joined by "&". Nested keys are written in brackets, e.g. "person[name]=Jo",
// and a free text term next to other terms constrains the wildcard key. Keys and values are
// URL-unescaped, dots are part of the key.
type Parser struct {
	wildcard string

	tag         string
	pos, length int
}

// NewParser returns a Parser mapping free text terms of compound queries to the given wildcard key.
func NewParser(wildcard string) *Parser {
	return &Parser{wildcard: wildcard}
}

// Parse parses a filter query using the DefaultWildcard.
func Parse(query string) (Expression, error) {
	return NewParser(DefaultWildcard).Parse(query)
}

// Parse parses the given filter query. An empty query yields a nil Expression, which matches everything.
func (p *Parser) Parse(query string) (Expression, error) {
	p.tag, p.pos, p.length = query, 0, len(query)
	if p.length == 0 {
		return nil, nil
	}

	return p.readQuery()
}

// readQuery reads all terms from Parser.tag and derives an Expression from them.
func (p *Parser) readQuery() (Expression, error) {
	fields := make(map[string]any)
	var texts []any
	for p.pos < p.length {
		start := p.pos
		if !strings.Contains(p.peekTerm(), "=") {
			text, err := p.readText()
			if err != nil {
				return nil, err
			}

			texts = append(texts, text)
		} else if err := p.readField(fields); err != nil {
			return nil, err
		}

		if next := p.readChar(); next == "&" && p.pos == p.length {
			return nil, p.parseError("", "Expected term")
		} else if next != "" && next != "&" {
			return nil, p.parseError(next, fmt.Sprintf("term starting at pos %d", start))
		}
	}

	if len(fields) == 0 && len(texts) == 1 {
		return Text{Value: texts[0]}, nil
	}

	for _, text := range texts {
		if err := p.insert(fields, []string{p.wildcard}, text); err != nil {
			return nil, err
		}
	}

	return Fields{Value: fields}, nil
}

// readText reads a free text term.
func (p *Parser) readText() (any, error) {
	raw := p.readUntil("&")
	if raw == "" {
		return nil, p.parseError("", "Expected term")
	}

	text, err := url.QueryUnescape(raw)
	if err != nil {
		return nil, err
	}

	return inferValue(text), nil
}

// readField reads a single "key=value" term and stores it into fields.
func (p *Parser) readField(fields map[string]any) error {
	path, err := p.readKey()
	if err != nil {
		return err
	}

	if next := p.readChar(); next != "=" {
		return p.parseError(next, "Expected '='")
	}

	value, err := url.QueryUnescape(p.readUntil("&"))
	if err != nil {
		return err
	}

	return p.insert(fields, path, inferValue(value))
}

// readKey reads a possibly nested key, e.g. "person[email][work]", and returns its path segments.
func (p *Parser) readKey() ([]string, error) {
	var path []string
	segment, err := p.readSegment("=&[]")
	if err != nil {
		return nil, err
	}

	path = append(path, segment)
	for p.nextChar() == "[" {
		p.readChar()

		segment, err := p.readSegment("=&[]")
		if err != nil {
			return nil, err
		}

		if next := p.readChar(); next != "]" {
			return nil, p.parseError(next, "Expected ']'")
		}

		path = append(path, segment)
	}

	return path, nil
}

// readSegment reads a single non-empty key segment up to any of the given chars.
func (p *Parser) readSegment(chars string) (string, error) {
	raw := p.readUntil(chars)
	if raw == "" {
		return "", p.parseError("", "Expected key")
	}

	return url.QueryUnescape(raw)
}

// insert stores value at the given path of fields, creating nested records on the way.
func (p *Parser) insert(fields map[string]any, path []string, value any) error {
	for i, key := range path {
		existing, ok := fields[key]
		if i == len(path)-1 {
			if ok {
				return fmt.Errorf("invalid filter '%s', duplicate key %q", p.tag, strings.Join(path[:i+1], "."))
			}

			fields[key] = value
			break
		}

		if !ok {
			nested := make(map[string]any)
			fields[key] = nested
			fields = nested
			continue
		}

		nested, isRecord := existing.(map[string]any)
		if !isRecord {
			return fmt.Errorf("invalid filter '%s', key %q is used as value and as record", p.tag, key)
		}

		fields = nested
	}

	return nil
}

// peekTerm returns the remainder of the current term without advancing Parser.pos.
func (p *Parser) peekTerm() string {
	rest := p.tag[p.pos:]
	if i := strings.Index(rest, "&"); i >= 0 {
		return rest[:i]
	}

	return rest
}

// readUntil reads chars until any of the given characters
// May return empty string if there is no char to read
func (p *Parser) readUntil(chars string) string {
	var buffer strings.Builder
	for char := p.readChar(); char != ""; char = p.readChar() {
		if strings.Contains(chars, char) {
			p.pos--
			break
		}

		buffer.WriteString(char)
	}

	return buffer.String()
}

// readChar peeks the next char of the Parser.tag and increments the Parser.pos by one
// returns empty if there is no char to read
func (p *Parser) readChar() string {
	if p.pos < p.length {
		pos := p.pos
		p.pos++

		return string(p.tag[pos])
	}

	return ""
}

// nextChar peeks the next char from the parser tag
// returns empty string if there is no char to read
func (p *Parser) nextChar() string {
	if p.pos < p.length {
		return string(p.tag[p.pos])
	}

	return ""
}

// parseError returns a formatted and detailed parser error.
// If you don't provide the char that causes the parser to fail, the char at `p.pos` is automatically used.
// By specifying the `msg` arg you can provide additional err hints that can help debugging.
func (p *Parser) parseError(invalidChar string, msg string) error {
	if invalidChar == "" {
		pos := p.pos
		if p.pos == p.length {
			pos--
		}

		invalidChar = string(p.tag[pos])
	}

	if msg != "" {
		msg = ": " + msg
	}

	return fmt.Errorf("invalid filter '%s', unexpected %s at pos %d%s", p.tag, invalidChar, p.pos, msg)
}

// inferValue turns canonical boolean and decimal number literals into their Go values.
// Anything else, e.g. "007" or "!true", stays a string.
func inferValue(s string) any {
	switch s {
	case "true":
		return true
	case "false":
		return false
	}

	if n, err := strconv.ParseInt(s, 10, 64); err == nil && strconv.FormatInt(n, 10) == s {
		return n
	}

	if f, err := strconv.ParseFloat(s, 64); err == nil && strconv.FormatFloat(f, 'f', -1, 64) == s {
		return f
	}

	return s
}
