package blocks

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// defaultNamespace is prepended to block names written without one.
const defaultNamespace = "core/"

// ErrMalformedBlock is returned when block delimiters or attributes cannot be parsed.
var ErrMalformedBlock = errors.New("malformed block markup")

// delimiter matches block comment delimiters:
//
//	<!-- wp:ns/name {"attr":1} -->   opener
//	<!-- /wp:ns/name -->             closer
//	<!-- wp:name /-->                void block
var delimiter = regexp.MustCompile(
	`(?s)<!--\s+(/)?wp:((?:[a-z][a-z0-9_-]*/)?[a-z][a-z0-9_-]*)\s+(\{.*?\}\s+)?(/)?-->`)

// Submatch indexes in delimiter.
const (
	groupCloser = 1
	groupName   = 2
	groupAttrs  = 3
	groupVoid   = 4
)

// Parse converts serialized content into a tree. The returned root has no
// name; its InnerBlocks are the top-level blocks in document order. Freeform
// HTML between delimiters becomes name-less blocks, kept even when blank so
// callers can tell empty gaps from classic content.
func Parse(content string) (Block, error) {
	p := parser{}

	last := 0

	for _, loc := range delimiter.FindAllStringSubmatchIndex(content, -1) {
		p.text(content[last:loc[0]])
		last = loc[1]

		err := p.delimiter(content, loc)
		if err != nil {
			return Block{}, err
		}
	}

	p.text(content[last:])

	if len(p.stack) > 0 {
		return Block{}, fmt.Errorf("%w: unclosed block %q", ErrMalformedBlock, p.stack[len(p.stack)-1].Name)
	}

	return Block{Attrs: map[string]any{}, InnerBlocks: p.top}, nil
}

type parser struct {
	top   []Block
	stack []Block
}

func (p *parser) text(s string) {
	if s == "" {
		return
	}

	if len(p.stack) == 0 {
		p.top = append(p.top, Block{Attrs: map[string]any{}, InnerHTML: s})

		return
	}

	p.stack[len(p.stack)-1].InnerHTML += s
}

func (p *parser) attach(b Block) {
	if len(p.stack) == 0 {
		p.top = append(p.top, b)

		return
	}

	parent := &p.stack[len(p.stack)-1]
	parent.InnerBlocks = append(parent.InnerBlocks, b)
}

func (p *parser) delimiter(content string, loc []int) error {
	group := func(i int) string {
		if loc[2*i] < 0 {
			return ""
		}

		return content[loc[2*i]:loc[2*i+1]]
	}

	name := normalizeName(group(groupName))
	closer := group(groupCloser) != ""
	void := group(groupVoid) != ""

	if closer {
		if len(p.stack) == 0 {
			return fmt.Errorf("%w: closer for %q without opener", ErrMalformedBlock, name)
		}

		open := p.stack[len(p.stack)-1]
		if open.Name != name {
			return fmt.Errorf("%w: %q closed by %q", ErrMalformedBlock, open.Name, name)
		}

		p.stack = p.stack[:len(p.stack)-1]
		p.attach(open)

		return nil
	}

	attrs, err := parseAttrs(group(groupAttrs))
	if err != nil {
		return fmt.Errorf("%w: attributes of %q: %w", ErrMalformedBlock, name, err)
	}

	b := Block{Name: name, Attrs: attrs}

	if void {
		p.attach(b)

		return nil
	}

	p.stack = append(p.stack, b)

	return nil
}

func normalizeName(name string) string {
	if strings.Contains(name, "/") {
		return name
	}

	return defaultNamespace + name
}

func parseAttrs(raw string) (map[string]any, error) {
	raw = strings.TrimSpace(raw)
	attrs := map[string]any{}

	if raw == "" {
		return attrs, nil
	}

	err := json.Unmarshal([]byte(raw), &attrs)
	if err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}

	return attrs, nil
}
