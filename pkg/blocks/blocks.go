// Package blocks parses serialized block markup into a tree of blocks and
// flattens that tree for auditing.
package blocks

import "strings"

// ClassicName is the synthetic type of name-less blocks that carry content.
const ClassicName = "classic"

// Block is one node of a parsed document.
type Block struct {
	// Name is the namespaced block type, e.g. "core/paragraph". Empty for
	// freeform HTML between delimiters.
	Name        string         `json:"blockName"`
	Attrs       map[string]any `json:"attrs"`
	InnerHTML   string         `json:"innerHTML"`
	InnerBlocks []Block        `json:"innerBlocks,omitempty"`
}

// Blank reports whether the block has no name and no non-whitespace content.
func (b Block) Blank() bool {
	return b.Name == "" && strings.TrimSpace(b.InnerHTML) == ""
}

// Flatten returns every block of the tree rooted at root in depth-first
// pre-order, children included. Blank blocks are omitted (their children are
// still visited) and name-less blocks with content are renamed ClassicName.
// Attributes are never inherited from parents.
func Flatten(root Block) []Block {
	var out []Block

	flattenInto(&out, root)

	return out
}

func flattenInto(out *[]Block, b Block) {
	switch {
	case b.Blank():
	case b.Name == "":
		classic := b
		classic.Name = ClassicName
		*out = append(*out, classic)
	default:
		*out = append(*out, b)
	}

	for _, child := range b.InnerBlocks {
		flattenInto(out, child)
	}
}
