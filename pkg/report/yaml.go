package report

import (
	"io"

	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/blockaudit/pkg/audit"
)

const yamlIndent = 2

func renderYAML(w io.Writer, res audit.Result) error {
	seq := &yaml.Node{Kind: yaml.SequenceNode}

	for _, row := range res.Rows {
		node, err := yamlNode(row)
		if err != nil {
			return err
		}

		seq.Content = append(seq.Content, node)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(yamlIndent)

	err := enc.Encode(seq)
	if err != nil {
		return err
	}

	return enc.Close()
}

// yamlNode converts value to a node, keeping the key order of rows.
func yamlNode(value any) (*yaml.Node, error) {
	row, ok := value.(audit.Row)
	if !ok {
		node := &yaml.Node{}

		err := node.Encode(value)
		if err != nil {
			return nil, err
		}

		return node, nil
	}

	mapping := &yaml.Node{Kind: yaml.MappingNode}

	for _, cell := range row {
		child, err := yamlNode(cell.Value)
		if err != nil {
			return nil, err
		}

		mapping.Content = append(mapping.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: cell.Key},
			child,
		)
	}

	return mapping, nil
}
