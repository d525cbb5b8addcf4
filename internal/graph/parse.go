package graph

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Parse decodes a goal-structure document (YAML, or JSON as a YAML subset)
// and validates it. Decode failures and invariant violations are returned
// as *GraphError.
func Parse(r io.Reader) (*Graph, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read gsn document: %w", err)
	}
	return ParseBytes(data)
}

// ParseFile reads and parses the document at path.
func ParseFile(path string) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	g, err := ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return g, nil
}

// ParseBytes is Parse over an in-memory document.
func ParseBytes(data []byte) (*Graph, error) {
	// Exported documents occasionally carry vertical tabs, which YAML rejects.
	data = bytes.ReplaceAll(data, []byte{'\x0b'}, nil)

	var raw map[string]rawNode
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &GraphError{Kind: ErrMalformed, Msg: "decode document", Err: err}
	}

	g := NewGraph()
	for id, rn := range raw {
		g.AddNode(rn.toNode(id))
	}

	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// stringList accepts either a scalar or a sequence of scalars.
type stringList []string

func (s *stringList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		if value.Tag == "!!null" {
			*s = nil
			return nil
		}
		*s = stringList{value.Value}
		return nil
	case yaml.SequenceNode:
		var items []string
		if err := value.Decode(&items); err != nil {
			return err
		}
		*s = items
		return nil
	default:
		return fmt.Errorf("line %d: supportedBy must be a string or a list of strings", value.Line)
	}
}
