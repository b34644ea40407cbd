package yml

import (
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

type (
	Node yaml.Node
)

// Parse parses YAML document and returns its root content node
func Parse(data []byte) (*Node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	root := &doc
	if root.Kind == 0 {
		return nil, fmt.Errorf("empty document")
	}
	if root.Kind == yaml.DocumentNode {
		if len(root.Content) == 0 {
			return nil, fmt.Errorf("empty document")
		}
		root = root.Content[0]
	}
	return (*Node)(root), nil
}

// Lookup returns value node for the supplied key of a mapping node
func (n *Node) Lookup(name string) *Node {
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == name {
			return (*Node)(n.Content[i+1])
		}
	}
	return nil
}

// Pairs iterates mapping node key/value pairs
func (n *Node) Pairs(callback func(key string, node *Node) error) error {
	for i := 0; i+1 < len(n.Content); i += 2 {
		if err := callback(n.Content[i].Value, (*Node)(n.Content[i+1])); err != nil {
			return err
		}
	}
	return nil
}

// Int returns scalar node value as int
func (n *Node) Int() (int, error) {
	if n == nil {
		return 0, fmt.Errorf("nil node")
	}
	if n.Kind != yaml.ScalarNode {
		return 0, fmt.Errorf("expected scalar at line %d, got kind %v", n.Line, n.Kind)
	}
	switch n.Tag {
	case "!!int", "!!str", "":
	default:
		return 0, fmt.Errorf("expected int at line %d, got %v", n.Line, n.Tag)
	}
	return strconv.Atoi(n.Value)
}

// Decode decodes node into target
func (n *Node) Decode(target interface{}) error {
	return (*yaml.Node)(n).Decode(target)
}
