package config

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/dosanma1/wheelforge/internal/shell"
)

// Environment is an ordered list of overrides. In YAML it is written as a
// mapping and keeps the order of the document, so a value may reference
// any name defined above it.
type Environment []shell.Assignment

// Get returns the value assigned to name.
func (e Environment) Get(name string) (string, bool) {
	for _, a := range e {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// Set replaces the value of name in place, or appends a new assignment.
func (e *Environment) Set(name, value string) {
	for i := range *e {
		if (*e)[i].Name == name {
			(*e)[i].Value = value
			return
		}
	}
	*e = append(*e, shell.Assignment{Name: name, Value: value})
}

// Merge sets every assignment of other, in order.
func (e *Environment) Merge(other Environment) {
	for _, a := range other {
		e.Set(a.Name, a.Value)
	}
}

func (e *Environment) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: environment must be a mapping of NAME: value", node.Line)
	}

	env := make(Environment, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]
		if val.Kind != yaml.ScalarNode {
			return fmt.Errorf("line %d: environment value for %q must be a string", val.Line, key.Value)
		}
		var value string
		if err := val.Decode(&value); err != nil {
			return err
		}
		env.Set(key.Value, value)
	}
	*e = env
	return nil
}

func (e Environment) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, a := range e {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: a.Name},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: a.Value},
		)
	}
	return node, nil
}
