package config

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Parsing limits for config files. A reflectd config is small; anything
// near these limits is malformed or hostile input.
const (
	maxConfigBytes = 1 << 20 // 1MB
	maxConfigDepth = 12
	maxConfigNodes = 2000
)

// parseYAML decodes config YAML after checking size, nesting depth, and
// node count.
func parseYAML(data []byte, v any) error {
	if len(data) > maxConfigBytes {
		return fmt.Errorf("config exceeds %d bytes", maxConfigBytes)
	}

	var root yaml.Node
	if err := yaml.NewDecoder(bytes.NewReader(data)).Decode(&root); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	nodes := 0
	if err := checkNode(&root, 0, &nodes); err != nil {
		return err
	}
	return yaml.Unmarshal(data, v)
}

func checkNode(node *yaml.Node, depth int, nodes *int) error {
	if depth > maxConfigDepth {
		return fmt.Errorf("config nesting exceeds depth %d", maxConfigDepth)
	}
	*nodes++
	if *nodes > maxConfigNodes {
		return fmt.Errorf("config exceeds %d nodes", maxConfigNodes)
	}
	for _, child := range node.Content {
		var err error
		switch node.Kind {
		case yaml.DocumentNode:
			err = checkNode(child, depth, nodes)
		default:
			err = checkNode(child, depth+1, nodes)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
