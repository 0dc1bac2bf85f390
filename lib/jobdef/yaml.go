// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package jobdef

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ParseYAML unmarshals a YAML job definition. The document is
// converted node by node into JSON before decoding, so mapping key
// order survives into the raw configuration objects (a plain
// map[string]any round trip would lose it, and aggregation order is
// part of the job's meaning).
func ParseYAML(data []byte) (*Job, error) {
	var document yaml.Node
	if err := yaml.Unmarshal(data, &document); err != nil {
		return nil, fmt.Errorf("parsing job: %w", err)
	}
	if document.Kind == 0 || len(document.Content) == 0 {
		return &Job{}, nil
	}

	converted, err := yamlToJSON(&document)
	if err != nil {
		return nil, fmt.Errorf("parsing job: %w", err)
	}

	var job Job
	if err := json.Unmarshal(converted, &job); err != nil {
		return nil, fmt.Errorf("parsing job: %w", err)
	}
	return &job, nil
}

// yamlToJSON renders a YAML node as the equivalent JSON document.
func yamlToJSON(node *yaml.Node) ([]byte, error) {
	switch node.Kind {
	case yaml.DocumentNode:
		return yamlToJSON(node.Content[0])

	case yaml.AliasNode:
		return yamlToJSON(node.Alias)

	case yaml.MappingNode:
		var b bytes.Buffer
		b.WriteByte('{')
		for i := 0; i+1 < len(node.Content); i += 2 {
			if i > 0 {
				b.WriteByte(',')
			}
			key, err := json.Marshal(node.Content[i].Value)
			if err != nil {
				return nil, err
			}
			b.Write(key)
			b.WriteByte(':')
			value, err := yamlToJSON(node.Content[i+1])
			if err != nil {
				return nil, err
			}
			b.Write(value)
		}
		b.WriteByte('}')
		return b.Bytes(), nil

	case yaml.SequenceNode:
		var b bytes.Buffer
		b.WriteByte('[')
		for i, element := range node.Content {
			if i > 0 {
				b.WriteByte(',')
			}
			value, err := yamlToJSON(element)
			if err != nil {
				return nil, err
			}
			b.Write(value)
		}
		b.WriteByte(']')
		return b.Bytes(), nil

	case yaml.ScalarNode:
		return yamlScalarToJSON(node)

	default:
		return nil, fmt.Errorf("line %d: unsupported YAML node kind %d", node.Line, node.Kind)
	}
}

func yamlScalarToJSON(node *yaml.Node) ([]byte, error) {
	switch node.Tag {
	case "!!null":
		return []byte("null"), nil
	case "!!bool":
		value, err := strconv.ParseBool(node.Value)
		if err != nil {
			return nil, fmt.Errorf("line %d: bad boolean %q", node.Line, node.Value)
		}
		return strconv.AppendBool(nil, value), nil
	case "!!int":
		// Base 0 covers the 0x/0o/0b spellings YAML allows.
		value, err := strconv.ParseInt(node.Value, 0, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: bad integer %q", node.Line, node.Value)
		}
		return strconv.AppendInt(nil, value, 10), nil
	case "!!float":
		value, err := strconv.ParseFloat(node.Value, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: unsupported float %q", node.Line, node.Value)
		}
		return strconv.AppendFloat(nil, value, 'g', -1, 64), nil
	default:
		return json.Marshal(node.Value)
	}
}
