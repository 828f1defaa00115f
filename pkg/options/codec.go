package options

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

const logPrefix = "options:codec"

// MarshalJSON encodes the map as a JSON object in key order.
func (m *Map) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	var encErr error
	i := 0
	m.Each(func(k string, v interface{}) bool {
		if i > 0 {
			buf.WriteByte(',')
		}
		i++
		kb, err := json.Marshal(k)
		if err != nil {
			encErr = err
			return false
		}
		vb, err := json.Marshal(v)
		if err != nil {
			encErr = fmt.Errorf("%s - failed to encode option %q: %w", logPrefix, k, err)
			return false
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
		return true
	})
	if encErr != nil {
		return nil, encErr
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object keeping key order. Nested objects
// become *Map values; `null` yields an empty map.
func (m *Map) UnmarshalJSON(data []byte) error {
	v, err := DecodeJSON(data)
	if err != nil {
		return err
	}
	switch t := v.(type) {
	case nil:
		*m = Map{}
	case *Map:
		*m = *t
	default:
		return fmt.Errorf("%s - expected a JSON object, got %T", logPrefix, v)
	}
	return nil
}

// DecodeJSON decodes any JSON document, turning objects into ordered *Map
// values. Numbers decode as float64, the encoding/json default.
func DecodeJSON(data []byte) (interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	v, err := decodeJSONValue(dec)
	if err != nil {
		return nil, fmt.Errorf("%s - invalid JSON: %w", logPrefix, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%s - invalid JSON: trailing data", logPrefix)
	}
	return v, nil
}

func decodeJSONValue(dec *json.Decoder) (interface{}, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	delim, ok := tok.(json.Delim)
	if !ok {
		return tok, nil
	}
	switch delim {
	case '{':
		out := New()
		for dec.More() {
			keyTok, err := dec.Token()
			if err != nil {
				return nil, err
			}
			key, ok := keyTok.(string)
			if !ok {
				return nil, fmt.Errorf("unexpected object key %v", keyTok)
			}
			v, err := decodeJSONValue(dec)
			if err != nil {
				return nil, err
			}
			out.Set(key, v)
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return out, nil
	case '[':
		out := []interface{}{}
		for dec.More() {
			v, err := decodeJSONValue(dec)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return out, nil
	}
	return nil, fmt.Errorf("unexpected delimiter %v", delim)
}

// UnmarshalYAML decodes a YAML mapping keeping key order.
func (m *Map) UnmarshalYAML(node *yaml.Node) error {
	v, err := DecodeYAML(node)
	if err != nil {
		return err
	}
	switch t := v.(type) {
	case nil:
		*m = Map{}
	case *Map:
		*m = *t
	default:
		return fmt.Errorf("%s - line %d: expected a mapping, got %T", logPrefix, node.Line, v)
	}
	return nil
}

// MarshalYAML encodes the map as an ordered YAML mapping.
func (m *Map) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	var encErr error
	m.Each(func(k string, v interface{}) bool {
		var valueNode yaml.Node
		if err := valueNode.Encode(v); err != nil {
			encErr = fmt.Errorf("%s - failed to encode option %q: %w", logPrefix, k, err)
			return false
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k},
			&valueNode,
		)
		return true
	})
	if encErr != nil {
		return nil, encErr
	}
	return node, nil
}

// DecodeYAML converts a YAML node to Go values, turning mappings into
// ordered *Map values.
func DecodeYAML(node *yaml.Node) (interface{}, error) {
	switch node.Kind {
	case yaml.DocumentNode:
		if len(node.Content) == 0 {
			return nil, nil
		}
		return DecodeYAML(node.Content[0])
	case yaml.AliasNode:
		return DecodeYAML(node.Alias)
	case yaml.MappingNode:
		out := New()
		for i := 0; i+1 < len(node.Content); i += 2 {
			v, err := DecodeYAML(node.Content[i+1])
			if err != nil {
				return nil, err
			}
			out.Set(node.Content[i].Value, v)
		}
		return out, nil
	case yaml.SequenceNode:
		out := make([]interface{}, 0, len(node.Content))
		for _, c := range node.Content {
			v, err := DecodeYAML(c)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case yaml.ScalarNode:
		var v interface{}
		if err := node.Decode(&v); err != nil {
			return nil, fmt.Errorf("%s - line %d: %w", logPrefix, node.Line, err)
		}
		return v, nil
	}
	return nil, fmt.Errorf("%s - line %d: unsupported YAML node kind %d", logPrefix, node.Line, node.Kind)
}
