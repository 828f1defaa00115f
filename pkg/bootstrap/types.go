// Package bootstrap loads use-case definitions (contexts and per-use-case
// configuration) from YAML or JSON files.
package bootstrap

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/morezero/usecase-executor/pkg/execution"
	"github.com/morezero/usecase-executor/pkg/options"
)

// ProcessorSpec is a processor specification as written in a definitions
// file: a bare name, a {name: options} map, a multi-key composite map or a
// composite step list. Map key order is kept.
type ProcessorSpec struct {
	value interface{}
}

// NewProcessorSpec wraps a raw specification value.
func NewProcessorSpec(v interface{}) ProcessorSpec {
	return ProcessorSpec{value: v}
}

// Value returns the raw specification (nil, string, *options.Map or []interface{}).
func (p ProcessorSpec) Value() interface{} {
	return p.value
}

// IsZero reports whether no processor was specified.
func (p ProcessorSpec) IsZero() bool {
	return p.value == nil
}

func normalizeSpec(v interface{}) (interface{}, error) {
	switch t := v.(type) {
	case nil, string, *options.Map:
		return t, nil
	case []interface{}:
		if _, _, err := execution.ParseProcessorSpec(t); err != nil {
			return nil, err
		}
		return t, nil
	}
	return nil, fmt.Errorf("processor must be a name, a map or a step list, got %T", v)
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *ProcessorSpec) UnmarshalJSON(data []byte) error {
	v, err := options.DecodeJSON(data)
	if err != nil {
		return err
	}
	if p.value, err = normalizeSpec(v); err != nil {
		return err
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (p ProcessorSpec) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.value)
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (p *ProcessorSpec) UnmarshalYAML(node *yaml.Node) error {
	v, err := options.DecodeYAML(node)
	if err != nil {
		return err
	}
	if p.value, err = normalizeSpec(v); err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (p ProcessorSpec) MarshalYAML() (interface{}, error) {
	return p.value, nil
}

// ContextDefinition is a named context in the definitions file.
type ContextDefinition struct {
	Input    ProcessorSpec `json:"input,omitempty" yaml:"input,omitempty"`
	Response ProcessorSpec `json:"response,omitempty" yaml:"response,omitempty"`
}

// UseCaseDefinition is the configuration of one use case.
type UseCaseDefinition struct {
	Description string        `json:"description,omitempty" yaml:"description,omitempty"`
	Input       ProcessorSpec `json:"input,omitempty" yaml:"input,omitempty"`
	Response    ProcessorSpec `json:"response,omitempty" yaml:"response,omitempty"`
	RequestType string        `json:"requestType,omitempty" yaml:"requestType,omitempty"`
}

// Definitions is the root of a definitions file.
type Definitions struct {
	Name           string                       `json:"name,omitempty" yaml:"name,omitempty"`
	Version        string                       `json:"version" yaml:"version"`
	Description    string                       `json:"description,omitempty" yaml:"description,omitempty"`
	DefaultContext string                       `json:"defaultContext,omitempty" yaml:"defaultContext,omitempty"`
	Contexts       map[string]ContextDefinition `json:"contexts,omitempty" yaml:"contexts,omitempty"`
	UseCases       map[string]UseCaseDefinition `json:"useCases,omitempty" yaml:"useCases,omitempty"`
}
