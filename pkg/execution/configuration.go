package execution

import (
	"fmt"
	"sort"
	"strings"

	"github.com/morezero/usecase-executor/pkg/options"
	"github.com/morezero/usecase-executor/pkg/processor"
)

// Configuration selects the processors, their options and the request type
// of a use case or a named context. Empty fields fall back to the default
// context when resolved.
type Configuration struct {
	inputName       string
	inputOptions    *options.Map
	responseName    string
	responseOptions *options.Map
	requestTypeName string
}

// NewConfiguration builds a Configuration from an input and a response
// processor specification; see ParseProcessorSpec.
func NewConfiguration(input, response interface{}) (*Configuration, error) {
	c := &Configuration{}
	name, opts, err := ParseProcessorSpec(input)
	if err != nil {
		return nil, &InvalidConfigurationError{Message: "input processor", Err: err}
	}
	c.SetInputProcessor(name, opts)

	name, opts, err = ParseProcessorSpec(response)
	if err != nil {
		return nil, &InvalidConfigurationError{Message: "response processor", Err: err}
	}
	c.SetResponseProcessor(name, opts)
	return c, nil
}

// MustConfiguration is NewConfiguration for literals in wiring code and tests.
func MustConfiguration(input, response interface{}) *Configuration {
	c, err := NewConfiguration(input, response)
	if err != nil {
		panic(err)
	}
	return c
}

// ConfigurationFromSpec builds a Configuration from a raw structure with
// optional "input", "response" and "requestType" entries.
func ConfigurationFromSpec(raw interface{}) (*Configuration, error) {
	spec, ok := options.From(raw)
	if !ok {
		return nil, &InvalidArgumentError{Message: fmt.Sprintf("unsupported configuration type %T", raw)}
	}

	var unknown []string
	spec.Each(func(k string, _ interface{}) bool {
		switch k {
		case "input", "response", "requestType":
		default:
			unknown = append(unknown, k)
		}
		return true
	})
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, &InvalidConfigurationError{Message: "unknown configuration keys " + strings.Join(unknown, ", ")}
	}

	in, _ := spec.Get("input")
	out, _ := spec.Get("response")
	c, err := NewConfiguration(in, out)
	if err != nil {
		return nil, err
	}
	if rt, ok := spec.Get("requestType"); ok && rt != nil {
		name, isString := rt.(string)
		if !isString {
			return nil, &InvalidConfigurationError{Message: fmt.Sprintf("requestType must be a string, got %T", rt)}
		}
		c.SetRequestTypeName(name)
	}
	return c, nil
}

// ParseProcessorSpec reads a processor specification:
//
//	nil or an empty map   no processor, no options
//	"name"                the processor, no options
//	{name: options}       the processor with its options (nil means none)
//	{a: ..., b: ...}      the composite processor with the whole map as options
//	[a, {b: options}]     the composite processor with steps a and b, in order
//
// The list form is also accepted as the options of {composite: [...]}.
func ParseProcessorSpec(spec interface{}) (string, *options.Map, error) {
	switch t := spec.(type) {
	case nil:
		return "", options.New(), nil
	case string:
		return t, options.New(), nil
	case []interface{}, []string:
		steps, err := compositeSteps(t)
		if err != nil {
			return "", nil, err
		}
		return processor.CompositeName, steps, nil
	}

	m, ok := options.From(spec)
	if !ok {
		return "", nil, fmt.Errorf("processor must be a name or a map, got %T", spec)
	}

	switch m.Len() {
	case 0:
		return "", options.New(), nil
	case 1:
		name := m.Keys()[0]
		v, _ := m.Get(name)
		if name == processor.CompositeName {
			switch v.(type) {
			case []interface{}, []string:
				steps, err := compositeSteps(v)
				if err != nil {
					return "", nil, err
				}
				return name, steps, nil
			}
		}
		opts, ok := options.From(v)
		if !ok {
			return "", nil, fmt.Errorf("options of processor %q must be a map, got %T", name, v)
		}
		return name, opts.Clone(), nil
	}
	return processor.CompositeName, m.Clone(), nil
}

// InputProcessorName returns the input processor name.
func (c *Configuration) InputProcessorName() string { return c.inputName }

// InputProcessorOptions returns a copy of the input processor options.
func (c *Configuration) InputProcessorOptions() *options.Map { return c.inputOptions.Clone() }

// ResponseProcessorName returns the response processor name.
func (c *Configuration) ResponseProcessorName() string { return c.responseName }

// ResponseProcessorOptions returns a copy of the response processor options.
func (c *Configuration) ResponseProcessorOptions() *options.Map { return c.responseOptions.Clone() }

// RequestTypeName returns the assigned request type name, if any.
func (c *Configuration) RequestTypeName() string { return c.requestTypeName }

// SetInputProcessor sets the input processor name and options.
func (c *Configuration) SetInputProcessor(name string, opts *options.Map) {
	c.inputName = name
	c.inputOptions = opts.Clone()
}

// SetInputProcessorName sets only the input processor name.
func (c *Configuration) SetInputProcessorName(name string) { c.inputName = name }

// SetInputProcessorOptions sets only the input processor options.
func (c *Configuration) SetInputProcessorOptions(opts *options.Map) { c.inputOptions = opts.Clone() }

// SetResponseProcessor sets the response processor name and options.
func (c *Configuration) SetResponseProcessor(name string, opts *options.Map) {
	c.responseName = name
	c.responseOptions = opts.Clone()
}

// SetResponseProcessorName sets only the response processor name.
func (c *Configuration) SetResponseProcessorName(name string) { c.responseName = name }

// SetResponseProcessorOptions sets only the response processor options.
func (c *Configuration) SetResponseProcessorOptions(opts *options.Map) {
	c.responseOptions = opts.Clone()
}

// SetRequestTypeName assigns a request type by registered name.
func (c *Configuration) SetRequestTypeName(name string) { c.requestTypeName = name }

// Clone returns a copy with its own option maps. Nested option values are shared.
func (c *Configuration) Clone() *Configuration {
	if c == nil {
		return &Configuration{}
	}
	return &Configuration{
		inputName:       c.inputName,
		inputOptions:    c.inputOptions.Clone(),
		responseName:    c.responseName,
		responseOptions: c.responseOptions.Clone(),
		requestTypeName: c.requestTypeName,
	}
}

// Spec returns the configuration in the raw form ConfigurationFromSpec reads.
func (c *Configuration) Spec() *options.Map {
	out := options.New()
	if v := processorSpec(c.inputName, c.inputOptions); v != nil {
		out.Set("input", v)
	}
	if v := processorSpec(c.responseName, c.responseOptions); v != nil {
		out.Set("response", v)
	}
	if c.requestTypeName != "" {
		out.Set("requestType", c.requestTypeName)
	}
	return out
}

func processorSpec(name string, opts *options.Map) interface{} {
	switch {
	case name == "" && opts.Len() == 0:
		return nil
	case name == processor.CompositeName && opts.Len() > 1:
		return opts.Clone()
	case opts.Len() == 0:
		return name
	}
	return options.New(options.Pair{Key: name, Value: opts.Clone()})
}

// compositeSteps turns a list of step names or single-key {name: options}
// maps into composite options. A step may appear once.
func compositeSteps(list interface{}) (*options.Map, error) {
	var items []interface{}
	switch t := list.(type) {
	case []string:
		for _, name := range t {
			items = append(items, name)
		}
	case []interface{}:
		items = t
	}

	steps := options.New()
	for i, item := range items {
		var (
			name string
			opts interface{}
		)
		switch t := item.(type) {
		case string:
			name = t
		default:
			m, ok := options.From(item)
			if !ok || m.Len() != 1 {
				return nil, fmt.Errorf("composite step %d must be a name or a single {name: options} map, got %T", i, item)
			}
			name = m.Keys()[0]
			opts, _ = m.Get(name)
			if _, ok := options.From(opts); !ok {
				return nil, fmt.Errorf("options of composite step %q must be a map, got %T", name, opts)
			}
		}
		if name == "" {
			return nil, fmt.Errorf("composite step %d has no name", i)
		}
		if _, dup := steps.Get(name); dup {
			return nil, fmt.Errorf("composite step %q listed twice", name)
		}
		steps.Set(name, opts)
	}
	return steps, nil
}
