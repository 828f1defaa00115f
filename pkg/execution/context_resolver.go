package execution

import (
	"fmt"
	"sort"
	"sync"

	"github.com/morezero/usecase-executor/pkg/options"
	"github.com/morezero/usecase-executor/pkg/processor"
	"github.com/morezero/usecase-executor/pkg/processor/input"
	"github.com/morezero/usecase-executor/pkg/processor/response"
)

// DefaultContextName is the name of the context defined by every resolver.
const DefaultContextName = "default"

// ResolverConfig is the initial state of a ContextResolver.
type ResolverConfig struct {
	// DefaultContextName names the context that fills unset fields.
	DefaultContextName string
	// Contexts are named context definitions added on top of the built-in
	// "default" context ({input: default, response: default}).
	Contexts map[string]*Configuration
}

// ResolvedContext is the processors and options one invocation runs with.
type ResolvedContext struct {
	InputProcessorName    string
	InputProcessor        input.Processor
	InputOptions          *options.Map
	ResponseProcessorName string
	ResponseProcessor     response.Processor
	ResponseOptions       *options.Map
}

// ContextResolver turns a context specification into processor instances and
// options, filling gaps from the default context.
type ContextResolver struct {
	inputs    input.Lookup
	responses response.Lookup

	mu          sync.RWMutex
	defaultName string
	contexts    map[string]*Configuration
}

// NewContextResolver creates a resolver over the given processor registries.
func NewContextResolver(inputs input.Lookup, responses response.Lookup, cfg ResolverConfig) *ContextResolver {
	r := &ContextResolver{
		inputs:      inputs,
		responses:   responses,
		defaultName: DefaultContextName,
		contexts: map[string]*Configuration{
			DefaultContextName: MustConfiguration("default", "default"),
		},
	}
	if cfg.DefaultContextName != "" {
		r.defaultName = cfg.DefaultContextName
	}
	for name, c := range cfg.Contexts {
		r.contexts[name] = c.Clone()
	}
	return r
}

// ResolveContext resolves spec, which is a context name, a raw configuration
// structure, or a Configuration.
//
// A context name is used as defined. Any other spec has its input and response
// options merged over the default context's options (spec wins per key).
// Unset processor names, and options left empty, are then taken from the
// default context.
func (r *ContextResolver) ResolveContext(spec interface{}) (*ResolvedContext, error) {
	def, err := r.DefaultConfiguration()
	if err != nil {
		return nil, err
	}

	var cfg *Configuration
	switch s := spec.(type) {
	case string:
		named, err := r.context(s)
		if err != nil {
			return nil, err
		}
		cfg = named
	case *Configuration:
		if s == nil {
			return nil, &InvalidArgumentError{Message: "nil configuration"}
		}
		cfg = mergeWithDefault(s.Clone(), def)
	case Configuration:
		cfg = mergeWithDefault(s.Clone(), def)
	case *options.Map, options.Map, map[string]interface{}:
		parsed, err := ConfigurationFromSpec(s)
		if err != nil {
			return nil, err
		}
		cfg = mergeWithDefault(parsed, def)
	default:
		return nil, &InvalidArgumentError{Message: fmt.Sprintf("unsupported context specification %T", spec)}
	}

	resolved := &ResolvedContext{
		InputProcessorName:    firstNonEmpty(cfg.inputName, def.inputName),
		InputOptions:          nonEmptyOptions(cfg.inputOptions, def.inputOptions),
		ResponseProcessorName: firstNonEmpty(cfg.responseName, def.responseName),
		ResponseOptions:       nonEmptyOptions(cfg.responseOptions, def.responseOptions),
	}

	in, err := r.inputs.Get(resolved.InputProcessorName)
	if err != nil {
		return nil, &processor.InputProcessorNotFoundError{Name: resolved.InputProcessorName, Err: err}
	}
	out, err := r.responses.Get(resolved.ResponseProcessorName)
	if err != nil {
		return nil, &processor.ResponseProcessorNotFoundError{Name: resolved.ResponseProcessorName, Err: err}
	}
	resolved.InputProcessor = in
	resolved.ResponseProcessor = out
	return resolved, nil
}

func mergeWithDefault(cfg, def *Configuration) *Configuration {
	cfg.inputOptions = options.Merge(def.inputOptions, cfg.inputOptions)
	cfg.responseOptions = options.Merge(def.responseOptions, cfg.responseOptions)
	return cfg
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func nonEmptyOptions(a, b *options.Map) *options.Map {
	if a.Len() > 0 {
		return a.Clone()
	}
	return b.Clone()
}

// AddContextDefinition defines (or replaces) a named context from an input
// and a response processor specification.
func (r *ContextResolver) AddContextDefinition(name string, input, response interface{}) error {
	c, err := NewConfiguration(input, response)
	if err != nil {
		return err
	}
	r.SetContext(name, c)
	return nil
}

// SetContext defines (or replaces) a named context.
func (r *ContextResolver) SetContext(name string, c *Configuration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.contexts[name] = c.Clone()
}

// SetDefaultContextName designates the default context. The name is checked
// when a context is resolved, so it may be defined afterwards.
func (r *ContextResolver) SetDefaultContextName(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaultName = name
}

// DefaultContextName returns the name of the default context.
func (r *ContextResolver) DefaultContextName() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultName
}

// DefaultConfiguration returns a copy of the default context.
func (r *ContextResolver) DefaultConfiguration() (*Configuration, error) {
	return r.context(r.DefaultContextName())
}

// SetDefaultInputProcessor changes the input processor of the default context.
func (r *ContextResolver) SetDefaultInputProcessor(name string, opts *options.Map) {
	r.updateDefault(func(c *Configuration) { c.SetInputProcessor(name, opts) })
}

// SetDefaultResponseProcessor changes the response processor of the default
// context.
func (r *ContextResolver) SetDefaultResponseProcessor(name string, opts *options.Map) {
	r.updateDefault(func(c *Configuration) { c.SetResponseProcessor(name, opts) })
}

func (r *ContextResolver) updateDefault(fn func(c *Configuration)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.contexts[r.defaultName]
	if !ok {
		c = &Configuration{}
	} else {
		c = c.Clone()
	}
	fn(c)
	r.contexts[r.defaultName] = c
}

// Context returns a copy of the named context.
func (r *ContextResolver) Context(name string) (*Configuration, bool) {
	c, err := r.context(name)
	return c, err == nil
}

// Contexts returns the defined context names, sorted.
func (r *ContextResolver) Contexts() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.contexts))
	for name := range r.contexts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *ContextResolver) context(name string) (*Configuration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.contexts[name]
	if !ok {
		return nil, &InvalidConfigurationError{Message: fmt.Sprintf("context %q has not been defined", name)}
	}
	return c.Clone(), nil
}
