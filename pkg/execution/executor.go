// Package execution runs use cases through their configured input and
// response processors.
package execution

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/morezero/usecase-executor/pkg/options"
	"github.com/morezero/usecase-executor/pkg/processor"
	"github.com/morezero/usecase-executor/pkg/processor/input"
	"github.com/morezero/usecase-executor/pkg/processor/response"
	"github.com/morezero/usecase-executor/pkg/registry"
	"github.com/morezero/usecase-executor/pkg/semver"
	"github.com/morezero/usecase-executor/pkg/usecase"
)

const logPrefix = "execution:executor"

// Outcome classifies how an invocation ended.
type Outcome string

const (
	// OutcomeSuccess means the use case succeeded and its response was processed.
	OutcomeSuccess Outcome = "success"
	// OutcomeHandled means an error was turned into output by the response processor.
	OutcomeHandled Outcome = "handled"
	// OutcomeFailed means Execute returned an error.
	OutcomeFailed Outcome = "failed"
)

// Record describes one finished invocation.
type Record struct {
	// UseCase is the name Execute was called with.
	UseCase string
	// Key is the registered name that ran, e.g. "greet@1.2.0".
	Key               string
	InputProcessor    string
	ResponseProcessor string
	StartedAt         time.Time
	Duration          time.Duration
	Outcome           Outcome
	Err               error
}

// Observer is notified after every invocation. Observe runs on the caller's
// goroutine and must not block.
type Observer interface {
	Observe(ctx context.Context, rec Record)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, rec Record)

// Observe calls f.
func (f ObserverFunc) Observe(ctx context.Context, rec Record) { f(ctx, rec) }

// Option configures an Executor.
type Option func(*Executor)

// WithObserver adds an observer.
func WithObserver(o Observer) Option {
	return func(e *Executor) { e.observers = append(e.observers, o) }
}

// WithRequestResolver replaces the request-type resolver.
func WithRequestResolver(r *usecase.RequestResolver) Option {
	return func(e *Executor) { e.requests = r }
}

// WithResolverConfig sets the initial contexts.
func WithResolverConfig(cfg ResolverConfig) Option {
	return func(e *Executor) { e.resolverConfig = cfg }
}

// Executor holds the use case, processor and context registries and runs
// invocations against them.
type Executor struct {
	useCases  *registry.Registry[*usecase.Binding]
	inputs    *registry.Registry[input.Processor]
	responses *registry.Registry[response.Processor]
	versions  *semver.Index

	contexts       *ContextResolver
	resolverConfig ResolverConfig
	requests       *usecase.RequestResolver
	observers      []Observer

	mu      sync.RWMutex
	configs map[string]*Configuration
}

// NewExecutor creates an Executor with the composite input and response
// processors registered.
func NewExecutor(opts ...Option) *Executor {
	e := &Executor{
		useCases:  registry.New[*usecase.Binding]("use case"),
		inputs:    registry.New[input.Processor]("input processor"),
		responses: registry.New[response.Processor]("response processor"),
		versions:  semver.NewIndex(),
		configs:   make(map[string]*Configuration),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.requests == nil {
		e.requests = usecase.NewRequestResolver(nil)
	}
	e.contexts = NewContextResolver(e.inputs, e.responses, e.resolverConfig)

	e.inputs.Set(processor.CompositeName, input.NewComposite(e.inputs))
	e.responses.Set(processor.CompositeName, response.NewComposite(e.responses))
	return e
}

// Execute runs the named use case with its own configuration.
func (e *Executor) Execute(ctx context.Context, name string, in interface{}) (interface{}, error) {
	return e.ExecuteIn(ctx, name, in, nil)
}

// ExecuteIn runs the named use case. A non-nil override (context name, raw
// configuration or *Configuration) replaces the use case's configuration.
//
// Errors that signal configuration defects are returned as they are. Other
// errors from input processing, and errors from the use case, are passed to
// the response processor's HandleError.
func (e *Executor) ExecuteIn(ctx context.Context, name string, in interface{}, override interface{}) (interface{}, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	rec := Record{UseCase: name, StartedAt: time.Now()}
	out, err := e.execute(ctx, name, in, override, &rec)

	rec.Duration = time.Since(rec.StartedAt)
	if err != nil {
		rec.Outcome = OutcomeFailed
		rec.Err = err
	}
	for _, o := range e.observers {
		o.Observe(ctx, rec)
	}
	return out, err
}

func (e *Executor) execute(ctx context.Context, name string, in interface{}, override interface{}, rec *Record) (interface{}, error) {
	key, binding, err := e.lookupUseCase(name)
	if err != nil {
		return nil, err
	}
	rec.Key = key

	cfg := e.configuration(key)
	var spec interface{} = cfg
	if override != nil {
		spec = override
	}
	resolved, err := e.contexts.ResolveContext(spec)
	if err != nil {
		return nil, err
	}
	rec.InputProcessor = resolved.InputProcessorName
	rec.ResponseProcessor = resolved.ResponseProcessorName

	request, err := e.newRequest(key, cfg, binding)
	if err != nil {
		return nil, err
	}

	ctx = processor.WithInput(ctx, in)
	if err := resolved.InputProcessor.InitializeRequest(ctx, request.Interface(), in, resolved.InputOptions.Clone()); err != nil {
		if IsConfigurationError(err) {
			return nil, err
		}
		return e.handleError(ctx, resolved, err, rec)
	}

	resp, err := binding.Invoke(ctx, request)
	if err != nil {
		return e.handleError(ctx, resolved, err, rec)
	}

	out, err := resolved.ResponseProcessor.ProcessResponse(ctx, resp, resolved.ResponseOptions.Clone())
	if err != nil {
		return nil, err
	}
	rec.Outcome = OutcomeSuccess
	return out, nil
}

func (e *Executor) handleError(ctx context.Context, resolved *ResolvedContext, cause error, rec *Record) (interface{}, error) {
	slog.Debug(fmt.Sprintf("%s - %s handling error: %v", logPrefix, resolved.ResponseProcessorName, cause))
	out, err := resolved.ResponseProcessor.HandleError(ctx, cause, resolved.ResponseOptions.Clone())
	if err != nil {
		return nil, err
	}
	rec.Outcome = OutcomeHandled
	return out, nil
}

// lookupUseCase finds the registered key for name, resolving versions.
func (e *Executor) lookupUseCase(name string) (string, *usecase.Binding, error) {
	if b, err := e.useCases.Get(name); err == nil {
		return name, b, nil
	}
	ref, err := semver.ParseRef(name)
	if err != nil {
		return "", nil, &UseCaseNotFoundError{Name: name, Err: err}
	}
	key, ok := e.versions.Resolve(ref)
	if !ok {
		return "", nil, &UseCaseNotFoundError{Name: name}
	}
	b, err := e.useCases.Get(key)
	if err != nil {
		return "", nil, &UseCaseNotFoundError{Name: name, Err: err}
	}
	return key, b, nil
}

func (e *Executor) newRequest(key string, cfg *Configuration, b *usecase.Binding) (reflect.Value, error) {
	var (
		t   reflect.Type
		err error
	)
	if typeName := cfg.RequestTypeName(); typeName != "" {
		t, err = e.requests.ResolveNamed(key, typeName, b)
	} else {
		t, err = e.requests.Resolve(key, b)
	}
	if err != nil {
		return reflect.Value{}, err
	}
	return usecase.NewRequest(t), nil
}

// configuration returns a copy of the configuration assigned to key, falling
// back to the unversioned name.
func (e *Executor) configuration(key string) *Configuration {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if c, ok := e.configs[key]; ok {
		return c.Clone()
	}
	if ref, err := semver.ParseRef(key); err == nil && ref.HasVersion() {
		if c, ok := e.configs[ref.Name]; ok {
			return c.Clone()
		}
	}
	return &Configuration{}
}

func (e *Executor) updateConfiguration(useCase string, fn func(c *Configuration)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, ok := e.configs[useCase]
	if !ok {
		c = &Configuration{}
		e.configs[useCase] = c
	}
	fn(c)
}

// InputFromContext returns the raw input of the running invocation. Processors
// use it to see the input that produced the request.
func InputFromContext(ctx context.Context) (interface{}, bool) {
	return processor.InputFromContext(ctx)
}

// SetUseCase registers handler under name. A name like "greet@1.2.0" also
// makes the version reachable as "greet" or "greet@^1".
func (e *Executor) SetUseCase(name string, handler interface{}) error {
	b, err := usecase.Bind(handler)
	if err != nil {
		return err
	}
	if _, err := e.versions.Add(name); err != nil {
		return err
	}
	e.useCases.Set(name, b)
	return nil
}

// SetInputProcessor registers an input processor.
func (e *Executor) SetInputProcessor(name string, p input.Processor) {
	e.inputs.Set(name, p)
}

// SetResponseProcessor registers a response processor.
func (e *Executor) SetResponseProcessor(name string, p response.Processor) {
	e.responses.Set(name, p)
}

// AssignInputProcessor sets the input processor of a use case. The use case
// does not need to be registered yet.
func (e *Executor) AssignInputProcessor(useCase, name string, opts *options.Map) {
	e.updateConfiguration(useCase, func(c *Configuration) { c.SetInputProcessor(name, opts) })
}

// AssignResponseProcessor sets the response processor of a use case.
func (e *Executor) AssignResponseProcessor(useCase, name string, opts *options.Map) {
	e.updateConfiguration(useCase, func(c *Configuration) { c.SetResponseProcessor(name, opts) })
}

// AssignRequestType sets the request type of a use case by registered name.
func (e *Executor) AssignRequestType(useCase, typeName string) {
	e.updateConfiguration(useCase, func(c *Configuration) { c.SetRequestTypeName(typeName) })
}

// Configure replaces the whole configuration of a use case.
func (e *Executor) Configure(useCase string, cfg *Configuration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.configs[useCase] = cfg.Clone()
}

// Configuration returns a copy of the configuration assigned to useCase.
func (e *Executor) Configuration(useCase string) *Configuration {
	return e.configuration(useCase)
}

// SetDefaultInputProcessor changes the input processor of the default context.
func (e *Executor) SetDefaultInputProcessor(name string, opts *options.Map) {
	e.contexts.SetDefaultInputProcessor(name, opts)
}

// SetDefaultResponseProcessor changes the response processor of the default
// context.
func (e *Executor) SetDefaultResponseProcessor(name string, opts *options.Map) {
	e.contexts.SetDefaultResponseProcessor(name, opts)
}

// AddContextDefinition defines a named context.
func (e *Executor) AddContextDefinition(name string, input, response interface{}) error {
	return e.contexts.AddContextDefinition(name, input, response)
}

// SetDefaultContextName designates the default context.
func (e *Executor) SetDefaultContextName(name string) {
	e.contexts.SetDefaultContextName(name)
}

// RegisterRequestType makes sample's type available to AssignRequestType
// under its qualified name and the given aliases.
func (e *Executor) RegisterRequestType(sample interface{}, aliases ...string) {
	t := reflect.TypeOf(sample)
	if t == nil {
		return
	}
	types := e.requests.Types()
	types.Register("", t)
	for _, alias := range aliases {
		types.Register(alias, t)
	}
}

// Contexts returns the context resolver.
func (e *Executor) Contexts() *ContextResolver {
	return e.contexts
}

// UseCases returns the registered use-case names.
func (e *Executor) UseCases() []string {
	return e.useCases.Names()
}

// HasUseCase reports whether name resolves to a registered use case.
func (e *Executor) HasUseCase(name string) bool {
	_, _, err := e.lookupUseCase(name)
	return err == nil
}

// InputProcessors returns the registered input processor names.
func (e *Executor) InputProcessors() []string {
	return e.inputs.Names()
}

// ResponseProcessors returns the registered response processor names.
func (e *Executor) ResponseProcessors() []string {
	return e.responses.Names()
}
