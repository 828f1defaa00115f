package usecase

import (
	"fmt"
	"log/slog"
	"reflect"
	"strings"
)

const resolverLogPrefix = "usecase:resolver"

// Mode decides what happens when no strategy resolves a request type.
type Mode int

const (
	// Strict fails with RequestTypeNotFoundError.
	Strict Mode = iota
	// Permissive falls back to Request.
	Permissive
)

// ParseMode maps "strict" / "permissive" to a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "strict":
		return Strict, nil
	case "permissive":
		return Permissive, nil
	}
	return Strict, fmt.Errorf("%s - unknown request resolution mode %q", resolverLogPrefix, s)
}

func (m Mode) String() string {
	if m == Permissive {
		return "permissive"
	}
	return "strict"
}

// Strategy is one step of request-type resolution. It returns ok=false to pass
// to the next strategy, or an error to stop resolution.
type Strategy interface {
	ResolveRequestType(b *Binding) (t reflect.Type, ok bool, err error)
}

// StrategyFunc adapts a function to Strategy.
type StrategyFunc func(b *Binding) (reflect.Type, bool, error)

// ResolveRequestType calls f.
func (f StrategyFunc) ResolveRequestType(b *Binding) (reflect.Type, bool, error) {
	return f(b)
}

// DeclaredTypeStrategy uses the concrete parameter type of Execute.
type DeclaredTypeStrategy struct{}

// ResolveRequestType implements Strategy.
func (DeclaredTypeStrategy) ResolveRequestType(b *Binding) (reflect.Type, bool, error) {
	t, ok := b.DeclaredType()
	return t, ok, nil
}

// NamedTypeStrategy uses the name returned by a RequestTypeNamer handler,
// looked up relative to the handler's package. A name that does not resolve
// is an error, not a pass.
type NamedTypeStrategy struct {
	Types *TypeRegistry
}

// ResolveRequestType implements Strategy.
func (s NamedTypeStrategy) ResolveRequestType(b *Binding) (reflect.Type, bool, error) {
	namer, ok := b.Handler().(RequestTypeNamer)
	if !ok {
		return nil, false, nil
	}
	name := namer.RequestTypeName()
	if name == "" {
		return nil, false, nil
	}
	if name == DefaultRequestTypeName {
		return reflect.TypeOf(Request{}), true, nil
	}

	candidates := namedCandidates(handlerPkgPath(b.Handler()), name)
	for _, candidate := range candidates {
		if t, err := s.Types.Lookup(candidate); err == nil {
			return t, true, nil
		}
	}
	return nil, false, &RequestTypeNotFoundError{
		TypeName: name,
		Reason:   fmt.Sprintf("no registered type matches %s", strings.Join(candidates, ", ")),
	}
}

func namedCandidates(pkg, name string) []string {
	if pkg == "" || strings.Contains(name, "/") {
		return []string{name}
	}
	return []string{pkg + "/request." + name, pkg + "." + name, name}
}

// ConventionStrategy guesses "<handler package>.<Handler>Request", with a
// trailing "UseCase" trimmed from the handler type name. It never fails; a
// miss passes to the next strategy.
type ConventionStrategy struct {
	Types *TypeRegistry
}

// ResolveRequestType implements Strategy.
func (s ConventionStrategy) ResolveRequestType(b *Binding) (reflect.Type, bool, error) {
	ht := reflect.TypeOf(b.Handler())
	for ht.Kind() == reflect.Pointer {
		ht = ht.Elem()
	}
	if ht.Name() == "" || ht.PkgPath() == "" {
		return nil, false, nil
	}
	base := strings.TrimSuffix(ht.Name(), "UseCase")
	for _, candidate := range []string{
		ht.PkgPath() + "." + base + "Request",
		ht.PkgPath() + "/request." + base + "Request",
	} {
		if t, err := s.Types.Lookup(candidate); err == nil {
			return t, true, nil
		}
	}
	return nil, false, nil
}

// NoParameterStrategy gives handlers whose Execute takes no request an empty
// struct request.
type NoParameterStrategy struct{}

// ResolveRequestType implements Strategy.
func (NoParameterStrategy) ResolveRequestType(b *Binding) (reflect.Type, bool, error) {
	if b.Parameter() != nil {
		return nil, false, nil
	}
	return reflect.TypeOf(struct{}{}), true, nil
}

// RequestResolver determines the request type of a use case by running its
// strategies in order.
type RequestResolver struct {
	types      *TypeRegistry
	strategies []Strategy
	mode       Mode
}

// ResolverOption configures a RequestResolver.
type ResolverOption func(*RequestResolver)

// WithMode sets the fallback mode.
func WithMode(mode Mode) ResolverOption {
	return func(r *RequestResolver) { r.mode = mode }
}

// WithConventionStrategy enables the naming-convention guess.
func WithConventionStrategy() ResolverOption {
	return func(r *RequestResolver) {
		r.strategies = insertBeforeLast(r.strategies, ConventionStrategy{Types: r.types})
	}
}

// WithStrategies replaces the strategy list.
func WithStrategies(strategies ...Strategy) ResolverOption {
	return func(r *RequestResolver) { r.strategies = strategies }
}

func insertBeforeLast(list []Strategy, s Strategy) []Strategy {
	if len(list) == 0 {
		return []Strategy{s}
	}
	out := make([]Strategy, 0, len(list)+1)
	out = append(out, list[:len(list)-1]...)
	out = append(out, s, list[len(list)-1])
	return out
}

// NewRequestResolver creates a resolver with the declared-type, named-type and
// no-parameter strategies, in Strict mode.
func NewRequestResolver(types *TypeRegistry, opts ...ResolverOption) *RequestResolver {
	if types == nil {
		types = NewTypeRegistry()
	}
	r := &RequestResolver{
		types: types,
		strategies: []Strategy{
			DeclaredTypeStrategy{},
			NamedTypeStrategy{Types: types},
			NoParameterStrategy{},
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Types returns the resolver's type registry.
func (r *RequestResolver) Types() *TypeRegistry {
	return r.types
}

// Mode returns the fallback mode.
func (r *RequestResolver) Mode() Mode {
	return r.mode
}

// Resolve returns the request type for the use case bound as b.
func (r *RequestResolver) Resolve(useCase string, b *Binding) (reflect.Type, error) {
	for _, s := range r.strategies {
		t, ok, err := s.ResolveRequestType(b)
		if err != nil {
			return nil, withUseCase(err, useCase)
		}
		if !ok {
			continue
		}
		if !b.Accepts(t) {
			return nil, &RequestTypeNotFoundError{
				UseCase:  useCase,
				TypeName: QualifiedName(t),
				Reason:   fmt.Sprintf("not assignable to %s parameter %s", EntryPoint, b.Parameter()),
			}
		}
		return t, nil
	}

	if r.mode == Permissive {
		t := reflect.TypeOf(Request{})
		if b.Accepts(t) {
			slog.Debug(fmt.Sprintf("%s - use case %s falls back to %s", resolverLogPrefix, useCase, QualifiedName(t)))
			return t, nil
		}
	}
	return nil, &RequestTypeNotFoundError{
		UseCase: useCase,
		Reason:  fmt.Sprintf("cannot determine request type for %T", b.Handler()),
	}
}

// ResolveNamed looks up an explicitly assigned request type name.
func (r *RequestResolver) ResolveNamed(useCase, name string, b *Binding) (reflect.Type, error) {
	t, err := r.types.Lookup(name)
	if err != nil {
		return nil, &RequestTypeNotFoundError{UseCase: useCase, TypeName: name, Err: err}
	}
	if b != nil && !b.Accepts(t) {
		return nil, &RequestTypeNotFoundError{
			UseCase:  useCase,
			TypeName: name,
			Reason:   fmt.Sprintf("not assignable to %s parameter %s", EntryPoint, b.Parameter()),
		}
	}
	return t, nil
}

// NewRequest instantiates t and returns the pointer.
func NewRequest(t reflect.Type) reflect.Value {
	return reflect.New(t)
}

func withUseCase(err error, useCase string) error {
	if rt, ok := err.(*RequestTypeNotFoundError); ok && rt.UseCase == "" {
		cp := *rt
		cp.UseCase = useCase
		return &cp
	}
	return err
}

func handlerPkgPath(handler interface{}) string {
	t := reflect.TypeOf(handler)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.PkgPath()
}
