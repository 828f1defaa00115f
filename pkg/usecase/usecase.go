// Package usecase defines the use-case contract, the default request type and
// the request-type resolution used to build a request for each invocation.
//
// A use case is any value exposing a method of the form
//
//	Execute([ctx context.Context,] [request R]) ([response T,] error)
//
// (see Bind). The request type comes from R when it is concrete. A handler
// whose R is an interface must name its type through RequestTypeNamer, have
// one assigned in its configuration, or run under a Permissive resolver;
// Strict resolution rejects it.
package usecase

import (
	"context"
	"sort"
)

// Func adapts a typed function to a use case whose request type is Req.
type Func[Req any, Resp any] func(ctx context.Context, request *Req) (Resp, error)

// Execute calls f.
func (f Func[Req, Resp]) Execute(ctx context.Context, request *Req) (Resp, error) {
	return f(ctx, request)
}

// RequestTypeNamer lets a handler name its request type instead of declaring
// it in the Execute signature. The reserved name "Request" selects Request.
type RequestTypeNamer interface {
	RequestTypeName() string
}

// DefaultRequestTypeName is the reserved name of the default request type.
const DefaultRequestTypeName = "Request"

// Request is the default request type: a bag of named values filled by input
// processors when a use case does not declare a request struct.
type Request struct {
	values map[string]interface{}
}

// Set stores a value.
func (r *Request) Set(name string, value interface{}) {
	if r.values == nil {
		r.values = make(map[string]interface{})
	}
	r.values[name] = value
}

// Get returns a value.
func (r *Request) Get(name string) (interface{}, bool) {
	v, ok := r.values[name]
	return v, ok
}

// Names returns the stored names, sorted.
func (r *Request) Names() []string {
	names := make([]string, 0, len(r.values))
	for name := range r.values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Values returns a copy of all stored values.
func (r *Request) Values() map[string]interface{} {
	out := make(map[string]interface{}, len(r.values))
	for k, v := range r.values {
		out[k] = v
	}
	return out
}
