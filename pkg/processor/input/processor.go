// Package input contains the input processors that initialize a use-case
// request from raw input.
package input

import (
	"context"

	"github.com/morezero/usecase-executor/pkg/options"
)

// Processor initializes a request from raw input. request is always a
// pointer to the resolved request type.
type Processor interface {
	InitializeRequest(ctx context.Context, request interface{}, input interface{}, opts *options.Map) error
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(ctx context.Context, request interface{}, input interface{}, opts *options.Map) error

// InitializeRequest calls f.
func (f ProcessorFunc) InitializeRequest(ctx context.Context, request interface{}, input interface{}, opts *options.Map) error {
	return f(ctx, request, input, opts)
}

// Lookup finds input processors by name.
type Lookup interface {
	Get(name string) (Processor, error)
}

// Default leaves the request untouched.
type Default struct{}

// InitializeRequest implements Processor.
func (Default) InitializeRequest(ctx context.Context, request interface{}, input interface{}, opts *options.Map) error {
	return nil
}
