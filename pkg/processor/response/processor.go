// Package response contains the response processors that turn a use-case
// result, or its error, into output.
package response

import (
	"context"

	"github.com/morezero/usecase-executor/pkg/options"
)

// Processor renders the outcome of a use case. Exactly one of its methods is
// called per invocation. HandleError may translate the error into output or
// return an error to propagate.
type Processor interface {
	ProcessResponse(ctx context.Context, response interface{}, opts *options.Map) (interface{}, error)
	HandleError(ctx context.Context, err error, opts *options.Map) (interface{}, error)
}

// Lookup finds response processors by name.
type Lookup interface {
	Get(name string) (Processor, error)
}

// Identity returns the response unchanged and re-raises errors.
type Identity struct{}

// ProcessResponse implements Processor.
func (Identity) ProcessResponse(ctx context.Context, response interface{}, opts *options.Map) (interface{}, error) {
	return response, nil
}

// HandleError implements Processor.
func (Identity) HandleError(ctx context.Context, err error, opts *options.Map) (interface{}, error) {
	return nil, err
}
