package response

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/morezero/usecase-executor/pkg/options"
	"github.com/morezero/usecase-executor/pkg/processor"
)

const compositeLogPrefix = "response:composite"

// Composite chains registered response processors. The chain carries either
// a value or an error: a value is passed to the next step's ProcessResponse,
// an error to its HandleError. If the chain ends holding an error, that error
// is returned.
type Composite struct {
	processors Lookup
}

// NewComposite creates a Composite resolving step names through processors.
func NewComposite(processors Lookup) *Composite {
	return &Composite{processors: processors}
}

// ProcessResponse implements Processor.
func (c *Composite) ProcessResponse(ctx context.Context, response interface{}, opts *options.Map) (interface{}, error) {
	return c.run(ctx, response, nil, opts)
}

// HandleError implements Processor.
func (c *Composite) HandleError(ctx context.Context, err error, opts *options.Map) (interface{}, error) {
	return c.run(ctx, nil, err, opts)
}

func (c *Composite) run(ctx context.Context, value interface{}, err error, opts *options.Map) (interface{}, error) {
	steps := processor.SplitSteps(opts)
	if len(steps) == 0 {
		return nil, &processor.EmptyCompositeError{Kind: "response"}
	}

	for _, step := range steps {
		p, lookupErr := c.processors.Get(step.Name)
		if lookupErr != nil {
			return nil, &processor.ResponseProcessorNotFoundError{Name: step.Name, Err: lookupErr}
		}
		if err != nil {
			slog.Debug(fmt.Sprintf("%s - step %s handling error", compositeLogPrefix, step.Name))
			value, err = p.HandleError(ctx, err, step.Options)
		} else {
			value, err = p.ProcessResponse(ctx, value, step.Options)
		}
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}
