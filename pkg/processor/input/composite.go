package input

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/morezero/usecase-executor/pkg/options"
	"github.com/morezero/usecase-executor/pkg/processor"
)

const compositeLogPrefix = "input:composite"

// Composite runs several registered input processors on the same request, in
// the order their names appear in the options. See processor.SplitSteps for
// the option layout.
type Composite struct {
	processors Lookup
}

// NewComposite creates a Composite resolving step names through processors.
func NewComposite(processors Lookup) *Composite {
	return &Composite{processors: processors}
}

// InitializeRequest implements Processor.
func (c *Composite) InitializeRequest(ctx context.Context, request interface{}, input interface{}, opts *options.Map) error {
	steps := processor.SplitSteps(opts)
	if len(steps) == 0 {
		return &processor.EmptyCompositeError{Kind: "input"}
	}

	for _, step := range steps {
		p, err := c.processors.Get(step.Name)
		if err != nil {
			return &processor.InputProcessorNotFoundError{Name: step.Name, Err: err}
		}
		slog.Debug(fmt.Sprintf("%s - running step %s", compositeLogPrefix, step.Name))
		if err := p.InitializeRequest(ctx, request, input, step.Options); err != nil {
			return err
		}
	}
	return nil
}
