package processor

import "context"

type inputKey struct{}

// WithInput returns a context carrying the raw input of an invocation.
func WithInput(ctx context.Context, input interface{}) context.Context {
	return context.WithValue(ctx, inputKey{}, input)
}

// InputFromContext returns the raw input attached with WithInput.
func InputFromContext(ctx context.Context) (interface{}, bool) {
	if ctx == nil {
		return nil, false
	}
	v := ctx.Value(inputKey{})
	if v == nil {
		return nil, false
	}
	return v, true
}
