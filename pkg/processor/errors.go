package processor

import "fmt"

// InputProcessorNotFoundError is returned when a configuration names an input
// processor that is not registered.
type InputProcessorNotFoundError struct {
	Name string
	Err  error
}

func (e *InputProcessorNotFoundError) Error() string {
	return fmt.Sprintf("input processor %q not found", e.Name)
}

func (e *InputProcessorNotFoundError) Unwrap() error {
	return e.Err
}

// ResponseProcessorNotFoundError is returned when a configuration names a
// response processor that is not registered.
type ResponseProcessorNotFoundError struct {
	Name string
	Err  error
}

func (e *ResponseProcessorNotFoundError) Error() string {
	return fmt.Sprintf("response processor %q not found", e.Name)
}

func (e *ResponseProcessorNotFoundError) Unwrap() error {
	return e.Err
}

// EmptyCompositeError is returned when a composite processor runs with no steps.
type EmptyCompositeError struct {
	// Kind is "input" or "response".
	Kind string
}

func (e *EmptyCompositeError) Error() string {
	return fmt.Sprintf("composite %s processor has no steps configured", e.Kind)
}

// MissingOptionError is returned when a processor requires an option that was
// not configured.
type MissingOptionError struct {
	Processor string
	Option    string
}

func (e *MissingOptionError) Error() string {
	return fmt.Sprintf("%s processor requires the %q option", e.Processor, e.Option)
}
