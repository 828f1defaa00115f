package execution

import (
	"errors"
	"fmt"

	"github.com/morezero/usecase-executor/pkg/processor"
	"github.com/morezero/usecase-executor/pkg/usecase"
)

// UseCaseNotFoundError is returned when no use case is registered under a name.
type UseCaseNotFoundError struct {
	Name string
	Err  error
}

func (e *UseCaseNotFoundError) Error() string {
	return fmt.Sprintf("use case %q not found", e.Name)
}

func (e *UseCaseNotFoundError) Unwrap() error {
	return e.Err
}

// InvalidConfigurationError reports an undefined context or a malformed
// processor specification.
type InvalidConfigurationError struct {
	Message string
	Err     error
}

func (e *InvalidConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid configuration: %s: %v", e.Message, e.Err)
	}
	return "invalid configuration: " + e.Message
}

func (e *InvalidConfigurationError) Unwrap() error {
	return e.Err
}

// InvalidArgumentError is returned when a context specification has an
// unsupported type.
type InvalidArgumentError struct {
	Message string
}

func (e *InvalidArgumentError) Error() string {
	return "invalid argument: " + e.Message
}

// IsConfigurationError reports whether err signals a setup defect (unknown
// names, malformed configuration, missing options) rather than a runtime
// outcome. Such errors always reach the caller of Execute.
func IsConfigurationError(err error) bool {
	var (
		useCaseNotFound  *UseCaseNotFoundError
		invalidConfig    *InvalidConfigurationError
		invalidArg       *InvalidArgumentError
		inputNotFound    *processor.InputProcessorNotFoundError
		responseNotFound *processor.ResponseProcessorNotFoundError
		emptyComposite   *processor.EmptyCompositeError
		missingOption    *processor.MissingOptionError
		requestType      *usecase.RequestTypeNotFoundError
	)
	return errors.As(err, &useCaseNotFound) ||
		errors.As(err, &invalidConfig) ||
		errors.As(err, &invalidArg) ||
		errors.As(err, &inputNotFound) ||
		errors.As(err, &responseNotFound) ||
		errors.As(err, &emptyComposite) ||
		errors.As(err, &missingOption) ||
		errors.As(err, &requestType)
}
