package response

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/morezero/usecase-executor/pkg/options"
	"github.com/morezero/usecase-executor/pkg/usecase"
)

const jsonLogPrefix = "response:json"

// DefaultErrorStatus is the status of an alternative course that carries no
// HTTP error code of its own.
const DefaultErrorStatus = http.StatusNotFound

const jsonContentType = "application/json"

// JSON renders responses as JSON HTTP output.
//
// Options:
//   - append_on_success: object merged under a successful response object
//     (response fields win)
//   - append_on_error: object merged under the {code, message} error body
//   - http_status_code: status used for alternative courses
//
// Without http_status_code an alternative course uses its own code when that
// is an HTTP error status, else DefaultErrorStatus. Other errors are re-raised.
type JSON struct{}

// ProcessResponse implements Processor.
func (JSON) ProcessResponse(ctx context.Context, response interface{}, opts *options.Map) (interface{}, error) {
	body, err := json.Marshal(response)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to encode response: %w", jsonLogPrefix, err)
	}

	if appendOpts, ok := opts.Map("append_on_success"); ok && appendOpts.Len() > 0 {
		decoded, err := options.DecodeJSON(body)
		if err != nil {
			return nil, fmt.Errorf("%s - failed to re-read response: %w", jsonLogPrefix, err)
		}
		// only objects can take extra fields
		if obj, isObject := decoded.(*options.Map); isObject {
			body, err = json.Marshal(options.Merge(appendOpts, obj))
			if err != nil {
				return nil, fmt.Errorf("%s - failed to encode response: %w", jsonLogPrefix, err)
			}
		}
	}

	return NewHTTPOutput(http.StatusOK, jsonContentType, body), nil
}

// HandleError implements Processor.
func (JSON) HandleError(ctx context.Context, err error, opts *options.Map) (interface{}, error) {
	alt, ok := usecase.AsAlternativeCourse(err)
	if !ok {
		return nil, err
	}

	payload := options.New(
		options.Pair{Key: "code", Value: alt.Code},
		options.Pair{Key: "message", Value: alt.Message},
	)
	if appendOpts, ok := opts.Map("append_on_error"); ok {
		payload = options.Merge(appendOpts, payload)
	}

	body, encErr := json.Marshal(payload)
	if encErr != nil {
		return nil, fmt.Errorf("%s - failed to encode error: %w", jsonLogPrefix, encErr)
	}
	return NewHTTPOutput(errorStatus(alt, opts), jsonContentType, body), nil
}

func errorStatus(alt *usecase.AlternativeCourseError, opts *options.Map) int {
	if status, ok := opts.Int("http_status_code"); ok {
		return status
	}
	if alt.Code >= 400 && alt.Code <= 599 {
		return alt.Code
	}
	return DefaultErrorStatus
}
