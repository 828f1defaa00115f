// Package dispatcher routes incoming COMMS messages to use-case executions.
package dispatcher

import "encoding/json"

// ExecuteRequest is the JSON envelope for incoming COMMS execution requests.
type ExecuteRequest struct {
	ID      string `json:"id"`
	UseCase string `json:"useCase"`
	// Input is handed to the input processor, objects decoded in key order.
	Input json.RawMessage `json:"input,omitempty"`
	// Context is an optional context name or configuration object that
	// replaces the use case's own configuration.
	Context json.RawMessage    `json:"context,omitempty"`
	Ctx     *InvocationContext `json:"ctx,omitempty"`
}

// ExecuteResponse is the JSON envelope for COMMS execution responses.
type ExecuteResponse struct {
	ID     string       `json:"id"`
	Ok     bool         `json:"ok"`
	Result interface{}  `json:"result,omitempty"`
	Error  *ErrorDetail `json:"error,omitempty"`
}

// ErrorDetail holds structured error information.
type ErrorDetail struct {
	Code      string      `json:"code"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
	Retryable bool        `json:"retryable"`
}

// InvocationContext holds context from the caller.
type InvocationContext struct {
	TenantID      string `json:"tenantId,omitempty"`
	UserID        string `json:"userId,omitempty"`
	RequestID     string `json:"requestId,omitempty"`
	CorrelationID string `json:"correlationId,omitempty"`
	DeadlineMs    int    `json:"deadlineMs,omitempty"`
	TimeoutMs     int    `json:"timeoutMs,omitempty"`
}

// HTTPResult is the wire form of a rendered HTTP response.
type HTTPResult struct {
	StatusCode int               `json:"statusCode"`
	Headers    map[string]string `json:"headers,omitempty"`
	Body       interface{}       `json:"body,omitempty"`
}

// Error codes.
const (
	CodeUseCaseNotFound           = "USE_CASE_NOT_FOUND"
	CodeInputProcessorNotFound    = "INPUT_PROCESSOR_NOT_FOUND"
	CodeResponseProcessorNotFound = "RESPONSE_PROCESSOR_NOT_FOUND"
	CodeRequestTypeNotFound       = "REQUEST_TYPE_NOT_FOUND"
	CodeInvalidConfiguration      = "INVALID_CONFIGURATION"
	CodeInvalidArgument           = "INVALID_ARGUMENT"
	CodeInvalidRequest            = "INVALID_REQUEST"
	CodeEmptyComposite            = "EMPTY_COMPOSITE"
	CodeMissingOption             = "MISSING_OPTION"
	CodeAlternativeCourse         = "ALTERNATIVE_COURSE"
	CodeTimeout                   = "TIMEOUT"
	CodeCancelled                 = "CANCELLED"
	CodeInternal                  = "INTERNAL_ERROR"
)
