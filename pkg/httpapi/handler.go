// Package httpapi exposes use cases over HTTP. Each request to
// {prefix}{useCase} runs the named use case with the *http.Request as input
// in a configurable execution context (by default the "http" context).
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/morezero/usecase-executor/pkg/dispatcher"
	"github.com/morezero/usecase-executor/pkg/processor/input"
	"github.com/morezero/usecase-executor/pkg/processor/response"
	"github.com/morezero/usecase-executor/pkg/usecase"
)

const logPrefix = "httpapi:handler"

// DefaultPrefix is the path under which use cases are served.
const DefaultPrefix = "/usecases/"

// DefaultContext is the execution context used for HTTP requests.
const DefaultContext = "http"

// AttributeUseCase is the request attribute holding the use-case name.
const AttributeUseCase = "use_case"

// Executor runs a use case in a context. *execution.Executor satisfies it.
type Executor interface {
	ExecuteIn(ctx context.Context, name string, in interface{}, override interface{}) (interface{}, error)
}

// Opts configures a Handler.
type Opts struct {
	Prefix  string
	Context string
}

// Handler serves use cases over HTTP.
type Handler struct {
	exec    Executor
	prefix  string
	context string
}

// NewHandler creates a Handler. Empty options take their defaults.
func NewHandler(exec Executor, opts Opts) *Handler {
	h := &Handler{exec: exec, prefix: opts.Prefix, context: opts.Context}
	if h.prefix == "" {
		h.prefix = DefaultPrefix
	}
	if !strings.HasSuffix(h.prefix, "/") {
		h.prefix += "/"
	}
	if h.context == "" {
		h.context = DefaultContext
	}
	return h
}

// Prefix returns the path prefix the handler expects to be mounted on.
func (h *Handler) Prefix() string {
	return h.prefix
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rest, ok := strings.CutPrefix(r.URL.Path, h.prefix)
	name := strings.Trim(rest, "/")
	if !ok || name == "" {
		writeError(w, http.StatusNotFound, &dispatcher.ErrorDetail{
			Code:    dispatcher.CodeUseCaseNotFound,
			Message: "no use case in path",
		})
		return
	}

	r = input.WithAttributes(r, map[string]interface{}{AttributeUseCase: name})
	out, err := h.exec.ExecuteIn(r.Context(), name, r, h.context)
	if err != nil {
		detail := dispatcher.ClassifyError(err)
		status := statusFor(err, detail)
		if status >= http.StatusInternalServerError {
			slog.Error(fmt.Sprintf("%s - %s %s failed: %v", logPrefix, r.Method, name, err))
		} else {
			slog.Debug(fmt.Sprintf("%s - %s %s: %v", logPrefix, r.Method, name, err))
		}
		writeError(w, status, detail)
		return
	}

	writeResult(w, out)
}

func writeResult(w http.ResponseWriter, out interface{}) {
	switch o := out.(type) {
	case *response.HTTPOutput:
		if err := o.Write(w); err != nil {
			slog.Warn(fmt.Sprintf("%s - failed to write response: %v", logPrefix, err))
		}
	case nil:
		w.WriteHeader(http.StatusNoContent)
	case []byte:
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write(o)
	case string:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte(o))
	default:
		data, err := json.Marshal(o)
		if err != nil {
			writeError(w, http.StatusInternalServerError, &dispatcher.ErrorDetail{
				Code:    dispatcher.CodeInternal,
				Message: "failed to encode result",
			})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	}
}

// statusFor maps an execution error to an HTTP status. Alternative courses
// carrying a 4xx/5xx code keep it.
func statusFor(err error, detail *dispatcher.ErrorDetail) int {
	if alt, ok := usecase.AsAlternativeCourse(err); ok && alt.Code >= 400 && alt.Code <= 599 {
		return alt.Code
	}
	switch detail.Code {
	case dispatcher.CodeUseCaseNotFound:
		return http.StatusNotFound
	case dispatcher.CodeInvalidArgument, dispatcher.CodeInvalidRequest:
		return http.StatusBadRequest
	case dispatcher.CodeAlternativeCourse:
		return http.StatusUnprocessableEntity
	case dispatcher.CodeTimeout:
		return http.StatusGatewayTimeout
	case dispatcher.CodeCancelled:
		return 499
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, status int, detail *dispatcher.ErrorDetail) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"error": detail}); err != nil {
		slog.Warn(fmt.Sprintf("%s - failed to write error: %v", logPrefix, err))
	}
}
