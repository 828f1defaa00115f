package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	comms "github.com/nats-io/nats.go"

	"github.com/morezero/usecase-executor/pkg/commsutil"
	"github.com/morezero/usecase-executor/pkg/execution"
	"github.com/morezero/usecase-executor/pkg/options"
	"github.com/morezero/usecase-executor/pkg/processor"
	"github.com/morezero/usecase-executor/pkg/processor/response"
	"github.com/morezero/usecase-executor/pkg/usecase"
)

const logPrefix = "dispatcher:dispatch"

// DefaultRequestTimeout bounds a single execution when no timeout is configured.
const DefaultRequestTimeout = 25 * time.Second

// Executor runs use cases. *execution.Executor satisfies it.
type Executor interface {
	ExecuteIn(ctx context.Context, name string, in interface{}, override interface{}) (interface{}, error)
}

// Dispatcher routes COMMS requests to the executor.
type Dispatcher struct {
	executor       Executor
	requestTimeout time.Duration
}

// NewDispatcher creates a new Dispatcher. A non-positive timeout selects
// DefaultRequestTimeout.
func NewDispatcher(exec Executor, requestTimeout time.Duration) *Dispatcher {
	if requestTimeout <= 0 {
		requestTimeout = DefaultRequestTimeout
	}
	return &Dispatcher{executor: exec, requestTimeout: requestTimeout}
}

// Dispatch runs the requested use case and returns a response. Requests
// without an ID get a generated one.
func (d *Dispatcher) Dispatch(ctx context.Context, req *ExecuteRequest) *ExecuteResponse {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	slog.Debug(fmt.Sprintf("%s - useCase=%s id=%s", logPrefix, req.UseCase, req.ID))

	if strings.TrimSpace(req.UseCase) == "" {
		return errorResponse(req.ID, CodeInvalidArgument, "useCase is required", false)
	}

	in, err := commsutil.DecodeValue(req.Input)
	if err != nil {
		return errorResponse(req.ID, CodeInvalidArgument, "Failed to parse input", false)
	}

	override, err := decodeContext(req.Context)
	if err != nil {
		return errorResponse(req.ID, CodeInvalidArgument, err.Error(), false)
	}

	ctx, cancel := d.withTimeout(ctx, req.Ctx)
	defer cancel()

	out, err := d.executor.ExecuteIn(ctx, req.UseCase, in, override)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			err = fmt.Errorf("%w: %v", ctxErr, err)
		}
		return executionErrorToResponse(req.ID, err)
	}
	return &ExecuteResponse{ID: req.ID, Ok: true, Result: resultValue(out)}
}

// withTimeout applies the dispatcher timeout, shortened by a client deadline.
func (d *Dispatcher) withTimeout(ctx context.Context, inv *InvocationContext) (context.Context, context.CancelFunc) {
	timeout := d.requestTimeout
	if inv != nil {
		ms := inv.DeadlineMs
		if ms <= 0 {
			ms = inv.TimeoutMs
		}
		if ms > 0 && time.Duration(ms)*time.Millisecond < timeout {
			timeout = time.Duration(ms) * time.Millisecond
		}
	}
	return context.WithTimeout(ctx, timeout)
}

// HandleMsg decodes a COMMS message, dispatches it and responds. The use case
// may also be taken from a per-use-case subject.
func (d *Dispatcher) HandleMsg(ctx context.Context, msg *comms.Msg) {
	var req ExecuteRequest
	if len(msg.Data) > 0 {
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			slog.Error(fmt.Sprintf("%s - failed to decode request: %v", logPrefix, err))
			respond(msg, errorResponse("", CodeInvalidRequest, "Failed to decode request", false))
			return
		}
	}
	if req.UseCase == "" {
		if name, ok := commsutil.UseCaseFromSubject(msg.Subject); ok {
			req.UseCase = name
		}
	}
	respond(msg, d.Dispatch(ctx, &req))
}

// Subscribe listens on subject and on the per-use-case subjects below
// commsutil.SubjectExecute. A non-empty queue joins a queue group so that
// instances share the load. The subscriptions are flushed to the server
// before Subscribe returns.
func (d *Dispatcher) Subscribe(ctx context.Context, nc *comms.Conn, subject, queue string) ([]*comms.Subscription, error) {
	handler := func(msg *comms.Msg) { d.HandleMsg(ctx, msg) }
	subjects := []string{subject, commsutil.SubjectExecute + ".>"}

	subs := make([]*comms.Subscription, 0, len(subjects))
	for _, s := range subjects {
		var (
			sub *comms.Subscription
			err error
		)
		if queue != "" {
			sub, err = nc.QueueSubscribe(s, queue, handler)
		} else {
			sub, err = nc.Subscribe(s, handler)
		}
		if err != nil {
			for _, prev := range subs {
				_ = prev.Unsubscribe()
			}
			return nil, fmt.Errorf("%s - failed to subscribe to %s: %w", logPrefix, s, err)
		}
		slog.Info(fmt.Sprintf("%s - Subscribed to %s", logPrefix, s))
		subs = append(subs, sub)
	}

	// Requests from other connections must find the subscriptions once we return.
	if err := nc.Flush(); err != nil {
		for _, sub := range subs {
			_ = sub.Unsubscribe()
		}
		return nil, fmt.Errorf("%s - failed to flush subscriptions: %w", logPrefix, err)
	}
	return subs, nil
}

// --- helpers ---

func respond(msg *comms.Msg, resp *ExecuteResponse) {
	data, err := json.Marshal(resp)
	if err != nil {
		slog.Error(fmt.Sprintf("%s - failed to encode response: %v", logPrefix, err))
		data, _ = json.Marshal(errorResponse(resp.ID, CodeInternal, "Failed to encode result", false))
	}
	if err := msg.Respond(data); err != nil {
		slog.Warn(fmt.Sprintf("%s - failed to respond: %v", logPrefix, err))
	}
}

func decodeContext(raw json.RawMessage) (interface{}, error) {
	v, err := commsutil.DecodeValue(raw)
	if err != nil {
		return nil, errors.New("failed to parse context")
	}
	switch c := v.(type) {
	case nil:
		return nil, nil
	case string:
		if c == "" {
			return nil, nil
		}
		return c, nil
	case *options.Map:
		return c, nil
	}
	return nil, fmt.Errorf("context must be a name or an object, got %T", v)
}

// resultValue converts rendered HTTP output into its wire form.
func resultValue(out interface{}) interface{} {
	o, ok := out.(*response.HTTPOutput)
	if !ok || o == nil {
		return out
	}
	res := &HTTPResult{StatusCode: o.StatusCode}
	if len(o.Header) > 0 {
		res.Headers = make(map[string]string, len(o.Header))
		for k := range o.Header {
			res.Headers[k] = o.Header.Get(k)
		}
	}
	if len(o.Body) > 0 {
		if strings.Contains(o.Header.Get("Content-Type"), "json") && json.Valid(o.Body) {
			res.Body = json.RawMessage(o.Body)
		} else {
			res.Body = string(o.Body)
		}
	}
	return res
}

func errorResponse(id, code, message string, retryable bool) *ExecuteResponse {
	return &ExecuteResponse{
		ID: id,
		Ok: false,
		Error: &ErrorDetail{
			Code:      code,
			Message:   message,
			Retryable: retryable,
		},
	}
}

// executionErrorToResponse maps executor errors to wire error codes.
func executionErrorToResponse(id string, err error) *ExecuteResponse {
	return &ExecuteResponse{ID: id, Ok: false, Error: ClassifyError(err)}
}

// ClassifyError maps an execution error to an ErrorDetail. Unrecognized errors
// are INTERNAL_ERROR.
func ClassifyError(err error) *ErrorDetail {
	detail := &ErrorDetail{Code: CodeInternal, Message: err.Error()}

	var (
		useCaseNF  *execution.UseCaseNotFoundError
		inputNF    *processor.InputProcessorNotFoundError
		responseNF *processor.ResponseProcessorNotFoundError
		requestNF  *usecase.RequestTypeNotFoundError
		invalidCfg *execution.InvalidConfigurationError
		invalidArg *execution.InvalidArgumentError
		empty      *processor.EmptyCompositeError
		missing    *processor.MissingOptionError
	)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		detail.Code = CodeTimeout
	case errors.Is(err, context.Canceled):
		detail.Code = CodeCancelled
	case errors.As(err, &useCaseNF):
		detail.Code = CodeUseCaseNotFound
		detail.Details = map[string]interface{}{"useCase": useCaseNF.Name}
	case errors.As(err, &inputNF):
		detail.Code = CodeInputProcessorNotFound
		detail.Details = map[string]interface{}{"processor": inputNF.Name}
	case errors.As(err, &responseNF):
		detail.Code = CodeResponseProcessorNotFound
		detail.Details = map[string]interface{}{"processor": responseNF.Name}
	case errors.As(err, &requestNF):
		detail.Code = CodeRequestTypeNotFound
	case errors.As(err, &invalidCfg):
		detail.Code = CodeInvalidConfiguration
	case errors.As(err, &invalidArg):
		detail.Code = CodeInvalidArgument
	case errors.As(err, &empty):
		detail.Code = CodeEmptyComposite
	case errors.As(err, &missing):
		detail.Code = CodeMissingOption
		detail.Details = map[string]interface{}{"processor": missing.Processor, "option": missing.Option}
	default:
		if alt, ok := usecase.AsAlternativeCourse(err); ok {
			detail.Code = CodeAlternativeCourse
			detail.Message = alt.Message
			detail.Details = map[string]interface{}{"code": alt.Code}
		}
	}
	detail.Retryable = detail.Code == CodeInternal || detail.Code == CodeTimeout
	return detail
}
