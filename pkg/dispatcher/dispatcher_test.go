package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/morezero/usecase-executor/pkg/execution"
	"github.com/morezero/usecase-executor/pkg/options"
	"github.com/morezero/usecase-executor/pkg/processor"
	"github.com/morezero/usecase-executor/pkg/processor/response"
	"github.com/morezero/usecase-executor/pkg/usecase"
)

func TestExecuteRequest_Unmarshal(t *testing.T) {
	raw := `{
		"id": "req-1",
		"useCase": "greet",
		"input": {"name": "ada"},
		"context": "web",
		"ctx": {"tenantId": "tenant-1", "timeoutMs": 500}
	}`

	var req ExecuteRequest
	if err := json.Unmarshal([]byte(raw), &req); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}

	if req.ID != "req-1" {
		t.Errorf("expected id req-1, got %s", req.ID)
	}
	if req.UseCase != "greet" {
		t.Errorf("expected useCase greet, got %s", req.UseCase)
	}
	if string(req.Context) != `"web"` {
		t.Errorf("expected raw context \"web\", got %s", req.Context)
	}
	if req.Ctx == nil {
		t.Fatal("expected ctx, got nil")
	}
	if req.Ctx.TenantID != "tenant-1" || req.Ctx.TimeoutMs != 500 {
		t.Errorf("unexpected ctx %+v", req.Ctx)
	}
}

func TestExecuteResponse_Marshal(t *testing.T) {
	resp := &ExecuteResponse{
		ID:     "req-1",
		Ok:     true,
		Result: map[string]interface{}{"greeting": "hello"},
	}

	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}

	if decoded["ok"] != true {
		t.Errorf("expected ok=true, got %v", decoded["ok"])
	}
	if _, ok := decoded["error"]; ok {
		t.Error("expected error to be omitted")
	}
}

func TestResultValue(t *testing.T) {
	if got := resultValue("plain"); got != "plain" {
		t.Errorf("expected passthrough, got %v", got)
	}

	out := resultValue(response.NewHTTPOutput(http.StatusNotFound, "application/json", []byte(`{"code":404}`)))
	res, ok := out.(*HTTPResult)
	if !ok {
		t.Fatalf("expected *HTTPResult, got %T", out)
	}
	if res.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", res.StatusCode)
	}
	if res.Headers["Content-Type"] != "application/json" {
		t.Errorf("unexpected headers %v", res.Headers)
	}
	data, _ := json.Marshal(res)
	if string(data) != `{"statusCode":404,"headers":{"Content-Type":"application/json"},"body":{"code":404}}` {
		t.Errorf("unexpected encoding %s", data)
	}

	text := resultValue(response.NewHTTPOutput(http.StatusOK, "text/plain", []byte("hi"))).(*HTTPResult)
	if text.Body != "hi" {
		t.Errorf("expected text body, got %v", text.Body)
	}
}

func TestDecodeContext(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		check   func(v interface{}) bool
		wantErr bool
	}{
		{"absent", "", func(v interface{}) bool { return v == nil }, false},
		{"null", "null", func(v interface{}) bool { return v == nil }, false},
		{"empty name", `""`, func(v interface{}) bool { return v == nil }, false},
		{"name", `"web"`, func(v interface{}) bool { return v == "web" }, false},
		{"object", `{"input":"json"}`, func(v interface{}) bool {
			m, ok := v.(*options.Map)
			return ok && m.Len() == 1
		}, false},
		{"number", "5", nil, true},
		{"broken", `{"input":`, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := decodeContext(json.RawMessage(tt.raw))
			if tt.wantErr {
				if err == nil {
					t.Error("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.check(v) {
				t.Errorf("unexpected value %#v", v)
			}
		})
	}
}

func TestExecutionErrorToResponse(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		code      string
		retryable bool
	}{
		{"use case", &execution.UseCaseNotFoundError{Name: "x"}, CodeUseCaseNotFound, false},
		{"input processor", &processor.InputProcessorNotFoundError{Name: "xml"}, CodeInputProcessorNotFound, false},
		{"response processor", &processor.ResponseProcessorNotFoundError{Name: "csv"}, CodeResponseProcessorNotFound, false},
		{"request type", &usecase.RequestTypeNotFoundError{UseCase: "x"}, CodeRequestTypeNotFound, false},
		{"configuration", &execution.InvalidConfigurationError{Message: "bad"}, CodeInvalidConfiguration, false},
		{"argument", &execution.InvalidArgumentError{Message: "bad"}, CodeInvalidArgument, false},
		{"empty composite", &processor.EmptyCompositeError{Kind: "input"}, CodeEmptyComposite, false},
		{"missing option", &processor.MissingOptionError{Processor: "template", Option: "template"}, CodeMissingOption, false},
		{"alternative course", fmt.Errorf("wrapped: %w", usecase.NewAlternativeCourse(409, "taken")), CodeAlternativeCourse, false},
		{"timeout", fmt.Errorf("%w: slow", context.DeadlineExceeded), CodeTimeout, true},
		{"cancelled", context.Canceled, CodeCancelled, false},
		{"internal", errors.New("database unavailable"), CodeInternal, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := executionErrorToResponse("req-1", tt.err)
			if resp.Ok {
				t.Error("expected Ok=false")
			}
			if resp.ID != "req-1" {
				t.Errorf("expected ID=req-1, got %s", resp.ID)
			}
			if resp.Error.Code != tt.code {
				t.Errorf("expected %s, got %s", tt.code, resp.Error.Code)
			}
			if resp.Error.Retryable != tt.retryable {
				t.Errorf("expected retryable=%v, got %v", tt.retryable, resp.Error.Retryable)
			}
		})
	}

	alt := executionErrorToResponse("id", usecase.NewAlternativeCourse(409, "taken"))
	if alt.Error.Message != "taken" {
		t.Errorf("expected alternative course message, got %s", alt.Error.Message)
	}
	if d, ok := alt.Error.Details.(map[string]interface{}); !ok || d["code"] != 409 {
		t.Errorf("expected details code 409, got %v", alt.Error.Details)
	}
}
