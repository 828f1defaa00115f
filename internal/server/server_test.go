package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	commsserver "github.com/nats-io/nats-server/v2/server"
	comms "github.com/nats-io/nats.go"

	"github.com/morezero/usecase-executor/internal/config"
	"github.com/morezero/usecase-executor/pkg/bootstrap"
	"github.com/morezero/usecase-executor/pkg/dispatcher"
	"github.com/morezero/usecase-executor/pkg/events"
	"github.com/morezero/usecase-executor/pkg/usecase"
)

const serverTestPrefix = "server:server_test"

const testDefinitions = `
version: 1.0.0
defaultContext: cli
contexts:
  cli:
    input: array
    response: default
useCases:
  system.ping:
    response: identity
`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv(bootstrap.EnvDefinitionsFile, "")
	path := filepath.Join(t.TempDir(), "usecases.yaml")
	if err := os.WriteFile(path, []byte(testDefinitions), 0o644); err != nil {
		t.Fatalf("%s - write definitions: %v", serverTestPrefix, err)
	}
	return &config.Config{
		COMMSName:          "usecase-executor-test",
		ExecuteSubject:     "usecase.execute",
		RequestTimeout:     5 * time.Second,
		DefinitionsFile:    path,
		HTTPAddr:           "127.0.0.1:0",
		HTTPContext:        "http",
		HealthCheckTimeout: time.Second,
	}
}

func startCommsServer(t *testing.T) string {
	t.Helper()
	ns, err := commsserver.NewServer(&commsserver.Options{Host: "127.0.0.1", Port: -1, NoLog: true, NoSigs: true})
	if err != nil {
		t.Fatalf("%s - failed to create server: %v", serverTestPrefix, err)
	}
	go ns.Start()
	if !ns.ReadyForConnections(10 * time.Second) {
		t.Fatalf("%s - server failed to start", serverTestPrefix)
	}
	t.Cleanup(func() {
		ns.Shutdown()
		ns.WaitForShutdown()
	})
	return ns.ClientURL()
}

func TestNewExecutor_Builtins(t *testing.T) {
	e, err := NewExecutor(testConfig(t))
	if err != nil {
		t.Fatalf("%s - NewExecutor failed: %v", serverTestPrefix, err)
	}
	if got, want := e.InputProcessors(), []string{"array", "composite", "default", "http", "json"}; !reflect.DeepEqual(got, want) {
		t.Errorf("%s - input processors = %v, want %v", serverTestPrefix, got, want)
	}
	for _, name := range []string{"default", "identity", "json"} {
		found := false
		for _, p := range e.ResponseProcessors() {
			found = found || p == name
		}
		if !found {
			t.Errorf("%s - response processor %s not registered", serverTestPrefix, name)
		}
	}
	if !e.HasUseCase(PingUseCase) {
		t.Errorf("%s - %s not registered", serverTestPrefix, PingUseCase)
	}

	out, err := e.Execute(context.Background(), PingUseCase, nil)
	if err != nil {
		t.Fatalf("%s - ping failed: %v", serverTestPrefix, err)
	}
	if m, ok := out.(map[string]string); !ok || m["status"] != "ok" || m["service"] != "usecase-executor-test" {
		t.Errorf("%s - ping = %v", serverTestPrefix, out)
	}
}

type untypedEcho struct{}

func (untypedEcho) Execute(_ context.Context, req interface{}) (interface{}, error) {
	r, ok := req.(*usecase.Request)
	if !ok {
		return nil, fmt.Errorf("unexpected request %T", req)
	}
	return r.Values(), nil
}

func TestNewExecutor_RequestResolutionMode(t *testing.T) {
	strict, err := NewExecutor(testConfig(t))
	if err != nil {
		t.Fatalf("%s - NewExecutor failed: %v", serverTestPrefix, err)
	}
	if err := strict.SetUseCase("echo", untypedEcho{}); err != nil {
		t.Fatalf("%s - SetUseCase failed: %v", serverTestPrefix, err)
	}
	var rt *usecase.RequestTypeNotFoundError
	if _, err := strict.Execute(context.Background(), "echo", nil); !errors.As(err, &rt) {
		t.Errorf("%s - strict mode: expected RequestTypeNotFoundError, got %v", serverTestPrefix, err)
	}

	cfg := testConfig(t)
	cfg.RequestResolutionMode = "permissive"
	permissive, err := NewExecutor(cfg)
	if err != nil {
		t.Fatalf("%s - NewExecutor failed: %v", serverTestPrefix, err)
	}
	if err := permissive.SetUseCase("echo", untypedEcho{}); err != nil {
		t.Fatalf("%s - SetUseCase failed: %v", serverTestPrefix, err)
	}
	permissive.AssignInputProcessor("echo", "array", nil)
	out, err := permissive.Execute(context.Background(), "echo", map[string]interface{}{"name": "ada"})
	if err != nil {
		t.Fatalf("%s - permissive mode failed: %v", serverTestPrefix, err)
	}
	if got := out.(map[string]interface{}); got["name"] != "ada" {
		t.Errorf("%s - permissive echo = %v", serverTestPrefix, got)
	}

	cfg.RequestResolutionMode = "lenient"
	if _, err := NewExecutor(cfg); err == nil {
		t.Errorf("%s - expected error for unknown resolution mode", serverTestPrefix)
	}
}

func TestNewExecutor_Templates(t *testing.T) {
	cfg := testConfig(t)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "status.html"), []byte(`{{define "status"}}<p>{{.Response.status}}</p>{{end}}`), 0o644); err != nil {
		t.Fatalf("%s - write template: %v", serverTestPrefix, err)
	}
	cfg.TemplateGlob = filepath.Join(dir, "*.html")

	e, err := NewExecutor(cfg)
	if err != nil {
		t.Fatalf("%s - NewExecutor failed: %v", serverTestPrefix, err)
	}
	out, err := e.ExecuteIn(context.Background(), PingUseCase, nil, map[string]interface{}{
		"response": map[string]interface{}{"template": map[string]interface{}{"template": "status"}},
	})
	if err != nil {
		t.Fatalf("%s - ExecuteIn failed: %v", serverTestPrefix, err)
	}
	rec := httptest.NewRecorder()
	writeOutput(t, rec, out)
	if rec.Body.String() != "<p>ok</p>" {
		t.Errorf("%s - rendered %q", serverTestPrefix, rec.Body.String())
	}

	cfg.TemplateGlob = filepath.Join(dir, "[")
	if _, err := NewExecutor(cfg); err == nil {
		t.Errorf("%s - expected error for bad template glob", serverTestPrefix)
	}
}

func writeOutput(t *testing.T, w http.ResponseWriter, out interface{}) {
	t.Helper()
	o, ok := out.(interface{ Write(http.ResponseWriter) error })
	if !ok {
		t.Fatalf("%s - expected HTTP output, got %T", serverTestPrefix, out)
	}
	if err := o.Write(w); err != nil {
		t.Fatalf("%s - write failed: %v", serverTestPrefix, err)
	}
}

func TestLoadDefinitions_MergesDefaultsAndFile(t *testing.T) {
	cfg := testConfig(t)

	defs, err := LoadDefinitions(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("%s - LoadDefinitions failed: %v", serverTestPrefix, err)
	}
	for _, name := range []string{"default", "http", "cli"} {
		if _, ok := defs.Contexts[name]; !ok {
			t.Errorf("%s - expected context %s", serverTestPrefix, name)
		}
	}
	if defs.DefaultContext != "cli" {
		t.Errorf("%s - default context = %q, want cli", serverTestPrefix, defs.DefaultContext)
	}
	if _, ok := defs.UseCases[PingUseCase]; !ok {
		t.Errorf("%s - expected %s configuration from file", serverTestPrefix, PingUseCase)
	}
}

func newTestMux(t *testing.T, health HealthFunc) *http.ServeMux {
	t.Helper()
	cfg := testConfig(t)
	e, err := NewExecutor(cfg)
	if err != nil {
		t.Fatalf("%s - NewExecutor failed: %v", serverTestPrefix, err)
	}
	defs, err := LoadDefinitions(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("%s - LoadDefinitions failed: %v", serverTestPrefix, err)
	}
	if err := bootstrap.Apply(defs, e); err != nil {
		t.Fatalf("%s - Apply failed: %v", serverTestPrefix, err)
	}
	return buildMux(e, cfg.HTTPContext, health, time.Second)
}

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name   string
		health *HealthOutput
		want   int
	}{
		{"healthy", &HealthOutput{Status: "healthy", Checks: HealthChecks{Comms: true}}, http.StatusOK},
		{"unhealthy", &HealthOutput{Status: "unhealthy"}, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := newTestMux(t, func(context.Context) *HealthOutput { return tt.health })
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
			if rec.Code != tt.want {
				t.Errorf("%s - status = %d, want %d", serverTestPrefix, rec.Code, tt.want)
			}
			var out HealthOutput
			if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil || out.Status != tt.health.Status {
				t.Errorf("%s - body = %s (%v)", serverTestPrefix, rec.Body.String(), err)
			}
		})
	}
}

func TestReadyHandler(t *testing.T) {
	mux := newTestMux(t, nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("%s - ready status = %d", serverTestPrefix, rec.Code)
	}
}

func TestCatalogHandler(t *testing.T) {
	mux := newTestMux(t, nil)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/usecases", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("%s - catalog status = %d", serverTestPrefix, rec.Code)
	}
	var c Catalog
	if err := json.Unmarshal(rec.Body.Bytes(), &c); err != nil {
		t.Fatalf("%s - invalid catalog: %v", serverTestPrefix, err)
	}
	if !reflect.DeepEqual(c.UseCases, []string{PingUseCase}) {
		t.Errorf("%s - use cases = %v", serverTestPrefix, c.UseCases)
	}
	if !reflect.DeepEqual(c.Contexts, []string{"cli", "default", "http"}) || c.DefaultContext != "cli" {
		t.Errorf("%s - contexts = %v default %q", serverTestPrefix, c.Contexts, c.DefaultContext)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/usecases", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("%s - POST catalog status = %d, want 405", serverTestPrefix, rec.Code)
	}
}

func TestUseCaseOverHTTP(t *testing.T) {
	mux := newTestMux(t, nil)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/usecases/"+PingUseCase, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("%s - status = %d body %s", serverTestPrefix, rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("%s - content type = %q", serverTestPrefix, ct)
	}
	var out map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil || out["status"] != "ok" {
		t.Errorf("%s - body = %s (%v)", serverTestPrefix, rec.Body.String(), err)
	}
}

func TestNewHealthFunc(t *testing.T) {
	if h := newHealthFunc(nil, nil)(context.Background()); h.Status != "unhealthy" || h.Checks.Database != nil {
		t.Errorf("%s - without connection = %+v", serverTestPrefix, h)
	}

	nc, err := comms.Connect(startCommsServer(t))
	if err != nil {
		t.Fatalf("%s - connect failed: %v", serverTestPrefix, err)
	}
	defer nc.Close()
	if h := newHealthFunc(nc, nil)(context.Background()); h.Status != "healthy" || !h.Checks.Comms {
		t.Errorf("%s - with connection = %+v", serverTestPrefix, h)
	}
}

func TestServer_StartServesOverComms(t *testing.T) {
	url := startCommsServer(t)
	cfg := testConfig(t)
	cfg.COMMSURL = url

	client, err := comms.Connect(url)
	if err != nil {
		t.Fatalf("%s - connect failed: %v", serverTestPrefix, err)
	}
	defer client.Close()

	executed := make(chan *events.ExecutedEvent, 1)
	eventSub, err := client.Subscribe("usecase.executed", func(msg *comms.Msg) {
		var ev events.ExecutedEvent
		if json.Unmarshal(msg.Data, &ev) == nil {
			executed <- &ev
		}
	})
	if err != nil {
		t.Fatalf("%s - subscribe failed: %v", serverTestPrefix, err)
	}
	defer eventSub.Unsubscribe()
	if err := client.Flush(); err != nil {
		t.Fatalf("%s - flush failed: %v", serverTestPrefix, err)
	}

	ctx := context.Background()
	s := &Server{cfg: cfg}
	if err := s.start(ctx); err != nil {
		s.close(ctx)
		t.Fatalf("%s - start failed: %v", serverTestPrefix, err)
	}
	defer s.close(ctx)

	msg, err := client.Request(cfg.ExecuteSubject, []byte(`{"id":"r1","useCase":"system.ping"}`), 5*time.Second)
	if err != nil {
		t.Fatalf("%s - request failed: %v", serverTestPrefix, err)
	}
	var resp dispatcher.ExecuteResponse
	if err := json.Unmarshal(msg.Data, &resp); err != nil {
		t.Fatalf("%s - invalid response %s: %v", serverTestPrefix, msg.Data, err)
	}
	if !resp.Ok || resp.ID != "r1" {
		t.Fatalf("%s - response = %+v", serverTestPrefix, resp)
	}
	result, ok := resp.Result.(map[string]interface{})
	if !ok || result["status"] != "ok" {
		t.Errorf("%s - result = %v", serverTestPrefix, resp.Result)
	}

	select {
	case ev := <-executed:
		if ev.UseCase != PingUseCase || ev.Source != cfg.COMMSName {
			t.Errorf("%s - event = %+v", serverTestPrefix, ev)
		}
	case <-time.After(5 * time.Second):
		t.Errorf("%s - no executed event received", serverTestPrefix)
	}
}
