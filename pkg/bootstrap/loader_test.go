package bootstrap

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/morezero/usecase-executor/pkg/execution"
	"github.com/morezero/usecase-executor/pkg/options"
	"github.com/morezero/usecase-executor/pkg/processor/input"
	"github.com/morezero/usecase-executor/pkg/processor/response"
)

const sampleYAML = `
name: shop
version: 1.2.0
defaultContext: cli
contexts:
  cli:
    input:
      array:
        map: {n: name}
    response: default
  web:
    input:
      http: {order: GP}
      json: ~
    response: json
useCases:
  greet:
    description: Says hello
    input: http
    response:
      json:
        append_on_success: {ok: true}
    requestType: app.GreetRequest
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	return p
}

func TestGetDefaultDefinitions(t *testing.T) {
	defs := GetDefaultDefinitions()

	if defs.Version != "1.0.0" {
		t.Errorf("expected version 1.0.0, got %s", defs.Version)
	}
	if defs.DefaultContext != execution.DefaultContextName {
		t.Errorf("expected default context %q, got %q", execution.DefaultContextName, defs.DefaultContext)
	}
	c, ok := defs.Contexts["http"]
	if !ok {
		t.Fatal("expected http context")
	}
	if c.Input.Value() != "http" || c.Response.Value() != "json" {
		t.Errorf("expected http/json, got %v/%v", c.Input.Value(), c.Response.Value())
	}
}

func TestParseDefinitions_YAMLKeepsProcessorOrder(t *testing.T) {
	defs, err := ParseDefinitions([]byte(sampleYAML), ".yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	web := defs.Contexts["web"]
	m, ok := web.Input.Value().(*options.Map)
	if !ok {
		t.Fatalf("expected *options.Map input, got %T", web.Input.Value())
	}
	if got := m.Keys(); !reflect.DeepEqual(got, []string{"http", "json"}) {
		t.Errorf("expected keys [http json], got %v", got)
	}

	greet := defs.UseCases["greet"]
	if greet.RequestType != "app.GreetRequest" {
		t.Errorf("expected request type app.GreetRequest, got %s", greet.RequestType)
	}
	if greet.Input.Value() != "http" {
		t.Errorf("expected input http, got %v", greet.Input.Value())
	}
}

func TestParseDefinitions_StepList(t *testing.T) {
	data := "version: 1.0.0\ncontexts:\n  web:\n    input: [json, {http: {order: G}}]\n    response: json\n"
	defs, err := ParseDefinitions([]byte(data), ".yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	target := &recordingTarget{}
	if err := Apply(defs, target); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	cfg, err := execution.NewConfiguration(defs.Contexts["web"].Input.Value(), nil)
	if err != nil {
		t.Fatalf("NewConfiguration failed: %v", err)
	}
	if cfg.InputProcessorName() != "composite" {
		t.Errorf("expected composite input, got %s", cfg.InputProcessorName())
	}
	if got := cfg.InputProcessorOptions().Keys(); !reflect.DeepEqual(got, []string{"json", "http"}) {
		t.Errorf("expected steps [json http], got %v", got)
	}
}

func TestParseDefinitions_JSON(t *testing.T) {
	data := `{"version":"1.0.0","contexts":{"web":{"input":{"json":null,"http":{"order":"G"}},"response":"json"}}}`
	defs, err := ParseDefinitions([]byte(data), ".JSON")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m, ok := defs.Contexts["web"].Input.Value().(*options.Map)
	if !ok {
		t.Fatalf("expected *options.Map input, got %T", defs.Contexts["web"].Input.Value())
	}
	if got := m.Keys(); !reflect.DeepEqual(got, []string{"json", "http"}) {
		t.Errorf("expected keys [json http], got %v", got)
	}
}

func TestParseDefinitions_Rejects(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"missing version", "contexts: {}"},
		{"unsupported version", "version: 2.0.0"},
		{"bad processor", "version: 1.0.0\ncontexts:\n  x:\n    input: 5\n"},
		{"duplicate step", "version: 1.0.0\ncontexts:\n  x:\n    input: [json, json]\n"},
		{"bad yaml", "version: [1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseDefinitions([]byte(tt.data), ".yaml"); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestLoadDefinitions_PathOrder(t *testing.T) {
	dir := t.TempDir()
	invalid := writeFile(t, dir, "bad.yaml", "version: 9.0.0")
	explicit := writeFile(t, dir, "explicit.yaml", "name: explicit\nversion: 1.0.0\n")
	env := writeFile(t, dir, "env.json", `{"name":"env","version":"1.0.0"}`)
	t.Setenv(EnvDefinitionsFile, env)

	defs, err := LoadDefinitions(filepath.Join(dir, "missing.yaml"), invalid, explicit)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if defs.Name != "explicit" {
		t.Errorf("expected explicit path to win, got %q", defs.Name)
	}

	defs, err = LoadDefinitions()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if defs.Name != "env" {
		t.Errorf("expected env file, got %q", defs.Name)
	}
}

func TestLoadDefinitions_FallsBackToDefaults(t *testing.T) {
	t.Setenv(EnvDefinitionsFile, "")
	saved := DefaultPaths
	DefaultPaths = []string{filepath.Join(t.TempDir(), "usecases.yaml")}
	t.Cleanup(func() { DefaultPaths = saved })

	defs, err := LoadDefinitions()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if defs.Name != GetDefaultDefinitions().Name {
		t.Errorf("expected default definitions, got %q", defs.Name)
	}
}

func TestMergeDefinitions(t *testing.T) {
	base := GetDefaultDefinitions()
	override := &Definitions{
		DefaultContext: "web",
		Contexts: map[string]ContextDefinition{
			"web": {Input: NewProcessorSpec("http")},
		},
		UseCases: map[string]UseCaseDefinition{
			"greet": {Response: NewProcessorSpec("json")},
		},
	}

	merged := MergeDefinitions(base, override)

	if _, ok := merged.Contexts[execution.DefaultContextName]; !ok {
		t.Error("expected base context to remain")
	}
	if _, ok := merged.Contexts["web"]; !ok {
		t.Error("expected override context to be added")
	}
	if _, ok := merged.UseCases["greet"]; !ok {
		t.Error("expected override use case to be added")
	}
	if merged.DefaultContext != "web" {
		t.Errorf("expected default context web, got %s", merged.DefaultContext)
	}
	if merged.Version != "1.0.0" {
		t.Errorf("expected base version to remain, got %s", merged.Version)
	}
	if _, ok := base.Contexts["web"]; ok {
		t.Error("base must not be modified")
	}
}

type echoRequest struct {
	Name string
}

type echoUseCase struct{}

func (echoUseCase) Execute(_ context.Context, req *echoRequest) (string, error) {
	return req.Name, nil
}

type recordingTarget struct {
	contexts    []string
	defaultName string
	configs     map[string]*execution.Configuration
	failOn      string
}

func (r *recordingTarget) AddContextDefinition(name string, _, _ interface{}) error {
	if name == r.failOn {
		return errors.New("boom")
	}
	r.contexts = append(r.contexts, name)
	return nil
}

func (r *recordingTarget) SetDefaultContextName(name string) { r.defaultName = name }

func (r *recordingTarget) Configure(useCase string, cfg *execution.Configuration) {
	if r.configs == nil {
		r.configs = make(map[string]*execution.Configuration)
	}
	r.configs[useCase] = cfg
}

func TestApply(t *testing.T) {
	defs, err := ParseDefinitions([]byte(sampleYAML), ".yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	target := &recordingTarget{}
	if err := Apply(defs, target); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(target.contexts, []string{"cli", "web"}) {
		t.Errorf("expected contexts [cli web], got %v", target.contexts)
	}
	if target.defaultName != "cli" {
		t.Errorf("expected default cli, got %s", target.defaultName)
	}
	greet := target.configs["greet"]
	if greet == nil {
		t.Fatal("expected greet configuration")
	}
	if greet.InputProcessorName() != "http" || greet.ResponseProcessorName() != "json" {
		t.Errorf("unexpected processors %s/%s", greet.InputProcessorName(), greet.ResponseProcessorName())
	}
	if greet.RequestTypeName() != "app.GreetRequest" {
		t.Errorf("expected request type app.GreetRequest, got %s", greet.RequestTypeName())
	}

	target = &recordingTarget{failOn: "web"}
	if err := Apply(defs, target); err == nil {
		t.Error("expected error from failing target")
	}
}

func TestApply_Executor(t *testing.T) {
	defs := MergeDefinitions(GetDefaultDefinitions(), &Definitions{
		Contexts: map[string]ContextDefinition{
			"tagged": {
				Input:    NewProcessorSpec(options.New(options.Pair{Key: "array", Value: nil})),
				Response: NewProcessorSpec("default"),
			},
		},
		UseCases: map[string]UseCaseDefinition{
			"echo": {Input: NewProcessorSpec("array")},
		},
	})

	e := execution.NewExecutor()
	e.SetInputProcessor("default", input.Default{})
	e.SetInputProcessor("array", input.Array{})
	e.SetResponseProcessor("default", response.Identity{})
	if err := Apply(defs, e); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := e.SetUseCase("echo", echoUseCase{}); err != nil {
		t.Fatalf("SetUseCase failed: %v", err)
	}

	out, err := e.Execute(context.Background(), "echo", map[string]interface{}{"name": "ada"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "ada" {
		t.Errorf("expected ada, got %v", out)
	}
	if got := e.Contexts().Contexts(); !reflect.DeepEqual(got, []string{"default", "http", "tagged"}) {
		t.Errorf("unexpected contexts %v", got)
	}
}
