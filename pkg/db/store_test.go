package db

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/morezero/usecase-executor/pkg/bootstrap"
	"github.com/morezero/usecase-executor/pkg/options"
)

const storeTestPrefix = "db:store_test"

type fakeSource struct {
	contexts []ContextRecord
	useCases []UseCaseRecord
	err      error
}

func (f *fakeSource) ListContexts(context.Context) ([]ContextRecord, error) {
	return f.contexts, f.err
}

func (f *fakeSource) ListUseCases(context.Context) ([]UseCaseRecord, error) {
	return f.useCases, nil
}

func strPtr(s string) *string { return &s }

func TestLoadStoredDefinitions(t *testing.T) {
	src := &fakeSource{
		contexts: []ContextRecord{
			{Name: "default", Input: []byte(`"default"`), Response: []byte(`"default"`)},
			{Name: "web", Input: []byte(`{"json":null,"http":{"order":"GP"}}`), Response: []byte(`"json"`), IsDefault: true},
		},
		useCases: []UseCaseRecord{
			{UseCase: "greet", Description: strPtr("Says hello"), Response: []byte(`{"json":{"append_on_success":{"ok":true}}}`), RequestType: strPtr("app.GreetRequest")},
		},
	}

	defs, err := LoadStoredDefinitions(context.Background(), src)
	if err != nil {
		t.Fatalf("%s - unexpected error: %v", storeTestPrefix, err)
	}
	if defs.Name != StoredDefinitionsName {
		t.Errorf("%s - name = %q", storeTestPrefix, defs.Name)
	}
	if defs.DefaultContext != "web" {
		t.Errorf("%s - default context = %q, want web", storeTestPrefix, defs.DefaultContext)
	}

	web := defs.Contexts["web"]
	m, ok := web.Input.Value().(*options.Map)
	if !ok {
		t.Fatalf("%s - expected *options.Map input, got %T", storeTestPrefix, web.Input.Value())
	}
	if got := m.Keys(); !reflect.DeepEqual(got, []string{"json", "http"}) {
		t.Errorf("%s - composite order = %v, want [json http]", storeTestPrefix, got)
	}

	greet := defs.UseCases["greet"]
	if greet.Description != "Says hello" || greet.RequestType != "app.GreetRequest" {
		t.Errorf("%s - greet = %+v", storeTestPrefix, greet)
	}
	if !greet.Input.IsZero() {
		t.Errorf("%s - NULL input should be unset, got %v", storeTestPrefix, greet.Input.Value())
	}
}

func TestLoadStoredDefinitions_Errors(t *testing.T) {
	boom := errors.New("boom")
	if _, err := LoadStoredDefinitions(context.Background(), &fakeSource{err: boom}); !errors.Is(err, boom) {
		t.Errorf("%s - expected source error, got %v", storeTestPrefix, err)
	}

	bad := &fakeSource{contexts: []ContextRecord{{Name: "x", Input: []byte(`[1,2]`)}}}
	if _, err := LoadStoredDefinitions(context.Background(), bad); err == nil {
		t.Errorf("%s - expected error for array processor spec", storeTestPrefix)
	}
}

func TestSpecJSONRoundTrip(t *testing.T) {
	spec := bootstrap.NewProcessorSpec(options.New(
		options.Pair{Key: "json", Value: nil},
		options.Pair{Key: "http", Value: options.New(options.Pair{Key: "order", Value: "G"})},
	))
	b, err := specToJSON(spec)
	if err != nil {
		t.Fatalf("%s - specToJSON failed: %v", storeTestPrefix, err)
	}
	if string(b) != `{"json":null,"http":{"order":"G"}}` {
		t.Errorf("%s - encoded = %s", storeTestPrefix, b)
	}

	if b, err := specToJSON(bootstrap.ProcessorSpec{}); err != nil || b != nil {
		t.Errorf("%s - zero spec should encode to nil, got %s %v", storeTestPrefix, b, err)
	}
}

func TestNullJSON(t *testing.T) {
	if nullJSON(nil) != nil || nullJSON([]byte("null")) != nil {
		t.Errorf("%s - empty and null should map to SQL NULL", storeTestPrefix)
	}
	if got := nullJSON([]byte(`"json"`)); got != `"json"` {
		t.Errorf("%s - nullJSON = %v", storeTestPrefix, got)
	}
	if userOrSystem("") != SystemUserID {
		t.Errorf("%s - empty user should be the system user", storeTestPrefix)
	}
}
