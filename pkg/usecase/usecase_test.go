package usecase

import (
	"errors"
	"fmt"
	"reflect"
	"testing"
)

const usecaseTestPrefix = "usecase:usecase_test"

func TestRequest_Values(t *testing.T) {
	var r Request
	if _, ok := r.Get("x"); ok {
		t.Errorf("%s - zero Request should be empty", usecaseTestPrefix)
	}
	r.Set("b", 2)
	r.Set("a", 1)

	if got := r.Names(); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("%s - Names() = %v", usecaseTestPrefix, got)
	}
	vals := r.Values()
	vals["a"] = 100
	if v, _ := r.Get("a"); v != 1 {
		t.Errorf("%s - Values() must return a copy", usecaseTestPrefix)
	}
}

func TestAlternativeCourse(t *testing.T) {
	cause := errors.New("no rows")
	err := fmt.Errorf("lookup: %w", WrapAlternativeCourse(404, "user not found", cause))

	alt, ok := AsAlternativeCourse(err)
	if !ok {
		t.Fatalf("%s - AsAlternativeCourse() should match a wrapped error", usecaseTestPrefix)
	}
	if alt.Code != 404 || !errors.Is(err, cause) {
		t.Errorf("%s - alt = %+v", usecaseTestPrefix, alt)
	}
	if _, ok := AsAlternativeCourse(errors.New("boom")); ok {
		t.Errorf("%s - plain error is not an alternative course", usecaseTestPrefix)
	}
	if got := NewAlternativeCourse(400, "bad").Error(); got != "bad" {
		t.Errorf("%s - Error() = %q", usecaseTestPrefix, got)
	}
}

func TestRequestTypeNotFoundError_Message(t *testing.T) {
	err := &RequestTypeNotFoundError{UseCase: "greet", TypeName: "Foo", Reason: "not registered"}
	want := `request type for use case "greet" not found (type "Foo"): not registered`
	if err.Error() != want {
		t.Errorf("%s - Error() = %q, want %q", usecaseTestPrefix, err.Error(), want)
	}
}
