package semver

import (
	"reflect"
	"testing"
)

func makeVersions(t *testing.T) []VersionRecord {
	t.Helper()
	var out []VersionRecord
	for _, v := range []string{"3.4.2", "3.3.0", "3.2.1", "2.1.0", "2.0.0", "1.0.0", "3.5.0-alpha.1"} {
		rec, err := NewVersionRecord("greet@"+v, v)
		if err != nil {
			t.Fatalf("NewVersionRecord(%s): %v", v, err)
		}
		out = append(out, rec)
	}
	return out
}

func TestResolveVersion_NoRange(t *testing.T) {
	result := ResolveVersion(makeVersions(t), "")
	if result == nil {
		t.Fatal("expected result, got nil")
	}
	// latest stable in the highest major
	if result.VersionString != "3.4.2" {
		t.Errorf("expected 3.4.2, got %s", result.VersionString)
	}
}

func TestResolveVersion_MajorOnly(t *testing.T) {
	result := ResolveVersion(makeVersions(t), "2")
	if result == nil {
		t.Fatal("expected result, got nil")
	}
	if result.VersionString != "2.1.0" {
		t.Errorf("expected 2.1.0, got %s", result.VersionString)
	}
}

func TestResolveVersion_CaretRange(t *testing.T) {
	result := ResolveVersion(makeVersions(t), "^3.2.0")
	if result == nil {
		t.Fatal("expected result, got nil")
	}
	if result.VersionString != "3.4.2" {
		t.Errorf("expected 3.4.2, got %s", result.VersionString)
	}
	if result.Key != "greet@3.4.2" {
		t.Errorf("expected key greet@3.4.2, got %s", result.Key)
	}
}

func TestResolveVersion_TildeRange(t *testing.T) {
	result := ResolveVersion(makeVersions(t), "~3.3.0")
	if result == nil {
		t.Fatal("expected result, got nil")
	}
	if result.VersionString != "3.3.0" {
		t.Errorf("expected 3.3.0, got %s", result.VersionString)
	}
}

func TestResolveVersion_ExactVersion(t *testing.T) {
	result := ResolveVersion(makeVersions(t), "2.0.0")
	if result == nil {
		t.Fatal("expected result, got nil")
	}
	if result.VersionString != "2.0.0" {
		t.Errorf("expected 2.0.0, got %s", result.VersionString)
	}
}

func TestResolveVersion_NoMatch(t *testing.T) {
	if result := ResolveVersion(makeVersions(t), "^9.0.0"); result != nil {
		t.Errorf("expected nil, got %s", result.VersionString)
	}
	if result := ResolveVersion(nil, ""); result != nil {
		t.Errorf("expected nil for empty list")
	}
}

func TestResolveVersion_PrereleaseOnlyMajor(t *testing.T) {
	rec, _ := NewVersionRecord("greet@4.0.0-rc.1", "4.0.0-rc.1")
	result := ResolveVersion([]VersionRecord{rec}, "4")
	if result == nil || result.VersionString != "4.0.0-rc.1" {
		t.Errorf("expected 4.0.0-rc.1, got %v", result)
	}
}

func TestSatisfiesRange(t *testing.T) {
	tests := []struct {
		version string
		rng     string
		want    bool
	}{
		{"1.2.3", "^1.0.0", true},
		{"2.0.0", "^1.0.0", false},
		{"1.4.0", "1", true},
		{"1.4.0", "2", false},
		{"1.0.0", "not-a-range", false},
		{"bad", "^1.0.0", false},
	}
	for _, tt := range tests {
		if got := SatisfiesRange(tt.version, tt.rng); got != tt.want {
			t.Errorf("SatisfiesRange(%s, %s) = %v, want %v", tt.version, tt.rng, got, tt.want)
		}
	}
}

func TestNewVersionRecord_Invalid(t *testing.T) {
	if _, err := NewVersionRecord("x", "1.2"); err == nil {
		t.Error("expected error for non-strict version")
	}
}

func TestIndex_AddAndResolve(t *testing.T) {
	x := NewIndex()
	for _, key := range []string{"greet@1.0.0", "greet@1.2.0", "greet@2.0.0", "greet"} {
		if _, err := x.Add(key); err != nil {
			t.Fatalf("Add(%s): %v", key, err)
		}
	}

	tests := []struct {
		ref  string
		want string
		ok   bool
	}{
		{ref: "greet", want: "greet@2.0.0", ok: true},
		{ref: "greet@^1", want: "greet@1.2.0", ok: true},
		{ref: "greet@1.0.0", want: "greet@1.0.0", ok: true},
		{ref: "greet@3", ok: false},
		{ref: "other", ok: false},
	}
	for _, tt := range tests {
		ref, err := ParseRef(tt.ref)
		if err != nil {
			t.Fatalf("ParseRef(%s): %v", tt.ref, err)
		}
		got, ok := x.Resolve(ref)
		if ok != tt.ok || got != tt.want {
			t.Errorf("Resolve(%s) = %q, %v; want %q, %v", tt.ref, got, ok, tt.want, tt.ok)
		}
	}

	if got := x.Versions("greet"); !reflect.DeepEqual(got, []string{"2.0.0", "1.2.0", "1.0.0"}) {
		t.Errorf("Versions() = %v", got)
	}
}

func TestIndex_Add(t *testing.T) {
	x := NewIndex()
	if versioned, err := x.Add("plain"); versioned || err != nil {
		t.Errorf("plain name: versioned=%v err=%v", versioned, err)
	}
	if _, err := x.Add("greet@^1.0.0"); err == nil {
		t.Error("expected error for range registration")
	}
	x.Add("greet@1.0.0")
	x.Add("greet@1.0.0")
	if got := x.Versions("greet"); len(got) != 1 {
		t.Errorf("re-adding a version should replace it, got %v", got)
	}
}
