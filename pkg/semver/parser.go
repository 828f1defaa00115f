// Package semver parses versioned use-case references and resolves them
// against registered versions.
package semver

import (
	"fmt"
	"regexp"
	"strings"
)

const logPrefix = "semver:parser"

// ParsedRef holds the parsed components of a use-case reference.
type ParsedRef struct {
	// Use-case name without version (e.g. "billing.invoice.create")
	Name string
	// Version or range if given (e.g. "^1.2.0", "2", ""); empty means none
	Range string
	// Raw input string
	Raw string
}

var (
	nameRegex         = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9._:/-]*$`)
	majorOnlyRegex    = regexp.MustCompile(`^\d+$`)
	exactVersionRegex = regexp.MustCompile(`^\d+\.\d+\.\d+(-[\w.]+)?(\+[\w.]+)?$`)
)

// ParseRef parses a use-case reference.
//
// Supported formats:
//   - greet            (no version)
//   - greet@2          (major only)
//   - greet@2.1.0      (exact version)
//   - greet@^2.1.0     (caret range)
//   - greet@~2.1.0     (tilde range)
//   - greet@>=2.0.0    (comparison range)
func ParseRef(input string) (*ParsedRef, error) {
	raw := strings.TrimSpace(input)

	name, rangeStr, hasVersion := strings.Cut(raw, "@")
	if name == "" {
		return nil, fmt.Errorf("%s - invalid use case reference, missing name: %q", logPrefix, input)
	}
	if hasVersion && strings.TrimSpace(rangeStr) == "" {
		return nil, fmt.Errorf("%s - invalid use case reference, empty version: %q", logPrefix, input)
	}

	return &ParsedRef{
		Name:  name,
		Range: strings.TrimSpace(rangeStr),
		Raw:   raw,
	}, nil
}

// HasVersion reports whether the reference carried a version or range.
func (r *ParsedRef) HasVersion() bool {
	return r.Range != ""
}

// IsMajorOnly checks if a range is a major-only specifier (e.g., "3").
func IsMajorOnly(rangeStr string) bool {
	return majorOnlyRegex.MatchString(rangeStr)
}

// IsExactVersion checks if a range is an exact version (e.g., "3.2.1").
func IsExactVersion(rangeStr string) bool {
	return exactVersionRegex.MatchString(rangeStr)
}

// ExtractMajorFromRange extracts the major version if the range is major-only.
// Returns -1 if not a major-only range.
func ExtractMajorFromRange(rangeStr string) int {
	if !IsMajorOnly(rangeStr) {
		return -1
	}
	var major int
	fmt.Sscanf(rangeStr, "%d", &major)
	return major
}

// BuildRef joins a name and an optional version into a reference string.
func BuildRef(name, version string) string {
	if version != "" {
		return name + "@" + version
	}
	return name
}

// ValidateName validates a use-case name (letters, digits, dots, colons,
// slashes, hyphens, underscores; must start with a letter).
func ValidateName(name string) bool {
	return nameRegex.MatchString(name)
}
