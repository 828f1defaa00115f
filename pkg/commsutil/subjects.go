package commsutil

import (
	"fmt"
	"strings"
)

// Default COMMS subjects.
const (
	SubjectExecute  = "usecase.execute"
	SubjectExecuted = "usecase.executed"
)

// subjectToken makes a use-case name safe for use inside a subject.
// Wildcards and whitespace are replaced; dots are kept as separators.
func subjectToken(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}
		return r
	}, name)
}

// BuildExecuteSubject builds the request subject dedicated to one use case.
func BuildExecuteSubject(useCase string) string {
	return fmt.Sprintf("%s.%s", SubjectExecute, subjectToken(useCase))
}

// BuildExecutedSubject builds the granular execution event subject.
func BuildExecutedSubject(useCase string) string {
	return fmt.Sprintf("%s.%s", SubjectExecuted, subjectToken(useCase))
}

// UseCaseFromSubject extracts the use-case name from a subject built by
// BuildExecuteSubject. It returns false for any other subject.
func UseCaseFromSubject(subject string) (string, bool) {
	name, ok := strings.CutPrefix(subject, SubjectExecute+".")
	if !ok || name == "" {
		return "", false
	}
	return name, true
}
