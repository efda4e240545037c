// Package diagnostics defines the user-facing messages produced by a
// resolution pass and renders them for terminals and logs.
package diagnostics

import (
	"fmt"
	"sort"
)

// Code identifies a class of diagnostic.
type Code string

const (
	// Resolution failures
	CodeNoCandidate      Code = "G001"
	CodeAmbiguous        Code = "G002"
	CodeCycle            Code = "G003"
	CodeMalformedPattern Code = "G004"
	CodeUnresolved       Code = "G005"

	// Declaration rules
	CodePatternOnNonProvider   Code = "G100"
	CodeMultiplePatternParams  Code = "G101"
	CodeUntypedRequestedParam  Code = "G102"
	CodePreferredWithoutMarker Code = "G103"
	CodeUninjectableParam      Code = "G104"
)

// Severity of a diagnostic.
type Severity int

const (
	Error Severity = iota
	Warning
)

func (s Severity) String() string {
	if s == Warning {
		return "warning"
	}
	return "error"
}

// Span is a half-open offset range in a file. Call sites are identified by their span.
type Span struct {
	File  string
	Start int
	End   int
}

func (s Span) String() string {
	return fmt.Sprintf("%s:%d-%d", s.File, s.Start, s.End)
}

// Less orders spans by file, then start, then end.
func (s Span) Less(o Span) bool {
	if s.File != o.File {
		return s.File < o.File
	}
	if s.Start != o.Start {
		return s.Start < o.Start
	}
	return s.End < o.End
}

// Contains reports whether o lies within s.
func (s Span) Contains(o Span) bool {
	return s.File == o.File && s.Start <= o.Start && o.End <= s.End
}

// Diagnostic is one message attached to a source range.
type Diagnostic struct {
	Code     Code
	Severity Severity
	Span     Span
	Message  string
}

func (d Diagnostic) Error() string {
	return fmt.Sprintf("%s: %s %s: %s", d.Span, d.Severity, d.Code, d.Message)
}

// New creates an error diagnostic.
func New(code Code, span Span, format string, args ...interface{}) Diagnostic {
	return Diagnostic{Code: code, Severity: Error, Span: span, Message: fmt.Sprintf(format, args...)}
}

// Sort orders diagnostics by position, then code.
func Sort(diags []Diagnostic) {
	sort.SliceStable(diags, func(i, j int) bool {
		if diags[i].Span != diags[j].Span {
			return diags[i].Span.Less(diags[j].Span)
		}
		return diags[i].Code < diags[j].Code
	})
}

// HasErrors reports whether any diagnostic is an error.
func HasErrors(diags []Diagnostic) bool {
	for _, d := range diags {
		if d.Severity == Error {
			return true
		}
	}
	return false
}
