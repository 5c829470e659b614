package model

import "fmt"

// ParseError reports malformed source with its location.
type ParseError struct {
	Name   string
	Line   int
	Column int
	Msg    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s", e.Name, e.Line, e.Column, e.Msg)
}

// ResourceLimitError reports a source-size or parse-time ceiling being
// exceeded. Limit and Actual are in the unit named by Kind.
type ResourceLimitError struct {
	Name   string
	Kind   string // "size" or "time"
	Limit  int64
	Actual int64
}

func (e *ResourceLimitError) Error() string {
	return fmt.Sprintf("%s: %s limit exceeded (%d > %d)", e.Name, e.Kind, e.Actual, e.Limit)
}

// InstrumentationError reports an AST that violates a transformer
// invariant, including attempts to instrument already-instrumented output.
type InstrumentationError struct {
	Name string
	Msg  string
}

func (e *InstrumentationError) Error() string {
	return fmt.Sprintf("instrument %s: %s", e.Name, e.Msg)
}

// LoaderFallbackWarning records a non-fatal per-file failure: the file
// was loaded uninstrumented and is reported as untracked.
type LoaderFallbackWarning struct {
	Path  Path
	Cause error
}

func (e *LoaderFallbackWarning) Error() string {
	return fmt.Sprintf("loaded %s without instrumentation: %v", e.Path, e.Cause)
}

func (e *LoaderFallbackWarning) Unwrap() error {
	return e.Cause
}
