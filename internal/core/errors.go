package core

// errors.go defines the error taxonomy of an import run.
//
// Three classes escape or stay inside the record loop:
//
//   - FatalError: the run cannot continue (file unreadable, header missing,
//     flush failed). Always returned from Pipeline.Run.
//   - RecordError: one record failed. Recorded as a warning; never returned.
//   - ConfigurationError: the run was misconfigured. Returned before any I/O.
//
// The leaf errors (MalformedColumnError, RecordArityError, ...) are wrapped by
// one of the three classes and stay reachable through errors.As.

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrHeaderMissing is returned when the input has no header line.
	ErrHeaderMissing = errors.New("header missing: input is empty")

	// ErrMissingIdentifier is returned for a record without an identifier value.
	ErrMissingIdentifier = errors.New("missing identifier value")

	// ErrRunCancelled is returned when a run stops early on cancellation.
	ErrRunCancelled = errors.New("import run cancelled")
)

// MalformedColumnError is returned for a header token that cannot be decoded
// into attribute, locale and scope.
type MalformedColumnError struct {
	Column   string
	Segments int
	Reason   string
}

func (e *MalformedColumnError) Error() string {
	return fmt.Sprintf("malformed column %q: %s", e.Column, e.Reason)
}

// RecordArityError is returned for a data line whose field count differs
// from the header's.
type RecordArityError struct {
	Line     int
	Expected int
	Actual   int
	Raw      string
}

func (e *RecordArityError) Error() string {
	return fmt.Sprintf("line %d: expected %d columns, got %d", e.Line, e.Expected, e.Actual)
}

// UnknownAttributeError is returned when a column targets an attribute the
// catalog does not define.
type UnknownAttributeError struct {
	Code string
}

func (e *UnknownAttributeError) Error() string {
	return fmt.Sprintf("unknown attribute %q", e.Code)
}

// InvalidValueError is returned when the updater rejects a value.
type InvalidValueError struct {
	Code   string
	Value  string
	Locale string
	Scope  string
	Reason string
}

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("invalid value %q for attribute %q: %s", e.Value, e.Code, e.Reason)
}

// RecordStage identifies where inside a record a failure happened.
type RecordStage string

const (
	StageParsing    RecordStage = "parsing"
	StageResolving  RecordStage = "resolving"
	StageCreating   RecordStage = "creating"
	StageMerging    RecordStage = "merging"
	StagePersisting RecordStage = "persisting"
)

// RecordError isolates a failure to a single record.
type RecordError struct {
	Line       int
	Identifier string
	Stage      RecordStage
	Err        error
}

func (e *RecordError) Error() string {
	if e.Identifier != "" {
		return fmt.Sprintf("line %d (%s) %s: %v", e.Line, e.Identifier, e.Stage, e.Err)
	}
	return fmt.Sprintf("line %d %s: %v", e.Line, e.Stage, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }

// FatalError aborts a run.
type FatalError struct {
	Op  string
	Err error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

// Fatal wraps err so the pipeline aborts instead of isolating it to a record.
// Stores use it for failures that leave the session unusable.
func Fatal(op string, err error) error {
	if err == nil {
		return nil
	}
	return &FatalError{Op: op, Err: err}
}

// IsFatal reports whether err aborts a run.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}

// ConfigurationError lists every problem found in a run configuration.
type ConfigurationError struct {
	Problems []string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid import configuration:\n  - %s", strings.Join(e.Problems, "\n  - "))
}
