package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures of a compilation
type ErrorKind string

// ErrorKind constants
const (
	ErrorKindInvalidRequest ErrorKind = "invalid_request"
	ErrorKindFetch          ErrorKind = "fetch_error"
	ErrorKindExtract        ErrorKind = "extract_error"
	ErrorKindConcat         ErrorKind = "concat_error"
	ErrorKindPublish        ErrorKind = "publish_error"
	ErrorKindInternal       ErrorKind = "internal_error"
)

// PipelineError carries the kind of failure and the stage that produced it
type PipelineError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *PipelineError) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// NewError wraps err with a kind and operation name
func NewError(kind ErrorKind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &PipelineError{Kind: kind, Op: op, Err: err}
}

// InvalidRequest builds an invalid_request error from a message
func InvalidRequest(format string, args ...interface{}) error {
	return &PipelineError{Kind: ErrorKindInvalidRequest, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of the first PipelineError in err's chain.
// Unclassified errors are internal.
func KindOf(err error) ErrorKind {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ErrorKindInternal
}

// IsInvalidRequest reports whether err was caused by a malformed submission
func IsInvalidRequest(err error) bool {
	return err != nil && KindOf(err) == ErrorKindInvalidRequest
}
