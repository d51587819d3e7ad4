package model

import (
	"errors"
	"fmt"
)

// ErrAlreadyRunning is returned by the bootstrap manager when a scan is
// started while another is active. No state is mutated.
var ErrAlreadyRunning = errors.New("a scan is already running")

// AdapterError wraps a model or network failure from an external adapter.
// It is fatal to the current unit of work: it aborts a single confirmation
// loop invocation, and inside a batch iteration it is caught and logged as
// zero suggestions for that document.
type AdapterError struct {
	Op  string
	Err error
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("adapter %s: %v", e.Op, e.Err)
}

func (e *AdapterError) Unwrap() error {
	return e.Err
}

// NewAdapterError wraps err as an adapter failure for the given operation.
func NewAdapterError(op string, err error) *AdapterError {
	return &AdapterError{Op: op, Err: err}
}

// IsAdapterError reports whether err has an AdapterError in its chain.
func IsAdapterError(err error) bool {
	var ae *AdapterError
	return errors.As(err, &ae)
}

// ValidationError marks malformed or unparseable structured model output.
// The confirmation loop treats it as a semantic rejection, consuming one
// retry attempt rather than aborting the invocation.
type ValidationError struct {
	Kind   SuggestionKind
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s analysis output: %s", e.Kind, e.Detail)
}

// NewValidationError creates a ValidationError for the given kind.
func NewValidationError(kind SuggestionKind, detail string) *ValidationError {
	return &ValidationError{Kind: kind, Detail: detail}
}

// IsValidationError reports whether err has a ValidationError in its chain.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// SetupError marks a failure during the one-time setup phase of a bootstrap
// scan (corpus fetch, baseline entity fetch). It aborts the entire run.
type SetupError struct {
	Stage string
	Err   error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("scan setup %s: %v", e.Stage, e.Err)
}

func (e *SetupError) Unwrap() error {
	return e.Err
}

// NewSetupError wraps err as a setup failure for the given stage.
func NewSetupError(stage string, err error) *SetupError {
	return &SetupError{Stage: stage, Err: err}
}
