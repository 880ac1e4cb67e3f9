package models

import "errors"

// ValidationError reports malformed or missing arguments, or a guardrail violation.
// Its message is safe to show to the user.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// ResolutionError reports that a single lead or task could not be identified
type ResolutionError struct {
	Message string
}

func (e *ResolutionError) Error() string { return e.Message }

// ExternalFailure wraps a data-store or provider failure. Message is the generic
// user-facing text; Err carries the detail for logs.
type ExternalFailure struct {
	Message string
	Err     error
}

func (e *ExternalFailure) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *ExternalFailure) Unwrap() error { return e.Err }

// NewValidationError creates a ValidationError
func NewValidationError(msg string) error { return &ValidationError{Message: msg} }

// NewResolutionError creates a ResolutionError
func NewResolutionError(msg string) error { return &ResolutionError{Message: msg} }

// NewExternalFailure creates an ExternalFailure
func NewExternalFailure(msg string, err error) error {
	return &ExternalFailure{Message: msg, Err: err}
}

// IsValidation reports whether err is or wraps a ValidationError
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsResolution reports whether err is or wraps a ResolutionError
func IsResolution(err error) bool {
	var r *ResolutionError
	return errors.As(err, &r)
}

// IsExternal reports whether err is or wraps an ExternalFailure
func IsExternal(err error) bool {
	var x *ExternalFailure
	return errors.As(err, &x)
}

// UserMessage returns the text that may be shown to the caller for err
func UserMessage(err error) string {
	var v *ValidationError
	if errors.As(err, &v) {
		return v.Message
	}
	var r *ResolutionError
	if errors.As(err, &r) {
		return r.Message
	}
	var x *ExternalFailure
	if errors.As(err, &x) {
		return x.Message
	}
	return "Failed to answer the request."
}
