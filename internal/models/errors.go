package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies pipeline failures so callers can branch on the
// kind instead of inspecting message text.
type ErrorKind string

const (
	KindMalformedRequest    ErrorKind = "malformed_request"
	KindSchemaInference     ErrorKind = "schema_inference"
	KindProvisioningTimeout ErrorKind = "provisioning_timeout"
	KindLoadConflict        ErrorKind = "load_conflict"
	KindLoadJobFailure      ErrorKind = "load_job_failure"
	KindVerificationTimeout ErrorKind = "verification_timeout"
	KindAnalysisFailure     ErrorKind = "analysis_failure"
	KindCleaningFailure     ErrorKind = "cleaning_failure"
	KindValidationFailure   ErrorKind = "validation_failure"
)

// PipelineError carries the failure kind plus the stage that produced it.
type PipelineError struct {
	Kind  ErrorKind
	Stage string
	Err   error
}

func (e *PipelineError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Stage, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Stage, e.Kind, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// NewError wraps err with a kind and the stage it occurred in.
func NewError(kind ErrorKind, stage string, err error) *PipelineError {
	return &PipelineError{Kind: kind, Stage: stage, Err: err}
}

// Errorf is NewError with a formatted message instead of a wrapped cause.
func Errorf(kind ErrorKind, stage, format string, args ...any) *PipelineError {
	return &PipelineError{Kind: kind, Stage: stage, Err: fmt.Errorf(format, args...)}
}

// KindOf extracts the ErrorKind from err, or "" if err carries none.
func KindOf(err error) ErrorKind {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}
