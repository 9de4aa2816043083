package common

import (
	"errors"
	"fmt"
)

// Stage identifies which pipeline step produced an error.
type Stage string

const (
	StageSource     Stage = "SOURCE"
	StageDownload   Stage = "DOWNLOAD"
	StageOCR        Stage = "OCR"
	StageSemantic   Stage = "SEMANTIC"
	StageVLM        Stage = "VLM_CLEANING"
	StageExtraction Stage = "EXTRACTION"
	StagePipeline   Stage = "PIPELINE"
)

// AppError represents application-specific errors.
// Transient marks failures worth retrying (network hiccups, 5xx, timeouts);
// it is set by the component that produced the error, never inferred from
// the message text downstream.
type AppError struct {
	Stage     Stage
	Message   string
	Transient bool
	Cause     error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Stage, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Stage, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrNotRecognized = errors.New("source not recognized")
	ErrPrecondition  = errors.New("stage precondition not met")
)

// Error constructors
func NewAppError(stage Stage, message string, cause error) *AppError {
	return &AppError{Stage: stage, Message: message, Cause: cause}
}

func NewTransientError(stage Stage, message string, cause error) *AppError {
	return &AppError{Stage: stage, Message: message, Transient: true, Cause: cause}
}

// PreconditionError reports a stage invoked out of order. The message names
// the missing prerequisite so the caller can surface it directly.
func PreconditionError(message string) *AppError {
	return &AppError{Stage: StagePipeline, Message: message, Cause: ErrPrecondition}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// StageOf extracts the stage of an error, or StagePipeline for plain errors.
func StageOf(err error) Stage {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Stage
	}
	return StagePipeline
}

type transienter interface {
	Transient() bool
}

// IsTransient reports whether err (or any wrapped error) was classified
// transient by the component that raised it. Provider errors participate by
// exposing a Transient() method.
func IsTransient(err error) bool {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Transient
	}
	var t transienter
	if errors.As(err, &t) {
		return t.Transient()
	}
	return false
}

// ClassifyError wraps a stage failure, carrying over the transient flag the
// underlying component attached to its error.
func ClassifyError(stage Stage, message string, cause error) *AppError {
	return &AppError{Stage: stage, Message: message, Transient: IsTransient(cause), Cause: cause}
}
