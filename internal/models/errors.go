package models

import (
	"errors"
	"fmt"
)

// ErrorKind identifies which part of the pipeline failed.
type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindExtraction ErrorKind = "extraction"
	KindInference  ErrorKind = "inference"
	KindConversion ErrorKind = "conversion"
	KindWrite      ErrorKind = "write"
	KindRead       ErrorKind = "read"
)

// Inference failure reasons.
const (
	ReasonTimeout         = "timeout"
	ReasonTransport       = "transport"
	ReasonStatus          = "status"
	ReasonInvalidResponse = "invalid_response"
)

// PipelineError carries the failure kind, an optional reason and the stage
// ordinal (0 when the failure is outside the inference stages).
type PipelineError struct {
	Kind    ErrorKind
	Reason  string
	Stage   int
	Message string
	Err     error
}

func (e *PipelineError) Error() string {
	prefix := string(e.Kind)
	if e.Reason != "" {
		prefix += "/" + e.Reason
	}
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", prefix, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", prefix, e.Message)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// Is matches another PipelineError by kind and, when set on the target, reason.
func (e *PipelineError) Is(target error) bool {
	t, ok := target.(*PipelineError)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Reason == "" || t.Reason == e.Reason
}

// Info converts the error into its wire form.
func (e *PipelineError) Info() *ErrorInfo {
	return &ErrorInfo{Kind: string(e.Kind), Reason: e.Reason, Stage: e.Stage}
}

func ValidationFailure(message string, err error) *PipelineError {
	return &PipelineError{Kind: KindValidation, Message: message, Err: err}
}

func ExtractionFailure(message string, err error) *PipelineError {
	return &PipelineError{Kind: KindExtraction, Message: message, Err: err}
}

func InferenceFailure(reason, message string, err error) *PipelineError {
	return &PipelineError{Kind: KindInference, Reason: reason, Message: message, Err: err}
}

func ConversionFailure(message string, err error) *PipelineError {
	return &PipelineError{Kind: KindConversion, Message: message, Err: err}
}

func WriteFailure(message string, err error) *PipelineError {
	return &PipelineError{Kind: KindWrite, Message: message, Err: err}
}

func ReadFailure(message string, err error) *PipelineError {
	return &PipelineError{Kind: KindRead, Message: message, Err: err}
}

// Sentinel targets for errors.Is.
var (
	ErrTimeout         = &PipelineError{Kind: KindInference, Reason: ReasonTimeout}
	ErrInvalidResponse = &PipelineError{Kind: KindInference, Reason: ReasonInvalidResponse}
	ErrExtraction      = &PipelineError{Kind: KindExtraction}
	ErrInference       = &PipelineError{Kind: KindInference}
	ErrConversion      = &PipelineError{Kind: KindConversion}
	ErrWrite           = &PipelineError{Kind: KindWrite}
	ErrRead            = &PipelineError{Kind: KindRead}
	ErrValidation      = &PipelineError{Kind: KindValidation}
)

// AsPipelineError unwraps err into a PipelineError, wrapping unknown errors
// under the given fallback kind.
func AsPipelineError(err error, fallback ErrorKind) *PipelineError {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe
	}
	return &PipelineError{Kind: fallback, Message: "unexpected failure", Err: err}
}
