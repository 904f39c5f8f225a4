// Package errors defines the coded error taxonomy used across the
// coordination engine. Every failure that reaches a metric record or a
// binary exit path is one of these types, so downstream consumers can key
// off Code rather than parsing message strings.
package errors

import (
	"errors"
	"fmt"
)

// Code classifies an engine error.
type Code string

const (
	// CodeInsufficientData means fewer venues or fewer aligned observations
	// than the configured minimum. Fatal to the affected metric, never to
	// the whole run.
	CodeInsufficientData Code = "INSUFFICIENT_DATA"
	// CodeDegenerateInput marks structurally empty inputs: zero-norm
	// vectors, empty sets, zero-variance series. The owning metric resolves
	// to its neutral value.
	CodeDegenerateInput Code = "DEGENERATE_INPUT"
	// CodeNumericalInstability marks runtime numeric failures (NaN
	// correlation, zero denominator in a fit). Resolved like degenerate
	// input but logged under its own code for audit.
	CodeNumericalInstability Code = "NUMERICAL_INSTABILITY"
	// CodeConfiguration marks invalid parameters. Always aborts the run
	// before any computation.
	CodeConfiguration Code = "CONFIGURATION_ERROR"
	// CodeIO marks loader failures (missing files, malformed rows).
	CodeIO Code = "IO_ERROR"
	// CodeInternal is the fallback for unexpected failures.
	CodeInternal Code = "INTERNAL_ERROR"
)

// EngineError is the structured error type threaded through the engine.
type EngineError struct {
	Code    Code
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap allows errors.Is and errors.As to traverse the cause chain.
func (e *EngineError) Unwrap() error {
	return e.Cause
}

// WithContext attaches a key/value pair for structured logging.
func (e *EngineError) WithContext(key string, value interface{}) *EngineError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// New creates an EngineError with the given code and message.
func New(code Code, message string) *EngineError {
	return &EngineError{Code: code, Message: message}
}

// Wrap creates an EngineError wrapping a cause.
func Wrap(code Code, message string, cause error) *EngineError {
	return &EngineError{Code: code, Message: message, Cause: cause}
}

// Newf creates an EngineError with a formatted message.
func Newf(code Code, format string, args ...interface{}) *EngineError {
	return &EngineError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Constructors for the engine taxonomy.

// InsufficientData builds an INSUFFICIENT_DATA error.
func InsufficientData(format string, args ...interface{}) *EngineError {
	return Newf(CodeInsufficientData, format, args...)
}

// DegenerateInput builds a DEGENERATE_INPUT error.
func DegenerateInput(format string, args ...interface{}) *EngineError {
	return Newf(CodeDegenerateInput, format, args...)
}

// NumericalInstability builds a NUMERICAL_INSTABILITY error.
func NumericalInstability(format string, args ...interface{}) *EngineError {
	return Newf(CodeNumericalInstability, format, args...)
}

// Configuration builds a CONFIGURATION_ERROR error.
func Configuration(format string, args ...interface{}) *EngineError {
	return Newf(CodeConfiguration, format, args...)
}

// IO builds an IO_ERROR wrapping a cause.
func IO(message string, cause error) *EngineError {
	return Wrap(CodeIO, message, cause)
}

// CodeOf extracts the Code from an error chain, or CodeInternal when the
// chain contains no EngineError.
func CodeOf(err error) Code {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return CodeInternal
}

// Is reports whether the error chain contains an EngineError with the code.
func Is(err error, code Code) bool {
	return CodeOf(err) == code
}

// IsFatal reports whether an error must abort the run before computation.
// Only configuration errors qualify; every other code degrades to a failed
// or neutral metric record.
func IsFatal(err error) bool {
	return Is(err, CodeConfiguration)
}
