// Package saserrors provides structured error handling for the bridge with a
// closed error-code taxonomy mirroring the decoding engine's status contract.
//
// Every failure surfaced by the bridge carries one of the codes below, the
// statically-known message for that code, and whatever last-error detail the
// engine captured at the time of failure. Codes are never coerced to a default:
// an unknown engine status maps to CodeInternal with the raw status preserved
// as a detail.
//
// CodeEndOfData is not a failure. It is the designated terminal signal for
// stream exhaustion; iterators consume it and end cleanly rather than
// surfacing it to callers.
package saserrors

import (
	"errors"
	"fmt"
	"runtime"
)

// Code categorizes a bridge error. The set is closed; see the engine status
// contract for the numeric side of the mapping.
type Code string

const (
	// CodeFileNotFound indicates the source file is missing or unreadable.
	CodeFileNotFound Code = "file_not_found"
	// CodeInvalidFile indicates the source file is not a valid SAS7BDAT file.
	CodeInvalidFile Code = "invalid_file"
	// CodeOutOfMemory indicates the engine failed to allocate.
	CodeOutOfMemory Code = "out_of_memory"
	// CodeInternal indicates an engine-internal or interchange-level failure.
	CodeInternal Code = "internal_engine_error"
	// CodeEndOfData signals stream exhaustion. Terminal, not a failure.
	CodeEndOfData Code = "end_of_data"
	// CodeInvalidBatchIndex indicates a random-access index >= batch count.
	CodeInvalidBatchIndex Code = "invalid_batch_index"
	// CodeNullPointer indicates a required handle or argument was absent,
	// including use of a reader after Close.
	CodeNullPointer Code = "null_pointer"
	// CodeUnsupportedType indicates a physical column type outside the
	// bridge's closed type mapping.
	CodeUnsupportedType Code = "unsupported_type"
)

// Error is a structured bridge error with code, message, cause and captured
// stack. Instances are not safe for concurrent modification; add details
// before sharing.
type Error struct {
	Code    Code
	Message string
	Cause   error
	Details map[string]interface{}
	Stack   []StackFrame
}

// StackFrame is a single frame captured at error creation.
type StackFrame struct {
	Function string
	File     string
	Line     int
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is / errors.As chains.
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail attaches a key-value detail and returns the error for chaining.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates an error with the given code and message, capturing the call
// stack at the point of creation.
func New(code Code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Stack:   captureStack(2),
	}
}

// Wrap wraps an existing error under a bridge code, preserving the original
// as the cause. Returns nil if err is nil. If err is already a bridge Error
// its stack is kept.
func Wrap(err error, code Code, message string) *Error {
	if err == nil {
		return nil
	}

	var existing *Error
	if errors.As(err, &existing) {
		return &Error{
			Code:    code,
			Message: message,
			Cause:   err,
			Stack:   existing.Stack,
		}
	}

	return &Error{
		Code:    code,
		Message: message,
		Cause:   err,
		Stack:   captureStack(2),
	}
}

// IsCode reports whether err carries the given bridge code.
func IsCode(err error, code Code) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Code == code
}

// IsEndOfData reports whether err is the stream-exhaustion signal.
func IsEndOfData(err error) bool {
	return IsCode(err, CodeEndOfData)
}

// CodeOf extracts the bridge code from err, or CodeInternal if err carries
// none.
func CodeOf(err error) Code {
	var e *Error
	if !errors.As(err, &e) {
		return CodeInternal
	}
	return e.Code
}

func captureStack(skip int) []StackFrame {
	const maxFrames = 32
	frames := make([]StackFrame, 0, maxFrames)

	for i := skip; i < maxFrames+skip; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}

		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}

		frames = append(frames, StackFrame{
			Function: fn.Name(),
			File:     file,
			Line:     line,
		})
	}

	return frames
}
