package engine

import (
	"errors"
	"fmt"
)

// EngineError represents a failure surfaced by Start or AddModule.
//
// Engine errors are terminal to the current Start call only. The engine is
// left stopped and the caller may call Start again.
type EngineError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Phase names the lifecycle broadcast that failed (listener panics only).
	Phase Phase

	// Err is the underlying cause, if any.
	Err error
}

// ErrorCode categorizes engine errors.
type ErrorCode string

const (
	// ErrCodeAlreadyRunning indicates Start was called while the engine was
	// running (or while an earlier Start had not yet returned).
	ErrCodeAlreadyRunning ErrorCode = "ALREADY_RUNNING"

	// ErrCodeSetupFailed indicates the factory's setup reported failure.
	ErrCodeSetupFailed ErrorCode = "SETUP_FAILED"

	// ErrCodeListenerPanic indicates a lifecycle listener panicked.
	ErrCodeListenerPanic ErrorCode = "LISTENER_PANIC"

	// ErrCodeInvalidModule indicates a module exposes no lifecycle capability.
	ErrCodeInvalidModule ErrorCode = "INVALID_MODULE"
)

// Phase names a lifecycle broadcast.
type Phase string

const (
	PhaseInitialize   Phase = "initialize"
	PhaseProcess      Phase = "process"
	PhaseDeinitialize Phase = "deinitialize"
)

// Error implements the error interface.
func (e *EngineError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Phase != "" {
		msg = fmt.Sprintf("%s (phase=%s)", msg, e.Phase)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *EngineError) Unwrap() error {
	return e.Err
}

// IsAlreadyRunning reports whether err is a redundant-start error.
func IsAlreadyRunning(err error) bool {
	return hasCode(err, ErrCodeAlreadyRunning)
}

// IsSetupFailure reports whether err is a factory setup failure.
func IsSetupFailure(err error) bool {
	return hasCode(err, ErrCodeSetupFailed)
}

// IsListenerPanic reports whether err was caused by a panicking listener.
func IsListenerPanic(err error) bool {
	return hasCode(err, ErrCodeListenerPanic)
}

// CodeOf returns the ErrorCode carried by err, or "" if err is not an
// EngineError.
func CodeOf(err error) ErrorCode {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return ""
}

func hasCode(err error, code ErrorCode) bool {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Code == code
	}
	return false
}

// NewAlreadyRunningError creates an EngineError for a redundant Start.
func NewAlreadyRunningError() *EngineError {
	return &EngineError{
		Code:    ErrCodeAlreadyRunning,
		Message: "engine already running",
	}
}

// NewSetupError creates an EngineError wrapping a factory setup failure.
func NewSetupError(cause error) *EngineError {
	return &EngineError{
		Code:    ErrCodeSetupFailed,
		Message: "factory setup failed",
		Err:     cause,
	}
}

// NewListenerPanicError creates an EngineError for a recovered listener panic.
func NewListenerPanicError(phase Phase, recovered any) *EngineError {
	err, ok := recovered.(error)
	if !ok {
		err = fmt.Errorf("%v", recovered)
	}
	return &EngineError{
		Code:    ErrCodeListenerPanic,
		Message: "listener panicked during broadcast",
		Phase:   phase,
		Err:     err,
	}
}
