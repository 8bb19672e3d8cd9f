// Package tools defines the type-erased tool contract the registry stores
// and invokes: handler shape, error taxonomy, and ambient ToolContext reuse
// from package model.
package tools

import (
	"errors"
	"fmt"
)

// Kind discriminates the ToolError taxonomy of §4.C.
type Kind int

const (
	// KindNotFound means the registry has no tool registered under the
	// requested name.
	KindNotFound Kind = iota
	// KindInvalidInput means the input failed schema validation or is
	// otherwise malformed.
	KindInvalidInput
	// KindPermissionDenied means a PermissionChecker middleware denied
	// (or requires confirmation for) the call.
	KindPermissionDenied
	// KindExecutionFailed means the tool body itself returned a
	// non-recoverable error.
	KindExecutionFailed
	// KindModelRetry is the only locally-recoverable kind: the engine
	// converts it into an error-flagged ToolResult carrying Hint so the
	// model can self-correct on the next turn, instead of aborting.
	KindModelRetry
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindInvalidInput:
		return "invalid_input"
	case KindPermissionDenied:
		return "permission_denied"
	case KindExecutionFailed:
		return "execution_failed"
	case KindModelRetry:
		return "model_retry"
	default:
		return "unknown"
	}
}

// Error is a structured tool failure. It implements error and supports
// errors.Is/As via Unwrap, mirroring the teacher's toolerrors.ToolError
// chain shape but adding the Kind discriminator the spec's taxonomy
// requires.
type Error struct {
	Kind    Kind
	Name    string // tool name, set by the registry at dispatch time
	Message string
	Hint    string // only meaningful for KindModelRetry
	Cause   error
}

// NotFound constructs a KindNotFound error for the named tool.
func NotFound(name string) *Error {
	return &Error{Kind: KindNotFound, Name: name, Message: fmt.Sprintf("tool %q not found", name)}
}

// InvalidInput constructs a KindInvalidInput error naming the offending
// field or reason.
func InvalidInput(msg string) *Error {
	return &Error{Kind: KindInvalidInput, Message: msg}
}

// PermissionDenied constructs a KindPermissionDenied error carrying reason.
func PermissionDenied(reason string) *Error {
	return &Error{Kind: KindPermissionDenied, Message: reason}
}

// ExecutionFailed wraps an arbitrary tool-body error as KindExecutionFailed.
func ExecutionFailed(cause error) *Error {
	msg := "tool execution failed"
	if cause != nil {
		msg = cause.Error()
	}
	return &Error{Kind: KindExecutionFailed, Message: msg, Cause: cause}
}

// ModelRetry constructs a KindModelRetry error carrying a hint the engine
// will surface to the model as error-flagged tool-result text.
func ModelRetry(hint string) *Error {
	return &Error{Kind: KindModelRetry, Message: "model retry requested", Hint: hint}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Name != "" {
		return fmt.Sprintf("tool %q: %s: %s", e.Name, e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap supports errors.Is/As against the wrapped cause.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// AsToolError extracts a *Error from err via errors.As, for callers that
// need to branch on Kind without re-declaring the chain walk.
func AsToolError(err error) (*Error, bool) {
	var te *Error
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}
