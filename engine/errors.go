package engine

import "fmt"

// LoopErrorKind discriminates the LoopError taxonomy of §7.
type LoopErrorKind int

const (
	// ErrMaxTurns means the configured turn limit was reached.
	ErrMaxTurns LoopErrorKind = iota
	// ErrProvider means the upstream provider call failed.
	ErrProvider
	// ErrTool means a tool invocation failed with a non-ModelRetry error.
	ErrTool
	// ErrContext means compaction failed.
	ErrContext
	// ErrHookTerminated means a hook requested Terminate, or itself errored.
	ErrHookTerminated
	// ErrCancelled means cancellation was observed at a checkpoint.
	ErrCancelled
	// ErrUsageLimitExceeded means an optional usage-limit policy tripped.
	ErrUsageLimitExceeded
)

func (k LoopErrorKind) String() string {
	switch k {
	case ErrMaxTurns:
		return "max_turns"
	case ErrProvider:
		return "provider"
	case ErrTool:
		return "tool"
	case ErrContext:
		return "context"
	case ErrHookTerminated:
		return "hook_terminated"
	case ErrCancelled:
		return "cancelled"
	case ErrUsageLimitExceeded:
		return "usage_limit_exceeded"
	default:
		return "unknown"
	}
}

// LoopError is the structured failure the engine returns from Run/RunText/
// StepIterator.Next/RunStream. Every fatal-for-this-run outcome in §7 is
// represented by exactly one Kind here.
type LoopError struct {
	Kind    LoopErrorKind
	Message string
	Cause   error

	// Limit is populated only for ErrMaxTurns: the max_turns value that was
	// reached.
	Limit int

	// UsageKind is populated only for ErrUsageLimitExceeded: which budget
	// tripped ("requests", "tokens", or "tool_calls").
	UsageKind string
}

func (e *LoopError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *LoopError) Unwrap() error { return e.Cause }

// MaxTurns constructs an ErrMaxTurns LoopError for the reached limit.
func MaxTurns(limit int) *LoopError {
	return &LoopError{Kind: ErrMaxTurns, Limit: limit, Message: fmt.Sprintf("turn limit %d reached", limit)}
}

// ProviderFailed wraps cause as an ErrProvider LoopError.
func ProviderFailed(cause error) *LoopError {
	return &LoopError{Kind: ErrProvider, Message: "provider call failed", Cause: cause}
}

// ToolFailed wraps cause as an ErrTool LoopError.
func ToolFailed(cause error) *LoopError {
	return &LoopError{Kind: ErrTool, Message: "tool invocation failed", Cause: cause}
}

// ContextFailed wraps cause as an ErrContext LoopError.
func ContextFailed(cause error) *LoopError {
	return &LoopError{Kind: ErrContext, Message: "context compaction failed", Cause: cause}
}

// HookTerminated constructs an ErrHookTerminated LoopError carrying reason
// (either the hook's requested Terminate reason, or the hook's own error
// message).
func HookTerminated(reason string) *LoopError {
	return &LoopError{Kind: ErrHookTerminated, Message: reason}
}

// Cancelled constructs an ErrCancelled LoopError.
func Cancelled() *LoopError {
	return &LoopError{Kind: ErrCancelled, Message: "cancellation observed at checkpoint"}
}

// UsageLimitExceeded constructs an ErrUsageLimitExceeded LoopError naming
// which budget (kind) tripped.
func UsageLimitExceeded(kind string) *LoopError {
	return &LoopError{Kind: ErrUsageLimitExceeded, UsageKind: kind, Message: fmt.Sprintf("usage limit exceeded: %s", kind)}
}
