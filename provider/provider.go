// Package provider defines the model-provider boundary the engine calls
// through: a single CompletionRequest/CompletionResponse contract that
// every concrete adapter (anthropic, openai, bedrock) translates its own
// wire format into, plus an optional streaming variant and a small error
// taxonomy callers (such as provider/ratelimit) use to tell whether a
// failure is retryable.
package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/agentrt/neuronloop/model"
)

// Provider issues non-streaming completions against a backing LLM API.
type Provider interface {
	// Complete sends request and returns the full response. Implementations
	// translate model.CompletionRequest into their own wire format and map
	// the reply back into model.CompletionResponse, including usage and
	// StopReason normalization.
	Complete(ctx context.Context, request model.CompletionRequest) (model.CompletionResponse, error)
}

// Streamer is the optional streaming variant of Provider. Adapters that do
// not support incremental output (for example the Bedrock adapter, which
// does not implement Stream) may omit this interface and
// the engine falls back to Complete plus a synthesized event sequence.
type Streamer interface {
	Stream(ctx context.Context, request model.CompletionRequest) (Stream, error)
}

// Stream yields StreamEvents until it returns io.EOF or another error. Recv
// is not safe for concurrent use.
type Stream interface {
	Recv() (StreamEvent, error)
	Close() error
}

// StreamEventKind discriminates a StreamEvent's populated field.
type StreamEventKind int

const (
	// EventTextDelta carries an incremental text fragment in Text.
	EventTextDelta StreamEventKind = iota
	// EventThinkingDelta carries an incremental thinking fragment in Text.
	EventThinkingDelta
	// EventToolCallDelta carries a partial tool-call input fragment; ToolCallID
	// and ToolCallName identify which in-progress call it belongs to, and
	// Text carries the raw JSON fragment.
	EventToolCallDelta
	// EventToolCallComplete carries a fully assembled ToolUse block in Block.
	EventToolCallComplete
	// EventUsage carries an incremental or final usage snapshot in Usage.
	EventUsage
	// EventMessageComplete signals the end of the response; Response carries
	// the fully assembled CompletionResponse.
	EventMessageComplete
)

// StreamEvent is a tagged union of the events a Stream can yield.
type StreamEvent struct {
	Kind StreamEventKind

	Text         string
	Block        model.ContentBlock
	ToolCallID   string
	ToolCallName string
	Usage        *model.TokenUsage
	Response     *model.CompletionResponse
}

// ErrorKind classifies a provider failure so callers can decide whether to
// retry, surface it, or trigger a rate-limit backoff. The engine itself
// wraps any provider failure as ProviderFailed without inspecting its kind.
type ErrorKind int

const (
	KindTransport ErrorKind = iota
	KindRateLimited
	KindInvalidRequest
	KindAuthentication
	KindOther
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindRateLimited:
		return "rate_limited"
	case KindInvalidRequest:
		return "invalid_request"
	case KindAuthentication:
		return "authentication"
	default:
		return "other"
	}
}

// Error wraps a provider-adapter failure with a Kind callers can branch on
// without importing any concrete SDK's error types.
type Error struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Kind.String() + ": " + e.Message + ": " + e.Cause.Error()
	}
	return e.Kind.String() + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// RateLimited wraps cause as a KindRateLimited Error.
func RateLimited(message string, cause error) *Error {
	return &Error{Kind: KindRateLimited, Message: message, Cause: cause}
}

// Transport wraps cause as a KindTransport Error.
func Transport(message string, cause error) *Error {
	return &Error{Kind: KindTransport, Message: message, Cause: cause}
}

// InvalidRequest wraps cause as a KindInvalidRequest Error.
func InvalidRequest(message string, cause error) *Error {
	return &Error{Kind: KindInvalidRequest, Message: message, Cause: cause}
}

// Authentication wraps cause as a KindAuthentication Error.
func Authentication(message string, cause error) *Error {
	return &Error{Kind: KindAuthentication, Message: message, Cause: cause}
}

// IsRateLimited reports whether err is, or wraps, a KindRateLimited Error.
func IsRateLimited(err error) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind == KindRateLimited
	}
	return false
}

// SynthesizeToolCallID builds a unique, locally stable tool-call id in the
// `<backend>_<uuid>` form required when a backend omits its own id (a
// response-level tool_use block with no id, so downstream pairing against
// ToolResult.ToolUseID can't rely on backend identity alone).
func SynthesizeToolCallID(backend string) string {
	return fmt.Sprintf("%s_%s", backend, uuid.NewString())
}
