// Package durable implements the durable-execution contract (§4.F): a seam
// through which LLM and tool calls can be journaled and replayed by a host
// workflow engine.
package durable

import (
	"context"
	"encoding/json"
	"time"

	"github.com/agentrt/neuronloop/model"
)

// DefaultActivityTimeout is the default start-to-close timeout applied to
// every durable call when the caller does not override it (§4.F).
const DefaultActivityTimeout = 120 * time.Second

// RetryPolicy configures a durable host's retry behavior for an activity.
// Fields are opaque to the engine; only the durable implementation
// interprets them.
type RetryPolicy struct {
	MaximumAttempts int
	InitialInterval time.Duration
	BackoffFactor   float64
}

// ActivityOptions configures a single durable call.
type ActivityOptions struct {
	StartToCloseTimeout time.Duration
	HeartbeatTimeout    time.Duration
	RetryPolicy         *RetryPolicy
}

// DefaultActivityOptions returns options using DefaultActivityTimeout and
// no retry policy, matching every call site in engine that does not need a
// bespoke timeout.
func DefaultActivityOptions() ActivityOptions {
	return ActivityOptions{StartToCloseTimeout: DefaultActivityTimeout}
}

// Error wraps a failure surfaced by the durable host (journaling failure,
// activity timeout exhaustion, etc).
type Error struct {
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// Context is the durable-execution contract the engine calls through when
// a durable host is installed. Its presence only redirects where a call
// goes, never what it means (§4.F): the engine treats it as opaque.
type Context interface {
	// ExecuteLLMCall journals and executes a provider completion call.
	ExecuteLLMCall(ctx context.Context, request model.CompletionRequest, opts ActivityOptions) (model.CompletionResponse, error)

	// ExecuteTool journals and executes a tool invocation.
	ExecuteTool(ctx context.Context, name string, input json.RawMessage, tc *model.ToolContext, opts ActivityOptions) (model.ToolOutput, error)

	// WaitForSignal blocks for an externally-delivered signal or timeout.
	// Not exercised by the core loop directly (§4.F).
	WaitForSignal(ctx context.Context, name string, timeout time.Duration) (json.RawMessage, bool, error)

	// Sleep suspends the durable workflow for d, replay-safely.
	Sleep(ctx context.Context, d time.Duration) error

	// Now returns the durable host's replay-safe clock.
	Now(ctx context.Context) time.Time

	// ShouldContinueAsNew reports whether the host recommends continuing
	// the workflow as a new run (e.g. history size limits).
	ShouldContinueAsNew(ctx context.Context) bool

	// ContinueAsNew requests the host restart the workflow fresh with
	// state as its new input.
	ContinueAsNew(ctx context.Context, state any) error
}
