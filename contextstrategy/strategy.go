// Package contextstrategy implements the compaction contract (§4.D): when
// to shrink conversation history, and how to shrink it without severing a
// ToolUse/ToolResult pairing.
package contextstrategy

import (
	"context"

	"github.com/agentrt/neuronloop/model"
)

// Strategy decides when conversation history must shrink and produces the
// replacement history. Implementations must never break the ToolUse <->
// ToolResult pairing invariant (§4.D, §9 "Compaction is not message loss").
type Strategy interface {
	// TokenEstimate is a pure, cheap, monotonic-in-content-size estimate
	// of the token cost of messages.
	TokenEstimate(messages []model.Message) int

	// ShouldCompact reports whether compaction should run now, given the
	// current estimate.
	ShouldCompact(messages []model.Message, currentTokens int) bool

	// Compact returns a semantically-equivalent, shorter message list.
	Compact(ctx context.Context, messages []model.Message) ([]model.Message, error)
}

// Error wraps a compaction failure, surfaced by the engine as
// LoopError{Kind: Context}.
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
