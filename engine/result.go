package engine

import (
	"context"

	"github.com/agentrt/neuronloop/model"
	"github.com/agentrt/neuronloop/registry"
)

// TurnResultKind discriminates the TurnResult union yielded by
// StepIterator.Next (§4.E.4).
type TurnResultKind int

const (
	// ResultToolsExecuted means a turn ran a tool fan-out and appended the
	// resulting user message; the loop continues.
	ResultToolsExecuted TurnResultKind = iota
	// ResultFinalResponse means the loop reached a terminal assistant
	// message; Final carries the completed AgentResult.
	ResultFinalResponse
	// ResultCompactionOccurred means history was compacted this turn
	// (either via the strategy or a provider's Compaction stop reason).
	ResultCompactionOccurred
	// ResultMaxTurnsReached means the configured turn limit was hit.
	ResultMaxTurnsReached
	// ResultError means the turn aborted with a *LoopError.
	ResultError
)

// TurnResult is what StepIterator.Next returns after one per-turn sequence
// execution. Only the fields relevant to Kind are populated.
type TurnResult struct {
	Kind TurnResultKind

	Calls   []model.ToolUse    // ResultToolsExecuted
	Results []model.ToolResult // ResultToolsExecuted

	Final *AgentResult // ResultFinalResponse

	OldTokens int // ResultCompactionOccurred
	NewTokens int // ResultCompactionOccurred

	Err *LoopError // ResultMaxTurnsReached, ResultError
}

// StepIterator exposes the same turn state machine one step at a time.
// Between calls to Next the caller may inspect Messages, InjectMessage, or
// mutate the registry via ToolsMut (supplemented from the original's
// step.rs). Once Next returns ResultFinalResponse or ResultError, Done
// reports true and subsequent Next calls return a zero TurnResult.
type StepIterator struct {
	r    *run
	done bool
}

// Next executes the next turn, or returns a zero TurnResult if the
// iterator is already Done.
func (it *StepIterator) Next(ctx context.Context, tc *model.ToolContext) TurnResult {
	if it.done {
		return TurnResult{}
	}
	result := it.r.step(ctx, tc)
	switch result.Kind {
	case ResultFinalResponse, ResultError, ResultMaxTurnsReached:
		it.done = true
	}
	return result
}

// Done reports whether the iterator has reached a terminal result.
func (it *StepIterator) Done() bool { return it.done }

// Messages returns a snapshot of the current conversation history.
func (it *StepIterator) Messages() []model.Message {
	return append([]model.Message(nil), it.r.messages...)
}

// InjectMessage appends msg to the end of the history, between turns.
func (it *StepIterator) InjectMessage(msg model.Message) {
	it.r.messages = append(it.r.messages, msg)
}

// ToolsMut returns the Engine's tool registry, letting a caller register
// tools or add middleware between steps. The registry is shared by every
// run of the Engine and has no method for removing a tool.
func (it *StepIterator) ToolsMut() *registry.Registry {
	return it.r.eng.Registry
}
