// Package hooks implements the observability hook protocol (§4.E.5): named
// events, intervention actions, and an ordered firing bus.
package hooks

import (
	"encoding/json"

	"github.com/agentrt/neuronloop/model"
)

// EventKind names the point in the loop a hook observes.
type EventKind int

const (
	SessionStart EventKind = iota
	SessionEnd
	LoopIteration
	PreLlmCall
	PostLlmCall
	PreToolExecution
	PostToolExecution
	ContextCompaction
)

// Event carries the payload for a single hook firing. Only the fields
// relevant to Kind are populated; callers switch on Kind before reading
// them.
type Event struct {
	Kind EventKind

	Turn int // LoopIteration

	Request  *model.CompletionRequest  // PreLlmCall
	Response *model.CompletionResponse // PostLlmCall

	ToolName  string          // PreToolExecution, PostToolExecution
	ToolInput json.RawMessage // PreToolExecution
	ToolOutput *model.ToolOutput // PostToolExecution

	OldTokens int // ContextCompaction
	NewTokens int // ContextCompaction
}

// ActionKind discriminates the HookAction union.
type ActionKind int

const (
	Continue ActionKind = iota
	Terminate
	Skip           // valid only for PreToolExecution
	ModifyToolInput  // valid only for PreToolExecution
	ModifyToolOutput // valid only for PostToolExecution
)

// Action is a hook's response to an Event. Reason accompanies Terminate
// and Skip. NewInput accompanies ModifyToolInput. NewOutput accompanies
// ModifyToolOutput and replaces the entire ToolOutput (Open Question 1 in
// DESIGN.md resolves this in favor of a typed whole-output replacement).
type Action struct {
	Kind      ActionKind
	Reason    string
	NewInput  json.RawMessage
	NewOutput *model.ToolOutput
}

// ContinueAction is the zero-value, no-intervention action.
var ContinueAction = Action{Kind: Continue}

// Hook observes a single Event and may return a non-Continue Action to
// intervene.
type Hook interface {
	OnEvent(event Event) (Action, error)
}

// HookFunc adapts a plain function to the Hook interface.
type HookFunc func(event Event) (Action, error)

func (f HookFunc) OnEvent(event Event) (Action, error) { return f(event) }
