package tools

import (
	"context"
	"encoding/json"

	"github.com/agentrt/neuronloop/model"
)

// Tool is the type-erased shape the registry stores (§6 External
// Interfaces). Typed tools adapt to this via a small wrapper in callers'
// own packages; the registry never sees the typed form.
type Tool interface {
	Name() string
	Description() string
	InputSchema() json.RawMessage
	Definition() model.ToolDefinition
	Call(ctx context.Context, input json.RawMessage, tc *model.ToolContext) (model.ToolOutput, error)
}

// Middleware wraps a tool invocation. next invokes the rest of the chain
// (and ultimately the tool body). Middlewares compose in onion order: the
// last one added to a Registry is the innermost wrapper, i.e. the one
// closest to the tool body.
type Middleware func(name string, input json.RawMessage, tc *model.ToolContext, next Next) (model.ToolOutput, error)

// Next invokes the remainder of the middleware chain.
type Next func(name string, input json.RawMessage, tc *model.ToolContext) (model.ToolOutput, error)
