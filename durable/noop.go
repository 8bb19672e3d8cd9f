package durable

import (
	"context"
	"encoding/json"
	"time"

	"github.com/agentrt/neuronloop/model"
)

// Noop is a pass-through Context: it calls straight through to the
// provided functions with no journaling. It exists so the engine can be
// exercised identically whether or not a durable host is installed, and
// so tests can stub ExecuteLLMCall/ExecuteTool without standing up a real
// workflow engine.
type Noop struct {
	LLMCall func(ctx context.Context, request model.CompletionRequest) (model.CompletionResponse, error)
	ToolCall func(ctx context.Context, name string, input json.RawMessage, tc *model.ToolContext) (model.ToolOutput, error)
}

func (n *Noop) ExecuteLLMCall(ctx context.Context, request model.CompletionRequest, _ ActivityOptions) (model.CompletionResponse, error) {
	return n.LLMCall(ctx, request)
}

func (n *Noop) ExecuteTool(ctx context.Context, name string, input json.RawMessage, tc *model.ToolContext, _ ActivityOptions) (model.ToolOutput, error) {
	return n.ToolCall(ctx, name, input, tc)
}

func (n *Noop) WaitForSignal(ctx context.Context, name string, timeout time.Duration) (json.RawMessage, bool, error) {
	return nil, false, nil
}

func (n *Noop) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (n *Noop) Now(ctx context.Context) time.Time { return time.Now() }

func (n *Noop) ShouldContinueAsNew(ctx context.Context) bool { return false }

func (n *Noop) ContinueAsNew(ctx context.Context, state any) error { return nil }
