package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agentrt/neuronloop/hooks"
	"github.com/agentrt/neuronloop/model"
	"github.com/agentrt/neuronloop/registry"
)

func seedMessages() []model.Message {
	return []model.Message{{Role: model.RoleUser, Content: []model.ContentBlock{model.Text{Value: "hi"}}}}
}

func TestRunEndTurnNoTools(t *testing.T) {
	fp := &fakeProvider{responses: []model.CompletionResponse{
		{Message: assistantText("hello"), StopReason: model.StopEndTurn, Usage: model.TokenUsage{InputTokens: 3, OutputTokens: 2}},
	}}
	eng := NewBuilder(fp, registry.New()).Build()

	result, err := eng.Run(context.Background(), seedMessages(), nil)
	require.NoError(t, err)
	require.Equal(t, "hello", result.ResponseText)
	require.Equal(t, 1, result.Turns)
	require.Equal(t, 3, result.Usage.InputTokens)
	require.Len(t, result.Messages, 2)
}

func TestRunTextWrapsPlainString(t *testing.T) {
	fp := &fakeProvider{responses: []model.CompletionResponse{
		{Message: assistantText("pong"), StopReason: model.StopEndTurn},
	}}
	eng := NewBuilder(fp, registry.New()).Build()

	result, err := eng.RunText(context.Background(), "ping", nil)
	require.NoError(t, err)
	require.Equal(t, "pong", result.ResponseText)
	require.Len(t, fp.requests, 1)
	require.Len(t, fp.requests[0].Messages, 1)
	text, ok := fp.requests[0].Messages[0].Content[0].(model.Text)
	require.True(t, ok)
	require.Equal(t, "ping", text.Value)
}

func TestRunToolUseThenEndTurn(t *testing.T) {
	reg := registry.New()
	reg.Register(echoTool{name: "calc"})

	fp := &fakeProvider{responses: []model.CompletionResponse{
		{
			Message:    assistantWithToolUses(toolUseBlock("t1", "calc", `{"x":1}`)),
			StopReason: model.StopToolUse,
		},
		{Message: assistantText("done"), StopReason: model.StopEndTurn},
	}}
	eng := NewBuilder(fp, reg).Build()

	result, err := eng.Run(context.Background(), seedMessages(), nil)
	require.NoError(t, err)
	require.Equal(t, "done", result.ResponseText)
	require.Equal(t, 2, result.Turns)
	require.Len(t, result.Messages, 4)

	toolResultMsg := result.Messages[2]
	require.Equal(t, model.RoleUser, toolResultMsg.Role)
	require.Len(t, toolResultMsg.Content, 1)
	tr, ok := toolResultMsg.Content[0].(model.ToolResult)
	require.True(t, ok)
	require.Equal(t, "t1", tr.ToolUseID)
	require.False(t, tr.IsError)
}

func TestRunUnknownToolAbortsWithToolError(t *testing.T) {
	fp := &fakeProvider{responses: []model.CompletionResponse{
		{
			Message:    assistantWithToolUses(toolUseBlock("t1", "missing", `{}`)),
			StopReason: model.StopToolUse,
		},
	}}
	eng := NewBuilder(fp, registry.New()).Build()

	_, err := eng.Run(context.Background(), seedMessages(), nil)
	require.Error(t, err)
	le, ok := err.(*LoopError)
	require.True(t, ok)
	require.Equal(t, ErrTool, le.Kind)
}

func TestRunModelRetryBecomesErrorFlaggedResult(t *testing.T) {
	reg := registry.New()
	reg.Register(retryTool{})

	fp := &fakeProvider{responses: []model.CompletionResponse{
		{
			Message:    assistantWithToolUses(toolUseBlock("t1", "retry", `{}`)),
			StopReason: model.StopToolUse,
		},
		{Message: assistantText("done"), StopReason: model.StopEndTurn},
	}}
	eng := NewBuilder(fp, reg).Build()

	result, err := eng.Run(context.Background(), seedMessages(), nil)
	require.NoError(t, err)
	require.Equal(t, "done", result.ResponseText)
	tr := result.Messages[2].Content[0].(model.ToolResult)
	require.True(t, tr.IsError)
}

func TestMaxTurnsReached(t *testing.T) {
	loop := assistantWithToolUses(toolUseBlock("t1", "calc", `{}`))
	fp := &fakeProvider{responses: []model.CompletionResponse{
		{Message: loop, StopReason: model.StopToolUse},
		{Message: loop, StopReason: model.StopToolUse},
		{Message: loop, StopReason: model.StopToolUse},
	}}
	reg := registry.New()
	reg.Register(echoTool{name: "calc"})
	eng := NewBuilder(fp, reg).MaxTurns(1).Build()

	_, err := eng.Run(context.Background(), seedMessages(), nil)
	require.Error(t, err)
	le, ok := err.(*LoopError)
	require.True(t, ok)
	require.Equal(t, ErrMaxTurns, le.Kind)
	require.Equal(t, 1, le.Limit)
}

func TestPreLlmHookTerminates(t *testing.T) {
	fp := &fakeProvider{responses: []model.CompletionResponse{
		{Message: assistantText("unreachable"), StopReason: model.StopEndTurn},
	}}
	bus := hooks.NewBus()
	bus.Register(hooks.HookFunc(func(event hooks.Event) (hooks.Action, error) {
		if event.Kind == hooks.PreLlmCall {
			return hooks.Action{Kind: hooks.Terminate, Reason: "blocked"}, nil
		}
		return hooks.ContinueAction, nil
	}))
	eng := NewBuilder(fp, registry.New()).Hooks(bus).Build()

	_, err := eng.Run(context.Background(), seedMessages(), nil)
	require.Error(t, err)
	le, ok := err.(*LoopError)
	require.True(t, ok)
	require.Equal(t, ErrHookTerminated, le.Kind)
	require.Equal(t, "blocked", le.Message)
	require.Zero(t, fp.calls)
}

func TestPreToolHookSkipProducesErrorResult(t *testing.T) {
	reg := registry.New()
	reg.Register(echoTool{name: "calc"})

	fp := &fakeProvider{responses: []model.CompletionResponse{
		{Message: assistantWithToolUses(toolUseBlock("t1", "calc", `{}`)), StopReason: model.StopToolUse},
		{Message: assistantText("done"), StopReason: model.StopEndTurn},
	}}
	bus := hooks.NewBus()
	bus.Register(hooks.HookFunc(func(event hooks.Event) (hooks.Action, error) {
		if event.Kind == hooks.PreToolExecution {
			return hooks.Action{Kind: hooks.Skip, Reason: "not allowed"}, nil
		}
		return hooks.ContinueAction, nil
	}))
	eng := NewBuilder(fp, reg).Hooks(bus).Build()

	result, err := eng.Run(context.Background(), seedMessages(), nil)
	require.NoError(t, err)
	tr := result.Messages[2].Content[0].(model.ToolResult)
	require.True(t, tr.IsError)
	item := tr.Content[0].(model.ItemText)
	require.Contains(t, item.Value, "not allowed")
}

func TestCancellationObservedBeforeTurn(t *testing.T) {
	fp := &fakeProvider{}
	eng := NewBuilder(fp, registry.New()).Build()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := eng.Run(ctx, seedMessages(), nil)
	require.Error(t, err)
	le, ok := err.(*LoopError)
	require.True(t, ok)
	require.Equal(t, ErrCancelled, le.Kind)
}

func TestUsageLimitTripsOnTokens(t *testing.T) {
	loop := assistantWithToolUses(toolUseBlock("t1", "calc", `{}`))
	fp := &fakeProvider{responses: []model.CompletionResponse{
		{Message: loop, StopReason: model.StopToolUse, Usage: model.TokenUsage{InputTokens: 50, OutputTokens: 60}},
	}}
	reg := registry.New()
	reg.Register(echoTool{name: "calc"})
	limit := 100
	eng := NewBuilder(fp, reg).UsageLimits(UsageLimits{MaxTokens: &limit}).Build()

	_, err := eng.Run(context.Background(), seedMessages(), nil)
	require.Error(t, err)
	le, ok := err.(*LoopError)
	require.True(t, ok)
	require.Equal(t, ErrUsageLimitExceeded, le.Kind)
	require.Equal(t, "tokens", le.UsageKind)
}

func TestStepIteratorInjectMessageAndToolsMut(t *testing.T) {
	fp := &fakeProvider{responses: []model.CompletionResponse{
		{Message: assistantText("ack"), StopReason: model.StopEndTurn},
	}}
	reg := registry.New()
	eng := NewBuilder(fp, reg).Build()

	it := eng.Steps(seedMessages())
	it.InjectMessage(model.Message{Role: model.RoleUser, Content: []model.ContentBlock{model.Text{Value: "extra"}}})
	require.Same(t, reg, it.ToolsMut())

	result := it.Next(context.Background(), nil)
	require.Equal(t, ResultFinalResponse, result.Kind)
	require.True(t, it.Done())
	// the injected message must have been part of what was sent upstream
	require.Len(t, fp.requests[0].Messages, 2)
}
