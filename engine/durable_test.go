package engine

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/agentrt/neuronloop/durable"
	"github.com/agentrt/neuronloop/model"
	"github.com/agentrt/neuronloop/registry"
)

// fakeDurable is a scripted durable.Context: one CompletionResponse per
// ExecuteLLMCall, one ToolOutput for every ExecuteTool. It records call
// counts so tests can assert a durable host redirects both call types
// without changing what either call means (§4.F).
type fakeDurable struct {
	responses []model.CompletionResponse
	output    model.ToolOutput
	llmCalls  int
	toolCalls int
}

func (f *fakeDurable) ExecuteLLMCall(_ context.Context, _ model.CompletionRequest, _ durable.ActivityOptions) (model.CompletionResponse, error) {
	i := f.llmCalls
	f.llmCalls++
	if i < len(f.responses) {
		return f.responses[i], nil
	}
	return model.CompletionResponse{StopReason: model.StopEndTurn}, nil
}

func (f *fakeDurable) ExecuteTool(_ context.Context, _ string, _ json.RawMessage, _ *model.ToolContext, _ durable.ActivityOptions) (model.ToolOutput, error) {
	f.toolCalls++
	return f.output, nil
}

func (f *fakeDurable) WaitForSignal(context.Context, string, time.Duration) (json.RawMessage, bool, error) {
	return nil, false, nil
}
func (f *fakeDurable) Sleep(context.Context, time.Duration) error { return nil }
func (f *fakeDurable) Now(context.Context) time.Time             { return time.Time{} }
func (f *fakeDurable) ShouldContinueAsNew(context.Context) bool   { return false }
func (f *fakeDurable) ContinueAsNew(context.Context, any) error   { return nil }

// TestDurableContextRoutesLlmAndToolCalls verifies Testable Property 7:
// installing a durable.Context redirects both the provider call and tool
// execution through it instead of the direct Provider/Registry path, with
// no change in the resulting conversation.
func TestDurableContextRoutesLlmAndToolCalls(t *testing.T) {
	reg := registry.New()
	reg.Register(echoTool{name: "ok"})

	fd := &fakeDurable{
		responses: []model.CompletionResponse{
			{Message: assistantWithToolUses(toolUseBlock("1", "ok", `{}`)), StopReason: model.StopToolUse},
			{Message: assistantText("done"), StopReason: model.StopEndTurn},
		},
		output: model.ToolOutput{Content: []model.ContentItem{model.ItemText{Value: "durable output"}}},
	}
	// fp must never be reached once a durable context is installed: if it
	// is, its scripted EndTurn response would make the run return the
	// wrong text and fail the assertion below.
	fp := &fakeProvider{responses: []model.CompletionResponse{{Message: assistantText("direct path taken"), StopReason: model.StopEndTurn}}}

	eng := NewBuilder(fp, reg).Durability(fd).Build()

	result, err := eng.Run(context.Background(), seedMessages(), nil)
	require.NoError(t, err)
	require.Equal(t, "done", result.ResponseText)
	require.Equal(t, 2, fd.llmCalls)
	require.Equal(t, 1, fd.toolCalls)
	require.Equal(t, 0, fp.calls)
}
