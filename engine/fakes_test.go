package engine

import (
	"context"
	"encoding/json"

	"github.com/agentrt/neuronloop/model"
	"github.com/agentrt/neuronloop/tools"
)

// fakeProvider returns a scripted sequence of responses, one per call to
// Complete, and records every request it was handed.
type fakeProvider struct {
	responses []model.CompletionResponse
	errs      []error
	calls     int
	requests  []model.CompletionRequest
}

func (f *fakeProvider) Complete(_ context.Context, req model.CompletionRequest) (model.CompletionResponse, error) {
	f.requests = append(f.requests, req)
	i := f.calls
	f.calls++
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	if i < len(f.responses) {
		return f.responses[i], err
	}
	return model.CompletionResponse{StopReason: model.StopEndTurn}, err
}

// echoTool is a minimal tools.Tool whose output echoes its input text.
type echoTool struct {
	name  string
	delay func() // optional hook run synchronously inside Call, for ordering tests
	calls *[]string
}

func (t echoTool) Name() string                       { return t.name }
func (t echoTool) Description() string                { return "echoes input" }
func (t echoTool) InputSchema() json.RawMessage        { return json.RawMessage(`{"type":"object"}`) }
func (t echoTool) Definition() model.ToolDefinition {
	return model.ToolDefinition{Name: t.name, Description: "echoes input", InputSchema: t.InputSchema()}
}

func (t echoTool) Call(_ context.Context, input json.RawMessage, _ *model.ToolContext) (model.ToolOutput, error) {
	if t.delay != nil {
		t.delay()
	}
	if t.calls != nil {
		*t.calls = append(*t.calls, t.name)
	}
	return model.ToolOutput{Content: []model.ContentItem{model.ItemText{Value: string(input)}}}, nil
}

// retryTool always fails with a KindModelRetry error, exercising the
// "ModelRetry becomes an error-flagged ToolResult" branch of tool fan-out.
type retryTool struct{}

func (retryTool) Name() string                { return "retry" }
func (retryTool) Description() string         { return "always asks for a retry" }
func (retryTool) InputSchema() json.RawMessage { return json.RawMessage(`{"type":"object"}`) }
func (retryTool) Definition() model.ToolDefinition {
	return model.ToolDefinition{Name: "retry", Description: "always asks for a retry", InputSchema: json.RawMessage(`{"type":"object"}`)}
}
func (retryTool) Call(_ context.Context, _ json.RawMessage, _ *model.ToolContext) (model.ToolOutput, error) {
	return model.ToolOutput{}, tools.ModelRetry("try again with a different argument")
}

func toolUseBlock(id, name, input string) model.ToolUse {
	return model.ToolUse{ID: id, Name: name, Input: json.RawMessage(input)}
}

func assistantWithToolUses(calls ...model.ToolUse) model.Message {
	content := make([]model.ContentBlock, len(calls))
	for i, c := range calls {
		content[i] = c
	}
	return model.Message{Role: model.RoleAssistant, Content: content}
}

func assistantText(text string) model.Message {
	return model.Message{Role: model.RoleAssistant, Content: []model.ContentBlock{model.Text{Value: text}}}
}
