package openai

import (
	"context"
	"testing"

	sdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/ssestream"
	"github.com/stretchr/testify/require"

	"github.com/agentrt/neuronloop/model"
	"github.com/agentrt/neuronloop/provider"
)

type fakeChatClient struct {
	resp *sdk.ChatCompletion
	err  error
	got  sdk.ChatCompletionNewParams
}

func (f *fakeChatClient) New(_ context.Context, body sdk.ChatCompletionNewParams, _ ...option.RequestOption) (*sdk.ChatCompletion, error) {
	f.got = body
	return f.resp, f.err
}

func (f *fakeChatClient) NewStreaming(_ context.Context, _ sdk.ChatCompletionNewParams, _ ...option.RequestOption) *ssestream.Stream[sdk.ChatCompletionChunk] {
	return nil
}

func TestCompleteTranslatesTextAndToolCalls(t *testing.T) {
	fake := &fakeChatClient{
		resp: &sdk.ChatCompletion{
			ID:    "chatcmpl_1",
			Model: "gpt-4o",
			Choices: []sdk.ChatCompletionChoice{
				{
					FinishReason: "tool_calls",
					Message: sdk.ChatCompletionMessage{
						Content: "hi there",
						ToolCalls: []sdk.ChatCompletionMessageToolCall{
							{
								ID: "call_1",
								Function: sdk.ChatCompletionMessageToolCallFunction{
									Name:      "lookup",
									Arguments: `{"query":"docs"}`,
								},
							},
						},
					},
				},
			},
			Usage: sdk.CompletionUsage{PromptTokens: 10, CompletionTokens: 5},
		},
	}
	c, err := New(fake, "gpt-4o")
	require.NoError(t, err)

	resp, err := c.Complete(context.Background(), model.CompletionRequest{
		Messages: []model.Message{{Role: model.RoleUser, Content: []model.ContentBlock{model.Text{Value: "ping"}}}},
		Tools: []model.ToolDefinition{
			{Name: "lookup", Description: "Search", InputSchema: []byte(`{"type":"object"}`)},
		},
	})
	require.NoError(t, err)
	require.Equal(t, model.StopToolUse, resp.StopReason)
	require.Equal(t, 10, resp.Usage.InputTokens)
	require.Len(t, resp.Message.Content, 2)

	require.Len(t, fake.got.Messages, 1)
	require.Len(t, fake.got.Tools, 1)
}

func TestCompleteRequiresAtLeastOneMessage(t *testing.T) {
	fake := &fakeChatClient{}
	c, err := New(fake, "gpt-4o")
	require.NoError(t, err)
	_, err = c.Complete(context.Background(), model.CompletionRequest{})
	require.Error(t, err)
}

// TestCompleteRejectsResponseMissingIdentity verifies spec.md:161-162: a
// response missing a required identity field (id or model) is rejected as
// InvalidRequest rather than silently propagated.
func TestCompleteRejectsResponseMissingIdentity(t *testing.T) {
	fake := &fakeChatClient{
		resp: &sdk.ChatCompletion{
			ID:    "",
			Model: "gpt-4o",
			Choices: []sdk.ChatCompletionChoice{
				{FinishReason: "stop", Message: sdk.ChatCompletionMessage{Content: "hi"}},
			},
		},
	}
	c, err := New(fake, "gpt-4o")
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), model.CompletionRequest{
		Messages: []model.Message{{Role: model.RoleUser, Content: []model.ContentBlock{model.Text{Value: "ping"}}}},
	})
	require.Error(t, err)
	var pe *provider.Error
	require.ErrorAs(t, err, &pe)
	require.Equal(t, provider.KindInvalidRequest, pe.Kind)
}

// TestCompleteSynthesizesMissingToolCallID verifies spec.md:157: a tool
// call with no backend-assigned id gets a unique, locally stable
// "<backend>_<uuid>" id instead of an empty string that would collide with
// every other missing-id call in the same response.
func TestCompleteSynthesizesMissingToolCallID(t *testing.T) {
	fake := &fakeChatClient{
		resp: &sdk.ChatCompletion{
			ID:    "chatcmpl_1",
			Model: "gpt-4o",
			Choices: []sdk.ChatCompletionChoice{
				{
					FinishReason: "tool_calls",
					Message: sdk.ChatCompletionMessage{
						ToolCalls: []sdk.ChatCompletionMessageToolCall{
							{ID: "", Function: sdk.ChatCompletionMessageToolCallFunction{Name: "lookup", Arguments: `{}`}},
							{ID: "", Function: sdk.ChatCompletionMessageToolCallFunction{Name: "lookup", Arguments: `{}`}},
						},
					},
				},
			},
		},
	}
	c, err := New(fake, "gpt-4o")
	require.NoError(t, err)

	resp, err := c.Complete(context.Background(), model.CompletionRequest{
		Messages: []model.Message{{Role: model.RoleUser, Content: []model.ContentBlock{model.Text{Value: "ping"}}}},
	})
	require.NoError(t, err)
	require.Len(t, resp.Message.Content, 2)
	first := resp.Message.Content[0].(model.ToolUse)
	second := resp.Message.Content[1].(model.ToolUse)
	require.NotEmpty(t, first.ID)
	require.NotEmpty(t, second.ID)
	require.NotEqual(t, first.ID, second.ID)
	require.Contains(t, first.ID, "openai_")
}
