package anthropic

import (
	"context"
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"
	"github.com/stretchr/testify/require"

	"github.com/agentrt/neuronloop/model"
	"github.com/agentrt/neuronloop/provider"
)

type fakeMessagesClient struct {
	resp *sdk.Message
	err  error
	got  sdk.MessageNewParams
}

func (f *fakeMessagesClient) New(_ context.Context, body sdk.MessageNewParams, _ ...option.RequestOption) (*sdk.Message, error) {
	f.got = body
	return f.resp, f.err
}

func (f *fakeMessagesClient) NewStreaming(_ context.Context, _ sdk.MessageNewParams, _ ...option.RequestOption) *ssestream.Stream[sdk.MessageStreamEventUnion] {
	return nil
}

func TestCompleteTranslatesTextResponse(t *testing.T) {
	fake := &fakeMessagesClient{
		resp: &sdk.Message{
			ID:         "msg_1",
			Model:      "claude-x",
			StopReason: "end_turn",
			Content: []sdk.ContentBlockUnion{
				{Type: "text", Text: "hello"},
			},
			Usage: sdk.Usage{InputTokens: 10, OutputTokens: 5},
		},
	}
	c, err := New(fake, "claude-x", 1024)
	require.NoError(t, err)

	resp, err := c.Complete(context.Background(), model.CompletionRequest{
		Messages: []model.Message{{Role: model.RoleUser, Content: []model.ContentBlock{model.Text{Value: "hi"}}}},
	})
	require.NoError(t, err)
	require.Equal(t, model.StopEndTurn, resp.StopReason)
	require.Equal(t, 10, resp.Usage.InputTokens)
	require.Len(t, resp.Message.Content, 1)
	text, ok := resp.Message.Content[0].(model.Text)
	require.True(t, ok)
	require.Equal(t, "hello", text.Value)
}

func TestCompleteRequiresAtLeastOneMessage(t *testing.T) {
	fake := &fakeMessagesClient{}
	c, err := New(fake, "claude-x", 1024)
	require.NoError(t, err)
	_, err = c.Complete(context.Background(), model.CompletionRequest{})
	require.Error(t, err)
}

// TestCompleteRejectsResponseMissingIdentity verifies spec.md:161-162: a
// response missing a required identity field (id or model) is rejected as
// InvalidRequest rather than silently propagated.
func TestCompleteRejectsResponseMissingIdentity(t *testing.T) {
	fake := &fakeMessagesClient{
		resp: &sdk.Message{
			ID:         "",
			Model:      "claude-x",
			StopReason: "end_turn",
			Content:    []sdk.ContentBlockUnion{{Type: "text", Text: "hello"}},
		},
	}
	c, err := New(fake, "claude-x", 1024)
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), model.CompletionRequest{
		Messages: []model.Message{{Role: model.RoleUser, Content: []model.ContentBlock{model.Text{Value: "hi"}}}},
	})
	require.Error(t, err)
	var pe *provider.Error
	require.ErrorAs(t, err, &pe)
	require.Equal(t, provider.KindInvalidRequest, pe.Kind)
}

// TestCompleteSynthesizesMissingToolCallID verifies spec.md:157: a tool_use
// block with no backend-assigned id gets a unique, locally stable
// "<backend>_<uuid>" id instead of an empty string that would collide with
// every other missing-id call in the same response.
func TestCompleteSynthesizesMissingToolCallID(t *testing.T) {
	fake := &fakeMessagesClient{
		resp: &sdk.Message{
			ID:         "msg_1",
			Model:      "claude-x",
			StopReason: "tool_use",
			Content: []sdk.ContentBlockUnion{
				{Type: "tool_use", ID: "", Name: "search"},
				{Type: "tool_use", ID: "", Name: "search"},
			},
		},
	}
	c, err := New(fake, "claude-x", 1024)
	require.NoError(t, err)

	resp, err := c.Complete(context.Background(), model.CompletionRequest{
		Messages: []model.Message{{Role: model.RoleUser, Content: []model.ContentBlock{model.Text{Value: "hi"}}}},
	})
	require.NoError(t, err)
	require.Len(t, resp.Message.Content, 2)
	first := resp.Message.Content[0].(model.ToolUse)
	second := resp.Message.Content[1].(model.ToolUse)
	require.NotEmpty(t, first.ID)
	require.NotEmpty(t, second.ID)
	require.NotEqual(t, first.ID, second.ID)
	require.Contains(t, first.ID, "anthropic_")
}
