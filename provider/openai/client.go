// Package openai adapts github.com/openai/openai-go to the
// provider.Provider/Streamer contract, grounded on the request/response
// translation shape of _teacher_ref/model/openai/client.go (there written
// against a different OpenAI client library; the mapping of messages,
// tools, and usage carries over unchanged).
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	sdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/ssestream"
	"github.com/openai/openai-go/shared"

	"github.com/agentrt/neuronloop/model"
	"github.com/agentrt/neuronloop/provider"
)

// ChatClient is the subset of the openai-go client used by Client.
type ChatClient interface {
	New(ctx context.Context, body sdk.ChatCompletionNewParams, opts ...option.RequestOption) (*sdk.ChatCompletion, error)
	NewStreaming(ctx context.Context, body sdk.ChatCompletionNewParams, opts ...option.RequestOption) *ssestream.Stream[sdk.ChatCompletionChunk]
}

// Client implements provider.Provider and provider.Streamer against the
// OpenAI Chat Completions API.
type Client struct {
	chat         ChatClient
	defaultModel string
}

// New builds a Client from an injected ChatClient.
func New(chat ChatClient, defaultModel string) (*Client, error) {
	if chat == nil {
		return nil, errors.New("openai: chat client is required")
	}
	if strings.TrimSpace(defaultModel) == "" {
		return nil, errors.New("openai: default model is required")
	}
	return &Client{chat: chat, defaultModel: defaultModel}, nil
}

// NewFromAPIKey constructs a Client using the SDK's default HTTP transport.
func NewFromAPIKey(apiKey, defaultModel string) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("openai: api key is required")
	}
	c := sdk.NewClient(option.WithAPIKey(apiKey))
	return New(&c.Chat.Completions, defaultModel)
}

func (c *Client) Complete(ctx context.Context, req model.CompletionRequest) (model.CompletionResponse, error) {
	params, err := c.prepareRequest(req)
	if err != nil {
		return model.CompletionResponse{}, err
	}
	resp, err := c.chat.New(ctx, *params)
	if err != nil {
		return model.CompletionResponse{}, translateError(err)
	}
	return translateResponse(resp)
}

func (c *Client) Stream(ctx context.Context, req model.CompletionRequest) (provider.Stream, error) {
	params, err := c.prepareRequest(req)
	if err != nil {
		return nil, err
	}
	stream := c.chat.NewStreaming(ctx, *params)
	if err := stream.Err(); err != nil {
		return nil, translateError(err)
	}
	return newStreamer(ctx, stream), nil
}

func (c *Client) prepareRequest(req model.CompletionRequest) (*sdk.ChatCompletionNewParams, error) {
	if len(req.Messages) == 0 {
		return nil, provider.InvalidRequest("at least one message is required", nil)
	}
	modelID := req.Model
	if modelID == "" {
		modelID = c.defaultModel
	}
	messages, err := encodeMessages(req)
	if err != nil {
		return nil, err
	}
	params := sdk.ChatCompletionNewParams{
		Model:    shared.ChatModel(modelID),
		Messages: messages,
	}
	if req.MaxTokens != nil && *req.MaxTokens > 0 {
		params.MaxCompletionTokens = sdk.Int(int64(*req.MaxTokens))
	}
	if req.Temperature != nil {
		params.Temperature = sdk.Float(*req.Temperature)
	}
	if req.TopP != nil {
		params.TopP = sdk.Float(*req.TopP)
	}
	if len(req.StopSequences) > 0 {
		params.Stop = sdk.ChatCompletionNewParamsStopUnion{OfStringArray: req.StopSequences}
	}
	if len(req.Tools) > 0 {
		tools, err := encodeTools(req.Tools)
		if err != nil {
			return nil, err
		}
		params.Tools = tools
	}
	return &params, nil
}

func encodeMessages(req model.CompletionRequest) ([]sdk.ChatCompletionMessageParamUnion, error) {
	var out []sdk.ChatCompletionMessageParamUnion
	if req.System != nil && req.System.Text != "" {
		out = append(out, sdk.SystemMessage(req.System.Text))
	}
	for _, m := range req.Messages {
		for _, block := range m.Content {
			switch v := block.(type) {
			case model.Text:
				if v.Value == "" {
					continue
				}
				switch m.Role {
				case model.RoleUser:
					out = append(out, sdk.UserMessage(v.Value))
				case model.RoleAssistant:
					out = append(out, sdk.AssistantMessage(v.Value))
				case model.RoleSystem:
					out = append(out, sdk.SystemMessage(v.Value))
				}
			case model.ToolUse:
				msg := sdk.AssistantMessage("")
				if msg.OfAssistant != nil {
					msg.OfAssistant.ToolCalls = []sdk.ChatCompletionMessageToolCallParam{{
						ID: v.ID,
						Function: sdk.ChatCompletionMessageToolCallFunctionParam{
							Name:      v.Name,
							Arguments: string(v.Input),
						},
					}}
				}
				out = append(out, msg)
			case model.ToolResult:
				out = append(out, sdk.ToolMessage(toolResultText(v), v.ToolUseID))
			}
		}
	}
	if len(out) == 0 {
		return nil, provider.InvalidRequest("at least one user/assistant message is required", nil)
	}
	return out, nil
}

func toolResultText(v model.ToolResult) string {
	var sb strings.Builder
	for _, item := range v.Content {
		if t, ok := item.(model.ItemText); ok {
			sb.WriteString(t.Value)
		}
	}
	return sb.String()
}

func encodeTools(defs []model.ToolDefinition) ([]sdk.ChatCompletionToolUnionParam, error) {
	out := make([]sdk.ChatCompletionToolUnionParam, 0, len(defs))
	for _, def := range defs {
		var params map[string]any
		if len(def.InputSchema) > 0 {
			if err := json.Unmarshal(def.InputSchema, &params); err != nil {
				return nil, provider.InvalidRequest("tool "+def.Name+" schema invalid", err)
			}
		}
		out = append(out, sdk.ChatCompletionFunctionTool(shared.FunctionDefinitionParam{
			Name:        def.Name,
			Description: sdk.String(def.Description),
			Parameters:  shared.FunctionParameters(params),
		}))
	}
	return out, nil
}

func translateError(err error) error {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) && apiErr.StatusCode == 429 {
		return provider.RateLimited("openai chat completion", err)
	}
	return provider.Transport("openai chat completion", err)
}

func translateResponse(resp *sdk.ChatCompletion) (model.CompletionResponse, error) {
	if resp == nil || len(resp.Choices) == 0 {
		return model.CompletionResponse{}, provider.InvalidRequest("openai response has no choices", nil)
	}
	if resp.ID == "" || resp.Model == "" {
		return model.CompletionResponse{}, provider.InvalidRequest("openai response is missing required identity fields (id/model)", nil)
	}
	choice := resp.Choices[0]
	var blocks []model.ContentBlock
	if choice.Message.Content != "" {
		blocks = append(blocks, model.Text{Value: choice.Message.Content})
	}
	for _, call := range choice.Message.ToolCalls {
		id := call.ID
		if id == "" {
			id = provider.SynthesizeToolCallID("openai")
		}
		blocks = append(blocks, model.ToolUse{
			ID:    id,
			Name:  call.Function.Name,
			Input: json.RawMessage(call.Function.Arguments),
		})
	}
	return model.CompletionResponse{
		ID:    resp.ID,
		Model: resp.Model,
		Message: model.Message{
			Role:    model.RoleAssistant,
			Content: blocks,
		},
		Usage: model.TokenUsage{
			InputTokens:  int(resp.Usage.PromptTokens),
			OutputTokens: int(resp.Usage.CompletionTokens),
		},
		StopReason: mapStopReason(string(choice.FinishReason)),
	}, nil
}

func mapStopReason(s string) model.StopReason {
	switch s {
	case "stop":
		return model.StopEndTurn
	case "tool_calls":
		return model.StopToolUse
	case "length":
		return model.StopMaxTokens
	case "content_filter":
		return model.StopContentFilter
	default:
		return model.StopEndTurn
	}
}
