// Package anthropic adapts github.com/anthropics/anthropic-sdk-go to the
// provider.Provider/Streamer contract, grounded on
// _teacher_ref/model/anthropic/client.go and stream.go.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"github.com/agentrt/neuronloop/model"
	"github.com/agentrt/neuronloop/provider"
)

// MessagesClient is the subset of the Anthropic SDK used by Client, so
// callers can substitute a fake in tests.
type MessagesClient interface {
	New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
	NewStreaming(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) *ssestream.Stream[sdk.MessageStreamEventUnion]
}

// Client implements provider.Provider and provider.Streamer against the
// Anthropic Messages API.
type Client struct {
	msg          MessagesClient
	defaultModel string
	maxTokens    int
}

// New builds a Client from an injected MessagesClient.
func New(msg MessagesClient, defaultModel string, maxTokens int) (*Client, error) {
	if msg == nil {
		return nil, errors.New("anthropic: messages client is required")
	}
	if defaultModel == "" {
		return nil, errors.New("anthropic: default model is required")
	}
	return &Client{msg: msg, defaultModel: defaultModel, maxTokens: maxTokens}, nil
}

// NewFromAPIKey constructs a Client using the SDK's default HTTP transport.
func NewFromAPIKey(apiKey, defaultModel string, maxTokens int) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("anthropic: api key is required")
	}
	c := sdk.NewClient(option.WithAPIKey(apiKey))
	return New(&c.Messages, defaultModel, maxTokens)
}

func (c *Client) Complete(ctx context.Context, req model.CompletionRequest) (model.CompletionResponse, error) {
	params, err := c.prepareRequest(req)
	if err != nil {
		return model.CompletionResponse{}, err
	}
	msg, err := c.msg.New(ctx, *params)
	if err != nil {
		return model.CompletionResponse{}, translateError(err)
	}
	return translateMessage(msg)
}

func (c *Client) Stream(ctx context.Context, req model.CompletionRequest) (provider.Stream, error) {
	params, err := c.prepareRequest(req)
	if err != nil {
		return nil, err
	}
	stream := c.msg.NewStreaming(ctx, *params)
	if err := stream.Err(); err != nil {
		return nil, translateError(err)
	}
	return newStreamer(ctx, stream), nil
}

func (c *Client) prepareRequest(req model.CompletionRequest) (*sdk.MessageNewParams, error) {
	if len(req.Messages) == 0 {
		return nil, provider.InvalidRequest("at least one message is required", nil)
	}
	modelID := req.Model
	if modelID == "" {
		modelID = c.defaultModel
	}
	maxTokens := c.maxTokens
	if req.MaxTokens != nil && *req.MaxTokens > 0 {
		maxTokens = *req.MaxTokens
	}
	if maxTokens <= 0 {
		return nil, provider.InvalidRequest("max_tokens must be positive", nil)
	}
	msgs, err := encodeMessages(req.Messages)
	if err != nil {
		return nil, err
	}
	params := sdk.MessageNewParams{
		Model:     sdk.Model(modelID),
		MaxTokens: int64(maxTokens),
		Messages:  msgs,
	}
	if req.System != nil {
		if req.System.Text != "" {
			params.System = []sdk.TextBlockParam{{Text: req.System.Text}}
		} else if len(req.System.Blocks) > 0 {
			var system []sdk.TextBlockParam
			for _, b := range req.System.Blocks {
				if t, ok := b.(model.Text); ok {
					system = append(system, sdk.TextBlockParam{Text: t.Value})
				}
			}
			params.System = system
		}
	}
	if len(req.Tools) > 0 {
		tools, err := encodeTools(req.Tools)
		if err != nil {
			return nil, err
		}
		params.Tools = tools
	}
	if req.Temperature != nil {
		params.Temperature = sdk.Float(*req.Temperature)
	}
	if req.TopP != nil {
		params.TopP = sdk.Float(*req.TopP)
	}
	if len(req.StopSequences) > 0 {
		params.StopSequences = req.StopSequences
	}
	if req.Thinking != nil && req.Thinking.Enabled {
		budget := req.Thinking.BudgetTokens
		if budget <= 0 {
			return nil, provider.InvalidRequest("thinking budget is required when thinking is enabled", nil)
		}
		params.Thinking = sdk.ThinkingConfigParamOfEnabled(int64(budget))
	}
	if req.ToolChoice != nil {
		tc, err := encodeToolChoice(*req.ToolChoice)
		if err != nil {
			return nil, err
		}
		params.ToolChoice = tc
	}
	return &params, nil
}

func encodeMessages(msgs []model.Message) ([]sdk.MessageParam, error) {
	out := make([]sdk.MessageParam, 0, len(msgs))
	for _, m := range msgs {
		blocks, err := encodeBlocks(m.Content)
		if err != nil {
			return nil, err
		}
		if len(blocks) == 0 {
			continue
		}
		switch m.Role {
		case model.RoleUser:
			out = append(out, sdk.NewUserMessage(blocks...))
		case model.RoleAssistant:
			out = append(out, sdk.NewAssistantMessage(blocks...))
		default:
			return nil, provider.InvalidRequest(fmt.Sprintf("unsupported message role %q for anthropic", m.Role), nil)
		}
	}
	if len(out) == 0 {
		return nil, provider.InvalidRequest("at least one user/assistant message is required", nil)
	}
	return out, nil
}

func encodeBlocks(blocks []model.ContentBlock) ([]sdk.ContentBlockParamUnion, error) {
	out := make([]sdk.ContentBlockParamUnion, 0, len(blocks))
	for _, b := range blocks {
		switch v := b.(type) {
		case model.Text:
			if v.Value != "" {
				out = append(out, sdk.NewTextBlock(v.Value))
			}
		case model.ToolUse:
			out = append(out, sdk.NewToolUseBlock(v.ID, v.Input, v.Name))
		case model.ToolResult:
			out = append(out, encodeToolResult(v))
		case model.Thinking:
			// Re-sent verbatim when the provider requires the prior
			// thinking block to accompany a tool-result turn.
			out = append(out, sdk.NewThinkingBlock(v.Signature, v.Text))
		default:
			// Images, documents, compaction markers and custom blocks are
			// not re-encoded for Anthropic requests.
		}
	}
	return out, nil
}

func encodeToolResult(v model.ToolResult) sdk.ContentBlockParamUnion {
	var text string
	for _, item := range v.Content {
		if t, ok := item.(model.ItemText); ok {
			text += t.Value
		}
	}
	return sdk.NewToolResultBlock(v.ToolUseID, text, v.IsError)
}

func encodeTools(defs []model.ToolDefinition) ([]sdk.ToolUnionParam, error) {
	out := make([]sdk.ToolUnionParam, 0, len(defs))
	for _, def := range defs {
		if def.Description == "" {
			return nil, provider.InvalidRequest(fmt.Sprintf("tool %q is missing a description", def.Name), nil)
		}
		schema, err := toolInputSchema(def.InputSchema)
		if err != nil {
			return nil, provider.InvalidRequest(fmt.Sprintf("tool %q schema invalid", def.Name), err)
		}
		u := sdk.ToolUnionParamOfTool(schema, def.Name)
		if u.OfTool != nil {
			u.OfTool.Description = sdk.String(def.Description)
		}
		out = append(out, u)
	}
	return out, nil
}

func toolInputSchema(schema json.RawMessage) (sdk.ToolInputSchemaParam, error) {
	if len(schema) == 0 {
		return sdk.ToolInputSchemaParam{}, nil
	}
	var m map[string]any
	if err := json.Unmarshal(schema, &m); err != nil {
		return sdk.ToolInputSchemaParam{}, err
	}
	return sdk.ToolInputSchemaParam{ExtraFields: m}, nil
}

func encodeToolChoice(choice model.ToolChoice) (sdk.ToolChoiceUnionParam, error) {
	switch choice.Mode {
	case model.ToolChoiceAuto, "":
		return sdk.ToolChoiceUnionParam{}, nil
	case model.ToolChoiceNone:
		none := sdk.NewToolChoiceNoneParam()
		return sdk.ToolChoiceUnionParam{OfNone: &none}, nil
	case model.ToolChoiceRequired:
		return sdk.ToolChoiceUnionParam{OfAny: &sdk.ToolChoiceAnyParam{}}, nil
	case model.ToolChoiceSpecific:
		if choice.Name == "" {
			return sdk.ToolChoiceUnionParam{}, provider.InvalidRequest("tool choice mode \"specific\" requires a name", nil)
		}
		return sdk.ToolChoiceParamOfTool(choice.Name), nil
	default:
		return sdk.ToolChoiceUnionParam{}, provider.InvalidRequest(fmt.Sprintf("unsupported tool choice mode %q", choice.Mode), nil)
	}
}

func translateError(err error) error {
	if isRateLimited(err) {
		return provider.RateLimited("anthropic messages request", err)
	}
	return provider.Transport("anthropic messages request", err)
}

func isRateLimited(err error) bool {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}
	return false
}

func translateMessage(msg *sdk.Message) (model.CompletionResponse, error) {
	if msg == nil {
		return model.CompletionResponse{}, errors.New("anthropic: nil response message")
	}
	if msg.ID == "" || msg.Model == "" {
		return model.CompletionResponse{}, provider.InvalidRequest("anthropic response is missing required identity fields (id/model)", nil)
	}
	var blocks []model.ContentBlock
	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			if block.Text != "" {
				blocks = append(blocks, model.Text{Value: block.Text})
			}
		case "thinking":
			blocks = append(blocks, model.Thinking{Text: block.Thinking, Signature: block.Signature})
		case "redacted_thinking":
			blocks = append(blocks, model.RedactedThinking{Data: []byte(block.Data)})
		case "tool_use":
			id := block.ID
			if id == "" {
				id = provider.SynthesizeToolCallID("anthropic")
			}
			blocks = append(blocks, model.ToolUse{ID: id, Name: block.Name, Input: json.RawMessage(block.Input)})
		}
	}
	usage := model.TokenUsage{
		InputTokens:  int(msg.Usage.InputTokens),
		OutputTokens: int(msg.Usage.OutputTokens),
	}
	if n := int(msg.Usage.CacheReadInputTokens); n > 0 {
		usage.CacheRead = &n
	}
	if n := int(msg.Usage.CacheCreationInputTokens); n > 0 {
		usage.CacheCreation = &n
	}
	return model.CompletionResponse{
		ID:    msg.ID,
		Model: string(msg.Model),
		Message: model.Message{
			Role:    model.RoleAssistant,
			Content: blocks,
		},
		Usage:      usage,
		StopReason: mapStopReason(string(msg.StopReason)),
	}, nil
}

func mapStopReason(s string) model.StopReason {
	switch s {
	case "end_turn":
		return model.StopEndTurn
	case "tool_use":
		return model.StopToolUse
	case "max_tokens":
		return model.StopMaxTokens
	case "stop_sequence":
		return model.StopStopSequence
	default:
		return model.StopEndTurn
	}
}
