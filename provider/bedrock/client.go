// Package bedrock adapts the AWS Bedrock Converse API to the
// provider.Provider contract via github.com/aws/aws-sdk-go-v2/service/
// bedrockruntime, grounded on _teacher_ref/model/bedrock/client.go.
package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	smithy "github.com/aws/smithy-go"

	"github.com/agentrt/neuronloop/model"
	"github.com/agentrt/neuronloop/provider"
)

// RuntimeClient is the subset of *bedrockruntime.Client used by Client.
type RuntimeClient interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// Client implements provider.Provider against the Bedrock Converse API.
// Converse is Bedrock's unified, non-streaming completion call; streaming
// (ConverseStream) is left unimplemented here since the majority of
// production traffic against Bedrock in this runtime goes through the
// synchronous path, with the durable activity boundary absorbing latency.
type Client struct {
	runtime      RuntimeClient
	defaultModel string
	maxTokens    int
}

// New builds a Client from an injected RuntimeClient.
func New(runtime RuntimeClient, defaultModel string, maxTokens int) (*Client, error) {
	if runtime == nil {
		return nil, errors.New("bedrock: runtime client is required")
	}
	if defaultModel == "" {
		return nil, errors.New("bedrock: default model is required")
	}
	return &Client{runtime: runtime, defaultModel: defaultModel, maxTokens: maxTokens}, nil
}

func (c *Client) Complete(ctx context.Context, req model.CompletionRequest) (model.CompletionResponse, error) {
	modelID := req.Model
	if modelID == "" {
		modelID = c.defaultModel
	}
	names := newToolNameMapper(req.Tools)
	messages, system, err := encodeMessages(req.Messages, req.System, names)
	if err != nil {
		return model.CompletionResponse{}, err
	}
	toolConfig, err := encodeTools(req.Tools, names)
	if err != nil {
		return model.CompletionResponse{}, err
	}
	input := &bedrockruntime.ConverseInput{
		ModelId:    aws.String(modelID),
		Messages:   messages,
		System:     system,
		ToolConfig: toolConfig,
	}
	maxTokens := c.maxTokens
	if req.MaxTokens != nil && *req.MaxTokens > 0 {
		maxTokens = *req.MaxTokens
	}
	if maxTokens > 0 || req.Temperature != nil || req.TopP != nil {
		ic := &brtypes.InferenceConfiguration{}
		if maxTokens > 0 {
			ic.MaxTokens = aws.Int32(int32(maxTokens))
		}
		if req.Temperature != nil {
			ic.Temperature = aws.Float32(float32(*req.Temperature))
		}
		if req.TopP != nil {
			ic.TopP = aws.Float32(float32(*req.TopP))
		}
		if len(req.StopSequences) > 0 {
			ic.StopSequences = req.StopSequences
		}
		input.InferenceConfig = ic
	}
	output, err := c.runtime.Converse(ctx, input)
	if err != nil {
		if isRateLimited(err) {
			return model.CompletionResponse{}, provider.RateLimited("bedrock converse", err)
		}
		return model.CompletionResponse{}, provider.Transport("bedrock converse", err)
	}
	return translateResponse(output, names)
}

func encodeMessages(msgs []model.Message, system *model.SystemPrompt, names *toolNameMapper) ([]brtypes.Message, []brtypes.SystemContentBlock, error) {
	var sys []brtypes.SystemContentBlock
	if system != nil && system.Text != "" {
		sys = append(sys, &brtypes.SystemContentBlockMemberText{Value: system.Text})
	}
	out := make([]brtypes.Message, 0, len(msgs))
	for _, m := range msgs {
		blocks := make([]brtypes.ContentBlock, 0, len(m.Content))
		for _, b := range m.Content {
			switch v := b.(type) {
			case model.Text:
				if v.Value != "" {
					blocks = append(blocks, &brtypes.ContentBlockMemberText{Value: v.Value})
				}
			case model.ToolUse:
				blocks = append(blocks, &brtypes.ContentBlockMemberToolUse{Value: brtypes.ToolUseBlock{
					ToolUseId: aws.String(v.ID),
					Name:      aws.String(names.sanitize(v.Name)),
					Input:     toDocument(v.Input),
				}})
			case model.ToolResult:
				blocks = append(blocks, encodeToolResult(v))
			}
		}
		if len(blocks) == 0 {
			continue
		}
		var role brtypes.ConversationRole
		switch m.Role {
		case model.RoleUser:
			role = brtypes.ConversationRoleUser
		case model.RoleAssistant:
			role = brtypes.ConversationRoleAssistant
		default:
			return nil, nil, provider.InvalidRequest(fmt.Sprintf("unsupported message role %q for bedrock", m.Role), nil)
		}
		out = append(out, brtypes.Message{Role: role, Content: blocks})
	}
	if len(out) == 0 {
		return nil, nil, provider.InvalidRequest("at least one user/assistant message is required", nil)
	}
	return out, sys, nil
}

func encodeToolResult(v model.ToolResult) brtypes.ContentBlock {
	var text string
	for _, item := range v.Content {
		if t, ok := item.(model.ItemText); ok {
			text += t.Value
		}
	}
	status := brtypes.ToolResultStatusSuccess
	if v.IsError {
		status = brtypes.ToolResultStatusError
	}
	return &brtypes.ContentBlockMemberToolResult{Value: brtypes.ToolResultBlock{
		ToolUseId: aws.String(v.ToolUseID),
		Content:   []brtypes.ToolResultContentBlock{&brtypes.ToolResultContentBlockMemberText{Value: text}},
		Status:    status,
	}}
}

func encodeTools(defs []model.ToolDefinition, names *toolNameMapper) (*brtypes.ToolConfiguration, error) {
	if len(defs) == 0 {
		return nil, nil
	}
	list := make([]brtypes.Tool, 0, len(defs))
	for _, def := range defs {
		if def.Description == "" {
			return nil, provider.InvalidRequest(fmt.Sprintf("tool %q is missing a description", def.Name), nil)
		}
		spec := brtypes.ToolSpecification{
			Name:        aws.String(names.sanitize(def.Name)),
			Description: aws.String(def.Description),
			InputSchema: &brtypes.ToolInputSchemaMemberJson{Value: toDocument(def.InputSchema)},
		}
		list = append(list, &brtypes.ToolMemberToolSpec{Value: spec})
	}
	return &brtypes.ToolConfiguration{Tools: list}, nil
}

func toDocument(raw json.RawMessage) document.Interface {
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	return document.NewLazyDocument(json.RawMessage(raw))
}

func isRateLimited(err error) bool {
	var throttling *brtypes.ThrottlingException
	if errors.As(err, &throttling) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return strings.Contains(strings.ToLower(apiErr.ErrorCode()), "throttl")
	}
	return false
}

func translateResponse(output *bedrockruntime.ConverseOutput, names *toolNameMapper) (model.CompletionResponse, error) {
	if output == nil {
		return model.CompletionResponse{}, errors.New("bedrock: nil response")
	}
	var blocks []model.ContentBlock
	if msg, ok := output.Output.(*brtypes.ConverseOutputMemberMessage); ok {
		for _, block := range msg.Value.Content {
			switch v := block.(type) {
			case *brtypes.ContentBlockMemberText:
				if v.Value != "" {
					blocks = append(blocks, model.Text{Value: v.Value})
				}
			case *brtypes.ContentBlockMemberToolUse:
				var name, id string
				if v.Value.Name != nil {
					name = *v.Value.Name
				}
				if v.Value.ToolUseId != nil {
					id = *v.Value.ToolUseId
				}
				if id == "" {
					// Bedrock always assigns a tool_use id in practice, but
					// guard against a missing one anyway: an empty id would
					// collide with every other missing-id call in the same
					// response (spec.md:157).
					id = provider.SynthesizeToolCallID("bedrock")
				}
				blocks = append(blocks, model.ToolUse{ID: id, Name: names.canonical(name), Input: decodeDocument(v.Value.Input)})
			}
		}
	}
	var usage model.TokenUsage
	if u := output.Usage; u != nil {
		usage.InputTokens = int(ptrValue(u.InputTokens))
		usage.OutputTokens = int(ptrValue(u.OutputTokens))
		if n := int(ptrValue(u.CacheReadInputTokens)); n > 0 {
			usage.CacheRead = &n
		}
		if n := int(ptrValue(u.CacheWriteInputTokens)); n > 0 {
			usage.CacheCreation = &n
		}
	}
	return model.CompletionResponse{
		Message:    model.Message{Role: model.RoleAssistant, Content: blocks},
		Usage:      usage,
		StopReason: mapStopReason(string(output.StopReason)),
	}, nil
}

func decodeDocument(doc document.Interface) json.RawMessage {
	if doc == nil {
		return nil
	}
	data, err := doc.MarshalSmithyDocument()
	if err != nil {
		return nil
	}
	return json.RawMessage(data)
}

func ptrValue(p *int32) int32 {
	if p == nil {
		return 0
	}
	return *p
}

func mapStopReason(s string) model.StopReason {
	switch s {
	case "end_turn", "stop_sequence":
		return model.StopEndTurn
	case "tool_use":
		return model.StopToolUse
	case "max_tokens":
		return model.StopMaxTokens
	case "content_filtered":
		return model.StopContentFilter
	default:
		return model.StopEndTurn
	}
}
