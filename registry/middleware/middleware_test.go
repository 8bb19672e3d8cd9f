package middleware_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agentrt/neuronloop/model"
	"github.com/agentrt/neuronloop/registry/middleware"
	"github.com/agentrt/neuronloop/tools"
)

func echoNext(content string, isError bool) tools.Next {
	return func(name string, input json.RawMessage, tc *model.ToolContext) (model.ToolOutput, error) {
		return model.ToolOutput{Content: []model.ContentItem{model.ItemText{Value: content}}, IsError: isError}, nil
	}
}

func TestSchemaValidatorRejectsMissingRequiredField(t *testing.T) {
	schema := json.RawMessage(`{"type":"object","required":["text"],"properties":{"text":{"type":"string"}}}`)
	mw := middleware.SchemaValidator(func(name string) json.RawMessage { return schema })

	_, err := mw("echo", json.RawMessage(`{}`), &model.ToolContext{}, echoNext("ok", false))
	require.Error(t, err)
	te, ok := tools.AsToolError(err)
	require.True(t, ok)
	require.Equal(t, tools.KindInvalidInput, te.Kind)
}

func TestSchemaValidatorPassesWellFormedInput(t *testing.T) {
	schema := json.RawMessage(`{"type":"object","required":["text"],"properties":{"text":{"type":"string"}}}`)
	mw := middleware.SchemaValidator(func(name string) json.RawMessage { return schema })

	out, err := mw("echo", json.RawMessage(`{"text":"x"}`), &model.ToolContext{}, echoNext("ok", false))
	require.NoError(t, err)
	require.False(t, out.IsError)
}

func TestPermissionCheckerDeny(t *testing.T) {
	mw := middleware.PermissionChecker(func(name string, input json.RawMessage, tc *model.ToolContext) (middleware.Decision, string) {
		return middleware.Deny, "blocked by policy"
	})
	_, err := mw("rm", nil, &model.ToolContext{}, echoNext("ok", false))
	require.Error(t, err)
	te, ok := tools.AsToolError(err)
	require.True(t, ok)
	require.Equal(t, tools.KindPermissionDenied, te.Kind)
	require.Equal(t, "blocked by policy", te.Message)
}

func TestPermissionCheckerAsk(t *testing.T) {
	mw := middleware.PermissionChecker(func(name string, input json.RawMessage, tc *model.ToolContext) (middleware.Decision, string) {
		return middleware.Ask, "destructive action"
	})
	_, err := mw("rm", nil, &model.ToolContext{}, echoNext("ok", false))
	te, _ := tools.AsToolError(err)
	require.Equal(t, "requires confirmation: destructive action", te.Message)
}

func TestOutputFormatterTruncatesOnRuneBoundaries(t *testing.T) {
	multiByte := strings.Repeat("é", 10) // 2-byte UTF-8 code points
	mw := middleware.OutputFormatter(5)

	out, err := mw("echo", nil, &model.ToolContext{}, echoNext(multiByte, false))
	require.NoError(t, err)
	require.Len(t, out.Content, 1)
	text := out.Content[0].(model.ItemText).Value
	require.True(t, strings_IsValidUTF8(text))
	require.Contains(t, text, "[truncated, 5 chars omitted]")
}

func strings_IsValidUTF8(s string) bool {
	for _, r := range s {
		if r == '�' {
			return false
		}
	}
	return true
}

func TestOutputFormatterPassesNonTextUnmodified(t *testing.T) {
	mw := middleware.OutputFormatter(3)
	next := func(name string, input json.RawMessage, tc *model.ToolContext) (model.ToolOutput, error) {
		return model.ToolOutput{Content: []model.ContentItem{model.ItemImage{Source: model.Source{URL: "x"}}}}, nil
	}
	out, err := mw("echo", nil, &model.ToolContext{}, next)
	require.NoError(t, err)
	require.Equal(t, model.ItemImage{Source: model.Source{URL: "x"}}, out.Content[0])
}
