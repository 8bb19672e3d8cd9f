package registry_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agentrt/neuronloop/model"
	"github.com/agentrt/neuronloop/registry"
	"github.com/agentrt/neuronloop/tools"
)

type echoTool struct{}

func (echoTool) Name() string                   { return "echo" }
func (echoTool) Description() string            { return "echoes the text field" }
func (echoTool) InputSchema() json.RawMessage    { return json.RawMessage(`{"type":"object"}`) }
func (echoTool) Definition() model.ToolDefinition {
	return model.ToolDefinition{Name: "echo", Description: "echoes the text field"}
}
func (echoTool) Call(ctx context.Context, input json.RawMessage, tc *model.ToolContext) (model.ToolOutput, error) {
	var args struct {
		Text string `json:"text"`
	}
	_ = json.Unmarshal(input, &args)
	return model.ToolOutput{Content: []model.ContentItem{model.ItemText{Value: "echo: " + args.Text}}}, nil
}

func TestRegisterGetDefinitionsExecute(t *testing.T) {
	r := registry.New()
	r.Register(echoTool{})

	got, ok := r.Get("echo")
	require.True(t, ok)
	require.Equal(t, "echo", got.Name())

	defs := r.Definitions()
	require.Len(t, defs, 1)
	require.Equal(t, "echo", defs[0].Name)

	out, err := r.Execute(context.Background(), "echo", json.RawMessage(`{"text":"x"}`), &model.ToolContext{})
	require.NoError(t, err)
	require.Equal(t, "echo: x", out.Content[0].(model.ItemText).Value)
}

func TestExecuteUnknownToolReturnsNotFound(t *testing.T) {
	r := registry.New()
	_, err := r.Execute(context.Background(), "missing", nil, &model.ToolContext{})
	te, ok := tools.AsToolError(err)
	require.True(t, ok)
	require.Equal(t, tools.KindNotFound, te.Kind)
}

func TestDuplicateRegistrationPanics(t *testing.T) {
	r := registry.New()
	r.Register(echoTool{})
	require.Panics(t, func() { r.Register(echoTool{}) })
}

func TestMiddlewareOnionOrderLastAddedIsInnermost(t *testing.T) {
	r := registry.New()
	r.Register(echoTool{})

	var order []string
	wrap := func(label string) tools.Middleware {
		return func(name string, input json.RawMessage, tc *model.ToolContext, next tools.Next) (model.ToolOutput, error) {
			order = append(order, label+":before")
			out, err := next(name, input, tc)
			order = append(order, label+":after")
			return out, err
		}
	}
	r.AddMiddleware(wrap("outer"))
	r.AddMiddleware(wrap("inner"))

	_, err := r.Execute(context.Background(), "echo", json.RawMessage(`{"text":"x"}`), &model.ToolContext{})
	require.NoError(t, err)
	require.Equal(t, []string{"outer:before", "inner:before", "inner:after", "outer:after"}, order)
}

func TestSchemaWellFormednessRejectsMalformedSchemaAtRegister(t *testing.T) {
	r := registry.New(registry.WithSchemaWellFormedness(registry.CheckSchemaWellFormed))
	bad := badSchemaTool{}
	require.Panics(t, func() { r.Register(bad) })
}

type badSchemaTool struct{ echoTool }

func (badSchemaTool) InputSchema() json.RawMessage {
	return json.RawMessage(`{"type": 123}`)
}
