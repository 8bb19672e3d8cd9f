// Package engine implements the agent loop: the turn-structured state
// machine interleaving model inference with tool invocation (§4.E), exposed
// in three flavors — run-to-completion (Engine.Run/RunText), a step
// iterator (Engine.Steps), and streaming (Engine.RunStream).
//
// The engine owns the conversation history for the duration of a single
// run and is the sole mutator of it (append-only except during
// compaction, §5). An Engine value is immutable configuration plus
// collaborators and may drive multiple independent runs concurrently; all
// per-run mutable state lives in the unexported run type.
package engine

import (
	"context"

	"github.com/agentrt/neuronloop/contextstrategy"
	"github.com/agentrt/neuronloop/durable"
	"github.com/agentrt/neuronloop/hooks"
	"github.com/agentrt/neuronloop/model"
	"github.com/agentrt/neuronloop/provider"
	"github.com/agentrt/neuronloop/registry"
	"github.com/agentrt/neuronloop/telemetry"
)

// AgentResult is the run-to-completion outcome (§4.E.2 step 11).
type AgentResult struct {
	ResponseText string
	Messages     []model.Message
	Usage        model.TokenUsage
	Turns        int
}

// Engine drives the per-turn sequence against a configured Provider, tool
// Registry, compaction Strategy, and hook Bus. Durability is optional: when
// Durable is non-nil, provider and tool calls are routed through it
// instead of being invoked directly (§4.F) — its presence only redirects
// where the call goes, never what it means.
type Engine struct {
	Provider provider.Provider
	Streamer provider.Streamer // optional; nil falls back to synthesized streaming
	Registry *registry.Registry
	Strategy contextstrategy.Strategy
	Hooks    *hooks.Bus
	Durable  durable.Context // nil means direct, non-durable calls
	Config   LoopConfig
	Telemetry telemetry.Provider
}

// Run drives the loop to completion starting from seed messages appended
// to an empty history, returning the final AgentResult or a *LoopError.
func (e *Engine) Run(ctx context.Context, seed []model.Message, tc *model.ToolContext) (*AgentResult, error) {
	r := e.newRun(seed)
	return r.runToCompletion(ctx, tc)
}

// RunText is the convenience entry point wrapping text into a single user
// message before running (supplemented from the original's run_text).
func (e *Engine) RunText(ctx context.Context, text string, tc *model.ToolContext) (*AgentResult, error) {
	return e.Run(ctx, []model.Message{
		{Role: model.RoleUser, Content: []model.ContentBlock{model.Text{Value: text}}},
	}, tc)
}

// Steps returns a StepIterator seeded with messages, for callers that want
// to inspect history, inject messages, or mutate the registry between
// turns (§4.E.4, supplemented InjectMessage/ToolsMut).
func (e *Engine) Steps(seed []model.Message) *StepIterator {
	return &StepIterator{r: e.newRun(seed)}
}

func (e *Engine) newRun(seed []model.Message) *run {
	messages := make([]model.Message, len(seed))
	copy(messages, seed)
	return &run{eng: e, messages: messages}
}

func (e *Engine) telemetryOrNoop() telemetry.Provider {
	if e.Telemetry.Logger == nil && e.Telemetry.Metrics == nil && e.Telemetry.Tracer == nil {
		return telemetry.NewNoop()
	}
	return e.Telemetry
}

func (e *Engine) activityOptions() durable.ActivityOptions {
	return durable.DefaultActivityOptions()
}

func (e *Engine) maxTurns() (int, bool) {
	if e.Config.MaxTurns == nil {
		return 0, false
	}
	return *e.Config.MaxTurns, true
}
