package engine

import (
	"github.com/agentrt/neuronloop/contextstrategy"
	"github.com/agentrt/neuronloop/durable"
	"github.com/agentrt/neuronloop/hooks"
	"github.com/agentrt/neuronloop/provider"
	"github.com/agentrt/neuronloop/registry"
	"github.com/agentrt/neuronloop/telemetry"
)

// Builder is the fluent construction entry point (supplemented from the
// original's AgentLoopBuilder; pure convenience, no contract implications).
type Builder struct {
	eng Engine
}

// NewBuilder starts a Builder around the required collaborators: a
// Provider and a tool Registry. Every other dependency defaults to a
// no-op/zero value and can be overridden with the chained setters below.
func NewBuilder(p provider.Provider, reg *registry.Registry) *Builder {
	return &Builder{eng: Engine{
		Provider: p,
		Registry: reg,
		Strategy: contextstrategy.NoCompaction{},
		Hooks:    hooks.NewBus(),
	}}
}

// Streamer installs an optional provider.Streamer for incremental output.
func (b *Builder) Streamer(s provider.Streamer) *Builder {
	b.eng.Streamer = s
	return b
}

// Strategy installs the compaction strategy (defaults to NoCompaction).
func (b *Builder) Strategy(s contextstrategy.Strategy) *Builder {
	b.eng.Strategy = s
	return b
}

// Hooks installs the hook bus (defaults to an empty one).
func (b *Builder) Hooks(bus *hooks.Bus) *Builder {
	b.eng.Hooks = bus
	return b
}

// Durability installs a durable.Context to route provider/tool calls
// through (defaults to nil, meaning direct calls).
func (b *Builder) Durability(d durable.Context) *Builder {
	b.eng.Durable = d
	return b
}

// Telemetry installs the logging/metrics/tracing provider (defaults to
// Noop).
func (b *Builder) Telemetry(t telemetry.Provider) *Builder {
	b.eng.Telemetry = t
	return b
}

// SystemPrompt sets LoopConfig.SystemPrompt.
func (b *Builder) SystemPrompt(prompt string) *Builder {
	b.eng.Config.SystemPrompt = prompt
	return b
}

// MaxTurns sets LoopConfig.MaxTurns.
func (b *Builder) MaxTurns(n int) *Builder {
	b.eng.Config.MaxTurns = &n
	return b
}

// ParallelToolExecution sets LoopConfig.ParallelToolExecution.
func (b *Builder) ParallelToolExecution(enabled bool) *Builder {
	b.eng.Config.ParallelToolExecution = enabled
	return b
}

// UsageLimits sets LoopConfig.Usage.
func (b *Builder) UsageLimits(l UsageLimits) *Builder {
	b.eng.Config.Usage = &l
	return b
}

// Build returns the configured Engine.
func (b *Builder) Build() *Engine {
	eng := b.eng
	return &eng
}
