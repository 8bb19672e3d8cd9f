package engine

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/agentrt/neuronloop/model"
	"github.com/agentrt/neuronloop/registry"
)

// TestToolPairingProperty verifies Testable Property 1: every ToolUse
// emitted by the assistant is answered by exactly one ToolResult with a
// matching ToolUseID, in the same order, in the following user message.
func TestToolPairingProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("tool results pair 1:1 and preserve order", prop.ForAll(
		func(n int) bool {
			reg := registry.New()
			calls := make([]model.ToolUse, n)
			for i := 0; i < n; i++ {
				name := fmt.Sprintf("tool_%d", i)
				reg.Register(echoTool{name: name})
				calls[i] = toolUseBlock(fmt.Sprintf("id_%d", i), name, `{}`)
			}
			fp := &fakeProvider{responses: []model.CompletionResponse{
				{Message: assistantWithToolUses(calls...), StopReason: model.StopToolUse},
				{Message: assistantText("done"), StopReason: model.StopEndTurn},
			}}
			eng := NewBuilder(fp, reg).Build()

			result, err := eng.Run(context.Background(), seedMessages(), nil)
			if err != nil {
				return false
			}
			toolMsg := result.Messages[2]
			if len(toolMsg.Content) != n {
				return false
			}
			for i, block := range toolMsg.Content {
				tr, ok := block.(model.ToolResult)
				if !ok || tr.ToolUseID != calls[i].ID {
					return false
				}
			}
			return true
		},
		gen.IntRange(1, 6),
	))

	properties.TestingRun(t)
}

// TestUsageMonotonicityProperty verifies Testable Property 2: accumulated
// usage counters never decrease turn over turn, and an optional counter
// absent on every turn stays absent (nil) rather than becoming a spurious
// zero.
func TestUsageMonotonicityProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("cumulative usage is monotonically non-decreasing", prop.ForAll(
		func(deltas []int) bool {
			responses := make([]model.CompletionResponse, 0, len(deltas)+1)
			for _, d := range deltas {
				if d < 0 {
					d = -d
				}
				responses = append(responses, model.CompletionResponse{
					Message:    assistantWithToolUses(toolUseBlock("t", "noop", `{}`)),
					StopReason: model.StopToolUse,
					Usage:      model.TokenUsage{InputTokens: d, OutputTokens: d},
				})
			}
			responses = append(responses, model.CompletionResponse{Message: assistantText("done"), StopReason: model.StopEndTurn})

			reg := registry.New()
			reg.Register(echoTool{name: "noop"})
			fp := &fakeProvider{responses: responses}
			eng := NewBuilder(fp, reg).Build()

			prevIn, prevOut := 0, 0
			it := eng.Steps(seedMessages())
			for !it.Done() {
				res := it.Next(context.Background(), nil)
				if res.Kind == ResultError || res.Kind == ResultMaxTurnsReached {
					return false
				}
				cur := it.r.usage
				if cur.InputTokens < prevIn || cur.OutputTokens < prevOut {
					return false
				}
				prevIn, prevOut = cur.InputTokens, cur.OutputTokens
			}
			// Final accumulated usage must equal the hand-computed sum of
			// every delta.
			want := 0
			for _, d := range deltas {
				if d < 0 {
					d = -d
				}
				want += d
			}
			final := it.r.usage
			if final.InputTokens < prevIn || final.OutputTokens < prevOut {
				return false
			}
			// No turn reports cache or reasoning counters, so they stay nil.
			if final.CacheRead != nil || final.CacheCreation != nil || final.Reasoning != nil {
				return false
			}
			return final.InputTokens == want && final.OutputTokens == want
		},
		gen.SliceOfN(4, gen.IntRange(0, 1000)),
	))

	properties.TestingRun(t)
}

// TestParallelOrderPreservationProperty verifies Testable Property 4 over
// randomized completion-delay permutations: whatever order concurrent tool
// calls finish in, the assembled user message always preserves the
// original ToolUse dispatch order.
func TestParallelOrderPreservationProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20
	properties := gopter.NewProperties(parameters)

	properties.Property("tool results preserve dispatch order under random completion delays", prop.ForAll(
		func(delaysMs []int) bool {
			log := &orderLog{}
			reg := registry.New()
			calls := make([]model.ToolUse, len(delaysMs))
			for i, ms := range delaysMs {
				name := fmt.Sprintf("slow_%d", i)
				reg.Register(slowTool{name: name, d: time.Duration(ms) * time.Millisecond, log: log})
				calls[i] = toolUseBlock(fmt.Sprintf("id_%d", i), name, `{}`)
			}
			fp := &fakeProvider{responses: []model.CompletionResponse{
				{Message: assistantWithToolUses(calls...), StopReason: model.StopToolUse},
				{Message: assistantText("done"), StopReason: model.StopEndTurn},
			}}
			eng := NewBuilder(fp, reg).ParallelToolExecution(true).Build()

			result, err := eng.Run(context.Background(), seedMessages(), nil)
			if err != nil {
				return false
			}
			toolMsg := result.Messages[2]
			if len(toolMsg.Content) != len(calls) {
				return false
			}
			for i, block := range toolMsg.Content {
				if block.(model.ToolResult).ToolUseID != calls[i].ID {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(4, gen.IntRange(0, 8)),
	))

	properties.TestingRun(t)
}
