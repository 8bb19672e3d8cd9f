package engine

import (
	"context"
	"strings"

	"github.com/agentrt/neuronloop/hooks"
	"github.com/agentrt/neuronloop/model"
	"github.com/agentrt/neuronloop/telemetry"
)

// run holds the mutable state of one in-progress loop invocation: the
// conversation history (owned exclusively by the loop, appended to except
// during compaction), the running usage total, and the counters a
// UsageLimits policy checks against. It is not safe for concurrent use by
// more than one goroutine at a time; parallel tool fan-out writes back into
// it only after all concurrent calls have joined (§5).
type run struct {
	eng      *Engine
	messages []model.Message
	usage    model.TokenUsage
	turn     int

	requests  int
	toolCalls int
}

// runToCompletion drives turns until a terminal TurnResult is produced,
// translating it into (*AgentResult, error) for Run/RunText.
func (r *run) runToCompletion(ctx context.Context, tc *model.ToolContext) (*AgentResult, error) {
	for {
		result := r.step(ctx, tc)
		switch result.Kind {
		case ResultFinalResponse:
			return result.Final, nil
		case ResultMaxTurnsReached, ResultError:
			return nil, result.Err
		case ResultCompactionOccurred, ResultToolsExecuted:
			continue
		}
	}
}

// step executes the per-turn sequence (§4.E.2, steps 1-14) once and
// reports what happened. A turn that loops back on itself (compaction, or
// a completed tool fan-out) is reported as its own TurnResult rather than
// recursing, so the step iterator can observe every intermediate state.
func (r *run) step(ctx context.Context, tc *model.ToolContext) TurnResult {
	log, metrics, tracer := r.telemetry()

	// Step 1: cancellation check.
	if isCancelled(ctx, tc) {
		return errResult(Cancelled())
	}

	// Step 2: turn-limit and usage-limit checks.
	if limit, ok := r.eng.maxTurns(); ok && r.turn >= limit {
		log.Warn(ctx, "turn limit reached", telemetry.F("limit", limit))
		return TurnResult{Kind: ResultMaxTurnsReached, Err: MaxTurns(limit)}
	}
	if err := r.checkUsageLimits(); err != nil {
		return errResult(err)
	}

	// Step 3: LoopIteration hook.
	if action, err := r.eng.Hooks.Fire(hooks.Event{Kind: hooks.LoopIteration, Turn: r.turn}); err != nil {
		return errResult(HookTerminated(err.Error()))
	} else if action.Kind == hooks.Terminate {
		return errResult(HookTerminated(action.Reason))
	}

	spanCtx, span := tracer.Start(ctx, "engine.turn")
	defer span.End()

	// Step 4: compaction decision.
	tokens := r.eng.Strategy.TokenEstimate(r.messages)
	if r.eng.Strategy.ShouldCompact(r.messages, tokens) {
		compacted, err := r.eng.Strategy.Compact(spanCtx, r.messages)
		if err != nil {
			span.SetError(err)
			return errResult(ContextFailed(err))
		}
		newTokens := r.eng.Strategy.TokenEstimate(compacted)
		if action, err := r.eng.Hooks.Fire(hooks.Event{Kind: hooks.ContextCompaction, OldTokens: tokens, NewTokens: newTokens}); err != nil {
			return errResult(HookTerminated(err.Error()))
		} else if action.Kind == hooks.Terminate {
			return errResult(HookTerminated(action.Reason))
		}
		r.messages = compacted
		metrics.IncrCounter(spanCtx, "engine.compactions", 1)
		return TurnResult{Kind: ResultCompactionOccurred, OldTokens: tokens, NewTokens: newTokens}
	}

	// Step 5: request build.
	request := r.buildRequest()

	// Step 6: pre-LLM hook.
	if action, err := r.eng.Hooks.Fire(hooks.Event{Kind: hooks.PreLlmCall, Request: &request}); err != nil {
		return errResult(HookTerminated(err.Error()))
	} else if action.Kind == hooks.Terminate {
		return errResult(HookTerminated(action.Reason))
	}

	// Step 7: provider call.
	response, err := r.callProvider(spanCtx, request)
	if err != nil {
		span.SetError(err)
		log.Error(spanCtx, "provider call failed", err)
		return errResult(ProviderFailed(err))
	}
	r.requests++

	// Step 8: post-LLM hook.
	if action, err := r.eng.Hooks.Fire(hooks.Event{Kind: hooks.PostLlmCall, Response: &response}); err != nil {
		return errResult(HookTerminated(err.Error()))
	} else if action.Kind == hooks.Terminate {
		return errResult(HookTerminated(action.Reason))
	}

	// Step 9: usage accumulation.
	r.usage.Add(response.Usage)
	metrics.RecordHistogram(spanCtx, "engine.usage.input_tokens", float64(response.Usage.InputTokens))
	metrics.RecordHistogram(spanCtx, "engine.usage.output_tokens", float64(response.Usage.OutputTokens))
	if err := r.checkUsageLimits(); err != nil {
		return errResult(err)
	}

	// Step 10: append assistant message, verbatim.
	r.messages = append(r.messages, response.Message)

	// Step 11: classification.
	if response.StopReason == model.StopCompaction {
		r.turn++
		return TurnResult{Kind: ResultCompactionOccurred}
	}
	toolCalls := extractToolUses(response.Message)
	if len(toolCalls) == 0 || response.StopReason == model.StopEndTurn {
		r.turn++
		return TurnResult{Kind: ResultFinalResponse, Final: &AgentResult{
			ResponseText: extractText(response.Message),
			Messages:     append([]model.Message(nil), r.messages...),
			Usage:        r.usage,
			Turns:        r.turn,
		}}
	}

	// Step 12: cancellation check before any side-effect.
	if isCancelled(ctx, tc) {
		return errResult(Cancelled())
	}

	// Step 13: tool fan-out.
	results, err := r.executeTools(spanCtx, tc, toolCalls)
	if err != nil {
		span.SetError(err)
		return errResult(err)
	}
	r.toolCalls += len(toolCalls)
	if err := r.checkUsageLimits(); err != nil {
		return errResult(err)
	}

	// Step 14: append tool results as a single user message; increment T.
	content := make([]model.ContentBlock, len(results))
	for i, res := range results {
		content[i] = res
	}
	r.messages = append(r.messages, model.Message{Role: model.RoleUser, Content: content})
	r.turn++

	return TurnResult{Kind: ResultToolsExecuted, Calls: toolCalls, Results: results}
}

func (r *run) telemetry() (telemetry.Logger, telemetry.Metrics, telemetry.Tracer) {
	t := r.eng.telemetryOrNoop()
	return t.Logger, t.Metrics, t.Tracer
}

func (r *run) buildRequest() model.CompletionRequest {
	req := model.CompletionRequest{
		Messages: append([]model.Message(nil), r.messages...),
		Tools:    r.eng.Registry.Definitions(),
	}
	if r.eng.Config.SystemPrompt != "" {
		req.System = &model.SystemPrompt{Text: r.eng.Config.SystemPrompt}
	}
	return req
}

func (r *run) callProvider(ctx context.Context, request model.CompletionRequest) (model.CompletionResponse, error) {
	if r.eng.Durable != nil {
		return r.eng.Durable.ExecuteLLMCall(ctx, request, r.eng.activityOptions())
	}
	return r.eng.Provider.Complete(ctx, request)
}

func (r *run) checkUsageLimits() *LoopError {
	limits := r.eng.Config.Usage
	if limits == nil {
		return nil
	}
	if limits.MaxRequests != nil && r.requests >= *limits.MaxRequests {
		return UsageLimitExceeded("requests")
	}
	if limits.MaxToolCalls != nil && r.toolCalls >= *limits.MaxToolCalls {
		return UsageLimitExceeded("tool_calls")
	}
	if limits.MaxTokens != nil {
		total := r.usage.InputTokens + r.usage.OutputTokens
		if total >= *limits.MaxTokens {
			return UsageLimitExceeded("tokens")
		}
	}
	return nil
}

func isCancelled(ctx context.Context, tc *model.ToolContext) bool {
	if ctx.Err() != nil {
		return true
	}
	if tc != nil && tc.CancellationToken != nil && tc.CancellationToken.IsCancelled() {
		return true
	}
	return false
}

func errResult(err *LoopError) TurnResult {
	return TurnResult{Kind: ResultError, Err: err}
}

// extractToolUses returns every model.ToolUse block in msg's content, in
// document order.
func extractToolUses(msg model.Message) []model.ToolUse {
	var calls []model.ToolUse
	for _, block := range msg.Content {
		if tu, ok := block.(model.ToolUse); ok {
			calls = append(calls, tu)
		}
	}
	return calls
}

// extractText concatenates every Text block of msg's content, in document
// order (grounded on the original's extract_text).
func extractText(msg model.Message) string {
	var b strings.Builder
	for _, block := range msg.Content {
		if t, ok := block.(model.Text); ok {
			b.WriteString(t.Value)
		}
	}
	return b.String()
}
