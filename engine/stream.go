package engine

import (
	"context"
	"io"

	"github.com/agentrt/neuronloop/hooks"
	"github.com/agentrt/neuronloop/model"
	"github.com/agentrt/neuronloop/provider"
)

// StreamEventKind discriminates the StreamEvent union (§4.B, §6).
type StreamEventKind int

const (
	StreamTextDelta StreamEventKind = iota
	StreamThinkingDelta
	StreamToolCallDelta
	StreamToolCallComplete
	StreamUsage
	StreamMessageComplete
	// StreamError is the terminal failure variant; producers deliver errors
	// this way rather than closing the channel abruptly (§4.E.4).
	StreamError
)

// StreamEvent is one item on the channel RunStream returns. Only the
// fields relevant to Kind are populated.
type StreamEvent struct {
	Kind StreamEventKind

	Text         string
	Block        model.ContentBlock
	ToolCallID   string
	ToolCallName string
	Usage        *model.TokenUsage
	Response     *model.CompletionResponse
	Err          *LoopError
}

// RunStream drives the loop using the streaming provider call per turn,
// returning an unbuffered channel of StreamEvent: each send waits for the
// receiver. Every provider call ends with a StreamMessageComplete carrying
// that turn's CompletionResponse; a failure is reported as one StreamError
// (unless ctx is already cancelled). The channel is closed after the final
// turn or after the StreamError. Abandoning the channel does not stop the
// loop: its goroutine blocks on the next send until ctx is cancelled.
func (e *Engine) RunStream(ctx context.Context, seed []model.Message, tc *model.ToolContext) <-chan StreamEvent {
	out := make(chan StreamEvent)
	r := e.newRun(seed)

	go func() {
		defer close(out)
		emit := func(ev StreamEvent) bool {
			select {
			case out <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}
		for {
			final, err := r.streamTurn(ctx, tc, emit)
			if err != nil {
				emit(StreamEvent{Kind: StreamError, Err: err})
				return
			}
			if final {
				return
			}
		}
	}()
	return out
}

// streamTurn executes one per-turn sequence using the streaming provider
// call (or the durable-fallback synthesis) in place of the unary call.
// Returns final=true once the run is over (a final response has been
// emitted, or an error ends the run). A strategy compaction or a
// Compaction stop reason returns final=false and the loop continues.
func (r *run) streamTurn(ctx context.Context, tc *model.ToolContext, emit func(StreamEvent) bool) (bool, *LoopError) {
	if isCancelled(ctx, tc) {
		return true, Cancelled()
	}
	if limit, ok := r.eng.maxTurns(); ok && r.turn >= limit {
		return true, MaxTurns(limit)
	}
	if err := r.checkUsageLimits(); err != nil {
		return true, err
	}

	if action, err := r.eng.Hooks.Fire(hooks.Event{Kind: hooks.LoopIteration, Turn: r.turn}); err != nil {
		return true, HookTerminated(err.Error())
	} else if action.Kind == hooks.Terminate {
		return true, HookTerminated(action.Reason)
	}

	tokens := r.eng.Strategy.TokenEstimate(r.messages)
	if r.eng.Strategy.ShouldCompact(r.messages, tokens) {
		compacted, err := r.eng.Strategy.Compact(ctx, r.messages)
		if err != nil {
			return true, ContextFailed(err)
		}
		newTokens := r.eng.Strategy.TokenEstimate(compacted)
		if action, err := r.eng.Hooks.Fire(hooks.Event{Kind: hooks.ContextCompaction, OldTokens: tokens, NewTokens: newTokens}); err != nil {
			return true, HookTerminated(err.Error())
		} else if action.Kind == hooks.Terminate {
			return true, HookTerminated(action.Reason)
		}
		r.messages = compacted
		return false, nil
	}

	request := r.buildRequest()
	if action, err := r.eng.Hooks.Fire(hooks.Event{Kind: hooks.PreLlmCall, Request: &request}); err != nil {
		return true, HookTerminated(err.Error())
	} else if action.Kind == hooks.Terminate {
		return true, HookTerminated(action.Reason)
	}

	response, err := r.streamProviderCall(ctx, request, emit)
	if err != nil {
		return true, ProviderFailed(err)
	}
	r.requests++

	if action, err := r.eng.Hooks.Fire(hooks.Event{Kind: hooks.PostLlmCall, Response: &response}); err != nil {
		return true, HookTerminated(err.Error())
	} else if action.Kind == hooks.Terminate {
		return true, HookTerminated(action.Reason)
	}

	r.usage.Add(response.Usage)
	if err := r.checkUsageLimits(); err != nil {
		return true, err
	}

	r.messages = append(r.messages, response.Message)

	if response.StopReason == model.StopCompaction {
		r.turn++
		return false, nil
	}
	toolCalls := extractToolUses(response.Message)
	if len(toolCalls) == 0 || response.StopReason == model.StopEndTurn {
		r.turn++
		return true, nil
	}

	if isCancelled(ctx, tc) {
		return true, Cancelled()
	}

	results, terr := r.executeTools(ctx, tc, toolCalls)
	if terr != nil {
		return true, terr
	}
	r.toolCalls += len(toolCalls)
	if err := r.checkUsageLimits(); err != nil {
		return true, err
	}

	content := make([]model.ContentBlock, len(results))
	for i, res := range results {
		content[i] = res
	}
	r.messages = append(r.messages, model.Message{Role: model.RoleUser, Content: content})
	r.turn++
	return false, nil
}

// streamProviderCall issues the turn's provider call and emits StreamEvents
// as output arrives. When durability is installed, or the configured
// provider does not implement provider.Streamer, it falls back to the
// unary call and synthesizes the same event shape (text deltas drawn from
// the returned message, then Usage, then MessageComplete) so downstream
// consumers see an identical event sequence either way (§4.E.4).
func (r *run) streamProviderCall(ctx context.Context, request model.CompletionRequest, emit func(StreamEvent) bool) (model.CompletionResponse, error) {
	if r.eng.Durable == nil && r.eng.Streamer != nil {
		return r.streamNative(ctx, request, emit)
	}
	return r.streamSynthesized(ctx, request, emit)
}

func (r *run) streamNative(ctx context.Context, request model.CompletionRequest, emit func(StreamEvent) bool) (model.CompletionResponse, error) {
	stream, err := r.eng.Streamer.Stream(ctx, request)
	if err != nil {
		return model.CompletionResponse{}, err
	}
	defer stream.Close()

	var final model.CompletionResponse
	for {
		ev, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return model.CompletionResponse{}, err
		}
		switch ev.Kind {
		case provider.EventTextDelta:
			emit(StreamEvent{Kind: StreamTextDelta, Text: ev.Text})
		case provider.EventThinkingDelta:
			emit(StreamEvent{Kind: StreamThinkingDelta, Text: ev.Text})
		case provider.EventToolCallDelta:
			emit(StreamEvent{Kind: StreamToolCallDelta, Text: ev.Text, ToolCallID: ev.ToolCallID, ToolCallName: ev.ToolCallName})
		case provider.EventToolCallComplete:
			emit(StreamEvent{Kind: StreamToolCallComplete, Block: ev.Block, ToolCallID: ev.ToolCallID, ToolCallName: ev.ToolCallName})
		case provider.EventUsage:
			emit(StreamEvent{Kind: StreamUsage, Usage: ev.Usage})
		case provider.EventMessageComplete:
			if ev.Response != nil {
				final = *ev.Response
			}
			emit(StreamEvent{Kind: StreamMessageComplete, Response: ev.Response})
		}
	}
	return final, nil
}

func (r *run) streamSynthesized(ctx context.Context, request model.CompletionRequest, emit func(StreamEvent) bool) (model.CompletionResponse, error) {
	response, err := r.callProvider(ctx, request)
	if err != nil {
		return model.CompletionResponse{}, err
	}
	for _, block := range response.Message.Content {
		if t, ok := block.(model.Text); ok {
			emit(StreamEvent{Kind: StreamTextDelta, Text: t.Value})
		}
	}
	usage := response.Usage
	emit(StreamEvent{Kind: StreamUsage, Usage: &usage})
	emit(StreamEvent{Kind: StreamMessageComplete, Response: &response})
	return response, nil
}
