package openai

import (
	"context"
	"encoding/json"
	"io"
	"sync"

	sdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/packages/ssestream"

	"github.com/agentrt/neuronloop/model"
	"github.com/agentrt/neuronloop/provider"
)

// streamer adapts an OpenAI chat-completion-chunk SSE stream to
// provider.Stream, following the same assemble-then-emit shape as
// provider/anthropic's streamer.
type streamer struct {
	ctx    context.Context
	cancel context.CancelFunc
	stream *ssestream.Stream[sdk.ChatCompletionChunk]

	events chan provider.StreamEvent

	errMu sync.Mutex
	err   error
}

func newStreamer(ctx context.Context, stream *ssestream.Stream[sdk.ChatCompletionChunk]) *streamer {
	cctx, cancel := context.WithCancel(ctx)
	s := &streamer{ctx: cctx, cancel: cancel, stream: stream, events: make(chan provider.StreamEvent, 32)}
	go s.run()
	return s
}

func (s *streamer) Recv() (provider.StreamEvent, error) {
	select {
	case ev, ok := <-s.events:
		if ok {
			return ev, nil
		}
		if err := s.getErr(); err != nil {
			return provider.StreamEvent{}, err
		}
		return provider.StreamEvent{}, io.EOF
	case <-s.ctx.Done():
		return provider.StreamEvent{}, s.ctx.Err()
	}
}

func (s *streamer) Close() error {
	s.cancel()
	if s.stream == nil {
		return nil
	}
	return s.stream.Close()
}

func (s *streamer) setErr(err error) {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

func (s *streamer) getErr() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

type toolCallBuffer struct {
	id        string
	name      string
	fragments []string
}

func (s *streamer) run() {
	defer close(s.events)

	calls := make(map[int64]*toolCallBuffer)
	var respID, respModel string
	var text string
	var usage model.TokenUsage
	var stopReason model.StopReason

	emit := func(ev provider.StreamEvent) bool {
		select {
		case s.events <- ev:
			return true
		case <-s.ctx.Done():
			s.setErr(s.ctx.Err())
			return false
		}
	}

	for s.stream.Next() {
		chunk := s.stream.Current()
		if chunk.ID != "" {
			respID = chunk.ID
		}
		if chunk.Model != "" {
			respModel = chunk.Model
		}
		if len(chunk.Choices) == 0 {
			if chunk.Usage.TotalTokens > 0 {
				usage.InputTokens = int(chunk.Usage.PromptTokens)
				usage.OutputTokens = int(chunk.Usage.CompletionTokens)
				u := usage
				if !emit(provider.StreamEvent{Kind: provider.EventUsage, Usage: &u}) {
					return
				}
			}
			continue
		}
		choice := chunk.Choices[0]
		if choice.Delta.Content != "" {
			text += choice.Delta.Content
			if !emit(provider.StreamEvent{Kind: provider.EventTextDelta, Text: choice.Delta.Content}) {
				return
			}
		}
		for _, tc := range choice.Delta.ToolCalls {
			idx := tc.Index
			tb := calls[idx]
			if tb == nil {
				tb = &toolCallBuffer{id: tc.ID, name: tc.Function.Name}
				calls[idx] = tb
			}
			if tc.Function.Arguments != "" {
				tb.fragments = append(tb.fragments, tc.Function.Arguments)
				if !emit(provider.StreamEvent{
					Kind:         provider.EventToolCallDelta,
					ToolCallID:   tb.id,
					ToolCallName: tb.name,
					Text:         tc.Function.Arguments,
				}) {
					return
				}
			}
		}
		if choice.FinishReason != "" {
			stopReason = mapStopReason(choice.FinishReason)
		}
	}
	if err := s.stream.Err(); err != nil {
		s.setErr(translateError(err))
		return
	}
	if err := s.ctx.Err(); err != nil {
		s.setErr(err)
		return
	}

	var blocks []model.ContentBlock
	if text != "" {
		blocks = append(blocks, model.Text{Value: text})
	}
	for _, tb := range calls {
		joined := joinFragments(tb.fragments)
		blocks = append(blocks, model.ToolUse{ID: tb.id, Name: tb.name, Input: joined})
		select {
		case s.events <- provider.StreamEvent{Kind: provider.EventToolCallComplete, Block: model.ToolUse{ID: tb.id, Name: tb.name, Input: joined}}:
		case <-s.ctx.Done():
			s.setErr(s.ctx.Err())
			return
		}
	}
	resp := model.CompletionResponse{
		ID:    respID,
		Model: respModel,
		Message: model.Message{
			Role:    model.RoleAssistant,
			Content: blocks,
		},
		Usage:      usage,
		StopReason: stopReason,
	}
	select {
	case s.events <- provider.StreamEvent{Kind: provider.EventMessageComplete, Response: &resp}:
	case <-s.ctx.Done():
		s.setErr(s.ctx.Err())
	}
}

func joinFragments(frags []string) json.RawMessage {
	if len(frags) == 0 {
		return json.RawMessage("{}")
	}
	joined := ""
	for _, f := range frags {
		joined += f
	}
	return json.RawMessage(joined)
}
