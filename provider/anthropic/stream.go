package anthropic

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"sync"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"github.com/agentrt/neuronloop/model"
	"github.com/agentrt/neuronloop/provider"
)

// streamer adapts an Anthropic SSE stream to provider.Stream, grounded on
// _teacher_ref/model/anthropic/stream.go's anthropicStreamer/
// anthropicChunkProcessor split. The assembled message in MessageComplete
// holds the text and tool-use blocks; thinking deltas are forwarded as
// events but are not included in it.
type streamer struct {
	ctx    context.Context
	cancel context.CancelFunc
	stream *ssestream.Stream[sdk.MessageStreamEventUnion]

	events chan provider.StreamEvent

	errMu sync.Mutex
	err   error
}

func newStreamer(ctx context.Context, stream *ssestream.Stream[sdk.MessageStreamEventUnion]) *streamer {
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

type toolBuffer struct {
	id        string
	name      string
	fragments []string
}

func (tb *toolBuffer) finalInput() json.RawMessage {
	joined := strings.Join(tb.fragments, "")
	if strings.TrimSpace(joined) == "" {
		return json.RawMessage("{}")
	}
	return json.RawMessage(joined)
}

func (s *streamer) run() {
	defer close(s.events)
	defer func() {
		if s.stream != nil {
			_ = s.stream.Close()
		}
	}()

	toolBlocks := make(map[int]*toolBuffer)
	textBlocks := make(map[int]*strings.Builder)
	var responseID, responseModel string
	var usage model.TokenUsage
	var cacheRead, cacheCreation int
	var stopReason model.StopReason
	var assembled []model.ContentBlock

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
		event := s.stream.Current()
		switch ev := event.AsAny().(type) {
		case sdk.MessageStartEvent:
			responseID = ev.Message.ID
			responseModel = string(ev.Message.Model)
		case sdk.ContentBlockStartEvent:
			idx := int(ev.Index)
			if tu, ok := ev.ContentBlock.AsAny().(sdk.ToolUseBlock); ok {
				toolBlocks[idx] = &toolBuffer{id: tu.ID, name: tu.Name}
			}
		case sdk.ContentBlockDeltaEvent:
			idx := int(ev.Index)
			switch delta := ev.Delta.AsAny().(type) {
			case sdk.TextDelta:
				if delta.Text != "" {
					sb := textBlocks[idx]
					if sb == nil {
						sb = &strings.Builder{}
						textBlocks[idx] = sb
					}
					sb.WriteString(delta.Text)
					if !emit(provider.StreamEvent{Kind: provider.EventTextDelta, Text: delta.Text}) {
						return
					}
				}
			case sdk.ThinkingDelta:
				if delta.Thinking != "" {
					if !emit(provider.StreamEvent{Kind: provider.EventThinkingDelta, Text: delta.Thinking}) {
						return
					}
				}
			case sdk.InputJSONDelta:
				if tb := toolBlocks[idx]; tb != nil && delta.PartialJSON != "" {
					tb.fragments = append(tb.fragments, delta.PartialJSON)
					if !emit(provider.StreamEvent{
						Kind:         provider.EventToolCallDelta,
						ToolCallID:   tb.id,
						ToolCallName: tb.name,
						Text:         delta.PartialJSON,
					}) {
						return
					}
				}
			}
		case sdk.ContentBlockStopEvent:
			idx := int(ev.Index)
			if sb := textBlocks[idx]; sb != nil {
				delete(textBlocks, idx)
				assembled = append(assembled, model.Text{Value: sb.String()})
			}
			if tb := toolBlocks[idx]; tb != nil {
				delete(toolBlocks, idx)
				block := model.ToolUse{ID: tb.id, Name: tb.name, Input: tb.finalInput()}
				assembled = append(assembled, block)
				if !emit(provider.StreamEvent{Kind: provider.EventToolCallComplete, Block: block}) {
					return
				}
			}
		case sdk.MessageDeltaEvent:
			stopReason = mapStopReason(string(ev.Delta.StopReason))
			usage.InputTokens += int(ev.Usage.InputTokens)
			usage.OutputTokens += int(ev.Usage.OutputTokens)
			if n := int(ev.Usage.CacheReadInputTokens); n > 0 {
				cacheRead += n
			}
			if n := int(ev.Usage.CacheCreationInputTokens); n > 0 {
				cacheCreation += n
			}
			u := usage
			if cacheRead > 0 {
				r := cacheRead
				u.CacheRead = &r
			}
			if cacheCreation > 0 {
				c := cacheCreation
				u.CacheCreation = &c
			}
			usage = u
			uCopy := u
			if !emit(provider.StreamEvent{Kind: provider.EventUsage, Usage: &uCopy}) {
				return
			}
		case sdk.MessageStopEvent:
			resp := model.CompletionResponse{
				ID:    responseID,
				Model: responseModel,
				Message: model.Message{
					Role:    model.RoleAssistant,
					Content: assembled,
				},
				Usage:      usage,
				StopReason: stopReason,
			}
			if !emit(provider.StreamEvent{Kind: provider.EventMessageComplete, Response: &resp}) {
				return
			}
		}
	}
	if err := s.stream.Err(); err != nil {
		s.setErr(translateError(err))
	} else if err := s.ctx.Err(); err != nil {
		s.setErr(err)
	}
}
