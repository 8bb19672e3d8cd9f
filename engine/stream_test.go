package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agentrt/neuronloop/model"
	"github.com/agentrt/neuronloop/registry"
)

func TestRunStreamSynthesizesEventsWithoutStreamer(t *testing.T) {
	fp := &fakeProvider{responses: []model.CompletionResponse{
		{Message: assistantText("hello there"), StopReason: model.StopEndTurn, Usage: model.TokenUsage{InputTokens: 1}},
	}}
	eng := NewBuilder(fp, registry.New()).Build()

	events := eng.RunStream(context.Background(), seedMessages(), nil)

	var kinds []StreamEventKind
	for ev := range events {
		kinds = append(kinds, ev.Kind)
		if ev.Kind == StreamError {
			t.Fatalf("unexpected stream error: %v", ev.Err)
		}
	}
	require.Equal(t, []StreamEventKind{StreamTextDelta, StreamUsage, StreamMessageComplete}, kinds)
}

func TestRunStreamDeliversErrorInsteadOfClosingAbruptly(t *testing.T) {
	fp := &fakeProvider{errs: []error{context.DeadlineExceeded}}
	eng := NewBuilder(fp, registry.New()).Build()

	events := eng.RunStream(context.Background(), seedMessages(), nil)
	var last StreamEvent
	for ev := range events {
		last = ev
	}
	require.Equal(t, StreamError, last.Kind)
	require.NotNil(t, last.Err)
	require.Equal(t, ErrProvider, last.Err.Kind)
}
