package contextstrategy_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agentrt/neuronloop/contextstrategy"
	"github.com/agentrt/neuronloop/model"
)

func toolMessages() []model.Message {
	return []model.Message{
		{Role: model.RoleUser, Content: []model.ContentBlock{model.Text{Value: "hi"}}},
		{Role: model.RoleAssistant, Content: []model.ContentBlock{model.ToolUse{ID: "c1", Name: "echo"}}},
		{Role: model.RoleUser, Content: []model.ContentBlock{model.ToolResult{ToolUseID: "c1"}}},
		{Role: model.RoleAssistant, Content: []model.ContentBlock{model.Text{Value: "done"}}},
	}
}

func TestSlidingWindowNeverSplitsToolPair(t *testing.T) {
	s := contextstrategy.SlidingWindow{KeepLast: 1, CompactAboveTokens: 0}
	msgs := toolMessages()
	// Force the cut into the middle of the tool_use/tool_result pair:
	// KeepLast=1 would cut at len-1=3, landing on the assistant "done"
	// message, whereas KeepLast=2 cuts at len-2=2, on the ToolResult.
	s.KeepLast = 2
	out, err := s.Compact(context.Background(), msgs)
	require.NoError(t, err)
	// The kept suffix must not start with a bare ToolResult message.
	for _, m := range out {
		for _, b := range m.Content {
			if tr, ok := b.(model.ToolResult); ok {
				_ = tr
				// If a ToolResult survived into the output, its pairing
				// assistant ToolUse message must also be present.
				found := false
				for _, mm := range out {
					for _, bb := range mm.Content {
						if tu, ok := bb.(model.ToolUse); ok && tu.ID == tr.ToolUseID {
							found = true
						}
					}
				}
				require.True(t, found, "ToolResult survived compaction without its ToolUse pair")
			}
		}
	}
}

func TestNoCompactionNeverCompacts(t *testing.T) {
	s := contextstrategy.NoCompaction{}
	msgs := toolMessages()
	require.False(t, s.ShouldCompact(msgs, 1_000_000))
	out, err := s.Compact(context.Background(), msgs)
	require.NoError(t, err)
	require.Equal(t, msgs, out)
}

func TestSlidingWindowShouldCompactThreshold(t *testing.T) {
	s := contextstrategy.SlidingWindow{KeepLast: 1, CompactAboveTokens: 1}
	msgs := toolMessages()
	tokens := s.TokenEstimate(msgs)
	require.True(t, s.ShouldCompact(msgs, tokens+100))
	require.False(t, contextstrategy.SlidingWindow{KeepLast: 1, CompactAboveTokens: 0}.ShouldCompact(msgs, tokens))
}
