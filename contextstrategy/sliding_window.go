package contextstrategy

import (
	"context"
	"fmt"

	"github.com/agentrt/neuronloop/model"
)

// SlidingWindow is the reference strategy named in §4.D: it preserves the
// last N messages plus a prefix summary message standing in for
// everything dropped. Token estimation counts one token per four UTF-8
// bytes of text, thinking, tool-input and tool-result text content as a
// cheap, monotonic heuristic (matching the teacher's own
// character-count-based estimateTokens in the rate limiter).
type SlidingWindow struct {
	// KeepLast is the number of most-recent messages to retain verbatim.
	KeepLast int
	// CompactAboveTokens triggers compaction once TokenEstimate exceeds
	// this threshold.
	CompactAboveTokens int
}

// TokenEstimate sums one token per four UTF-8 bytes over every Text,
// Thinking, ToolUse input, and tool-result text content block in messages.
func (s SlidingWindow) TokenEstimate(messages []model.Message) int {
	total := 0
	for _, m := range messages {
		for _, b := range m.Content {
			total += estimateBlock(b)
		}
	}
	return total
}

func estimateBlock(b model.ContentBlock) int {
	switch v := b.(type) {
	case model.Text:
		return len(v.Value) / 4
	case model.Thinking:
		return len(v.Text) / 4
	case model.ToolUse:
		return len(v.Input) / 4
	case model.ToolResult:
		n := 0
		for _, item := range v.Content {
			if t, ok := item.(model.ItemText); ok {
				n += len(t.Value) / 4
			}
		}
		return n
	default:
		return 0
	}
}

// ShouldCompact reports whether currentTokens exceeds CompactAboveTokens
// and there is more history than KeepLast messages to shrink.
func (s SlidingWindow) ShouldCompact(messages []model.Message, currentTokens int) bool {
	if s.CompactAboveTokens <= 0 {
		return false
	}
	return currentTokens > s.CompactAboveTokens && len(messages) > s.KeepLast
}

// Compact retains the last KeepLast messages (adjusted backwards so a
// ToolUse/ToolResult pair is never split across the cut) and replaces
// everything before that with a single synthetic Compaction summary
// message, so the next assistant turn can still see that prior tool
// interactions happened without re-reading their full content.
func (s SlidingWindow) Compact(ctx context.Context, messages []model.Message) ([]model.Message, error) {
	if len(messages) <= s.KeepLast {
		return messages, nil
	}
	cut := len(messages) - s.KeepLast
	cut = alignCutToPairBoundary(messages, cut)
	if cut <= 0 {
		return messages, nil
	}

	dropped := messages[:cut]
	kept := messages[cut:]

	summary := model.Message{
		Role: model.RoleUser,
		Content: []model.ContentBlock{
			model.Compaction{Content: []model.ContentBlock{
				model.Text{Value: fmt.Sprintf("[%d earlier messages summarized]", len(dropped))},
			}},
		},
	}

	out := make([]model.Message, 0, len(kept)+1)
	out = append(out, summary)
	out = append(out, kept...)
	return out, nil
}

// alignCutToPairBoundary walks the candidate cut point backwards while it
// would split a ToolUse (in messages[i-1]) from its ToolResult (in
// messages[i]), so compaction never severs the pairing invariant.
func alignCutToPairBoundary(messages []model.Message, cut int) int {
	for cut > 0 && cut < len(messages) && messageHasToolResult(messages[cut]) {
		cut--
	}
	return cut
}

func messageHasToolResult(m model.Message) bool {
	for _, b := range m.Content {
		if _, ok := b.(model.ToolResult); ok {
			return true
		}
	}
	return false
}
