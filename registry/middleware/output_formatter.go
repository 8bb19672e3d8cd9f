package middleware

import (
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"github.com/agentrt/neuronloop/model"
	"github.com/agentrt/neuronloop/tools"
)

// OutputFormatter truncates every ItemText in the tool result on character
// (code point, not byte) boundaries, appending a
// "[truncated, N chars omitted]" marker when exceeded. Non-text items pass
// through unmodified (§4.C.3). Truncation is done by counting runes so a
// multi-byte code point is never split, satisfying Testable Property 6.
func OutputFormatter(maxChars int) tools.Middleware {
	return func(name string, input json.RawMessage, tc *model.ToolContext, next tools.Next) (model.ToolOutput, error) {
		out, err := next(name, input, tc)
		if err != nil {
			return out, err
		}
		if maxChars <= 0 {
			return out, nil
		}
		formatted := make([]model.ContentItem, len(out.Content))
		for i, item := range out.Content {
			text, ok := item.(model.ItemText)
			if !ok {
				formatted[i] = item
				continue
			}
			formatted[i] = model.ItemText{Value: truncateRunes(text.Value, maxChars)}
		}
		out.Content = formatted
		return out, nil
	}
}

func truncateRunes(s string, maxChars int) string {
	n := utf8.RuneCountInString(s)
	if n <= maxChars {
		return s
	}
	var kept []rune
	for _, r := range s {
		if len(kept) == maxChars {
			break
		}
		kept = append(kept, r)
	}
	omitted := n - len(kept)
	return string(kept) + fmt.Sprintf("[truncated, %d chars omitted]", omitted)
}
