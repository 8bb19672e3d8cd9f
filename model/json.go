package model

import (
	"encoding/json"
	"fmt"
)

// wireBlock is the on-the-wire shape of a ContentBlock: a Kind
// discriminator plus kind-specific fields. Unknown Kind values decode into
// Custom instead of erroring, satisfying Testable Property 8.
type wireBlock struct {
	Kind string `json:"kind"`

	Text string `json:"text,omitempty"`

	Signature string `json:"signature,omitempty"`
	Data      []byte `json:"data,omitempty"`

	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`

	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   []wireItem      `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`

	Source *wireSource `json:"source,omitempty"`

	Blocks []wireBlock `json:"blocks,omitempty"`

	Raw json.RawMessage `json:"-"`
}

type wireSource struct {
	MediaType string `json:"media_type,omitempty"`
	Data      []byte `json:"data,omitempty"`
	URL       string `json:"url,omitempty"`
}

type wireItem struct {
	Kind    string          `json:"kind"`
	Text    string          `json:"text,omitempty"`
	Source  *wireSource     `json:"source,omitempty"`
	Raw     json.RawMessage `json:"-"`
}

// MarshalJSON renders the Message with each ContentBlock as a Kind-tagged
// object.
func (m Message) MarshalJSON() ([]byte, error) {
	type alias struct {
		Role    Role          `json:"role"`
		Content []json.RawMessage `json:"content"`
	}
	out := alias{Role: m.Role, Content: make([]json.RawMessage, 0, len(m.Content))}
	for _, b := range m.Content {
		raw, err := marshalBlock(b)
		if err != nil {
			return nil, err
		}
		out.Content = append(out.Content, raw)
	}
	return json.Marshal(out)
}

// UnmarshalJSON parses a Kind-tagged Message, falling back to Custom for
// unrecognized ContentBlock kinds.
func (m *Message) UnmarshalJSON(data []byte) error {
	type alias struct {
		Role    Role              `json:"role"`
		Content []json.RawMessage `json:"content"`
	}
	var in alias
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	m.Role = in.Role
	m.Content = make([]ContentBlock, 0, len(in.Content))
	for _, raw := range in.Content {
		block, err := unmarshalBlock(raw)
		if err != nil {
			return err
		}
		m.Content = append(m.Content, block)
	}
	return nil
}

func marshalBlock(b ContentBlock) (json.RawMessage, error) {
	switch v := b.(type) {
	case Text:
		return json.Marshal(wireBlock{Kind: "text", Text: v.Value})
	case Thinking:
		return json.Marshal(wireBlock{Kind: "thinking", Text: v.Text, Signature: v.Signature})
	case RedactedThinking:
		return json.Marshal(wireBlock{Kind: "redacted_thinking", Data: v.Data})
	case ToolUse:
		return json.Marshal(wireBlock{Kind: "tool_use", ID: v.ID, Name: v.Name, Input: v.Input})
	case ToolResult:
		items := make([]wireItem, 0, len(v.Content))
		for _, it := range v.Content {
			wi, err := marshalItem(it)
			if err != nil {
				return nil, err
			}
			items = append(items, wi)
		}
		return json.Marshal(wireBlock{Kind: "tool_result", ToolUseID: v.ToolUseID, Content: items, IsError: v.IsError})
	case Image:
		return json.Marshal(wireBlock{Kind: "image", Source: marshalSource(v.Source)})
	case Document:
		return json.Marshal(wireBlock{Kind: "document", Source: marshalSource(v.Source)})
	case Compaction:
		inner := make([]wireBlock, 0, len(v.Content))
		for _, ib := range v.Content {
			raw, err := marshalBlock(ib)
			if err != nil {
				return nil, err
			}
			var wb wireBlock
			if err := json.Unmarshal(raw, &wb); err != nil {
				return nil, err
			}
			inner = append(inner, wb)
		}
		return json.Marshal(wireBlock{Kind: "compaction", Blocks: inner})
	case Custom:
		// Re-marshal the preserved Data with Kind set so unknown future
		// variants keep every field through this build; key order and
		// whitespace are not preserved.
		var merged map[string]json.RawMessage
		if len(v.Data) > 0 {
			if err := json.Unmarshal(v.Data, &merged); err != nil {
				return nil, fmt.Errorf("model: custom block %q: %w", v.Kind, err)
			}
		} else {
			merged = map[string]json.RawMessage{}
		}
		kindRaw, err := json.Marshal(v.Kind)
		if err != nil {
			return nil, err
		}
		merged["kind"] = kindRaw
		return json.Marshal(merged)
	default:
		return nil, fmt.Errorf("model: unknown ContentBlock implementation %T", b)
	}
}

func unmarshalBlock(raw json.RawMessage) (ContentBlock, error) {
	var wb wireBlock
	if err := json.Unmarshal(raw, &wb); err != nil {
		return nil, err
	}
	switch wb.Kind {
	case "text":
		return Text{Value: wb.Text}, nil
	case "thinking":
		return Thinking{Text: wb.Text, Signature: wb.Signature}, nil
	case "redacted_thinking":
		return RedactedThinking{Data: wb.Data}, nil
	case "tool_use":
		return ToolUse{ID: wb.ID, Name: wb.Name, Input: wb.Input}, nil
	case "tool_result":
		items := make([]ContentItem, 0, len(wb.Content))
		for _, wi := range wb.Content {
			item, err := unmarshalItemFromWire(wi)
			if err != nil {
				return nil, err
			}
			items = append(items, item)
		}
		return ToolResult{ToolUseID: wb.ToolUseID, Content: items, IsError: wb.IsError}, nil
	case "image":
		return Image{Source: unmarshalSource(wb.Source)}, nil
	case "document":
		return Document{Source: unmarshalSource(wb.Source)}, nil
	case "compaction":
		inner := make([]ContentBlock, 0, len(wb.Blocks))
		for _, ib := range wb.Blocks {
			raw, err := json.Marshal(ib)
			if err != nil {
				return nil, err
			}
			block, err := unmarshalBlock(raw)
			if err != nil {
				return nil, err
			}
			inner = append(inner, block)
		}
		return Compaction{Content: inner}, nil
	case "":
		return nil, fmt.Errorf("model: content block missing kind discriminator")
	default:
		// Forward-compatible fallback: preserve the entire payload as-is.
		return Custom{Kind: wb.Kind, Data: raw}, nil
	}
}

func marshalItem(it ContentItem) (wireItem, error) {
	switch v := it.(type) {
	case ItemText:
		return wireItem{Kind: "text", Text: v.Value}, nil
	case ItemImage:
		return wireItem{Kind: "image", Source: marshalSource(v.Source)}, nil
	case ItemCustom:
		return wireItem{Kind: v.Kind, Raw: v.Data}, nil
	default:
		return wireItem{}, fmt.Errorf("model: unknown ContentItem implementation %T", it)
	}
}

func unmarshalItemFromWire(wi wireItem) (ContentItem, error) {
	switch wi.Kind {
	case "text":
		return ItemText{Value: wi.Text}, nil
	case "image":
		return ItemImage{Source: unmarshalSource(wi.Source)}, nil
	case "":
		return nil, fmt.Errorf("model: content item missing kind discriminator")
	default:
		raw, err := json.Marshal(wi)
		if err != nil {
			return nil, err
		}
		return ItemCustom{Kind: wi.Kind, Data: raw}, nil
	}
}

// MarshalJSON implements json.Marshaler for wireItem so that unknown kinds
// round-trip their raw payload rather than the zero-valued struct fields.
func (w wireItem) MarshalJSON() ([]byte, error) {
	type alias wireItem
	if len(w.Raw) > 0 {
		return w.Raw, nil
	}
	return json.Marshal(alias(w))
}

// UnmarshalJSON keeps the raw payload in Raw so that unknown item kinds
// carry it into ItemCustom.Data.
func (w *wireItem) UnmarshalJSON(data []byte) error {
	type alias wireItem
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*w = wireItem(a)
	w.Raw = append(json.RawMessage(nil), data...)
	return nil
}

func marshalSource(s Source) *wireSource {
	return &wireSource{MediaType: s.MediaType, Data: s.Data, URL: s.URL}
}

func unmarshalSource(s *wireSource) Source {
	if s == nil {
		return Source{}
	}
	return Source{MediaType: s.MediaType, Data: s.Data, URL: s.URL}
}
