package bedrock

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/agentrt/neuronloop/model"
)

// sanitizeToolName maps a canonical tool name to one that satisfies Bedrock's
// stricter tool-name constraints ([a-zA-Z0-9_-]+, max 64 bytes). The mapping
// is deterministic and collision-resistant: names that exceed the length
// limit are truncated and given a stable hash suffix so two long names that
// share the kept 55-byte prefix don't collide, grounded on the teacher's
// model/bedrock/tool_name.go (not kept under _teacher_ref/).
func sanitizeToolName(in string) string {
	if in == "" {
		return ""
	}
	const maxLen = 64
	const hashLen = 8

	out := make([]rune, 0, len(in))
	for _, r := range in {
		if r == '.' {
			r = '_'
		}
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	sanitized := string(out)

	if len(sanitized) <= maxLen {
		return sanitized
	}
	sum := sha256.Sum256([]byte(in))
	suffix := hex.EncodeToString(sum[:])[:hashLen]
	prefixLen := maxLen - (1 + hashLen)
	if prefixLen < 1 {
		prefixLen = 1
	}
	return sanitized[:prefixLen] + "_" + suffix
}

// toolNameMapper translates between canonical tool names used throughout the
// rest of the engine and the Bedrock-safe names sent on the wire, so tool_use
// blocks echoed back by the model resolve to the registry entry that
// originally issued them.
type toolNameMapper struct {
	toSanitized map[string]string
	toCanonical map[string]string
}

func newToolNameMapper(defs []model.ToolDefinition) *toolNameMapper {
	m := &toolNameMapper{
		toSanitized: make(map[string]string, len(defs)),
		toCanonical: make(map[string]string, len(defs)),
	}
	for _, d := range defs {
		s := sanitizeToolName(d.Name)
		m.toSanitized[d.Name] = s
		m.toCanonical[s] = d.Name
	}
	return m
}

func (m *toolNameMapper) sanitize(canonical string) string {
	if m == nil {
		return canonical
	}
	if s, ok := m.toSanitized[canonical]; ok {
		return s
	}
	return sanitizeToolName(canonical)
}

func (m *toolNameMapper) canonical(sanitized string) string {
	if m == nil {
		return sanitized
	}
	if c, ok := m.toCanonical[sanitized]; ok {
		return c
	}
	return sanitized
}
