// Package model defines the canonical, provider-agnostic conversation and
// completion types shared by the agent loop, the tool registry, and every
// provider adapter.
package model

import "encoding/json"

// Role identifies the speaker of a Message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one turn of the conversation: a role plus an ordered sequence
// of content blocks. The agent loop owns the conversation and is the sole
// mutator of its message list.
type Message struct {
	Role    Role          `json:"role"`
	Content []ContentBlock `json:"content"`
}

// ContentBlock is the tagged union of everything that can appear inside a
// Message. Concrete implementations live in this file; see json.go for the
// Kind-discriminated marshal/unmarshal logic, including the forward-
// compatible Custom fallback.
type ContentBlock interface {
	contentBlockKind() string
}

// Text is rendered assistant/user text.
type Text struct {
	Value string
}

func (Text) contentBlockKind() string { return "text" }

// Thinking is a reasoning artifact some providers emit and re-ingest.
// Ignored by providers that don't support it.
type Thinking struct {
	Text      string
	Signature string
}

func (Thinking) contentBlockKind() string { return "thinking" }

// RedactedThinking is an opaque reasoning artifact a provider declined to
// reveal in cleartext but that must still round-trip for re-ingestion.
type RedactedThinking struct {
	Data []byte
}

func (RedactedThinking) contentBlockKind() string { return "redacted_thinking" }

// ToolUse is an assistant request to invoke a tool. ID is provider-assigned
// (or adapter-synthesized, see provider mapping invariants) and must be
// stable within the message.
type ToolUse struct {
	ID    string
	Name  string
	Input json.RawMessage
}

func (ToolUse) contentBlockKind() string { return "tool_use" }

// ToolResult is paired with a preceding ToolUse by ToolUseID. Every ToolUse
// emitted by the assistant must be answered by exactly one ToolResult with
// matching ToolUseID in the following user message, in the same order
// (Testable Property 1).
type ToolResult struct {
	ToolUseID string
	Content   []ContentItem
	IsError   bool
}

func (ToolResult) contentBlockKind() string { return "tool_result" }

// Image is a multimedia content block carrying an opaque source payload.
type Image struct {
	Source Source
}

func (Image) contentBlockKind() string { return "image" }

// Document is a multimedia content block carrying an opaque source payload.
type Document struct {
	Source Source
}

func (Document) contentBlockKind() string { return "document" }

// Source is the opaque payload backing an Image or Document block: either
// inline base64-ish bytes with a media type, or a URL reference.
type Source struct {
	MediaType string
	Data      []byte
	URL       string
}

// Compaction is a server-produced summary replacing prior history, emitted
// by a provider that performs server-side context compaction.
type Compaction struct {
	Content []ContentBlock
}

func (Compaction) contentBlockKind() string { return "compaction" }

// Custom is the reserved forward-compatibility variant: any ContentBlock
// kind unknown to this build of the codec round-trips through Custom
// instead of being dropped or erroring (Testable Property 8).
type Custom struct {
	Kind string
	Data json.RawMessage
}

func (c Custom) contentBlockKind() string { return c.Kind }

// ContentItem is the payload inside a ToolResult: either rendered text or
// an image.
type ContentItem interface {
	contentItemKind() string
}

// ItemText is a plain-text ContentItem.
type ItemText struct {
	Value string
}

func (ItemText) contentItemKind() string { return "text" }

// ItemImage is an image ContentItem.
type ItemImage struct {
	Source Source
}

func (ItemImage) contentItemKind() string { return "image" }

// ItemCustom is the forward-compatible fallback for unknown ContentItem
// kinds, mirroring Custom at the ContentBlock level.
type ItemCustom struct {
	Kind string
	Data json.RawMessage
}

func (c ItemCustom) contentItemKind() string { return c.Kind }

// ToolChoiceMode selects how a provider should steer tool invocation.
type ToolChoiceMode string

const (
	ToolChoiceAuto     ToolChoiceMode = "auto"
	ToolChoiceNone     ToolChoiceMode = "none"
	ToolChoiceRequired ToolChoiceMode = "required"
	ToolChoiceSpecific ToolChoiceMode = "specific"
)

// ToolChoice steers whether/which tool the model should call.
type ToolChoice struct {
	Mode ToolChoiceMode
	Name string // only meaningful when Mode == ToolChoiceSpecific
}

// ThinkingOptions configures a provider's extended-reasoning mode.
type ThinkingOptions struct {
	Enabled      bool
	BudgetTokens int
}

// CacheOptions configures provider-side prompt caching.
type CacheOptions struct {
	Enabled bool
}

// ToolDefinition describes a callable tool for inclusion in a
// CompletionRequest.
type ToolDefinition struct {
	Name        string
	Title       string
	Description string
	InputSchema json.RawMessage
	OutputSchema json.RawMessage
	Annotations *ToolAnnotations
	CacheControl *CacheOptions
}

// ToolAnnotations are optional hints about a tool's behavior.
type ToolAnnotations struct {
	ReadOnly    *bool
	Destructive *bool
	Idempotent  *bool
	OpenWorld   *bool
}

// CompletionRequest is the canonical, backend-agnostic request a Provider
// adapter translates to its wire format.
type CompletionRequest struct {
	Model            string
	Messages         []Message
	System           *SystemPrompt
	Tools            []ToolDefinition
	MaxTokens        *int
	Temperature      *float64
	TopP             *float64
	StopSequences    []string
	ToolChoice       *ToolChoice
	ResponseFormat   json.RawMessage
	Thinking         *ThinkingOptions
	ReasoningEffort  string
	ContextManagement json.RawMessage
	Extra            json.RawMessage
}

// SystemPrompt is either plain text or a sequence of cache-annotated blocks.
type SystemPrompt struct {
	Text   string
	Blocks []ContentBlock
}

// StopReason classifies why a provider stopped generating.
type StopReason string

const (
	StopEndTurn       StopReason = "end_turn"
	StopToolUse       StopReason = "tool_use"
	StopMaxTokens     StopReason = "max_tokens"
	StopStopSequence  StopReason = "stop_sequence"
	StopContentFilter StopReason = "content_filter"
	StopCompaction    StopReason = "compaction"
)

// TokenUsage accumulates cumulative, monotonically non-decreasing counters
// across turns. Cache/reasoning counters remain absent (nil) rather than
// zero when the backend never reports them (mapping invariant, §4.B).
type TokenUsage struct {
	InputTokens    int
	OutputTokens   int
	CacheRead      *int
	CacheCreation  *int
	Reasoning      *int
}

// Add sums delta's fields into u in place, following the per-field
// accumulation rule: absent optional counters on both sides stay absent;
// once either side reports a counter, it begins accumulating (grounded on
// the original's accumulate_usage).
func (u *TokenUsage) Add(delta TokenUsage) {
	u.InputTokens += delta.InputTokens
	u.OutputTokens += delta.OutputTokens
	addOptional(&u.CacheRead, delta.CacheRead)
	addOptional(&u.CacheCreation, delta.CacheCreation)
	addOptional(&u.Reasoning, delta.Reasoning)
}

func addOptional(total **int, delta *int) {
	if delta == nil {
		return
	}
	if *total == nil {
		zero := 0
		*total = &zero
	}
	**total += *delta
}

// CompletionResponse is the canonical response a Provider adapter produces
// from a backend's wire format.
type CompletionResponse struct {
	ID         string
	Model      string
	Message    Message
	Usage      TokenUsage
	StopReason StopReason
}

// ToolOutput is the result of executing a tool, before being wrapped into a
// ToolResult content block by the engine.
type ToolOutput struct {
	Content            []ContentItem
	StructuredContent  json.RawMessage
	IsError            bool
}

// CancellationToken is a shared, cheaply-cloneable cooperative cancellation
// primitive. The loop polls it at defined checkpoints (§5); collaborators
// are expected to poll it during long operations.
type CancellationToken struct {
	ch chan struct{}
}

// NewCancellationToken returns a token that is not yet cancelled.
func NewCancellationToken() *CancellationToken {
	return &CancellationToken{ch: make(chan struct{})}
}

// Cancel triggers the token. Safe to call more than once.
func (t *CancellationToken) Cancel() {
	select {
	case <-t.ch:
	default:
		close(t.ch)
	}
}

// IsCancelled reports whether Cancel has been called.
func (t *CancellationToken) IsCancelled() bool {
	select {
	case <-t.ch:
		return true
	default:
		return false
	}
}

// Done returns a channel closed when the token is cancelled, for use in
// select statements alongside context cancellation.
func (t *CancellationToken) Done() <-chan struct{} {
	return t.ch
}

// ProgressReporter lets a tool report incremental progress; the core does
// not interpret the payload.
type ProgressReporter interface {
	Report(message string, pct float64)
}

// ToolContext is ambient per-run context passed to every tool invocation;
// Provider calls do not receive it. It is externally owned; the engine only
// borrows it.
type ToolContext struct {
	Cwd               string
	SessionID         string
	Environment       map[string]string
	CancellationToken *CancellationToken
	ProgressReporter  ProgressReporter
}
