package models

import "encoding/json"

// StreamEventKind discriminates the payload carried by a StreamEvent.
//
// Modeled after a single Type discriminator with optional payload, the
// way a unified agent-event stream is built elsewhere in this codebase's
// lineage: one struct, one Kind tag, at most one populated payload.
type StreamEventKind string

const (
	EventContent    StreamEventKind = "content"
	EventReasoning  StreamEventKind = "reasoning"
	EventToolCall   StreamEventKind = "tool_call"
	EventToolResult StreamEventKind = "tool_result"
	EventError      StreamEventKind = "error"
)

// StreamEvent is one item in the lazy, finite, non-restartable sequence of
// events an AgentEngine run produces. Sequence is strictly monotonic
// within one run, starting at 0.
type StreamEvent struct {
	Kind     StreamEventKind `json:"kind"`
	Sequence uint64          `json:"sequence"`
	Content  string          `json:"content,omitempty"`

	// ToolCallID/ToolName/ToolArgs are populated on EventToolCall.
	ToolCallID string          `json:"tool_call_id,omitempty"`
	ToolName   string          `json:"tool_name,omitempty"`
	ToolArgs   json.RawMessage `json:"tool_args,omitempty"`

	// ToolResultPreview is populated on EventToolResult.
	ToolResultPreview string `json:"tool_result_preview,omitempty"`
	ToolIsError       bool   `json:"tool_is_error,omitempty"`

	// Metadata is non-nil only on the terminal event of a run: an
	// EventContent event with an empty Content body marking completion.
	Metadata *CompletionMetadata `json:"metadata,omitempty"`
}

// IsComplete reports whether e is the terminal completion event of a run.
func (e StreamEvent) IsComplete() bool {
	return e.Kind == EventContent && e.Content == "" && e.Metadata != nil
}

// CompletionMetadata is carried on the terminal StreamEvent of a run.
type CompletionMetadata struct {
	Usage       Usage          `json:"usage"`
	AllMessages []ModelMessage `json:"all_messages"`
	NewMessages []ModelMessage `json:"new_messages"`
	ToolEvents  []ToolEvent    `json:"tool_events"`
}

// Usage is token accounting for one run, serialized verbatim into saved
// sessions and exposed to the context command's usage estimate.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// ToolEvent records one completed tool invocation observed during a run,
// in call order.
type ToolEvent struct {
	ToolCallID string          `json:"tool_call_id"`
	ToolName   string          `json:"tool_name"`
	Args       json.RawMessage `json:"args,omitempty"`
	Result     string          `json:"result,omitempty"`
	IsError    bool            `json:"is_error,omitempty"`
}
