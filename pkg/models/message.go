// Package models provides the domain types shared across the gateway:
// conversation messages, streaming events, wire chunks, and connection
// state. Types here are plain, JSON-serializable structs rather than
// interfaces so that histories can be persisted and restored without a
// registry of concrete implementations.
package models

import "encoding/json"

// MessagePartKind discriminates the kind of content carried by a
// MessagePart within a ModelMessage.
type MessagePartKind string

const (
	PartSystemPrompt MessagePartKind = "system-prompt"
	PartUserPrompt   MessagePartKind = "user-prompt"
	PartText         MessagePartKind = "text"
	PartThinking     MessagePartKind = "thinking"
	PartToolCall     MessagePartKind = "tool-call"
	PartToolReturn   MessagePartKind = "tool-return"
)

// MessagePart is one piece of a ModelMessage. Exactly the fields relevant
// to Kind are populated; the rest are zero-valued. Kept as a single
// concrete struct (rather than an interface per kind) so that histories
// round-trip through JSON without a type registry.
type MessagePart struct {
	Kind MessagePartKind `json:"kind"`

	// Content carries: system-prompt text, user-prompt text, text output,
	// or thinking text (see ReasoningContent for a provider's private
	// chain-of-thought payload kept separate from display text).
	Content string `json:"content,omitempty"`

	// ReasoningContent holds provider-private reasoning payloads attached
	// to a thinking part, cleared independently of Content by
	// history.StripReasoning.
	ReasoningContent string `json:"reasoning_content,omitempty"`

	// ToolCallID identifies a tool-call/tool-return pair. Required on
	// PartToolCall and PartToolReturn.
	ToolCallID string `json:"tool_call_id,omitempty"`

	// ToolName is the function name invoked by a tool-call part.
	ToolName string `json:"tool_name,omitempty"`

	// ToolArgs is the raw JSON arguments of a tool-call part.
	ToolArgs json.RawMessage `json:"tool_args,omitempty"`

	// ToolResult is the raw JSON (or plain string, re-encoded) result of a
	// tool-return part.
	ToolResult json.RawMessage `json:"tool_result,omitempty"`

	// IsError marks a tool-return part as representing a failed call.
	IsError bool `json:"is_error,omitempty"`
}

// ModelMessage is one opaque entry in a conversation history. A history is
// an ordered slice of ModelMessage values; see history.TrimHistory and
// history.StripReasoning for the operations that may mutate it.
type ModelMessage struct {
	Parts []MessagePart `json:"parts"`
}

// HasUnmatchedToolCall reports whether m contains a tool-call part with the
// given id but no paired tool-return part for the same id.
func (m ModelMessage) ToolCallIDs() []string {
	var ids []string
	for _, p := range m.Parts {
		if p.Kind == PartToolCall {
			ids = append(ids, p.ToolCallID)
		}
	}
	return ids
}

// ToolReturnIDs returns the tool-call ids answered by tool-return parts in m.
func (m ModelMessage) ToolReturnIDs() []string {
	var ids []string
	for _, p := range m.Parts {
		if p.Kind == PartToolReturn {
			ids = append(ids, p.ToolCallID)
		}
	}
	return ids
}

// IsUserTurn reports whether m contains a user-prompt part, i.e. whether it
// counts as one chat turn under history.CountTurns.
func (m ModelMessage) IsUserTurn() bool {
	for _, p := range m.Parts {
		if p.Kind == PartUserPrompt {
			return true
		}
	}
	return false
}

// CloneShallow returns a copy of m whose Parts slice is a fresh slice of
// copied MessagePart values (MessagePart has no nested reference types
// that need independent copying beyond the slice header itself, except
// ToolArgs/ToolResult which are treated as immutable once set).
func (m ModelMessage) CloneShallow() ModelMessage {
	parts := make([]MessagePart, len(m.Parts))
	copy(parts, m.Parts)
	return ModelMessage{Parts: parts}
}
