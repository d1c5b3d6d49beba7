package engine

import (
	"encoding/json"

	"github.com/mcbe-gateway/agent-gateway/internal/providers"
	"github.com/mcbe-gateway/agent-gateway/internal/tools"
	"github.com/mcbe-gateway/agent-gateway/pkg/models"
)

// historyToCompletionMessages translates a conversation history into the
// provider-agnostic wire shape internal/providers drivers expect. Thinking
// parts are intentionally skipped: reasoning content is shown to the
// player but never re-sent to the model.
func historyToCompletionMessages(history []models.ModelMessage) []providers.CompletionMessage {
	var out []providers.CompletionMessage
	for _, msg := range history {
		out = append(out, messageToCompletionMessages(msg)...)
	}
	return out
}

func messageToCompletionMessages(msg models.ModelMessage) []providers.CompletionMessage {
	var (
		out       []providers.CompletionMessage
		text      string
		toolCalls []providers.ToolCallWire
		role      string
	)

	for _, part := range msg.Parts {
		switch part.Kind {
		case models.PartSystemPrompt:
			out = append(out, providers.CompletionMessage{Role: "system", Content: part.Content})
		case models.PartUserPrompt:
			out = append(out, providers.CompletionMessage{Role: "user", Content: part.Content})
		case models.PartText:
			role = "assistant"
			text += part.Content
		case models.PartThinking:
			// Never re-sent to the model; display-only.
		case models.PartToolCall:
			role = "assistant"
			toolCalls = append(toolCalls, providers.ToolCallWire{ID: part.ToolCallID, Name: part.ToolName, Args: part.ToolArgs})
		case models.PartToolReturn:
			out = append(out, providers.CompletionMessage{
				Role:       "tool",
				Content:    toolResultText(part),
				ToolCallID: part.ToolCallID,
			})
		}
	}

	if role == "assistant" {
		out = append(out, providers.CompletionMessage{Role: "assistant", Content: text, ToolCalls: toolCalls})
	}
	return out
}

func toolResultText(part models.MessagePart) string {
	if len(part.ToolResult) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(part.ToolResult, &s); err == nil {
		return s
	}
	return string(part.ToolResult)
}

// quoteJSONString encodes s as a JSON string literal so it can be stored
// in MessagePart.ToolResult, which is typed as raw JSON.
func quoteJSONString(s string) string {
	b, err := json.Marshal(s)
	if err != nil {
		return `""`
	}
	return string(b)
}

// toolDefsFromRegistry translates the tool registry's provider-agnostic
// definitions into providers.ToolDef values.
func toolDefsFromRegistry(defs []tools.Def) []providers.ToolDef {
	out := make([]providers.ToolDef, 0, len(defs))
	for _, d := range defs {
		out = append(out, providers.ToolDef{Name: d.Name, Description: d.Description, Schema: d.Schema})
	}
	return out
}

func userPromptMessage(text string) models.ModelMessage {
	return models.ModelMessage{Parts: []models.MessagePart{{Kind: models.PartUserPrompt, Content: text}}}
}

// assistantMessage builds one ModelMessage for an assistant turn carrying
// optional thinking content, text, and any tool calls issued.
func assistantMessage(thinking, text string, toolCalls []providers.ToolCallWire) models.ModelMessage {
	var parts []models.MessagePart
	if thinking != "" {
		parts = append(parts, models.MessagePart{Kind: models.PartThinking, Content: thinking})
	}
	if text != "" {
		parts = append(parts, models.MessagePart{Kind: models.PartText, Content: text})
	}
	for _, tc := range toolCalls {
		parts = append(parts, models.MessagePart{Kind: models.PartToolCall, ToolCallID: tc.ID, ToolName: tc.Name, ToolArgs: tc.Args})
	}
	return models.ModelMessage{Parts: parts}
}

// toolReturnMessage builds one ModelMessage carrying a single tool-return
// part, used so that history.TrimHistory's tool-call/tool-return pairing
// check can always find it as its own message.
func toolReturnMessage(toolCallID string, result string, isError bool) models.ModelMessage {
	return models.ModelMessage{Parts: []models.MessagePart{{
		Kind:       models.PartToolReturn,
		ToolCallID: toolCallID,
		ToolResult: []byte(quoteJSONString(result)),
		IsError:    isError,
	}}}
}
