// Package providers implements the provider registry: it caches Model
// handles and HTTP clients by provider configuration key and exposes the
// warmup/shutdown lifecycle hooks the gateway's CLI drives.
//
// Concrete drivers (Anthropic, OpenAI/DeepSeek-compatible, Bedrock, Ollama)
// are black-box wire clients behind the Model interface: the registry only
// needs to know how to build and reuse them, not their internals.
package providers

import (
	"context"
	"encoding/json"
	"time"
)

// Config identifies one provider+model configuration. The registry's cache
// key is the tuple (Provider, Model, BaseURL, Timeout).
type Config struct {
	Provider string
	Model    string
	BaseURL  string
	APIKey   string
	Timeout  time.Duration
	Enabled  bool
}

// cacheKey is the comparable projection of Config used as a map key.
type cacheKey struct {
	provider string
	model    string
	baseURL  string
	timeout  time.Duration
}

func (c Config) key() cacheKey {
	return cacheKey{provider: c.Provider, model: c.Model, baseURL: c.BaseURL, timeout: c.Timeout}
}

// ToolDef describes one tool available to a model for a single completion
// request, translated from internal/engine's tool registry into each
// provider's wire format by the concrete driver.
type ToolDef struct {
	Name        string
	Description string
	Schema      json.RawMessage
}

// CompletionMessage is one entry of conversation history translated into
// provider-agnostic wire shape, built by internal/engine from
// models.ModelMessage parts.
type CompletionMessage struct {
	Role        string // "system", "user", "assistant", "tool"
	Content     string
	ToolCallID  string          // set on Role == "tool"
	ToolName    string          // set on Role == "tool" or on assistant tool-call echo
	ToolArgs    json.RawMessage // set when Role == "assistant" and this turn issued a tool call
	ToolCallIDs []string        // tool-call ids this assistant turn issued, parallel to ToolArgs entries is not modeled; see ToolCalls
	ToolCalls   []ToolCallWire
}

// ToolCallWire is one tool invocation requested by the assistant in a
// CompletionMessage.
type ToolCallWire struct {
	ID   string
	Name string
	Args json.RawMessage
}

// CompletionRequest is a single LLM call: either driven once (non-stream
// mode) or iterated as a stream of CompletionChunk values (streaming mode).
type CompletionRequest struct {
	Model                string
	System               string
	Messages             []CompletionMessage
	Tools                []ToolDef
	MaxTokens            int
	EnableThinking       bool
	ThinkingBudgetTokens int
}

// CompletionChunk is one increment of a streamed completion.
type CompletionChunk struct {
	TextDelta     string
	ThinkingDelta string
	ThinkingStart bool
	ThinkingEnd   bool
	ToolCall      *ToolCallWire
	Done          bool
	InputTokens   int
	OutputTokens  int
	Err           error
}

// CompletionResult is the single-shot (non-stream mode) result of one call.
type CompletionResult struct {
	Text         string
	Thinking     string
	ToolCalls    []ToolCallWire
	InputTokens  int
	OutputTokens int
}

// Model is the interface every provider driver implements. Implementations
// must be safe for concurrent use: one Model handle is shared by every
// connection routed to that provider.
type Model interface {
	// Name returns the provider name this Model was built for.
	Name() string

	// ModelID returns the concrete model identifier in use.
	ModelID() string

	// SupportsTools reports whether this model accepts tool definitions.
	SupportsTools() bool

	// StreamComplete drives streaming mode: the returned channel is closed
	// after a chunk with Done == true or Err != nil is delivered.
	StreamComplete(ctx context.Context, req CompletionRequest) (<-chan CompletionChunk, error)

	// Complete drives non-stream mode: one blocking call returning the
	// full result.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResult, error)

	// Close releases any resources (HTTP client is owned by the registry,
	// not the Model, so this is typically a no-op).
	Close() error
}
