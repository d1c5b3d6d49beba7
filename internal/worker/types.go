// Package worker implements the agent worker pool: a fixed number of
// goroutines draining internal/broker's priority queue, each serializing
// one connection's chat turns through internal/engine and translating the
// resulting event stream into internal/connection-facing response items.
package worker

import (
	"time"

	"github.com/mcbe-gateway/agent-gateway/internal/providers"
)

const (
	defaultMaxHistoryTurns = 20
	defaultRequestTimeout  = 120 * time.Second

	toolCallMaxArgs         = 3
	toolCallArgValueMaxLen  = 20
	toolResultPreviewMaxLen = 80
)

// Settings bundles the subset of gateway configuration the worker pool
// needs: per-provider connection configs, history trimming, and the two
// per-connection behavior toggles (stream_sentence_mode,
// tool_response_verbose).
type Settings struct {
	// DefaultProvider names the provider used when a ChatRequest leaves
	// Provider unset.
	DefaultProvider string

	// Providers maps a provider name to its resolved connection config,
	// fed straight to internal/providers.Registry.GetModel.
	Providers map[string]providers.Config

	// MaxHistoryTurns is the N used by history.TrimHistory and, scaled by
	// 0.8, the auto-compress threshold.
	MaxHistoryTurns int

	// StreamSentenceMode selects internal/engine's streaming vs
	// non-stream mode for every run this pool drives.
	StreamSentenceMode bool

	// ToolResponseVerbose gates whether tool_result events are forwarded
	// to the game as chat output.
	ToolResponseVerbose bool

	MaxToolIterations    int
	MaxTokens            int
	EnableThinking       bool
	ThinkingBudgetTokens int

	// RequestTimeout bounds one chat turn end-to-end. Zero disables the
	// timeout (the parent context's deadline, if any, still applies).
	RequestTimeout time.Duration
}

func sanitizeSettings(s Settings) Settings {
	if s.MaxHistoryTurns <= 0 {
		s.MaxHistoryTurns = defaultMaxHistoryTurns
	}
	if s.RequestTimeout <= 0 {
		s.RequestTimeout = defaultRequestTimeout
	}
	if s.Providers == nil {
		s.Providers = map[string]providers.Config{}
	}
	return s
}
