// Package engine implements the agent engine: it drives one LLM run,
// in either streaming or non-stream mode, producing a lazy, finite,
// non-restartable sequence of models.StreamEvent values.
package engine

import (
	"errors"
	"time"
)

// ErrMaxToolIterationsExceeded is returned (as an error StreamEvent, not a
// Go error to the caller) when a run issues more tool-call rounds than
// Config.MaxToolIterations allows, guarding against a model stuck in an
// infinite tool-call cycle.
var ErrMaxToolIterationsExceeded = errors.New("engine: max tool iterations exceeded")

// nonStreamMaxBatchChars is the non-stream batching cap: batches of at
// most 150 characters.
const nonStreamMaxBatchChars = 150

// nonStreamBatchDelay is a small inter-batch delay to avoid overwhelming
// the MCBE client.
const nonStreamBatchDelay = 100 * time.Millisecond

// Config tunes one Engine's behavior; every field has a default applied
// by sanitizeConfig.
type Config struct {
	// StreamSentenceMode selects streaming mode (iterate the model's node
	// graph, sentence-batch text deltas as they arrive) vs non-stream mode
	// (one blocking call, then batch the full text). Corresponds to the
	// stream_sentence_mode configuration option.
	StreamSentenceMode bool

	// MaxToolIterations bounds the number of model-call rounds a single
	// run may take when the model keeps issuing tool calls. Default: 10.
	MaxToolIterations int

	// MaxTokens is the max_tokens passed to each completion request.
	// Default: 4096.
	MaxTokens int

	// EnableThinking requests provider-native reasoning/thinking output.
	EnableThinking bool

	// ThinkingBudgetTokens bounds EnableThinking's reasoning token budget.
	ThinkingBudgetTokens int
}

func sanitizeConfig(cfg Config) Config {
	if cfg.MaxToolIterations <= 0 {
		cfg.MaxToolIterations = 10
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}
	return cfg
}
