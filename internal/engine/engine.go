package engine

import (
	"context"
	"time"

	"github.com/mcbe-gateway/agent-gateway/internal/providers"
	"github.com/mcbe-gateway/agent-gateway/internal/tools"
	"github.com/mcbe-gateway/agent-gateway/pkg/models"
)

// Engine drives one LLM run at a time: a bounded tool-call iteration loop
// around one or more model calls, supporting both streaming and
// non-stream completion modes.
type Engine struct {
	tools *tools.Registry
}

// New returns an Engine executing tool calls through toolRegistry.
func New(toolRegistry *tools.Registry) *Engine {
	return &Engine{tools: toolRegistry}
}

// RunRequest is the input to one AgentEngine run.
type RunRequest struct {
	ConnectionID string
	Model        providers.Model
	System       string
	History      []models.ModelMessage
	UserPrompt   string
	Config       Config
}

// runState accumulates the bookkeeping a run tracks across iterations: a
// monotonic event sequence, accumulated usage, the new messages produced
// this run, and an ordered tool_events list.
type runState struct {
	sequence    uint64
	usage       models.Usage
	newMessages []models.ModelMessage
	toolEvents  []models.ToolEvent
}

func (s *runState) nextSeq() uint64 {
	seq := s.sequence
	s.sequence++
	return seq
}

// Run starts one AgentEngine run and returns the channel its StreamEvents
// are delivered on. The channel is closed after a terminal event (the
// completion event, or an error event) is sent.
func (e *Engine) Run(ctx context.Context, req RunRequest) <-chan models.StreamEvent {
	out := make(chan models.StreamEvent, 16)
	cfg := sanitizeConfig(req.Config)

	go func() {
		defer close(out)
		e.run(ctx, req, cfg, out)
	}()

	return out
}

func (e *Engine) run(ctx context.Context, req RunRequest, cfg Config, out chan<- models.StreamEvent) {
	state := &runState{}

	messages := historyToCompletionMessages(req.History)
	userMsg := userPromptMessage(req.UserPrompt)
	state.newMessages = append(state.newMessages, userMsg)
	messages = append(messages, providers.CompletionMessage{Role: "user", Content: req.UserPrompt})

	toolDefs := toolDefsFromRegistry(e.tools.Defs())

	for iteration := 0; ; iteration++ {
		if iteration >= cfg.MaxToolIterations {
			e.emitError(out, state, ErrMaxToolIterationsExceeded)
			return
		}

		compReq := providers.CompletionRequest{
			Model:                req.Model.ModelID(),
			System:               req.System,
			Messages:             messages,
			Tools:                toolDefs,
			MaxTokens:            cfg.MaxTokens,
			EnableThinking:       cfg.EnableThinking,
			ThinkingBudgetTokens: cfg.ThinkingBudgetTokens,
		}

		var (
			thinking  string
			text      string
			toolCalls []providers.ToolCallWire
			err       error
		)
		if cfg.StreamSentenceMode {
			thinking, text, toolCalls, err = e.runStreamingIteration(ctx, req.Model, compReq, state, out)
		} else {
			thinking, text, toolCalls, err = e.runNonStreamIteration(ctx, req.Model, compReq, state, out)
		}
		if err != nil {
			e.emitError(out, state, err)
			return
		}

		assistantMsg := assistantMessage(thinking, text, toolCalls)
		state.newMessages = append(state.newMessages, assistantMsg)
		messages = append(messages, providers.CompletionMessage{Role: "assistant", Content: text, ToolCalls: toolCalls})

		if len(toolCalls) == 0 {
			e.emitCompletion(out, state, req.History)
			return
		}

		for _, tc := range toolCalls {
			if ctx.Err() != nil {
				e.emitError(out, state, ctx.Err())
				return
			}

			seq := state.nextSeq()
			out <- models.StreamEvent{Kind: models.EventToolCall, Sequence: seq, ToolCallID: tc.ID, ToolName: tc.Name, ToolArgs: tc.Args}

			result, execErr := e.tools.Execute(ctx, req.ConnectionID, tc.Name, tc.Args)
			if execErr != nil {
				e.emitError(out, state, execErr)
				return
			}

			seq = state.nextSeq()
			out <- models.StreamEvent{
				Kind:              models.EventToolResult,
				Sequence:          seq,
				ToolCallID:        tc.ID,
				ToolResultPreview: result.Content,
				ToolIsError:       result.IsError,
			}

			state.toolEvents = append(state.toolEvents, models.ToolEvent{
				ToolCallID: tc.ID,
				ToolName:   tc.Name,
				Args:       tc.Args,
				Result:     result.Content,
				IsError:    result.IsError,
			})

			returnMsg := toolReturnMessage(tc.ID, result.Content, result.IsError)
			state.newMessages = append(state.newMessages, returnMsg)
			messages = append(messages, providers.CompletionMessage{Role: "tool", Content: quoteJSONString(result.Content), ToolCallID: tc.ID})
		}
	}
}

// runStreamingIteration drives one streaming-mode model call, emitting
// content/reasoning events as chunks arrive under the sentence batching
// policy, and returns the accumulated thinking/text/tool calls for this
// iteration.
func (e *Engine) runStreamingIteration(ctx context.Context, model providers.Model, req providers.CompletionRequest, state *runState, out chan<- models.StreamEvent) (thinking, text string, toolCalls []providers.ToolCallWire, err error) {
	chunks, err := model.StreamComplete(ctx, req)
	if err != nil {
		return "", "", nil, err
	}

	acc := &sentenceAccumulator{}
	for chunk := range chunks {
		if chunk.Err != nil {
			return "", "", nil, chunk.Err
		}
		if chunk.TextDelta != "" {
			text += chunk.TextDelta
			for _, sentence := range acc.Append(chunk.TextDelta) {
				seq := state.nextSeq()
				out <- models.StreamEvent{Kind: models.EventContent, Sequence: seq, Content: sentence}
			}
		}
		if chunk.ThinkingDelta != "" {
			thinking += chunk.ThinkingDelta
			seq := state.nextSeq()
			out <- models.StreamEvent{Kind: models.EventReasoning, Sequence: seq, Content: chunk.ThinkingDelta}
		}
		if chunk.ToolCall != nil {
			toolCalls = append(toolCalls, *chunk.ToolCall)
		}
		if chunk.Done {
			state.usage.InputTokens += chunk.InputTokens
			state.usage.OutputTokens += chunk.OutputTokens
		}
	}

	if tail, ok := acc.Flush(); ok {
		seq := state.nextSeq()
		out <- models.StreamEvent{Kind: models.EventContent, Sequence: seq, Content: tail}
	}

	return thinking, text, toolCalls, nil
}

// runNonStreamIteration drives one non-stream-mode model call, splitting
// the full result text into capped batches emitted with a small
// inter-batch delay.
func (e *Engine) runNonStreamIteration(ctx context.Context, model providers.Model, req providers.CompletionRequest, state *runState, out chan<- models.StreamEvent) (thinking, text string, toolCalls []providers.ToolCallWire, err error) {
	result, err := model.Complete(ctx, req)
	if err != nil {
		return "", "", nil, err
	}

	state.usage.InputTokens += result.InputTokens
	state.usage.OutputTokens += result.OutputTokens

	if result.Thinking != "" {
		seq := state.nextSeq()
		out <- models.StreamEvent{Kind: models.EventReasoning, Sequence: seq, Content: result.Thinking}
	}

	batches := batchForNonStream(result.Text, nonStreamMaxBatchChars)
	for i, batch := range batches {
		seq := state.nextSeq()
		out <- models.StreamEvent{Kind: models.EventContent, Sequence: seq, Content: batch}
		if i < len(batches)-1 {
			select {
			case <-ctx.Done():
				return "", "", nil, ctx.Err()
			case <-time.After(nonStreamBatchDelay):
			}
		}
	}

	return "", result.Text, result.ToolCalls, nil
}

func (e *Engine) emitError(out chan<- models.StreamEvent, state *runState, err error) {
	seq := state.nextSeq()
	out <- models.StreamEvent{Kind: models.EventError, Sequence: seq, Content: err.Error()}
}

func (e *Engine) emitCompletion(out chan<- models.StreamEvent, state *runState, priorHistory []models.ModelMessage) {
	allMessages := make([]models.ModelMessage, 0, len(priorHistory)+len(state.newMessages))
	allMessages = append(allMessages, priorHistory...)
	allMessages = append(allMessages, state.newMessages...)

	seq := state.nextSeq()
	out <- models.StreamEvent{
		Kind:     models.EventContent,
		Sequence: seq,
		Content:  "",
		Metadata: &models.CompletionMetadata{
			Usage:       state.usage,
			AllMessages: allMessages,
			NewMessages: state.newMessages,
			ToolEvents:  state.toolEvents,
		},
	}
}
