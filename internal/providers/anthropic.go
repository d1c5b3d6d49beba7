package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"
)

const (
	anthropicDefaultModel  = "claude-sonnet-4-20250514"
	anthropicMaxRetries    = 3
	anthropicRetryDelay    = time.Second
	anthropicMaxEmptyEvent = 300
)

// anthropicModel drives api.anthropic.com via the official SDK, with no
// computer-use beta path: the gateway never issues computer-use tools.
type anthropicModel struct {
	client     anthropic.Client
	modelID    string
	maxRetries int
	retryDelay time.Duration
}

func newAnthropicModel(cfg Config, client *http.Client) (Model, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic: %w", errors.New("API key is required"))
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(client),
	}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	modelID := cfg.Model
	if modelID == "" {
		modelID = anthropicDefaultModel
	}
	return &anthropicModel{
		client:     anthropic.NewClient(opts...),
		modelID:    modelID,
		maxRetries: anthropicMaxRetries,
		retryDelay: anthropicRetryDelay,
	}, nil
}

func (m *anthropicModel) Name() string        { return "anthropic" }
func (m *anthropicModel) ModelID() string     { return m.modelID }
func (m *anthropicModel) SupportsTools() bool { return true }
func (m *anthropicModel) Close() error        { return nil }

func (m *anthropicModel) buildParams(req CompletionRequest) (anthropic.MessageNewParams, error) {
	messages, err := convertAnthropicMessages(req.Messages)
	if err != nil {
		return anthropic.MessageNewParams{}, fmt.Errorf("anthropic: converting messages: %w", err)
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(m.modelID),
		Messages:  messages,
		MaxTokens: int64(maxTokens),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Type: "text", Text: req.System}}
	}
	if len(req.Tools) > 0 {
		tools, err := convertAnthropicTools(req.Tools)
		if err != nil {
			return anthropic.MessageNewParams{}, fmt.Errorf("anthropic: converting tools: %w", err)
		}
		params.Tools = tools
	}
	if req.EnableThinking {
		budget := int64(req.ThinkingBudgetTokens)
		if budget < 1024 {
			budget = 10000
		}
		params.Thinking = anthropic.ThinkingConfigParamOfEnabled(budget)
	}
	return params, nil
}

func (m *anthropicModel) StreamComplete(ctx context.Context, req CompletionRequest) (<-chan CompletionChunk, error) {
	params, err := m.buildParams(req)
	if err != nil {
		return nil, err
	}

	chunks := make(chan CompletionChunk)
	go func() {
		defer close(chunks)
		stream := m.client.Messages.NewStreaming(ctx, params)
		m.processStream(ctx, stream, chunks)
	}()
	return chunks, nil
}

func (m *anthropicModel) processStream(ctx context.Context, stream *ssestream.Stream[anthropic.MessageStreamEventUnion], chunks chan<- CompletionChunk) {
	var currentToolCall *ToolCallWire
	var currentToolInput strings.Builder
	inThinking := false
	emptyEvents := 0
	var inputTokens, outputTokens int

	for stream.Next() {
		event := stream.Current()
		processed := false

		switch event.Type {
		case "message_start":
			ms := event.AsMessageStart()
			if ms.Message.Usage.InputTokens > 0 {
				inputTokens = int(ms.Message.Usage.InputTokens)
			}
			processed = true

		case "content_block_start":
			block := event.AsContentBlockStart().ContentBlock
			switch block.Type {
			case "thinking":
				inThinking = true
				chunks <- CompletionChunk{ThinkingStart: true}
				processed = true
			case "tool_use":
				toolUse := block.AsToolUse()
				currentToolCall = &ToolCallWire{ID: toolUse.ID, Name: toolUse.Name}
				currentToolInput.Reset()
				processed = true
			}

		case "content_block_delta":
			delta := event.AsContentBlockDelta().Delta
			switch delta.Type {
			case "text_delta":
				if delta.Text != "" {
					chunks <- CompletionChunk{TextDelta: delta.Text}
					processed = true
				}
			case "thinking_delta":
				if delta.Thinking != "" {
					chunks <- CompletionChunk{ThinkingDelta: delta.Thinking}
					processed = true
				}
			case "input_json_delta":
				if delta.PartialJSON != "" {
					currentToolInput.WriteString(delta.PartialJSON)
					processed = true
				}
			}

		case "content_block_stop":
			if inThinking {
				chunks <- CompletionChunk{ThinkingEnd: true}
				inThinking = false
				processed = true
			} else if currentToolCall != nil {
				currentToolCall.Args = json.RawMessage(currentToolInput.String())
				chunks <- CompletionChunk{ToolCall: currentToolCall}
				currentToolCall = nil
				processed = true
			}

		case "message_delta":
			md := event.AsMessageDelta()
			if md.Usage.OutputTokens > 0 {
				outputTokens = int(md.Usage.OutputTokens)
			}
			processed = true

		case "message_stop":
			chunks <- CompletionChunk{Done: true, InputTokens: inputTokens, OutputTokens: outputTokens}
			return

		case "error":
			chunks <- CompletionChunk{Err: fmt.Errorf("anthropic: stream error"), Done: true}
			return
		}

		if processed {
			emptyEvents = 0
		} else {
			emptyEvents++
			if emptyEvents >= anthropicMaxEmptyEvent {
				chunks <- CompletionChunk{Err: fmt.Errorf("anthropic: stream appears malformed after %d empty events", emptyEvents), Done: true}
				return
			}
		}

		select {
		case <-ctx.Done():
			chunks <- CompletionChunk{Err: ctx.Err(), Done: true}
			return
		default:
		}
	}

	if err := stream.Err(); err != nil {
		chunks <- CompletionChunk{Err: fmt.Errorf("anthropic: %w", err), Done: true}
	}
}

// Complete drives non-stream mode by collecting a StreamComplete run, only
// retrying before the stream ever starts (retries mid-stream would
// duplicate partial output).
func (m *anthropicModel) Complete(ctx context.Context, req CompletionRequest) (*CompletionResult, error) {
	var lastErr error
	for attempt := 0; attempt <= m.maxRetries; attempt++ {
		result, err := m.completeOnce(ctx, req)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !isRetryableAnthropicError(err) {
			return nil, err
		}
		if attempt < m.maxRetries {
			backoff := m.retryDelay * time.Duration(math.Pow(2, float64(attempt)))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
	}
	return nil, fmt.Errorf("anthropic: max retries exceeded: %w", lastErr)
}

func (m *anthropicModel) completeOnce(ctx context.Context, req CompletionRequest) (*CompletionResult, error) {
	params, err := m.buildParams(req)
	if err != nil {
		return nil, err
	}
	msg, err := m.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic: %w", err)
	}

	result := &CompletionResult{
		InputTokens:  int(msg.Usage.InputTokens),
		OutputTokens: int(msg.Usage.OutputTokens),
	}
	for _, block := range msg.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			result.Text += variant.Text
		case anthropic.ThinkingBlock:
			result.Thinking += variant.Thinking
		case anthropic.ToolUseBlock:
			result.ToolCalls = append(result.ToolCalls, ToolCallWire{
				ID:   variant.ID,
				Name: variant.Name,
				Args: variant.Input,
			})
		}
	}
	return result, nil
}

func isRetryableAnthropicError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, needle := range []string{
		"rate_limit", "429", "too many requests",
		"500", "502", "503", "504",
		"internal server error", "bad gateway", "service unavailable", "gateway timeout",
		"timeout", "deadline exceeded",
		"connection reset", "connection refused", "no such host",
	} {
		if strings.Contains(msg, needle) {
			return true
		}
	}
	return false
}

func convertAnthropicMessages(messages []CompletionMessage) ([]anthropic.MessageParam, error) {
	var result []anthropic.MessageParam
	for _, msg := range messages {
		if msg.Role == "system" {
			continue
		}

		var content []anthropic.ContentBlockParamUnion
		if msg.Content != "" && msg.Role != "tool" {
			content = append(content, anthropic.NewTextBlock(msg.Content))
		}
		if msg.Role == "tool" {
			content = append(content, anthropic.NewToolResultBlock(msg.ToolCallID, msg.Content, false))
		}
		for _, call := range msg.ToolCalls {
			var input map[string]interface{}
			if len(call.Args) > 0 {
				if err := json.Unmarshal(call.Args, &input); err != nil {
					return nil, fmt.Errorf("invalid tool call args for %s: %w", call.Name, err)
				}
			}
			content = append(content, anthropic.NewToolUseBlock(call.ID, input, call.Name))
		}
		if len(content) == 0 {
			continue
		}

		if msg.Role == "assistant" {
			result = append(result, anthropic.NewAssistantMessage(content...))
		} else {
			result = append(result, anthropic.NewUserMessage(content...))
		}
	}
	return result, nil
}

func convertAnthropicTools(tools []ToolDef) ([]anthropic.ToolUnionParam, error) {
	var result []anthropic.ToolUnionParam
	for _, tool := range tools {
		var schema anthropic.ToolInputSchemaParam
		if err := json.Unmarshal(tool.Schema, &schema); err != nil {
			return nil, fmt.Errorf("invalid schema for %s: %w", tool.Name, err)
		}
		toolParam := anthropic.ToolUnionParamOfTool(schema, tool.Name)
		if toolParam.OfTool == nil {
			return nil, fmt.Errorf("invalid schema for %s: missing tool definition", tool.Name)
		}
		toolParam.OfTool.Description = anthropic.String(tool.Description)
		result = append(result, toolParam)
	}
	return result, nil
}
