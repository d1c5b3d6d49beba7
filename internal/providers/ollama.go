package providers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// ollamaModel drives a local (or self-hosted) Ollama server's chat API,
// talking its line-delimited-JSON wire format directly over the shared
// *http.Client since no dedicated Ollama client library is in use here.
type ollamaModel struct {
	client  *http.Client
	baseURL string
	modelID string
}

func newOllamaModel(cfg Config, client *http.Client) (Model, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	modelID := strings.TrimSpace(cfg.Model)
	if modelID == "" {
		return nil, errors.New("ollama: model is required")
	}
	return &ollamaModel{client: client, baseURL: baseURL, modelID: modelID}, nil
}

func (m *ollamaModel) Name() string        { return "ollama" }
func (m *ollamaModel) ModelID() string     { return m.modelID }
func (m *ollamaModel) SupportsTools() bool { return true }
func (m *ollamaModel) Close() error        { return nil }

type ollamaChatRequest struct {
	Model    string              `json:"model"`
	Messages []ollamaChatMessage `json:"messages"`
	Tools    []ollamaTool        `json:"tools,omitempty"`
	Stream   bool                `json:"stream"`
	Options  map[string]any      `json:"options,omitempty"`
}

type ollamaChatMessage struct {
	Role      string           `json:"role"`
	Content   string           `json:"content,omitempty"`
	ToolCalls []ollamaToolCall `json:"tool_calls,omitempty"`
	ToolName  string           `json:"tool_name,omitempty"`
}

type ollamaChatResponse struct {
	Message         *ollamaChatMessage `json:"message"`
	Done            bool               `json:"done"`
	Error           string             `json:"error"`
	EvalCount       int                `json:"eval_count"`
	PromptEvalCount int                `json:"prompt_eval_count"`
}

type ollamaTool struct {
	Type     string             `json:"type"`
	Function ollamaToolFunction `json:"function"`
}

type ollamaToolCall struct {
	ID       string             `json:"id,omitempty"`
	Type     string             `json:"type,omitempty"`
	Function ollamaToolFunction `json:"function"`
}

type ollamaToolFunction struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
	Arguments   json.RawMessage `json:"arguments,omitempty"`
}

func buildOllamaMessages(req CompletionRequest) []ollamaChatMessage {
	toolNames := map[string]string{}
	for _, msg := range req.Messages {
		for _, tc := range msg.ToolCalls {
			if tc.ID != "" && tc.Name != "" {
				toolNames[tc.ID] = tc.Name
			}
		}
	}

	messages := make([]ollamaChatMessage, 0, len(req.Messages)+1)
	if system := strings.TrimSpace(req.System); system != "" {
		messages = append(messages, ollamaChatMessage{Role: "system", Content: system})
	}
	for _, msg := range req.Messages {
		role := msg.Role
		if role == "" {
			role = "user"
		}
		switch role {
		case "assistant":
			out := ollamaChatMessage{Role: role, Content: msg.Content}
			for _, tc := range msg.ToolCalls {
				args := tc.Args
				if len(args) == 0 {
					args = json.RawMessage(`{}`)
				}
				out.ToolCalls = append(out.ToolCalls, ollamaToolCall{
					ID:   tc.ID,
					Type: "function",
					Function: ollamaToolFunction{
						Name:      tc.Name,
						Arguments: args,
					},
				})
			}
			messages = append(messages, out)
		case "tool":
			messages = append(messages, ollamaChatMessage{
				Role:     "tool",
				Content:  msg.Content,
				ToolName: toolNames[msg.ToolCallID],
			})
		default:
			messages = append(messages, ollamaChatMessage{Role: role, Content: msg.Content})
		}
	}
	return messages
}

func buildOllamaTools(tools []ToolDef) []ollamaTool {
	if len(tools) == 0 {
		return nil
	}
	out := make([]ollamaTool, len(tools))
	for i, tool := range tools {
		out[i] = ollamaTool{
			Type: "function",
			Function: ollamaToolFunction{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.Schema,
			},
		}
	}
	return out
}

func (m *ollamaModel) buildPayload(req CompletionRequest, stream bool) ollamaChatRequest {
	payload := ollamaChatRequest{
		Model:    m.modelID,
		Stream:   stream,
		Messages: buildOllamaMessages(req),
		Tools:    buildOllamaTools(req.Tools),
	}
	if req.MaxTokens > 0 {
		payload.Options = map[string]any{"num_predict": req.MaxTokens}
	}
	return payload
}

func (m *ollamaModel) doRequest(ctx context.Context, payload ollamaChatRequest) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("ollama: marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ollama: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("ollama: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		defer resp.Body.Close()
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		return nil, fmt.Errorf("ollama: status %d: %s", resp.StatusCode, strings.TrimSpace(string(errBody)))
	}
	return resp, nil
}

func (m *ollamaModel) StreamComplete(ctx context.Context, req CompletionRequest) (<-chan CompletionChunk, error) {
	resp, err := m.doRequest(ctx, m.buildPayload(req, true))
	if err != nil {
		return nil, err
	}
	chunks := make(chan CompletionChunk)
	go streamOllamaResponse(ctx, resp.Body, chunks)
	return chunks, nil
}

func streamOllamaResponse(ctx context.Context, body io.ReadCloser, out chan<- CompletionChunk) {
	defer close(out)
	defer body.Close()

	scanner := bufio.NewScanner(body)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	emitted := map[string]struct{}{}
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			out <- CompletionChunk{Err: ctx.Err(), Done: true}
			return
		default:
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var resp ollamaChatResponse
		if err := json.Unmarshal([]byte(line), &resp); err != nil {
			out <- CompletionChunk{Err: fmt.Errorf("ollama: decode response: %w", err), Done: true}
			return
		}
		if resp.Error != "" {
			out <- CompletionChunk{Err: fmt.Errorf("ollama: %s", resp.Error), Done: true}
			return
		}
		if resp.Message != nil {
			if resp.Message.Content != "" {
				out <- CompletionChunk{TextDelta: resp.Message.Content}
			}
			for _, tc := range resp.Message.ToolCalls {
				id := strings.TrimSpace(tc.ID)
				if id == "" {
					id = ollamaToolCallKey(tc)
					if id == "" {
						id = uuid.NewString()
					}
				}
				if _, ok := emitted[id]; ok {
					continue
				}
				emitted[id] = struct{}{}
				args := tc.Function.Arguments
				if len(args) == 0 {
					args = json.RawMessage(`{}`)
				}
				out <- CompletionChunk{ToolCall: &ToolCallWire{ID: id, Name: strings.TrimSpace(tc.Function.Name), Args: args}}
			}
		}
		if resp.Done {
			out <- CompletionChunk{Done: true, InputTokens: resp.PromptEvalCount, OutputTokens: resp.EvalCount}
			return
		}
	}
	if err := scanner.Err(); err != nil {
		out <- CompletionChunk{Err: fmt.Errorf("ollama: %w", err), Done: true}
	}
}

func ollamaToolCallKey(tc ollamaToolCall) string {
	if id := strings.TrimSpace(tc.ID); id != "" {
		return id
	}
	name := strings.TrimSpace(tc.Function.Name)
	args := strings.TrimSpace(string(tc.Function.Arguments))
	if name == "" && args == "" {
		return ""
	}
	return name + ":" + args
}

func (m *ollamaModel) Complete(ctx context.Context, req CompletionRequest) (*CompletionResult, error) {
	resp, err := m.doRequest(ctx, m.buildPayload(req, false))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var decoded ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("ollama: decode response: %w", err)
	}
	if decoded.Error != "" {
		return nil, fmt.Errorf("ollama: %s", decoded.Error)
	}

	result := &CompletionResult{InputTokens: decoded.PromptEvalCount, OutputTokens: decoded.EvalCount}
	if decoded.Message != nil {
		result.Text = decoded.Message.Content
		for _, tc := range decoded.Message.ToolCalls {
			args := tc.Function.Arguments
			if len(args) == 0 {
				args = json.RawMessage(`{}`)
			}
			result.ToolCalls = append(result.ToolCalls, ToolCallWire{ID: tc.ID, Name: tc.Function.Name, Args: args})
		}
	}
	return result, nil
}
