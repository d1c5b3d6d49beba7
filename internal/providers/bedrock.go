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

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/smithy-go"
)

const (
	bedrockDefaultModel  = "anthropic.claude-3-sonnet-20240229-v1:0"
	bedrockMaxRetries    = 3
	bedrockRetryDelay    = time.Second
	bedrockDefaultRegion = "us-east-1"
)

// bedrockModel drives AWS Bedrock's Converse/ConverseStream APIs. cfg.BaseURL
// doubles as the AWS region override; cfg.APIKey, when set, is parsed as
// "accessKeyID:secretAccessKey" for explicit credentials, falling back to
// the default AWS credential chain otherwise. Image-attachment handling
// is intentionally not supported.
type bedrockModel struct {
	client     *bedrockruntime.Client
	modelID    string
	maxRetries int
	retryDelay time.Duration
}

func newBedrockModel(cfg Config, client *http.Client) (Model, error) {
	region := cfg.BaseURL
	if region == "" {
		region = bedrockDefaultRegion
	}

	opts := []func(*config.LoadOptions) error{
		config.WithRegion(region),
		config.WithHTTPClient(client),
	}
	if cfg.APIKey != "" {
		if accessKey, secretKey, ok := strings.Cut(cfg.APIKey, ":"); ok {
			opts = append(opts, config.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")))
		}
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("bedrock: loading AWS config: %w", err)
	}

	modelID := cfg.Model
	if modelID == "" {
		modelID = bedrockDefaultModel
	}

	return &bedrockModel{
		client:     bedrockruntime.NewFromConfig(awsCfg),
		modelID:    modelID,
		maxRetries: bedrockMaxRetries,
		retryDelay: bedrockRetryDelay,
	}, nil
}

func (m *bedrockModel) Name() string        { return "bedrock" }
func (m *bedrockModel) ModelID() string     { return m.modelID }
func (m *bedrockModel) SupportsTools() bool { return true }
func (m *bedrockModel) Close() error        { return nil }

func convertBedrockMessages(messages []CompletionMessage) []types.Message {
	result := make([]types.Message, 0, len(messages))
	for _, msg := range messages {
		if msg.Role == "system" {
			continue
		}

		var content []types.ContentBlock
		if msg.Content != "" && msg.Role != "tool" {
			content = append(content, &types.ContentBlockMemberText{Value: msg.Content})
		}
		if msg.Role == "tool" {
			content = append(content, &types.ContentBlockMemberToolResult{
				Value: types.ToolResultBlock{
					ToolUseId: aws.String(msg.ToolCallID),
					Content:   []types.ToolResultContentBlock{&types.ToolResultContentBlockMemberText{Value: msg.Content}},
				},
			})
		}
		for _, tc := range msg.ToolCalls {
			var inputDoc any
			if err := json.Unmarshal(tc.Args, &inputDoc); err != nil {
				inputDoc = map[string]any{}
			}
			content = append(content, &types.ContentBlockMemberToolUse{
				Value: types.ToolUseBlock{
					ToolUseId: aws.String(tc.ID),
					Name:      aws.String(tc.Name),
					Input:     document.NewLazyDocument(inputDoc),
				},
			})
		}

		if len(content) == 0 {
			continue
		}
		role := types.ConversationRoleUser
		if msg.Role == "assistant" {
			role = types.ConversationRoleAssistant
		}
		result = append(result, types.Message{Role: role, Content: content})
	}
	return result
}

func convertBedrockTools(tools []ToolDef) *types.ToolConfiguration {
	if len(tools) == 0 {
		return nil
	}
	specs := make([]types.Tool, 0, len(tools))
	for _, tool := range tools {
		var schemaDoc any
		if err := json.Unmarshal(tool.Schema, &schemaDoc); err != nil {
			schemaDoc = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		specs = append(specs, &types.ToolMemberToolSpec{
			Value: types.ToolSpecification{
				Name:        aws.String(tool.Name),
				Description: aws.String(tool.Description),
				InputSchema: &types.ToolInputSchemaMemberJson{Value: document.NewLazyDocument(schemaDoc)},
			},
		})
	}
	return &types.ToolConfiguration{Tools: specs}
}

func (m *bedrockModel) buildInferenceConfig(maxTokens int) *types.InferenceConfiguration {
	if maxTokens <= 0 {
		return nil
	}
	bounded := maxTokens
	if bounded > math.MaxInt32 {
		bounded = math.MaxInt32
	}
	return &types.InferenceConfiguration{MaxTokens: aws.Int32(int32(bounded))}
}

func (m *bedrockModel) StreamComplete(ctx context.Context, req CompletionRequest) (<-chan CompletionChunk, error) {
	converseReq := &bedrockruntime.ConverseStreamInput{
		ModelId:         aws.String(m.modelID),
		Messages:        convertBedrockMessages(req.Messages),
		InferenceConfig: m.buildInferenceConfig(req.MaxTokens),
		ToolConfig:      convertBedrockTools(req.Tools),
	}
	if req.System != "" {
		converseReq.System = []types.SystemContentBlock{&types.SystemContentBlockMemberText{Value: req.System}}
	}

	var out *bedrockruntime.ConverseStreamOutput
	var lastErr error
	for attempt := 0; attempt < m.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(m.retryDelay * time.Duration(attempt)):
			}
		}
		out, lastErr = m.client.ConverseStream(ctx, converseReq)
		if lastErr == nil {
			break
		}
		if !isRetryableBedrockError(lastErr) {
			return nil, fmt.Errorf("bedrock: %w", lastErr)
		}
	}
	if lastErr != nil {
		return nil, fmt.Errorf("bedrock: max retries exceeded: %w", lastErr)
	}

	chunks := make(chan CompletionChunk)
	go processBedrockStream(ctx, out, chunks)
	return chunks, nil
}

func processBedrockStream(ctx context.Context, out *bedrockruntime.ConverseStreamOutput, chunks chan<- CompletionChunk) {
	defer close(chunks)
	eventStream := out.GetStream()
	defer eventStream.Close()

	var currentToolCall *ToolCallWire
	var toolInput strings.Builder

	events := eventStream.Events()
	for {
		select {
		case <-ctx.Done():
			chunks <- CompletionChunk{Err: ctx.Err(), Done: true}
			return
		case event, ok := <-events:
			if !ok {
				if currentToolCall != nil && currentToolCall.ID != "" {
					currentToolCall.Args = json.RawMessage(toolInput.String())
					chunks <- CompletionChunk{ToolCall: currentToolCall}
				}
				if err := eventStream.Err(); err != nil {
					chunks <- CompletionChunk{Err: fmt.Errorf("bedrock: %w", err), Done: true}
				} else {
					chunks <- CompletionChunk{Done: true}
				}
				return
			}

			switch ev := event.(type) {
			case *types.ConverseStreamOutputMemberContentBlockStart:
				if toolUse, ok := ev.Value.Start.(*types.ContentBlockStartMemberToolUse); ok {
					currentToolCall = &ToolCallWire{ID: aws.ToString(toolUse.Value.ToolUseId), Name: aws.ToString(toolUse.Value.Name)}
					toolInput.Reset()
				}
			case *types.ConverseStreamOutputMemberContentBlockDelta:
				switch delta := ev.Value.Delta.(type) {
				case *types.ContentBlockDeltaMemberText:
					if delta.Value != "" {
						chunks <- CompletionChunk{TextDelta: delta.Value}
					}
				case *types.ContentBlockDeltaMemberToolUse:
					if delta.Value.Input != nil {
						toolInput.WriteString(*delta.Value.Input)
					}
				}
			case *types.ConverseStreamOutputMemberContentBlockStop:
				if currentToolCall != nil && currentToolCall.ID != "" {
					currentToolCall.Args = json.RawMessage(toolInput.String())
					chunks <- CompletionChunk{ToolCall: currentToolCall}
					currentToolCall = nil
					toolInput.Reset()
				}
			case *types.ConverseStreamOutputMemberMessageStop:
				chunks <- CompletionChunk{Done: true}
				return
			}
		}
	}
}

func (m *bedrockModel) Complete(ctx context.Context, req CompletionRequest) (*CompletionResult, error) {
	converseReq := &bedrockruntime.ConverseInput{
		ModelId:         aws.String(m.modelID),
		Messages:        convertBedrockMessages(req.Messages),
		InferenceConfig: m.buildInferenceConfig(req.MaxTokens),
		ToolConfig:      convertBedrockTools(req.Tools),
	}
	if req.System != "" {
		converseReq.System = []types.SystemContentBlock{&types.SystemContentBlockMemberText{Value: req.System}}
	}

	var out *bedrockruntime.ConverseOutput
	var lastErr error
	for attempt := 0; attempt < m.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(m.retryDelay * time.Duration(attempt)):
			}
		}
		out, lastErr = m.client.Converse(ctx, converseReq)
		if lastErr == nil {
			break
		}
		if !isRetryableBedrockError(lastErr) {
			return nil, fmt.Errorf("bedrock: %w", lastErr)
		}
	}
	if lastErr != nil {
		return nil, fmt.Errorf("bedrock: max retries exceeded: %w", lastErr)
	}

	result := &CompletionResult{}
	if out.Usage != nil {
		result.InputTokens = int(aws.ToInt32(out.Usage.InputTokens))
		result.OutputTokens = int(aws.ToInt32(out.Usage.OutputTokens))
	}
	msg, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return nil, fmt.Errorf("bedrock: unexpected output shape")
	}
	for _, block := range msg.Value.Content {
		switch v := block.(type) {
		case *types.ContentBlockMemberText:
			result.Text += v.Value
		case *types.ContentBlockMemberToolUse:
			argsBytes, _ := v.Value.Input.MarshalSmithyDocument()
			result.ToolCalls = append(result.ToolCalls, ToolCallWire{
				ID:   aws.ToString(v.Value.ToolUseId),
				Name: aws.ToString(v.Value.Name),
				Args: argsBytes,
			})
		}
	}
	return result, nil
}

// retryableBedrockCodes are the smithy API error codes worth a delayed
// retry; anything else (validation errors, access denied, unknown model)
// fails the request immediately since retrying would just repeat it.
var retryableBedrockCodes = map[string]bool{
	"ThrottlingException":         true,
	"ServiceUnavailable":          true,
	"ServiceUnavailableException": true,
	"InternalServerException":     true,
	"ModelTimeoutException":       true,
}

func isRetryableBedrockError(err error) bool {
	if err == nil {
		return false
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return retryableBedrockCodes[apiErr.ErrorCode()]
	}

	// Not an AWS API error (e.g. a context deadline or transport failure
	// surfaced before the SDK could parse a response) — fall back to a
	// message check for the handful of transport-level cases worth retrying.
	msg := err.Error()
	return strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded")
}
