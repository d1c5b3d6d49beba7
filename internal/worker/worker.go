package worker

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"github.com/mcbe-gateway/agent-gateway/internal/broker"
	"github.com/mcbe-gateway/agent-gateway/internal/engine"
	"github.com/mcbe-gateway/agent-gateway/internal/history"
	"github.com/mcbe-gateway/agent-gateway/internal/observability"
	"github.com/mcbe-gateway/agent-gateway/internal/prompt"
	"github.com/mcbe-gateway/agent-gateway/internal/providers"
	"github.com/mcbe-gateway/agent-gateway/pkg/models"
)

// Worker drains broker requests one at a time, holding the issuing
// connection's serialization lock for the duration of one chat turn: get
// a request, acquire the connection lock, process, release.
type Worker struct {
	id        int
	broker    *broker.Broker
	providers *providers.Registry
	prompts   *prompt.Manager
	engine    *engine.Engine
	settings  Settings
	logger    *slog.Logger
	tracer    *observability.Tracer
}

func newWorker(id int, b *broker.Broker, p *providers.Registry, pm *prompt.Manager, e *engine.Engine, settings Settings, logger *slog.Logger, tracer *observability.Tracer) *Worker {
	return &Worker{id: id, broker: b, providers: p, prompts: pm, engine: e, settings: settings, logger: logger, tracer: tracer}
}

// Run blocks, processing requests until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		envelope, err := w.broker.GetRequest(ctx)
		if err != nil {
			return
		}
		w.process(ctx, envelope)
		w.broker.RequestDone()
	}
}

func (w *Worker) process(ctx context.Context, envelope models.RequestEnvelope) {
	connID := envelope.ConnectionID
	req := envelope.Payload

	lock, ok := w.broker.GetConnectionLock(connID)
	if !ok {
		w.logger.Warn("worker: dropping request for unregistered connection", "connection_id", connID, "worker_id", w.id)
		return
	}
	lock.Lock()
	defer lock.Unlock()

	var seq uint64
	nextSeq := func() uint64 {
		s := seq
		seq++
		return s
	}
	emit := func(chunkType models.ChunkType, content string) {
		w.send(connID, nextSeq(), chunkType, content, req.Delivery, "", "", "")
	}

	var convHistory []models.ModelMessage
	if req.UseContext {
		convHistory, _ = w.broker.GetConversationHistory(connID)
	}
	convHistory = history.StripReasoning(convHistory)

	providerName := req.Provider
	if providerName == "" {
		providerName = w.settings.DefaultProvider
	}
	providerCfg, ok := w.settings.Providers[providerName]
	if !ok {
		emit(models.ChunkError, fmt.Sprintf("未配置的服务提供方: %s", providerName))
		return
	}

	model, err := w.providers.GetModel(providerCfg)
	if err != nil {
		emit(models.ChunkError, fmt.Sprintf("模型初始化失败: %v", err))
		return
	}

	systemPrompt, err := w.prompts.BuildSystemPrompt(connID, req.PlayerName, providerName, model.ModelID(), len(convHistory))
	if err != nil {
		emit(models.ChunkError, fmt.Sprintf("系统提示构建失败: %v", err))
		return
	}

	runCtx := ctx
	if w.settings.RequestTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, w.settings.RequestTimeout)
		defer cancel()
	}
	if w.tracer != nil {
		var span trace.Span
		runCtx, span = w.tracer.StartProviderCall(runCtx, providerName, model.ModelID())
		defer span.End()
	}

	events := w.engine.Run(runCtx, engine.RunRequest{
		ConnectionID: connID,
		Model:        model,
		System:       systemPrompt,
		History:      convHistory,
		UserPrompt:   req.Content,
		Config: engine.Config{
			StreamSentenceMode:   w.settings.StreamSentenceMode,
			MaxToolIterations:    w.settings.MaxToolIterations,
			MaxTokens:            w.settings.MaxTokens,
			EnableThinking:       w.settings.EnableThinking,
			ThinkingBudgetTokens: w.settings.ThinkingBudgetTokens,
		},
	})

	inThinking := false
	closeThinking := func() {
		if inThinking {
			emit(models.ChunkThinkingEnd, "")
			inThinking = false
		}
	}

	for ev := range events {
		switch ev.Kind {
		case models.EventReasoning:
			if !inThinking {
				emit(models.ChunkThinkingStart, "")
				inThinking = true
			}
			emit(models.ChunkReasoning, ev.Content)

		case models.EventContent:
			if ev.IsComplete() {
				closeThinking()
				w.finishRun(connID, ev.Metadata)
				continue
			}
			closeThinking()
			emit(models.ChunkContent, ev.Content)

		case models.EventToolCall:
			closeThinking()
			line := formatToolCallLine(ev.ToolName, ev.ToolArgs)
			w.send(connID, nextSeq(), models.ChunkToolCall, line, req.Delivery, ev.ToolName, string(ev.ToolArgs), "")

		case models.EventToolResult:
			closeThinking()
			if !w.settings.ToolResponseVerbose {
				continue
			}
			preview := truncateRunes(ev.ToolResultPreview, toolResultPreviewMaxLen)
			w.send(connID, nextSeq(), models.ChunkToolResult, preview, req.Delivery, "", "", preview)

		case models.EventError:
			closeThinking()
			emit(models.ChunkError, ev.Content)
		}
	}
	closeThinking()
}

// finishRun updates the broker's stored history once a run completes:
// trim to the configured turn budget, strip reasoning, then compress if
// the trimmed history has reached the auto-compress threshold.
func (w *Worker) finishRun(connID string, meta *models.CompletionMetadata) {
	if meta == nil {
		return
	}
	trimmed := history.TrimHistory(meta.AllMessages, w.settings.MaxHistoryTurns)
	trimmed = history.StripReasoning(trimmed)
	if history.ShouldAutoCompress(trimmed, w.settings.MaxHistoryTurns, false) {
		trimmed = history.Compress(trimmed, w.settings.MaxHistoryTurns)
	}
	w.broker.SetConversationHistory(connID, trimmed)
}

func (w *Worker) send(connID string, seq uint64, chunkType models.ChunkType, content string, delivery models.DeliveryMode, toolName, toolArgs, toolResultPreview string) {
	chunk := &models.StreamChunk{
		ConnectionID:      connID,
		Sequence:          seq,
		ChunkType:         chunkType,
		Content:           content,
		Delivery:          delivery,
		ToolName:          toolName,
		ToolArgs:          toolArgs,
		ToolResultPreview: toolResultPreview,
	}
	w.broker.SendResponse(connID, models.ResponseItem{Type: models.ResponseGameMessage, Chunk: chunk})
}
