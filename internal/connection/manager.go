package connection

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/trace"

	"github.com/mcbe-gateway/agent-gateway/internal/broker"
	"github.com/mcbe-gateway/agent-gateway/internal/history"
	"github.com/mcbe-gateway/agent-gateway/internal/observability"
	"github.com/mcbe-gateway/agent-gateway/internal/prompt"
	"github.com/mcbe-gateway/agent-gateway/internal/protocol"
	"github.com/mcbe-gateway/agent-gateway/internal/providers"
	"github.com/mcbe-gateway/agent-gateway/pkg/models"
)

// Manager is the connection manager: it accepts sockets, wires each
// one into the broker and prompt manager, and drives its sender loop.
// Safe for concurrent use; one Manager serves every connection.
type Manager struct {
	broker    *broker.Broker
	prompts   *prompt.Manager
	store     *history.Store
	auth      Authenticator
	providers *providers.Registry
	commands  *protocol.CommandRegistry
	renderer  *protocol.Renderer
	settings  Settings
	logger    *slog.Logger
	metrics   *observability.Metrics
	tracer    *observability.Tracer

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	sessions map[string]*session
}

// NewManager returns a Manager. auth may be nil; the login command then
// always fails (equivalent to dev_mode being the only way in). providerRegistry
// may be nil; Model is then left blank on saved sessions. metrics may be nil,
// in which case request-submission counters are simply not recorded. tracer
// may be nil, in which case run_command dispatches are not traced.
func NewManager(b *broker.Broker, pm *prompt.Manager, store *history.Store, auth Authenticator, providerRegistry *providers.Registry, settings Settings, logger *slog.Logger, metrics *observability.Metrics, tracer *observability.Tracer) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	settings = sanitizeSettings(settings)
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		broker:    b,
		prompts:   pm,
		store:     store,
		auth:      auth,
		providers: providerRegistry,
		commands:  protocol.NewCommandRegistry(),
		renderer:  protocol.NewRenderer(settings.ScriptEventID),
		settings:  settings,
		logger:    logger,
		metrics:   metrics,
		tracer:    tracer,
		ctx:       ctx,
		cancel:    cancel,
		sessions:  make(map[string]*session),
	}
}

// Accept takes ownership of an upgraded WebSocket connection: it
// registers the connection with the broker and prompt manager, sends the
// MCBE handshake sequence, then runs the sender and reader loops until the
// socket closes. It blocks until the session ends and always cleans up
// before returning.
func (m *Manager) Accept(ws *websocket.Conn) {
	connID := uuid.NewString()
	conn := models.NewConnection(connID, m.settings.DefaultProvider, m.settings.DefaultTemplate)
	responses := m.broker.RegisterConnection(connID)
	m.prompts.RegisterConnection(connID)

	sess := newSession(m.ctx, conn, ws, responses)

	m.mu.Lock()
	m.sessions[connID] = sess
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.sessions, connID)
		m.mu.Unlock()

		sess.cancel()
		m.broker.UnregisterConnection(connID)
		m.prompts.UnregisterConnection(connID)
		sess.closeAllPending()
		_ = ws.Close()
		sess.wg.Wait()
	}()

	if err := m.handshake(sess); err != nil {
		m.logger.Warn("connection: handshake failed", "connection_id", connID, "error", err)
		return
	}

	sess.wg.Add(1)
	go func() {
		defer sess.wg.Done()
		m.senderLoop(sess)
	}()

	m.readLoop(sess)
}

// handshake sends the three frames required on accept: the bare accepted
// marker, a subscribe frame for PlayerMessage, and a welcome info
// message.
func (m *Manager) handshake(sess *session) error {
	if err := sess.writeRaw(protocol.AcceptedMessage()); err != nil {
		return err
	}
	sub, err := protocol.SubscribeMessage(uuid.NewString(), protocol.EventPlayerMessage)
	if err != nil {
		return err
	}
	if err := sess.writeRaw(sub); err != nil {
		return err
	}
	welcome, err := protocol.WelcomeMessage(uuid.NewString(), m.settings.WelcomeMessage)
	if err != nil {
		return err
	}
	return sess.writeRaw(welcome)
}

// senderLoop drains sess's response channel and dispatches each item as an
// outbound MCBE command, independent of request processing so LLM work
// never blocks the socket. It exits when sess.ctx is cancelled (the reader
// closing, or Shutdown) or the broker closes the response channel.
func (m *Manager) senderLoop(sess *session) {
	for {
		select {
		case <-sess.ctx.Done():
			return
		case item, ok := <-sess.responses:
			if !ok {
				return
			}
			m.dispatchResponse(sess, item)
		}
	}
}

func (m *Manager) dispatchResponse(sess *session, item models.ResponseItem) {
	switch item.Type {
	case models.ResponseGameMessage:
		if item.Chunk == nil {
			return
		}
		commandLine, ok := m.renderer.CommandLine(item.Chunk)
		if !ok {
			return
		}
		raw, err := protocol.CommandRequestMessage(uuid.NewString(), commandLine)
		if err != nil {
			m.logger.Error("connection: framing game message", "error", err)
			return
		}
		if err := sess.writeRaw(raw); err != nil {
			m.logger.Warn("connection: writing game message", "connection_id", sess.conn.ID, "error", err)
		}

	case models.ResponseRunCommand:
		requestID := item.RequestID
		if requestID == "" {
			requestID = uuid.NewString()
		}
		var span trace.Span
		if m.tracer != nil {
			_, span = m.tracer.StartCommandRPC(sess.ctx, sess.conn.ID)
		}
		sess.registerPending(requestID, item.ResultFuture, span)
		raw, err := protocol.CommandRequestMessage(requestID, item.Command)
		if err != nil {
			m.logger.Error("connection: framing run_command", "error", err)
			if item.ResultFuture != nil {
				sess.resolvePending(requestID, "命令构建失败")
			}
			return
		}
		if err := sess.writeRaw(raw); err != nil {
			m.logger.Warn("connection: dispatching run_command", "connection_id", sess.conn.ID, "error", err)
			if item.ResultFuture != nil {
				sess.resolvePending(requestID, "命令执行失败: 连接已关闭")
			}
		}
	}
}

// readLoop reads inbound frames until the socket errors or closes,
// handling each frame in order: commandResponse correlation first, then
// PlayerMessage parsing and command routing.
func (m *Manager) readLoop(sess *session) {
	for {
		_, raw, err := sess.ws.ReadMessage()
		if err != nil {
			return
		}

		frame, err := protocol.ParseFrame(raw)
		if err != nil {
			m.logger.Warn("connection: malformed frame", "connection_id", sess.conn.ID, "error", err)
			continue
		}

		if protocol.IsCommandResponse(frame) {
			body, err := protocol.ParseCommandResponse(frame)
			if err != nil {
				m.logger.Warn("connection: malformed commandResponse", "connection_id", sess.conn.ID, "error", err)
				continue
			}
			sess.resolvePending(frame.Header.RequestID, protocol.ResolveCommandResult(body))
			continue
		}

		if !protocol.IsPlayerMessage(frame) {
			continue
		}
		body, err := protocol.ParsePlayerMessage(frame)
		if err != nil {
			continue
		}
		if m.settings.DedupExternalMessages && protocol.IsExternalDuplicate(frame, body) {
			continue
		}

		sess.conn.BindPlayerName(body.Sender)
		m.routeMessage(sess, body.Message)
	}
}

// Shutdown cancels every session's context (stopping sender loops on
// their next wake), resolves all pending/queued futures, and closes every
// socket. It does not wait longer than senderDrainTimeout per session for
// the sender goroutine to exit.
func (m *Manager) Shutdown() {
	m.cancel()

	m.mu.Lock()
	sessions := make([]*session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		sessions = append(sessions, sess)
	}
	m.mu.Unlock()

	for _, sess := range sessions {
		sess.closeAllPending()
		_ = sess.ws.Close()
	}
	for _, sess := range sessions {
		waitWithTimeout(&sess.wg, senderDrainTimeout)
	}
}

func waitWithTimeout(wg *sync.WaitGroup, timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
	}
}
