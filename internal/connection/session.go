package connection

import (
	"context"
	"sync"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/trace"

	"github.com/mcbe-gateway/agent-gateway/pkg/models"
)

// pendingEntry pairs an outstanding command future with the tracing span
// (if any) opened when the request was dispatched; the span closes when
// the future resolves, giving one span per commandRequest/commandResponse
// round trip.
type pendingEntry struct {
	future *models.CommandFuture
	span   trace.Span
}

// session is one accepted MCBE WebSocket link: the socket, the shared
// Connection state, the broker's response channel, and the outstanding
// command-RPC futures this session's sender has dispatched and is
// awaiting a commandResponse for.
type session struct {
	conn *models.Connection
	ws   *websocket.Conn

	responses <-chan models.ResponseItem

	ctx    context.Context
	cancel context.CancelFunc

	writeMu sync.Mutex

	pendingMu sync.Mutex
	pending   map[string]pendingEntry

	wg sync.WaitGroup
}

func newSession(parent context.Context, conn *models.Connection, ws *websocket.Conn, responses <-chan models.ResponseItem) *session {
	ctx, cancel := context.WithCancel(parent)
	return &session{
		conn:      conn,
		ws:        ws,
		responses: responses,
		ctx:       ctx,
		cancel:    cancel,
		pending:   make(map[string]pendingEntry),
	}
}

// writeRaw sends raw bytes as one WebSocket text message. gorilla's Conn
// does not support concurrent writers, hence writeMu.
func (s *session) writeRaw(raw []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.ws.WriteMessage(websocket.TextMessage, raw)
}

// registerPending records a future awaiting requestID's commandResponse.
// span, if non-nil, is ended when the future resolves or the session
// closes, giving one span per run_command round trip.
func (s *session) registerPending(requestID string, future *models.CommandFuture, span trace.Span) {
	if future == nil {
		return
	}
	s.pendingMu.Lock()
	s.pending[requestID] = pendingEntry{future: future, span: span}
	s.pendingMu.Unlock()
}

// resolvePending looks up and removes requestID's future, resolving it
// with result and ending its span. Returns false if no future was
// pending for requestID.
func (s *session) resolvePending(requestID, result string) bool {
	s.pendingMu.Lock()
	entry, ok := s.pending[requestID]
	if ok {
		delete(s.pending, requestID)
	}
	s.pendingMu.Unlock()
	if !ok {
		return false
	}
	if entry.span != nil {
		entry.span.End()
	}
	entry.future.Resolve(result)
	return true
}

// closeAllPending resolves every still-registered future as connection
// closed, as part of the session's shutdown/unregister sequence.
func (s *session) closeAllPending() {
	s.pendingMu.Lock()
	pending := s.pending
	s.pending = make(map[string]pendingEntry)
	s.pendingMu.Unlock()
	for _, entry := range pending {
		if entry.span != nil {
			entry.span.End()
		}
		entry.future.Resolve("命令执行失败: 连接已关闭")
	}
}
