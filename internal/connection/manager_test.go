package connection

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mcbe-gateway/agent-gateway/internal/broker"
	"github.com/mcbe-gateway/agent-gateway/internal/history"
	"github.com/mcbe-gateway/agent-gateway/internal/prompt"
	"github.com/mcbe-gateway/agent-gateway/internal/protocol"
	"github.com/mcbe-gateway/agent-gateway/internal/providers"
	"github.com/mcbe-gateway/agent-gateway/pkg/models"
)

type fakeAuth struct{ password string }

func (f fakeAuth) VerifyPassword(password string) bool { return password == f.password }

func (f fakeAuth) IssueToken(connectionID string) (string, error) { return "token-" + connectionID, nil }

type testHarness struct {
	manager *Manager
	broker  *broker.Broker
	server  *httptest.Server
}

func newTestHarness(t *testing.T, settings Settings) *testHarness {
	t.Helper()
	b := broker.New(slog.Default(), 8, 64)
	pm := prompt.NewManager(slog.Default(), "default")
	store := history.NewStore(t.TempDir())
	mgr := NewManager(b, pm, store, fakeAuth{password: "secret"}, providers.NewRegistry(nil), settings, slog.Default(), nil, nil)

	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		mgr.Accept(ws)
	}))

	return &testHarness{manager: mgr, broker: b, server: server}
}

func (h *testHarness) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(h.server.URL, "http") + "/"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) *protocol.Frame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if string(raw) == `{"Result":"true"}` {
		return &protocol.Frame{Header: protocol.Header{MessagePurpose: "accepted"}}
	}
	frame, err := protocol.ParseFrame(raw)
	if err != nil {
		t.Fatalf("ParseFrame(%s): %v", raw, err)
	}
	return frame
}

func sendPlayerMessage(t *testing.T, conn *websocket.Conn, sender, message string) {
	t.Helper()
	body, err := json.Marshal(protocol.PlayerMessageBody{Sender: sender, Message: message})
	if err != nil {
		t.Fatal(err)
	}
	frame := protocol.Frame{
		Header: protocol.Header{MessagePurpose: protocol.PurposeEvent, EventNameLower: protocol.EventPlayerMessage},
		Body:   body,
	}
	raw, err := json.Marshal(frame)
	if err != nil {
		t.Fatal(err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		t.Fatal(err)
	}
}

func TestHandshakeSequence(t *testing.T) {
	h := newTestHarness(t, Settings{DefaultProvider: "fake"})
	defer h.server.Close()
	conn := h.dial(t)
	defer conn.Close()

	accepted := readFrame(t, conn)
	if accepted.Header.MessagePurpose != "accepted" {
		t.Fatalf("expected accepted marker first, got %+v", accepted)
	}
	sub := readFrame(t, conn)
	if sub.Header.MessagePurpose != protocol.PurposeSubscribe {
		t.Fatalf("expected subscribe frame second, got %+v", sub)
	}
	welcome := readFrame(t, conn)
	if welcome.Header.MessagePurpose != protocol.PurposeCommandRequest {
		t.Fatalf("expected welcome commandRequest third, got %+v", welcome)
	}
}

func TestUnauthenticatedCommandRejected(t *testing.T) {
	h := newTestHarness(t, Settings{DefaultProvider: "fake"})
	defer h.server.Close()
	conn := h.dial(t)
	defer conn.Close()

	drainHandshake(t, conn)
	sendPlayerMessage(t, conn, "Steve", "AGENT 聊天 你好")

	reply := readFrame(t, conn)
	if !strings.Contains(string(reply.Body), "请先登录") {
		t.Fatalf("reply body = %s, want 请先登录", reply.Body)
	}
}

func TestLoginThenChatEnqueuesRequest(t *testing.T) {
	h := newTestHarness(t, Settings{DefaultProvider: "fake"})
	defer h.server.Close()
	conn := h.dial(t)
	defer conn.Close()

	drainHandshake(t, conn)
	sendPlayerMessage(t, conn, "Steve", "#登录 secret")
	loginReply := readFrame(t, conn)
	if !strings.Contains(string(loginReply.Body), "登录成功") {
		t.Fatalf("login reply = %s", loginReply.Body)
	}

	sendPlayerMessage(t, conn, "Steve", "AGENT 聊天 给我一颗钻石")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for {
		envelope, err := h.broker.GetRequest(ctx)
		if err != nil {
			t.Fatalf("expected a submitted request: %v", err)
		}
		if envelope.Payload.Content == "给我一颗钻石" {
			return
		}
	}
}

func TestDevModeBypassesLogin(t *testing.T) {
	h := newTestHarness(t, Settings{DefaultProvider: "fake", DevMode: true})
	defer h.server.Close()
	conn := h.dial(t)
	defer conn.Close()

	drainHandshake(t, conn)
	sendPlayerMessage(t, conn, "Steve", "#命令 give @s diamond")

	reply := readFrame(t, conn)
	if reply.Header.MessagePurpose != protocol.PurposeCommandRequest {
		t.Fatalf("expected a dispatched commandRequest, got %+v", reply)
	}
}

func TestCommandResponseResolvesFuture(t *testing.T) {
	h := newTestHarness(t, Settings{DefaultProvider: "fake", DevMode: true})
	defer h.server.Close()
	conn := h.dial(t)
	defer conn.Close()

	drainHandshake(t, conn)

	future := models.NewCommandFuture()
	connID := firstRegisteredConnection(h)
	h.broker.SendResponse(connID, models.ResponseItem{
		Type:         models.ResponseRunCommand,
		Command:      "give @s diamond",
		RequestID:    "req-123",
		ResultFuture: future,
	})

	dispatched := readFrame(t, conn)
	if dispatched.Header.RequestID != "req-123" {
		t.Fatalf("dispatched frame header = %+v", dispatched.Header)
	}

	respBody, _ := json.Marshal(protocol.CommandResponseBody{StatusCode: 0, StatusMessage: "Gave 1 Diamond to Steve"})
	respFrame := protocol.Frame{Header: protocol.Header{RequestID: "req-123", MessagePurpose: protocol.PurposeCommandResponse}, Body: respBody}
	raw, _ := json.Marshal(respFrame)
	if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		t.Fatal(err)
	}

	waitCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	result, ok := future.Wait(waitCtx)
	if !ok {
		t.Fatal("future was not resolved in time")
	}
	if result != "Gave 1 Diamond to Steve" {
		t.Fatalf("result = %q", result)
	}
}

func drainHandshake(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	readFrame(t, conn)
	readFrame(t, conn)
	readFrame(t, conn)
}

func firstRegisteredConnection(h *testHarness) string {
	h.manager.mu.Lock()
	defer h.manager.mu.Unlock()
	for id := range h.manager.sessions {
		return id
	}
	return ""
}
