package protocol

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/mcbe-gateway/agent-gateway/pkg/models"
)

func TestTellrawCommandEscaping(t *testing.T) {
	got := TellrawCommand(`say "hi": 50%`)
	want := `tellraw @a {"rawtext":[{"text":"say \"hi\"： 50\%"}]}`
	if got != want {
		t.Fatalf("TellrawCommand = %q, want %q", got, want)
	}
}

func TestScripteventCommand(t *testing.T) {
	got := ScripteventCommand("agentgateway:message", "hello")
	if got != "scriptevent agentgateway:message hello" {
		t.Fatalf("ScripteventCommand = %q", got)
	}
}

func TestCommandRequestMessageShape(t *testing.T) {
	raw, err := CommandRequestMessage("req-1", "give @s diamond")
	if err != nil {
		t.Fatalf("CommandRequestMessage: %v", err)
	}
	frame, err := ParseFrame(raw)
	if err != nil {
		t.Fatalf("ParseFrame: %v", err)
	}
	if frame.Header.MessagePurpose != PurposeCommandRequest || frame.Header.RequestID != "req-1" {
		t.Fatalf("header = %+v", frame.Header)
	}
	var body commandRequestBody
	if err := json.Unmarshal(frame.Body, &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body.CommandLine != "give @s diamond" || body.Origin.Type != "player" || body.Version != commandVersion {
		t.Fatalf("body = %+v", body)
	}
}

func TestResolveCommandResult(t *testing.T) {
	cases := []struct {
		body CommandResponseBody
		want string
	}{
		{CommandResponseBody{StatusCode: 0, StatusMessage: "Gave 1 Diamond to Tester"}, "Gave 1 Diamond to Tester"},
		{CommandResponseBody{StatusCode: 0}, "命令执行成功"},
		{CommandResponseBody{StatusCode: -2147483648, StatusMessage: "boom"}, "命令执行失败(statusCode=-2147483648): boom"},
	}
	for _, c := range cases {
		if got := ResolveCommandResult(c.body); got != c.want {
			t.Fatalf("ResolveCommandResult(%+v) = %q, want %q", c.body, got, c.want)
		}
	}
}

func TestIsExternalDuplicate(t *testing.T) {
	frame := &Frame{Header: Header{MessagePurpose: PurposeEvent, EventNameLower: EventPlayerMessage}}
	if !IsExternalDuplicate(frame, PlayerMessageBody{Sender: "外部"}) {
		t.Fatal("expected external sender to be flagged as duplicate")
	}
	if IsExternalDuplicate(frame, PlayerMessageBody{Sender: "Steve"}) {
		t.Fatal("expected regular sender to not be flagged")
	}
}

func TestCommandRegistryResolveChatPrefix(t *testing.T) {
	r := NewCommandRegistry()

	spec, content, ok := r.Resolve("AGENT 聊天 给我一颗钻石")
	if !ok || spec.Type != CommandChat || content != "给我一颗钻石" {
		t.Fatalf("Resolve chat = (%v, %q, %v)", spec, content, ok)
	}

	spec, content, ok = r.Resolve("#登录 123456")
	if !ok || spec.Type != CommandLogin || content != "123456" {
		t.Fatalf("Resolve login = (%v, %q, %v)", spec, content, ok)
	}

	spec, content, ok = r.Resolve("AGENT 脚本聊天 你好")
	if !ok || spec.Type != CommandChatScript || content != "你好" {
		t.Fatalf("Resolve chat_script = (%v, %q, %v)", spec, content, ok)
	}

	if _, _, ok := r.Resolve("just chatting, not a command"); ok {
		t.Fatal("expected no match for plain chat text")
	}
}

func TestCommandRegistryResolveAlias(t *testing.T) {
	r := NewCommandRegistry()
	spec, content, ok := r.Resolve("#help")
	if !ok || spec.Type != CommandHelp || content != "" {
		t.Fatalf("Resolve alias = (%v, %q, %v)", spec, content, ok)
	}
}

func TestRendererSuppressesThinkingEnd(t *testing.T) {
	r := NewRenderer("")
	_, ok := r.CommandLine(&models.StreamChunk{ChunkType: models.ChunkThinkingEnd})
	if ok {
		t.Fatal("expected thinking_end to be suppressed")
	}
}

func TestRendererContentAndErrorFraming(t *testing.T) {
	r := NewRenderer("")

	line, ok := r.CommandLine(&models.StreamChunk{ChunkType: models.ChunkContent, Content: "你好", Delivery: models.DeliveryTellraw})
	if !ok || !strings.Contains(line, "§a你好") {
		t.Fatalf("content line = %q", line)
	}

	line, ok = r.CommandLine(&models.StreamChunk{ChunkType: models.ChunkError, Content: "出错了", Delivery: models.DeliveryTellraw})
	if !ok || !strings.Contains(line, "§c✖ 出错了") {
		t.Fatalf("error line = %q", line)
	}
}

func TestRendererScripteventDelivery(t *testing.T) {
	r := NewRenderer("custom:event")
	line, ok := r.CommandLine(&models.StreamChunk{ChunkType: models.ChunkContent, Content: "hi", Delivery: models.DeliveryScriptevent})
	if !ok || !strings.HasPrefix(line, "scriptevent custom:event ") {
		t.Fatalf("scriptevent line = %q", line)
	}
}
