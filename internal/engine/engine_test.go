package engine

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/mcbe-gateway/agent-gateway/internal/providers"
	"github.com/mcbe-gateway/agent-gateway/internal/tools"
	"github.com/mcbe-gateway/agent-gateway/pkg/models"
)

// fakeModel is a hand-written Model stub whose behavior is scripted per
// call via streamScript/completeScript, letting tests drive multi-round
// tool-call exchanges deterministically.
type fakeModel struct {
	streamCalls   int
	completeCalls int

	// streamScript[i] is returned verbatim on the i-th StreamComplete call.
	streamScript []([]providers.CompletionChunk)
	// completeScript[i] is returned on the i-th Complete call.
	completeScript []*providers.CompletionResult
}

func (m *fakeModel) Name() string        { return "fake" }
func (m *fakeModel) ModelID() string     { return "fake-model" }
func (m *fakeModel) SupportsTools() bool { return true }
func (m *fakeModel) Close() error        { return nil }

func (m *fakeModel) StreamComplete(ctx context.Context, req providers.CompletionRequest) (<-chan providers.CompletionChunk, error) {
	idx := m.streamCalls
	m.streamCalls++
	ch := make(chan providers.CompletionChunk, len(m.streamScript[idx]))
	for _, c := range m.streamScript[idx] {
		ch <- c
	}
	close(ch)
	return ch, nil
}

func (m *fakeModel) Complete(ctx context.Context, req providers.CompletionRequest) (*providers.CompletionResult, error) {
	idx := m.completeCalls
	m.completeCalls++
	return m.completeScript[idx], nil
}

// fakeTool is a hand-written Tool stub returning a fixed result.
type fakeTool struct {
	name   string
	result *tools.Result
}

func (t *fakeTool) Name() string               { return t.name }
func (t *fakeTool) Description() string        { return "fake tool" }
func (t *fakeTool) Schema() json.RawMessage     { return json.RawMessage(`{"type":"object"}`) }
func (t *fakeTool) Execute(ctx context.Context, connID string, params json.RawMessage) (*tools.Result, error) {
	return t.result, nil
}

func collectEvents(t *testing.T, ch <-chan models.StreamEvent) []models.StreamEvent {
	t.Helper()
	var events []models.StreamEvent
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for stream events")
		}
	}
}

func TestRunStreamingModeBatchesSentences(t *testing.T) {
	model := &fakeModel{
		streamScript: [][]providers.CompletionChunk{
			{
				{TextDelta: "Hello there. "},
				{TextDelta: "How are you?"},
				{Done: true, InputTokens: 10, OutputTokens: 5},
			},
		},
	}
	registry := tools.NewRegistry()
	e := New(registry)

	events := collectEvents(t, e.Run(context.Background(), RunRequest{
		ConnectionID: "conn-1",
		Model:        model,
		UserPrompt:   "hi",
		Config:       Config{StreamSentenceMode: true},
	}))

	var content []string
	for _, ev := range events {
		if ev.Kind == models.EventContent && !ev.IsComplete() {
			content = append(content, ev.Content)
		}
	}
	if len(content) != 2 || content[0] != "Hello there. " || content[1] != "How are you?" {
		t.Fatalf("content events = %#v, want two sentences", content)
	}

	last := events[len(events)-1]
	if !last.IsComplete() {
		t.Fatalf("last event = %+v, want terminal completion event", last)
	}
	if last.Metadata.Usage.InputTokens != 10 || last.Metadata.Usage.OutputTokens != 5 {
		t.Fatalf("usage = %+v, want 10/5", last.Metadata.Usage)
	}
}

func TestRunStreamingModeFlushesTrailingTail(t *testing.T) {
	model := &fakeModel{
		streamScript: [][]providers.CompletionChunk{
			{
				{TextDelta: "no terminator here"},
				{Done: true},
			},
		},
	}
	e := New(tools.NewRegistry())

	events := collectEvents(t, e.Run(context.Background(), RunRequest{
		Model:      model,
		UserPrompt: "hi",
		Config:     Config{StreamSentenceMode: true},
	}))

	var content []string
	for _, ev := range events {
		if ev.Kind == models.EventContent && !ev.IsComplete() {
			content = append(content, ev.Content)
		}
	}
	if len(content) != 1 || content[0] != "no terminator here" {
		t.Fatalf("content events = %#v, want flushed tail", content)
	}
}

func TestRunStreamingModeExecutesToolCallThenCompletes(t *testing.T) {
	model := &fakeModel{
		streamScript: [][]providers.CompletionChunk{
			{
				{ToolCall: &providers.ToolCallWire{ID: "call-1", Name: "echo", Args: json.RawMessage(`{"text":"hi"}`)}},
				{Done: true},
			},
			{
				{TextDelta: "done."},
				{Done: true},
			},
		},
	}
	registry := tools.NewRegistry()
	registry.Register(&fakeTool{name: "echo", result: &tools.Result{Content: "hi"}})
	e := New(registry)

	events := collectEvents(t, e.Run(context.Background(), RunRequest{
		ConnectionID: "conn-1",
		Model:        model,
		UserPrompt:   "say hi",
		Config:       Config{StreamSentenceMode: true},
	}))

	var sawToolCall, sawToolResult bool
	for _, ev := range events {
		if ev.Kind == models.EventToolCall && ev.ToolCallID == "call-1" {
			sawToolCall = true
		}
		if ev.Kind == models.EventToolResult && ev.ToolCallID == "call-1" && ev.ToolResultPreview == "hi" {
			sawToolResult = true
		}
	}
	if !sawToolCall || !sawToolResult {
		t.Fatalf("events = %#v, want tool_call and tool_result events", events)
	}

	last := events[len(events)-1]
	if !last.IsComplete() {
		t.Fatalf("last event = %+v, want terminal completion event", last)
	}
	if len(last.Metadata.ToolEvents) != 1 || last.Metadata.ToolEvents[0].ToolName != "echo" {
		t.Fatalf("tool events = %#v, want one echo invocation", last.Metadata.ToolEvents)
	}
	if model.streamCalls != 2 {
		t.Fatalf("streamCalls = %d, want 2 (tool round + follow-up)", model.streamCalls)
	}
}

func TestRunNonStreamModeBatchesAndPaces(t *testing.T) {
	long := func(word string, n int) string {
		s := ""
		for i := 0; i < n; i++ {
			s += word
		}
		return s
	}
	text := long("a", 120) + ". " + long("b", 120) + "."
	model := &fakeModel{
		completeScript: []*providers.CompletionResult{
			{Text: text},
		},
	}
	e := New(tools.NewRegistry())

	start := time.Now()
	events := collectEvents(t, e.Run(context.Background(), RunRequest{
		Model:      model,
		UserPrompt: "hi",
		Config:     Config{StreamSentenceMode: false},
	}))
	elapsed := time.Since(start)

	var content []string
	for _, ev := range events {
		if ev.Kind == models.EventContent && !ev.IsComplete() {
			content = append(content, ev.Content)
		}
	}
	if len(content) == 0 {
		t.Fatal("no content events emitted")
	}
	if elapsed < nonStreamBatchDelay && len(content) > 1 {
		t.Fatalf("elapsed = %v, want at least one inter-batch delay between %d batches", elapsed, len(content))
	}
}

func TestRunExceedsMaxToolIterationsEmitsErrorNoCompletion(t *testing.T) {
	script := make([][]providers.CompletionChunk, 0, 3)
	for i := 0; i < 3; i++ {
		script = append(script, []providers.CompletionChunk{
			{ToolCall: &providers.ToolCallWire{ID: "call", Name: "loop", Args: json.RawMessage(`{}`)}},
			{Done: true},
		})
	}
	model := &fakeModel{streamScript: script}
	registry := tools.NewRegistry()
	registry.Register(&fakeTool{name: "loop", result: &tools.Result{Content: "again"}})
	e := New(registry)

	events := collectEvents(t, e.Run(context.Background(), RunRequest{
		Model:      model,
		UserPrompt: "loop forever",
		Config:     Config{StreamSentenceMode: true, MaxToolIterations: 2},
	}))

	last := events[len(events)-1]
	if last.Kind != models.EventError {
		t.Fatalf("last event kind = %v, want error", last.Kind)
	}
	for _, ev := range events {
		if ev.IsComplete() {
			t.Fatal("should not emit a completion event when max tool iterations is exceeded")
		}
	}
}

func TestRunPropagatesStreamChunkError(t *testing.T) {
	boom := context.DeadlineExceeded
	model := &fakeModel{
		streamScript: [][]providers.CompletionChunk{
			{{Err: boom}},
		},
	}
	e := New(tools.NewRegistry())

	events := collectEvents(t, e.Run(context.Background(), RunRequest{
		Model:      model,
		UserPrompt: "hi",
		Config:     Config{StreamSentenceMode: true},
	}))

	if len(events) != 1 || events[0].Kind != models.EventError {
		t.Fatalf("events = %#v, want a single error event", events)
	}
}

func TestSequenceIsMonotonic(t *testing.T) {
	model := &fakeModel{
		streamScript: [][]providers.CompletionChunk{
			{
				{TextDelta: "One. Two. Three."},
				{Done: true},
			},
		},
	}
	e := New(tools.NewRegistry())

	events := collectEvents(t, e.Run(context.Background(), RunRequest{
		Model:      model,
		UserPrompt: "hi",
		Config:     Config{StreamSentenceMode: true},
	}))

	for i := 1; i < len(events); i++ {
		if events[i].Sequence <= events[i-1].Sequence {
			t.Fatalf("event sequence not monotonic at index %d: %+v then %+v", i, events[i-1], events[i])
		}
	}
}
