package prompt

import (
	"strings"
	"testing"
	"time"
)

func TestRenderSubstitutesBuiltinPlaceholders(t *testing.T) {
	tmpl := "player={player_name} conn={connection_id} provider={provider} model={model} ctx={context_length}"
	got := render(tmpl, RenderParams{
		ConnectionID:  "abcdefgh12345",
		PlayerName:    "Steve",
		Provider:      "anthropic",
		Model:         "claude-sonnet-4-20250514",
		ContextLength: 42,
		Now:           time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	})
	want := "player=Steve conn=abcdefgh provider=anthropic model=claude-sonnet-4-20250514 ctx=42"
	if got != want {
		t.Fatalf("render() = %q, want %q", got, want)
	}
}

func TestRenderTruncatesConnectionIDToEightChars(t *testing.T) {
	got := render("{connection_id}", RenderParams{ConnectionID: "0123456789abcdef"})
	if got != "01234567" {
		t.Fatalf("render() = %q, want 8-char prefix", got)
	}
}

func TestRenderSubstitutesCustomPlaceholderInContent(t *testing.T) {
	got := render("hello {custom_mood}!", RenderParams{
		CustomVariables: map[string]string{"custom_mood": "cheerful"},
	})
	if got != "hello cheerful!" {
		t.Fatalf("render() = %q, want substituted custom placeholder", got)
	}
}

func TestRenderAppendsUnusedCustomVariablesSection(t *testing.T) {
	got := render("no placeholders here", RenderParams{
		CustomVariables: map[string]string{"custom_faction": "red", "custom_rank": "captain"},
	})
	if !strings.Contains(got, "--- 自定义变量 ---") {
		t.Fatalf("render() = %q, want custom variable section header", got)
	}
	if !strings.Contains(got, "faction: red") || !strings.Contains(got, "rank: captain") {
		t.Fatalf("render() = %q, want prefix-stripped custom variable entries", got)
	}
	if strings.Contains(got, "custom_faction") {
		t.Fatalf("render() = %q, should display custom variables without their prefix", got)
	}
}

func TestRenderLeavesUnknownPlaceholdersUntouched(t *testing.T) {
	got := render("value={not_a_real_variable}", RenderParams{})
	if got != "value={not_a_real_variable}" {
		t.Fatalf("render() = %q, want unknown placeholder left as-is", got)
	}
}

func TestExtractPlaceholders(t *testing.T) {
	got := extractPlaceholders("{a} text {b} more {a}")
	if len(got) != 2 {
		t.Fatalf("len(extractPlaceholders()) = %d, want 2", len(got))
	}
	if _, ok := got["a"]; !ok {
		t.Fatal("extractPlaceholders() missing \"a\"")
	}
	if _, ok := got["b"]; !ok {
		t.Fatal("extractPlaceholders() missing \"b\"")
	}
}
