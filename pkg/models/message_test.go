package models

import "testing"

func TestModelMessageIsUserTurn(t *testing.T) {
	cases := []struct {
		name string
		msg  ModelMessage
		want bool
	}{
		{"empty", ModelMessage{}, false},
		{"user prompt", ModelMessage{Parts: []MessagePart{{Kind: PartUserPrompt, Content: "hi"}}}, true},
		{"text only", ModelMessage{Parts: []MessagePart{{Kind: PartText, Content: "hi"}}}, false},
		{"mixed", ModelMessage{Parts: []MessagePart{
			{Kind: PartUserPrompt, Content: "hi"},
			{Kind: PartText, Content: "there"},
		}}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.msg.IsUserTurn(); got != tc.want {
				t.Errorf("IsUserTurn() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestModelMessageCloneShallowIndependence(t *testing.T) {
	original := ModelMessage{Parts: []MessagePart{{Kind: PartText, Content: "a"}}}
	clone := original.CloneShallow()
	clone.Parts[0].Content = "b"
	if original.Parts[0].Content != "a" {
		t.Fatalf("mutating clone mutated original: %q", original.Parts[0].Content)
	}
}

func TestToolCallAndReturnIDs(t *testing.T) {
	msg := ModelMessage{Parts: []MessagePart{
		{Kind: PartToolCall, ToolCallID: "a"},
		{Kind: PartToolCall, ToolCallID: "b"},
		{Kind: PartToolReturn, ToolCallID: "a"},
	}}
	calls := msg.ToolCallIDs()
	returns := msg.ToolReturnIDs()
	if len(calls) != 2 || calls[0] != "a" || calls[1] != "b" {
		t.Fatalf("unexpected call ids: %v", calls)
	}
	if len(returns) != 1 || returns[0] != "a" {
		t.Fatalf("unexpected return ids: %v", returns)
	}
}
