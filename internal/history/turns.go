// Package history implements the conversation manager: turn counting,
// trimming, auto-compression, reasoning stripping, and session
// save/load/list/delete against a flat-file JSON store.
package history

import "github.com/mcbe-gateway/agent-gateway/pkg/models"

// CountTurns returns the number of user turns (messages containing at
// least one user-prompt part) in history.
func CountTurns(msgs []models.ModelMessage) int {
	count := 0
	for _, m := range msgs {
		if m.IsUserTurn() {
			count++
		}
	}
	return count
}

// TrimHistory keeps the suffix of msgs starting at the maxTurns-th most
// recent user turn, then extends the cut backward so it never splits a
// tool-call/tool-return pair and carries along an immediately preceding
// system-prompt message. Returns a copy; msgs is never mutated.
func TrimHistory(msgs []models.ModelMessage, maxTurns int) []models.ModelMessage {
	if maxTurns <= 0 || len(msgs) == 0 {
		return cloneMessages(msgs)
	}

	userTurnIdx := make([]int, 0, len(msgs))
	for i, m := range msgs {
		if m.IsUserTurn() {
			userTurnIdx = append(userTurnIdx, i)
		}
	}
	if len(userTurnIdx) <= maxTurns {
		return cloneMessages(msgs)
	}

	cut := userTurnIdx[len(userTurnIdx)-maxTurns]
	cut = extendForToolPairs(msgs, cut)
	if cut > 0 && messageIsSystemPromptOnly(msgs[cut-1]) {
		cut--
	}
	return cloneMessages(msgs[cut:])
}

// extendForToolPairs walks cut backward until every tool-return part kept
// in msgs[cut:] has its matching tool-call part also kept.
func extendForToolPairs(msgs []models.ModelMessage, cut int) int {
	for {
		keptCalls := map[string]bool{}
		keptReturns := map[string]bool{}
		for _, m := range msgs[cut:] {
			for _, id := range m.ToolCallIDs() {
				keptCalls[id] = true
			}
			for _, id := range m.ToolReturnIDs() {
				keptReturns[id] = true
			}
		}

		missing := map[string]bool{}
		for id := range keptReturns {
			if !keptCalls[id] {
				missing[id] = true
			}
		}
		if len(missing) == 0 {
			return cut
		}

		newCut := cut
		for i := cut - 1; i >= 0; i-- {
			for _, id := range msgs[i].ToolCallIDs() {
				if missing[id] && i < newCut {
					newCut = i
				}
			}
		}
		if newCut == cut {
			// Matching tool-call isn't in history at all; nothing more to extend.
			return cut
		}
		cut = newCut
	}
}

func messageIsSystemPromptOnly(m models.ModelMessage) bool {
	for _, p := range m.Parts {
		if p.Kind == models.PartSystemPrompt {
			return true
		}
	}
	return false
}

// StripReasoning clears Content on every thinking part and ReasoningContent
// on every part, returning a new slice. Messages with no thinking/reasoning
// content are reused unmodified rather than cloned, keeping the common
// (plain-text) path allocation-free.
func StripReasoning(msgs []models.ModelMessage) []models.ModelMessage {
	out := make([]models.ModelMessage, len(msgs))
	for i, m := range msgs {
		if !messageHasReasoning(m) {
			out[i] = m
			continue
		}
		stripped := m.CloneShallow()
		for j := range stripped.Parts {
			stripped.Parts[j].ReasoningContent = ""
			if stripped.Parts[j].Kind == models.PartThinking {
				stripped.Parts[j].Content = ""
			}
		}
		out[i] = stripped
	}
	return out
}

func messageHasReasoning(m models.ModelMessage) bool {
	for _, p := range m.Parts {
		if p.Kind == models.PartThinking || p.ReasoningContent != "" {
			return true
		}
	}
	return false
}

func cloneMessages(msgs []models.ModelMessage) []models.ModelMessage {
	out := make([]models.ModelMessage, len(msgs))
	for i, m := range msgs {
		out[i] = m.CloneShallow()
	}
	return out
}
