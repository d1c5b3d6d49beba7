package history

import (
	"fmt"
	"math"
	"strings"

	"github.com/mcbe-gateway/agent-gateway/pkg/models"
)

const (
	compressSummaryPrefix  = "[历史摘要] "
	compressMaxEntries     = 10
	compressUserEntryLen   = 50
	compressAssistantLen   = 100
	compressEntrySeparator = " | "
)

// AutoCompressThreshold returns floor(0.8 * maxTurns), the turn count at
// or above which ShouldAutoCompress reports true.
func AutoCompressThreshold(maxTurns int) int {
	return int(math.Floor(0.8 * float64(maxTurns)))
}

// ShouldAutoCompress reports whether msgs' turn count has reached
// AutoCompressThreshold(maxTurns), or force is set.
func ShouldAutoCompress(msgs []models.ModelMessage, maxTurns int, force bool) bool {
	if force {
		return true
	}
	return CountTurns(msgs) >= AutoCompressThreshold(maxTurns)
}

// Compress keeps the most recent AutoCompressThreshold(maxTurns) turns of
// msgs verbatim (using the same trim-boundary rules as TrimHistory) and
// collapses everything older into a single synthetic user-prompt summary
// message prepended to the kept tail.
func Compress(msgs []models.ModelMessage, maxTurns int) []models.ModelMessage {
	threshold := AutoCompressThreshold(maxTurns)
	kept := TrimHistory(msgs, threshold)
	if len(kept) == len(msgs) {
		// Nothing older to summarize.
		return kept
	}

	cutIndex := len(msgs) - len(kept)
	older := msgs[:cutIndex]
	summary := buildSummary(older)
	if summary == "" {
		return kept
	}

	summaryMsg := models.ModelMessage{
		Parts: []models.MessagePart{{Kind: models.PartUserPrompt, Content: compressSummaryPrefix + summary}},
	}
	return append([]models.ModelMessage{summaryMsg}, kept...)
}

func buildSummary(older []models.ModelMessage) string {
	var entries []string
	for _, m := range older {
		if len(entries) >= compressMaxEntries {
			break
		}
		for _, p := range m.Parts {
			if len(entries) >= compressMaxEntries {
				break
			}
			switch p.Kind {
			case models.PartUserPrompt:
				entries = append(entries, truncateWithEllipsis(p.Content, compressUserEntryLen))
			case models.PartText:
				entries = append(entries, truncateRunes(normalizeWhitespace(p.Content), compressAssistantLen))
			}
		}
	}
	return strings.Join(entries, compressEntrySeparator)
}

func truncateWithEllipsis(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return fmt.Sprintf("%s…", s)
	}
	return fmt.Sprintf("%s…", string(r[:n]))
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
