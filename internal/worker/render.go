package worker

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// formatToolCallLine renders one tool call as the "● name(args)" preview
// line, keeping at most toolCallMaxArgs keys in sorted order and
// truncating string values.
func formatToolCallLine(name string, args json.RawMessage) string {
	normalized := normalizeToolArgs(args)

	keys := make([]string, 0, len(normalized))
	for k := range normalized {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if len(keys) > toolCallMaxArgs {
		keys = keys[:toolCallMaxArgs]
	}

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, formatToolArgValue(normalized[k])))
	}
	return fmt.Sprintf("● %s(%s)", name, strings.Join(parts, ", "))
}

// normalizeToolArgs decodes raw into a map even when it arrived as a
// JSON-encoded string (some provider drivers hand back args that way).
func normalizeToolArgs(raw json.RawMessage) map[string]any {
	if len(raw) == 0 {
		return nil
	}

	var direct map[string]any
	if err := json.Unmarshal(raw, &direct); err == nil {
		return direct
	}

	var nested string
	if err := json.Unmarshal(raw, &nested); err == nil {
		var fromString map[string]any
		if err := json.Unmarshal([]byte(nested), &fromString); err == nil {
			return fromString
		}
	}
	return nil
}

func formatToolArgValue(v any) string {
	if s, ok := v.(string); ok {
		return truncateRunes(s, toolCallArgValueMaxLen)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
