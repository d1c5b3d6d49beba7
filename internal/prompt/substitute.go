package prompt

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// placeholderPattern matches "{name}" style placeholders.
var placeholderPattern = regexp.MustCompile(`\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)

const customVariablePrefix = "custom_"

// RenderParams carries the per-call values substituted into a template's
// builtin placeholders.
type RenderParams struct {
	ConnectionID    string
	PlayerName      string
	Provider        string
	Model           string
	ContextLength   int
	CustomVariables map[string]string
	Now             time.Time
}

// extractPlaceholders returns the set of distinct placeholder names present
// in content.
func extractPlaceholders(content string) map[string]struct{} {
	names := make(map[string]struct{})
	for _, m := range placeholderPattern.FindAllStringSubmatch(content, -1) {
		names[m[1]] = struct{}{}
	}
	return names
}

// render substitutes params' builtin and custom variables into tmpl, then
// appends a human-readable section for any custom variable that has no
// matching placeholder in the content.
func render(tmpl string, params RenderParams) string {
	at := params.Now
	if at.IsZero() {
		at = time.Now()
	}

	connID := params.ConnectionID
	if len(connID) > 8 {
		connID = connID[:8]
	}

	values := map[string]string{
		"player_name":    params.PlayerName,
		"connection_id":  connID,
		"provider":       params.Provider,
		"model":          params.Model,
		"server_time":    at.Local().Format("2006-01-02 15:04:05"),
		"context_length": strconv.Itoa(params.ContextLength),
		"tool_usage":     builtinToolUsage,
	}
	for k, v := range params.CustomVariables {
		values[k] = v
	}

	present := extractPlaceholders(tmpl)
	out := placeholderPattern.ReplaceAllStringFunc(tmpl, func(match string) string {
		name := match[1 : len(match)-1]
		if v, ok := values[name]; ok {
			return v
		}
		return match
	})

	var unused []string
	for name, v := range params.CustomVariables {
		if !strings.HasPrefix(name, customVariablePrefix) {
			continue
		}
		if _, used := present[name]; used {
			continue
		}
		unused = append(unused, fmt.Sprintf("%s: %s", strings.TrimPrefix(name, customVariablePrefix), v))
	}
	if len(unused) == 0 {
		return out
	}
	sort.Strings(unused)
	return out + "\n\n--- 自定义变量 ---\n" + strings.Join(unused, "\n")
}
