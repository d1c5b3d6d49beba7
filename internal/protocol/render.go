package protocol

import "github.com/mcbe-gateway/agent-gateway/pkg/models"

// defaultScriptEventID is the scripting-engine event id scriptevent
// delivery dispatches to when no override is configured.
const defaultScriptEventID = "agentgateway:message"

// Renderer turns a StreamChunk into an outbound MCBE command line,
// applying a chunk_type → color + prefix rendering table and the
// delivery-mode framing (tellraw vs scriptevent).
type Renderer struct {
	ScriptEventID string
}

// NewRenderer returns a Renderer. An empty scriptEventID falls back to
// defaultScriptEventID.
func NewRenderer(scriptEventID string) *Renderer {
	if scriptEventID == "" {
		scriptEventID = defaultScriptEventID
	}
	return &Renderer{ScriptEventID: scriptEventID}
}

// CommandLine renders chunk into a commandLine string. ok is false for
// chunk types the rendering table suppresses entirely (thinking_end).
func (r *Renderer) CommandLine(chunk *models.StreamChunk) (commandLine string, ok bool) {
	text, ok := r.renderText(chunk)
	if !ok {
		return "", false
	}
	if chunk.Delivery == models.DeliveryScriptevent {
		return ScripteventCommand(r.ScriptEventID, text), true
	}
	return TellrawCommand(text), true
}

func (r *Renderer) renderText(chunk *models.StreamChunk) (string, bool) {
	switch chunk.ChunkType {
	case models.ChunkContent:
		return colorGreen + chunk.Content, true
	case models.ChunkReasoning:
		return colorGray + "✻ " + chunk.Content, true
	case models.ChunkToolCall:
		return colorYellow + chunk.Content, true
	case models.ChunkToolResult:
		return colorYellow + chunk.Content, true
	case models.ChunkError:
		return colorRed + "✖ " + chunk.Content, true
	case models.ChunkThinkingStart:
		return colorGray + "✻ 思考中...", true
	case models.ChunkThinkingEnd:
		return "", false
	default:
		return "", false
	}
}
