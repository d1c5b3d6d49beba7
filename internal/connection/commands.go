package connection

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mcbe-gateway/agent-gateway/internal/history"
	"github.com/mcbe-gateway/agent-gateway/internal/protocol"
	"github.com/mcbe-gateway/agent-gateway/pkg/models"
)

// defaultRequestPriority is used for every player-submitted chat turn;
// tool-driven or system work never competes on this queue.
const defaultRequestPriority = 0

// routeMessage resolves message against the command table and dispatches
// it, gating every command but login behind authentication unless dev
// mode is enabled.
func (m *Manager) routeMessage(sess *session, message string) {
	spec, content, ok := m.commands.Resolve(message)
	if !ok {
		return
	}

	if spec.Type != protocol.CommandLogin && !sess.conn.Authenticated() && !m.settings.DevMode {
		m.sendError(sess, "请先登录")
		return
	}

	switch spec.Type {
	case protocol.CommandLogin:
		m.handleLogin(sess, content)
	case protocol.CommandChat:
		m.handleChat(sess, content, models.DeliveryTellraw)
	case protocol.CommandChatScript:
		m.handleChat(sess, content, models.DeliveryScriptevent)
	case protocol.CommandContext:
		m.handleContext(sess, content)
	case protocol.CommandTemplate:
		m.handleTemplate(sess, content)
	case protocol.CommandSetting:
		m.handleSetting(sess, content)
	case protocol.CommandSwitchModel:
		m.handleSwitchModel(sess, content)
	case protocol.CommandRunCommand:
		m.handleRunCommand(sess, content)
	case protocol.CommandHelp:
		m.handleHelp(sess)
	case protocol.CommandSave:
		m.handleSave(sess)
	}
}

func (m *Manager) handleLogin(sess *session, password string) {
	if m.auth == nil || !m.auth.VerifyPassword(password) {
		m.sendError(sess, "密码错误")
		return
	}
	token, err := m.auth.IssueToken(sess.conn.ID)
	if err != nil {
		m.sendError(sess, "登录失败，请稍后重试")
		return
	}
	sess.conn.SetAuthToken(token)
	sess.conn.SetAuthenticated(true)
	m.sendInfo(sess, "登录成功")
}

func (m *Manager) handleChat(sess *session, content string, delivery models.DeliveryMode) {
	if content == "" {
		m.sendError(sess, "用法: AGENT 聊天 <内容>")
		return
	}
	req := models.ChatRequest{
		ConnectionID: sess.conn.ID,
		Content:      content,
		PlayerName:   sess.conn.PlayerName(),
		UseContext:   sess.conn.ContextEnabled(),
		Provider:     sess.conn.Provider(),
		Delivery:     delivery,
	}
	if err := m.broker.SubmitRequest(sess.conn.ID, req, defaultRequestPriority); err != nil {
		if m.metrics != nil {
			m.metrics.RequestsRejected.Inc()
		}
		m.sendError(sess, "服务器繁忙，请稍后重试")
		return
	}
	if m.metrics != nil {
		m.metrics.RequestsSubmitted.WithLabelValues(req.Provider).Inc()
	}
}

func (m *Manager) handleContext(sess *session, content string) {
	connID := sess.conn.ID
	fields := strings.Fields(content)
	sub := ""
	if len(fields) > 0 {
		sub = fields[0]
	}

	switch sub {
	case "启用":
		sess.conn.SetContextEnabled(true)
		m.sendInfo(sess, "已启用上下文")

	case "关闭":
		sess.conn.SetContextEnabled(false)
		m.broker.ClearConversationHistory(connID)
		m.sendInfo(sess, "已关闭上下文并清空历史")

	case "状态":
		hist, _ := m.broker.GetConversationHistory(connID)
		turns := history.CountTurns(hist)
		tokens := estimateTokens(hist)
		m.sendInfo(sess, fmt.Sprintf("上下文: %s | 轮次: %d | 估计 token 用量: %d", enabledLabel(sess.conn.ContextEnabled()), turns, tokens))

	case "压缩":
		hist, _ := m.broker.GetConversationHistory(connID)
		m.broker.SetConversationHistory(connID, history.Compress(hist, m.settings.MaxHistoryTurns))
		m.sendInfo(sess, "已压缩上下文")

	case "保存":
		m.handleSave(sess)

	case "恢复":
		if len(fields) < 2 {
			m.sendError(sess, "用法: #上下文 恢复 <id>")
			return
		}
		m.restoreSession(sess, fields[1])

	case "列表":
		m.listSessions(sess)

	case "删除":
		if len(fields) < 2 {
			m.sendError(sess, "用法: #上下文 删除 <id>")
			return
		}
		if err := m.store.Delete(fields[1]); err != nil {
			m.sendError(sess, fmt.Sprintf("删除失败: %v", err))
			return
		}
		m.sendInfo(sess, "已删除会话 "+fields[1])

	case "清除":
		m.broker.ClearConversationHistory(connID)
		m.sendInfo(sess, "已清空历史")

	default:
		m.sendError(sess, "用法: #上下文 <启用|关闭|状态|压缩|保存|恢复 <id>|列表|删除 <id>|清除>")
	}
}

func (m *Manager) restoreSession(sess *session, sessionID string) {
	saved, err := m.store.Load(sessionID)
	if err != nil {
		m.sendError(sess, fmt.Sprintf("恢复失败: %v", err))
		return
	}
	m.broker.SetConversationHistory(sess.conn.ID, saved.Messages)
	sess.conn.SetTemplate(saved.Metadata.Template)
	m.prompts.RestoreCustomVariables(sess.conn.ID, saved.Metadata.CustomVariables)
	m.sendInfo(sess, "已恢复会话 "+sessionID)
}

func (m *Manager) listSessions(sess *session) {
	summaries, err := m.store.List()
	if err != nil {
		m.sendError(sess, fmt.Sprintf("列出会话失败: %v", err))
		return
	}
	if len(summaries) == 0 {
		m.sendInfo(sess, "没有已保存的会话")
		return
	}
	lines := make([]string, 0, len(summaries))
	for _, s := range summaries {
		lines = append(lines, fmt.Sprintf("%s (%s/%s, %d 条消息)", s.SessionID, s.Provider, s.Model, s.MessageCount))
	}
	m.sendInfo(sess, strings.Join(lines, " | "))
}

func (m *Manager) handleTemplate(sess *session, content string) {
	switch content {
	case "":
		m.sendInfo(sess, "当前模板: "+m.prompts.CurrentTemplate(sess.conn.ID))
	case "list":
		tmpls := m.prompts.List()
		names := make([]string, 0, len(tmpls))
		for _, t := range tmpls {
			names = append(names, t.Name)
		}
		m.sendInfo(sess, strings.Join(names, ", "))
	default:
		if err := m.prompts.SwitchTemplate(sess.conn.ID, content); err != nil {
			m.sendError(sess, fmt.Sprintf("切换模板失败: %v", err))
			return
		}
		sess.conn.SetTemplate(content)
		m.sendInfo(sess, "已切换到模板: "+content)
	}
}

func (m *Manager) handleSetting(sess *session, content string) {
	const marker = "变量"
	if !strings.HasPrefix(content, marker) {
		m.sendError(sess, "用法: #设置 变量 <名称> <值>")
		return
	}
	rest := strings.TrimSpace(content[len(marker):])

	var name, value string
	if idx := strings.Index(rest, "="); idx >= 0 {
		name, value = strings.TrimSpace(rest[:idx]), strings.TrimSpace(rest[idx+1:])
	} else if idx := strings.Index(rest, " "); idx >= 0 {
		name, value = strings.TrimSpace(rest[:idx]), strings.TrimSpace(rest[idx+1:])
	}
	if name == "" {
		m.sendError(sess, "用法: #设置 变量 <名称> <值>")
		return
	}
	m.prompts.SetCustomVariable(sess.conn.ID, "custom_"+name, value)
	m.sendInfo(sess, fmt.Sprintf("已设置变量 %s", name))
}

func (m *Manager) handleSwitchModel(sess *session, content string) {
	name := strings.TrimSpace(content)
	if _, ok := m.settings.Providers[name]; !ok {
		m.sendError(sess, "未知的服务提供方: "+name)
		return
	}
	sess.conn.SetProvider(name)
	m.broker.ClearConversationHistory(sess.conn.ID)
	m.sendInfo(sess, "已切换到服务提供方: "+name)
}

func (m *Manager) handleRunCommand(sess *session, content string) {
	if content == "" {
		m.sendError(sess, "用法: #命令 <命令行>")
		return
	}
	m.broker.SendResponse(sess.conn.ID, models.ResponseItem{
		Type:    models.ResponseRunCommand,
		Command: content,
	})
}

func (m *Manager) handleHelp(sess *session) {
	lines := make([]string, 0)
	for _, spec := range m.commands.List() {
		lines = append(lines, fmt.Sprintf("%s - %s (%s)", spec.Prefix, spec.Description, spec.Usage))
	}
	sort.Strings(lines)
	m.sendInfo(sess, strings.Join(lines, " | "))
}

func (m *Manager) handleSave(sess *session) {
	connID := sess.conn.ID
	hist, _ := m.broker.GetConversationHistory(connID)
	now := time.Now()
	sessionID := history.SessionID(connID, now)

	saved := models.SavedSession{
		SessionID:    sessionID,
		PlayerName:   sess.conn.PlayerName(),
		Provider:     sess.conn.Provider(),
		Model:        m.resolveModelID(sess.conn.Provider()),
		CreatedAt:    now,
		UpdatedAt:    now,
		MessageCount: len(hist),
		Messages:     hist,
		Metadata: models.SessionMetadata{
			Template:        sess.conn.Template(),
			CustomVariables: m.prompts.CustomVariables(connID),
		},
	}
	if err := m.store.Save(sessionID, saved); err != nil {
		m.sendError(sess, fmt.Sprintf("保存失败: %v", err))
		return
	}
	m.sendInfo(sess, "已保存会话: "+sessionID)
}

// sendInfo and sendError push a standalone chunk onto the connection's own
// response channel so it flows through the same sender/rendering path as
// engine-driven output, rather than writing to the socket directly.
func (m *Manager) sendInfo(sess *session, text string) {
	m.sendChunk(sess, models.ChunkContent, text)
}

func (m *Manager) sendError(sess *session, text string) {
	m.sendChunk(sess, models.ChunkError, text)
}

func (m *Manager) sendChunk(sess *session, chunkType models.ChunkType, text string) {
	m.broker.SendResponse(sess.conn.ID, models.ResponseItem{
		Type: models.ResponseGameMessage,
		Chunk: &models.StreamChunk{
			ConnectionID: sess.conn.ID,
			ChunkType:    chunkType,
			Content:      text,
			Delivery:     models.DeliveryTellraw,
		},
	})
}

// resolveModelID looks up the cached Model for providerName without
// triggering a construction failure path; used only to annotate saved
// sessions, so a miss is silently left blank.
func (m *Manager) resolveModelID(providerName string) string {
	if m.providers == nil {
		return ""
	}
	cfg, ok := m.settings.Providers[providerName]
	if !ok {
		return ""
	}
	model, err := m.providers.GetModel(cfg)
	if err != nil {
		return ""
	}
	return model.ModelID()
}

func enabledLabel(enabled bool) string {
	if enabled {
		return "已启用"
	}
	return "已关闭"
}

// estimateTokens is a rough token-count heuristic (characters / 4) over
// every textual field in hist, used only for the "状态" subcommand's
// human-readable estimate — not fed to any provider.
func estimateTokens(hist []models.ModelMessage) int {
	chars := 0
	for _, msg := range hist {
		for _, part := range msg.Parts {
			chars += len(part.Content) + len(part.ReasoningContent) + len(part.ToolArgs) + len(part.ToolResult)
		}
	}
	return chars / 4
}
