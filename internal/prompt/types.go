// Package prompt implements per-connection system prompt templates and the
// variable substitution used to render them for a given connection.
package prompt

import "errors"

// ErrTemplateNotFound is returned when a named template does not exist.
var ErrTemplateNotFound = errors.New("prompt: template not found")

// ErrInvalidTemplateName is returned when a caller supplies an empty or
// otherwise unusable template name.
var ErrInvalidTemplateName = errors.New("prompt: invalid template name")

// Template is a named, reusable system prompt body containing
// "{placeholder}"-style variables.
type Template struct {
	Name        string
	Description string
	Content     string
}

// builtinToolUsage is the constant guidance string substituted for the
// {tool_usage} placeholder.
const builtinToolUsage = `可用工具:
- run_minecraft_command(command): 在 Minecraft 服务器上执行一条命令并等待其响应。
仅在确有需要影响游戏世界或查询游戏状态时调用工具，否则直接用文字回复玩家。`

// defaultWelcomeTemplate is the canonical 2.2.0 welcome/system template,
// the highest-version variant across source copies.
const defaultWelcomeTemplate = `你是 Minecraft 基岩版服务器上的智能助手，名为「{player_name}」的同行伙伴。

当前连接: {connection_id}
模型: {provider}/{model}
服务器时间: {server_time}
对话上下文长度: {context_length}

{tool_usage}

请使用简洁、友好的中文回复玩家，除非玩家明确使用其他语言提问。`

// BuiltinTemplates returns the default template set every Manager starts
// with, keyed by name.
func BuiltinTemplates() map[string]*Template {
	return map[string]*Template{
		"default": {
			Name:        "default",
			Description: "2.2.0 默认欢迎/系统提示模板",
			Content:     defaultWelcomeTemplate,
		},
	}
}
