package protocol

import (
	"sort"
	"strings"
	"sync"
)

// CommandType discriminates the ten player-text commands this gateway
// recognizes, routed by CommandRegistry.Resolve.
type CommandType string

const (
	CommandLogin       CommandType = "login"
	CommandChat        CommandType = "chat"
	CommandChatScript  CommandType = "chat_script"
	CommandContext     CommandType = "context"
	CommandTemplate    CommandType = "template"
	CommandSetting     CommandType = "setting"
	CommandSwitchModel CommandType = "switch_model"
	CommandRunCommand  CommandType = "run_command"
	CommandHelp        CommandType = "help"
	CommandSave        CommandType = "save"
)

// CommandSpec is one entry of the command registry: a prefix, its
// aliases, and the display text for the help command.
type CommandSpec struct {
	Type        CommandType
	Prefix      string
	Aliases     []string
	Description string
	Usage       string
}

// CommandRegistry maps player-text prefixes (and their aliases) to a
// CommandSpec: prefix-of-message routing rather than named-command
// dispatch, since MCBE player chat has no separate "command name" token
// boundary.
type CommandRegistry struct {
	mu    sync.RWMutex
	specs []*CommandSpec // sorted by descending prefix length for greedy longest-match
}

// NewCommandRegistry returns a registry seeded with the ten built-in
// command specs.
func NewCommandRegistry() *CommandRegistry {
	r := &CommandRegistry{}
	for _, spec := range defaultCommandSpecs() {
		r.Register(spec)
	}
	return r
}

func defaultCommandSpecs() []*CommandSpec {
	return []*CommandSpec{
		{Type: CommandLogin, Prefix: "#登录", Aliases: []string{"#login"}, Description: "验证密码并登录", Usage: "#登录 <密码>"},
		{Type: CommandHelp, Prefix: "#帮助", Aliases: []string{"#help"}, Description: "显示命令帮助", Usage: "#帮助"},
		{Type: CommandContext, Prefix: "#上下文", Aliases: []string{"#context"}, Description: "管理对话上下文", Usage: "#上下文 <启用|关闭|状态|压缩|保存|恢复 <id>|列表|删除 <id>|清除>"},
		{Type: CommandTemplate, Prefix: "#模板", Aliases: []string{"#template"}, Description: "查看或切换提示模板", Usage: "#模板 [list|<名称>]"},
		{Type: CommandSetting, Prefix: "#设置", Aliases: []string{"#set"}, Description: "设置自定义变量", Usage: "#设置 变量 <名称> <值>"},
		{Type: CommandSwitchModel, Prefix: "#模型", Aliases: []string{"#model"}, Description: "切换服务提供方", Usage: "#模型 <提供方名称>"},
		{Type: CommandRunCommand, Prefix: "#命令", Aliases: []string{"#cmd"}, Description: "直接执行一条 MCBE 命令", Usage: "#命令 <命令行>"},
		{Type: CommandSave, Prefix: "#保存", Aliases: []string{"#save"}, Description: "保存当前会话", Usage: "#保存"},
		{Type: CommandChat, Prefix: "AGENT 聊天", Aliases: []string{"AGENT CHAT"}, Description: "向代理发送聊天消息（游戏内文本回复）", Usage: "AGENT 聊天 <内容>"},
		{Type: CommandChatScript, Prefix: "AGENT 脚本聊天", Aliases: []string{"AGENT SCRIPT"}, Description: "向代理发送聊天消息（脚本事件回复）", Usage: "AGENT 脚本聊天 <内容>"},
	}
}

// Register adds spec to the registry, keeping specs ordered by descending
// prefix length so a longer, more specific prefix is tried before a
// shorter one it happens to start with.
func (r *CommandRegistry) Register(spec *CommandSpec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.specs = append(r.specs, spec)
	sort.SliceStable(r.specs, func(i, j int) bool {
		return len(r.specs[i].Prefix) > len(r.specs[j].Prefix)
	})
}

// List returns every registered spec, sorted by prefix for stable help
// output.
func (r *CommandRegistry) List() []*CommandSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*CommandSpec, len(r.specs))
	copy(out, r.specs)
	sort.Slice(out, func(i, j int) bool { return out[i].Prefix < out[j].Prefix })
	return out
}

// Resolve matches message against the registered prefixes and aliases,
// trying an exact prefix match first and then each alias. On a hit it
// returns the matched spec and the trimmed content following the prefix.
func (r *CommandRegistry) Resolve(message string) (*CommandSpec, string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	trimmed := strings.TrimSpace(message)
	for _, spec := range r.specs {
		if strings.HasPrefix(trimmed, spec.Prefix) {
			return spec, strings.TrimSpace(trimmed[len(spec.Prefix):]), true
		}
	}
	for _, spec := range r.specs {
		for _, alias := range spec.Aliases {
			if strings.HasPrefix(trimmed, alias) {
				return spec, strings.TrimSpace(trimmed[len(alias):]), true
			}
		}
	}
	return nil, "", false
}
