// Package connection implements the connection manager: it accepts
// MCBE WebSocket sessions, registers them with the broker and prompt
// manager, runs one response-sender task per connection, and resolves
// outbound command futures against inbound commandResponse frames. It
// also owns the player-text command dispatch, since both sit directly
// above the same per-connection socket.
package connection

import (
	"time"

	"github.com/mcbe-gateway/agent-gateway/internal/providers"
)

const (
	defaultScriptEventID   = "agentgateway:message"
	defaultWelcomeMessage  = "已连接到 Agent Gateway，发送 #帮助 查看可用命令。"
	defaultMaxHistoryTurns = 20

	// senderDrainTimeout bounds how long Shutdown waits for a connection's
	// sender loop to notice cancellation and exit.
	senderDrainTimeout = 5 * time.Second
)

// Authenticator verifies the login password and issues a per-connection
// token for the "login" command. internal/auth's Service satisfies this
// with its configured default_password/jwt_secret; a minimal interface
// here keeps this package decoupled from that concrete construction.
type Authenticator interface {
	VerifyPassword(password string) bool
	IssueToken(connectionID string) (string, error)
}

// Settings configures a Manager. Mirrors internal/worker.Settings's
// sanitize-on-construct discipline.
type Settings struct {
	DefaultProvider       string
	DefaultTemplate       string
	DevMode               bool
	DedupExternalMessages bool
	MaxHistoryTurns       int
	ScriptEventID         string
	WelcomeMessage        string
	Providers             map[string]providers.Config
}

func sanitizeSettings(s Settings) Settings {
	if s.DefaultTemplate == "" {
		s.DefaultTemplate = "default"
	}
	if s.MaxHistoryTurns <= 0 {
		s.MaxHistoryTurns = defaultMaxHistoryTurns
	}
	if s.ScriptEventID == "" {
		s.ScriptEventID = defaultScriptEventID
	}
	if s.WelcomeMessage == "" {
		s.WelcomeMessage = defaultWelcomeMessage
	}
	if s.Providers == nil {
		s.Providers = make(map[string]providers.Config)
	}
	return s
}
