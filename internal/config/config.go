// Package config loads and validates the gateway's YAML configuration:
// os.ExpandEnv over the raw file bytes before YAML decoding, defaults
// applied post-decode, and a single exported Config struct composed of
// per-concern sub-structs.
package config

import (
	"fmt"
	"time"
)

// Config is the full gateway configuration surface: transport, queueing,
// agent defaults, auth, logging, and observability, plus the named
// provider map.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Queue         QueueConfig         `yaml:"queue"`
	Agent         AgentConfig         `yaml:"agent"`
	Auth          AuthConfig          `yaml:"auth"`
	WebSocket     WebSocketConfig     `yaml:"websocket"`
	Logging       LoggingConfig       `yaml:"logging"`
	Observability ObservabilityConfig `yaml:"observability"`
	Providers     map[string]Provider `yaml:"providers"`
}

// ServerConfig configures the MCBE WebSocket listener.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// QueueConfig configures the broker's priority queue and worker pool, and
// the conversational defaults every connection starts with.
type QueueConfig struct {
	MaxSize         int  `yaml:"queue_max_size"`
	LLMWorkerCount  int  `yaml:"llm_worker_count"`
	ResponseBuffer  int  `yaml:"response_buffer_size"`
	MaxHistoryTurns int  `yaml:"max_history_turns"`
	DedupExternal   bool `yaml:"dedup_external_messages"`
}

// AgentConfig configures the default model selection and AgentEngine run
// behavior.
type AgentConfig struct {
	DefaultProvider      string `yaml:"default_provider"`
	DefaultTemplate      string `yaml:"default_template"`
	StreamSentenceMode   bool   `yaml:"stream_sentence_mode"`
	ToolResponseVerbose  bool   `yaml:"tool_response_verbose"`
	MaxToolIterations    int    `yaml:"max_tool_iterations"`
	MaxTokens            int    `yaml:"max_tokens"`
	EnableThinking       bool   `yaml:"enable_thinking"`
	ThinkingBudgetTokens int    `yaml:"thinking_budget_tokens"`
	ScriptEventID        string `yaml:"script_event_id"`
	WelcomeMessage       string `yaml:"welcome_message"`
}

// AuthConfig configures the login collaborator: jwt_expiration,
// default_password, jwt_secret, plus dev_mode.
type AuthConfig struct {
	DevMode         bool          `yaml:"dev_mode"`
	DefaultPassword string        `yaml:"default_password"`
	JWTSecret       string        `yaml:"jwt_secret"`
	JWTExpiration   time.Duration `yaml:"jwt_expiration"`
	TokenFile       string        `yaml:"token_file"`
}

// WebSocketConfig tunes the transport: ping interval/timeout, close
// timeout, max frame size, and the outbound queue depth.
type WebSocketConfig struct {
	PingInterval time.Duration `yaml:"ping_interval"`
	PingTimeout  time.Duration `yaml:"ping_timeout"`
	CloseTimeout time.Duration `yaml:"close_timeout"`
	MaxSize      int64         `yaml:"max_size"`
	MaxQueue     int           `yaml:"max_queue"`
}

// LoggingConfig configures the structured logger built at startup.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ObservabilityConfig is an ambient addition for the Prometheus metrics
// listener and optional OTLP trace export, off by default.
type ObservabilityConfig struct {
	MetricsAddr         string `yaml:"metrics_addr"`
	OTELExporterEndpoint string `yaml:"otel_exporter_endpoint"`
}

// Provider is one named entry of the providers map, fed to
// internal/providers.Config after resolution.
type Provider struct {
	Driver  string        `yaml:"driver"`
	Model   string        `yaml:"model"`
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
	Enabled bool          `yaml:"enabled"`
}

// Default returns a Config with every field defaulted, matching the values
// the rest of this module falls back to so that an empty config file and
// "no config file" behave identically.
func Default() Config {
	return Config{
		Server: ServerConfig{Host: "0.0.0.0", Port: 8080},
		Queue: QueueConfig{
			MaxSize:         100,
			LLMWorkerCount:  4,
			ResponseBuffer:  64,
			MaxHistoryTurns: 20,
			DedupExternal:   true,
		},
		Agent: AgentConfig{
			DefaultProvider:    "anthropic",
			DefaultTemplate:    "default",
			StreamSentenceMode: true,
			MaxToolIterations:  10,
			MaxTokens:          4096,
		},
		Auth: AuthConfig{
			JWTExpiration: 24 * time.Hour,
			TokenFile:     "data/tokens.json",
		},
		WebSocket: WebSocketConfig{
			PingInterval: 30 * time.Second,
			PingTimeout:  10 * time.Second,
			CloseTimeout: 5 * time.Second,
			MaxSize:      10 << 20,
			MaxQueue:     32,
		},
		Logging: LoggingConfig{Level: "info", Format: "json"},
	}
}

// Validate reports an error for every structurally invalid setting this
// package can check without contacting a provider.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: invalid server.port %d", c.Server.Port)
	}
	if c.Queue.MaxSize <= 0 {
		return fmt.Errorf("config: queue.queue_max_size must be positive")
	}
	if c.Queue.LLMWorkerCount <= 0 {
		return fmt.Errorf("config: queue.llm_worker_count must be positive")
	}
	if len(c.Providers) == 0 && !c.Auth.DevMode {
		return fmt.Errorf("config: no providers configured")
	}
	if _, ok := c.Providers[c.Agent.DefaultProvider]; !ok && len(c.Providers) > 0 {
		return fmt.Errorf("config: default_provider %q not present in providers", c.Agent.DefaultProvider)
	}
	if !c.Auth.DevMode && c.Auth.DefaultPassword == "" && c.Auth.JWTSecret == "" {
		return fmt.Errorf("config: auth.default_password or auth.jwt_secret is required unless dev_mode is enabled")
	}
	return nil
}
