// Package server assembles every collaborator package (broker, providers,
// prompt manager, history store, auth service, engine, worker pool,
// connection manager) into one running gateway process: a thin top-level
// type that owns construction, an HTTP mux carrying the WebSocket upgrade
// endpoint plus the ambient health/metrics endpoints, and a lock guarding
// against two instances sharing one config file.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mcbe-gateway/agent-gateway/internal/auth"
	"github.com/mcbe-gateway/agent-gateway/internal/broker"
	"github.com/mcbe-gateway/agent-gateway/internal/config"
	"github.com/mcbe-gateway/agent-gateway/internal/connection"
	"github.com/mcbe-gateway/agent-gateway/internal/engine"
	"github.com/mcbe-gateway/agent-gateway/internal/gatewaylock"
	"github.com/mcbe-gateway/agent-gateway/internal/history"
	"github.com/mcbe-gateway/agent-gateway/internal/observability"
	"github.com/mcbe-gateway/agent-gateway/internal/prompt"
	"github.com/mcbe-gateway/agent-gateway/internal/providers"
	"github.com/mcbe-gateway/agent-gateway/internal/tools"
	"github.com/mcbe-gateway/agent-gateway/internal/worker"
)

// Config configures a Server.
type Config struct {
	Config     config.Config
	Logger     *slog.Logger
	ConfigPath string

	// LockStateDir and LockTimeout override the single-instance lock's
	// defaults; both are primarily a test seam (a short timeout keeps a
	// contended-lock test fast) and left zero in production.
	LockStateDir string
	LockTimeout  time.Duration
}

// Server owns every gateway collaborator and the two listeners (WebSocket,
// HTTP observability) built from them.
type Server struct {
	cfg          config.Config
	configPath   string
	lockStateDir string
	lockTimeout  time.Duration
	logger       *slog.Logger

	broker     *broker.Broker
	providers  *providers.Registry
	prompts    *prompt.Manager
	history    *history.Store
	auth       *auth.Service
	engine     *engine.Engine
	workers    *worker.Pool
	connection *connection.Manager
	metrics    *observability.Metrics
	tracer     *observability.Tracer
	shutdown   func(context.Context) error

	upgrader websocket.Upgrader

	httpServer   *http.Server
	httpListener net.Listener

	lock *gatewaylock.Handle
}

// New builds every collaborator from cfg.Config but starts nothing.
func New(cfg Config) (*Server, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	providerConfigs := make(map[string]providers.Config, len(cfg.Config.Providers))
	for name, p := range cfg.Config.Providers {
		if !p.Enabled {
			continue
		}
		providerConfigs[name] = providers.Config{
			Provider: p.Driver,
			Model:    p.Model,
			BaseURL:  p.BaseURL,
			APIKey:   p.APIKey,
			Timeout:  p.Timeout,
			Enabled:  p.Enabled,
		}
	}

	b := broker.New(logger, cfg.Config.Queue.MaxSize, cfg.Config.Queue.ResponseBuffer)
	providerRegistry := providers.NewRegistry(nil)
	promptMgr := prompt.NewManager(logger, cfg.Config.Agent.DefaultTemplate)
	historyStore := history.NewStore("data/history")

	var authSvc *auth.Service
	if !cfg.Config.Auth.DevMode {
		authSvc = auth.NewService(cfg.Config.Auth.DefaultPassword, cfg.Config.Auth.JWTSecret, cfg.Config.Auth.JWTExpiration, cfg.Config.Auth.TokenFile)
	}

	toolRegistry := tools.NewRegistry()
	toolRegistry.Register(tools.NewRunMinecraftCommandTool(b))
	toolRegistry.Register(tools.NewWikiLookupTool(nil, ""))
	agentEngine := engine.New(toolRegistry)

	metrics := observability.NewMetrics()
	tracer, shutdownTracer := observability.NewTracer(observability.TraceConfig{
		ServiceName: "mcbe-gateway",
		Endpoint:    cfg.Config.Observability.OTELExporterEndpoint,
	})

	workerPool := worker.NewPool(b, providerRegistry, promptMgr, agentEngine, worker.Settings{
		DefaultProvider:      cfg.Config.Agent.DefaultProvider,
		Providers:            providerConfigs,
		MaxHistoryTurns:      cfg.Config.Queue.MaxHistoryTurns,
		StreamSentenceMode:   cfg.Config.Agent.StreamSentenceMode,
		ToolResponseVerbose:  cfg.Config.Agent.ToolResponseVerbose,
		MaxToolIterations:    cfg.Config.Agent.MaxToolIterations,
		MaxTokens:            cfg.Config.Agent.MaxTokens,
		EnableThinking:       cfg.Config.Agent.EnableThinking,
		ThinkingBudgetTokens: cfg.Config.Agent.ThinkingBudgetTokens,
	}, logger, tracer)

	connMgr := connection.NewManager(b, promptMgr, historyStore, authenticatorOrNil(authSvc), providerRegistry, connection.Settings{
		DefaultProvider:       cfg.Config.Agent.DefaultProvider,
		DefaultTemplate:       cfg.Config.Agent.DefaultTemplate,
		DevMode:               cfg.Config.Auth.DevMode,
		DedupExternalMessages: cfg.Config.Queue.DedupExternal,
		MaxHistoryTurns:       cfg.Config.Queue.MaxHistoryTurns,
		ScriptEventID:         cfg.Config.Agent.ScriptEventID,
		WelcomeMessage:        cfg.Config.Agent.WelcomeMessage,
		Providers:             providerConfigs,
	}, logger, metrics, tracer)

	return &Server{
		cfg:          cfg.Config,
		configPath:   cfg.ConfigPath,
		lockStateDir: cfg.LockStateDir,
		lockTimeout:  cfg.LockTimeout,
		logger:       logger,
		broker:     b,
		providers:  providerRegistry,
		prompts:    promptMgr,
		history:    historyStore,
		auth:       authSvc,
		engine:     agentEngine,
		workers:    workerPool,
		connection: connMgr,
		metrics:    metrics,
		tracer:     tracer,
		shutdown:   shutdownTracer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  8192,
			WriteBufferSize: 8192,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}, nil
}

// authenticatorOrNil returns nil through a typed-nil-safe conversion: a nil
// *auth.Service must become a nil connection.Authenticator interface value,
// not a non-nil interface wrapping a nil pointer.
func authenticatorOrNil(s *auth.Service) connection.Authenticator {
	if s == nil {
		return nil
	}
	return s
}

// Start acquires the single-instance lock, starts the worker pool, and
// begins serving the WebSocket and HTTP listeners. It does not block;
// callers select on ctx or call Stop to end the run.
func (s *Server) Start(ctx context.Context) error {
	stateDir := s.lockStateDir
	if stateDir == "" {
		stateDir = "data"
	}
	lock, err := gatewaylock.AcquireContext(ctx, gatewaylock.Options{
		StateDir:   stateDir,
		ConfigPath: s.configPath,
		Timeout:    s.lockTimeout,
	})
	if err != nil {
		return fmt.Errorf("server: acquiring gateway lock: %w", err)
	}
	s.lock = lock

	s.workers.Start(ctx, s.cfg.Queue.LLMWorkerCount)

	if err := s.startHTTPServer(); err != nil {
		return fmt.Errorf("server: starting http server: %w", err)
	}

	return nil
}

// Stop shuts down the HTTP listener, every live connection, the worker
// pool, the trace exporter, and releases the single-instance lock, in that
// order so in-flight requests drain before their collaborators stop.
func (s *Server) Stop(ctx context.Context) error {
	s.stopHTTPServer(ctx)
	s.connection.Shutdown()
	s.workers.Stop()
	if s.shutdown != nil {
		if err := s.shutdown(ctx); err != nil {
			s.logger.Warn("server: tracer shutdown", "error", err)
		}
	}
	if s.lock != nil {
		if err := s.lock.Release(); err != nil {
			s.logger.Warn("server: releasing gateway lock", "error", err)
		}
	}
	return nil
}

func (s *Server) startHTTPServer() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/healthz", s.handleHealthz)
	if s.cfg.Observability.MetricsAddr == "" {
		mux.Handle("/metrics", s.metrics.Handler())
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.httpServer = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	s.httpListener = listener

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.logger.Error("server: http server error", "error", err)
		}
	}()

	if s.cfg.Observability.MetricsAddr != "" {
		go s.startMetricsServer()
	}

	s.logger.Info("server: listening", "addr", addr)
	return nil
}

func (s *Server) startMetricsServer() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", s.metrics.Handler())
	srv := &http.Server{Addr: s.cfg.Observability.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.logger.Error("server: metrics server error", "error", err)
	}
}

func (s *Server) stopHTTPServer(ctx context.Context) {
	if s.httpServer == nil {
		return
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Warn("server: http shutdown", "error", err)
	}
	s.httpServer = nil
	s.httpListener = nil
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("server: websocket upgrade failed", "error", err)
		return
	}
	if s.cfg.WebSocket.MaxSize > 0 {
		ws.SetReadLimit(s.cfg.WebSocket.MaxSize)
	}
	if s.metrics != nil {
		s.metrics.ActiveConnections.Inc()
		defer s.metrics.ActiveConnections.Dec()
	}
	s.connection.Accept(ws)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"ok","queue_depth":%d,"active_connections":%d}`, s.broker.QueueLen(), s.broker.ConnectionCount())
}
