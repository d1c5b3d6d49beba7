package worker

import (
	"context"
	"log/slog"
	"sync"

	"github.com/mcbe-gateway/agent-gateway/internal/broker"
	"github.com/mcbe-gateway/agent-gateway/internal/engine"
	"github.com/mcbe-gateway/agent-gateway/internal/observability"
	"github.com/mcbe-gateway/agent-gateway/internal/prompt"
	"github.com/mcbe-gateway/agent-gateway/internal/providers"
)

// Pool runs a fixed-size set of Workers against one Broker. Per-
// connection serialization comes from the broker's lock, not from the
// pool size, so Start's count can be tuned for throughput alone.
type Pool struct {
	broker    *broker.Broker
	providers *providers.Registry
	prompts   *prompt.Manager
	engine    *engine.Engine
	settings  Settings
	logger    *slog.Logger
	tracer    *observability.Tracer

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewPool returns a Pool ready to Start count workers against the given
// collaborators. tracer may be nil, in which case no provider-call spans
// are recorded.
func NewPool(b *broker.Broker, p *providers.Registry, pm *prompt.Manager, e *engine.Engine, settings Settings, logger *slog.Logger, tracer *observability.Tracer) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{
		broker:    b,
		providers: p,
		prompts:   pm,
		engine:    e,
		settings:  sanitizeSettings(settings),
		logger:    logger,
		tracer:    tracer,
	}
}

// Start spawns count worker goroutines. Calling Start on an already
// started pool is a no-op.
func (p *Pool) Start(ctx context.Context, count int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	if count <= 0 {
		count = 1
	}

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.started = true

	for i := 0; i < count; i++ {
		w := newWorker(i, p.broker, p.providers, p.prompts, p.engine, p.settings, p.logger, p.tracer)
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			w.Run(runCtx)
		}()
	}
}

// Stop cancels every worker's context and waits for them to return.
func (p *Pool) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.started = false
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	p.wg.Wait()
}
