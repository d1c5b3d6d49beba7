package providers

import (
	"fmt"
	"net/http"
	"sync"
	"time"
)

// Constructor builds a Model for a given Config and shared *http.Client.
// Registered per provider name in NewRegistry.
type Constructor func(cfg Config, client *http.Client) (Model, error)

type cachedEntry struct {
	model  Model
	client *http.Client
}

// Registry caches Model handles and their backing HTTP clients by
// (provider, model, base_url, timeout). Safe for concurrent use by the
// worker pool.
type Registry struct {
	mu           sync.Mutex
	constructors map[string]Constructor
	cache        map[cacheKey]*cachedEntry
	exchangeHook ExchangeHook
}

// NewRegistry returns a registry with the built-in drivers registered.
// exchangeHook, if non-nil, receives a redacted RawExchange record for
// each non-streaming HTTP round trip made by a registry-managed client —
// a debug raw request/response trail.
// Streaming calls bypass the recording transport: buffering a streamed
// response body to build a RawExchange would defeat streaming entirely,
// so provider drivers issue those requests on the client's own transport
// untouched.
func NewRegistry(exchangeHook ExchangeHook) *Registry {
	r := &Registry{
		constructors: make(map[string]Constructor),
		cache:        make(map[cacheKey]*cachedEntry),
		exchangeHook: exchangeHook,
	}
	r.Register("anthropic", newAnthropicModel)
	r.Register("openai", newOpenAIModel)
	r.Register("deepseek", newOpenAIModel) // OpenAI-compatible wire API
	r.Register("bedrock", newBedrockModel)
	r.Register("ollama", newOllamaModel)
	return r
}

// Register adds or replaces the constructor for a provider name.
func (r *Registry) Register(provider string, ctor Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.constructors[provider] = ctor
}

// GetModel returns the cached Model for cfg, constructing and caching it
// (and its HTTP client) on first use.
func (r *Registry) GetModel(cfg Config) (Model, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotConfigured, cfg.Provider)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := cfg.key()
	if entry, ok := r.cache[key]; ok {
		return entry.model, nil
	}

	ctor, ok := r.constructors[cfg.Provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotFound, cfg.Provider)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	client := &http.Client{Timeout: timeout}
	if r.exchangeHook != nil {
		client.Transport = &recordingTransport{base: http.DefaultTransport, hook: r.exchangeHook}
	}

	model, err := ctor(cfg, client)
	if err != nil {
		return nil, err
	}

	r.cache[key] = &cachedEntry{model: model, client: client}
	return model, nil
}

// WarmupSettings is the subset of gateway settings needed to pre-build the
// default provider's model at startup.
type WarmupSettings struct {
	DefaultProvider Config
}

// WarmupModels pre-builds the default provider's model so the first chat
// request doesn't pay construction latency.
func (r *Registry) WarmupModels(settings WarmupSettings) error {
	_, err := r.GetModel(settings.DefaultProvider)
	return err
}

// Shutdown closes all cached clients' idle connections and empties the
// cache. Safe to call once during graceful shutdown.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, entry := range r.cache {
		entry.client.CloseIdleConnections()
		_ = entry.model.Close()
		delete(r.cache, key)
	}
}

// Len reports the number of cached (provider,model,base_url,timeout)
// entries. Exposed for tests and the `info` CLI subcommand.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cache)
}
