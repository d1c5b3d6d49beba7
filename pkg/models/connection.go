package models

import "sync"

// Connection is the per-session state for one MCBE WebSocket link. It is
// created on socket accept and destroyed on socket close; history lives
// separately, owned by the broker, but the connection carries the handle
// fields needed to address it.
type Connection struct {
	ID string

	mu             sync.RWMutex
	authenticated  bool
	playerName     string
	contextEnabled bool
	provider       string
	template       string
	customVars     map[string]string
	authToken      string
}

// NewConnection returns a freshly accepted connection with context enabled
// and no player name bound yet (it is late-bound from the first
// PlayerMessage event).
func NewConnection(id, defaultProvider, defaultTemplate string) *Connection {
	return &Connection{
		ID:             id,
		contextEnabled: true,
		provider:       defaultProvider,
		template:       defaultTemplate,
		customVars:     make(map[string]string),
	}
}

func (c *Connection) Authenticated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.authenticated
}

func (c *Connection) SetAuthenticated(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.authenticated = v
}

func (c *Connection) AuthToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.authToken
}

func (c *Connection) SetAuthToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.authToken = token
}

func (c *Connection) PlayerName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.playerName
}

// BindPlayerName sets the player name only if it has not already been
// bound, matching the "late-bound from first player event" lifecycle.
func (c *Connection) BindPlayerName(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.playerName == "" {
		c.playerName = name
	}
}

func (c *Connection) ContextEnabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.contextEnabled
}

func (c *Connection) SetContextEnabled(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.contextEnabled = v
}

func (c *Connection) Provider() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.provider
}

func (c *Connection) SetProvider(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.provider = name
}

func (c *Connection) Template() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.template
}

func (c *Connection) SetTemplate(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.template = name
}

// CustomVar returns a copy of the current custom variable map to prevent
// aliasing, matching the broker's value-semantics discipline for history.
func (c *Connection) CustomVars() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]string, len(c.customVars))
	for k, v := range c.customVars {
		out[k] = v
	}
	return out
}

func (c *Connection) SetCustomVar(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.customVars[key] = value
}
