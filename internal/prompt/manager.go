package prompt

import (
	"log/slog"
	"sort"
	"sync"
	"time"
)

// connState is one connection's selected template and custom variable
// map.
type connState struct {
	templateName string
	variables    map[string]string
}

// Manager owns the named template set and every connection's template
// selection: a mutex-guarded map with Get/List/Register. Templates are
// defined in configuration, not discovered on disk, so there is no file
// watching here.
type Manager struct {
	logger *slog.Logger

	mu        sync.RWMutex
	templates map[string]*Template

	connMu sync.Mutex
	conns  map[string]*connState

	defaultTemplate string
}

// NewManager returns a Manager seeded with BuiltinTemplates, defaulting
// every connection to defaultTemplate ("default" if empty).
func NewManager(logger *slog.Logger, defaultTemplate string) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if defaultTemplate == "" {
		defaultTemplate = "default"
	}
	return &Manager{
		logger:          logger,
		templates:       BuiltinTemplates(),
		conns:           make(map[string]*connState),
		defaultTemplate: defaultTemplate,
	}
}

// Register adds or replaces a named template.
func (m *Manager) Register(tmpl *Template) error {
	if tmpl == nil || tmpl.Name == "" {
		return ErrInvalidTemplateName
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.templates[tmpl.Name] = tmpl
	return nil
}

// Get returns the named template.
func (m *Manager) Get(name string) (*Template, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tmpl, ok := m.templates[name]
	return tmpl, ok
}

// List returns every registered template name, sorted.
func (m *Manager) List() []*Template {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Template, 0, len(m.templates))
	for _, tmpl := range m.templates {
		out = append(out, tmpl)
	}
	sortTemplatesByName(out)
	return out
}

// RegisterConnection establishes connID's template state at the manager's
// default template with no custom variables. Calling it again for an
// already-known connection is a no-op.
func (m *Manager) RegisterConnection(connID string) {
	m.connMu.Lock()
	defer m.connMu.Unlock()
	if _, ok := m.conns[connID]; ok {
		return
	}
	m.conns[connID] = &connState{
		templateName: m.defaultTemplate,
		variables:    make(map[string]string),
	}
}

// UnregisterConnection discards connID's template state.
func (m *Manager) UnregisterConnection(connID string) {
	m.connMu.Lock()
	defer m.connMu.Unlock()
	delete(m.conns, connID)
}

// SwitchTemplate changes connID's active template. It returns
// ErrTemplateNotFound if name is not registered.
func (m *Manager) SwitchTemplate(connID, name string) error {
	if _, ok := m.Get(name); !ok {
		return ErrTemplateNotFound
	}
	m.connMu.Lock()
	defer m.connMu.Unlock()
	state, ok := m.conns[connID]
	if !ok {
		state = &connState{variables: make(map[string]string)}
		m.conns[connID] = state
	}
	state.templateName = name
	return nil
}

// CurrentTemplate returns connID's active template name, defaulting to the
// manager's default template for an unregistered connection.
func (m *Manager) CurrentTemplate(connID string) string {
	m.connMu.Lock()
	defer m.connMu.Unlock()
	if state, ok := m.conns[connID]; ok {
		return state.templateName
	}
	return m.defaultTemplate
}

// SetCustomVariable sets a connection-scoped custom variable. name is
// stored as given; callers pass the "custom_"-prefixed form so it can both
// appear as a template placeholder and be recognized as "custom" for the
// unused-variable summary section.
func (m *Manager) SetCustomVariable(connID, name, value string) {
	m.connMu.Lock()
	defer m.connMu.Unlock()
	state, ok := m.conns[connID]
	if !ok {
		state = &connState{templateName: m.defaultTemplate, variables: make(map[string]string)}
		m.conns[connID] = state
	}
	state.variables[name] = value
}

// CustomVariables returns a copy of connID's custom variable map.
func (m *Manager) CustomVariables(connID string) map[string]string {
	m.connMu.Lock()
	defer m.connMu.Unlock()
	state, ok := m.conns[connID]
	if !ok {
		return nil
	}
	out := make(map[string]string, len(state.variables))
	for k, v := range state.variables {
		out[k] = v
	}
	return out
}

// RestoreCustomVariables replaces connID's custom variable map wholesale,
// used when a saved session is reloaded.
func (m *Manager) RestoreCustomVariables(connID string, vars map[string]string) {
	m.connMu.Lock()
	defer m.connMu.Unlock()
	state, ok := m.conns[connID]
	if !ok {
		state = &connState{templateName: m.defaultTemplate}
		m.conns[connID] = state
	}
	restored := make(map[string]string, len(vars))
	for k, v := range vars {
		restored[k] = v
	}
	state.variables = restored
}

// BuildSystemPrompt renders connID's active template with the supplied
// per-request values plus its stored custom variables.
func (m *Manager) BuildSystemPrompt(connID, playerName, provider, model string, contextLength int) (string, error) {
	m.connMu.Lock()
	state, ok := m.conns[connID]
	if !ok {
		state = &connState{templateName: m.defaultTemplate, variables: make(map[string]string)}
		m.conns[connID] = state
	}
	templateName := state.templateName
	vars := make(map[string]string, len(state.variables))
	for k, v := range state.variables {
		vars[k] = v
	}
	m.connMu.Unlock()

	tmpl, ok := m.Get(templateName)
	if !ok {
		return "", ErrTemplateNotFound
	}

	return render(tmpl.Content, RenderParams{
		ConnectionID:    connID,
		PlayerName:      playerName,
		Provider:        provider,
		Model:           model,
		ContextLength:   contextLength,
		CustomVariables: vars,
		Now:             time.Now(),
	}), nil
}

func sortTemplatesByName(templates []*Template) {
	sort.Slice(templates, func(i, j int) bool {
		return templates[i].Name < templates[j].Name
	})
}
