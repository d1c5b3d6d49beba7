package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// MaxNameLength and MaxParamsSize bound a tool call before it reaches a
// concrete Tool.
const (
	MaxNameLength = 256
	MaxParamsSize = 1 << 20
)

// Registry is a thread-safe name-keyed set of Tools. Each registered
// tool's Schema() is compiled once at Register time so a malformed
// params document fails fast with a schema violation instead of reaching
// the tool's own Execute.
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]Tool
	schemas map[string]*jsonschema.Schema
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool), schemas: make(map[string]*jsonschema.Schema)}
}

// Register adds or replaces a tool by name, compiling its declared schema.
// A tool whose Schema() does not compile is still registered (Execute then
// falls back to running it unvalidated) since a documentation-only schema
// quirk shouldn't make an otherwise-working tool unreachable.
func (r *Registry) Register(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Name()] = tool
	delete(r.schemas, tool.Name())

	compiler := jsonschema.NewCompiler()
	resource := tool.Name() + ".json"
	if err := compiler.AddResource(resource, bytes.NewReader(tool.Schema())); err != nil {
		return
	}
	schema, err := compiler.Compile(resource)
	if err != nil {
		return
	}
	r.schemas[tool.Name()] = schema
}

// Get returns the named tool.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// Defs returns every registered tool's provider-facing definition, stable
// order by name.
func (r *Registry) Defs() []Def {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]Def, 0, len(r.tools))
	for _, t := range r.tools {
		defs = append(defs, Def{Name: t.Name(), Description: t.Description(), Schema: t.Schema()})
	}
	sortDefs(defs)
	return defs
}

// Def is a tool's provider-facing name/description/schema, independent of
// any specific provider's wire representation.
type Def struct {
	Name        string
	Description string
	Schema      json.RawMessage
}

// Execute looks up name and runs it for connID with params, applying
// name-length and params-size guards before ever reaching a concrete
// Tool.
func (r *Registry) Execute(ctx context.Context, connID, name string, params json.RawMessage) (*Result, error) {
	if len(name) > MaxNameLength {
		return &Result{Content: fmt.Sprintf("tool name exceeds maximum length of %d characters", MaxNameLength), IsError: true}, nil
	}
	if len(params) > MaxParamsSize {
		return &Result{Content: fmt.Sprintf("tool parameters exceed maximum size of %d bytes", MaxParamsSize), IsError: true}, nil
	}

	tool, ok := r.Get(name)
	if !ok {
		return &Result{Content: "tool not found: " + name, IsError: true}, nil
	}

	if err := r.validate(name, params); err != nil {
		return &Result{Content: fmt.Sprintf("invalid parameters for %s: %v", name, err), IsError: true}, nil
	}

	return tool.Execute(ctx, connID, params)
}

// validate checks params against name's compiled schema, if one exists. An
// empty params document is treated as an empty object so schema-less
// zero-argument tools validate as called for.
func (r *Registry) validate(name string, params json.RawMessage) error {
	r.mu.RLock()
	schema, ok := r.schemas[name]
	r.mu.RUnlock()
	if !ok {
		return nil
	}

	raw := params
	if len(bytes.TrimSpace(raw)) == 0 {
		raw = json.RawMessage("{}")
	}
	var decoded interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return fmt.Errorf("not valid JSON: %w", err)
	}
	return schema.Validate(decoded)
}

func sortDefs(defs []Def) {
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
}
