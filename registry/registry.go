// Package registry implements the tool registry contract: named storage of
// tool handlers, definition listing for CompletionRequest.tools, and a
// configurable middleware chain around every invocation.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/agentrt/neuronloop/model"
	"github.com/agentrt/neuronloop/tools"
)

// Registry stores tool handlers by unique name and layers middleware
// around every Execute call.
type Registry struct {
	mu         sync.RWMutex
	byName     map[string]tools.Tool
	order      []string
	middleware []tools.Middleware

	// checkSchema, when non-nil, validates a tool's declared InputSchema
	// for well-formedness at Register time (see registry/schema.go). It
	// is a distinct, stricter concern from the engine-facing
	// SchemaValidator middleware, which deliberately stays shallow.
	checkSchema func(json.RawMessage) error
}

// Option configures a Registry at construction time.
type Option func(*Registry)

// WithSchemaWellFormedness installs a check run against every tool's
// InputSchema at Register time, rejecting malformed JSON Schema documents
// before they can reach a running loop.
func WithSchemaWellFormedness(check func(json.RawMessage) error) Option {
	return func(r *Registry) { r.checkSchema = check }
}

// New constructs an empty Registry.
func New(opts ...Option) *Registry {
	r := &Registry{byName: make(map[string]tools.Tool)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a tool under its own Name(). Registering a second tool
// under a name already in use is a programmer error and panics, matching
// the spec's "duplicate registration is a programmer error" wording.
func (r *Registry) Register(t tools.Tool) {
	if t == nil {
		panic("registry: Register called with nil tool")
	}
	name := t.Name()
	if name == "" {
		panic("registry: tool has empty name")
	}
	if r.checkSchema != nil {
		if err := r.checkSchema(t.InputSchema()); err != nil {
			panic(fmt.Sprintf("registry: tool %q has malformed input schema: %v", name, err))
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byName[name]; exists {
		panic(fmt.Sprintf("registry: tool %q already registered", name))
	}
	r.byName[name] = t
	r.order = append(r.order, name)
}

// Get returns the tool registered under name, or ok=false.
func (r *Registry) Get(name string) (tools.Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byName[name]
	return t, ok
}

// Definitions returns every registered tool's ToolDefinition in
// registration order, for inclusion in a CompletionRequest.
func (r *Registry) Definitions() []model.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]model.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.byName[name].Definition())
	}
	return defs
}

// AddMiddleware appends m to the chain. Middlewares added later wrap
// closer to the tool body (onion order, last added = innermost).
func (r *Registry) AddMiddleware(m tools.Middleware) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.middleware = append(r.middleware, m)
}

// Execute dispatches name with input through the middleware chain down to
// the tool body. Returns tools.NotFound(name) if no tool is registered.
func (r *Registry) Execute(ctx context.Context, name string, input json.RawMessage, tc *model.ToolContext) (model.ToolOutput, error) {
	r.mu.RLock()
	t, ok := r.byName[name]
	chain := make([]tools.Middleware, len(r.middleware))
	copy(chain, r.middleware)
	r.mu.RUnlock()

	if !ok {
		return model.ToolOutput{}, tools.NotFound(name)
	}

	call := func(name string, input json.RawMessage, tc *model.ToolContext) (model.ToolOutput, error) {
		return t.Call(ctx, input, tc)
	}

	// Build from innermost (last added) to outermost (first added) so that
	// chain[0] ends up as the outermost wrapper actually invoked below.
	next := call
	for i := len(chain) - 1; i >= 0; i-- {
		mw := chain[i]
		inner := next
		next = func(name string, input json.RawMessage, tc *model.ToolContext) (model.ToolOutput, error) {
			return mw(name, input, tc, inner)
		}
	}

	out, err := next(name, input, tc)
	if err != nil {
		if te, ok := tools.AsToolError(err); ok && te.Name == "" {
			te.Name = name
		}
	}
	return out, err
}
