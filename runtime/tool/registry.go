package tool

import (
	"fmt"
	"sort"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Registry maps stable tool names to handler factories. Registration is
// explicit and compile-time checked: callers pass a concrete factory, so a
// missing tool fails at wiring time rather than via runtime type lookup.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

type entry struct {
	descriptor Descriptor
	factory    Factory
	compiled   *jsonschema.Schema
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Register adds a tool under its descriptor name. It validates the descriptor
// invariants and compiles the parameter schema so malformed registrations are
// rejected at process start. Registering an existing name fails; use Replace
// to swap implementations.
func (r *Registry) Register(d Descriptor, factory Factory) error {
	if err := d.Validate(); err != nil {
		return err
	}
	if factory == nil {
		return fmt.Errorf("tool %q: factory is required", d.Name)
	}
	compiled, err := compileSchema(d)
	if err != nil {
		return fmt.Errorf("tool %q: invalid parameter schema: %w", d.Name, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[d.Name]; ok {
		return fmt.Errorf("tool %q: already registered", d.Name)
	}
	r.entries[d.Name] = &entry{descriptor: d, factory: factory, compiled: compiled}
	return nil
}

// Replace swaps the factory for an already registered tool, keeping its
// descriptor. Callers resolving the tool by name observe the new
// implementation on their next Resolve.
func (r *Registry) Replace(name string, factory Factory) error {
	if factory == nil {
		return fmt.Errorf("tool %q: factory is required", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[name]
	if !ok {
		return fmt.Errorf("tool %q: not registered", name)
	}
	e.factory = factory
	return nil
}

// Resolve builds a handler instance for the named tool. The boolean reports
// whether the tool is registered; factory errors surface as a nil handler
// with ok true and the error.
func (r *Registry) Resolve(name string) (Handler, bool, error) {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	h, err := e.factory()
	if err != nil {
		return nil, true, fmt.Errorf("tool %q: build handler: %w", name, err)
	}
	return h, true, nil
}

// Descriptor returns the descriptor registered under name.
func (r *Registry) Descriptor(name string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return Descriptor{}, false
	}
	return e.descriptor, true
}

// List returns all registered descriptors sorted by name.
func (r *Registry) List() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.descriptor)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// WireTools returns the discovery documents for all registered tools sorted
// by name.
func (r *Registry) WireTools() []WireTool {
	descriptors := r.List()
	out := make([]WireTool, len(descriptors))
	for i, d := range descriptors {
		out[i] = d.Wire()
	}
	return out
}

// compileSchema compiles the descriptor parameter schema as JSON Schema. The
// compiled form is retained so future revisions can delegate structural
// validation to the compiler.
func compileSchema(d Descriptor) (*jsonschema.Schema, error) {
	doc := d.Schema.JSONSchema()
	c := jsonschema.NewCompiler()
	if err := c.AddResource("schema.json", doc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	schema, err := c.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}
