package tooling

import (
	"fmt"

	ports "github.com/ZanzyTHEbar/sparkchat/sparkchat/chat/ports"
	"github.com/xeipuuv/gojsonschema"
)

type entry struct {
	decl   Declaration
	schema *gojsonschema.Schema
	proc   Procedure
}

// Registry is the static mapping from tool name to declaration and
// procedure. All registrations happen at process start; after Freeze the
// table is immutable and safe for concurrent reads without locking.
type Registry struct {
	entries map[string]*entry
	order   []string
	frozen  bool
}

// NewRegistry creates an empty, unfrozen registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Register adds a tool. The declaration's parameter schema is compiled once
// here; dispatch never invokes a procedure with unvalidated input.
func (r *Registry) Register(decl Declaration, proc Procedure) error {
	if r.frozen {
		return fmt.Errorf("%w: cannot register %q", ErrRegistryFrozen, decl.Name)
	}
	if decl.Name == "" {
		return ErrEmptyToolName
	}
	if proc == nil {
		return fmt.Errorf("%w: %q", ErrNilProcedure, decl.Name)
	}
	if _, exists := r.entries[decl.Name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateTool, decl.Name)
	}

	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(decl.JSONSchema()))
	if err != nil {
		return fmt.Errorf("compile schema for %q: %w", decl.Name, err)
	}

	r.entries[decl.Name] = &entry{decl: decl, schema: schema, proc: proc}
	r.order = append(r.order, decl.Name)
	return nil
}

// Freeze closes the registry for further registration.
func (r *Registry) Freeze() {
	r.frozen = true
}

// Declarations returns every registered declaration in registration order.
func (r *Registry) Declarations() []Declaration {
	out := make([]Declaration, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.entries[name].decl)
	}
	return out
}

// Specs renders the registry as provider tool specs, in registration order.
func (r *Registry) Specs() []ports.ToolSpec {
	out := make([]ports.ToolSpec, 0, len(r.order))
	for _, name := range r.order {
		e := r.entries[name]
		out = append(out, ports.ToolSpec{
			Name:        e.decl.Name,
			Description: e.decl.Description,
			JSONSchema:  e.decl.JSONSchema(),
		})
	}
	return out
}

func (r *Registry) lookup(name string) (*entry, bool) {
	e, ok := r.entries[name]
	return e, ok
}
