package filter

import (
	"fmt"
	"sync"

	"github.com/robalyx/starboard/internal/evalctx"
)

// ValueKind is the type of value a field accessor yields.
type ValueKind uint8

const (
	ValueBool ValueKind = iota + 1
	ValueNumber
	ValueString
	ValueList
)

func (k ValueKind) String() string {
	switch k {
	case ValueBool:
		return "bool"
	case ValueNumber:
		return "number"
	case ValueString:
		return "string"
	case ValueList:
		return "list"
	default:
		return "unknown"
	}
}

// Accessor reads a field from a context. It returns false when the field
// cannot be resolved for this context, e.g. voter fields on a message event.
// Accessors must yield bool, float64, string or []string matching the field's kind.
type Accessor func(ctx *evalctx.Context) (any, bool)

// Field describes a filterable field.
type Field struct {
	Path string
	Kind ValueKind
	// Stable fields only depend on channel, role and author identity data,
	// so decisions built from them can be cached.
	Stable bool
	Get    Accessor
}

// Registry maps field paths to accessors.
type Registry struct {
	mu     sync.RWMutex
	fields map[string]Field
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{fields: make(map[string]Field)}
}

// Register adds a field. Registering an existing path is an error.
func (r *Registry) Register(f Field) error {
	if f.Path == "" || f.Get == nil {
		return fmt.Errorf("field %q is missing a path or accessor", f.Path)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.fields[f.Path]; exists {
		return fmt.Errorf("field %q is already registered", f.Path)
	}
	r.fields[f.Path] = f
	return nil
}

// Lookup returns the field registered under path.
func (r *Registry) Lookup(path string) (Field, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.fields[path]
	return f, ok
}

// IsStable reports whether every field the tree references is known and stable.
// A nil tree is stable.
func (r *Registry) IsStable(node *Node) bool {
	for _, path := range Fields(node) {
		f, ok := r.Lookup(path)
		if !ok || !f.Stable {
			return false
		}
	}
	return true
}

var (
	defaultRegistry     *Registry
	defaultRegistryOnce sync.Once
)

// Default returns the process-wide registry holding the built-in fields.
func Default() *Registry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewRegistry()
		for _, f := range builtinFields() {
			if err := defaultRegistry.Register(f); err != nil {
				panic(err)
			}
		}
	})
	return defaultRegistry
}
