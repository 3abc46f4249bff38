package api

import (
	"fmt"
	"regexp"
)

var safeTypeName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Entry pairs a registered schema with its capability gate.
type Entry struct {
	Schema *Schema
	Caps   Capabilities
}

// Registry is the explicit allow-list of entity types the API may touch.
// Types are registered during startup and the registry is read-only
// afterwards; a URL segment never resolves anything that was not registered
// here.
type Registry struct {
	entries map[string]*Entry
	order   []string
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*Entry)}
}

// Register validates and adds an entity type. Registration failures are
// programming errors surfaced at startup, not at request time.
func (r *Registry) Register(sch *Schema, caps Capabilities) error {
	if sch == nil || sch.Type == "" {
		return fmt.Errorf("api: schema type is required")
	}
	if !safeTypeName.MatchString(sch.Type) {
		return fmt.Errorf("api: unsafe entity type name %q", sch.Type)
	}
	if _, exists := r.entries[sch.Type]; exists {
		return fmt.Errorf("api: entity type %q already registered", sch.Type)
	}
	if caps == nil {
		return fmt.Errorf("api: entity type %q registered without capabilities", sch.Type)
	}
	seen := make(map[string]struct{}, len(sch.Fields))
	for _, f := range sch.Fields {
		if !safeTypeName.MatchString(f.Name) {
			return fmt.Errorf("api: entity type %q declares unsafe field name %q", sch.Type, f.Name)
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("api: entity type %q declares field %q twice", sch.Type, f.Name)
		}
		seen[f.Name] = struct{}{}
	}
	for _, rel := range sch.Relations {
		if !safeTypeName.MatchString(rel.Name) {
			return fmt.Errorf("api: entity type %q declares unsafe relation name %q", sch.Type, rel.Name)
		}
		if rel.Plural && rel.ForeignKey == "" {
			return fmt.Errorf("api: plural relation %s.%s needs a foreign key", sch.Type, rel.Name)
		}
	}
	r.entries[sch.Type] = &Entry{Schema: sch, Caps: caps}
	r.order = append(r.order, sch.Type)
	return nil
}

// MustRegister panics on registration failure; startup wiring only.
func (r *Registry) MustRegister(sch *Schema, caps Capabilities) {
	if err := r.Register(sch, caps); err != nil {
		panic(err)
	}
}

// Lookup resolves a registered entity type by name.
func (r *Registry) Lookup(entityType string) (*Entry, bool) {
	e, ok := r.entries[entityType]
	return e, ok
}

// Types returns the registered type names in registration order.
func (r *Registry) Types() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
