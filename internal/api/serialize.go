package api

import (
	"context"
	"errors"
	"time"

	"crudgate.org/internal/store"
)

// DateTimeLayout is the canonical textual form for date values in views and
// coerced writes.
const DateTimeLayout = "2006-01-02 15:04:05"

var parseLayouts = []string{
	time.RFC3339,
	DateTimeLayout,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Serializer converts records to wire views and applies validated updates.
// It needs the registry to resolve relation schemas and the store to load
// related records.
type Serializer struct {
	reg *Registry
	st  store.Store
}

func NewSerializer(reg *Registry, st store.Store) *Serializer {
	return &Serializer{reg: reg, st: st}
}

type visitKey struct {
	entityType string
	id         int64
}

// ViewContext carries the visited set that bounds relation recursion. One
// context spans a single top-level ToView call.
type ViewContext struct {
	visited map[visitKey]struct{}
}

func NewViewContext() *ViewContext {
	return &ViewContext{visited: make(map[visitKey]struct{})}
}

// enter marks the pair visited and reports whether it was seen before.
func (c *ViewContext) enter(entityType string, id int64) bool {
	key := visitKey{entityType, id}
	if _, seen := c.visited[key]; seen {
		return false
	}
	c.visited[key] = struct{}{}
	return true
}

// ToView serializes a record for API output: readable fields only, values
// normalized per declared kind, relations nested under the cycle guard,
// computed fields merged, and the synthesized id key last.
func (s *Serializer) ToView(ctx context.Context, rec *store.Record) (map[string]any, error) {
	entry, ok := s.reg.Lookup(rec.Type)
	if !ok {
		return nil, errors.New("api: entity type not registered: " + rec.Type)
	}
	vctx := NewViewContext()
	vctx.enter(rec.Type, rec.ID)
	return s.view(ctx, entry.Schema, rec, vctx), nil
}

func (s *Serializer) view(ctx context.Context, sch *Schema, rec *store.Record, vctx *ViewContext) map[string]any {
	data := make(map[string]any)

	for _, name := range sch.ReadableFields() {
		if rel, ok := sch.relation(name); ok {
			if rel.Plural {
				data[name] = s.pluralViews(ctx, rel, rec, vctx)
			} else {
				data[name] = s.relatedView(ctx, rel, rec, vctx)
			}
			continue
		}
		data[name] = s.fieldValue(sch, rec, name)
	}

	for _, computed := range sch.Computed {
		data[computed.Name] = computed.Value(rec)
	}

	if sch.Options.UseExternalID {
		extField := sch.ExternalIDField()
		data["id"] = rec.Get(extField)
		delete(data, extField)
	} else {
		data["id"] = rec.ID
	}
	return data
}

func (s *Serializer) fieldValue(sch *Schema, rec *store.Record, name string) any {
	switch name {
	case "Created":
		return rec.Created.UTC().Format(DateTimeLayout)
	case "LastEdited":
		return rec.LastEdited.UTC().Format(DateTimeLayout)
	}
	value := rec.Get(name)
	field, declared := sch.field(name)
	if !declared || value == nil {
		return value
	}
	switch field.Kind {
	case KindBoolean:
		return coerceBool(value)
	case KindDate, KindDatetime:
		if t, ok := parseTime(value); ok {
			return t.Format(DateTimeLayout)
		}
		return value
	default:
		return value
	}
}

// relatedView resolves a single-valued relation. A revisited (type, id) pair
// yields an identifier-only stub instead of a nested view, which bounds
// recursion over cyclic relation graphs.
func (s *Serializer) relatedView(ctx context.Context, rel Relation, rec *store.Record, vctx *ViewContext) any {
	id := coerceInt(rec.Get(rel.Name + "ID"))
	if id <= 0 {
		return nil
	}
	target, ok := s.reg.Lookup(rel.Target)
	if !ok {
		return map[string]any{"id": id}
	}
	if !vctx.enter(rel.Target, id) {
		return s.identifierStub(ctx, target.Schema, id)
	}
	related, err := s.st.ByID(ctx, rel.Target, id)
	if err != nil {
		return nil
	}
	return s.view(ctx, target.Schema, related, vctx)
}

func (s *Serializer) pluralViews(ctx context.Context, rel Relation, rec *store.Record, vctx *ViewContext) []any {
	target, ok := s.reg.Lookup(rel.Target)
	if !ok {
		return []any{}
	}
	related, _, err := s.st.List(ctx, rel.Target, store.Query{
		Filters: map[string]any{rel.ForeignKey: rec.ID},
	})
	if err != nil {
		return []any{}
	}
	out := make([]any, 0, len(related))
	for _, child := range related {
		if !vctx.enter(rel.Target, child.ID) {
			out = append(out, s.identifierStub(ctx, target.Schema, child.ID))
			continue
		}
		out = append(out, s.view(ctx, target.Schema, child, vctx))
	}
	return out
}

func (s *Serializer) identifierStub(ctx context.Context, sch *Schema, id int64) map[string]any {
	if sch.Options.UseExternalID {
		if rec, err := s.st.ByID(ctx, sch.Type, id); err == nil {
			return map[string]any{"id": rec.Get(sch.ExternalIDField())}
		}
	}
	return map[string]any{"id": id}
}

// APIID returns the identifier a record is addressed by on the wire.
func (s *Serializer) APIID(rec *store.Record) any {
	entry, ok := s.reg.Lookup(rec.Type)
	if ok && entry.Schema.Options.UseExternalID {
		return rec.Get(entry.Schema.ExternalIDField())
	}
	return rec.ID
}

func parseTime(value any) (time.Time, bool) {
	switch v := value.(type) {
	case time.Time:
		return v, true
	case string:
		for _, layout := range parseLayouts {
			if t, err := time.Parse(layout, v); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}
