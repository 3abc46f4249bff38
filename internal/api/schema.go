// Package api implements the generic record-to-REST engine: explicit schema
// descriptors, per-field read/write policies, serialization to wire views and
// validated, type-coerced writes. Permission checks are delegated to a
// per-entity-type capability interface; nothing here assumes a particular
// permission model.
package api

import (
	"crudgate.org/internal/store"
)

// FieldKind enumerates the declared attribute types the validator and the
// write coercion understand. Kinds outside this set validate as "always ok"
// and pass through writes unchanged.
type FieldKind int

const (
	KindUnknown FieldKind = iota
	KindBoolean
	KindInt
	KindFloat
	KindVarchar
	KindText
	KindDate
	KindDatetime
	KindEnum
)

// Field declares one scalar attribute of an entity type.
type Field struct {
	Name   string
	Kind   FieldKind
	MaxLen int // varchar bound; 0 means unbounded
}

// Relation declares a named link to another registered entity type. A
// single-valued relation stores the target id in the "<Name>ID" field of the
// owning record; a plural relation is resolved by querying the target type on
// ForeignKey.
type Relation struct {
	Name       string
	Target     string
	Plural     bool
	ForeignKey string // target-side field holding the owner id; plural only
}

// Options is the per-entity-type API configuration. Empty allow-lists mean
// "derive from the declared schema"; exclusion always wins over inclusion.
type Options struct {
	ReadFields         []string
	ExcludeReadFields  []string
	WriteFields        []string
	ExcludeWriteFields []string

	// Single-valued relations are exposed unless SkipHasOne is set; plural
	// relations are hidden unless IncludePlural is set.
	SkipHasOne    bool
	IncludePlural bool

	// UseExternalID switches API addressing from the numeric id to the value
	// of ExternalIDField (default "UUID"). The two strategies are mutually
	// exclusive per type.
	UseExternalID   bool
	ExternalIDField string
}

// ComputedField is a pure function of a record merged into its view after the
// base fields.
type ComputedField struct {
	Name  string
	Value func(rec *store.Record) any
}

// Schema is the explicit descriptor registered for each entity type. It is
// declared once at startup and treated as read-only afterwards.
type Schema struct {
	Type      string
	Fields    []Field
	Relations []Relation
	Options   Options
	Computed  []ComputedField

	// Validate adds entity-specific rules on top of the declared-type checks.
	// rec is the record being updated (zero-valued for creates); the returned
	// messages are appended to the validation error list.
	Validate func(rec *store.Record, data map[string]any) []string
}

// ExternalIDField returns the configured external identifier field name.
func (s *Schema) ExternalIDField() string {
	if s.Options.ExternalIDField != "" {
		return s.Options.ExternalIDField
	}
	return "UUID"
}

func (s *Schema) field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

func (s *Schema) relation(name string) (Relation, bool) {
	for _, rel := range s.Relations {
		if rel.Name == name {
			return rel, true
		}
	}
	return Relation{}, false
}
