package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("store: record not found")
	// ErrUnknownType indicates an entity type the store has never seen.
	ErrUnknownType = errors.New("store: unknown entity type")
)

// Record is the generic persisted shape of one entity instance. Field values
// live in Values keyed by field name; ID, Created and LastEdited are managed
// by the store and never appear in Values.
type Record struct {
	ID         int64
	Type       string
	Created    time.Time
	LastEdited time.Time
	Values     map[string]any
}

// NewRecord returns an empty record of the given entity type.
func NewRecord(entityType string) *Record {
	return &Record{Type: entityType, Values: make(map[string]any)}
}

// Get returns the value of a field, or nil when unset.
func (r *Record) Get(field string) any {
	if r.Values == nil {
		return nil
	}
	return r.Values[field]
}

// Set assigns a field value.
func (r *Record) Set(field string, value any) {
	if r.Values == nil {
		r.Values = make(map[string]any)
	}
	r.Values[field] = value
}

// Clone returns a deep copy so callers can mutate without aliasing store state.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	cp := *r
	cp.Values = make(map[string]any, len(r.Values))
	for k, v := range r.Values {
		cp.Values[k] = v
	}
	return &cp
}

// Query narrows and orders a List call. Filters are exact-match per field.
// Sort/SortDesc order by a single field; Limit/Offset page the result.
type Query struct {
	Filters  map[string]any
	Sort     string
	SortDesc bool
	Limit    int
	Offset   int
}

// Store is the persistence contract the API engine depends on. Each write is
// assumed atomic for a single record; transactional discipline beyond that is
// the implementation's concern.
type Store interface {
	ByID(ctx context.Context, entityType string, id int64) (*Record, error)
	ByField(ctx context.Context, entityType, field string, value any) (*Record, error)
	List(ctx context.Context, entityType string, q Query) ([]*Record, int, error)
	Insert(ctx context.Context, rec *Record) error
	Update(ctx context.Context, rec *Record) error
	Delete(ctx context.Context, entityType string, id int64) error
}
