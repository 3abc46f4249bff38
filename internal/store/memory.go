package store

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"
)

// Memory is an in-process Store used by tests and local development.
type Memory struct {
	mu      sync.RWMutex
	records map[string]map[int64]*Record
	nextID  map[string]int64
	now     func() time.Time
}

var _ Store = (*Memory)(nil)

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		records: make(map[string]map[int64]*Record),
		nextID:  make(map[string]int64),
		now:     time.Now,
	}
}

// SetClock overrides the timestamp source. Only intended for test use.
func (m *Memory) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *Memory) ByID(ctx context.Context, entityType string, id int64) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[entityType][id]
	if !ok {
		return nil, ErrNotFound
	}
	return rec.Clone(), nil
}

func (m *Memory) ByField(ctx context.Context, entityType, field string, value any) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, rec := range m.records[entityType] {
		if looseEqual(rec.Get(field), value) {
			return rec.Clone(), nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) List(ctx context.Context, entityType string, q Query) ([]*Record, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []*Record
	for _, rec := range m.records[entityType] {
		if matchesFilters(rec, q.Filters) {
			matched = append(matched, rec)
		}
	}

	sortField := q.Sort
	if sortField == "" {
		sortField = "ID"
	}
	sort.SliceStable(matched, func(i, j int) bool {
		less := lessByField(matched[i], matched[j], sortField)
		if q.SortDesc {
			return !less && !fieldEqual(matched[i], matched[j], sortField)
		}
		return less
	})

	total := len(matched)
	if q.Offset > 0 {
		if q.Offset >= total {
			matched = nil
		} else {
			matched = matched[q.Offset:]
		}
	}
	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}

	out := make([]*Record, len(matched))
	for i, rec := range matched {
		out[i] = rec.Clone()
	}
	return out, total, nil
}

func (m *Memory) Insert(ctx context.Context, rec *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.records[rec.Type] == nil {
		m.records[rec.Type] = make(map[int64]*Record)
	}
	m.nextID[rec.Type]++
	rec.ID = m.nextID[rec.Type]
	now := m.now().UTC()
	rec.Created = now
	rec.LastEdited = now
	m.records[rec.Type][rec.ID] = rec.Clone()
	return nil
}

func (m *Memory) Update(ctx context.Context, rec *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.records[rec.Type][rec.ID]
	if !ok {
		return ErrNotFound
	}
	rec.Created = existing.Created
	rec.LastEdited = m.now().UTC()
	m.records[rec.Type][rec.ID] = rec.Clone()
	return nil
}

func (m *Memory) Delete(ctx context.Context, entityType string, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[entityType][id]; !ok {
		return ErrNotFound
	}
	delete(m.records[entityType], id)
	return nil
}

func matchesFilters(rec *Record, filters map[string]any) bool {
	for field, want := range filters {
		var got any
		switch field {
		case "ID":
			got = rec.ID
		case "Created":
			got = rec.Created
		case "LastEdited":
			got = rec.LastEdited
		default:
			got = rec.Get(field)
		}
		if !looseEqual(got, want) {
			return false
		}
	}
	return true
}

// looseEqual compares values the way query-string filters arrive: "3" matches
// int64(3) and "true" matches true.
func looseEqual(got, want any) bool {
	if got == nil || want == nil {
		return got == want
	}
	return fmt.Sprint(got) == fmt.Sprint(want)
}

func fieldValue(rec *Record, field string) any {
	switch field {
	case "ID":
		return rec.ID
	case "Created":
		return rec.Created
	case "LastEdited":
		return rec.LastEdited
	default:
		return rec.Get(field)
	}
}

func lessByField(a, b *Record, field string) bool {
	av, bv := fieldValue(a, field), fieldValue(b, field)
	if at, ok := av.(time.Time); ok {
		if bt, ok := bv.(time.Time); ok {
			return at.Before(bt)
		}
	}
	as, bs := fmt.Sprint(av), fmt.Sprint(bv)
	af, aerr := strconv.ParseFloat(as, 64)
	bf, berr := strconv.ParseFloat(bs, 64)
	if aerr == nil && berr == nil {
		return af < bf
	}
	return as < bs
}

func fieldEqual(a, b *Record, field string) bool {
	return fmt.Sprint(fieldValue(a, field)) == fmt.Sprint(fieldValue(b, field))
}
