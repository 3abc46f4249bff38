package api

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"crudgate.org/internal/store"
)

// ValidateData checks an incoming write payload against the schema. Keys
// outside the writable set always produce an error; declared-type rules run
// for the rest; the schema's custom hook is appended last. The returned list
// is fresh per call and empty means valid.
func ValidateData(sch *Schema, rec *store.Record, data map[string]any) []string {
	var errs []string
	writable := sch.WritableFields()

	keys := make([]string, 0, len(data))
	for key := range data {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if !contains(writable, key) {
			errs = append(errs, fmt.Sprintf("Field '%s' is not writable via API", key))
			continue
		}
		if rel, ok := sch.relation(key); ok && !rel.Plural {
			if _, ok := asFloat(data[key]); !ok {
				errs = append(errs, fmt.Sprintf("Invalid value for field '%s'", key))
			}
			continue
		}
		if field, ok := sch.field(key); ok {
			if !validForKind(field, data[key]) {
				errs = append(errs, fmt.Sprintf("Invalid value for field '%s'", key))
			}
		}
	}

	if sch.Validate != nil {
		errs = append(errs, sch.Validate(rec, data)...)
	}
	return errs
}

// ApplyUpdate validates the payload, assigns writable keys with type
// coercion, and persists the record (insert when it has no id yet). A
// non-empty first result is the validation error list and means nothing was
// mutated; a non-nil second result is a persistence failure whose cause is
// not surfaced to API callers.
func (s *Serializer) ApplyUpdate(ctx context.Context, rec *store.Record, data map[string]any) ([]string, error) {
	entry, ok := s.reg.Lookup(rec.Type)
	if !ok {
		return nil, fmt.Errorf("api: entity type not registered: %s", rec.Type)
	}
	sch := entry.Schema

	if errs := ValidateData(sch, rec, data); len(errs) > 0 {
		return errs, nil
	}

	writable := sch.WritableFields()
	for key, value := range data {
		if !contains(writable, key) {
			continue
		}
		if rel, ok := sch.relation(key); ok && !rel.Plural {
			rec.Set(rel.Name+"ID", coerceInt(value))
			continue
		}
		if field, ok := sch.field(key); ok {
			rec.Set(key, coerceForKind(field, value))
			continue
		}
		rec.Set(key, value)
	}

	if rec.ID == 0 {
		EnsureExternalID(sch, rec)
		if err := s.st.Insert(ctx, rec); err != nil {
			return nil, err
		}
		return nil, nil
	}
	if err := s.st.Update(ctx, rec); err != nil {
		return nil, err
	}
	return nil, nil
}

// EnsureExternalID populates the external identifier field with a fresh UUID
// for types using that strategy. No-op when one is already set.
func EnsureExternalID(sch *Schema, rec *store.Record) {
	if !sch.Options.UseExternalID {
		return
	}
	field := sch.ExternalIDField()
	if v, _ := rec.Get(field).(string); v == "" {
		rec.Set(field, uuid.NewString())
	}
}

func validForKind(field Field, value any) bool {
	switch field.Kind {
	case KindBoolean:
		if _, ok := value.(bool); ok {
			return true
		}
		if _, ok := asFloat(value); ok {
			return true
		}
		if s, ok := value.(string); ok {
			lower := strings.ToLower(s)
			return lower == "true" || lower == "false"
		}
		return false
	case KindInt:
		f, ok := asFloat(value)
		return ok && f == math.Trunc(f)
	case KindFloat:
		_, ok := asFloat(value)
		return ok
	case KindVarchar:
		s, ok := value.(string)
		if !ok {
			return false
		}
		return field.MaxLen == 0 || len(s) <= field.MaxLen
	case KindText:
		_, ok := value.(string)
		return ok
	case KindDate, KindDatetime:
		s, ok := value.(string)
		if !ok {
			return false
		}
		_, ok = parseTime(s)
		return ok
	default:
		// Unknown declared types default to valid.
		return true
	}
}

func coerceForKind(field Field, value any) any {
	switch field.Kind {
	case KindBoolean:
		return coerceBool(value)
	case KindInt:
		return coerceInt(value)
	case KindFloat:
		f, _ := asFloat(value)
		return f
	case KindDate, KindDatetime:
		if s, ok := value.(string); ok {
			if t, ok := parseTime(s); ok {
				return t.Format(DateTimeLayout)
			}
		}
		return value
	default:
		return value
	}
}

// asFloat interprets numeric values of any width plus numeric strings, the
// way loosely-typed payloads arrive after JSON decoding.
func asFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func coerceBool(value any) bool {
	switch v := value.(type) {
	case bool:
		return v
	case string:
		if strings.EqualFold(v, "true") {
			return true
		}
		// numeric strings pass boolean validation, so honor them here too
		if f, ok := asFloat(v); ok {
			return f != 0
		}
		return false
	default:
		if f, ok := asFloat(value); ok {
			return f != 0
		}
		return false
	}
}

func coerceInt(value any) int64 {
	if f, ok := asFloat(value); ok {
		return int64(math.Trunc(f))
	}
	return 0
}
