package api

import (
	"context"
	"reflect"
	"sort"
	"strings"
	"testing"
	"time"

	"crudgate.org/internal/auth"
	"crudgate.org/internal/store"
)

func newTestSerializer(t *testing.T, schemas ...*Schema) (*Serializer, *store.Memory) {
	t.Helper()
	st := store.NewMemory()
	reg := NewRegistry()
	for _, sch := range schemas {
		reg.MustRegister(sch, AllowAnyone{})
	}
	return NewSerializer(reg, st), st
}

func mustInsert(t *testing.T, st *store.Memory, rec *store.Record) *store.Record {
	t.Helper()
	if err := st.Insert(context.Background(), rec); err != nil {
		t.Fatalf("insert %s: %v", rec.Type, err)
	}
	return rec
}

func TestToViewExposesOnlyReadableFields(t *testing.T) {
	task := &Schema{
		Type: "Task",
		Fields: []Field{
			{Name: "Title", Kind: KindVarchar, MaxLen: 120},
			{Name: "IsCompleted", Kind: KindBoolean},
			{Name: "SecretNote", Kind: KindText},
		},
		Options: Options{ReadFields: []string{"Title", "IsCompleted"}},
	}
	ser, st := newTestSerializer(t, task)

	rec := store.NewRecord("Task")
	rec.Set("Title", "Write docs")
	rec.Set("IsCompleted", 1)
	rec.Set("SecretNote", "internal only")
	mustInsert(t, st, rec)

	view, err := ser.ToView(context.Background(), rec)
	if err != nil {
		t.Fatalf("ToView: %v", err)
	}

	keys := make([]string, 0, len(view))
	for k := range view {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if !reflect.DeepEqual(keys, []string{"IsCompleted", "Title", "id"}) {
		t.Fatalf("unexpected view keys: %v", keys)
	}
	if view["IsCompleted"] != true {
		t.Fatalf("expected numeric 1 coerced to true, got %v", view["IsCompleted"])
	}
	if view["id"] != rec.ID {
		t.Fatalf("id = %v, want %d", view["id"], rec.ID)
	}
}

func TestToViewFormatsTimestamps(t *testing.T) {
	note := &Schema{
		Type: "Note",
		Fields: []Field{
			{Name: "Body", Kind: KindText},
			{Name: "DueAt", Kind: KindDatetime},
		},
	}
	ser, st := newTestSerializer(t, note)

	st.SetClock(func() time.Time {
		return time.Date(2026, 4, 2, 9, 30, 0, 0, time.UTC)
	})
	rec := store.NewRecord("Note")
	rec.Set("Body", "remember")
	rec.Set("DueAt", "2026-05-01T17:00:00Z")
	mustInsert(t, st, rec)

	view, err := ser.ToView(context.Background(), rec)
	if err != nil {
		t.Fatalf("ToView: %v", err)
	}
	if view["DueAt"] != "2026-05-01 17:00:00" {
		t.Fatalf("DueAt = %v, want normalized layout", view["DueAt"])
	}
}

func TestToViewExternalIDReplacesRawField(t *testing.T) {
	profile := &Schema{
		Type: "Profile",
		Fields: []Field{
			{Name: "Handle", Kind: KindVarchar, MaxLen: 60},
			{Name: "UUID", Kind: KindVarchar, MaxLen: 36},
		},
		Options: Options{UseExternalID: true},
	}
	ser, st := newTestSerializer(t, profile)

	rec := store.NewRecord("Profile")
	rec.Set("Handle", "jane")
	rec.Set("UUID", "0b9f4c52-0000-0000-0000-000000000042")
	mustInsert(t, st, rec)

	view, err := ser.ToView(context.Background(), rec)
	if err != nil {
		t.Fatalf("ToView: %v", err)
	}
	if view["id"] != "0b9f4c52-0000-0000-0000-000000000042" {
		t.Fatalf("id = %v, want the external identifier", view["id"])
	}
	if _, present := view["UUID"]; present {
		t.Fatal("raw UUID field must be folded into id")
	}
}

func TestToViewComputedFieldsMergeAfterBase(t *testing.T) {
	task := &Schema{
		Type:   "Task",
		Fields: []Field{{Name: "Title", Kind: KindVarchar}},
		Computed: []ComputedField{
			{Name: "TitleUpper", Value: func(rec *store.Record) any {
				s, _ := rec.Get("Title").(string)
				return strings.ToUpper(s)
			}},
			// computed may shadow a base field
			{Name: "Title", Value: func(rec *store.Record) any { return "shadowed" }},
		},
	}
	ser, st := newTestSerializer(t, task)
	rec := store.NewRecord("Task")
	rec.Set("Title", "hello")
	mustInsert(t, st, rec)

	view, err := ser.ToView(context.Background(), rec)
	if err != nil {
		t.Fatalf("ToView: %v", err)
	}
	if view["TitleUpper"] != "HELLO" {
		t.Fatalf("TitleUpper = %v", view["TitleUpper"])
	}
	if view["Title"] != "shadowed" {
		t.Fatalf("Title = %v, want computed override", view["Title"])
	}
}

func TestToViewBoundsCyclicRelations(t *testing.T) {
	author := &Schema{
		Type:   "Author",
		Fields: []Field{{Name: "Name", Kind: KindVarchar}},
		Relations: []Relation{
			{Name: "Books", Target: "Book", Plural: true, ForeignKey: "AuthorID"},
		},
		Options: Options{IncludePlural: true},
	}
	book := &Schema{
		Type:   "Book",
		Fields: []Field{{Name: "Title", Kind: KindVarchar}},
		Relations: []Relation{
			{Name: "Author", Target: "Author"},
		},
	}
	ser, st := newTestSerializer(t, author, book)

	a := store.NewRecord("Author")
	a.Set("Name", "Iain")
	mustInsert(t, st, a)

	b := store.NewRecord("Book")
	b.Set("Title", "Excession")
	b.Set("AuthorID", a.ID)
	mustInsert(t, st, b)

	view, err := ser.ToView(context.Background(), b)
	if err != nil {
		t.Fatalf("ToView: %v", err)
	}

	authorView, ok := view["Author"].(map[string]any)
	if !ok {
		t.Fatalf("expected nested author view, got %T", view["Author"])
	}
	if authorView["Name"] != "Iain" {
		t.Fatalf("unexpected author view: %v", authorView)
	}

	books, ok := authorView["Books"].([]any)
	if !ok || len(books) != 1 {
		t.Fatalf("expected one nested book, got %v", authorView["Books"])
	}
	// the starting book is already on the visited path, so its nested
	// appearance collapses to an identifier stub
	stub, ok := books[0].(map[string]any)
	if !ok {
		t.Fatalf("expected stub map, got %T", books[0])
	}
	if len(stub) != 1 || stub["id"] != b.ID {
		t.Fatalf("expected identifier-only stub, got %v", stub)
	}
}

func TestRegistryRejectsUnsafeNames(t *testing.T) {
	reg := NewRegistry()
	err := reg.Register(&Schema{Type: "bad type"}, AllowAnyone{})
	if err == nil {
		t.Fatal("expected error for unsafe type name")
	}
	err = reg.Register(&Schema{
		Type:   "Ok",
		Fields: []Field{{Name: "drop table", Kind: KindText}},
	}, AllowAnyone{})
	if err == nil {
		t.Fatal("expected error for unsafe field name")
	}
}

func TestCapabilitySetNilFuncDenies(t *testing.T) {
	caps := CapabilitySet{
		View: func(p *auth.Principal, rec *store.Record) bool { return true },
	}
	if !caps.CanView(nil, nil) {
		t.Fatal("View predicate should allow")
	}
	if caps.CanCreate(&auth.Principal{ID: 1}) {
		t.Fatal("nil Create predicate must deny")
	}
	if caps.CanEdit(&auth.Principal{ID: 1}, nil) {
		t.Fatal("nil Edit predicate must deny")
	}
	if caps.CanDelete(&auth.Principal{ID: 1}, nil) {
		t.Fatal("nil Delete predicate must deny")
	}
}
