package api

import (
	"reflect"
	"testing"
)

func articleSchema(opts Options) *Schema {
	return &Schema{
		Type: "Article",
		Fields: []Field{
			{Name: "Title", Kind: KindVarchar, MaxLen: 120},
			{Name: "Body", Kind: KindText},
			{Name: "Views", Kind: KindInt},
		},
		Relations: []Relation{
			{Name: "Author", Target: "Member"},
			{Name: "Comments", Target: "Comment", Plural: true, ForeignKey: "ArticleID"},
		},
		Options: opts,
	}
}

func TestReadableFieldsDefault(t *testing.T) {
	sch := articleSchema(Options{})
	got := sch.ReadableFields()
	want := []string{"Title", "Body", "Views", "Author", "AuthorID"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ReadableFields() = %v, want %v", got, want)
	}
}

func TestReadableFieldsIncludePlural(t *testing.T) {
	sch := articleSchema(Options{IncludePlural: true})
	if !contains(sch.ReadableFields(), "Comments") {
		t.Fatalf("expected Comments in %v", sch.ReadableFields())
	}
}

func TestReadableFieldsSkipHasOne(t *testing.T) {
	sch := articleSchema(Options{SkipHasOne: true})
	got := sch.ReadableFields()
	if contains(got, "Author") || contains(got, "AuthorID") {
		t.Fatalf("expected relation keys omitted, got %v", got)
	}
}

func TestReadableFieldsAllowListWins(t *testing.T) {
	sch := articleSchema(Options{
		ReadFields:        []string{"Title", "Body", "Views"},
		ExcludeReadFields: []string{"Body"},
	})
	got := sch.ReadableFields()
	want := []string{"Title", "Views"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ReadableFields() = %v, want %v", got, want)
	}
}

func TestWritableFieldsNeverIncludeManagedColumns(t *testing.T) {
	// even an explicit allow-list cannot open ID or the timestamps
	sch := articleSchema(Options{
		WriteFields: []string{"ID", "Created", "LastEdited", "Title"},
	})
	got := sch.WritableFields()
	for _, name := range []string{"ID", "Created", "LastEdited"} {
		if contains(got, name) {
			t.Fatalf("managed column %s leaked into writable set %v", name, got)
		}
	}
	if !reflect.DeepEqual(got, []string{"Title"}) {
		t.Fatalf("WritableFields() = %v, want [Title]", got)
	}
}

func TestWritableFieldsSubsetOfDeclared(t *testing.T) {
	sch := articleSchema(Options{
		WriteFields: []string{"Title", "NoSuchField", "Comments", "Author"},
	})
	got := sch.WritableFields()
	want := []string{"Title", "Author"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("WritableFields() = %v, want %v", got, want)
	}
}

func TestWritableFieldsDefaultExcludesPlural(t *testing.T) {
	sch := articleSchema(Options{})
	got := sch.WritableFields()
	if contains(got, "Comments") {
		t.Fatalf("plural relation must not be writable, got %v", got)
	}
	want := []string{"Title", "Body", "Views", "Author"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("WritableFields() = %v, want %v", got, want)
	}
}

func TestWritableFieldsExcludeOption(t *testing.T) {
	sch := articleSchema(Options{ExcludeWriteFields: []string{"Views"}})
	if contains(sch.WritableFields(), "Views") {
		t.Fatalf("excluded field leaked into %v", sch.WritableFields())
	}
}
