// Package member resolves principals and manages credentials on top of the
// generic record store. Members are ordinary registered entity types, so the
// same store backs both the CRUD surface and authentication.
package member

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"crudgate.org/internal/api"
	"crudgate.org/internal/auth"
	"crudgate.org/internal/store"
)

// TypeMember is the entity type name members are stored under.
const TypeMember = "Member"

var (
	// ErrExists indicates a registration attempt with a taken email.
	ErrExists = errors.New("member: email already registered")
)

// Schema declares the Member entity type. The password hash never crosses the
// API in either direction.
func Schema() *api.Schema {
	return &api.Schema{
		Type: TypeMember,
		Fields: []api.Field{
			{Name: "FirstName", Kind: api.KindVarchar, MaxLen: 255},
			{Name: "Surname", Kind: api.KindVarchar, MaxLen: 255},
			{Name: "Email", Kind: api.KindVarchar, MaxLen: 254},
			{Name: "PasswordHash", Kind: api.KindVarchar, MaxLen: 128},
			{Name: "UUID", Kind: api.KindVarchar, MaxLen: 36},
		},
		Options: api.Options{
			ExcludeReadFields:  []string{"PasswordHash"},
			ExcludeWriteFields: []string{"PasswordHash", "Email", "UUID"},
			UseExternalID:      true,
			ExternalIDField:    "UUID",
		},
	}
}

// Capabilities lets members read the directory and edit only themselves.
// Creation and deletion go through the auth endpoints, not the CRUD surface.
func Capabilities() api.Capabilities {
	return api.CapabilitySet{
		View: func(p *auth.Principal, _ *store.Record) bool { return p != nil },
		Edit: func(p *auth.Principal, rec *store.Record) bool {
			return p != nil && rec != nil && p.ID == rec.ID
		},
	}
}

// Directory looks up and manages members in the record store.
type Directory struct {
	st store.Store
}

func NewDirectory(st store.Store) *Directory {
	return &Directory{st: st}
}

// ByID resolves a principal from the subject identifier carried in a token.
func (d *Directory) ByID(ctx context.Context, id int64) (*auth.Principal, error) {
	rec, err := d.st.ByID(ctx, TypeMember, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, auth.ErrNotFound
		}
		return nil, err
	}
	return principalFromRecord(rec), nil
}

// ByEmail returns the member record for a normalized email address.
func (d *Directory) ByEmail(ctx context.Context, email string) (*store.Record, error) {
	return d.st.ByField(ctx, TypeMember, "Email", normalizeEmail(email))
}

// Register creates a member with a hashed password. The email must be unused.
func (d *Directory) Register(ctx context.Context, email, password, firstName, surname string) (*auth.Principal, error) {
	email = normalizeEmail(email)
	if _, err := d.ByEmail(ctx, email); err == nil {
		return nil, ErrExists
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}
	if firstName == "" {
		firstName = email
	}

	rec := store.NewRecord(TypeMember)
	rec.Set("Email", email)
	rec.Set("FirstName", firstName)
	rec.Set("Surname", surname)
	rec.Set("PasswordHash", hash)
	api.EnsureExternalID(Schema(), rec)
	if err := d.st.Insert(ctx, rec); err != nil {
		return nil, err
	}
	return principalFromRecord(rec), nil
}

// Authenticate verifies an email/password pair. Every failure collapses to
// ErrBadCredentials so callers cannot probe which factor was wrong.
func (d *Directory) Authenticate(ctx context.Context, email, password string) (*auth.Principal, error) {
	rec, err := d.ByEmail(ctx, email)
	if err != nil {
		return nil, auth.ErrBadCredentials
	}
	hash, _ := rec.Get("PasswordHash").(string)
	if auth.VerifyPassword(hash, password) != nil {
		return nil, auth.ErrBadCredentials
	}
	return principalFromRecord(rec), nil
}

// CheckPassword verifies the current password of an existing member.
func (d *Directory) CheckPassword(ctx context.Context, id int64, password string) error {
	rec, err := d.st.ByID(ctx, TypeMember, id)
	if err != nil {
		return auth.ErrBadCredentials
	}
	hash, _ := rec.Get("PasswordHash").(string)
	if auth.VerifyPassword(hash, password) != nil {
		return auth.ErrBadCredentials
	}
	return nil
}

// SetPassword replaces a member's password hash.
func (d *Directory) SetPassword(ctx context.Context, id int64, password string) error {
	rec, err := d.st.ByID(ctx, TypeMember, id)
	if err != nil {
		return err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	rec.Set("PasswordHash", hash)
	return d.st.Update(ctx, rec)
}

func principalFromRecord(rec *store.Record) *auth.Principal {
	return &auth.Principal{
		ID:        rec.ID,
		Email:     stringValue(rec, "Email"),
		FirstName: stringValue(rec, "FirstName"),
		Surname:   stringValue(rec, "Surname"),
	}
}

func stringValue(rec *store.Record, field string) string {
	if s, ok := rec.Get(field).(string); ok {
		return s
	}
	if v := rec.Get(field); v != nil {
		return fmt.Sprint(v)
	}
	return ""
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
