package api

import (
	"crudgate.org/internal/auth"
	"crudgate.org/internal/store"
)

// Capabilities gates the CRUD verbs for one entity type. The principal may be
// nil (anonymous caller); edit and delete receive the specific record since
// the answer may depend on its state. Predicates are re-evaluated on every
// call and must not cache.
type Capabilities interface {
	CanView(p *auth.Principal, rec *store.Record) bool
	CanCreate(p *auth.Principal) bool
	CanEdit(p *auth.Principal, rec *store.Record) bool
	CanDelete(p *auth.Principal, rec *store.Record) bool
}

// CapabilitySet adapts plain predicate functions to Capabilities. A nil
// function denies the verb.
type CapabilitySet struct {
	View   func(p *auth.Principal, rec *store.Record) bool
	Create func(p *auth.Principal) bool
	Edit   func(p *auth.Principal, rec *store.Record) bool
	Delete func(p *auth.Principal, rec *store.Record) bool
}

func (c CapabilitySet) CanView(p *auth.Principal, rec *store.Record) bool {
	return c.View != nil && c.View(p, rec)
}

func (c CapabilitySet) CanCreate(p *auth.Principal) bool {
	return c.Create != nil && c.Create(p)
}

func (c CapabilitySet) CanEdit(p *auth.Principal, rec *store.Record) bool {
	return c.Edit != nil && c.Edit(p, rec)
}

func (c CapabilitySet) CanDelete(p *auth.Principal, rec *store.Record) bool {
	return c.Delete != nil && c.Delete(p, rec)
}

// AllowAnyone grants every verb, anonymous callers included.
type AllowAnyone struct{}

func (AllowAnyone) CanView(*auth.Principal, *store.Record) bool   { return true }
func (AllowAnyone) CanCreate(*auth.Principal) bool                { return true }
func (AllowAnyone) CanEdit(*auth.Principal, *store.Record) bool   { return true }
func (AllowAnyone) CanDelete(*auth.Principal, *store.Record) bool { return true }

// RequireAuthenticated grants every verb to any signed-in principal.
type RequireAuthenticated struct{}

func (RequireAuthenticated) CanView(p *auth.Principal, _ *store.Record) bool   { return p != nil }
func (RequireAuthenticated) CanCreate(p *auth.Principal) bool                  { return p != nil }
func (RequireAuthenticated) CanEdit(p *auth.Principal, _ *store.Record) bool   { return p != nil }
func (RequireAuthenticated) CanDelete(p *auth.Principal, _ *store.Record) bool { return p != nil }
