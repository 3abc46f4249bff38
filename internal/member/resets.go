package member

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"crudgate.org/internal/api"
	"crudgate.org/internal/auth"
	"crudgate.org/internal/store"
)

// TypeResetRequest is the entity type password reset requests are stored under.
const TypeResetRequest = "PasswordResetRequest"

const defaultResetTTL = time.Hour

// ErrResetNotFound indicates a missing, consumed or expired reset code.
var ErrResetNotFound = errors.New("member: reset request not found")

// ResetSchema declares the PasswordResetRequest entity type. It is registered
// so the store knows it, but its capabilities deny the whole CRUD surface:
// codes only travel through the auth endpoints.
func ResetSchema() *api.Schema {
	return &api.Schema{
		Type: TypeResetRequest,
		Fields: []api.Field{
			{Name: "Code", Kind: api.KindVarchar, MaxLen: 6},
		},
		Relations: []api.Relation{
			{Name: "Member", Target: TypeMember},
		},
	}
}

// ResetCapabilities denies everything.
func ResetCapabilities() api.Capabilities {
	return api.CapabilitySet{}
}

// Resets manages password reset codes. Codes are 6 digits, short-lived, and
// a new request replaces any older ones for the same member.
type Resets struct {
	st  store.Store
	ttl time.Duration
	now func() time.Time
}

// NewResets builds a reset manager; ttl <= 0 selects the 1 hour default.
func NewResets(st store.Store, ttl time.Duration) *Resets {
	if ttl <= 0 {
		ttl = defaultResetTTL
	}
	return &Resets{st: st, ttl: ttl, now: time.Now}
}

// SetClock overrides the time source. Only intended for test use.
func (r *Resets) SetClock(now func() time.Time) { r.now = now }

// TTL reports the configured code lifetime.
func (r *Resets) TTL() time.Duration { return r.ttl }

// Create issues a fresh reset code for the member, dropping any previous
// requests first. Delivering the code (email) is the host's concern.
func (r *Resets) Create(ctx context.Context, memberID int64) (*store.Record, error) {
	existing, _, err := r.st.List(ctx, TypeResetRequest, store.Query{
		Filters: map[string]any{"MemberID": memberID},
	})
	if err != nil {
		return nil, err
	}
	for _, old := range existing {
		if err := r.st.Delete(ctx, TypeResetRequest, old.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
	}

	code, err := generateCode()
	if err != nil {
		return nil, err
	}
	rec := store.NewRecord(TypeResetRequest)
	rec.Set("Code", code)
	rec.Set("MemberID", memberID)
	if err := r.st.Insert(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Consume validates a code, resets the member's password and deletes the
// request. Expired codes behave exactly like unknown ones.
func (r *Resets) Consume(ctx context.Context, dir *Directory, code, newPassword string) error {
	rec, err := r.st.ByField(ctx, TypeResetRequest, "Code", code)
	if err != nil {
		return ErrResetNotFound
	}
	if r.now().After(rec.Created.Add(r.ttl)) {
		_ = r.st.Delete(ctx, TypeResetRequest, rec.ID)
		return ErrResetNotFound
	}
	memberID := int64(0)
	switch v := rec.Get("MemberID").(type) {
	case int64:
		memberID = v
	case float64:
		memberID = int64(v)
	}
	if memberID <= 0 {
		return ErrResetNotFound
	}
	if err := dir.SetPassword(ctx, memberID, newPassword); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return auth.ErrNotFound
		}
		return err
	}
	return r.st.Delete(ctx, TypeResetRequest, rec.ID)
}

// Cleanup deletes requests older than the TTL and reports how many went.
func (r *Resets) Cleanup(ctx context.Context) (int, error) {
	cutoff := r.now().Add(-r.ttl)
	stale, _, err := r.st.List(ctx, TypeResetRequest, store.Query{})
	if err != nil {
		return 0, err
	}
	deleted := 0
	for _, rec := range stale {
		if rec.Created.After(cutoff) {
			continue
		}
		if err := r.st.Delete(ctx, TypeResetRequest, rec.ID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}

// RunCleanup loops Cleanup on the interval until the context is cancelled.
func (r *Resets) RunCleanup(ctx context.Context, interval time.Duration, report func(deleted int, err error)) {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := r.Cleanup(ctx)
			if report != nil {
				report(deleted, err)
			}
		}
	}
}

func generateCode() (string, error) {
	// Six digits, leading zeros preserved.
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
