package auth

import (
	"errors"
	"testing"
	"time"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newTestService(t *testing.T, cfg Config, opts ...Option) *Service {
	t.Helper()
	svc, err := NewService(cfg, opts...)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestNewServiceRequiresSecret(t *testing.T) {
	if _, err := NewService(Config{Secret: "  "}); !errors.Is(err, ErrNoSecret) {
		t.Fatalf("expected ErrNoSecret, got %v", err)
	}
}

func TestNewServiceRejectsUnknownAlgorithm(t *testing.T) {
	if _, err := NewService(Config{Secret: "s", Algorithm: "RS256"}); err == nil {
		t.Fatal("expected error for asymmetric algorithm")
	}
}

func TestIssueAndDecodeRoundTrip(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestService(t, Config{
		Secret:   "secret",
		Lifetime: 604800 * time.Second,
		Issuer:   "crudgate",
	}, WithClock(fixedClock(base)))

	token, err := svc.Issue(42, "jane@example.com")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	claims, err := svc.Decode(token)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if claims.MemberID != 42 {
		t.Fatalf("memberId = %d, want 42", claims.MemberID)
	}
	if claims.Email != "jane@example.com" {
		t.Fatalf("email = %q", claims.Email)
	}
	if claims.Issuer != "crudgate" {
		t.Fatalf("issuer = %q", claims.Issuer)
	}
	if !claims.IssuedAt.Time.Equal(base) {
		t.Fatalf("iat = %v, want %v", claims.IssuedAt.Time, base)
	}
	if got, want := claims.ExpiresAt.Time, base.Add(604800*time.Second); !got.Equal(want) {
		t.Fatalf("exp = %v, want %v", got, want)
	}
	if !claims.RenewedAt.Time.Equal(base) {
		t.Fatalf("rat = %v, want %v", claims.RenewedAt.Time, base)
	}
	if claims.ID == "" {
		t.Fatal("expected a jti")
	}
}

func TestDecodeRejectsExpiredToken(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	issueSvc := newTestService(t, Config{Secret: "secret", Lifetime: time.Hour},
		WithClock(fixedClock(base)))
	token, err := issueSvc.Issue(7, "")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	lateSvc := newTestService(t, Config{Secret: "secret", Lifetime: time.Hour},
		WithClock(fixedClock(base.Add(2*time.Hour))))
	if _, err := lateSvc.Decode(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}
	if lateSvc.Validate(token) {
		t.Fatal("Validate must fail for expired token")
	}
}

func TestDecodeRejectsWrongSecret(t *testing.T) {
	svc := newTestService(t, Config{Secret: "secret"})
	token, err := svc.Issue(7, "")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	other := newTestService(t, Config{Secret: "different"})
	if _, err := other.Decode(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestDecodeRejectsWrongIssuer(t *testing.T) {
	svc := newTestService(t, Config{Secret: "secret", Issuer: "other-app"})
	token, err := svc.Issue(7, "")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	strict := newTestService(t, Config{Secret: "secret", Issuer: "crudgate"})
	if _, err := strict.Decode(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestMemberIDSoftFails(t *testing.T) {
	svc := newTestService(t, Config{Secret: "secret"})
	if id, ok := svc.MemberID("garbage"); ok || id != 0 {
		t.Fatalf("expected (0, false), got (%d, %v)", id, ok)
	}
	token, _ := svc.Issue(42, "")
	if id, ok := svc.MemberID(token); !ok || id != 42 {
		t.Fatalf("expected (42, true), got (%d, %v)", id, ok)
	}
}

func TestRenewIfStaleReturnsInputWhileFresh(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := base
	svc := newTestService(t, Config{
		Secret:           "secret",
		Lifetime:         7 * 24 * time.Hour,
		RenewalThreshold: time.Hour,
	}, WithClock(func() time.Time { return clock }))

	token, err := svc.Issue(42, "jane@example.com")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	clock = base.Add(30 * time.Minute)
	renewed, err := svc.RenewIfStale(token)
	if err != nil {
		t.Fatalf("RenewIfStale: %v", err)
	}
	if renewed != token {
		t.Fatal("a fresh token must come back byte-for-byte unchanged")
	}
}

func TestRenewIfStaleResignsPastThreshold(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := base
	svc := newTestService(t, Config{
		Secret:           "secret",
		Lifetime:         7 * 24 * time.Hour,
		RenewalThreshold: time.Hour,
	}, WithClock(func() time.Time { return clock }))

	token, err := svc.Issue(42, "jane@example.com")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	original, err := svc.Decode(token)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	clock = base.Add(2 * time.Hour)
	renewed, err := svc.RenewIfStale(token)
	if err != nil {
		t.Fatalf("RenewIfStale: %v", err)
	}
	if renewed == token {
		t.Fatal("expected a re-signed token")
	}

	claims, err := svc.Decode(renewed)
	if err != nil {
		t.Fatalf("Decode renewed: %v", err)
	}
	if claims.MemberID != original.MemberID || claims.Email != original.Email {
		t.Fatal("subject must carry over on renewal")
	}
	if claims.ID != original.ID {
		t.Fatal("jti must carry over on renewal")
	}
	if !claims.IssuedAt.Time.Equal(original.IssuedAt.Time) {
		t.Fatal("iat must carry over on renewal")
	}
	if !claims.RenewedAt.Time.Equal(clock) {
		t.Fatalf("rat = %v, want %v", claims.RenewedAt.Time, clock)
	}
	if got, want := claims.ExpiresAt.Time, clock.Add(7*24*time.Hour); !got.Equal(want) {
		t.Fatalf("exp = %v, want %v", got, want)
	}
}

func TestRenewIfStaleRejectsInvalidToken(t *testing.T) {
	svc := newTestService(t, Config{Secret: "secret"})
	if _, err := svc.RenewIfStale("garbage"); !errors.Is(err, ErrRenewal) {
		t.Fatalf("expected ErrRenewal, got %v", err)
	}
}

func TestExtractBearerToken(t *testing.T) {
	cases := []struct {
		header string
		token  string
		ok     bool
	}{
		{"Bearer abc.def.ghi", "abc.def.ghi", true},
		{"Basic abc123", "", false},
		{"bearer abc.def.ghi", "", false},
		{"Bearer ", "", false},
		{"Bearer abc def", "", false},
		{"Bearer\tabc", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		token, ok := ExtractBearerToken(tc.header)
		if ok != tc.ok || token != tc.token {
			t.Fatalf("ExtractBearerToken(%q) = (%q, %v), want (%q, %v)",
				tc.header, token, ok, tc.token, tc.ok)
		}
	}
}
