package httpapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"crudgate.org/internal/api"
	"crudgate.org/internal/auth"
	"crudgate.org/internal/member"
	"crudgate.org/internal/store"
	"crudgate.org/internal/stream"
)

func newLimitedServer(t *testing.T, opts ...Option) *httptest.Server {
	t.Helper()

	st := store.NewMemory()
	tokens, err := auth.NewService(auth.Config{Secret: "test-secret"})
	if err != nil {
		t.Fatalf("token service: %v", err)
	}
	members := member.NewDirectory(st)
	resets := member.NewResets(st, time.Hour)

	reg := api.NewRegistry()
	reg.MustRegister(member.Schema(), member.Capabilities())
	reg.MustRegister(member.ResetSchema(), member.ResetCapabilities())

	a := New(ReadyProbe{}, "test", tokens, members, resets, reg, st, stream.New(), opts...)
	srv := httptest.NewServer(a.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func TestWithLimitsGovernsRateLimit(t *testing.T) {
	srv := newLimitedServer(t, WithLimits(1, 1, 0))

	first, err := srv.Client().Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("first request: %v", err)
	}
	first.Body.Close()
	if first.StatusCode != http.StatusOK {
		t.Fatalf("first status = %d", first.StatusCode)
	}

	second, err := srv.Client().Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("second request: %v", err)
	}
	second.Body.Close()
	if second.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("second status = %d, want 429", second.StatusCode)
	}
}

func TestWithLimitsGovernsBodyCap(t *testing.T) {
	srv := newLimitedServer(t, WithLimits(100, 100, 64))

	body := `{"email":"jane@example.com","password":"` + strings.Repeat("x", 128) + `"}`
	resp, err := srv.Client().Post(srv.URL+"/auth/login", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 from the body cap", resp.StatusCode)
	}
}
