// Package httpapi is the HTTP layer: routing, middleware, auth handshake and
// the generic record endpoints.
package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"crudgate.org/internal/api"
	"crudgate.org/internal/auth"
	"crudgate.org/internal/member"
	"crudgate.org/internal/obs"
	"crudgate.org/internal/store"
	"crudgate.org/internal/stream"
)

const serviceName = "crudgate-api"

// ReadyProbe checks backing dependencies for the readiness endpoint.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	version    string

	tokens   *auth.Service
	members  *member.Directory
	resets   *member.Resets
	registry *api.Registry
	store    store.Store
	ser      *api.Serializer
	events   *stream.Stream
	validate *validator.Validate

	rateBurst    int
	ratePerSec   int
	maxBodyBytes int64
}

// Option adjusts optional API settings at construction time.
type Option func(*API)

// WithLimits overrides the default per-IP rate limit and request body cap.
// Non-positive values keep the corresponding default.
func WithLimits(burst, perSec int, maxBodyBytes int64) Option {
	return func(a *API) {
		if burst > 0 {
			a.rateBurst = burst
		}
		if perSec > 0 {
			a.ratePerSec = perSec
		}
		if maxBodyBytes > 0 {
			a.maxBodyBytes = maxBodyBytes
		}
	}
}

func New(rp ReadyProbe, version string, tokens *auth.Service, members *member.Directory, resets *member.Resets, registry *api.Registry, st store.Store, events *stream.Stream, opts ...Option) *API {
	a := &API{
		mux:        http.NewServeMux(),
		readyProbe: rp,
		version:    version,

		tokens:   tokens,
		members:  members,
		resets:   resets,
		registry: registry,
		store:    st,
		ser:      api.NewSerializer(registry, st),
		events:   events,
		validate: validator.New(),

		rateBurst:    20,
		ratePerSec:   10,
		maxBodyBytes: 1 << 20,
	}
	for _, opt := range opts {
		opt(a)
	}

	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/info", a.Info)

	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/auth/", a.handleAuth)
	a.mux.HandleFunc("/api/events", a.Stream)
	a.mux.HandleFunc("/api/", a.handleRecords)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler assembles the full middleware chain around the mux.
func (a *API) Handler() http.Handler {
	h := http.Handler(a.mux)
	h = a.withAuth(h)
	h = MaxBodyBytes(h, a.maxBodyBytes)
	h = RateLimit(h, a.rateBurst, a.ratePerSec)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": serviceName,
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":     serviceName,
		"time":     time.Now().UTC().Format(time.RFC3339),
		"version":  a.version,
		"entities": a.registry.Types(),
	})
}
