package httpapi

import (
	"net/http"

	"crudgate.org/internal/auth"
	"crudgate.org/internal/obs"
)

const (
	authHeader = "Authorization"

	// renewedTokenHeader carries a re-signed token back to the client when
	// the presented one crossed the renewal threshold.
	renewedTokenHeader = "X-Renewed-Token"
)

// withAuth resolves the bearer token into a principal. Every failure mode
// falls through to anonymous: endpoints that need a principal reject the
// request themselves, so a bad token on a public endpoint stays harmless.
func (a *API) withAuth(next http.Handler) http.Handler {
	if a.tokens == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		raw, ok := auth.ExtractBearerToken(r.Header.Get(authHeader))
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		claims, err := a.tokens.Decode(raw)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		principal := &auth.Principal{ID: claims.MemberID, Email: claims.Email}
		if a.members != nil {
			p, err := a.members.ByID(r.Context(), claims.MemberID)
			if err != nil {
				// token subject no longer exists
				next.ServeHTTP(w, r)
				return
			}
			principal = p
		}

		// Renewal is best-effort: the request already authenticated, so a
		// renewal failure must not turn into a response error.
		if renewed, err := a.tokens.RenewIfStale(raw); err == nil && renewed != raw {
			w.Header().Set(renewedTokenHeader, renewed)
			obs.TokenRenewed()
		}

		ctx := auth.ContextWithPrincipal(r.Context(), principal)
		ctx = auth.ContextWithToken(ctx, raw)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func principalFrom(r *http.Request) *auth.Principal {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		return nil
	}
	return p
}
