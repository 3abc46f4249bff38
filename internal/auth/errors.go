package auth

import "errors"

var (
	// ErrNoSecret indicates the signing secret is missing from configuration.
	// Token operations must not start at all in that state.
	ErrNoSecret = errors.New("auth: signing secret is not configured")
	// ErrInvalidToken covers every decode failure uniformly so callers cannot
	// tell which factor failed.
	ErrInvalidToken = errors.New("auth: invalid token")
	// ErrRenewal indicates a renewal attempt on a token that does not decode.
	ErrRenewal = errors.New("auth: token renewal failed")
	// ErrNotFound indicates the principal behind a token no longer exists.
	ErrNotFound = errors.New("auth: member not found")
	// ErrBadCredentials indicates a failed email/password login.
	ErrBadCredentials = errors.New("auth: invalid credentials")
)
