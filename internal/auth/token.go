package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	defaultLifetime         = 7 * 24 * time.Hour
	defaultRenewalThreshold = time.Hour
)

// Config is the immutable token configuration snapshot. Secret is required;
// the service refuses to start without one rather than signing with a default.
type Config struct {
	Secret           string
	Lifetime         time.Duration
	RenewalThreshold time.Duration
	Algorithm        string // HS256 (default), HS384 or HS512
	Issuer           string
}

// Claims is the signed token payload. RenewedAt ("rat") tracks the sliding
// renewal clock; it starts equal to IssuedAt and moves forward on each renewal.
type Claims struct {
	MemberID  int64            `json:"memberId"`
	Email     string           `json:"email,omitempty"`
	RenewedAt *jwt.NumericDate `json:"rat,omitempty"`
	jwt.RegisteredClaims
}

func (c *Claims) renewedAt() time.Time {
	if c.RenewedAt != nil {
		return c.RenewedAt.Time
	}
	// Tokens predating the rat claim fall back to issued-at.
	if c.IssuedAt != nil {
		return c.IssuedAt.Time
	}
	return time.Time{}
}

// Service issues, validates and renews bearer tokens. It is stateless: every
// decision is a pure function of the token string, the configured secret and
// the clock, so concurrent use needs no coordination.
type Service struct {
	secret           []byte
	lifetime         time.Duration
	renewalThreshold time.Duration
	method           jwt.SigningMethod
	issuer           string
	now              func() time.Time
}

// Option configures Service behavior.
type Option func(*Service)

// WithClock overrides the time source. Only intended for test use.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService validates the configuration and builds a token service.
func NewService(cfg Config, opts ...Option) (*Service, error) {
	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return nil, ErrNoSecret
	}
	s := &Service{
		secret:           []byte(secret),
		lifetime:         cfg.Lifetime,
		renewalThreshold: cfg.RenewalThreshold,
		issuer:           strings.TrimSpace(cfg.Issuer),
		now:              time.Now,
	}
	if s.lifetime <= 0 {
		s.lifetime = defaultLifetime
	}
	if s.renewalThreshold <= 0 {
		s.renewalThreshold = defaultRenewalThreshold
	}
	switch strings.ToUpper(strings.TrimSpace(cfg.Algorithm)) {
	case "", "HS256":
		s.method = jwt.SigningMethodHS256
	case "HS384":
		s.method = jwt.SigningMethodHS384
	case "HS512":
		s.method = jwt.SigningMethodHS512
	default:
		return nil, fmt.Errorf("auth: unsupported signing algorithm %q", cfg.Algorithm)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Lifetime reports the configured token lifetime.
func (s *Service) Lifetime() time.Duration { return s.lifetime }

// Issue signs a fresh token for the member. Issued-at and renewed-at start
// equal; expiry is issued-at plus the configured lifetime.
func (s *Service) Issue(memberID int64, email string) (string, error) {
	now := s.now().UTC()
	claims := Claims{
		MemberID:  memberID,
		Email:     email,
		RenewedAt: jwt.NewNumericDate(now),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.lifetime)),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(s.method, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Decode verifies the signature and registered claims. Expiry is enforced
// here, at the parse step, never left to callers.
func (s *Service) Decode(token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{s.method.Alg()}),
		jwt.WithTimeFunc(s.now),
	}
	if s.issuer != "" {
		options = append(options, jwt.WithIssuer(s.issuer))
	}
	parsed, err := jwt.NewParser(options...).ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.MemberID <= 0 {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Validate reports whether the token decodes cleanly.
func (s *Service) Validate(token string) bool {
	_, err := s.Decode(token)
	return err == nil
}

// MemberID extracts the subject identifier. Authentication is a soft-fail
// operation: any decode problem yields (0, false), never an error.
func (s *Service) MemberID(token string) (int64, bool) {
	claims, err := s.Decode(token)
	if err != nil {
		return 0, false
	}
	return claims.MemberID, true
}

// RenewIfStale returns the input token unchanged while the renewal threshold
// has not elapsed since the last renewal. Once it has, a re-signed token with
// a fresh renewed-at and expiry is returned; subject, email, issued-at and
// token id carry over. Unlike MemberID, a token that fails to decode is an
// error: renewal is only ever invoked after successful validation.
func (s *Service) RenewIfStale(token string) (string, error) {
	claims, err := s.Decode(token)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRenewal, err)
	}
	now := s.now().UTC()
	if now.Sub(claims.renewedAt()) < s.renewalThreshold {
		return token, nil
	}

	renewed := Claims{
		MemberID:  claims.MemberID,
		Email:     claims.Email,
		RenewedAt: jwt.NewNumericDate(now),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    claims.Issuer,
			IssuedAt:  claims.IssuedAt,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.lifetime)),
			ID:        claims.ID,
		},
	}
	signed, err := jwt.NewWithClaims(s.method, renewed).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRenewal, err)
	}
	return signed, nil
}
