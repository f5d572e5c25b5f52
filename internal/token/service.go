// Package token issues and validates short-lived widget access tokens.
package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"go.uber.org/zap"

	"vestiva/pkg/clients"
	"vestiva/pkg/logger"
	"vestiva/pkg/metrics"
)

// Type tags widget tokens among other tokens signed with the same key.
const Type = "widget"

// DefaultTTL is the validity window of a widget token.
const DefaultTTL = time.Hour

var (
	// ErrInvalidClient means the client is unknown or inactive.
	ErrInvalidClient = errors.New("invalid or inactive client")
	// ErrUnauthorizedDomain means the domain is not in the client's authorized list.
	ErrUnauthorizedDomain = errors.New("unauthorized domain")
)

const (
	claimType        = "type"
	claimClientID    = "clientId"
	claimDomain      = "domain"
	claimPermissions = "permissions"
)

// Token is a freshly minted widget token.
type Token struct {
	Raw         string
	ID          string
	ClientID    string
	Domain      string // exact origin the token is bound to
	Permissions []string
	IssuedAt    time.Time
	ExpiresAt   time.Time
}

// Result is the outcome of Validate. Invalid results carry no detail.
type Result struct {
	Valid       bool     `json:"valid"`
	ClientID    string   `json:"clientId,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}

// Service is stateless: tokens are never persisted, only signed and verified.
type Service struct {
	registry *clients.Registry
	key      []byte
	ttl      time.Duration
	now      func() time.Time
	log      *zap.SugaredLogger
}

type Option func(*Service)

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithClock replaces time.Now (tests).
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(registry *clients.Registry, secret []byte, log *zap.SugaredLogger, opts ...Option) *Service {
	s := &Service{
		registry: registry,
		key:      append([]byte(nil), secret...),
		ttl:      DefaultTTL,
		now:      time.Now,
		log:      logger.OrNop(log),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Generate mints a token for clientID bound to domain.
// Wildcard patterns in the client's authorizedDomains are evaluated here and only here.
func (s *Service) Generate(ctx context.Context, clientID, domain string, permissions []string) (Token, error) {
	reg, err := s.registry.Lookup(ctx, clientID)
	if err != nil || !reg.Active {
		metrics.TokenIssueRejections.WithLabelValues("invalid_client").Inc()
		s.log.Warnw("token generation refused", "clientId", clientID, "reason", "invalid_client", "err", err)
		return Token{}, ErrInvalidClient
	}
	if !s.registry.IsAuthorized(ctx, domain, clientID) {
		metrics.TokenIssueRejections.WithLabelValues("unauthorized_domain").Inc()
		s.log.Warnw("token generation refused", "clientId", clientID, "domain", domain, "reason", "unauthorized_domain")
		return Token{}, ErrUnauthorizedDomain
	}

	perms := append([]string{}, permissions...)
	now := s.now().Truncate(time.Second)
	t := Token{
		ID:          uuid.NewString(),
		ClientID:    clientID,
		Domain:      domain,
		Permissions: perms,
		IssuedAt:    now,
		ExpiresAt:   now.Add(s.ttl),
	}
	jt, err := jwt.NewBuilder().
		JwtID(t.ID).
		IssuedAt(t.IssuedAt).
		Expiration(t.ExpiresAt).
		Claim(claimType, Type).
		Claim(claimClientID, clientID).
		Claim(claimDomain, domain).
		Claim(claimPermissions, perms).
		Build()
	if err != nil {
		return Token{}, fmt.Errorf("build token: %w", err)
	}
	signed, err := jwt.Sign(jt, jwt.WithKey(jwa.HS256, s.key))
	if err != nil {
		return Token{}, fmt.Errorf("sign token: %w", err)
	}
	t.Raw = string(signed)
	metrics.TokensIssued.WithLabelValues(clientID).Inc()
	s.log.Infow("widget token issued", "clientId", clientID, "domain", domain, "jti", t.ID, "exp", t.ExpiresAt)
	return t, nil
}

// Validate checks raw as presented from origin. It never returns an error:
// every failure collapses to Result{Valid: false} and the reason is only logged.
func (s *Service) Validate(ctx context.Context, raw, origin string) Result {
	clientID, perms, reason := s.verify(ctx, raw, origin)
	if reason != "" {
		metrics.TokenValidations.WithLabelValues("invalid", reason).Inc()
		s.log.Infow("widget token rejected", "reason", reason, "origin", origin, "clientId", clientID)
		return Result{Valid: false}
	}
	metrics.TokenValidations.WithLabelValues("valid", "").Inc()
	return Result{Valid: true, ClientID: clientID, Permissions: perms}
}

func (s *Service) verify(ctx context.Context, raw, origin string) (clientID string, perms []string, reason string) {
	if raw == "" {
		return "", nil, "malformed"
	}
	jt, err := jwt.Parse([]byte(raw),
		jwt.WithKey(jwa.HS256, s.key),
		jwt.WithValidate(true),
		jwt.WithClock(jwt.ClockFunc(s.now)),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired()) {
			return "", nil, "expired"
		}
		return "", nil, "signature_or_format"
	}
	if typ, _ := stringClaim(jt, claimType); typ != Type {
		return "", nil, "wrong_type"
	}
	clientID, _ = stringClaim(jt, claimClientID)
	domain, _ := stringClaim(jt, claimDomain)
	if origin == "" || domain != origin {
		return clientID, nil, "domain_mismatch"
	}
	reg, err := s.registry.Lookup(ctx, clientID)
	if err != nil || !reg.Active {
		return clientID, nil, "inactive_client"
	}
	perms, ok := stringsClaim(jt, claimPermissions)
	if !ok {
		return clientID, nil, "malformed"
	}
	return clientID, perms, ""
}

func stringClaim(jt jwt.Token, name string) (string, bool) {
	v, ok := jt.Get(name)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func stringsClaim(jt jwt.Token, name string) ([]string, bool) {
	v, ok := jt.Get(name)
	if !ok {
		return []string{}, true
	}
	switch vv := v.(type) {
	case []string:
		return append([]string{}, vv...), true
	case []any:
		out := make([]string, 0, len(vv))
		for _, e := range vv {
			s, ok := e.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	case nil:
		return []string{}, true
	}
	return nil, false
}
