package clients

import (
	"context"
	"crypto/subtle"
	"errors"

	"go.uber.org/zap"

	"vestiva/pkg/logger"
)

// Registry answers authorization questions on top of a Provider.
// It is read-only: registrations are managed outside the widget service.
type Registry struct {
	prov Provider
	log  *zap.SugaredLogger
}

func NewRegistry(prov Provider, log *zap.SugaredLogger) *Registry {
	return &Registry{prov: prov, log: logger.OrNop(log)}
}

// Lookup resolves a registration; unknown ids yield ErrClientNotFound.
func (r *Registry) Lookup(ctx context.Context, clientID string) (Registration, error) {
	if clientID == "" {
		return Registration{}, ErrClientNotFound
	}
	return r.prov.Lookup(ctx, clientID)
}

// IsAuthorized reports whether domain may obtain tokens for clientID.
// It fails closed: unknown clients and lookup errors return false.
func (r *Registry) IsAuthorized(ctx context.Context, domain, clientID string) bool {
	reg, err := r.Lookup(ctx, clientID)
	if err != nil {
		if !errors.Is(err, ErrClientNotFound) {
			r.log.Errorw("domain authorization lookup failed", "clientId", clientID, "err", err)
		}
		return false
	}
	return MatchAny(reg.AuthorizedDomains, domain)
}

// AuthenticateClient checks the integrator's long-lived clientToken.
// Unknown clients, inactive clients and token mismatches all return an error;
// callers must not reveal which one occurred.
func (r *Registry) AuthenticateClient(ctx context.Context, clientID, clientToken string) (Registration, error) {
	reg, err := r.Lookup(ctx, clientID)
	if err != nil {
		return Registration{}, err
	}
	if !reg.Active {
		return Registration{}, ErrInactiveClient
	}
	got := HashClientToken(clientToken)
	if clientToken == "" || reg.TokenHash == "" || subtle.ConstantTimeCompare([]byte(got), []byte(reg.TokenHash)) != 1 {
		return Registration{}, ErrInvalidCredentials
	}
	return reg, nil
}

// OriginAllowed reports whether any active registration authorizes origin (CORS).
func (r *Registry) OriginAllowed(ctx context.Context, origin string) bool {
	regs, err := r.prov.List(ctx)
	if err != nil {
		r.log.Errorw("list clients for cors", "err", err)
		return false
	}
	for _, reg := range regs {
		if reg.Active && MatchAny(reg.AuthorizedDomains, origin) {
			return true
		}
	}
	return false
}
