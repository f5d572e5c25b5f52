package clients

import (
	"context"
	"errors"
)

var (
	// ErrClientNotFound is returned by providers for unknown client ids.
	ErrClientNotFound = errors.New("client not found")
	// ErrInvalidCredentials is returned when a clientToken does not match the registration.
	ErrInvalidCredentials = errors.New("invalid client credentials")
	// ErrInactiveClient is returned when a registration exists but is deactivated.
	ErrInactiveClient = errors.New("client inactive")
)

// Provider is the read-only source of client registrations.
type Provider interface {
	// Lookup resolves a registration by client id.
	Lookup(ctx context.Context, clientID string) (Registration, error)
	// List returns every registration (used for CORS origin checks).
	List(ctx context.Context) ([]Registration, error)
}
