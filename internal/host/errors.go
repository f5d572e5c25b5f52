package host

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"vestiva/pkg/widgetclient"
)

// ErrorKind classifies loader failures.
type ErrorKind int

const (
	KindConfiguration ErrorKind = iota + 1 // missing container or credentials, invalid config
	KindAuthorization                      // domain not authorized, bad client token
	KindTransport                          // transport load, network failure, timeout
	KindRender                             // embed render failure
)

func (k ErrorKind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindAuthorization:
		return "authorization"
	case KindTransport:
		return "transport"
	case KindRender:
		return "render"
	}
	return "unknown"
}

var (
	ErrContainerNotFound  = errors.New("container not found")
	ErrMissingCredentials = errors.New("missing client credentials")
	// ErrAuthenticationFailed is the only detail an authorization error exposes.
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrHandshakeTimeout     = errors.New("handshake timed out")
	ErrRender               = errors.New("embed render failed")
	// ErrInactive is returned by Update on a failed or destroyed instance.
	ErrInactive = errors.New("embed instance is not active")
)

// Error is what OnError and vestiva:error receive.
type Error struct {
	Kind ErrorKind
	Err  error

	cause error // server-side detail of authorization failures, logged only
}

func (e *Error) Error() string { return e.Kind.String() + ": " + e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }

func newError(kind ErrorKind, err error) *Error {
	var he *Error
	if errors.As(err, &he) {
		return he
	}
	return &Error{Kind: kind, Err: err}
}

// authFailed collapses every authorization failure into one public message.
func authFailed(cause error) *Error {
	return &Error{Kind: KindAuthorization, Err: ErrAuthenticationFailed, cause: cause}
}

// classify maps a widget API failure onto the taxonomy. 401/403 become
// authorization failures; rate limiting, timeouts and network errors are
// transport failures.
func classify(err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTransport, Err: ErrHandshakeTimeout, cause: err}
	}
	var se *widgetclient.StatusError
	if errors.As(err, &se) && (se.Code == http.StatusUnauthorized || se.Code == http.StatusForbidden) {
		return authFailed(err)
	}
	var rl *widgetclient.RateLimitError
	if errors.As(err, &rl) {
		return &Error{Kind: KindTransport, Err: err}
	}
	return &Error{Kind: KindTransport, Err: fmt.Errorf("widget api: %w", err)}
}
