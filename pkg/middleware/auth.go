// pkg/middleware/auth.go
package middleware

import (
	"context"
	"net/http"
	"strings"
)

// WidgetTokenValidator checks a widget token against the calling origin.
// It reports only success or failure; reasons stay server side.
type WidgetTokenValidator func(ctx context.Context, raw, origin string) (Widget, bool)

// WidgetAuth requires a bearer widget token valid for the request Origin and
// stores the resulting identity in the context. Every failure is a plain 401.
func WidgetAuth(validate WidgetTokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := BearerToken(r)
			origin := r.Header.Get("Origin")
			if !ok || origin == "" {
				WriteError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			id, ok := validate(r.Context(), raw, origin)
			if !ok {
				WriteError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithWidget(r.Context(), id)))
		})
	}
}

// BearerToken extracts the token of an "Authorization: Bearer <token>" header.
func BearerToken(r *http.Request) (string, bool) {
	authz := r.Header.Get("Authorization")
	if len(authz) < len("bearer ") || !strings.EqualFold(authz[:len("bearer ")], "bearer ") {
		return "", false
	}
	tok := strings.TrimSpace(authz[len("bearer "):])
	return tok, tok != ""
}
