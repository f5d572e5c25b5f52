// pkg/middleware/scope.go
package middleware

import (
	"context"
	"net/http"
	"slices"
)

type widgetCtxKey struct{}

// Widget is the caller identity established from a widget token.
type Widget struct {
	ClientID    string
	Permissions []string
}

func WithWidget(ctx context.Context, w Widget) context.Context {
	return context.WithValue(ctx, widgetCtxKey{}, w)
}

// WidgetFrom returns the identity stored by WidgetAuth.
func WidgetFrom(ctx context.Context) (Widget, bool) {
	w, ok := ctx.Value(widgetCtxKey{}).(Widget)
	return w, ok
}

// HasAnyPermission returns true if the caller holds at least one of required.
// An empty required list always passes.
func HasAnyPermission(ctx context.Context, required ...string) bool {
	if len(required) == 0 {
		return true
	}
	w, ok := WidgetFrom(ctx)
	if !ok {
		return false
	}
	for _, p := range required {
		if slices.Contains(w.Permissions, p) {
			return true
		}
	}
	return false
}

// RequirePermission rejects callers lacking every one of perms with 403.
// It must run after WidgetAuth.
func RequirePermission(perms ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !HasAnyPermission(r.Context(), perms...) {
				WriteError(w, http.StatusForbidden, "Insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
