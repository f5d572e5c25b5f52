// pkg/middleware/cors.go
package middleware

import (
	"context"
	"net/http"
	"slices"
)

// OriginChecker reports whether a browser origin may call the API.
type OriginChecker interface {
	OriginAllowed(ctx context.Context, origin string) bool
}

// CORS reflects the request origin when it is authorised for an active client
// or listed in extra. Disallowed origins get no CORS headers, so browsers
// refuse to expose the response; preflights from them get 403.
func CORS(checker OriginChecker, extra []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			preflight := r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != ""
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Add("Vary", "Origin")
			allowed := slices.Contains(extra, origin) || checker.OriginAllowed(r.Context(), origin)
			if allowed {
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Credentials", "true")
				h.Set("Access-Control-Expose-Headers", "Retry-After, X-Request-Id, X-RateLimit-Limit, X-RateLimit-Remaining")
			}
			if preflight {
				if !allowed {
					w.WriteHeader(http.StatusForbidden)
					return
				}
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-Id")
				w.Header().Set("Access-Control-Max-Age", "600")
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
