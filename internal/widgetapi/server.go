package widgetapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"vestiva/internal/manifest"
	"vestiva/pkg/middleware"
)

// Handler builds the HTTP handler with routes and middleware.
func (a *App) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID(), chimw.RealIP, middleware.Recover(a.log), middleware.Tracing("vestiva-widget", a.log))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	r.Handle("/metrics", promhttp.Handler())
	manifest.RegisterRoutes(r, a.cfg)

	r.Route("/api/widget", func(wr chi.Router) {
		wr.Use(middleware.CORS(a.registry, a.cfg.DevOrigins))
		wr.Use(chimw.AllowContentType("application/json"))

		wr.With(a.limiter.Middleware).Post("/token", a.issueToken)
		wr.Post("/validate", a.validateToken)
		wr.Get("/domains/{domain}", a.checkDomain)
		wr.Post("/validate-domain", a.validateDomain)
		wr.With(a.limiter.Middleware).Post("/auth", a.authenticate)
		wr.With(middleware.WidgetAuth(a.widgetIdentity)).Get("/session", a.session)
	})
	return r
}

func (a *App) widgetIdentity(ctx context.Context, raw, origin string) (middleware.Widget, bool) {
	res := a.tokens.Validate(ctx, raw, origin)
	if !res.Valid {
		return middleware.Widget{}, false
	}
	return middleware.Widget{ClientID: res.ClientID, Permissions: res.Permissions}, true
}
