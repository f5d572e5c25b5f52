package widgetapi

import (
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	"vestiva/pkg/middleware"
)

type issueRequest struct {
	ClientID    string   `json:"clientId"`
	Permissions []string `json:"permissions"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// POST /api/widget/token: the Origin header is the domain the token is bound to.
func (a *App) issueToken(w http.ResponseWriter, r *http.Request) {
	var in issueRequest
	if err := decodeJSON(r, &in); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	origin := r.Header.Get("Origin")
	if in.ClientID == "" || origin == "" {
		middleware.WriteError(w, http.StatusBadRequest, "Missing clientId or origin")
		return
	}
	tok, err := a.tokens.Generate(r.Context(), in.ClientID, origin, in.Permissions)
	if err != nil {
		a.log.Warnw("widget token generation failed", "clientId", in.ClientID, "origin", origin, "err", err)
		middleware.WriteError(w, http.StatusUnauthorized, "Token generation failed")
		return
	}
	writeJSON(w, tokenResponse{Token: tok.Raw, ExpiresAt: tok.ExpiresAt}, http.StatusOK)
}

// POST /api/widget/validate
func (a *App) validateToken(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Token string `json:"token"`
	}
	if err := decodeJSON(r, &in); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	origin := r.Header.Get("Origin")
	if in.Token == "" || origin == "" {
		middleware.WriteError(w, http.StatusBadRequest, "Missing token or origin")
		return
	}
	writeJSON(w, a.tokens.Validate(r.Context(), in.Token, origin), http.StatusOK)
}

// GET /api/widget/domains/{domain}?clientId=
func (a *App) checkDomain(w http.ResponseWriter, r *http.Request) {
	domain, err := url.PathUnescape(chi.URLParam(r, "domain"))
	clientID := r.URL.Query().Get("clientId")
	if err != nil || domain == "" || clientID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "Missing domain or clientId")
		return
	}
	writeJSON(w, map[string]bool{"isValid": a.registry.IsAuthorized(r.Context(), domain, clientID)}, http.StatusOK)
}

type handshakeRequest struct {
	ClientID    string   `json:"clientId"`
	Domain      string   `json:"domain"`
	Permissions []string `json:"permissions,omitempty"`
}

// POST /api/widget/validate-domain: first handshake step, authenticated with the client token.
func (a *App) validateDomain(w http.ResponseWriter, r *http.Request) {
	in, domain, ok := a.handshake(w, r)
	if !ok {
		return
	}
	valid := domain != "" && a.registry.IsAuthorized(r.Context(), domain, in.ClientID)
	writeJSON(w, map[string]bool{"valid": valid}, http.StatusOK)
}

// POST /api/widget/auth: second handshake step, mints a widget token.
func (a *App) authenticate(w http.ResponseWriter, r *http.Request) {
	in, domain, ok := a.handshake(w, r)
	if !ok {
		return
	}
	if domain == "" {
		middleware.WriteError(w, http.StatusUnauthorized, "Authentication failed")
		return
	}
	tok, err := a.tokens.Generate(r.Context(), in.ClientID, domain, in.Permissions)
	if err != nil {
		a.log.Warnw("widget handshake refused", "clientId", in.ClientID, "domain", domain, "err", err)
		middleware.WriteError(w, http.StatusUnauthorized, "Authentication failed")
		return
	}
	writeJSON(w, tokenResponse{Token: tok.Raw, ExpiresAt: tok.ExpiresAt}, http.StatusOK)
}

// handshake decodes the body and authenticates the client token. It returns
// the domain to check, or "" when the Origin header and body disagree.
func (a *App) handshake(w http.ResponseWriter, r *http.Request) (handshakeRequest, string, bool) {
	var in handshakeRequest
	if err := decodeJSON(r, &in); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return in, "", false
	}
	if in.ClientID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "Missing clientId")
		return in, "", false
	}
	secret, ok := middleware.BearerToken(r)
	if !ok {
		middleware.WriteError(w, http.StatusUnauthorized, "Authentication failed")
		return in, "", false
	}
	if _, err := a.registry.AuthenticateClient(r.Context(), in.ClientID, secret); err != nil {
		a.log.Warnw("client authentication failed", "clientId", in.ClientID, "err", err)
		middleware.WriteError(w, http.StatusUnauthorized, "Authentication failed")
		return in, "", false
	}
	return in, handshakeDomain(r.Header.Get("Origin"), in.Domain), true
}

// handshakeDomain prefers the browser-set Origin. A body domain is only used
// by non-browser callers and must agree with Origin when both are present.
func handshakeDomain(origin, body string) string {
	switch {
	case origin != "" && body != "" && origin != body:
		return ""
	case origin != "":
		return origin
	default:
		return body
	}
}

// GET /api/widget/session
func (a *App) session(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.WidgetFrom(r.Context())
	perms := id.Permissions
	if perms == nil {
		perms = []string{}
	}
	writeJSON(w, map[string]any{"clientId": id.ClientID, "permissions": perms}, http.StatusOK)
}
