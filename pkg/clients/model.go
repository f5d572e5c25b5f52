package clients

import (
	"crypto/sha256"
	"encoding/hex"
)

// Registration represents an integrator permitted to embed the widget.
type Registration struct {
	ClientID          string   // opaque, unique
	Name              string   // display name (Test Client)
	Active            bool     // inactive clients cannot obtain or use tokens
	AuthorizedDomains []string // exact origins or "*.base" wildcard-subdomain patterns
	TokenHash         string   // sha256 hex of the long-lived clientToken used by the handshake endpoints
}

// seedEntry is the on-disk / env shape of a registration (JSON or YAML).
type seedEntry struct {
	ClientID          string   `json:"clientId" yaml:"clientId"`
	Name              string   `json:"name" yaml:"name"`
	Active            *bool    `json:"active" yaml:"active"`
	AuthorizedDomains []string `json:"authorizedDomains" yaml:"authorizedDomains"`
	ClientToken       string   `json:"clientToken" yaml:"clientToken"`
}

func (e seedEntry) registration() Registration {
	active := true
	if e.Active != nil {
		active = *e.Active
	}
	r := Registration{
		ClientID:          e.ClientID,
		Name:              e.Name,
		Active:            active,
		AuthorizedDomains: append([]string(nil), e.AuthorizedDomains...),
	}
	if e.ClientToken != "" {
		r.TokenHash = HashClientToken(e.ClientToken)
	}
	return r
}

// HashClientToken returns the stored form of an integrator clientToken.
func HashClientToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
