// internal/manifest/service.go
package manifest

import (
	"net/url"

	"vestiva/pkg/bus"
	"vestiva/pkg/config"
)

// Version of the loader contract; bumped when message types or endpoints change.
const Version = "1"

type Endpoints struct {
	Token          string `json:"token"`
	Validate       string `json:"validate"`
	Domains        string `json:"domains"`
	ValidateDomain string `json:"validate_domain"`
	Auth           string `json:"auth"`
	Session        string `json:"session"`
}

type Messages struct {
	EventPrefix string   `json:"event_prefix"`
	HostToEmbed []string `json:"host_to_embed"`
	EmbedToHost []string `json:"embed_to_host"`
}

// Manifest is what the host loader fetches before mounting an embed.
type Manifest struct {
	Version     string    `json:"version"`
	EmbedURL    string    `json:"embed_url"`
	EmbedOrigin string    `json:"embed_origin"`
	APIBase     string    `json:"api_base"`
	Endpoints   Endpoints `json:"endpoints"`
	Messages    Messages  `json:"messages"`

	// HandshakeTimeoutMS bounds the bundle validate-domain + auth sequence.
	HandshakeTimeoutMS int64 `json:"handshake_timeout_ms,omitempty"`
}

func BuildManifest(cfg config.Config) Manifest {
	base := cfg.PublicURL
	return Manifest{
		Version:     Version,
		EmbedURL:    cfg.EmbedURL,
		EmbedOrigin: originOf(cfg.EmbedURL),
		APIBase:     base,
		Endpoints: Endpoints{
			Token:          base + "/api/widget/token",
			Validate:       base + "/api/widget/validate",
			Domains:        base + "/api/widget/domains/{domain}",
			ValidateDomain: base + "/api/widget/validate-domain",
			Auth:           base + "/api/widget/auth",
			Session:        base + "/api/widget/session",
		},
		Messages: Messages{
			EventPrefix: bus.EventPrefix,
			HostToEmbed: []string{bus.TypeConfigUpdate, bus.TypeExit},
			EmbedToHost: []string{bus.TypeHeight, bus.TypeReady, bus.TypeError},
		},
		HandshakeTimeoutMS: cfg.HandshakeTimeout.Milliseconds(),
	}
}

// originOf returns scheme://host[:port] of raw, or raw itself when it does not parse.
func originOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return raw
	}
	return u.Scheme + "://" + u.Host
}
