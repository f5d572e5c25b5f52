// pkg/config/config.go
package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env      string
	HTTPAddr string // widget-service

	// Widget token signing
	JWTSecret string
	TokenTTL  time.Duration

	// Public URLs advertised in the loader manifest
	EmbedURL  string // iframe content (embed runtime)
	PublicURL string // API base

	// Token endpoint rate limiting (per client IP)
	RateLimitWindow time.Duration
	RateLimitMax    int

	HandshakeTimeout time.Duration

	// Client registry sources (first non-empty wins: DATABASE_URL, CLIENTS_FILE, CLIENT_SEED_JSON)
	DatabaseURL    string
	ClientsFile    string
	ClientSeedJSON string
	RedisURL       string

	// Extra CORS origins accepted in dev in addition to authorised client domains
	DevOrigins []string
}

func Load() Config {
	_ = godotenv.Load()
	cfg := Config{
		Env:              env("VESTIVA_ENV", "dev"),
		HTTPAddr:         env("VESTIVA_HTTP_ADDR", ":3000"),
		JWTSecret:        env("WIDGET_JWT_SECRET", ""),
		TokenTTL:         envDur("WIDGET_TOKEN_TTL_SEC", 3600) * time.Second,
		EmbedURL:         strings.TrimRight(env("WIDGET_EMBED_URL", "http://localhost:5173"), "/"),
		PublicURL:        strings.TrimRight(env("WIDGET_PUBLIC_URL", "http://localhost:3000"), "/"),
		RateLimitWindow:  envDur("RATE_LIMIT_WINDOW_SEC", 900) * time.Second,
		RateLimitMax:     envInt("RATE_LIMIT_MAX", 100),
		HandshakeTimeout: envDur("HANDSHAKE_TIMEOUT_SEC", 5) * time.Second,
		DatabaseURL:      env("DATABASE_URL", ""),
		ClientsFile:      env("CLIENTS_FILE", ""),
		ClientSeedJSON:   env("CLIENT_SEED_JSON", ""),
		RedisURL:         env("REDIS_URL", ""),
		DevOrigins:       envList("CORS_DEV_ORIGINS"),
	}
	if cfg.JWTSecret == "" && cfg.Env != "prod" {
		log.Println("[WARN] WIDGET_JWT_SECRET not set; using a random per-process secret")
		cfg.JWTSecret = randomSecret()
	}
	if cfg.DatabaseURL == "" {
		log.Println("[WARN] DATABASE_URL not set; using in-memory client registry")
	}
	return cfg
}

// Validate reports settings the service cannot start without.
func (c Config) Validate() error {
	var errs []error
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("WIDGET_JWT_SECRET is required"))
	} else if c.Env == "prod" && len(c.JWTSecret) < 32 {
		errs = append(errs, errors.New("WIDGET_JWT_SECRET must be at least 32 bytes in prod"))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New("WIDGET_TOKEN_TTL_SEC must be positive"))
	}
	if c.RateLimitMax < 0 || c.RateLimitWindow <= 0 {
		errs = append(errs, errors.New("rate limit window and max must be positive"))
	}
	if c.HandshakeTimeout <= 0 {
		errs = append(errs, errors.New("HANDSHAKE_TIMEOUT_SEC must be positive"))
	}
	return errors.Join(errs...)
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
func envInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}
func envDur(k string, def int) time.Duration {
	return time.Duration(envInt(k, def))
}
func envList(k string) []string {
	var out []string
	for _, p := range strings.Split(os.Getenv(k), ",") {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func randomSecret() string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
