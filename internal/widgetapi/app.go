// Package widgetapi serves the widget token, validation and handshake
// endpoints together with the loader manifest.
package widgetapi

import (
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"vestiva/internal/token"
	"vestiva/pkg/clients"
	"vestiva/pkg/config"
	"vestiva/pkg/logger"
	"vestiva/pkg/middleware"
)

// App holds the dependencies shared by handlers.
type App struct {
	cfg      config.Config
	log      *zap.SugaredLogger
	registry *clients.Registry
	tokens   *token.Service
	limiter  *middleware.RateLimiter
}

// New wires the handlers. rdb may be nil, in which case rate limiting is per process.
func New(cfg config.Config, log *zap.SugaredLogger, registry *clients.Registry, tokens *token.Service, rdb *redis.Client) *App {
	log = logger.OrNop(log)
	return &App{
		cfg:      cfg,
		log:      log,
		registry: registry,
		tokens:   tokens,
		limiter: middleware.NewRateLimiter(middleware.RateLimitConfig{
			Route:  "token",
			Window: cfg.RateLimitWindow,
			Max:    cfg.RateLimitMax,
			Redis:  rdb,
			Log:    log,
		}),
	}
}

// Close releases background resources.
func (a *App) Close() { a.limiter.Close() }
