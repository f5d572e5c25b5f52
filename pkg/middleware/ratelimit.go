// pkg/middleware/ratelimit.go
package middleware

import (
	"context"
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"vestiva/pkg/metrics"
)

type RateLimitConfig struct {
	Route  string        // metrics label and key namespace
	Window time.Duration // fixed window length
	Max    int           // requests per client IP per window; 0 disables
	Redis  *redis.Client // shared store; nil keeps counters in process
	Log    *zap.SugaredLogger
}

type rateLimitEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter limits requests per client IP. With Redis it counts fixed windows
// shared by every replica; without it, or while Redis is failing, each process
// uses a token bucket refilling Max tokens per Window.
type RateLimiter struct {
	cfg RateLimitConfig
	now func() time.Time

	mu    sync.Mutex
	local map[string]*rateLimitEntry
	stop  chan struct{}
	once  sync.Once
}

func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	if cfg.Log == nil {
		cfg.Log = zap.NewNop().Sugar()
	}
	m := &RateLimiter{cfg: cfg, now: time.Now, local: map[string]*rateLimitEntry{}, stop: make(chan struct{})}
	go m.cleanupLoop()
	return m
}

// Close stops the background cleanup of idle limiters.
func (m *RateLimiter) Close() {
	m.once.Do(func() { close(m.stop) })
}

func (m *RateLimiter) cleanupLoop() {
	t := time.NewTicker(5 * time.Minute)
	defer t.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-t.C:
			m.cleanup()
		}
	}
}

func (m *RateLimiter) cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := m.now().Add(-2 * m.cfg.Window)
	for key, e := range m.local {
		if e.lastSeen.Before(cutoff) {
			delete(m.local, key)
		}
	}
}

func (m *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.cfg.Max <= 0 || m.cfg.Window <= 0 {
			next.ServeHTTP(w, r)
			return
		}
		ip := ClientIP(r)
		ok, remaining, retry := m.allow(r.Context(), ip)
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(m.cfg.Max))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		if !ok {
			secs := int(math.Ceil(retry.Seconds()))
			if secs < 1 {
				secs = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(secs))
			metrics.RateLimited.WithLabelValues(m.cfg.Route).Inc()
			m.cfg.Log.Warnw("rate limit exceeded", "route", m.cfg.Route, "client_ip", ip, "retry_after", secs)
			WriteError(w, http.StatusTooManyRequests, "Too many requests, please try again later")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (m *RateLimiter) allow(ctx context.Context, ip string) (bool, int, time.Duration) {
	if m.cfg.Redis != nil {
		ok, remaining, retry, err := m.allowRedis(ctx, ip)
		if err == nil {
			return ok, remaining, retry
		}
		m.cfg.Log.Warnw("rate limit store unavailable, using local limiter", "err", err)
	}
	return m.allowLocal(ip)
}

func (m *RateLimiter) allowRedis(ctx context.Context, ip string) (bool, int, time.Duration, error) {
	now := m.now()
	start := now.Truncate(m.cfg.Window)
	key := fmt.Sprintf("ratelimit:%s:%s:%d", m.cfg.Route, ip, start.Unix())
	var incr *redis.IntCmd
	_, err := m.cfg.Redis.TxPipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, key)
		p.ExpireNX(ctx, key, m.cfg.Window)
		return nil
	})
	if err != nil {
		return false, 0, 0, err
	}
	n := int(incr.Val())
	if n > m.cfg.Max {
		return false, 0, start.Add(m.cfg.Window).Sub(now), nil
	}
	return true, m.cfg.Max - n, 0, nil
}

func (m *RateLimiter) allowLocal(ip string) (bool, int, time.Duration) {
	now := m.now()
	m.mu.Lock()
	e, ok := m.local[ip]
	if !ok {
		every := m.cfg.Window / time.Duration(m.cfg.Max)
		e = &rateLimitEntry{limiter: rate.NewLimiter(rate.Every(every), m.cfg.Max)}
		m.local[ip] = e
	}
	e.lastSeen = now
	m.mu.Unlock()

	res := e.limiter.ReserveN(now, 1)
	if !res.OK() {
		return false, 0, m.cfg.Window
	}
	if d := res.DelayFrom(now); d > 0 {
		res.CancelAt(now)
		return false, 0, d
	}
	remaining := int(e.limiter.TokensAt(now))
	if remaining < 0 {
		remaining = 0
	}
	return true, remaining, 0
}

// ClientIP returns the request's remote address without port. Behind a proxy
// it relies on chi's RealIP having rewritten RemoteAddr.
func ClientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
