// Package db opens the optional backing stores of widget-service.
package db

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"vestiva/pkg/config"
)

const (
	connectTimeout = 5 * time.Second
	appName        = "vestiva-widget"
)

// PoolConfig parses the DSN and applies the registry's pool settings.
// The registry is read-mostly, so a small pool is enough.
func PoolConfig(dsn string) (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	if pc.MaxConns > 8 {
		pc.MaxConns = 8
	}
	pc.MaxConnIdleTime = 5 * time.Minute
	if pc.ConnConfig.RuntimeParams == nil {
		pc.ConnConfig.RuntimeParams = map[string]string{}
	}
	if _, ok := pc.ConnConfig.RuntimeParams["application_name"]; !ok {
		pc.ConnConfig.RuntimeParams["application_name"] = appName
	}
	return pc, nil
}

// MustConnect returns nil when DATABASE_URL is unset; the caller falls back to an in-memory registry.
func MustConnect(cfg config.Config, log *zap.SugaredLogger) *pgxpool.Pool {
	if cfg.DatabaseURL == "" {
		return nil
	}
	pc, err := PoolConfig(cfg.DatabaseURL)
	if err != nil {
		log.Fatalw("pg config", "dsn", redactDSN(cfg.DatabaseURL), "err", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		log.Fatalw("pg connect", "err", err)
	}
	if err := pool.Ping(ctx); err != nil {
		log.Fatalw("pg ping", "dsn", redactDSN(cfg.DatabaseURL), "err", err)
	}
	log.Infow("client registry on postgres", "dsn", redactDSN(cfg.DatabaseURL), "max_conns", pc.MaxConns)
	return pool
}

// RedisOptions parses REDIS_URL and names the connection.
func RedisOptions(url string) (*redis.Options, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	if opts.ClientName == "" {
		opts.ClientName = appName
	}
	return opts, nil
}

// MustRedis returns nil when REDIS_URL is unset; rate limiting then stays process-local.
func MustRedis(cfg config.Config, log *zap.SugaredLogger) *redis.Client {
	if cfg.RedisURL == "" {
		return nil
	}
	opts, err := RedisOptions(cfg.RedisURL)
	if err != nil {
		log.Fatalw("redis url", "err", err)
	}
	cli := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := cli.Ping(ctx).Err(); err != nil {
		log.Fatalw("redis ping", "addr", opts.Addr, "err", err)
	}
	log.Infow("rate limit counters on redis", "addr", opts.Addr)
	return cli
}

func redactDSN(dsn string) string {
	at := strings.LastIndex(dsn, "@")
	if at < 0 {
		return dsn
	}
	if j := strings.Index(dsn, "://"); j >= 0 && j < at {
		return dsn[:j+3] + "***@" + dsn[at+1:]
	}
	return "***@" + dsn[at+1:]
}
