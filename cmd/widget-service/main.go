// cmd/widget-service/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vestiva/internal/token"
	"vestiva/internal/widgetapi"
	"vestiva/pkg/clients"
	"vestiva/pkg/config"
	"vestiva/pkg/db"
	"vestiva/pkg/logger"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.Env)
	if err := cfg.Validate(); err != nil {
		log.Fatalw("config", "err", err)
	}

	pool := db.MustConnect(cfg, log)
	rdb := db.MustRedis(cfg, log)

	var prov clients.Provider
	if pool != nil {
		prov = clients.NewPostgresProvider(pool, log)
		if err := clients.EnsureSchema(context.Background(), pool); err != nil {
			log.Fatalw("schema", "err", err)
		}
		if err := clients.SeedFromEnv(context.Background(), pool, cfg.ClientSeedJSON); err != nil {
			log.Warnw("seed", "err", err)
		}
	} else {
		mem, err := clients.NewMemoryProviderFromSeed(cfg.ClientsFile, cfg.ClientSeedJSON, log)
		if err != nil {
			log.Fatalw("clients", "err", err)
		}
		prov = mem
	}

	registry := clients.NewRegistry(prov, log)
	tokens := token.NewService(registry, []byte(cfg.JWTSecret), log, token.WithTTL(cfg.TokenTTL))
	app := widgetapi.New(cfg, log, registry, tokens, rdb)
	defer app.Close()

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: app.Handler(), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		log.Infow("widget-service listening", "addr", cfg.HTTPAddr, "embed_url", cfg.EmbedURL)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("ListenAndServe", "err", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	if pool != nil {
		pool.Close()
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	fmt.Println("widget-service stopped")
}
