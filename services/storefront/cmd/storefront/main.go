package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"alexandria/internal/telemetry"
	"alexandria/internal/util"
	"alexandria/services/storefront/internal/app"
	"alexandria/services/storefront/internal/bookstoreclient"
	"alexandria/services/storefront/internal/config"
	"alexandria/services/storefront/internal/server"
	"alexandria/services/storefront/internal/store"
)

const sessionPurgeInterval = 15 * time.Minute

var version = "dev"

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("failed to read .env: %v", err)
	}
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	sessionTTL, err := config.ParseSessionTTL(cfg.SessionTTL)
	if err != nil {
		log.Fatalf("failed to parse session TTL: %v", err)
	}
	backendTimeout, err := config.ParseBackendTimeout(cfg.BackendTimeout)
	if err != nil {
		log.Fatalf("failed to parse backend timeout: %v", err)
	}
	sameSite, err := config.ParseSameSite(cfg.SessionCookieSameSite)
	if err != nil {
		log.Fatalf("failed to parse cookie SameSite: %v", err)
	}
	trusted, err := util.NewTrustedProxies(cfg.TrustedProxyCIDRs)
	if err != nil {
		log.Fatalf("failed to parse trusted proxies: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := telemetry.InitTracer(ctx, telemetry.Config{
		ServiceName: "alexandria-storefront",
		Version:     version,
		Endpoint:    cfg.OTLPEndpoint,
		Insecure:    cfg.OTLPInsecure,
		SampleRatio: cfg.TraceSampleRatio,
	})
	if err != nil {
		log.Fatalf("failed to init tracing: %v", err)
	}

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer rdb.Close()
	}

	var sessions store.SessionStore
	switch cfg.SessionBackend {
	case config.SessionBackendRedis:
		sessions = store.NewRedisSessionStore(rdb, sessionTTL)
	case config.SessionBackendPostgres:
		gs, err := store.NewGormSessionStore(cfg.DatabaseURL, sessionTTL)
		if err != nil {
			log.Fatalf("failed to open session database: %v", err)
		}
		go purgeSessions(ctx, gs)
		sessions = gs
	default:
		sessions = store.NewMemorySessionStore(sessionTTL)
	}

	tokens, err := store.NewTokenCodec(cfg.SessionSecret, cfg.SessionIssuer, sessionTTL)
	if err != nil {
		log.Fatalf("failed to init session tokens: %v", err)
	}

	appCore, err := app.New(app.Config{
		Backend:         bookstoreclient.NewClient(cfg.BackendURL, bookstoreclient.WithTimeout(backendTimeout)),
		Sessions:        sessions,
		Tokens:          tokens,
		ResultCacheSize: cfg.ResultCacheSize,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	srvCfg := server.Config{
		App:                      appCore,
		LoginRateLimitPerMinute:  cfg.LoginRateLimitPerMinute,
		SignupRateLimitPerMinute: cfg.SignupRateLimitPerMinute,
		TrustedProxies:           trusted,
		CORSOrigins:              cfg.CORSOrigins,
		Cookie: server.CookieConfig{
			Name:     cfg.SessionCookieName,
			Domain:   cfg.SessionCookieDomain,
			Secure:   cfg.SessionCookieSecure,
			SameSite: sameSite,
		},
	}
	if rdb != nil {
		srvCfg.Redis = rdb
	}
	httpServer, err := server.New(srvCfg)
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	drained := make(chan struct{})
	go func() {
		defer close(drained)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown", "err", err)
		}
		if err := shutdownTracer(shutdownCtx); err != nil {
			logger.Error("tracer shutdown", "err", err)
		}
	}()

	slog.Info("server listening", "addr", addr, "backend", cfg.BackendURL, "sessions", cfg.SessionBackend)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
		return
	}
	<-drained
}

func purgeSessions(ctx context.Context, gs *store.GormSessionStore) {
	ticker := time.NewTicker(sessionPurgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := gs.PurgeExpired(ctx)
			if err != nil {
				slog.Warn("session purge failed", "err", err)
				continue
			}
			if n > 0 {
				slog.Info("expired sessions purged", "count", n)
			}
		}
	}
}
