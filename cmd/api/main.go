package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"kastel.org/internal/audit"
	"kastel.org/internal/auth"
	"kastel.org/internal/config"
	"kastel.org/internal/httpapi"
	"kastel.org/internal/obs"
	"kastel.org/internal/store/pg"
)

var version = "0.3.0"

func main() {
	obs.Init()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := obs.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	store, err := pg.Open(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("open database", zap.Error(err))
	}
	defer func() { _ = store.Close() }()

	ctx := context.Background()

	tokens, err := auth.NewTokenService(cfg.AuthSecret,
		store.Users(ctx), store.RefreshTokens(ctx),
		auth.WithIssuer(cfg.TokenIssuer),
		auth.WithAccessTTL(cfg.AccessTTL),
		auth.WithRefreshTTL(cfg.RefreshTTL),
	)
	if err != nil {
		logger.Fatal("token service", zap.Error(err))
	}

	svc, err := auth.NewService(store, tokens, logger)
	if err != nil {
		logger.Fatal("auth service", zap.Error(err))
	}

	// The permission catalog is closed: seed it and refuse to start when the
	// stored catalog has drifted from the compiled registry.
	if err := svc.EnsureBuiltins(ctx); err != nil {
		logger.Fatal("permission registry", zap.Error(err))
	}

	recorder := audit.NewRecorder(store.Audit(ctx), logger)
	resolver := auth.NewPermissionResolver(store.Permissions(ctx))
	guard := auth.NewAccessGuard(resolver, auth.NewOwnershipChecker(), recorder, logger)

	api := httpapi.New(svc, guard, store, recorder, logger, httpapi.ReadyProbe{DB: store.DB()}, httpapi.Options{
		RateLimitPerSecond: cfg.RateLimitPerSecond,
		RateLimitBurst:     cfg.RateLimitBurst,
		MaxBodyBytes:       cfg.MaxBodyBytes,
		AllowedOrigins:     cfg.AllowedOrigins,
		Version:            version,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	logger.Info("starting kastel-api", zap.String("version", version), zap.String("addr", srv.Addr))

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	logger.Info("stopped")
}
