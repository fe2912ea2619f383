package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/msomdec/drive-tagger/internal/config"
	"github.com/msomdec/drive-tagger/internal/drive"
	"github.com/msomdec/drive-tagger/internal/handler"
	"github.com/msomdec/drive-tagger/internal/identity"
	"github.com/msomdec/drive-tagger/internal/repository/sqlite"
	"github.com/msomdec/drive-tagger/internal/service"
)

func main() {
	level := new(slog.LevelVar)
	logOpts := &slog.HandlerOptions{Level: level}
	logger := slog.New(slog.NewMultiHandler(
		slog.NewTextHandler(os.Stdout, logOpts),
		slog.NewJSONHandler(os.Stderr, logOpts),
	))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	level.Set(cfg.LogLevel)

	oauthCfg, err := identity.LoadGoogleConfig(cfg.GoogleCredentialsFile, cfg.OAuthRedirectURL)
	if err != nil {
		slog.Error("failed to load OAuth client", "file", cfg.GoogleCredentialsFile, "error", err)
		os.Exit(1)
	}

	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Migrate(context.Background()); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("database migrations applied", "path", cfg.DatabasePath)

	remote := drive.New(oauthCfg)
	access := service.NewAccessPolicy(cfg.AllowedEmails)
	refresh := service.NewRefreshEngine(db.Images(), remote, service.RefreshConfig{
		BatchSize:   cfg.RefreshBatchSize,
		ItemTimeout: cfg.RefreshItemTimeout,
		Concurrency: cfg.RefreshConcurrency,
	})

	authService, err := service.NewAuthService(db.Sessions(), identity.NewGoogleProvider(oauthCfg), access, cfg.SessionSecret, cfg.SessionTTL)
	if err != nil {
		slog.Error("failed to create auth service", "error", err)
		os.Exit(1)
	}

	if n, err := authService.PurgeExpired(context.Background()); err != nil {
		slog.Warn("failed to purge expired sessions", "error", err)
	} else if n > 0 {
		slog.Info("expired sessions purged", "count", n)
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux, handler.Services{
		DB:       db,
		Auth:     authService,
		Tags:     service.NewTagService(access, db.Images(), remote, refresh),
		Listing:  service.NewListingService(access, db.Images(), refresh),
		Backups:  service.NewBackupService(access, db.Images(), db.Snapshots(), refresh),
		Limiter:  service.NewTokenBucket(ctx, 10.0/60.0, 10), // 10 sign-in requests per minute
		PageSize: cfg.PageSize,
	}, cfg.CookieSecure)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler.Chain(mux, cfg.TrustProxy),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1MB
	}

	go func() {
		slog.Info("server starting", "addr", srv.Addr, "allowed_accounts", len(cfg.AllowedEmails))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
