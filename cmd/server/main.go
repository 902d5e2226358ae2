// Command makerhub-server serves the makerhub REST API.
package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/makerhub/internal/config"
	"github.com/and161185/makerhub/internal/limiter"
	"github.com/and161185/makerhub/internal/migrate"
	"github.com/and161185/makerhub/internal/repository/postgres"
	grpcserver "github.com/and161185/makerhub/internal/server/grpc"
	httpserver "github.com/and161185/makerhub/internal/server/http"
	"github.com/and161185/makerhub/internal/service"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "", "path to YAML config (falls back to CONFIG_PATH, ./local.yaml, env)")
	flag.Parse()

	cfg := config.MustLoad(*configPath)

	logger := newLogger(cfg.Env)
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("env", cfg.Env),
		zap.String("addr", cfg.HTTP.Addr),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func newLogger(env string) *zap.Logger {
	var (
		l   *zap.Logger
		err error
	)
	if env == "local" {
		l, err = zap.NewDevelopment()
	} else {
		l, err = zap.NewProduction()
	}
	if err != nil {
		return zap.NewNop()
	}
	return l
}

func run(ctx context.Context, cfg *config.Server, logger *zap.Logger) error {
	if err := migrate.Up(ctx, cfg.DB.DSN); err != nil {
		return err
	}

	db, err := postgres.New(ctx, cfg.DB.DSN)
	if err != nil {
		return err
	}
	defer db.Close()

	users := postgres.NewUserRepo(db)
	tokens := postgres.NewTokenRepo(db)
	entries := postgres.NewEntryRepo(db)
	registrations := postgres.NewRegistrationRepo(db)
	lim := limiter.NewPG(db.Pool, limiter.Settings{
		Window:   cfg.Limiter.Window,
		MaxFails: cfg.Limiter.MaxFails,
		Block:    cfg.Limiter.Block,
	})

	authSvc := service.NewAuthService(users, tokens, lim, service.AuthConfig{
		SignKey:    []byte(cfg.Auth.JWTKey),
		AccessTTL:  cfg.Auth.AccessTTL,
		RefreshTTL: cfg.Auth.RefreshTTL,
	}, logger.Named("auth"))
	entrySvc := service.NewEntryService(entries)
	uploadSvc := service.NewUploadService(cfg.Upload.Dir, cfg.Upload.MaxSize)

	if a := cfg.Auth.Admin; a.Username != "" {
		if err := authSvc.EnsureAdmin(ctx, a.Username, a.Email, a.Password); err != nil {
			return err
		}
	}

	handler := httpserver.NewRouter(
		httpserver.NewHandlers(httpserver.Services{
			Auth:          authSvc,
			Users:         service.NewUserService(users, logger.Named("users")),
			Entries:       entrySvc,
			Registrations: service.NewRegistrationService(registrations, logger.Named("registrations")),
			Uploads:       uploadSvc,
		}, logger.Named("http")),
		httpserver.Options{
			Logger:      logger.Named("http"),
			Timeout:     cfg.HTTP.RequestTimeout,
			CORSOrigins: cfg.HTTP.CORSOrigins,
			UploadDir:   uploadSvc.Dir(),
		},
	)
	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)

	var health *grpcserver.Health
	if cfg.Health.Addr != "" {
		lis, err := net.Listen("tcp", cfg.Health.Addr)
		if err != nil {
			return err
		}
		health = grpcserver.NewHealth(logger.Named("health"))
		go func() {
			logger.Info("health listening", zap.String("addr", cfg.Health.Addr))
			errCh <- health.Serve(lis)
		}()
		go health.Watch(ctx, db, 15*time.Second)
	}

	go func() {
		logger.Info("listening", zap.String("addr", cfg.HTTP.Addr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	if health != nil {
		health.SetServing(true)
	}

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	if health != nil {
		health.SetServing(false)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if health != nil {
		health.Stop(shutdownTimeout)
	}
	return nil
}
