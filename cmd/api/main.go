package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/pflag"

	"github.com/signalix/vault/internal/auth"
	"github.com/signalix/vault/internal/config"
	"github.com/signalix/vault/internal/db"
	"github.com/signalix/vault/internal/envelope"
	httphandler "github.com/signalix/vault/internal/http"
	"github.com/signalix/vault/internal/metrics"
	"github.com/signalix/vault/internal/middleware"
	"github.com/signalix/vault/internal/repo"
	"github.com/signalix/vault/internal/session"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags := pflag.NewFlagSet("vault", pflag.ContinueOnError)
	port := flags.String("port", "", "listen port (overrides PORT)")
	envFile := flags.String("env-file", ".env", "dotenv file to load; real environment variables win")
	if err := flags.Parse(args); err != nil {
		return err
	}

	_ = godotenv.Load(*envFile)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if *port != "" {
		cfg.Port = *port
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)
	metrics.Register()

	sessions, err := session.NewMemoryStore()
	if err != nil {
		return err
	}

	// Initialize repositories
	var (
		users       repo.UserRepo
		data        repo.DataRepo
		dbConnected func() bool
	)
	if cfg.DatabaseURL != "" {
		manager := db.NewManager(db.PostgresOpener(cfg.DatabaseURL), cfg.DBIdleTimeout)
		defer func() {
			if err := manager.Shutdown(); err != nil {
				slog.Warn("database shutdown", "error", err)
			}
		}()
		if err := migrate(manager); err != nil {
			return err
		}
		users = repo.NewUserRepo(manager)
		data = repo.NewDataRepo(manager)
		dbConnected = manager.Connected
	} else {
		slog.Warn("DATABASE_URL not set; using in-memory repositories")
		users = repo.NewMemoryUserRepo()
		data = repo.NewMemoryDataRepo()
	}

	// Initialize auth services
	otpProvider := auth.NewMemoryOTP(cfg.OTPSalt, cfg.OTPTTL)
	jwtService := auth.NewJWTService(cfg.JWTSecret, cfg.AccessTokenTTL)
	authService := auth.NewAuthService(otpProvider, jwtService, users, sessions)

	otpRequestLimiter := middleware.NewRateLimiter(cfg.RateLimitWindow, cfg.OTPRequestLimit)
	defer otpRequestLimiter.Stop()
	otpVerifyLimiter := middleware.NewRateLimiter(cfg.RateLimitWindow, cfg.OTPVerifyLimit)
	defer otpVerifyLimiter.Stop()

	router := httphandler.NewRouter(httphandler.Deps{
		Logger:   logger,
		Sessions: sessions,
		Dispatcher: envelope.NewDispatcher(sessions, envelope.Config{
			DefaultPassword:        cfg.DefaultPassword,
			AllowPlaintextFallback: cfg.AllowPlaintextFallback,
		}),
		Auth:              authService,
		JWT:               jwtService,
		Users:             users,
		Data:              data,
		OTPRequestLimiter: otpRequestLimiter,
		OTPVerifyLimiter:  otpVerifyLimiter,
		DBConnected:       dbConnected,
		CORSOrigins:       cfg.CORSOrigins,
		OTPInResponse:     cfg.OTPInResponse,
		DataRequireAuth:   cfg.DataRequireAuth,
	})

	// Create HTTP server with timeouts
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("server starting", "port", cfg.Port, "otp_in_response", cfg.OTPInResponse)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	slog.Info("server exited")
	return nil
}

// migrate applies migrations through the manager so the handle it opens is the shared one.
func migrate(manager *db.Manager) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	handle, err := manager.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Migrate(ctx, handle); err != nil {
		return manager.Check(err)
	}
	return nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	}
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      cfg.LogLevel,
		TimeFormat: time.Kitchen,
	}))
}
