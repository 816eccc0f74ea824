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

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/nmelker/bastion/internal/auth"
	"github.com/nmelker/bastion/internal/background"
	"github.com/nmelker/bastion/internal/config"
	"github.com/nmelker/bastion/internal/database"
	"github.com/nmelker/bastion/internal/handlers"
	"github.com/nmelker/bastion/internal/lockout"
	middlewareCustom "github.com/nmelker/bastion/internal/middleware"
	"github.com/nmelker/bastion/internal/migrate"
	"github.com/nmelker/bastion/internal/models"
	"github.com/nmelker/bastion/internal/repositories"
	"github.com/nmelker/bastion/internal/routes"
	"github.com/nmelker/bastion/internal/services"
	pkgauth "github.com/nmelker/bastion/pkg/auth"
	pkghttp "github.com/nmelker/bastion/pkg/http"
	pkglogger "github.com/nmelker/bastion/pkg/logger"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	// Apply pending migrations
	migrateCtx, migrateCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := migrate.Up(migrateCtx, cfg.Database.DSN()); err != nil {
		migrateCancel()
		logger.Error("failed to apply migrations", slog.Any("error", err))
		os.Exit(1)
	}
	migrateCancel()

	// Initialize database
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	// Initialize repositories
	accountRepo := repositories.NewAccountRepository(db)
	lockoutRepo := repositories.NewLockoutRepository(db)

	// Initialize cleanup manager
	cleanupManager := background.NewCleanupManager(lockoutRepo, logger, cfg.Lockout.CleanupInterval)

	// Initialize token manager
	tokenManager := auth.NewTokenManager(
		cfg.Auth.JWTSecret,
		cfg.Auth.AccessTokenExpiry,
		cfg.Auth.RefreshTokenExpiry,
	)

	auditLogger := pkglogger.NewAuditLogger(logger)

	// Lockout tracker over the database-backed store
	tracker := lockout.NewTracker(lockoutRepo, lockout.Config{
		MaxFailures:     cfg.Lockout.MaxFailures,
		LockoutDuration: cfg.Lockout.LockoutDuration,
	}, logger)

	// Timing delay for auth security
	timingDelay := auth.NewTimingDelay(auth.TimingConfig{
		BaseDelayMs:   cfg.Auth.TimingDelayBaseMs,
		RandomDelayMs: cfg.Auth.TimingDelayRandomMs,
	})

	// Lockout notifications via AWS SES when enabled
	var notifier services.LockoutNotifier
	if cfg.Email.Enabled {
		sesService, err := services.NewAWSSESEmailService(cfg.Email.AWSRegion, cfg.Email.FromAddress, logger)
		if err != nil {
			logger.Error("failed to initialize email service", slog.Any("error", err))
			os.Exit(1)
		}
		notifier = sesService
	} else {
		notifier = services.NewNoopEmailService(logger)
	}

	// Initialize services and handlers
	loginService := services.NewLoginService(accountRepo, tracker, tokenManager, timingDelay, notifier, logger, auditLogger)

	ipConfig := &pkghttp.IPConfig{TrustedProxies: cfg.Server.TrustedProxies}
	authHandler := handlers.NewAuthHandler(loginService, ipConfig)

	// Bootstrap first account if configured
	seedCtx, seedCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := ensureSeedAccount(seedCtx, accountRepo, logger); err != nil {
		logger.Error("failed to ensure seed account", slog.Any("error", err))
	}
	seedCancel()

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	// Register routes
	routes.RegisterRoutes(router, authHandler, middlewareCustom.RateLimitConfig{
		RequestsPerMinute: cfg.Server.LoginRatePerMin,
	})

	// Health check with database
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.HealthCheck(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy","database":"down"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","database":"up"}`))
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start cleanup task
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()

	go cleanupManager.Start(cleanupCtx)

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	cleanupCancel()
	cleanupManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

// ensureSeedAccount creates the first account if BOOTSTRAP_USERNAME,
// BOOTSTRAP_EMAIL and BOOTSTRAP_PASSWORD are set
func ensureSeedAccount(ctx context.Context, accountRepo *repositories.AccountRepository, logger *slog.Logger) error {
	username := os.Getenv("BOOTSTRAP_USERNAME")
	email := os.Getenv("BOOTSTRAP_EMAIL")
	password := os.Getenv("BOOTSTRAP_PASSWORD")

	if username == "" || email == "" || password == "" {
		logger.Info("no bootstrap credentials set, skipping seed account creation")
		return nil
	}

	_, err := accountRepo.GetByUsername(ctx, username)
	if err == nil {
		logger.Info("seed account already exists")
		return nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("failed to check if seed account exists: %w", err)
	}

	hashedPassword, err := pkgauth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash seed account password: %w", err)
	}

	_, err = accountRepo.Create(ctx, &models.Account{
		Username:     username,
		Email:        email,
		PasswordHash: hashedPassword,
		Status:       "active",
	})
	if err != nil {
		return fmt.Errorf("failed to create seed account: %w", err)
	}

	logger.Info("seed account created successfully")
	return nil
}
