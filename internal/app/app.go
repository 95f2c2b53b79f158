package app

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

	"artist-catalog-api/internal/config"
	"artist-catalog-api/internal/database"
	"artist-catalog-api/internal/event"
	"artist-catalog-api/internal/handler"
	"artist-catalog-api/internal/middleware"
	"artist-catalog-api/internal/ratelimit"
	"artist-catalog-api/internal/repository"
	"artist-catalog-api/internal/router"
	"artist-catalog-api/internal/service"
	"artist-catalog-api/internal/token"
)

type App struct {
	server       *http.Server
	db           *database.DB
	cleanupFuncs []func()
}

func New(cfg *config.Config) (*App, error) {
	ctx := context.Background()

	slog.Info("connecting to PostgreSQL")
	db, err := database.New(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure database schema: %w", err)
	}

	userRepo := repository.NewUserRepository(db.Pool)
	slog.Info("database ready")

	_, err = service.SeedAdmin(ctx, userRepo, service.AdminSeed{
		Username: cfg.SeedAdminUsername,
		Password: cfg.SeedAdminPassword,
		Email:    cfg.SeedAdminEmail,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to seed admin user: %w", err)
	}

	issuer, err := token.NewIssuer(token.Config{
		Secret:     cfg.JWTSecret,
		AccessTTL:  cfg.JWTAccessTTL,
		RefreshTTL: cfg.JWTRefreshTTL,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize token issuer: %w", err)
	}

	bus := event.NewBus(cfg.AuditBuffer)
	auditService := service.NewAuditService(repository.NewAuditRepository(db.Pool))
	auditEvents, unsubscribe := bus.Subscribe()
	auditCtx, auditCancel := context.WithCancel(context.Background())
	go auditService.Run(auditCtx, auditEvents)

	authService := service.NewAuthService(issuer, service.NewPasswordVerifier(userRepo), userRepo)
	authService.SetPublisher(bus)
	authenticator := middleware.NewAuthenticator(issuer, userRepo, cfg.AuthLookupTimeout)

	buckets := ratelimit.NewMemoryStore(cfg.RateLimitIdleTTL, time.Now)
	limiter := ratelimit.NewLimiter(ratelimit.Config{
		Capacity: cfg.RateLimitCapacity,
		Window:   cfg.RateLimitWindow,
	}, buckets)
	slog.Info("rate limiter ready", "capacity", cfg.RateLimitCapacity, "window", cfg.RateLimitWindow, "idle_ttl", cfg.RateLimitIdleTTL)

	rateLimit := middleware.NewRateLimit(limiter)
	rateLimit.SetPublisher(bus)

	appRouter := router.New(cfg, authenticator, rateLimit, router.Handlers{
		Auth:   handler.NewAuthHandler(authService),
		Health: handler.NewHealthHandler(db),
		Audit:  handler.NewAuditHandler(auditService),
	})

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           appRouter,
		ReadHeaderTimeout: cfg.ServerReadHeaderTimeout,
		WriteTimeout:      cfg.ServerWriteTimeout,
		IdleTimeout:       cfg.ServerIdleTimeout,
	}

	return &App{
		server: server,
		db:     db,
		cleanupFuncs: []func(){
			auditCancel,
			unsubscribe,
			db.Close,
		},
	}, nil
}

func (a *App) Run() error {
	serveErr := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	select {
	case err, ok := <-serveErr:
		a.cleanup()
		if ok {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case sig := <-stop:
		slog.Info("shutdown signal received", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Drain in-flight requests before the pool goes away.
	shutdownErr := a.server.Shutdown(ctx)
	a.cleanup()
	if shutdownErr != nil {
		return fmt.Errorf("graceful shutdown failed: %w", shutdownErr)
	}

	slog.Info("server stopped")
	return nil
}

func (a *App) cleanup() {
	for _, cleanup := range a.cleanupFuncs {
		cleanup()
	}
}
