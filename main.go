package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/authgrid/backend/internal/cache"
	"github.com/authgrid/backend/internal/client"
	"github.com/authgrid/backend/internal/config"
	"github.com/authgrid/backend/internal/db"
	"github.com/authgrid/backend/internal/events"
	"github.com/authgrid/backend/internal/handler"
	"github.com/authgrid/backend/internal/service"
	"github.com/authgrid/backend/internal/token"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger := newLogger(cfg.App.LogLevel)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()

	store := db.New(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("schema: %w", err)
	}

	issuer, err := newIssuer(cfg.Auth)
	if err != nil {
		return err
	}

	tiered, memory, err := newCache(cfg, logger)
	if err != nil {
		return err
	}
	defer memory.Close()

	bus := events.NewBus(0, logger)
	defer bus.Close()

	mailer := client.NewMailerClient(cfg.Mailer)
	if mailer.IsConfigured() {
		events.RegisterEmailHandlers(bus, mailer, logger)
	} else {
		logger.Warn("mail relay not configured, verification emails disabled")
	}

	refreshTTL, err := time.ParseDuration(cfg.Auth.RefreshTTL)
	if err != nil {
		return fmt.Errorf("invalid REFRESH_TOKEN_TTL: %w", err)
	}
	verifyTTL, err := time.ParseDuration(cfg.Auth.VerificationTTL)
	if err != nil {
		return fmt.Errorf("invalid EMAIL_VERIFY_TTL: %w", err)
	}

	trust := service.NewTrustStore(issuer, tiered)
	sessions, err := service.NewSessionService(store, issuer, trust, bus, logger, service.SessionOptions{
		RefreshTTL: refreshTTL,
		VerifyTTL:  verifyTTL,
		ClientURL:  cfg.App.ClientURL,
	})
	if err != nil {
		return err
	}
	serviceAuth := service.NewServiceAuthService(store, issuer)
	rbac := service.NewRBACService(store, tiered, logger)

	cookieCfg, err := handler.NewCookieConfig(cfg.Auth, refreshTTL)
	if err != nil {
		return err
	}

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(handler.CORSMiddleware([]string{cfg.App.ClientURL}, true))

	handler.RegisterRoutes(router,
		handler.NewAuthHandler(sessions, cookieCfg),
		handler.NewServiceAuthHandler(serviceAuth),
		handler.NewRBACHandler(rbac),
		rbac,
		issuer,
	)

	srv := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

func newIssuer(cfg config.AuthConfig) (*token.Issuer, error) {
	accessTTL, err := time.ParseDuration(cfg.AccessTTL)
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_ACCESS_TTL: %w", err)
	}
	serviceTTL, err := time.ParseDuration(cfg.ServiceTTL)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVICE_TOKEN_TTL: %w", err)
	}
	deviceTTL, err := time.ParseDuration(cfg.DeviceTTL)
	if err != nil {
		return nil, fmt.Errorf("invalid TRUSTED_DEVICE_TTL: %w", err)
	}

	return token.NewIssuer(token.Options{
		AccessSecret:  cfg.AccessSecret,
		ServiceSecret: cfg.ServiceSecret,
		DeviceSecret:  cfg.DeviceSecret,
		AccessTTL:     accessTTL,
		ServiceTTL:    serviceTTL,
		DeviceTTL:     deviceTTL,
	})
}

func newCache(cfg config.Config, logger *slog.Logger) (*cache.Tiered, *cache.Memory, error) {
	maxItems, err := strconv.Atoi(cfg.Cache.LocalMaxItems)
	if err != nil || maxItems <= 0 {
		return nil, nil, fmt.Errorf("invalid CACHE_LOCAL_MAX_ITEMS: %q", cfg.Cache.LocalMaxItems)
	}
	localTTL, err := time.ParseDuration(cfg.Cache.LocalTTL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid CACHE_LOCAL_TTL: %w", err)
	}
	sweepInterval, err := time.ParseDuration(cfg.Cache.SweepInterval)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid CACHE_SWEEP_INTERVAL: %w", err)
	}
	redisDB, err := strconv.Atoi(cfg.Redis.DB)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid REDIS_DB: %q", cfg.Redis.DB)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       redisDB,
	})

	memory := cache.NewMemory(maxItems, sweepInterval)
	shared := cache.NewRedis(rdb, cfg.Redis.KeyPrefix)
	return cache.NewTiered(memory, shared, localTTL, logger), memory, nil
}
