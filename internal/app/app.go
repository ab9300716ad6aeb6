// Package app wires together all dependencies and runs the CRM backend.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/scalemako/crm-backend/internal/auth"
	"github.com/scalemako/crm-backend/internal/config"
	"github.com/scalemako/crm-backend/internal/encryption"
	handler "github.com/scalemako/crm-backend/internal/handler/http"
	"github.com/scalemako/crm-backend/internal/mailer"
	"github.com/scalemako/crm-backend/internal/ratelimit"
	"github.com/scalemako/crm-backend/internal/repository/postgres"
	"github.com/scalemako/crm-backend/internal/service"
	"github.com/scalemako/crm-backend/internal/session"
	"github.com/scalemako/crm-backend/migrations"
	"github.com/scalemako/crm-backend/pkg/database"
	"github.com/scalemako/crm-backend/pkg/health"
)

// App holds the wired application.
type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	pool       *pgxpool.Pool
	redis      *redis.Client
	httpServer *http.Server
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize PostgreSQL connection pool.
	pgCfg := database.DefaultPostgresConfig()
	pgCfg.Host = cfg.PostgresHost
	pgCfg.Port = cfg.PostgresPort
	pgCfg.User = cfg.PostgresUser
	pgCfg.Password = cfg.PostgresPass
	pgCfg.DBName = cfg.PostgresDB
	pgCfg.SSLMode = cfg.PostgresSSL

	pool, err := database.NewPostgresPool(ctx, &pgCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)

	// Run database migrations.
	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations completed")

	// Rate limiting runs against Redis when configured. Without it, the
	// limiters allow everything and each decision is marked degraded.
	var (
		redisClient  *redis.Client
		loginLimiter ratelimit.Limiter = ratelimit.NewDisabled(ratelimit.LoginWindow)
		resetLimiter ratelimit.Limiter = ratelimit.NewDisabled(ratelimit.PasswordResetWindow)
	)
	if cfg.RedisAddr != "" {
		redisClient, err = database.NewRedisClient(ctx, database.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		loginLimiter = ratelimit.NewRedis(redisClient, ratelimit.LoginWindow, logger)
		resetLimiter = ratelimit.NewRedis(redisClient, ratelimit.PasswordResetWindow, logger)
		logger.Info("connected to Redis", slog.String("addr", cfg.RedisAddr))
	} else {
		logger.Warn("REDIS_ADDR not set, rate limiting disabled")
	}

	// Master cipher for API keys at rest.
	cipher, err := encryption.New(cfg.EncryptionKey)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init encryption: %w", err)
	}

	// Outbound email.
	var mail mailer.Mailer
	if smtp := cfg.SMTP(); smtp.Configured() {
		mail = mailer.NewSMTP(smtp)
		logger.Info("smtp mailer configured", slog.String("host", smtp.Host))
	} else {
		mail = mailer.NewLog(logger)
		logger.Warn("SMTP not configured, reset emails will be logged only")
	}

	// Build the dependency graph.
	tokens := auth.NewTokenManager(cfg.JWTSecret)
	cookies := session.NewCookieManager(!cfg.IsDevelopment())
	userRepo := postgres.NewUserRepository(pool)
	apiKeyRepo := postgres.NewAPIKeyRepository(pool)
	leadRepo := postgres.NewLeadRepository(pool)
	callLogRepo := postgres.NewCallLogRepository(pool)

	authService := service.NewAuthService(userRepo, tokens, loginLimiter, resetLimiter, mail, cfg.AppURL, logger)
	apiKeyService := service.NewAPIKeyService(apiKeyRepo, cipher, logger)
	leadService := service.NewLeadService(leadRepo, callLogRepo, logger)

	// Health checks. Redis is non-critical: the limiters fail open.
	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	if redisClient != nil {
		healthHandler.RegisterNonCritical("redis", func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}

	// HTTP router.
	router := handler.NewRouter(
		authService, apiKeyService, leadService,
		tokens, cookies, healthHandler, logger,
		handler.CORSConfig{AllowedOrigins: cfg.CORSAllowedOrigins, Environment: cfg.Environment},
	)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		cfg:        cfg,
		logger:     logger,
		pool:       pool,
		redis:      redisClient,
		httpServer: httpServer,
	}, nil
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components: drain in-flight HTTP requests,
// then close the Redis client and the PostgreSQL pool.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	httpCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	a.pool.Close()

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}
