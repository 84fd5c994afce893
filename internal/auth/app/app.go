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

	"github.com/redis/go-redis/v9"

	httpapi "github.com/aussiebroadwan/otpgate/internal/auth/http"
	"github.com/aussiebroadwan/otpgate/internal/auth/limiter"
	"github.com/aussiebroadwan/otpgate/internal/auth/mailer"
	"github.com/aussiebroadwan/otpgate/internal/auth/service"
	"github.com/aussiebroadwan/otpgate/internal/auth/store"
	"github.com/aussiebroadwan/otpgate/internal/auth/store/drivers/postgres"
	"github.com/aussiebroadwan/otpgate/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/otpgate/pkg/cryptox"
	"github.com/aussiebroadwan/otpgate/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application encapsulates the auth service application with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db      store.Store
	keys    SigningKeys
	redis   *redis.Client // nil without REDIS_ADDR
	limiter limiter.Limiter
	mailer  mailer.Sender
	hasher  *cryptox.PasswordHasher

	// Services
	otpEngine    *service.OTPEngine
	tokenService *service.TokenService
	authService  *service.AuthService
	adminService *service.AdminService
	housekeeping *service.HousekeepingService // nil unless AUTH_OTP_RETENTION is set

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "auth-service",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	pepper, err := cryptox.LoadOrCreatePepper(cfg.PepperFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load pepper: %w", err)
	}
	app.hasher = cryptox.NewPasswordHasher(pepper)

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	keys, err := InitSigningKeys(cfg, app.logger)
	if err != nil {
		_ = app.db.Close()
		return nil, fmt.Errorf("failed to initialize JWT keys: %w", err)
	}
	app.keys = keys

	app.initLimiter()
	app.initMailer()
	app.initServices()
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	app.logger.Info("auth service starting", "port", app.cfg.Port, "version", BuildVersion)
	if app.housekeeping != nil {
		app.housekeeping.Start()
	}

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down auth service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	if app.housekeeping != nil {
		app.housekeeping.Stop()
	}

	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Error("error closing redis", "error", err)
		}
	}

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("auth service stopped")
	return nil
}

// Handler exposes the router, mainly for tests.
func (app *Application) Handler() http.Handler { return app.router }

// initDatabase opens the configured driver and applies migrations
func (app *Application) initDatabase() error {
	var (
		db  store.Store
		err error
	)
	switch app.cfg.DatabaseDriver {
	case DriverPostgres:
		db, err = postgres.NewStore(app.cfg.DatabaseURL)
	default:
		db, err = sqlite.NewStore(app.cfg.DatabaseFile)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully", "driver", app.cfg.DatabaseDriver)
	return nil
}

// initLimiter uses redis when configured. An unreachable redis is not fatal,
// the limiter fails open.
func (app *Application) initLimiter() {
	if app.cfg.RedisAddr == "" {
		app.limiter = limiter.Noop{}
		app.logger.Info("otp attempt limiter disabled (REDIS_ADDR not set)")
		return
	}

	app.redis = redis.NewClient(&redis.Options{
		Addr:     app.cfg.RedisAddr,
		Password: app.cfg.RedisPassword,
		DB:       app.cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := app.redis.Ping(ctx).Err(); err != nil {
		app.logger.Warn("redis not reachable, otp limiter will fail open", "addr", app.cfg.RedisAddr, "error", err)
	}

	app.limiter = limiter.NewRedis(app.redis, app.cfg.OTPMaxAttempts, app.cfg.OTPAttemptWindow)
	app.logger.Info("otp attempt limiter enabled",
		"max_attempts", app.cfg.OTPMaxAttempts,
		"window", app.cfg.OTPAttemptWindow,
	)
}

func (app *Application) initMailer() {
	smtpCfg := app.cfg.SMTP()
	switch {
	case smtpCfg.Ready():
		app.mailer = mailer.NewSMTPSender(smtpCfg)
		app.logger.Info("smtp mailer configured", "smtp", smtpCfg.String())
	case !app.cfg.IsProd():
		app.mailer = mailer.LogSender{Logger: app.logger}
		app.logger.Warn("SMTP not configured, OTP emails will only be logged")
	default:
		app.mailer = mailer.FailingSender{}
		app.logger.Error("SMTP not configured, OTP delivery will fail")
	}
	if app.cfg.OTPDevMode {
		app.logger.Warn("otp dev mode enabled, codes are returned in the " + httpapi.DevCodeHeader + " header")
	}
}

// initServices initializes all business logic services
func (app *Application) initServices() {
	app.otpEngine = &service.OTPEngine{
		Store:      app.db,
		Mailer:     app.mailer,
		TTL:        app.cfg.OTPTTL,
		BcryptCost: app.cfg.OTPBcryptCost,
		DevMode:    app.cfg.OTPDevMode,
	}

	app.tokenService = &service.TokenService{
		Signer:     app.keys.Signer,
		Verifier:   app.keys.Verifier,
		Issuer:     app.cfg.Issuer,
		Audience:   app.cfg.Audience,
		AccessTTL:  app.cfg.AccessTokenTTL,
		RefreshTTL: app.cfg.RefreshTokenTTL,
	}

	app.authService = &service.AuthService{
		Store:   app.db,
		Hasher:  app.hasher,
		OTP:     app.otpEngine,
		Tokens:  app.tokenService,
		Limiter: app.limiter,
	}

	app.adminService = &service.AdminService{
		Store: app.db,
		OTP:   app.otpEngine,
	}

	if app.cfg.OTPRetention > 0 {
		app.housekeeping = service.NewHousekeepingService(
			app.db,
			app.logger,
			app.cfg.HousekeepingInterval,
			app.cfg.OTPRetention,
		)
	}
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.keys.Keys,
		app.keys.Verifier,
		BuildVersion,
		app.db,
		app.logger,
	)

	router.AuthService = app.authService
	router.AdminService = app.adminService
	router.AdminPolicy = app.cfg.AdminPolicy()
	router.Cookie.Secure = app.cfg.SecureCookies()
	router.Diagnostics = app.cfg.Diagnostics()
	router.ApplyRoutes()

	if !router.AdminPolicy.Configured() {
		app.logger.Info("admin access not configured (ADMIN_EMAILS unset)")
	}

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
