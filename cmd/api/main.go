// AngelaMos | 2026
// main.go

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/carterperez-dev/templates/marketplace-auth/internal/admin"
	"github.com/carterperez-dev/templates/marketplace-auth/internal/auth"
	"github.com/carterperez-dev/templates/marketplace-auth/internal/blob"
	"github.com/carterperez-dev/templates/marketplace-auth/internal/config"
	"github.com/carterperez-dev/templates/marketplace-auth/internal/core"
	"github.com/carterperez-dev/templates/marketplace-auth/internal/health"
	"github.com/carterperez-dev/templates/marketplace-auth/internal/middleware"
	"github.com/carterperez-dev/templates/marketplace-auth/internal/notify"
	"github.com/carterperez-dev/templates/marketplace-auth/internal/principal"
	"github.com/carterperez-dev/templates/marketplace-auth/internal/server"
	"github.com/carterperez-dev/templates/marketplace-auth/internal/user"
)

func main() {
	configPath := flag.String("config", "", "path to optional yaml config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

type closableSink interface {
	notify.Sink
	io.Closer
}

//nolint:funlen // bootstrap code is inherently verbose
func run(configPath string) error {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Log)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"name", cfg.App.Name,
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
	)

	telemetry, err := core.NewTelemetry(ctx, cfg.Otel, cfg.App)
	if err != nil {
		logger.Warn("telemetry disabled", "error", err)
	}

	db, err := core.NewDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer closeLogged(logger, "database", db)

	if cfg.Database.AutoMigrate {
		applied, migErr := db.Migrate(ctx)
		if migErr != nil {
			return migErr
		}
		logger.Info("migrations applied", "count", applied)
	}

	redis, err := core.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer closeLogged(logger, "redis", redis)

	hasher, err := core.NewPasswordHasher(core.Argon2Params{
		Time:    cfg.Password.Iterations,
		Memory:  cfg.Password.Memory,
		Threads: cfg.Password.Threads,
		KeyLen:  core.DefaultArgon2Params.KeyLen,
	})
	if err != nil {
		return err
	}

	issuer, err := auth.NewTokenIssuer(cfg.JWT)
	if err != nil {
		return err
	}

	sink, err := newSink(cfg.Notify, logger)
	if err != nil {
		return err
	}
	logger.Info("notification sink ready", "driver", cfg.Notify.Driver)

	dispatcher := notify.NewDispatcher(sink, notify.DispatcherConfig{
		QueueSize:   cfg.Notify.QueueSize,
		Workers:     cfg.Notify.Workers,
		SendTimeout: cfg.Notify.SendTimeout,
	}, logger)
	dispatcher.Start()

	avatars, err := newBlobStore(cfg.Blob)
	if err != nil {
		return err
	}

	composer := notify.Composer{
		AppName: cfg.App.Name,
		From:    cfg.Notify.Sender,
		Now:     time.Now,
	}

	policy := auth.Policy{
		VerificationTTL:    cfg.Tokens.VerificationTTL,
		ResetTTL:           cfg.Tokens.ResetTTL,
		RotateRefreshOnUse: cfg.JWT.RotateRefreshOnUse,
		PublicBaseURL:      cfg.App.PublicBaseURL,
		AvatarFolder:       cfg.Blob.AvatarFolder,
		PhoneRegion:        cfg.Phone.DefaultRegion,
	}

	userSvc := user.NewService(user.NewRepository(db.DB), avatars, logger)
	adminStore := admin.NewStore(admin.NewRepository(db.DB))

	userAuth, err := auth.NewService(auth.ServiceConfig{
		Kind:     principal.KindUser,
		Store:    userSvc,
		Issuer:   issuer,
		Hasher:   hasher,
		Sink:     sink,
		Async:    dispatcher,
		Blob:     avatars,
		Composer: composer,
		Policy:   policy,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	adminPolicy := policy
	adminPolicy.BlockingRegisterNotify = true

	adminAuth, err := auth.NewService(auth.ServiceConfig{
		Kind:     principal.KindAdmin,
		Store:    adminStore,
		Issuer:   issuer,
		Hasher:   hasher,
		Sink:     sink,
		Async:    dispatcher,
		Blob:     avatars,
		Composer: composer,
		Policy:   adminPolicy,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	validate := core.NewValidator(cfg.Phone.DefaultRegion)
	cookies := auth.CookieConfig{
		Domain: cfg.Cookie.Domain,
		Path:   cfg.Cookie.Path,
		Secure: cfg.SecureCookies(),
	}

	userAuthHandler := auth.NewHandler(auth.HandlerConfig{
		Service:       userAuth,
		Validator:     validate,
		Cookies:       cookies,
		MaxUploadSize: cfg.Blob.MaxUploadSize,
	})
	adminAuthHandler := auth.NewHandler(auth.HandlerConfig{
		Service:       adminAuth,
		Validator:     validate,
		Cookies:       cookies,
		MaxUploadSize: cfg.Blob.MaxUploadSize,
	})
	userAdminHandler := user.NewHandler(userSvc, validate)

	opsHandler := admin.NewOpsHandler(admin.OpsConfig{
		DBStats:       db.Stats,
		DBPing:        db.Ping,
		RedisStats:    redis.PoolStats,
		RedisPing:     redis.Ping,
		Notifications: dispatcher.Stats,
	})

	healthHandler := health.NewHandler(
		health.Dependency{Name: "database", Checker: db},
		health.Dependency{Name: "redis", Checker: redis},
	)

	srv := server.New(server.Config{
		ServerConfig:  cfg.Server,
		HealthHandler: healthHandler,
		Logger:        logger,
	})

	globalLimit := middleware.NewRateLimiter(redis.Client, middleware.RateLimitConfig{
		Limit: middleware.Limit(
			cfg.RateLimit.Requests,
			cfg.RateLimit.Burst,
			cfg.RateLimit.Window,
		),
		FailOpen: true,
	})
	sensitiveLimit := middleware.NewRateLimiter(redis.Client, middleware.RateLimitConfig{
		Limit: middleware.Limit(
			cfg.RateLimit.SensitiveRequests,
			cfg.RateLimit.SensitiveRequests,
			cfg.RateLimit.SensitiveWindow,
		),
		KeyFunc:  middleware.KeyByIPAndEndpoint,
		FailOpen: true,
	})
	principalLimit := middleware.NewRateLimiter(redis.Client, middleware.RateLimitConfig{
		Limit: middleware.Limit(
			cfg.RateLimit.Requests,
			cfg.RateLimit.Burst,
			cfg.RateLimit.Window,
		),
		KeyFunc:  middleware.KeyByPrincipal,
		FailOpen: true,
	})

	router := srv.Router()
	router.Use(middleware.RequestID)
	router.Use(middleware.Trace)
	router.Use(middleware.Logger(logger))
	router.Use(globalLimit.Handler)
	router.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	router.Use(middleware.CORS(cfg.CORS))

	healthHandler.RegisterRoutes(router)

	userSession := middleware.Authenticate(issuer, principal.UserRoleNames()...)
	adminSession := middleware.Authenticate(issuer, principal.AdminRoleNames()...)
	adminReaders := chain(
		middleware.Authenticate(issuer,
			string(principal.AdminRoleSuper),
			string(principal.AdminRoleAnalyst),
		),
		principalLimit.Handler,
	)
	adminWriters := chain(
		middleware.Authenticate(issuer, string(principal.AdminRoleSuper)),
		principalLimit.Handler,
	)

	router.Route("/v1", func(r chi.Router) {
		userAuthHandler.RegisterRoutes(r, userSession, sensitiveLimit.Handler)
		adminAuthHandler.RegisterRoutes(r, adminSession, sensitiveLimit.Handler)
		userAdminHandler.RegisterAdminRoutes(r, adminReaders, adminWriters)
		opsHandler.RegisterRoutes(r, adminReaders)
	})

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		cfg.Server.ShutdownTimeout+cfg.Server.DrainDelay,
	)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx, cfg.Server.DrainDelay); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if err := dispatcher.Shutdown(shutdownCtx); err != nil {
		logger.Error("notification drain error", "error", err)
	}
	closeLogged(logger, "notification sink", sink)

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}

	logger.Info("application stopped")
	return nil
}

func newSink(cfg config.NotifyConfig, logger *slog.Logger) (closableSink, error) {
	switch cfg.Driver {
	case "kafka":
		return notify.NewKafkaSink(cfg.Kafka), nil
	case "amqp":
		return notify.NewAMQPSink(cfg.AMQP)
	case "log":
		return notify.NewLogSink(logger), nil
	default:
		return nil, fmt.Errorf("unknown notify driver %q", cfg.Driver)
	}
}

func newBlobStore(cfg config.BlobConfig) (blob.Store, error) {
	if cfg.Driver == "cloudinary" {
		return blob.NewCloudinaryStore(cfg.CloudinaryURL)
	}
	return blob.Noop{}, nil
}

func chain(mws ...func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return chi.Chain(mws...).Handler(next)
	}
}

func closeLogged(logger *slog.Logger, name string, c io.Closer) {
	if err := c.Close(); err != nil {
		logger.Error("close error", "component", name, "error", err)
	}
}

func setupLogger(cfg config.LogConfig) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
