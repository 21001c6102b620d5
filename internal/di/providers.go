package di

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/wire"
	"github.com/lmittmann/tint"

	"github.com/certmgmt/backend/internal/config"
	"github.com/certmgmt/backend/internal/database"
	"github.com/certmgmt/backend/internal/domain"
	"github.com/certmgmt/backend/internal/handler"
	"github.com/certmgmt/backend/internal/metrics"
	"github.com/certmgmt/backend/internal/middleware"
	"github.com/certmgmt/backend/internal/repository"
	"github.com/certmgmt/backend/internal/server"
	"github.com/certmgmt/backend/internal/service"
)

var ConfigSet = wire.NewSet(
	ProvideConfig,
)

var LoggerSet = wire.NewSet(
	ProvideLogger,
)

var DatabaseSet = wire.NewSet(
	ProvideDatabase,
)

var RepositorySet = wire.NewSet(
	ProvideCertificateRepository,
	ProvideAuditLogRepository,
)

var ServiceSet = wire.NewSet(
	metrics.New,
	service.NewAuditService,
	ProvideEventRecorder,
	service.NewCertificateService,
)

var AuthSet = wire.NewSet(
	ProvideKeyfunc,
	ProvideRoleAuthorizer,
	ProvideAuthMiddleware,
)

var HandlerSet = wire.NewSet(
	ProvideHealthHandler,
	handler.NewSwaggerHandler,
	ProvideCertificateHandler,
	ProvidePublicHandler,
	ProvideAuditHandler,
)

var ServerSet = wire.NewSet(
	ProvideServerConfig,
	server.New,
)

var AppSet = wire.NewSet(
	ConfigSet,
	LoggerSet,
	DatabaseSet,
	RepositorySet,
	ServiceSet,
	AuthSet,
	HandlerSet,
	ServerSet,
	wire.Struct(new(Application), "*"),
)

const Version = "0.1.0"

func ProvideConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func ProvideLogger(cfg *config.Config) *slog.Logger {
	var logLevel slog.Level
	switch cfg.Server.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	if cfg.IsDevelopment() {
		return slog.New(tint.NewHandler(os.Stdout, &tint.Options{
			Level:      logLevel,
			TimeFormat: time.Kitchen,
		}))
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	h := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(h)
}

// ProvideDatabase returns a nil handle for the in-memory storage driver.
func ProvideDatabase(cfg *config.Config, logger *slog.Logger) (*sql.DB, func(), error) {
	if cfg.Database.Driver == config.StorageDriverMemory {
		logger.Warn("Using in-memory storage; certificates are lost on restart")
		return nil, func() {}, nil
	}

	db, err := database.Open(context.Background(), cfg.Database.URL, cfg.Database.MaxOpenConns)
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {
		db.Close()
	}

	return db, cleanup, nil
}

func ProvideCertificateRepository(db *sql.DB, logger *slog.Logger) domain.CertificateRepository {
	if db == nil {
		return repository.NewMemoryCertificateRepository()
	}
	return repository.NewPostgresCertificateRepository(db, logger)
}

func ProvideAuditLogRepository(db *sql.DB) domain.AuditLogRepository {
	if db == nil {
		return repository.NewMemoryAuditLogRepository()
	}
	return repository.NewPostgresAuditLogRepository(db)
}

func ProvideEventRecorder(cfg *config.Config, audit *service.AuditService) domain.EventRecorder {
	if !cfg.Audit.Enabled {
		return service.NewNoopEventRecorder()
	}
	return audit
}

// ProvideKeyfunc prefers the JWKS endpoint; the HMAC secret is only reachable
// in development because config validation refuses it elsewhere.
func ProvideKeyfunc(cfg *config.Config, logger *slog.Logger) (jwt.Keyfunc, func(), error) {
	if cfg.Auth.JWKSURL == "" {
		logger.Warn("Verifying bearer tokens with a shared HMAC secret")
		return middleware.HMACKeyfunc([]byte(cfg.Auth.HMACSecret)), func() {}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	kf, err := middleware.NewJWKSKeyfunc(ctx, cfg.Auth.JWKSURL, cfg.Auth.JWKSRefreshInterval)
	if err != nil {
		cancel()
		return nil, nil, err
	}

	return kf, cancel, nil
}

func ProvideRoleAuthorizer(cfg *config.Config) (domain.RoleAuthorizer, error) {
	roles, err := config.LoadRoles(cfg.Auth.RolesFile)
	if err != nil {
		return nil, err
	}
	return middleware.NewStaticRoleAuthorizer(roles), nil
}

func ProvideAuthMiddleware(cfg *config.Config, kf jwt.Keyfunc, authorizer domain.RoleAuthorizer, logger *slog.Logger) *middleware.AuthMiddleware {
	return middleware.NewAuthMiddleware(middleware.AuthMiddlewareConfig{
		Keyfunc:    kf,
		Issuer:     cfg.Auth.Issuer,
		Audience:   cfg.Auth.Audience,
		RolesClaim: cfg.Auth.RolesClaim,
		Authorizer: authorizer,
		Logger:     logger,
	})
}

func ProvideHealthHandler(db *sql.DB) *handler.HealthHandler {
	if db == nil {
		return handler.NewHealthHandler(Version, nil)
	}
	return handler.NewHealthHandler(Version, db)
}

func ProvideCertificateHandler(cfg *config.Config, svc *service.CertificateService, auth *middleware.AuthMiddleware, logger *slog.Logger) *handler.CertificateHandler {
	return handler.NewCertificateHandler(handler.CertificateHandlerConfig{
		CertService:    svc,
		Auth:           auth,
		MaxUploadBytes: cfg.Upload.MaxBytes,
		Logger:         logger,
	})
}

func ProvidePublicHandler(cfg *config.Config, svc *service.CertificateService, auth *middleware.AuthMiddleware) *handler.PublicHandler {
	return handler.NewPublicHandler(svc, auth, cfg.Auth.PublicAPIRequire)
}

func ProvideAuditHandler(cfg *config.Config, audit *service.AuditService, auth *middleware.AuthMiddleware) *handler.AuditHandler {
	return handler.NewAuditHandler(audit, auth, cfg.Audit.RetentionDays)
}

func ProvideServerConfig(cfg *config.Config) server.Config {
	return server.Config{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
		CorsOrigins:  cfg.Server.CORSOrigins,
		MaxBodyBytes: cfg.Upload.MaxBytes,
	}
}

type Application struct {
	Config             *config.Config
	Logger             *slog.Logger
	DB                 *sql.DB
	Metrics            *metrics.Metrics
	Server             *server.Server
	HealthHandler      *handler.HealthHandler
	SwaggerHandler     *handler.SwaggerHandler
	CertificateHandler *handler.CertificateHandler
	PublicHandler      *handler.PublicHandler
	AuditHandler       *handler.AuditHandler
}
