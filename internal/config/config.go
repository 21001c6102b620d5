package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultPort                = 3200
	DefaultStorageDriver       = StorageDriverPostgres
	DefaultDBMaxOpenConns      = 25
	DefaultRolesClaim          = "platformRoles"
	DefaultAuditRetentionDays  = 90
	DefaultMaxUploadBytes      = 64 * 1024
	DefaultJWKSRefreshInterval = 15 * time.Minute
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Audit    AuditConfig
	Upload   UploadConfig
}

type ServerConfig struct {
	Env         string
	Host        string
	Port        int
	LogLevel    string
	CORSOrigins string
}

type DatabaseConfig struct {
	Driver       string
	URL          string
	MaxOpenConns int
}

// AuthConfig describes bearer token validation. HMACSecret verifies tokens
// locally when no JWKS endpoint is configured and is accepted in development only.
type AuthConfig struct {
	JWKSURL             string
	JWKSRefreshInterval time.Duration
	HMACSecret          string
	Issuer              string
	Audience            string
	RolesClaim          string
	RolesFile           string
	PublicAPIRequire    bool
}

type AuditConfig struct {
	Enabled       bool
	RetentionDays int
}

type UploadConfig struct {
	MaxBytes int
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Env:         getEnv("APP_ENV", "development"),
			Host:        getEnv("HOST", "0.0.0.0"),
			Port:        getEnvInt("PORT", DefaultPort),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
			CORSOrigins: getEnv("CORS_ORIGINS", "*"),
		},
		Database: DatabaseConfig{
			Driver:       strings.ToLower(getEnv("STORAGE_DRIVER", DefaultStorageDriver)),
			URL:          getEnv("DATABASE_URL", ""),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", DefaultDBMaxOpenConns),
		},
		Auth: AuthConfig{
			JWKSURL:             getEnv("AUTH_JWKS_URL", ""),
			JWKSRefreshInterval: time.Duration(getEnvInt("AUTH_JWKS_REFRESH_SECONDS", int(DefaultJWKSRefreshInterval.Seconds()))) * time.Second,
			HMACSecret:          getEnv("AUTH_HMAC_SECRET", ""),
			Issuer:              getEnv("AUTH_TOKEN_ISSUER", ""),
			Audience:            getEnv("AUTH_TOKEN_AUDIENCE", ""),
			RolesClaim:          getEnv("AUTH_ROLES_CLAIM", DefaultRolesClaim),
			RolesFile:           getEnvPath("AUTH_ROLES_FILE", ""),
			PublicAPIRequire:    getEnvBool("PUBLIC_API_REQUIRE_AUTH", false),
		},
		Audit: AuditConfig{
			Enabled:       getEnvBool("AUDIT_ENABLED", true),
			RetentionDays: getEnvInt("AUDIT_RETENTION_DAYS", DefaultAuditRetentionDays),
		},
		Upload: UploadConfig{
			MaxBytes: getEnvInt("MAX_UPLOAD_BYTES", DefaultMaxUploadBytes),
		},
	}
}

func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// Validate reports settings that would leave the service unable to start.
func (c *Config) Validate() error {
	var errs []error

	switch c.Database.Driver {
	case StorageDriverPostgres:
		if c.Database.URL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres storage driver"))
		}
	case StorageDriverMemory:
	default:
		errs = append(errs, errors.New("STORAGE_DRIVER must be one of postgres, memory"))
	}

	if c.Auth.JWKSURL == "" && c.Auth.HMACSecret == "" {
		errs = append(errs, errors.New("AUTH_JWKS_URL or AUTH_HMAC_SECRET is required"))
	}
	if c.Auth.JWKSURL == "" && c.Auth.HMACSecret != "" && !c.IsDevelopment() {
		errs = append(errs, errors.New("AUTH_HMAC_SECRET is only accepted when APP_ENV=development"))
	}
	if c.Upload.MaxBytes <= 0 {
		errs = append(errs, errors.New("MAX_UPLOAD_BYTES must be positive"))
	}

	return errors.Join(errs...)
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}

	return os.ExpandEnv(path)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvPath(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return expandPath(value)
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
