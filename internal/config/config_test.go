package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "STORAGE_DRIVER", "AUTH_ROLES_CLAIM", "AUDIT_ENABLED", "MAX_UPLOAD_BYTES"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	if cfg.Server.Port != DefaultPort {
		t.Errorf("expected port %d, got %d", DefaultPort, cfg.Server.Port)
	}
	if cfg.Database.Driver != StorageDriverPostgres {
		t.Errorf("expected postgres driver, got %s", cfg.Database.Driver)
	}
	if cfg.Auth.RolesClaim != DefaultRolesClaim {
		t.Errorf("expected roles claim %s, got %s", DefaultRolesClaim, cfg.Auth.RolesClaim)
	}
	if !cfg.Audit.Enabled {
		t.Error("expected audit enabled by default")
	}
	if cfg.Upload.MaxBytes != DefaultMaxUploadBytes {
		t.Errorf("expected max upload %d, got %d", DefaultMaxUploadBytes, cfg.Upload.MaxBytes)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("STORAGE_DRIVER", "MEMORY")
	t.Setenv("AUDIT_ENABLED", "false")
	t.Setenv("PUBLIC_API_REQUIRE_AUTH", "true")
	t.Setenv("DB_MAX_OPEN_CONNS", "not-a-number")

	cfg := Load()

	if cfg.Server.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.Server.Port)
	}
	if cfg.Database.Driver != StorageDriverMemory {
		t.Errorf("expected memory driver, got %s", cfg.Database.Driver)
	}
	if cfg.Audit.Enabled {
		t.Error("expected audit disabled")
	}
	if !cfg.Auth.PublicAPIRequire {
		t.Error("expected public api to require auth")
	}
	if cfg.Database.MaxOpenConns != DefaultDBMaxOpenConns {
		t.Errorf("expected fallback to default, got %d", cfg.Database.MaxOpenConns)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"memory with hmac in development", func(c *Config) {}, false},
		{"postgres without url", func(c *Config) { c.Database.Driver = StorageDriverPostgres }, true},
		{"unknown driver", func(c *Config) { c.Database.Driver = "mongo" }, true},
		{"no token verifier", func(c *Config) { c.Auth.HMACSecret = "" }, true},
		{"hmac outside development", func(c *Config) { c.Server.Env = "production" }, true},
		{"jwks in production", func(c *Config) {
			c.Server.Env = "production"
			c.Auth.HMACSecret = ""
			c.Auth.JWKSURL = "https://idp.example.com/jwks"
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				Server:   ServerConfig{Env: "development"},
				Database: DatabaseConfig{Driver: StorageDriverMemory},
				Auth:     AuthConfig{HMACSecret: "secret"},
				Upload:   UploadConfig{MaxBytes: DefaultMaxUploadBytes},
			}
			tt.mutate(cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadRoles(t *testing.T) {
	roles, err := LoadRoles("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(roles["certificate-checker"]) != 3 {
		t.Errorf("expected default checker role, got %v", roles)
	}

	path := filepath.Join(t.TempDir(), "roles.yaml")
	content := "roles:\n  hub-operator:\n    - CERTIFICATES_VIEW_CERTIFICATES\n    - CERTIFICATES_APPROVE_REQUEST\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write roles file: %v", err)
	}

	roles, err = LoadRoles(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := roles["hub-operator"]; len(got) != 2 || got[1] != "CERTIFICATES_APPROVE_REQUEST" {
		t.Errorf("unexpected roles: %v", roles)
	}

	if _, err := ParseRoles([]byte("roles: {}\n")); err == nil {
		t.Error("expected error for empty roles")
	}
	if _, err := LoadRoles(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
