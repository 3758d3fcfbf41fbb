package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := Load("")
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.Server.Port != 50051 {
			t.Errorf("server port = %d, want 50051", cfg.Server.Port)
		}
		if cfg.Token.AccessLifetime != 2*time.Hour {
			t.Errorf("access lifetime = %v, want 2h", cfg.Token.AccessLifetime)
		}
		if cfg.Token.RefreshLifetime != 168*time.Hour {
			t.Errorf("refresh lifetime = %v, want 168h", cfg.Token.RefreshLifetime)
		}
		if cfg.Token.ReuseRevocationScope != "chain" {
			t.Errorf("reuse revocation scope = %q, want chain", cfg.Token.ReuseRevocationScope)
		}
		if cfg.Cache.SecurityTTL >= cfg.Cache.ProfileTTL {
			t.Errorf("security TTL %v should be below profile TTL %v", cfg.Cache.SecurityTTL, cfg.Cache.ProfileTTL)
		}
	})

	t.Run("yaml file overrides defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		content := []byte("server:\n  port: 9000\ntoken:\n  issuer: custom-issuer\nreaper:\n  interval: 15m\n")
		if err := os.WriteFile(path, content, 0o600); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}

		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.Server.Port != 9000 {
			t.Errorf("server port = %d, want 9000", cfg.Server.Port)
		}
		if cfg.Token.Issuer != "custom-issuer" {
			t.Errorf("issuer = %q, want custom-issuer", cfg.Token.Issuer)
		}
		if cfg.Reaper.Interval != 15*time.Minute {
			t.Errorf("reaper interval = %v, want 15m", cfg.Reaper.Interval)
		}
		// Untouched sections keep their defaults.
		if cfg.Redis.Port != 6379 {
			t.Errorf("redis port = %d, want 6379", cfg.Redis.Port)
		}
	})

	t.Run("environment overrides", func(t *testing.T) {
		t.Setenv("MALLORN_DATABASE_HOST", "db.internal")
		t.Setenv("MALLORN_TOKEN_SIGNING_KEY", "env-signing-key")

		cfg, err := Load("")
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.Database.Host != "db.internal" {
			t.Errorf("database host = %q, want db.internal", cfg.Database.Host)
		}
		if cfg.Token.SigningKey != "env-signing-key" {
			t.Errorf("signing key = %q, want env-signing-key", cfg.Token.SigningKey)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := Load("/nonexistent/config.yaml"); err == nil {
			t.Fatal("Load() expected error for a missing file")
		}
	})
}

func TestValidate(t *testing.T) {
	base := func(t *testing.T) *Config {
		t.Helper()
		cfg, err := Load("")
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		return cfg
	}

	t.Run("rejects refresh lifetime below access lifetime", func(t *testing.T) {
		cfg := base(t)
		cfg.Token.RefreshLifetime = time.Hour
		if err := cfg.Validate(); err == nil {
			t.Fatal("Validate() expected error")
		}
	})

	t.Run("rejects unknown reuse revocation scope", func(t *testing.T) {
		cfg := base(t)
		cfg.Token.ReuseRevocationScope = "everything"
		if err := cfg.Validate(); err == nil {
			t.Fatal("Validate() expected error")
		}
	})

	t.Run("rejects security TTL above profile TTL", func(t *testing.T) {
		cfg := base(t)
		cfg.Cache.SecurityTTL = cfg.Cache.ProfileTTL + time.Minute
		if err := cfg.Validate(); err == nil {
			t.Fatal("Validate() expected error")
		}
	})

	t.Run("rejects a non-positive reaper interval", func(t *testing.T) {
		cfg := base(t)
		cfg.Reaper.Interval = 0
		if err := cfg.Validate(); err == nil {
			t.Fatal("Validate() expected error")
		}
	})
}

func TestConnectionHelpers(t *testing.T) {
	db := DatabaseConfig{Host: "localhost", Port: 5432, User: "mallorn", Password: "secret", Database: "mallorn_auth", SSLMode: "disable"}
	want := "host=localhost port=5432 user=mallorn password=secret dbname=mallorn_auth sslmode=disable"
	if got := db.ConnectionString(); got != want {
		t.Errorf("ConnectionString() = %q, want %q", got, want)
	}

	srv := ServerConfig{Host: "0.0.0.0", Port: 50051}
	if got := srv.Address(); got != "0.0.0.0:50051" {
		t.Errorf("Address() = %q, want 0.0.0.0:50051", got)
	}

	rds := RedisConfig{Host: "localhost", Port: 6379}
	if got := rds.Address(); got != "localhost:6379" {
		t.Errorf("Address() = %q, want localhost:6379", got)
	}
}
