package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	flowAuth "github.com/MrEthical07/flowAuth"
)

var envKeys = []string{
	"FLOWAUTH_ENV", "FLOWAUTH_ADDR", "LOG_LEVEL", "LOG_FORMAT", "FLOWAUTH_STORE",
	"REDIS_URL", "DATABASE_URL", "FLOWAUTH_REDIS_PREFIX", "FLOWAUTH_PASSWORD_ALGORITHM",
	"FLOWAUTH_TOKEN_FORMAT", "FLOWAUTH_JWT_SECRET", "FLOWAUTH_SESSION_TTL",
	"FLOWAUTH_STAGE_DELAY", "FLOWAUTH_ERROR_DELAY", "FLOWAUTH_AUDIT",
	"FLOWAUTH_SEED_DEMO_USER", "FLOWAUTH_CORS_ORIGINS",
}

// clearEnv isolates a test from the runner's environment. t.Setenv restores
// the previous values on cleanup.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":8080" || cfg.Store.Backend != StoreMemory || !cfg.IsDevelopment() {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if !cfg.SeedDemoUser {
		t.Fatal("development should seed the demo user by default")
	}
	if cfg.Auth.SessionTTL != 24*time.Hour || cfg.Auth.StageDelay != 0 {
		t.Fatalf("unexpected auth defaults: %+v", cfg.Auth)
	}

	ec, err := cfg.EngineConfig()
	if err != nil {
		t.Fatalf("EngineConfig: %v", err)
	}
	if ec.Token.Format != flowAuth.TokenOpaque || ec.Password.Algorithm != "argon2id" {
		t.Fatalf("unexpected engine config: %+v", ec)
	}
}

func TestLoadFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("FLOWAUTH_ENV", "production")
	t.Setenv("FLOWAUTH_ADDR", "9000")
	t.Setenv("FLOWAUTH_STORE", "Redis")
	t.Setenv("REDIS_URL", "redis://cache:6379/1")
	t.Setenv("FLOWAUTH_PASSWORD_ALGORITHM", "sha256")
	t.Setenv("FLOWAUTH_TOKEN_FORMAT", "jwt")
	t.Setenv("FLOWAUTH_JWT_SECRET", strings.Repeat("k", 32))
	t.Setenv("FLOWAUTH_SESSION_TTL", "1h")
	t.Setenv("FLOWAUTH_STAGE_DELAY", "800ms")
	t.Setenv("FLOWAUTH_ERROR_DELAY", "500ms")
	t.Setenv("FLOWAUTH_CORS_ORIGINS", "http://a.example, http://b.example,")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":9000" || cfg.Store.Backend != StoreRedis || cfg.SeedDemoUser {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "http://b.example" {
		t.Fatalf("unexpected origins: %q", cfg.CORSOrigins)
	}

	ec, err := cfg.EngineConfig()
	if err != nil {
		t.Fatalf("EngineConfig: %v", err)
	}
	if ec.Token.Format != flowAuth.TokenJWT || string(ec.Token.PrivateKey) != strings.Repeat("k", 32) {
		t.Fatalf("unexpected token config: %+v", ec.Token)
	}
	if ec.Session.TTL != time.Hour || ec.Password.Algorithm != "sha256" {
		t.Fatalf("unexpected engine config: %+v", ec)
	}
	if ec.Pipeline.StageDelay != 800*time.Millisecond || ec.Pipeline.ErrorDelay != 500*time.Millisecond {
		t.Fatalf("unexpected pacing: %+v", ec.Pipeline)
	}
}

func TestLoadDotEnvFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("FLOWAUTH_ADDR=:7000\nLOG_LEVEL=debug\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		os.Unsetenv("FLOWAUTH_ADDR")
		os.Unsetenv("LOG_LEVEL")
	})

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":7000" || cfg.LogLevel != "debug" {
		t.Fatalf(".env values not applied: %+v", cfg)
	}
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "unknown store", env: map[string]string{"FLOWAUTH_STORE": "sqlite"}},
		{name: "postgres without dsn", env: map[string]string{"FLOWAUTH_STORE": "postgres"}},
		{name: "mysql without dsn", env: map[string]string{"FLOWAUTH_STORE": "mysql"}},
		{name: "production jwt without secret", env: map[string]string{
			"FLOWAUTH_ENV": "production", "FLOWAUTH_TOKEN_FORMAT": "jwt",
		}},
		{name: "short secret", env: map[string]string{
			"FLOWAUTH_TOKEN_FORMAT": "jwt", "FLOWAUTH_JWT_SECRET": "short",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load(filepath.Join(t.TempDir(), "missing.env")); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestDevelopmentJWTUsesDevSecret(t *testing.T) {
	clearEnv(t)
	t.Setenv("FLOWAUTH_TOKEN_FORMAT", "jwt")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := cfg.EngineConfig(); err != nil {
		t.Fatalf("EngineConfig: %v", err)
	}
}

func TestEngineConfigValidates(t *testing.T) {
	cfg := &Config{Auth: AuthConfig{PasswordAlgorithm: "md5", TokenFormat: "opaque", SessionTTL: time.Hour}}
	if _, err := cfg.EngineConfig(); err == nil {
		t.Fatal("expected invalid algorithm to fail validation")
	}
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer

	dev := &Config{Env: "development", LogLevel: "warn"}
	dev.Logger(&buf).Info("hidden")
	dev.Logger(&buf).Warn("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "level=WARN") {
		t.Fatalf("unexpected text output: %q", buf.String())
	}

	buf.Reset()
	prod := &Config{Env: "production"}
	prod.Logger(&buf).Info("hello")
	if !strings.HasPrefix(buf.String(), "{") {
		t.Fatalf("expected JSON output, got %q", buf.String())
	}
}

func TestEnsurePort(t *testing.T) {
	for in, want := range map[string]string{"8080": ":8080", ":9000": ":9000", "127.0.0.1:80": "127.0.0.1:80"} {
		if got := ensurePort(in); got != want {
			t.Fatalf("ensurePort(%q) = %q, want %q", in, got, want)
		}
	}
}
