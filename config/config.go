// Package config loads flowauthd settings from environment variables, with
// an optional .env file for local development. All values have defaults so
// the server starts with no configuration at all.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	flowAuth "github.com/MrEthical07/flowAuth"
	"github.com/joho/godotenv"
)

// Store backends accepted by FLOWAUTH_STORE.
const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
	StoreMySQL    = "mysql"
)

// devJWTSecret lets local runs use JWT tokens without configuration.
const devJWTSecret = "flowauth-dev-secret-do-not-use-in-production"

// Config is the process configuration for flowauthd.
type Config struct {
	// Env is the deployment environment ("development" or "production").
	Env string

	// Addr is the HTTP listen address, e.g. ":8080".
	Addr string

	// LogLevel is one of debug, info, warn, error.
	LogLevel string

	// LogFormat is "text" or "json". Empty picks text in development and
	// json elsewhere.
	LogFormat string

	Store StoreConfig
	Auth  AuthConfig

	// SeedDemoUser creates the demo account at startup when missing.
	SeedDemoUser bool

	// CORSOrigins lists origins allowed to call the API cross-origin.
	CORSOrigins []string
}

// StoreConfig selects and locates the credential store.
type StoreConfig struct {
	// Backend is memory, redis, postgres or mysql.
	Backend string

	// RedisURL is a redis:// URL. Empty with the redis backend starts an
	// embedded in-process Redis.
	RedisURL string

	// DatabaseURL is the DSN for the postgres and mysql backends.
	DatabaseURL string

	// RedisPrefix namespaces every key written by the redis backend.
	RedisPrefix string
}

// AuthConfig holds the pipeline settings forwarded to the engine.
type AuthConfig struct {
	PasswordAlgorithm string
	TokenFormat       string
	JWTSecret         string
	SessionTTL        time.Duration
	StageDelay        time.Duration
	ErrorDelay        time.Duration
	AuditEnabled      bool
}

// Load reads an optional .env file (the given paths, or ./.env) and then the
// environment. A missing .env file is not an error.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load env file: %w", err)
	}

	env := getEnv("FLOWAUTH_ENV", "development")
	cfg := &Config{
		Env:       env,
		Addr:      ensurePort(getEnv("FLOWAUTH_ADDR", ":8080")),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", ""),

		Store: StoreConfig{
			Backend:     strings.ToLower(getEnv("FLOWAUTH_STORE", StoreMemory)),
			RedisURL:    getEnv("REDIS_URL", ""),
			DatabaseURL: getEnv("DATABASE_URL", ""),
			RedisPrefix: getEnv("FLOWAUTH_REDIS_PREFIX", "fa"),
		},

		Auth: AuthConfig{
			PasswordAlgorithm: strings.ToLower(getEnv("FLOWAUTH_PASSWORD_ALGORITHM", "argon2id")),
			TokenFormat:       strings.ToLower(getEnv("FLOWAUTH_TOKEN_FORMAT", string(flowAuth.TokenOpaque))),
			JWTSecret:         getEnv("FLOWAUTH_JWT_SECRET", ""),
			SessionTTL:        getEnvDuration("FLOWAUTH_SESSION_TTL", 24*time.Hour),
			StageDelay:        getEnvDuration("FLOWAUTH_STAGE_DELAY", 0),
			ErrorDelay:        getEnvDuration("FLOWAUTH_ERROR_DELAY", 0),
			AuditEnabled:      getEnvBool("FLOWAUTH_AUDIT", false),
		},

		CORSOrigins: splitList(getEnv("FLOWAUTH_CORS_ORIGINS", "")),
	}
	cfg.SeedDemoUser = getEnvBool("FLOWAUTH_SEED_DEMO_USER", cfg.IsDevelopment())

	switch cfg.Store.Backend {
	case StoreMemory, StoreRedis:
	case StorePostgres, StoreMySQL:
		if cfg.Store.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required for the %s store", cfg.Store.Backend)
		}
	default:
		return nil, fmt.Errorf("unknown FLOWAUTH_STORE %q", cfg.Store.Backend)
	}

	if cfg.Auth.TokenFormat == string(flowAuth.TokenJWT) {
		if cfg.IsDevelopment() && cfg.Auth.JWTSecret == "" {
			cfg.Auth.JWTSecret = devJWTSecret
		}
		if len(cfg.Auth.JWTSecret) < 32 {
			return nil, errors.New("FLOWAUTH_JWT_SECRET must be at least 32 characters")
		}
	}

	return cfg, nil
}

// IsDevelopment reports whether Env names a development environment.
func (c *Config) IsDevelopment() bool {
	env := strings.ToLower(c.Env)
	return env == "development" || env == "dev"
}

// EngineConfig translates the process settings into a validated engine
// configuration.
func (c *Config) EngineConfig() (flowAuth.Config, error) {
	out := flowAuth.DefaultConfig()
	out.Token.Format = flowAuth.TokenFormat(c.Auth.TokenFormat)
	if out.Token.Format == flowAuth.TokenJWT {
		out.Token.PrivateKey = []byte(c.Auth.JWTSecret)
	}
	out.Session.TTL = c.Auth.SessionTTL
	if c.Store.RedisPrefix != "" {
		out.Session.RedisPrefix = c.Store.RedisPrefix
	}
	out.Password.Algorithm = c.Auth.PasswordAlgorithm
	out.Pipeline.StageDelay = c.Auth.StageDelay
	out.Pipeline.ErrorDelay = c.Auth.ErrorDelay
	out.Audit.Enabled = c.Auth.AuditEnabled

	if err := out.Validate(); err != nil {
		return flowAuth.Config{}, fmt.Errorf("engine config: %w", err)
	}
	return out, nil
}

// Logger builds the process logger writing to w.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(c.LogLevel)}

	format := strings.ToLower(c.LogFormat)
	if format == "" {
		format = "json"
		if c.IsDevelopment() {
			format = "text"
		}
	}
	if format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ensurePort accepts a bare port number as shorthand for ":<port>".
func ensurePort(addr string) string {
	if _, err := strconv.Atoi(addr); err == nil {
		return ":" + addr
	}
	return addr
}

// --- Helper functions for reading environment variables ---

func getEnv(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

// getEnvDuration reads a duration env var (e.g. "800ms") or returns the default.
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
