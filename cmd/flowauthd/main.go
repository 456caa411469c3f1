// Command flowauthd serves the flowAuth login and registration pipelines
// over HTTP.
package main

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

	flowAuth "github.com/MrEthical07/flowAuth"
	"github.com/MrEthical07/flowAuth/config"
	"github.com/MrEthical07/flowAuth/httpapi"
	"github.com/MrEthical07/flowAuth/store/memory"
	"github.com/MrEthical07/flowAuth/store/sqlstore"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const (
	demoName     = "Demo User"
	demoEmail    = "user@example.com"
	demoPassword = "password123"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := cfg.Logger(os.Stdout)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("flowauthd exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting flowauthd",
		slog.String("env", cfg.Env),
		slog.String("addr", cfg.Addr),
		slog.String("store", cfg.Store.Backend),
	)

	engineCfg, err := cfg.EngineConfig()
	if err != nil {
		return err
	}

	builder := flowAuth.New().
		WithConfig(engineCfg).
		WithLogger(logger)

	cleanup, err := attachStore(ctx, cfg.Store, builder, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	engine, err := builder.Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	report := engine.SecurityReport()
	logger.Info("security posture",
		slog.String("token_format", report.TokenFormat),
		slog.String("signing_algorithm", report.SigningAlgorithm),
		slog.Duration("session_ttl", report.SessionTTL),
		slog.String("password_algorithm", report.Password.Algorithm),
		slog.Bool("legacy_upgrade_on_login", report.LegacyUpgradeOnLogin),
		slog.Bool("audit", report.AuditEnabled),
		slog.Bool("pacing", report.PacingEnabled),
	)

	if cfg.SeedDemoUser {
		created, err := engine.EnsureUser(ctx, demoName, demoEmail, demoPassword)
		if err != nil {
			return fmt.Errorf("seed demo user: %w", err)
		}
		logger.Info("demo user ready", slog.String("email", demoEmail), slog.Bool("created", created))
	}

	server := httpapi.New(engine, httpapi.Options{
		Logger:      logger,
		CORSOrigins: cfg.CORSOrigins,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Echo.Start(cfg.Addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Echo.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced shutdown", slog.Any("error", err))
	}
	return nil
}

// attachStore configures the credential store on b and returns a function
// releasing its connections.
func attachStore(ctx context.Context, cfg config.StoreConfig, b *flowAuth.Builder, logger *slog.Logger) (func(), error) {
	switch cfg.Backend {
	case config.StoreMemory:
		b.WithCredentialStore(memory.New())
		logger.Warn("using in-memory credential store; accounts are lost on restart")
		return func() {}, nil

	case config.StoreRedis:
		if cfg.RedisURL == "" {
			mr, err := miniredis.Run()
			if err != nil {
				return nil, fmt.Errorf("start embedded redis: %w", err)
			}
			client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			b.WithRedis(client)
			logger.Warn("REDIS_URL not set; using embedded redis", slog.String("addr", mr.Addr()))
			return func() {
				_ = client.Close()
				mr.Close()
			}, nil
		}

		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		b.WithRedis(client)
		logger.Info("connected to redis")
		return func() { _ = client.Close() }, nil

	case config.StorePostgres, config.StoreMySQL:
		dialect, err := sqlstore.ParseDialect(cfg.Backend)
		if err != nil {
			return nil, err
		}
		st, err := sqlstore.Open(ctx, dialect, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := st.Migrate(ctx); err != nil {
			_ = st.Close()
			return nil, err
		}
		b.WithCredentialStore(st)
		logger.Info("connected to database", slog.String("dialect", string(dialect)))
		return func() { _ = st.Close() }, nil

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
