//go:build integration
// +build integration

package test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	flowAuth "github.com/MrEthical07/flowAuth"
	"github.com/MrEthical07/flowAuth/store"
	"github.com/MrEthical07/flowAuth/store/memory"
	"github.com/MrEthical07/flowAuth/store/redisstore"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const testPrefix = "fit"

// backend is one credential store the suites run against.
type backend struct {
	name  string
	setup func(t *testing.T) (store.CredentialStore, redis.UniversalClient)
}

// backends returns the stores to test. Memory and miniredis are always
// available; a real Redis is added when REDIS_ADDR is set.
func backends(t *testing.T) []backend {
	t.Helper()
	out := []backend{
		{
			name: "memory",
			setup: func(t *testing.T) (store.CredentialStore, redis.UniversalClient) {
				return memory.New(), nil
			},
		},
		{
			name: "miniredis",
			setup: func(t *testing.T) (store.CredentialStore, redis.UniversalClient) {
				t.Helper()
				mr, err := miniredis.Run()
				if err != nil {
					t.Fatalf("miniredis: %v", err)
				}
				rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
				t.Cleanup(func() { _ = rdb.Close(); mr.Close() })
				return redisstore.New(rdb, testPrefix), rdb
			},
		},
	}

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		out = append(out, backend{
			name: "standalone:" + addr,
			setup: func(t *testing.T) (store.CredentialStore, redis.UniversalClient) {
				t.Helper()
				rdb := redis.NewClient(&redis.Options{Addr: addr})
				ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
				defer cancel()
				if err := rdb.Ping(ctx).Err(); err != nil {
					t.Skipf("cannot connect to Redis at %s: %v", addr, err)
				}
				// Flush the test DB to avoid state leaking between runs.
				rdb.FlushDB(context.Background())
				t.Cleanup(func() { rdb.FlushDB(context.Background()); _ = rdb.Close() })
				return redisstore.New(rdb, testPrefix), rdb
			},
		})
	}
	return out
}

func newEngine(t *testing.T, st store.CredentialStore, configure func(*flowAuth.Config)) *flowAuth.Engine {
	t.Helper()

	cfg := flowAuth.DefaultConfig()
	cfg.Session.RedisPrefix = testPrefix
	cfg.Password.Memory = 8192
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	if configure != nil {
		configure(&cfg)
	}

	engine, err := flowAuth.New().
		WithConfig(cfg).
		WithCredentialStore(st).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine
}

func register(t *testing.T, e *flowAuth.Engine, name, email, password string) *flowAuth.RegisterResult {
	t.Helper()
	res, err := e.Register(context.Background(), flowAuth.RegisterRequest{
		Name: name, Email: email, Password: password, Confirm: password,
	})
	if err != nil {
		t.Fatalf("Register(%s) failed: %v", email, err)
	}
	return res
}
