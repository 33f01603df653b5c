package testsupport

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// NewRedisClient returns a client for repository tests. With REDIS_HOST set it
// connects to that server and flushes the test DB around the test, otherwise
// it starts an in-process miniredis.
func NewRedisClient(t *testing.T) *redis.Client {
	t.Helper()

	if os.Getenv("REDIS_HOST") == "" {
		return newMiniredisClient(t)
	}

	cfg := RedisConfigFromEnv(t)
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		t.Skipf("redis unreachable at %s: %v", cfg.Addr(), err)
	}

	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("failed to flush redis before test: %v", err)
	}

	t.Cleanup(func() {
		_ = client.FlushDB(context.Background()).Err()
		_ = client.Close()
	})

	return client
}

func newMiniredisClient(t *testing.T) *redis.Client {
	t.Helper()

	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}
