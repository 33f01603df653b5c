package testsupport

import (
	"os"
	"strconv"
	"testing"

	"dpterminal/internal/adapters/config"
)

// RedisConfigFromEnv reads the Redis section for integration tests.
// Tests are skipped when REDIS_HOST is not set or -short is passed.
func RedisConfigFromEnv(t *testing.T) config.RedisConfig {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping redis integration test in short mode")
	}

	host := os.Getenv("REDIS_HOST")
	if host == "" {
		t.Skip("integration environment missing, set REDIS_HOST to run")
	}

	return config.RedisConfig{
		Host:     host,
		Port:     intValue("REDIS_PORT", 6379),
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       intValue("REDIS_TEST_DB", 15),
	}
}

func intValue(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}
