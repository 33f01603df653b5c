package bootstrap

import (
	"context"
	"sync"
	"time"

	"dpterminal/internal/adapters/kafka"
	redisclient "dpterminal/internal/adapters/redis"
	"dpterminal/internal/api"
	"dpterminal/pkg/errors"
	"dpterminal/pkg/logger"
)

// Lifecycle manages graceful shutdown of components
type Lifecycle struct {
	shutdownTimeout time.Duration
}

// NewLifecycle creates a new lifecycle manager
func NewLifecycle() *Lifecycle {
	return &Lifecycle{
		shutdownTimeout: 30 * time.Second,
	}
}

// Shutdown performs coordinated cleanup in order:
// 1. No new requests accepted
// 2. In-flight requests finish and their dispatch events are handed off
// 3. Producer flushes pending dispatch events
// 4. Errors and logs flushed
// 5. Redis last (in-flight requests may need it)
func (l *Lifecycle) Shutdown(
	wg *sync.WaitGroup,
	httpServer *api.Server,
	kafkaProducer *kafka.Producer,
	redisClient *redisclient.Client,
	errorTracker errors.Tracker,
	log *logger.Logger,
) {
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), l.shutdownTimeout)
	defer shutdownCancel()

	// ========================================
	// Step 1: Stop HTTP Server (10s timeout)
	// ========================================
	log.Info("[1/6] Stopping HTTP server...")
	if httpServer != nil {
		httpCtx, httpCancel := context.WithTimeout(shutdownCtx, 10*time.Second)
		if err := httpServer.Shutdown(httpCtx); err != nil {
			log.Errorw("HTTP server shutdown failed", "error", err)
		}
		httpCancel()
	}

	// ========================================
	// Step 2: Wait for server goroutine and dispatch events
	// ========================================
	log.Info("[2/6] Waiting for goroutines...")
	l.waitForGoroutines(wg, 5*time.Second, log)

	// ========================================
	// Step 3: Close Kafka Producer
	// ========================================
	log.Info("[3/6] Closing Kafka producer...")
	if kafkaProducer != nil {
		if err := kafkaProducer.Close(); err != nil {
			log.Errorw("Kafka producer close failed", "error", err)
		} else {
			log.Info("✓ Kafka producer closed")
		}
	}

	// ========================================
	// Step 4: Flush Error Tracker
	// ========================================
	log.Info("[4/6] Flushing error tracker...")
	l.flushErrorTracker(shutdownCtx, errorTracker, log)

	// ========================================
	// Step 5: Sync Logs
	// ========================================
	log.Info("[5/6] Syncing logs...")
	if err := logger.Sync(); err != nil {
		log.Warn("Log sync completed with warnings")
	}

	// ========================================
	// Step 6: Close Redis
	// LAST - other components may need it during shutdown
	// ========================================
	log.Info("[6/6] Closing Redis...")
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.Errorw("Redis close failed", "error", err)
		} else {
			log.Info("✓ Redis closed")
		}
	}

	log.Info("✅ Graceful shutdown complete")
}

// waitForGoroutines waits for all goroutines with a timeout
func (l *Lifecycle) waitForGoroutines(wg *sync.WaitGroup, timeout time.Duration, log *logger.Logger) {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info("✓ All goroutines finished")
	case <-time.After(timeout):
		log.Warnw("⚠ Some goroutines did not finish within timeout", "timeout", timeout)
	}
}

// flushErrorTracker flushes the error tracker (Sentry, etc.)
func (l *Lifecycle) flushErrorTracker(ctx context.Context, tracker errors.Tracker, log *logger.Logger) {
	if tracker == nil {
		return
	}
	if err := tracker.Flush(ctx); err != nil {
		log.Warnw("Failed to flush error tracker", "error", err)
		return
	}
	log.Info("✓ Error tracker flushed")
}
