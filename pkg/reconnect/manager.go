package reconnect

import (
	"context"
	"sync"
	"time"

	"dpterminal/pkg/errors"
	"dpterminal/pkg/logger"
)

// Manager retries a connection attempt with exponential backoff.
// Used at startup for dependencies that may come up after the service.
type Manager struct {
	minBackoff        time.Duration
	maxBackoff        time.Duration
	backoffMultiplier float64
	maxAttempts       int

	mu                  sync.Mutex
	currentBackoff      time.Duration
	consecutiveFailures int

	logger *logger.Logger
}

// Config configures the reconnect manager
type Config struct {
	MinBackoff        time.Duration // Initial backoff (e.g. 500ms)
	MaxBackoff        time.Duration // Backoff ceiling (e.g. 10s)
	BackoffMultiplier float64       // e.g. 2.0
	MaxAttempts       int           // Attempts before giving up (0 = until ctx is done)
}

// NewManager creates a new reconnect manager with sensible defaults
func NewManager(config Config, log *logger.Logger) *Manager {
	if config.MinBackoff <= 0 {
		config.MinBackoff = 500 * time.Millisecond
	}
	if config.MaxBackoff <= 0 {
		config.MaxBackoff = 10 * time.Second
	}
	if config.BackoffMultiplier < 1 {
		config.BackoffMultiplier = 2.0
	}

	return &Manager{
		minBackoff:        config.MinBackoff,
		maxBackoff:        config.MaxBackoff,
		backoffMultiplier: config.BackoffMultiplier,
		maxAttempts:       config.MaxAttempts,
		currentBackoff:    config.MinBackoff,
		logger:            log,
	}
}

// Backoff returns the wait before the next attempt
func (m *Manager) Backoff() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentBackoff
}

// Failures returns the consecutive failure count
func (m *Manager) Failures() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.consecutiveFailures
}

func (m *Manager) recordFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.consecutiveFailures++
	next := time.Duration(float64(m.currentBackoff) * m.backoffMultiplier)
	if next > m.maxBackoff {
		next = m.maxBackoff
	}
	m.currentBackoff = next
}

func (m *Manager) recordSuccess() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.consecutiveFailures > 0 {
		m.logger.Infow("✅ Connected after retries", "failures", m.consecutiveFailures)
	}
	m.currentBackoff = m.minBackoff
	m.consecutiveFailures = 0
}

// Connect calls connectFn until it succeeds, attempts run out or ctx is done.
// The last connect error is returned when attempts run out.
func (m *Manager) Connect(ctx context.Context, name string, connectFn func(context.Context) error) error {
	for attempt := 1; ; attempt++ {
		err := connectFn(ctx)
		if err == nil {
			m.recordSuccess()
			return nil
		}
		m.recordFailure()

		if m.maxAttempts > 0 && attempt >= m.maxAttempts {
			return errors.Wrapf(err, "%s: giving up after %d attempts", name, attempt)
		}

		backoff := m.Backoff()
		m.logger.Warnw("⏳ Connection failed, retrying",
			"target", name,
			"attempt", attempt,
			"backoff", backoff,
			"error", err,
		)

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return errors.Wrapf(ctx.Err(), "%s: %v", name, err)
		}
	}
}
