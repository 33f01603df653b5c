package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"dpterminal/pkg/logger"
)

// Check is a named dependency probe
type Check struct {
	Name string
	Ping func(ctx context.Context) error
}

// RedisCheck probes a Redis client with PING
func RedisCheck(client *redis.Client) Check {
	return Check{
		Name: "redis",
		Ping: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		},
	}
}

// Handler provides health check endpoints
type Handler struct {
	log         *logger.Logger
	checks      []Check
	startTime   time.Time
	serviceName string
	version     string
}

// New creates a new health check handler. With no checks the service is always ready.
func New(log *logger.Logger, serviceName, version string, checks ...Check) *Handler {
	return &Handler{
		log:         log.With("component", "health"),
		checks:      checks,
		startTime:   time.Now(),
		serviceName: serviceName,
		version:     version,
	}
}

// HealthStatus represents the overall health status
type HealthStatus struct {
	Status    string                     `json:"status"` // "healthy", "degraded", "unhealthy"
	Service   string                     `json:"service"`
	Version   string                     `json:"version"`
	Uptime    string                     `json:"uptime"`
	Timestamp string                     `json:"timestamp"`
	Checks    map[string]ComponentHealth `json:"checks"`
}

// ComponentHealth represents health of a single component
type ComponentHealth struct {
	Status       string `json:"status"`
	ResponseTime string `json:"response_time,omitempty"`
	Error        string `json:"error,omitempty"`
}

// HandleLiveness returns 200 OK if service is running
func (h *Handler) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// HandleReadiness returns 503 unless every dependency answers
func (h *Handler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks, healthy := h.runChecks(ctx)
	status := h.status(checks)

	statusCode := http.StatusOK
	if healthy < len(h.checks) {
		status.Status = "unhealthy"
		statusCode = http.StatusServiceUnavailable
		h.log.Warnw("Readiness check failed", "checks", checks)
	}

	writeJSON(w, statusCode, status)
}

// HandleHealth returns detailed status. Partial failures report degraded with 200.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	checks, healthy := h.runChecks(ctx)
	status := h.status(checks)

	statusCode := http.StatusOK
	switch {
	case len(h.checks) > 0 && healthy == 0:
		status.Status = "unhealthy"
		statusCode = http.StatusServiceUnavailable
	case healthy < len(h.checks):
		status.Status = "degraded"
	}

	writeJSON(w, statusCode, status)
}

func (h *Handler) status(checks map[string]ComponentHealth) HealthStatus {
	return HealthStatus{
		Status:    "healthy",
		Service:   h.serviceName,
		Version:   h.version,
		Uptime:    time.Since(h.startTime).String(),
		Timestamp: time.Now().Format(time.RFC3339),
		Checks:    checks,
	}
}

func (h *Handler) runChecks(ctx context.Context) (map[string]ComponentHealth, int) {
	checks := make(map[string]ComponentHealth, len(h.checks))
	healthy := 0
	for _, c := range h.checks {
		res := h.check(ctx, c)
		checks[c.Name] = res
		if res.Status == "healthy" {
			healthy++
		}
	}
	return checks, healthy
}

func (h *Handler) check(ctx context.Context, c Check) ComponentHealth {
	start := time.Now()
	err := c.Ping(ctx)
	elapsed := time.Since(start)

	if err != nil {
		h.log.Errorw("Health check failed", "check", c.Name, "error", err, "elapsed", elapsed)
		return ComponentHealth{
			Status:       "unhealthy",
			ResponseTime: elapsed.String(),
			Error:        err.Error(),
		}
	}

	return ComponentHealth{
		Status:       "healthy",
		ResponseTime: elapsed.String(),
	}
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
