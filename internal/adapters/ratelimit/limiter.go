package ratelimit

import (
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// Limiter decides whether an outbound call may proceed. Callers never wait:
// a denied call fails immediately so request latency stays bounded.
type Limiter interface {
	// Allow consumes a token if one is available
	Allow() bool

	// Limit returns the configured rate in requests per minute, -1 when unlimited
	Limit() float64
}

// New builds a limiter for name. perMinute <= 0 disables limiting.
// A non-nil Redis client shares the bucket across instances.
func New(name string, perMinute int, client *redis.Client) Limiter {
	if perMinute <= 0 {
		return NoOp{}
	}
	burst := perMinute / 10
	if burst < 1 {
		burst = 1
	}
	if client != nil {
		return NewRedis(client, name, float64(perMinute), burst)
	}
	return NewLocal(float64(perMinute), burst)
}

// Local is an in-process token bucket
type Local struct {
	limiter   *rate.Limiter
	perMinute float64
}

func NewLocal(perMinute float64, burst int) *Local {
	return &Local{
		limiter:   rate.NewLimiter(rate.Limit(perMinute/60.0), burst),
		perMinute: perMinute,
	}
}

func (l *Local) Allow() bool {
	return l.limiter.Allow()
}

func (l *Local) Limit() float64 {
	return l.perMinute
}

// NoOp never denies
type NoOp struct{}

func (NoOp) Allow() bool     { return true }
func (NoOp) Limit() float64 { return -1 }

// Error reports a denied call
type Error struct {
	Name  string
	Limit float64
}

func (e *Error) Error() string {
	return fmt.Sprintf("rate limit reached for %s (%.0f req/min)", e.Name, e.Limit)
}

// idle Redis buckets expire after this long
const idleTTL = time.Hour
