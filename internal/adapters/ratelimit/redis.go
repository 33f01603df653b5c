package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"dpterminal/pkg/errors"
	"dpterminal/pkg/logger"
)

// KEYS[1] bucket key; ARGV rate/sec, burst, now (seconds), ttl (seconds).
// Returns 1 when a token was consumed.
const tokenBucketScript = `
local key = KEYS[1]
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

local data = redis.call('HMGET', key, 'tokens', 'last_update')
local tokens = tonumber(data[1])
local last_update = tonumber(data[2])

if not tokens then
    tokens = burst
    last_update = now
end

tokens = math.min(burst, tokens + math.max(0, now - last_update) * rate)

local allowed = 0
if tokens >= 1.0 then
    tokens = tokens - 1.0
    allowed = 1
end

redis.call('HSET', key, 'tokens', tokens, 'last_update', now)
redis.call('EXPIRE', key, ttl)
return allowed
`

// Redis is a token bucket shared across instances through a Lua script
type Redis struct {
	client *redis.Client
	script *redis.Script
	key    string
	rate   float64
	burst  int
	now    func() time.Time
	log    *logger.Logger
}

func NewRedis(client *redis.Client, name string, perMinute float64, burst int) *Redis {
	return &Redis{
		client: client,
		script: redis.NewScript(tokenBucketScript),
		key:    "dp:rate_limit:" + name,
		rate:   perMinute / 60.0,
		burst:  burst,
		now:    time.Now,
		log:    logger.Get().With("component", "rate_limiter", "limiter", name),
	}
}

// Allow denies when Redis cannot be reached
func (l *Redis) Allow() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	ok, err := l.tryAcquire(ctx)
	if err != nil {
		l.log.Warnw("Rate limiter unavailable, denying call", "error", err)
		return false
	}
	return ok
}

func (l *Redis) Limit() float64 {
	return l.rate * 60.0
}

func (l *Redis) tryAcquire(ctx context.Context) (bool, error) {
	now := float64(l.now().UnixNano()) / float64(time.Second)

	res, err := l.script.Run(ctx, l.client, []string{l.key},
		l.rate, l.burst, now, int(idleTTL.Seconds()),
	).Int()
	if err != nil {
		return false, errors.Wrap(err, "run token bucket script")
	}
	return res == 1, nil
}
