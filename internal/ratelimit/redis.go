package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// allowScript keeps the evict/count/append sequence atomic on the Redis side.
// Timestamps live in a sorted set scored by microseconds; a denial performs
// no ZADD, matching the in-memory limiter.
var allowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, 0, now - window)

local count = redis.call('ZCARD', key)
if count >= limit then
	local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
	local retry = window
	if oldest[2] then
		retry = tonumber(oldest[2]) + window - now
	end
	return {0, 0, retry}
end

redis.call('ZADD', key, now, ARGV[4])
redis.call('PEXPIRE', key, math.ceil(window / 1000) + 1000)
return {1, limit - count - 1, 0}
`)

// RedisLimiter implements the sliding window over Redis so multiple processes
// share one view of each identity's window.
type RedisLimiter struct {
	client *redis.Client
	cfg    Config
	prefix string
}

// NewRedisLimiter constructs a Redis-backed limiter.
func NewRedisLimiter(client *redis.Client, cfg Config) (*RedisLimiter, error) {
	if client == nil {
		return nil, errors.New("ratelimit: redis client is required")
	}
	return &RedisLimiter{
		client: client,
		cfg:    cfg.withDefaults(),
		prefix: "ratelimit:",
	}, nil
}

// Allow evaluates and records the request atomically via a Lua script.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	nowMicro := l.cfg.Clock().UnixMicro()
	windowMicro := l.cfg.Window.Microseconds()

	res, err := allowScript.Run(ctx, l.client,
		[]string{l.prefix + key},
		nowMicro, windowMicro, l.cfg.Requests, uuid.NewString(),
	).Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("ratelimit: redis eval: %w", err)
	}
	if len(res) != 3 {
		return Decision{}, fmt.Errorf("ratelimit: unexpected script reply length %d", len(res))
	}

	allowed, _ := res[0].(int64)
	remaining, _ := res[1].(int64)
	retryMicro, _ := res[2].(int64)

	return Decision{
		Allowed:    allowed == 1,
		Limit:      l.cfg.Requests,
		Remaining:  int(remaining),
		RetryAfter: time.Duration(retryMicro) * time.Microsecond,
	}, nil
}
