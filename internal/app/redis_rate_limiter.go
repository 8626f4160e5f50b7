package app

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var turnRateLimitScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  ttl = tonumber(ARGV[1])
end
return {current, ttl}
`)

// RedisTurnRateLimiter implements distributed rate limiting of assistant
// turns using Redis. Every turn costs a metered model call, so the limit is
// enforced across instances rather than per process.
type RedisTurnRateLimiter struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisTurnRateLimiter creates a limiter with the given key prefix.
func NewRedisTurnRateLimiter(client redis.UniversalClient, prefix string) *RedisTurnRateLimiter {
	trimmedPrefix := strings.TrimSpace(prefix)
	if trimmedPrefix == "" {
		trimmedPrefix = "lumenbank:rate_limit"
	}
	trimmedPrefix = strings.TrimSuffix(trimmedPrefix, ":")

	return &RedisTurnRateLimiter{
		client: client,
		prefix: trimmedPrefix,
	}
}

// Allow consumes one unit of the subject's budget within the window. A nil
// limiter or zero limit disables limiting. Returns whether the request may
// proceed and, if not, how long to wait.
func (r *RedisTurnRateLimiter) Allow(ctx context.Context, subject string, limit int, window time.Duration) (bool, time.Duration, error) {
	if r == nil || r.client == nil || limit <= 0 || window <= 0 {
		return true, 0, nil
	}
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return true, 0, nil
	}

	windowMs := window.Milliseconds()
	if windowMs < 1000 {
		windowMs = 1000
	}

	key := fmt.Sprintf("%s:assistant_turn:%s", r.prefix, subject)
	rawResult, err := turnRateLimitScript.Run(ctx, r.client, []string{key}, windowMs).Result()
	if err != nil {
		return false, 0, err
	}

	values, ok := rawResult.([]interface{})
	if !ok || len(values) != 2 {
		return false, 0, fmt.Errorf("unexpected redis limiter response shape: %T", rawResult)
	}
	count, ok := values[0].(int64)
	if !ok {
		return false, 0, fmt.Errorf("unexpected redis limiter count type: %T", values[0])
	}
	ttlMs, ok := values[1].(int64)
	if !ok {
		return false, 0, fmt.Errorf("unexpected redis limiter ttl type: %T", values[1])
	}

	if count > int64(limit) {
		retryAfter := time.Duration(math.Max(float64(ttlMs), 0)) * time.Millisecond
		return false, retryAfter, nil
	}
	return true, 0, nil
}
