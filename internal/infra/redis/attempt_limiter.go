package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// AttemptLimiter counts failed sign-ins per key in a fixed window shared by
// every instance.
type AttemptLimiter struct {
	client *redis.Client
	max    int
	window time.Duration
}

var recordFailure = redis.NewScript(`
local failures = redis.call("INCR", KEYS[1])
if redis.call("PTTL", KEYS[1]) < 0 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return failures
`)

func NewAttemptLimiter(client *redis.Client, max int, window time.Duration) *AttemptLimiter {
	return &AttemptLimiter{client: client, max: max, window: window}
}

func (l *AttemptLimiter) Allow(ctx context.Context, key string) (bool, error) {
	if l.max <= 0 {
		return true, nil
	}
	failures, err := l.client.Get(ctx, l.key(key)).Int()
	if errors.Is(err, redis.Nil) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return failures < l.max, nil
}

// Failure counts one failed attempt. The counter and its expiry are set in
// one script, so a counter never outlives the window.
func (l *AttemptLimiter) Failure(ctx context.Context, key string) error {
	return recordFailure.Run(ctx, l.client, []string{l.key(key)}, l.window.Milliseconds()).Err()
}

func (l *AttemptLimiter) Reset(ctx context.Context, key string) error {
	return l.client.Del(ctx, l.key(key)).Err()
}

func (l *AttemptLimiter) key(key string) string {
	return "auth:attempts:" + key
}
