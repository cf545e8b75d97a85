package admission

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultStoreTimeout bounds every Redis operation. A timeout is a
// transient store failure; callers must fail closed, never open.
const DefaultStoreTimeout = time.Second

// admitScript runs the whole sliding-window update inside Redis so the
// filter+count+append sequence is atomic in the store itself, not a
// client-side read-modify-write. Scores are unix milliseconds.
// Returns {allowed, remaining, resetAtMillis}.
var admitScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, 0, now - window)
local count = redis.call('ZCARD', key)
if count >= limit then
  local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
  return {0, 0, tonumber(oldest[2]) + window}
end
redis.call('ZADD', key, now, member)
redis.call('PEXPIRE', key, window)
return {1, limit - count - 1, now + window}
`)

// RedisStore keeps sliding windows in Redis sorted sets, one set per
// client+policy, for deployments that scale the gateway horizontally.
type RedisStore struct {
	client  *redis.Client
	timeout time.Duration
}

// NewRedisStore connects to Redis and verifies the connection before
// returning the store.
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisStore{client: client, timeout: DefaultStoreTimeout}, nil
}

// Admit implements Store. Errors (including deadline expiry) are surfaced
// so the pipeline can reject conservatively.
func (s *RedisStore) Admit(ctx context.Context, key string, policy Policy, now time.Time) (Decision, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	res, err := admitScript.Run(ctx, s.client,
		[]string{"quota:" + key},
		now.UnixMilli(),
		policy.Window.Milliseconds(),
		policy.MaxRequests,
		uuid.NewString(),
	).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("quota script: %w", err)
	}
	if len(res) != 3 {
		return Decision{}, fmt.Errorf("quota script: unexpected reply of length %d", len(res))
	}

	resetAt := time.UnixMilli(res[2])
	d := Decision{
		Allowed:   res[0] == 1,
		Limit:     policy.MaxRequests,
		Remaining: int(res[1]),
		ResetAt:   resetAt,
	}
	if !d.Allowed {
		d.RetryAfter = retryAfterSeconds(resetAt, now)
	}
	return d, nil
}

// Ping checks if Redis is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
