package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// KEYS[1] = counter key
// ARGV[1] = window in milliseconds
var redisIncrScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
    redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
    redis.call("PEXPIRE", KEYS[1], ARGV[1])
    ttl = tonumber(ARGV[1])
end
return {count, ttl}
`)

// RedisStore shares counters between gateway replicas.
type RedisStore struct {
	client redis.Scripter
	now    func() time.Time
}

func NewRedisStore(client redis.Scripter) *RedisStore {
	return &RedisStore{client: client, now: time.Now}
}

// NewRedisStoreFromAddr connects to a single Redis node.
func NewRedisStoreFromAddr(addr string) (*RedisStore, *redis.Client) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	return NewRedisStore(client), client
}

func (s *RedisStore) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Time, error) {
	res, err := redisIncrScript.Run(ctx, s.client, []string{key}, window.Milliseconds()).Result()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis counter: %w", err)
	}
	values, ok := res.([]interface{})
	if !ok || len(values) != 2 {
		return 0, time.Time{}, fmt.Errorf("redis counter: unexpected reply %T", res)
	}
	count, ok := values[0].(int64)
	if !ok {
		return 0, time.Time{}, fmt.Errorf("redis counter: unexpected count %T", values[0])
	}
	ttl, ok := values[1].(int64)
	if !ok {
		return 0, time.Time{}, fmt.Errorf("redis counter: unexpected ttl %T", values[1])
	}
	return count, s.now().Add(time.Duration(ttl) * time.Millisecond), nil
}
