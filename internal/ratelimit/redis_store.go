package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// consumeScript runs the whole window/block check and increment on the server so
// concurrent requests on one key can never both take the last point.
//
// KEYS[1] counter, KEYS[2] block marker
// ARGV[1] points, ARGV[2] window ms, ARGV[3] block ms
// Returns {consumed, ms until reset}; consumed is -1 while blocked.
var consumeScript = redis.NewScript(`
local points = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local block = tonumber(ARGV[3])

local blocked = redis.call('PTTL', KEYS[2])
if blocked > 0 then
  return {-1, blocked}
end

local consumed = redis.call('INCR', KEYS[1])
local ttl = redis.call('PTTL', KEYS[1])
if consumed == 1 or ttl < 0 then
  redis.call('PEXPIRE', KEYS[1], window)
  ttl = window
end

if consumed > points and block > 0 then
  redis.call('SET', KEYS[2], '1', 'PX', block)
  redis.call('DEL', KEYS[1])
  return {-1, block}
end

return {consumed, ttl}
`)

// RedisStore is a CounterStore shared by every service instance.
type RedisStore struct {
	client redis.Scripter
	prefix string
}

// NewRedisStore builds a store keyed under prefix ("rl" when empty).
func NewRedisStore(client redis.Scripter, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "rl"
	}
	return &RedisStore{client: client, prefix: prefix}
}

// Consume implements CounterStore.
func (s *RedisStore) Consume(ctx context.Context, key string, p Policy) (Usage, error) {
	counterKey := fmt.Sprintf("%s:%s:%s", s.prefix, p.Name, key)
	blockKey := counterKey + ":blocked"

	vals, err := consumeScript.Run(ctx, s.client,
		[]string{counterKey, blockKey},
		p.Points, p.Window.Milliseconds(), p.Block.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return Usage{}, fmt.Errorf("ratelimit consume %s: %w", counterKey, err)
	}
	if len(vals) != 2 {
		return Usage{}, fmt.Errorf("ratelimit consume %s: unexpected reply %v", counterKey, vals)
	}

	resetIn := time.Duration(vals[1]) * time.Millisecond
	if vals[0] < 0 {
		return Usage{Consumed: p.Points + 1, Blocked: true, ResetIn: resetIn}, nil
	}
	return Usage{Consumed: int(vals[0]), ResetIn: resetIn}, nil
}
