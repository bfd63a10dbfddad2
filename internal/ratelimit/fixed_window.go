// Package ratelimit provides Redis-backed fixed-window request
// limiting. All server instances share the same counters, so the
// limit holds for the whole deployment, not per process.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// incrWithExpiry bumps the window counter and arms its expiry on
// first touch, in one round trip.
var incrWithExpiry = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`)

// Limiter counts requests per key in fixed windows of the configured
// width. Several limiters can share one Redis client; the scope keeps
// their key spaces apart.
type Limiter struct {
	client *redis.Client
	scope  string
	limit  int
	window time.Duration
}

// New builds a limiter over an existing Redis client.
func New(client *redis.Client, scope string, limit int, window time.Duration) (*Limiter, error) {
	if client == nil {
		return nil, errors.New("ratelimit: redis client is required")
	}
	if limit <= 0 || window <= 0 {
		return nil, errors.New("ratelimit: limit and window must be positive")
	}
	scope = strings.TrimSpace(scope)
	if scope == "" {
		scope = "default"
	}
	return &Limiter{
		client: client,
		scope:  scope,
		limit:  limit,
		window: window,
	}, nil
}

// Allow reports whether key may make another request in the current
// window. When Redis is unreachable it fails closed: a broken limiter
// must not turn into an unlimited one.
func (l *Limiter) Allow(ctx context.Context, key string) bool {
	key = strings.TrimSpace(key)
	if key == "" {
		key = "unknown"
	}
	windowMs := l.window.Milliseconds()
	slot := time.Now().UTC().UnixMilli() / windowMs
	counterKey := fmt.Sprintf("tutorly:ratelimit:%s:%s:%d", l.scope, key, slot)

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	count, err := incrWithExpiry.Run(ctx, l.client, []string{counterKey}, windowMs).Int64()
	if err != nil {
		return false
	}
	return count <= int64(l.limit)
}
