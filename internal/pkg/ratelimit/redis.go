package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// spacingScript atomically claims the spacing slot if it is free, or
// reports how many milliseconds remain until it frees up. Using a single
// Lua script keeps the check-and-set atomic across every process sharing
// the key, which a bare SETNX + GET pair cannot guarantee.
const spacingScript = `
local ok = redis.call("SET", KEYS[1], "1", "NX", "PX", ARGV[1])
if ok then
	return 0
end
return redis.call("PTTL", KEYS[1])
`

// redisClient is the subset of *redis.Client the limiter needs, so tests
// can substitute an in-package fake without pulling in a full redis
// server.
type redisClient interface {
	Eval(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd
}

// distributed spaces calls at least spacingMs apart across every process
// that shares key, using redis as the coordination point.
type distributed struct {
	client    redisClient
	key       string
	spacingMs int64
}

var _ Limiter = (*distributed)(nil)

// NewRedis builds a Limiter that coordinates spacing through redis. key
// should be shared by every bot process backed by the same wallet/provider
// set (spec.md §9's blue/green restart scenario).
func NewRedis(client redisClient, key string, spacing time.Duration) *distributed {
	return &distributed{client: client, key: key, spacingMs: spacing.Milliseconds()}
}

func (d *distributed) Wait(ctx context.Context) error {
	for {
		remaining, err := d.client.Eval(ctx, spacingScript, []string{d.key}, d.spacingMs).Int64()
		if err != nil {
			return err
		}
		if remaining <= 0 {
			return nil
		}

		select {
		case <-time.After(time.Duration(remaining) * time.Millisecond):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
