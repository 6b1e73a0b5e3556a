// Package lock provides Redis-backed mutual exclusion for long running batches.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLocked is returned when another holder owns the key.
var ErrLocked = errors.New("platform/lock: key already held")

// ErrLost is returned when a held key expired or was taken by someone else.
var ErrLost = errors.New("platform/lock: key no longer held")

// releaseScript deletes the key only if it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// refreshScript resets the expiry only if the key still carries our token.
var refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// Lease is a held lock.
type Lease interface {
	// Refresh pushes the expiry out by the original TTL.
	Refresh(ctx context.Context) error
	Release(ctx context.Context) error
}

// RedisLocker acquires keys with SET NX PX.
type RedisLocker struct {
	client *redis.Client
}

// NewRedisLocker wraps a redis client.
func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client}
}

// Acquire takes key for ttl.
func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("platform/lock: setnx %s: %w", key, err)
	}
	if !ok {
		return nil, ErrLocked
	}
	return &redisLease{client: l.client, key: key, token: token, ttl: ttl}, nil
}

type redisLease struct {
	client *redis.Client
	key    string
	token  string
	ttl    time.Duration
}

func (l *redisLease) Refresh(ctx context.Context) error {
	n, err := refreshScript.Run(ctx, l.client, []string{l.key}, l.token, l.ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("platform/lock: refresh %s: %w", l.key, err)
	}
	if n == 0 {
		return ErrLost
	}
	return nil
}

func (l *redisLease) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Err(); err != nil {
		return fmt.Errorf("platform/lock: release %s: %w", l.key, err)
	}
	return nil
}
