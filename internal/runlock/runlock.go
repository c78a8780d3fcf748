package runlock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockHeld means another sync run currently owns the lock.
var ErrLockHeld = errors.New("another sync run is already in progress")

const lockKey = "alumnisync:run-lock"

// Locker serializes sync runs across operator machines.
type Locker interface {
	// Acquire takes the lock with an expiry and returns a release token.
	Acquire(ctx context.Context, ttl time.Duration) (string, error)
	// Release frees the lock if token still owns it.
	Release(ctx context.Context, token string) error
}

// RedisLocker implements Locker on a single Redis key. The expiry guarantees
// a crashed run cannot wedge the pipeline forever.
type RedisLocker struct {
	client *redis.Client
}

// NewRedisLocker connects to Redis and verifies it is reachable.
func NewRedisLocker(ctx context.Context, addr, password string, db int) (*RedisLocker, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis at %s: %w", addr, err)
	}
	return &RedisLocker{client: client}, nil
}

func (l *RedisLocker) Acquire(ctx context.Context, ttl time.Duration) (string, error) {
	token := uuid.New().String()
	ok, err := l.client.SetNX(ctx, lockKey, token, ttl).Result()
	if err != nil {
		return "", fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		return "", ErrLockHeld
	}
	return token, nil
}

// releaseScript deletes the lock only when the stored token matches, so a
// run that outlived its expiry cannot release a successor's lock.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

func (l *RedisLocker) Release(ctx context.Context, token string) error {
	if err := releaseScript.Run(ctx, l.client, []string{lockKey}, token).Err(); err != nil {
		return fmt.Errorf("release run lock: %w", err)
	}
	return nil
}

// Close releases the Redis connection.
func (l *RedisLocker) Close() error {
	return l.client.Close()
}
