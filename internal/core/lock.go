package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker serializes corpus scan and persist across concurrent admissions.
type Locker interface {
	// Acquire blocks until the lock is held or ctx is done. The returned
	// function releases the lock and must be called exactly once.
	Acquire(ctx context.Context) (release func(), err error)
	Close() error
}

// LocalLocker is an in-process lock.
type LocalLocker struct {
	sem chan struct{}
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{sem: make(chan struct{}, 1)}
}

func (l *LocalLocker) Acquire(ctx context.Context) (func(), error) {
	select {
	case l.sem <- struct{}{}:
		return func() { <-l.sem }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *LocalLocker) Close() error {
	return nil
}

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a lock shared by every service instance using the same Redis key.
// The key expires after ttl so a crashed holder cannot block admissions forever.
type RedisLocker struct {
	client        *redis.Client
	key           string
	ttl           time.Duration
	retryInterval time.Duration
}

// NewRedisLocker connects to Redis and verifies the connection.
func NewRedisLocker(ctx context.Context, cfg LockConfig) (*RedisLocker, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.RedisAddr, err)
	}
	return &RedisLocker{
		client:        client,
		key:           cfg.Key,
		ttl:           cfg.TTL,
		retryInterval: cfg.RetryInterval,
	}, nil
}

func (l *RedisLocker) Acquire(ctx context.Context) (func(), error) {
	token := uuid.NewString()
	for {
		ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("failed to acquire lock %s: %w", l.key, err)
		}
		if ok {
			return func() { l.release(token) }, nil
		}

		timer := time.NewTimer(l.retryInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func (l *RedisLocker) release(token string) {
	// The request context may already be canceled; the key must still be freed.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	deleted, err := releaseScript.Run(ctx, l.client, []string{l.key}, token).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		slog.Error("RedisLocker: failed to release lock", "key", l.key, "error", err)
		return
	}
	if deleted == 0 {
		slog.Warn("RedisLocker: lock expired before release", "key", l.key, "ttl", l.ttl)
	}
}

func (l *RedisLocker) Close() error {
	return l.client.Close()
}

// NewLocker builds the Locker selected by cfg.Type.
func NewLocker(ctx context.Context, cfg LockConfig) (Locker, error) {
	switch cfg.Type {
	case "", "local":
		return NewLocalLocker(), nil
	case "redis":
		return NewRedisLocker(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown lock type: %s", cfg.Type)
	}
}
