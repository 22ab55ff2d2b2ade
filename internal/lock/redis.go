// Package lock provides a Redis backed per-vehicle lock for deployments that
// run PostgreSQL behind a pooler where session advisory locks are unreliable.
package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"vehicle-booking-engine/internal/logger"
	"vehicle-booking-engine/internal/repository"
)

// ErrLockNotAcquired is returned when the vehicle lock stays taken for the
// whole wait period.
var ErrLockNotAcquired = errors.New("vehicle lock not acquired")

// releaseScript deletes the key only while it still holds our token, so a
// lock that expired and was taken by someone else is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0
`)

// Client is the subset of *redis.Client the lock needs.
type Client interface {
	redis.Scripter
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

// RedisTransactor serializes units of work per vehicle with a Redis lock and
// runs them inside a plain database transaction.
type RedisTransactor struct {
	client Client
	tx     repository.Transactor
	ttl    time.Duration
	wait   time.Duration
	retry  time.Duration
}

// NewRedisTransactor wraps tx. ttl must exceed the longest unit of work; the
// lock is not renewed.
func NewRedisTransactor(client Client, tx repository.Transactor, ttl, wait time.Duration) *RedisTransactor {
	return &RedisTransactor{
		client: client,
		tx:     tx,
		ttl:    ttl,
		wait:   wait,
		retry:  25 * time.Millisecond,
	}
}

func vehicleKey(vehicleID int32) string {
	return fmt.Sprintf("lock:vehicle:%d", vehicleID)
}

func (t *RedisTransactor) WithinTx(ctx context.Context, fn repository.TxFunc) error {
	return t.tx.WithinTx(ctx, fn)
}

func (t *RedisTransactor) WithVehicleLock(ctx context.Context, vehicleID int32, fn repository.TxFunc) error {
	key := vehicleKey(vehicleID)
	token := uuid.NewString()

	if err := t.acquire(ctx, key, token); err != nil {
		return errors.Wrapf(err, "lock vehicle %d", vehicleID)
	}
	defer t.release(key, token)

	return t.tx.WithinTx(ctx, fn)
}

func (t *RedisTransactor) acquire(ctx context.Context, key, token string) error {
	deadline := time.Now().Add(t.wait)
	ticker := time.NewTicker(t.retry)
	defer ticker.Stop()

	for {
		ok, err := t.client.SetNX(ctx, key, token, t.ttl).Result()
		if err != nil {
			return errors.Wrap(err, "redis SETNX")
		}
		if ok {
			return nil
		}
		if time.Now().After(deadline) {
			return ErrLockNotAcquired
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// release runs on its own context so a cancelled request still frees the key.
func (t *RedisTransactor) release(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := releaseScript.Run(ctx, t.client, []string{key}, token).Err(); err != nil {
		logger.Warn("Failed to release vehicle lock", "key", key, "error", err)
	}
}
