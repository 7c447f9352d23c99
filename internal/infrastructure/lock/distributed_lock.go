package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// ============================================================================
// Redis lock
// ============================================================================
//
// Acquire: SET key value NX PX ttl. The value identifies the holder so that
// a holder whose lease expired cannot release the next holder's lock.
// Release: compare-and-delete in one Lua script.
//
// ============================================================================

var (
	ErrLockFailed = errors.New("failed to acquire lock")
)

var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end
`)

type DistributedLock struct {
	client     *redis.Client
	key        string
	value      string
	expiration time.Duration
}

func NewDistributedLock(client *redis.Client, key, value string, expiration time.Duration) *DistributedLock {
	return &DistributedLock{
		client:     client,
		key:        key,
		value:      value,
		expiration: expiration,
	}
}

// TryLock makes a single non-blocking attempt.
func (l *DistributedLock) TryLock(ctx context.Context) (bool, error) {
	return l.client.SetNX(ctx, l.key, l.value, l.expiration).Result()
}

// Lock retries TryLock every retryInterval, at most maxRetries times.
func (l *DistributedLock) Lock(ctx context.Context, retryInterval time.Duration, maxRetries int) error {
	for i := 0; i < maxRetries; i++ {
		success, err := l.TryLock(ctx)
		if err != nil {
			return err
		}
		if success {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
		}
	}
	return ErrLockFailed
}

func (l *DistributedLock) Unlock(ctx context.Context) error {
	return unlockScript.Run(ctx, l.client, []string{l.key}, l.value).Err()
}

// ============================================================================
// Keys
// ============================================================================

// CustomerKey guards the read-modify-write of one customer's account
// document. Locks are per document, so different customers never contend.
func CustomerKey(customerID int64) string {
	return fmt.Sprintf("ledger:lock:customer:%d", customerID)
}

// ============================================================================
// RedisLocker
// ============================================================================

const defaultRetryInterval = 10 * time.Millisecond

// RedisLocker hands out DistributedLocks with a fresh owner id each time.
type RedisLocker struct {
	client        *redis.Client
	ttl           time.Duration
	wait          time.Duration
	retryInterval time.Duration
}

func NewRedisLocker(client *redis.Client, ttl, wait time.Duration) *RedisLocker {
	return &RedisLocker{
		client:        client,
		ttl:           ttl,
		wait:          wait,
		retryInterval: defaultRetryInterval,
	}
}

// Acquire blocks up to the configured wait. The returned release func is
// safe to call more than once.
func (r *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	l := NewDistributedLock(r.client, key, uuid.NewString(), r.ttl)

	maxRetries := int(r.wait / r.retryInterval)
	if maxRetries < 1 {
		maxRetries = 1
	}
	if err := l.Lock(ctx, r.retryInterval, maxRetries); err != nil {
		return nil, fmt.Errorf("lock %s: %w", key, err)
	}

	released := false
	return func() {
		if released {
			return
		}
		released = true
		// the caller's ctx may already be cancelled; the lease must still go
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = l.Unlock(ctx)
	}, nil
}
