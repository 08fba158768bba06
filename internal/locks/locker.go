// Package locks coordinates work across gateway replicas that share a
// Redis cache. It uses the Redlock implementation from go-redsync.
//
// Locks are short lived and not renewed: holders finish one bounded
// upstream call and release. If a holder dies the lock expires on its own.
package locks

import (
	"context"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v8"

	"monoova-gateway/internal/common/errors"
	"monoova-gateway/internal/redis"
)

// retryDelay is the wait between acquisition attempts on a contended key
const retryDelay = 50 * time.Millisecond

// Locker acquires named locks
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lock, error)
}

// Lock is a held lock
type Lock interface {
	Key() string
	Release(ctx context.Context) error
}

// RedsyncLocker implements Locker with redsync mutexes
type RedsyncLocker struct {
	redsync *redsync.Redsync
	prefix  string
}

type redsyncLock struct {
	mutex *redsync.Mutex
	key   string
}

// NewRedsyncLocker creates a locker on client. prefix namespaces every lock key.
func NewRedsyncLocker(client *redis.Client, prefix string) (*RedsyncLocker, error) {
	if client == nil {
		return nil, errors.ConfigError("redis client is required")
	}

	pool := goredis.NewPool(client.GoRedis())
	return &RedsyncLocker{
		redsync: redsync.New(pool),
		prefix:  prefix,
	}, nil
}

// Acquire blocks until the lock is held, ctx is done, or roughly ttl has passed
func (l *RedsyncLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (Lock, error) {
	tries := int(ttl/retryDelay) + 1
	mutex := l.redsync.NewMutex(l.prefix+"lock:"+key,
		redsync.WithExpiry(ttl),
		redsync.WithTries(tries),
		redsync.WithRetryDelay(retryDelay),
	)

	if err := mutex.LockContext(ctx); err != nil {
		return nil, errors.InternalError("failed to acquire distributed lock", err).WithContext("key", key)
	}

	return &redsyncLock{mutex: mutex, key: key}, nil
}

func (l *redsyncLock) Key() string {
	return l.key
}

// Release unlocks. It fails when the lock expired and was taken by someone else.
func (l *redsyncLock) Release(ctx context.Context) error {
	if _, err := l.mutex.UnlockContext(ctx); err != nil {
		return errors.InternalError("failed to release distributed lock", err).WithContext("key", l.key)
	}
	return nil
}
