package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Locker serialises work on a key. The returned unlock must be called exactly once;
// extra calls are ignored.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

const (
	lockKeyPrefix   = "lock:"
	lockRetryStart  = 10 * time.Millisecond
	lockRetryMax    = 200 * time.Millisecond
	lockReleaseWait = 2 * time.Second
)

// releaseScript deletes the lock only while it still holds our token, so a lock that
// expired and was taken by someone else is left alone.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisLocker is a lease lock shared by every instance of the service.
type RedisLocker struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedisLocker(client redis.Cmdable, ttl time.Duration) *RedisLocker {
	return &RedisLocker{client: client, ttl: ttl}
}

// Lock retries with backoff until the lock is taken or ctx is done.
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	lockKey := lockKeyPrefix + key
	token := uuid.NewString()
	wait := lockRetryStart

	for {
		ok, err := l.client.SetNX(ctx, lockKey, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			var once sync.Once
			return func() { once.Do(func() { l.release(lockKey, token) }) }, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("acquire lock %s: %w", key, ctx.Err())
		case <-time.After(wait):
		}
		if wait < lockRetryMax {
			wait *= 2
		}
	}
}

func (l *RedisLocker) release(lockKey, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), lockReleaseWait)
	defer cancel()

	if err := releaseScript.Run(ctx, l.client, []string{lockKey}, token).Err(); err != nil && err != redis.Nil {
		zap.L().Warn("Failed to release lock", zap.String("key", lockKey), zap.Error(err))
	}
}

// MemoryLocker is a process-local Locker for single-instance deployments and tests.
type MemoryLocker struct {
	mu    sync.Mutex
	locks map[string]*memoryLock
}

type memoryLock struct {
	sem     chan struct{}
	waiters int
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{locks: make(map[string]*memoryLock)}
}

func (l *MemoryLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &memoryLock{sem: make(chan struct{}, 1)}
		l.locks[key] = m
	}
	m.waiters++
	l.mu.Unlock()

	select {
	case m.sem <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-m.sem
				l.forget(key, m)
			})
		}, nil
	case <-ctx.Done():
		l.forget(key, m)
		return nil, fmt.Errorf("acquire lock %s: %w", key, ctx.Err())
	}
}

func (l *MemoryLocker) forget(key string, m *memoryLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	m.waiters--
	if m.waiters == 0 {
		delete(l.locks, key)
	}
}
