// Package lock provides redis backed locks serialising work across processes.
package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

// ErrNotObtained indicates another process holds the lock.
var ErrNotObtained = fmt.Errorf("%w: lock held by another process", shared.ErrStateConflict)

// Locker obtains short lived locks keyed by string.
type Locker struct {
	client  *redislock.Client
	ttl     time.Duration
	retries int
	backoff time.Duration
	logger  *slog.Logger
}

// New constructs a Locker. ttl bounds how long a crashed holder blocks others.
func New(client *redis.Client, ttl time.Duration, logger *slog.Logger) *Locker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Locker{
		client:  redislock.New(client),
		ttl:     ttl,
		retries: 20,
		backoff: 100 * time.Millisecond,
		logger:  logger,
	}
}

// WithRetry overrides how many times and how often Acquire retries.
func (l *Locker) WithRetry(retries int, backoff time.Duration) *Locker {
	l.retries = retries
	l.backoff = backoff
	return l
}

// Acquire blocks until the lock is obtained or retries run out. The returned
// release function is safe to call once the work is done.
func (l *Locker) Acquire(ctx context.Context, key string) (func(), error) {
	opts := &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(l.backoff), l.retries),
	}
	lk, err := l.client.Obtain(ctx, key, l.ttl, opts)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, fmt.Errorf("%w: %s", ErrNotObtained, key)
	}
	if err != nil {
		return nil, fmt.Errorf("platform/lock: obtain %s: %w", key, err)
	}
	return func() {
		// Use a fresh context so a cancelled request still releases the key.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := lk.Release(releaseCtx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			l.logger.Warn("lock release failed", slog.String("key", key), slog.Any("error", err))
		}
	}, nil
}
