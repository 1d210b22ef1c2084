package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// ErrNotObtained is returned when the lock stays taken past the wait budget.
var ErrNotObtained = errors.New("lock: not obtained")

// Redis is a distributed keyed lock on redislock.
type Redis struct {
	client  *redislock.Client
	ttl     time.Duration
	backoff time.Duration
	prefix  string
	log     logrus.FieldLogger
}

// NewRedis creates a distributed lock. ttl bounds how long a crashed holder
// can block others.
func NewRedis(rdb redis.UniversalClient, prefix string, ttl time.Duration, logger logrus.FieldLogger) *Redis {
	if ttl <= 0 {
		ttl = 15 * time.Second
	}
	return &Redis{
		client:  redislock.New(rdb),
		ttl:     ttl,
		backoff: 50 * time.Millisecond,
		prefix:  prefix,
		log:     logger.WithField("component", "redis-lock"),
	}
}

// Lock retries until the lock is obtained, ctx is done, or one ttl elapses.
func (r *Redis) Lock(ctx context.Context, key string) (func(), error) {
	waitCtx, cancel := context.WithTimeout(ctx, r.ttl)
	defer cancel()

	lk, err := r.client.Obtain(waitCtx, r.prefix+key, r.ttl, &redislock.Options{
		RetryStrategy: redislock.LinearBackoff(r.backoff),
	})
	if errors.Is(err, redislock.ErrNotObtained) || (err != nil && waitCtx.Err() != nil && ctx.Err() == nil) {
		return nil, fmt.Errorf("%w: %s", ErrNotObtained, key)
	}
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", key, err)
	}

	return func() {
		// release must outlive a cancelled request context
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := lk.Release(releaseCtx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			r.log.WithError(err).WithField("key", key).Warn("failed to release lock")
		}
	}, nil
}
