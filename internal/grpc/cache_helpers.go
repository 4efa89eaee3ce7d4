package grpc

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

type FetchFunc[T any] func(ctx context.Context) (T, error)

const (
	defaultFetchTimeout = 15 * time.Second
	defaultSetTimeout   = 5 * time.Second
	maxRefreshDelay     = time.Second
)

// withJitter spreads expirations by up to ±15s so reports cached together do
// not expire together.
func withJitter(ttl time.Duration) time.Duration {
	if ttl <= 30*time.Second {
		return ttl
	}
	return ttl + time.Duration(rand.IntN(30)-15)*time.Second
}

func storeInBackground[T any](c Cacher, key string, ttl time.Duration, logger *zap.Logger, value T) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), defaultSetTimeout)
		defer cancel()

		ttl := withJitter(ttl)
		if err := c.Set(ctx, key, value, ttl); err != nil {
			logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
			return
		}
		logger.Debug("cache populated", zap.String("key", key), zap.Duration("ttl", ttl))
	}()
}

// refreshAhead recomputes a key that was just served from cache. Concurrent
// hits on the same key share one refresh.
func refreshAhead[T any](c Cacher, sf *singleflight.Group, key string, ttl time.Duration, logger *zap.Logger, fn FetchFunc[T]) {
	go func() {
		time.Sleep(rand.N(maxRefreshDelay))

		_, _, _ = sf.Do(key+":refresh", func() (any, error) {
			ctx, cancel := context.WithTimeout(context.Background(), defaultFetchTimeout)
			defer cancel()

			value, err := fn(ctx)
			if err != nil {
				logger.Warn("background refresh failed", zap.String("key", key), zap.Error(err))
				return nil, err
			}

			setCtx, cancelSet := context.WithTimeout(context.Background(), defaultSetTimeout)
			defer cancelSet()
			if err := c.Set(setCtx, key, value, withJitter(ttl)); err != nil {
				logger.Warn("background cache update failed", zap.String("key", key), zap.Error(err))
			}
			return value, nil
		})
	}()
}

// FindAndCache serves key from c when present and otherwise computes it with
// fn, coalescing concurrent misses. A nil cache calls fn directly.
func FindAndCache[T any](
	ctx context.Context,
	c Cacher,
	sf *singleflight.Group,
	key string,
	ttl time.Duration,
	logger *zap.Logger,
	fn FetchFunc[T],
) (T, error) {
	var zero T
	if logger == nil {
		logger = zap.NewNop()
	}
	if c == nil {
		return fn(ctx)
	}

	var cached T
	err := c.Get(ctx, key, &cached)
	switch {
	case err == nil:
		logger.Debug("cache hit", zap.String("key", key))
		refreshAhead(c, sf, key, ttl, logger, fn)
		return cached, nil
	case errors.Is(err, redis.Nil):
		logger.Debug("cache miss", zap.String("key", key))
	default:
		logger.Warn("cache get error, treating as miss", zap.String("key", key), zap.Error(err))
	}

	v, err, shared := sf.Do(key, func() (any, error) {
		value, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		storeInBackground(c, key, ttl, logger, value)
		return value, nil
	})
	if err != nil {
		return zero, err
	}

	value, ok := v.(T)
	if !ok {
		logger.Error("singleflight type mismatch", zap.String("key", key))
		return zero, fmt.Errorf("type mismatch for key %q", key)
	}
	if shared {
		logger.Debug("singleflight shared result", zap.String("key", key))
	}
	return value, nil
}

// purge drops every cached entry under prefix. Failures are logged only; the
// entries still expire with their TTL.
func purge(ctx context.Context, c Cacher, prefix string, logger *zap.Logger) {
	if c == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultSetTimeout)
	defer cancel()

	n, err := c.DeletePrefix(ctx, prefix)
	if err != nil {
		logger.Warn("cache purge failed", zap.String("prefix", prefix), zap.Error(err))
		return
	}
	logger.Debug("cache purged", zap.String("prefix", prefix), zap.Int64("keys", n))
}
