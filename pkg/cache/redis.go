package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const scanBatch = 200

// Cache stores JSON encoded values in redis.
type Cache struct {
	client *redis.Client
}

type Options struct {
	Address  string
	Password string
	DB       int
}

type Option func(*Options)

func WithAddress(addr string) Option {
	return func(o *Options) {
		o.Address = addr
	}
}

func WithPassword(pass string) Option {
	return func(o *Options) {
		o.Password = pass
	}
}

func WithDB(db int) Option {
	return func(o *Options) {
		o.DB = db
	}
}

// New connects to redis and pings it.
func New(ctx context.Context, opts ...Option) (*Cache, error) {
	options := &Options{
		Address:  "localhost:6379",
		Password: "",
		DB:       0,
	}

	for _, opt := range opts {
		opt(options)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     options.Address,
		Password: options.Password,
		DB:       options.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", options.Address, err)
	}

	return &Cache{client: client}, nil
}

// Get decodes the value at key into dest. A missing key returns redis.Nil.
func (c *Cache) Get(ctx context.Context, key string, dest any) error {
	val, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return err
	}
	return json.Unmarshal(val, dest)
}

func (c *Cache) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return c.client.Set(ctx, key, data, expiration).Err()
}

// DeletePrefix removes every key starting with prefix and returns how many
// were deleted. It walks the key space with SCAN, so keys written while it
// runs may survive.
func (c *Cache) DeletePrefix(ctx context.Context, prefix string) (int64, error) {
	var (
		cursor  uint64
		deleted int64
	)
	for {
		keys, next, err := c.client.Scan(ctx, cursor, prefix+"*", scanBatch).Result()
		if err != nil {
			return deleted, fmt.Errorf("scan %s*: %w", prefix, err)
		}
		if len(keys) > 0 {
			n, err := c.client.Del(ctx, keys...).Result()
			if err != nil {
				return deleted, fmt.Errorf("delete %s*: %w", prefix, err)
			}
			deleted += n
		}
		cursor = next
		if cursor == 0 {
			return deleted, nil
		}
	}
}

func (c *Cache) Close() error {
	return c.client.Close()
}
