package mocks

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// MockCacher is a function based mock of the handler cache. Unset functions
// behave like an empty cache.
type MockCacher struct {
	GetFunc          func(ctx context.Context, key string, dest any) error
	SetFunc          func(ctx context.Context, key string, value any, expiration time.Duration) error
	DeletePrefixFunc func(ctx context.Context, prefix string) (int64, error)
	CloseFunc        func() error
}

func (m *MockCacher) Get(ctx context.Context, key string, dest any) error {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, key, dest)
	}
	return redis.Nil
}

func (m *MockCacher) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	if m.SetFunc != nil {
		return m.SetFunc(ctx, key, value, expiration)
	}
	return nil
}

func (m *MockCacher) DeletePrefix(ctx context.Context, prefix string) (int64, error) {
	if m.DeletePrefixFunc != nil {
		return m.DeletePrefixFunc(ctx, prefix)
	}
	return 0, nil
}

func (m *MockCacher) Close() error {
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}
