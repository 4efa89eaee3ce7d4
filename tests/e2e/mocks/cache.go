package mocks

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// TrackingCache is an in-memory stand-in for the redis cache that stores
// JSON like the real one and counts calls.
type TrackingCache struct {
	mu        sync.Mutex
	data      map[string]CacheEntry
	GetCalls  int
	Hits      int
	SetCalls  int
	Purges    int
	setSignal chan struct{}
}

type CacheEntry struct {
	Value  []byte
	Expiry time.Time
}

func NewTrackingCache() *TrackingCache {
	return &TrackingCache{
		data:      make(map[string]CacheEntry),
		setSignal: make(chan struct{}, 64),
	}
}

func (c *TrackingCache) Get(_ context.Context, key string, dest any) error {
	c.mu.Lock()
	c.GetCalls++
	entry, ok := c.data[key]
	if ok && time.Now().Before(entry.Expiry) {
		c.Hits++
	}
	c.mu.Unlock()

	if !ok || !time.Now().Before(entry.Expiry) {
		return redis.Nil
	}
	return json.Unmarshal(entry.Value, dest)
}

func (c *TrackingCache) Set(_ context.Context, key string, value any, exp time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.SetCalls++
	c.data[key] = CacheEntry{Value: raw, Expiry: time.Now().Add(exp)}
	c.mu.Unlock()

	select {
	case c.setSignal <- struct{}{}:
	default:
	}
	return nil
}

func (c *TrackingCache) DeletePrefix(_ context.Context, prefix string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Purges++
	var n int64
	for k := range c.data {
		if strings.HasPrefix(k, prefix) {
			delete(c.data, k)
			n++
		}
	}
	return n, nil
}

// WaitForSet blocks until a value is stored or timeout passes.
func (c *TrackingCache) WaitForSet(timeout time.Duration) bool {
	select {
	case <-c.setSignal:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Stats returns the hit count and number of stored keys.
func (c *TrackingCache) Stats() (hits, keys int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Hits, len(c.data)
}

func (c *TrackingCache) Close() error {
	return nil
}
