package authclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrCacheClosed is returned by Deduplicate after Close.
	ErrCacheClosed = errors.New("authclient: cache closed")
	// ErrResultType is returned to a caller that joined a run of the same key
	// producing a different type.
	ErrResultType = errors.New("authclient: shared result has another type")
)

// envelope is the stored form of every entry.
type envelope struct {
	Data      json.RawMessage `json:"data"`
	StoredAt  time.Time       `json:"storedAt"`
	ExpiresAt time.Time       `json:"expiresAt"`
}

// Cache is a TTL cache over a Store that also coalesces concurrent loads of
// the same key. One Cache lives for one client session; Close ends it.
type Cache struct {
	store Store
	clock clockwork.Clock
	group singleflight.Group

	life   context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	known map[string]struct{}
}

// NewCache builds a cache over store. A nil clock means the real clock.
func NewCache(store Store, clock clockwork.Clock) *Cache {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	life, cancel := context.WithCancel(context.Background())
	return &Cache{
		store:  store,
		clock:  clock,
		life:   life,
		cancel: cancel,
		known:  make(map[string]struct{}),
	}
}

// Set stores data under key until now+ttl.
func (c *Cache) Set(ctx context.Context, key string, data any, ttl time.Duration) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("authclient: encode %s: %w", key, err)
	}
	now := c.clock.Now()
	blob, err := json.Marshal(envelope{Data: raw, StoredAt: now, ExpiresAt: now.Add(ttl)})
	if err != nil {
		return fmt.Errorf("authclient: encode %s: %w", key, err)
	}
	if err := c.store.Set(ctx, key, blob, ttl); err != nil {
		return err
	}

	c.mu.Lock()
	c.known[key] = struct{}{}
	c.mu.Unlock()
	return nil
}

// Get decodes the entry under key into dst. It reports false when the entry
// is missing, expired or unreadable; expired and unreadable entries are evicted.
func (c *Cache) Get(ctx context.Context, key string, dst any) (bool, error) {
	blob, ok, err := c.store.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}

	var env envelope
	if err := json.Unmarshal(blob, &env); err != nil || !c.clock.Now().Before(env.ExpiresAt) {
		return false, c.evict(ctx, key)
	}
	if err := json.Unmarshal(env.Data, dst); err != nil {
		return false, c.evict(ctx, key)
	}
	return true, nil
}

// Invalidate removes the given keys, or the whole namespace when none are given.
func (c *Cache) Invalidate(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	if len(keys) == 0 {
		c.known = make(map[string]struct{})
	} else {
		for _, k := range keys {
			delete(c.known, k)
		}
	}
	c.mu.Unlock()

	if len(keys) == 0 {
		return c.store.Clear(ctx)
	}
	return c.store.Delete(ctx, keys...)
}

// Keys returns the keys written through this cache and not yet invalidated.
func (c *Cache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.known))
	for k := range c.known {
		out = append(out, k)
	}
	return out
}

// Close cancels every shared operation still in flight.
func (c *Cache) Close() {
	c.cancel()
}

func (c *Cache) evict(ctx context.Context, key string) error {
	c.mu.Lock()
	delete(c.known, key)
	c.mu.Unlock()
	return c.store.Delete(ctx, key)
}

// Deduplicate runs op for key unless a run for the same key is already in
// flight, in which case the caller shares that run's result. The slot is
// released once op returns. Callers sharing a key must agree on T.
//
// op runs under the cache's lifetime context, not ctx: a caller whose ctx is
// done stops waiting and gets ctx.Err(), while the shared run continues for
// the other callers until it finishes or the cache is closed.
func Deduplicate[T any](ctx context.Context, c *Cache, key string, op func(context.Context) (T, error)) (T, error) {
	var zero T
	if c.life.Err() != nil {
		return zero, ErrCacheClosed
	}

	ch := c.group.DoChan(key, func() (any, error) {
		return op(c.life)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		if res.Val == nil {
			return zero, nil
		}
		v, ok := res.Val.(T)
		if !ok {
			return zero, fmt.Errorf("%w: %s is %T, want %T", ErrResultType, key, res.Val, zero)
		}
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
