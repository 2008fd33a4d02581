package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	apperrors "github.com/quenty/webchannel-server-go/internal/errors"
	"github.com/quenty/webchannel-server-go/internal/model"
)

// ComputeFunc produces the payload for a cache key. It may be expensive; the
// cache guarantees at most one concurrent invocation per key.
type ComputeFunc func(ctx context.Context) (any, error)

// Stats is the monotonic counter snapshot exposed on the admin surface.
// Hits, misses and evictions only ever grow; a process restart is the only
// reset.
type Stats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Inflight  int   `json:"inflight"`
	Entries   int   `json:"entries"`
	Evictions int64 `json:"evictions"`
}

type entry struct {
	payload  any
	cachedAt time.Time
}

// Cache is a keyed, TTL-based store of computed content. Keys are
// "kind:tag" strings; each content kind carries its own injected freshness
// window. Expiry is lazy: a stale entry is treated as absent and removed on
// the read that finds it.
type Cache struct {
	mu      sync.Mutex
	entries map[string]entry
	ttls    map[model.ContentKind]time.Duration

	// defaultTTL covers keys whose prefix is not a known kind.
	defaultTTL time.Duration

	flight   singleflight.Group
	inflight int

	hits      int64
	misses    int64
	evictions int64
}

func New(ttls map[model.ContentKind]time.Duration, defaultTTL time.Duration) *Cache {
	return &Cache{
		entries:    make(map[string]entry),
		ttls:       ttls,
		defaultTTL: defaultTTL,
	}
}

func (c *Cache) ttlFor(key string) time.Duration {
	if kind := model.KindFromKey(key); kind != "" {
		if ttl, ok := c.ttls[kind]; ok {
			return ttl
		}
	}
	return c.defaultTTL
}

// Get returns the cached payload for key if it is still fresh. A stale entry
// counts as a miss and is removed.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lookup(key, time.Now())
}

// lookup applies lazy expiry and updates counters. Caller must hold the lock.
func (c *Cache) lookup(key string, now time.Time) (any, bool) {
	e, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}
	if now.Sub(e.cachedAt) > c.ttlFor(key) {
		delete(c.entries, key)
		c.evictions++
		c.misses++
		return nil, false
	}
	c.hits++
	return e.payload, true
}

// peek is lookup without counter side effects, for the in-flight double-check.
func (c *Cache) peek(key string, now time.Time) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || now.Sub(e.cachedAt) > c.ttlFor(key) {
		return nil, false
	}
	return e.payload, true
}

// Set stores payload under key, timestamped now. Overwrites unconditionally.
func (c *Cache) Set(key string, payload any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{payload: payload, cachedAt: time.Now()}
}

// GetOrCompute returns the fresh cached payload for key, or runs fn to
// produce it. Concurrent callers for the same key share a single invocation
// and all receive its result, success or failure alike. The computation is
// not cancelled when callers go away; it completes and populates the cache
// regardless.
func (c *Cache) GetOrCompute(ctx context.Context, key string, fn ComputeFunc) (any, error) {
	if payload, ok := c.Get(key); ok {
		return payload, nil
	}

	payload, err, _ := c.flight.Do(key, func() (any, error) {
		// A racing caller may have populated the key before this flight won.
		if p, ok := c.peek(key, time.Now()); ok {
			return p, nil
		}

		c.mu.Lock()
		c.inflight++
		c.mu.Unlock()
		defer func() {
			c.mu.Lock()
			c.inflight--
			c.mu.Unlock()
		}()

		p, err := fn(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		c.Set(key, p)
		return p, nil
	})
	return payload, err
}

// Invalidate removes the named keys and every key matching prefix, counting
// each removed entry once. At least one of keys / prefix must be given;
// supplying neither is a caller error and no state is touched.
func (c *Cache) Invalidate(keys []string, prefix string) (int, error) {
	if len(keys) == 0 && prefix == "" {
		return 0, apperrors.ValidationError("either keys or prefix is required")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for _, key := range keys {
		if _, ok := c.entries[key]; ok {
			delete(c.entries, key)
			removed++
		}
	}
	if prefix != "" {
		for key := range c.entries {
			if strings.HasPrefix(key, prefix) {
				delete(c.entries, key)
				removed++
			}
		}
	}

	c.evictions += int64(removed)
	return removed, nil
}

// Stats returns the current counter snapshot.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Hits:      c.hits,
		Misses:    c.misses,
		Inflight:  c.inflight,
		Entries:   len(c.entries),
		Evictions: c.evictions,
	}
}

// Sweep removes every expired entry and returns the count. Memory hygiene
// only; lazy expiry on read remains the behavioral contract.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	removed := 0
	for key, e := range c.entries {
		if now.Sub(e.cachedAt) > c.ttlFor(key) {
			delete(c.entries, key)
			removed++
		}
	}
	c.evictions += int64(removed)
	return removed
}
