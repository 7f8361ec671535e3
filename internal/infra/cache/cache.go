package cache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Cache is a best-effort accelerator. Misses and backend failures look the
// same to callers: absent.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	Delete(ctx context.Context, key string)
}

// Accelerator prefers redis and falls back to an in-process map when redis
// is unreachable. The switch is logged once.
type Accelerator struct {
	client   *redis.Client
	prefix   string
	local    *localCache
	degraded atomic.Bool
	log      zerolog.Logger
}

// New pings redis once. A nil client or a failed ping starts the accelerator
// in degraded mode.
func New(ctx context.Context, client *redis.Client, prefix string, log zerolog.Logger) *Accelerator {
	a := &Accelerator{
		client: client,
		prefix: prefix,
		local:  newLocalCache(),
		log:    log.With().Str("component", "cache").Logger(),
	}
	if client == nil {
		a.degraded.Store(true)
		a.log.Info().Msg("redis disabled, using in-process cache")
		return a
	}
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		a.degrade(err)
	} else {
		a.log.Info().Msg("connected to redis")
	}
	return a
}

func (a *Accelerator) key(k string) string {
	if a.prefix == "" {
		return k
	}
	var b strings.Builder
	b.Grow(len(a.prefix) + 1 + len(k))
	b.WriteString(a.prefix)
	b.WriteString(":")
	b.WriteString(k)
	return b.String()
}

func (a *Accelerator) degrade(err error) {
	if a.degraded.CompareAndSwap(false, true) {
		a.log.Warn().Err(err).Msg("redis unreachable, falling back to in-process cache")
	}
}

func (a *Accelerator) Degraded() bool {
	return a.degraded.Load()
}

func (a *Accelerator) Get(ctx context.Context, key string) ([]byte, bool) {
	if !a.degraded.Load() {
		b, err := a.client.Get(ctx, a.key(key)).Bytes()
		switch {
		case err == nil:
			return b, true
		case errors.Is(err, redis.Nil):
			return nil, false
		default:
			a.degrade(err)
		}
	}
	return a.local.get(key)
}

func (a *Accelerator) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if !a.degraded.Load() {
		err := a.client.Set(ctx, a.key(key), value, ttl).Err()
		if err == nil {
			return
		}
		a.degrade(err)
	}
	a.local.set(key, value, ttl)
}

func (a *Accelerator) Delete(ctx context.Context, key string) {
	if !a.degraded.Load() {
		if err := a.client.Del(ctx, a.key(key)).Err(); err != nil {
			a.degrade(err)
		}
	}
	a.local.delete(key)
}

type localEntry struct {
	value     []byte
	expiresAt time.Time
}

type localCache struct {
	mu      sync.Mutex
	entries map[string]localEntry
	now     func() time.Time
}

func newLocalCache() *localCache {
	return &localCache{entries: make(map[string]localEntry), now: time.Now}
}

func (c *localCache) get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !e.expiresAt.IsZero() && c.now().After(e.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}
	return append([]byte(nil), e.value...), true
}

func (c *localCache) set(key string, value []byte, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := localEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = c.now().Add(ttl)
	}
	c.entries[key] = e
}

func (c *localCache) delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

var _ Cache = (*Accelerator)(nil)
