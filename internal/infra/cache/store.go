// File: internal/infra/cache/store.go
package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"multimodel-video/internal/domain"
	"multimodel-video/internal/domain/ports/store"
	red "multimodel-video/internal/infra/redis"
	"multimodel-video/internal/infra/metrics"

	"github.com/rs/zerolog"
)

var _ store.KV = (*Store)(nil)

const janitorInterval = time.Second

// Store implements the shared cache & session store contract. It runs against
// the external backing store when reachable ("backed") and falls back to a
// volatile in-process store otherwise ("degraded"). Mode selection is a small
// internal state machine: probe -> backed/degraded -> re-probe timer. Callers
// never observe which mode served them.
type Store struct {
	client red.Client // nil when no backing store is configured
	mem    *memoryStore
	log    *zerolog.Logger

	probeInterval time.Duration
	setRetries    int

	mu        sync.Mutex
	backed    bool
	lastProbe time.Time
}

// New builds a Store. client may be nil, in which case the store is degraded
// for its whole lifetime. The janitor goroutine stops when ctx is done.
func New(ctx context.Context, client red.Client, probeInterval time.Duration, setRetries int, logger *zerolog.Logger) *Store {
	l := logger.With().Str("component", "cache.Store").Logger()
	s := &Store{
		client:        client,
		mem:           newMemoryStore(),
		log:           &l,
		probeInterval: probeInterval,
		setRetries:    setRetries,
	}
	if client != nil {
		s.backed = client.Ping(ctx) == nil
		s.lastProbe = time.Now()
	}
	metrics.SetStoreBacked(s.backed)
	go s.mem.janitor(ctx, janitorInterval)
	return s
}

func nsKey(ns store.Namespace, key string) string { return string(ns) + ":" + key }

func (s *Store) Get(ctx context.Context, ns store.Namespace, key string) ([]byte, error) {
	k := nsKey(ns, key)
	if s.useBacked(ctx) {
		b, err := s.client.Get(ctx, k)
		if err == nil {
			metrics.IncCacheRequest(string(ns), "hit")
			return b, nil
		}
		if errors.Is(err, red.ErrNil) {
			metrics.IncCacheRequest(string(ns), "miss")
			return nil, domain.ErrNotFound
		}
		s.degrade(err)
	}
	if b, ok := s.mem.get(k); ok {
		metrics.IncCacheRequest(string(ns), "hit")
		return b, nil
	}
	metrics.IncCacheRequest(string(ns), "miss")
	return nil, domain.ErrNotFound
}

func (s *Store) Set(ctx context.Context, ns store.Namespace, key string, value []byte, ttl time.Duration) error {
	k := nsKey(ns, key)
	if s.useBacked(ctx) {
		var err error
		for attempt := 0; attempt <= s.setRetries; attempt++ {
			if err = s.client.Set(ctx, k, value, ttl); err == nil {
				return nil
			}
			if ctx.Err() != nil {
				break
			}
			time.Sleep(time.Duration(attempt+1) * 50 * time.Millisecond)
		}
		s.degrade(err)
	}
	s.mem.set(k, value, ttl)
	metrics.IncStoreFallback()
	return nil
}

func (s *Store) Delete(ctx context.Context, ns store.Namespace, key string) error {
	k := nsKey(ns, key)
	if s.useBacked(ctx) {
		if err := s.client.Del(ctx, k); err == nil {
			return nil
		} else {
			s.degrade(err)
		}
	}
	s.mem.delete(k)
	return nil
}

func (s *Store) Incr(ctx context.Context, ns store.Namespace, key string, ttl time.Duration) (int64, error) {
	k := nsKey(ns, key)
	if s.useBacked(ctx) {
		n, err := s.client.Incr(ctx, k)
		if err == nil {
			if n == 1 && ttl > 0 {
				_ = s.client.Expire(ctx, k, ttl)
			}
			return n, nil
		}
		s.degrade(err)
	}
	metrics.IncStoreFallback()
	return s.mem.incr(k, ttl), nil
}

func (s *Store) Health(ctx context.Context) store.Health {
	if s.useBacked(ctx) {
		return store.Health{Available: true, Mode: store.ModeBacked}
	}
	return store.Health{Available: false, Mode: store.ModeDegraded}
}

// useBacked reports whether this operation should try the backing store,
// re-probing liveness when the probe interval has elapsed since the last
// failure.
func (s *Store) useBacked(ctx context.Context) bool {
	if s.client == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.backed {
		return true
	}
	if time.Since(s.lastProbe) < s.probeInterval {
		return false
	}
	s.lastProbe = time.Now()
	if err := s.client.Ping(ctx); err != nil {
		return false
	}
	s.backed = true
	metrics.SetStoreBacked(true)
	s.log.Info().Msg("backing store reachable again, leaving degraded mode")
	return true
}

// degrade records a backing-store failure and switches to the in-process
// store. Never surfaces the error to the caller.
func (s *Store) degrade(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastProbe = time.Now()
	if s.backed {
		s.backed = false
		metrics.SetStoreBacked(false)
		s.log.Warn().Err(err).Msg("backing store unreachable, entering degraded mode")
	}
}
