package store

import (
	"context"
	"time"
)

// Namespace prefixes partition the shared key space. A write with the same
// (namespace, key) fully replaces the previous value.
type Namespace string

const (
	NamespaceSession       Namespace = "session"
	NamespaceVideoData     Namespace = "video-data"
	NamespaceResponseCache Namespace = "response-cache"
	NamespaceTaskState     Namespace = "task-state"
)

type Mode string

const (
	ModeBacked   Mode = "backed"
	ModeDegraded Mode = "degraded"
)

type Health struct {
	Available bool `json:"available"`
	Mode      Mode `json:"mode"`
}

// KV is the cache & session store contract shared by every component.
// Implementations select backed or degraded mode internally; callers never
// branch on mode. Get returns domain.ErrNotFound after TTL expiry exactly as
// for a key never written.
type KV interface {
	Get(ctx context.Context, ns Namespace, key string) ([]byte, error)
	Set(ctx context.Context, ns Namespace, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, ns Namespace, key string) error
	Incr(ctx context.Context, ns Namespace, key string, ttl time.Duration) (int64, error)
	Health(ctx context.Context) Health
}
