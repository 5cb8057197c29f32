package redis

import (
	"context"
	"errors"
	"time"

	"multimodel-video/internal/config"

	"github.com/go-redis/redis/v8"
)

// ErrNil is returned by Get for a missing or expired key.
var ErrNil = redis.Nil

// Client is the narrow surface the cache store needs from the backing store:
// TTL-qualified set/get/delete, a counter, and a liveness probe.
type Client interface {
	Ping(ctx context.Context) error
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, expiration time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Close() error
}

var _ Client = (*redClient)(nil)

type redClient struct {
	cli *redis.Client
}

// NewClient connects to the configured backing store. Unlike most
// constructors it does not ping: the cache layer owns liveness probing and
// must come up even when the store is down.
func NewClient(cfg *config.RedisConfig) (*redClient, error) {
	if cfg.URL == "" {
		return nil, errors.New("redis url empty")
	}
	opts := &redis.Options{
		Addr:     cfg.URL,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	return &redClient{cli: redis.NewClient(opts)}, nil
}

func (c *redClient) Ping(ctx context.Context) error { return c.cli.Ping(ctx).Err() }

func (c *redClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return c.cli.Set(ctx, key, value, expiration).Err()
}

func (c *redClient) Get(ctx context.Context, key string) ([]byte, error) {
	return c.cli.Get(ctx, key).Bytes()
}

func (c *redClient) Incr(ctx context.Context, key string) (int64, error) {
	return c.cli.Incr(ctx, key).Result()
}

func (c *redClient) Expire(ctx context.Context, key string, expiration time.Duration) error {
	return c.cli.Expire(ctx, key, expiration).Err()
}

func (c *redClient) Del(ctx context.Context, keys ...string) error {
	return c.cli.Del(ctx, keys...).Err()
}

func (c *redClient) Close() error { return c.cli.Close() }
