// Package schemacache caches the rendered policy-table schema description in
// Redis. Schema introspection is stable between deployments, so the pipeline
// reads it through this cache instead of hitting information_schema on every
// question.
package schemacache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/youthlab/policyrag/config"
	"github.com/youthlab/policyrag/pkg/logging"
)

const schemaKey = "policyrag:schema:policies"

// Source yields the schema description on a cache miss.
type Source interface {
	DescribeSchema(ctx context.Context) (string, error)
}

// Cache is a read-through Redis cache in front of a schema Source. Redis
// failures degrade to the source; the cache never fails a request that the
// source could serve.
type Cache struct {
	client *redis.Client
	source Source
	ttl    time.Duration
	logger *slog.Logger
}

// New creates a schema cache backed by the given Redis configuration.
func New(cfg config.Redis, source Source) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewWithClient(client, source, cfg.TTL), nil
}

// NewWithClient wraps an existing Redis client; mainly useful for tests.
func NewWithClient(client *redis.Client, source Source, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Cache{
		client: client,
		source: source,
		ttl:    ttl,
		logger: logging.WithComponent("schemacache"),
	}
}

// DescribeSchema returns the cached schema description, refreshing it from
// the source when missing or when Redis is unreachable.
func (c *Cache) DescribeSchema(ctx context.Context) (string, error) {
	cached, err := c.client.Get(ctx, schemaKey).Result()
	if err == nil && cached != "" {
		return cached, nil
	}
	if err != nil && err != redis.Nil {
		c.logger.Warn("schema cache read failed, falling back to introspection", "error", err)
	}

	schema, err := c.source.DescribeSchema(ctx)
	if err != nil {
		return "", err
	}

	if err := c.client.Set(ctx, schemaKey, schema, c.ttl).Err(); err != nil {
		c.logger.Warn("schema cache write failed", "error", err)
	}
	return schema, nil
}

// Invalidate drops the cached schema so the next read re-introspects.
func (c *Cache) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, schemaKey).Err()
}

// Close releases the Redis client.
func (c *Cache) Close() error {
	return c.client.Close()
}
