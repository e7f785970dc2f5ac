package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// RedisCooldown shares reservations across instances with SET NX.
type RedisCooldown struct {
	client *redis.Client
	tracer trace.Tracer
}

func NewRedisCooldown(client *redis.Client) *RedisCooldown {
	return &RedisCooldown{
		client: client,
		tracer: otel.Tracer("cache"),
	}
}

// NewRedisClient parses a redis:// URL and verifies connectivity.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("NewRedisClient: parse url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("NewRedisClient: ping: %w", err)
	}
	return client, nil
}

func (c *RedisCooldown) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ctx, span := c.tracer.Start(ctx, "cache.acquire",
		trace.WithAttributes(
			attribute.String("cache.key", key),
			attribute.String("operation", "cache.write"),
			attribute.String("ttl", ttl.String()),
			attribute.String("cache.backend", "redis"),
		))
	defer span.End()

	acquired, err := c.client.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("Acquire: %w", err)
	}

	span.SetAttributes(attribute.Bool("cache.acquired", acquired))
	return acquired, nil
}

func (c *RedisCooldown) Release(ctx context.Context, key string) error {
	ctx, span := c.tracer.Start(ctx, "cache.release",
		trace.WithAttributes(
			attribute.String("cache.key", key),
			attribute.String("operation", "cache.write"),
			attribute.String("cache.backend", "redis"),
		))
	defer span.End()

	if err := c.client.Del(ctx, key).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("Release: %w", err)
	}
	return nil
}
