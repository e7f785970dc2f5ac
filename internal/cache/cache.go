package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"subscriptions-go/internal/models"
)

//go:generate mockgen -source=cache.go -destination=mocks/mocks.go -package=mocks

// Cooldown hands out time-boxed reservations per key.
type Cooldown interface {
	// Acquire reserves key for ttl. It reports false when key is still
	// reserved by an earlier call.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

type InMemoryCooldown struct {
	mu     sync.Mutex
	items  map[string]time.Time
	now    func() time.Time
	tracer trace.Tracer
	stop   chan struct{}
	once   sync.Once
}

func NewInMemoryCooldown() *InMemoryCooldown {
	c := &InMemoryCooldown{
		items:  make(map[string]time.Time),
		now:    time.Now,
		tracer: otel.Tracer("cache"),
		stop:   make(chan struct{}),
	}

	go c.cleanup(time.Minute)
	return c
}

func (c *InMemoryCooldown) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	_, span := c.tracer.Start(ctx, "cache.acquire",
		trace.WithAttributes(
			attribute.String("cache.key", key),
			attribute.String("operation", "cache.write"),
			attribute.String("ttl", ttl.String()),
		))
	defer span.End()

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if expireAt, exists := c.items[key]; exists && now.Before(expireAt) {
		span.SetAttributes(attribute.Bool("cache.acquired", false))
		return false, nil
	}

	c.items[key] = now.Add(ttl)
	span.SetAttributes(attribute.Bool("cache.acquired", true))
	return true, nil
}

func (c *InMemoryCooldown) Release(ctx context.Context, key string) error {
	_, span := c.tracer.Start(ctx, "cache.release",
		trace.WithAttributes(
			attribute.String("cache.key", key),
			attribute.String("operation", "cache.write"),
		))
	defer span.End()

	c.mu.Lock()
	defer c.mu.Unlock()

	_, exists := c.items[key]
	delete(c.items, key)
	span.SetAttributes(attribute.Bool("key.existed", exists))
	return nil
}

// Close stops the expiry sweeper.
func (c *InMemoryCooldown) Close() error {
	c.once.Do(func() { close(c.stop) })
	return nil
}

func (c *InMemoryCooldown) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

func (c *InMemoryCooldown) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, expireAt := range c.items {
		if !now.Before(expireAt) {
			delete(c.items, key)
		}
	}
}

func ResendKey(email models.SanitizedEmail) string {
	return "resend-confirmation:" + strings.ToLower(email.String())
}
