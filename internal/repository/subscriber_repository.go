package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"subscriptions-go/internal/models"
)

//go:generate mockgen -source=subscriber_repository.go -destination=mocks/mocks.go -package=mocks

var (
	ErrDuplicateEmail = errors.New("subscriber email already exists")
	ErrNotFound       = errors.New("subscriber not found")
	ErrUnavailable    = errors.New("subscriber store unavailable")
)

// SubscriberRepository persists subscribers. Implementations must make Insert
// and ActivateByToken atomic with respect to concurrent callers.
type SubscriberRepository interface {
	Insert(ctx context.Context, account models.ParsedAccount) (*models.Subscriber, error)
	ListAll(ctx context.Context) ([]*models.Subscriber, error)
	// ActivateByToken confirms the unconfirmed subscriber holding token. It
	// returns ErrNotFound when the token is unknown or already consumed.
	ActivateByToken(ctx context.Context, token uuid.UUID) (*models.Subscriber, error)
	GetByEmail(ctx context.Context, email models.SanitizedEmail) (*models.Subscriber, error)
}

type InMemorySubscriberRepository struct {
	mu          sync.RWMutex
	subscribers map[uuid.UUID]*models.Subscriber
	byEmail     map[string]uuid.UUID
	byToken     map[uuid.UUID]uuid.UUID
	tracer      trace.Tracer
}

func NewInMemorySubscriberRepository() *InMemorySubscriberRepository {
	return &InMemorySubscriberRepository{
		subscribers: make(map[uuid.UUID]*models.Subscriber),
		byEmail:     make(map[string]uuid.UUID),
		byToken:     make(map[uuid.UUID]uuid.UUID),
		tracer:      otel.Tracer("subscriber-repository"),
	}
}

func emailKey(email string) string {
	return strings.ToLower(email)
}

func (r *InMemorySubscriberRepository) Insert(ctx context.Context, account models.ParsedAccount) (*models.Subscriber, error) {
	if !account.Parsed() {
		return nil, fmt.Errorf("Insert: %w", models.ErrUnparsedAccount)
	}
	subscriber := models.NewSubscriber(account)
	_, span := r.tracer.Start(ctx, "subscriber.repository.insert",
		trace.WithAttributes(
			attribute.String("subscriber.id", subscriber.ID.String()),
			attribute.String("subscriber.email", subscriber.Email),
			attribute.String("operation", "database.write"),
		))
	defer span.End()

	r.mu.Lock()
	defer r.mu.Unlock()

	key := emailKey(subscriber.Email)
	if _, exists := r.byEmail[key]; exists {
		span.RecordError(ErrDuplicateEmail)
		return nil, ErrDuplicateEmail
	}

	r.subscribers[subscriber.ID] = subscriber
	r.byEmail[key] = subscriber.ID
	r.byToken[subscriber.ActivationToken] = subscriber.ID
	span.SetAttributes(attribute.Bool("success", true))
	return subscriber.Clone(), nil
}

func (r *InMemorySubscriberRepository) ListAll(ctx context.Context) ([]*models.Subscriber, error) {
	_, span := r.tracer.Start(ctx, "subscriber.repository.list_all",
		trace.WithAttributes(
			attribute.String("operation", "database.read"),
		))
	defer span.End()

	r.mu.RLock()
	defer r.mu.RUnlock()

	subscribers := make([]*models.Subscriber, 0, len(r.subscribers))
	for _, subscriber := range r.subscribers {
		subscribers = append(subscribers, subscriber.Clone())
	}
	sortBySubscribedAt(subscribers)

	span.SetAttributes(
		attribute.Int("subscriber.count", len(subscribers)),
		attribute.Bool("success", true),
	)
	return subscribers, nil
}

func (r *InMemorySubscriberRepository) ActivateByToken(ctx context.Context, token uuid.UUID) (*models.Subscriber, error) {
	_, span := r.tracer.Start(ctx, "subscriber.repository.activate_by_token",
		trace.WithAttributes(
			attribute.String("operation", "database.write"),
		))
	defer span.End()

	r.mu.Lock()
	defer r.mu.Unlock()

	id, exists := r.byToken[token]
	if !exists || r.subscribers[id].Status {
		span.SetAttributes(attribute.Bool("found", false))
		return nil, ErrNotFound
	}

	subscriber := r.subscribers[id]
	subscriber.Status = true
	span.SetAttributes(
		attribute.String("subscriber.id", id.String()),
		attribute.Bool("success", true),
	)
	return subscriber.Clone(), nil
}

func (r *InMemorySubscriberRepository) GetByEmail(ctx context.Context, email models.SanitizedEmail) (*models.Subscriber, error) {
	_, span := r.tracer.Start(ctx, "subscriber.repository.get_by_email",
		trace.WithAttributes(
			attribute.String("subscriber.email", email.String()),
			attribute.String("operation", "database.read"),
		))
	defer span.End()

	r.mu.RLock()
	defer r.mu.RUnlock()

	id, exists := r.byEmail[emailKey(email.String())]
	if !exists {
		span.SetAttributes(attribute.Bool("found", false))
		return nil, ErrNotFound
	}

	span.SetAttributes(attribute.Bool("success", true))
	return r.subscribers[id].Clone(), nil
}

func sortBySubscribedAt(subscribers []*models.Subscriber) {
	sort.SliceStable(subscribers, func(i, j int) bool {
		if subscribers[i].SubscribedAt.Equal(subscribers[j].SubscribedAt) {
			return subscribers[i].ID.String() < subscribers[j].ID.String()
		}
		return subscribers[i].SubscribedAt.Before(subscribers[j].SubscribedAt)
	})
}
