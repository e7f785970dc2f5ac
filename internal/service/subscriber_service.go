package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"subscriptions-go/internal/cache"
	"subscriptions-go/internal/logging"
	"subscriptions-go/internal/mailer"
	"subscriptions-go/internal/metrics"
	"subscriptions-go/internal/models"
	"subscriptions-go/internal/repository"
)

const DefaultResendCooldown = time.Minute

type SubscriberService struct {
	repo           repository.SubscriberRepository
	mailer         mailer.Mailer
	cooldown       cache.Cooldown
	resendCooldown time.Duration
	metrics        *metrics.Metrics
	logger         *logging.ContextLogger
	tracer         trace.Tracer
}

type Option func(*SubscriberService)

// WithCooldown throttles ResendConfirmation to one email per address per ttl.
func WithCooldown(cooldown cache.Cooldown, ttl time.Duration) Option {
	return func(s *SubscriberService) {
		s.cooldown = cooldown
		if ttl > 0 {
			s.resendCooldown = ttl
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *SubscriberService) {
		s.metrics = m
	}
}

func NewSubscriberService(repo repository.SubscriberRepository, notifier mailer.Mailer, logger *logging.ContextLogger, opts ...Option) *SubscriberService {
	s := &SubscriberService{
		repo:           repo,
		mailer:         notifier,
		resendCooldown: DefaultResendCooldown,
		logger:         logger,
		tracer:         otel.Tracer("subscriber-service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.New(prometheus.NewRegistry())
	}
	return s
}

// CreateSubscriber persists a new unconfirmed subscriber and emails the
// activation link. When the email cannot be sent the subscriber stays
// persisted and the returned error wraps ErrSend; ResendConfirmation
// recovers from that state.
func (s *SubscriberService) CreateSubscriber(ctx context.Context, rawName, rawEmail string) (*models.Subscriber, error) {
	defer s.metrics.ObserveOperation("create", time.Now())

	ctx, span := s.tracer.Start(ctx, "subscriber.service.create")
	defer span.End()

	account, err := models.ParseAccount(rawName, rawEmail)
	if err != nil {
		s.logger.WarnWithTracing(ctx, "Rejected subscriber input", logrus.Fields{
			"error": err.Error(),
		})
		span.RecordError(err)
		return nil, fmt.Errorf("CreateSubscriber: %w", err)
	}

	span.SetAttributes(attribute.String("subscriber.email", account.Email.String()))
	s.logger.InfoWithTracing(ctx, "Creating new subscriber", logrus.Fields{
		"email": account.Email.String(),
		"name":  account.Name.String(),
	})

	subscriber, err := s.repo.Insert(ctx, account)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, ErrValidation) {
			return nil, fmt.Errorf("CreateSubscriber: %w", err)
		}
		if errors.Is(err, repository.ErrDuplicateEmail) {
			s.logger.InfoWithTracing(ctx, "Subscriber already exists", logrus.Fields{
				"email": account.Email.String(),
			})
			return nil, fmt.Errorf("CreateSubscriber: %w", ErrDuplicateSubscriber)
		}
		s.logger.ErrorWithTracing(ctx, "Failed to create subscriber", err, logrus.Fields{
			"email": account.Email.String(),
		})
		return nil, fmt.Errorf("CreateSubscriber: %w: %w", ErrStoreUnavailable, err)
	}

	s.metrics.IncrementCreated()
	span.SetAttributes(attribute.String("subscriber.id", subscriber.ID.String()))

	if err := s.sendConfirmation(ctx, account.Name, account.Email, subscriber); err != nil {
		s.logger.ErrorWithTracing(ctx, "Subscriber stored but confirmation email failed; awaiting resend", err, logrus.Fields{
			"subscriber_id": subscriber.ID.String(),
			"email":         subscriber.Email,
		})
		span.RecordError(err)
		return nil, fmt.Errorf("CreateSubscriber: %w", err)
	}

	// A fresh signup counts as the first send, so an immediate resend is throttled.
	if s.cooldown != nil {
		if _, err := s.cooldown.Acquire(ctx, cache.ResendKey(account.Email), s.resendCooldown); err != nil {
			s.logger.WarnWithTracing(ctx, "Failed to record resend cooldown", logrus.Fields{
				"subscriber_id": subscriber.ID.String(),
				"error":         err.Error(),
			})
		}
	}

	s.logger.InfoWithTracing(ctx, "Successfully created subscriber", logrus.Fields{
		"subscriber_id": subscriber.ID.String(),
		"email":         subscriber.Email,
	})
	span.SetAttributes(attribute.Bool("success", true))

	return subscriber, nil
}

func (s *SubscriberService) ListSubscribers(ctx context.Context) ([]*models.Subscriber, error) {
	defer s.metrics.ObserveOperation("list", time.Now())

	ctx, span := s.tracer.Start(ctx, "subscriber.service.list")
	defer span.End()

	s.logger.InfoWithTracing(ctx, "Retrieving all subscribers", nil)

	subscribers, err := s.repo.ListAll(ctx)
	if err != nil {
		s.logger.ErrorWithTracing(ctx, "Failed to retrieve subscribers", err, nil)
		span.RecordError(err)
		return nil, fmt.Errorf("ListSubscribers: %w: %w", ErrStoreUnavailable, err)
	}

	s.logger.InfoWithTracing(ctx, "Successfully retrieved all subscribers", logrus.Fields{
		"count": len(subscribers),
	})
	span.SetAttributes(
		attribute.Int("subscriber.count", len(subscribers)),
		attribute.Bool("success", true),
	)

	return subscribers, nil
}

// ConfirmSubscriber consumes an activation token. Unknown and already
// consumed tokens are indistinguishable to the caller: both wrap
// ErrConfirmationFailed.
func (s *SubscriberService) ConfirmSubscriber(ctx context.Context, rawToken string) (*models.Subscriber, error) {
	defer s.metrics.ObserveOperation("confirm", time.Now())

	ctx, span := s.tracer.Start(ctx, "subscriber.service.confirm")
	defer span.End()

	token, err := uuid.Parse(rawToken)
	if err != nil {
		s.logger.WarnWithTracing(ctx, "Malformed activation token", logrus.Fields{
			"error": err.Error(),
		})
		span.RecordError(err)
		return nil, fmt.Errorf("ConfirmSubscriber: %w", &models.FieldError{Field: "token", Reason: "is not a valid activation token"})
	}

	subscriber, err := s.repo.ActivateByToken(ctx, token)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.InfoWithTracing(ctx, "No pending subscriber for activation token", nil)
			return nil, fmt.Errorf("ConfirmSubscriber: %w", ErrConfirmationFailed)
		}
		s.logger.ErrorWithTracing(ctx, "Failed to confirm subscriber", err, nil)
		return nil, fmt.Errorf("ConfirmSubscriber: %w: %w", ErrStoreUnavailable, err)
	}

	s.metrics.IncrementConfirmed()
	s.logger.InfoWithTracing(ctx, "Subscriber confirmed", logrus.Fields{
		"subscriber_id": subscriber.ID.String(),
		"email":         subscriber.Email,
	})
	span.SetAttributes(
		attribute.String("subscriber.id", subscriber.ID.String()),
		attribute.Bool("success", true),
	)

	return subscriber, nil
}

// ResendConfirmation emails the existing activation link again to a
// subscriber that has not confirmed yet. Repeated calls keep the same token,
// so any link already delivered stays valid.
func (s *SubscriberService) ResendConfirmation(ctx context.Context, rawEmail string) error {
	defer s.metrics.ObserveOperation("resend", time.Now())

	ctx, span := s.tracer.Start(ctx, "subscriber.service.resend_confirmation")
	defer span.End()

	email, err := models.ParseEmail(rawEmail)
	if err != nil {
		s.logger.WarnWithTracing(ctx, "Rejected resend input", logrus.Fields{
			"error": err.Error(),
		})
		span.RecordError(err)
		return fmt.Errorf("ResendConfirmation: %w", err)
	}
	span.SetAttributes(attribute.String("subscriber.email", email.String()))

	subscriber, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("ResendConfirmation: %w", ErrSubscriberNotFound)
		}
		s.logger.ErrorWithTracing(ctx, "Failed to look up subscriber", err, logrus.Fields{
			"email": email.String(),
		})
		return fmt.Errorf("ResendConfirmation: %w: %w", ErrStoreUnavailable, err)
	}

	if subscriber.Confirmed() {
		return fmt.Errorf("ResendConfirmation: %w", ErrAlreadyConfirmed)
	}

	// Stored fields were parsed on insert; parse again to recover the typed values.
	account, err := models.ParseAccount(subscriber.Name, subscriber.Email)
	if err != nil {
		s.logger.ErrorWithTracing(ctx, "Stored subscriber fails validation", err, logrus.Fields{
			"subscriber_id": subscriber.ID.String(),
		})
		span.RecordError(err)
		return fmt.Errorf("ResendConfirmation: %w: stored subscriber is invalid: %w", ErrStoreUnavailable, err)
	}

	key := cache.ResendKey(account.Email)
	if s.cooldown != nil {
		acquired, err := s.cooldown.Acquire(ctx, key, s.resendCooldown)
		switch {
		case err != nil:
			s.logger.WarnWithTracing(ctx, "Resend cooldown unavailable, sending anyway", logrus.Fields{
				"subscriber_id": subscriber.ID.String(),
				"error":         err.Error(),
			})
		case !acquired:
			span.SetAttributes(attribute.Bool("throttled", true))
			return fmt.Errorf("ResendConfirmation: %w", ErrResendThrottled)
		}
	}

	if err := s.sendConfirmation(ctx, account.Name, account.Email, subscriber); err != nil {
		s.logger.ErrorWithTracing(ctx, "Failed to resend confirmation email", err, logrus.Fields{
			"subscriber_id": subscriber.ID.String(),
			"email":         subscriber.Email,
		})
		span.RecordError(err)
		if s.cooldown != nil {
			if relErr := s.cooldown.Release(ctx, key); relErr != nil {
				s.logger.WarnWithTracing(ctx, "Failed to release resend cooldown", logrus.Fields{
					"subscriber_id": subscriber.ID.String(),
					"error":         relErr.Error(),
				})
			}
		}
		return fmt.Errorf("ResendConfirmation: %w", err)
	}

	s.logger.InfoWithTracing(ctx, "Confirmation email resent", logrus.Fields{
		"subscriber_id": subscriber.ID.String(),
		"email":         subscriber.Email,
	})
	span.SetAttributes(attribute.Bool("success", true))
	return nil
}

func (s *SubscriberService) sendConfirmation(ctx context.Context, name models.SanitizedName, email models.SanitizedEmail, subscriber *models.Subscriber) error {
	err := s.mailer.SendConfirmation(ctx, name, email, subscriber.ActivationToken)
	s.metrics.RecordEmail(err)
	if err != nil && !errors.Is(err, ErrSend) {
		err = fmt.Errorf("%w: %w", ErrSend, err)
	}
	return err
}
