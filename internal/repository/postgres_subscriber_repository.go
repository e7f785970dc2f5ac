package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"subscriptions-go/internal/models"
)

const (
	subscriberColumns = `id, email, name, subscribed_at, status, activation_token`

	uniqueViolation       = "23505"
	emailUniqueConstraint = "subscriptions_email_lower_key"
)

type scanner interface {
	Scan(dest ...any) error
}

type PostgresSubscriberRepository struct {
	db     *sql.DB
	tracer trace.Tracer
}

func NewPostgresSubscriberRepository(db *sql.DB) *PostgresSubscriberRepository {
	return &PostgresSubscriberRepository{
		db:     db,
		tracer: otel.Tracer("postgres.repository"),
	}
}

func (r *PostgresSubscriberRepository) Insert(ctx context.Context, account models.ParsedAccount) (*models.Subscriber, error) {
	if !account.Parsed() {
		return nil, fmt.Errorf("Insert: %w", models.ErrUnparsedAccount)
	}
	subscriber := models.NewSubscriber(account)
	ctx, span := r.tracer.Start(ctx, "subscriber.repository.insert",
		trace.WithAttributes(
			attribute.String("subscriber.id", subscriber.ID.String()),
			attribute.String("subscriber.email", subscriber.Email),
			attribute.String("operation", "database.write"),
			attribute.String("db.system", "postgresql"),
		))
	defer span.End()

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO subscriptions (`+subscriberColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		subscriber.ID, subscriber.Email, subscriber.Name,
		subscriber.SubscribedAt, subscriber.Status, subscriber.ActivationToken,
	)
	if err != nil {
		span.RecordError(err)
		if isEmailViolation(err) {
			return nil, fmt.Errorf("Insert: %w", ErrDuplicateEmail)
		}
		return nil, fmt.Errorf("Insert: %w: %w", ErrUnavailable, err)
	}

	span.SetAttributes(attribute.Bool("success", true))
	return subscriber, nil
}

func (r *PostgresSubscriberRepository) ListAll(ctx context.Context) ([]*models.Subscriber, error) {
	ctx, span := r.tracer.Start(ctx, "subscriber.repository.list_all",
		trace.WithAttributes(
			attribute.String("operation", "database.read"),
			attribute.String("db.system", "postgresql"),
		))
	defer span.End()

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+subscriberColumns+` FROM subscriptions ORDER BY subscribed_at, id`,
	)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("ListAll: %w: %w", ErrUnavailable, err)
	}
	defer rows.Close()

	subscribers := make([]*models.Subscriber, 0)
	for rows.Next() {
		s, err := scanSubscriber(rows)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("ListAll: scan: %w: %w", ErrUnavailable, err)
		}
		subscribers = append(subscribers, s)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("ListAll: rows: %w: %w", ErrUnavailable, err)
	}

	span.SetAttributes(
		attribute.Int("subscriber.count", len(subscribers)),
		attribute.Bool("success", true),
	)
	return subscribers, nil
}

func (r *PostgresSubscriberRepository) ActivateByToken(ctx context.Context, token uuid.UUID) (*models.Subscriber, error) {
	ctx, span := r.tracer.Start(ctx, "subscriber.repository.activate_by_token",
		trace.WithAttributes(
			attribute.String("operation", "database.write"),
			attribute.String("db.system", "postgresql"),
		))
	defer span.End()

	row := r.db.QueryRowContext(ctx,
		`UPDATE subscriptions SET status = TRUE
		WHERE activation_token = $1 AND status = FALSE
		RETURNING `+subscriberColumns,
		token,
	)
	s, err := scanSubscriber(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			span.SetAttributes(attribute.Bool("found", false))
			return nil, fmt.Errorf("ActivateByToken: %w", ErrNotFound)
		}
		span.RecordError(err)
		return nil, fmt.Errorf("ActivateByToken: %w: %w", ErrUnavailable, err)
	}

	span.SetAttributes(
		attribute.String("subscriber.id", s.ID.String()),
		attribute.Bool("success", true),
	)
	return s, nil
}

func (r *PostgresSubscriberRepository) GetByEmail(ctx context.Context, email models.SanitizedEmail) (*models.Subscriber, error) {
	ctx, span := r.tracer.Start(ctx, "subscriber.repository.get_by_email",
		trace.WithAttributes(
			attribute.String("subscriber.email", email.String()),
			attribute.String("operation", "database.read"),
			attribute.String("db.system", "postgresql"),
		))
	defer span.End()

	row := r.db.QueryRowContext(ctx,
		`SELECT `+subscriberColumns+` FROM subscriptions WHERE lower(email) = lower($1)`,
		email.String(),
	)
	s, err := scanSubscriber(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			span.SetAttributes(attribute.Bool("found", false))
			return nil, fmt.Errorf("GetByEmail: %w", ErrNotFound)
		}
		span.RecordError(err)
		return nil, fmt.Errorf("GetByEmail: %w: %w", ErrUnavailable, err)
	}

	span.SetAttributes(attribute.Bool("success", true))
	return s, nil
}

func scanSubscriber(s scanner) (*models.Subscriber, error) {
	var sub models.Subscriber
	err := s.Scan(
		&sub.ID, &sub.Email, &sub.Name,
		&sub.SubscribedAt, &sub.Status, &sub.ActivationToken,
	)
	if err != nil {
		return nil, err
	}
	sub.SubscribedAt = sub.SubscribedAt.UTC()
	return &sub, nil
}

func isEmailViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) &&
		pqErr.Code == uniqueViolation &&
		pqErr.Constraint == emailUniqueConstraint
}
