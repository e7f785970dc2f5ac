// Package mailer sends the subscription confirmation email. The Mailer
// contract only promises that the message reached the provider's acceptance
// boundary; it never retries.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"subscriptions-go/internal/models"
)

//go:generate mockgen -source=mailer.go -destination=mocks/mocks.go -package=mocks

// ErrSend wraps every failure to hand a message to the transport.
var ErrSend = errors.New("email send failed")

const DefaultTimeout = 10 * time.Second

type Mailer interface {
	SendConfirmation(ctx context.Context, name models.SanitizedName, email models.SanitizedEmail, token uuid.UUID) error
}

// Message is a fully rendered email ready for a transport.
type Message struct {
	From     string
	To       string
	Subject  string
	HTMLBody string
	TextBody string
}

// Transport delivers a Message to an email provider.
type Transport interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}

type ConfirmationMailer struct {
	transport Transport
	templates *confirmationTemplates
	baseURL   string
	sender    models.SanitizedEmail
	timeout   time.Duration
	tracer    trace.Tracer
}

// NewConfirmationMailer renders confirmation emails linking to
// {baseURL}/confirm/{token} and hands them to transport. A zero timeout
// falls back to DefaultTimeout.
func NewConfirmationMailer(transport Transport, baseURL string, sender models.SanitizedEmail, timeout time.Duration) (*ConfirmationMailer, error) {
	if sender.IsZero() {
		return nil, errors.New("mailer: sender email is required")
	}
	templates, err := parseConfirmationTemplates()
	if err != nil {
		return nil, fmt.Errorf("mailer: %w", err)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &ConfirmationMailer{
		transport: transport,
		templates: templates,
		baseURL:   strings.TrimRight(baseURL, "/"),
		sender:    sender,
		timeout:   timeout,
		tracer:    otel.Tracer("mailer"),
	}, nil
}

func (m *ConfirmationMailer) ConfirmationLink(token uuid.UUID) string {
	return m.baseURL + "/confirm/" + token.String()
}

func (m *ConfirmationMailer) SendConfirmation(ctx context.Context, name models.SanitizedName, email models.SanitizedEmail, token uuid.UUID) error {
	ctx, span := m.tracer.Start(ctx, "mailer.send_confirmation",
		trace.WithAttributes(
			attribute.String("subscriber.email", email.String()),
			attribute.String("email.transport", m.transport.Name()),
			attribute.String("operation", "email.send"),
		))
	defer span.End()

	msg, err := m.templates.render(m.sender.String(), name, email, m.ConfirmationLink(token))
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("%w: render: %w", ErrSend, err)
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	if err := m.transport.Send(ctx, msg); err != nil {
		span.RecordError(err)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: %s timed out after %s: %w", ErrSend, m.transport.Name(), m.timeout, err)
		}
		return fmt.Errorf("%w: %s: %w", ErrSend, m.transport.Name(), err)
	}

	span.SetAttributes(attribute.Bool("success", true))
	return nil
}
