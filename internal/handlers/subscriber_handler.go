package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"subscriptions-go/internal/logging"
	"subscriptions-go/internal/models"
	"subscriptions-go/internal/service"
)

// SubscriberService is the lifecycle surface the handlers drive.
type SubscriberService interface {
	CreateSubscriber(ctx context.Context, rawName, rawEmail string) (*models.Subscriber, error)
	ListSubscribers(ctx context.Context) ([]*models.Subscriber, error)
	ConfirmSubscriber(ctx context.Context, rawToken string) (*models.Subscriber, error)
	ResendConfirmation(ctx context.Context, rawEmail string) error
}

type SubscriberHandler struct {
	service SubscriberService
	logger  *logging.ContextLogger
	tracer  trace.Tracer
}

func NewSubscriberHandler(service SubscriberService, logger *logging.ContextLogger) *SubscriberHandler {
	return &SubscriberHandler{
		service: service,
		logger:  logger,
		tracer:  otel.Tracer("subscriber-handler"),
	}
}

var errorStatuses = []struct {
	err    error
	status int
}{
	{service.ErrValidation, http.StatusBadRequest},
	{service.ErrConfirmationFailed, http.StatusBadRequest},
	{service.ErrDuplicateSubscriber, http.StatusConflict},
	{service.ErrAlreadyConfirmed, http.StatusConflict},
	{service.ErrSubscriberNotFound, http.StatusNotFound},
	{service.ErrResendThrottled, http.StatusTooManyRequests},
	{service.ErrSend, http.StatusInternalServerError},
	{service.ErrStoreUnavailable, http.StatusInternalServerError},
}

// StatusFor maps a service error onto an HTTP status. Unrecognised errors
// are treated as internal failures.
func StatusFor(err error) int {
	for _, e := range errorStatuses {
		if errors.Is(err, e.err) {
			return e.status
		}
	}
	return http.StatusInternalServerError
}

// publicMessage keeps internal failure detail out of responses.
func publicMessage(err error) string {
	switch {
	case errors.Is(err, service.ErrValidation):
		if messages := models.ValidationMessages(err); len(messages) > 0 {
			return strings.Join(messages, "; ")
		}
		return service.ErrValidation.Error()
	case errors.Is(err, service.ErrSend):
		return "Subscriber saved but the confirmation email could not be sent"
	case errors.Is(err, service.ErrStoreUnavailable):
		return "Subscriber store unavailable"
	}
	for _, e := range errorStatuses {
		if errors.Is(err, e.err) {
			return e.err.Error()
		}
	}
	return "Internal server error"
}

func (h *SubscriberHandler) fail(c *gin.Context, ctx context.Context, span trace.Span, endpoint string, err error) {
	status := StatusFor(err)
	fields := logrus.Fields{
		"endpoint": endpoint,
		"status":   status,
	}
	if status >= http.StatusInternalServerError {
		h.logger.ErrorWithTracing(ctx, "Request failed", err, fields)
	} else {
		fields["error"] = err.Error()
		h.logger.WarnWithTracing(ctx, "Request rejected", fields)
	}
	span.RecordError(err)
	span.SetAttributes(attribute.Int("http.status_code", status))
	c.JSON(status, gin.H{"error": publicMessage(err)})
}

func (h *SubscriberHandler) ListSubscribers(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "subscriber.handler.list")
	defer span.End()

	subscribers, err := h.service.ListSubscribers(ctx)
	if err != nil {
		h.fail(c, ctx, span, "GET /subscriptions", err)
		return
	}

	span.SetAttributes(
		attribute.Int("subscriber.count", len(subscribers)),
		attribute.Bool("success", true),
	)
	c.JSON(http.StatusOK, models.ListResponse{Results: subscribers})
}

func (h *SubscriberHandler) CreateSubscriber(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "subscriber.handler.create")
	defer span.End()

	var req models.CreateSubscriberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.WarnWithTracing(ctx, "Invalid request payload", logrus.Fields{
			"error":    err.Error(),
			"endpoint": "POST /subscriptions",
		})
		span.RecordError(err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	subscriber, err := h.service.CreateSubscriber(ctx, req.Name, req.Email)
	if err != nil {
		h.fail(c, ctx, span, "POST /subscriptions", err)
		return
	}

	span.SetAttributes(
		attribute.String("subscriber.id", subscriber.ID.String()),
		attribute.Bool("success", true),
	)
	c.JSON(http.StatusCreated, subscriber)
}

func (h *SubscriberHandler) ConfirmSubscriber(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "subscriber.handler.confirm")
	defer span.End()

	subscriber, err := h.service.ConfirmSubscriber(ctx, c.Param("token"))
	if err != nil {
		h.fail(c, ctx, span, "GET /confirm/:token", err)
		return
	}

	span.SetAttributes(
		attribute.String("subscriber.id", subscriber.ID.String()),
		attribute.Bool("success", true),
	)
	c.JSON(http.StatusOK, models.MessageResponse{
		Message: "Confirmed email account! " + subscriber.Email,
	})
}

func (h *SubscriberHandler) ResendConfirmation(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "subscriber.handler.resend_confirmation")
	defer span.End()

	var req models.ResendConfirmationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.WarnWithTracing(ctx, "Invalid request payload", logrus.Fields{
			"error":    err.Error(),
			"endpoint": "POST /subscriptions/confirmation",
		})
		span.RecordError(err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	if err := h.service.ResendConfirmation(ctx, req.Email); err != nil {
		h.fail(c, ctx, span, "POST /subscriptions/confirmation", err)
		return
	}

	span.SetAttributes(attribute.Bool("success", true))
	c.JSON(http.StatusAccepted, models.MessageResponse{
		Message: "Confirmation email sent to " + req.Email,
	})
}
