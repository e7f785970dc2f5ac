package service

import (
	"errors"

	"subscriptions-go/internal/mailer"
	"subscriptions-go/internal/models"
)

// Every error returned by SubscriberService wraps exactly one of these.
var (
	ErrValidation          = models.ErrValidation
	ErrDuplicateSubscriber = errors.New("subscriber already exists")
	ErrStoreUnavailable    = errors.New("subscriber store unavailable")
	ErrConfirmationFailed  = errors.New("no pending subscriber for activation token")
	ErrSend                = mailer.ErrSend

	ErrSubscriberNotFound = errors.New("subscriber not found")
	ErrAlreadyConfirmed   = errors.New("subscriber already confirmed")
	ErrResendThrottled    = errors.New("confirmation email recently sent")
)
