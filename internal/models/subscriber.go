package models

import (
	"time"

	"github.com/google/uuid"
)

type Subscriber struct {
	ID              uuid.UUID `json:"id"`
	Email           string    `json:"email"`
	Name            string    `json:"name"`
	SubscribedAt    time.Time `json:"subscribed_at"`
	Status          bool      `json:"status"`
	ActivationToken uuid.UUID `json:"-"`
}

type CreateSubscriberRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

type ResendConfirmationRequest struct {
	Email string `json:"email"`
}

type ListResponse struct {
	Results []*Subscriber `json:"results"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

// NewSubscriber builds an unconfirmed subscriber with a fresh id and
// activation token.
func NewSubscriber(account ParsedAccount) *Subscriber {
	return &Subscriber{
		ID:              uuid.New(),
		Email:           account.Email.String(),
		Name:            account.Name.String(),
		SubscribedAt:    time.Now().UTC(),
		Status:          false,
		ActivationToken: uuid.New(),
	}
}

func (s *Subscriber) Confirmed() bool {
	return s.Status
}

// Clone returns a copy so that stores never hand out pointers to their own rows.
func (s *Subscriber) Clone() *Subscriber {
	c := *s
	return &c
}
