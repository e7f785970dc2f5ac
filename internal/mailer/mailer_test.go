package mailer_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"subscriptions-go/internal/mailer"
	"subscriptions-go/internal/mailer/mocks"
	"subscriptions-go/internal/models"
)

func recipient(t *testing.T, name, email string) (models.SanitizedName, models.SanitizedEmail) {
	t.Helper()
	account, err := models.ParseAccount(name, email)
	require.NoError(t, err)
	return account.Name, account.Email
}

func newMailer(t *testing.T, transport mailer.Transport, timeout time.Duration) *mailer.ConfirmationMailer {
	t.Helper()
	sender, err := models.ParseEmail("newsletter@example.com")
	require.NoError(t, err)
	m, err := mailer.NewConfirmationMailer(transport, "https://news.example.com/", sender, timeout)
	require.NoError(t, err)
	return m
}

func TestSendConfirmationRendersLink(t *testing.T) {
	ctrl := gomock.NewController(t)
	transport := mocks.NewMockTransport(ctrl)
	transport.EXPECT().Name().Return("mock").AnyTimes()

	token := uuid.New()
	link := "https://news.example.com/confirm/" + token.String()

	var sent mailer.Message
	transport.EXPECT().Send(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, msg mailer.Message) error {
			_, hasDeadline := ctx.Deadline()
			assert.True(t, hasDeadline)
			sent = msg
			return nil
		})

	m := newMailer(t, transport, time.Second)
	name, email := recipient(t, "Tom & Jerry", "tom@example.com")
	require.NoError(t, m.SendConfirmation(context.Background(), name, email, token))

	assert.Equal(t, link, m.ConfirmationLink(token))
	assert.Equal(t, "newsletter@example.com", sent.From)
	assert.Equal(t, "tom@example.com", sent.To)
	assert.Contains(t, sent.Subject, "Tom & Jerry")
	assert.Contains(t, sent.HTMLBody, `href="`+link+`"`)
	assert.Contains(t, sent.HTMLBody, "Tom &amp; Jerry")
	assert.Contains(t, sent.TextBody, link)
}

func TestSendConfirmationWrapsTransportError(t *testing.T) {
	ctrl := gomock.NewController(t)
	transport := mocks.NewMockTransport(ctrl)
	transport.EXPECT().Name().Return("mock").AnyTimes()
	transport.EXPECT().Send(gomock.Any(), gomock.Any()).Return(errors.New("422 inactive recipient"))

	m := newMailer(t, transport, time.Second)
	name, email := recipient(t, "Alice", "a@b.com")

	err := m.SendConfirmation(context.Background(), name, email, uuid.New())
	assert.ErrorIs(t, err, mailer.ErrSend)
	assert.Contains(t, err.Error(), "422 inactive recipient")
}

func TestSendConfirmationTimesOut(t *testing.T) {
	ctrl := gomock.NewController(t)
	transport := mocks.NewMockTransport(ctrl)
	transport.EXPECT().Name().Return("mock").AnyTimes()
	transport.EXPECT().Send(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ mailer.Message) error {
			<-ctx.Done()
			return ctx.Err()
		})

	m := newMailer(t, transport, 20*time.Millisecond)
	name, email := recipient(t, "Alice", "a@b.com")

	start := time.Now()
	err := m.SendConfirmation(context.Background(), name, email, uuid.New())
	assert.ErrorIs(t, err, mailer.ErrSend)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "timed out")
	assert.Less(t, time.Since(start), time.Second)
}

func TestNewConfirmationMailerRequiresSender(t *testing.T) {
	ctrl := gomock.NewController(t)
	_, err := mailer.NewConfirmationMailer(mocks.NewMockTransport(ctrl), "http://localhost", models.SanitizedEmail{}, 0)
	assert.Error(t, err)
}
