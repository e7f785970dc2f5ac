package mailer

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	dapr "github.com/dapr/go-sdk/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"subscriptions-go/internal/logging"
)

type fakeSES struct {
	input *sesv2.SendEmailInput
	err   error
}

func (f *fakeSES) SendEmail(_ context.Context, params *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

func TestSESTransportSend(t *testing.T) {
	fake := &fakeSES{}
	transport := &SESTransport{client: fake}

	require.NoError(t, transport.Send(context.Background(), testMessage))

	require.NotNil(t, fake.input)
	assert.Equal(t, "newsletter@example.com", aws.ToString(fake.input.FromEmailAddress))
	assert.Equal(t, []string{"a@b.com"}, fake.input.Destination.ToAddresses)
	assert.Equal(t, "Confirm", aws.ToString(fake.input.Content.Simple.Subject.Data))
	assert.Equal(t, "<p>hi</p>", aws.ToString(fake.input.Content.Simple.Body.Html.Data))
	assert.Equal(t, "hi", aws.ToString(fake.input.Content.Simple.Body.Text.Data))
}

func TestSESTransportError(t *testing.T) {
	transport := &SESTransport{client: &fakeSES{err: errors.New("throttled")}}

	err := transport.Send(context.Background(), testMessage)
	assert.ErrorContains(t, err, "throttled")
}

type fakeBinding struct {
	req *dapr.InvokeBindingRequest
	err error
}

func (f *fakeBinding) InvokeOutputBinding(_ context.Context, in *dapr.InvokeBindingRequest) error {
	f.req = in
	return f.err
}

func TestDaprSMTPTransportSend(t *testing.T) {
	fake := &fakeBinding{}
	transport := NewDaprSMTPTransport(fake, "smtp")

	require.NoError(t, transport.Send(context.Background(), testMessage))

	require.NotNil(t, fake.req)
	assert.Equal(t, "smtp", fake.req.Name)
	assert.Equal(t, "create", fake.req.Operation)
	assert.Equal(t, []byte("<p>hi</p>"), fake.req.Data)
	assert.Equal(t, map[string]string{
		"emailFrom": "newsletter@example.com",
		"emailTo":   "a@b.com",
		"subject":   "Confirm",
	}, fake.req.Metadata)
}

func TestDaprSMTPTransportError(t *testing.T) {
	transport := NewDaprSMTPTransport(&fakeBinding{err: errors.New("binding not found")}, "smtp")

	err := transport.Send(context.Background(), testMessage)
	assert.ErrorContains(t, err, "binding not found")
	assert.ErrorContains(t, err, "smtp")
}

func TestLogTransportNeverFails(t *testing.T) {
	transport := NewLogTransport(logging.NewLogger())
	assert.Equal(t, "log", transport.Name())
	assert.NoError(t, transport.Send(context.Background(), testMessage))
}
