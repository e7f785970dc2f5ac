package mailer

import (
	"context"

	"github.com/sirupsen/logrus"

	"subscriptions-go/internal/logging"
)

// LogTransport writes messages to the log instead of sending them. Used in
// development where no provider is configured.
type LogTransport struct {
	logger *logging.ContextLogger
}

func NewLogTransport(logger *logging.ContextLogger) *LogTransport {
	return &LogTransport{logger: logger}
}

func (t *LogTransport) Name() string { return "log" }

func (t *LogTransport) Send(ctx context.Context, msg Message) error {
	t.logger.InfoWithTracing(ctx, "Email not sent, log transport in use", logrus.Fields{
		"from":      msg.From,
		"to":        msg.To,
		"subject":   msg.Subject,
		"text_body": msg.TextBody,
	})
	return nil
}
