package mailer

import (
	"context"
	"fmt"

	dapr "github.com/dapr/go-sdk/client"
)

type bindingInvoker interface {
	InvokeOutputBinding(ctx context.Context, in *dapr.InvokeBindingRequest) error
}

// DaprSMTPTransport relays through a Dapr SMTP output binding. The relay
// host and its username/password live in the binding component, not here.
type DaprSMTPTransport struct {
	client  bindingInvoker
	binding string
}

func NewDaprSMTPTransport(client bindingInvoker, binding string) *DaprSMTPTransport {
	return &DaprSMTPTransport{client: client, binding: binding}
}

func (t *DaprSMTPTransport) Name() string { return "dapr-smtp" }

func (t *DaprSMTPTransport) Send(ctx context.Context, msg Message) error {
	err := t.client.InvokeOutputBinding(ctx, &dapr.InvokeBindingRequest{
		Name:      t.binding,
		Operation: "create",
		Data:      []byte(msg.HTMLBody),
		Metadata: map[string]string{
			"emailFrom": msg.From,
			"emailTo":   msg.To,
			"subject":   msg.Subject,
		},
	})
	if err != nil {
		return fmt.Errorf("dapr binding %s: %w", t.binding, err)
	}
	return nil
}
