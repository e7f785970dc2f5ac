package mailer

import (
	"fmt"

	"github.com/osteele/liquid"

	"subscriptions-go/internal/models"
)

const (
	confirmationSubject = `Welcome, {{ name }}! Please confirm your subscription`

	confirmationHTML = `<p>Hi {{ name | escape }},</p>
<p>Thanks for subscribing. Click <a href="{{ confirmation_link }}">here</a> to confirm your subscription.</p>
<p>If you did not sign up, you can ignore this email.</p>`

	confirmationText = `Hi {{ name }},

Thanks for subscribing. Visit {{ confirmation_link }} to confirm your subscription.

If you did not sign up, you can ignore this email.`
)

type confirmationTemplates struct {
	subject *liquid.Template
	html    *liquid.Template
	text    *liquid.Template
}

func parseConfirmationTemplates() (*confirmationTemplates, error) {
	engine := liquid.NewEngine()

	var t confirmationTemplates
	for _, p := range []struct {
		name string
		src  string
		dst  **liquid.Template
	}{
		{"subject", confirmationSubject, &t.subject},
		{"html", confirmationHTML, &t.html},
		{"text", confirmationText, &t.text},
	} {
		tpl, err := engine.ParseString(p.src)
		if err != nil {
			return nil, fmt.Errorf("parse %s template: %w", p.name, err)
		}
		*p.dst = tpl
	}
	return &t, nil
}

func (t *confirmationTemplates) render(from string, name models.SanitizedName, to models.SanitizedEmail, link string) (Message, error) {
	bindings := liquid.Bindings{
		"name":              name.String(),
		"confirmation_link": link,
	}

	subject, err := t.subject.RenderString(bindings)
	if err != nil {
		return Message{}, fmt.Errorf("subject: %w", err)
	}
	html, err := t.html.RenderString(bindings)
	if err != nil {
		return Message{}, fmt.Errorf("html body: %w", err)
	}
	text, err := t.text.RenderString(bindings)
	if err != nil {
		return Message{}, fmt.Errorf("text body: %w", err)
	}

	return Message{
		From:     from,
		To:       to.String(),
		Subject:  subject,
		HTMLBody: html,
		TextBody: text,
	}, nil
}
