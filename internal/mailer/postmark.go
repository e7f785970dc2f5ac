package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// PostmarkTransport submits messages to a Postmark-compatible HTTP API,
// authenticating with a server token.
type PostmarkTransport struct {
	baseURL     string
	serverToken string
	httpClient  *http.Client
}

func NewPostmarkTransport(baseURL, serverToken string, timeout time.Duration) *PostmarkTransport {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &PostmarkTransport{
		baseURL:     strings.TrimRight(baseURL, "/"),
		serverToken: serverToken,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type sendEmailRequest struct {
	From     string `json:"From"`
	To       string `json:"To"`
	Subject  string `json:"Subject"`
	HtmlBody string `json:"HtmlBody"`
	TextBody string `json:"TextBody"`
}

func (t *PostmarkTransport) Name() string { return "postmark" }

func (t *PostmarkTransport) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(sendEmailRequest{
		From:     msg.From,
		To:       msg.To,
		Subject:  msg.Subject,
		HtmlBody: msg.HTMLBody,
		TextBody: msg.TextBody,
	})
	if err != nil {
		return fmt.Errorf("postmark: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/email", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("postmark: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Postmark-Server-Token", t.serverToken)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("postmark: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("postmark: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
