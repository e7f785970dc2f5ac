package mailer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testMessage = Message{
	From:     "newsletter@example.com",
	To:       "a@b.com",
	Subject:  "Confirm",
	HTMLBody: "<p>hi</p>",
	TextBody: "hi",
}

func TestPostmarkTransportSend(t *testing.T) {
	var got map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/email", r.URL.Path)
		assert.Equal(t, "server-token", r.Header.Get("X-Postmark-Server-Token"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ErrorCode":0,"Message":"OK"}`))
	}))
	defer server.Close()

	transport := NewPostmarkTransport(server.URL+"/", "server-token", time.Second)
	require.NoError(t, transport.Send(context.Background(), testMessage))

	assert.Equal(t, map[string]string{
		"From":     "newsletter@example.com",
		"To":       "a@b.com",
		"Subject":  "Confirm",
		"HtmlBody": "<p>hi</p>",
		"TextBody": "hi",
	}, got)
}

func TestPostmarkTransportRejectedStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"ErrorCode":406,"Message":"Inactive recipient"}`))
	}))
	defer server.Close()

	err := NewPostmarkTransport(server.URL, "server-token", time.Second).Send(context.Background(), testMessage)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "422")
	assert.Contains(t, err.Error(), "Inactive recipient")
}

func TestPostmarkTransportClientTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	err := NewPostmarkTransport(server.URL, "server-token", 20*time.Millisecond).Send(context.Background(), testMessage)
	assert.Error(t, err)
}
