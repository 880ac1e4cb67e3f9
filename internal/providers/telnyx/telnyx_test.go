package telnyx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bluewise/internal/providers"
)

func TestSendSMSSuccess(t *testing.T) {
	var got messageRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v2/messages", r.URL.Path)
		assert.Equal(t, "Bearer key-123", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"id":"msg-42","record_type":"message"}}`))
	}))
	defer server.Close()

	s := New(Config{APIKey: "key-123", BaseURL: server.URL})
	res := s.SendSMS(context.Background(), providers.SMS{To: "+15145550101", From: "+15140000000", Body: "Hi Marc"})

	require.True(t, res.Success, res.Error)
	assert.Equal(t, "msg-42", res.ProviderMessageID)
	assert.Equal(t, messageRequest{To: "+15145550101", From: "+15140000000", Text: "Hi Marc"}, got)
	assert.JSONEq(t, `{"data":{"id":"msg-42","record_type":"message"}}`, string(res.Raw))
}

func TestSendSMSErrorPrecedence(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"detail", 422, `{"errors":[{"title":"Invalid","detail":"Invalid destination number"}]}`, "Invalid destination number"},
		{"title", 422, `{"errors":[{"title":"Invalid"}]}`, "Invalid"},
		{"message", 401, `{"message":"Authentication failed"}`, "Authentication failed"},
		{"status text", 503, `not json`, "Telnyx error (503 Service Unavailable)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			res := New(Config{APIKey: "k", BaseURL: server.URL}).SendSMS(context.Background(), providers.SMS{To: "1", From: "2", Body: "x"})
			assert.False(t, res.Success)
			assert.Equal(t, tt.want, res.Error)
			assert.Empty(t, res.ProviderMessageID)
			assert.NotEmpty(t, res.Raw)
		})
	}
}

func TestSendSMSMissingInput(t *testing.T) {
	res := New(Config{}).SendSMS(context.Background(), providers.SMS{To: "1", From: "2", Body: "x"})
	assert.Equal(t, "Missing TELNYX_API_KEY", res.Error)

	res = New(Config{APIKey: "k"}).SendSMS(context.Background(), providers.SMS{To: "1", Body: "x"})
	assert.Equal(t, "Missing to/body/from", res.Error)
}

func TestSendSMSTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	res := New(Config{APIKey: "k", BaseURL: server.URL, Timeout: 20 * time.Millisecond}).
		SendSMS(context.Background(), providers.SMS{To: "1", From: "2", Body: "x"})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "Telnyx send failed")
}
