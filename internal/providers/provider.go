// Package providers defines the outbound transports used by the send path.
// Adapters never return Go errors for delivery problems: a failed send is data
// carried in SendResult so it can be persisted next to the message.
package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// SMS is one outbound text message
type SMS struct {
	To   string
	From string
	Body string
}

// Email is one outbound email. Text is always sent; HTML is optional.
type Email struct {
	To      string
	From    string
	Subject string
	Text    string
	HTML    string
	ReplyTo string
}

// SendResult is the outcome of one provider call
type SendResult struct {
	Success           bool            `json:"success"`
	ProviderMessageID string          `json:"provider_message_id,omitempty"`
	Error             string          `json:"error,omitempty"`
	Raw               json.RawMessage `json:"raw,omitempty"`
}

// Failed builds an unsuccessful result
func Failed(msg string, raw json.RawMessage) SendResult {
	return SendResult{Success: false, Error: msg, Raw: raw}
}

// SMSSender delivers text messages
type SMSSender interface {
	Name() string
	SendSMS(ctx context.Context, msg SMS) SendResult
}

// EmailSender delivers emails
type EmailSender interface {
	Name() string
	SendEmail(ctx context.Context, msg Email) SendResult
}

// RawBody keeps a provider response as JSON. Non-JSON bodies are wrapped as {"rawText": ...}.
func RawBody(body []byte) json.RawMessage {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return nil
	}
	if json.Valid([]byte(trimmed)) {
		return json.RawMessage(trimmed)
	}
	wrapped, err := json.Marshal(map[string]string{"rawText": trimmed})
	if err != nil {
		return nil
	}
	return wrapped
}

// StatusError is the fallback error text when a provider response carries no message
func StatusError(provider string, status int) string {
	text := http.StatusText(status)
	if text == "" {
		text = "unknown status"
	}
	return fmt.Sprintf("%s error (%d %s)", provider, status, text)
}
