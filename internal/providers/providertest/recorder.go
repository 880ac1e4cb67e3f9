// Package providertest has in-process senders that record what they were asked to deliver.
package providertest

import (
	"context"
	"sync"

	"github.com/bluewise/internal/providers"
)

// SMS records outbound text messages and answers with Result
type SMS struct {
	mu     sync.Mutex
	Result providers.SendResult
	Sent   []providers.SMS
}

func (s *SMS) Name() string { return "telnyx" }

func (s *SMS) SendSMS(_ context.Context, msg providers.SMS) providers.SendResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Sent = append(s.Sent, msg)
	return s.Result
}

// Email records outbound emails and answers with Result
type Email struct {
	mu     sync.Mutex
	Result providers.SendResult
	Sent   []providers.Email
}

func (e *Email) Name() string { return "mailgun" }

func (e *Email) SendEmail(_ context.Context, msg providers.Email) providers.SendResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Sent = append(e.Sent, msg)
	return e.Result
}

// Accepting returns an SMS and an Email sender that succeed with the given id
func Accepting(id string) (*SMS, *Email) {
	ok := providers.SendResult{Success: true, ProviderMessageID: id}
	return &SMS{Result: ok}, &Email{Result: ok}
}
