package telnyx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/bluewise/internal/providers"
)

const (
	DefaultBaseURL = "https://api.telnyx.com"
	DefaultTimeout = 15 * time.Second
	DefaultRate    = 5
)

// Config configures the Telnyx messaging client
type Config struct {
	APIKey        string
	BaseURL       string
	Timeout       time.Duration
	RatePerSecond float64
}

// Sender posts SMS through the Telnyx v2 messages API
type Sender struct {
	apiKey      string
	baseURL     string
	httpClient  *http.Client
	RateLimiter *rate.Limiter
}

var _ providers.SMSSender = (*Sender)(nil)

// New creates a Telnyx sender
func New(cfg Config) *Sender {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = DefaultRate
	}
	burst := int(cfg.RatePerSecond)
	if burst < 1 {
		burst = 1
	}
	return &Sender{
		apiKey:      strings.TrimSpace(cfg.APIKey),
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		RateLimiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst),
	}
}

func (s *Sender) Name() string { return "telnyx" }

type messageRequest struct {
	To   string `json:"to"`
	From string `json:"from"`
	Text string `json:"text"`
}

type messageResponse struct {
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
	Errors []struct {
		Code   string `json:"code"`
		Title  string `json:"title"`
		Detail string `json:"detail"`
	} `json:"errors"`
	Message string `json:"message"`
}

// SendSMS sends one message. It never retries.
func (s *Sender) SendSMS(ctx context.Context, msg providers.SMS) providers.SendResult {
	logger := zerolog.Ctx(ctx)

	if s.apiKey == "" {
		return providers.Failed("Missing TELNYX_API_KEY", nil)
	}
	if strings.TrimSpace(msg.To) == "" || strings.TrimSpace(msg.Body) == "" || strings.TrimSpace(msg.From) == "" {
		return providers.Failed("Missing to/body/from", nil)
	}

	if err := s.RateLimiter.Wait(ctx); err != nil {
		return providers.Failed(fmt.Sprintf("Telnyx send aborted: %v", err), nil)
	}

	payload, err := json.Marshal(messageRequest{To: msg.To, From: msg.From, Text: msg.Body})
	if err != nil {
		return providers.Failed(fmt.Sprintf("failed to encode request: %v", err), nil)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v2/messages", bytes.NewReader(payload))
	if err != nil {
		return providers.Failed(fmt.Sprintf("failed to create request: %v", err), nil)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := s.httpClient.Do(req)
	if err != nil {
		logger.Warn().Err(err).Dur("elapsed", time.Since(start)).Msg("Telnyx request failed")
		return providers.Failed(fmt.Sprintf("Telnyx send failed: %v", err), nil)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	raw := providers.RawBody(body)

	var parsed messageResponse
	_ = json.Unmarshal(body, &parsed)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errMsg := providers.StatusError("Telnyx", resp.StatusCode)
		switch {
		case len(parsed.Errors) > 0 && parsed.Errors[0].Detail != "":
			errMsg = parsed.Errors[0].Detail
		case len(parsed.Errors) > 0 && parsed.Errors[0].Title != "":
			errMsg = parsed.Errors[0].Title
		case parsed.Message != "":
			errMsg = parsed.Message
		}
		logger.Warn().Int("status", resp.StatusCode).Msg("Telnyx rejected message")
		return providers.Failed(errMsg, raw)
	}

	logger.Debug().Int("status", resp.StatusCode).Str("provider_message_id", parsed.Data.ID).Msg("Telnyx accepted message")
	return providers.SendResult{Success: true, ProviderMessageID: parsed.Data.ID, Raw: raw}
}
