package mailgun

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/bluewise/internal/providers"
)

const (
	BaseURLUS      = "https://api.mailgun.net"
	BaseURLEU      = "https://api.eu.mailgun.net"
	DefaultTimeout = 12 * time.Second
)

// Config configures the Mailgun client
type Config struct {
	APIKey string
	Domain string
	// Region is "us" or "eu"
	Region string
	// From is used when a message carries no sender
	From    string
	Timeout time.Duration
	// BaseURL overrides the region endpoint
	BaseURL string
}

// Sender posts emails through the Mailgun messages API
type Sender struct {
	cfg        Config
	baseURL    string
	httpClient *http.Client
}

var _ providers.EmailSender = (*Sender)(nil)

// BaseURL returns the API endpoint for a region
func BaseURL(region string) string {
	if strings.EqualFold(strings.TrimSpace(region), "eu") {
		return BaseURLEU
	}
	return BaseURLUS
}

// New creates a Mailgun sender
func New(cfg Config) *Sender {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	cfg.Domain = strings.TrimSpace(cfg.Domain)
	if cfg.From == "" && cfg.Domain != "" {
		cfg.From = fmt.Sprintf("BlueWise AI <sales@%s>", cfg.Domain)
	}
	base := cfg.BaseURL
	if base == "" {
		base = BaseURL(cfg.Region)
	}
	return &Sender{
		cfg:        cfg,
		baseURL:    strings.TrimRight(base, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

func (s *Sender) Name() string { return "mailgun" }

// DefaultFrom returns the configured sender address
func (s *Sender) DefaultFrom() string { return s.cfg.From }

type messageResponse struct {
	ID      string `json:"id"`
	Message string `json:"message"`
	Error   string `json:"error"`
	Details string `json:"details"`
}

// SendEmail sends one email. It never retries.
func (s *Sender) SendEmail(ctx context.Context, msg providers.Email) providers.SendResult {
	logger := zerolog.Ctx(ctx)

	if s.cfg.APIKey == "" {
		return providers.Failed("Missing MAILGUN_API_KEY", nil)
	}
	if s.cfg.Domain == "" {
		return providers.Failed("Missing MAILGUN_DOMAIN", nil)
	}
	to := strings.TrimSpace(msg.To)
	subject := strings.TrimSpace(msg.Subject)
	if to == "" || subject == "" || msg.Text == "" {
		return providers.Failed("Missing to/subject/body", nil)
	}

	from := strings.TrimSpace(msg.From)
	if from == "" {
		from = s.cfg.From
	}

	form := url.Values{}
	form.Set("from", from)
	form.Set("to", to)
	form.Set("subject", subject)
	form.Set("text", msg.Text)
	if msg.HTML != "" {
		form.Set("html", msg.HTML)
	}
	if replyTo := strings.TrimSpace(msg.ReplyTo); replyTo != "" {
		form.Set("h:Reply-To", replyTo)
	}

	endpoint := fmt.Sprintf("%s/v3/%s/messages", s.baseURL, url.PathEscape(s.cfg.Domain))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return providers.Failed(fmt.Sprintf("failed to create request: %v", err), nil)
	}
	req.SetBasicAuth("api", s.cfg.APIKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		var netErr interface{ Timeout() bool }
		if errors.As(err, &netErr) && netErr.Timeout() {
			logger.Warn().Dur("timeout", s.cfg.Timeout).Msg("Mailgun request timed out")
			return providers.Failed(fmt.Sprintf("Mailgun timeout after %dms", s.cfg.Timeout.Milliseconds()), nil)
		}
		logger.Warn().Err(err).Msg("Mailgun request failed")
		return providers.Failed(fmt.Sprintf("Mailgun send failed: %v", err), nil)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	raw := providers.RawBody(body)

	var parsed messageResponse
	_ = json.Unmarshal(body, &parsed)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errMsg := providers.StatusError("Mailgun", resp.StatusCode)
		switch {
		case parsed.Message != "":
			errMsg = parsed.Message
		case parsed.Error != "":
			errMsg = parsed.Error
		case parsed.Details != "":
			errMsg = parsed.Details
		}
		logger.Warn().Int("status", resp.StatusCode).Msg("Mailgun rejected message")
		return providers.Failed(errMsg, raw)
	}

	logger.Debug().Int("status", resp.StatusCode).Str("provider_message_id", parsed.ID).Msg("Mailgun queued message")
	return providers.SendResult{Success: true, ProviderMessageID: parsed.ID, Raw: raw}
}
