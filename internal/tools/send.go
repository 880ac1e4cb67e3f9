package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/bluewise/internal/metrics"
	"github.com/bluewise/internal/providers"
	"github.com/bluewise/internal/store"
	"github.com/bluewise/pkg/models"
)

// SendRequest is one outbound message to a lead
type SendRequest struct {
	LeadID  int64  `json:"lead_id"`
	Channel string `json:"channel"`
	To      string `json:"to"`
	Subject string `json:"subject,omitempty"`
	Body    string `json:"body"`
}

// validateSend checks the request shape and the SMS hard cap
func (r *Registry) validateSend(req SendRequest) error {
	switch {
	case req.LeadID <= 0:
		return models.NewValidationError("lead_id must be a number.")
	case req.Channel != models.ChannelSMS && req.Channel != models.ChannelEmail:
		return models.NewValidationError("channel must be sms or email.")
	case strings.TrimSpace(req.To) == "":
		return models.NewValidationError("to is required.")
	case strings.TrimSpace(req.Body) == "":
		return models.NewValidationError("body is required.")
	case req.Channel == models.ChannelEmail && strings.TrimSpace(req.Subject) == "":
		return models.NewValidationError("subject is required for email.")
	case req.Channel == models.ChannelSMS:
		return r.deps.Policy.CheckSMS(strings.TrimSpace(req.Body))
	}
	return nil
}

func (r *Registry) sendMessageTool() Tool {
	return Tool{
		Name:        SendMessage,
		Description: "Send a message to a lead by SMS or email and record it. Use after draft_reply when the user wants to send.",
		Parameters: object(map[string]any{
			"lead_id": integer("Lead id"),
			"channel": enum("Delivery channel", "sms", "email"),
			"to":      str("Phone number or email address"),
			"subject": str("Email subject, required for email"),
			"body":    str("Message body"),
		}, "lead_id", "channel", "to", "body"),
		Run: func(ctx context.Context, tenant store.Tenant, args Args) (models.Envelope, error) {
			return r.Send(ctx, tenant, SendRequest{
				LeadID:  args.Int("lead_id"),
				Channel: args.String("channel"),
				To:      args.String("to"),
				Subject: args.String("subject"),
				Body:    args.String("body"),
			})
		},
	}
}

// Send delivers one message through the channel's provider. A provider failure is
// returned as a failed send_result, not as an error. The outbound message row is
// written either way.
func (r *Registry) Send(ctx context.Context, tenant store.Tenant, req SendRequest) (models.Envelope, error) {
	logger := zerolog.Ctx(ctx)

	req.To = strings.TrimSpace(req.To)
	req.Subject = strings.TrimSpace(req.Subject)
	if err := r.validateSend(req); err != nil {
		return models.Envelope{}, err
	}

	if _, err := tenant.Data.GetLead(ctx, tenant.CustomerID, req.LeadID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.Envelope{}, models.NewResolutionError("Lead not found.")
		}
		return models.Envelope{}, models.NewExternalFailure("Failed to verify lead ownership.", err)
	}

	var providerName, from string
	switch req.Channel {
	case models.ChannelSMS:
		providerName = "telnyx"
		if r.deps.SMS != nil {
			providerName = r.deps.SMS.Name()
		}
		number, err := tenant.Data.CustomerSMSNumber(ctx, tenant.CustomerID)
		if err != nil {
			return models.Envelope{}, models.NewExternalFailure("Failed to load the tenant sender number.", err)
		}
		if number == "" {
			return models.Envelope{}, models.NewValidationError("Missing SMS sender number for this tenant.")
		}
		from = number
	case models.ChannelEmail:
		providerName = "mailgun"
		if r.deps.Email != nil {
			providerName = r.deps.Email.Name()
		}
		if r.deps.EmailFrom == "" {
			return models.Envelope{}, models.NewValidationError("Missing email sender address.")
		}
		from = r.deps.EmailFrom
	}

	logID := r.openSendLog(ctx, tenant, req, providerName, from)

	var result providers.SendResult
	switch {
	case req.Channel == models.ChannelSMS && r.deps.SMS != nil:
		result = r.deps.SMS.SendSMS(ctx, providers.SMS{To: req.To, From: from, Body: req.Body})
	case req.Channel == models.ChannelEmail && r.deps.Email != nil:
		result = r.deps.Email.SendEmail(ctx, providers.Email{To: req.To, From: from, Subject: req.Subject, Text: req.Body})
	default:
		result = providers.Failed(fmt.Sprintf("%s provider is not configured", strings.ToUpper(req.Channel)), nil)
	}

	status := "sent"
	if !result.Success {
		status = "failed"
		if result.Error == "" {
			result.Error = "unknown error"
		}
	}
	metrics.RecordSend(req.Channel, status)

	msg := models.Message{
		CustomerID:        tenant.CustomerID,
		LeadID:            req.LeadID,
		Direction:         models.DirectionOutbound,
		Channel:           req.Channel,
		Body:              req.Body,
		Provider:          providerName,
		ProviderMessageID: result.ProviderMessageID,
		Status:            status,
		ToAddress:         req.To,
		FromAddress:       from,
	}
	if req.Channel == models.ChannelEmail {
		msg.Subject = req.Subject
	}
	if !result.Success {
		msg.Error = result.Error
	}
	stored, insertErr := tenant.Data.InsertMessage(ctx, msg)

	if logID != 0 {
		err := tenant.Data.CompleteSendLog(ctx, tenant.CustomerID, logID, store.SendLogResult{
			Success:           result.Success,
			ProviderMessageID: result.ProviderMessageID,
			Error:             msg.Error,
		})
		if err != nil {
			logger.Warn().Err(err).Int64("send_log_id", logID).Msg("Failed to complete send log")
		}
	}

	if insertErr != nil {
		return models.Envelope{}, models.NewExternalFailure("Send completed but failed to persist outbound message.", insertErr)
	}

	logger.Info().
		Int64("lead_id", req.LeadID).
		Str("channel", req.Channel).
		Str("provider", providerName).
		Str("status", status).
		Int("body_chars", len([]rune(req.Body))).
		Msg("Outbound message recorded")

	title := "Message sent"
	summary := fmt.Sprintf("Sent %s to lead #%d.", strings.ToUpper(req.Channel), req.LeadID)
	if !result.Success {
		title = "Message failed"
		summary = fmt.Sprintf("Failed to send %s to lead #%d: %s", strings.ToUpper(req.Channel), req.LeadID, result.Error)
	}

	return models.Envelope{
		Intent:     SendMessage,
		ResultType: models.ResultSendResult,
		Title:      title,
		Items: []models.Item{models.SendResult{
			LeadID:            req.LeadID,
			Channel:           req.Channel,
			To:                req.To,
			From:              from,
			Provider:          providerName,
			ProviderMessageID: result.ProviderMessageID,
			MessageID:         stored.ID,
			CreatedAt:         stored.CreatedAt,
			Status:            status,
			Error:             msg.Error,
		}},
		AISummary: summary,
	}, nil
}

func (r *Registry) openSendLog(ctx context.Context, tenant store.Tenant, req SendRequest, provider, from string) int64 {
	payload, err := json.Marshal(req)
	if err != nil {
		payload = nil
	}
	entry := models.SendLog{
		CustomerID:     tenant.CustomerID,
		LeadID:         req.LeadID,
		Channel:        req.Channel,
		Provider:       provider,
		ToAddress:      req.To,
		FromAddress:    from,
		Body:           req.Body,
		RequestPayload: payload,
	}
	if req.Channel == models.ChannelEmail {
		entry.Subject = req.Subject
	}
	id, err := tenant.Data.InsertSendLog(ctx, entry)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Int64("lead_id", req.LeadID).Msg("Send log insert failed, continuing")
		return 0
	}
	return id
}
