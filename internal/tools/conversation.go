package tools

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/bluewise/internal/llm"
	"github.com/bluewise/internal/store"
	"github.com/bluewise/pkg/models"
)

const (
	transcriptClip    = 600
	summaryTemp       = 0.2
	defaultSummaryMsg = "Summary unavailable."
	defaultFocus      = "Summarize for a trades CRM: intent, scope, constraints, urgency, and what to do next."
)

const summarySystemPrompt = `You are a CRM copilot. Produce a concise, actionable summary for a trades/service business.
Output STRICT JSON with keys:
{ summary, leadIntent, keyDetails, sentiment, objections, nextSteps, openQuestions, recommendedFollowUpType, urgency }
- summary: 2-5 sentences (plain text)
- leadIntent: short string
- keyDetails: array of bullets (strings)
- sentiment: one of [positive, neutral, negative, mixed]
- objections: array of strings
- nextSteps: array of strings
- openQuestions: array of strings
- recommendedFollowUpType: one of [call, sms, email, none]
- urgency: one of [low, medium, high]
Return ONLY the JSON object. No markdown. No backticks.`

var (
	sentiments    = []string{"positive", "neutral", "negative", "mixed"}
	followUpTypes = []string{"call", "sms", "email", "none"}
	urgencies     = []string{"low", "medium", "high"}
)

type summaryPayload struct {
	Summary                 string   `json:"summary"`
	LeadIntent              string   `json:"leadIntent"`
	KeyDetails              []string `json:"keyDetails"`
	Sentiment               string   `json:"sentiment"`
	Objections              []string `json:"objections"`
	NextSteps               []string `json:"nextSteps"`
	OpenQuestions           []string `json:"openQuestions"`
	RecommendedFollowUpType string   `json:"recommendedFollowUpType"`
	Urgency                 string   `json:"urgency"`
}

func (r *Registry) summarizeConversationTool() Tool {
	return Tool{
		Name:        SummarizeConversation,
		Description: "Summarize the SMS and email conversation with a lead.",
		Parameters: object(with(leadSelector(), map[string]any{
			"days_back":      integer("How far back to look, default 30"),
			"limit_messages": integer("Maximum messages to read, default 60"),
			"focus":          str("What the summary should focus on"),
		})),
		Run: r.runSummarizeConversation,
	}
}

func (r *Registry) runSummarizeConversation(ctx context.Context, tenant store.Tenant, args Args) (models.Envelope, error) {
	logger := zerolog.Ctx(ctx)

	res, err := resolveLead(ctx, tenant, args)
	if err != nil {
		return models.Envelope{}, err
	}
	if !res.Found() {
		return models.Envelope{}, models.NewResolutionError("Could not resolve which lead to summarize. Please mention the lead's name, email, or phone.")
	}

	maxMsgs := clamp(args.Int("limit_messages"), 60, 10, 200)
	daysBack := clamp(args.Int("days_back"), 30, 1, 365)
	since := r.now().Add(-time.Duration(daysBack) * 24 * time.Hour)

	msgs, err := tenant.Data.ListMessages(ctx, tenant.CustomerID, store.MessageFilter{
		LeadID: res.LeadID,
		Since:  since,
		Limit:  maxMsgs,
		Newest: true,
	})
	if err != nil {
		return models.Envelope{}, models.NewExternalFailure("Failed to load messages for this lead.", err)
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}

	envelope := models.Envelope{
		Intent:     SummarizeConversation,
		ResultType: models.ResultConversationSummary,
		Title:      "Conversation summary",
	}

	if len(msgs) == 0 {
		envelope.Items = []models.Item{models.ConversationSummary{
			LeadID:                  res.LeadID,
			MatchReason:             res.MatchReason,
			DaysBack:                daysBack,
			Summary:                 "No messages found in the selected time range.",
			LeadIntent:              "unknown",
			KeyDetails:              []string{},
			Sentiment:               "neutral",
			Objections:              []string{},
			NextSteps:               []string{},
			OpenQuestions:           []string{},
			RecommendedFollowUpType: "none",
			Urgency:                 "low",
		}}
		envelope.AISummary = fmt.Sprintf("No messages found for lead #%d in the last %d day(s).", res.LeadID, daysBack)
		return envelope, nil
	}

	if r.deps.LLM == nil {
		return models.Envelope{}, models.NewExternalFailure("Language model is not configured.", nil)
	}

	focus := args.String("focus")
	if focus == "" {
		focus = defaultFocus
	}
	user := fmt.Sprintf("FOCUS:\n%s\n\nTRANSCRIPT:\n%s", focus, Transcript(msgs))

	raw, err := r.deps.LLM.Complete(ctx, summarySystemPrompt, user, summaryTemp)
	if err != nil {
		return models.Envelope{}, models.NewExternalFailure("Failed to summarize the conversation.", err)
	}

	payload := parseSummary(ctx, raw)
	logger.Debug().
		Int64("lead_id", res.LeadID).
		Int("messages", len(msgs)).
		Int("summary_chars", utf8.RuneCountInString(payload.Summary)).
		Msg("Conversation summarized")

	envelope.Items = []models.Item{models.ConversationSummary{
		LeadID:                  res.LeadID,
		MatchReason:             res.MatchReason,
		DaysBack:                daysBack,
		MessageCount:            len(msgs),
		Summary:                 payload.Summary,
		LeadIntent:              payload.LeadIntent,
		KeyDetails:              payload.KeyDetails,
		Sentiment:               payload.Sentiment,
		Objections:              payload.Objections,
		NextSteps:               payload.NextSteps,
		OpenQuestions:           payload.OpenQuestions,
		RecommendedFollowUpType: payload.RecommendedFollowUpType,
		Urgency:                 payload.Urgency,
	}}
	envelope.AISummary = payload.Summary + matchedBy(res.MatchReason)
	return envelope, nil
}

// parseSummary reads each field on its own so one mistyped field only loses itself
func parseSummary(ctx context.Context, raw string) summaryPayload {
	var payload summaryPayload
	var fields map[string]any
	if err := llm.ExtractJSON(raw, &fields); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Int("bytes", len(raw)).Msg("Summary JSON unparseable, using plain text")
		cleaned := llm.CleanText(raw)
		if cleaned == "{}" {
			cleaned = ""
		}
		payload = summaryPayload{Summary: cleaned, LeadIntent: "unknown"}
	} else {
		payload = summaryPayload{
			Summary:                 textField(fields["summary"]),
			LeadIntent:              textField(fields["leadIntent"]),
			KeyDetails:              listField(fields["keyDetails"]),
			Sentiment:               textField(fields["sentiment"]),
			Objections:              listField(fields["objections"]),
			NextSteps:               listField(fields["nextSteps"]),
			OpenQuestions:           listField(fields["openQuestions"]),
			RecommendedFollowUpType: textField(fields["recommendedFollowUpType"]),
			Urgency:                 textField(fields["urgency"]),
		}
	}

	payload.Summary = strings.TrimSpace(payload.Summary)
	if payload.Summary == "" {
		payload.Summary = defaultSummaryMsg
	}
	if strings.TrimSpace(payload.LeadIntent) == "" {
		payload.LeadIntent = "unknown"
	}
	payload.Sentiment = oneOf(payload.Sentiment, sentiments, "neutral")
	payload.RecommendedFollowUpType = oneOf(payload.RecommendedFollowUpType, followUpTypes, "none")
	payload.Urgency = oneOf(payload.Urgency, urgencies, "low")
	payload.KeyDetails = nonNil(payload.KeyDetails)
	payload.Objections = nonNil(payload.Objections)
	payload.NextSteps = nonNil(payload.NextSteps)
	payload.OpenQuestions = nonNil(payload.OpenQuestions)
	return payload
}

// Transcript renders messages one per line as "[iso] (CH) Who | Subject: s: text"
func Transcript(msgs []models.Message) string {
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		who := "Unknown"
		switch strings.ToLower(m.Direction) {
		case models.DirectionOutbound:
			who = "You"
		case models.DirectionInbound:
			who = "Lead"
		}
		when := ""
		if !m.CreatedAt.IsZero() {
			when = m.CreatedAt.UTC().Format(time.RFC3339)
		}
		ch := "MSG"
		if m.Channel != "" {
			ch = strings.ToUpper(m.Channel)
		}
		subject := ""
		if m.Subject != "" {
			subject = " | Subject: " + m.Subject
		}
		lines = append(lines, fmt.Sprintf("[%s] (%s) %s%s: %s", when, ch, who, subject, clip(collapse(m.Body), transcriptClip, "…")))
	}
	return strings.Join(lines, "\n")
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func clip(s string, max int, ellipsis string) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max]) + ellipsis
}

func oneOf(v string, allowed []string, def string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	for _, a := range allowed {
		if v == a {
			return v
		}
	}
	return def
}

func textField(v any) string {
	s, _ := v.(string)
	return s
}

// listField accepts a list of strings or a lone string; anything else is empty
func listField(v any) []string {
	switch val := v.(type) {
	case string:
		if s := strings.TrimSpace(val); s != "" {
			return []string{s}
		}
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
		return out
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
