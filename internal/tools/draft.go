package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/bluewise/internal/llm"
	"github.com/bluewise/internal/store"
	"github.com/bluewise/pkg/models"
)

const lastMessageClip = 700

var purposeHints = map[string]string{
	"confirm_followup": "Confirm the follow-up time and ask for a quick confirmation.",
	"reschedule":       "Ask to reschedule and propose two time options.",
	"ask_more_info":    "Ask 2-3 specific questions needed to proceed.",
	"generic_reply":    "Reply helpfully and move the conversation forward.",
}

var variantStyles = []string{
	"Direct and confident",
	"Warm and consultative",
	"Concise and time-respectful",
}

type draftPayload struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

func (r *Registry) draftReplyTool() Tool {
	return Tool{
		Name:        DraftReply,
		Description: "Draft a client-facing reply (SMS or email) grounded in the selected lead and its latest context.",
		Parameters: object(with(leadSelector(), map[string]any{
			"channel":       enum("Delivery channel", "sms", "email"),
			"purpose":       enum("What the message should achieve", "confirm_followup", "generic_reply", "reschedule", "ask_more_info"),
			"tone":          enum("Tone of voice", "friendly_pro", "direct", "warm"),
			"language":      str("Language code, e.g. en or fr"),
			"extra_context": str("Anything the user asked to include"),
			"variants":      integer("Number of variants, 1 to 3"),
		})),
		Run: r.runDraftReply,
	}
}

func (r *Registry) runDraftReply(ctx context.Context, tenant store.Tenant, args Args) (models.Envelope, error) {
	logger := zerolog.Ctx(ctx)

	res, err := resolveLead(ctx, tenant, args)
	if err != nil {
		return models.Envelope{}, err
	}
	top, ok := res.Top()
	if !res.Found() || !ok {
		return models.Envelope{}, models.NewResolutionError("Could not resolve which lead to draft for. Mention the lead's name, email, phone (or set Active lead).")
	}
	lead := top.Lead

	channel := args.String("channel")
	if channel != models.ChannelSMS && channel != models.ChannelEmail {
		channel = models.ChannelSMS
		if lead.Email != "" {
			channel = models.ChannelEmail
		}
	}
	sendTo := lead.Phone
	if channel == models.ChannelEmail {
		sendTo = lead.Email
	}

	var followup *models.Task
	pending, err := tenant.Data.ListTasks(ctx, tenant.CustomerID, store.TaskFilter{LeadID: lead.ID, Status: models.TaskPending, Limit: 1})
	if err != nil {
		logger.Warn().Err(err).Int64("lead_id", lead.ID).Msg("Draft context: tasks unavailable")
	} else if len(pending) > 0 {
		followup = &pending[0]
	}

	lastText := ""
	last, err := tenant.Data.ListMessages(ctx, tenant.CustomerID, store.MessageFilter{LeadID: lead.ID, Limit: 1, Newest: true})
	if err != nil {
		logger.Warn().Err(err).Int64("lead_id", lead.ID).Msg("Draft context: messages unavailable")
	} else if len(last) > 0 {
		lastText = clip(collapse(last[0].Body), lastMessageClip, "")
	}

	purpose := args.String("purpose")
	if _, ok := purposeHints[purpose]; !ok {
		purpose = "confirm_followup"
	}
	tone := args.String("tone")
	if tone == "" {
		tone = "friendly_pro"
	}
	language := strings.ToLower(args.String("language"))
	if language == "" {
		language = strings.ToLower(lead.Language)
	}
	if language == "" {
		language = "en"
	}

	ctxLines := []string{fmt.Sprintf("Lead: #%d", lead.ID)}
	if lead.Name != "" {
		ctxLines = append(ctxLines, "Name: "+lead.Name)
	}
	if lead.Phone != "" {
		ctxLines = append(ctxLines, "Phone: "+lead.Phone)
	}
	if lead.Email != "" {
		ctxLines = append(ctxLines, "Email: "+lead.Email)
	}
	if followup != nil {
		ctxLines = append(ctxLines, fmt.Sprintf("Open follow-up: type=%s due=%s", followup.Type, r.deps.Policy.FormatLocal(followup.DueAt)))
	} else {
		ctxLines = append(ctxLines, "Open follow-up: none")
	}
	if lastText != "" {
		ctxLines = append(ctxLines, fmt.Sprintf("Last message snippet: %q", lastText))
	} else {
		ctxLines = append(ctxLines, "Last message snippet: none")
	}
	if extra := args.String("extra_context"); extra != "" {
		ctxLines = append(ctxLines, "User request: "+extra)
	}
	if r.deps.SenderName != "" {
		ctxLines = append(ctxLines, "Sign as: "+r.deps.SenderName)
	}

	userPrompt := r.draftPrompt(channel, language, tone, purposeHints[purpose], strings.Join(ctxLines, "\n"))

	if r.deps.LLM == nil {
		return models.Envelope{}, models.NewExternalFailure("Language model is not configured.", nil)
	}

	count := clamp(args.Int("variants"), 2, 1, len(variantStyles))
	variants := make([]models.DraftVariant, 0, count)
	for i := 0; i < count; i++ {
		temperature := 0.55
		if i == 0 {
			temperature = 0.35
		}
		system := "You draft client-facing messages for a trades CRM. " +
			"Be persuasive but honest. Be precise and do not invent facts. " +
			fmt.Sprintf("Variant style: %s.", variantStyles[i])

		raw, err := r.deps.LLM.Complete(ctx, system, userPrompt, temperature)
		if err != nil {
			return models.Envelope{}, models.NewExternalFailure("Failed to draft a reply.", err)
		}
		variants = append(variants, r.draftVariant(ctx, i, channel, language, lead, raw))
	}

	logger.Debug().Int64("lead_id", lead.ID).Str("channel", channel).Int("variants", len(variants)).Msg("Draft ready")

	return models.Envelope{
		Intent:     DraftReply,
		ResultType: models.ResultDraftReply,
		Title:      "Draft reply",
		Items: []models.Item{models.DraftReply{
			LeadID:      lead.ID,
			MatchReason: res.MatchReason,
			Channel:     channel,
			To:          sendTo,
			Purpose:     purpose,
			Tone:        tone,
			Language:    language,
			Variants:    variants,
		}},
		AISummary: fmt.Sprintf("Draft ready for lead #%d%s.", lead.ID, matchedBy(res.MatchReason)),
	}, nil
}

func (r *Registry) draftPrompt(channel, language, tone, goal, contextBlock string) string {
	format := "Output STRICT JSON only: { \"body\": \"...\" }. No markdown, no backticks. " +
		fmt.Sprintf("Body max %d characters. No emojis.", r.deps.Policy.SMSSoftLimit)
	if channel == models.ChannelEmail {
		format = `Output STRICT JSON only:
{
  "subject": "...",
  "body": "..."
}

Rules for EMAIL:
- Subject is REQUIRED and must be non-empty
- Subject must be sales-oriented and specific (no generic subjects)
- Body must expand on the subject
- No markdown, no backticks`
	}

	langLine := "English"
	if strings.HasPrefix(language, "fr") {
		langLine = "French"
	}

	return fmt.Sprintf(`%s
Language: %s.
Tone: %s.
Goal: %s

Sales framework:
- Open with relevance (why this is about them)
- One clear value/outcome of the meeting
- One brief authority/credibility cue (no fake claims)
- One clear CTA (confirm time or propose alternative)

Rules:
- If a follow-up time exists, include it clearly.
- If no follow-up time exists, ask what time works.
- If you don't know their name, use a neutral greeting.
- Do not invent facts.

Context:
%s

Now output the JSON:`, format, langLine, strings.ReplaceAll(tone, "_", " "), goal, contextBlock)
}

func (r *Registry) draftVariant(ctx context.Context, i int, channel, language string, lead models.Lead, raw string) models.DraftVariant {
	logger := zerolog.Ctx(ctx)

	var payload draftPayload
	if err := llm.ExtractJSON(raw, &payload); err != nil {
		logger.Warn().Err(err).Int("variant", i+1).Msg("Draft JSON unparseable, using plain text")
		payload = draftPayload{Body: llm.CleanText(raw)}
	}

	v := models.DraftVariant{
		Label: fmt.Sprintf("v%d", i+1),
		Body:  strings.TrimSpace(payload.Body),
	}
	if v.Body == "" {
		logger.Warn().Int("variant", i+1).Msg("Draft body empty, using a generic check-in")
		v.Body = fallbackDraftBody(lead, language)
	}
	if channel == models.ChannelSMS {
		if r.deps.Policy.ExceedsSoftLimit(v.Body) {
			logger.Warn().Int("variant", i+1).Int("limit", r.deps.Policy.SMSSoftLimit).Msg("Draft SMS over soft limit, clipped")
			v.Body = clip(v.Body, r.deps.Policy.SMSSoftLimit, "")
		}
		return v
	}

	v.Subject = strings.TrimSpace(payload.Subject)
	if v.Subject == "" {
		name := lead.Name
		if name == "" {
			name = "your project"
		}
		v.Subject = "Quick check-in for " + name
	}
	return v
}

// fallbackDraftBody is a neutral check-in used when the model returns no body
func fallbackDraftBody(lead models.Lead, language string) string {
	first := ""
	if f := strings.Fields(lead.Name); len(f) > 0 {
		first = " " + f[0]
	}
	if strings.HasPrefix(language, "fr") {
		return "Bonjour" + first + ", je fais un suivi concernant votre projet. Quel moment vous convient pour en discuter?"
	}
	return "Hi" + first + ", just following up on your project. What time works for a quick call?"
}
