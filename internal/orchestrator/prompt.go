package orchestrator

import (
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"

	"github.com/bluewise/pkg/models"
)

const assistantRules = "You are BlueWise Brain, an assistant for a trades CRM. " +
	"When the user asks about leads, conversations, follow-ups, drafting replies, or sending messages, " +
	"you MUST use tools to query or update the database instead of guessing. " +
	"Leads are the primary CRM entity; inbox threads and SMS/email messages are linked to a lead. " +
	"You can manage follow-up tasks (create, list, update/complete/cancel/reschedule). " +
	"You can draft client replies (SMS/email) grounded in the lead and its latest context via draft_reply. " +
	"You can send messages via send_message (SMS or email); every send is recorded on the lead. " +
	"LEAD RESOLUTION RULE: If you are not 100% sure which lead the user means, call find_lead first. " +
	"Prefer exact identifiers: email (exact) > phone (exact) > phone last-7 > name fuzzy match. " +
	"CHAINING RULE: If the user asked to SEND and you need a draft, call draft_reply first then send_message in the same flow. " +
	"If multiple leads match a name, proceed with the top match returned by find_lead and mention which lead_id you chose. "

// systemPrompt is the assistant rules plus the current local time
func systemPrompt(now time.Time, loc *time.Location) string {
	return assistantRules +
		fmt.Sprintf("CURRENT DATETIME: Right now it is %s in the business's local time. ", now.In(loc).Format(time.RFC3339)) +
		"Interpret 'today/tonight/tomorrow/demain' relative to CURRENT DATETIME. " +
		"DATE RULES: When creating or rescheduling tasks, ALWAYS output scheduled_for_iso/new_scheduled_for_iso " +
		"as valid ISO 8601 with the local UTC offset."
}

// contextMessages describe what the caller remembers from earlier asks
func contextMessages(s models.Session) []string {
	var out []string
	if s.ActiveLeadID > 0 {
		line := fmt.Sprintf("CONTEXT: The UI has an Active lead set: lead_id=%d", s.ActiveLeadID)
		if name := strings.TrimSpace(s.ActiveLeadName); name != "" {
			line += fmt.Sprintf(" name=%q", name)
		}
		out = append(out, line+".")
	}
	if s.LastSummary != nil && s.LastSummary.LeadID > 0 {
		out = append(out, fmt.Sprintf("CONTEXT: The most recent Conversation Summary (if referenced) is for lead_id=%d.", s.LastSummary.LeadID))
	}
	if d := s.LastDraft; d != nil && d.LeadID > 0 {
		out = append(out, fmt.Sprintf("CONTEXT: The most recent draft is a %s for lead_id=%d.", d.Channel, d.LeadID))
	}
	return out
}

const updateSteering = "STEERING: The user wants to change an existing follow-up task. " +
	"Use update_task (complete, cancel or reschedule). Do not list tasks and do not create a new one."

func sendSteering(d *models.LastDraft) string {
	return fmt.Sprintf("STEERING: The user wants to send the most recent draft. "+
		"Call send_message with lead_id=%d and channel=%s; the drafted text will be used as the body.", d.LeadID, d.Channel)
}

// initialMessages builds the conversation sent on the first turn
func initialMessages(system string, ctxLines []string, steering []string, question string) []llms.MessageContent {
	msgs := []llms.MessageContent{llms.TextParts(llms.ChatMessageTypeSystem, system)}
	for _, line := range ctxLines {
		msgs = append(msgs, llms.TextParts(llms.ChatMessageTypeSystem, line))
	}
	for _, line := range steering {
		msgs = append(msgs, llms.TextParts(llms.ChatMessageTypeSystem, line))
	}
	return append(msgs, llms.TextParts(llms.ChatMessageTypeHuman, question))
}
