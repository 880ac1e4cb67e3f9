package tools

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bluewise/pkg/models"
)

func draftItem(t *testing.T, env models.Envelope) models.DraftReply {
	t.Helper()
	require.Len(t, env.Items, 1)
	item, ok := env.Items[0].(models.DraftReply)
	require.True(t, ok)
	return item
}

func TestDraftReplyEmailDefaults(t *testing.T) {
	f := newFixture(t)
	f.mem.AddTask(models.Task{CustomerID: 1, LeadID: 5, Type: "call", DueAt: time.Date(2025, 6, 3, 14, 0, 0, 0, time.UTC), Status: models.TaskPending})
	f.mem.AddMessage(models.Message{CustomerID: 1, LeadID: 5, Direction: models.DirectionInbound, Channel: models.ChannelSMS, Body: "Is Tuesday still ok?", CreatedAt: now.Add(-time.Hour)})

	var prompts []string
	f.model.Completion = func(system, user string) string {
		prompts = append(prompts, user)
		return `{"subject": "", "body": "Hi Marc, confirming Tuesday at 2pm."}`
	}

	env, err := f.dispatch(t, DraftReply, `{"lead_id": 5}`)
	require.NoError(t, err)

	item := draftItem(t, env)
	assert.Equal(t, models.ChannelEmail, item.Channel, "email when the lead has one")
	assert.Equal(t, "marc@example.com", item.To)
	assert.Equal(t, "confirm_followup", item.Purpose)
	assert.Equal(t, "friendly_pro", item.Tone)
	assert.Equal(t, "en", item.Language)
	require.Len(t, item.Variants, 2)
	assert.Equal(t, "v1", item.Variants[0].Label)
	assert.Equal(t, "v2", item.Variants[1].Label)
	assert.Equal(t, "Quick check-in for Marc Tremblay", item.Variants[0].Subject)
	assert.Equal(t, "Hi Marc, confirming Tuesday at 2pm.", item.Variants[0].Body)
	assert.Equal(t, "Draft ready for lead #5.", env.AISummary)

	calls := f.model.CompletionCalls()
	require.Len(t, calls, 2)
	assert.InDelta(t, 0.35, calls[0].Options.Temperature, 1e-9)
	assert.InDelta(t, 0.55, calls[1].Options.Temperature, 1e-9)

	require.NotEmpty(t, prompts)
	assert.Contains(t, prompts[0], "Subject is REQUIRED")
	assert.Contains(t, prompts[0], "Open follow-up: type=call due=2025-06-03, 14:00")
	assert.Contains(t, prompts[0], `Last message snippet: "Is Tuesday still ok?"`)
	assert.Contains(t, prompts[0], "Language: English.")
}

func TestDraftReplySMSIsClippedToSoftLimit(t *testing.T) {
	f := newFixture(t)
	var prompt string
	f.model.Completion = func(_, user string) string {
		prompt = user
		return "```json\n{\"body\": \"" + strings.Repeat("b", 400) + "\"}\n```"
	}

	env, err := f.dispatch(t, DraftReply, `{"phone": "+1 (438) 555-0199", "variants": 7, "purpose": "reschedule"}`)
	require.NoError(t, err)

	item := draftItem(t, env)
	assert.Equal(t, models.ChannelSMS, item.Channel)
	assert.Equal(t, "+1 438 555 0199", item.To)
	assert.Equal(t, "fr", item.Language)
	require.Len(t, item.Variants, 3, "variants are capped at 3")
	for _, v := range item.Variants {
		assert.Len(t, []rune(v.Body), 320)
		assert.Empty(t, v.Subject)
	}
	assert.Equal(t, "Draft ready for lead #6 (matched by phone_exact).", env.AISummary)
	assert.Contains(t, prompt, "Language: French.")
	assert.Contains(t, prompt, "Body max 320 characters.")
	assert.Contains(t, prompt, "propose two time options")
	assert.Contains(t, prompt, "Open follow-up: none")
}

func TestDraftReplyUnresolved(t *testing.T) {
	f := newFixture(t)

	_, err := f.dispatch(t, DraftReply, `{"lead_name": "Nobody"}`)
	require.Error(t, err)
	assert.True(t, models.IsResolution(err))
	assert.Equal(t, "Could not resolve which lead to draft for. Mention the lead's name, email, phone (or set Active lead).", models.UserMessage(err))
	assert.Empty(t, f.model.Calls)
}

func TestDraftReplyEmptyBodyFallsBack(t *testing.T) {
	f := newFixture(t)
	f.model.Completion = func(_, _ string) string { return `{"body": "   "}` }

	env, err := f.dispatch(t, DraftReply, `{"lead_id": 6, "variants": 1}`)
	require.NoError(t, err)
	item := draftItem(t, env)
	require.Len(t, item.Variants, 1)
	assert.Equal(t, "Bonjour Sophie, je fais un suivi concernant votre projet. Quel moment vous convient pour en discuter?", item.Variants[0].Body)

	f.model.Completion = func(_, _ string) string { return "" }
	env, err = f.dispatch(t, DraftReply, `{"lead_id": 5, "variants": 1}`)
	require.NoError(t, err)
	assert.Equal(t, "Hi Marc, just following up on your project. What time works for a quick call?", draftItem(t, env).Variants[0].Body)
}
