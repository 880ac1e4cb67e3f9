package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/bluewise/internal/guardrails"
	"github.com/bluewise/internal/llm"
	"github.com/bluewise/internal/llm/llmtest"
	"github.com/bluewise/internal/providers/providertest"
	"github.com/bluewise/internal/store"
	"github.com/bluewise/internal/tools"
	"github.com/bluewise/pkg/models"
)

var now = time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

type harness struct {
	mem    *store.Memory
	tenant store.Tenant
	model  *llmtest.FakeModel
	sms    *providertest.SMS
	orch   *Orchestrator
}

func newHarness(t *testing.T, turns ...*llms.ContentChoice) *harness {
	t.Helper()

	mem := store.NewMemory()
	mem.SetClock(func() time.Time { return now })
	mem.AddLead(models.Lead{ID: 5, CustomerID: 1, Name: "Marc Tremblay", Email: "marc@example.com", Phone: "+1 514 555 0101", Status: "new", CreatedAt: now.Add(-72 * time.Hour)})
	mem.AddLead(models.Lead{ID: 6, CustomerID: 1, Name: "Sophie Marchand", Phone: "+1 438 555 0199", Status: "active", Language: "fr", CreatedAt: now.Add(-48 * time.Hour)})
	mem.AddLead(models.Lead{ID: 42, CustomerID: 1, Name: "Luc Gagnon", Phone: "+1 450 555 0142", Status: "new", CreatedAt: now.Add(-24 * time.Hour)})
	mem.AddLead(models.Lead{ID: 9, CustomerID: 2, Name: "Marc Tremblay", Email: "marc@example.com", CreatedAt: now})
	mem.SetCustomerSMSNumber(1, "+15140000000")
	mem.AddMessage(models.Message{CustomerID: 1, LeadID: 5, Direction: models.DirectionInbound, Channel: models.ChannelSMS, Body: "Can you come Tuesday?", CreatedAt: now.Add(-3 * time.Hour)})

	model := &llmtest.FakeModel{Turns: turns}
	client := llm.NewClient(model, llm.ClientOptions{})
	sms, email := providertest.Accepting("msg-1")
	clock := func() time.Time { return now }

	reg := tools.NewRegistry(tools.Deps{
		LLM:       client,
		SMS:       sms,
		Email:     email,
		Policy:    guardrails.DefaultPolicy(time.UTC),
		EmailFrom: "BlueWise AI <sales@mg.example.com>",
		Now:       clock,
	})

	return &harness{
		mem:    mem,
		tenant: store.NewTenant(1, mem),
		model:  model,
		sms:    sms,
		orch:   New(client, reg, Config{Location: time.UTC, Now: clock}),
	}
}

func (h *harness) ask(t *testing.T, question string, session models.Session) (models.Envelope, error) {
	t.Helper()
	return h.orch.Ask(context.Background(), h.tenant, question, session)
}

func call(id, name, args string) *llms.ContentChoice {
	return llmtest.ToolTurn(llmtest.ToolCall(id, name, args))
}

func systemTexts(c llmtest.Call) []string {
	var out []string
	for _, m := range c.Messages {
		if m.Role != llms.ChatMessageTypeSystem {
			continue
		}
		for _, p := range m.Parts {
			if text, ok := p.(llms.TextContent); ok {
				out = append(out, text.Text)
			}
		}
	}
	return out
}

func toolResponses(c llmtest.Call) []llms.ToolCallResponse {
	var out []llms.ToolCallResponse
	for _, m := range c.Messages {
		for _, p := range m.Parts {
			if r, ok := p.(llms.ToolCallResponse); ok {
				out = append(out, r)
			}
		}
	}
	return out
}

const summaryJSON = `{"summary": "Marc wants a Tuesday visit.", "leadIntent": "book visit", "sentiment": "positive", "urgency": "medium"}`

func TestAskSummarizeWithActiveLead(t *testing.T) {
	h := newHarness(t, call("c1", tools.SummarizeConversation, `{}`))
	h.model.Completion = func(string, string) string { return summaryJSON }

	env, err := h.ask(t, "Summarize Marc's conversation", models.Session{ActiveLeadID: 5, ActiveLeadName: "Marc Tremblay"})
	require.NoError(t, err)

	assert.Equal(t, tools.SummarizeConversation, env.Intent)
	require.Len(t, env.Items, 1)
	item := env.Items[0].(models.ConversationSummary)
	assert.Equal(t, int64(5), item.LeadID)
	assert.Equal(t, "lead_id", item.MatchReason)
	assert.Equal(t, "Marc wants a Tuesday visit.", env.AISummary)

	chats := h.model.ChatCalls()
	require.Len(t, chats, 1, "a summary ends the loop")
	assert.Contains(t, systemTexts(chats[0]), `CONTEXT: The UI has an Active lead set: lead_id=5 name="Marc Tremblay".`)
}

func TestAskSummarizeResolvesThroughFindLead(t *testing.T) {
	h := newHarness(t,
		call("c1", tools.FindLead, `{"name": "Marc Tremblay"}`),
		call("c2", tools.SummarizeConversation, `{"lead_id": 5}`),
	)
	h.model.Completion = func(string, string) string { return summaryJSON }

	env, err := h.ask(t, "Summarize Marc's conversation", models.Session{})
	require.NoError(t, err)
	assert.Equal(t, tools.SummarizeConversation, env.Intent)
	assert.Len(t, env.Items, 1)

	chats := h.model.ChatCalls()
	require.Len(t, chats, 2)
	responses := toolResponses(chats[1])
	require.Len(t, responses, 1)
	assert.Equal(t, "c1", responses[0].ToolCallID)
	assert.Equal(t, tools.FindLead, responses[0].Name)
	assert.Contains(t, responses[0].Content, `"leadId":5`)
}

func TestAskSendLastDraft(t *testing.T) {
	h := newHarness(t, call("c1", tools.SendMessage, `{}`))
	draft := &models.LastDraft{LeadID: 5, Channel: "sms", To: "+15145550101", Body: "Hi Marc, see you Tuesday at 2pm."}

	env, err := h.ask(t, "send it", models.Session{LastDraft: draft})
	require.NoError(t, err)

	assert.Equal(t, models.ResultSendResult, env.ResultType)
	require.Len(t, h.sms.Sent, 1)
	assert.Equal(t, draft.Body, h.sms.Sent[0].Body)
	assert.Equal(t, "+15145550101", h.sms.Sent[0].To)

	chats := h.model.ChatCalls()
	require.Len(t, chats, 1)
	assert.Equal(t, llm.ToolChoiceAuto, chats[0].Options.ToolChoice)
	system := strings.Join(systemTexts(chats[0]), "\n")
	assert.Contains(t, system, "STEERING: The user wants to send the most recent draft.")
	assert.Contains(t, system, "CONTEXT: The most recent draft is a sms for lead_id=5.")
}

func TestAskDraftThenSendInOneRequest(t *testing.T) {
	h := newHarness(t,
		call("c1", tools.DraftReply, `{"lead_id": 5, "channel": "sms", "variants": 1}`),
		call("c2", tools.SendMessage, `{"lead_id": 5}`),
	)
	h.model.Completion = func(string, string) string { return `{"body": "Tuesday 2pm works, see you then."}` }

	env, err := h.ask(t, "Draft an sms to Marc and send it", models.Session{})
	require.NoError(t, err)

	assert.Equal(t, tools.SendMessage, env.Intent)
	require.Len(t, h.sms.Sent, 1)
	assert.Equal(t, "Tuesday 2pm works, see you then.", h.sms.Sent[0].Body)
	assert.Len(t, h.model.ChatCalls(), 2, "a draft does not end the loop while a send is pending")
}

func TestAskCreateTask(t *testing.T) {
	h := newHarness(t, call("c1", tools.CreateTask, `{"lead_id": "#42", "followup_type": "call", "scheduled_for_iso": "2025-06-02T09:00:00"}`))

	env, err := h.ask(t, "Create a call follow-up for lead #42 tomorrow at 9am", models.Session{})
	require.NoError(t, err)

	require.Len(t, env.Items, 1)
	row := env.Items[0].(models.TaskRow)
	assert.True(t, row.DueAt.Equal(time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)), row.DueAt.String())
	assert.Equal(t, models.TaskPending, row.Status)
	assert.Equal(t, int64(42), row.LeadID)

	chats := h.model.ChatCalls()
	require.Len(t, chats, 1)
	assert.Contains(t, systemTexts(chats[0])[0], "CURRENT DATETIME: Right now it is 2025-06-01T08:00:00Z")
}

func TestAskUpdateHidesGetTasks(t *testing.T) {
	h := newHarness(t, llmtest.TextTurn("Which task?"))

	env, err := h.ask(t, "Cancel Marc's follow-up", models.Session{})
	require.NoError(t, err)
	assert.Equal(t, models.NoActionEnvelope(), env)

	chats := h.model.ChatCalls()
	require.Len(t, chats, 1)
	assert.NotContains(t, chats[0].ToolNames(), tools.GetTasks)
	assert.Contains(t, chats[0].ToolNames(), tools.UpdateTask)
	assert.Contains(t, strings.Join(systemTexts(chats[0]), "\n"), "Use update_task")
}

func TestAskForcesDraft(t *testing.T) {
	h := newHarness(t, call("c1", tools.DraftReply, `{}`))
	var prompt string
	h.model.Completion = func(_, user string) string {
		prompt = user
		return `{"body": "Bonjour Sophie"}`
	}

	env, err := h.ask(t, "Write a text based on this summary", models.Session{
		LastSummary: &models.LastSummary{LeadID: 6, Summary: "Sophie wants a deck quote."},
	})
	require.NoError(t, err)
	assert.Equal(t, tools.DraftReply, env.Intent)
	assert.Equal(t, int64(6), env.Items[0].(models.DraftReply).LeadID)

	chats := h.model.ChatCalls()
	require.Len(t, chats, 1)
	assert.Equal(t, llm.ForceTool(tools.DraftReply), chats[0].Options.ToolChoice)
	assert.Contains(t, prompt, "NOTE: User asked to draft based on the most recent conversation summary.")
	assert.Contains(t, prompt, "Conversation summary:\nSophie wants a deck quote.")
}

func TestAskDecoratesLeadList(t *testing.T) {
	h := newHarness(t, call("c1", tools.ListLeads, `{"no_reply_hours": 24}`))

	env, err := h.ask(t, "Who hasn't replied in a day?", models.Session{})
	require.NoError(t, err)
	assert.Equal(t, `Found 3 lead(s) for: "Who hasn't replied in a day?" (no reply for at least 24h).`, env.AISummary)
}

func TestAskUnknownToolIsReportedToModel(t *testing.T) {
	h := newHarness(t,
		call("c1", "delete_everything", `{}`),
		llmtest.TextTurn("Sorry, I cannot do that."),
	)

	env, err := h.ask(t, "wipe the CRM", models.Session{})
	require.NoError(t, err)
	assert.Equal(t, models.NoActionEnvelope(), env)

	chats := h.model.ChatCalls()
	require.Len(t, chats, 2)
	responses := toolResponses(chats[1])
	require.Len(t, responses, 1)
	assert.JSONEq(t, `{"error": "Unsupported tool: delete_everything"}`, responses[0].Content)
}

func TestAskStopsAtTurnCap(t *testing.T) {
	turns := make([]*llms.ContentChoice, 6)
	for i := range turns {
		turns[i] = call("c", tools.FindLead, `{"name": "Marc"}`)
	}
	h := newHarness(t, turns...)

	env, err := h.ask(t, "Find Marc", models.Session{})
	require.NoError(t, err)
	assert.Equal(t, tools.FindLead, env.Intent, "the last result is returned")
	assert.Len(t, h.model.ChatCalls(), DefaultMaxTurns)
}

func TestAskErrors(t *testing.T) {
	t.Run("validation from a tool", func(t *testing.T) {
		h := newHarness(t, call("c1", tools.SendMessage, `{"lead_id": 5, "channel": "sms", "to": "+15145550101", "body": "`+strings.Repeat("x", 1201)+`"}`))
		_, err := h.ask(t, "send this", models.Session{})
		require.Error(t, err)
		assert.True(t, models.IsValidation(err))
		assert.Empty(t, h.sms.Sent)
	})

	t.Run("resolution from a tool", func(t *testing.T) {
		h := newHarness(t, call("c1", tools.SummarizeConversation, `{"lead_name": "Nobody"}`))
		_, err := h.ask(t, "summarize Nobody", models.Session{})
		require.Error(t, err)
		assert.True(t, models.IsResolution(err))
	})

	t.Run("model failure", func(t *testing.T) {
		h := newHarness(t)
		h.model.Err = errors.New("503")
		_, err := h.ask(t, "list my leads", models.Session{})
		require.Error(t, err)
		assert.True(t, models.IsExternal(err))
	})

	t.Run("empty question", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.ask(t, "   ", models.Session{})
		assert.True(t, models.IsValidation(err))
		assert.Empty(t, h.model.Calls)
	})

	t.Run("foreign lead is never reached", func(t *testing.T) {
		h := newHarness(t, call("c1", tools.CreateTask, `{"lead_id": 9}`))
		_, err := h.ask(t, "create a follow-up for lead 9", models.Session{})
		require.Error(t, err)
		assert.True(t, models.IsResolution(err))
	})
}

func TestDraftFromSkipsEmptyVariants(t *testing.T) {
	env := models.Envelope{Items: []models.Item{models.DraftReply{
		LeadID:  5,
		Channel: models.ChannelSMS,
		To:      "+15145550101",
		Variants: []models.DraftVariant{
			{Label: "v1", Body: " "},
			{Label: "v2", Body: "Still on for Tuesday?"},
		},
	}}}
	d := draftFrom(env)
	require.NotNil(t, d)
	assert.Equal(t, "Still on for Tuesday?", d.Body)

	env.Items = []models.Item{models.DraftReply{LeadID: 5, Variants: []models.DraftVariant{{Label: "v1"}}}}
	assert.Nil(t, draftFrom(env))
}
