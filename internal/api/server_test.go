package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/bluewise/internal/api/auth"
	"github.com/bluewise/internal/guardrails"
	"github.com/bluewise/internal/llm"
	"github.com/bluewise/internal/llm/llmtest"
	"github.com/bluewise/internal/orchestrator"
	"github.com/bluewise/internal/providers/providertest"
	"github.com/bluewise/internal/store"
	"github.com/bluewise/internal/tools"
	"github.com/bluewise/pkg/models"
)

const testSecret = "test-secret-0123456789"

var now = time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

type fixture struct {
	server *Server
	mem    *store.Memory
	model  *llmtest.FakeModel
	sms    *providertest.SMS
	tokens *auth.TokenService
}

func newFixture(t *testing.T, turns ...*llms.ContentChoice) *fixture {
	t.Helper()

	mem := store.NewMemory()
	mem.SetClock(func() time.Time { return now })
	mem.AddLead(models.Lead{ID: 5, CustomerID: 1, Name: "Marc Tremblay", Email: "marc@example.com", Phone: "+1 514 555 0101", Status: "new", CreatedAt: now.Add(-72 * time.Hour)})
	mem.AddLead(models.Lead{ID: 6, CustomerID: 1, Name: "Sophie Marchand", Phone: "+1 438 555 0199", Status: "won", CreatedAt: now.Add(-48 * time.Hour)})
	mem.AddLead(models.Lead{ID: 9, CustomerID: 2, Name: "Other Tenant", CreatedAt: now})
	mem.SetCustomerSMSNumber(1, "+15140000000")
	mem.AddTask(models.Task{ID: 70, CustomerID: 1, LeadID: 5, Type: "call", Title: "Call Marc", DueAt: now.Add(24 * time.Hour), Status: models.TaskPending, Priority: "normal"})
	mem.AddTask(models.Task{ID: 71, CustomerID: 2, LeadID: 9, Type: "call", DueAt: now.Add(24 * time.Hour), Status: models.TaskPending, Priority: "normal"})

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

	tokens := auth.NewTokenService(testSecret)
	server := NewServer(0, Deps{
		Store:        mem,
		Registry:     reg,
		Orchestrator: orchestrator.New(client, reg, orchestrator.Config{Location: time.UTC, Now: clock}),
		Tokens:       tokens,
	})
	return &fixture{server: server, mem: mem, model: model, sms: sms, tokens: tokens}
}

func (f *fixture) do(t *testing.T, customerID int64, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if customerID > 0 {
		token, err := f.tokens.IssueToken(customerID, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	return rec
}

type envelopeBody struct {
	Question   string           `json:"question"`
	Intent     string           `json:"intent"`
	ResultType string           `json:"resultType"`
	Title      string           `json:"title"`
	AISummary  string           `json:"aiSummary"`
	Items      []map[string]any `json:"items"`
	Error      string           `json:"error"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelopeBody {
	t.Helper()
	var out envelopeBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, 0, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())

	rec = f.do(t, 0, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "bluewise_orchestrator_turns")
}

func TestAPIRequiresToken(t *testing.T) {
	f := newFixture(t)
	for _, path := range []string{"/api/v1/leads", "/api/v1/tasks"} {
		rec := f.do(t, 0, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
}

func TestAsk(t *testing.T) {
	f := newFixture(t, llmtest.ToolTurn(llmtest.ToolCall("c1", tools.ListLeads, `{"status":"all"}`)))

	rec := f.do(t, 1, http.MethodPost, "/api/v1/ask", map[string]any{"question": "show my leads"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))

	body := decode(t, rec)
	assert.Equal(t, "show my leads", body.Question)
	assert.Equal(t, tools.ListLeads, body.Intent)
	assert.Equal(t, models.ResultLeadList, body.ResultType)
	assert.Len(t, body.Items, 2)
	assert.True(t, strings.HasPrefix(body.AISummary, "Found 2 lead(s)"), body.AISummary)
}

func TestAskSessionIsForwarded(t *testing.T) {
	f := newFixture(t, llmtest.TextTurn("Nothing to do."))

	rec := f.do(t, 1, http.MethodPost, "/api/v1/ask", map[string]any{
		"question": "what now?",
		"session":  map[string]any{"activeLeadId": 5, "activeLeadName": "Marc Tremblay"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "none", body.Intent)
	assert.Equal(t, []map[string]any{}, body.Items)

	calls := f.model.ChatCalls()
	require.Len(t, calls, 1)
	var sawContext bool
	for _, m := range calls[0].Messages {
		for _, p := range m.Parts {
			if text, ok := p.(llms.TextContent); ok && strings.Contains(text.Text, "lead_id=5") {
				sawContext = true
			}
		}
	}
	assert.True(t, sawContext)
}

func TestAskErrors(t *testing.T) {
	t.Run("missing question", func(t *testing.T) {
		f := newFixture(t)
		rec := f.do(t, 1, http.MethodPost, "/api/v1/ask", map[string]any{"question": "  "})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Missing question.", decode(t, rec).Error)
	})

	t.Run("model failure", func(t *testing.T) {
		f := newFixture(t)
		f.model.Err = errors.New("upstream 500 with secret details")
		rec := f.do(t, 1, http.MethodPost, "/api/v1/ask", map[string]any{"question": "show my leads"})
		assert.Equal(t, http.StatusBadGateway, rec.Code)
		body := decode(t, rec)
		assert.Equal(t, "Failed to reach the language model.", body.Error)
		assert.NotContains(t, rec.Body.String(), "secret details")
	})

	t.Run("bad json", func(t *testing.T) {
		f := newFixture(t)
		token, err := f.tokens.IssueToken(1, time.Hour)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/ask", strings.NewReader("{"))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		f.server.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestSend(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, 1, http.MethodPost, "/api/v1/send", tools.SendRequest{
		LeadID: 5, Channel: "sms", To: "+15145550101", Body: "Hi Marc, Tuesday works.",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, models.ResultSendResult, body.ResultType)
	require.Len(t, body.Items, 1)
	assert.Equal(t, "sent", body.Items[0]["status"])
	require.Len(t, f.sms.Sent, 1)
	assert.Equal(t, "+15140000000", f.sms.Sent[0].From)

	rec = f.do(t, 1, http.MethodPost, "/api/v1/send", tools.SendRequest{
		LeadID: 5, Channel: "sms", To: "+15145550101", Body: strings.Repeat("x", 1201),
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Len(t, f.sms.Sent, 1)
}

func TestListLeadsIsTenantScoped(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, 1, http.MethodGet, "/api/v1/leads?status=all", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec).Items, 2)

	rec = f.do(t, 1, http.MethodGet, "/api/v1/leads?status=open", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	items := decode(t, rec).Items
	require.Len(t, items, 1)
	assert.Equal(t, float64(5), items[0]["leadId"])

	rec = f.do(t, 2, http.MethodGet, "/api/v1/leads?status=all", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	items = decode(t, rec).Items
	require.Len(t, items, 1)
	assert.Equal(t, float64(9), items[0]["leadId"])
}

func TestTasks(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, 1, http.MethodGet, "/api/v1/tasks?status=open", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	items := decode(t, rec).Items
	require.Len(t, items, 1)
	assert.Equal(t, float64(70), items[0]["id"])

	rec = f.do(t, 1, http.MethodPost, "/api/v1/tasks/70/complete", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, models.ResultTaskUpdated, decode(t, rec).ResultType)

	task, err := f.mem.GetTask(t.Context(), 1, 70)
	require.NoError(t, err)
	assert.Equal(t, models.TaskCompleted, task.Status)

	rec = f.do(t, 1, http.MethodPost, "/api/v1/tasks/70/complete", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "completed tasks are terminal")

	rec = f.do(t, 1, http.MethodPost, "/api/v1/tasks/71/complete", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "other tenant's task")

	rec = f.do(t, 1, http.MethodPost, "/api/v1/tasks/abc/complete", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRateLimit(t *testing.T) {
	f := newFixture(t)
	f.server = NewServer(0, Deps{
		Store:        f.mem,
		Registry:     f.server.deps.Registry,
		Orchestrator: f.server.deps.Orchestrator,
		Tokens:       f.tokens,
		RateLimit:    0.001,
		RateBurst:    1,
	})

	assert.Equal(t, http.StatusOK, f.do(t, 1, http.MethodGet, "/api/v1/tasks", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, f.do(t, 1, http.MethodGet, "/api/v1/tasks", nil).Code)
	assert.Equal(t, http.StatusOK, f.do(t, 2, http.MethodGet, "/api/v1/tasks", nil).Code)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusFor(models.NewValidationError("x")))
	assert.Equal(t, http.StatusNotFound, statusFor(models.NewResolutionError("x")))
	assert.Equal(t, http.StatusBadGateway, statusFor(models.NewExternalFailure("x", errors.New("y"))))
	assert.Equal(t, http.StatusInternalServerError, statusFor(errors.New("boom")))
}
