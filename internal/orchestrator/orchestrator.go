// Package orchestrator turns a natural-language question into one CRM operation by
// running a bounded tool-calling loop over the language model.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/tmc/langchaingo/llms"

	"github.com/bluewise/internal/guardrails"
	"github.com/bluewise/internal/llm"
	"github.com/bluewise/internal/metrics"
	"github.com/bluewise/internal/store"
	"github.com/bluewise/internal/tools"
	"github.com/bluewise/pkg/models"
)

// DefaultMaxTurns bounds the model round trips of one ask
const DefaultMaxTurns = 4

// Config holds the orchestration settings
type Config struct {
	MaxTurns int
	Keywords Keywords
	// Location is the business timezone used for CURRENT DATETIME
	Location *time.Location
	Now      func() time.Time
}

// Orchestrator answers questions with the registered CRM tools
type Orchestrator struct {
	llm    *llm.Client
	tools  *tools.Registry
	config Config
}

// New creates an orchestrator. Zero config fields take their defaults.
func New(client *llm.Client, registry *tools.Registry, cfg Config) *Orchestrator {
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = DefaultMaxTurns
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	cfg.Keywords = cfg.Keywords.withDefaults()
	return &Orchestrator{llm: client, tools: registry, config: cfg}
}

// run is the per-ask state shared by the turns of one question
type run struct {
	question     string
	session      models.Session
	intent       intent
	summaryDraft bool
	lastDraft    *models.LastDraft
	sent         bool
}

// Ask answers one question for a tenant. Validation and resolution errors from a tool
// end the ask and are returned as is; a failed model call is an ExternalFailure.
func (o *Orchestrator) Ask(ctx context.Context, tenant store.Tenant, question string, session models.Session) (models.Envelope, error) {
	guardrails.RequireTenant(tenant.CustomerID)
	logger := zerolog.Ctx(ctx)

	question = strings.TrimSpace(question)
	if question == "" {
		return models.Envelope{}, models.NewValidationError("Missing question.")
	}
	if o.llm == nil {
		return models.Envelope{}, models.NewExternalFailure("Language model is not configured.", nil)
	}

	state := &run{
		question:  question,
		session:   session,
		intent:    o.config.Keywords.detect(question),
		lastDraft: session.LastDraft,
	}
	state.summaryDraft = state.intent.draft && state.intent.summaryRef &&
		(session.ActiveLeadID > 0 || (session.LastSummary != nil && session.LastSummary.LeadID > 0))

	var exclude, steering []string
	if state.intent.update {
		exclude = append(exclude, tools.GetTasks)
		steering = append(steering, updateSteering)
	}
	if state.intent.send && state.lastDraft != nil && state.lastDraft.LeadID > 0 {
		steering = append(steering, sendSteering(state.lastDraft))
	}
	defs := o.tools.Definitions(exclude...)

	var toolChoice any = llm.ToolChoiceAuto
	if state.intent.forceDraft() {
		toolChoice = llm.ForceTool(tools.DraftReply)
	}

	messages := initialMessages(
		systemPrompt(o.config.Now(), o.config.Location),
		contextMessages(session),
		steering,
		question,
	)

	logger.Debug().
		Bool("draft", state.intent.draft).
		Bool("send", state.intent.send).
		Bool("update", state.intent.update).
		Bool("summary_draft", state.summaryDraft).
		Int("tools", len(defs)).
		Msg("Ask started")

	var final *models.Envelope
	turns := 0
	for turns < o.config.MaxTurns {
		turns++

		choice, err := o.llm.Chat(ctx, messages, defs, toolChoice)
		if err != nil {
			return models.Envelope{}, models.NewExternalFailure("Failed to reach the language model.", err)
		}
		if len(choice.ToolCalls) == 0 {
			logger.Debug().Int("turn", turns).Msg("Model answered without tools")
			break
		}
		messages = append(messages, assistantMessage(choice))

		for _, call := range choice.ToolCalls {
			name, raw := "", ""
			if call.FunctionCall != nil {
				name, raw = call.FunctionCall.Name, call.FunctionCall.Arguments
			}
			env, content, err := o.runCall(ctx, tenant, state, name, raw)
			if err != nil {
				return models.Envelope{}, err
			}
			if env != nil {
				final = env
			}
			messages = append(messages, toolMessage(call.ID, name, content))
		}

		if final != nil && state.finished(*final) {
			break
		}
	}

	if final == nil {
		logger.Info().Int("turns", turns).Msg("Ask matched no action")
		metrics.RecordAsk("none", turns)
		return models.NoActionEnvelope(), nil
	}

	logger.Info().
		Str("intent", final.Intent).
		Str("result_type", final.ResultType).
		Int("items", len(final.Items)).
		Int("turns", turns).
		Msg("Ask answered")
	metrics.RecordAsk(final.Intent, turns)
	return *final, nil
}

// finished reports whether env ends the loop. find_lead always chains, and a draft
// chains while the user asked to send and nothing was sent yet.
func (s *run) finished(env models.Envelope) bool {
	switch env.Intent {
	case tools.FindLead:
		return false
	case tools.DraftReply:
		return !s.intent.send || s.sent
	}
	return true
}

// runCall executes one tool call. The envelope is nil when the call produced no result.
func (o *Orchestrator) runCall(ctx context.Context, tenant store.Tenant, s *run, name, raw string) (*models.Envelope, string, error) {
	args := tools.Args(llm.ParseArguments(raw))
	o.bridge(ctx, s, name, args)

	env, err := o.tools.Dispatch(ctx, tenant, name, args)
	if errors.Is(err, tools.ErrUnknownTool) {
		content, _ := json.Marshal(map[string]string{"error": "Unsupported tool: " + name})
		return nil, string(content), nil
	}
	if err != nil {
		return nil, "", err
	}

	switch name {
	case tools.ListLeads:
		env.AISummary = tools.LeadListSummary(s.question, args, len(env.Items))
	case tools.GetTasks:
		env.AISummary = tools.TaskListSummary(len(env.Items))
	case tools.DraftReply:
		if d := draftFrom(env); d != nil {
			s.lastDraft = d
		}
	case tools.SendMessage:
		s.sent = true
	}

	content, err := json.Marshal(env)
	if err != nil {
		return nil, "", fmt.Errorf("failed to encode %s result: %w", name, err)
	}
	return &env, string(content), nil
}

func assistantMessage(choice *llms.ContentChoice) llms.MessageContent {
	parts := make([]llms.ContentPart, 0, len(choice.ToolCalls)+1)
	if strings.TrimSpace(choice.Content) != "" {
		parts = append(parts, llms.TextContent{Text: choice.Content})
	}
	for _, call := range choice.ToolCalls {
		parts = append(parts, call)
	}
	return llms.MessageContent{Role: llms.ChatMessageTypeAI, Parts: parts}
}

func toolMessage(id, name, content string) llms.MessageContent {
	return llms.MessageContent{
		Role: llms.ChatMessageTypeTool,
		Parts: []llms.ContentPart{llms.ToolCallResponse{
			ToolCallID: id,
			Name:       name,
			Content:    content,
		}},
	}
}
