// Package tools provides the CRM tool runners and the registry the orchestrator dispatches through.
package tools

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/tmc/langchaingo/llms"
	"github.com/xeipuuv/gojsonschema"

	"github.com/bluewise/internal/guardrails"
	"github.com/bluewise/internal/llm"
	"github.com/bluewise/internal/metrics"
	"github.com/bluewise/internal/providers"
	"github.com/bluewise/internal/store"
	"github.com/bluewise/pkg/models"
)

// Tool names
const (
	ListLeads             = "list_leads"
	FindLead              = "find_lead"
	SummarizeConversation = "summarize_conversation"
	DraftReply            = "draft_reply"
	GetTasks              = "get_tasks"
	CreateTask            = "create_task"
	UpdateTask            = "update_task"
	SendMessage           = "send_message"
)

// ErrUnknownTool is returned by Dispatch for names that are not registered
var ErrUnknownTool = errors.New("unknown tool")

// RunFunc executes a tool with validated arguments inside one tenant
type RunFunc func(ctx context.Context, tenant store.Tenant, args Args) (models.Envelope, error)

// Tool is one callable CRM operation
type Tool struct {
	Name        string
	Description string
	// Parameters is the JSON schema of the arguments object
	Parameters map[string]any
	Run        RunFunc
}

// Deps are the collaborators shared by all runners. They are read-only after construction.
type Deps struct {
	LLM    *llm.Client
	SMS    providers.SMSSender
	Email  providers.EmailSender
	Policy guardrails.Policy
	// EmailFrom is the sender address for outbound email
	EmailFrom string
	// SenderName signs drafted messages when set
	SenderName string
	Now        func() time.Time
}

// Registry manages tool registration and execution
type Registry struct {
	deps    Deps
	tools   map[string]Tool
	schemas map[string]*gojsonschema.Schema
	order   []string
}

// NewRegistry creates a registry holding the built-in CRM tools
func NewRegistry(deps Deps) *Registry {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Policy.SMSMaxLength == 0 {
		deps.Policy = guardrails.DefaultPolicy(deps.Policy.Location)
	}
	r := &Registry{
		deps:    deps,
		tools:   make(map[string]Tool),
		schemas: make(map[string]*gojsonschema.Schema),
	}
	for _, t := range r.builtins() {
		if err := r.Register(t); err != nil {
			panic(err)
		}
	}
	return r
}

func (r *Registry) builtins() []Tool {
	return []Tool{
		r.listLeadsTool(),
		r.findLeadTool(),
		r.summarizeConversationTool(),
		r.draftReplyTool(),
		r.createTaskTool(),
		r.updateTaskTool(),
		r.sendMessageTool(),
		r.getTasksTool(),
	}
}

// Register adds a tool and compiles its schema
func (r *Registry) Register(tool Tool) error {
	if tool.Name == "" || tool.Run == nil {
		return fmt.Errorf("tool %q is incomplete", tool.Name)
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(tool.Parameters))
	if err != nil {
		return fmt.Errorf("failed to compile schema for %s: %w", tool.Name, err)
	}
	if _, exists := r.tools[tool.Name]; !exists {
		r.order = append(r.order, tool.Name)
	}
	r.tools[tool.Name] = tool
	r.schemas[tool.Name] = schema
	return nil
}

// Get returns a tool by name
func (r *Registry) Get(name string) (Tool, bool) {
	tool, ok := r.tools[name]
	return tool, ok
}

// Names returns the registered tool names in registration order
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Definitions returns the tool schemas offered to the model, minus the excluded names
func (r *Registry) Definitions(exclude ...string) []llms.Tool {
	skip := make(map[string]bool, len(exclude))
	for _, name := range exclude {
		skip[name] = true
	}
	defs := make([]llms.Tool, 0, len(r.order))
	for _, name := range r.order {
		if skip[name] {
			continue
		}
		t := r.tools[name]
		defs = append(defs, llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return defs
}

// DispatchRaw parses model-supplied argument text and dispatches it
func (r *Registry) DispatchRaw(ctx context.Context, tenant store.Tenant, name, raw string) (models.Envelope, error) {
	return r.Dispatch(ctx, tenant, name, Args(llm.ParseArguments(raw)))
}

// Dispatch normalizes and validates args against the tool schema, then runs the tool
func (r *Registry) Dispatch(ctx context.Context, tenant store.Tenant, name string, args Args) (models.Envelope, error) {
	guardrails.RequireTenant(tenant.CustomerID)
	logger := zerolog.Ctx(ctx)

	tool, ok := r.tools[name]
	if !ok {
		logger.Warn().Str("tool", name).Msg("Model requested unknown tool")
		return models.Envelope{}, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}

	args = normalizeArgs(tool.Parameters, args)
	if err := r.validate(name, args); err != nil {
		metrics.RecordToolCall(name, err, 0)
		return models.Envelope{}, err
	}

	start := time.Now()
	env, err := tool.Run(ctx, tenant, args)
	elapsed := time.Since(start)
	metrics.RecordToolCall(name, err, elapsed)

	event := logger.Debug()
	if err != nil {
		event = logger.Warn().Err(err)
	}
	event.Str("tool", name).
		Int64("customer_id", tenant.CustomerID).
		Int("items", len(env.Items)).
		Dur("elapsed", elapsed).
		Msg("Tool executed")

	if err != nil {
		return models.Envelope{}, err
	}
	if env.Items == nil {
		env.Items = []models.Item{}
	}
	return env, nil
}

func (r *Registry) validate(name string, args Args) error {
	result, err := r.schemas[name].Validate(gojsonschema.NewGoLoader(map[string]any(args)))
	if err != nil {
		return models.NewValidationError(fmt.Sprintf("Invalid arguments for %s.", name))
	}
	if result.Valid() {
		return nil
	}
	problems := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		problems = append(problems, e.String())
	}
	sort.Strings(problems)
	return models.NewValidationError(fmt.Sprintf("Invalid arguments for %s: %s", name, strings.Join(problems, "; ")))
}

func (r *Registry) now() time.Time {
	return r.deps.Now()
}
