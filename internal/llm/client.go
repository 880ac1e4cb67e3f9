package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/tmc/langchaingo/llms"

	"github.com/bluewise/internal/metrics"
)

// Client wraps a langchaingo model with per-call timeouts, logging and metrics.
// It never retries: a failed call is returned to the caller as is.
type Client struct {
	model       llms.Model
	timeout     time.Duration
	temperature float64
}

// ClientOptions configures a Client
type ClientOptions struct {
	// Timeout bounds each model call. Zero means no client-side deadline.
	Timeout time.Duration
	// Temperature is sent on tool-enabled turns when positive
	Temperature float64
}

// NewClient creates a Client around model
func NewClient(model llms.Model, opts ClientOptions) *Client {
	return &Client{model: model, timeout: opts.Timeout, temperature: opts.Temperature}
}

// ToolChoiceAuto lets the model decide whether to call a tool
const ToolChoiceAuto = "auto"

// ForceTool returns a tool choice that forces the named function
func ForceTool(name string) llms.ToolChoice {
	return llms.ToolChoice{
		Type:     "function",
		Function: &llms.FunctionReference{Name: name},
	}
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

func (c *Client) logTimeout(ctx context.Context, kind string, elapsed time.Duration, err error) {
	if errors.Is(err, context.DeadlineExceeded) {
		zerolog.Ctx(ctx).Warn().
			Str("kind", kind).
			Dur("configured_timeout", c.timeout).
			Dur("elapsed", elapsed).
			Msg("Model call timed out")
	}
}

// Chat runs one tool-enabled turn and returns the first choice.
// toolChoice is ToolChoiceAuto, a value from ForceTool, or nil to omit it.
func (c *Client) Chat(ctx context.Context, messages []llms.MessageContent, tools []llms.Tool, toolChoice any) (*llms.ContentChoice, error) {
	callCtx, cancel := c.withTimeout(ctx)
	defer cancel()

	opts := []llms.CallOption{}
	if c.temperature > 0 {
		opts = append(opts, llms.WithTemperature(c.temperature))
	}
	if len(tools) > 0 {
		opts = append(opts, llms.WithTools(tools))
		if toolChoice != nil {
			opts = append(opts, llms.WithToolChoice(toolChoice))
		}
	}

	start := time.Now()
	resp, err := c.model.GenerateContent(callCtx, messages, opts...)
	elapsed := time.Since(start)
	metrics.RecordModelCall("chat", err, elapsed)
	if err != nil {
		c.logTimeout(ctx, "chat", elapsed, err)
		return nil, fmt.Errorf("model chat call failed: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0] == nil {
		return nil, errors.New("model returned no choices")
	}

	zerolog.Ctx(ctx).Debug().
		Int("tool_calls", len(resp.Choices[0].ToolCalls)).
		Dur("elapsed", elapsed).
		Msg("Model chat turn completed")

	return resp.Choices[0], nil
}

// Complete runs a single system+user prompt and returns the text content
func (c *Client) Complete(ctx context.Context, system, user string, temperature float64) (string, error) {
	callCtx, cancel := c.withTimeout(ctx)
	defer cancel()

	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, user),
	}

	start := time.Now()
	resp, err := c.model.GenerateContent(callCtx, messages, llms.WithTemperature(temperature))
	elapsed := time.Since(start)
	metrics.RecordModelCall("complete", err, elapsed)
	if err != nil {
		c.logTimeout(ctx, "complete", elapsed, err)
		return "", fmt.Errorf("model completion failed: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0] == nil {
		return "", errors.New("model returned no choices")
	}
	return resp.Choices[0].Content, nil
}
