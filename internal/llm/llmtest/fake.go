// Package llmtest provides a scripted langchaingo model for tests.
package llmtest

import (
	"context"
	"errors"
	"sync"

	"github.com/tmc/langchaingo/llms"
)

// Call records one GenerateContent invocation
type Call struct {
	Messages []llms.MessageContent
	Options  llms.CallOptions
}

// HasTools reports whether the call carried tool definitions
func (c Call) HasTools() bool { return len(c.Options.Tools) > 0 }

// ToolNames lists the tool names offered on the call
func (c Call) ToolNames() []string {
	names := make([]string, 0, len(c.Options.Tools))
	for _, t := range c.Options.Tools {
		if t.Function != nil {
			names = append(names, t.Function.Name)
		}
	}
	return names
}

// FakeModel answers tool-enabled calls from Turns, in order, and plain completions
// through Completion.
type FakeModel struct {
	mu sync.Mutex

	Turns      []*llms.ContentChoice
	Completion func(system, user string) string
	Err        error

	Calls []Call
	next  int
}

var _ llms.Model = (*FakeModel)(nil)

// ErrScriptExhausted is returned when a tool-enabled call has no scripted turn left
var ErrScriptExhausted = errors.New("llmtest: no scripted turn left")

// GenerateContent implements llms.Model
func (f *FakeModel) GenerateContent(_ context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	opts := llms.CallOptions{}
	for _, o := range options {
		o(&opts)
	}
	call := Call{Messages: append([]llms.MessageContent(nil), messages...), Options: opts}
	f.Calls = append(f.Calls, call)

	if f.Err != nil {
		return nil, f.Err
	}

	if call.HasTools() {
		if f.next >= len(f.Turns) {
			return nil, ErrScriptExhausted
		}
		choice := f.Turns[f.next]
		f.next++
		return &llms.ContentResponse{Choices: []*llms.ContentChoice{choice}}, nil
	}

	system, user := splitPrompt(messages)
	content := ""
	if f.Completion != nil {
		content = f.Completion(system, user)
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: content}}}, nil
}

// Call implements llms.Model
func (f *FakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	resp, err := f.GenerateContent(ctx, []llms.MessageContent{llms.TextParts(llms.ChatMessageTypeHuman, prompt)}, options...)
	if err != nil {
		return "", err
	}
	return resp.Choices[0].Content, nil
}

// ChatCalls returns the recorded tool-enabled calls
func (f *FakeModel) ChatCalls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Call
	for _, c := range f.Calls {
		if c.HasTools() {
			out = append(out, c)
		}
	}
	return out
}

// CompletionCalls returns the recorded plain completion calls
func (f *FakeModel) CompletionCalls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Call
	for _, c := range f.Calls {
		if !c.HasTools() {
			out = append(out, c)
		}
	}
	return out
}

func splitPrompt(messages []llms.MessageContent) (system, user string) {
	for _, m := range messages {
		for _, p := range m.Parts {
			text, ok := p.(llms.TextContent)
			if !ok {
				continue
			}
			switch m.Role {
			case llms.ChatMessageTypeSystem:
				system += text.Text
			case llms.ChatMessageTypeHuman:
				user += text.Text
			}
		}
	}
	return system, user
}

// TextTurn is a model turn without tool calls
func TextTurn(text string) *llms.ContentChoice {
	return &llms.ContentChoice{Content: text}
}

// ToolTurn is a model turn carrying tool calls
func ToolTurn(calls ...llms.ToolCall) *llms.ContentChoice {
	return &llms.ContentChoice{ToolCalls: calls}
}

// ToolCall builds a function tool call
func ToolCall(id, name, arguments string) llms.ToolCall {
	return llms.ToolCall{
		ID:   id,
		Type: "function",
		FunctionCall: &llms.FunctionCall{
			Name:      name,
			Arguments: arguments,
		},
	}
}
