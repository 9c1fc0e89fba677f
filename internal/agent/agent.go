// Package agent runs one chat turn: intent shortcut, optional retrieval, then a bounded tool-calling loop.
package agent

import (
	"context"
	"fmt"
	"log"
	"time"

	"advisor-backend/internal/agent/intent"
	"advisor-backend/internal/agent/tools"
	knowledge "advisor-backend/internal/knowledge/usecase"
	"advisor-backend/pkg/ai"
	"advisor-backend/pkg/errs"
)

const DefaultMaxIterations = 5

type Path string

const (
	PathDirectTool    Path = "direct_tool"
	PathClarification Path = "clarification"
	PathLLM           Path = "llm"
)

// ToolRecord summarizes one tool execution for message metadata.
type ToolRecord struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
	Success   bool           `json:"success"`
	Error     string         `json:"error,omitempty"`
}

type Outcome struct {
	Reply      string       `json:"reply"`
	Path       Path         `json:"path"`
	Tools      []ToolRecord `json:"tools"`
	Iterations int          `json:"iterations"`
}

// Retriever builds the context block injected ahead of the user message.
type Retriever interface {
	ContextFor(ctx context.Context, userID, query string) (string, error)
}

type Agent struct {
	model         ai.ChatModel
	registry      *tools.Registry
	parser        *intent.Parser
	retriever     Retriever
	maxIterations int
	now           func() time.Time
}

func New(model ai.ChatModel, registry *tools.Registry, parser *intent.Parser, retriever Retriever, maxIterations int) *Agent {
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	return &Agent{
		model:         model,
		registry:      registry,
		parser:        parser,
		retriever:     retriever,
		maxIterations: maxIterations,
		now:           time.Now,
	}
}

// SetClock overrides the clock used in the system prompt.
func (a *Agent) SetClock(now func() time.Time) {
	a.now = now
}

// Respond answers text given the prior history of the conversation.
// On failure the returned Outcome still lists the tools that ran.
func (a *Agent) Respond(ctx context.Context, userID string, history []ai.Message, text string) (*Outcome, error) {
	if a.parser != nil {
		res := a.parser.Classify(text)
		switch res.Outcome {
		case intent.NeedsClarification:
			return &Outcome{Reply: res.Prompt, Path: PathClarification, Tools: []ToolRecord{}}, nil
		case intent.DirectToolCall:
			return a.direct(ctx, userID, res), nil
		}
	}
	return a.loop(ctx, userID, history, text)
}

func (a *Agent) direct(ctx context.Context, userID string, res intent.Result) *Outcome {
	value, err := a.registry.Execute(ctx, string(res.Tool), res.Args, userID)
	if err != nil {
		log.Printf("[Agent] Direct %s failed for user %s: %v", res.Tool, userID, err)
	}
	return &Outcome{
		Reply: tools.Summarize(res.Tool, value, err),
		Path:  PathDirectTool,
		Tools: []ToolRecord{record(string(res.Tool), res.Args, err)},
	}
}

func (a *Agent) loop(ctx context.Context, userID string, history []ai.Message, text string) (*Outcome, error) {
	out := &Outcome{Path: PathLLM, Tools: []ToolRecord{}}
	if a.model == nil {
		return out, errs.Configuration("no chat model configured")
	}

	messages := []ai.Message{{Role: ai.RoleSystem, Content: a.systemPrompt()}}
	for _, m := range history {
		if m.Role == ai.RoleSystem {
			continue
		}
		messages = append(messages, m)
	}
	messages = append(messages, ai.Message{Role: ai.RoleUser, Content: a.withContext(ctx, userID, text)})

	schemas := a.registry.Schemas()
	for out.Iterations < a.maxIterations {
		out.Iterations++

		resp, err := a.model.Chat(ctx, messages, schemas)
		if err != nil {
			return out, err
		}
		if len(resp.ToolCalls) == 0 {
			out.Reply = resp.Content
			return out, nil
		}

		messages = append(messages, ai.Message{Role: ai.RoleAssistant, Content: resp.Content, ToolCalls: resp.ToolCalls})
		for _, call := range resp.ToolCalls {
			value, err := a.registry.Execute(ctx, call.Name, call.Arguments, userID)
			if err != nil {
				log.Printf("[Agent] Tool %s failed for user %s: %v", call.Name, userID, err)
			}
			out.Tools = append(out.Tools, record(call.Name, call.Arguments, err))
			messages = append(messages, ai.Message{
				Role:       ai.RoleTool,
				ToolCallID: call.ID,
				Name:       call.Name,
				Content:    tools.Encode(value, err),
			})
		}
	}
	return out, fmt.Errorf("%w (%d)", errs.ErrMaxIterations, a.maxIterations)
}

// withContext prefixes the message with retrieved records when it looks like a lookup.
func (a *Agent) withContext(ctx context.Context, userID, text string) string {
	if a.retriever == nil || !knowledge.ShouldRetrieve(text) {
		return text
	}
	block, err := a.retriever.ContextFor(ctx, userID, text)
	if err != nil {
		log.Printf("[Agent] Retrieval skipped for user %s: %v", userID, err)
		return text
	}
	return "Context from the user's emails and contacts:\n" + block + "\n\nUser message: " + text
}

func (a *Agent) systemPrompt() string {
	return fmt.Sprintf(`You are an assistant for a financial advisor. You can search their synced emails and HubSpot contacts, send email from their Gmail account, and manage their Google Calendar and HubSpot CRM through the provided tools.
Today is %s.
Use the context block when it is present and say so when nothing relevant was found. Ask for missing details instead of guessing email addresses or times. Calendar times must be RFC3339.`,
		a.now().Format("Monday, January 2, 2006 15:04 MST"))
}

func record(name string, args map[string]any, err error) ToolRecord {
	if args == nil {
		args = map[string]any{}
	}
	r := ToolRecord{Name: name, Arguments: args, Success: err == nil}
	if err != nil {
		r.Error = err.Error()
	}
	return r
}
