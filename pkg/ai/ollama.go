package ai

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"advisor-backend/pkg/httpx"
)

// OllamaChat implements ChatModel using a local Ollama server's /api/chat endpoint
type OllamaChat struct {
	getBaseURL func() string // Dynamic getter for BaseURL
	getModel   func() string // Dynamic getter for Model
	client     *http.Client
}

// NewOllamaChat creates a chat model with static settings
func NewOllamaChat(cfg Config) *OllamaChat {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	model := cfg.Model
	if model == "" {
		model = "llama3.1"
	}
	return &OllamaChat{
		getBaseURL: func() string { return baseURL },
		getModel:   func() string { return model },
		client:     cfg.HTTPClient,
	}
}

// NewOllamaChatWithGetters creates a chat model whose endpoint can change at runtime
func NewOllamaChatWithGetters(getBaseURL, getModel func() string) *OllamaChat {
	return &OllamaChat{
		getBaseURL: getBaseURL,
		getModel:   getModel,
	}
}

type ollamaFunctionCall struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

type ollamaToolCall struct {
	Function ollamaFunctionCall `json:"function"`
}

type ollamaMessage struct {
	Role      string           `json:"role"`
	Content   string           `json:"content"`
	ToolCalls []ollamaToolCall `json:"tool_calls,omitempty"`
	ToolName  string           `json:"tool_name,omitempty"`
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Tools    []openAITool    `json:"tools,omitempty"`
	Stream   bool            `json:"stream"`
	Options  map[string]any  `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
}

// Chat implements ChatModel. Ollama does not return call ids, so they are derived from position.
func (o *OllamaChat) Chat(ctx context.Context, messages []Message, tools []ToolSchema) (*ChatResponse, error) {
	req := ollamaChatRequest{
		Model:   o.getModel(),
		Stream:  false,
		Options: map[string]any{"temperature": 0.2},
	}
	for _, m := range messages {
		msg := ollamaMessage{Role: string(m.Role), Content: m.Content}
		if m.Role == RoleTool {
			msg.ToolName = m.Name
		}
		for _, tc := range m.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls, ollamaToolCall{
				Function: ollamaFunctionCall{Name: tc.Name, Arguments: tc.Arguments},
			})
		}
		req.Messages = append(req.Messages, msg)
	}
	for _, t := range tools {
		req.Tools = append(req.Tools, openAITool{
			Type:     "function",
			Function: openAIFunction{Name: t.Name, Description: t.Description, Parameters: t.Parameters},
		})
	}

	var resp ollamaChatResponse
	url := strings.TrimRight(o.getBaseURL(), "/") + "/api/chat"
	if err := httpx.PostJSON(ctx, o.client, "ollama", url, nil, req, &resp); err != nil {
		return nil, err
	}

	out := &ChatResponse{Content: resp.Message.Content}
	for i, tc := range resp.Message.ToolCalls {
		args := tc.Function.Arguments
		if args == nil {
			args = map[string]any{}
		}
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID:        fmt.Sprintf("call_%d", i),
			Name:      tc.Function.Name,
			Arguments: args,
		})
	}
	return out, nil
}
