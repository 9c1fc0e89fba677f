package ai

import (
	"context"
	"net/http"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one entry of the prompt sent to a chat model.
// Assistant messages may carry ToolCalls; tool messages answer one call by ToolCallID.
type Message struct {
	Role       Role
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
	Name       string
}

// ToolCall is a function invocation requested by the model.
type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]any
}

// ToolSchema describes a callable function in the provider's function-calling format.
type ToolSchema struct {
	Name        string
	Description string
	Parameters  Parameters
}

type Parameters struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required,omitempty"`
}

type Property struct {
	Type        string    `json:"type"`
	Description string    `json:"description,omitempty"`
	Items       *Property `json:"items,omitempty"`
}

type ChatResponse struct {
	Content   string
	ToolCalls []ToolCall
}

// ChatModel is implemented once per LLM backend.
type ChatModel interface {
	Chat(ctx context.Context, messages []Message, tools []ToolSchema) (*ChatResponse, error)
}

// ProviderType represents the LLM backend
type ProviderType string

const (
	ProviderOpenAI ProviderType = "openai"
	ProviderOllama ProviderType = "ollama"
	ProviderGemini ProviderType = "gemini"
)

// Config holds chat model configuration
type Config struct {
	Provider   ProviderType
	Model      string
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}
