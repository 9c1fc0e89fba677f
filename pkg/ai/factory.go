package ai

import (
	"advisor-backend/pkg/errs"
)

// NewChatModel selects the chat backend once at startup.
func NewChatModel(cfg Config) (ChatModel, error) {
	switch cfg.Provider {
	case ProviderOpenAI:
		if cfg.APIKey == "" {
			return nil, errs.Configuration("LLM_API_KEY is required for the openai provider")
		}
		return NewOpenAIChat(cfg), nil

	case ProviderOllama:
		return NewOllamaChat(cfg), nil

	case ProviderGemini:
		if cfg.APIKey == "" {
			return nil, errs.Configuration("LLM_API_KEY is required for the gemini provider")
		}
		return NewGeminiChat(cfg), nil

	default:
		return nil, errs.Configuration("unknown LLM provider %q", cfg.Provider)
	}
}
