package embedding

import (
	"context"
	"net/http"

	"advisor-backend/pkg/errs"
)

// Provider turns text into fixed-length vectors.
// EmbedMany returns vectors in input order.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedMany(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}

type ProviderType string

const (
	ProviderOpenAI ProviderType = "openai"
	ProviderOllama ProviderType = "ollama"
	ProviderGemini ProviderType = "gemini"
)

type Config struct {
	Provider   ProviderType
	Model      string
	BaseURL    string
	APIKey     string
	Dimensions int
	HTTPClient *http.Client
}

// NewProvider selects the embedding backend once at startup.
func NewProvider(cfg Config) (Provider, error) {
	if cfg.Dimensions <= 0 {
		return nil, errs.Configuration("embedding dimensions must be positive")
	}
	switch cfg.Provider {
	case ProviderOpenAI:
		if cfg.APIKey == "" {
			return nil, errs.Configuration("EMBEDDING_API_KEY is required for the openai provider")
		}
		return NewOpenAIProvider(cfg), nil
	case ProviderOllama:
		return NewOllamaProvider(cfg), nil
	case ProviderGemini:
		return NewGeminiProvider(cfg)
	default:
		return nil, errs.Configuration("unknown embedding provider %q", cfg.Provider)
	}
}

// checkDimensions rejects vectors whose size differs from the configured column size.
func checkDimensions(want int, vecs ...[]float32) error {
	for _, v := range vecs {
		if len(v) != want {
			return errs.Configuration("embedding dimension mismatch: got %d, want %d", len(v), want)
		}
	}
	return nil
}
