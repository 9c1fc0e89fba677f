package embedding

import (
	"context"
	"fmt"
	"os"

	"advisor-backend/pkg/errs"

	"github.com/amikos-tech/chroma-go/pkg/embeddings"
	"github.com/amikos-tech/chroma-go/pkg/embeddings/gemini"
)

// GeminiProvider uses chroma-go's Gemini embedding function.
type GeminiProvider struct {
	embedFunc *gemini.GeminiEmbeddingFunction
	dims      int
}

func NewGeminiProvider(cfg Config) (*GeminiProvider, error) {
	if cfg.APIKey != "" {
		os.Setenv("GEMINI_API_KEY", cfg.APIKey)
	}
	if os.Getenv("GEMINI_API_KEY") == "" {
		return nil, errs.Configuration("EMBEDDING_API_KEY is required for the gemini provider")
	}

	model := cfg.Model
	if model == "" {
		model = "text-embedding-004"
	}

	embedFunc, err := gemini.NewGeminiEmbeddingFunction(
		gemini.WithEnvAPIKey(),
		gemini.WithDefaultModel(embeddings.EmbeddingModel(model)),
	)
	if err != nil {
		return nil, errs.Configuration("failed to create Gemini embedding function: %v", err)
	}

	return &GeminiProvider{embedFunc: embedFunc, dims: cfg.Dimensions}, nil
}

// EmbeddingFunction exposes the underlying function for the chroma vector backend.
func (p *GeminiProvider) EmbeddingFunction() *gemini.GeminiEmbeddingFunction {
	return p.embedFunc
}

func (p *GeminiProvider) Dimensions() int { return p.dims }

func (p *GeminiProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	emb, err := p.embedFunc.EmbedQuery(ctx, text)
	if err != nil {
		return nil, errs.NewTransportError("gemini", err)
	}
	vec := emb.ContentAsFloat32()
	if err := checkDimensions(p.dims, vec); err != nil {
		return nil, err
	}
	return vec, nil
}

func (p *GeminiProvider) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	embs, err := p.embedFunc.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, errs.NewTransportError("gemini", err)
	}
	if len(embs) != len(texts) {
		return nil, fmt.Errorf("gemini returned %d embeddings for %d inputs", len(embs), len(texts))
	}

	vecs := make([][]float32, len(embs))
	for i, emb := range embs {
		vecs[i] = emb.ContentAsFloat32()
	}
	if err := checkDimensions(p.dims, vecs...); err != nil {
		return nil, err
	}
	return vecs, nil
}
