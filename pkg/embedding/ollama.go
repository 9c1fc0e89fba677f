package embedding

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"advisor-backend/pkg/httpx"
)

// OllamaProvider calls a local Ollama /api/embed endpoint.
type OllamaProvider struct {
	baseURL string
	model   string
	dims    int
	client  *http.Client
}

func NewOllamaProvider(cfg Config) *OllamaProvider {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	model := cfg.Model
	if model == "" {
		model = "nomic-embed-text"
	}
	return &OllamaProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		dims:    cfg.Dimensions,
		client:  cfg.HTTPClient,
	}
}

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

func (p *OllamaProvider) Dimensions() int { return p.dims }

func (p *OllamaProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := p.EmbedMany(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (p *OllamaProvider) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var resp ollamaEmbedResponse
	req := ollamaEmbedRequest{Model: p.model, Input: texts}
	if err := httpx.PostJSON(ctx, p.client, "ollama", p.baseURL+"/api/embed", nil, req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama returned %d embeddings for %d inputs", len(resp.Embeddings), len(texts))
	}
	if err := checkDimensions(p.dims, resp.Embeddings...); err != nil {
		return nil, err
	}
	return resp.Embeddings, nil
}
