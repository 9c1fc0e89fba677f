package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"advisor-backend/pkg/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProviderValidatesConfig(t *testing.T) {
	_, err := NewProvider(Config{Provider: ProviderOpenAI, Dimensions: 768})
	assert.True(t, errors.Is(err, errs.ErrConfiguration))

	_, err = NewProvider(Config{Provider: ProviderOllama})
	assert.True(t, errors.Is(err, errs.ErrConfiguration))

	_, err = NewProvider(Config{Provider: "cohere", Dimensions: 768})
	assert.True(t, errors.Is(err, errs.ErrConfiguration))

	t.Setenv("GEMINI_API_KEY", "")
	_, err = NewProvider(Config{Provider: ProviderGemini, Dimensions: 768})
	assert.True(t, errors.Is(err, errs.ErrConfiguration))

	p, err := NewProvider(Config{Provider: ProviderOllama, Dimensions: 3})
	require.NoError(t, err)
	assert.Equal(t, 3, p.Dimensions())
}

func TestOpenAIEmbedManyPreservesInputOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		var req openAIEmbeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"first", "second"}, req.Input)
		assert.Equal(t, 2, req.Dimensions)
		_, _ = w.Write([]byte(`{"data":[
			{"index":1,"embedding":[0,1]},
			{"index":0,"embedding":[1,0]}]}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider(Config{BaseURL: srv.URL, APIKey: "k", Dimensions: 2})
	vecs, err := p.EmbedMany(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, vecs)
}

func TestOpenAIEmbedNonSuccessIsProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := NewOpenAIProvider(Config{BaseURL: srv.URL, APIKey: "bad", Dimensions: 2}).Embed(context.Background(), "x")
	assert.True(t, errs.IsProvider(err))
}

func TestOllamaEmbedDimensionMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)
		_, _ = w.Write([]byte(`{"embeddings":[[0.1,0.2,0.3]]}`))
	}))
	defer srv.Close()

	_, err := NewOllamaProvider(Config{BaseURL: srv.URL, Dimensions: 768}).Embed(context.Background(), "x")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrConfiguration))
	assert.Contains(t, err.Error(), "got 3, want 768")
}

func TestOllamaEmbedManyEmptyInput(t *testing.T) {
	vecs, err := NewOllamaProvider(Config{Dimensions: 3}).EmbedMany(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vecs)
}
