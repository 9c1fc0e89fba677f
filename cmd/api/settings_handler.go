package api

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"advisor-backend/pkg/httpx"

	"github.com/gin-gonic/gin"
)

const (
	defaultOllamaBaseURL = "http://localhost:11434"
	defaultOllamaModel   = "llama3.1"
)

// SimilarityTuner is the retrieval setting exposed at runtime.
type SimilarityTuner interface {
	SetMinSimilarity(v float64)
}

// RuntimeSettings holds the settings that can change without a restart.
type RuntimeSettings struct {
	mu            sync.RWMutex
	ollamaBaseURL string
	ollamaModel   string
	minSimilarity float64

	retrieval  SimilarityTuner
	httpClient *http.Client
}

func NewRuntimeSettings(ollamaBaseURL, ollamaModel string, minSimilarity float64) *RuntimeSettings {
	if ollamaBaseURL == "" {
		ollamaBaseURL = defaultOllamaBaseURL
	}
	if ollamaModel == "" {
		ollamaModel = defaultOllamaModel
	}
	return &RuntimeSettings{
		ollamaBaseURL: strings.TrimRight(ollamaBaseURL, "/"),
		ollamaModel:   ollamaModel,
		minSimilarity: minSimilarity,
	}
}

// SetRetrieval binds the engine whose threshold the retrieval endpoint updates.
func (s *RuntimeSettings) SetRetrieval(r SimilarityTuner) {
	s.retrieval = r
}

// OllamaBaseURL returns the current runtime Ollama base URL
func (s *RuntimeSettings) OllamaBaseURL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ollamaBaseURL
}

// OllamaModel returns the current runtime Ollama model
func (s *RuntimeSettings) OllamaModel() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ollamaModel
}

func (s *RuntimeSettings) MinSimilarity() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.minSimilarity
}

type UpdateOllamaSettingsRequest struct {
	OllamaBaseURL string `json:"ollama_base_url" binding:"required"`
	OllamaModel   string `json:"ollama_model,omitempty"`
}

type UpdateRetrievalSettingsRequest struct {
	MinSimilarity *float64 `json:"min_similarity" binding:"required"`
}

// GetOllamaSettings returns current Ollama configuration
// GET /api/settings/ollama
func (s *RuntimeSettings) GetOllamaSettings(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"ollama_base_url": s.OllamaBaseURL(),
		"ollama_model":    s.OllamaModel(),
	})
}

// UpdateOllamaSettings updates Ollama configuration at runtime
// PUT /api/settings/ollama
func (s *RuntimeSettings) UpdateOllamaSettings(c *gin.Context) {
	var req UpdateOllamaSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.mu.Lock()
	s.ollamaBaseURL = strings.TrimRight(req.OllamaBaseURL, "/")
	if req.OllamaModel != "" {
		s.ollamaModel = req.OllamaModel
	}
	s.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{
		"message":         "Ollama settings updated successfully",
		"ollama_base_url": s.OllamaBaseURL(),
		"ollama_model":    s.OllamaModel(),
	})
}

// TestOllamaConnection tests if the Ollama server is reachable
// POST /api/settings/ollama/test
func (s *RuntimeSettings) TestOllamaConnection(c *gin.Context) {
	var req struct {
		OllamaBaseURL string `json:"ollama_base_url"`
	}
	_ = c.ShouldBindJSON(&req)
	if req.OllamaBaseURL == "" {
		req.OllamaBaseURL = s.OllamaBaseURL()
	}
	baseURL := strings.TrimRight(req.OllamaBaseURL, "/")

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	var tags struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := httpx.DoJSON(ctx, s.httpClient, "ollama", http.MethodGet, baseURL+"/api/tags", nil, nil, &tags); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"connected": false,
			"error":     err.Error(),
		})
		return
	}

	models := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		models = append(models, m.Name)
	}
	c.JSON(http.StatusOK, gin.H{
		"connected":       true,
		"ollama_base_url": baseURL,
		"models":          models,
	})
}

// GetRetrievalSettings returns the retrieval threshold applied to agent context
// GET /api/settings/retrieval
func (s *RuntimeSettings) GetRetrievalSettings(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"min_similarity": s.MinSimilarity()})
}

// UpdateRetrievalSettings changes the retrieval threshold at runtime
// PUT /api/settings/retrieval
func (s *RuntimeSettings) UpdateRetrievalSettings(c *gin.Context) {
	var req UpdateRetrievalSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	v := *req.MinSimilarity
	if v < -1 || v > 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "min_similarity must be between -1 and 1"})
		return
	}

	s.mu.Lock()
	s.minSimilarity = v
	s.mu.Unlock()
	if s.retrieval != nil {
		s.retrieval.SetMinSimilarity(v)
	}

	c.JSON(http.StatusOK, gin.H{"min_similarity": v})
}

// RegisterRoutes mounts the settings routes on the protected group.
func (s *RuntimeSettings) RegisterRoutes(protected *gin.RouterGroup) {
	settings := protected.Group("/settings")
	settings.GET("/ollama", s.GetOllamaSettings)
	settings.PUT("/ollama", s.UpdateOllamaSettings)
	settings.POST("/ollama/test", s.TestOllamaConnection)
	settings.GET("/retrieval", s.GetRetrievalSettings)
	settings.PUT("/retrieval", s.UpdateRetrievalSettings)
}
