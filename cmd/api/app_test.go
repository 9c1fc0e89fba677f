package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	authdomain "advisor-backend/internal/auth/domain"
	authRepo "advisor-backend/internal/auth/repository"
	authUsecase "advisor-backend/internal/auth/usecase"
	"advisor-backend/pkg/config"
	"advisor-backend/pkg/embedding"
	"advisor-backend/pkg/errs"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "app.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db
}

type fakeTuner struct{ v float64 }

func (f *fakeTuner) SetMinSimilarity(v float64) { f.v = v }

func TestMigrateCreatesEveryTable(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, Migrate(db, 768))

	for _, table := range []string{"users", "refresh_tokens", "fcm_tokens", "email_embeddings", "contact_embeddings", "sync_histories", "conversations", "messages", "tasks"} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}
}

func TestGmailTopic(t *testing.T) {
	a := &App{Config: &config.Config{}}
	assert.Empty(t, a.gmailTopic())

	a.Config.GoogleProjectID = "proj"
	assert.Equal(t, "projects/proj/topics/gmail-updates", a.gmailTopic())

	a.Config.GooglePubSubTopic = "inbox"
	assert.Equal(t, "projects/proj/topics/inbox", a.gmailTopic())

	a.Config.GooglePubSubTopic = "projects/other/topics/mail"
	assert.Equal(t, "projects/other/topics/mail", a.gmailTopic())
}

func TestIntentLocation(t *testing.T) {
	assert.Equal(t, time.UTC, intentLocation("not/a-zone"))
	assert.Equal(t, "UTC", intentLocation("").String())
	assert.Equal(t, "UTC", intentLocation("UTC").String())
}

func TestNewVectorStoreBackends(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	ollama, err := embedding.NewProvider(embedding.Config{Provider: embedding.ProviderOllama, Dimensions: 3})
	require.NoError(t, err)

	store, err := newVectorStore(ctx, &config.Config{VectorBackend: "pgvector", EmbeddingDimensions: 3}, db, ollama)
	require.NoError(t, err)
	assert.NotNil(t, store)

	_, err = newVectorStore(ctx, &config.Config{VectorBackend: "chroma"}, db, ollama)
	assert.True(t, errors.Is(err, errs.ErrConfiguration))

	_, err = newVectorStore(ctx, &config.Config{VectorBackend: "faiss"}, db, ollama)
	assert.True(t, errors.Is(err, errs.ErrConfiguration))
}

func TestNewChatModelUsesRuntimeOllamaSettings(t *testing.T) {
	settings := NewRuntimeSettings("", "", 0.3)
	model, err := newChatModel(&config.Config{LLMProvider: "ollama"}, settings)
	require.NoError(t, err)
	assert.NotNil(t, model)

	_, err = newChatModel(&config.Config{LLMProvider: "openai"}, settings)
	assert.True(t, errors.Is(err, errs.ErrConfiguration))
}

func newTestRouter(t *testing.T) (*gin.Engine, *RuntimeSettings) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)
	require.NoError(t, Migrate(db, 3))

	cfg := &config.Config{JWTSecret: "test-secret", JWTAccessExpiry: time.Minute, JWTRefreshExpiry: time.Hour}
	users := authRepo.NewUserRepository(db)
	app := &App{
		Config:   cfg,
		DB:       db,
		Users:    users,
		Auth:     authUsecase.NewAuthUsecase(users, authRepo.NewFCMTokenRepository(db), cfg, map[authdomain.Provider]*oauth2.Config{}),
		Settings: NewRuntimeSettings("http://ollama:11434/", "llama3.1", 0.3),
	}
	return NewHandler(app).Router(), app.Settings
}

func do(t *testing.T, r http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRouterHealthAndAuth(t *testing.T) {
	r, _ := newTestRouter(t)

	w := do(t, r, http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = do(t, r, http.MethodGet, "/api/settings/retrieval", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(t, r, http.MethodOptions, "/api/chat", "", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func registerToken(t *testing.T, r http.Handler) string {
	t.Helper()
	w := do(t, r, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": "advisor@example.com", "password": "secret123", "name": "Ada",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.AccessToken
}

func TestRetrievalSettings(t *testing.T) {
	r, settings := newTestRouter(t)
	tuner := &fakeTuner{}
	settings.SetRetrieval(tuner)
	token := registerToken(t, r)

	w := do(t, r, http.MethodGet, "/api/settings/retrieval", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"min_similarity":0.3}`, w.Body.String())

	w = do(t, r, http.MethodPut, "/api/settings/retrieval", token, map[string]float64{"min_similarity": 0.55})
	require.Equal(t, http.StatusOK, w.Code)
	assert.InDelta(t, 0.55, tuner.v, 1e-9)
	assert.InDelta(t, 0.55, settings.MinSimilarity(), 1e-9)

	w = do(t, r, http.MethodPut, "/api/settings/retrieval", token, map[string]float64{"min_similarity": 1.5})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodPut, "/api/settings/retrieval", token, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOllamaSettings(t *testing.T) {
	ollama := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"models":[{"name":"llama3.1"},{"name":"qwen2.5"}]}`))
	}))
	defer ollama.Close()

	r, settings := newTestRouter(t)
	token := registerToken(t, r)

	w := do(t, r, http.MethodGet, "/api/settings/ollama", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ollama_base_url":"http://ollama:11434","ollama_model":"llama3.1"}`, w.Body.String())

	w = do(t, r, http.MethodPut, "/api/settings/ollama", token, map[string]string{"ollama_base_url": ollama.URL + "/"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, ollama.URL, settings.OllamaBaseURL())
	assert.Equal(t, "llama3.1", settings.OllamaModel())

	w = do(t, r, http.MethodPost, "/api/settings/ollama/test", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Connected bool     `json:"connected"`
		Models    []string `json:"models"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Connected)
	assert.Equal(t, []string{"llama3.1", "qwen2.5"}, resp.Models)

	w = do(t, r, http.MethodPost, "/api/settings/ollama/test", token, map[string]string{"ollama_base_url": "http://127.0.0.1:1"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
