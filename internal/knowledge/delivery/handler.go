package delivery

import (
	"net/http"

	"advisor-backend/internal/knowledge/domain"
	"advisor-backend/internal/knowledge/usecase"
	"advisor-backend/pkg/errs"

	"github.com/gin-gonic/gin"
)

type KnowledgeHandler struct {
	retrieval *usecase.RetrievalEngine
	sync      *usecase.SyncService
}

func NewKnowledgeHandler(retrieval *usecase.RetrievalEngine, syncService *usecase.SyncService) *KnowledgeHandler {
	return &KnowledgeHandler{
		retrieval: retrieval,
		sync:      syncService,
	}
}

type SearchRequest struct {
	Query         string   `json:"query" binding:"required"`
	EmailLimit    int      `json:"email_limit"`
	ContactLimit  int      `json:"contact_limit"`
	MinSimilarity *float64 `json:"min_similarity"`
}

type SyncRequest struct {
	Kind string `json:"kind"`
}

// Search returns ranked records and the context block the agent would see.
// POST /api/knowledge/search
func (h *KnowledgeHandler) Search(c *gin.Context) {
	userID := c.GetString("userID")

	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	opts := h.retrieval.Defaults()
	if req.EmailLimit > 0 {
		opts.EmailLimit = req.EmailLimit
	}
	if req.ContactLimit > 0 {
		opts.ContactLimit = req.ContactLimit
	}
	if req.MinSimilarity != nil {
		opts.MinSimilarity = *req.MinSimilarity
	}

	emails, contacts, err := h.retrieval.Search(c.Request.Context(), userID, req.Query, opts)
	if err != nil {
		c.JSON(errs.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"emails":   emails,
		"contacts": contacts,
		"context":  usecase.FormatContext(emails, contacts),
	})
}

// Sync queues a background sync; an empty kind queues both.
// POST /api/knowledge/sync
func (h *KnowledgeHandler) Sync(c *gin.Context) {
	userID := c.GetString("userID")

	var req SyncRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	kinds := []domain.Kind{domain.KindEmails, domain.KindContacts}
	if req.Kind != "" {
		kind, ok := domain.ParseKind(req.Kind)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "kind must be emails or contacts"})
			return
		}
		kinds = []domain.Kind{kind}
	}

	queued := []domain.Kind{}
	for _, kind := range kinds {
		if h.sync.Enqueue(usecase.SyncJob{UserID: userID, Kind: kind}) {
			queued = append(queued, kind)
		}
	}
	if len(queued) == 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "sync queue is full"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"queued": queued})
}

// Status reports stored counts and the would-help signal.
// GET /api/knowledge/status
func (h *KnowledgeHandler) Status(c *gin.Context) {
	status, err := h.sync.Status(c.Request.Context(), c.GetString("userID"))
	if err != nil {
		c.JSON(errs.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, status)
}

func (h *KnowledgeHandler) RegisterRoutes(protected *gin.RouterGroup) {
	knowledge := protected.Group("/knowledge")
	knowledge.POST("/search", h.Search)
	knowledge.POST("/sync", h.Sync)
	knowledge.GET("/status", h.Status)
}
