package api

import (
	"net/http"

	"advisor-backend/internal/auth/delivery"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(r *gin.Engine, h *Handler) {
	api := r.Group("/api")

	// Health check (no auth required)
	api.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	protected := api.Group("")
	protected.Use(delivery.AuthMiddleware(h.authUsecase))

	h.authHandler.RegisterRoutes(api, protected)
	h.knowledgeHandler.RegisterRoutes(protected)
	h.chatHandler.RegisterRoutes(protected)
	h.taskHandler.RegisterRoutes(protected)
	h.settings.RegisterRoutes(protected)
}
