package api

import (
	authDelivery "advisor-backend/internal/auth/delivery"
	authUsecase "advisor-backend/internal/auth/usecase"
	chatDelivery "advisor-backend/internal/chat/delivery"
	knowledgeDelivery "advisor-backend/internal/knowledge/delivery"
	taskDelivery "advisor-backend/internal/task/delivery"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	authUsecase      authUsecase.AuthUsecase
	authHandler      *authDelivery.AuthHandler
	knowledgeHandler *knowledgeDelivery.KnowledgeHandler
	chatHandler      *chatDelivery.ChatHandler
	taskHandler      *taskDelivery.TaskHandler
	settings         *RuntimeSettings
}

func NewHandler(app *App) *Handler {
	return &Handler{
		authUsecase:      app.Auth,
		authHandler:      authDelivery.NewAuthHandler(app.Auth, app.Config.FrontendURL),
		knowledgeHandler: knowledgeDelivery.NewKnowledgeHandler(app.Retrieval, app.Sync),
		chatHandler:      chatDelivery.NewChatHandler(app.Chat),
		taskHandler:      taskDelivery.NewTaskHandler(app.Tasks),
		settings:         app.Settings,
	}
}

// corsMiddleware echoes the request origin so the frontend can send credentials.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		} else {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// Router builds the gin engine with every route mounted.
func (h *Handler) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery(), corsMiddleware())

	SetupRoutes(r, h)
	return r
}

func (h *Handler) Start(addr string) error {
	return h.Router().Run(addr)
}
