package delivery

import (
	"net/http"
	"strconv"

	"advisor-backend/internal/chat/dto"
	"advisor-backend/internal/chat/usecase"
	"advisor-backend/pkg/errs"

	"github.com/gin-gonic/gin"
)

type ChatHandler struct {
	chatUsecase usecase.ChatUsecase
}

func NewChatHandler(chatUsecase usecase.ChatUsecase) *ChatHandler {
	return &ChatHandler{chatUsecase: chatUsecase}
}

func respondError(c *gin.Context, err error) {
	c.JSON(errs.HTTPStatus(err), gin.H{"error": err.Error()})
}

// GET /api/conversations?archived=true
func (h *ChatHandler) ListConversations(c *gin.Context) {
	userID := c.GetString("userID")
	includeArchived, _ := strconv.ParseBool(c.DefaultQuery("archived", "false"))

	convs, err := h.chatUsecase.ListConversations(userID, includeArchived)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": convs})
}

// POST /api/conversations
func (h *ChatHandler) CreateConversation(c *gin.Context) {
	userID := c.GetString("userID")

	var req dto.CreateConversationRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	conv, err := h.chatUsecase.CreateConversation(userID, req.Title)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, conv)
}

// GET /api/conversations/:id
func (h *ChatHandler) GetConversation(c *gin.Context) {
	detail, err := h.chatUsecase.GetConversation(c.GetString("userID"), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// PATCH /api/conversations/:id
func (h *ChatHandler) UpdateConversation(c *gin.Context) {
	var req dto.UpdateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	conv, err := h.chatUsecase.UpdateConversation(c.GetString("userID"), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, conv)
}

// DELETE /api/conversations/:id
func (h *ChatHandler) DeleteConversation(c *gin.Context) {
	if err := h.chatUsecase.DeleteConversation(c.GetString("userID"), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Conversation deleted"})
}

// SendMessage posts to an existing conversation.
// POST /api/conversations/:id/messages
func (h *ChatHandler) SendMessage(c *gin.Context) {
	h.send(c, c.Param("id"))
}

// StartChat opens a new conversation with its first message.
// POST /api/chat
func (h *ChatHandler) StartChat(c *gin.Context) {
	h.send(c, "")
}

func (h *ChatHandler) send(c *gin.Context, conversationID string) {
	var req dto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.chatUsecase.SendMessage(c.Request.Context(), c.GetString("userID"), conversationID, req.Content)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *ChatHandler) RegisterRoutes(protected *gin.RouterGroup) {
	protected.POST("/chat", h.StartChat)

	convs := protected.Group("/conversations")
	convs.GET("", h.ListConversations)
	convs.POST("", h.CreateConversation)
	convs.GET("/:id", h.GetConversation)
	convs.PATCH("/:id", h.UpdateConversation)
	convs.DELETE("/:id", h.DeleteConversation)
	convs.POST("/:id/messages", h.SendMessage)
}
