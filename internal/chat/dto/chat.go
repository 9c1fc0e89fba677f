package dto

import "advisor-backend/internal/chat/domain"

type CreateConversationRequest struct {
	Title string `json:"title"`
}

type UpdateConversationRequest struct {
	Title    *string `json:"title,omitempty"`
	Archived *bool   `json:"archived,omitempty"`
}

type SendMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

type ConversationDetail struct {
	Conversation *domain.Conversation `json:"conversation"`
	Messages     []*domain.Message    `json:"messages"`
}

type SendMessageResponse struct {
	Conversation     *domain.Conversation `json:"conversation"`
	UserMessage      *domain.Message      `json:"user_message"`
	AssistantMessage *domain.Message      `json:"assistant_message"`
}
