package usecase

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"unicode/utf8"

	"advisor-backend/internal/agent"
	"advisor-backend/internal/chat/domain"
	"advisor-backend/internal/chat/dto"
	"advisor-backend/internal/chat/repository"
	"advisor-backend/pkg/ai"
	"advisor-backend/pkg/errs"

	"gorm.io/datatypes"
)

const (
	titleLength  = 50
	defaultTitle = "New conversation"
	errorReply   = "Sorry, I ran into a problem answering that: "
)

// Responder produces the assistant's reply for one user message.
type Responder interface {
	Respond(ctx context.Context, userID string, history []ai.Message, text string) (*agent.Outcome, error)
}

type ChatUsecase interface {
	CreateConversation(userID, title string) (*domain.Conversation, error)
	ListConversations(userID string, includeArchived bool) ([]*domain.Conversation, error)
	GetConversation(userID, id string) (*dto.ConversationDetail, error)
	UpdateConversation(userID, id string, req dto.UpdateConversationRequest) (*domain.Conversation, error)
	DeleteConversation(userID, id string) error
	// SendMessage stores the user message, runs the agent and stores its reply.
	// An empty conversationID starts a new conversation titled after the message.
	SendMessage(ctx context.Context, userID, conversationID, text string) (*dto.SendMessageResponse, error)
	DeleteByUser(ctx context.Context, userID string) error
}

type chatUsecase struct {
	repo      repository.ChatRepository
	responder Responder
}

func NewChatUsecase(repo repository.ChatRepository, responder Responder) ChatUsecase {
	return &chatUsecase{repo: repo, responder: responder}
}

func (u *chatUsecase) CreateConversation(userID, title string) (*domain.Conversation, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = defaultTitle
	}
	conv := &domain.Conversation{UserID: userID, Title: title}
	if err := u.repo.CreateConversation(conv); err != nil {
		return nil, err
	}
	return conv, nil
}

func (u *chatUsecase) ListConversations(userID string, includeArchived bool) ([]*domain.Conversation, error) {
	return u.repo.ListConversations(userID, includeArchived)
}

// owned loads a conversation and hides other users' conversations as not found.
func (u *chatUsecase) owned(userID, id string) (*domain.Conversation, error) {
	conv, err := u.repo.FindConversation(id)
	if err != nil {
		return nil, err
	}
	if conv == nil || conv.UserID != userID {
		return nil, errs.NotFound("conversation")
	}
	return conv, nil
}

func (u *chatUsecase) GetConversation(userID, id string) (*dto.ConversationDetail, error) {
	conv, err := u.owned(userID, id)
	if err != nil {
		return nil, err
	}
	msgs, err := u.repo.ListMessages(id)
	if err != nil {
		return nil, err
	}
	return &dto.ConversationDetail{Conversation: conv, Messages: msgs}, nil
}

func (u *chatUsecase) UpdateConversation(userID, id string, req dto.UpdateConversationRequest) (*domain.Conversation, error) {
	if _, err := u.owned(userID, id); err != nil {
		return nil, err
	}
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return nil, errs.Validation("title must not be empty")
		}
		if err := u.repo.Rename(id, title); err != nil {
			return nil, err
		}
	}
	if req.Archived != nil {
		if err := u.repo.SetArchived(id, *req.Archived); err != nil {
			return nil, err
		}
	}
	return u.owned(userID, id)
}

func (u *chatUsecase) DeleteConversation(userID, id string) error {
	if _, err := u.owned(userID, id); err != nil {
		return err
	}
	return u.repo.DeleteConversation(id)
}

func (u *chatUsecase) SendMessage(ctx context.Context, userID, conversationID, text string) (*dto.SendMessageResponse, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errs.Validation("message must not be empty")
	}

	var conv *domain.Conversation
	var history []ai.Message
	var err error
	if conversationID == "" {
		conv, err = u.CreateConversation(userID, Title(text))
		if err != nil {
			return nil, err
		}
	} else {
		conv, err = u.owned(userID, conversationID)
		if err != nil {
			return nil, err
		}
		prior, err := u.repo.ListMessages(conv.ID)
		if err != nil {
			return nil, err
		}
		history = toHistory(prior)
	}

	userMsg := &domain.Message{ConversationID: conv.ID, Role: domain.RoleUser, Content: text}
	if err := u.repo.AppendMessage(userMsg); err != nil {
		return nil, err
	}

	reply, meta := u.respond(ctx, userID, history, text)
	assistantMsg := &domain.Message{
		ConversationID: conv.ID,
		Role:           domain.RoleAssistant,
		Content:        reply,
		Metadata:       encodeMetadata(meta),
	}
	if err := u.repo.AppendMessage(assistantMsg); err != nil {
		return nil, err
	}
	conv.UpdatedAt = assistantMsg.CreatedAt

	return &dto.SendMessageResponse{Conversation: conv, UserMessage: userMsg, AssistantMessage: assistantMsg}, nil
}

// respond always yields a reply. Agent failures become the reply text.
func (u *chatUsecase) respond(ctx context.Context, userID string, history []ai.Message, text string) (string, domain.MessageMetadata) {
	meta := domain.MessageMetadata{Tools: []domain.ToolRun{}}
	if u.responder == nil {
		meta.Error = "assistant not configured"
		return errorReply + meta.Error, meta
	}

	outcome, err := u.responder.Respond(ctx, userID, history, text)
	if outcome != nil {
		meta.Path = string(outcome.Path)
		meta.Iterations = outcome.Iterations
		for _, t := range outcome.Tools {
			meta.Tools = append(meta.Tools, domain.ToolRun{Name: t.Name, Arguments: t.Arguments, Success: t.Success, Error: t.Error})
		}
	}
	if err != nil {
		log.Printf("[Chat] Agent failed for user %s: %v", userID, err)
		meta.Error = err.Error()
		return errorReply + err.Error(), meta
	}
	return outcome.Reply, meta
}

func (u *chatUsecase) DeleteByUser(_ context.Context, userID string) error {
	return u.repo.DeleteByUser(userID)
}

// Title derives a conversation title from the first message.
func Title(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(text) <= titleLength {
		return text
	}
	return strings.TrimSpace(string([]rune(text)[:titleLength]))
}

func toHistory(msgs []*domain.Message) []ai.Message {
	out := make([]ai.Message, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case domain.RoleUser:
			out = append(out, ai.Message{Role: ai.RoleUser, Content: m.Content})
		case domain.RoleAssistant:
			out = append(out, ai.Message{Role: ai.RoleAssistant, Content: m.Content})
		}
	}
	return out
}

func encodeMetadata(meta domain.MessageMetadata) datatypes.JSON {
	data, err := json.Marshal(meta)
	if err != nil {
		log.Printf("[Chat] Failed to encode message metadata: %v", err)
		return nil
	}
	return datatypes.JSON(data)
}
