package repository

import (
	"errors"
	"time"

	"advisor-backend/internal/chat/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ChatRepository interface {
	CreateConversation(conv *domain.Conversation) error
	// ListConversations returns the user's conversations, most recently updated first.
	ListConversations(userID string, includeArchived bool) ([]*domain.Conversation, error)
	FindConversation(id string) (*domain.Conversation, error)
	// AppendMessage stores msg and touches the conversation's updated_at.
	AppendMessage(msg *domain.Message) error
	ListMessages(conversationID string) ([]*domain.Message, error)
	SetArchived(id string, archived bool) error
	Rename(id, title string) error
	DeleteConversation(id string) error
	DeleteByUser(userID string) error
}

type chatRepository struct {
	db *gorm.DB
}

func NewChatRepository(db *gorm.DB) ChatRepository {
	return &chatRepository{db: db}
}

func (r *chatRepository) CreateConversation(conv *domain.Conversation) error {
	if conv.ID == "" {
		conv.ID = uuid.New().String()
	}
	now := time.Now()
	conv.CreatedAt = now
	conv.UpdatedAt = now
	return r.db.Create(conv).Error
}

func (r *chatRepository) ListConversations(userID string, includeArchived bool) ([]*domain.Conversation, error) {
	var convs []*domain.Conversation
	query := r.db.Where("user_id = ?", userID)
	if !includeArchived {
		query = query.Where("archived = ?", false)
	}
	err := query.Order("updated_at DESC").Find(&convs).Error
	return convs, err
}

func (r *chatRepository) FindConversation(id string) (*domain.Conversation, error) {
	var conv domain.Conversation
	err := r.db.Where("id = ?", id).First(&conv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &conv, nil
}

func (r *chatRepository) AppendMessage(msg *domain.Message) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		return tx.Model(&domain.Conversation{}).
			Where("id = ?", msg.ConversationID).
			Update("updated_at", msg.CreatedAt).Error
	})
}

func (r *chatRepository) ListMessages(conversationID string) ([]*domain.Message, error) {
	var msgs []*domain.Message
	err := r.db.Where("conversation_id = ?", conversationID).
		Order("created_at ASC, id ASC").
		Find(&msgs).Error
	return msgs, err
}

func (r *chatRepository) SetArchived(id string, archived bool) error {
	return r.db.Model(&domain.Conversation{}).Where("id = ?", id).
		Updates(map[string]any{"archived": archived, "updated_at": time.Now()}).Error
}

func (r *chatRepository) Rename(id, title string) error {
	return r.db.Model(&domain.Conversation{}).Where("id = ?", id).
		Updates(map[string]any{"title": title, "updated_at": time.Now()}).Error
}

func (r *chatRepository) DeleteConversation(id string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("conversation_id = ?", id).Delete(&domain.Message{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&domain.Conversation{}).Error
	})
}

func (r *chatRepository) DeleteByUser(userID string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		owned := tx.Model(&domain.Conversation{}).Select("id").Where("user_id = ?", userID)
		if err := tx.Where("conversation_id IN (?)", owned).Delete(&domain.Message{}).Error; err != nil {
			return err
		}
		return tx.Where("user_id = ?", userID).Delete(&domain.Conversation{}).Error
	})
}
