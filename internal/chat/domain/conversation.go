package domain

import (
	"time"

	"gorm.io/datatypes"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Conversation is a chat thread owned by one user.
type Conversation struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	UserID    string    `json:"user_id" gorm:"index;not null"`
	Title     string    `json:"title"`
	Archived  bool      `json:"archived" gorm:"default:false"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Message is immutable once stored. ID grows with insertion and breaks created_at ties.
type Message struct {
	ID             uint           `json:"id" gorm:"primaryKey;autoIncrement"`
	ConversationID string         `json:"conversation_id" gorm:"index;not null"`
	Role           Role           `json:"role" gorm:"not null"`
	Content        string         `json:"content" gorm:"type:text"`
	Metadata       datatypes.JSON `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// ToolRun records one tool execution in assistant message metadata.
type ToolRun struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
	Success   bool           `json:"success"`
	Error     string         `json:"error,omitempty"`
}

type MessageMetadata struct {
	Path       string    `json:"path"`
	Tools      []ToolRun `json:"tools"`
	Iterations int       `json:"iterations"`
	Error      string    `json:"error,omitempty"`
}
