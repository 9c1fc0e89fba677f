package domain

import (
	"time"

	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

// Kind names a family of embedded records.
type Kind string

const (
	KindEmails   Kind = "emails"
	KindContacts Kind = "contacts"
)

func ParseKind(s string) (Kind, bool) {
	switch Kind(s) {
	case KindEmails, KindContacts:
		return Kind(s), true
	}
	return "", false
}

// EmailEmbedding is one synced email. At most one row exists per (user, source id).
type EmailEmbedding struct {
	ID         uint            `json:"-" gorm:"primaryKey;autoIncrement"`
	UserID     string          `json:"user_id" gorm:"uniqueIndex:idx_email_embedding_source;not null"`
	SourceID   string          `json:"source_id" gorm:"uniqueIndex:idx_email_embedding_source;not null"`
	ThreadID   string          `json:"thread_id"`
	Subject    string          `json:"subject"`
	Sender     string          `json:"from"`
	Recipients string          `json:"to"`
	ReceivedAt time.Time       `json:"date"`
	Content    string          `json:"content" gorm:"type:text"`
	Embedding  pgvector.Vector `json:"-" gorm:"type:vector(768);not null"`
	CreatedAt  time.Time       `json:"created_at"`
}

// ContactEmbedding is one synced CRM contact.
type ContactEmbedding struct {
	ID         uint            `json:"-" gorm:"primaryKey;autoIncrement"`
	UserID     string          `json:"user_id" gorm:"uniqueIndex:idx_contact_embedding_source;not null"`
	SourceID   string          `json:"source_id" gorm:"uniqueIndex:idx_contact_embedding_source;not null"`
	Name       string          `json:"name"`
	Email      string          `json:"email"`
	Notes      string          `json:"notes" gorm:"type:text"`
	Properties datatypes.JSON  `json:"properties,omitempty"`
	Content    string          `json:"content" gorm:"type:text"`
	Embedding  pgvector.Vector `json:"-" gorm:"type:vector(768);not null"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Scored pairs a stored record with its cosine similarity to a query.
type Scored[T any] struct {
	Record     T       `json:"record"`
	Similarity float64 `json:"similarity"`
}

type (
	ScoredEmail   = Scored[EmailEmbedding]
	ScoredContact = Scored[ContactEmbedding]
)

// EmbeddingTables lists the tables holding a vector column.
var EmbeddingTables = []string{"email_embeddings", "contact_embeddings"}
