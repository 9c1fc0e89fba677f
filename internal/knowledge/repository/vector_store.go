package repository

import (
	"context"

	"advisor-backend/internal/knowledge/domain"
)

// VectorStore persists embedded records scoped by user and ranks them by cosine similarity.
type VectorStore interface {
	// PutEmail inserts rec unless (user, source id) is already stored. It reports whether a row was written.
	PutEmail(ctx context.Context, rec *domain.EmailEmbedding) (bool, error)
	PutContact(ctx context.Context, rec *domain.ContactEmbedding) (bool, error)
	// RefreshContact returns the stored contact unchanged; stored embeddings are never updated.
	RefreshContact(ctx context.Context, rec *domain.ContactEmbedding) (*domain.ContactEmbedding, error)
	// TopEmails returns up to k emails of userID with similarity >= minSimilarity, most similar first.
	TopEmails(ctx context.Context, userID string, query []float32, k int, minSimilarity float64) ([]domain.ScoredEmail, error)
	TopContacts(ctx context.Context, userID string, query []float32, k int, minSimilarity float64) ([]domain.ScoredContact, error)
	Count(ctx context.Context, userID string) (emails int64, contacts int64, err error)
	DeleteByUser(ctx context.Context, userID string) error
}
