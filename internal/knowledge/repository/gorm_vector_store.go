package repository

import (
	"context"
	"errors"
	"math"
	"sort"

	"advisor-backend/internal/knowledge/domain"
	"advisor-backend/pkg/errs"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type gormVectorStore struct {
	db   *gorm.DB
	dims int
}

// NewGormVectorStore ranks with pgvector's <=> operator on postgres and in process on other dialects.
func NewGormVectorStore(db *gorm.DB, dims int) VectorStore {
	return &gormVectorStore{
		db:   db,
		dims: dims,
	}
}

func (s *gormVectorStore) checkVector(vec []float32) error {
	if len(vec) == 0 {
		return errs.Validation("empty embedding")
	}
	if len(vec) != s.dims {
		return errs.Configuration("embedding dimension mismatch: got %d, want %d", len(vec), s.dims)
	}
	return nil
}

func (s *gormVectorStore) native() bool {
	return s.db.Dialector.Name() == "postgres"
}

func (s *gormVectorStore) PutEmail(ctx context.Context, rec *domain.EmailEmbedding) (bool, error) {
	if err := s.checkVector(rec.Embedding.Slice()); err != nil {
		return false, err
	}
	return insertIgnore(ctx, s.db, rec)
}

func (s *gormVectorStore) PutContact(ctx context.Context, rec *domain.ContactEmbedding) (bool, error) {
	if err := s.checkVector(rec.Embedding.Slice()); err != nil {
		return false, err
	}
	return insertIgnore(ctx, s.db, rec)
}

func insertIgnore(ctx context.Context, db *gorm.DB, rec any) (bool, error) {
	result := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "source_id"}},
		DoNothing: true,
	}).Create(rec)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (s *gormVectorStore) RefreshContact(ctx context.Context, rec *domain.ContactEmbedding) (*domain.ContactEmbedding, error) {
	var stored domain.ContactEmbedding
	err := s.db.WithContext(ctx).Where("user_id = ? AND source_id = ?", rec.UserID, rec.SourceID).First(&stored).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFound("contact embedding")
		}
		return nil, err
	}
	return &stored, nil
}

func (s *gormVectorStore) TopEmails(ctx context.Context, userID string, query []float32, k int, minSimilarity float64) ([]domain.ScoredEmail, error) {
	return topK[domain.EmailEmbedding](ctx, s, userID, query, k, minSimilarity, func(r domain.EmailEmbedding) (uint, pgvector.Vector) {
		return r.ID, r.Embedding
	})
}

func (s *gormVectorStore) TopContacts(ctx context.Context, userID string, query []float32, k int, minSimilarity float64) ([]domain.ScoredContact, error) {
	return topK[domain.ContactEmbedding](ctx, s, userID, query, k, minSimilarity, func(r domain.ContactEmbedding) (uint, pgvector.Vector) {
		return r.ID, r.Embedding
	})
}

func topK[T any](ctx context.Context, s *gormVectorStore, userID string, query []float32, k int, minSimilarity float64, key func(T) (uint, pgvector.Vector)) ([]domain.Scored[T], error) {
	if err := s.checkVector(query); err != nil {
		return nil, err
	}
	if k <= 0 {
		return []domain.Scored[T]{}, nil
	}

	var rows []T
	if s.native() {
		// Filtering and ordering happen in postgres; scores are recomputed for the page only.
		vec := pgvector.NewVector(query)
		err := s.db.WithContext(ctx).
			Where("user_id = ? AND 1 - (embedding <=> ?) >= ?", userID, vec, minSimilarity).
			Clauses(clause.OrderBy{Expression: clause.Expr{SQL: "embedding <=> ?, id", Vars: []interface{}{vec}}}).
			Limit(k).
			Find(&rows).Error
		if err != nil {
			return nil, err
		}
		out := make([]domain.Scored[T], len(rows))
		for i, row := range rows {
			_, stored := key(row)
			out[i] = domain.Scored[T]{Record: row, Similarity: CosineSimilarity(query, stored.Slice())}
		}
		return out, nil
	}

	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rank(rows, query, k, minSimilarity, key), nil
}

// rank orders rows by descending similarity, keeping insertion order among ties.
func rank[T any](rows []T, query []float32, k int, minSimilarity float64, key func(T) (uint, pgvector.Vector)) []domain.Scored[T] {
	type candidate struct {
		id     uint
		scored domain.Scored[T]
	}
	candidates := make([]candidate, 0, len(rows))
	for _, row := range rows {
		id, vec := key(row)
		sim := CosineSimilarity(query, vec.Slice())
		if sim < minSimilarity {
			continue
		}
		candidates = append(candidates, candidate{id: id, scored: domain.Scored[T]{Record: row, Similarity: sim}})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].scored.Similarity != candidates[j].scored.Similarity {
			return candidates[i].scored.Similarity > candidates[j].scored.Similarity
		}
		return candidates[i].id < candidates[j].id
	})
	if len(candidates) > k {
		candidates = candidates[:k]
	}

	out := make([]domain.Scored[T], len(candidates))
	for i, c := range candidates {
		out[i] = c.scored
	}
	return out
}

// CosineSimilarity is 1 - cosine distance. A zero vector scores 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func (s *gormVectorStore) Count(ctx context.Context, userID string) (int64, int64, error) {
	var emails, contacts int64
	if err := s.db.WithContext(ctx).Model(&domain.EmailEmbedding{}).Where("user_id = ?", userID).Count(&emails).Error; err != nil {
		return 0, 0, err
	}
	if err := s.db.WithContext(ctx).Model(&domain.ContactEmbedding{}).Where("user_id = ?", userID).Count(&contacts).Error; err != nil {
		return 0, 0, err
	}
	return emails, contacts, nil
}

func (s *gormVectorStore) DeleteByUser(ctx context.Context, userID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&domain.EmailEmbedding{}).Error; err != nil {
			return err
		}
		return tx.Where("user_id = ?", userID).Delete(&domain.ContactEmbedding{}).Error
	})
}
