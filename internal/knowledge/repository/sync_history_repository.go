package repository

import (
	"context"
	"errors"
	"time"

	"advisor-backend/internal/knowledge/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SyncHistoryRepository interface {
	// SyncedSet returns which of sourceIDs were already embedded for the user.
	SyncedSet(ctx context.Context, userID string, kind domain.Kind, sourceIDs []string) (map[string]bool, error)
	MarkSynced(ctx context.Context, userID string, kind domain.Kind, sourceID string) error
	LastSyncedAt(ctx context.Context, userID string, kind domain.Kind) (*time.Time, error)
	DeleteByUser(ctx context.Context, userID string) error
}

type syncHistoryRepository struct {
	db *gorm.DB
}

func NewSyncHistoryRepository(db *gorm.DB) SyncHistoryRepository {
	return &syncHistoryRepository{
		db: db,
	}
}

func (r *syncHistoryRepository) SyncedSet(ctx context.Context, userID string, kind domain.Kind, sourceIDs []string) (map[string]bool, error) {
	synced := make(map[string]bool, len(sourceIDs))
	if len(sourceIDs) == 0 {
		return synced, nil
	}

	var ids []string
	err := r.db.WithContext(ctx).Model(&domain.SyncHistory{}).
		Where("user_id = ? AND kind = ? AND source_id IN ?", userID, kind, sourceIDs).
		Pluck("source_id", &ids).Error
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		synced[id] = true
	}
	return synced, nil
}

// MarkSynced is idempotent; an already marked item keeps its first timestamp.
func (r *syncHistoryRepository) MarkSynced(ctx context.Context, userID string, kind domain.Kind, sourceID string) error {
	now := time.Now()
	history := &domain.SyncHistory{
		ID:        uuid.New().String(),
		UserID:    userID,
		Kind:      kind,
		SourceID:  sourceID,
		SyncedAt:  now,
		CreatedAt: now,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "kind"}, {Name: "source_id"}},
		DoNothing: true,
	}).Create(history).Error
}

func (r *syncHistoryRepository) LastSyncedAt(ctx context.Context, userID string, kind domain.Kind) (*time.Time, error) {
	var history domain.SyncHistory
	err := r.db.WithContext(ctx).Where("user_id = ? AND kind = ?", userID, kind).Order("synced_at DESC").First(&history).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &history.SyncedAt, nil
}

func (r *syncHistoryRepository) DeleteByUser(ctx context.Context, userID string) error {
	return r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&domain.SyncHistory{}).Error
}
