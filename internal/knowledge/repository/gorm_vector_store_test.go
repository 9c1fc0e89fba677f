package repository

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"testing"

	"advisor-backend/internal/knowledge/domain"
	"advisor-backend/pkg/errs"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "knowledge.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.EmailEmbedding{}, &domain.ContactEmbedding{}, &domain.SyncHistory{}))
	return db
}

func email(userID, sourceID string, vec ...float32) *domain.EmailEmbedding {
	return &domain.EmailEmbedding{
		UserID:    userID,
		SourceID:  sourceID,
		Subject:   "subject " + sourceID,
		Content:   "body " + sourceID,
		Embedding: pgvector.NewVector(vec),
	}
}

// unitWithCosine returns a unit vector whose cosine to (1, 0, 0) is c.
func unitWithCosine(c float64) []float32 {
	return []float32{float32(c), float32(math.Sqrt(1 - c*c)), 0}
}

func TestPutEmailIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewGormVectorStore(newTestDB(t), 3)

	inserted, err := store.PutEmail(ctx, email("u1", "m1", 1, 0, 0))
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = store.PutEmail(ctx, email("u1", "m1", 0, 1, 0))
	require.NoError(t, err)
	assert.False(t, inserted)

	// Same source id under another user is a different record.
	inserted, err = store.PutEmail(ctx, email("u2", "m1", 1, 0, 0))
	require.NoError(t, err)
	assert.True(t, inserted)

	emails, contacts, err := store.Count(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), emails)
	assert.Equal(t, int64(0), contacts)

	top, err := store.TopEmails(ctx, "u1", []float32{1, 0, 0}, 5, 0)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.InDelta(t, 1.0, top[0].Similarity, 1e-6, "first write wins")
}

func TestTopEmailsOrdersBySimilarity(t *testing.T) {
	ctx := context.Background()
	store := NewGormVectorStore(newTestDB(t), 3)

	// Inserted out of order on purpose.
	_, err := store.PutEmail(ctx, email("u1", "c", unitWithCosine(0.4)...))
	require.NoError(t, err)
	_, err = store.PutEmail(ctx, email("u1", "a", unitWithCosine(0.95)...))
	require.NoError(t, err)
	_, err = store.PutEmail(ctx, email("u1", "b", unitWithCosine(0.7)...))
	require.NoError(t, err)
	_, err = store.PutEmail(ctx, email("u2", "other", 1, 0, 0))
	require.NoError(t, err)

	top, err := store.TopEmails(ctx, "u1", []float32{1, 0, 0}, 10, 0)
	require.NoError(t, err)
	require.Len(t, top, 3)
	assert.Equal(t, "a", top[0].Record.SourceID)
	assert.Equal(t, "b", top[1].Record.SourceID)
	assert.Equal(t, "c", top[2].Record.SourceID)
	assert.InDelta(t, 0.95, top[0].Similarity, 1e-4)

	limited, err := store.TopEmails(ctx, "u1", []float32{1, 0, 0}, 2, 0)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, "b", limited[1].Record.SourceID)
}

func TestTopEmailsTiesKeepInsertionOrder(t *testing.T) {
	ctx := context.Background()
	store := NewGormVectorStore(newTestDB(t), 3)
	for _, id := range []string{"first", "second", "third"} {
		_, err := store.PutEmail(ctx, email("u1", id, 0, 1, 0))
		require.NoError(t, err)
	}

	top, err := store.TopEmails(ctx, "u1", []float32{0, 2, 0}, 3, 0)
	require.NoError(t, err)
	require.Len(t, top, 3)
	assert.Equal(t, []string{"first", "second", "third"}, []string{top[0].Record.SourceID, top[1].Record.SourceID, top[2].Record.SourceID})
}

func TestTopEmailsThreshold(t *testing.T) {
	ctx := context.Background()
	store := NewGormVectorStore(newTestDB(t), 3)
	_, err := store.PutEmail(ctx, email("u1", "close", unitWithCosine(0.9)...))
	require.NoError(t, err)
	_, err = store.PutEmail(ctx, email("u1", "far", unitWithCosine(0.2)...))
	require.NoError(t, err)

	top, err := store.TopEmails(ctx, "u1", []float32{1, 0, 0}, 100, 0.3)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "close", top[0].Record.SourceID)
}

func TestDimensionMismatch(t *testing.T) {
	ctx := context.Background()
	store := NewGormVectorStore(newTestDB(t), 3)

	_, err := store.PutEmail(ctx, email("u1", "m1", 1, 0))
	assert.True(t, errors.Is(err, errs.ErrConfiguration))

	_, err = store.PutEmail(ctx, email("u1", "m2"))
	assert.True(t, errors.Is(err, errs.ErrValidation))

	_, err = store.TopContacts(ctx, "u1", []float32{1, 0, 0, 0}, 3, 0.3)
	assert.True(t, errors.Is(err, errs.ErrConfiguration))
}

func TestRefreshContactReturnsStoredRecord(t *testing.T) {
	ctx := context.Background()
	store := NewGormVectorStore(newTestDB(t), 3)

	original := &domain.ContactEmbedding{UserID: "u1", SourceID: "101", Name: "Sara", Notes: "old notes", Embedding: pgvector.NewVector([]float32{1, 0, 0})}
	_, err := store.PutContact(ctx, original)
	require.NoError(t, err)

	changed := &domain.ContactEmbedding{UserID: "u1", SourceID: "101", Name: "Sara", Notes: "new notes", Embedding: pgvector.NewVector([]float32{0, 1, 0})}
	stored, err := store.RefreshContact(ctx, changed)
	require.NoError(t, err)
	assert.Equal(t, "old notes", stored.Notes)
	assert.Equal(t, []float32{1, 0, 0}, stored.Embedding.Slice())

	_, err = store.RefreshContact(ctx, &domain.ContactEmbedding{UserID: "u1", SourceID: "missing"})
	assert.True(t, errors.Is(err, errs.ErrNotFound))
}

func TestDeleteByUser(t *testing.T) {
	ctx := context.Background()
	store := NewGormVectorStore(newTestDB(t), 3)
	_, err := store.PutEmail(ctx, email("u1", "m1", 1, 0, 0))
	require.NoError(t, err)
	_, err = store.PutContact(ctx, &domain.ContactEmbedding{UserID: "u1", SourceID: "c1", Embedding: pgvector.NewVector([]float32{1, 0, 0})})
	require.NoError(t, err)
	_, err = store.PutEmail(ctx, email("u2", "m1", 1, 0, 0))
	require.NoError(t, err)

	require.NoError(t, store.DeleteByUser(ctx, "u1"))

	emails, contacts, err := store.Count(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, emails+contacts)
	emails, _, err = store.Count(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, int64(1), emails)
}

func TestRankProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	key := func(r domain.EmailEmbedding) (uint, pgvector.Vector) { return r.ID, r.Embedding }
	query := []float32{1, 0.5, -0.25}

	toRows := func(values []float64) []domain.EmailEmbedding {
		rows := make([]domain.EmailEmbedding, len(values))
		for i, v := range values {
			rows[i] = domain.EmailEmbedding{ID: uint(i + 1), SourceID: fmt.Sprint(i), Embedding: pgvector.NewVector([]float32{float32(v), 1, float32(-v)})}
		}
		return rows
	}

	properties.Property("results are above threshold and sorted", prop.ForAll(
		func(values []float64, k int, threshold float64) bool {
			out := rank(toRows(values), query, k, threshold, key)
			if len(out) > k {
				return false
			}
			for i, s := range out {
				if s.Similarity < threshold {
					return false
				}
				if i > 0 && out[i-1].Similarity < s.Similarity {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.Float64Range(-5, 5)),
		gen.IntRange(1, 10),
		gen.Float64Range(-1, 1),
	))

	properties.Property("no qualifying row is dropped when k is large", prop.ForAll(
		func(values []float64, threshold float64) bool {
			rows := toRows(values)
			want := 0
			for _, r := range rows {
				if CosineSimilarity(query, r.Embedding.Slice()) >= threshold {
					want++
				}
			}
			return len(rank(rows, query, len(rows)+1, threshold, key)) == want
		},
		gen.SliceOf(gen.Float64Range(-5, 5)),
		gen.Float64Range(-1, 1),
	))

	properties.TestingRun(t)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float32{1, 2, 3}, []float32{2, 4, 6}), 1e-9)
	assert.InDelta(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, CosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.Equal(t, 0.0, CosineSimilarity([]float32{0, 0}, []float32{1, 0}))
	assert.Equal(t, 0.0, CosineSimilarity([]float32{1}, []float32{1, 0}))
}

func TestChromaHelpers(t *testing.T) {
	assert.Equal(t, "u1:m1", string(chromaID("u1", "m1")))
	assert.InDelta(t, 0.9, similarityFromDistance(0.1), 1e-9)
}
