package repository

import (
	"context"
	"fmt"
	"time"

	"advisor-backend/internal/knowledge/domain"
	"advisor-backend/pkg/errs"

	chroma "github.com/amikos-tech/chroma-go/pkg/api/v2"
	"github.com/amikos-tech/chroma-go/pkg/embeddings"
	"gorm.io/datatypes"
)

type chromaVectorStore struct {
	emails   chroma.Collection
	contacts chroma.Collection
	dims     int
}

// NewChromaVectorStore keeps each kind in its own collection. Document ids are "<user>:<source>".
func NewChromaVectorStore(emails, contacts chroma.Collection, dims int) VectorStore {
	return &chromaVectorStore{
		emails:   emails,
		contacts: contacts,
		dims:     dims,
	}
}

func chromaID(userID, sourceID string) chroma.DocumentID {
	return chroma.DocumentID(userID + ":" + sourceID)
}

// similarityFromDistance converts a cosine-space distance.
func similarityFromDistance(d float64) float64 {
	return 1 - d
}

func emailMetadata(rec *domain.EmailEmbedding) map[string]interface{} {
	return map[string]interface{}{
		"user_id":     rec.UserID,
		"source_id":   rec.SourceID,
		"thread_id":   rec.ThreadID,
		"subject":     rec.Subject,
		"from":        rec.Sender,
		"to":          rec.Recipients,
		"received_at": rec.ReceivedAt.UTC().Format(time.RFC3339),
	}
}

func contactMetadata(rec *domain.ContactEmbedding) map[string]interface{} {
	return map[string]interface{}{
		"user_id":    rec.UserID,
		"source_id":  rec.SourceID,
		"name":       rec.Name,
		"email":      rec.Email,
		"notes":      rec.Notes,
		"properties": string(rec.Properties),
	}
}

func (s *chromaVectorStore) checkVector(vec []float32) error {
	if len(vec) == 0 {
		return errs.Validation("empty embedding")
	}
	if len(vec) != s.dims {
		return errs.Configuration("embedding dimension mismatch: got %d, want %d", len(vec), s.dims)
	}
	return nil
}

func (s *chromaVectorStore) exists(ctx context.Context, collection chroma.Collection, id chroma.DocumentID) (bool, error) {
	res, err := collection.Get(ctx, chroma.WithIDsGet(id))
	if err != nil {
		return false, errs.NewTransportError("chroma", err)
	}
	return len(res.GetIDs()) > 0, nil
}

func (s *chromaVectorStore) add(ctx context.Context, collection chroma.Collection, id chroma.DocumentID, md map[string]interface{}, text string, vec []float32) (bool, error) {
	if err := s.checkVector(vec); err != nil {
		return false, err
	}
	found, err := s.exists(ctx, collection, id)
	if err != nil || found {
		return false, err
	}

	metadata, err := chroma.NewDocumentMetadataFromMap(md)
	if err != nil {
		return false, fmt.Errorf("failed to create metadata: %w", err)
	}
	err = collection.Add(
		ctx,
		chroma.WithIDs(id),
		chroma.WithMetadatas(metadata),
		chroma.WithTexts(text),
		chroma.WithEmbeddings(embeddings.NewEmbeddingFromFloat32(vec)),
	)
	if err != nil {
		return false, errs.NewTransportError("chroma", err)
	}
	return true, nil
}

func (s *chromaVectorStore) PutEmail(ctx context.Context, rec *domain.EmailEmbedding) (bool, error) {
	return s.add(ctx, s.emails, chromaID(rec.UserID, rec.SourceID), emailMetadata(rec), rec.Content, rec.Embedding.Slice())
}

func (s *chromaVectorStore) PutContact(ctx context.Context, rec *domain.ContactEmbedding) (bool, error) {
	return s.add(ctx, s.contacts, chromaID(rec.UserID, rec.SourceID), contactMetadata(rec), rec.Content, rec.Embedding.Slice())
}

func (s *chromaVectorStore) RefreshContact(ctx context.Context, rec *domain.ContactEmbedding) (*domain.ContactEmbedding, error) {
	res, err := s.contacts.Get(ctx, chroma.WithIDsGet(chromaID(rec.UserID, rec.SourceID)))
	if err != nil {
		return nil, errs.NewTransportError("chroma", err)
	}
	if len(res.GetIDs()) == 0 {
		return nil, errs.NotFound("contact embedding")
	}
	stored := contactFromMetadata(res.GetMetadatas()[0])
	if docs := res.GetDocuments(); len(docs) > 0 {
		stored.Content = docs[0].ContentString()
	}
	return stored, nil
}

type queryHit struct {
	metadata   chroma.DocumentMetadata
	document   string
	similarity float64
}

func (s *chromaVectorStore) query(ctx context.Context, collection chroma.Collection, userID string, query []float32, k int, minSimilarity float64) ([]queryHit, error) {
	if err := s.checkVector(query); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, nil
	}

	results, err := collection.Query(
		ctx,
		chroma.WithQueryEmbeddings(embeddings.NewEmbeddingFromFloat32(query)),
		chroma.WithNResults(k),
		chroma.WithWhereQuery(chroma.EqString("user_id", userID)),
	)
	if err != nil {
		return nil, errs.NewTransportError("chroma", err)
	}
	if results == nil || results.CountGroups() == 0 {
		return nil, nil
	}

	idGroups := results.GetIDGroups()
	distanceGroups := results.GetDistancesGroups()
	metadataGroups := results.GetMetadatasGroups()
	documentGroups := results.GetDocumentsGroups()
	if len(idGroups) == 0 || len(distanceGroups) == 0 || len(metadataGroups) == 0 {
		return nil, nil
	}

	hits := make([]queryHit, 0, len(idGroups[0]))
	for i := range idGroups[0] {
		if i >= len(distanceGroups[0]) || i >= len(metadataGroups[0]) {
			break
		}
		sim := similarityFromDistance(float64(distanceGroups[0][i]))
		if sim < minSimilarity {
			continue
		}
		hit := queryHit{metadata: metadataGroups[0][i], similarity: sim}
		if len(documentGroups) > 0 && i < len(documentGroups[0]) {
			hit.document = documentGroups[0][i].ContentString()
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

func metaString(md chroma.DocumentMetadata, key string) string {
	if md == nil {
		return ""
	}
	v, _ := md.GetString(key)
	return v
}

func emailFromMetadata(md chroma.DocumentMetadata) *domain.EmailEmbedding {
	rec := &domain.EmailEmbedding{
		UserID:     metaString(md, "user_id"),
		SourceID:   metaString(md, "source_id"),
		ThreadID:   metaString(md, "thread_id"),
		Subject:    metaString(md, "subject"),
		Sender:     metaString(md, "from"),
		Recipients: metaString(md, "to"),
	}
	if t, err := time.Parse(time.RFC3339, metaString(md, "received_at")); err == nil {
		rec.ReceivedAt = t
	}
	return rec
}

func contactFromMetadata(md chroma.DocumentMetadata) *domain.ContactEmbedding {
	rec := &domain.ContactEmbedding{
		UserID:   metaString(md, "user_id"),
		SourceID: metaString(md, "source_id"),
		Name:     metaString(md, "name"),
		Email:    metaString(md, "email"),
		Notes:    metaString(md, "notes"),
	}
	if props := metaString(md, "properties"); props != "" {
		rec.Properties = datatypes.JSON(props)
	}
	return rec
}

func (s *chromaVectorStore) TopEmails(ctx context.Context, userID string, query []float32, k int, minSimilarity float64) ([]domain.ScoredEmail, error) {
	hits, err := s.query(ctx, s.emails, userID, query, k, minSimilarity)
	if err != nil {
		return nil, err
	}
	out := make([]domain.ScoredEmail, 0, len(hits))
	for _, hit := range hits {
		rec := emailFromMetadata(hit.metadata)
		rec.Content = hit.document
		out = append(out, domain.ScoredEmail{Record: *rec, Similarity: hit.similarity})
	}
	return out, nil
}

func (s *chromaVectorStore) TopContacts(ctx context.Context, userID string, query []float32, k int, minSimilarity float64) ([]domain.ScoredContact, error) {
	hits, err := s.query(ctx, s.contacts, userID, query, k, minSimilarity)
	if err != nil {
		return nil, err
	}
	out := make([]domain.ScoredContact, 0, len(hits))
	for _, hit := range hits {
		rec := contactFromMetadata(hit.metadata)
		rec.Content = hit.document
		out = append(out, domain.ScoredContact{Record: *rec, Similarity: hit.similarity})
	}
	return out, nil
}

func (s *chromaVectorStore) countUser(ctx context.Context, collection chroma.Collection, userID string) (int64, error) {
	res, err := collection.Get(ctx, chroma.WithWhereGet(chroma.EqString("user_id", userID)))
	if err != nil {
		return 0, errs.NewTransportError("chroma", err)
	}
	return int64(len(res.GetIDs())), nil
}

func (s *chromaVectorStore) Count(ctx context.Context, userID string) (int64, int64, error) {
	emails, err := s.countUser(ctx, s.emails, userID)
	if err != nil {
		return 0, 0, err
	}
	contacts, err := s.countUser(ctx, s.contacts, userID)
	if err != nil {
		return 0, 0, err
	}
	return emails, contacts, nil
}

func (s *chromaVectorStore) DeleteByUser(ctx context.Context, userID string) error {
	for _, collection := range []chroma.Collection{s.emails, s.contacts} {
		if err := collection.Delete(ctx, chroma.WithWhereDelete(chroma.EqString("user_id", userID))); err != nil {
			return errs.NewTransportError("chroma", err)
		}
	}
	return nil
}
