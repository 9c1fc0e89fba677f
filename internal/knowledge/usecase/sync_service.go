package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"advisor-backend/internal/knowledge/domain"
	"advisor-backend/internal/knowledge/repository"
	"advisor-backend/pkg/embedding"
	"advisor-backend/pkg/workspace"

	"github.com/pgvector/pgvector-go"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
)

const (
	maxEmbedText  = 8000
	maxStoredBody = 4000
	fallbackLimit = 4
)

// SourceContact is a CRM contact flattened for embedding.
type SourceContact struct {
	ID         string
	Name       string
	Email      string
	Notes      string
	Properties map[string]string
}

type EmailSource interface {
	RecentEmails(ctx context.Context, userID string, max int) ([]*workspace.Email, error)
}

type ContactSource interface {
	AllContacts(ctx context.Context, userID string) ([]SourceContact, error)
}

// SyncNotifier is told when a job stored new records.
type SyncNotifier interface {
	SyncFinished(ctx context.Context, userID string, kind domain.Kind, result SyncResult)
}

type SyncJob struct {
	UserID string
	Kind   domain.Kind
}

type SyncResult struct {
	Fetched  int `json:"fetched"`
	Skipped  int `json:"skipped"`
	Stored   int `json:"stored"`
	Failed   int `json:"failed"`
	Duration time.Duration
}

type SyncConfig struct {
	Workers   int
	QueueSize int
	BatchSize int
	MaxEmails int
}

// SyncService embeds source records in the background. Jobs are at-least-once and idempotent per source id.
type SyncService struct {
	emails   EmailSource
	contacts ContactSource
	embedder embedding.Provider
	store    repository.VectorStore
	history  repository.SyncHistoryRepository
	notifier SyncNotifier
	cfg      SyncConfig

	jobQueue chan SyncJob
	workerWg sync.WaitGroup
	started  bool
	stopped  bool
	mu       sync.Mutex
}

func NewSyncService(embedder embedding.Provider, store repository.VectorStore, history repository.SyncHistoryRepository, cfg SyncConfig) *SyncService {
	if cfg.Workers <= 0 {
		cfg.Workers = 3
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 100
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 16
	}
	if cfg.MaxEmails <= 0 {
		cfg.MaxEmails = 200
	}
	return &SyncService{
		embedder: embedder,
		store:    store,
		history:  history,
		cfg:      cfg,
		jobQueue: make(chan SyncJob, cfg.QueueSize),
	}
}

func (s *SyncService) SetEmailSource(src EmailSource) {
	s.emails = src
}

func (s *SyncService) SetContactSource(src ContactSource) {
	s.contacts = src
}

func (s *SyncService) SetNotifier(n SyncNotifier) {
	s.notifier = n
}

func (s *SyncService) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started || s.stopped {
		return
	}
	for i := 0; i < s.cfg.Workers; i++ {
		s.workerWg.Add(1)
		go s.worker(i)
	}
	s.started = true
	log.Printf("[Sync] Started %d workers", s.cfg.Workers)
}

func (s *SyncService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	close(s.jobQueue)
	s.stopped = true
	s.workerWg.Wait()
	s.started = false
	log.Println("[Sync] All workers stopped")
}

func (s *SyncService) worker(id int) {
	defer s.workerWg.Done()

	for job := range s.jobQueue {
		if _, err := s.Run(context.Background(), job); err != nil {
			log.Printf("[Sync] Worker %d: %s sync for user %s failed: %v", id, job.Kind, job.UserID, err)
		}
	}
	log.Printf("[Sync] Worker %d stopped", id)
}

// Enqueue adds a job without blocking; false means the queue is full.
func (s *SyncService) Enqueue(job SyncJob) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	select {
	case s.jobQueue <- job:
		return true
	default:
		log.Printf("[Sync] Queue full, dropped %s job for user %s", job.Kind, job.UserID)
		return false
	}
}

// pendingItem is one source record waiting for its embedding.
type pendingItem struct {
	sourceID string
	text     string
	put      func(ctx context.Context, vec []float32) (bool, error)
}

// Run executes one job synchronously.
func (s *SyncService) Run(ctx context.Context, job SyncJob) (SyncResult, error) {
	started := time.Now()

	var items []pendingItem
	var err error
	switch job.Kind {
	case domain.KindEmails:
		items, err = s.emailItems(ctx, job.UserID)
	case domain.KindContacts:
		items, err = s.contactItems(ctx, job.UserID)
	default:
		return SyncResult{}, fmt.Errorf("unknown sync kind %q", job.Kind)
	}
	if err != nil {
		return SyncResult{}, err
	}

	result := SyncResult{Fetched: len(items)}
	items, err = s.skipSynced(ctx, job, items)
	if err != nil {
		return result, err
	}
	result.Skipped = result.Fetched - len(items)

	for start := 0; start < len(items); start += s.cfg.BatchSize {
		end := start + s.cfg.BatchSize
		if end > len(items) {
			end = len(items)
		}
		batch := items[start:end]
		vecs := s.embedBatch(ctx, batch)

		for i, item := range batch {
			if vecs[i] == nil {
				result.Failed++
				continue
			}
			if _, err := item.put(ctx, vecs[i]); err != nil {
				log.Printf("[Sync] Failed to store %s %s for user %s: %v", job.Kind, item.sourceID, job.UserID, err)
				result.Failed++
				continue
			}
			if err := s.history.MarkSynced(ctx, job.UserID, job.Kind, item.sourceID); err != nil {
				log.Printf("[Sync] Failed to mark %s %s as synced: %v", job.Kind, item.sourceID, err)
			}
			result.Stored++
		}
	}

	result.Duration = time.Since(started)
	log.Printf("[Sync] %s for user %s: fetched=%d skipped=%d stored=%d failed=%d (%s)",
		job.Kind, job.UserID, result.Fetched, result.Skipped, result.Stored, result.Failed, result.Duration.Round(time.Millisecond))

	if s.notifier != nil && result.Stored > 0 {
		s.notifier.SyncFinished(ctx, job.UserID, job.Kind, result)
	}
	return result, nil
}

func (s *SyncService) skipSynced(ctx context.Context, job SyncJob, items []pendingItem) ([]pendingItem, error) {
	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.sourceID
	}
	synced, err := s.history.SyncedSet(ctx, job.UserID, job.Kind, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load sync history: %w", err)
	}

	fresh := items[:0]
	for _, item := range items {
		if !synced[item.sourceID] {
			fresh = append(fresh, item)
		}
	}
	return fresh, nil
}

// embedBatch returns one vector per item; nil marks an item whose embedding failed.
func (s *SyncService) embedBatch(ctx context.Context, batch []pendingItem) [][]float32 {
	texts := make([]string, len(batch))
	for i, item := range batch {
		texts[i] = item.text
	}

	vecs, err := s.embedder.EmbedMany(ctx, texts)
	if err == nil && len(vecs) == len(batch) {
		return vecs
	}
	log.Printf("[Sync] Batch embedding of %d items failed, embedding one by one: %v", len(batch), err)

	vecs = make([][]float32, len(batch))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fallbackLimit)
	for i, item := range batch {
		g.Go(func() error {
			vec, err := s.embedder.Embed(gctx, item.text)
			if err != nil {
				log.Printf("[Sync] Skipping %s: %v", item.sourceID, err)
				return nil
			}
			vecs[i] = vec
			return nil
		})
	}
	_ = g.Wait()
	return vecs
}

func (s *SyncService) emailItems(ctx context.Context, userID string) ([]pendingItem, error) {
	if s.emails == nil {
		return nil, fmt.Errorf("email source not configured")
	}
	emails, err := s.emails.RecentEmails(ctx, userID, s.cfg.MaxEmails)
	if err != nil {
		return nil, err
	}

	items := make([]pendingItem, 0, len(emails))
	for _, e := range emails {
		items = append(items, pendingItem{
			sourceID: e.ID,
			text:     truncate(EmailText(e), maxEmbedText),
			put: func(ctx context.Context, vec []float32) (bool, error) {
				return s.store.PutEmail(ctx, &domain.EmailEmbedding{
					UserID:     userID,
					SourceID:   e.ID,
					ThreadID:   e.ThreadID,
					Subject:    e.Subject,
					Sender:     e.From,
					Recipients: e.To,
					ReceivedAt: e.ReceivedAt,
					Content:    truncate(e.Body, maxStoredBody),
					Embedding:  pgvector.NewVector(vec),
				})
			},
		})
	}
	return items, nil
}

func (s *SyncService) contactItems(ctx context.Context, userID string) ([]pendingItem, error) {
	if s.contacts == nil {
		return nil, fmt.Errorf("contact source not configured")
	}
	contacts, err := s.contacts.AllContacts(ctx, userID)
	if err != nil {
		return nil, err
	}

	items := make([]pendingItem, 0, len(contacts))
	for _, c := range contacts {
		text := ContactText(c)
		items = append(items, pendingItem{
			sourceID: c.ID,
			text:     truncate(text, maxEmbedText),
			put: func(ctx context.Context, vec []float32) (bool, error) {
				props, _ := json.Marshal(c.Properties)
				rec := &domain.ContactEmbedding{
					UserID:     userID,
					SourceID:   c.ID,
					Name:       c.Name,
					Email:      c.Email,
					Notes:      c.Notes,
					Properties: datatypes.JSON(props),
					Content:    text,
					Embedding:  pgvector.NewVector(vec),
				}
				inserted, err := s.store.PutContact(ctx, rec)
				if err == nil && !inserted {
					_, err = s.store.RefreshContact(ctx, rec)
				}
				return inserted, err
			},
		})
	}
	return items, nil
}

// EmailText is the text embedded for an email.
func EmailText(e *workspace.Email) string {
	date := ""
	if !e.ReceivedAt.IsZero() {
		date = e.ReceivedAt.Format(time.RFC1123)
	}
	return fmt.Sprintf("Subject: %s\nFrom: %s\nTo: %s\nDate: %s\n\n%s", e.Subject, e.From, e.To, date, e.Body)
}

// ContactText is the text embedded for a contact.
func ContactText(c SourceContact) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Name: %s\nEmail: %s\n", c.Name, c.Email)
	for _, key := range []string{"company", "jobtitle", "phone", "lifecyclestage"} {
		if v := c.Properties[key]; v != "" {
			fmt.Fprintf(&b, "%s: %s\n", key, v)
		}
	}
	if c.Notes != "" {
		fmt.Fprintf(&b, "Notes: %s\n", c.Notes)
	}
	return b.String()
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// Status summarizes what is stored for the user.
func (s *SyncService) Status(ctx context.Context, userID string) (*domain.Status, error) {
	emails, contacts, err := s.store.Count(ctx, userID)
	if err != nil {
		return nil, err
	}
	lastEmail, err := s.history.LastSyncedAt(ctx, userID, domain.KindEmails)
	if err != nil {
		return nil, err
	}
	lastContact, err := s.history.LastSyncedAt(ctx, userID, domain.KindContacts)
	if err != nil {
		return nil, err
	}
	return &domain.Status{
		Emails:        emails,
		Contacts:      contacts,
		WouldHelp:     readiness(emails + contacts),
		LastEmailAt:   lastEmail,
		LastContactAt: lastContact,
	}, nil
}

// DeleteByUser removes stored records and sync history.
func (s *SyncService) DeleteByUser(ctx context.Context, userID string) error {
	if err := s.store.DeleteByUser(ctx, userID); err != nil {
		return err
	}
	return s.history.DeleteByUser(ctx, userID)
}
