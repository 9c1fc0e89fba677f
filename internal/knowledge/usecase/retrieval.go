package usecase

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"advisor-backend/internal/knowledge/domain"
	"advisor-backend/internal/knowledge/repository"
	"advisor-backend/pkg/embedding"
	"advisor-backend/pkg/errs"
)

const (
	excerptLimit = 300

	NoEmailsLine   = "No relevant emails found."
	NoContactsLine = "No relevant contacts found."
)

type RetrievalOptions struct {
	EmailLimit    int
	ContactLimit  int
	MinSimilarity float64
}

// RetrievalEngine embeds a query once and ranks it against both record kinds.
type RetrievalEngine struct {
	embedder embedding.Provider
	store    repository.VectorStore

	mu       sync.RWMutex
	defaults RetrievalOptions
}

func NewRetrievalEngine(embedder embedding.Provider, store repository.VectorStore, defaults RetrievalOptions) *RetrievalEngine {
	return &RetrievalEngine{
		embedder: embedder,
		store:    store,
		defaults: defaults,
	}
}

func (e *RetrievalEngine) Defaults() RetrievalOptions {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.defaults
}

// SetMinSimilarity changes the default threshold at runtime.
func (e *RetrievalEngine) SetMinSimilarity(v float64) {
	e.mu.Lock()
	e.defaults.MinSimilarity = v
	e.mu.Unlock()
}

func (e *RetrievalEngine) embedQuery(ctx context.Context, query string) ([]float32, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errs.Validation("query is required")
	}
	vec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	return vec, nil
}

// Search embeds query once and ranks both kinds with the same vector and threshold.
func (e *RetrievalEngine) Search(ctx context.Context, userID, query string, opts RetrievalOptions) ([]domain.ScoredEmail, []domain.ScoredContact, error) {
	vec, err := e.embedQuery(ctx, query)
	if err != nil {
		return nil, nil, err
	}

	emails, err := e.store.TopEmails(ctx, userID, vec, opts.EmailLimit, opts.MinSimilarity)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to rank emails: %w", err)
	}
	contacts, err := e.store.TopContacts(ctx, userID, vec, opts.ContactLimit, opts.MinSimilarity)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to rank contacts: %w", err)
	}

	if len(emails) > opts.EmailLimit {
		emails = emails[:opts.EmailLimit]
	}
	if len(contacts) > opts.ContactLimit {
		contacts = contacts[:opts.ContactLimit]
	}
	return emails, contacts, nil
}

// RetrieveContext renders the two-section context block for a query.
func (e *RetrievalEngine) RetrieveContext(ctx context.Context, userID, query string, opts RetrievalOptions) (string, error) {
	emails, contacts, err := e.Search(ctx, userID, query, opts)
	if err != nil {
		return "", err
	}
	return FormatContext(emails, contacts), nil
}

// ContextFor is RetrieveContext with the engine defaults.
func (e *RetrievalEngine) ContextFor(ctx context.Context, userID, query string) (string, error) {
	return e.RetrieveContext(ctx, userID, query, e.Defaults())
}

func (e *RetrievalEngine) SearchEmails(ctx context.Context, userID, query string, limit int) ([]domain.ScoredEmail, error) {
	vec, err := e.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = e.Defaults().EmailLimit
	}
	return e.store.TopEmails(ctx, userID, vec, limit, e.Defaults().MinSimilarity)
}

func (e *RetrievalEngine) SearchContacts(ctx context.Context, userID, query string, limit int) ([]domain.ScoredContact, error) {
	vec, err := e.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = e.Defaults().ContactLimit
	}
	return e.store.TopContacts(ctx, userID, vec, limit, e.Defaults().MinSimilarity)
}

// WouldHelp is advisory only; it never gates retrieval.
func (e *RetrievalEngine) WouldHelp(ctx context.Context, userID string) (domain.Readiness, error) {
	emails, contacts, err := e.store.Count(ctx, userID)
	if err != nil {
		return "", err
	}
	return readiness(emails + contacts), nil
}

func readiness(total int64) domain.Readiness {
	switch {
	case total == 0:
		return domain.ReadinessNo
	case total < domain.ReadinessFloor:
		return domain.ReadinessMaybe
	default:
		return domain.ReadinessYes
	}
}

// FormatContext renders both sections; an empty section gets an explicit placeholder line.
func FormatContext(emails []domain.ScoredEmail, contacts []domain.ScoredContact) string {
	var b strings.Builder

	b.WriteString("Relevant emails:\n")
	if len(emails) == 0 {
		b.WriteString(NoEmailsLine + "\n")
	}
	for i, s := range emails {
		r := s.Record
		date := ""
		if !r.ReceivedAt.IsZero() {
			date = r.ReceivedAt.Format("2006-01-02")
		}
		fmt.Fprintf(&b, "%d. [%.2f] Subject: %s | From: %s | To: %s | Date: %s\n", i+1, s.Similarity, r.Subject, r.Sender, r.Recipients, date)
		if excerpt := Excerpt(r.Content, excerptLimit); excerpt != "" {
			fmt.Fprintf(&b, "   %s\n", excerpt)
		}
	}

	b.WriteString("\nRelevant contacts:\n")
	if len(contacts) == 0 {
		b.WriteString(NoContactsLine + "\n")
	}
	for i, s := range contacts {
		r := s.Record
		fmt.Fprintf(&b, "%d. [%.2f] Name: %s | Email: %s\n", i+1, s.Similarity, r.Name, r.Email)
		if notes := Excerpt(r.Notes, excerptLimit); notes != "" {
			fmt.Fprintf(&b, "   Notes: %s\n", notes)
		}
	}
	return b.String()
}

var whitespace = regexp.MustCompile(`\s+`)

// Excerpt collapses whitespace and cuts text to limit runes.
func Excerpt(text string, limit int) string {
	text = strings.TrimSpace(whitespace.ReplaceAllString(text, " "))
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}

var questionWord = regexp.MustCompile(`\b(what|who|when|where|why|how)\b`)

var retrievalKeywords = []string{
	"email", "mail", "meeting", "contact", "client", "last time",
	"find", "search", "mention", "said", "talk", "discuss", "remember", "recent",
}

// ShouldRetrieve decides whether a chat message gets a context block.
func ShouldRetrieve(message string) bool {
	lower := strings.ToLower(message)
	if strings.Contains(lower, "?") || questionWord.MatchString(lower) {
		return true
	}
	for _, kw := range retrievalKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
