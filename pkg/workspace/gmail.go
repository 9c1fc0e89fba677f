package workspace

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"html"
	"log"
	"net/mail"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"advisor-backend/pkg/errs"
	"advisor-backend/pkg/oauthutil"

	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/gmail/v1"
)

// Email is the subset of a Gmail message the assistant works with.
type Email struct {
	ID         string
	ThreadID   string
	Subject    string
	From       string
	To         string
	Body       string
	ReceivedAt time.Time
}

var htmlTagPattern = regexp.MustCompile(`<[^>]*>`)

// ListRecentEmails fetches up to max messages matching query, newest first.
// Messages that fail to load are skipped.
func (s *Service) ListRecentEmails(ctx context.Context, token *oauth2.Token, max int, query string, onRefresh oauthutil.TokenUpdateFunc) ([]*Email, error) {
	srv, err := s.GetGmailService(ctx, token, onRefresh)
	if err != nil {
		return nil, err
	}
	if max <= 0 {
		max = 50
	}

	var ids []string
	pageToken := ""
	for len(ids) < max {
		pageSize := int64(max - len(ids))
		if pageSize > 500 {
			pageSize = 500 // Gmail API maximum
		}
		call := srv.Users.Messages.List("me").MaxResults(pageSize).Context(ctx)
		if query != "" {
			call = call.Q(query)
		}
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		resp, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("unable to list messages: %w", err)
		}
		for _, m := range resp.Messages {
			ids = append(ids, m.Id)
		}
		pageToken = resp.NextPageToken
		if pageToken == "" || len(resp.Messages) == 0 {
			break
		}
	}

	var mu sync.Mutex
	emails := make([]*Email, 0, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(10)
	for _, id := range ids {
		g.Go(func() error {
			msg, err := srv.Users.Messages.Get("me", id).Format("full").Context(gctx).Do()
			if err != nil {
				log.Printf("[Gmail] Skipping message %s: %v", id, err)
				return nil
			}
			email := convertMessage(msg)
			mu.Lock()
			emails = append(emails, email)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	sort.SliceStable(emails, func(i, j int) bool {
		return emails[i].ReceivedAt.After(emails[j].ReceivedAt)
	})
	return emails, nil
}

// SendEmail sends a plain-text message from the user's mailbox.
func (s *Service) SendEmail(ctx context.Context, token *oauth2.Token, to, subject, body string, onRefresh oauthutil.TokenUpdateFunc) (string, error) {
	raw, err := buildMessage(to, subject, body)
	if err != nil {
		return "", err
	}
	srv, err := s.GetGmailService(ctx, token, onRefresh)
	if err != nil {
		return "", err
	}

	msg := &gmail.Message{Raw: base64.URLEncoding.EncodeToString(raw)}
	sent, err := srv.Users.Messages.Send("me", msg).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("unable to send message: %w", err)
	}
	return sent.Id, nil
}

// Watch sets up push notifications for the user's inbox on the given Pub/Sub topic
func (s *Service) Watch(ctx context.Context, token *oauth2.Token, topicName string, onRefresh oauthutil.TokenUpdateFunc) error {
	srv, err := s.GetGmailService(ctx, token, onRefresh)
	if err != nil {
		return err
	}

	// Only one push client is allowed per mailbox
	_ = srv.Users.Stop("me").Context(ctx).Do()

	resp, err := srv.Users.Watch("me", &gmail.WatchRequest{
		TopicName: topicName,
		LabelIds:  []string{"INBOX"},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("unable to watch mailbox: %w", err)
	}
	log.Printf("[Gmail] Watch started. Expiration: %d, HistoryId: %d", resp.Expiration, resp.HistoryId)
	return nil
}

func buildMessage(to, subject, body string) ([]byte, error) {
	if strings.ContainsAny(to, "\r\n") {
		return nil, errs.Validation("recipient must be a single address")
	}
	addr, err := mail.ParseAddress(to)
	if err != nil {
		return nil, errs.Validation("invalid recipient %q", to)
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "To: %s\r\n", (&mail.Address{Address: addr.Address}).String())
	// RFC 2047 subject for non-ASCII text
	fmt.Fprintf(&buf, "Subject: =?utf-8?B?%s?=\r\n", base64.StdEncoding.EncodeToString([]byte(subject)))
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n\r\n")
	buf.WriteString(body)
	return buf.Bytes(), nil
}

func convertMessage(msg *gmail.Message) *Email {
	email := &Email{
		ID:         msg.Id,
		ThreadID:   msg.ThreadId,
		ReceivedAt: time.UnixMilli(msg.InternalDate),
	}
	if msg.Payload == nil {
		email.Body = msg.Snippet
		return email
	}

	email.Subject = getHeader(msg.Payload.Headers, "Subject")
	email.From = getHeader(msg.Payload.Headers, "From")
	email.To = getHeader(msg.Payload.Headers, "To")

	body, isHTML := getBody(msg.Payload)
	if isHTML {
		body = stripHTML(body)
	}
	if strings.TrimSpace(body) == "" {
		body = msg.Snippet
	}
	email.Body = strings.TrimSpace(body)
	return email
}

func getHeader(headers []*gmail.MessagePartHeader, name string) string {
	for _, header := range headers {
		if strings.EqualFold(header.Name, name) {
			return header.Value
		}
	}
	return ""
}

// getBody prefers a text/plain part and falls back to text/html.
func getBody(payload *gmail.MessagePart) (string, bool) {
	if len(payload.Parts) == 0 {
		return decodePart(payload), payload.MimeType == "text/html"
	}

	var plain, htmlBody string
	var walk func(parts []*gmail.MessagePart)
	walk = func(parts []*gmail.MessagePart) {
		for _, part := range parts {
			switch part.MimeType {
			case "text/plain":
				if plain == "" {
					plain = decodePart(part)
				}
			case "text/html":
				if htmlBody == "" {
					htmlBody = decodePart(part)
				}
			}
			if len(part.Parts) > 0 {
				walk(part.Parts)
			}
		}
	}
	walk(payload.Parts)

	if plain != "" {
		return plain, false
	}
	return htmlBody, htmlBody != ""
}

func decodePart(part *gmail.MessagePart) string {
	if part.Body == nil || part.Body.Data == "" {
		return ""
	}
	data, err := base64.URLEncoding.DecodeString(part.Body.Data)
	if err != nil {
		// Gmail sometimes omits padding
		data, err = base64.RawURLEncoding.DecodeString(part.Body.Data)
		if err != nil {
			return ""
		}
	}
	return string(data)
}

func stripHTML(s string) string {
	s = htmlTagPattern.ReplaceAllString(s, " ")
	s = html.UnescapeString(s)
	return strings.Join(strings.Fields(s), " ")
}
