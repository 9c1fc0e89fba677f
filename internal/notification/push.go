package notification

import (
	"context"
	"fmt"
	"log"

	authdomain "advisor-backend/internal/auth/domain"
	"advisor-backend/internal/knowledge/domain"
	knowledge "advisor-backend/internal/knowledge/usecase"
	"advisor-backend/pkg/fcm"
)

type TokenStore interface {
	GetTokensByUserID(userID string) ([]authdomain.FCMToken, error)
	DeleteTokens(tokens []string) error
}

// Pusher sends FCM notifications to every registered device of a user.
type Pusher struct {
	tokens TokenStore
	sender fcm.Sender
}

func NewPusher(tokens TokenStore, sender fcm.Sender) *Pusher {
	return &Pusher{tokens: tokens, sender: sender}
}

// NotifyUser delivers n and prunes device tokens FCM rejected.
// It returns how many devices were targeted.
func (p *Pusher) NotifyUser(ctx context.Context, userID string, n fcm.Notification) (int, error) {
	tokens, err := p.tokens.GetTokensByUserID(userID)
	if err != nil {
		return 0, err
	}
	if len(tokens) == 0 {
		return 0, nil
	}

	values := make([]string, 0, len(tokens))
	for _, t := range tokens {
		values = append(values, t.Token)
	}
	failed, err := p.sender.Send(ctx, values, n)
	if err != nil {
		return 0, err
	}
	if len(failed) > 0 {
		log.Printf("[FCM] Removing %d stale tokens for user %s", len(failed), userID)
		if err := p.tokens.DeleteTokens(failed); err != nil {
			log.Printf("[FCM] Failed to remove stale tokens: %v", err)
		}
	}
	return len(values), nil
}

// SyncFinished tells the user that newly synced records are searchable.
func (p *Pusher) SyncFinished(ctx context.Context, userID string, kind domain.Kind, result knowledge.SyncResult) {
	n := fcm.Notification{
		Title: "Knowledge base updated",
		Body:  fmt.Sprintf("%d new %s are ready to search", result.Stored, kind),
		Data: map[string]string{
			"type":   "sync_finished",
			"kind":   string(kind),
			"stored": fmt.Sprintf("%d", result.Stored),
		},
		Link: "/chat",
	}
	if _, err := p.NotifyUser(ctx, userID, n); err != nil {
		log.Printf("[FCM] Sync notification for user %s failed: %v", userID, err)
	}
}
