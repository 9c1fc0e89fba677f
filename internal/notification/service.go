// Package notification handles Gmail push notifications and FCM delivery.
package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	authdomain "advisor-backend/internal/auth/domain"
	"advisor-backend/internal/knowledge/domain"
	knowledge "advisor-backend/internal/knowledge/usecase"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"
)

type GmailNotification struct {
	EmailAddress string `json:"emailAddress"`
	HistoryID    uint64 `json:"historyId"`
}

type UserLookup interface {
	FindByEmail(email string) (*authdomain.User, error)
}

type SyncEnqueuer interface {
	Enqueue(job knowledge.SyncJob) bool
}

type Service struct {
	pubsubClient *pubsub.Client
	users        UserLookup
	sync         SyncEnqueuer
	topicName    string
	subName      string

	mu sync.Mutex
	// last historyId seen per user; older or repeated pushes are dropped
	lastHistoryID map[string]uint64
}

func NewService(ctx context.Context, projectID, topicName, credentialsFile string, users UserLookup, syncer SyncEnqueuer) (*Service, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %w", err)
	}

	svc := newService(users, syncer)
	svc.pubsubClient = client
	svc.topicName = topicName
	svc.subName = topicName + "-sub"
	return svc, nil
}

func newService(users UserLookup, syncer SyncEnqueuer) *Service {
	return &Service{
		users:         users,
		sync:          syncer,
		lastHistoryID: make(map[string]uint64),
	}
}

// Start receives until ctx is cancelled, creating the subscription if needed.
func (s *Service) Start(ctx context.Context) {
	log.Printf("[PubSub] Starting with topic %s, subscription %s", s.topicName, s.subName)

	sub := s.pubsubClient.Subscription(s.subName)
	exists, err := sub.Exists(ctx)
	if err != nil {
		log.Printf("[PubSub] Error checking subscription: %v", err)
		return
	}
	if !exists {
		topic := s.pubsubClient.Topic(s.topicName)
		topicExists, err := topic.Exists(ctx)
		if err != nil {
			log.Printf("[PubSub] Error checking topic: %v", err)
			return
		}
		if !topicExists {
			log.Printf("[PubSub] Topic %s does not exist, cannot create subscription", s.topicName)
			return
		}
		sub, err = s.pubsubClient.CreateSubscription(ctx, s.subName, pubsub.SubscriptionConfig{
			Topic:       topic,
			AckDeadline: 10 * time.Second,
		})
		if err != nil {
			log.Printf("[PubSub] Failed to create subscription: %v", err)
			return
		}
		log.Printf("[PubSub] Created subscription %s", s.subName)
	}

	err = sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		s.HandleNotification(msg.Data)
		msg.Ack()
	})
	if err != nil {
		log.Printf("[PubSub] Error receiving messages: %v", err)
	}
}

func (s *Service) Close() error {
	if s.pubsubClient == nil {
		return nil
	}
	return s.pubsubClient.Close()
}

// HandleNotification enqueues an email sync for the mailbox owner.
// It reports whether a job was queued.
func (s *Service) HandleNotification(data []byte) bool {
	var n GmailNotification
	if err := json.Unmarshal(data, &n); err != nil {
		log.Printf("[PubSub] Failed to decode notification: %v", err)
		return false
	}

	user, err := s.users.FindByEmail(n.EmailAddress)
	if err != nil {
		log.Printf("[PubSub] Error finding user %s: %v", n.EmailAddress, err)
		return false
	}
	if user == nil || !user.Connected(authdomain.ProviderGoogle) {
		log.Printf("[PubSub] No connected user for %s", n.EmailAddress)
		return false
	}

	if !s.advance(user.ID, n.HistoryID) {
		log.Printf("[PubSub] Skipping duplicate notification for user %s (historyId %d)", user.ID, n.HistoryID)
		return false
	}

	if !s.sync.Enqueue(knowledge.SyncJob{UserID: user.ID, Kind: domain.KindEmails}) {
		log.Printf("[PubSub] Sync queue full, dropped email sync for user %s", user.ID)
		return false
	}
	return true
}

func (s *Service) advance(userID string, historyID uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if last, ok := s.lastHistoryID[userID]; ok && historyID <= last {
		return false
	}
	s.lastHistoryID[userID] = historyID
	return true
}
