package usecase

import (
	"log"
	"time"

	authdomain "advisor-backend/internal/auth/domain"
	"advisor-backend/internal/knowledge/domain"
)

// ConnectedUsers lists users holding tokens for a provider.
type ConnectedUsers interface {
	ListConnected(p authdomain.Provider) ([]*authdomain.User, error)
}

// SyncScheduler periodically enqueues sync jobs for every connected user.
type SyncScheduler struct {
	users    ConnectedUsers
	sync     *SyncService
	interval time.Duration
	stopChan chan struct{}
}

func NewSyncScheduler(users ConnectedUsers, syncService *SyncService, interval time.Duration) *SyncScheduler {
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	return &SyncScheduler{
		users:    users,
		sync:     syncService,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

func (s *SyncScheduler) Start() {
	log.Printf("[SyncScheduler] Starting (interval: %s)", s.interval)

	go func() {
		s.enqueueAll()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.enqueueAll()
			case <-s.stopChan:
				log.Println("[SyncScheduler] Scheduler stopped")
				return
			}
		}
	}()
}

func (s *SyncScheduler) Stop() {
	close(s.stopChan)
}

func (s *SyncScheduler) enqueueAll() int {
	queued := 0
	for _, target := range []struct {
		provider authdomain.Provider
		kind     domain.Kind
	}{
		{authdomain.ProviderGoogle, domain.KindEmails},
		{authdomain.ProviderHubspot, domain.KindContacts},
	} {
		users, err := s.users.ListConnected(target.provider)
		if err != nil {
			log.Printf("[SyncScheduler] Error listing %s users: %v", target.provider, err)
			continue
		}
		for _, u := range users {
			if s.sync.Enqueue(SyncJob{UserID: u.ID, Kind: target.kind}) {
				queued++
			}
		}
	}
	if queued > 0 {
		log.Printf("[SyncScheduler] Queued %d sync jobs", queued)
	}
	return queued
}
