package domain

import "time"

// SyncHistory records a source item already embedded for a user, so reruns skip the embedding call.
type SyncHistory struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	UserID    string    `json:"user_id" gorm:"uniqueIndex:idx_sync_history_item;not null"`
	Kind      Kind      `json:"kind" gorm:"uniqueIndex:idx_sync_history_item;not null"`
	SourceID  string    `json:"source_id" gorm:"uniqueIndex:idx_sync_history_item;not null"`
	SyncedAt  time.Time `json:"synced_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Readiness is the advisory would-help signal.
type Readiness string

const (
	ReadinessNo    Readiness = "no"
	ReadinessMaybe Readiness = "maybe"
	ReadinessYes   Readiness = "yes"
)

// ReadinessFloor is the record count below which retrieval only maybe helps.
const ReadinessFloor = 5

type Status struct {
	Emails        int64      `json:"emails"`
	Contacts      int64      `json:"contacts"`
	WouldHelp     Readiness  `json:"would_help"`
	LastEmailAt   *time.Time `json:"last_email_sync,omitempty"`
	LastContactAt *time.Time `json:"last_contact_sync,omitempty"`
}
