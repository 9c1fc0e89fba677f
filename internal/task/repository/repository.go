package repository

import (
	"time"

	"advisor-backend/internal/task/domain"
)

// TaskRepository defines the interface for task data access
type TaskRepository interface {
	Create(task *domain.Task) error

	// FindByID returns nil when no task has that id
	FindByID(id string) (*domain.Task, error)

	// FindByUserID lists a user's tasks, due soonest first, with an optional status filter
	FindByUserID(userID string, status *domain.TaskStatus, limit, offset int) ([]*domain.Task, int64, error)

	Update(task *domain.Task) error

	Delete(id string) error

	// FindPendingReminders returns open tasks whose reminder is due and not yet sent
	FindPendingReminders(now time.Time) ([]*domain.Task, error)

	MarkReminderSent(id string) error

	DeleteByUser(userID string) error
}
