package usecase

import (
	"context"

	"advisor-backend/internal/task/domain"
)

// TaskUsecase defines the interface for task business logic
type TaskUsecase interface {
	CreateTask(userID string, req CreateTaskRequest) (*domain.Task, error)

	// GetTaskByID returns the task only when userID owns it
	GetTaskByID(userID, taskID string) (*domain.Task, error)

	GetUserTasks(userID string, status *string, limit, offset int) ([]*domain.Task, int64, error)

	UpdateTask(userID, taskID string, updates TaskUpdateRequest) (*domain.Task, error)

	DeleteTask(userID, taskID string) error

	DeleteByUser(ctx context.Context, userID string) error
}

type CreateTaskRequest struct {
	Title          string  `json:"title" binding:"required"`
	Description    string  `json:"description"`
	ConversationID string  `json:"conversation_id"`
	DueDate        *string `json:"due_date"`
	Priority       string  `json:"priority"`
	ReminderAt     *string `json:"reminder_at"`
}

// TaskUpdateRequest represents the fields that can be updated
type TaskUpdateRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	DueDate     *string `json:"due_date,omitempty"`
	Priority    *string `json:"priority,omitempty"`
	Status      *string `json:"status,omitempty"`
	ReminderAt  *string `json:"reminder_at,omitempty"`
}
