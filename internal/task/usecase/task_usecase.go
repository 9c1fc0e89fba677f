package usecase

import (
	"context"
	"strings"
	"time"

	"advisor-backend/internal/task/domain"
	"advisor-backend/internal/task/repository"
	"advisor-backend/pkg/errs"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

type taskUsecase struct {
	taskRepo repository.TaskRepository
}

func NewTaskUsecase(taskRepo repository.TaskRepository) TaskUsecase {
	return &taskUsecase{taskRepo: taskRepo}
}

func (u *taskUsecase) CreateTask(userID string, req CreateTaskRequest) (*domain.Task, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, errs.Validation("title is required")
	}

	task := &domain.Task{
		UserID:         userID,
		ConversationID: req.ConversationID,
		Title:          title,
		Description:    req.Description,
		Priority:       domain.ParsePriority(req.Priority),
		Status:         domain.TaskStatusPending,
	}

	var err error
	if task.DueDate, err = parseOptionalTime("due_date", req.DueDate); err != nil {
		return nil, err
	}
	if task.ReminderAt, err = parseOptionalTime("reminder_at", req.ReminderAt); err != nil {
		return nil, err
	}

	if err := u.taskRepo.Create(task); err != nil {
		return nil, err
	}
	return task, nil
}

func (u *taskUsecase) GetTaskByID(userID, taskID string) (*domain.Task, error) {
	task, err := u.taskRepo.FindByID(taskID)
	if err != nil {
		return nil, err
	}
	if task == nil || task.UserID != userID {
		return nil, errs.NotFound("task")
	}
	return task, nil
}

func (u *taskUsecase) GetUserTasks(userID string, status *string, limit, offset int) ([]*domain.Task, int64, error) {
	var statusFilter *domain.TaskStatus
	if status != nil && *status != "" {
		s, ok := domain.ParseStatus(*status)
		if !ok {
			return nil, 0, errs.Validation("unknown status %q", *status)
		}
		statusFilter = &s
	}
	if limit <= 0 {
		limit = defaultPageSize
	}
	limit = min(limit, maxPageSize)
	offset = max(offset, 0)
	return u.taskRepo.FindByUserID(userID, statusFilter, limit, offset)
}

func (u *taskUsecase) UpdateTask(userID, taskID string, updates TaskUpdateRequest) (*domain.Task, error) {
	task, err := u.GetTaskByID(userID, taskID)
	if err != nil {
		return nil, err
	}

	if updates.Title != nil {
		title := strings.TrimSpace(*updates.Title)
		if title == "" {
			return nil, errs.Validation("title must not be empty")
		}
		task.Title = title
	}
	if updates.Description != nil {
		task.Description = *updates.Description
	}
	if updates.Priority != nil {
		task.Priority = domain.ParsePriority(*updates.Priority)
	}
	if updates.Status != nil {
		status, ok := domain.ParseStatus(*updates.Status)
		if !ok {
			return nil, errs.Validation("unknown status %q", *updates.Status)
		}
		task.Status = status
	}
	if updates.DueDate != nil {
		if task.DueDate, err = parseOptionalTime("due_date", updates.DueDate); err != nil {
			return nil, err
		}
	}
	if updates.ReminderAt != nil {
		if task.ReminderAt, err = parseOptionalTime("reminder_at", updates.ReminderAt); err != nil {
			return nil, err
		}
		// a moved reminder fires again
		task.ReminderSent = false
	}

	if err := u.taskRepo.Update(task); err != nil {
		return nil, err
	}
	return task, nil
}

func (u *taskUsecase) DeleteTask(userID, taskID string) error {
	task, err := u.GetTaskByID(userID, taskID)
	if err != nil {
		return err
	}
	return u.taskRepo.Delete(task.ID)
}

func (u *taskUsecase) DeleteByUser(_ context.Context, userID string) error {
	return u.taskRepo.DeleteByUser(userID)
}

// parseOptionalTime treats nil and "" as unset.
func parseOptionalTime(field string, value *string) (*time.Time, error) {
	if value == nil || *value == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, *value)
	if err != nil {
		return nil, errs.Validation("%s must be RFC3339", field)
	}
	return &t, nil
}
