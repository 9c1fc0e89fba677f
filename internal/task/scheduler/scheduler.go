package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"advisor-backend/internal/task/domain"
	"advisor-backend/internal/task/repository"
	"advisor-backend/pkg/fcm"
)

// UserNotifier pushes a notification to all of a user's devices.
type UserNotifier interface {
	NotifyUser(ctx context.Context, userID string, n fcm.Notification) (int, error)
}

// TaskReminderScheduler sends FCM reminders for tasks whose reminder time has passed
type TaskReminderScheduler struct {
	taskRepo repository.TaskRepository
	notifier UserNotifier
	interval time.Duration
	now      func() time.Time
	stopChan chan struct{}
	stopOnce sync.Once
}

func NewTaskReminderScheduler(taskRepo repository.TaskRepository, notifier UserNotifier, interval time.Duration) *TaskReminderScheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &TaskReminderScheduler{
		taskRepo: taskRepo,
		notifier: notifier,
		interval: interval,
		now:      time.Now,
		stopChan: make(chan struct{}),
	}
}

func (s *TaskReminderScheduler) Start() {
	if s.notifier == nil {
		log.Println("[TaskScheduler] No push notifier, scheduler disabled")
		return
	}

	log.Printf("[TaskScheduler] Starting task reminder scheduler (interval: %s)", s.interval)
	go func() {
		s.checkAndSendReminders(context.Background())

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.checkAndSendReminders(context.Background())
			case <-s.stopChan:
				log.Println("[TaskScheduler] Scheduler stopped")
				return
			}
		}
	}()
}

func (s *TaskReminderScheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
}

// checkAndSendReminders returns how many reminders were handled.
func (s *TaskReminderScheduler) checkAndSendReminders(ctx context.Context) int {
	tasks, err := s.taskRepo.FindPendingReminders(s.now())
	if err != nil {
		log.Printf("[TaskScheduler] Error finding pending reminders: %v", err)
		return 0
	}
	if len(tasks) == 0 {
		return 0
	}
	log.Printf("[TaskScheduler] Found %d tasks with pending reminders", len(tasks))

	for _, task := range tasks {
		devices, err := s.notifier.NotifyUser(ctx, task.UserID, reminderFor(task))
		if err != nil {
			log.Printf("[TaskScheduler] Error sending reminder for task %s: %v", task.ID, err)
		} else {
			log.Printf("[TaskScheduler] Sent reminder for task %s to %d devices", task.ID, devices)
		}

		// marked even when delivery failed
		if err := s.taskRepo.MarkReminderSent(task.ID); err != nil {
			log.Printf("[TaskScheduler] Error marking reminder as sent for task %s: %v", task.ID, err)
		}
	}
	return len(tasks)
}

func reminderFor(task *domain.Task) fcm.Notification {
	body := task.Description
	if body == "" {
		body = "You have a task to follow up on"
	}
	if task.DueDate != nil {
		body = fmt.Sprintf("%s\nDue %s", body, task.DueDate.Format("Jan 2, 2006 15:04"))
	}

	return fcm.Notification{
		Title: fmt.Sprintf("Reminder (%s): %s", task.Priority, task.Title),
		Body:  body,
		Data: map[string]string{
			"type":     "task_reminder",
			"task_id":  task.ID,
			"priority": string(task.Priority),
			"status":   string(task.Status),
		},
		Link: "/tasks",
	}
}
