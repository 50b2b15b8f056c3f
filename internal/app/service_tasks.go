package app

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"nexacrm/api/internal/store"
	"nexacrm/api/internal/util"
)

var (
	taskStatuses   = []string{"todo", "in_progress", "done"}
	taskPriorities = []string{"low", "medium", "high", "urgent"}
)

const dueSoonDays = 3

type TaskListParams struct {
	Status   string
	Priority string
	LeadID   string
	DueSoon  bool
}

// ListTasks returns tasks ordered by priority rank (urgent first).
func (s *Service) ListTasks(ctx context.Context, userID string, params TaskListParams) ([]store.Task, error) {
	filter := store.TaskFilter{
		UserID:   userID,
		Status:   strings.TrimSpace(params.Status),
		Priority: strings.TrimSpace(params.Priority),
		LeadID:   strings.TrimSpace(params.LeadID),
	}
	if params.DueSoon {
		filter.DueBefore = s.now().UTC().AddDate(0, 0, dueSoonDays).Format("2006-01-02")
	}
	return s.store.ListTasks(ctx, filter)
}

type TaskStats struct {
	Total          int           `json:"total"`
	Done           int           `json:"done"`
	Overdue        int           `json:"overdue"`
	ByStatus       []StatusCount `json:"byStatus"`
	CompletionRate int           `json:"completion_rate"`
}

func (s *Service) TaskStats(ctx context.Context, userID string) (TaskStats, error) {
	counts, err := s.store.TaskStats(ctx, userID, s.today())
	if err != nil {
		return TaskStats{}, err
	}
	stats := TaskStats{
		Total:    counts.Total,
		Done:     counts.Done,
		Overdue:  counts.Overdue,
		ByStatus: make([]StatusCount, 0, len(taskStatuses)),
	}
	for _, status := range taskStatuses {
		stats.ByStatus = append(stats.ByStatus, StatusCount{Status: status, Count: counts.ByStatus[status]})
	}
	if counts.Total > 0 {
		stats.CompletionRate = int(math.Round(float64(counts.Done) / float64(counts.Total) * 100))
	}
	return stats, nil
}

func (s *Service) GetTask(ctx context.Context, userID, taskID string) (store.Task, error) {
	task, err := s.store.GetTask(ctx, userID, taskID)
	if isNotFound(err) {
		return store.Task{}, notFoundError("Task not found")
	}
	return task, err
}

type TaskInput struct {
	Title       *string          `json:"title"`
	Description nullable[string] `json:"description"`
	Status      *string          `json:"status"`
	Priority    *string          `json:"priority"`
	DueDate     nullable[string] `json:"due_date"`
	LeadID      nullable[string] `json:"lead_id"`
}

// apply merges the supplied fields and keeps completed_at consistent with
// the status: entering done stamps it, any other status clears it.
func (in TaskInput) apply(task *store.Task, now time.Time) error {
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return validationError("Title is required")
		}
		task.Title = title
	}
	in.Description.apply(&task.Description)
	in.LeadID.apply(&task.LeadID)
	if in.DueDate.Set {
		in.DueDate.apply(&task.DueDate)
		if task.DueDate != nil {
			if _, err := time.Parse("2006-01-02", *task.DueDate); err != nil {
				return validationError("due_date must be YYYY-MM-DD")
			}
		}
	}
	if in.Priority != nil {
		if !oneOf(*in.Priority, taskPriorities...) {
			return validationError(fmt.Sprintf("Invalid priority %q", *in.Priority))
		}
		task.Priority = *in.Priority
	}
	if in.Status != nil {
		if !oneOf(*in.Status, taskStatuses...) {
			return validationError(fmt.Sprintf("Invalid status %q", *in.Status))
		}
		if *in.Status == "done" {
			stamp := now.UTC()
			task.CompletedAt = &stamp
		} else {
			task.CompletedAt = nil
		}
		task.Status = *in.Status
	}
	return nil
}

func (s *Service) CreateTask(ctx context.Context, userID string, in TaskInput) (store.Task, error) {
	if in.Title == nil || strings.TrimSpace(*in.Title) == "" {
		return store.Task{}, validationError("Title is required")
	}
	task := store.Task{
		ID:       util.NewID(),
		UserID:   userID,
		Status:   "todo",
		Priority: "medium",
	}
	if err := in.apply(&task, s.now()); err != nil {
		return store.Task{}, err
	}
	if err := s.checkLeadLink(ctx, userID, task.LeadID); err != nil {
		return store.Task{}, err
	}
	return s.store.InsertTask(ctx, task)
}

func (s *Service) UpdateTask(ctx context.Context, userID, taskID string, in TaskInput) (store.Task, error) {
	task, err := s.GetTask(ctx, userID, taskID)
	if err != nil {
		return store.Task{}, err
	}
	if err := in.apply(&task, s.now()); err != nil {
		return store.Task{}, err
	}
	if in.LeadID.Set {
		if err := s.checkLeadLink(ctx, userID, task.LeadID); err != nil {
			return store.Task{}, err
		}
	}
	updated, err := s.store.UpdateTask(ctx, task)
	if isNotFound(err) {
		return store.Task{}, notFoundError("Task not found")
	}
	return updated, err
}

func (s *Service) DeleteTask(ctx context.Context, userID, taskID string) error {
	err := s.store.DeleteTask(ctx, userID, taskID)
	if isNotFound(err) {
		return notFoundError("Task not found")
	}
	return err
}
