package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hiroki-koketsu/go-task-tracker/internal/model"
	"github.com/hiroki-koketsu/go-task-tracker/internal/repository"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// TaskService manages the task list embedded in each account.
type TaskService struct {
	repo  repository.AccountRepository
	now   func() time.Time
	newID func() string
}

// NewTaskService creates a new TaskService.
func NewTaskService(repo repository.AccountRepository) *TaskService {
	return &TaskService{
		repo:  repo,
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
}

// AddTask appends a pending task to the user's list and returns the full list.
func (s *TaskService) AddTask(ctx context.Context, req *model.CreateTaskRequest) ([]model.Task, error) {
	ctx, span := tracer.Start(ctx, "TaskService.AddTask",
		trace.WithAttributes(attribute.String("account.username", req.Username)),
	)
	defer span.End()

	in, err := req.Validate()
	if err != nil {
		return nil, err
	}

	account, err := s.repo.FindByUsername(ctx, strings.TrimSpace(req.Username))
	if err != nil {
		return nil, err
	}

	task := account.AppendTask(s.newID(), in, s.now())
	if err := s.repo.Persist(ctx, account); err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.String("task.id", task.ID))
	return account.TaskList(), nil
}

// ListTasks returns the user's tasks in insertion order.
func (s *TaskService) ListTasks(ctx context.Context, username string) ([]model.Task, error) {
	ctx, span := tracer.Start(ctx, "TaskService.ListTasks",
		trace.WithAttributes(attribute.String("account.username", username)),
	)
	defer span.End()

	account, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	tasks := account.TaskList()
	span.SetAttributes(attribute.Int("task.count", len(tasks)))
	return tasks, nil
}

// CompleteTask marks a task completed. Completing an already completed task
// succeeds and persists again.
func (s *TaskService) CompleteTask(ctx context.Context, username, taskID string) (*model.Task, error) {
	return s.UpdateTaskStatus(ctx, username, taskID, model.StatusCompleted)
}

// UpdateTaskStatus moves a task to any known status.
func (s *TaskService) UpdateTaskStatus(ctx context.Context, username, taskID string, status model.Status) (*model.Task, error) {
	ctx, span := tracer.Start(ctx, "TaskService.UpdateTaskStatus",
		trace.WithAttributes(
			attribute.String("account.username", username),
			attribute.String("task.id", taskID),
			attribute.String("task.status", string(status)),
		),
	)
	defer span.End()

	if !status.Valid() {
		return nil, model.ErrInvalidStatus
	}

	account, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	task, err := account.SetTaskStatus(taskID, status, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.repo.Persist(ctx, account); err != nil {
		return nil, err
	}

	updated := *task
	return &updated, nil
}

// DeleteTask removes the task with the given id and returns the remaining
// list. An id that matches nothing is not an error.
func (s *TaskService) DeleteTask(ctx context.Context, username, taskID string) ([]model.Task, error) {
	ctx, span := tracer.Start(ctx, "TaskService.DeleteTask",
		trace.WithAttributes(
			attribute.String("account.username", username),
			attribute.String("task.id", taskID),
		),
	)
	defer span.End()

	account, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	removed := account.RemoveTask(taskID)
	span.SetAttributes(attribute.Bool("task.found", removed))

	if err := s.repo.Persist(ctx, account); err != nil {
		return nil, err
	}
	return account.TaskList(), nil
}
