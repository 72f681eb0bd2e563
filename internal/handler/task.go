package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hiroki-koketsu/go-task-tracker/internal/model"
	"github.com/hiroki-koketsu/go-task-tracker/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// TaskManager is the task-list behaviour the handler needs.
type TaskManager interface {
	AddTask(ctx context.Context, req *model.CreateTaskRequest) ([]model.Task, error)
	ListTasks(ctx context.Context, username string) ([]model.Task, error)
	CompleteTask(ctx context.Context, username, taskID string) (*model.Task, error)
	UpdateTaskStatus(ctx context.Context, username, taskID string, status model.Status) (*model.Task, error)
	DeleteTask(ctx context.Context, username, taskID string) ([]model.Task, error)
}

// TasksResponse is returned by operations that change the list.
type TasksResponse struct {
	Message string       `json:"message"`
	Tasks   []model.Task `json:"tasks"`
}

// TaskResponse is returned by operations that change one task.
type TaskResponse struct {
	Message string      `json:"message"`
	Task    *model.Task `json:"task"`
}

// TaskHandler handles HTTP requests for tasks.
type TaskHandler struct {
	base
	tasks     TaskManager
	tokens    TokenValidator
	checkUser bool
}

// NewTaskHandler creates a new TaskHandler. A non-nil tokens validator makes
// every route require a bearer token issued to the addressed username.
func NewTaskHandler(tasks TaskManager, tokens TokenValidator, logger *slog.Logger, metrics *telemetry.Metrics) *TaskHandler {
	return &TaskHandler{
		base:      base{logger: logger, metrics: metrics},
		tasks:     tasks,
		tokens:    tokens,
		checkUser: tokens != nil,
	}
}

// Routes returns the chi router with task routes.
func (h *TaskHandler) Routes() chi.Router {
	r := chi.NewRouter()

	if h.checkUser {
		r.Use(RequireToken(h.tokens))
	}

	r.Post("/", h.Add)
	r.Get("/{username}", h.List)
	r.Patch("/{username}/{taskId}/complete", h.Complete)
	r.Patch("/{username}/{taskId}/status", h.UpdateStatus)
	r.Delete("/{username}/{taskId}", h.Delete)

	return r
}

// ownsList reports whether the caller may touch username's tasks.
func (h *TaskHandler) ownsList(ctx context.Context, w http.ResponseWriter, username string) bool {
	if !h.checkUser {
		return true
	}
	claims, ok := ClaimsFromContext(ctx)
	if !ok || claims.Username != username {
		h.logger.WarnContext(ctx, "token does not belong to addressed user", slog.String("username", username))
		h.respondError(w, http.StatusForbidden, "Token does not grant access to this user's tasks")
		return false
	}
	return true
}

// Add appends a task to a user's list.
func (h *TaskHandler) Add(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	const route = "/api/tasks"

	ctx, span := tracer.Start(ctx, "TaskHandler.Add")
	defer span.End()

	var req model.CreateTaskRequest
	if err := h.decode(w, r, &req); err != nil {
		h.logger.WarnContext(ctx, "invalid request body", slog.Any("error", err))
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		h.recordMetrics(ctx, http.MethodPost, route, http.StatusBadRequest, start)
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	span.SetAttributes(attribute.String("account.username", req.Username))

	if req.Username != "" && !h.ownsList(ctx, w, req.Username) {
		h.recordMetrics(ctx, http.MethodPost, route, http.StatusForbidden, start)
		return
	}

	h.logger.InfoContext(ctx, "adding task", slog.String("username", req.Username), slog.String("title", req.Title))

	tasks, err := h.tasks.AddTask(ctx, &req)
	h.metrics.RecordTaskOperation(ctx, "add", err == nil)
	if err != nil {
		status := h.fail(ctx, w, span, err, "Failed to add task")
		h.recordMetrics(ctx, http.MethodPost, route, status, start)
		return
	}

	span.SetAttributes(attribute.Int("task.count", len(tasks)))
	h.logger.InfoContext(ctx, "task added", slog.String("username", req.Username), slog.Int("count", len(tasks)))

	h.respondJSON(w, http.StatusCreated, TasksResponse{Message: "Task added successfully", Tasks: tasks})
	h.recordMetrics(ctx, http.MethodPost, route, http.StatusCreated, start)
}

// List returns all tasks of a user in insertion order.
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	const route = "/api/tasks/{username}"
	username := chi.URLParam(r, "username")

	ctx, span := tracer.Start(ctx, "TaskHandler.List",
		trace.WithAttributes(attribute.String("account.username", username)),
	)
	defer span.End()

	if !h.ownsList(ctx, w, username) {
		h.recordMetrics(ctx, http.MethodGet, route, http.StatusForbidden, start)
		return
	}

	tasks, err := h.tasks.ListTasks(ctx, username)
	if err != nil {
		status := h.fail(ctx, w, span, err, "Failed to fetch tasks")
		h.recordMetrics(ctx, http.MethodGet, route, status, start)
		return
	}

	span.SetAttributes(attribute.Int("task.count", len(tasks)))
	h.logger.InfoContext(ctx, "tasks listed", slog.String("username", username), slog.Int("count", len(tasks)))

	h.respondJSON(w, http.StatusOK, tasks)
	h.recordMetrics(ctx, http.MethodGet, route, http.StatusOK, start)
}

// Complete marks a task as completed.
func (h *TaskHandler) Complete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	const route = "/api/tasks/{username}/{taskId}/complete"
	username := chi.URLParam(r, "username")
	taskID := chi.URLParam(r, "taskId")

	ctx, span := tracer.Start(ctx, "TaskHandler.Complete",
		trace.WithAttributes(
			attribute.String("account.username", username),
			attribute.String("task.id", taskID),
		),
	)
	defer span.End()

	if !h.ownsList(ctx, w, username) {
		h.recordMetrics(ctx, http.MethodPatch, route, http.StatusForbidden, start)
		return
	}

	task, err := h.tasks.CompleteTask(ctx, username, taskID)
	h.metrics.RecordTaskOperation(ctx, "complete", err == nil)
	if err != nil {
		status := h.fail(ctx, w, span, err, "Failed to update task")
		h.recordMetrics(ctx, http.MethodPatch, route, status, start)
		return
	}

	h.logger.InfoContext(ctx, "task completed", slog.String("username", username), slog.String("id", taskID))

	h.respondJSON(w, http.StatusOK, TaskResponse{Message: "Task marked as completed", Task: task})
	h.recordMetrics(ctx, http.MethodPatch, route, http.StatusOK, start)
}

// UpdateStatus moves a task to the status named in the body.
func (h *TaskHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	const route = "/api/tasks/{username}/{taskId}/status"
	username := chi.URLParam(r, "username")
	taskID := chi.URLParam(r, "taskId")

	ctx, span := tracer.Start(ctx, "TaskHandler.UpdateStatus",
		trace.WithAttributes(
			attribute.String("account.username", username),
			attribute.String("task.id", taskID),
		),
	)
	defer span.End()

	if !h.ownsList(ctx, w, username) {
		h.recordMetrics(ctx, http.MethodPatch, route, http.StatusForbidden, start)
		return
	}

	var req model.UpdateStatusRequest
	if err := h.decode(w, r, &req); err != nil {
		h.logger.WarnContext(ctx, "invalid request body", slog.Any("error", err))
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		h.recordMetrics(ctx, http.MethodPatch, route, http.StatusBadRequest, start)
		return
	}

	status, err := req.Validate()
	if err == nil {
		var task *model.Task
		task, err = h.tasks.UpdateTaskStatus(ctx, username, taskID, status)
		if err == nil {
			h.metrics.RecordTaskOperation(ctx, "status", true)
			h.logger.InfoContext(ctx, "task status updated",
				slog.String("username", username), slog.String("id", taskID), slog.String("status", string(status)))
			h.respondJSON(w, http.StatusOK, TaskResponse{Message: "Task status updated", Task: task})
			h.recordMetrics(ctx, http.MethodPatch, route, http.StatusOK, start)
			return
		}
	}

	h.metrics.RecordTaskOperation(ctx, "status", false)
	code := h.fail(ctx, w, span, err, "Failed to update task")
	h.recordMetrics(ctx, http.MethodPatch, route, code, start)
}

// Delete removes a task and returns the remaining list.
func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	const route = "/api/tasks/{username}/{taskId}"
	username := chi.URLParam(r, "username")
	taskID := chi.URLParam(r, "taskId")

	ctx, span := tracer.Start(ctx, "TaskHandler.Delete",
		trace.WithAttributes(
			attribute.String("account.username", username),
			attribute.String("task.id", taskID),
		),
	)
	defer span.End()

	if !h.ownsList(ctx, w, username) {
		h.recordMetrics(ctx, http.MethodDelete, route, http.StatusForbidden, start)
		return
	}

	tasks, err := h.tasks.DeleteTask(ctx, username, taskID)
	h.metrics.RecordTaskOperation(ctx, "delete", err == nil)
	if err != nil {
		status := h.fail(ctx, w, span, err, "Failed to delete task")
		h.recordMetrics(ctx, http.MethodDelete, route, status, start)
		return
	}

	h.logger.InfoContext(ctx, "task deleted", slog.String("username", username), slog.String("id", taskID))

	h.respondJSON(w, http.StatusOK, TasksResponse{Message: "Task deleted successfully", Tasks: tasks})
	h.recordMetrics(ctx, http.MethodDelete, route, http.StatusOK, start)
}
