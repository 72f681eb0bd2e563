package model

import (
	"strings"
	"time"
)

// Status is the lifecycle state of a task.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// Priority is the importance of a task.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Task represents a todo item owned by exactly one account.
type Task struct {
	ID          string    `json:"_id" bson:"_id"`
	Title       string    `json:"title" bson:"title"`
	Description string    `json:"description" bson:"description"`
	StartDate   time.Time `json:"startDate" bson:"startDate"`
	Deadline    time.Time `json:"deadline" bson:"deadline"`
	Status      Status    `json:"status" bson:"status"`
	Priority    Priority  `json:"priority" bson:"priority"`
	CreatedAt   time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt" bson:"updatedAt"`
}

// CreateTaskRequest represents the request body for adding a task.
type CreateTaskRequest struct {
	Username    string `json:"username"`
	Title       string `json:"title"`
	Description string `json:"description"`
	StartDate   string `json:"startDate"`
	Deadline    string `json:"deadline"`
	Priority    string `json:"priority,omitempty"`
}

// NewTaskInput is a validated CreateTaskRequest.
type NewTaskInput struct {
	Title       string
	Description string
	StartDate   time.Time
	Deadline    time.Time
	Priority    Priority
}

// Validate checks the request and converts it into a NewTaskInput.
// It never touches storage, so a failure here cannot leave a partial write.
func (r *CreateTaskRequest) Validate() (*NewTaskInput, error) {
	title := strings.TrimSpace(r.Title)
	if strings.TrimSpace(r.Username) == "" || title == "" ||
		strings.TrimSpace(r.StartDate) == "" || strings.TrimSpace(r.Deadline) == "" {
		return nil, ErrRequiredFields
	}

	start, err := ParseDate(r.StartDate)
	if err != nil {
		return nil, ErrInvalidDate
	}
	deadline, err := ParseDate(r.Deadline)
	if err != nil {
		return nil, ErrInvalidDate
	}

	priority := PriorityMedium
	if p := strings.TrimSpace(r.Priority); p != "" {
		priority = Priority(strings.ToLower(p))
		if !priority.Valid() {
			return nil, ErrInvalidPriority
		}
	}

	return &NewTaskInput{
		Title:       title,
		Description: r.Description,
		StartDate:   start,
		Deadline:    deadline,
		Priority:    priority,
	}, nil
}

// UpdateStatusRequest represents the request body for a status transition.
type UpdateStatusRequest struct {
	Status string `json:"status"`
}

// Validate checks that the requested status is known.
func (r *UpdateStatusRequest) Validate() (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(r.Status)))
	if !s.Valid() {
		return "", ErrInvalidStatus
	}
	return s, nil
}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
}

// ParseDate accepts a calendar date or an RFC 3339 timestamp and returns it in UTC.
func ParseDate(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	var lastErr error
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, v)
		if err == nil {
			return t.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
