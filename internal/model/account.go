package model

import (
	"time"
)

// Account is the aggregate root for one user: identity, credential and the
// embedded, ordered task list.
type Account struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	ProfileImage string    `json:"profileImage"`
	Tasks        []Task    `json:"tasks"`
	Version      int64     `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// AccountSummary is the public view of an account.
type AccountSummary struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	ProfileImage string    `json:"profileImage"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Summary returns the public view of the account.
func (a *Account) Summary() AccountSummary {
	return AccountSummary{
		ID:           a.ID,
		Username:     a.Username,
		Email:        a.Email,
		ProfileImage: a.ProfileImage,
		CreatedAt:    a.CreatedAt,
	}
}

// Clone returns a deep copy so stores never share task slices with callers.
func (a *Account) Clone() *Account {
	c := *a
	c.Tasks = make([]Task, len(a.Tasks))
	copy(c.Tasks, a.Tasks)
	return &c
}

// TaskList returns the tasks in stored order. It is never nil.
func (a *Account) TaskList() []Task {
	if a.Tasks == nil {
		return []Task{}
	}
	return a.Tasks
}

// AppendTask adds a pending task to the end of the list and returns it.
func (a *Account) AppendTask(id string, in *NewTaskInput, now time.Time) Task {
	priority := in.Priority
	if priority == "" {
		priority = PriorityMedium
	}
	t := Task{
		ID:          id,
		Title:       in.Title,
		Description: in.Description,
		StartDate:   in.StartDate,
		Deadline:    in.Deadline,
		Status:      StatusPending,
		Priority:    priority,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	a.Tasks = append(a.Tasks, t)
	return t
}

// FindTask returns a pointer into the list for the task with the given id.
func (a *Account) FindTask(id string) (*Task, bool) {
	for i := range a.Tasks {
		if a.Tasks[i].ID == id {
			return &a.Tasks[i], true
		}
	}
	return nil, false
}

// SetTaskStatus moves a task to status. Setting the current status again is
// allowed and only refreshes UpdatedAt.
func (a *Account) SetTaskStatus(id string, status Status, now time.Time) (*Task, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}
	t, ok := a.FindTask(id)
	if !ok {
		return nil, ErrTaskNotFound
	}
	t.Status = status
	t.UpdatedAt = now
	return t, nil
}

// RemoveTask drops every task whose id matches and reports whether one was
// removed. An unknown id leaves the list as it was.
func (a *Account) RemoveTask(id string) bool {
	kept := a.Tasks[:0]
	removed := false
	for _, t := range a.Tasks {
		if t.ID == id {
			removed = true
			continue
		}
		kept = append(kept, t)
	}
	a.Tasks = kept
	return removed
}
