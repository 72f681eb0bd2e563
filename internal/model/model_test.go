package model

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainError_Is(t *testing.T) {
	wrapped := fmt.Errorf("lookup: %w", ErrTaskNotFound)

	assert.True(t, errors.Is(wrapped, ErrTaskNotFound))
	assert.True(t, errors.Is(wrapped, ErrNotFound))
	assert.False(t, errors.Is(wrapped, ErrUserNotFound))
	assert.False(t, errors.Is(wrapped, ErrValidation))
	assert.True(t, errors.Is(ErrConcurrentUpdate, ErrConflict))

	var de DomainError
	require.True(t, errors.As(wrapped, &de))
	assert.Equal(t, KindNotFound, de.Kind)
	assert.Equal(t, "not_found", de.Kind.String())
}

func TestCreateTaskRequest_Validate(t *testing.T) {
	req := &CreateTaskRequest{
		Username:    "alice",
		Title:       "  Buy milk ",
		Description: "2 litres",
		StartDate:   "2024-01-01",
		Deadline:    "2024-01-02T18:30:00Z",
	}

	in, err := req.Validate()
	require.NoError(t, err)
	assert.Equal(t, "Buy milk", in.Title)
	assert.Equal(t, PriorityMedium, in.Priority)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), in.StartDate)
	assert.Equal(t, time.Date(2024, 1, 2, 18, 30, 0, 0, time.UTC), in.Deadline)
}

func TestParseDate(t *testing.T) {
	valid := []string{"2024-01-01", "2024-01-01T10:00:00+02:00", "2024-01-01T10:00:00.123Z", "2024-01-01T10:00:00"}
	for _, v := range valid {
		_, err := ParseDate(v)
		assert.NoError(t, err, v)
	}

	for _, v := range []string{"", "01/02/2024", "soon"} {
		_, err := ParseDate(v)
		assert.Error(t, err, v)
	}

	got, err := ParseDate("2024-01-01T10:00:00+02:00")
	require.NoError(t, err)
	assert.Equal(t, time.UTC, got.Location())
	assert.Equal(t, 8, got.Hour())
}

func TestUpdateStatusRequest_Validate(t *testing.T) {
	s, err := (&UpdateStatusRequest{Status: " In-Progress "}).Validate()
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, s)

	_, err = (&UpdateStatusRequest{Status: "done"}).Validate()
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestAccount_TaskListOperations(t *testing.T) {
	acc := &Account{Username: "alice"}
	assert.NotNil(t, acc.TaskList())
	assert.Empty(t, acc.TaskList())

	now := time.Now()
	in := &NewTaskInput{Title: "a"}
	acc.AppendTask("1", in, now)
	acc.AppendTask("2", &NewTaskInput{Title: "b", Priority: PriorityLow}, now)
	acc.AppendTask("3", &NewTaskInput{Title: "c"}, now)

	require.Len(t, acc.Tasks, 3)
	assert.Equal(t, PriorityMedium, acc.Tasks[0].Priority)
	assert.Equal(t, PriorityLow, acc.Tasks[1].Priority)

	task, err := acc.SetTaskStatus("2", StatusCompleted, now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, acc.Tasks[1].Status)
	assert.Equal(t, now.Add(time.Minute), task.UpdatedAt)

	_, err = acc.SetTaskStatus("9", StatusCompleted, now)
	assert.ErrorIs(t, err, ErrTaskNotFound)

	assert.False(t, acc.RemoveTask("9"))
	assert.Len(t, acc.Tasks, 3)

	assert.True(t, acc.RemoveTask("2"))
	require.Len(t, acc.Tasks, 2)
	assert.Equal(t, "1", acc.Tasks[0].ID)
	assert.Equal(t, "3", acc.Tasks[1].ID)
}

func TestAccount_Clone(t *testing.T) {
	acc := &Account{Username: "alice", Tasks: []Task{{ID: "1", Status: StatusPending}}}
	c := acc.Clone()
	c.Tasks[0].Status = StatusCompleted

	assert.Equal(t, StatusPending, acc.Tasks[0].Status)
}
