package main

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/hiroki-koketsu/go-task-tracker/internal/auth"
	"github.com/hiroki-koketsu/go-task-tracker/internal/client"
	"github.com/hiroki-koketsu/go-task-tracker/internal/handler"
	"github.com/hiroki-koketsu/go-task-tracker/internal/model"
	"github.com/hiroki-koketsu/go-task-tracker/internal/repository"
	"github.com/hiroki-koketsu/go-task-tracker/internal/service"
	"github.com/hiroki-koketsu/go-task-tracker/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
)

var taskIDPattern = regexp.MustCompile(`Task created: (\S+)`)

// setupWorkspace starts an API server and returns the flags that point
// taskctl at it with a private session file.
func setupWorkspace(t *testing.T) []string {
	t.Helper()

	repo := repository.NewMemoryAccountRepository()
	tokens := auth.NewTokenManager(auth.TokenConfig{SecretKey: "test-secret", TTL: time.Hour, Issuer: "test"})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics, err := telemetry.NewMetrics(noop.NewMeterProvider().Meter("test"), repo.Count)
	require.NoError(t, err)

	router := handler.NewRouter(
		handler.NewAuthHandler(service.NewAccountService(repo, auth.NewPasswordHasher(4), tokens), tokens, logger, metrics),
		handler.NewTaskHandler(service.NewTaskService(repo), tokens, logger, metrics),
	)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return []string{"--api", srv.URL + "/api", "--session", filepath.Join(t.TempDir(), "session.json")}
}

// run executes one taskctl invocation, as a fresh process would.
func run(t *testing.T, flags []string, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append(args, flags...))
	err := cmd.Execute()
	return out.String(), err
}

func TestWorkflow(t *testing.T) {
	flags := setupWorkspace(t)

	out, err := run(t, flags, "register", "-u", "alice", "-e", "alice@x.com", "-p", "secret1")
	require.NoError(t, err)
	assert.Contains(t, out, "signed in as alice")

	out, err = run(t, flags, "whoami")
	require.NoError(t, err)
	assert.Equal(t, "alice <alice@x.com>\n", out)

	out, err = run(t, flags, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No tasks found.")

	out, err = run(t, flags, "add", "-t", "Buy milk", "-s", "2024-01-01", "-D", "2024-01-02")
	require.NoError(t, err)
	m := taskIDPattern.FindStringSubmatch(out)
	require.Len(t, m, 2)
	taskID := m[1]

	out, err = run(t, flags, "add", "-t", "Write report", "-d", "quarterly", "-s", "2024-01-03", "-D", "2024-01-10", "-p", "high")
	require.NoError(t, err)
	assert.Contains(t, out, "Write report")

	out, err = run(t, flags, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "○ ["+taskID+"] Buy milk (medium, due 2024-01-02)")
	assert.Contains(t, out, "Write report (high, due 2024-01-10)")
	assert.Contains(t, out, "   quarterly")

	out, err = run(t, flags, "complete", taskID)
	require.NoError(t, err)
	assert.Contains(t, out, "Task completed: "+taskID)

	out, err = run(t, flags, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ ["+taskID+"] Buy milk")

	out, err = run(t, flags, "status", taskID, "in-progress")
	require.NoError(t, err)
	assert.Contains(t, out, "is now in-progress")

	out, err = run(t, flags, "delete", taskID)
	require.NoError(t, err)
	assert.Contains(t, out, "(1 remaining)")

	out, err = run(t, flags, "list")
	require.NoError(t, err)
	assert.NotContains(t, out, taskID)

	_, err = run(t, flags, "logout")
	require.NoError(t, err)

	_, err = run(t, flags, "list")
	assert.ErrorIs(t, err, errNotLoggedIn)

	out, err = run(t, flags, "login", "-e", "alice@x.com", "-p", "secret1")
	require.NoError(t, err)
	assert.Contains(t, out, "Signed in as alice")

	out, err = run(t, flags, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Write report")
}

func TestErrors(t *testing.T) {
	flags := setupWorkspace(t)

	_, err := run(t, flags, "whoami")
	assert.ErrorIs(t, err, errNotLoggedIn)

	_, err = run(t, flags, "login", "-e", "nobody@x.com", "-p", "secret1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid credentials")

	_, err = run(t, flags, "register", "-u", "bob", "-e", "bob@x.com", "-p", "123")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least 6 characters")

	_, err = run(t, flags, "register", "-u", "bob", "-e", "bob@x.com", "-p", "secret1")
	require.NoError(t, err)

	_, err = run(t, flags, "add", "-t", "Bad dates", "-s", "soon", "-D", "2024-01-02")
	require.Error(t, err)

	_, err = run(t, flags, "complete", "missing-id")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Task not found")

	_, err = run(t, flags, "status", "missing-id")
	require.Error(t, err)

	_, err = run(t, flags, "add", "-t", "No dates")
	require.Error(t, err)
}

func TestAdd_EmptyTaskListResponse(t *testing.T) {
	// Something other than the task API answering with 201 and an empty object.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{}`))
	}))
	t.Cleanup(srv.Close)

	sessionPath := filepath.Join(t.TempDir(), "session.json")
	session := client.NewSession(client.NewFileStore(sessionPath))
	require.NoError(t, session.Save(&service.AuthResult{
		Token: "token",
		User:  model.AccountSummary{Username: "alice", Email: "alice@x.com"},
	}))

	flags := []string{"--api", srv.URL + "/api", "--session", sessionPath}
	var out string
	var err error
	require.NotPanics(t, func() {
		out, err = run(t, flags, "add", "-t", "Buy milk", "-s", "2024-01-01", "-D", "2024-01-02")
	})
	assert.ErrorIs(t, err, errEmptyTaskList)
	assert.NotContains(t, out, "Task created")
}
