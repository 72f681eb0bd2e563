package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/hiroki-koketsu/go-task-tracker/internal/client"
	"github.com/spf13/cobra"
)

var errNotLoggedIn = errors.New("not logged in; run `taskctl login` first")

// app carries the state shared by every subcommand of one invocation.
type app struct {
	apiURL      string
	sessionPath string

	session *client.Session
	api     *client.Client
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "taskctl",
		Short:         "Manage your task list from the terminal",
		Long:          `taskctl talks to a task tracker server. The signed-in session is saved locally and restored on every launch.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
	}

	root.PersistentFlags().StringVar(&a.apiURL, "api", envOr("TASKCTL_API", "http://localhost:8080/api"), "Base URL of the task tracker API")
	root.PersistentFlags().StringVar(&a.sessionPath, "session", os.Getenv("TASKCTL_SESSION"), "Session file (default ~/.config/tasktracker/session.json)")

	root.AddCommand(
		a.registerCmd(),
		a.loginCmd(),
		a.logoutCmd(),
		a.whoamiCmd(),
		a.addCmd(),
		a.listCmd(),
		a.completeCmd(),
		a.statusCmd(),
		a.deleteCmd(),
	)
	return root
}

// init hydrates the saved session and builds the API client.
func (a *app) init() error {
	path := a.sessionPath
	if path == "" {
		p, err := client.DefaultSessionPath()
		if err != nil {
			return fmt.Errorf("failed to locate session file: %w", err)
		}
		path = p
	}

	a.session = client.NewSession(client.NewFileStore(path))
	if err := a.session.Init(); err != nil {
		return fmt.Errorf("failed to restore session: %w", err)
	}
	a.api = client.New(a.apiURL, client.WithSession(a.session))
	return nil
}

// username returns the signed-in user's name.
func (a *app) username() (string, error) {
	user := a.session.User()
	if user == nil {
		return "", errNotLoggedIn
	}
	return user.Username, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
