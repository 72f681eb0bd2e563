package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/hiroki-koketsu/go-task-tracker/internal/model"
	"github.com/spf13/cobra"
)

var errEmptyTaskList = errors.New("server accepted the task but returned no task list; check --api")

func (a *app) addCmd() *cobra.Command {
	var req model.CreateTaskRequest

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a task to your list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			username, err := a.username()
			if err != nil {
				return err
			}
			req.Username = username

			tasks, err := a.api.AddTask(cmd.Context(), &req)
			if err != nil {
				return err
			}
			if len(tasks) == 0 {
				return errEmptyTaskList
			}
			added := tasks[len(tasks)-1]
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Task created: %s\n", added.ID)
			fmt.Fprintf(cmd.OutOrStdout(), "  Title: %s\n", added.Title)
			return nil
		},
	}

	cmd.Flags().StringVarP(&req.Title, "title", "t", "", "Task title (required)")
	cmd.Flags().StringVarP(&req.Description, "description", "d", "", "Task description")
	cmd.Flags().StringVarP(&req.StartDate, "start", "s", "", "Start date, YYYY-MM-DD (required)")
	cmd.Flags().StringVarP(&req.Deadline, "deadline", "D", "", "Deadline, YYYY-MM-DD (required)")
	cmd.Flags().StringVarP(&req.Priority, "priority", "p", "", "low, medium or high (default medium)")
	mustMarkRequired(cmd, "title", "start", "deadline")
	return cmd
}

func (a *app) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List your tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			username, err := a.username()
			if err != nil {
				return err
			}
			tasks, err := a.api.ListTasks(cmd.Context(), username)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(tasks) == 0 {
				fmt.Fprintln(out, "No tasks found.")
				return nil
			}
			for i := range tasks {
				printTask(out, &tasks[i])
			}
			return nil
		},
	}
}

func (a *app) completeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "complete <task-id>",
		Short: "Mark a task as completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			username, err := a.username()
			if err != nil {
				return err
			}
			task, err := a.api.CompleteTask(cmd.Context(), username, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Task completed: %s\n", task.ID)
			fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", task.Title)
			return nil
		},
	}
}

func (a *app) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <task-id> <pending|in-progress|completed>",
		Short: "Set a task's status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			username, err := a.username()
			if err != nil {
				return err
			}
			task, err := a.api.UpdateTaskStatus(cmd.Context(), username, args[0], model.Status(args[1]))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Task %s is now %s\n", task.ID, task.Status)
			return nil
		},
	}
}

func (a *app) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <task-id>",
		Short: "Delete a task permanently",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			username, err := a.username()
			if err != nil {
				return err
			}
			tasks, err := a.api.DeleteTask(cmd.Context(), username, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Task deleted: %s (%d remaining)\n", args[0], len(tasks))
			return nil
		},
	}
}

func printTask(w io.Writer, task *model.Task) {
	icon := "○"
	switch task.Status {
	case model.StatusCompleted:
		icon = "✓"
	case model.StatusInProgress:
		icon = "→"
	}

	fmt.Fprintf(w, "%s [%s] %s (%s, due %s)\n", icon, task.ID, task.Title, task.Priority, task.Deadline.Format("2006-01-02"))
	if task.Description != "" {
		fmt.Fprintf(w, "   %s\n", task.Description)
	}
}
