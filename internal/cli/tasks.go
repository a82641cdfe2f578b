package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"taskloop/internal/gitstore"
	"taskloop/internal/task"
)

// openTaskStore binds a task store to the current branch's ref in the
// enclosing repository. Overridden in tests.
var openTaskStore = func() (*task.Store, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	gs := gitstore.New(wd)
	ref, err := gs.TaskRef()
	if err != nil {
		return nil, err
	}
	return task.NewStore(gs, ref), nil
}

// blockedSet returns the ids of pending tasks whose prerequisite is not yet
// completed.
func blockedSet(tasks []task.Task) map[string]bool {
	set := make(map[string]bool)
	for _, t := range task.Blocked(tasks) {
		set[t.ID] = true
	}
	return set
}

// NewAddCommand creates the add command.
func NewAddCommand() *cobra.Command {
	var after string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "add <content>...",
		Short: "Add a task to the backlog",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openTaskStore()
			if err != nil {
				return err
			}
			t, err := store.Add(strings.Join(args, " "), after)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), toView(t))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s: %s\n", t.ID, t.Content)
			return nil
		},
	}
	cmd.Flags().StringVar(&after, "after", "", "prerequisite task id; the new task stays blocked until it completes")
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit the created task as JSON")
	return cmd
}

// NewListCommand creates the list command.
func NewListCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the backlog for the current branch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openTaskStore()
			if err != nil {
				return err
			}
			tasks, err := store.List()
			if err != nil {
				return err
			}
			if asJSON {
				views := make([]taskView, 0, len(tasks))
				for _, t := range tasks {
					views = append(views, toView(t))
				}
				return writeJSON(cmd.OutOrStdout(), views)
			}
			if len(tasks) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No tasks.")
				return nil
			}
			blocked := blockedSet(tasks)
			for _, t := range tasks {
				fmt.Fprintln(cmd.OutOrStdout(), formatTaskLine(t, blocked[t.ID]))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit the task list as JSON")
	return cmd
}

// NewShowCommand creates the show command.
func NewShowCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one task in full",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openTaskStore()
			if err != nil {
				return err
			}
			t, err := store.Get(args[0])
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), toView(t))
			}
			tasks, err := store.List()
			if err != nil {
				return err
			}
			printTaskDetail(cmd.OutOrStdout(), t, blockedSet(tasks)[t.ID])
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit the task as JSON")
	return cmd
}

// NewEditCommand creates the edit command.
func NewEditCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "edit <id> <content>...",
		Short: "Replace a task's content",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openTaskStore()
			if err != nil {
				return err
			}
			t, err := store.Edit(args[0], strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), toView(t))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated %s: %s\n", t.ID, t.Content)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit the updated task as JSON")
	return cmd
}

// NewAppendCommand creates the append command.
func NewAppendCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "append <id> <extra>...",
		Short: "Append text to a task's content",
		Long: `Appends text to a task without replacing what is already there. This is
the safe way for an agent to record partial progress: unlike edit it cannot
erase the original instructions.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openTaskStore()
			if err != nil {
				return err
			}
			t, err := store.Append(args[0], strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), toView(t))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated %s: %s\n", t.ID, t.Content)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit the updated task as JSON")
	return cmd
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Remove a task from the backlog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openTaskStore()
			if err != nil {
				return err
			}
			if err := store.Delete(args[0]); err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), map[string]string{"deleted": args[0]})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit the result as JSON")
	return cmd
}

// NewDoneCommand creates the done command, the completion channel the agent
// is instructed to use.
func NewDoneCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "done <id>",
		Short: "Mark a task completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openTaskStore()
			if err != nil {
				return err
			}
			t, err := store.MarkDone(args[0])
			if errors.Is(err, task.ErrAlreadyDone) {
				// Idempotent for the agent: re-running done on a
				// finished task is a notice, not a failure.
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), toView(t))
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s was already completed\n", t.ID)
				return nil
			}
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), toView(t))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Completed %s: %s\n", t.ID, t.Content)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit the completed task as JSON")
	return cmd
}
