// Package cli wires the taskloop command tree: the agent loop commands (run,
// plan) and the task CRUD surface the agent itself calls back into.
package cli

import (
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

const version = "0.1.0"

// NewRootCommand builds the taskloop command tree.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "taskloop",
		Short: "Git-backed task backlog driven by an AI coding agent",
		Long: `Taskloop keeps a per-branch task backlog inside the repository's git
object store and runs an AI coding agent in a loop until the backlog is done.

The agent reports back through the same CLI: it marks tasks complete with
"taskloop done", records follow-up work with "taskloop add", and annotates
progress with "taskloop append".`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			color.NoColor = !isatty.IsTerminal(os.Stdout.Fd())
		},
	}

	root.AddCommand(
		NewRunCommand(),
		NewPlanCommand(),
		NewAddCommand(),
		NewListCommand(),
		NewShowCommand(),
		NewEditCommand(),
		NewAppendCommand(),
		NewDeleteCommand(),
		NewDoneCommand(),
	)
	return root
}
