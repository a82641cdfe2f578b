package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"taskloop/internal/config"
	"taskloop/internal/executor"
	"taskloop/internal/ralph"
)

// NewPlanCommand creates the plan command: one agent invocation that breaks
// a goal into backlog tasks via taskloop add.
func NewPlanCommand() *cobra.Command {
	var model string
	var dryRun bool
	var interactive bool

	cmd := &cobra.Command{
		Use:   "plan <description>...",
		Short: "Have the agent break a goal into backlog tasks",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			description := strings.Join(args, " ")

			wd, err := os.Getwd()
			if err != nil {
				return err
			}
			cfg, err := config.Load(wd)
			if err != nil {
				return err
			}

			spec := cfg.Backend
			if model != "" {
				spec.Model = model
			}
			spec.Headless = !interactive
			argv := spec.Argv(ralph.RenderPlanPrompt(description))

			if dryRun {
				fmt.Fprintf(cmd.OutOrStdout(), "would run: %s\n", strings.Join(argv, " "))
				return nil
			}

			var opts []executor.Option
			if interactive {
				opts = append(opts, executor.WithInteractive())
			} else {
				opts = append(opts, executor.WithStdout(cmd.OutOrStdout()))
			}
			res, err := executor.Run(cmd.Context(), wd, argv, opts...)
			if err != nil {
				return err
			}
			if res.ExitCode != 0 {
				if res.Stderr != "" {
					fmt.Fprint(cmd.ErrOrStderr(), res.Stderr)
				}
				return fmt.Errorf("planning agent exited with code %d", res.ExitCode)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Planning complete. Review the backlog with: taskloop list")
			return nil
		},
	}

	cmd.Flags().StringVar(&model, "model", "", "model override passed to the backend")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the agent invocation without executing it")
	cmd.Flags().BoolVar(&interactive, "interactive", false, "converse with the agent on this terminal instead of running it headless")
	return cmd
}
