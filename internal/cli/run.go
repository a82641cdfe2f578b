package cli

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"taskloop/internal/config"
	"taskloop/internal/executor"
	"taskloop/internal/ralph"
	"taskloop/internal/trace"
)

// exitCodeError carries a specific process exit code through cobra's error
// return. Main unwraps it.
type exitCodeError struct {
	code int
}

func (e exitCodeError) Error() string { return fmt.Sprintf("exit code %d", e.code) }

// ExitCode returns the process exit code the error requests.
func (e exitCodeError) ExitCode() int { return e.code }

const (
	outputText       = "text"
	outputStreamJSON = "stream-json"
)

// NewRunCommand creates the run command: the supervisory loop over the ready
// backlog.
func NewRunCommand() *cobra.Command {
	var (
		model        string
		once         bool
		dryRun       bool
		delaySecs    int
		maxTasks     int
		parallel     int
		taskTimeout  time.Duration
		outputFormat string
	)

	cmd := &cobra.Command{
		Use:   "run [executor]",
		Short: "Run the agent loop until the backlog is done",
		Long: `Runs the agent in a loop: select a ready task, dispatch the agent with it,
score the exit, repeat. A task that fails three times in a row is retired for
the rest of the run. The loop stops when no ready tasks remain.

The optional executor argument overrides the backend for this run. A known
backend name (claude, opencode) selects it; anything else is used verbatim
as a custom agent command.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if outputFormat != outputText && outputFormat != outputStreamJSON {
				return fmt.Errorf("invalid --output-format %q (known: %s, %s)",
					outputFormat, outputText, outputStreamJSON)
			}

			wd, err := os.Getwd()
			if err != nil {
				return err
			}
			cfg, err := config.Load(wd)
			if err != nil {
				return err
			}
			backend := cfg.Backend
			if len(args) == 1 {
				backend, err = resolvePositionalExecutor(args[0])
				if err != nil {
					return err
				}
			}

			store, err := openTaskStore()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			shutdown, err := trace.Setup(ctx)
			if err != nil {
				return err
			}
			defer shutdown(ctx)

			summary, err := ralph.Run(ctx, ralph.Config{
				WorkDir:     cfg.WorkDir,
				Backend:     backend,
				Model:       model,
				Streamed:    outputFormat == outputStreamJSON,
				LogsDir:     cfg.LogsDir(),
				Once:        once,
				DryRun:      dryRun,
				Delay:       time.Duration(delaySecs) * time.Second,
				MaxTasks:    maxTasks,
				Parallel:    parallel,
				TaskTimeout: taskTimeout,
				Output:      cmd.OutOrStdout(),
				LoadTasks:   store.List,
			})
			if err != nil {
				return err
			}
			if code := summary.StopReason.ExitCode(); code != 0 {
				return exitCodeError{code: code}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&model, "model", "", "model override passed to the backend")
	cmd.Flags().BoolVar(&once, "once", false, "dispatch exactly one task, then stop")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print agent invocations without executing them")
	cmd.Flags().IntVar(&delaySecs, "delay", 0, "seconds to wait between iterations")
	cmd.Flags().IntVar(&maxTasks, "max-tasks", 0, "stop after this many successful completions (0 = unlimited)")
	cmd.Flags().IntVar(&parallel, "parallel", 1, "maximum concurrent agent processes")
	cmd.Flags().DurationVar(&taskTimeout, "task-timeout", 0, "per-task execution limit (0 = none; a hung agent blocks its slot)")
	cmd.Flags().StringVar(&outputFormat, "output-format", outputText,
		"agent output handling: text buffers and keeps failures, stream-json streams to per-task logs")
	return cmd
}

// resolvePositionalExecutor maps the optional run/plan argument onto a
// backend. Known names resolve normally; an unrecognized name is taken
// verbatim as a custom agent command rather than rejected.
func resolvePositionalExecutor(name string) (executor.Spec, error) {
	spec, err := executor.Resolve(name, "")
	if err == nil {
		return spec, nil
	}
	if errors.Is(err, executor.ErrInvalidExecutor) {
		return executor.Resolve("", name)
	}
	return executor.Spec{}, err
}
