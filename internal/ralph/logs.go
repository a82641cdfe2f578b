package ralph

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"taskloop/internal/executor"
)

// TaskLogPath returns the log file path for a task id.
func TaskLogPath(logsDir, taskID string) string {
	return filepath.Join(logsDir, taskID+".log")
}

// OpenTaskLog opens (appending, creating lazily) the log file for a task.
// Streamed mode hands this file to the executor as the child's stdout.
func OpenTaskLog(logsDir, taskID string) (*os.File, error) {
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating logs dir: %w", err)
	}
	f, err := os.OpenFile(TaskLogPath(logsDir, taskID), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening task log: %w", err)
	}
	return f, nil
}

// WriteFailureLog records a buffered-mode failure: captured stdout/stderr
// under a timestamped header. Buffered output is only persisted on failure;
// successful runs leave no log.
func WriteFailureLog(logsDir, taskID string, res *executor.Result) error {
	f, err := OpenTaskLog(logsDir, taskID)
	if err != nil {
		return err
	}
	defer f.Close()

	fmt.Fprintf(f, "=== %s failed (exit %d) at %s ===\n",
		taskID, res.ExitCode, time.Now().UTC().Format(time.RFC3339))
	if res.Stdout != "" {
		fmt.Fprintf(f, "--- stdout ---\n%s\n", res.Stdout)
	}
	if res.Stderr != "" {
		fmt.Fprintf(f, "--- stderr ---\n%s\n", res.Stderr)
	}
	return nil
}
