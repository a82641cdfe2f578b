// Package ralph implements the supervisory loop that drives an external AI
// agent through the task backlog.
package ralph

import (
	"fmt"
	"strings"
	"time"
)

// FailureLimit is the circuit breaker threshold: a task that fails this many
// consecutive times is retired for the rest of the run.
const FailureLimit = 3

// StopReason indicates why the loop terminated.
type StopReason int

const (
	StopNormal     StopReason = iota // backlog empty, nothing left to do
	StopAllRetired                   // remaining tasks exceeded the failure threshold or are blocked
	StopOnce                         // --once: exactly one dispatch
	StopMaxTasks                     // --max-tasks completions reached
	StopCancelled                    // context cancelled (e.g. SIGINT)
)

// String returns a human-readable label for the stop reason.
func (r StopReason) String() string {
	switch r {
	case StopNormal:
		return "normal"
	case StopAllRetired:
		return "all-retired"
	case StopOnce:
		return "once"
	case StopMaxTasks:
		return "max-tasks"
	case StopCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// ExitCode maps the stop reason onto a process exit code. Every bounded stop
// is a normal termination; only cancellation is distinct.
func (r StopReason) ExitCode() int {
	switch r {
	case StopNormal, StopAllRetired, StopOnce, StopMaxTasks:
		return 0
	case StopCancelled:
		return 5
	default:
		return 1
	}
}

// Summary holds aggregate results across all iterations of one run.
type Summary struct {
	Dispatched int // agent invocations, including dry-run synthesis
	Succeeded  int // exit 0
	Failed     int // non-zero exit or spawn failure
	Retired    int // tasks that tripped the circuit breaker
	Remaining  int // pending tasks left when the loop stopped
	StopReason StopReason
	Duration   time.Duration
}

// formatDuration renders a duration compactly (e.g. "2m34s", "1h12m").
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%dm", h, m)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}

// formatTaskLog renders a per-dispatch log line.
func formatTaskLog(id, content, status string, duration time.Duration) string {
	return fmt.Sprintf("[%s] %q → %s (%s)", id, truncate(content, 60), status, formatDuration(duration))
}

// truncate shortens s to at most n runes, appending an ellipsis.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}

// formatSummary renders the end-of-run summary block.
func formatSummary(s *Summary) string {
	lines := make([]string, 0, 7)
	lines = append(lines, "Ralph loop complete:")

	if s.Succeeded > 0 {
		lines = append(lines, fmt.Sprintf("  ✓ %d task(s) succeeded", s.Succeeded))
	}
	if s.Failed > 0 {
		lines = append(lines, fmt.Sprintf("  ✗ %d failure(s)", s.Failed))
	}
	if s.Retired > 0 {
		lines = append(lines, fmt.Sprintf("  ⊘ %d task(s) retired after %d consecutive failures", s.Retired, FailureLimit))
	}
	if s.Remaining > 0 {
		lines = append(lines, fmt.Sprintf("  ○ %d task(s) remaining", s.Remaining))
	}
	lines = append(lines, fmt.Sprintf("  Stop: %s", s.StopReason))
	lines = append(lines, fmt.Sprintf("  Duration: %s", formatDuration(s.Duration)))

	return strings.Join(lines, "\n")
}
