package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"

	"taskloop/internal/task"
)

var (
	doneColor    = color.New(color.FgGreen)
	pendingColor = color.New(color.FgCyan)
	blockedColor = color.New(color.FgYellow)
)

// taskView is the machine-readable shape emitted by --json. Completed is
// omitted while the task is pending.
type taskView struct {
	ID        string     `json:"id"`
	Content   string     `json:"content"`
	Status    string     `json:"status"`
	Created   time.Time  `json:"created"`
	Completed *time.Time `json:"completed,omitempty"`
	After     string     `json:"after,omitempty"`
}

func toView(t task.Task) taskView {
	v := taskView{
		ID:      t.ID,
		Content: t.Content,
		Status:  string(t.Status),
		Created: t.Created,
		After:   t.After,
	}
	if !t.Completed.IsZero() {
		c := t.Completed
		v.Completed = &c
	}
	return v
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// formatTaskLine renders one list row. Blocked pending tasks are marked
// distinctly from ready ones so the backlog state is visible at a glance.
func formatTaskLine(t task.Task, blocked bool) string {
	var glyph, label string
	switch {
	case t.Done():
		glyph = doneColor.Sprint("✓")
		label = "done"
	case blocked:
		glyph = blockedColor.Sprint("⊘")
		label = "blocked"
	default:
		glyph = pendingColor.Sprint("○")
		label = "ready"
	}

	line := fmt.Sprintf("%s  %s %-7s  %s", t.ID, glyph, label, t.Content)
	if t.After != "" {
		line += fmt.Sprintf(" (after %s)", t.After)
	}
	return line
}

// printTaskDetail renders the full record for show.
func printTaskDetail(w io.Writer, t task.Task, blocked bool) {
	status := string(t.Status)
	if blocked {
		status += " (blocked)"
	}
	fmt.Fprintf(w, "ID:       %s\n", t.ID)
	fmt.Fprintf(w, "Status:   %s\n", status)
	fmt.Fprintf(w, "Content:  %s\n", t.Content)
	fmt.Fprintf(w, "Created:  %s\n", t.Created.Local().Format(time.RFC3339))
	if t.After != "" {
		fmt.Fprintf(w, "After:    %s\n", t.After)
	}
	if !t.Completed.IsZero() {
		fmt.Fprintf(w, "Completed: %s\n", t.Completed.Local().Format(time.RFC3339))
	}
}
