// Package task owns the serialized task list for a branch: the Task record
// model, the versioned on-disk codec, CRUD operations over the git object
// store, and the ready/blocked dependency resolver.
package task

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Status is the lifecycle state of a task.
type Status string

const (
	// StatusPending marks a task that has not been completed.
	StatusPending Status = "pending"
	// StatusCompleted marks a task that the agent reported done.
	StatusCompleted Status = "completed"
)

// IDPrefix prefixes every generated task id.
const IDPrefix = "task-"

// Task is one unit of agent-assigned work.
type Task struct {
	// ID is stable and sequential: "task-001", "task-002", ...
	ID string
	// Content is the task description handed to the agent.
	Content string
	// Status is pending or completed.
	Status Status
	// Created is when the task was added.
	Created time.Time
	// Completed is set exactly once, on the pending→completed transition.
	// Zero while pending.
	Completed time.Time
	// After optionally names a prerequisite task id. A target that does
	// not exist is tolerated: the task stays blocked rather than erroring.
	After string
}

// Done reports whether the task is completed.
func (t Task) Done() bool { return t.Status == StatusCompleted }

// List is the ordered task collection for one branch plus the id counter.
// It is the sole mutable aggregate: loaded fresh from the object store each
// invocation, mutated in memory, written back as one new blob.
type List struct {
	Tasks  []Task
	NextID int
}

// NewList returns an empty list with the counter at 1.
func NewList() *List {
	return &List{NextID: 1}
}

// FormatID renders a counter value as a task id.
func FormatID(n int) string {
	return fmt.Sprintf("%s%03d", IDPrefix, n)
}

// ParseIDNumber extracts the numeric part of a task id. Returns 0 and false
// for ids that do not follow the task-NNN shape.
func ParseIDNumber(id string) (int, bool) {
	rest, ok := strings.CutPrefix(id, IDPrefix)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// Find returns a pointer to the task with the given id, or nil.
func (l *List) Find(id string) *Task {
	for i := range l.Tasks {
		if l.Tasks[i].ID == id {
			return &l.Tasks[i]
		}
	}
	return nil
}

// Dependents returns the ids of tasks whose After targets id.
func (l *List) Dependents(id string) []string {
	var deps []string
	for _, t := range l.Tasks {
		if t.After == id {
			deps = append(deps, t.ID)
		}
	}
	return deps
}

// allocateID hands out the next sequential id and advances the counter.
func (l *List) allocateID() string {
	id := FormatID(l.NextID)
	l.NextID++
	return id
}
