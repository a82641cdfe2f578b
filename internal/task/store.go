package task

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"taskloop/internal/gitstore"
)

// Sentinel outcomes surfaced by store operations. The CLI boundary
// translates these into messages and exit codes.
var (
	ErrNotFound      = errors.New("task not found")
	ErrAlreadyDone   = errors.New("task already completed")
	ErrHasDependents = errors.New("task has dependents")
	ErrEmptyContent  = errors.New("task content is empty")
)

// ObjectStore is the narrow persistence surface the store needs. The git
// adapter satisfies it; tests use an in-memory fake.
type ObjectStore interface {
	WriteBlob(data []byte) (gitstore.BlobID, error)
	ReadRef(ref string) ([]byte, bool, error)
	UpdateRef(ref string, id gitstore.BlobID) error
}

// Store persists the task list for one branch-scoped ref. Every operation
// loads the list fresh, mutates it, and writes it back immediately; there is
// no cross-invocation cache and no locking. The ref update is the only
// write boundary, and concurrent writers resolve last-write-wins.
type Store struct {
	objects ObjectStore
	ref     string

	// now is the clock; overridden in tests.
	now func() time.Time
}

// NewStore returns a store bound to the given ref.
func NewStore(objects ObjectStore, ref string) *Store {
	return &Store{objects: objects, ref: ref, now: time.Now}
}

// Load reads and decodes the current list. An absent ref yields an empty
// list.
func (s *Store) Load() (*List, error) {
	data, ok, err := s.objects.ReadRef(s.ref)
	if err != nil {
		return nil, fmt.Errorf("loading task list: %w", err)
	}
	if !ok {
		return NewList(), nil
	}
	return Decode(data), nil
}

// Save encodes the list as one new blob and atomically repoints the ref.
func (s *Store) Save(l *List) error {
	data, err := Encode(l)
	if err != nil {
		return fmt.Errorf("saving task list: %w", err)
	}
	id, err := s.objects.WriteBlob(data)
	if err != nil {
		return fmt.Errorf("saving task list: %w", err)
	}
	if err := s.objects.UpdateRef(s.ref, id); err != nil {
		return fmt.Errorf("saving task list: %w", err)
	}
	return nil
}

// Add creates a new pending task. Content tokens are joined with single
// spaces and trimmed; empty content is rejected. The after reference is
// stored even when its target does not exist yet; the resolver reports such
// a task as blocked rather than the store rejecting it.
func (s *Store) Add(content, after string) (Task, error) {
	content = normalizeContent(content)
	if content == "" {
		return Task{}, ErrEmptyContent
	}

	l, err := s.Load()
	if err != nil {
		return Task{}, err
	}

	t := Task{
		ID:      l.allocateID(),
		Content: content,
		Status:  StatusPending,
		Created: s.now().UTC(),
		After:   after,
	}
	l.Tasks = append(l.Tasks, t)

	if err := s.Save(l); err != nil {
		return Task{}, err
	}
	return t, nil
}

// List returns all tasks in insertion order.
func (s *Store) List() ([]Task, error) {
	l, err := s.Load()
	if err != nil {
		return nil, err
	}
	return l.Tasks, nil
}

// Get returns the task with the given id.
func (s *Store) Get(id string) (Task, error) {
	l, err := s.Load()
	if err != nil {
		return Task{}, err
	}
	t := l.Find(id)
	if t == nil {
		return Task{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return *t, nil
}

// Edit replaces the content of a task.
func (s *Store) Edit(id, content string) (Task, error) {
	content = normalizeContent(content)
	if content == "" {
		return Task{}, ErrEmptyContent
	}
	return s.mutate(id, func(t *Task) error {
		t.Content = content
		return nil
	})
}

// Append adds extra text to a task's content. This is the agent-safe
// alternative to Edit: it cannot erase the original instructions.
func (s *Store) Append(id, extra string) (Task, error) {
	extra = normalizeContent(extra)
	if extra == "" {
		return Task{}, ErrEmptyContent
	}
	return s.mutate(id, func(t *Task) error {
		t.Content = t.Content + " " + extra
		return nil
	})
}

// Delete removes a task. Refused with ErrHasDependents while any other
// task's after targets it.
func (s *Store) Delete(id string) error {
	l, err := s.Load()
	if err != nil {
		return err
	}
	idx := -1
	for i := range l.Tasks {
		if l.Tasks[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if deps := l.Dependents(id); len(deps) > 0 {
		return fmt.Errorf("%w: %s is required by %s",
			ErrHasDependents, id, strings.Join(deps, ", "))
	}
	l.Tasks = append(l.Tasks[:idx], l.Tasks[idx+1:]...)
	return s.Save(l)
}

// MarkDone transitions a task to completed and stamps the completion time.
// Idempotent: a second call reports ErrAlreadyDone and leaves the stored
// state untouched.
func (s *Store) MarkDone(id string) (Task, error) {
	return s.mutate(id, func(t *Task) error {
		if t.Status == StatusCompleted {
			return fmt.Errorf("%w: %s", ErrAlreadyDone, id)
		}
		t.Status = StatusCompleted
		t.Completed = s.now().UTC()
		return nil
	})
}

// mutate applies fn to the task with the given id and persists the result.
// When fn returns an error nothing is written.
func (s *Store) mutate(id string, fn func(*Task) error) (Task, error) {
	l, err := s.Load()
	if err != nil {
		return Task{}, err
	}
	t := l.Find(id)
	if t == nil {
		return Task{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err := fn(t); err != nil {
		return *t, err
	}
	if err := s.Save(l); err != nil {
		return Task{}, err
	}
	return *t, nil
}

// normalizeContent collapses whitespace runs to single spaces and trims the
// ends, so multi-token CLI input joins cleanly.
func normalizeContent(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
