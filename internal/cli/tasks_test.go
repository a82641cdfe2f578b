package cli

import (
	"bytes"
	"crypto/sha1"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskloop/internal/gitstore"
	"taskloop/internal/task"
)

// memObjects is an in-memory ObjectStore standing in for the git adapter.
type memObjects struct {
	blobs map[gitstore.BlobID][]byte
	refs  map[string]gitstore.BlobID
}

func newMemObjects() *memObjects {
	return &memObjects{
		blobs: make(map[gitstore.BlobID][]byte),
		refs:  make(map[string]gitstore.BlobID),
	}
}

func (m *memObjects) WriteBlob(data []byte) (gitstore.BlobID, error) {
	id := gitstore.BlobID(fmt.Sprintf("%x", sha1.Sum(data)))
	m.blobs[id] = append([]byte(nil), data...)
	return id, nil
}

func (m *memObjects) ReadRef(ref string) ([]byte, bool, error) {
	id, ok := m.refs[ref]
	if !ok {
		return nil, false, nil
	}
	return m.blobs[id], true, nil
}

func (m *memObjects) UpdateRef(ref string, id gitstore.BlobID) error {
	m.refs[ref] = id
	return nil
}

// runCommand executes the full command tree against an in-memory store and
// returns stdout.
func runCommand(t *testing.T, store *task.Store, args ...string) (string, error) {
	t.Helper()

	orig := openTaskStore
	openTaskStore = func() (*task.Store, error) { return store, nil }
	t.Cleanup(func() { openTaskStore = orig })

	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func newTestStore(t *testing.T) *task.Store {
	t.Helper()
	return task.NewStore(newMemObjects(), "refs/taskloop/main")
}

func TestAddAndList(t *testing.T) {
	store := newTestStore(t)

	out, err := runCommand(t, store, "add", "write", "the", "parser")
	require.NoError(t, err)
	assert.Contains(t, out, "Added task-001: write the parser")

	out, err = runCommand(t, store, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "task-001")
	assert.Contains(t, out, "write the parser")
	assert.Contains(t, out, "ready")
}

func TestListEmptyBacklog(t *testing.T) {
	out, err := runCommand(t, newTestStore(t), "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No tasks.")
}

func TestListShowsBlockedState(t *testing.T) {
	store := newTestStore(t)
	_, err := runCommand(t, store, "add", "first")
	require.NoError(t, err)
	_, err = runCommand(t, store, "add", "second", "--after", "task-001")
	require.NoError(t, err)

	out, err := runCommand(t, store, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "blocked")
	assert.Contains(t, out, "(after task-001)")

	_, err = runCommand(t, store, "done", "task-001")
	require.NoError(t, err)

	out, err = runCommand(t, store, "list")
	require.NoError(t, err)
	assert.NotContains(t, out, "blocked")
	assert.Contains(t, out, "done")
}

func TestListJSONRoundTrips(t *testing.T) {
	store := newTestStore(t)
	_, err := runCommand(t, store, "add", "machine", "readable")
	require.NoError(t, err)

	out, err := runCommand(t, store, "list", "--json")
	require.NoError(t, err)

	var views []taskView
	require.NoError(t, json.Unmarshal([]byte(out), &views))
	require.Len(t, views, 1)
	assert.Equal(t, "task-001", views[0].ID)
	assert.Equal(t, "machine readable", views[0].Content)
	assert.Equal(t, "pending", views[0].Status)
	assert.Nil(t, views[0].Completed)
}

func TestShowUnknownTaskFails(t *testing.T) {
	_, err := runCommand(t, newTestStore(t), "show", "task-999")
	require.Error(t, err)
	assert.ErrorIs(t, err, task.ErrNotFound)
}

func TestEditReplacesContent(t *testing.T) {
	store := newTestStore(t)
	_, err := runCommand(t, store, "add", "old", "content")
	require.NoError(t, err)

	out, err := runCommand(t, store, "edit", "task-001", "new", "content")
	require.NoError(t, err)
	assert.Contains(t, out, "Updated task-001: new content")
}

func TestAppendPreservesOriginalContent(t *testing.T) {
	store := newTestStore(t)
	_, err := runCommand(t, store, "add", "original")
	require.NoError(t, err)

	out, err := runCommand(t, store, "append", "task-001", "plus", "a", "note")
	require.NoError(t, err)
	assert.Contains(t, out, "Updated task-001: original plus a note")
}

func TestDeleteRefusedWhileDependentsExist(t *testing.T) {
	store := newTestStore(t)
	_, err := runCommand(t, store, "add", "prerequisite")
	require.NoError(t, err)
	_, err = runCommand(t, store, "add", "dependent", "--after", "task-001")
	require.NoError(t, err)

	_, err = runCommand(t, store, "delete", "task-001")
	require.Error(t, err)
	assert.ErrorIs(t, err, task.ErrHasDependents)

	_, err = runCommand(t, store, "delete", "task-002")
	require.NoError(t, err)
	out, err := runCommand(t, store, "delete", "task-001")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted task-001")
}

func TestDoneIsIdempotentAtTheCLI(t *testing.T) {
	store := newTestStore(t)
	_, err := runCommand(t, store, "add", "finish", "me")
	require.NoError(t, err)

	out, err := runCommand(t, store, "done", "task-001")
	require.NoError(t, err)
	assert.Contains(t, out, "Completed task-001")

	out, err = runCommand(t, store, "done", "task-001")
	require.NoError(t, err)
	assert.Contains(t, out, "already completed")
}

func TestDoneJSONIncludesCompletionTime(t *testing.T) {
	store := newTestStore(t)
	_, err := runCommand(t, store, "add", "finish", "me")
	require.NoError(t, err)

	out, err := runCommand(t, store, "done", "task-001", "--json")
	require.NoError(t, err)

	var v taskView
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	assert.Equal(t, "completed", v.Status)
	require.NotNil(t, v.Completed)
	assert.False(t, v.Completed.IsZero())
}

func TestAddEmptyContentFails(t *testing.T) {
	_, err := runCommand(t, newTestStore(t), "add", "   ")
	require.Error(t, err)
	assert.ErrorIs(t, err, task.ErrEmptyContent)
}

func TestUnknownFlagIsAnError(t *testing.T) {
	_, err := runCommand(t, newTestStore(t), "list", "--bogus")
	require.Error(t, err)
}
