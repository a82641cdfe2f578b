// Package gitstore adapts the host repository's content-addressable object
// store into a minimal durable key-value store: immutable blobs addressed by
// hash, plus branch-scoped refs as atomically updatable pointers.
package gitstore

import (
	"bytes"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// RefPrefix is the namespace under which task list pointers live.
const RefPrefix = "refs/taskloop/"

// MaxRefLength caps the full ref name. Git itself tolerates longer names on
// most filesystems, but an over-length branch produces an unusable ref, so it
// is rejected up front rather than truncated.
const MaxRefLength = 200

// ErrBranchNameTooLong is returned when the derived ref name exceeds
// MaxRefLength.
var ErrBranchNameTooLong = errors.New("branch name too long for task ref")

// ErrNoRepository is returned when the working directory is not inside a git
// repository.
var ErrNoRepository = errors.New("not a git repository")

// BlobID is the object id of a written blob.
type BlobID string

// RunGitFunc executes a git command in dir with stdin as input and returns
// combined stdout. Replaced in tests for deterministic output.
type RunGitFunc func(dir string, stdin []byte, args ...string) ([]byte, error)

// runGitReal executes a real git command.
func runGitReal(dir string, stdin []byte, args ...string) ([]byte, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return nil, fmt.Errorf("git %s: %s: %w", strings.Join(args, " "), msg, err)
		}
		return nil, fmt.Errorf("git %s: %w", strings.Join(args, " "), err)
	}
	return out, nil
}

// Store provides blob and ref operations against one repository.
type Store struct {
	// Dir is the repository working directory. Empty means the process
	// working directory.
	Dir string

	// RunGit executes git commands. Defaults to a real git invocation.
	// Override in tests.
	RunGit RunGitFunc
}

// New returns a Store for the given repository directory.
func New(dir string) *Store {
	return &Store{Dir: dir}
}

func (s *Store) run(stdin []byte, args ...string) ([]byte, error) {
	runner := s.RunGit
	if runner == nil {
		runner = runGitReal
	}
	return runner(s.Dir, stdin, args...)
}

// WriteBlob writes data as an immutable blob and returns its object id.
func (s *Store) WriteBlob(data []byte) (BlobID, error) {
	out, err := s.run(data, "hash-object", "-w", "--stdin")
	if err != nil {
		return "", fmt.Errorf("writing blob: %w", err)
	}
	id := BlobID(strings.TrimSpace(string(out)))
	if id == "" {
		return "", fmt.Errorf("writing blob: git returned empty object id")
	}
	return id, nil
}

// ReadRef returns the bytes of the blob the ref points at. The second return
// is false when the ref does not exist, which means "no tasks yet" and is
// not an error.
func (s *Store) ReadRef(ref string) ([]byte, bool, error) {
	if _, err := s.run(nil, "rev-parse", "--verify", "--quiet", ref); err != nil {
		// rev-parse --verify fails for a missing ref. Distinguishing a
		// missing ref from a broken repo is not worth a second round
		// trip; absent is the safe interpretation either way.
		return nil, false, nil
	}
	out, err := s.run(nil, "cat-file", "blob", ref)
	if err != nil {
		return nil, false, fmt.Errorf("reading %s: %w", ref, err)
	}
	return out, true, nil
}

// UpdateRef atomically points ref at the given blob, creating the ref if it
// does not exist. Readers observe either the old blob or the new one, never
// a partial write.
func (s *Store) UpdateRef(ref string, id BlobID) error {
	if _, err := s.run(nil, "update-ref", ref, string(id)); err != nil {
		return fmt.Errorf("updating %s: %w", ref, err)
	}
	return nil
}

// CurrentBranch returns the short name of the checked-out branch.
func (s *Store) CurrentBranch() (string, error) {
	out, err := s.run(nil, "symbolic-ref", "--short", "HEAD")
	if err != nil {
		// Detached HEAD or not a repository. Fall back to rev-parse to
		// tell the two apart.
		if _, revErr := s.run(nil, "rev-parse", "--git-dir"); revErr != nil {
			return "", ErrNoRepository
		}
		return "", fmt.Errorf("resolving current branch: %w", err)
	}
	branch := strings.TrimSpace(string(out))
	if branch == "" {
		return "", fmt.Errorf("resolving current branch: empty symbolic-ref output")
	}
	return branch, nil
}

// RefForBranch derives the task list ref for a branch name. The derivation
// is deterministic: branch path separators are kept (refs allow them), and
// the full ref name is capped at MaxRefLength.
func RefForBranch(branch string) (string, error) {
	ref := RefPrefix + branch
	if len(ref) > MaxRefLength {
		return "", fmt.Errorf("%w: %q yields %d bytes (max %d)",
			ErrBranchNameTooLong, branch, len(ref), MaxRefLength)
	}
	return ref, nil
}

// TaskRef resolves the ref for the currently checked-out branch.
func (s *Store) TaskRef() (string, error) {
	branch, err := s.CurrentBranch()
	if err != nil {
		return "", err
	}
	return RefForBranch(branch)
}
