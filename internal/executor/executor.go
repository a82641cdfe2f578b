package executor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"
)

// Result holds the outcome of a single agent invocation.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
	TimedOut bool // true when the child was killed on timeout
}

// CommandFactory builds an *exec.Cmd for the given context, working
// directory, and argv. The default factory uses exec.CommandContext. Tests
// inject a factory that re-execs the test binary as a helper process.
type CommandFactory func(ctx context.Context, workDir string, argv []string) *exec.Cmd

func defaultCommandFactory(ctx context.Context, workDir string, argv []string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = workDir
	return cmd
}

// options holds optional configuration for Start/Run.
type options struct {
	timeout        time.Duration
	commandFactory CommandFactory
	stdout         io.Writer
	interactive    bool
}

// Option configures an invocation.
type Option func(*options)

// WithTimeout bounds the child's execution. Zero (the default) means no
// per-task timeout: a hung agent blocks the caller.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithCommandFactory injects a custom command factory (used in tests).
func WithCommandFactory(f CommandFactory) Option {
	return func(o *options) { o.commandFactory = f }
}

// WithStdout redirects the child's stdout to w instead of capturing it in
// memory (streamed mode; w is typically a per-task log file).
func WithStdout(w io.Writer) Option {
	return func(o *options) { o.stdout = w }
}

// WithInteractive hands the child the parent's stdio so it can converse with
// the user. Nothing is captured.
func WithInteractive() Option {
	return func(o *options) { o.interactive = true }
}

// Handle supervises one running child process. Wait blocks for the result;
// Done is closed when the child exits; Kill force-terminates it.
type Handle struct {
	cmd    *exec.Cmd
	cancel context.CancelFunc
	done   chan struct{}

	stdout *bytes.Buffer
	stderr *bytes.Buffer
	start  time.Time

	result *Result
	err    error
}

// Start spawns the agent process described by argv without blocking.
func Start(ctx context.Context, workDir string, argv []string, opts ...Option) (*Handle, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("starting agent: empty argv")
	}

	cfg := options{commandFactory: defaultCommandFactory}
	for _, o := range opts {
		o(&cfg)
	}

	cancel := context.CancelFunc(func() {})
	if cfg.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, cfg.timeout)
	}

	cmd := cfg.commandFactory(ctx, workDir, argv)

	h := &Handle{
		cmd:    cmd,
		cancel: cancel,
		done:   make(chan struct{}),
		stdout: &bytes.Buffer{},
		stderr: &bytes.Buffer{},
	}

	switch {
	case cfg.interactive:
		cmd.Stdin = os.Stdin
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
	case cfg.stdout != nil:
		cmd.Stdout = cfg.stdout
		cmd.Stderr = h.stderr
	default:
		cmd.Stdout = h.stdout
		cmd.Stderr = h.stderr
	}

	h.start = time.Now()
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("starting agent: %w", err)
	}

	go func() {
		defer close(h.done)
		defer cancel()
		waitErr := cmd.Wait()
		h.result, h.err = h.finish(ctx, waitErr)
	}()

	return h, nil
}

// finish converts a Wait error into a Result. A non-zero exit (or death by
// signal) is a normal, scoreable outcome; only plumbing failures surface as
// errors.
func (h *Handle) finish(ctx context.Context, waitErr error) (*Result, error) {
	res := &Result{
		Stdout:   h.stdout.String(),
		Stderr:   h.stderr.String(),
		Duration: time.Since(h.start),
		TimedOut: ctx.Err() == context.DeadlineExceeded,
	}
	if waitErr != nil {
		exitErr, ok := waitErr.(*exec.ExitError)
		if !ok {
			return nil, fmt.Errorf("waiting for agent: %w", waitErr)
		}
		// ExitCode is -1 when the child died to a signal; callers score
		// any non-zero value as a failure.
		res.ExitCode = exitErr.ExitCode()
	}
	return res, nil
}

// Done is closed once the child has exited and the result is available.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until the child exits and returns its result.
func (h *Handle) Wait() (*Result, error) {
	<-h.done
	return h.result, h.err
}

// Running reports whether the child is still executing.
func (h *Handle) Running() bool {
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

// Kill force-terminates the child. Safe to call after exit.
func (h *Handle) Kill() {
	h.cancel()
	if h.cmd.Process != nil {
		_ = h.cmd.Process.Kill()
	}
}

// Run spawns the agent and blocks until it exits.
func Run(ctx context.Context, workDir string, argv []string, opts ...Option) (*Result, error) {
	h, err := Start(ctx, workDir, argv, opts...)
	if err != nil {
		return nil, err
	}
	return h.Wait()
}
