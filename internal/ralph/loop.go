package ralph

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"taskloop/internal/executor"
	"taskloop/internal/task"
	"taskloop/internal/trace"
)

// RunningHandle supervises one dispatched agent process. Satisfied by
// *executor.Handle; tests substitute fakes.
type RunningHandle interface {
	Done() <-chan struct{}
	Wait() (*executor.Result, error)
	Kill()
}

// StartFunc dispatches an agent for a task without blocking.
type StartFunc func(ctx context.Context, t task.Task) (RunningHandle, error)

// Config configures one loop run.
type Config struct {
	WorkDir string

	// Backend is the resolved executor shape; the loop always runs it
	// headless. Model overrides the backend default when non-empty.
	Backend executor.Spec
	Model   string

	// Streamed selects stream-json output redirected to per-task logs;
	// otherwise output is buffered and persisted only on failure.
	Streamed bool
	LogsDir  string

	Once     bool
	DryRun   bool
	Delay    time.Duration
	MaxTasks int // cap on successful completions this run; 0 = unlimited
	Parallel int // max concurrent children; <= 1 means sequential

	// TaskTimeout bounds one agent execution. Zero means none: a hung
	// agent blocks the sequential loop, or occupies one parallel slot,
	// indefinitely.
	TaskTimeout time.Duration

	// Output receives progress lines. Defaults to os.Stdout.
	Output io.Writer

	// LoadTasks reads the current task list. The loop reloads before
	// every selection; the store is mutated between iterations by the
	// agent marking tasks done, never by the loop itself.
	LoadTasks func() ([]task.Task, error)

	// Start overrides agent dispatch (used in tests).
	Start StartFunc
}

// runningTask tracks one in-flight dispatch. Its lifetime is bounded to the
// run: any process still alive at loop exit is force-terminated.
type runningTask struct {
	t      task.Task
	handle RunningHandle
}

// Run executes the supervisory loop until the backlog is exhausted or a
// safety limit triggers. Each iteration selects ready tasks, dispatches
// agents, awaits a child exit, and scores the result. The loop never marks
// tasks done; that is the dispatched agent's job, and a task whose agent
// forgot is simply re-selected.
func Run(ctx context.Context, cfg Config) (*Summary, error) {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	if cfg.LoadTasks == nil {
		return nil, fmt.Errorf("ralph: LoadTasks is required")
	}
	start := cfg.Start
	if start == nil {
		start = cfg.startAgent
	}
	parallel := cfg.Parallel
	if parallel < 1 {
		parallel = 1
	}

	loopStart := time.Now()
	summary := &Summary{}

	// Run-scoped circuit breaker state, keyed by task id. Never persisted;
	// a fresh run starts every task at zero strikes.
	failures := make(map[string]int)
	retired := make(map[string]bool)

	// Dry-run synthesis marks each task once so the loop terminates
	// instead of re-selecting tasks that were never really completed.
	dryDone := make(map[string]bool)

	running := make(map[string]*runningTask)
	// Child-exit notifications. Each dispatch registers a goroutine that
	// signals here when the process exits; the loop blocks on this channel
	// instead of polling handles.
	exits := make(chan string, parallel)

	defer func() {
		for id, rt := range running {
			rt.handle.Kill()
			<-rt.handle.Done()
			fmt.Fprintf(out, "[%s] force-terminated at loop exit\n", id)
		}
	}()

	score := func(id string, res *executor.Result) {
		if res != nil && res.ExitCode == 0 {
			delete(failures, id)
			summary.Succeeded++
			return
		}
		summary.Failed++
		failures[id]++
		if failures[id] >= FailureLimit && !retired[id] {
			retired[id] = true
			summary.Retired++
			fmt.Fprintf(out, "[%s] retired for this run after %d consecutive failures\n", id, FailureLimit)
		}
	}

loop:
	for {
		if ctx.Err() != nil {
			summary.StopReason = StopCancelled
			break
		}

		// 1. Select: fresh load, ready set, minus breaker-tripped and
		// already-running tasks.
		tasks, err := cfg.LoadTasks()
		if err != nil {
			summary.Duration = time.Since(loopStart)
			return summary, fmt.Errorf("loading tasks: %w", err)
		}
		pending := 0
		for _, t := range tasks {
			if t.Status == task.StatusPending {
				pending++
			}
		}
		summary.Remaining = pending

		var eligible []task.Task
		for _, t := range task.Ready(tasks) {
			if failures[t.ID] >= FailureLimit {
				continue
			}
			if _, isRunning := running[t.ID]; isRunning {
				continue
			}
			if dryDone[t.ID] {
				continue
			}
			eligible = append(eligible, t)
		}

		// 2. Terminate check.
		if len(eligible) == 0 && len(running) == 0 {
			switch {
			case pending == 0:
				fmt.Fprintln(out, "No pending tasks.")
				summary.StopReason = StopNormal
			case cfg.DryRun:
				fmt.Fprintln(out, "Dry run complete.")
				summary.StopReason = StopNormal
			default:
				fmt.Fprintln(out, "All remaining tasks exceeded the failure threshold or are blocked.")
				summary.StopReason = StopAllRetired
			}
			break
		}

		// 3. Dispatch into free slots.
		slots := parallel - len(running)
		for _, t := range eligible {
			if slots <= 0 {
				break
			}
			if cfg.Once && summary.Dispatched >= 1 {
				break
			}
			if cfg.MaxTasks > 0 && summary.Succeeded >= cfg.MaxTasks {
				break
			}

			if cfg.DryRun {
				fmt.Fprintf(out, "would run: %s\n", strings.Join(cfg.argvFor(t), " "))
				dryDone[t.ID] = true
				summary.Dispatched++
				summary.Succeeded++
				fmt.Fprintln(out, formatTaskLog(t.ID, t.Content, "dry-run", 0))
				continue
			}

			h, err := start(ctx, t)
			summary.Dispatched++
			if err != nil {
				// Spawn failure is scored like any execution
				// failure: retried via re-selection, bounded by
				// the breaker.
				fmt.Fprintf(out, "[%s] spawn failed: %v\n", t.ID, err)
				score(t.ID, nil)
				continue
			}
			running[t.ID] = &runningTask{t: t, handle: h}
			id := t.ID
			go func() {
				<-h.Done()
				exits <- id
			}()
			slots--
		}

		// 4. Await one child exit.
		if len(running) > 0 {
			select {
			case id := <-exits:
				rt := running[id]
				delete(running, id)
				res, err := rt.handle.Wait()
				if err != nil {
					fmt.Fprintf(out, "[%s] wait failed: %v\n", id, err)
					score(id, nil)
				} else {
					status := "success"
					if res.TimedOut {
						status = fmt.Sprintf("timeout (exit %d)", res.ExitCode)
					} else if res.ExitCode != 0 {
						status = fmt.Sprintf("failed (exit %d)", res.ExitCode)
					}
					fmt.Fprintln(out, formatTaskLog(id, rt.t.Content, status, res.Duration))
					if res.ExitCode != 0 && !cfg.Streamed && cfg.LogsDir != "" {
						if logErr := WriteFailureLog(cfg.LogsDir, id, res); logErr != nil {
							fmt.Fprintf(out, "[%s] could not write failure log: %v\n", id, logErr)
						}
					}
					score(id, res)
				}
			case <-ctx.Done():
				summary.StopReason = StopCancelled
				break loop
			}
		}

		// 5. Stop checks.
		if cfg.Once && summary.Dispatched >= 1 && len(running) == 0 {
			summary.StopReason = StopOnce
			break
		}
		if cfg.MaxTasks > 0 && summary.Succeeded >= cfg.MaxTasks {
			summary.StopReason = StopMaxTasks
			break
		}

		// 6. Throttle between iterations.
		if cfg.Delay > 0 && !cfg.DryRun {
			select {
			case <-time.After(cfg.Delay):
			case <-ctx.Done():
				summary.StopReason = StopCancelled
				break loop
			}
		}
	}

	// Best-effort refresh of the remaining count for the summary.
	if tasks, err := cfg.LoadTasks(); err == nil {
		remaining := 0
		for _, t := range tasks {
			if t.Status == task.StatusPending {
				remaining++
			}
		}
		summary.Remaining = remaining
	}

	summary.Duration = time.Since(loopStart)
	fmt.Fprintf(out, "\n%s\n", formatSummary(summary))
	return summary, nil
}

// argvFor renders the full invocation for a task, loop axes applied.
func (cfg *Config) argvFor(t task.Task) []string {
	spec := cfg.Backend
	if cfg.Model != "" {
		spec.Model = cfg.Model
	}
	spec.Headless = true
	spec.Streamed = cfg.Streamed
	return spec.Argv(RenderPrompt(t))
}

// startAgent is the real dispatch path: build the invocation, open the
// per-task log when streaming, and spawn the child.
func (cfg *Config) startAgent(ctx context.Context, t task.Task) (RunningHandle, error) {
	ctx, span := trace.StartTaskSpan(ctx, t.ID, cfg.Backend.Kind.String())

	var opts []executor.Option
	if cfg.TaskTimeout > 0 {
		opts = append(opts, executor.WithTimeout(cfg.TaskTimeout))
	}

	var logFile *os.File
	if cfg.Streamed && cfg.LogsDir != "" {
		f, err := OpenTaskLog(cfg.LogsDir, t.ID)
		if err != nil {
			span.End()
			return nil, err
		}
		logFile = f
		opts = append(opts, executor.WithStdout(f))
	}

	h, err := executor.Start(ctx, cfg.WorkDir, cfg.argvFor(t), opts...)
	if err != nil {
		if logFile != nil {
			logFile.Close()
		}
		span.End()
		return nil, err
	}

	go func() {
		<-h.Done()
		if logFile != nil {
			logFile.Close()
		}
		if res, err := h.Wait(); err == nil {
			trace.EndTaskSpan(span, res.ExitCode, res.TimedOut)
		} else {
			span.End()
		}
	}()
	return h, nil
}
