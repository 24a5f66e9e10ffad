package trigger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"tunevision/internal/matcher"
	"tunevision/internal/pipeline"
	"tunevision/internal/runs"
)

// Exit codes of the run command, used to classify process dispatches. The Go
// runtime exits with 2 on an unrecovered panic, so an aborted run uses 3 and a
// panicking child is classified as crashed.
const (
	ExitDone    = 0
	ExitAborted = 3
)

// Result is the classified outcome of one dispatched run.
type Result struct {
	RunID        string
	Status       runs.Status
	AbortedStage string
	ExitCode     int
	Degraded     bool
	Err          error
	Duration     time.Duration
}

// Dispatcher starts a pipeline run for a pair and blocks until it finishes.
type Dispatcher interface {
	Dispatch(ctx context.Context, pair matcher.Pair, correlationID string) Result
}

// ProcessDispatcher re-executes the tunevision binary's run command in its own
// process group so a terminal interrupt aimed at the watch loop does not reach
// in-flight runs.
type ProcessDispatcher struct {
	Executable string
	ConfigPath string
	Model      string
	Stdout     io.Writer
	Stderr     io.Writer
}

// NewProcessDispatcher uses the running executable unless executable is set.
func NewProcessDispatcher(executable, configPath, model string) (*ProcessDispatcher, error) {
	if strings.TrimSpace(executable) == "" {
		self, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("resolve executable: %w", err)
		}
		executable = self
	}
	return &ProcessDispatcher{
		Executable: executable,
		ConfigPath: configPath,
		Model:      model,
		Stdout:     os.Stdout,
		Stderr:     os.Stderr,
	}, nil
}

// Args returns the child command line for pair.
func (d *ProcessDispatcher) Args(pair matcher.Pair, correlationID string) []string {
	args := []string{"run", "--prompt", pair.Prompt.Path, "--video", pair.Video.Path}
	if d.Model != "" {
		args = append(args, "--model", d.Model)
	}
	if d.ConfigPath != "" {
		args = append(args, "--config", d.ConfigPath)
	}
	if correlationID != "" {
		args = append(args, "--correlation-id", correlationID)
	}
	return args
}

// Dispatch implements Dispatcher. The child is not bound to ctx; it runs to
// completion once started.
func (d *ProcessDispatcher) Dispatch(_ context.Context, pair matcher.Pair, correlationID string) Result {
	started := time.Now()
	cmd := exec.Command(d.Executable, d.Args(pair, correlationID)...) //nolint:gosec
	cmd.Stdout = d.Stdout
	cmd.Stderr = d.Stderr
	detachProcessGroup(cmd)

	result := Result{RunID: runs.DeriveID(pair.Prompt.Name)}
	err := cmd.Run()
	result.Duration = time.Since(started)
	var exitErr *exec.ExitError
	switch {
	case err == nil:
		result.Status = runs.StatusDone
		result.ExitCode = ExitDone
	case errors.As(err, &exitErr):
		result.ExitCode = exitErr.ExitCode()
		result.Err = err
		if result.ExitCode == ExitAborted {
			result.Status = runs.StatusAborted
		} else {
			result.Status = runs.StatusCrashed
		}
	default:
		result.ExitCode = -1
		result.Status = runs.StatusCrashed
		result.Err = fmt.Errorf("launch run: %w", err)
	}
	return result
}

// TaskDispatcher runs the pipeline engine in-process.
type TaskDispatcher struct {
	Engine *pipeline.Engine
	Model  string
	Logger *slog.Logger
}

// Dispatch implements Dispatcher. A panic inside a stage is reported as a
// crashed run instead of unwinding into the watch loop.
func (d *TaskDispatcher) Dispatch(ctx context.Context, pair matcher.Pair, _ string) (result Result) {
	started := time.Now()
	defer func() {
		if r := recover(); r != nil {
			result = Result{
				RunID:    runs.DeriveID(pair.Prompt.Name),
				Status:   runs.StatusCrashed,
				ExitCode: -1,
				Err:      fmt.Errorf("run panicked: %v", r),
				Duration: time.Since(started),
			}
		}
	}()

	run, err := runs.New(pair.Prompt.Path, pair.Video.Path)
	if err != nil {
		return Result{RunID: runs.DeriveID(pair.Prompt.Name), Status: runs.StatusCrashed, Err: err}
	}
	run.DetectorModel = d.Model
	outcome := d.Engine.Run(ctx, run)
	result = Result{
		RunID:        run.ID,
		Status:       outcome.Status,
		AbortedStage: outcome.AbortedStage,
		Degraded:     outcome.Degraded,
		Err:          outcome.Err,
		Duration:     outcome.Duration,
	}
	if outcome.Status == runs.StatusAborted {
		result.ExitCode = ExitAborted
	}
	return result
}
