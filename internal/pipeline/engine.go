package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"tunevision/internal/logging"
	"tunevision/internal/runs"
	"tunevision/internal/services"
	"tunevision/internal/stage"
	"tunevision/internal/stageexec"
)

// Step binds a stage name to its handler.
type Step struct {
	Name    string
	Handler stage.Handler
}

// Observer receives per-stage progress.
type Observer interface {
	StageStarted(run *runs.Run, position, total int, name string)
	StageFinished(run *runs.Run, position, total int, name string, err error, elapsed time.Duration)
}

// Recorder persists run lifecycle transitions. RunFinished sees the run in its
// terminal state together with the failure classification.
type Recorder interface {
	RunStarted(ctx context.Context, run *runs.Run) error
	RunFinished(ctx context.Context, run *runs.Run, kind services.Kind) error
}

// Outcome summarizes a finished run.
type Outcome struct {
	Run          *runs.Run
	Status       runs.Status
	AbortedStage string
	Err          error
	Kind         services.Kind
	Degraded     bool
	Duration     time.Duration
}

// Failed reports whether the run aborted.
func (o Outcome) Failed() bool {
	return o.Status != runs.StatusDone
}

// Engine drives a run through its steps.
type Engine struct {
	steps    []Step
	logger   *slog.Logger
	observer Observer
	recorder Recorder
	results  ResultCleaner
}

// ResultCleaner removes the result files a previous execution left behind.
type ResultCleaner interface {
	RemoveResults(runID, videoBase string) error
}

// Option customizes an Engine.
type Option func(*Engine)

// WithObserver installs a progress observer.
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// WithRecorder installs a lifecycle recorder.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// WithResultCleaner clears stale result files before the first step runs.
func WithResultCleaner(c ResultCleaner) Option {
	return func(e *Engine) { e.results = c }
}

// NewEngine builds an engine over steps in the given order.
func NewEngine(steps []Step, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		steps:  steps,
		logger: logging.NewComponentLogger(logger, "pipeline"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Steps returns the configured steps.
func (e *Engine) Steps() []Step {
	return e.steps
}

// Run executes every step for run. Outputs from a previous execution of the
// same run are discarded first, in memory and on disk.
func (e *Engine) Run(ctx context.Context, run *runs.Run) Outcome {
	ctx = services.WithRunID(ctx, run.ID)
	logger := logging.WithContext(ctx, e.logger)

	run.ResetOutputs()
	run.Status = runs.StatusRunning
	run.StartedAt = time.Now().UTC()
	run.FinishedAt = time.Time{}
	if e.recorder != nil {
		if err := e.recorder.RunStarted(ctx, run); err != nil {
			logging.WarnWithContext(logger, "failed to record run start", "history_write_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "run will be missing from tunevision runs"),
			)
		}
	}
	logger.Info("run started",
		logging.String(logging.FieldEventType, "run_start"),
		logging.String("prompt_file", run.PromptPath),
		logging.String("video_file", run.VideoPath),
		logging.String("video_base", run.VideoBase),
	)

	var runErr error
	if e.results != nil && len(e.steps) > 0 {
		if err := e.results.RemoveResults(run.ID, run.VideoBase); err != nil {
			runErr = err
			run.AbortedStage = e.steps[0].Name
			run.Failure = err.Error()
		}
	}
	total := len(e.steps)
	for i, step := range e.steps {
		if runErr != nil {
			break
		}
		position := i + 1
		if err := ctx.Err(); err != nil {
			runErr = err
			run.AbortedStage = step.Name
			run.Failure = "interrupted: " + err.Error()
			break
		}
		if e.observer != nil {
			e.observer.StageStarted(run, position, total, step.Name)
		}
		started := time.Now()
		err := stageexec.Run(ctx, stageexec.Options{
			Logger:    e.logger,
			Handler:   step.Handler,
			StageName: step.Name,
			Position:  position,
			Total:     total,
			Run:       run,
		})
		if e.observer != nil {
			e.observer.StageFinished(run, position, total, step.Name, err, time.Since(started))
		}
		if err != nil {
			runErr = err
			if run.AbortedStage == "" {
				run.AbortedStage = step.Name
			}
			break
		}
	}

	run.FinishedAt = time.Now().UTC()
	outcome := Outcome{
		Run:      run,
		Err:      runErr,
		Degraded: run.Degraded,
		Duration: run.FinishedAt.Sub(run.StartedAt),
	}
	if runErr != nil {
		run.Status = runs.StatusAborted
		outcome.AbortedStage = run.AbortedStage
		outcome.Kind = services.KindOf(runErr)
		if errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded) {
			outcome.Kind = services.KindUnknown
		}
		logging.ErrorWithContext(logger, "run aborted", "run_aborted",
			logging.String("aborted_stage", run.AbortedStage),
			logging.String(logging.FieldErrorKind, string(outcome.Kind)),
			logging.String("reason", run.Failure),
			logging.Duration("elapsed", outcome.Duration),
		)
	} else {
		run.Status = runs.StatusDone
		logger.Info("run completed",
			logging.String(logging.FieldEventType, "run_complete"),
			logging.Bool("degraded", run.Degraded),
			logging.Int("artifacts", len(run.Artifacts)),
			logging.Duration("elapsed", outcome.Duration),
		)
	}
	outcome.Status = run.Status

	if e.recorder != nil {
		// The run may have been cancelled; the ledger row should still close.
		recordCtx := context.WithoutCancel(ctx)
		if err := e.recorder.RunFinished(recordCtx, run, outcome.Kind); err != nil {
			logging.WarnWithContext(logger, "failed to record run outcome", "history_write_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "tunevision runs will show this run as running"),
			)
		}
	}
	return outcome
}

// HealthCheck collects every stage's readiness.
func (e *Engine) HealthCheck(ctx context.Context) []stage.Health {
	out := make([]stage.Health, 0, len(e.steps))
	for _, step := range e.steps {
		if step.Handler == nil {
			out = append(out, stage.Unhealthy(step.Name, "no handler"))
			continue
		}
		out = append(out, step.Handler.HealthCheck(ctx))
	}
	return out
}
