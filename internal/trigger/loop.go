package trigger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"tunevision/internal/config"
	"tunevision/internal/logging"
	"tunevision/internal/matcher"
	"tunevision/internal/runs"
	"tunevision/internal/services"
)

// ErrAlreadyWatching is returned when another loop holds the watch lock.
var ErrAlreadyWatching = errors.New("another tunevision watch loop is already running")

type scanFunc func(promptDir, videoDir string, exts []string) ([]matcher.FileInfo, []matcher.FileInfo, error)

// Loop is the polling trigger.
type Loop struct {
	promptDir       string
	videoDir        string
	exts            []string
	interval        time.Duration
	includeExisting bool
	lockPath        string

	dispatcher Dispatcher
	processed  *ProcessedSet
	logger     *slog.Logger
	scan       scanFunc
	now        func() time.Time
	onResult   func(matcher.Pair, Result)

	sem chan struct{}
	wg  sync.WaitGroup
}

// Option customizes a Loop.
type Option func(*Loop)

// WithInterval overrides the poll interval.
func WithInterval(d time.Duration) Option {
	return func(l *Loop) {
		if d > 0 {
			l.interval = d
		}
	}
}

// WithResultHook is called after every dispatched run finishes.
func WithResultHook(fn func(matcher.Pair, Result)) Option {
	return func(l *Loop) { l.onResult = fn }
}

// NewLoop builds a loop from configuration.
func NewLoop(cfg *config.Config, dispatcher Dispatcher, logger *slog.Logger, opts ...Option) *Loop {
	limit := max(cfg.Watch.MaxConcurrentRuns, 1)
	l := &Loop{
		promptDir:       cfg.Paths.PromptDir,
		videoDir:        cfg.Paths.VideoDir,
		exts:            cfg.Watch.VideoExtensions,
		interval:        cfg.PollInterval(),
		includeExisting: cfg.Watch.IncludeExisting,
		lockPath:        cfg.LockPath(),
		dispatcher:      dispatcher,
		processed:       NewProcessedSet(),
		logger:          logging.NewComponentLogger(logger, "trigger"),
		scan:            matcher.Scan,
		now:             time.Now,
		sem:             make(chan struct{}, limit),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Processed exposes the processed set.
func (l *Loop) Processed() *ProcessedSet {
	return l.processed
}

// Run polls until ctx is cancelled, then waits for in-flight runs.
func (l *Loop) Run(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(l.lockPath), 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	lock := flock.New(l.lockPath)
	ok, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire watch lock: %w", err)
	}
	if !ok {
		return ErrAlreadyWatching
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			l.logger.Warn("failed to release watch lock", logging.Error(err))
		}
	}()

	since := l.now()
	if l.includeExisting {
		since = time.Time{}
	}
	l.logger.Info("watching for prompt/video pairs",
		logging.String(logging.FieldEventType, "watch_start"),
		logging.String("prompt_dir", l.promptDir),
		logging.String("video_dir", l.videoDir),
		logging.Duration("poll_interval", l.interval),
		logging.Int("max_concurrent_runs", cap(l.sem)),
		logging.Bool("include_existing", l.includeExisting),
	)

	for {
		l.poll(ctx, since)
		select {
		case <-ctx.Done():
			l.logger.Info("watch loop stopping; waiting for in-flight runs",
				logging.String(logging.FieldEventType, "watch_stop"),
				logging.Int("dispatched", l.processed.Len()),
			)
			l.wg.Wait()
			return nil
		case <-time.After(l.interval):
		}
	}
}

func (l *Loop) poll(ctx context.Context, since time.Time) {
	prompts, videos, err := l.scan(l.promptDir, l.videoDir, l.exts)
	if err != nil {
		logging.WarnWithContext(l.logger, "directory scan failed; retrying next poll", "scan_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check prompt_dir and video_dir permissions"),
			logging.String(logging.FieldImpact, "new pairs are picked up once the scan succeeds"),
		)
		return
	}
	for _, pair := range matcher.Match(prompts, videos, since) {
		if ctx.Err() != nil {
			return
		}
		if !l.processed.Add(pair.Key()) {
			continue
		}
		l.launch(ctx, pair)
	}
}

func (l *Loop) launch(ctx context.Context, pair matcher.Pair) {
	correlationID := uuid.NewString()
	runCtx := services.WithRequestID(context.WithoutCancel(ctx), correlationID)
	runCtx = services.WithRunID(runCtx, runs.DeriveID(pair.Prompt.Name))
	logger := logging.WithContext(runCtx, l.logger)
	logger.Info("pair matched",
		logging.String(logging.FieldEventType, "pair_matched"),
		logging.String("prompt_file", pair.Prompt.Name),
		logging.String("video_file", pair.Video.Name),
	)

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		select {
		case l.sem <- struct{}{}:
		case <-ctx.Done():
			logging.WarnWithContext(logger, "run not started before shutdown", "dispatch_skipped",
				logging.String("prompt_file", pair.Prompt.Name),
				logging.String(logging.FieldImpact, "pair will be picked up by the next watch session if still new"),
			)
			return
		}
		defer func() { <-l.sem }()

		result := l.dispatch(runCtx, pair, correlationID)
		l.report(logger, pair, result)
		if l.onResult != nil {
			l.onResult(pair, result)
		}
	}()
}

// dispatch shields the loop from a dispatcher that panics.
func (l *Loop) dispatch(ctx context.Context, pair matcher.Pair, correlationID string) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			result = Result{
				RunID:    runs.DeriveID(pair.Prompt.Name),
				Status:   runs.StatusCrashed,
				ExitCode: -1,
				Err:      fmt.Errorf("dispatch panicked: %v", r),
			}
		}
	}()
	return l.dispatcher.Dispatch(ctx, pair, correlationID)
}

func (l *Loop) report(logger *slog.Logger, pair matcher.Pair, result Result) {
	attrs := []logging.Attr{
		logging.String("prompt_file", pair.Prompt.Name),
		logging.String("video_file", pair.Video.Name),
		logging.String("status", string(result.Status)),
		logging.Int("exit_code", result.ExitCode),
		logging.Duration("elapsed", result.Duration),
	}
	switch result.Status {
	case runs.StatusDone:
		attrs = append(attrs, logging.String(logging.FieldEventType, "run_done"), logging.Bool("degraded", result.Degraded))
		logger.Info("run finished", logging.Args(attrs...)...)
	case runs.StatusAborted:
		attrs = append(attrs, logging.String("aborted_stage", result.AbortedStage), logging.Error(result.Err))
		logging.WarnWithContext(logger, "run aborted", "run_aborted", append(attrs,
			logging.String(logging.FieldErrorHint, "tunevision report "+result.RunID),
			logging.String(logging.FieldImpact, "later stages were skipped for this pair"),
		)...)
	default:
		attrs = append(attrs, logging.Error(result.Err))
		logging.ErrorWithContext(logger, "run crashed", "run_crashed", append(attrs,
			logging.String(logging.FieldErrorHint, "check the run log for a panic or signal"),
		)...)
	}
}
