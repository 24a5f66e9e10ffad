// Package stageexec runs a single pipeline stage against a run: it scopes the
// logger, emits the stage_start / stage_complete / stage_failure events, and
// records failure details on the run.
package stageexec

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"tunevision/internal/logging"
	"tunevision/internal/runs"
	"tunevision/internal/services"
	"tunevision/internal/stage"
)

// Options controls stage execution.
type Options struct {
	Logger    *slog.Logger
	Handler   stage.Handler
	StageName string
	// Position and Total describe the stage's place in the sequence for
	// progress output ([2/5] score).
	Position int
	Total    int
	Run      *runs.Run
}

// Run executes Prepare then Execute. On failure the run's Failure and
// AbortedStage are set and the stage error is returned unchanged.
func Run(ctx context.Context, opts Options) error {
	if opts.Handler == nil {
		return fmt.Errorf("stage handler unavailable: %s", opts.StageName)
	}
	if opts.Run == nil {
		return fmt.Errorf("run is required")
	}

	stageCtx := services.WithStage(ctx, opts.StageName)
	stageLogger := logging.WithContext(stageCtx, opts.Logger)
	if aware, ok := opts.Handler.(stage.LoggerAware); ok {
		aware.SetLogger(stageLogger)
	}

	started := time.Now()
	stageLogger.Info(
		"stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String("progress", fmt.Sprintf("%d/%d", opts.Position, opts.Total)),
		logging.String("prompt_file", opts.Run.PromptPath),
		logging.String("video_file", opts.Run.VideoPath),
	)

	if err := opts.Handler.Prepare(stageCtx, opts.Run); err != nil {
		return handleFailure(stageLogger, opts.StageName, opts.Run, err, time.Since(started))
	}
	if err := opts.Handler.Execute(stageCtx, opts.Run); err != nil {
		return handleFailure(stageLogger, opts.StageName, opts.Run, err, time.Since(started))
	}

	stageLogger.Info(
		"stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Duration("elapsed", time.Since(started)),
		logging.Int("artifacts", len(opts.Run.Artifacts)),
	)
	return nil
}

func handleFailure(logger *slog.Logger, stageName string, run *runs.Run, stageErr error, elapsed time.Duration) error {
	details := services.Details(stageErr)
	message := strings.TrimSpace(details.Message)
	if message == "" {
		message = strings.TrimSpace(stageErr.Error())
	} else if details.Cause != nil {
		message += ": " + strings.TrimSpace(details.Cause.Error())
	}
	run.AbortedStage = stageName
	run.Failure = message

	logger.Error(
		"stage failed",
		logging.String(logging.FieldEventType, "stage_failure"),
		logging.String(logging.FieldErrorKind, string(details.Kind)),
		logging.String(logging.FieldErrorHint, hintFor(details.Kind)),
		logging.String("error_message", message),
		logging.Duration("elapsed", elapsed),
		logging.Error(stageErr),
	)
	return stageErr
}

func hintFor(kind services.Kind) string {
	switch kind {
	case services.KindSourceUnreadable:
		return "check the video file plays and ffprobe can read it"
	case services.KindModelUnavailable:
		return "check the model command and weights path (tunevision status)"
	case services.KindFilesystem:
		return "check permissions and free space under paths.data_root"
	case services.KindMalformedArtifact:
		return "re-run the pair to regenerate its artifacts"
	case services.KindExternalTool:
		return "inspect the external command's stderr in the log"
	default:
		return "check logs for details"
	}
}
