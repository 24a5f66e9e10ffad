package main

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"tunevision/internal/logging"
	"tunevision/internal/matcher"
	"tunevision/internal/pipeline"
	"tunevision/internal/runs"
	"tunevision/internal/services"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var (
		promptPath    string
		videoPath     string
		model         string
		latest        bool
		correlationID string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the five-stage pipeline for one prompt/video pair",
		Long: `Run extracts frames from the video, scores them against the prompt, detects
objects, compares them with the prompt's nouns, and asks the LLM for feedback
and a revised prompt.

Exit status is 0 when the run completes (placeholder feedback included),
3 when a stage aborts the run, and 1 for usage or configuration errors.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			promptPath = strings.TrimSpace(promptPath)
			videoPath = strings.TrimSpace(videoPath)

			if latest {
				if promptPath != "" || videoPath != "" {
					return usageError("--latest cannot be combined with --prompt or --video")
				}
				prompts, videos, err := matcher.Scan(cfg.Paths.PromptDir, cfg.Paths.VideoDir, cfg.Watch.VideoExtensions)
				if err != nil {
					return fmt.Errorf("scan directories: %w", err)
				}
				prompt, video, ok := matcher.Latest(prompts, videos)
				if !ok {
					return usageError(fmt.Sprintf("no prompt in %s or no video in %s", cfg.Paths.PromptDir, cfg.Paths.VideoDir))
				}
				promptPath, videoPath = prompt.Path, video.Path
			}
			if promptPath == "" || videoPath == "" {
				return usageError("--prompt and --video are required (or use --latest)")
			}

			run, err := runs.New(promptPath, videoPath)
			if err != nil {
				return usageError(fmt.Sprintf("resolve paths: %v", err))
			}
			run.DetectorModel = strings.TrimSpace(model)

			logger := ctx.loggerFor(cfg)
			opts := []pipeline.Option{pipeline.WithObserver(newConsoleObserver(cmd.OutOrStdout()))}
			if store := ctx.openHistory(cmd, cfg); store != nil {
				defer store.Close()
				opts = append(opts, pipeline.WithRecorder(store))
			}
			engine, err := pipeline.Build(cfg, logger, opts...)
			if err != nil {
				return exitError{code: exitFailure, msg: fmt.Sprintf("build pipeline: %v", err)}
			}

			signalCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			runCtx := signalCtx
			if correlationID = strings.TrimSpace(correlationID); correlationID != "" {
				runCtx = services.WithRequestID(runCtx, correlationID)
			}
			logging.WithContext(runCtx, logger).Debug("run requested",
				logging.String("prompt_file", run.PromptPath),
				logging.String("video_file", run.VideoPath),
			)

			outcome := engine.Run(runCtx, run)
			printSummary(cmd.OutOrStdout(), outcome)
			if outcome.Failed() {
				return exitError{code: exitAborted, msg: fmt.Sprintf("run %s aborted at %s: %s", run.ID, outcome.AbortedStage, run.Failure)}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&promptPath, "prompt", "", "Prompt text file")
	cmd.Flags().StringVar(&videoPath, "video", "", "Generated video file")
	cmd.Flags().StringVar(&model, "model", "", "Detector weights (overrides detector.model)")
	cmd.Flags().BoolVar(&latest, "latest", false, "Use the newest prompt and newest video from the configured directories")
	cmd.Flags().StringVar(&correlationID, "correlation-id", "", "Correlation id stamped on log lines")
	_ = cmd.Flags().MarkHidden("correlation-id")
	return cmd
}

func usageError(msg string) error {
	return exitError{code: exitFailure, msg: services.Wrap(services.ErrValidation, "run", "validate flags", msg, nil).Error()}
}
