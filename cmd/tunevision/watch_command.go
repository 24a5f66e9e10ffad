package main

import (
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"tunevision/internal/config"
	"tunevision/internal/matcher"
	"tunevision/internal/pipeline"
	"tunevision/internal/preflight"
	"tunevision/internal/trigger"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var (
		model    string
		dispatch string
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll the prompt and video directories and run the pipeline for new pairs",
		Long: `Watch polls the configured prompt and video directories. Each prompt written after
the watcher started is paired with the newest video whose name contains the
prompt's base name, and the pipeline is dispatched once per pair. Only one watcher may run per state directory.

Interrupt (Ctrl+C) stops polling and waits for in-flight runs to finish.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			mode := strings.ToLower(strings.TrimSpace(dispatch))
			if mode == "" {
				mode = cfg.Watch.Dispatch
			}
			if mode != config.DispatchProcess && mode != config.DispatchTask {
				return exitError{code: exitFailure, msg: fmt.Sprintf("unknown dispatch mode %q (want %s or %s)", mode, config.DispatchProcess, config.DispatchTask)}
			}

			signalCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			if failed := preflight.Failed(preflight.RunAll(signalCtx, cfg)); len(failed) > 0 {
				for _, r := range failed {
					fmt.Fprintf(cmd.ErrOrStderr(), "preflight: %s: %s\n", r.Name, r.Detail)
				}
				return exitError{code: exitFailure, msg: fmt.Sprintf("%d preflight check(s) failed; see `tunevision status`", len(failed))}
			}
			if llm := preflight.CheckLLM(signalCtx, cfg.LLM); !llm.Passed {
				fmt.Fprintf(cmd.ErrOrStderr(), "warn: %s: %s\n", llm.Name, llm.Detail)
			}

			logger := ctx.loggerFor(cfg)
			var dispatcher trigger.Dispatcher
			switch mode {
			case config.DispatchProcess:
				configPath := ""
				if ctx.configExists {
					configPath = ctx.configPath
				}
				pd, err := trigger.NewProcessDispatcher("", configPath, model)
				if err != nil {
					return exitError{code: exitFailure, msg: err.Error()}
				}
				pd.Stdout = out
				pd.Stderr = cmd.ErrOrStderr()
				dispatcher = pd
			case config.DispatchTask:
				var opts []pipeline.Option
				if store := ctx.openHistory(cmd, cfg); store != nil {
					defer store.Close()
					opts = append(opts, pipeline.WithRecorder(store))
				}
				engine, err := pipeline.Build(cfg, logger, opts...)
				if err != nil {
					return exitError{code: exitFailure, msg: fmt.Sprintf("build pipeline: %v", err)}
				}
				dispatcher = &trigger.TaskDispatcher{Engine: engine, Model: model, Logger: logger}
			}

			fmt.Fprintf(out, "Watching %s and %s (%s dispatch, every %s). Press Ctrl+C to stop.\n",
				cfg.Paths.PromptDir, cfg.Paths.VideoDir, mode, cfg.PollInterval())
			loop := trigger.NewLoop(cfg, dispatcher, logger, trigger.WithResultHook(func(pair matcher.Pair, result trigger.Result) {
				line := fmt.Sprintf("%s  %s  %s", result.Status, pair.Prompt.Name, pair.Video.Name)
				if result.AbortedStage != "" {
					line += "  (aborted at " + result.AbortedStage + ")"
				}
				fmt.Fprintln(out, line)
			}))
			if err := loop.Run(signalCtx); err != nil {
				if errors.Is(err, trigger.ErrAlreadyWatching) {
					return exitError{code: exitFailure, msg: fmt.Sprintf("another watcher holds %s", cfg.LockPath())}
				}
				return err
			}
			if signalCtx.Err() != nil && cmd.Context().Err() == nil {
				return exitError{code: exitInterrupted, msg: "watch stopped"}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&model, "model", "", "Detector weights passed to every run")
	cmd.Flags().StringVar(&dispatch, "dispatch", "", "Override watch.dispatch (process or task)")
	return cmd
}
