package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"tunevision/internal/artifacts"
	"tunevision/internal/config"
	"tunevision/internal/dashboard"
	"tunevision/internal/matcher"
	"tunevision/internal/runs"
)

func newReportCommand(ctx *commandContext) *cobra.Command {
	var (
		videoBase string
		format    string
	)

	cmd := &cobra.Command{
		Use:   "report <run-id>",
		Short: "Print the stored results of a run",
		Long: `Report reads a run's artifacts without modifying them. Missing or unreadable
artifacts are listed as warnings. When a run evaluated more than one video,
choose one with --video.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			report, err := loadReport(cmd, ctx, cfg, args[0], videoBase)
			if err != nil {
				return err
			}
			opts := dashboard.RenderOptions{Format: format}
			if strings.EqualFold(format, dashboard.FormatText) || format == "" {
				opts.Color = colorEnabled(cmd.OutOrStdout())
			}
			if err := dashboard.Render(cmd.OutOrStdout(), report, opts); err != nil {
				return exitError{code: exitFailure, msg: err.Error()}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&videoBase, "video", "", "Video base name within the run")
	cmd.Flags().StringVarP(&format, "format", "f", dashboard.FormatText, "Output format: "+strings.Join(dashboard.Formats, ", "))
	return cmd
}

func loadReport(cmd *cobra.Command, ctx *commandContext, cfg *config.Config, runID, videoBase string) (*dashboard.Report, error) {
	store := artifacts.NewStore(cfg.Paths.DataRoot)
	base, err := dashboard.ResolveVideo(store, runID, strings.TrimSpace(videoBase))
	if err != nil {
		return nil, exitError{code: exitFailure, msg: err.Error()}
	}
	report, err := dashboard.Load(store, runID, base, promptPathFor(cmd, ctx, cfg, runID))
	if err != nil {
		return nil, exitError{code: exitFailure, msg: err.Error()}
	}
	return report, nil
}

// promptPathFor finds the prompt that produced runID: first from the history
// ledger, then by scanning the prompt directory for a name with the same id.
func promptPathFor(cmd *cobra.Command, ctx *commandContext, cfg *config.Config, runID string) string {
	if store := ctx.openHistory(cmd, cfg); store != nil {
		entry, err := store.Latest(cmd.Context(), runID)
		store.Close()
		if err == nil && entry.PromptPath != "" {
			return entry.PromptPath
		}
	}
	prompts, _, err := matcher.Scan(cfg.Paths.PromptDir, cfg.Paths.VideoDir, cfg.Watch.VideoExtensions)
	if err != nil {
		return ""
	}
	var match matcher.FileInfo
	for _, p := range prompts {
		if runs.DeriveID(p.Name) != runID {
			continue
		}
		if match.Path == "" || p.ModTime.After(match.ModTime) {
			match = p
		}
	}
	return match.Path
}

func newDashboardCommand(ctx *commandContext) *cobra.Command {
	var videoBase string

	cmd := &cobra.Command{
		Use:   "dashboard <run-id>",
		Short: "Browse a run's results in an interactive terminal view",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			runID := args[0]
			// Resolve once up front so an ambiguous run fails before the screen switches.
			if _, err := loadReport(cmd, ctx, cfg, runID, videoBase); err != nil {
				return err
			}
			loader := func() (*dashboard.Report, error) {
				return loadReport(cmd, ctx, cfg, runID, videoBase)
			}
			if err := dashboard.Run(loader); err != nil {
				return fmt.Errorf("dashboard: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&videoBase, "video", "", "Video base name within the run")
	return cmd
}
