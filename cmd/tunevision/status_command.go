package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"tunevision/internal/dashboard"
	"tunevision/internal/pipeline"
	"tunevision/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check directories, external tools, and stage readiness",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			color := colorEnabled(out)

			results := preflight.RunAll(cmd.Context(), cfg)
			results = append(results, preflight.CheckLLM(cmd.Context(), cfg.LLM))
			rows := make([][]string, 0, len(results))
			for _, r := range results {
				rows = append(rows, []string{r.Name, checkMark(r.Passed, r.Advisory, color), r.Detail})
			}
			fmt.Fprintln(out, "Environment")
			fmt.Fprintln(out, checkTable(rows))

			engine, err := pipeline.Build(cfg, ctx.loggerFor(cfg))
			if err != nil {
				return exitError{code: exitFailure, msg: fmt.Sprintf("build pipeline: %v", err)}
			}
			stageRows := [][]string{}
			for _, h := range engine.HealthCheck(cmd.Context()) {
				stageRows = append(stageRows, []string{h.Name, checkMark(h.Ready, false, color), h.Detail})
			}
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Stages")
			fmt.Fprintln(out, checkTable(stageRows))

			if failed := preflight.Failed(results); len(failed) > 0 {
				return exitError{code: exitFailure, msg: fmt.Sprintf("%d check(s) failed", len(failed))}
			}
			return nil
		},
	}
}

func checkTable(rows [][]string) string {
	return dashboard.Table([]string{"Check", "State", "Detail"}, rows, nil)
}

func checkMark(passed, advisory, color bool) string {
	label, c := "ok", text.Colors{text.FgGreen}
	switch {
	case !passed && advisory:
		label, c = "warn", text.Colors{text.FgYellow}
	case !passed:
		label, c = "fail", text.Colors{text.FgRed}
	}
	if !color {
		return label
	}
	return c.Sprint(label)
}
