package main

import (
	"fmt"
	"io"
	"sync"
	"time"

	"tunevision/internal/pipeline"
	"tunevision/internal/runs"
)

// consoleObserver prints one progress line per stage transition.
type consoleObserver struct {
	mu  sync.Mutex
	out io.Writer
}

func newConsoleObserver(out io.Writer) *consoleObserver {
	return &consoleObserver{out: out}
}

func (o *consoleObserver) StageStarted(_ *runs.Run, position, total int, name string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fmt.Fprintf(o.out, "[%d/%d] %s\n", position, total, name)
}

func (o *consoleObserver) StageFinished(run *runs.Run, position, total int, name string, err error, elapsed time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	switch {
	case err != nil:
		fmt.Fprintf(o.out, "[%d/%d] %s failed after %s: %v\n", position, total, name, elapsed.Round(time.Millisecond), err)
	case name == runs.StageFeedback && run.Degraded:
		fmt.Fprintf(o.out, "[%d/%d] %s done with placeholder output (%s)\n", position, total, name, elapsed.Round(time.Millisecond))
	}
}

func printSummary(out io.Writer, outcome pipeline.Outcome) {
	run := outcome.Run
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Run:      %s\n", run.ID)
	fmt.Fprintf(out, "Video:    %s\n", run.VideoBase)
	fmt.Fprintf(out, "Status:   %s\n", outcome.Status)
	if outcome.Status == runs.StatusAborted {
		fmt.Fprintf(out, "Stage:    %s (%s)\n", outcome.AbortedStage, outcome.Kind)
		fmt.Fprintf(out, "Reason:   %s\n", run.Failure)
	}
	fmt.Fprintf(out, "Degraded: %s\n", yesNo(outcome.Degraded))
	fmt.Fprintf(out, "Elapsed:  %s\n", outcome.Duration.Round(time.Millisecond))
	if run.Comparison != nil {
		fmt.Fprintf(out, "Appeared: %s\n", joinOrNone(run.Comparison.AppearedObjects))
		fmt.Fprintf(out, "Missing:  %s\n", joinOrNone(run.Comparison.MissingObjects))
	}
	if run.Feedback != nil && run.Feedback.RevisedPrompt != "" {
		fmt.Fprintf(out, "Revised:  %s\n", run.Feedback.RevisedPrompt)
	}
	fmt.Fprintf(out, "Report:   tunevision report %s --video %s\n", run.ID, run.VideoBase)
}
