package stageexec

import (
	"context"
	"errors"
	"strings"
	"testing"

	"tunevision/internal/logging"
	"tunevision/internal/runs"
	"tunevision/internal/services"
	"tunevision/internal/stage"
)

type stubHandler struct {
	prepareErr error
	executeErr error
	executed   bool
	logger     bool
}

func (s *stubHandler) Prepare(context.Context, *runs.Run) error { return s.prepareErr }
func (s *stubHandler) Execute(ctx context.Context, _ *runs.Run) error {
	s.executed = true
	if name, ok := services.StageFromContext(ctx); !ok || name != "detect" {
		return errors.New("stage missing from context")
	}
	return s.executeErr
}
func (s *stubHandler) HealthCheck(context.Context) stage.Health { return stage.Healthy("detect") }

func TestRunSuccess(t *testing.T) {
	h := &stubHandler{}
	run := &runs.Run{ID: "r"}
	if err := Run(context.Background(), Options{Logger: logging.NewNop(), Handler: h, StageName: "detect", Run: run}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !h.executed {
		t.Fatal("Execute not called")
	}
	if run.AbortedStage != "" || run.Failure != "" {
		t.Fatalf("unexpected failure fields: %+v", run)
	}
}

func TestRunPrepareFailureSkipsExecute(t *testing.T) {
	h := &stubHandler{prepareErr: services.Wrap(services.ErrModelUnavailable, "detect", "check model", "model file not found", errors.New("stat x.pt: no such file"))}
	run := &runs.Run{ID: "r"}
	err := Run(context.Background(), Options{Logger: logging.NewNop(), Handler: h, StageName: "detect", Run: run})
	if !errors.Is(err, services.ErrModelUnavailable) {
		t.Fatalf("expected ErrModelUnavailable, got %v", err)
	}
	if h.executed {
		t.Fatal("Execute should not run after Prepare fails")
	}
	if run.AbortedStage != "detect" || !strings.Contains(run.Failure, "model file not found") || !strings.Contains(run.Failure, "no such file") {
		t.Fatalf("failure fields = %q / %q", run.AbortedStage, run.Failure)
	}
}

func TestRunRequiresHandlerAndRun(t *testing.T) {
	if err := Run(context.Background(), Options{StageName: "x", Run: &runs.Run{}}); err == nil {
		t.Fatal("expected error without handler")
	}
	if err := Run(context.Background(), Options{StageName: "x", Handler: &stubHandler{}}); err == nil {
		t.Fatal("expected error without run")
	}
}
