package stage

import (
	"context"
	"log/slog"

	"tunevision/internal/runs"
)

// Handler describes the contract the pipeline engine needs from each stage.
// Prepare validates the typed inputs already on the run; Execute produces the
// stage artifact and records it on the run.
type Handler interface {
	Prepare(context.Context, *runs.Run) error
	Execute(context.Context, *runs.Run) error
	HealthCheck(context.Context) Health
}

// LoggerAware handlers receive the run-scoped logger before Prepare.
type LoggerAware interface {
	SetLogger(*slog.Logger)
}
