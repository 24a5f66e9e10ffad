package preflight

import (
	"context"

	"tunevision/internal/config"
	"tunevision/internal/deps"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
	// Advisory results never block the watch loop.
	Advisory bool
}

// RunAll executes the checks that gate the watch loop: writable data and
// state directories, readable prompt and video directories, the external
// commands, and the detector weights.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	results := []Result{
		CheckDirectoryAccess("Data root", cfg.Paths.DataRoot),
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckDirectoryReadable("Prompt directory", cfg.Paths.PromptDir),
		CheckDirectoryReadable("Video directory", cfg.Paths.VideoDir),
	}
	for _, status := range CheckSystemDeps(ctx, cfg) {
		results = append(results, FromDependency(status))
	}
	results = append(results, CheckDetectorModel(cfg.Detector.Model))
	return results
}

// Failed returns the blocking results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed && !r.Advisory {
			out = append(out, r)
		}
	}
	return out
}

// FromDependency converts a dependency status into a check result.
func FromDependency(status deps.Status) Result {
	detail := status.Detail
	if status.Available {
		detail = status.Path
	}
	return Result{
		Name:     status.Name,
		Passed:   status.Available,
		Detail:   detail,
		Advisory: status.Optional,
	}
}
