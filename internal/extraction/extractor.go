package extraction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"tunevision/internal/artifacts"
	"tunevision/internal/config"
	"tunevision/internal/fileutil"
	"tunevision/internal/logging"
	"tunevision/internal/media/ffprobe"
	"tunevision/internal/runs"
	"tunevision/internal/services"
	"tunevision/internal/stage"
)

const stageName = runs.StageExtract

type commandRunner func(ctx context.Context, name string, args ...string) error

type probeFunc func(ctx context.Context, binary, path string) (ffprobe.Result, error)

// Extractor samples frames from a run's video.
type Extractor struct {
	store    *artifacts.Store
	interval int
	ffmpeg   string
	ffprobe  string
	logger   *slog.Logger
	run      commandRunner
	probe    probeFunc
}

// Option customizes an Extractor.
type Option func(*Extractor)

// WithCommandRunner injects the ffmpeg runner (tests).
func WithCommandRunner(r commandRunner) Option {
	return func(e *Extractor) {
		if r != nil {
			e.run = r
		}
	}
}

// WithProbe injects the ffprobe inspection (tests).
func WithProbe(p probeFunc) Option {
	return func(e *Extractor) {
		if p != nil {
			e.probe = p
		}
	}
}

// NewExtractor builds the extract stage.
func NewExtractor(cfg *config.Config, store *artifacts.Store, logger *slog.Logger, opts ...Option) *Extractor {
	e := &Extractor{
		store:    store,
		interval: cfg.Extraction.FrameInterval,
		ffmpeg:   cfg.Extraction.FFmpegBinary,
		ffprobe:  cfg.Extraction.FFprobeBinary,
		logger:   logging.NewComponentLogger(logger, "extraction"),
		run:      defaultCommandRunner,
		probe:    ffprobe.Inspect,
	}
	if e.interval < 1 {
		e.interval = 1
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SetLogger routes stage logs through the run-scoped logger.
func (e *Extractor) SetLogger(logger *slog.Logger) {
	if e == nil {
		return
	}
	e.logger = logging.NewComponentLogger(logger, "extraction")
}

// Prepare checks that the video can be opened and carries a video stream.
func (e *Extractor) Prepare(ctx context.Context, run *runs.Run) error {
	if e == nil || e.store == nil {
		return services.Wrap(services.ErrValidation, stageName, "prepare", "Extraction stage is not configured", nil)
	}
	if run == nil {
		return services.Wrap(services.ErrValidation, stageName, "prepare", "Run is nil", nil)
	}
	info, err := os.Stat(run.VideoPath)
	if err != nil {
		return services.Wrap(services.ErrSourceUnreadable, stageName, "open video", run.VideoPath, err)
	}
	if info.IsDir() {
		return services.Wrap(services.ErrSourceUnreadable, stageName, "open video", run.VideoPath+" is a directory", nil)
	}
	probe, err := e.probe(ctx, e.ffprobe, run.VideoPath)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return services.Wrap(services.ErrSourceUnreadable, stageName, "probe video", "Container could not be opened", err)
	}
	if probe.VideoStreamCount() == 0 {
		return services.Wrap(services.ErrSourceUnreadable, stageName, "probe video", "No video stream in "+filepath.Base(run.VideoPath), nil)
	}
	logging.WithContext(ctx, e.logger).Debug("video probed",
		logging.Int("video_streams", probe.VideoStreamCount()),
		logging.Float64("duration_seconds", probe.DurationSeconds()),
		logging.Int("estimated_frames", probe.EstimatedFrames()),
		logging.Int("frame_interval", e.interval),
	)
	return nil
}

// Execute decodes the sampled frames and records them on the run.
func (e *Extractor) Execute(ctx context.Context, run *runs.Run) error {
	logger := logging.WithContext(ctx, e.logger)
	dir, err := e.store.FramesDir(run.ID, run.VideoBase)
	if err != nil {
		return err
	}
	if err := e.store.EnsureDirs(dir); err != nil {
		return err
	}
	removed, err := fileutil.RemoveMatching(dir, "frame_*.jpg")
	if err != nil {
		return services.Wrap(services.ErrFilesystem, stageName, "clear frames", dir, err)
	}
	if removed > 0 {
		logger.Debug("removed stale frames", logging.Int("count", removed))
	}

	if err := e.run(ctx, e.ffmpeg, e.ffmpegArgs(run.VideoPath, dir)...); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if errors.Is(err, exec.ErrNotFound) {
			return services.Wrap(services.ErrExternalTool, stageName, "decode frames", "ffmpeg not found", err)
		}
		return services.Wrap(services.ErrSourceUnreadable, stageName, "decode frames", "ffmpeg could not decode "+filepath.Base(run.VideoPath), err)
	}

	frames, err := artifacts.ListFrames(dir)
	if err != nil {
		return services.Wrap(services.ErrFilesystem, stageName, "list frames", dir, err)
	}
	logger.Info("frames extracted",
		logging.Int("frames_extracted", len(frames)),
		logging.String("frames_dir", dir),
	)
	if len(frames) == 0 {
		return services.Wrap(services.ErrSourceUnreadable, stageName, "decode frames", "no frames decoded", nil)
	}
	if !artifacts.Contiguous(frames) {
		logging.WarnWithContext(logger, "frame indices are not contiguous", "frames_gap",
			logging.Int("frames", len(frames)),
			logging.Int("last_index", frames[len(frames)-1].Index),
			logging.String(logging.FieldImpact, "scores and detections follow the indices present"),
		)
	}
	run.Frames = frames
	run.Record(stageName, "", dir, nil)
	return nil
}

// HealthCheck reports whether ffmpeg and ffprobe resolve.
func (e *Extractor) HealthCheck(context.Context) stage.Health {
	if e == nil || e.store == nil {
		return stage.Unhealthy(stageName, "extractor not configured")
	}
	for _, bin := range []string{e.ffmpeg, e.ffprobe} {
		if _, err := exec.LookPath(bin); err != nil {
			return stage.Unhealthy(stageName, fmt.Sprintf("binary %q not found", bin))
		}
	}
	return stage.Healthy(stageName)
}

// ffmpegArgs selects frames 0, N, 2N, ... and writes them with sequential
// numbering from zero.
func (e *Extractor) ffmpegArgs(video, dir string) []string {
	return []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", video,
		"-vf", `select=not(mod(n\,` + strconv.Itoa(e.interval) + `))`,
		"-fps_mode", "vfr",
		"-q:v", "2",
		"-start_number", "0",
		filepath.Join(dir, artifacts.FramePattern),
	}
}

func defaultCommandRunner(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}
