package extraction

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"tunevision/internal/artifacts"
	"tunevision/internal/logging"
	"tunevision/internal/media/ffprobe"
	"tunevision/internal/runs"
	"tunevision/internal/services"
	"tunevision/internal/testsupport"
)

var zeroTime time.Time

func videoProbe(context.Context, string, string) (ffprobe.Result, error) {
	return ffprobe.Result{Streams: []ffprobe.Stream{{CodecType: "video", NBFrames: "100"}}}, nil
}

// frameWriter emulates ffmpeg by writing count frames into the output pattern's directory.
func frameWriter(t *testing.T, count int, gotArgs *[]string) commandRunner {
	return func(_ context.Context, _ string, args ...string) error {
		*gotArgs = args
		dir := filepath.Dir(args[len(args)-1])
		testsupport.WriteFrames(t, dir, count)
		return nil
	}
}

func newRun(t *testing.T, videoDir string) *runs.Run {
	t.Helper()
	video := testsupport.WriteText(t, videoDir, "20240101_120000_out.mp4", "video", zeroTime)
	run, err := runs.New(filepath.Join(videoDir, "20240101_120000.txt"), video)
	if err != nil {
		t.Fatalf("runs.New: %v", err)
	}
	return run
}

func TestExtractWritesOrderedFrames(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := artifacts.NewStore(cfg.Paths.DataRoot)
	var args []string
	e := NewExtractor(cfg, store, logging.NewNop(), WithProbe(videoProbe), WithCommandRunner(frameWriter(t, 10, &args)))
	run := newRun(t, cfg.Paths.VideoDir)

	// A stale frame from an earlier run with more frames must not survive.
	framesDir, _ := store.FramesDir(run.ID, run.VideoBase)
	testsupport.WriteFile(t, filepath.Join(framesDir, "frame_0042.jpg"), 1)

	if err := e.Prepare(context.Background(), run); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := e.Execute(context.Background(), run); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(run.Frames) != 10 {
		t.Fatalf("frames = %d, want 10", len(run.Frames))
	}
	if !artifacts.Contiguous(run.Frames) {
		t.Fatalf("frames not contiguous: %+v", run.Frames)
	}
	if _, err := os.Stat(filepath.Join(framesDir, "frame_0042.jpg")); !os.IsNotExist(err) {
		t.Fatalf("stale frame still present: %v", err)
	}
	if !slices.Contains(args, `select=not(mod(n\,10))`) {
		t.Fatalf("ffmpeg args missing select filter: %v", args)
	}
	if got := args[len(args)-1]; got != filepath.Join(framesDir, "frame_%04d.jpg") {
		t.Fatalf("output pattern = %q", got)
	}
	if len(run.Artifacts) != 1 || run.Artifacts[0].Stage != runs.StageExtract {
		t.Fatalf("artifacts = %+v", run.Artifacts)
	}
}

func TestExtractZeroFramesIsSourceUnreadable(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	var args []string
	e := NewExtractor(cfg, artifacts.NewStore(cfg.Paths.DataRoot), logging.NewNop(),
		WithProbe(videoProbe), WithCommandRunner(frameWriter(t, 0, &args)))
	run := newRun(t, cfg.Paths.VideoDir)

	err := e.Execute(context.Background(), run)
	if !errors.Is(err, services.ErrSourceUnreadable) {
		t.Fatalf("expected ErrSourceUnreadable, got %v", err)
	}
	if !strings.Contains(err.Error(), "no frames decoded") {
		t.Fatalf("error = %v", err)
	}
}

func TestPrepareClassifiesUnreadableSources(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := artifacts.NewStore(cfg.Paths.DataRoot)

	tests := []struct {
		name  string
		probe probeFunc
		video func(*runs.Run)
	}{
		{
			name:  "missing file",
			probe: videoProbe,
			video: func(r *runs.Run) { r.VideoPath = filepath.Join(cfg.Paths.VideoDir, "gone.mp4") },
		},
		{
			name: "probe failure",
			probe: func(context.Context, string, string) (ffprobe.Result, error) {
				return ffprobe.Result{}, errors.New("moov atom not found")
			},
		},
		{
			name: "audio only",
			probe: func(context.Context, string, string) (ffprobe.Result, error) {
				return ffprobe.Result{Streams: []ffprobe.Stream{{CodecType: "audio"}}}, nil
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewExtractor(cfg, store, logging.NewNop(), WithProbe(tt.probe))
			run := newRun(t, cfg.Paths.VideoDir)
			if tt.video != nil {
				tt.video(run)
			}
			if err := e.Prepare(context.Background(), run); !errors.Is(err, services.ErrSourceUnreadable) {
				t.Fatalf("expected ErrSourceUnreadable, got %v", err)
			}
		})
	}
}

func TestExecuteFFmpegFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	e := NewExtractor(cfg, artifacts.NewStore(cfg.Paths.DataRoot), logging.NewNop(),
		WithProbe(videoProbe),
		WithCommandRunner(func(context.Context, string, ...string) error { return errors.New("exit status 1: invalid data") }))
	run := newRun(t, cfg.Paths.VideoDir)
	if err := e.Execute(context.Background(), run); !errors.Is(err, services.ErrSourceUnreadable) {
		t.Fatalf("expected ErrSourceUnreadable, got %v", err)
	}
}

func TestHealthCheckUsesPath(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries("ffmpeg", "ffprobe"))
	e := NewExtractor(cfg, artifacts.NewStore(cfg.Paths.DataRoot), logging.NewNop())
	if health := e.HealthCheck(context.Background()); !health.Ready {
		t.Fatalf("expected ready, got %+v", health)
	}
	cfg.Extraction.FFmpegBinary = "ffmpeg-does-not-exist"
	e = NewExtractor(cfg, artifacts.NewStore(cfg.Paths.DataRoot), logging.NewNop())
	if health := e.HealthCheck(context.Background()); health.Ready {
		t.Fatalf("expected not ready, got %+v", health)
	}
}
