package scoring

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"tunevision/internal/artifacts"
	"tunevision/internal/logging"
	"tunevision/internal/runs"
	"tunevision/internal/services"
	"tunevision/internal/testsupport"
)

type fakeScorer struct {
	scores []artifacts.FrameScore
	err    error
	calls  int
}

func (f *fakeScorer) Score(context.Context, string, string) ([]artifacts.FrameScore, error) {
	f.calls++
	return f.scores, f.err
}
func (f *fakeScorer) Available() error { return nil }
func (f *fakeScorer) Model() string    { return "ViT-B/32" }

func zeroTime() time.Time { return time.Time{} }

func setup(t *testing.T, frameCount int) (*artifacts.Store, *runs.Run) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := artifacts.NewStore(cfg.Paths.DataRoot)
	prompt := testsupport.WriteText(t, cfg.Paths.PromptDir, "20240101_120000.txt", "a cat sits on a red chair\n", zeroTime())
	video := testsupport.WriteText(t, cfg.Paths.VideoDir, "20240101_120000_out.mp4", "v", zeroTime())
	run, err := runs.New(prompt, video)
	if err != nil {
		t.Fatalf("runs.New: %v", err)
	}
	dir, _ := store.FramesDir(run.ID, run.VideoBase)
	run.Frames = testsupport.WriteFrames(t, dir, frameCount)
	return store, run
}

func TestExecuteWritesOrderedRoundedScores(t *testing.T) {
	store, run := setup(t, 3)
	scorer := &fakeScorer{scores: []artifacts.FrameScore{
		{Frame: "frame_0002.jpg", Score: 0.301249},
		{Frame: "frame_0000.jpg", Score: 0.28888},
		{Frame: "frame_0001.jpg", Score: 0.3},
	}}
	st := NewStage(store, scorer, logging.NewNop())
	if err := st.Prepare(context.Background(), run); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if run.PromptText != "a cat sits on a red chair" {
		t.Fatalf("prompt text = %q", run.PromptText)
	}
	if err := st.Execute(context.Background(), run); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	path, _ := store.Resolve(run.ID, run.VideoBase, artifacts.KindScores)
	got, err := artifacts.ReadScores(path)
	if err != nil {
		t.Fatalf("ReadScores: %v", err)
	}
	want := []artifacts.FrameScore{
		{Frame: "frame_0000.jpg", Score: 0.2889},
		{Frame: "frame_0001.jpg", Score: 0.3},
		{Frame: "frame_0002.jpg", Score: 0.3012},
	}
	if len(got) != len(want) {
		t.Fatalf("scores = %+v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("score[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
	chartPath, _ := store.Resolve(run.ID, run.VideoBase, artifacts.KindScoreChart)
	if info, err := os.Stat(chartPath); err != nil || info.Size() == 0 {
		t.Fatalf("chart missing: %v", err)
	}
	if _, ok := run.ArtifactPath(artifacts.KindScoreChart); !ok {
		t.Fatal("chart not recorded on run")
	}
}

func TestExecutePropagatesModelUnavailable(t *testing.T) {
	store, run := setup(t, 1)
	scorer := &fakeScorer{err: services.Wrap(services.ErrModelUnavailable, "score", "run", "weights missing", nil)}
	st := NewStage(store, scorer, logging.NewNop())
	if err := st.Execute(context.Background(), run); !errors.Is(err, services.ErrModelUnavailable) {
		t.Fatalf("expected ErrModelUnavailable, got %v", err)
	}
	path, _ := store.Resolve(run.ID, run.VideoBase, artifacts.KindScores)
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("scores artifact should not exist: %v", err)
	}
}

func TestOrderMissingFrameIsExternalTool(t *testing.T) {
	frames := []artifacts.Frame{{Index: 0, Name: "frame_0000.jpg"}, {Index: 1, Name: "frame_0001.jpg"}}
	_, err := Order(frames, []artifacts.FrameScore{{Frame: "frame_0000.jpg", Score: 0.2}})
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected ErrExternalTool, got %v", err)
	}
}

func TestPrepareUnreadablePrompt(t *testing.T) {
	store, run := setup(t, 1)
	run.PromptPath = filepath.Join(t.TempDir(), "missing.txt")
	st := NewStage(store, &fakeScorer{}, logging.NewNop())
	if err := st.Prepare(context.Background(), run); !errors.Is(err, services.ErrSourceUnreadable) {
		t.Fatalf("expected ErrSourceUnreadable, got %v", err)
	}
}

func TestRound(t *testing.T) {
	tests := map[float64]float64{
		0.123449: 0.1234,
		-0.00004: 0,
		1:        1,
	}
	for in, want := range tests {
		if got := Round(in); got != want {
			t.Errorf("Round(%v) = %v, want %v", in, got, want)
		}
	}
}
