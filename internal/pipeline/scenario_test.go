package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"tunevision/internal/artifacts"
	"tunevision/internal/logging"
	"tunevision/internal/runs"
	"tunevision/internal/services"
	"tunevision/internal/testsupport"
)

func TestScenarioCatAppearsChairMissing(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithPipelineStubs())
	prompt := testsupport.WriteText(t, cfg.Paths.PromptDir, "20240101_120000.txt", "a cat sits on a red chair", time.Time{})
	video := testsupport.WriteText(t, cfg.Paths.VideoDir, "20240101_120000_out.mp4", "not really a video", time.Time{})

	engine, err := Build(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	run, err := runs.New(prompt, video)
	if err != nil {
		t.Fatalf("runs.New: %v", err)
	}
	outcome := engine.Run(context.Background(), run)
	if outcome.Status != runs.StatusDone {
		t.Fatalf("outcome = %+v (err %v)", outcome, outcome.Err)
	}
	if !outcome.Degraded {
		t.Fatal("run without a credential should be degraded")
	}
	if run.ID != "20240101_120000" || len(run.Frames) != 10 {
		t.Fatalf("run id %q frames %d", run.ID, len(run.Frames))
	}

	store := artifacts.NewStore(cfg.Paths.DataRoot)
	for _, kind := range artifacts.Kinds {
		path, _ := store.Resolve(run.ID, run.VideoBase, kind)
		info, err := os.Stat(path)
		if err != nil || info.Size() == 0 {
			t.Fatalf("%s artifact missing or empty: %v", kind, err)
		}
	}

	cmpPath, _ := store.Resolve(run.ID, run.VideoBase, artifacts.KindComparison)
	cmp, err := artifacts.ReadComparison(cmpPath)
	if err != nil {
		t.Fatalf("ReadComparison: %v", err)
	}
	if !slices.Contains(cmp.AppearedObjects, "cat") || !slices.Contains(cmp.MissingObjects, "chair") || slices.Contains(cmp.MissingObjects, "cat") {
		t.Fatalf("comparison = %+v", cmp)
	}
	if !slices.Equal(cmp.DetectedObjects, []string{"cat"}) {
		t.Fatalf("detected = %v", cmp.DetectedObjects)
	}

	fbPath, _ := store.Resolve(run.ID, run.VideoBase, artifacts.KindFeedback)
	text, _ := os.ReadFile(fbPath)
	if !strings.Contains(string(text), "chair") || !strings.Contains(string(text), "not configured") {
		t.Fatalf("feedback = %q", text)
	}

	scoresPath, _ := store.Resolve(run.ID, run.VideoBase, artifacts.KindScores)
	scores, err := artifacts.ReadScores(scoresPath)
	if err != nil || len(scores) != 10 || scores[0].Score != 0.3123 {
		t.Fatalf("scores = %+v (%v)", scores, err)
	}
}

func TestScenarioDetectFailureWritesNothingDownstream(t *testing.T) {
	cfg := testsupport.NewConfig(t,
		testsupport.WithPipelineStubs(),
		testsupport.WithStubScript("tunevision-yolo", "echo 'CUDA error: out of memory' >&2\nexit 1\n"),
	)
	prompt := testsupport.WriteText(t, cfg.Paths.PromptDir, "p1.txt", "a dog", time.Time{})
	video := testsupport.WriteText(t, cfg.Paths.VideoDir, "p1_out.mp4", "v", time.Time{})
	engine, err := Build(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	run, _ := runs.New(prompt, video)
	outcome := engine.Run(context.Background(), run)
	if outcome.Status != runs.StatusAborted || outcome.AbortedStage != runs.StageDetect {
		t.Fatalf("outcome = %+v", outcome)
	}
	if outcome.Kind != services.KindExternalTool {
		t.Fatalf("kind = %q", outcome.Kind)
	}
	store := artifacts.NewStore(cfg.Paths.DataRoot)
	for _, kind := range []artifacts.Kind{artifacts.KindDetections, artifacts.KindComparison, artifacts.KindFeedback, artifacts.KindRevisedPrompt} {
		path, _ := store.Resolve(run.ID, run.VideoBase, kind)
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Fatalf("%s should not exist after detect failure: %v", kind, err)
		}
	}
}

func TestScenarioRerunClearsPreviousResults(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithPipelineStubs())
	prompt := testsupport.WriteText(t, cfg.Paths.PromptDir, "p1.txt", "a cat on a chair", time.Time{})
	video := testsupport.WriteText(t, cfg.Paths.VideoDir, "p1_out.mp4", "v", time.Time{})
	engine, err := Build(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	first, _ := runs.New(prompt, video)
	if outcome := engine.Run(context.Background(), first); outcome.Status != runs.StatusDone {
		t.Fatalf("first run = %+v", outcome)
	}

	testsupport.WriteScript(t, filepath.Join(testsupport.BaseDir(cfg), "bin"), cfg.Detector.Command, "echo 'detector crashed' >&2\nexit 1\n")
	second, _ := runs.New(prompt, video)
	outcome := engine.Run(context.Background(), second)
	if outcome.Status != runs.StatusAborted || outcome.AbortedStage != runs.StageDetect {
		t.Fatalf("second run = %+v", outcome)
	}

	store := artifacts.NewStore(cfg.Paths.DataRoot)
	for _, kind := range []artifacts.Kind{artifacts.KindDetections, artifacts.KindComparison, artifacts.KindFeedback, artifacts.KindRevisedPrompt} {
		path, _ := store.Resolve(second.ID, second.VideoBase, kind)
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Fatalf("%s from the earlier run survived the re-run: %v", kind, err)
		}
	}
	scores, _ := store.Resolve(second.ID, second.VideoBase, artifacts.KindScores)
	if _, err := os.Stat(scores); err != nil {
		t.Fatalf("scores from the re-run missing: %v", err)
	}
}
