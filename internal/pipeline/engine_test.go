package pipeline

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"tunevision/internal/logging"
	"tunevision/internal/runs"
	"tunevision/internal/services"
	"tunevision/internal/stage"
)

type fakeHandler struct {
	name    string
	err     error
	degrade bool
	calls   *[]string
}

func (f *fakeHandler) Prepare(context.Context, *runs.Run) error { return nil }
func (f *fakeHandler) Execute(_ context.Context, run *runs.Run) error {
	*f.calls = append(*f.calls, f.name)
	if f.degrade {
		run.Degraded = true
	}
	return f.err
}
func (f *fakeHandler) HealthCheck(context.Context) stage.Health { return stage.Healthy(f.name) }

func steps(calls *[]string, failAt string, failErr error, degradeAt string) []Step {
	out := make([]Step, 0, len(runs.Stages))
	for _, name := range runs.Stages {
		h := &fakeHandler{name: name, calls: calls, degrade: name == degradeAt}
		if name == failAt {
			h.err = failErr
		}
		out = append(out, Step{Name: name, Handler: h})
	}
	return out
}

type recordingObserver struct {
	started  []string
	finished []string
}

func (o *recordingObserver) StageStarted(_ *runs.Run, _, _ int, name string) {
	o.started = append(o.started, name)
}

func (o *recordingObserver) StageFinished(_ *runs.Run, _, _ int, name string, err error, _ time.Duration) {
	if err != nil {
		name += "!"
	}
	o.finished = append(o.finished, name)
}

type memoryRecorder struct {
	mu       sync.Mutex
	started  int
	finished []runs.Status
}

func (m *memoryRecorder) RunStarted(context.Context, *runs.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started++
	return nil
}

func (m *memoryRecorder) RunFinished(_ context.Context, run *runs.Run, _ services.Kind) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finished = append(m.finished, run.Status)
	return nil
}

func TestEngineRunsAllStagesInOrder(t *testing.T) {
	var calls []string
	obs := &recordingObserver{}
	rec := &memoryRecorder{}
	engine := NewEngine(steps(&calls, "", nil, ""), logging.NewNop(), WithObserver(obs), WithRecorder(rec))
	outcome := engine.Run(context.Background(), &runs.Run{ID: "20240101_120000"})

	if outcome.Status != runs.StatusDone || outcome.Err != nil {
		t.Fatalf("outcome = %+v", outcome)
	}
	if !slices.Equal(calls, runs.Stages) {
		t.Fatalf("calls = %v", calls)
	}
	if !slices.Equal(obs.started, runs.Stages) || !slices.Equal(obs.finished, runs.Stages) {
		t.Fatalf("observer = %+v", obs)
	}
	if rec.started != 1 || len(rec.finished) != 1 || rec.finished[0] != runs.StatusDone {
		t.Fatalf("recorder = %+v", rec)
	}
}

func TestEngineAbortsAtFailingStage(t *testing.T) {
	var calls []string
	failErr := services.Wrap(services.ErrModelUnavailable, "detect", "load", "weights missing", nil)
	engine := NewEngine(steps(&calls, runs.StageDetect, failErr, ""), logging.NewNop())
	outcome := engine.Run(context.Background(), &runs.Run{ID: "r1"})

	if outcome.Status != runs.StatusAborted || outcome.AbortedStage != runs.StageDetect {
		t.Fatalf("outcome = %+v", outcome)
	}
	if outcome.Kind != services.KindModelUnavailable {
		t.Fatalf("kind = %q", outcome.Kind)
	}
	if !slices.Equal(calls, []string{runs.StageExtract, runs.StageScore, runs.StageDetect}) {
		t.Fatalf("later stages ran: %v", calls)
	}
	if !outcome.Failed() {
		t.Fatal("Failed() should be true")
	}
}

func TestEngineDegradedRunIsDone(t *testing.T) {
	var calls []string
	engine := NewEngine(steps(&calls, "", nil, runs.StageFeedback), logging.NewNop())
	outcome := engine.Run(context.Background(), &runs.Run{ID: "r1"})
	if outcome.Status != runs.StatusDone || !outcome.Degraded {
		t.Fatalf("outcome = %+v", outcome)
	}
}

func TestEngineRerunResetsState(t *testing.T) {
	var calls []string
	engine := NewEngine(steps(&calls, runs.StageScore, errors.New("boom"), ""), logging.NewNop())
	run := &runs.Run{ID: "r1"}
	first := engine.Run(context.Background(), run)
	if first.Status != runs.StatusAborted {
		t.Fatalf("first = %+v", first)
	}

	calls = nil
	engine = NewEngine(steps(&calls, "", nil, ""), logging.NewNop())
	second := engine.Run(context.Background(), run)
	if second.Status != runs.StatusDone || run.AbortedStage != "" || run.Failure != "" {
		t.Fatalf("second = %+v, run = %+v", second, run)
	}
	if calls[0] != runs.StageExtract {
		t.Fatalf("re-run should start at extract: %v", calls)
	}
}

func TestEngineStopsOnCancelledContext(t *testing.T) {
	var calls []string
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	engine := NewEngine(steps(&calls, "", nil, ""), logging.NewNop())
	outcome := engine.Run(ctx, &runs.Run{ID: "r1"})
	if outcome.Status != runs.StatusAborted || len(calls) != 0 {
		t.Fatalf("outcome = %+v calls = %v", outcome, calls)
	}
	if !errors.Is(outcome.Err, context.Canceled) {
		t.Fatalf("err = %v", outcome.Err)
	}
}

type cleanerFunc func(runID, videoBase string) error

func (f cleanerFunc) RemoveResults(runID, videoBase string) error { return f(runID, videoBase) }

func TestEngineClearsResultsBeforeFirstStage(t *testing.T) {
	var calls []string
	var cleaned []string
	cleaner := cleanerFunc(func(runID, videoBase string) error {
		cleaned = append(cleaned, runID+"/"+videoBase)
		if len(calls) != 0 {
			t.Errorf("results cleared after %v ran", calls)
		}
		return nil
	})
	engine := NewEngine(steps(&calls, "", nil, ""), logging.NewNop(), WithResultCleaner(cleaner))
	outcome := engine.Run(context.Background(), &runs.Run{ID: "r1", VideoBase: "v1"})
	if outcome.Status != runs.StatusDone {
		t.Fatalf("outcome = %+v", outcome)
	}
	if !slices.Equal(cleaned, []string{"r1/v1"}) {
		t.Fatalf("cleaned = %v", cleaned)
	}
}

func TestEngineAbortsWhenStaleResultsCannotBeCleared(t *testing.T) {
	var calls []string
	cleaner := cleanerFunc(func(string, string) error {
		return services.Wrap(services.ErrFilesystem, "artifacts", "remove stale result", "x", errors.New("permission denied"))
	})
	engine := NewEngine(steps(&calls, "", nil, ""), logging.NewNop(), WithResultCleaner(cleaner))
	outcome := engine.Run(context.Background(), &runs.Run{ID: "r1", VideoBase: "v1"})
	if outcome.Status != runs.StatusAborted || outcome.AbortedStage != runs.StageExtract {
		t.Fatalf("outcome = %+v", outcome)
	}
	if outcome.Kind != services.KindFilesystem || len(calls) != 0 {
		t.Fatalf("kind = %q calls = %v", outcome.Kind, calls)
	}
}
